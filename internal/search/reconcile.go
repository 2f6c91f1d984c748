package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/telemetry"
)

// repairEntry represents a single row from the vector_outbox table.
type repairEntry struct {
	ID        int64
	Class     model.Class
	ProfileID string
	TenantID  string
	Attempts  int
}

// Reconciler polls the vector_outbox table and re-pushes entity points
// whose best-effort vector write failed. The relational store is the
// source of truth: an entry whose entity no longer exists there resolves
// by removing the stale point instead.
type Reconciler struct {
	pool         *pgxpool.Pool
	index        Writer
	source       PointSource
	logger       *slog.Logger
	pollInterval time.Duration
	batchSize    int

	started     atomic.Bool
	cancelLoop  context.CancelFunc
	done        chan struct{}
	once        sync.Once
	lastCleanup time.Time
	drainCh     chan context.Context // carries the drain context to pollLoop for the final poll
}

// NewReconciler creates a reconcile worker.
func NewReconciler(pool *pgxpool.Pool, index Writer, source PointSource, logger *slog.Logger, pollInterval time.Duration, batchSize int) *Reconciler {
	return &Reconciler{
		pool:         pool,
		index:        index,
		source:       source,
		logger:       logger,
		pollInterval: pollInterval,
		batchSize:    batchSize,
		done:         make(chan struct{}),
		drainCh:      make(chan context.Context, 1),
	}
}

// Start begins the background poll loop. It is safe to call only once;
// subsequent calls are no-ops and log a warning.
func (w *Reconciler) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		w.logger.Warn("vector outbox: Start called more than once, ignoring")
		return
	}
	w.registerMetrics()
	loopCtx, cancel := context.WithCancel(ctx)
	w.cancelLoop = cancel
	go w.pollLoop(loopCtx)
}

// Drain signals the poll loop to stop, processes remaining entries, and
// blocks until done or the context expires. The ctx parameter is passed to
// the final poll so it respects the caller's deadline.
func (w *Reconciler) Drain(ctx context.Context) {
	// Send the drain context to pollLoop via channel (race-free).
	// Must be sent before cancelLoop so pollLoop can receive it on ctx.Done().
	select {
	case w.drainCh <- ctx:
	default:
	}
	if w.cancelLoop != nil {
		w.cancelLoop()
	}
	select {
	case <-w.done:
	case <-ctx.Done():
		w.logger.Warn("vector outbox: drain timed out")
	}
}

func (w *Reconciler) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final drain: prefer the drain context (sent by Drain via channel)
			// so the final poll respects the caller's deadline.
			var drainCtx context.Context
			select {
			case drainCtx = <-w.drainCh:
			default:
			}
			if drainCtx != nil {
				w.processBatch(drainCtx)
			} else {
				// Fallback for direct cancellation without Drain (e.g., tests).
				fallbackCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				w.processBatch(fallbackCtx)
				cancel()
			}
			w.once.Do(func() { close(w.done) })
			return
		case <-ticker.C:
			batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			w.processBatch(batchCtx)
			cancel()
		}
	}
}

const maxRepairAttempts = 10

func (w *Reconciler) processBatch(ctx context.Context) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		w.logger.Error("vector outbox: begin tx", "error", err)
		return
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Select and lock pending entries.
	rows, err := tx.Query(ctx,
		`SELECT id, class, profile_id, tenant_id, attempts
		 FROM vector_outbox
		 WHERE (locked_until IS NULL OR locked_until < now())
		   AND attempts < $1
		 ORDER BY created_at ASC
		 LIMIT $2
		 FOR UPDATE SKIP LOCKED`,
		maxRepairAttempts, w.batchSize,
	)
	if err != nil {
		w.logger.Error("vector outbox: select pending", "error", err)
		return
	}

	entries, err := scanRepairEntries(rows)
	if err != nil {
		w.logger.Error("vector outbox: scan entries", "error", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	// Lock the entries for 60 seconds (must exceed the 30s batchCtx timeout
	// to prevent a second worker from picking up entries whose lock expired
	// while the first worker is still processing).
	entryIDs := make([]int64, len(entries))
	for i, e := range entries {
		entryIDs[i] = e.ID
	}
	if _, err := tx.Exec(ctx,
		`UPDATE vector_outbox SET locked_until = now() + interval '60 seconds' WHERE id = ANY($1)`,
		entryIDs,
	); err != nil {
		w.logger.Error("vector outbox: lock entries", "error", err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		w.logger.Error("vector outbox: commit lock", "error", err)
		return
	}

	var repaired, removed []repairEntry
	for _, e := range entries {
		switch outcome := w.repairOne(ctx, e); outcome {
		case repairPushed:
			repaired = append(repaired, e)
		case repairRemoved:
			removed = append(removed, e)
		case repairFailed:
			w.failEntries(ctx, []repairEntry{e}, "repair failed, see logs")
		}
	}

	if done := append(repaired, removed...); len(done) > 0 {
		w.succeedEntries(ctx, done)
	}
	if len(repaired) > 0 {
		w.logger.Info("vector outbox: re-pushed points", "count", len(repaired))
	}
	if len(removed) > 0 {
		w.logger.Info("vector outbox: removed stale points", "count", len(removed))
	}

	// Periodically clean up dead-letter entries (attempts >= max, older than 7 days).
	if time.Since(w.lastCleanup) > time.Hour {
		w.cleanupDeadLetters(ctx)
		w.lastCleanup = time.Now()
	}
}

type repairOutcome int

const (
	repairPushed repairOutcome = iota
	repairRemoved
	repairFailed
)

// repairOne resolves a single outbox entry against the relational source
// of truth: rebuild and re-push the point, or remove it when the entity
// is gone.
func (w *Reconciler) repairOne(ctx context.Context, e repairEntry) repairOutcome {
	point, err := w.source.PointFor(ctx, e.Class, e.ProfileID, e.TenantID)
	if model.IsNotFound(err) {
		if delErr := w.index.Delete(ctx, e.Class, e.ProfileID); delErr != nil && !model.IsNotFound(delErr) {
			w.logger.Error("vector outbox: remove stale point",
				"class", string(e.Class), "profile_id", e.ProfileID, "error", delErr)
			return repairFailed
		}
		return repairRemoved
	}
	if err != nil {
		w.logger.Error("vector outbox: rebuild point",
			"class", string(e.Class), "profile_id", e.ProfileID, "error", err)
		return repairFailed
	}

	if err := w.index.Replace(ctx, point); err != nil {
		w.logger.Error("vector outbox: re-push point",
			"class", string(e.Class), "profile_id", e.ProfileID, "error", err)
		return repairFailed
	}
	return repairPushed
}

func (w *Reconciler) cleanupDeadLetters(ctx context.Context) {
	tag, err := w.pool.Exec(ctx,
		`DELETE FROM vector_outbox
		 WHERE attempts >= $1
		   AND created_at < now() - interval '7 days'`,
		maxRepairAttempts,
	)
	if err != nil {
		w.logger.Error("vector outbox: cleanup dead-letters failed", "error", err)
		return
	}
	if tag.RowsAffected() > 0 {
		w.logger.Info("vector outbox: cleaned dead-letter entries", "deleted", tag.RowsAffected())
	}
}

func (w *Reconciler) succeedEntries(ctx context.Context, entries []repairEntry) {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	if _, err := w.pool.Exec(ctx,
		`DELETE FROM vector_outbox WHERE id = ANY($1)`, ids,
	); err != nil {
		w.logger.Error("vector outbox: delete completed entries", "error", err)
	}
}

func (w *Reconciler) failEntries(ctx context.Context, entries []repairEntry, errMsg string) {
	ids := make([]int64, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	// Exponential backoff: locked_until = now() + 2^attempts seconds (capped
	// at 5 minutes). This prevents tight retry loops during Qdrant outages.
	if _, err := w.pool.Exec(ctx,
		`UPDATE vector_outbox
		 SET attempts = attempts + 1,
		     last_error = $1,
		     locked_until = now() + LEAST(POWER(2, attempts + 1), 300) * interval '1 second',
		     updated_at = now()
		 WHERE id = ANY($2)`,
		errMsg, ids,
	); err != nil {
		w.logger.Error("vector outbox: update failed entries", "error", err)
	}

	// Log dead-letter entries (attempts >= maxRepairAttempts after increment).
	for _, e := range entries {
		if e.Attempts+1 >= maxRepairAttempts {
			w.logger.Warn("vector outbox: dead-letter entry",
				"outbox_id", e.ID,
				"class", string(e.Class),
				"profile_id", e.ProfileID,
				"attempts", e.Attempts+1,
			)
		}
	}
}

// Sweep walks every entity in the relational source and re-pushes its
// point, returning the number of points written. Used to rebuild a
// collection after data loss or a dimension change.
func (w *Reconciler) Sweep(ctx context.Context, class model.Class) (int, error) {
	const pageSize = 200

	total := 0
	for offset := 0; ; offset += pageSize {
		points, err := w.source.ListPoints(ctx, class, pageSize, offset)
		if err != nil {
			return total, fmt.Errorf("search: sweep %s at offset %d: %w", class, offset, err)
		}
		if len(points) == 0 {
			return total, nil
		}
		for _, p := range points {
			if err := w.index.Replace(ctx, p); err != nil {
				return total, fmt.Errorf("search: sweep %s %s: %w", class, p.ProfileID, err)
			}
			total++
		}
		if len(points) < pageSize {
			return total, nil
		}
	}
}

// registerMetrics registers observable OTEL gauges for outbox health monitoring.
func (w *Reconciler) registerMetrics() {
	meter := telemetry.Meter("suisen/outbox")

	_, _ = meter.Int64ObservableGauge("suisen.outbox.depth",
		metric.WithDescription("Number of pending entries in the vector outbox"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			var count int64
			err := w.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vector_outbox WHERE attempts < $1`, maxRepairAttempts).Scan(&count)
			if err != nil {
				return nil // Non-fatal: just skip this observation.
			}
			o.Observe(count)
			return nil
		}),
	)
}

func scanRepairEntries(rows pgx.Rows) ([]repairEntry, error) {
	defer rows.Close()
	var entries []repairEntry
	for rows.Next() {
		var e repairEntry
		var class string
		if err := rows.Scan(&e.ID, &class, &e.ProfileID, &e.TenantID, &e.Attempts); err != nil {
			return nil, fmt.Errorf("vector outbox: scan entry: %w", err)
		}
		e.Class = model.Class(class)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
