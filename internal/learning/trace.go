package learning

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ashita-ai/suisen/internal/model"
)

const traceSchema = `
CREATE TABLE IF NOT EXISTS learning_trace (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_ms INTEGER NOT NULL,
	tenant_id TEXT NOT NULL DEFAULT '',
	position_id TEXT NOT NULL DEFAULT '',
	candidate_id TEXT NOT NULL DEFAULT '',
	arm INTEGER NOT NULL,
	reward REAL NOT NULL,
	is_optimal INTEGER NOT NULL,
	feedback_type TEXT NOT NULL DEFAULT '',
	precision REAL NOT NULL,
	recall REAL NOT NULL,
	f1 REAL NOT NULL,
	response_rate REAL NOT NULL,
	average_reward REAL NOT NULL,
	cumulative_regret REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_learning_trace_scope
	ON learning_trace (tenant_id, position_id, ts_ms);
`

// Trace persists interaction history in a local SQLite file so the
// learning curve survives restarts. The database is opened with a
// single connection; SQLite behaves best with one writer.
type Trace struct {
	db        *sql.DB
	closeOnce sync.Once
	closeErr  error
}

// OpenTrace opens (creating if needed) the trace database at path.
// The literal ":memory:" opens a private in-memory database.
func OpenTrace(path string) (*Trace, error) {
	if path == "" {
		return nil, fmt.Errorf("learning trace: path is required")
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("learning trace: create directory: %w", err)
		}
		// modernc.org/sqlite takes pragmas in the DSN.
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("learning trace: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("learning trace: connect: %w", err)
	}
	if _, err := db.Exec(traceSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("learning trace: migrate: %w", err)
	}
	return &Trace{db: db}, nil
}

// Close checkpoints the WAL and closes the database. Safe to call more
// than once.
func (tr *Trace) Close() error {
	tr.closeOnce.Do(func() {
		_, _ = tr.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		tr.closeErr = tr.db.Close()
	})
	return tr.closeErr
}

// Append writes one interaction row.
func (tr *Trace) Append(ctx context.Context, in Interaction) error {
	_, err := tr.db.ExecContext(ctx,
		`INSERT INTO learning_trace
			(ts_ms, tenant_id, position_id, candidate_id, arm, reward, is_optimal, feedback_type,
			 precision, recall, f1, response_rate, average_reward, cumulative_regret)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.Timestamp.UnixMilli(), in.TenantID, in.PositionID, in.CandidateID,
		in.Arm, in.Reward, boolInt(in.IsOptimal), string(in.FeedbackType),
		in.Metrics.Precision, in.Metrics.Recall, in.Metrics.F1,
		in.Metrics.ResponseRate, in.Metrics.AverageReward, in.Metrics.CumulativeRegret)
	if err != nil {
		return fmt.Errorf("learning trace: insert: %w", err)
	}
	return nil
}

// Recent returns up to limit interactions for a tenant, newest first.
// An empty positionID matches every position.
func (tr *Trace) Recent(ctx context.Context, tenantID, positionID string, limit int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
		SELECT id, ts_ms, tenant_id, position_id, candidate_id, arm, reward, is_optimal, feedback_type,
		       precision, recall, f1, response_rate, average_reward, cumulative_regret
		FROM learning_trace
		WHERE tenant_id = ? AND (? = '' OR position_id = ?)
		ORDER BY id DESC
		LIMIT ?`
	rows, err := tr.db.QueryContext(ctx, q, tenantID, positionID, positionID, limit)
	if err != nil {
		return nil, fmt.Errorf("learning trace: query: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		var tsMs int64
		var optimal int
		var ft string
		if err := rows.Scan(&in.Seq, &tsMs, &in.TenantID, &in.PositionID, &in.CandidateID,
			&in.Arm, &in.Reward, &optimal, &ft,
			&in.Metrics.Precision, &in.Metrics.Recall, &in.Metrics.F1,
			&in.Metrics.ResponseRate, &in.Metrics.AverageReward, &in.Metrics.CumulativeRegret); err != nil {
			return nil, fmt.Errorf("learning trace: scan: %w", err)
		}
		in.Timestamp = time.UnixMilli(tsMs).UTC()
		in.IsOptimal = optimal != 0
		in.FeedbackType = model.FeedbackType(ft)
		out = append(out, in)
	}
	return out, rows.Err()
}

// Count reports the number of stored interactions for a tenant.
func (tr *Trace) Count(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := tr.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM learning_trace WHERE tenant_id = ?", tenantID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("learning trace: count: %w", err)
	}
	return n, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
