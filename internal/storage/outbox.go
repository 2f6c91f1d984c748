package storage

import (
	"context"
	"fmt"

	"github.com/ashita-ai/suisen/internal/model"
)

// EnqueueVectorRepair records that an entity's vector upsert failed and
// needs reconciliation. One row per (class, profile_id, tenant_id);
// re-enqueueing an existing row re-arms it with a fresh attempt budget.
func (db *DB) EnqueueVectorRepair(ctx context.Context, class model.Class, profileID, tenantID, reason string) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO vector_outbox (class, profile_id, tenant_id, last_error)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (class, profile_id, tenant_id) DO UPDATE SET
		     attempts = 0,
		     locked_until = NULL,
		     last_error = EXCLUDED.last_error,
		     updated_at = now()`,
		string(class), profileID, tenantID, reason,
	)
	if err != nil {
		return fmt.Errorf("storage: enqueue vector repair: %w", err)
	}
	return nil
}

// PendingVectorRepairs returns the number of outbox rows still awaiting a
// successful re-upsert.
func (db *DB) PendingVectorRepairs(ctx context.Context, maxAttempts int) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM vector_outbox WHERE attempts < $1`, maxAttempts,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("storage: count vector repairs: %w", err)
	}
	return count, nil
}
