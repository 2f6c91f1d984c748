package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/internal/model"
)

const interviewerColumns = `id, tenant_id, name, expertise, success_rate, cluster_success_rates, interview_history, team_id, created_at, updated_at`

// InterviewerRow pairs an interviewer with its stored embedding for
// reconciliation sweeps.
type InterviewerRow struct {
	Interviewer model.Interviewer
	Embedding   *pgvector.Vector
}

func scanInterviewerRow(row pgx.Row) (model.Interviewer, error) {
	var i model.Interviewer
	err := row.Scan(
		&i.ID, &i.TenantID, &i.Name, &i.Expertise, &i.SuccessRate,
		&i.ClusterSuccessRates, &i.InterviewHistory, &i.TeamID,
		&i.CreatedAt, &i.UpdatedAt,
	)
	return i, err
}

// UpsertInterviewer inserts or replaces an interviewer row keyed by
// (tenant_id, id).
func (db *DB) UpsertInterviewer(ctx context.Context, iv model.Interviewer, embedding *pgvector.Vector) (model.Interviewer, error) {
	now := time.Now().UTC()
	if iv.CreatedAt.IsZero() {
		iv.CreatedAt = now
	}
	iv.UpdatedAt = now
	if iv.Expertise == nil {
		iv.Expertise = []string{}
	}
	if iv.ClusterSuccessRates == nil {
		iv.ClusterSuccessRates = map[string]float64{}
	}
	if iv.InterviewHistory == nil {
		iv.InterviewHistory = []model.InterviewRecord{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO interviewers (id, tenant_id, name, expertise, success_rate, cluster_success_rates, interview_history, team_id, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET
		     name = EXCLUDED.name,
		     expertise = EXCLUDED.expertise,
		     success_rate = EXCLUDED.success_rate,
		     cluster_success_rates = EXCLUDED.cluster_success_rates,
		     interview_history = EXCLUDED.interview_history,
		     team_id = EXCLUDED.team_id,
		     embedding = COALESCE(EXCLUDED.embedding, interviewers.embedding),
		     updated_at = EXCLUDED.updated_at`,
		iv.ID, iv.TenantID, iv.Name, iv.Expertise, iv.SuccessRate,
		iv.ClusterSuccessRates, iv.InterviewHistory, iv.TeamID, embedding,
		iv.CreatedAt, iv.UpdatedAt,
	)
	if err != nil {
		return model.Interviewer{}, fmt.Errorf("storage: upsert interviewer: %w", err)
	}
	return iv, nil
}

// GetInterviewer retrieves an interviewer by id within a tenant.
func (db *DB) GetInterviewer(ctx context.Context, tenantID, id string) (model.Interviewer, error) {
	i, err := scanInterviewerRow(db.pool.QueryRow(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Interviewer{}, fmt.Errorf("storage: interviewer %s: %w", id, ErrNotFound)
		}
		return model.Interviewer{}, fmt.Errorf("storage: get interviewer: %w", err)
	}
	return i, nil
}

// GetInterviewerRow retrieves an interviewer with its stored embedding.
// Used by the reconciler so a repair does not depend on the embedding
// backend.
func (db *DB) GetInterviewerRow(ctx context.Context, tenantID, id string) (InterviewerRow, error) {
	var r InterviewerRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+interviewerColumns+`, embedding FROM interviewers WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&r.Interviewer.ID, &r.Interviewer.TenantID, &r.Interviewer.Name, &r.Interviewer.Expertise,
		&r.Interviewer.SuccessRate, &r.Interviewer.ClusterSuccessRates, &r.Interviewer.InterviewHistory,
		&r.Interviewer.TeamID, &r.Interviewer.CreatedAt, &r.Interviewer.UpdatedAt,
		&r.Embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return InterviewerRow{}, fmt.Errorf("storage: interviewer %s: %w", id, ErrNotFound)
		}
		return InterviewerRow{}, fmt.Errorf("storage: get interviewer row: %w", err)
	}
	return r, nil
}

// ListInterviewers returns interviewers within a tenant ordered by
// creation time. limit is clamped to [1, 1000] with a default of 200.
func (db *DB) ListInterviewers(ctx context.Context, tenantID string, limit, offset int) ([]model.Interviewer, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE tenant_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list interviewers: %w", err)
	}
	defer rows.Close()

	var out []model.Interviewer
	for rows.Next() {
		i, err := scanInterviewerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan interviewer: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// ListInterviewersByTeam returns the interviewers whose team_id matches.
func (db *DB) ListInterviewersByTeam(ctx context.Context, tenantID, teamID string) ([]model.Interviewer, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE tenant_id = $1 AND team_id = $2 ORDER BY id ASC`,
		tenantID, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list interviewers by team: %w", err)
	}
	defer rows.Close()

	var out []model.Interviewer
	for rows.Next() {
		i, err := scanInterviewerRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan interviewer: %w", err)
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

// UpdateInterviewerClusterRates replaces the per-cluster success rates for
// one interviewer.
func (db *DB) UpdateInterviewerClusterRates(ctx context.Context, tenantID, id string, rates map[string]float64) error {
	if rates == nil {
		rates = map[string]float64{}
	}
	tag, err := db.pool.Exec(ctx,
		`UPDATE interviewers SET cluster_success_rates = $1, updated_at = now()
		 WHERE tenant_id = $2 AND id = $3`,
		rates, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: update cluster rates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: interviewer %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetInterviewerEmbedding stores a fresh embedding for an interviewer.
func (db *DB) SetInterviewerEmbedding(ctx context.Context, tenantID, id string, embedding pgvector.Vector) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE interviewers SET embedding = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		embedding, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: set interviewer embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: interviewer %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListInterviewerRows returns interviewers across all tenants with their
// stored embeddings. Used only by the reconciliation sweep.
func (db *DB) ListInterviewerRows(ctx context.Context, limit, offset int) ([]InterviewerRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+interviewerColumns+`, embedding FROM interviewers ORDER BY tenant_id, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list interviewer rows: %w", err)
	}
	defer rows.Close()

	var out []InterviewerRow
	for rows.Next() {
		var r InterviewerRow
		if err := rows.Scan(
			&r.Interviewer.ID, &r.Interviewer.TenantID, &r.Interviewer.Name, &r.Interviewer.Expertise,
			&r.Interviewer.SuccessRate, &r.Interviewer.ClusterSuccessRates, &r.Interviewer.InterviewHistory,
			&r.Interviewer.TeamID, &r.Interviewer.CreatedAt, &r.Interviewer.UpdatedAt,
			&r.Embedding,
		); err != nil {
			return nil, fmt.Errorf("storage: scan interviewer row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
