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

const positionColumns = `id, tenant_id, title, must_haves, required_skills, optional_skills, domains, experience_level, selected_candidates, candidate_ids, created_at, updated_at`

// PositionRow pairs a position with its stored embedding for
// reconciliation sweeps.
type PositionRow struct {
	Position  model.Position
	Embedding *pgvector.Vector
}

func scanPositionRow(row pgx.Row) (model.Position, error) {
	var p model.Position
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Title, &p.MustHaves, &p.RequiredSkills,
		&p.OptionalSkills, &p.Domains, &p.ExperienceLevel,
		&p.SelectedCandidates, &p.CandidateIDs, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}

// UpsertPosition inserts or replaces a position row keyed by
// (tenant_id, id). candidate_ids is the frozen bandit arm snapshot and is
// preserved on conflict — once written it never changes through this path.
func (db *DB) UpsertPosition(ctx context.Context, p model.Position, embedding *pgvector.Vector) (model.Position, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.MustHaves == nil {
		p.MustHaves = []string{}
	}
	if p.RequiredSkills == nil {
		p.RequiredSkills = []string{}
	}
	if p.OptionalSkills == nil {
		p.OptionalSkills = []string{}
	}
	if p.Domains == nil {
		p.Domains = []string{}
	}
	if p.SelectedCandidates == nil {
		p.SelectedCandidates = []string{}
	}
	if p.CandidateIDs == nil {
		p.CandidateIDs = []string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO positions (id, tenant_id, title, must_haves, required_skills, optional_skills, domains, experience_level, selected_candidates, candidate_ids, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET
		     title = EXCLUDED.title,
		     must_haves = EXCLUDED.must_haves,
		     required_skills = EXCLUDED.required_skills,
		     optional_skills = EXCLUDED.optional_skills,
		     domains = EXCLUDED.domains,
		     experience_level = EXCLUDED.experience_level,
		     selected_candidates = EXCLUDED.selected_candidates,
		     candidate_ids = CASE WHEN cardinality(positions.candidate_ids) > 0 THEN positions.candidate_ids ELSE EXCLUDED.candidate_ids END,
		     embedding = COALESCE(EXCLUDED.embedding, positions.embedding),
		     updated_at = EXCLUDED.updated_at`,
		p.ID, p.TenantID, p.Title, p.MustHaves, p.RequiredSkills, p.OptionalSkills,
		p.Domains, string(p.ExperienceLevel), p.SelectedCandidates, p.CandidateIDs,
		embedding, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return model.Position{}, fmt.Errorf("storage: upsert position: %w", err)
	}
	return p, nil
}

// GetPosition retrieves a position by id within a tenant.
func (db *DB) GetPosition(ctx context.Context, tenantID, id string) (model.Position, error) {
	p, err := scanPositionRow(db.pool.QueryRow(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Position{}, fmt.Errorf("storage: position %s: %w", id, ErrNotFound)
		}
		return model.Position{}, fmt.Errorf("storage: get position: %w", err)
	}
	return p, nil
}

// GetPositionRow retrieves a position together with its stored embedding.
// Used by the reconciler so a repair does not depend on the embedding backend.
func (db *DB) GetPositionRow(ctx context.Context, tenantID, id string) (PositionRow, error) {
	var r PositionRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+positionColumns+`, embedding FROM positions WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&r.Position.ID, &r.Position.TenantID, &r.Position.Title, &r.Position.MustHaves,
		&r.Position.RequiredSkills, &r.Position.OptionalSkills, &r.Position.Domains,
		&r.Position.ExperienceLevel, &r.Position.SelectedCandidates, &r.Position.CandidateIDs,
		&r.Position.CreatedAt, &r.Position.UpdatedAt,
		&r.Embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PositionRow{}, fmt.Errorf("storage: position %s: %w", id, ErrNotFound)
		}
		return PositionRow{}, fmt.Errorf("storage: get position row: %w", err)
	}
	return r, nil
}

// ListPositions returns positions within a tenant ordered by creation
// time. limit is clamped to [1, 1000] with a default of 200.
func (db *DB) ListPositions(ctx context.Context, tenantID string, limit, offset int) ([]model.Position, error) {
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
		`SELECT `+positionColumns+` FROM positions WHERE tenant_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list positions: %w", err)
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPositionsByIDs returns the positions with the given ids, preserving
// the input order. Used for a team's open_positions relationship reads.
func (db *DB) ListPositionsByIDs(ctx context.Context, tenantID string, ids []string) ([]model.Position, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+positionColumns+` FROM positions WHERE tenant_id = $1 AND id = ANY($2)`,
		tenantID, ids,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list positions by ids: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]model.Position, len(ids))
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan position: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]model.Position, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// FreezeCandidateIDs writes the bandit arm snapshot for a position if no
// snapshot exists yet. Returns the snapshot now on the row, which is the
// existing one when a concurrent caller won the race.
func (db *DB) FreezeCandidateIDs(ctx context.Context, tenantID, id string, candidateIDs []string) ([]string, error) {
	if candidateIDs == nil {
		candidateIDs = []string{}
	}
	var frozen []string
	err := db.pool.QueryRow(ctx,
		`UPDATE positions
		 SET candidate_ids = CASE WHEN cardinality(candidate_ids) > 0 THEN candidate_ids ELSE $1 END,
		     updated_at = now()
		 WHERE tenant_id = $2 AND id = $3
		 RETURNING candidate_ids`,
		candidateIDs, tenantID, id,
	).Scan(&frozen)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage: position %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: freeze candidate ids: %w", err)
	}
	return frozen, nil
}

// SetPositionEmbedding stores a fresh embedding for a position.
func (db *DB) SetPositionEmbedding(ctx context.Context, tenantID, id string, embedding pgvector.Vector) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE positions SET embedding = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		embedding, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: set position embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: position %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPositionRows returns positions across all tenants with their stored
// embeddings. Used only by the reconciliation sweep.
func (db *DB) ListPositionRows(ctx context.Context, limit, offset int) ([]PositionRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+positionColumns+`, embedding FROM positions ORDER BY tenant_id, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list position rows: %w", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		if err := rows.Scan(
			&r.Position.ID, &r.Position.TenantID, &r.Position.Title, &r.Position.MustHaves,
			&r.Position.RequiredSkills, &r.Position.OptionalSkills, &r.Position.Domains,
			&r.Position.ExperienceLevel, &r.Position.SelectedCandidates, &r.Position.CandidateIDs,
			&r.Position.CreatedAt, &r.Position.UpdatedAt,
			&r.Embedding,
		); err != nil {
			return nil, fmt.Errorf("storage: scan position row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
