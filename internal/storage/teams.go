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

const teamColumns = `id, tenant_id, name, domain, needs, expertise, member_ids, member_count, open_positions, created_at, updated_at`

// TeamRow pairs a team with its stored embedding for reconciliation sweeps.
type TeamRow struct {
	Team      model.Team
	Embedding *pgvector.Vector
}

// UpsertTeam inserts or replaces a team row keyed by (tenant_id, id).
// member_count is always recomputed from member_ids. Repeating the call
// with identical data is a no-op apart from updated_at.
func (db *DB) UpsertTeam(ctx context.Context, team model.Team, embedding *pgvector.Vector) (model.Team, error) {
	now := time.Now().UTC()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = now
	}
	team.UpdatedAt = now
	if team.Needs == nil {
		team.Needs = []string{}
	}
	if team.Expertise == nil {
		team.Expertise = []string{}
	}
	if team.MemberIDs == nil {
		team.MemberIDs = []string{}
	}
	if team.OpenPositions == nil {
		team.OpenPositions = []string{}
	}
	team.MemberCount = len(team.MemberIDs)

	_, err := db.pool.Exec(ctx,
		`INSERT INTO teams (id, tenant_id, name, domain, needs, expertise, member_ids, member_count, open_positions, embedding, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (tenant_id, id) DO UPDATE SET
		     name = EXCLUDED.name,
		     domain = EXCLUDED.domain,
		     needs = EXCLUDED.needs,
		     expertise = EXCLUDED.expertise,
		     member_ids = EXCLUDED.member_ids,
		     member_count = EXCLUDED.member_count,
		     open_positions = EXCLUDED.open_positions,
		     embedding = COALESCE(EXCLUDED.embedding, teams.embedding),
		     updated_at = EXCLUDED.updated_at`,
		team.ID, team.TenantID, team.Name, team.Domain, team.Needs, team.Expertise,
		team.MemberIDs, team.MemberCount, team.OpenPositions, embedding,
		team.CreatedAt, team.UpdatedAt,
	)
	if err != nil {
		return model.Team{}, fmt.Errorf("storage: upsert team: %w", err)
	}
	return team, nil
}

// GetTeam retrieves a team by id within a tenant.
func (db *DB) GetTeam(ctx context.Context, tenantID, id string) (model.Team, error) {
	var t model.Team
	err := db.pool.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&t.ID, &t.TenantID, &t.Name, &t.Domain, &t.Needs, &t.Expertise,
		&t.MemberIDs, &t.MemberCount, &t.OpenPositions, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Team{}, fmt.Errorf("storage: team %s: %w", id, ErrNotFound)
		}
		return model.Team{}, fmt.Errorf("storage: get team: %w", err)
	}
	return t, nil
}

// GetTeamRow retrieves a team with its stored embedding. Used by the
// reconciler so a repair does not depend on the embedding backend.
func (db *DB) GetTeamRow(ctx context.Context, tenantID, id string) (TeamRow, error) {
	var r TeamRow
	err := db.pool.QueryRow(ctx,
		`SELECT `+teamColumns+`, embedding FROM teams WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(
		&r.Team.ID, &r.Team.TenantID, &r.Team.Name, &r.Team.Domain, &r.Team.Needs, &r.Team.Expertise,
		&r.Team.MemberIDs, &r.Team.MemberCount, &r.Team.OpenPositions, &r.Team.CreatedAt, &r.Team.UpdatedAt,
		&r.Embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return TeamRow{}, fmt.Errorf("storage: team %s: %w", id, ErrNotFound)
		}
		return TeamRow{}, fmt.Errorf("storage: get team row: %w", err)
	}
	return r, nil
}

// ListTeams returns teams within a tenant ordered by creation time.
// limit is clamped to [1, 1000] with a default of 200.
func (db *DB) ListTeams(ctx context.Context, tenantID string, limit, offset int) ([]model.Team, error) {
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
		`SELECT `+teamColumns+` FROM teams WHERE tenant_id = $1 ORDER BY created_at ASC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(
			&t.ID, &t.TenantID, &t.Name, &t.Domain, &t.Needs, &t.Expertise,
			&t.MemberIDs, &t.MemberCount, &t.OpenPositions, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// SetTeamEmbedding stores a fresh embedding for a team.
func (db *DB) SetTeamEmbedding(ctx context.Context, tenantID, id string, embedding pgvector.Vector) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE teams SET embedding = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		embedding, tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("storage: set team embedding: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: team %s: %w", id, ErrNotFound)
	}
	return nil
}

// LinkInterviewerToTeam sets the interviewer's team and adds the
// interviewer to the team's member list in one transaction. Idempotent:
// repeating the call converges on the same rows. member_count is kept
// equal to the member list length. Concurrent links can deadlock on the
// FOR UPDATE locks, so transient conflicts are retried. Returns both
// updated entities.
func (db *DB) LinkInterviewerToTeam(ctx context.Context, tenantID, interviewerID, teamID string) (model.Team, model.Interviewer, error) {
	var (
		t model.Team
		i model.Interviewer
	)
	err := WithRetry(ctx, 3, 10*time.Millisecond, func() error {
		var err error
		t, i, err = db.linkInterviewerToTeam(ctx, tenantID, interviewerID, teamID)
		return err
	})
	return t, i, err
}

func (db *DB) linkInterviewerToTeam(ctx context.Context, tenantID, interviewerID, teamID string) (model.Team, model.Interviewer, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: begin link tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var t model.Team
	err = tx.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, teamID,
	).Scan(
		&t.ID, &t.TenantID, &t.Name, &t.Domain, &t.Needs, &t.Expertise,
		&t.MemberIDs, &t.MemberCount, &t.OpenPositions, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: team %s: %w", teamID, ErrNotFound)
		}
		return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: lock team: %w", err)
	}

	i, err := scanInterviewerRow(tx.QueryRow(ctx,
		`SELECT `+interviewerColumns+` FROM interviewers WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		tenantID, interviewerID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: interviewer %s: %w", interviewerID, ErrNotFound)
		}
		return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: lock interviewer: %w", err)
	}

	if !t.HasMember(interviewerID) {
		t.MemberIDs = append(t.MemberIDs, interviewerID)
		t.MemberCount = len(t.MemberIDs)
		if _, err := tx.Exec(ctx,
			`UPDATE teams SET member_ids = $1, member_count = $2, updated_at = now()
			 WHERE tenant_id = $3 AND id = $4`,
			t.MemberIDs, t.MemberCount, tenantID, teamID,
		); err != nil {
			return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: update team members: %w", err)
		}
	}

	if i.TeamID == nil || *i.TeamID != teamID {
		i.TeamID = &teamID
		if _, err := tx.Exec(ctx,
			`UPDATE interviewers SET team_id = $1, updated_at = now()
			 WHERE tenant_id = $2 AND id = $3`,
			teamID, tenantID, interviewerID,
		); err != nil {
			return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: update interviewer team: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Team{}, model.Interviewer{}, fmt.Errorf("storage: commit link tx: %w", err)
	}
	return t, i, nil
}

// ListTeamRows returns teams across all tenants with their stored
// embeddings. Used only by the reconciliation sweep.
func (db *DB) ListTeamRows(ctx context.Context, limit, offset int) ([]TeamRow, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+teamColumns+`, embedding FROM teams ORDER BY tenant_id, id LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list team rows: %w", err)
	}
	defer rows.Close()

	var out []TeamRow
	for rows.Next() {
		var r TeamRow
		if err := rows.Scan(
			&r.Team.ID, &r.Team.TenantID, &r.Team.Name, &r.Team.Domain, &r.Team.Needs, &r.Team.Expertise,
			&r.Team.MemberIDs, &r.Team.MemberCount, &r.Team.OpenPositions, &r.Team.CreatedAt, &r.Team.UpdatedAt,
			&r.Embedding,
		); err != nil {
			return nil, fmt.Errorf("storage: scan team row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
