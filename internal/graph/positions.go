package graph

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

// PositionPatch is a merge patch for a position. CandidateIDs is not
// patchable: it is the frozen bandit arm snapshot, written once by
// FreezeArms. SelectedCandidates may change freely; a live bandit keeps
// ranking against the snapshot it froze.
type PositionPatch struct {
	Title              *string               `json:"title,omitempty"`
	MustHaves          []string              `json:"must_haves,omitempty"`
	RequiredSkills     []string              `json:"required_skills,omitempty"`
	OptionalSkills     []string              `json:"optional_skills,omitempty"`
	Domains            []string              `json:"domains,omitempty"`
	ExperienceLevel    *model.ExpertiseLevel `json:"experience_level,omitempty"`
	SelectedCandidates []string              `json:"selected_candidates,omitempty"`
}

func applyPositionPatch(p *model.Position, patch *PositionPatch) {
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.MustHaves != nil {
		p.MustHaves = append([]string(nil), patch.MustHaves...)
	}
	if patch.RequiredSkills != nil {
		p.RequiredSkills = append([]string(nil), patch.RequiredSkills...)
	}
	if patch.OptionalSkills != nil {
		p.OptionalSkills = append([]string(nil), patch.OptionalSkills...)
	}
	if patch.Domains != nil {
		p.Domains = append([]string(nil), patch.Domains...)
	}
	if patch.ExperienceLevel != nil {
		p.ExperienceLevel = *patch.ExperienceLevel
	}
	if patch.SelectedCandidates != nil {
		p.SelectedCandidates = dedupe(patch.SelectedCandidates)
	}
}

// AddPosition writes the relational row and indexes the position
// vector. selected_candidates carries the arm order; candidate_ids is
// accepted as a legacy alias and freezes on first non-empty write.
func (g *Graph) AddPosition(ctx context.Context, p *model.Position) (*model.Position, error) {
	const op = "graph.AddPosition"
	if p == nil {
		return nil, model.Validation(op, "position is required")
	}
	if p.ID == "" {
		return nil, model.Validation(op, "id is required")
	}
	if p.TenantID == "" {
		return nil, model.Validation(op, "tenant id is required")
	}
	if p.Title == "" {
		return nil, model.Validation(op, "title is required")
	}

	stored := *p
	stored.SelectedCandidates = dedupe(stored.SelectedCandidates)
	stored.CandidateIDs = dedupe(stored.CandidateIDs)

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.PositionText(&stored))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertPosition(ctx, stored, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassPosition, saved.ID, saved.TenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, positionEntityPoint(&saved, vec.Slice()), false)
	return &saved, nil
}

// GetPosition returns a position from the relational store.
func (g *Graph) GetPosition(ctx context.Context, tenantID, id string) (*model.Position, error) {
	p, err := g.db.GetPosition(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr("graph.GetPosition", err)
	}
	return &p, nil
}

// UpdatePosition merges the patch, re-embeds, and replaces both the
// relational row and the index point.
func (g *Graph) UpdatePosition(ctx context.Context, tenantID, id string, patch *PositionPatch) (*model.Position, error) {
	const op = "graph.UpdatePosition"
	if patch == nil {
		return nil, model.Validation(op, "patch is required")
	}

	cur, err := g.db.GetPosition(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	applyPositionPatch(&cur, patch)

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.PositionText(&cur))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertPosition(ctx, cur, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassPosition, id, tenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, positionEntityPoint(&saved, vec.Slice()), true)
	return &saved, nil
}

// ListPositions returns one page of the tenant's positions.
func (g *Graph) ListPositions(ctx context.Context, tenantID string, limit, offset int) ([]model.Position, error) {
	ps, err := g.db.ListPositions(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, storageErr("graph.ListPositions", err)
	}
	return ps, nil
}

// FreezeArms persists the bandit arm snapshot for a position if none
// exists yet and returns the snapshot now on the row. Concurrent
// freezes converge on whichever list landed first.
func (g *Graph) FreezeArms(ctx context.Context, tenantID, positionID string, candidateIDs []string) ([]string, error) {
	frozen, err := g.db.FreezeCandidateIDs(ctx, tenantID, positionID, dedupe(candidateIDs))
	if err != nil {
		return nil, storageErr("graph.FreezeArms", err)
	}
	return frozen, nil
}

func positionEntityPoint(p *model.Position, vector []float32) search.EntityPoint {
	return search.EntityPoint{
		Class:     model.ClassPosition,
		ProfileID: p.ID,
		TenantID:  p.TenantID,
		Vector:    vector,
		Metadata:  positionMetadata(p),
	}
}
