package graph

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

// InterviewerPatch is a merge patch for an interviewer. TeamID is not
// patchable (LinkInterviewerToTeam owns it) and neither is
// ClusterSuccessRates (rate recomputation owns it).
type InterviewerPatch struct {
	Name             *string                 `json:"name,omitempty"`
	Expertise        []string                `json:"expertise,omitempty"`
	SuccessRate      *float64                `json:"success_rate,omitempty"`
	InterviewHistory []model.InterviewRecord `json:"interview_history,omitempty"`
}

func applyInterviewerPatch(iv *model.Interviewer, p *InterviewerPatch) {
	if p.Name != nil {
		iv.Name = *p.Name
	}
	if p.Expertise != nil {
		iv.Expertise = append([]string(nil), p.Expertise...)
	}
	if p.SuccessRate != nil {
		iv.SuccessRate = *p.SuccessRate
	}
	if p.InterviewHistory != nil {
		iv.InterviewHistory = append([]model.InterviewRecord(nil), p.InterviewHistory...)
	}
}

func validateRate(op, field string, rate float64) error {
	if rate < 0 || rate > 1 {
		return model.Validation(op, "%s must be in [0, 1], got %v", field, rate)
	}
	return nil
}

// AddInterviewer writes the relational row and indexes the interviewer
// vector.
func (g *Graph) AddInterviewer(ctx context.Context, iv *model.Interviewer) (*model.Interviewer, error) {
	const op = "graph.AddInterviewer"
	if iv == nil {
		return nil, model.Validation(op, "interviewer is required")
	}
	if iv.ID == "" {
		return nil, model.Validation(op, "id is required")
	}
	if iv.TenantID == "" {
		return nil, model.Validation(op, "tenant id is required")
	}
	if err := validateRate(op, "success_rate", iv.SuccessRate); err != nil {
		return nil, err
	}
	for label, rate := range iv.ClusterSuccessRates {
		if err := validateRate(op, "cluster_success_rates["+label+"]", rate); err != nil {
			return nil, err
		}
	}

	stored := *iv

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.InterviewerText(&stored))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertInterviewer(ctx, stored, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassInterviewer, saved.ID, saved.TenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, interviewerEntityPoint(&saved, vec.Slice()), false)
	return &saved, nil
}

// GetInterviewer returns an interviewer from the relational store.
func (g *Graph) GetInterviewer(ctx context.Context, tenantID, id string) (*model.Interviewer, error) {
	iv, err := g.db.GetInterviewer(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr("graph.GetInterviewer", err)
	}
	return &iv, nil
}

// UpdateInterviewer merges the patch, re-embeds, and replaces both the
// relational row and the index point.
func (g *Graph) UpdateInterviewer(ctx context.Context, tenantID, id string, patch *InterviewerPatch) (*model.Interviewer, error) {
	const op = "graph.UpdateInterviewer"
	if patch == nil {
		return nil, model.Validation(op, "patch is required")
	}
	if patch.SuccessRate != nil {
		if err := validateRate(op, "success_rate", *patch.SuccessRate); err != nil {
			return nil, err
		}
	}

	cur, err := g.db.GetInterviewer(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	applyInterviewerPatch(&cur, patch)

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.InterviewerText(&cur))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertInterviewer(ctx, cur, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassInterviewer, id, tenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, interviewerEntityPoint(&saved, vec.Slice()), true)
	return &saved, nil
}

// ListInterviewers returns one page of the tenant's interviewers.
func (g *Graph) ListInterviewers(ctx context.Context, tenantID string, limit, offset int) ([]model.Interviewer, error) {
	ivs, err := g.db.ListInterviewers(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, storageErr("graph.ListInterviewers", err)
	}
	return ivs, nil
}

// SetInterviewerClusterRates rewrites the per-cluster success rates
// after a recomputation run. Rates do not participate in the embedding,
// so no vector write happens here.
func (g *Graph) SetInterviewerClusterRates(ctx context.Context, tenantID, id string, rates map[string]float64) error {
	const op = "graph.SetInterviewerClusterRates"
	for label, rate := range rates {
		if err := validateRate(op, "cluster_success_rates["+label+"]", rate); err != nil {
			return err
		}
	}
	if err := g.db.UpdateInterviewerClusterRates(ctx, tenantID, id, rates); err != nil {
		return storageErr(op, err)
	}
	return nil
}

func interviewerEntityPoint(iv *model.Interviewer, vector []float32) search.EntityPoint {
	return search.EntityPoint{
		Class:     model.ClassInterviewer,
		ProfileID: iv.ID,
		TenantID:  iv.TenantID,
		Vector:    vector,
		Metadata:  interviewerMetadata(iv),
	}
}
