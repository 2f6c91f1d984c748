package graph

import (
	"context"
	"time"

	"github.com/ashita-ai/suisen/internal/model"
)

// CandidatePatch is a merge patch for a candidate. Nil fields are left
// unchanged; non-nil slices replace the stored value wholesale, so an
// empty non-nil slice clears. AbilityCluster and FeedbackHistory are
// not patchable: the clusterer and the feedback loop own them.
type CandidatePatch struct {
	Name                  *string                   `json:"name,omitempty"`
	Skills                []string                  `json:"skills,omitempty"`
	Domains               []string                  `json:"domains,omitempty"`
	ExperienceYears       *int                      `json:"experience_years,omitempty"`
	ExpertiseLevel        *model.ExpertiseLevel     `json:"expertise_level,omitempty"`
	Papers                []model.Paper             `json:"papers,omitempty"`
	ArxivAuthorID         *string                   `json:"arxiv_author_id,omitempty"`
	OrcidID               *string                   `json:"orcid_id,omitempty"`
	ResearchContributions []string                  `json:"research_contributions,omitempty"`
	ResearchAreas         []string                  `json:"research_areas,omitempty"`
	GithubStats           *model.GithubStats        `json:"github_stats,omitempty"`
	XAnalytics            *model.XAnalytics         `json:"x_analytics,omitempty"`
	PhoneScreenResults    *model.PhoneScreenResults `json:"phone_screen_results,omitempty"`
}

func applyCandidatePatch(c *model.Candidate, p *CandidatePatch) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Skills != nil {
		c.Skills = append([]string(nil), p.Skills...)
	}
	if p.Domains != nil {
		c.Domains = append([]string(nil), p.Domains...)
	}
	if p.ExperienceYears != nil {
		c.ExperienceYears = *p.ExperienceYears
	}
	if p.ExpertiseLevel != nil {
		c.ExpertiseLevel = *p.ExpertiseLevel
	}
	if p.Papers != nil {
		c.Papers = append([]model.Paper(nil), p.Papers...)
	}
	if p.ArxivAuthorID != nil {
		c.ArxivAuthorID = *p.ArxivAuthorID
	}
	if p.OrcidID != nil {
		c.OrcidID = *p.OrcidID
	}
	if p.ResearchContributions != nil {
		c.ResearchContributions = append([]string(nil), p.ResearchContributions...)
	}
	if p.ResearchAreas != nil {
		c.ResearchAreas = append([]string(nil), p.ResearchAreas...)
	}
	if p.GithubStats != nil {
		gs := *p.GithubStats
		c.GithubStats = &gs
	}
	if p.XAnalytics != nil {
		xa := *p.XAnalytics
		c.XAnalytics = &xa
	}
	if p.PhoneScreenResults != nil {
		ps := *p.PhoneScreenResults
		c.PhoneScreenResults = &ps
	}
}

// AddCandidate stores a candidate and indexes its vector. Idempotent:
// adding an id that already exists in the tenant returns the stored
// record unchanged. The same id under another tenant is rejected, since
// point ids carry no tenant component.
func (g *Graph) AddCandidate(ctx context.Context, c *model.Candidate) (*model.Candidate, error) {
	const op = "graph.AddCandidate"
	if c == nil {
		return nil, model.Validation(op, "candidate is required")
	}
	if c.TenantID == "" {
		return nil, model.Validation(op, "tenant id is required")
	}
	if err := model.ValidateCandidate(c); err != nil {
		return nil, err
	}
	if owner, ok := g.cands.ExistsAnyTenant(c.ID); ok && owner != c.TenantID {
		return nil, model.TenantMismatch(op, "candidate %q belongs to another tenant", c.ID)
	}

	stored := c.Clone()
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	if stored.Skills == nil {
		stored.Skills = []string{}
	}
	if stored.Domains == nil {
		stored.Domains = []string{}
	}

	if existing, inserted := g.cands.Insert(stored); !inserted {
		g.logger.Debug("candidate already exists, returning stored record",
			"candidate_id", c.ID, "tenant_id", c.TenantID)
		return existing, nil
	}

	point, err := g.candidatePoint(ctx, stored)
	if err != nil {
		g.degrade(ctx, op, model.ClassCandidate, stored.ID, stored.TenantID, err)
		return stored, nil
	}
	g.pushPoint(ctx, op, point, false)
	return stored, nil
}

// GetCandidate returns a candidate from the in-memory store.
func (g *Graph) GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error) {
	const op = "graph.GetCandidate"
	if c, ok := g.cands.Get(tenantID, id); ok {
		return c, nil
	}
	if _, ok := g.cands.ExistsAnyTenant(id); ok {
		return nil, model.TenantMismatch(op, "candidate %q belongs to another tenant", id)
	}
	return nil, model.NotFound(op, "candidate %q does not exist", id)
}

// UpdateCandidate merges the patch into the stored candidate, re-embeds,
// and replaces the index point.
func (g *Graph) UpdateCandidate(ctx context.Context, tenantID, id string, patch *CandidatePatch) (*model.Candidate, error) {
	const op = "graph.UpdateCandidate"
	if patch == nil {
		return nil, model.Validation(op, "patch is required")
	}

	cur, err := g.GetCandidate(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	merged := cur.Clone()
	applyCandidatePatch(merged, patch)
	if err := model.ValidateCandidate(merged); err != nil {
		return nil, err
	}

	updated, ok := g.cands.Update(tenantID, id, func(c *model.Candidate) {
		applyCandidatePatch(c, patch)
		c.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return nil, model.NotFound(op, "candidate %q does not exist", id)
	}

	point, err := g.candidatePoint(ctx, updated)
	if err != nil {
		g.degrade(ctx, op, model.ClassCandidate, id, tenantID, err)
		return updated, nil
	}
	g.pushPoint(ctx, op, point, true)
	return updated, nil
}

// DeleteCandidate tombstones a candidate: removes it from the memstore
// and deletes its index point. Entities are otherwise never deleted.
func (g *Graph) DeleteCandidate(ctx context.Context, tenantID, id string) error {
	const op = "graph.DeleteCandidate"
	if !g.cands.Delete(tenantID, id) {
		if _, ok := g.cands.ExistsAnyTenant(id); ok {
			return model.TenantMismatch(op, "candidate %q belongs to another tenant", id)
		}
		return model.NotFound(op, "candidate %q does not exist", id)
	}
	if err := g.index.Delete(ctx, model.ClassCandidate, id); err != nil && !model.IsNotFound(err) {
		// The reconciler resolves a queued repair for a missing entity
		// by removing the stale point.
		g.degrade(ctx, op, model.ClassCandidate, id, tenantID, err)
	}
	return nil
}

// ListCandidates returns one page of the tenant's candidates in
// insertion order.
func (g *Graph) ListCandidates(ctx context.Context, tenantID string, limit, offset int) ([]*model.Candidate, error) {
	return g.cands.List(tenantID, limit, offset), nil
}

// Candidates returns every candidate in the tenant in insertion order.
// The clusterer and the query engine operate on the full set.
func (g *Graph) Candidates(ctx context.Context, tenantID string) ([]*model.Candidate, error) {
	return g.cands.All(tenantID), nil
}

// SetCandidateCluster writes the cluster label assigned by a completed
// clustering run and refreshes the index payload so the label survives
// rehydration. Only the clusterer calls this; unassigned candidates
// keep a nil label.
func (g *Graph) SetCandidateCluster(ctx context.Context, tenantID, id, label string) error {
	const op = "graph.SetCandidateCluster"
	updated, ok := g.cands.Update(tenantID, id, func(c *model.Candidate) {
		c.AbilityCluster = &label
		c.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return model.NotFound(op, "candidate %q does not exist", id)
	}

	point, err := g.candidatePoint(ctx, updated)
	if err != nil {
		g.degrade(ctx, op, model.ClassCandidate, id, tenantID, err)
		return nil
	}
	g.pushPoint(ctx, op, point, true)
	return nil
}

// AppendFeedback appends one record to the candidate's feedback history
// and refreshes the index payload. Appends for the same candidate are
// serialized by the store's write lock.
func (g *Graph) AppendFeedback(ctx context.Context, tenantID, id string, rec model.FeedbackRecord) (*model.Candidate, error) {
	const op = "graph.AppendFeedback"
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	updated, ok := g.cands.Update(tenantID, id, func(c *model.Candidate) {
		c.FeedbackHistory = append(c.FeedbackHistory, rec)
		c.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return nil, model.NotFound(op, "candidate %q does not exist", id)
	}

	point, err := g.candidatePoint(ctx, updated)
	if err != nil {
		g.degrade(ctx, op, model.ClassCandidate, id, tenantID, err)
		return updated, nil
	}
	g.pushPoint(ctx, op, point, true)
	return updated, nil
}
