package graph

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

// TeamPatch is a merge patch for a team. MemberIDs is not patchable:
// membership changes go through LinkInterviewerToTeam so the link stays
// symmetric with interviewer.team_id.
type TeamPatch struct {
	Name          *string  `json:"name,omitempty"`
	Domain        *string  `json:"domain,omitempty"`
	Needs         []string `json:"needs,omitempty"`
	Expertise     []string `json:"expertise,omitempty"`
	OpenPositions []string `json:"open_positions,omitempty"`
}

func applyTeamPatch(t *model.Team, p *TeamPatch) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Domain != nil {
		t.Domain = *p.Domain
	}
	if p.Needs != nil {
		t.Needs = append([]string(nil), p.Needs...)
	}
	if p.Expertise != nil {
		t.Expertise = append([]string(nil), p.Expertise...)
	}
	if p.OpenPositions != nil {
		t.OpenPositions = dedupe(p.OpenPositions)
	}
}

// dedupe removes duplicate ids preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// AddTeam writes the relational row and indexes the team vector.
// Repeating the call with the same id leaves the existing point in
// place.
func (g *Graph) AddTeam(ctx context.Context, t *model.Team) (*model.Team, error) {
	const op = "graph.AddTeam"
	if t == nil {
		return nil, model.Validation(op, "team is required")
	}
	if t.ID == "" {
		return nil, model.Validation(op, "id is required")
	}
	if t.TenantID == "" {
		return nil, model.Validation(op, "tenant id is required")
	}
	if t.Name == "" {
		return nil, model.Validation(op, "name is required")
	}

	stored := *t
	stored.MemberIDs = dedupe(stored.MemberIDs)
	stored.MemberCount = len(stored.MemberIDs)
	stored.OpenPositions = dedupe(stored.OpenPositions)

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.TeamText(&stored))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertTeam(ctx, stored, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassTeam, saved.ID, saved.TenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, teamEntityPoint(&saved, vec.Slice()), false)
	return &saved, nil
}

// GetTeam returns a team from the relational store.
func (g *Graph) GetTeam(ctx context.Context, tenantID, id string) (*model.Team, error) {
	t, err := g.db.GetTeam(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr("graph.GetTeam", err)
	}
	return &t, nil
}

// UpdateTeam merges the patch into the stored team, re-embeds, and
// replaces both the relational row and the index point.
func (g *Graph) UpdateTeam(ctx context.Context, tenantID, id string, patch *TeamPatch) (*model.Team, error) {
	const op = "graph.UpdateTeam"
	if patch == nil {
		return nil, model.Validation(op, "patch is required")
	}

	cur, err := g.db.GetTeam(ctx, tenantID, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	applyTeamPatch(&cur, patch)
	cur.MemberCount = len(cur.MemberIDs)

	var embedded *pgvector.Vector
	vec, embErr := g.embed.Embed(ctx, embedding.TeamText(&cur))
	if embErr == nil {
		embedded = &vec
	}

	saved, err := g.db.UpsertTeam(ctx, cur, embedded)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if embErr != nil {
		g.degrade(ctx, op, model.ClassTeam, id, tenantID, embErr)
		return &saved, nil
	}
	g.pushPoint(ctx, op, teamEntityPoint(&saved, vec.Slice()), true)
	return &saved, nil
}

// ListTeams returns one page of the tenant's teams.
func (g *Graph) ListTeams(ctx context.Context, tenantID string, limit, offset int) ([]model.Team, error) {
	teams, err := g.db.ListTeams(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, storageErr("graph.ListTeams", err)
	}
	return teams, nil
}

// LinkInterviewerToTeam links both sides of the membership relation in
// one transaction, then refreshes both index points. Idempotent:
// relinking an existing member changes nothing.
func (g *Graph) LinkInterviewerToTeam(ctx context.Context, tenantID, interviewerID, teamID string) (*model.Team, *model.Interviewer, error) {
	const op = "graph.LinkInterviewerToTeam"
	team, iv, err := g.db.LinkInterviewerToTeam(ctx, tenantID, interviewerID, teamID)
	if err != nil {
		return nil, nil, storageErr(op, err)
	}

	// Re-embed both sides so index payloads pick up the new membership.
	if p, err := g.teamPoint(ctx, &team, nil); err != nil {
		g.degrade(ctx, op, model.ClassTeam, team.ID, tenantID, err)
	} else {
		g.pushPoint(ctx, op, p, true)
	}
	if p, err := g.interviewerPoint(ctx, &iv, nil); err != nil {
		g.degrade(ctx, op, model.ClassInterviewer, iv.ID, tenantID, err)
	} else {
		g.pushPoint(ctx, op, p, true)
	}
	return &team, &iv, nil
}

// TeamMembers returns the interviewers linked to the team.
func (g *Graph) TeamMembers(ctx context.Context, tenantID, teamID string) ([]model.Interviewer, error) {
	const op = "graph.TeamMembers"
	if _, err := g.db.GetTeam(ctx, tenantID, teamID); err != nil {
		return nil, storageErr(op, err)
	}
	members, err := g.db.ListInterviewersByTeam(ctx, tenantID, teamID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return members, nil
}

// TeamPositions returns the team's open positions in list order.
func (g *Graph) TeamPositions(ctx context.Context, tenantID, teamID string) ([]model.Position, error) {
	const op = "graph.TeamPositions"
	team, err := g.db.GetTeam(ctx, tenantID, teamID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	positions, err := g.db.ListPositionsByIDs(ctx, tenantID, team.OpenPositions)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return positions, nil
}

func teamEntityPoint(t *model.Team, vector []float32) search.EntityPoint {
	return search.EntityPoint{
		Class:     model.ClassTeam,
		ProfileID: t.ID,
		TenantID:  t.TenantID,
		Vector:    vector,
		Metadata:  teamMetadata(t),
	}
}
