package graph

import (
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
)

// candidateMetadata builds the candidate payload blob. It carries the
// full record so Rehydrate can rebuild the memstore from the index, plus
// the scalar fields the query engine and matchers read off search hits.
func candidateMetadata(c *model.Candidate) (map[string]any, error) {
	record, err := search.EncodeRecord(c)
	if err != nil {
		return nil, model.Internal("graph.candidateMetadata", err)
	}
	meta := map[string]any{
		"record":           record,
		"name":             c.Name,
		"experience_years": c.ExperienceYears,
	}
	if c.AbilityCluster != nil {
		meta["ability_cluster"] = *c.AbilityCluster
	}
	return meta, nil
}

func teamMetadata(t *model.Team) map[string]any {
	return map[string]any{
		"name":         t.Name,
		"domain":       t.Domain,
		"member_count": t.MemberCount,
	}
}

func interviewerMetadata(iv *model.Interviewer) map[string]any {
	meta := map[string]any{
		"name":         iv.Name,
		"success_rate": iv.SuccessRate,
	}
	if iv.TeamID != nil {
		meta["team_id"] = *iv.TeamID
	}
	return meta
}

func positionMetadata(p *model.Position) map[string]any {
	return map[string]any{
		"title":            p.Title,
		"experience_level": string(p.ExperienceLevel),
	}
}
