package mcp

import (
	"github.com/ashita-ai/suisen/internal/model"
)

const maxCompactHistory = 3

// compactCandidate returns a minimal representation of a candidate for
// MCP responses. Drops raw stat blobs (GithubStats, XAnalytics,
// PhoneScreenResults) and external identifiers that copilots don't act
// on; keeps the fields that drive sourcing conversations.
func compactCandidate(c *model.Candidate) map[string]any {
	m := map[string]any{
		"id":               c.ID,
		"name":             c.Name,
		"skills":           c.Skills,
		"domains":          c.Domains,
		"experience_years": c.ExperienceYears,
	}
	if c.ExpertiseLevel != "" {
		m["expertise_level"] = c.ExpertiseLevel
	}
	if len(c.Papers) > 0 {
		m["papers"] = len(c.Papers)
	}
	if c.AbilityCluster != nil {
		m["ability_cluster"] = *c.AbilityCluster
	}
	if n := len(c.FeedbackHistory); n > 0 {
		recent := c.FeedbackHistory
		if n > maxCompactHistory {
			recent = recent[n-maxCompactHistory:]
		}
		types := make([]string, 0, len(recent))
		for _, rec := range recent {
			types = append(types, string(rec.FeedbackType))
		}
		m["feedback_count"] = n
		m["recent_feedback"] = types
	}
	return m
}

// compactHit pairs a compacted candidate with its similarity score.
func compactHit(h model.CandidateHit) map[string]any {
	m := compactCandidate(h.Candidate)
	if h.SimilarityScore != nil {
		m["similarity_score"] = *h.SimilarityScore
	}
	return m
}
