package talent

import (
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

// Position-fit weights. The skill weight is split 70/30 between
// required and optional coverage.
const (
	fitWeightSimilarity = 0.40
	fitWeightSkills     = 0.30
	fitWeightDomains    = 0.20
	fitWeightExperience = 0.10

	fitSkillRequired = 0.70
	fitSkillOptional = 0.30

	// fitPenalty applies when either the exceptional score or the fit
	// misses the FitGate.
	fitPenalty = 0.7
)

// positionFit scores how well the candidate fits the position,
// independent of how exceptional they are.
func positionFit(c *model.Candidate, p *model.Position, similarity float64) float64 {
	skills := fitSkillRequired*coverage(c.Skills, p.RequiredSkills) +
		fitSkillOptional*coverage(c.Skills, p.OptionalSkills)
	return fitWeightSimilarity*clip01(similarity) +
		fitWeightSkills*skills +
		fitWeightDomains*coverage(c.Domains, p.Domains) +
		fitWeightExperience*experienceAdjustment(c.ExpertiseLevel, p.ExperienceLevel)
}

// coverage is |have ∩ want| / |want| over normalized terms. An empty
// want list is fully covered: a position that names nothing constrains
// nothing.
func coverage(have, want []string) float64 {
	wantSet := normTerms(want)
	if len(wantSet) == 0 {
		return 1
	}
	haveSet := normTerms(have)
	hits := 0
	for term := range wantSet {
		if _, ok := haveSet[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(wantSet))
}

func normTerms(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// experienceAdjustment compares seniority on the ordinal scale: full
// credit at or above the position's level, half credit one step below,
// none further down. A position without a level constrains nothing.
func experienceAdjustment(cand, pos model.ExpertiseLevel) float64 {
	if pos == "" {
		return 1
	}
	pr, ok := pos.Rank()
	if !ok {
		return 1
	}
	cr, ok := cand.Rank()
	if !ok {
		return 0
	}
	switch d := cr - pr; {
	case d >= 0:
		return 1
	case d == -1:
		return 0.5
	default:
		return 0
	}
}

// cosine of two unit vectors, clipped to [0,1].
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return clip01(sum)
}
