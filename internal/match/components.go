package match

import "strings"

// Component names used in score breakdowns and reasoning.
const (
	ComponentSimilarity     = "similarity"
	ComponentNeedsMatch     = "needs_match"
	ComponentExpertiseMatch = "expertise_match"
	ComponentArxivBoost     = "arxiv_boost"
	ComponentCapacity       = "capacity_factor"
	ComponentSuccessRate    = "success_rate"
	ComponentClusterSuccess = "cluster_success"
)

// Team composite weights.
const (
	teamWeightSimilarity = 0.30
	teamWeightNeeds      = 0.25
	teamWeightExpertise  = 0.15
	teamWeightArxiv      = 0.25
	teamWeightCapacity   = 0.05
)

// Interviewer composite weights.
const (
	ivWeightSimilarity     = 0.30
	ivWeightExpertise      = 0.20
	ivWeightArxiv          = 0.25
	ivWeightSuccessRate    = 0.15
	ivWeightClusterSuccess = 0.10
)

// defaultClusterSuccess stands in when an interviewer has no recorded
// rate for the candidate's cluster.
const defaultClusterSuccess = 0.5

// overlapRatio is |have ∩ want| / |want| over normalized terms.
// An empty want list scores 0: absence of requirements is no evidence
// of fit.
func overlapRatio(have, want []string) float64 {
	wantSet := normSet(want)
	if len(wantSet) == 0 {
		return 0
	}
	haveSet := normSet(have)
	hits := 0
	for term := range wantSet {
		if _, ok := haveSet[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(wantSet))
}

func normSet(terms []string) map[string]struct{} {
	out := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out[t] = struct{}{}
		}
	}
	return out
}

// capacityFactor rewards teams with open positions: |open|/3 capped at
// 1, neutral 0.5 when the team lists none.
func capacityFactor(openPositions []string) float64 {
	if len(openPositions) == 0 {
		return 0.5
	}
	f := float64(len(openPositions)) / 3
	if f > 1 {
		return 1
	}
	return f
}

// dot multiplies two unit vectors; with unit-norm inputs this is cosine
// similarity.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
