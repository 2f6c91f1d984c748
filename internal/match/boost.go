package match

import "github.com/ashita-ai/suisen/internal/model"

// ArxivBoost scores a candidate's research signal on [0,1]. The boost
// is additive: 0.3 for any research identity (papers, arXiv author id,
// ORCID), a tiered amount for publication volume, 0.2 for listed
// contributions, 0.1 for named research areas, capped at 1.
func ArxivBoost(c *model.Candidate) float64 {
	var boost float64
	if c.HasResearchSignal() {
		boost += 0.3
	}
	switch n := c.PaperCount(); {
	case n >= 20:
		boost += 0.4
	case n >= 10:
		boost += 0.3
	case n >= 5:
		boost += 0.2
	case n >= 1:
		boost += 0.1
	}
	if len(c.ResearchContributions) > 0 {
		boost += 0.2
	}
	if len(c.ResearchAreas) > 0 {
		boost += 0.1
	}
	if boost > 1 {
		boost = 1
	}
	return boost
}
