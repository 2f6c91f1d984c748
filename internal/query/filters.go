package query

import (
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

// applyFilters keeps the candidates matching every present filter,
// preserving input order.
func applyFilters(cands []*model.Candidate, f *model.CandidateFilters) []*model.Candidate {
	if f == nil {
		return cands
	}
	out := make([]*model.Candidate, 0, len(cands))
	for _, c := range cands {
		if matches(c, f) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c *model.Candidate, f *model.CandidateFilters) bool {
	if f.Skills != nil && !matchSkills(c.Skills, f.Skills) {
		return false
	}
	if f.Domains != nil && !matchDomains(c.Domains, f.Domains) {
		return false
	}
	if f.ArxivPapers != nil && c.PaperCount() < f.ArxivPapers.Min {
		return false
	}
	if f.GithubStars != nil && c.GithubStars() < f.GithubStars.Min {
		return false
	}
	if f.ExperienceYears != nil && !inRange(c.ExperienceYears, f.ExperienceYears) {
		return false
	}
	if f.AbilityCluster != nil && c.ClusterLabel() != *f.AbilityCluster {
		return false
	}
	return true
}

func matchSkills(skills []string, f *model.SkillFilters) bool {
	for _, req := range f.Required {
		if !containsFold(skills, req) {
			return false
		}
	}
	if len(f.Optional) > 0 {
		hit := false
		for _, opt := range f.Optional {
			if containsFold(skills, opt) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	for _, ex := range f.Excluded {
		if containsFold(skills, ex) {
			return false
		}
	}
	return true
}

func matchDomains(domains []string, f *model.DomainFilters) bool {
	for _, req := range f.Required {
		if !containsFold(domains, req) {
			return false
		}
	}
	for _, ex := range f.Excluded {
		if containsFold(domains, ex) {
			return false
		}
	}
	return true
}

// containsFold reports whether needle appears as a case-insensitive
// substring of any value.
func containsFold(values []string, needle string) bool {
	needle = strings.ToLower(needle)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func inRange(years int, f *model.RangeFilter) bool {
	if f.Min != nil && years < *f.Min {
		return false
	}
	if f.Max != nil && years > *f.Max {
		return false
	}
	return true
}
