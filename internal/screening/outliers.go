package screening

import (
	"fmt"
	"math"
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

const (
	// seniorYears treats a profile as senior for the sparse-skills rule
	// even without an expertise level.
	seniorYears = 8
	// sparseSkills flags seniors listing fewer skills than this.
	sparseSkills = 3
	// longSkillList flags lists at or beyond this size that match every
	// must-have.
	longSkillList = 15
	// experienceToleranceYears is the claimed-vs-stored gap beyond
	// which the screen fails outright.
	experienceToleranceYears = 2
	// claimedSkillOverlapFloor is the share of claimed skills that must
	// appear in the stored profile.
	claimedSkillOverlapFloor = 0.5
)

// detectOutliers inspects the candidate, position, and extracted info
// for suspicious patterns. critical is non-empty only for a claimed
// experience gap beyond tolerance, which fails the screen immediately;
// everything else becomes a flag that costs confidence later.
func detectOutliers(cand *model.Candidate, pos *model.Position, info *model.ExtractedInfo) (flags []string, critical string) {
	if seniorProfile(cand) && len(cand.Skills) < sparseSkills {
		flags = append(flags, "senior profile with a sparse skill list")
	}
	if d := unsupportedDomain(cand); d != "" {
		flags = append(flags, fmt.Sprintf("domain %q has no supporting skills", d))
	}
	// Must-haves already all matched by the time outliers run.
	if len(cand.Skills) >= longSkillList && len(pos.MustHaves) > 0 {
		flags = append(flags, "unusually broad skill list matches every must-have")
	}
	if info == nil {
		return flags, ""
	}
	if y := info.ClaimedExperienceYears; y != nil {
		if math.Abs(*y-float64(cand.ExperienceYears)) > experienceToleranceYears {
			return flags, fmt.Sprintf("claimed %.0f years of experience but the profile records %d", *y, cand.ExperienceYears)
		}
	}
	if len(info.ClaimedSkills) > 0 && claimedOverlap(info.ClaimedSkills, cand.Skills) < claimedSkillOverlapFloor {
		flags = append(flags, "less than half of claimed skills appear in the profile")
	}
	return flags, ""
}

func seniorProfile(c *model.Candidate) bool {
	if _, known := c.ExpertiseLevel.Rank(); known && c.ExpertiseLevel.AtLeast(model.LevelSenior) {
		return true
	}
	return c.ExperienceYears >= seniorYears
}

// unsupportedDomain returns the first claimed domain no skill relates
// to, by substring or shared token.
func unsupportedDomain(c *model.Candidate) string {
	for _, domain := range c.Domains {
		norm := strings.ToLower(strings.TrimSpace(domain))
		if norm == "" {
			continue
		}
		if !domainSupported(norm, c.Skills) {
			return domain
		}
	}
	return ""
}

func domainSupported(domain string, skills []string) bool {
	domainTokens := strings.Fields(domain)
	for _, skill := range skills {
		s := strings.ToLower(strings.TrimSpace(skill))
		if s == "" {
			continue
		}
		if strings.Contains(domain, s) || strings.Contains(s, domain) {
			return true
		}
		for _, tok := range domainTokens {
			if strings.Contains(s, tok) {
				return true
			}
		}
	}
	return false
}

// claimedOverlap is the share of claimed skills present in the stored
// skill list.
func claimedOverlap(claimed, stored []string) float64 {
	storedSet := make(map[string]struct{}, len(stored))
	for _, s := range stored {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			storedSet[s] = struct{}{}
		}
	}
	total, hits := 0, 0
	seen := make(map[string]struct{}, len(claimed))
	for _, cl := range claimed {
		norm := strings.ToLower(strings.TrimSpace(cl))
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		total++
		if _, ok := storedSet[norm]; ok {
			hits++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(hits) / float64(total)
}
