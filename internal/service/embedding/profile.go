package embedding

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashita-ai/suisen/internal/model"
)

// Profile text rendering. Entities with the same descriptive content must
// render to the same string, so set-valued fields are lowercased, deduped,
// and sorted before joining. Field order within a rendering is fixed:
// changing it would silently re-embed every profile on the next sweep.

// joinSet canonicalizes a set-valued field for embedding.
func joinSet(values []string) string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	sort.Strings(out)
	return strings.Join(out, ", ")
}

func appendSegment(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(label)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString(".")
}

// CandidateText renders a candidate profile for embedding. The ability
// cluster is deliberately excluded: it is derived from this embedding,
// and including it would feed assignments back into the vector space.
func CandidateText(c *model.Candidate) string {
	var b strings.Builder
	b.WriteString("candidate ")
	b.WriteString(strings.ToLower(c.Name))
	b.WriteString(".")

	appendSegment(&b, "skills", joinSet(c.Skills))
	appendSegment(&b, "domains", joinSet(c.Domains))
	if c.ExperienceYears > 0 || c.ExpertiseLevel != "" {
		level := string(c.ExpertiseLevel)
		if level == "" {
			level = "unspecified"
		}
		appendSegment(&b, "experience", fmt.Sprintf("%d years (%s)", c.ExperienceYears, level))
	}
	if n := c.PaperCount(); n > 0 {
		appendSegment(&b, "papers", fmt.Sprintf("%d", n))
	}
	appendSegment(&b, "research areas", joinSet(c.ResearchAreas))
	appendSegment(&b, "research contributions", joinSet(c.ResearchContributions))
	if c.GithubStats != nil && c.GithubStats.TotalStars > 0 {
		appendSegment(&b, "github stars", fmt.Sprintf("%d", c.GithubStats.TotalStars))
		appendSegment(&b, "languages", joinSet(c.GithubStats.Languages))
	}
	return b.String()
}

// TeamText renders a team profile for embedding.
func TeamText(t *model.Team) string {
	var b strings.Builder
	b.WriteString("team ")
	b.WriteString(strings.ToLower(t.Name))
	b.WriteString(".")

	appendSegment(&b, "domain", strings.ToLower(strings.TrimSpace(t.Domain)))
	appendSegment(&b, "needs", joinSet(t.Needs))
	appendSegment(&b, "expertise", joinSet(t.Expertise))
	if n := len(t.OpenPositions); n > 0 {
		appendSegment(&b, "open positions", fmt.Sprintf("%d", n))
	}
	return b.String()
}

// InterviewerText renders an interviewer profile for embedding. Success
// rates are excluded for the same reason as candidate clusters: they are
// learned signals, not descriptive content.
func InterviewerText(iv *model.Interviewer) string {
	var b strings.Builder
	b.WriteString("interviewer ")
	b.WriteString(strings.ToLower(iv.Name))
	b.WriteString(".")

	appendSegment(&b, "expertise", joinSet(iv.Expertise))
	return b.String()
}

// PositionText renders an open position for embedding.
func PositionText(p *model.Position) string {
	var b strings.Builder
	b.WriteString("position ")
	b.WriteString(strings.ToLower(p.Title))
	b.WriteString(".")

	appendSegment(&b, "must haves", joinSet(p.MustHaves))
	appendSegment(&b, "required skills", joinSet(p.RequiredSkills))
	appendSegment(&b, "optional skills", joinSet(p.OptionalSkills))
	appendSegment(&b, "domains", joinSet(p.Domains))
	appendSegment(&b, "level", strings.ToLower(string(p.ExperienceLevel)))
	return b.String()
}
