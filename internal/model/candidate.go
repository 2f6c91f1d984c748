package model

import "time"

// Class identifies an entity class. It doubles as the vector-collection
// discriminator and as the uuid5 namespace prefix ("Candidate:<id>").
type Class string

const (
	ClassCandidate   Class = "Candidate"
	ClassTeam        Class = "Team"
	ClassInterviewer Class = "Interviewer"
	ClassPosition    Class = "Position"
)

// Classes lists every entity class in collection order.
var Classes = []Class{ClassCandidate, ClassTeam, ClassInterviewer, ClassPosition}

// Valid reports whether c names a known entity class.
func (c Class) Valid() bool {
	switch c {
	case ClassCandidate, ClassTeam, ClassInterviewer, ClassPosition:
		return true
	}
	return false
}

// ExpertiseLevel is the ordered seniority scale.
type ExpertiseLevel string

const (
	LevelJunior    ExpertiseLevel = "junior"
	LevelMid       ExpertiseLevel = "mid"
	LevelSenior    ExpertiseLevel = "senior"
	LevelStaff     ExpertiseLevel = "staff"
	LevelPrincipal ExpertiseLevel = "principal"
)

var levelRank = map[ExpertiseLevel]int{
	LevelJunior:    0,
	LevelMid:       1,
	LevelSenior:    2,
	LevelStaff:     3,
	LevelPrincipal: 4,
}

// Rank returns the ordinal position of the level and whether it is known.
func (l ExpertiseLevel) Rank() (int, bool) {
	r, ok := levelRank[l]
	return r, ok
}

// AtLeast reports whether l meets or exceeds min on the ordinal scale.
// An unknown l never satisfies a known min; an empty min is no constraint.
func (l ExpertiseLevel) AtLeast(min ExpertiseLevel) bool {
	if min == "" {
		return true
	}
	lr, lok := l.Rank()
	mr, mok := min.Rank()
	if !mok {
		return true
	}
	return lok && lr >= mr
}

// Paper is a single publication attributed to a candidate.
type Paper struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	URL   string `json:"url,omitempty"`
}

// GithubStats aggregates a candidate's GitHub footprint.
type GithubStats struct {
	TotalStars int      `json:"total_stars"`
	TotalRepos int      `json:"total_repos"`
	Languages  []string `json:"languages,omitempty"`
}

// XAnalytics aggregates a candidate's X (Twitter) reach.
type XAnalytics struct {
	FollowersCount      int     `json:"followers_count"`
	AvgEngagementRate   float64 `json:"avg_engagement_rate"`
	ContentQualityScore float64 `json:"content_quality_score"`
}

// PhoneScreenResults holds the four phone-screen sub-signals in [0,1].
type PhoneScreenResults struct {
	TechnicalDepth float64 `json:"technical_depth"`
	ProblemSolving float64 `json:"problem_solving"`
	Communication  float64 `json:"communication"`
	Implementation float64 `json:"implementation"`
}

// FeedbackType classifies recruiter feedback sentiment.
type FeedbackType string

const (
	FeedbackPositive FeedbackType = "positive"
	FeedbackNegative FeedbackType = "negative"
	FeedbackNeutral  FeedbackType = "neutral"
)

// FeedbackRecord is one append-only entry in a candidate's feedback history.
// Note carries the explanatory marker when the bandit update could not run.
type FeedbackRecord struct {
	PositionID   string       `json:"position_id"`
	FeedbackText string       `json:"feedback_text"`
	Reward       float64      `json:"reward"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Timestamp    time.Time    `json:"timestamp"`
	Note         string       `json:"note,omitempty"`
}

// Candidate is a candidate profile. Skills and domains carry set
// semantics; AbilityCluster is nil until a cluster run assigns one.
type Candidate struct {
	ID              string         `json:"id"`
	TenantID        string         `json:"tenant_id"`
	Name            string         `json:"name,omitempty"`
	Skills          []string       `json:"skills"`
	Domains         []string       `json:"domains"`
	ExperienceYears int            `json:"experience_years"`
	ExpertiseLevel  ExpertiseLevel `json:"expertise_level,omitempty"`

	Papers                []Paper  `json:"papers,omitempty"`
	ArxivAuthorID         string   `json:"arxiv_author_id,omitempty"`
	OrcidID               string   `json:"orcid_id,omitempty"`
	ResearchContributions []string `json:"research_contributions,omitempty"`
	ResearchAreas         []string `json:"research_areas,omitempty"`

	GithubStats        *GithubStats        `json:"github_stats,omitempty"`
	XAnalytics         *XAnalytics         `json:"x_analytics,omitempty"`
	PhoneScreenResults *PhoneScreenResults `json:"phone_screen_results,omitempty"`

	AbilityCluster  *string          `json:"ability_cluster,omitempty"`
	FeedbackHistory []FeedbackRecord `json:"feedback_history,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy. The in-memory store hands out clones so
// callers can never alias its internal state.
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	out.Skills = append([]string(nil), c.Skills...)
	out.Domains = append([]string(nil), c.Domains...)
	out.Papers = append([]Paper(nil), c.Papers...)
	out.ResearchContributions = append([]string(nil), c.ResearchContributions...)
	out.ResearchAreas = append([]string(nil), c.ResearchAreas...)
	out.FeedbackHistory = append([]FeedbackRecord(nil), c.FeedbackHistory...)
	if c.GithubStats != nil {
		gs := *c.GithubStats
		gs.Languages = append([]string(nil), c.GithubStats.Languages...)
		out.GithubStats = &gs
	}
	if c.XAnalytics != nil {
		xa := *c.XAnalytics
		out.XAnalytics = &xa
	}
	if c.PhoneScreenResults != nil {
		ps := *c.PhoneScreenResults
		out.PhoneScreenResults = &ps
	}
	if c.AbilityCluster != nil {
		cl := *c.AbilityCluster
		out.AbilityCluster = &cl
	}
	return &out
}

// PaperCount returns the number of attributed publications.
func (c *Candidate) PaperCount() int { return len(c.Papers) }

// HasResearchSignal reports whether any research identity marker is set.
func (c *Candidate) HasResearchSignal() bool {
	return len(c.Papers) > 0 || c.ArxivAuthorID != "" || c.OrcidID != ""
}

// GithubStars returns total stars, zero when stats are absent.
func (c *Candidate) GithubStars() int {
	if c.GithubStats == nil {
		return 0
	}
	return c.GithubStats.TotalStars
}

// ClusterLabel returns the assigned cluster label or "".
func (c *Candidate) ClusterLabel() string {
	if c.AbilityCluster == nil {
		return ""
	}
	return *c.AbilityCluster
}
