package suisen

import "time"

// Expertise levels accepted in candidate and position profiles, in
// ascending seniority order.
const (
	ExpertiseJunior    = "junior"
	ExpertiseMid       = "mid"
	ExpertiseSenior    = "senior"
	ExpertiseStaff     = "staff"
	ExpertisePrincipal = "principal"
)

// Feedback sentiment values returned by the feedback endpoint.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
	FeedbackNeutral  = "neutral"
)

// Entity classes used as keys in similar-profile responses.
const (
	ClassCandidate   = "Candidate"
	ClassTeam        = "Team"
	ClassInterviewer = "Interviewer"
	ClassPosition    = "Position"
)

// Paper is a single publication on a candidate profile.
type Paper struct {
	Title string `json:"title"`
	Year  int    `json:"year,omitempty"`
	URL   string `json:"url,omitempty"`
}

// GithubStats summarizes a candidate's open-source footprint.
type GithubStats struct {
	TotalStars int      `json:"total_stars"`
	TotalRepos int      `json:"total_repos"`
	Languages  []string `json:"languages,omitempty"`
}

// XAnalytics summarizes a candidate's technical audience reach.
type XAnalytics struct {
	FollowersCount      int     `json:"followers_count"`
	AvgEngagementRate   float64 `json:"avg_engagement_rate"`
	ContentQualityScore float64 `json:"content_quality_score"`
}

// PhoneScreenResults carries interviewer ratings in [0, 1].
type PhoneScreenResults struct {
	TechnicalDepth float64 `json:"technical_depth"`
	ProblemSolving float64 `json:"problem_solving"`
	Communication  float64 `json:"communication"`
	Implementation float64 `json:"implementation"`
}

// FeedbackRecord is one processed feedback event on a candidate.
type FeedbackRecord struct {
	PositionID   string    `json:"position_id"`
	FeedbackText string    `json:"feedback_text"`
	Reward       float64   `json:"reward"`
	FeedbackType string    `json:"feedback_type"`
	Timestamp    time.Time `json:"timestamp"`
	Note         string    `json:"note,omitempty"`
}

// Candidate is a candidate profile. On create, ID is required and the
// server overwrites TenantID with the resolved tenant.
type Candidate struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenant_id,omitempty"`
	Name            string   `json:"name,omitempty"`
	Skills          []string `json:"skills"`
	Domains         []string `json:"domains"`
	ExperienceYears int      `json:"experience_years"`
	ExpertiseLevel  string   `json:"expertise_level,omitempty"`

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

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// CandidatePatch updates a candidate. Nil and empty fields are left
// unchanged.
type CandidatePatch struct {
	Name                  *string             `json:"name,omitempty"`
	Skills                []string            `json:"skills,omitempty"`
	Domains               []string            `json:"domains,omitempty"`
	ExperienceYears       *int                `json:"experience_years,omitempty"`
	ExpertiseLevel        *string             `json:"expertise_level,omitempty"`
	Papers                []Paper             `json:"papers,omitempty"`
	ArxivAuthorID         *string             `json:"arxiv_author_id,omitempty"`
	OrcidID               *string             `json:"orcid_id,omitempty"`
	ResearchContributions []string            `json:"research_contributions,omitempty"`
	ResearchAreas         []string            `json:"research_areas,omitempty"`
	GithubStats           *GithubStats        `json:"github_stats,omitempty"`
	XAnalytics            *XAnalytics         `json:"x_analytics,omitempty"`
	PhoneScreenResults    *PhoneScreenResults `json:"phone_screen_results,omitempty"`
}

// Team is a hiring team profile.
type Team struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id,omitempty"`
	Name          string    `json:"name"`
	Domain        string    `json:"domain,omitempty"`
	Needs         []string  `json:"needs,omitempty"`
	Expertise     []string  `json:"expertise,omitempty"`
	MemberIDs     []string  `json:"member_ids,omitempty"`
	MemberCount   int       `json:"member_count"`
	OpenPositions []string  `json:"open_positions,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

// TeamPatch updates a team.
type TeamPatch struct {
	Name          *string  `json:"name,omitempty"`
	Domain        *string  `json:"domain,omitempty"`
	Needs         []string `json:"needs,omitempty"`
	Expertise     []string `json:"expertise,omitempty"`
	OpenPositions []string `json:"open_positions,omitempty"`
}

// InterviewRecord is one past interview outcome: result is "hired" or
// "rejected".
type InterviewRecord struct {
	CandidateID string `json:"candidate_id"`
	Result      string `json:"result"`
}

// Interviewer is an interviewer profile with per-cluster success rates.
type Interviewer struct {
	ID                  string             `json:"id"`
	TenantID            string             `json:"tenant_id,omitempty"`
	Name                string             `json:"name,omitempty"`
	Expertise           []string           `json:"expertise,omitempty"`
	SuccessRate         float64            `json:"success_rate"`
	ClusterSuccessRates map[string]float64 `json:"cluster_success_rates,omitempty"`
	InterviewHistory    []InterviewRecord  `json:"interview_history,omitempty"`
	TeamID              *string            `json:"team_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at,omitempty"`
	UpdatedAt           time.Time          `json:"updated_at,omitempty"`
}

// InterviewerPatch updates an interviewer.
type InterviewerPatch struct {
	Name             *string           `json:"name,omitempty"`
	Expertise        []string          `json:"expertise,omitempty"`
	SuccessRate      *float64          `json:"success_rate,omitempty"`
	InterviewHistory []InterviewRecord `json:"interview_history,omitempty"`
}

// Position is an open position profile.
type Position struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id,omitempty"`
	Title              string    `json:"title"`
	MustHaves          []string  `json:"must_haves,omitempty"`
	RequiredSkills     []string  `json:"required_skills,omitempty"`
	OptionalSkills     []string  `json:"optional_skills,omitempty"`
	Domains            []string  `json:"domains,omitempty"`
	ExperienceLevel    string    `json:"experience_level,omitempty"`
	SelectedCandidates []string  `json:"selected_candidates,omitempty"`
	CandidateIDs       []string  `json:"candidate_ids,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
	UpdatedAt          time.Time `json:"updated_at,omitempty"`
}

// PositionPatch updates a position.
type PositionPatch struct {
	Title              *string  `json:"title,omitempty"`
	MustHaves          []string `json:"must_haves,omitempty"`
	RequiredSkills     []string `json:"required_skills,omitempty"`
	OptionalSkills     []string `json:"optional_skills,omitempty"`
	Domains            []string `json:"domains,omitempty"`
	ExperienceLevel    *string  `json:"experience_level,omitempty"`
	SelectedCandidates []string `json:"selected_candidates,omitempty"`
}

// SkillFilters constrain candidate skills in a structured query.
type SkillFilters struct {
	Required []string `json:"required,omitempty"`
	Optional []string `json:"optional,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
}

// DomainFilters constrain candidate domains in a structured query.
type DomainFilters struct {
	Required []string `json:"required,omitempty"`
	Excluded []string `json:"excluded,omitempty"`
}

// MinFilter matches values at or above Min.
type MinFilter struct {
	Min int `json:"min"`
}

// RangeFilter matches values inside the optional [Min, Max] bounds.
type RangeFilter struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// CandidateFilters are the structured filters for Query.
type CandidateFilters struct {
	Skills          *SkillFilters  `json:"skills,omitempty"`
	Domains         *DomainFilters `json:"domains,omitempty"`
	ArxivPapers     *MinFilter     `json:"arxiv_papers,omitempty"`
	GithubStars     *MinFilter     `json:"github_stars,omitempty"`
	ExperienceYears *RangeFilter   `json:"experience_years,omitempty"`
	AbilityCluster  *string        `json:"ability_cluster,omitempty"`
}

// QueryRequest is the body for Query. A non-empty SimilarityQuery adds
// semantic re-ranking on top of the structured filters.
type QueryRequest struct {
	Filters         CandidateFilters `json:"filters"`
	SimilarityQuery string           `json:"similarity_query,omitempty"`
	TopK            int              `json:"top_k,omitempty"`
}

// CandidateHit is one query result. SimilarityScore is nil when the
// result came from filters alone.
type CandidateHit struct {
	Candidate       *Candidate `json:"candidate"`
	SimilarityScore *float64   `json:"similarity_score,omitempty"`
}

// QueryResult is the response to Query. Degraded is true when the
// vector index missed its deadline and the hits are filter-only.
type QueryResult struct {
	Hits     []CandidateHit `json:"hits"`
	Total    int            `json:"total"`
	Degraded bool           `json:"degraded,omitempty"`
}

// Hit is one nearest-neighbor result from a similarity lookup.
type Hit struct {
	ProfileID  string         `json:"profile_id"`
	TenantID   string         `json:"tenant_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}

// Signals are the per-platform talent signals, each in [0, 1].
type Signals struct {
	Arxiv     float64 `json:"arxiv"`
	Github    float64 `json:"github"`
	X         float64 `json:"x"`
	Phone     float64 `json:"phone_screen"`
	Composite float64 `json:"composite"`
}

// Evidence lists the raw counts behind a talent score.
type Evidence struct {
	Papers                int     `json:"papers"`
	ResearchContributions int     `json:"research_contributions"`
	ResearchAreas         int     `json:"research_areas"`
	GithubStars           int     `json:"github_stars"`
	GithubRepos           int     `json:"github_repos"`
	GithubLanguages       int     `json:"github_languages"`
	XFollowers            int     `json:"x_followers"`
	XEngagementRate       float64 `json:"x_engagement_rate"`
	PhoneScreened         bool    `json:"phone_screened"`
}

// Score is a talent score for one candidate. PositionFit and Combined
// are nil for position-free scores.
type Score struct {
	CandidateID    string   `json:"candidate_id"`
	PositionID     string   `json:"position_id,omitempty"`
	Signals        Signals  `json:"signals"`
	Base           float64  `json:"base"`
	Exceptional    float64  `json:"exceptional"`
	PositionFit    *float64 `json:"position_fit,omitempty"`
	Combined       *float64 `json:"combined,omitempty"`
	Evidence       Evidence `json:"evidence"`
	WhyExceptional string   `json:"why_exceptional"`
}

// TalentSearchRequest is the body for TalentSearch.
type TalentSearchRequest struct {
	PositionID string  `json:"position_id"`
	MinScore   float64 `json:"min_score,omitempty"`
	TopK       int     `json:"top_k,omitempty"`
}

// TeamMatch is one ranked team for a candidate.
type TeamMatch struct {
	Team       *Team              `json:"team"`
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components"`
	Selected   bool               `json:"selected"`
}

// TeamMatchResult is the response to MatchTeam. Selected is nil when no
// team cleared the display threshold.
type TeamMatchResult struct {
	CandidateID string      `json:"candidate_id"`
	Selected    *TeamMatch  `json:"selected"`
	Reasoning   string      `json:"reasoning"`
	Ranked      []TeamMatch `json:"ranked"`
}

// InterviewerMatch is one ranked interviewer for a candidate.
type InterviewerMatch struct {
	Interviewer *Interviewer       `json:"interviewer"`
	Score       float64            `json:"score"`
	Components  map[string]float64 `json:"components"`
	Selected    bool               `json:"selected"`
}

// InterviewerMatchResult is the response to MatchInterviewer.
type InterviewerMatchResult struct {
	CandidateID string             `json:"candidate_id"`
	TeamID      string             `json:"team_id"`
	Selected    *InterviewerMatch  `json:"selected"`
	Reasoning   string             `json:"reasoning"`
	Ranked      []InterviewerMatch `json:"ranked"`
}

// ExtractedInfo carries optional phone-screen extractions for Screen.
// Ratings are in [0, 1].
type ExtractedInfo struct {
	Motivation             *float64 `json:"motivation,omitempty"`
	Communication          *float64 `json:"communication,omitempty"`
	TechnicalDepth         *float64 `json:"technical_depth,omitempty"`
	CulturalFit            *float64 `json:"cultural_fit,omitempty"`
	ClaimedExperienceYears *float64 `json:"claimed_experience_years,omitempty"`
	ClaimedSkills          []string `json:"claimed_skills,omitempty"`
}

// ScreenRequest is the body for Screen.
type ScreenRequest struct {
	CandidateID   string         `json:"candidate_id"`
	PositionID    string         `json:"position_id"`
	ExtractedInfo *ExtractedInfo `json:"extracted_info,omitempty"`
}

// ScreeningDecision is the response to Screen. Decision is "proceed" or
// "reject".
type ScreeningDecision struct {
	CandidateID      string             `json:"candidate_id"`
	PositionID       string             `json:"position_id"`
	Decision         string             `json:"decision"`
	Passed           bool               `json:"passed"`
	Confidence       float64            `json:"confidence"`
	MustHaveMatch    bool               `json:"must_have_match"`
	MissingMustHaves []string           `json:"missing_must_haves,omitempty"`
	Similarity       float64            `json:"similarity"`
	Breakdown        map[string]float64 `json:"breakdown,omitempty"`
	Flags            []string           `json:"flags,omitempty"`
	Reasoning        string             `json:"reasoning"`
}

// FeedbackRequest is the body for SendFeedback. A non-nil Reward skips
// the server-side feedback parse.
type FeedbackRequest struct {
	CandidateID  string   `json:"candidate_id"`
	PositionID   string   `json:"position_id"`
	FeedbackText string   `json:"feedback_text"`
	Reward       *float64 `json:"reward,omitempty"`
}

// LearningMetrics summarize the online-learning loop.
type LearningMetrics struct {
	Interactions     int     `json:"interactions"`
	Positives        int     `json:"positives"`
	Negatives        int     `json:"negatives"`
	TruePositives    int     `json:"true_positives"`
	FalsePositives   int     `json:"false_positives"`
	FalseNegatives   int     `json:"false_negatives"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
	ResponseRate     float64 `json:"response_rate"`
	AverageReward    float64 `json:"average_reward"`
	CumulativeRegret float64 `json:"cumulative_regret"`
}

// FeedbackResult is the response to SendFeedback. Success false with a
// 200 status means the feedback was recorded but the bandit was not
// updated; Note says why.
type FeedbackResult struct {
	Success      bool             `json:"success"`
	CandidateID  string           `json:"candidate_id"`
	PositionID   string           `json:"position_id"`
	Reward       float64          `json:"reward"`
	FeedbackType string           `json:"feedback_type"`
	Note         string           `json:"note,omitempty"`
	Learning     *LearningMetrics `json:"learning_metrics,omitempty"`
}

// ClusterSummary is the response to RunClusters.
type ClusterSummary struct {
	TenantID   string         `json:"tenant_id"`
	Candidates int            `json:"candidates"`
	K          int            `json:"k"`
	Silhouette float64        `json:"silhouette"`
	Labels     []string       `json:"labels"`
	Sizes      map[string]int `json:"sizes"`
}

// ClusterAssignment is the response to AssignCluster.
type ClusterAssignment struct {
	CandidateID string `json:"candidate_id"`
	Cluster     string `json:"cluster"`
}

// ClusterRatesSummary is the response to UpdateClusterRates.
type ClusterRatesSummary struct {
	TenantID     string   `json:"tenant_id"`
	Interviewers int      `json:"interviewers"`
	Labels       []string `json:"labels"`
}

// SimulateRequest is the body for Simulate.
type SimulateRequest struct {
	CandidateIDs        []string `json:"candidate_ids"`
	PositionID          string   `json:"position_id"`
	NumEvents           int      `json:"num_events,omitempty"`
	FeedbackProbability float64  `json:"feedback_probability,omitempty"`
	Seed                *int64   `json:"seed,omitempty"`
}

// SimulationReport is one side of the warm-vs-cold comparison.
// EventsToTarget is -1 when the target precision was never reached.
type SimulationReport struct {
	EventsToTarget int             `json:"events_to_target_precision"`
	ExpectedRegret float64         `json:"expected_regret"`
	Metrics        LearningMetrics `json:"metrics"`
}

// SimulationResult is the response to Simulate.
type SimulationResult struct {
	Events               int              `json:"events"`
	TargetPrecision      float64          `json:"target_precision"`
	OptimalArm           int              `json:"optimal_arm"`
	OptimalCandidateID   string           `json:"optimal_candidate_id"`
	Warm                 SimulationReport `json:"warm"`
	Cold                 SimulationReport `json:"cold"`
	SpeedupEvents        int              `json:"speedup_events"`
	RegretReduction      float64          `json:"regret_reduction"`
	PrecisionImprovement float64          `json:"precision_improvement"`
	F1Improvement        float64          `json:"f1_improvement"`
}

// Health is the server health report. Status is "healthy", "degraded",
// or "unhealthy".
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Qdrant   string `json:"qdrant,omitempty"`
	Uptime   int64  `json:"uptime_seconds"`
}

// LinkResult is the response to LinkInterviewer: both sides of the new
// membership edge.
type LinkResult struct {
	Team        *Team        `json:"team"`
	Interviewer *Interviewer `json:"interviewer"`
}

// FreezeResult is the response to FreezeArms: the pinned arm set in
// bandit order.
type FreezeResult struct {
	PositionID string   `json:"position_id"`
	Arms       []string `json:"arms"`
}
