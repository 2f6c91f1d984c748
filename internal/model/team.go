package model

import "time"

// Team is a hiring team. MemberIDs and OpenPositions carry set semantics;
// MemberCount always equals len(MemberIDs).
type Team struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	Name          string    `json:"name"`
	Domain        string    `json:"domain,omitempty"`
	Needs         []string  `json:"needs,omitempty"`
	Expertise     []string  `json:"expertise,omitempty"`
	MemberIDs     []string  `json:"member_ids,omitempty"`
	MemberCount   int       `json:"member_count"`
	OpenPositions []string  `json:"open_positions,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasMember reports whether the interviewer id is already linked.
func (t *Team) HasMember(interviewerID string) bool {
	for _, id := range t.MemberIDs {
		if id == interviewerID {
			return true
		}
	}
	return false
}

// InterviewResult is the outcome of one interview.
type InterviewResult string

const (
	InterviewHired    InterviewResult = "hired"
	InterviewRejected InterviewResult = "rejected"
)

// InterviewRecord is one entry in an interviewer's history.
type InterviewRecord struct {
	CandidateID string          `json:"candidate_id"`
	Result      InterviewResult `json:"result"`
}

// Interviewer is an interviewer profile. ClusterSuccessRates maps cluster
// label to hire rate in [0,1] and is rewritten by rate recomputation runs.
type Interviewer struct {
	ID                  string             `json:"id"`
	TenantID            string             `json:"tenant_id"`
	Name                string             `json:"name,omitempty"`
	Expertise           []string           `json:"expertise,omitempty"`
	SuccessRate         float64            `json:"success_rate"`
	ClusterSuccessRates map[string]float64 `json:"cluster_success_rates,omitempty"`
	InterviewHistory    []InterviewRecord  `json:"interview_history,omitempty"`
	TeamID              *string            `json:"team_id,omitempty"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Position is an open role. SelectedCandidates order is the bandit arm
// order; CandidateIDs is the accepted legacy alias for the same list and
// SelectedCandidates wins when both are present.
type Position struct {
	ID                 string         `json:"id"`
	TenantID           string         `json:"tenant_id"`
	Title              string         `json:"title"`
	MustHaves          []string       `json:"must_haves,omitempty"`
	RequiredSkills     []string       `json:"required_skills,omitempty"`
	OptionalSkills     []string       `json:"optional_skills,omitempty"`
	Domains            []string       `json:"domains,omitempty"`
	ExperienceLevel    ExpertiseLevel `json:"experience_level,omitempty"`
	SelectedCandidates []string       `json:"selected_candidates,omitempty"`
	CandidateIDs       []string       `json:"candidate_ids,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ArmCandidates resolves the candidate list used for bandit arms.
func (p *Position) ArmCandidates() []string {
	if len(p.SelectedCandidates) > 0 {
		return p.SelectedCandidates
	}
	return p.CandidateIDs
}
