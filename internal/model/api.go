package model

import (
	"fmt"
	"time"
)

// Field length limits on caller-controlled text. These keep a single
// oversized field from exhausting the embedding pipeline or the LLM
// feedback parser.
const (
	MaxProfileFieldLen = 200
	MaxProfileSetSize  = 500
	MaxFeedbackTextLen = 16 * 1024 // 16 KB
	MaxSimilarityQuery = 8 * 1024  // 8 KB
)

// ValidateCandidate checks the fields that flow into the embedding
// pipeline and the vector payload.
func ValidateCandidate(c *Candidate) error {
	if c.ID == "" {
		return Validation("model.ValidateCandidate", "id is required")
	}
	if len(c.Skills) > MaxProfileSetSize {
		return Validation("model.ValidateCandidate", "skills exceeds maximum set size of %d", MaxProfileSetSize)
	}
	if c.ExperienceYears < 0 {
		return Validation("model.ValidateCandidate", "experience_years must be >= 0")
	}
	for _, s := range c.Skills {
		if len(s) > MaxProfileFieldLen {
			return Validation("model.ValidateCandidate", "skill exceeds maximum length of %d characters", MaxProfileFieldLen)
		}
	}
	return nil
}

// ValidateFeedbackText bounds the free-text feedback body.
func ValidateFeedbackText(text string) error {
	if text == "" {
		return Validation("model.ValidateFeedbackText", "feedback text is required")
	}
	if len(text) > MaxFeedbackTextLen {
		return Validation("model.ValidateFeedbackText", "feedback text exceeds maximum length of %d bytes", MaxFeedbackTextLen)
	}
	return nil
}

// APIResponse is the envelope for every HTTP response. Error is set iff
// Success is false; no handler returns a bare error body.
type APIResponse struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    ResponseMeta `json:"meta"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Error code constants for the HTTP surface.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeTimeout       = "TIMEOUT"
	ErrCodeTransport     = "TRANSPORT_ERROR"
	ErrCodeInvariant     = "INVARIANT_VIOLATION"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// CodeForKind maps a typed error kind to its API error code. Tenant
// mismatches surface as NOT_FOUND.
func CodeForKind(k ErrorKind) string {
	switch k {
	case KindNotFound, KindTenantMismatch:
		return ErrCodeNotFound
	case KindTimeout:
		return ErrCodeTimeout
	case KindTransport:
		return ErrCodeTransport
	case KindInvariant:
		return ErrCodeInvariant
	case KindValidation:
		return ErrCodeInvalidInput
	default:
		return ErrCodeInternalError
	}
}

// TalentSearchRequest is the request body for POST /v1/talent/search.
type TalentSearchRequest struct {
	PositionID string  `json:"position_id,omitempty"`
	MinScore   float64 `json:"min_score,omitempty"`
	TopK       int     `json:"top_k,omitempty"`
}

// ScreenRequest is the request body for POST /v1/screen.
type ScreenRequest struct {
	CandidateID   string         `json:"candidate_id"`
	PositionID    string         `json:"position_id"`
	ExtractedInfo *ExtractedInfo `json:"extracted_info,omitempty"`
}

// ExtractedInfo is interview-note data supplied by the caller. Score
// components are in [0,1]; ClaimedExperienceYears and ClaimedSkills feed
// consistency checks against the stored profile.
type ExtractedInfo struct {
	Motivation             *float64 `json:"motivation,omitempty"`
	Communication          *float64 `json:"communication,omitempty"`
	TechnicalDepth         *float64 `json:"technical_depth,omitempty"`
	CulturalFit            *float64 `json:"cultural_fit,omitempty"`
	ClaimedExperienceYears *float64 `json:"claimed_experience_years,omitempty"`
	ClaimedSkills          []string `json:"claimed_skills,omitempty"`
}

// FeedbackRequest is the request body for POST /v1/feedback.
type FeedbackRequest struct {
	CandidateID  string   `json:"candidate_id"`
	PositionID   string   `json:"position_id"`
	FeedbackText string   `json:"feedback_text"`
	Reward       *float64 `json:"reward,omitempty"` // bypasses the LLM parse when set
}

// SimulateRequest is the request body for POST /v1/simulate.
type SimulateRequest struct {
	CandidateIDs        []string `json:"candidate_ids"`
	PositionID          string   `json:"position_id"`
	NumEvents           int      `json:"num_events,omitempty"`
	FeedbackProbability float64  `json:"feedback_probability,omitempty"`
	Seed                *int64   `json:"seed,omitempty"`
}

// HealthResponse is the response for GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Qdrant   string `json:"qdrant,omitempty"`
	Uptime   int64  `json:"uptime_seconds"`
}

// SprintMissing renders a missing-entity message for error details.
func SprintMissing(class Class, id string) string {
	return fmt.Sprintf("%s %q does not exist", class, id)
}
