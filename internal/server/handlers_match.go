package server

import (
	"net/http"

	"github.com/ashita-ai/suisen/internal/model"
)

// Matching and scoring handlers. These are pure reads over the graph:
// nothing here mutates candidate or position state.

// HandleQueryCandidates handles POST /v1/query. Structured filters run
// against the relational store; an optional similarity query re-ranks
// the filtered set through the vector index, degrading to filter-only
// results when the index cannot answer in time.
func (h *Handlers) HandleQueryCandidates(w http.ResponseWriter, r *http.Request) {
	var req model.QueryRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	res, err := h.queryEngine.QueryCandidates(r.Context(), tenant(r), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleTalentSearch handles POST /v1/talent/search. It ranks the
// tenant's candidates against a position and returns those whose
// combined score clears the exceptional threshold.
func (h *Handlers) HandleTalentSearch(w http.ResponseWriter, r *http.Request) {
	var req model.TalentSearchRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.PositionID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "position_id is required")
		return
	}

	scores, err := h.talent.FindExceptional(r.Context(), tenant(r), req.PositionID, req.MinScore, req.TopK)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"position_id": req.PositionID,
		"matches":     scores,
		"count":       len(scores),
	})
}

// HandleScoreCandidate handles GET /v1/candidates/{id}/score. Without
// position_id the score is position-free.
func (h *Handlers) HandleScoreCandidate(w http.ResponseWriter, r *http.Request) {
	score, err := h.talent.ScoreCandidate(r.Context(), tenant(r), r.PathValue("id"), r.URL.Query().Get("position_id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, score)
}

// HandleMatchTeam handles POST /v1/candidates/{id}/match/team. It ranks
// every team for the candidate and selects the best fit.
func (h *Handlers) HandleMatchTeam(w http.ResponseWriter, r *http.Request) {
	res, err := h.matcher.MatchTeam(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

type matchInterviewerRequest struct {
	TeamID string `json:"team_id"`
}

// HandleMatchInterviewer handles POST /v1/candidates/{id}/match/interviewer.
// It picks the interviewer on the given team best placed to interview
// the candidate.
func (h *Handlers) HandleMatchInterviewer(w http.ResponseWriter, r *http.Request) {
	var req matchInterviewerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.TeamID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "team_id is required")
		return
	}

	res, err := h.matcher.MatchInterviewer(r.Context(), tenant(r), r.PathValue("id"), req.TeamID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleScreen handles POST /v1/screen. It renders a pass/fail/borderline
// phone-screen decision for a candidate against a position.
func (h *Handlers) HandleScreen(w http.ResponseWriter, r *http.Request) {
	var req model.ScreenRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.CandidateID == "" || req.PositionID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "candidate_id and position_id are required")
		return
	}

	decision, err := h.screener.Decide(r.Context(), tenant(r), req.CandidateID, req.PositionID, req.ExtractedInfo)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, decision)
}
