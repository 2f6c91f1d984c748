package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/ashita-ai/suisen/internal/graph"
	"github.com/ashita-ai/suisen/internal/model"
)

// Team, interviewer and position handlers. These mirror the candidate
// handlers: the body never chooses the tenant, list endpoints paginate
// with bounded limits, and service errors map onto the shared envelope.

// HandleCreateTeam handles POST /v1/teams.
func (h *Handlers) HandleCreateTeam(w http.ResponseWriter, r *http.Request) {
	var t model.Team
	if err := decodeJSON(w, r, &t, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	t.TenantID = tenant(r)

	stored, err := h.graph.AddTeam(r.Context(), &t)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stored)
}

// HandleListTeams handles GET /v1/teams.
func (h *Handlers) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	teams, err := h.graph.ListTeams(r.Context(), tenant(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"teams": teams,
		"count": len(teams),
	})
}

// HandleGetTeam handles GET /v1/teams/{id}.
func (h *Handlers) HandleGetTeam(w http.ResponseWriter, r *http.Request) {
	t, err := h.graph.GetTeam(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, t)
}

// HandleUpdateTeam handles PATCH /v1/teams/{id}.
func (h *Handlers) HandleUpdateTeam(w http.ResponseWriter, r *http.Request) {
	var patch graph.TeamPatch
	if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	updated, err := h.graph.UpdateTeam(r.Context(), tenant(r), r.PathValue("id"), &patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

type linkInterviewerRequest struct {
	InterviewerID string `json:"interviewer_id"`
}

// HandleLinkInterviewer handles POST /v1/teams/{id}/interviewers.
// It records the bidirectional works-with edge between the team and
// the interviewer.
func (h *Handlers) HandleLinkInterviewer(w http.ResponseWriter, r *http.Request) {
	var req linkInterviewerRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.InterviewerID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "interviewer_id is required")
		return
	}

	team, iv, err := h.graph.LinkInterviewerToTeam(r.Context(), tenant(r), req.InterviewerID, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"team":        team,
		"interviewer": iv,
	})
}

// HandleTeamMembers handles GET /v1/teams/{id}/members.
func (h *Handlers) HandleTeamMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.graph.TeamMembers(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"members": members,
		"count":   len(members),
	})
}

// HandleTeamPositions handles GET /v1/teams/{id}/positions.
func (h *Handlers) HandleTeamPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.graph.TeamPositions(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// HandleCreateInterviewer handles POST /v1/interviewers.
func (h *Handlers) HandleCreateInterviewer(w http.ResponseWriter, r *http.Request) {
	var iv model.Interviewer
	if err := decodeJSON(w, r, &iv, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	iv.TenantID = tenant(r)

	stored, err := h.graph.AddInterviewer(r.Context(), &iv)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stored)
}

// HandleListInterviewers handles GET /v1/interviewers.
func (h *Handlers) HandleListInterviewers(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	ivs, err := h.graph.ListInterviewers(r.Context(), tenant(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"interviewers": ivs,
		"count":        len(ivs),
	})
}

// HandleGetInterviewer handles GET /v1/interviewers/{id}.
func (h *Handlers) HandleGetInterviewer(w http.ResponseWriter, r *http.Request) {
	iv, err := h.graph.GetInterviewer(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, iv)
}

// HandleUpdateInterviewer handles PATCH /v1/interviewers/{id}.
func (h *Handlers) HandleUpdateInterviewer(w http.ResponseWriter, r *http.Request) {
	var patch graph.InterviewerPatch
	if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	updated, err := h.graph.UpdateInterviewer(r.Context(), tenant(r), r.PathValue("id"), &patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleCreatePosition handles POST /v1/positions.
func (h *Handlers) HandleCreatePosition(w http.ResponseWriter, r *http.Request) {
	var p model.Position
	if err := decodeJSON(w, r, &p, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	p.TenantID = tenant(r)

	stored, err := h.graph.AddPosition(r.Context(), &p)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stored)
}

// HandleListPositions handles GET /v1/positions.
func (h *Handlers) HandleListPositions(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	positions, err := h.graph.ListPositions(r.Context(), tenant(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"positions": positions,
		"count":     len(positions),
	})
}

// HandleGetPosition handles GET /v1/positions/{id}.
func (h *Handlers) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := h.graph.GetPosition(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, p)
}

// HandleUpdatePosition handles PATCH /v1/positions/{id}.
func (h *Handlers) HandleUpdatePosition(w http.ResponseWriter, r *http.Request) {
	var patch graph.PositionPatch
	if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	updated, err := h.graph.UpdatePosition(r.Context(), tenant(r), r.PathValue("id"), &patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

type freezeArmsRequest struct {
	CandidateIDs []string `json:"candidate_ids,omitempty"`
}

// HandleFreezeArms handles POST /v1/positions/{id}/freeze. It pins the
// bandit arm set for the position; once frozen the set never changes,
// so repeated calls return the original snapshot. The body is optional
// and defaults to the position's selected candidates.
func (h *Handlers) HandleFreezeArms(w http.ResponseWriter, r *http.Request) {
	var req freezeArmsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil && !errors.Is(err, io.EOF) {
		handleDecodeError(w, r, err)
		return
	}

	tenantID := tenant(r)
	positionID := r.PathValue("id")
	if len(req.CandidateIDs) == 0 {
		pos, err := h.graph.GetPosition(r.Context(), tenantID, positionID)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		req.CandidateIDs = pos.ArmCandidates()
	}

	arms, err := h.graph.FreezeArms(r.Context(), tenantID, positionID, req.CandidateIDs)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"position_id": positionID,
		"arms":        arms,
	})
}
