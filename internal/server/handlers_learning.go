package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ashita-ai/suisen/internal/learning"
	"github.com/ashita-ai/suisen/internal/model"
)

// Learning-loop handlers: feedback ingestion, clustering, metrics,
// trace export and the warm-vs-cold simulation.

// HandleFeedback handles POST /v1/feedback. Free-text feedback is
// parsed into a reward; a caller-supplied reward skips the parser.
// A non-success result still carries HTTP 200: the feedback has been
// recorded and the result body says why the bandit was not updated.
func (h *Handlers) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.FeedbackRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	res, err := h.feedback.Process(r.Context(), tenant(r), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

// HandleClusterRun handles POST /v1/clusters/run. It re-clusters the
// tenant's candidates into ability groups and persists the labels.
func (h *Handlers) HandleClusterRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.clusterer.Run(r.Context(), tenant(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

type assignClusterRequest struct {
	CandidateID string `json:"candidate_id"`
}

// HandleClusterAssign handles POST /v1/clusters/assign. It reports the
// nearest trained cluster for one candidate without re-clustering and
// without writing anything.
func (h *Handlers) HandleClusterAssign(w http.ResponseWriter, r *http.Request) {
	var req assignClusterRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if req.CandidateID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "candidate_id is required")
		return
	}

	label, err := h.clusterer.AssignOne(r.Context(), tenant(r), req.CandidateID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"candidate_id": req.CandidateID,
		"cluster":      label,
	})
}

// HandleClusterRates handles POST /v1/clusters/rates. It recomputes
// per-cluster interviewer success rates from candidate feedback
// history.
func (h *Handlers) HandleClusterRates(w http.ResponseWriter, r *http.Request) {
	summary, err := h.clusterer.UpdateInterviewerClusterRates(r.Context(), tenant(r))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, summary)
}

// HandleLearningMetrics handles GET /v1/learning/metrics.
func (h *Handlers) HandleLearningMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.feedback.Tracker().Metrics())
}

// HandleLearningExport handles GET /v1/learning/export. Rows come from
// the persistent trace when one is configured, falling back to the
// in-process tracker history. Format is json (default) or csv; rows
// are chronological.
func (h *Handlers) HandleLearningExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}
	if format != "json" && format != "csv" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			"format must be json or csv")
		return
	}

	tenantID := tenant(r)
	positionID := r.URL.Query().Get("position_id")
	limit := queryInt(r, "limit", 1000)
	if limit <= 0 {
		limit = 1000
	}

	var history []learning.Interaction
	if h.trace != nil {
		rows, err := h.trace.Recent(r.Context(), tenantID, positionID, limit)
		if err != nil {
			writeServiceError(w, r, h.logger, err)
			return
		}
		// Recent returns newest-first; exports read oldest-first.
		history = make([]learning.Interaction, len(rows))
		for i, row := range rows {
			history[len(rows)-1-i] = row
		}
	} else {
		for _, in := range h.feedback.Tracker().History() {
			if in.TenantID != tenantID {
				continue
			}
			if positionID != "" && in.PositionID != positionID {
				continue
			}
			history = append(history, in)
		}
		if len(history) > limit {
			history = history[len(history)-limit:]
		}
	}

	filename := fmt.Sprintf("suisen-learning-%s.%s", time.Now().UTC().Format("20060102-150405"), format)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	var err error
	if format == "csv" {
		w.Header().Set("Content-Type", "text/csv")
		err = learning.WriteCSV(w, history)
	} else {
		w.Header().Set("Content-Type", "application/json")
		err = learning.WriteJSON(w, history)
	}
	if err != nil {
		// Headers are gone; all we can do is log.
		h.logger.Error("learning export write failed",
			"error", err,
			"format", format,
			"rows", len(history),
		)
	}
}

// HandleSimulate handles POST /v1/simulate. It replays a warm-started
// and a cold-started bandit against the same simulated feedback stream
// and reports the learning-speed comparison. Similarities come from the
// stored embeddings; a candidate without one participates with zero
// similarity.
func (h *Handlers) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	var req model.SimulateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.CandidateIDs) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "candidate_ids are required")
		return
	}
	if req.PositionID == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "position_id is required")
		return
	}

	ctx := r.Context()
	tenantID := tenant(r)
	posVec, err := h.graph.Vector(ctx, model.ClassPosition, tenantID, req.PositionID)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	sims := make([]float64, len(req.CandidateIDs))
	for i, id := range req.CandidateIDs {
		candVec, err := h.graph.Vector(ctx, model.ClassCandidate, tenantID, id)
		if err != nil {
			if !model.IsNotFound(err) {
				writeServiceError(w, r, h.logger, err)
				return
			}
			h.logger.Warn("simulate: candidate has no vector, using zero similarity",
				"candidate_id", id,
				"tenant_id", tenantID,
			)
			continue
		}
		sims[i] = clip01(dot(posVec, candVec))
	}

	cfg := learning.DemoConfig{
		CandidateIDs:        req.CandidateIDs,
		Similarities:        sims,
		Events:              req.NumEvents,
		FeedbackProbability: req.FeedbackProbability,
		Bandit:              h.banditCfg,
	}
	if req.Seed != nil {
		cfg.Seed = *req.Seed
	}

	comparison, err := learning.RunDemo(ctx, cfg)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, comparison)
}

// dot assumes unit-norm vectors, so the product is the cosine.
func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
