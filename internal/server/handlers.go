package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/cluster"
	"github.com/ashita-ai/suisen/internal/ctxutil"
	"github.com/ashita-ai/suisen/internal/graph"
	"github.com/ashita-ai/suisen/internal/learning"
	"github.com/ashita-ai/suisen/internal/match"
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/query"
	"github.com/ashita-ai/suisen/internal/screening"
	"github.com/ashita-ai/suisen/internal/service/feedback"
	"github.com/ashita-ai/suisen/internal/talent"
)

// Pinger reports relational store connectivity. *storage.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker reports vector index connectivity. *search.Index
// satisfies it.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	graph               *graph.Graph
	queryEngine         *query.Engine
	matcher             *match.Matcher
	talent              *talent.Scorer
	screener            *screening.Engine
	feedback            *feedback.Service
	clusterer           *cluster.Clusterer
	trace               *learning.Trace
	db                  Pinger
	index               HealthChecker
	banditCfg           bandit.Config
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	openapiSpec         []byte
}

// HandlersDeps holds all dependencies for constructing Handlers.
// Optional (nil-safe): Trace, DB, Index, OpenAPISpec.
type HandlersDeps struct {
	Graph               *graph.Graph
	QueryEngine         *query.Engine
	Matcher             *match.Matcher
	Talent              *talent.Scorer
	Screener            *screening.Engine
	Feedback            *feedback.Service
	Clusterer           *cluster.Clusterer
	Trace               *learning.Trace
	DB                  Pinger
	Index               HealthChecker
	BanditConfig        bandit.Config
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	OpenAPISpec         []byte
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		graph:               d.Graph,
		queryEngine:         d.QueryEngine,
		matcher:             d.Matcher,
		talent:              d.Talent,
		screener:            d.Screener,
		feedback:            d.Feedback,
		clusterer:           d.Clusterer,
		trace:               d.Trace,
		db:                  d.DB,
		index:               d.Index,
		banditCfg:           d.BanditConfig,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		openapiSpec:         d.OpenAPISpec,
	}
}

// tenant reads the tenant resolved by tenantMiddleware.
func tenant(r *http.Request) string {
	return ctxutil.TenantFromContext(r.Context())
}

// page normalizes limit/offset query parameters.
func page(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", 50)
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// HandleHealth handles GET /healthz.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	httpStatus := http.StatusOK

	pgStatus := "not configured"
	if h.db != nil {
		pgStatus = "connected"
		if err := h.db.Ping(r.Context()); err != nil {
			pgStatus = "disconnected"
			status = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
		}
	}

	qdrantStatus := ""
	if h.index != nil {
		qdrantStatus = "connected"
		if err := h.index.Healthy(r.Context()); err != nil {
			// The graph degrades vector writes, so a down index is
			// degraded service, not an outage.
			qdrantStatus = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Qdrant:   qdrantStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// HandleOpenAPISpec serves the embedded OpenAPI specification.
func (h *Handlers) HandleOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	if len(h.openapiSpec) == 0 {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.openapiSpec)
}

// HandleCreateCandidate handles POST /v1/candidates.
func (h *Handlers) HandleCreateCandidate(w http.ResponseWriter, r *http.Request) {
	var c model.Candidate
	if err := decodeJSON(w, r, &c, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	// The resolved tenant always wins over whatever the body claims.
	c.TenantID = tenant(r)

	stored, err := h.graph.AddCandidate(r.Context(), &c)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, stored)
}

// HandleListCandidates handles GET /v1/candidates.
func (h *Handlers) HandleListCandidates(w http.ResponseWriter, r *http.Request) {
	limit, offset := page(r)
	cands, err := h.graph.ListCandidates(r.Context(), tenant(r), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"candidates": cands,
		"count":      len(cands),
	})
}

// HandleGetCandidate handles GET /v1/candidates/{id}.
func (h *Handlers) HandleGetCandidate(w http.ResponseWriter, r *http.Request) {
	c, err := h.graph.GetCandidate(r.Context(), tenant(r), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// HandleUpdateCandidate handles PATCH /v1/candidates/{id}.
func (h *Handlers) HandleUpdateCandidate(w http.ResponseWriter, r *http.Request) {
	var patch graph.CandidatePatch
	if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	updated, err := h.graph.UpdateCandidate(r.Context(), tenant(r), r.PathValue("id"), &patch)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleDeleteCandidate handles DELETE /v1/candidates/{id}.
func (h *Handlers) HandleDeleteCandidate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.graph.DeleteCandidate(r.Context(), tenant(r), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// HandleSimilarCandidates handles GET /v1/candidates/{id}/similar.
// Returns the nearest entities of every class to the candidate.
func (h *Handlers) HandleSimilarCandidates(w http.ResponseWriter, r *http.Request) {
	k := queryInt(r, "k", 5)
	if k <= 0 {
		k = 5
	}
	hits, err := h.graph.SimilarProfiles(r.Context(), model.ClassCandidate, tenant(r), r.PathValue("id"), k)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, r, http.StatusOK, hits)
}
