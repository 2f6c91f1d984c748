package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/cluster"
	"github.com/ashita-ai/suisen/internal/graph"
	"github.com/ashita-ai/suisen/internal/learning"
	"github.com/ashita-ai/suisen/internal/match"
	"github.com/ashita-ai/suisen/internal/query"
	"github.com/ashita-ai/suisen/internal/ratelimit"
	"github.com/ashita-ai/suisen/internal/screening"
	"github.com/ashita-ai/suisen/internal/service/feedback"
	"github.com/ashita-ai/suisen/internal/talent"
)

// Server is the Suisen HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	handlers   *Handlers
	logger     *slog.Logger
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ServerConfig holds all dependencies and configuration for creating a
// Server. Optional fields (nil-safe): Trace, DB, Index, MCPServer,
// RateLimiter, OpenAPISpec.
type ServerConfig struct {
	// Required dependencies.
	Graph       *graph.Graph
	QueryEngine *query.Engine
	Matcher     *match.Matcher
	Talent      *talent.Scorer
	Screener    *screening.Engine
	Feedback    *feedback.Service
	Clusterer   *cluster.Clusterer
	Logger      *slog.Logger

	// Optional dependencies (nil = disabled).
	Trace       *learning.Trace
	DB          Pinger
	Index       HealthChecker
	MCPServer   *mcpserver.MCPServer
	RateLimiter ratelimit.Limiter // nil disables throttling; the caller owns Close.

	// HTTP server settings.
	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	DefaultTenant       string
	BanditConfig        bandit.Config

	// Optional embedded assets.
	OpenAPISpec []byte // Embedded OpenAPI YAML.
}

// New creates a new HTTP server with all routes configured.
func New(cfg ServerConfig) *Server {
	h := NewHandlers(HandlersDeps{
		Graph:               cfg.Graph,
		QueryEngine:         cfg.QueryEngine,
		Matcher:             cfg.Matcher,
		Talent:              cfg.Talent,
		Screener:            cfg.Screener,
		Feedback:            cfg.Feedback,
		Clusterer:           cfg.Clusterer,
		Trace:               cfg.Trace,
		DB:                  cfg.DB,
		Index:               cfg.Index,
		BanditConfig:        cfg.BanditConfig,
		Logger:              cfg.Logger,
		Version:             cfg.Version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		OpenAPISpec:         cfg.OpenAPISpec,
	})

	mux := http.NewServeMux()

	// Candidates.
	mux.HandleFunc("POST /v1/candidates", h.HandleCreateCandidate)
	mux.HandleFunc("GET /v1/candidates", h.HandleListCandidates)
	mux.HandleFunc("GET /v1/candidates/{id}", h.HandleGetCandidate)
	mux.HandleFunc("PATCH /v1/candidates/{id}", h.HandleUpdateCandidate)
	mux.HandleFunc("DELETE /v1/candidates/{id}", h.HandleDeleteCandidate)
	mux.HandleFunc("GET /v1/candidates/{id}/similar", h.HandleSimilarCandidates)

	// Teams.
	mux.HandleFunc("POST /v1/teams", h.HandleCreateTeam)
	mux.HandleFunc("GET /v1/teams", h.HandleListTeams)
	mux.HandleFunc("GET /v1/teams/{id}", h.HandleGetTeam)
	mux.HandleFunc("PATCH /v1/teams/{id}", h.HandleUpdateTeam)
	mux.HandleFunc("POST /v1/teams/{id}/interviewers", h.HandleLinkInterviewer)
	mux.HandleFunc("GET /v1/teams/{id}/members", h.HandleTeamMembers)
	mux.HandleFunc("GET /v1/teams/{id}/positions", h.HandleTeamPositions)

	// Interviewers.
	mux.HandleFunc("POST /v1/interviewers", h.HandleCreateInterviewer)
	mux.HandleFunc("GET /v1/interviewers", h.HandleListInterviewers)
	mux.HandleFunc("GET /v1/interviewers/{id}", h.HandleGetInterviewer)
	mux.HandleFunc("PATCH /v1/interviewers/{id}", h.HandleUpdateInterviewer)

	// Positions.
	mux.HandleFunc("POST /v1/positions", h.HandleCreatePosition)
	mux.HandleFunc("GET /v1/positions", h.HandleListPositions)
	mux.HandleFunc("GET /v1/positions/{id}", h.HandleGetPosition)
	mux.HandleFunc("PATCH /v1/positions/{id}", h.HandleUpdatePosition)
	mux.HandleFunc("POST /v1/positions/{id}/freeze", h.HandleFreezeArms)

	// Matching and scoring.
	mux.HandleFunc("POST /v1/query", h.HandleQueryCandidates)
	mux.HandleFunc("POST /v1/talent/search", h.HandleTalentSearch)
	mux.HandleFunc("GET /v1/candidates/{id}/score", h.HandleScoreCandidate)
	mux.HandleFunc("POST /v1/candidates/{id}/match/team", h.HandleMatchTeam)
	mux.HandleFunc("POST /v1/candidates/{id}/match/interviewer", h.HandleMatchInterviewer)
	mux.HandleFunc("POST /v1/screen", h.HandleScreen)

	// Learning loop.
	mux.HandleFunc("POST /v1/feedback", h.HandleFeedback)
	mux.HandleFunc("POST /v1/clusters/run", h.HandleClusterRun)
	mux.HandleFunc("POST /v1/clusters/assign", h.HandleClusterAssign)
	mux.HandleFunc("POST /v1/clusters/rates", h.HandleClusterRates)
	mux.HandleFunc("GET /v1/learning/metrics", h.HandleLearningMetrics)
	mux.HandleFunc("GET /v1/learning/export", h.HandleLearningExport)
	mux.HandleFunc("POST /v1/simulate", h.HandleSimulate)

	// MCP StreamableHTTP transport.
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", mcpHTTP)
	}

	// OpenAPI spec.
	mux.HandleFunc("GET /openapi.yaml", h.HandleOpenAPISpec)

	// Health.
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	// Middleware chain (outermost executes first):
	// request ID → tenant → tracing → logging → recovery → rate limit → handler.
	// Rate limiting sits innermost so rejections are still logged and the
	// tenant key is already resolved.
	var handler http.Handler = mux
	if cfg.RateLimiter != nil {
		handler = ratelimit.Middleware(cfg.RateLimiter, rateLimitKey, cfg.Logger)(handler)
	}
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = tenantMiddleware(cfg.DefaultTenant, handler)
	handler = requestIDMiddleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		handler:  handler,
		handlers: h,
		logger:   cfg.Logger,
	}
}

// Handlers returns the underlying Handlers, mainly for tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}

// rateLimitKey throttles per tenant and leaves health probes alone so a
// load balancer cannot exhaust the default tenant's budget.
func rateLimitKey(r *http.Request) string {
	if r.URL.Path == "/healthz" {
		return ""
	}
	return ratelimit.TenantKey(r)
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
