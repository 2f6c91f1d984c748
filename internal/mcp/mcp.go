// Package mcp implements the Model Context Protocol server for Suisen.
//
// The MCP server exposes the matching engine to recruiter copilots:
// tools for searching and scoring candidates, matching them to teams,
// and closing the learning loop with interview feedback. It rides the
// same service layer as the HTTP API and is mounted by the HTTP server
// at /mcp, so the tenant resolved by the HTTP middleware flows into
// tool handlers through the request context.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ashita-ai/suisen/internal/ctxutil"
	"github.com/ashita-ai/suisen/internal/match"
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/query"
	"github.com/ashita-ai/suisen/internal/service/feedback"
	"github.com/ashita-ai/suisen/internal/talent"
)

// CandidateReader is the slice of the knowledge graph the resource
// handlers need. *graph.Graph satisfies it.
type CandidateReader interface {
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
}

// Server wraps the MCP server with Suisen's service layer.
type Server struct {
	mcpServer *mcpserver.MCPServer
	graph     CandidateReader
	engine    *query.Engine
	scorer    *talent.Scorer
	matcher   *match.Matcher
	feedback  *feedback.Service
	logger    *slog.Logger

	// defaultTenant covers transports that carry no tenant on the
	// context, such as stdio.
	defaultTenant string
}

// New creates and configures a new MCP server with all resources,
// tools, and prompts.
func New(graph CandidateReader, engine *query.Engine, scorer *talent.Scorer, matcher *match.Matcher, fb *feedback.Service, defaultTenant string, logger *slog.Logger, version string) *Server {
	s := &Server{
		graph:         graph,
		engine:        engine,
		scorer:        scorer,
		matcher:       matcher,
		feedback:      fb,
		logger:        logger,
		defaultTenant: defaultTenant,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"suisen",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(true),
	)

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// tenantFrom resolves the tenant for a tool call: the request context
// when the HTTP middleware put one there, the default otherwise.
func (s *Server) tenantFrom(ctx context.Context) string {
	if t := ctxutil.TenantFromContext(ctx); t != "" {
		return t
	}
	return s.defaultTenant
}

func (s *Server) registerResources() {
	// suisen://learning/metrics — the live learning-loop metrics.
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"suisen://learning/metrics",
			"Learning Metrics",
			mcplib.WithResourceDescription("Aggregate precision, recall, F1, and regret for the feedback loop"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleLearningMetrics,
	)

	// suisen://candidates/{id} — one candidate's full profile.
	s.mcpServer.AddResourceTemplate(
		mcplib.NewResourceTemplate(
			"suisen://candidates/{id}",
			"Candidate Profile",
			mcplib.WithTemplateDescription("Full stored profile for one candidate"),
			mcplib.WithTemplateMIMEType("application/json"),
		),
		s.handleCandidateProfile,
	)
}

func (s *Server) handleLearningMetrics(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	data, err := json.MarshalIndent(s.feedback.Tracker().Metrics(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal metrics: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      "suisen://learning/metrics",
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCandidateProfile(ctx context.Context, request mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	uri := request.Params.URI
	id := strings.TrimPrefix(uri, "suisen://candidates/")
	if id == "" || id == uri {
		return nil, fmt.Errorf("mcp: invalid candidate URI: %s", uri)
	}

	cand, err := s.graph.GetCandidate(ctx, s.tenantFrom(ctx), id)
	if err != nil {
		return nil, fmt.Errorf("mcp: candidate profile: %w", err)
	}

	data, err := json.MarshalIndent(cand, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcp: marshal candidate: %w", err)
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// textResult wraps pretty-printed JSON in a tool result.
func textResult(v any) *mcplib.CallToolResult {
	data, _ := json.MarshalIndent(v, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(data)},
		},
	}
}

// errorResult returns a tool-level error. MCP distinguishes protocol
// errors (returned as Go errors) from tool failures the model should
// see and react to; validation and service failures are the latter.
func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
