package mcp

import (
	"context"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/ashita-ai/suisen/internal/model"
)

func (s *Server) registerTools() {
	// search_candidates — filtered and semantic candidate search.
	s.mcpServer.AddTool(
		mcplib.NewTool("search_candidates",
			mcplib.WithDescription(`Search the candidate pool with structured filters and optional semantic similarity.

WHEN TO USE: First step of any sourcing task. Narrow the pool with hard
filters (skills, domains, experience), then optionally rank what's left
by similarity to a natural-language description of the ideal hire.

WHAT YOU GET BACK:
- hits: matching candidates, most similar first when a query was given
- total: how many matched
- degraded: true when the similarity ranking timed out and results are
  filter-only — mention this if ordering matters to the user

EXAMPLE: To staff a CUDA role, call with skills="cuda,triton" and
query="low-level GPU kernel optimization for LLM inference".`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("skills",
				mcplib.Description("Comma-separated skills every hit must have (case-insensitive substring match)"),
			),
			mcplib.WithString("domains",
				mcplib.Description("Comma-separated domains every hit must have"),
			),
			mcplib.WithNumber("min_experience_years",
				mcplib.Description("Minimum years of experience"),
				mcplib.Min(0),
			),
			mcplib.WithString("query",
				mcplib.Description("Optional natural-language description of the ideal candidate; ranks hits by embedding similarity"),
			),
			mcplib.WithNumber("top_k",
				mcplib.Description("Maximum results to return"),
				mcplib.Min(1),
				mcplib.Max(100),
				mcplib.DefaultNumber(10),
			),
		),
		s.handleSearchCandidates,
	)

	// score_candidate — exceptional-talent scoring.
	s.mcpServer.AddTool(
		mcplib.NewTool("score_candidate",
			mcplib.WithDescription(`Score one candidate's exceptional-talent signals, optionally against a position.

WHEN TO USE: When the user asks "how strong is this person" or before
recommending a candidate. Without position_id you get the position-free
signal score; with it you also get position fit and a combined score.

WHAT YOU GET BACK:
- signals: per-signal strengths (research, open source, consistency...)
- exceptional: the position-free score in [0,1]
- position_fit / combined: only when position_id was given
- evidence: human-readable justification lines to quote to the user`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("candidate_id",
				mcplib.Description("The candidate to score"),
				mcplib.Required(),
			),
			mcplib.WithString("position_id",
				mcplib.Description("Optional position to score fit against"),
			),
		),
		s.handleScoreCandidate,
	)

	// match_to_team — rank teams for a candidate.
	s.mcpServer.AddTool(
		mcplib.NewTool("match_to_team",
			mcplib.WithDescription(`Match a candidate to the team that fits them best.

WHEN TO USE: After a candidate looks promising (searched or scored) and
the user wants to know where they would land in the organization.

WHAT YOU GET BACK:
- selected: the chosen team with its score and per-component breakdown
- ranked: every team scored, best first
- reasoning: a sentence you can relay to the user

The selection explores: close-scoring teams may swap between calls by
design, so present the ranking rather than treating the pick as final.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("candidate_id",
				mcplib.Description("The candidate to place"),
				mcplib.Required(),
			),
		),
		s.handleMatchToTeam,
	)

	// process_feedback — close the learning loop.
	s.mcpServer.AddTool(
		mcplib.NewTool("process_feedback",
			mcplib.WithDescription(`Record recruiter feedback about a candidate on a position and update the learning loop.

IMPORTANT: Call this whenever the user reports an interview outcome,
an offer, a rejection, or any judgment about a recommended candidate.
Unrecorded feedback is lost learning.

WHAT TO INCLUDE:
- feedback_text: the user's words, verbatim where possible — the text is
  parsed into a reward signal
- reward: only when you already know the numeric outcome (1.0 = hired /
  strong yes, 0.0 = hard no); skips the text parser

WHAT YOU GET BACK:
- success: whether the bandit was updated
- reward and feedback_type: how the text was interpreted
- note: when success is false, why the update was skipped (the feedback
  is still stored on the candidate either way)`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("candidate_id",
				mcplib.Description("The candidate the feedback is about"),
				mcplib.Required(),
			),
			mcplib.WithString("position_id",
				mcplib.Description("The position the feedback applies to"),
				mcplib.Required(),
			),
			mcplib.WithString("feedback_text",
				mcplib.Description("Free-text feedback, e.g. 'great system design round, some gaps in distributed systems'"),
			),
			mcplib.WithNumber("reward",
				mcplib.Description("Explicit reward in [0,1]; bypasses the text parser"),
				mcplib.Min(0),
				mcplib.Max(1),
			),
		),
		s.handleProcessFeedback,
	)
}

func (s *Server) handleSearchCandidates(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := &model.QueryRequest{
		SimilarityQuery: request.GetString("query", ""),
		TopK:            request.GetInt("top_k", 10),
	}
	if skills := splitList(request.GetString("skills", "")); len(skills) > 0 {
		req.Filters.Skills = &model.SkillFilters{Required: skills}
	}
	if domains := splitList(request.GetString("domains", "")); len(domains) > 0 {
		req.Filters.Domains = &model.DomainFilters{Required: domains}
	}
	if min := request.GetInt("min_experience_years", 0); min > 0 {
		req.Filters.ExperienceYears = &model.RangeFilter{Min: &min}
	}

	res, err := s.engine.QueryCandidates(ctx, s.tenantFrom(ctx), req)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}

	hits := make([]map[string]any, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, compactHit(h))
	}
	return textResult(map[string]any{
		"hits":     hits,
		"total":    res.Total,
		"degraded": res.Degraded,
	}), nil
}

func (s *Server) handleScoreCandidate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	candidateID := request.GetString("candidate_id", "")
	if candidateID == "" {
		return errorResult("candidate_id is required"), nil
	}
	positionID := request.GetString("position_id", "")

	score, err := s.scorer.ScoreCandidate(ctx, s.tenantFrom(ctx), candidateID, positionID)
	if err != nil {
		return errorResult(fmt.Sprintf("score failed: %v", err)), nil
	}
	return textResult(score), nil
}

func (s *Server) handleMatchToTeam(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	candidateID := request.GetString("candidate_id", "")
	if candidateID == "" {
		return errorResult("candidate_id is required"), nil
	}

	res, err := s.matcher.MatchTeam(ctx, s.tenantFrom(ctx), candidateID)
	if err != nil {
		return errorResult(fmt.Sprintf("match failed: %v", err)), nil
	}
	return textResult(res), nil
}

func (s *Server) handleProcessFeedback(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	req := model.FeedbackRequest{
		CandidateID:  request.GetString("candidate_id", ""),
		PositionID:   request.GetString("position_id", ""),
		FeedbackText: request.GetString("feedback_text", ""),
	}
	if req.CandidateID == "" || req.PositionID == "" {
		return errorResult("candidate_id and position_id are required"), nil
	}
	// Rewards live in [0,1]; a negative sentinel means "not provided".
	if reward := request.GetFloat("reward", -1); reward >= 0 {
		req.Reward = &reward
	}

	res, err := s.feedback.Process(ctx, s.tenantFrom(ctx), req)
	if err != nil {
		return errorResult(fmt.Sprintf("feedback failed: %v", err)), nil
	}
	return textResult(res), nil
}

// splitList parses a comma-separated argument into trimmed entries.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
