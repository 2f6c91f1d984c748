package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	// evaluate-candidate — walks the copilot through the scoring workflow.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("evaluate-candidate",
			mcplib.WithPromptDescription("Evaluate one candidate end to end: score, team fit, and what to probe in the screen"),
			mcplib.WithArgument("candidate_id",
				mcplib.ArgumentDescription("The candidate to evaluate"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("position_id",
				mcplib.ArgumentDescription("Optional position to evaluate fit against"),
			),
		),
		s.handleEvaluateCandidatePrompt,
	)

	// close-the-loop — reminds the copilot to record interview outcomes.
	s.mcpServer.AddPrompt(
		mcplib.NewPrompt("close-the-loop",
			mcplib.WithPromptDescription("Record an interview outcome so future recommendations improve"),
			mcplib.WithArgument("candidate_id",
				mcplib.ArgumentDescription("The candidate the outcome is about"),
				mcplib.RequiredArgument(),
			),
			mcplib.WithArgument("position_id",
				mcplib.ArgumentDescription("The position the candidate was considered for"),
				mcplib.RequiredArgument(),
			),
		),
		s.handleCloseTheLoopPrompt,
	)
}

func (s *Server) handleEvaluateCandidatePrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	candidateID := request.Params.Arguments["candidate_id"]
	if candidateID == "" {
		return nil, fmt.Errorf("candidate_id argument is required")
	}
	positionID := request.Params.Arguments["position_id"]

	positionClause := ""
	if positionID != "" {
		positionClause = fmt.Sprintf(` and position_id=%q`, positionID)
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Evaluate candidate %s", candidateID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Evaluate candidate %q step by step:

1. READ the profile resource suisen://candidates/%s to see skills,
   domains, and any prior feedback.

2. CALL score_candidate with candidate_id=%q%s.
   Quote the evidence lines when you summarize strengths; do not invent
   qualifications the signals don't support.

3. CALL match_to_team with candidate_id=%q to see where they would land.
   Present the ranked list, not just the selected team — close scores
   mean the placement is a judgment call for the user.

4. SUMMARIZE: the score, the best-fit team, and two or three specific
   things a phone screen should probe (gaps between claimed skills and
   evidence are the best probes).`,
						candidateID, candidateID, candidateID, positionClause, candidateID),
				},
			},
		},
	}, nil
}

func (s *Server) handleCloseTheLoopPrompt(ctx context.Context, request mcplib.GetPromptRequest) (*mcplib.GetPromptResult, error) {
	candidateID := request.Params.Arguments["candidate_id"]
	positionID := request.Params.Arguments["position_id"]
	if candidateID == "" || positionID == "" {
		return nil, fmt.Errorf("candidate_id and position_id arguments are required")
	}

	return &mcplib.GetPromptResult{
		Description: fmt.Sprintf("Record the outcome for candidate %s on position %s", candidateID, positionID),
		Messages: []mcplib.PromptMessage{
			{
				Role: mcplib.RoleUser,
				Content: mcplib.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`The user has an outcome to report for candidate %q on position %q.

1. ASK for the outcome in their own words if they haven't given it yet.

2. CALL process_feedback with candidate_id=%q, position_id=%q, and
   feedback_text set to their words as close to verbatim as possible.
   Only pass an explicit reward when the outcome is unambiguous
   (hired = 1.0, rejected outright = 0.0).

3. CHECK the result: if success is false, relay the note — the feedback
   was stored but the recommendation model was not updated, usually
   because the candidate is not in the position's frozen pool.`,
						candidateID, positionID, candidateID, positionID),
				},
			},
		},
	}, nil
}
