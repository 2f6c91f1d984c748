// Package feedback closes the learning loop: recruiter text becomes a
// reward, the reward moves the right bandit arm, and the interaction
// lands in the learning tracker and the candidate's history.
//
// The loop never drops feedback. A parse failure reads as neutral, and
// when the bandit update cannot happen — no candidate pool, candidate
// missing from the frozen arm snapshot, warm start failed — the
// feedback is still appended to the candidate's history with an
// explanatory note and the caller gets a failure result, not an error.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/learning"
	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/telemetry"
)

// optimalReward is the reward threshold above which an interaction
// counts as having picked an optimal arm, for regret accounting.
const optimalReward = 0.7

var feedbackMeter = telemetry.Meter("suisen/feedback")

// Config carries the bandit parameters used for lazy warm starts.
type Config struct {
	Bandit bandit.Config
}

// DefaultConfig returns the feedback loop defaults.
func DefaultConfig() Config {
	return Config{Bandit: bandit.DefaultConfig()}
}

// Graph is the slice of the knowledge graph the loop needs.
type Graph interface {
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
	GetPosition(ctx context.Context, tenantID, id string) (*model.Position, error)
	AppendFeedback(ctx context.Context, tenantID, id string, rec model.FeedbackRecord) (*model.Candidate, error)
	FreezeArms(ctx context.Context, tenantID, positionID string, candidateIDs []string) ([]string, error)
	Vector(ctx context.Context, class model.Class, tenantID, profileID string) ([]float32, error)
}

// Service processes feedback for one deployment. Bandits live in the
// registry keyed by (tenant, position); the tracker is the process-wide
// aggregate.
type Service struct {
	graph   Graph
	parser  Parser
	bandits *bandit.Registry
	tracker *learning.Tracker
	logger  *slog.Logger
	cfg     Config
}

// New builds the service. A nil parser falls back to the keyword
// parser, so deployments without an LLM still get directional rewards.
func New(g Graph, parser Parser, bandits *bandit.Registry, tracker *learning.Tracker, logger *slog.Logger, cfg Config) *Service {
	if parser == nil {
		parser = KeywordParser{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if bandits == nil {
		bandits = bandit.NewRegistry()
	}
	if tracker == nil {
		tracker = learning.NewTracker(nil, logger)
	}
	return &Service{graph: g, parser: parser, bandits: bandits, tracker: tracker, logger: logger, cfg: cfg}
}

// Tracker exposes the aggregate tracker for the metrics and export
// surfaces.
func (s *Service) Tracker() *learning.Tracker {
	return s.tracker
}

// Result is the outcome of one processed piece of feedback. Success
// means the bandit was updated; when it is false, Note says why and the
// feedback has still been written to the candidate's history.
type Result struct {
	Success      bool               `json:"success"`
	CandidateID  string             `json:"candidate_id"`
	PositionID   string             `json:"position_id"`
	Reward       float64            `json:"reward"`
	FeedbackType model.FeedbackType `json:"feedback_type"`
	Note         string             `json:"note,omitempty"`
	Learning     *learning.Metrics  `json:"learning_metrics,omitempty"`
}

// Process parses one piece of recruiter feedback and applies it.
// A caller-supplied reward on the request bypasses the parser entirely.
func (s *Service) Process(ctx context.Context, tenantID string, req model.FeedbackRequest) (*Result, error) {
	const op = "feedback.Process"
	if req.CandidateID == "" || req.PositionID == "" {
		return nil, model.Validation(op, "candidate_id and position_id are required")
	}

	var parsed Parsed
	if req.Reward != nil {
		r := clip01(*req.Reward)
		parsed = Parsed{Sentiment: typeForReward(r), Reward: r, Confidence: 1}
	} else {
		if err := model.ValidateFeedbackText(req.FeedbackText); err != nil {
			return nil, err
		}
		var err error
		parsed, err = s.parser.Parse(ctx, req.FeedbackText)
		if err != nil {
			s.logger.Warn("feedback parse failed, treating as neutral",
				"candidate_id", req.CandidateID,
				"position_id", req.PositionID,
				"error", err)
			parsed = Parsed{Sentiment: model.FeedbackNeutral, Reward: 0.5}
		}
	}

	res, err := s.apply(ctx, tenantID, req, parsed)
	if err == nil {
		if counter, cerr := feedbackMeter.Int64Counter("suisen.feedback.events"); cerr == nil {
			counter.Add(ctx, 1, otelmetric.WithAttributes(
				attribute.String("sentiment", string(res.FeedbackType)),
				attribute.Bool("applied", res.Success),
			))
		}
	}
	return res, err
}

// UpdateFromReward applies a numeric reward directly, skipping the
// parse step. Everything downstream — bandit, tracker, history — runs
// exactly as for parsed feedback.
func (s *Service) UpdateFromReward(ctx context.Context, tenantID, candidateID, positionID string, reward float64) (*Result, error) {
	r := reward
	return s.Process(ctx, tenantID, model.FeedbackRequest{
		CandidateID: candidateID,
		PositionID:  positionID,
		Reward:      &r,
	})
}

func (s *Service) apply(ctx context.Context, tenantID string, req model.FeedbackRequest, parsed Parsed) (*Result, error) {
	if _, err := s.graph.GetCandidate(ctx, tenantID, req.CandidateID); err != nil {
		return nil, err
	}
	pos, err := s.graph.GetPosition(ctx, tenantID, req.PositionID)
	if err != nil {
		return nil, err
	}

	arms := pos.ArmCandidates()
	if len(arms) == 0 {
		return s.failWith(ctx, tenantID, req, parsed,
			"position has no candidate pool; bandit not updated")
	}

	b, err := s.bandits.GetOrCreate(tenantID, pos.ID, func() (*bandit.Bandit, error) {
		return s.buildWarm(ctx, tenantID, pos)
	})
	if err != nil {
		s.logger.Warn("bandit warm start failed",
			"position_id", pos.ID,
			"error", err)
		return s.failWith(ctx, tenantID, req, parsed,
			fmt.Sprintf("bandit update failed: %v", err))
	}

	// The frozen snapshot decides arm membership, not the live
	// position row.
	idx, ok := b.ArmIndex(req.CandidateID)
	if !ok {
		return s.failWith(ctx, tenantID, req, parsed,
			fmt.Sprintf("candidate %q is not in the position's arm snapshot; bandit not updated", req.CandidateID))
	}

	if err := b.Update(idx, parsed.Reward); err != nil {
		return s.failWith(ctx, tenantID, req, parsed,
			fmt.Sprintf("bandit update failed: %v", err))
	}

	in := s.tracker.Record(ctx, learning.Event{
		TenantID:     tenantID,
		PositionID:   pos.ID,
		CandidateID:  req.CandidateID,
		Arm:          idx,
		Reward:       parsed.Reward,
		IsOptimal:    parsed.Reward >= optimalReward,
		FeedbackType: parsed.Sentiment,
	})

	if err := s.persist(ctx, tenantID, req, parsed, ""); err != nil {
		return nil, err
	}

	return &Result{
		Success:      true,
		CandidateID:  req.CandidateID,
		PositionID:   req.PositionID,
		Reward:       parsed.Reward,
		FeedbackType: parsed.Sentiment,
		Learning:     &in.Metrics,
	}, nil
}

// buildWarm freezes the position's candidate list and warm-starts a
// bandit from candidate-position similarity. A missing position vector
// degrades to a uniform start; a missing candidate vector seeds that
// one arm at zero.
func (s *Service) buildWarm(ctx context.Context, tenantID string, pos *model.Position) (*bandit.Bandit, error) {
	frozen, err := s.graph.FreezeArms(ctx, tenantID, pos.ID, pos.ArmCandidates())
	if err != nil {
		return nil, err
	}

	posVec, err := s.graph.Vector(ctx, model.ClassPosition, tenantID, pos.ID)
	if err != nil {
		s.logger.Warn("position vector unavailable, starting uniform bandit",
			"position_id", pos.ID,
			"error", err)
		return bandit.NewUniform(frozen, s.cfg.Bandit)
	}

	sims := make([]float64, len(frozen))
	for i, id := range frozen {
		cv, err := s.graph.Vector(ctx, model.ClassCandidate, tenantID, id)
		if err != nil {
			s.logger.Warn("candidate vector unavailable, seeding arm at zero",
				"candidate_id", id,
				"error", err)
			continue
		}
		sims[i] = cosine(posVec, cv)
	}
	return bandit.NewWarm(frozen, sims, s.cfg.Bandit)
}

// failWith persists the feedback with an explanatory note and returns
// a non-success result. Only a failed history write is an error.
func (s *Service) failWith(ctx context.Context, tenantID string, req model.FeedbackRequest, parsed Parsed, note string) (*Result, error) {
	if err := s.persist(ctx, tenantID, req, parsed, note); err != nil {
		return nil, err
	}
	return &Result{
		CandidateID:  req.CandidateID,
		PositionID:   req.PositionID,
		Reward:       parsed.Reward,
		FeedbackType: parsed.Sentiment,
		Note:         note,
	}, nil
}

func (s *Service) persist(ctx context.Context, tenantID string, req model.FeedbackRequest, parsed Parsed, note string) error {
	_, err := s.graph.AppendFeedback(ctx, tenantID, req.CandidateID, model.FeedbackRecord{
		PositionID:   req.PositionID,
		FeedbackText: req.FeedbackText,
		Reward:       parsed.Reward,
		FeedbackType: parsed.Sentiment,
		Note:         note,
	})
	return err
}

// typeForReward classifies a caller-supplied numeric reward so direct
// updates still record a sentiment.
func typeForReward(r float64) model.FeedbackType {
	switch {
	case r >= optimalReward:
		return model.FeedbackPositive
	case r <= 1-optimalReward:
		return model.FeedbackNegative
	default:
		return model.FeedbackNeutral
	}
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
