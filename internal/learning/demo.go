package learning

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/model"
)

// demoTargetPrecision is the bar the speedup metric measures against.
const demoTargetPrecision = 0.80

// DemoConfig drives one warm-vs-cold comparison. Similarities are
// candidate-to-position, aligned with CandidateIDs; each simulated step
// pays reward 1 with probability FeedbackProbability times the selected
// arm's similarity.
type DemoConfig struct {
	CandidateIDs        []string
	Similarities        []float64
	Events              int     // default 100
	FeedbackProbability float64 // default 0.7
	Seed                int64   // zero draws a fresh seed
	Bandit              bandit.Config
}

func (c DemoConfig) normalized() DemoConfig {
	if c.Events <= 0 {
		c.Events = 100
	}
	if c.FeedbackProbability <= 0 {
		c.FeedbackProbability = 0.7
	}
	if c.FeedbackProbability > 1 {
		c.FeedbackProbability = 1
	}
	if c.Seed == 0 {
		c.Seed = time.Now().UnixNano()
	}
	return c
}

// DemoReport is one leg's outcome. EventsToTarget is the interaction
// at which running precision first cleared the bar, or -1 if it never
// did. ExpectedRegret sums the payoff gap between the best arm and the
// selected arm over the run; the simulation knows every arm's true
// payoff, so this is exact where the tracker's zero-reward counter is
// only a proxy.
type DemoReport struct {
	EventsToTarget int     `json:"events_to_target_precision"`
	ExpectedRegret float64 `json:"expected_regret"`
	Metrics        Metrics `json:"metrics"`
}

// Comparison is the demo output. Improvements are warm minus cold
// (regret reduction the other way round, so positive numbers always
// favor the warm start).
type Comparison struct {
	Events               int        `json:"events"`
	TargetPrecision      float64    `json:"target_precision"`
	OptimalArm           int        `json:"optimal_arm"`
	OptimalCandidateID   string     `json:"optimal_candidate_id"`
	Warm                 DemoReport `json:"warm"`
	Cold                 DemoReport `json:"cold"`
	SpeedupEvents        int        `json:"speedup_events"`
	RegretReduction      float64    `json:"regret_reduction"`
	PrecisionImprovement float64    `json:"precision_improvement"`
	F1Improvement        float64    `json:"f1_improvement"`
}

// RunDemo plays two bandits against the same simulated feedback
// distribution: one warm-started from the similarities, one uniform.
// The legs run in parallel with independent reward streams and private
// trackers; nothing outside the returned comparison is touched. The
// optimal arm is the highest-similarity candidate, so is_optimal here
// is exact rather than reward-thresholded.
func RunDemo(ctx context.Context, cfg DemoConfig) (*Comparison, error) {
	const op = "learning.RunDemo"
	if len(cfg.CandidateIDs) == 0 {
		return nil, model.Validation(op, "at least one candidate is required")
	}
	if len(cfg.CandidateIDs) != len(cfg.Similarities) {
		return nil, model.Validation(op, "got %d candidates but %d similarities",
			len(cfg.CandidateIDs), len(cfg.Similarities))
	}
	cfg = cfg.normalized()

	oracle := 0
	for i, s := range cfg.Similarities {
		if s > cfg.Similarities[oracle] {
			oracle = i
		}
	}

	var warm, cold DemoReport
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := runLeg(gctx, cfg, oracle, true, cfg.Seed)
		warm = r
		return err
	})
	g.Go(func() error {
		r, err := runLeg(gctx, cfg, oracle, false, cfg.Seed+1)
		cold = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Comparison{
		Events:             cfg.Events,
		TargetPrecision:    demoTargetPrecision,
		OptimalArm:         oracle,
		OptimalCandidateID: cfg.CandidateIDs[oracle],
		Warm:               warm,
		Cold:               cold,
		// A leg that never clears the bar is charged the whole run.
		SpeedupEvents:        eventsOrFull(cold.EventsToTarget, cfg.Events) - eventsOrFull(warm.EventsToTarget, cfg.Events),
		RegretReduction:      cold.ExpectedRegret - warm.ExpectedRegret,
		PrecisionImprovement: warm.Metrics.Precision - cold.Metrics.Precision,
		F1Improvement:        warm.Metrics.F1 - cold.Metrics.F1,
	}, nil
}

func runLeg(ctx context.Context, cfg DemoConfig, oracle int, warmStart bool, seed int64) (DemoReport, error) {
	bcfg := cfg.Bandit
	bcfg.Seed = seed + 2

	var (
		b   *bandit.Bandit
		err error
	)
	if warmStart {
		b, err = bandit.NewWarm(cfg.CandidateIDs, cfg.Similarities, bcfg)
	} else {
		b, err = bandit.NewUniform(cfg.CandidateIDs, bcfg)
	}
	if err != nil {
		return DemoReport{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	tracker := NewTracker(nil, nil)
	reached := -1
	regret := 0.0
	pBest := payoff(cfg, oracle)

	for i := 0; i < cfg.Events; i++ {
		if err := ctx.Err(); err != nil {
			return DemoReport{}, fmt.Errorf("learning demo: cancelled: %w", err)
		}
		arm := b.Select()
		p := payoff(cfg, arm)
		regret += pBest - p

		reward := 0.0
		sentiment := model.FeedbackNegative
		if rng.Float64() < p {
			reward = 1
			sentiment = model.FeedbackPositive
		}
		if err := b.Update(arm, reward); err != nil {
			return DemoReport{}, err
		}
		in := tracker.Record(ctx, Event{
			CandidateID:  cfg.CandidateIDs[arm],
			Arm:          arm,
			Reward:       reward,
			IsOptimal:    arm == oracle,
			FeedbackType: sentiment,
		})
		if reached < 0 && in.Metrics.TruePositives > 0 && in.Metrics.Precision >= demoTargetPrecision {
			reached = in.Seq
		}
	}
	return DemoReport{EventsToTarget: reached, ExpectedRegret: regret, Metrics: tracker.Metrics()}, nil
}

// payoff is the true reward probability of an arm.
func payoff(cfg DemoConfig, arm int) float64 {
	p := cfg.FeedbackProbability * cfg.Similarities[arm]
	if p > 1 {
		p = 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

func eventsOrFull(n, full int) int {
	if n < 0 {
		return full
	}
	return n
}
