// Package learning tracks how well bandit-driven selection is working.
//
// A Tracker keeps running precision/recall/regret counters and an
// append-only interaction history; every recorded interaction carries
// the metric snapshot taken right after it, so an exported history
// replays the learning curve without recomputation. The warm-vs-cold
// demo runs two bandits over an identical simulated feedback stream and
// reports how much the warm start buys.
package learning

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashita-ai/suisen/internal/model"
)

// Event is one bandit update as seen by the tracker. IsOptimal is the
// caller's judgment: the feedback loop uses the reward threshold, the
// demo uses the true best arm.
type Event struct {
	TenantID     string
	PositionID   string
	CandidateID  string
	Arm          int
	Reward       float64
	IsOptimal    bool
	FeedbackType model.FeedbackType
}

// Interaction is one dated history entry with the metrics as they
// stood after it was applied.
type Interaction struct {
	Seq          int                `json:"interaction"`
	TenantID     string             `json:"tenant_id,omitempty"`
	PositionID   string             `json:"position_id,omitempty"`
	CandidateID  string             `json:"candidate_id,omitempty"`
	Arm          int                `json:"arm"`
	Reward       float64            `json:"reward"`
	IsOptimal    bool               `json:"is_optimal"`
	FeedbackType model.FeedbackType `json:"feedback_type,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
	Metrics      Metrics            `json:"metrics"`
}

// Metrics is a point-in-time summary. A positive is any interaction
// with reward > 0; a true positive is a positive on the optimal arm; a
// false negative is zero reward on the optimal arm. Cumulative regret
// counts those optimal-arm-zero-reward events.
type Metrics struct {
	Interactions     int     `json:"interactions"`
	Positives        int     `json:"positives"`
	Negatives        int     `json:"negatives"`
	TruePositives    int     `json:"true_positives"`
	FalsePositives   int     `json:"false_positives"`
	FalseNegatives   int     `json:"false_negatives"`
	Precision        float64 `json:"precision"`
	Recall           float64 `json:"recall"`
	F1               float64 `json:"f1"`
	ResponseRate     float64 `json:"response_rate"`
	AverageReward    float64 `json:"average_reward"`
	CumulativeRegret float64 `json:"cumulative_regret"`
}

// Tracker accumulates learning metrics. All methods are safe for
// concurrent use; history grows monotonically and is never rewritten.
type Tracker struct {
	mu        sync.Mutex
	seq       int
	positives int
	negatives int
	tp        int
	fp        int
	fn        int
	regret    float64
	sumReward float64
	history   []Interaction

	trace  *Trace
	logger *slog.Logger
}

// NewTracker builds a tracker. trace may be nil for a purely in-memory
// tracker (the demo runs one per leg); when set, every interaction is
// also appended to the trace database best-effort.
func NewTracker(trace *Trace, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{trace: trace, logger: logger}
}

// Record applies one event and returns the history entry it produced.
func (t *Tracker) Record(ctx context.Context, ev Event) Interaction {
	t.mu.Lock()

	t.seq++
	if ev.Reward > 0 {
		t.positives++
		if ev.IsOptimal {
			t.tp++
		} else {
			t.fp++
		}
	} else {
		t.negatives++
		if ev.IsOptimal {
			t.fn++
			t.regret++
		}
	}
	t.sumReward += ev.Reward

	in := Interaction{
		Seq:          t.seq,
		TenantID:     ev.TenantID,
		PositionID:   ev.PositionID,
		CandidateID:  ev.CandidateID,
		Arm:          ev.Arm,
		Reward:       ev.Reward,
		IsOptimal:    ev.IsOptimal,
		FeedbackType: ev.FeedbackType,
		Timestamp:    time.Now().UTC(),
		Metrics:      t.metricsLocked(),
	}
	t.history = append(t.history, in)
	t.mu.Unlock()

	if t.trace != nil {
		if err := t.trace.Append(ctx, in); err != nil {
			t.logger.Warn("learning trace append failed",
				"tenant_id", ev.TenantID,
				"position_id", ev.PositionID,
				"error", err)
		}
	}
	return in
}

// Metrics returns the current snapshot.
func (t *Tracker) Metrics() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metricsLocked()
}

// History returns a copy of the full interaction history in order.
func (t *Tracker) History() []Interaction {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Interaction(nil), t.history...)
}

func (t *Tracker) metricsLocked() Metrics {
	m := Metrics{
		Interactions:     t.seq,
		Positives:        t.positives,
		Negatives:        t.negatives,
		TruePositives:    t.tp,
		FalsePositives:   t.fp,
		FalseNegatives:   t.fn,
		CumulativeRegret: t.regret,
	}
	m.Precision = ratio(t.tp, t.tp+t.fp)
	m.Recall = ratio(t.tp, t.tp+t.fn)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if t.seq > 0 {
		m.ResponseRate = float64(t.positives) / float64(t.seq)
		m.AverageReward = t.sumReward / float64(t.seq)
	}
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
