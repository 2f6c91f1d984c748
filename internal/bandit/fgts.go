// Package bandit implements the per-position Feel-Good Thompson
// Sampling core.
//
// Each arm carries a Beta(alpha, beta) posterior. Warm construction
// seeds the priors from candidate-position similarity so a fresh bandit
// already prefers plausible candidates; the uniform variant exists for
// A/B comparison against that warm start. Arm order is frozen at
// construction and every index refers to the same candidate for the
// bandit's whole life.
package bandit

import (
	"math"
	"math/rand"
	"sync"

	"github.com/ashita-ai/suisen/internal/model"
)

// Config controls prior strength and exploration. Zero fields select
// defaults.
type Config struct {
	// Kappa scales warm priors: alpha = 1 + kappa*s for similarity s.
	// Larger values make the warm start harder to overturn.
	Kappa float64

	// FGLambda is the feel-good boost: sampled values are raised by
	// FGLambda times the posterior standard deviation, nudging
	// selection toward arms that are still uncertain.
	FGLambda float64

	// Seed fixes the sampling stream for reproducible runs.
	Seed int64
}

// DefaultConfig returns the bandit defaults. Kappa 5 keeps roughly
// five updates of real feedback able to overturn a warm prior.
func DefaultConfig() Config {
	return Config{Kappa: 5, FGLambda: 0.1, Seed: 42}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Kappa <= 0 {
		c.Kappa = def.Kappa
	}
	if c.FGLambda < 0 {
		c.FGLambda = def.FGLambda
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	return c
}

// Arm is one Beta posterior in frozen arm order.
type Arm struct {
	CandidateID string  `json:"candidate_id"`
	Alpha       float64 `json:"alpha"`
	Beta        float64 `json:"beta"`
	Pulls       int     `json:"pulls"`
}

// Mean returns the posterior mean alpha/(alpha+beta).
func (a Arm) Mean() float64 {
	return a.Alpha / (a.Alpha + a.Beta)
}

// StdDev returns the posterior standard deviation.
func (a Arm) StdDev() float64 {
	s := a.Alpha + a.Beta
	return math.Sqrt(a.Alpha * a.Beta / (s * s * (s + 1)))
}

// Bandit is a finite-armed FG-TS instance. A single mutex serializes
// Select and Update, which is the documented per-position contract.
type Bandit struct {
	mu    sync.Mutex
	arms  []Arm
	index map[string]int
	cfg   Config
	rng   *rand.Rand
	warm  bool
}

// NewWarm builds a bandit whose priors are seeded from similarity:
// alpha = 1 + kappa*s, beta = 1 + kappa*(1-s), with s clipped to [0,1].
// candidateIDs fixes the arm order permanently.
func NewWarm(candidateIDs []string, similarities []float64, cfg Config) (*Bandit, error) {
	const op = "bandit.NewWarm"
	if len(candidateIDs) == 0 {
		return nil, model.Validation(op, "a bandit needs at least one arm")
	}
	if len(similarities) != len(candidateIDs) {
		return nil, model.Validation(op, "%d candidates but %d similarities", len(candidateIDs), len(similarities))
	}
	b := newBandit(candidateIDs, cfg)
	b.warm = true
	for i := range b.arms {
		s := clip01(similarities[i])
		b.arms[i].Alpha = 1 + b.cfg.Kappa*s
		b.arms[i].Beta = 1 + b.cfg.Kappa*(1-s)
	}
	return b, nil
}

// NewUniform builds a cold bandit with alpha = beta = 1 on every arm.
// Exists for A/B comparison against the warm start.
func NewUniform(candidateIDs []string, cfg Config) (*Bandit, error) {
	if len(candidateIDs) == 0 {
		return nil, model.Validation("bandit.NewUniform", "a bandit needs at least one arm")
	}
	b := newBandit(candidateIDs, cfg)
	for i := range b.arms {
		b.arms[i].Alpha = 1
		b.arms[i].Beta = 1
	}
	return b, nil
}

func newBandit(candidateIDs []string, cfg Config) *Bandit {
	cfg = cfg.normalized()
	arms := make([]Arm, len(candidateIDs))
	index := make(map[string]int, len(candidateIDs))
	for i, id := range candidateIDs {
		arms[i] = Arm{CandidateID: id}
		if _, dup := index[id]; !dup {
			index[id] = i
		}
	}
	return &Bandit{
		arms:  arms,
		index: index,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // G404: math/rand is acceptable for Thompson sampling (not security).
	}
}

// Select samples every posterior, adds the feel-good boost, and returns
// the winning arm index. Ties keep the lowest index. This is the only
// randomized operation.
func (b *Bandit) Select() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	scores := make([]float64, len(b.arms))
	for i, a := range b.arms {
		theta := sampleBeta(b.rng, a.Alpha, a.Beta)
		scores[i] = theta + b.cfg.FGLambda*a.StdDev()
	}
	return argmax(scores)
}

// Update applies reward r to one arm: alpha += r, beta += 1-r.
// Fractional rewards behave as partial successes; out-of-range rewards
// clamp to [0,1].
func (b *Bandit) Update(arm int, reward float64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if arm < 0 || arm >= len(b.arms) {
		return model.Invariant("bandit.Update", "arm %d out of range [0,%d)", arm, len(b.arms))
	}
	r := clip01(reward)
	b.arms[arm].Alpha += r
	b.arms[arm].Beta += 1 - r
	b.arms[arm].Pulls++
	return nil
}

// UpdateByID resolves the candidate to its frozen arm index and applies
// the reward. Returns the index so callers can report which arm moved.
func (b *Bandit) UpdateByID(candidateID string, reward float64) (int, error) {
	b.mu.Lock()
	i, ok := b.index[candidateID]
	b.mu.Unlock()
	if !ok {
		return -1, model.NotFound("bandit.UpdateByID", "candidate %q is not an arm of this bandit", candidateID)
	}
	return i, b.Update(i, reward)
}

// ArmIndex returns the frozen index for a candidate.
func (b *Bandit) ArmIndex(candidateID string) (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[candidateID]
	return i, ok
}

// ArmIDs returns the frozen arm order.
func (b *Bandit) ArmIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.arms))
	for i, a := range b.arms {
		out[i] = a.CandidateID
	}
	return out
}

// Snapshot copies the current posteriors in frozen arm order.
func (b *Bandit) Snapshot() []Arm {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Arm, len(b.arms))
	copy(out, b.arms)
	return out
}

// Warm reports whether the bandit was built from similarity priors.
func (b *Bandit) Warm() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.warm
}

func argmax(scores []float64) int {
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
