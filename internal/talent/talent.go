// Package talent scores candidates for exceptional multi-platform
// signal and ranks them against a position.
//
// Four platform signals (research, open source, public audience, phone
// screen) ramp from a floor to a saturation point, blend with a
// cross-platform composite, and pass through multiplicative strictness
// gates that collapse the score when too few signals are strong or any
// is weak. Supplying a position adds a fit factor; the product of the
// two ranks exceptional-talent search results.
package talent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/ashita-ai/suisen/internal/model"
)

// DefaultMinScore is the exceptional-talent search floor when the
// caller does not supply one.
const DefaultMinScore = 0.85

const (
	defaultTopK = 10
	maxTopK     = 1000
)

// Thresholds is the tunable table behind the platform signals and
// gates. Zero fields fall back to the defaults.
type Thresholds struct {
	// ArxivMinPapers is the paper count below which the ramp scores 0;
	// ArxivFullPapers saturates it. ArxivMinContributions research
	// contributions earn full depth credit; ArxivFullAreas research
	// areas earn full breadth credit.
	ArxivMinPapers        int
	ArxivFullPapers       int
	ArxivMinContributions int
	ArxivFullAreas        int

	GithubMinStars      int
	GithubFullStars     int
	GithubMinRepos      int
	GithubFullRepos     int
	GithubFullLanguages int

	XMinFollowers  int
	XFullFollowers int
	XMinEngagement float64

	// Phone sub-signal floors; each ramps linearly from its floor to 1.
	PhoneMinTechnicalDepth float64
	PhoneMinProblemSolving float64
	PhoneMinCommunication  float64
	PhoneMinImplementation float64

	// StrongSignal and WeakSignal are the gate cutoffs over the four
	// core signals.
	StrongSignal float64
	WeakSignal   float64

	// FitGate is the level both the exceptional score and the position
	// fit must reach to avoid the combined-score penalty.
	FitGate float64
}

// DefaultThresholds returns the standard table.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ArxivMinPapers:        25,
		ArxivFullPapers:       100,
		ArxivMinContributions: 5,
		ArxivFullAreas:        5,

		GithubMinStars:      20000,
		GithubFullStars:     200000,
		GithubMinRepos:      30,
		GithubFullRepos:     50,
		GithubFullLanguages: 5,

		XMinFollowers:  50000,
		XFullFollowers: 2000000,
		XMinEngagement: 0.08,

		PhoneMinTechnicalDepth: 0.92,
		PhoneMinProblemSolving: 0.90,
		PhoneMinCommunication:  0.90,
		PhoneMinImplementation: 0.85,

		StrongSignal: 0.75,
		WeakSignal:   0.40,
		FitGate:      0.85,
	}
}

func (t Thresholds) normalized() Thresholds {
	def := DefaultThresholds()
	if t.ArxivMinPapers <= 0 {
		t.ArxivMinPapers = def.ArxivMinPapers
	}
	if t.ArxivFullPapers <= t.ArxivMinPapers {
		t.ArxivFullPapers = max(def.ArxivFullPapers, t.ArxivMinPapers)
	}
	if t.ArxivMinContributions <= 0 {
		t.ArxivMinContributions = def.ArxivMinContributions
	}
	if t.ArxivFullAreas <= 0 {
		t.ArxivFullAreas = def.ArxivFullAreas
	}
	if t.GithubMinStars <= 0 {
		t.GithubMinStars = def.GithubMinStars
	}
	if t.GithubFullStars <= t.GithubMinStars {
		t.GithubFullStars = max(def.GithubFullStars, t.GithubMinStars)
	}
	if t.GithubMinRepos <= 0 {
		t.GithubMinRepos = def.GithubMinRepos
	}
	if t.GithubFullRepos <= 0 {
		t.GithubFullRepos = def.GithubFullRepos
	}
	if t.GithubFullLanguages <= 0 {
		t.GithubFullLanguages = def.GithubFullLanguages
	}
	if t.XMinFollowers <= 0 {
		t.XMinFollowers = def.XMinFollowers
	}
	if t.XFullFollowers <= t.XMinFollowers {
		t.XFullFollowers = max(def.XFullFollowers, t.XMinFollowers)
	}
	if t.XMinEngagement <= 0 {
		t.XMinEngagement = def.XMinEngagement
	}
	if t.PhoneMinTechnicalDepth <= 0 || t.PhoneMinTechnicalDepth >= 1 {
		t.PhoneMinTechnicalDepth = def.PhoneMinTechnicalDepth
	}
	if t.PhoneMinProblemSolving <= 0 || t.PhoneMinProblemSolving >= 1 {
		t.PhoneMinProblemSolving = def.PhoneMinProblemSolving
	}
	if t.PhoneMinCommunication <= 0 || t.PhoneMinCommunication >= 1 {
		t.PhoneMinCommunication = def.PhoneMinCommunication
	}
	if t.PhoneMinImplementation <= 0 || t.PhoneMinImplementation >= 1 {
		t.PhoneMinImplementation = def.PhoneMinImplementation
	}
	if t.StrongSignal <= 0 || t.StrongSignal >= 1 {
		t.StrongSignal = def.StrongSignal
	}
	if t.WeakSignal <= 0 || t.WeakSignal >= t.StrongSignal {
		t.WeakSignal = def.WeakSignal
	}
	if t.FitGate <= 0 || t.FitGate >= 1 {
		t.FitGate = def.FitGate
	}
	return t
}

// Graph is the slice of the knowledge graph the scorer reads.
// *graph.Graph satisfies it.
type Graph interface {
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
	GetPosition(ctx context.Context, tenantID, id string) (*model.Position, error)
	Candidates(ctx context.Context, tenantID string) ([]*model.Candidate, error)
	Vector(ctx context.Context, class model.Class, tenantID, profileID string) ([]float32, error)
}

// Scorer computes exceptional-talent scores.
type Scorer struct {
	graph  Graph
	logger *slog.Logger
	th     Thresholds
}

// New builds a Scorer.
func New(g Graph, logger *slog.Logger, th Thresholds) *Scorer {
	return &Scorer{graph: g, logger: logger, th: th.normalized()}
}

// Thresholds returns the normalized table the scorer runs with.
func (s *Scorer) Thresholds() Thresholds { return s.th }

// Score is one candidate's scoring record. PositionFit and Combined are
// set only when the score was computed against a position.
type Score struct {
	CandidateID    string   `json:"candidate_id"`
	PositionID     string   `json:"position_id,omitempty"`
	Signals        Signals  `json:"signals"`
	Base           float64  `json:"base"`
	Exceptional    float64  `json:"exceptional"`
	PositionFit    *float64 `json:"position_fit,omitempty"`
	Combined       *float64 `json:"combined,omitempty"`
	Evidence       Evidence `json:"evidence"`
	WhyExceptional string   `json:"why_exceptional"`
}

// Final is the ranking score: Combined when the record was scored
// against a position, Exceptional otherwise.
func (s *Score) Final() float64 {
	if s.Combined != nil {
		return *s.Combined
	}
	return s.Exceptional
}

// ScoreCandidate scores one candidate. An empty positionID gives a
// position-free score with no fit factor.
func (s *Scorer) ScoreCandidate(ctx context.Context, tenantID, candidateID, positionID string) (*Score, error) {
	cand, err := s.graph.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	score := s.score(cand)
	if positionID == "" {
		return score, nil
	}
	pos, err := s.graph.GetPosition(ctx, tenantID, positionID)
	if err != nil {
		return nil, err
	}
	posVec := s.vectorOrNil(ctx, model.ClassPosition, tenantID, positionID)
	s.attachFit(ctx, score, cand, pos, posVec)
	return score, nil
}

// FindExceptional ranks the tenant's candidates against the position by
// combined score and returns those at or above minScore. A minScore of
// 0 means DefaultMinScore.
func (s *Scorer) FindExceptional(ctx context.Context, tenantID, positionID string, minScore float64, topK int) ([]Score, error) {
	if minScore <= 0 {
		minScore = DefaultMinScore
	}
	if topK <= 0 {
		topK = defaultTopK
	} else if topK > maxTopK {
		topK = maxTopK
	}

	pos, err := s.graph.GetPosition(ctx, tenantID, positionID)
	if err != nil {
		return nil, err
	}
	cands, err := s.graph.Candidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	posVec := s.vectorOrNil(ctx, model.ClassPosition, tenantID, positionID)

	var out []Score
	for _, c := range cands {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("talent: search cancelled: %w", err)
		}
		score := s.score(c)
		s.attachFit(ctx, score, c, pos, posVec)
		if score.Final() >= minScore {
			out = append(out, *score)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Final() > out[j].Final() })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *Scorer) score(c *model.Candidate) *Score {
	sig := signalsFor(c, s.th)
	ev := evidenceFor(c)
	base := baseScore(sig)
	return &Score{
		CandidateID:    c.ID,
		Signals:        sig,
		Base:           base,
		Exceptional:    applyGates(base, sig, s.th),
		Evidence:       ev,
		WhyExceptional: whyExceptional(sig, ev, s.th),
	}
}

// attachFit folds the position into the record. Missing vectors degrade
// the similarity term to zero rather than failing the score.
func (s *Scorer) attachFit(ctx context.Context, score *Score, c *model.Candidate, p *model.Position, posVec []float32) {
	sim := 0.0
	if posVec != nil {
		if candVec := s.vectorOrNil(ctx, model.ClassCandidate, c.TenantID, c.ID); candVec != nil {
			sim = cosine(candVec, posVec)
		}
	}
	fit := positionFit(c, p, sim)
	combined := score.Exceptional * fit
	if score.Exceptional < s.th.FitGate || fit < s.th.FitGate {
		combined *= fitPenalty
	}
	score.PositionID = p.ID
	score.PositionFit = &fit
	score.Combined = &combined
}

func (s *Scorer) vectorOrNil(ctx context.Context, class model.Class, tenantID, id string) []float32 {
	vec, err := s.graph.Vector(ctx, class, tenantID, id)
	if err != nil {
		s.logger.Warn("vector unavailable, scoring similarity as zero",
			"class", class,
			"profile_id", id,
			"error", err,
		)
		return nil
	}
	return vec
}
