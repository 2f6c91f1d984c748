// Package screening makes layered phone-screen decisions.
//
// A screen passes through gates in order: must-have skills and
// seniority, vector similarity, outlier detection, extracted-info
// scoring, and a bandit-backed confidence read. Early gates fail fast
// with zero confidence; later layers blend into a weighted final score
// compared against the confidence threshold. The outcome is always a
// decision record, never a panic or a bare error for a failed screen.
package screening

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/model"
)

// Decision outcomes.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Final-score weights and the per-flag penalty.
const (
	screenWeightSimilarity = 0.40
	screenWeightBandit     = 0.30
	screenWeightExtracted  = 0.20

	flagPenalty    = 0.05
	maxFlagPenalty = 0.20
)

// Extracted-info weights; absent fields score neutral.
const (
	extWeightMotivation     = 0.3
	extWeightCommunication  = 0.2
	extWeightTechnicalDepth = 0.4
	extWeightCulturalFit    = 0.1

	neutralScore = 0.5
)

// Breakdown keys.
const (
	BreakdownSimilarity = "similarity"
	BreakdownBandit     = "bandit_confidence"
	BreakdownExtracted  = "extracted_info"
	BreakdownPenalty    = "outlier_penalty"
	BreakdownFinal      = "final"
)

// Config controls the decision engine's gates.
type Config struct {
	// SimilarityThreshold fails the screen when the candidate/position
	// cosine lands below it.
	SimilarityThreshold float64

	// ConfidenceThreshold is the pass bar for the final blended score.
	ConfidenceThreshold float64

	// MustHaveStrictness in (0,1]: 1 requires exact skill presence,
	// anything lower accepts substring matches.
	MustHaveStrictness float64

	// Bandit parameterizes the single-arm confidence bandit.
	Bandit bandit.Config
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		SimilarityThreshold: 0.65,
		ConfidenceThreshold: 0.70,
		MustHaveStrictness:  1.0,
		Bandit:              bandit.DefaultConfig(),
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold >= 1 {
		c.SimilarityThreshold = def.SimilarityThreshold
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		c.ConfidenceThreshold = def.ConfidenceThreshold
	}
	if c.MustHaveStrictness <= 0 || c.MustHaveStrictness > 1 {
		c.MustHaveStrictness = def.MustHaveStrictness
	}
	return c
}

// Graph is the slice of the knowledge graph the engine reads.
// *graph.Graph satisfies it.
type Graph interface {
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
	GetPosition(ctx context.Context, tenantID, id string) (*model.Position, error)
	Vector(ctx context.Context, class model.Class, tenantID, profileID string) ([]float32, error)
}

// Engine runs the layered screen.
type Engine struct {
	graph  Graph
	logger *slog.Logger
	cfg    Config
}

// New builds an Engine.
func New(g Graph, logger *slog.Logger, cfg Config) *Engine {
	return &Engine{graph: g, logger: logger, cfg: cfg.normalized()}
}

// Decision is the phone-screen decision record.
type Decision struct {
	CandidateID      string             `json:"candidate_id"`
	PositionID       string             `json:"position_id"`
	Result           string             `json:"decision"`
	Passed           bool               `json:"passed"`
	Confidence       float64            `json:"confidence"`
	MustHaveMatch    bool               `json:"must_have_match"`
	MissingMustHaves []string           `json:"missing_must_haves,omitempty"`
	Similarity       float64            `json:"similarity"`
	Breakdown        map[string]float64 `json:"breakdown,omitempty"`
	Flags            []string           `json:"flags,omitempty"`
	Reasoning        string             `json:"reasoning"`
}

// Decide screens the candidate for the position. A failed screen is a
// Decision with Result "fail", not an error; errors are reserved for
// unresolvable entities and store trouble.
func (e *Engine) Decide(ctx context.Context, tenantID, candidateID, positionID string, info *model.ExtractedInfo) (*Decision, error) {
	const op = "screening.Decide"

	cand, err := e.graph.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return nil, err
	}
	pos, err := e.graph.GetPosition(ctx, tenantID, positionID)
	if err != nil {
		return nil, err
	}

	d := &Decision{
		CandidateID:   candidateID,
		PositionID:    positionID,
		Result:        ResultFail,
		MustHaveMatch: true,
	}

	// Layer 1: must-haves and seniority fail fast with zero confidence.
	missing := missingMustHaves(cand.Skills, pos.MustHaves, e.cfg.MustHaveStrictness)
	if len(missing) > 0 {
		d.MustHaveMatch = false
		d.MissingMustHaves = missing
		d.Reasoning = fmt.Sprintf("missing must-have skills: %s", strings.Join(missing, ", "))
		return d, nil
	}
	if !cand.ExpertiseLevel.AtLeast(pos.ExperienceLevel) {
		d.Reasoning = fmt.Sprintf("experience level %q below required %q", cand.ExpertiseLevel, pos.ExperienceLevel)
		return d, nil
	}

	// Layer 2: similarity gate.
	sim, err := e.similarity(ctx, tenantID, candidateID, positionID)
	if err != nil {
		return nil, err
	}
	d.Similarity = sim
	if sim < e.cfg.SimilarityThreshold {
		d.Reasoning = fmt.Sprintf("similarity %.2f below threshold %.2f", sim, e.cfg.SimilarityThreshold)
		return d, nil
	}

	// Layer 3: outlier detection. A critical inconsistency ends the
	// screen; ordinary findings become flags that cost confidence.
	flags, critical := detectOutliers(cand, pos, info)
	d.Flags = flags
	if critical != "" {
		d.Reasoning = critical
		return d, nil
	}

	// Layer 4: extracted-info scoring.
	extracted, extFlags := extractedScore(info)
	d.Flags = append(d.Flags, extFlags...)

	// Layer 5: single-arm bandit seeded from similarity; its posterior
	// mean is the confidence prior regularized toward one half.
	b, err := bandit.NewWarm([]string{candidateID}, []float64{sim}, e.cfg.Bandit)
	if err != nil {
		return nil, &model.Error{Kind: model.KindInternal, Op: op, Msg: "seed confidence bandit", Err: err}
	}
	banditConf := b.Snapshot()[0].Mean()

	// Layer 6: blended final score against the confidence threshold.
	penalty := flagPenalty * float64(len(d.Flags))
	if penalty > maxFlagPenalty {
		penalty = maxFlagPenalty
	}
	final := clip01(screenWeightSimilarity*sim + screenWeightBandit*banditConf + screenWeightExtracted*extracted - penalty)

	d.Confidence = final
	d.Breakdown = map[string]float64{
		BreakdownSimilarity: sim,
		BreakdownBandit:     banditConf,
		BreakdownExtracted:  extracted,
		BreakdownPenalty:    penalty,
		BreakdownFinal:      final,
	}
	if final >= e.cfg.ConfidenceThreshold {
		d.Result = ResultPass
		d.Passed = true
	}
	d.Reasoning = e.confidenceReasoning(d)
	return d, nil
}

func (e *Engine) confidenceReasoning(d *Decision) string {
	verb := "misses"
	if d.Passed {
		verb = "clears"
	}
	s := fmt.Sprintf("confidence %.2f %s threshold %.2f", d.Confidence, verb, e.cfg.ConfidenceThreshold)
	if n := len(d.Flags); n > 0 {
		s += fmt.Sprintf(" (%d outlier flags)", n)
	}
	return s
}

func (e *Engine) similarity(ctx context.Context, tenantID, candidateID, positionID string) (float64, error) {
	candVec, err := e.graph.Vector(ctx, model.ClassCandidate, tenantID, candidateID)
	if err != nil {
		return 0, err
	}
	posVec, err := e.graph.Vector(ctx, model.ClassPosition, tenantID, positionID)
	if err != nil {
		return 0, err
	}
	n := len(candVec)
	if len(posVec) < n {
		n = len(posVec)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(candVec[i]) * float64(posVec[i])
	}
	return clip01(sum), nil
}

// missingMustHaves returns the position's must-haves absent from the
// candidate's skills, echoing the position's own casing. Below full
// strictness a substring match in either direction counts.
func missingMustHaves(skills, mustHaves []string, strictness float64) []string {
	normSkills := make([]string, 0, len(skills))
	for _, s := range skills {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			normSkills = append(normSkills, s)
		}
	}
	var missing []string
	seen := make(map[string]struct{}, len(mustHaves))
	for _, m := range mustHaves {
		norm := strings.ToLower(strings.TrimSpace(m))
		if norm == "" {
			continue
		}
		if _, dup := seen[norm]; dup {
			continue
		}
		seen[norm] = struct{}{}
		if !skillMatches(normSkills, norm, strictness) {
			missing = append(missing, m)
		}
	}
	return missing
}

func skillMatches(normSkills []string, mustHave string, strictness float64) bool {
	for _, s := range normSkills {
		if s == mustHave {
			return true
		}
		if strictness < 1 && (strings.Contains(s, mustHave) || strings.Contains(mustHave, s)) {
			return true
		}
	}
	return false
}

// extractedScore blends the caller-supplied interview numbers; absent
// fields score neutral and add a flag each.
func extractedScore(info *model.ExtractedInfo) (float64, []string) {
	if info == nil {
		return neutralScore, []string{"no extracted info supplied"}
	}
	var flags []string
	field := func(v *float64, name string) float64 {
		if v == nil {
			flags = append(flags, name+" not supplied")
			return neutralScore
		}
		return clip01(*v)
	}
	score := extWeightMotivation*field(info.Motivation, "motivation") +
		extWeightCommunication*field(info.Communication, "communication") +
		extWeightTechnicalDepth*field(info.TechnicalDepth, "technical depth") +
		extWeightCulturalFit*field(info.CulturalFit, "cultural fit")
	return score, flags
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
