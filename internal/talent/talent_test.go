package talent

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
)

type fakeGraph struct {
	candidates map[string]*model.Candidate
	positions  map[string]*model.Position
	vectors    map[string][]float32
}

func (f *fakeGraph) GetCandidate(_ context.Context, tenantID, id string) (*model.Candidate, error) {
	c, ok := f.candidates[id]
	if !ok || c.TenantID != tenantID {
		return nil, model.NotFound("fake.GetCandidate", "candidate %q", id)
	}
	return c, nil
}

func (f *fakeGraph) GetPosition(_ context.Context, tenantID, id string) (*model.Position, error) {
	p, ok := f.positions[id]
	if !ok || p.TenantID != tenantID {
		return nil, model.NotFound("fake.GetPosition", "position %q", id)
	}
	return p, nil
}

func (f *fakeGraph) Candidates(_ context.Context, tenantID string) ([]*model.Candidate, error) {
	var out []*model.Candidate
	for _, c := range f.candidates {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeGraph) Vector(_ context.Context, class model.Class, _, profileID string) ([]float32, error) {
	v, ok := f.vectors[string(class)+"/"+profileID]
	if !ok {
		return nil, model.NotFound("fake.Vector", "no vector for %s/%s", class, profileID)
	}
	return v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func paperList(n int) []model.Paper {
	papers := make([]model.Paper, n)
	for i := range papers {
		papers[i] = model.Paper{Title: "paper", Year: 2021}
	}
	return papers
}

// legendCandidate maxes every platform signal.
func legendCandidate() *model.Candidate {
	return &model.Candidate{
		ID:                    "legend",
		TenantID:              "acme",
		Name:                  "Grace",
		Skills:                []string{"Go", "CUDA"},
		Domains:               []string{"machine learning"},
		ExpertiseLevel:        model.LevelSenior,
		Papers:                paperList(100),
		ResearchContributions: []string{"vllm", "triton", "llvm", "pytorch", "jax"},
		ResearchAreas:         []string{"inference", "compilers", "nlp", "systems", "hpc"},
		GithubStats: &model.GithubStats{
			TotalStars: 200000,
			TotalRepos: 50,
			Languages:  []string{"go", "c++", "python", "rust", "cuda"},
		},
		XAnalytics: &model.XAnalytics{
			FollowersCount:      2000000,
			AvgEngagementRate:   0.09,
			ContentQualityScore: 1,
		},
		PhoneScreenResults: &model.PhoneScreenResults{
			TechnicalDepth: 1, ProblemSolving: 1, Communication: 1, Implementation: 1,
		},
	}
}

// solidCandidate matches legend on research, code, and audience but
// turned in an ordinary phone screen.
func solidCandidate() *model.Candidate {
	c := legendCandidate()
	c.ID = "solid"
	c.Name = "Hal"
	c.PhoneScreenResults = &model.PhoneScreenResults{
		TechnicalDepth: 0.94, ProblemSolving: 0.93, Communication: 0.93, Implementation: 0.90,
	}
	return c
}

func gpuPosition() *model.Position {
	return &model.Position{
		ID:              "pos-1",
		TenantID:        "acme",
		Title:           "GPU Inference Engineer",
		RequiredSkills:  []string{"go", "cuda"},
		OptionalSkills:  []string{"rust"},
		Domains:         []string{"machine learning"},
		ExperienceLevel: model.LevelSenior,
	}
}

func talentGraph() *fakeGraph {
	legend, solid := legendCandidate(), solidCandidate()
	pos := gpuPosition()
	unit := []float32{1, 0, 0, 0}
	return &fakeGraph{
		candidates: map[string]*model.Candidate{legend.ID: legend, solid.ID: solid},
		positions:  map[string]*model.Position{pos.ID: pos},
		vectors: map[string][]float32{
			"Candidate/legend": unit,
			"Candidate/solid":  unit,
			"Position/pos-1":   unit,
		},
	}
}

func TestLogRamp(t *testing.T) {
	assert.InDelta(t, 0, logRamp(24, 25, 100), 1e-9)
	assert.InDelta(t, 0, logRamp(25, 25, 100), 1e-9)
	assert.InDelta(t, 0.5, logRamp(50, 25, 100), 1e-9) // log2/log4
	assert.InDelta(t, 1, logRamp(100, 25, 100), 1e-9)
	assert.InDelta(t, 1, logRamp(1000, 25, 100), 1e-9)
	assert.InDelta(t, 0, logRamp(50, 0, 100), 1e-9)
	assert.InDelta(t, 0, logRamp(50, 100, 25), 1e-9)
}

func TestLinRamp(t *testing.T) {
	assert.InDelta(t, 0, linRamp(0.91, 0.92), 1e-9)
	assert.InDelta(t, 0, linRamp(0.92, 0.92), 1e-9)
	assert.InDelta(t, 0.5, linRamp(0.96, 0.92), 1e-9)
	assert.InDelta(t, 1, linRamp(1, 0.92), 1e-9)
	assert.InDelta(t, 1, linRamp(2, 1), 1e-9)
}

func TestGatedRatio(t *testing.T) {
	assert.InDelta(t, 0, gatedRatio(4, 5, 5), 1e-9)
	assert.InDelta(t, 1, gatedRatio(5, 5, 5), 1e-9)
	assert.InDelta(t, 0.8, gatedRatio(40, 30, 50), 1e-9)
	assert.InDelta(t, 1, gatedRatio(60, 30, 50), 1e-9)
	assert.InDelta(t, 0.6, gatedRatio(3, 0, 5), 1e-9)
	assert.InDelta(t, 0, gatedRatio(3, 0, 0), 1e-9)
}

func TestSignalsForLegend(t *testing.T) {
	sig := signalsFor(legendCandidate(), DefaultThresholds())
	assert.InDelta(t, 1, sig.Arxiv, 1e-9)
	assert.InDelta(t, 1, sig.Github, 1e-9)
	assert.InDelta(t, 1, sig.X, 1e-9)
	assert.InDelta(t, 1, sig.Phone, 1e-9)
	assert.InDelta(t, 1, sig.Composite, 1e-9)
	assert.InDelta(t, 1, baseScore(sig), 1e-9)
}

func TestSignalsMissingPlatformsScoreZero(t *testing.T) {
	sig := signalsFor(&model.Candidate{ID: "empty"}, DefaultThresholds())
	assert.Zero(t, sig.Arxiv)
	assert.Zero(t, sig.Github)
	assert.Zero(t, sig.X)
	assert.Zero(t, sig.Phone)
	assert.Zero(t, sig.Composite)
}

func TestArxivSignalBelowFloor(t *testing.T) {
	th := DefaultThresholds()
	c := &model.Candidate{Papers: paperList(10), ResearchAreas: []string{"nlp", "hpc"}}
	// papers below 25 score 0; two of five areas give 0.4 breadth.
	assert.InDelta(t, 0.20*0.4, arxivSignal(c, th), 1e-9)

	c.ResearchContributions = []string{"a", "b", "c"} // below the depth floor
	assert.InDelta(t, 0.20*0.4, arxivSignal(c, th), 1e-9)
}

func TestCompositeBalancedProfile(t *testing.T) {
	sig := Signals{Arxiv: 0.9, Github: 0.9, X: 0.9, Phone: 0.9}
	// all pairs 0.9, indicator on, no balance scaling
	assert.InDelta(t, 0.30*0.9+0.25*0.9+0.25*0.9+0.20, compositeSignal(sig), 1e-9)
}

func TestApplyGates(t *testing.T) {
	th := DefaultThresholds()

	strong4 := Signals{Arxiv: 0.9, Github: 0.9, X: 0.9, Phone: 0.9}
	assert.InDelta(t, 0.8, applyGates(0.8, strong4, th), 1e-9)

	strong2 := Signals{Arxiv: 0.9, Github: 0.9, X: 0.5, Phone: 0.5}
	assert.InDelta(t, 0.8*0.3, applyGates(0.8, strong2, th), 1e-9)

	weakPhone := Signals{Arxiv: 0.9, Github: 0.9, X: 0.9, Phone: 0.2}
	got := applyGates(0.8, weakPhone, th)
	assert.InDelta(t, 0.8*0.8*0.5, got, 1e-9)
	assert.LessOrEqual(t, got, 0.8*0.5)

	lowArxiv := Signals{Arxiv: 0.45, Github: 0.9, X: 0.9, Phone: 0.9}
	assert.InDelta(t, 0.8*0.8*0.6, applyGates(0.8, lowArxiv, th), 1e-9)
}

func TestExceptionalGateScenario(t *testing.T) {
	th := DefaultThresholds()
	sig := Signals{Arxiv: 0.95, Github: 0.95, X: 0.90, Phone: 0.30}
	sig.Composite = compositeSignal(sig)

	base := baseScore(sig)
	assert.InDelta(t, 0.7419, base, 0.001)

	final := applyGates(base, sig, th)
	// three strong signals ×0.8, one weak ×0.5
	assert.InDelta(t, base*0.4, final, 1e-9)
	assert.LessOrEqual(t, final, 0.30)
	assert.LessOrEqual(t, final, base*0.5)
	assert.Less(t, final, DefaultMinScore)
}

func TestExperienceAdjustment(t *testing.T) {
	assert.InDelta(t, 1, experienceAdjustment(model.LevelSenior, model.LevelMid), 1e-9)
	assert.InDelta(t, 1, experienceAdjustment(model.LevelSenior, model.LevelSenior), 1e-9)
	assert.InDelta(t, 0.5, experienceAdjustment(model.LevelMid, model.LevelSenior), 1e-9)
	assert.InDelta(t, 0, experienceAdjustment(model.LevelJunior, model.LevelSenior), 1e-9)
	assert.InDelta(t, 1, experienceAdjustment(model.LevelJunior, ""), 1e-9)
	assert.InDelta(t, 0, experienceAdjustment("", model.LevelMid), 1e-9)
}

func TestCoverage(t *testing.T) {
	assert.InDelta(t, 1, coverage([]string{"go"}, nil), 1e-9)
	assert.InDelta(t, 1, coverage([]string{" Go ", "CUDA"}, []string{"go", "cuda"}), 1e-9)
	assert.InDelta(t, 0.5, coverage([]string{"go"}, []string{"go", "rust"}), 1e-9)
	assert.InDelta(t, 1, coverage([]string{"go"}, []string{"go", "GO"}), 1e-9)
	assert.InDelta(t, 0, coverage(nil, []string{"go"}), 1e-9)
}

func TestThresholdsNormalized(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), Thresholds{}.normalized())

	th := Thresholds{GithubMinStars: 50000}.normalized()
	assert.Equal(t, 50000, th.GithubMinStars)
	assert.Equal(t, 200000, th.GithubFullStars)
	assert.Equal(t, 25, th.ArxivMinPapers)

	// A floor above the default ceiling turns the ramp into a step.
	th = Thresholds{ArxivMinPapers: 150}.normalized()
	assert.Equal(t, 150, th.ArxivFullPapers)
}

func TestScoreCandidateWithoutPosition(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	score, err := s.ScoreCandidate(context.Background(), "acme", "legend", "")
	require.NoError(t, err)
	assert.InDelta(t, 1, score.Exceptional, 1e-9)
	assert.InDelta(t, 1, score.Final(), 1e-9)
	assert.Nil(t, score.PositionFit)
	assert.Nil(t, score.Combined)
	assert.Empty(t, score.PositionID)

	assert.Equal(t, 100, score.Evidence.Papers)
	assert.Equal(t, 200000, score.Evidence.GithubStars)
	assert.Equal(t, 2000000, score.Evidence.XFollowers)
	assert.True(t, score.Evidence.PhoneScreened)
	assert.Contains(t, score.WhyExceptional, "100 papers")
	assert.Contains(t, score.WhyExceptional, "outstanding phone screen")
}

func TestScoreCandidateWithPosition(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	score, err := s.ScoreCandidate(context.Background(), "acme", "legend", "pos-1")
	require.NoError(t, err)
	require.NotNil(t, score.PositionFit)
	require.NotNil(t, score.Combined)
	assert.Equal(t, "pos-1", score.PositionID)

	// fit = 0.40·1 + 0.30·(0.7·1 + 0.3·0) + 0.20·1 + 0.10·1
	assert.InDelta(t, 0.91, *score.PositionFit, 1e-6)
	// both factors clear the gate, so combined is the plain product
	assert.InDelta(t, 0.91, *score.Combined, 1e-6)
	assert.InDelta(t, 0.91, score.Final(), 1e-6)
}

func TestScoreCandidateFitGatePenalty(t *testing.T) {
	g := talentGraph()
	g.positions["pos-1"].Domains = []string{"fintech"}
	s := New(g, discardLogger(), DefaultThresholds())

	score, err := s.ScoreCandidate(context.Background(), "acme", "legend", "pos-1")
	require.NoError(t, err)
	// fit = 0.40 + 0.21 + 0 + 0.10 = 0.71, below the gate
	assert.InDelta(t, 0.71, *score.PositionFit, 1e-6)
	assert.InDelta(t, 1*0.71*0.7, *score.Combined, 1e-6)
}

func TestScoreCandidateMissingVectorsDegrade(t *testing.T) {
	g := talentGraph()
	g.vectors = nil
	s := New(g, discardLogger(), DefaultThresholds())

	score, err := s.ScoreCandidate(context.Background(), "acme", "legend", "pos-1")
	require.NoError(t, err)
	// similarity term drops to zero: fit = 0 + 0.21 + 0.20 + 0.10
	assert.InDelta(t, 0.51, *score.PositionFit, 1e-6)
	assert.InDelta(t, 1*0.51*0.7, *score.Combined, 1e-6)
}

func TestScoreCandidateUnknownIDs(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	_, err := s.ScoreCandidate(context.Background(), "acme", "ghost", "")
	assert.True(t, model.IsNotFound(err))

	_, err = s.ScoreCandidate(context.Background(), "acme", "legend", "ghost")
	assert.True(t, model.IsNotFound(err))
}

func TestFindExceptionalFiltersAtDefaultMinScore(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	// minScore 0 means the 0.85 default; only legend clears it. The
	// solid candidate's weak phone screen costs ×0.8·×0.5 before fit.
	out, err := s.FindExceptional(context.Background(), "acme", "pos-1", 0, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "legend", out[0].CandidateID)
	assert.InDelta(t, 0.91, out[0].Final(), 1e-6)
}

func TestFindExceptionalRanksAndTruncates(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	out, err := s.FindExceptional(context.Background(), "acme", "pos-1", 0.1, 10)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "legend", out[0].CandidateID)
	assert.Equal(t, "solid", out[1].CandidateID)
	assert.Greater(t, out[0].Final(), out[1].Final())

	out, err = s.FindExceptional(context.Background(), "acme", "pos-1", 0.1, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "legend", out[0].CandidateID)
}

func TestFindExceptionalUnknownPosition(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())

	_, err := s.FindExceptional(context.Background(), "acme", "ghost", 0, 10)
	assert.True(t, model.IsNotFound(err))
}

func TestExceptionalScoreStaysInRange(t *testing.T) {
	s := New(talentGraph(), discardLogger(), DefaultThresholds())
	for _, c := range []*model.Candidate{legendCandidate(), solidCandidate(), {ID: "empty", TenantID: "acme"}} {
		score := s.score(c)
		assert.GreaterOrEqual(t, score.Exceptional, 0.0)
		assert.LessOrEqual(t, score.Exceptional, 1.0)
		assert.LessOrEqual(t, score.Exceptional, score.Base+1e-9)
	}
}
