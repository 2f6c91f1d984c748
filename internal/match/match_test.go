package match

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/bandit"
	"github.com/ashita-ai/suisen/internal/model"
)

type fakeGraph struct {
	candidates map[string]*model.Candidate
	teams      []model.Team
	members    map[string][]model.Interviewer
	vectors    map[string][]float32
}

func (f *fakeGraph) GetCandidate(_ context.Context, tenantID, id string) (*model.Candidate, error) {
	c, ok := f.candidates[id]
	if !ok || c.TenantID != tenantID {
		return nil, model.NotFound("fake.GetCandidate", "candidate %q", id)
	}
	return c, nil
}

func (f *fakeGraph) ListTeams(_ context.Context, _ string, limit, offset int) ([]model.Team, error) {
	if offset >= len(f.teams) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.teams) {
		end = len(f.teams)
	}
	return f.teams[offset:end], nil
}

func (f *fakeGraph) TeamMembers(_ context.Context, _, teamID string) ([]model.Interviewer, error) {
	ivs, ok := f.members[teamID]
	if !ok {
		return nil, model.NotFound("fake.TeamMembers", "team %q", teamID)
	}
	return ivs, nil
}

func (f *fakeGraph) Vector(_ context.Context, class model.Class, _, profileID string) ([]float32, error) {
	key := string(class) + "/" + profileID
	v, ok := f.vectors[key]
	if !ok {
		return nil, model.NotFound("fake.Vector", "no vector for %s", key)
	}
	return v, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// axis returns a unit vector along one axis, so dot products between
// fixtures are exactly 0 or 1.
func axis(i int) []float32 {
	v := make([]float32, 4)
	v[i] = 1
	return v
}

func fixedConfig() Config {
	return Config{
		Bandit:           bandit.Config{Kappa: 5, FGLambda: 0.1, Seed: 42},
		DisplayThreshold: 0.5,
	}
}

func matchCandidate() *model.Candidate {
	return &model.Candidate{
		ID:              "cand-1",
		TenantID:        "acme",
		Name:            "Ada",
		Skills:          []string{"Go", "CUDA"},
		Domains:         []string{"machine learning"},
		ExperienceYears: 8,
	}
}

func paperList(n int) []model.Paper {
	papers := make([]model.Paper, n)
	for i := range papers {
		papers[i] = model.Paper{Title: "paper", Year: 2020}
	}
	return papers
}

func TestArxivBoost(t *testing.T) {
	cases := []struct {
		name string
		cand model.Candidate
		want float64
	}{
		{name: "no research signal", cand: model.Candidate{}, want: 0},
		{name: "identity only", cand: model.Candidate{OrcidID: "0000-0001"}, want: 0.3},
		{name: "three papers", cand: model.Candidate{Papers: paperList(3)}, want: 0.4},
		{name: "seven papers", cand: model.Candidate{Papers: paperList(7)}, want: 0.5},
		{name: "twelve papers", cand: model.Candidate{Papers: paperList(12)}, want: 0.6},
		{name: "twenty five papers", cand: model.Candidate{Papers: paperList(25)}, want: 0.7},
		{
			name: "full record caps at one",
			cand: model.Candidate{
				Papers:                paperList(25),
				ResearchContributions: []string{"vllm"},
				ResearchAreas:         []string{"inference"},
			},
			want: 1,
		},
		{
			name: "contributions without identity",
			cand: model.Candidate{ResearchContributions: []string{"triton"}},
			want: 0.2,
		},
		{
			name: "areas without identity",
			cand: model.Candidate{ResearchAreas: []string{"nlp"}},
			want: 0.1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ArxivBoost(&tc.cand), 1e-9)
		})
	}
}

func TestOverlapRatio(t *testing.T) {
	cases := []struct {
		name string
		have []string
		want []string
		out  float64
	}{
		{name: "full overlap ignores case and spacing", have: []string{"Go", "  CUDA "}, want: []string{"go", "cuda"}, out: 1},
		{name: "partial", have: []string{"go"}, want: []string{"go", "rust"}, out: 0.5},
		{name: "duplicate wants collapse", have: []string{"go"}, want: []string{"go", "Go", "GO"}, out: 1},
		{name: "empty want scores zero", have: []string{"go"}, want: nil, out: 0},
		{name: "blank wants score zero", have: []string{"go"}, want: []string{" ", ""}, out: 0},
		{name: "empty have", have: nil, want: []string{"go"}, out: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.out, overlapRatio(tc.have, tc.want), 1e-9)
		})
	}
}

func TestCapacityFactor(t *testing.T) {
	assert.InDelta(t, 0.5, capacityFactor(nil), 1e-9)
	assert.InDelta(t, 1.0/3, capacityFactor([]string{"p1"}), 1e-9)
	assert.InDelta(t, 2.0/3, capacityFactor([]string{"p1", "p2"}), 1e-9)
	assert.InDelta(t, 1, capacityFactor([]string{"p1", "p2", "p3"}), 1e-9)
	assert.InDelta(t, 1, capacityFactor([]string{"p1", "p2", "p3", "p4", "p5"}), 1e-9)
}

// twoTeamGraph builds one candidate and two teams with hand-computable
// components: Alpha matches on every axis, Beta on none.
func twoTeamGraph() *fakeGraph {
	cand := matchCandidate()
	return &fakeGraph{
		candidates: map[string]*model.Candidate{cand.ID: cand},
		teams: []model.Team{
			{
				ID:            "team-a",
				TenantID:      "acme",
				Name:          "Alpha",
				Needs:         []string{"go", "cuda", "rust", "python"},
				Expertise:     []string{"machine learning"},
				OpenPositions: []string{"p1", "p2", "p3"},
			},
			{ID: "team-b", TenantID: "acme", Name: "Beta"},
		},
		vectors: map[string][]float32{
			"Candidate/cand-1": axis(0),
			"Team/team-a":      axis(0),
			"Team/team-b":      axis(1),
		},
	}
}

func TestMatchTeamComponentsAndRanking(t *testing.T) {
	m := New(twoTeamGraph(), discardLogger(), fixedConfig())

	result, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "cand-1", result.CandidateID)

	top := result.Ranked[0]
	assert.Equal(t, "team-a", top.Team.ID)
	assert.InDelta(t, 1, top.Components[ComponentSimilarity], 1e-6)
	assert.InDelta(t, 0.5, top.Components[ComponentNeedsMatch], 1e-9)
	assert.InDelta(t, 1, top.Components[ComponentExpertiseMatch], 1e-9)
	assert.InDelta(t, 0, top.Components[ComponentArxivBoost], 1e-9)
	assert.InDelta(t, 1, top.Components[ComponentCapacity], 1e-9)
	// 0.30·1 + 0.25·0.5 + 0.15·1 + 0.25·0 + 0.05·1
	assert.InDelta(t, 0.625, top.Score, 1e-6)

	bottom := result.Ranked[1]
	assert.Equal(t, "team-b", bottom.Team.ID)
	assert.InDelta(t, 0.025, bottom.Score, 1e-6)

	require.NotNil(t, result.Selected)
	assert.True(t, result.Selected.Selected)
	flagged := 0
	for _, tm := range result.Ranked {
		if tm.Selected {
			flagged++
			assert.Equal(t, result.Selected.Team.ID, tm.Team.ID)
		}
	}
	assert.Equal(t, 1, flagged)
	assert.NotEmpty(t, result.Reasoning)
}

func TestMatchTeamSelectionDeterministicForSeed(t *testing.T) {
	m := New(twoTeamGraph(), discardLogger(), fixedConfig())

	first, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	second, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	assert.Equal(t, first.Selected.Team.ID, second.Selected.Team.ID)
}

func TestMatchTeamDefaultConfigSelects(t *testing.T) {
	m := New(twoTeamGraph(), discardLogger(), DefaultConfig())

	result, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	require.NotNil(t, result.Selected)
}

func TestMatchTeamReasoningNamesStrongComponents(t *testing.T) {
	g := twoTeamGraph()
	g.teams = g.teams[:1] // single option forces the pick
	m := New(g, discardLogger(), fixedConfig())

	result, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	require.Equal(t, "team-a", result.Selected.Team.ID)

	assert.Contains(t, result.Reasoning, "selected team Alpha:")
	assert.Contains(t, result.Reasoning, "team has open capacity")
	assert.Contains(t, result.Reasoning, "similarity 1.00")
	// needs_match is exactly at the display threshold and must not show
	assert.NotContains(t, result.Reasoning, "needs")
}

func TestMatchTeamReasoningFallsBackToExploration(t *testing.T) {
	g := twoTeamGraph()
	g.teams = g.teams[1:] // Beta scores below the threshold everywhere
	m := New(g, discardLogger(), fixedConfig())

	result, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	assert.Equal(t,
		"selected team Beta by exploration: no component stood out among close alternatives",
		result.Reasoning)
}

func TestMatchTeamNoTeams(t *testing.T) {
	cand := matchCandidate()
	g := &fakeGraph{
		candidates: map[string]*model.Candidate{cand.ID: cand},
		vectors:    map[string][]float32{"Candidate/cand-1": axis(0)},
	}
	m := New(g, discardLogger(), fixedConfig())

	_, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestMatchTeamUnknownCandidate(t *testing.T) {
	m := New(twoTeamGraph(), discardLogger(), fixedConfig())

	_, err := m.MatchTeam(context.Background(), "acme", "ghost")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}

func TestMatchTeamCandidateVectorErrorFails(t *testing.T) {
	g := twoTeamGraph()
	delete(g.vectors, "Candidate/cand-1")
	m := New(g, discardLogger(), fixedConfig())

	_, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.Error(t, err)
}

func TestMatchTeamMissingTeamVectorDegrades(t *testing.T) {
	g := twoTeamGraph()
	delete(g.vectors, "Team/team-a")
	m := New(g, discardLogger(), fixedConfig())

	result, err := m.MatchTeam(context.Background(), "acme", "cand-1")
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)

	// Alpha keeps its other components and still outranks Beta.
	top := result.Ranked[0]
	assert.Equal(t, "team-a", top.Team.ID)
	assert.InDelta(t, 0, top.Components[ComponentSimilarity], 1e-9)
	assert.InDelta(t, 0.325, top.Score, 1e-6)
}

func interviewerGraph() *fakeGraph {
	cand := matchCandidate()
	cluster := "CUDA/GPU Experts"
	cand.AbilityCluster = &cluster
	return &fakeGraph{
		candidates: map[string]*model.Candidate{cand.ID: cand},
		members: map[string][]model.Interviewer{
			"team-a": {
				{
					ID:                  "iv-1",
					TenantID:            "acme",
					Name:                "Sara",
					Expertise:           []string{"machine learning"},
					SuccessRate:         0.8,
					ClusterSuccessRates: map[string]float64{"CUDA/GPU Experts": 0.9},
				},
				{ID: "iv-2", TenantID: "acme", Name: "Tom", SuccessRate: 0.1},
			},
			"team-empty": {},
		},
		vectors: map[string][]float32{
			"Candidate/cand-1": axis(0),
			"Interviewer/iv-1": axis(0),
			"Interviewer/iv-2": axis(1),
		},
	}
}

func TestMatchInterviewerComponentsAndRanking(t *testing.T) {
	m := New(interviewerGraph(), discardLogger(), fixedConfig())

	result, err := m.MatchInterviewer(context.Background(), "acme", "cand-1", "team-a")
	require.NoError(t, err)
	require.Len(t, result.Ranked, 2)
	assert.Equal(t, "team-a", result.TeamID)

	top := result.Ranked[0]
	assert.Equal(t, "iv-1", top.Interviewer.ID)
	assert.InDelta(t, 1, top.Components[ComponentSimilarity], 1e-6)
	assert.InDelta(t, 1, top.Components[ComponentExpertiseMatch], 1e-9)
	assert.InDelta(t, 0.8, top.Components[ComponentSuccessRate], 1e-9)
	assert.InDelta(t, 0.9, top.Components[ComponentClusterSuccess], 1e-9)
	// 0.30·1 + 0.20·1 + 0.25·0 + 0.15·0.8 + 0.10·0.9
	assert.InDelta(t, 0.71, top.Score, 1e-6)

	// No recorded rate for the cluster falls back to the neutral 0.5.
	bottom := result.Ranked[1]
	assert.Equal(t, "iv-2", bottom.Interviewer.ID)
	assert.InDelta(t, 0.5, bottom.Components[ComponentClusterSuccess], 1e-9)
	assert.InDelta(t, 0.065, bottom.Score, 1e-6)

	require.NotNil(t, result.Selected)
	assert.True(t, result.Selected.Selected)
}

func TestMatchInterviewerUnclusteredCandidateGetsNeutralRate(t *testing.T) {
	g := interviewerGraph()
	g.candidates["cand-1"].AbilityCluster = nil
	// An empty-string rate entry must not be mistaken for a real cluster.
	g.members["team-a"][0].ClusterSuccessRates = map[string]float64{"": 0.99}
	m := New(g, discardLogger(), fixedConfig())

	result, err := m.MatchInterviewer(context.Background(), "acme", "cand-1", "team-a")
	require.NoError(t, err)
	for _, iv := range result.Ranked {
		assert.InDelta(t, 0.5, iv.Components[ComponentClusterSuccess], 1e-9)
	}
}

func TestMatchInterviewerEmptyTeam(t *testing.T) {
	m := New(interviewerGraph(), discardLogger(), fixedConfig())

	_, err := m.MatchInterviewer(context.Background(), "acme", "cand-1", "team-empty")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
	assert.ErrorContains(t, err, "no interviewers")
}

func TestMatchInterviewerUnknownTeam(t *testing.T) {
	m := New(interviewerGraph(), discardLogger(), fixedConfig())

	_, err := m.MatchInterviewer(context.Background(), "acme", "cand-1", "ghost")
	require.Error(t, err)
	assert.True(t, model.IsNotFound(err))
}
