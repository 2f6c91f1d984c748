package query

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

type fakeSource struct {
	cands []*model.Candidate
}

func (f fakeSource) Candidates(context.Context, string) ([]*model.Candidate, error) {
	return f.cands, nil
}

type searchFunc func(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]search.Hit, error)

func (f searchFunc) Search(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]search.Hit, error) {
	return f(ctx, class, tenantID, vector, k)
}

func papers(n int) []model.Paper {
	out := make([]model.Paper, n)
	for i := range out {
		out[i] = model.Paper{Title: fmt.Sprintf("paper %d", i)}
	}
	return out
}

// fixtureCandidates returns four candidates in insertion order.
func fixtureCandidates() []*model.Candidate {
	gpuCluster := "CUDA/GPU Experts"
	return []*model.Candidate{
		{
			ID: "c1", TenantID: "acme", Name: "ada",
			Skills:          []string{"CUDA", "C++", "PyTorch"},
			Domains:         []string{"machine learning"},
			ExperienceYears: 9,
			Papers:          papers(12),
			GithubStats:     &model.GithubStats{TotalStars: 150},
			AbilityCluster:  &gpuCluster,
		},
		{
			ID: "c2", TenantID: "acme", Name: "ben",
			Skills:          []string{"Python", "Java"},
			Domains:         []string{"fintech"},
			ExperienceYears: 3,
		},
		{
			ID: "c3", TenantID: "acme", Name: "cal",
			Skills:          []string{"React", "Node.js"},
			Domains:         []string{"web"},
			ExperienceYears: 5,
			GithubStats:     &model.GithubStats{TotalStars: 30000},
		},
		{
			ID: "c4", TenantID: "acme", Name: "dee",
			Skills:          []string{"cuda kernels"},
			ExperienceYears: 2,
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(searcher Searcher) *Engine {
	return New(fakeSource{cands: fixtureCandidates()}, searcher, embedding.NewHashProvider(16), discardLogger())
}

func noSearch(t *testing.T) searchFunc {
	return func(context.Context, model.Class, string, []float32, int) ([]search.Hit, error) {
		t.Error("vector search must not run for a metadata-only query")
		return nil, nil
	}
}

func resultIDs(res *model.QueryResult) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.Candidate.ID
	}
	return ids
}

func TestQuerySkillFilters(t *testing.T) {
	e := newTestEngine(noSearch(t))
	ctx := context.Background()

	res, err := e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"CUDA"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c4"}, resultIDs(res), "substring match is case-insensitive")

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"cuda", "pytorch"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, resultIDs(res), "all required skills must match")

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Skills: &model.SkillFilters{Optional: []string{"java", "node"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, resultIDs(res), "one optional hit suffices")

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Skills: &model.SkillFilters{Excluded: []string{"java"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c4"}, resultIDs(res))
}

func TestQueryDomainAndRangeFilters(t *testing.T) {
	e := newTestEngine(noSearch(t))
	ctx := context.Background()

	res, err := e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Domains: &model.DomainFilters{Required: []string{"learning"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, resultIDs(res))

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{Domains: &model.DomainFilters{Excluded: []string{"fintech"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c3", "c4"}, resultIDs(res))

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{ArxivPapers: &model.MinFilter{Min: 10}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, resultIDs(res))

	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{GithubStars: &model.MinFilter{Min: 1000}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c3"}, resultIDs(res))

	lo, hi := 3, 5
	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{ExperienceYears: &model.RangeFilter{Min: &lo, Max: &hi}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c3"}, resultIDs(res), "range bounds are inclusive")

	cluster := "CUDA/GPU Experts"
	res, err = e.QueryCandidates(ctx, "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{AbilityCluster: &cluster},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, resultIDs(res))
}

func TestQueryFiltersAndJoin(t *testing.T) {
	e := newTestEngine(noSearch(t))
	floor := 5
	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		Filters: model.CandidateFilters{
			Skills:          &model.SkillFilters{Required: []string{"cuda"}},
			ExperienceYears: &model.RangeFilter{Min: &floor},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, resultIDs(res), "every filter must pass")
}

func TestQueryTopKTruncatesAfterCounting(t *testing.T) {
	e := newTestEngine(noSearch(t))

	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{TopK: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, resultIDs(res), "insertion order before truncation")
	assert.Equal(t, 4, res.Total, "total counts matches, not the truncated page")
	assert.False(t, res.Degraded)
	for _, h := range res.Hits {
		assert.Nil(t, h.SimilarityScore, "metadata-only results carry no similarity")
	}
}

func TestQueryNilRequest(t *testing.T) {
	e := newTestEngine(noSearch(t))
	_, err := e.QueryCandidates(context.Background(), "acme", nil)
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}

func TestHybridRanksBySimilarity(t *testing.T) {
	var gotK int
	searcher := searchFunc(func(_ context.Context, class model.Class, tenantID string, _ []float32, k int) ([]search.Hit, error) {
		assert.Equal(t, model.ClassCandidate, class)
		assert.Equal(t, "acme", tenantID)
		gotK = k
		return []search.Hit{
			{ProfileID: "c4", TenantID: "acme", Distance: 0.1, Similarity: 0.9},
			{ProfileID: "c1", TenantID: "acme", Distance: 0.3, Similarity: 0.7},
			{ProfileID: "c2", TenantID: "acme", Distance: 0.5, Similarity: 0.5},
		}, nil
	})
	e := newTestEngine(searcher)

	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		Filters:         model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"cuda"}}},
		SimilarityQuery: "GPU optimization",
		TopK:            5,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, gotK, "vector search oversamples at twice top_k")
	assert.Equal(t, []string{"c4", "c1"}, resultIDs(res), "similarity reorders the filtered set")
	assert.False(t, res.Degraded)
	assert.Equal(t, 2, res.Total)
	require.NotNil(t, res.Hits[0].SimilarityScore)
	assert.InDelta(t, 0.9, *res.Hits[0].SimilarityScore, 1e-9)
	require.NotNil(t, res.Hits[1].SimilarityScore)
	assert.InDelta(t, 0.7, *res.Hits[1].SimilarityScore, 1e-9)
}

func TestHybridOversampleCapped(t *testing.T) {
	var gotK int
	searcher := searchFunc(func(_ context.Context, _ model.Class, _ string, _ []float32, k int) ([]search.Hit, error) {
		gotK = k
		return []search.Hit{{ProfileID: "c1", Similarity: 0.4}}, nil
	})
	e := newTestEngine(searcher)

	_, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		SimilarityQuery: "anything",
		TopK:            90,
	})
	require.NoError(t, err)
	assert.Equal(t, 100, gotK)
}

func TestHybridEmptyIntersection(t *testing.T) {
	searcher := searchFunc(func(context.Context, model.Class, string, []float32, int) ([]search.Hit, error) {
		return []search.Hit{{ProfileID: "ghost", Similarity: 0.99}}, nil
	})
	e := newTestEngine(searcher)

	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		Filters:         model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"cuda"}}},
		SimilarityQuery: "GPU optimization",
	})
	require.NoError(t, err)
	assert.Empty(t, res.Hits, "vector hits outside the filtered set do not resurrect")
	assert.Zero(t, res.Total)
	assert.False(t, res.Degraded, "the vector leg itself succeeded")
}

func TestHybridFallsBackOnSearchError(t *testing.T) {
	searcher := searchFunc(func(context.Context, model.Class, string, []float32, int) ([]search.Hit, error) {
		return nil, errors.New("qdrant unreachable")
	})
	e := newTestEngine(searcher)

	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		Filters:         model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"cuda"}}},
		SimilarityQuery: "GPU optimization",
	})
	require.NoError(t, err, "a degraded query never fails the caller")
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"c1", "c4"}, resultIDs(res), "fallback keeps insertion order")
	for _, h := range res.Hits {
		assert.Nil(t, h.SimilarityScore)
	}
}

func TestHybridFallsBackOnEmptyResult(t *testing.T) {
	searcher := searchFunc(func(context.Context, model.Class, string, []float32, int) ([]search.Hit, error) {
		return []search.Hit{}, nil
	})
	e := newTestEngine(searcher)

	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{SimilarityQuery: "anything"})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Len(t, res.Hits, 4)
}

func TestHybridDeadlineBoundsUncooperativeBackend(t *testing.T) {
	searcher := searchFunc(func(context.Context, model.Class, string, []float32, int) ([]search.Hit, error) {
		// Ignores cancellation on purpose.
		time.Sleep(2 * time.Second)
		return []search.Hit{{ProfileID: "c1", Similarity: 0.9}}, nil
	})
	e := newTestEngine(searcher)
	e.timeout = 150 * time.Millisecond

	start := time.Now()
	res, err := e.QueryCandidates(context.Background(), "acme", &model.QueryRequest{
		Filters:         model.CandidateFilters{Skills: &model.SkillFilters{Required: []string{"cuda"}}},
		SimilarityQuery: "GPU optimization",
		TopK:            5,
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second, "caller returns at the deadline, not the backend's pace")
	assert.True(t, res.Degraded)
	assert.Equal(t, []string{"c1", "c4"}, resultIDs(res))
}

func TestClampTopK(t *testing.T) {
	assert.Equal(t, defaultTopK, clampTopK(0))
	assert.Equal(t, defaultTopK, clampTopK(-3))
	assert.Equal(t, 7, clampTopK(7))
	assert.Equal(t, maxTopK, clampTopK(5000))
}
