package cluster

import (
	"context"
	"hash/fnv"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

// tokenProvider hashes whitespace-separated tokens into buckets so
// texts sharing vocabulary get similar vectors. The pure hash provider
// maps distinct texts to uncorrelated vectors, which would leave
// k-means nothing to find.
type tokenProvider struct {
	dims int
}

func (p tokenProvider) Dimensions() int { return p.dims }

func (p tokenProvider) Embed(_ context.Context, text string) (pgvector.Vector, error) {
	vec := make([]float32, p.dims)
	for _, tok := range strings.Fields(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[int(h.Sum32()%uint32(p.dims))]++
	}
	return pgvector.NewVector(embedding.Normalize(vec)), nil
}

func (p tokenProvider) EmbedBatch(ctx context.Context, texts []string) ([]pgvector.Vector, error) {
	out := make([]pgvector.Vector, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

type fakeStore struct {
	mu           sync.Mutex
	candidates   []*model.Candidate
	interviewers []model.Interviewer
	rates        map[string]map[string]float64
}

func (f *fakeStore) Candidates(_ context.Context, tenantID string) ([]*model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Candidate
	for _, c := range f.candidates {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCandidate(_ context.Context, tenantID, id string) (*model.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.candidates {
		if c.TenantID == tenantID && c.ID == id {
			return c, nil
		}
	}
	return nil, model.NotFound("fake.GetCandidate", "candidate %q does not exist", id)
}

func (f *fakeStore) SetCandidateCluster(_ context.Context, tenantID, id, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.candidates {
		if c.TenantID == tenantID && c.ID == id {
			l := label
			c.AbilityCluster = &l
			return nil
		}
	}
	return model.NotFound("fake.SetCandidateCluster", "candidate %q does not exist", id)
}

func (f *fakeStore) ListInterviewers(_ context.Context, tenantID string, limit, offset int) ([]model.Interviewer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []model.Interviewer
	for _, iv := range f.interviewers {
		if iv.TenantID == tenantID {
			all = append(all, iv)
		}
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (f *fakeStore) SetInterviewerClusterRates(_ context.Context, tenantID, id string, rates map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rates == nil {
		f.rates = make(map[string]map[string]float64)
	}
	f.rates[id] = rates
	return nil
}

func clusterTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCandidate(id, name string, skills, domains []string, years int) *model.Candidate {
	return &model.Candidate{
		ID:              id,
		TenantID:        "acme",
		Name:            name,
		Skills:          skills,
		Domains:         domains,
		ExperienceYears: years,
		ExpertiseLevel:  model.LevelSenior,
	}
}

// twoGroupStore seeds five GPU-heavy and five web-heavy candidates.
func twoGroupStore() *fakeStore {
	fs := &fakeStore{}
	gpuNames := []string{"alice", "arjun", "amara", "anders", "aiko"}
	webNames := []string{"bella", "bruno", "bianca", "boris", "bea"}
	for i, name := range gpuNames {
		fs.candidates = append(fs.candidates, testCandidate(
			"gpu-"+name, name,
			[]string{"CUDA", "C++", "GPU"},
			[]string{"infrastructure"},
			7+i%2,
		))
	}
	for i, name := range webNames {
		fs.candidates = append(fs.candidates, testCandidate(
			"web-"+name, name,
			[]string{"React", "Node.js", "TypeScript"},
			[]string{"web platforms"},
			3+i%2,
		))
	}
	return fs
}

func twoGroupConfig() Config {
	return Config{KMin: 2, KMax: 4, NInit: 4, Seed: 42}
}

func TestRunSeparatesAndNamesGroups(t *testing.T) {
	fs := twoGroupStore()
	cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), twoGroupConfig())

	sum, err := cl.Run(context.Background(), "acme")
	require.NoError(t, err)

	assert.Equal(t, 2, sum.K)
	assert.Equal(t, 10, sum.Candidates)
	assert.Greater(t, sum.Silhouette, 0.2)
	require.Len(t, sum.Labels, 2)
	joined := strings.Join(sum.Labels, "|")
	assert.Contains(t, joined, "CUDA/GPU")
	assert.Contains(t, joined, "Fullstack")

	total := 0
	for _, n := range sum.Sizes {
		total += n
	}
	assert.Equal(t, 10, total)

	// Every candidate got a label, and group members share one.
	labels := make(map[string]string)
	for _, c := range fs.candidates {
		require.NotNil(t, c.AbilityCluster, "candidate %s has no label", c.ID)
		labels[c.ID] = *c.AbilityCluster
	}
	assert.Equal(t, labels["gpu-alice"], labels["gpu-arjun"])
	assert.Equal(t, labels["web-bella"], labels["web-bruno"])
	assert.NotEqual(t, labels["gpu-alice"], labels["web-bella"])
	assert.Contains(t, labels["gpu-alice"], "CUDA/GPU")
}

func TestRunDeterministicForSeed(t *testing.T) {
	first := make(map[string]string)
	for run := 0; run < 2; run++ {
		fs := twoGroupStore()
		cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), twoGroupConfig())
		_, err := cl.Run(context.Background(), "acme")
		require.NoError(t, err)

		if run == 0 {
			for _, c := range fs.candidates {
				first[c.ID] = *c.AbilityCluster
			}
			continue
		}
		for _, c := range fs.candidates {
			assert.Equal(t, first[c.ID], *c.AbilityCluster, "assignment drifted for %s", c.ID)
		}
	}
}

func TestRunRejectsTooFewCandidates(t *testing.T) {
	fs := &fakeStore{}
	for _, name := range []string{"ann", "ben", "cal"} {
		fs.candidates = append(fs.candidates, testCandidate("c-"+name, name, []string{"Go"}, nil, 5))
	}
	cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), Config{})

	_, err := cl.Run(context.Background(), "acme")
	require.Error(t, err)
	assert.Equal(t, model.KindValidation, model.KindOf(err))
	for _, c := range fs.candidates {
		assert.Nil(t, c.AbilityCluster, "failed run must not write labels")
	}
}

func TestAssignOneRequiresPriorRun(t *testing.T) {
	fs := twoGroupStore()
	cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), twoGroupConfig())

	_, err := cl.AssignOne(context.Background(), "acme", "gpu-alice")
	require.Error(t, err)
	assert.Equal(t, model.KindInvariant, model.KindOf(err))

	_, err = cl.Run(context.Background(), "acme")
	require.NoError(t, err)

	// A new GPU-flavored candidate lands in the GPU cluster without a refit.
	fs.candidates = append(fs.candidates, testCandidate(
		"gpu-newest", "noor", []string{"CUDA", "GPU", "TensorRT"}, []string{"infrastructure"}, 8,
	))
	label, err := cl.AssignOne(context.Background(), "acme", "gpu-newest")
	require.NoError(t, err)
	assert.Contains(t, label, "CUDA/GPU")
	// AssignOne only reads; the stored record stays unlabeled.
	got, err := fs.GetCandidate(context.Background(), "acme", "gpu-newest")
	require.NoError(t, err)
	assert.Nil(t, got.AbilityCluster)
}

func TestAssignOneScopedByTenant(t *testing.T) {
	fs := twoGroupStore()
	cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), twoGroupConfig())
	_, err := cl.Run(context.Background(), "acme")
	require.NoError(t, err)

	_, err = cl.AssignOne(context.Background(), "globex", "gpu-alice")
	require.Error(t, err)
	assert.Equal(t, model.KindInvariant, model.KindOf(err), "another tenant has no trained model")
}

func TestUpdateInterviewerClusterRates(t *testing.T) {
	gpu := "CUDA/GPU Experts"
	web := "Fullstack Developers"
	fs := &fakeStore{
		candidates: []*model.Candidate{
			{ID: "c1", TenantID: "acme", Name: "ann", AbilityCluster: &gpu},
			{ID: "c2", TenantID: "acme", Name: "ben", AbilityCluster: &gpu},
			{ID: "c3", TenantID: "acme", Name: "cal", AbilityCluster: &web},
			{ID: "c4", TenantID: "acme", Name: "dee"}, // never clustered
		},
		interviewers: []model.Interviewer{
			{ID: "iv1", TenantID: "acme", InterviewHistory: []model.InterviewRecord{
				{CandidateID: "c1", Result: model.InterviewHired},
				{CandidateID: "c2", Result: model.InterviewRejected},
				{CandidateID: "c3", Result: model.InterviewHired},
				{CandidateID: "c4", Result: model.InterviewHired},    // unlabeled, skipped
				{CandidateID: "ghost", Result: model.InterviewHired}, // unknown, skipped
			}},
			{ID: "iv2", TenantID: "acme"},
		},
	}
	cl := New(fs, tokenProvider{dims: 64}, clusterTestLogger(), Config{})

	sum, err := cl.UpdateInterviewerClusterRates(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Interviewers)
	assert.Equal(t, []string{gpu, web}, sum.Labels)

	require.Contains(t, fs.rates, "iv1")
	assert.InDelta(t, 0.5, fs.rates["iv1"][gpu], 1e-9, "one hire of two interviews")
	assert.InDelta(t, 1.0, fs.rates["iv1"][web], 1e-9)

	require.Contains(t, fs.rates, "iv2")
	assert.InDelta(t, 0.5, fs.rates["iv2"][gpu], 1e-9, "no history defaults to 0.5")
	assert.InDelta(t, 0.5, fs.rates["iv2"][web], 1e-9)
}

func TestLabelClusters(t *testing.T) {
	cands := func(n int, skills, domains []string, years int) []*model.Candidate {
		out := make([]*model.Candidate, n)
		for i := range out {
			out[i] = testCandidate("x", "pat", skills, domains, years)
		}
		return out
	}

	t.Run("canonical from domains", func(t *testing.T) {
		labels := labelClusters([][]*model.Candidate{
			cands(3, nil, []string{"Deep Learning"}, 5),
		})
		assert.Equal(t, []string{"Deep Learning Engineers"}, labels)
	})

	t.Run("canonical from skills when domains scatter", func(t *testing.T) {
		members := cands(5, []string{"Kubernetes", "Terraform"}, nil, 5)
		for i, m := range members {
			m.Domains = []string{[]string{"fintech", "health", "gaming", "adtech", "retail"}[i]}
		}
		labels := labelClusters([][]*model.Candidate{members})
		assert.Equal(t, []string{"DevOps Engineers"}, labels)
	})

	t.Run("uncommon dominant feature names specialists", func(t *testing.T) {
		labels := labelClusters([][]*model.Candidate{
			cands(4, []string{"Haskell"}, nil, 5),
		})
		assert.Equal(t, []string{"Haskell Specialists"}, labels)
	})

	t.Run("experience tier fallback", func(t *testing.T) {
		mk := func(years int) []*model.Candidate {
			a := testCandidate("a", "ann", []string{"one"}, nil, years)
			b := testCandidate("b", "ben", []string{"two"}, nil, years)
			c := testCandidate("c", "cal", []string{"three"}, nil, years)
			return []*model.Candidate{a, b, c}
		}
		labels := labelClusters([][]*model.Candidate{mk(9), mk(4), mk(1)})
		assert.Equal(t, []string{"Senior Engineers", "Mid-Level Engineers", "Junior Engineers"}, labels)
	})

	t.Run("duplicate names get suffixes", func(t *testing.T) {
		labels := labelClusters([][]*model.Candidate{
			cands(3, []string{"PyTorch"}, nil, 5),
			cands(3, []string{"TensorFlow"}, nil, 5),
		})
		assert.Equal(t, []string{"Deep Learning Engineers", "Deep Learning Engineers 2"}, labels)
	})
}

func TestDominantFeaturesThreshold(t *testing.T) {
	members := []*model.Candidate{
		testCandidate("1", "a", []string{"Rust", "Go"}, nil, 5),
		testCandidate("2", "b", []string{"Rust", "Go"}, nil, 5),
		testCandidate("3", "c", []string{"Rust"}, nil, 5),
		testCandidate("4", "d", []string{"Python"}, nil, 5),
		testCandidate("5", "e", []string{"rust "}, nil, 5), // normalized into "rust"
	}
	feats := dominantFeatures(members, func(c *model.Candidate) []string { return c.Skills })
	// rust: 4/5, go: 2/5 == 40% stays, python: 1/5 drops.
	assert.Equal(t, []string{"rust", "go"}, feats)
}

func TestSilhouetteScore(t *testing.T) {
	vectors := [][]float64{{0, 0}, {0.1, 0}, {10, 0}, {10.1, 0}}
	score := silhouetteScore(vectors, []int{0, 0, 1, 1}, 2)
	assert.Greater(t, score, 0.95, "tight well-separated pairs score near 1")

	mixed := silhouetteScore(vectors, []int{0, 1, 0, 1}, 2)
	assert.Less(t, mixed, score, "shuffled assignment scores worse")

	assert.Zero(t, silhouetteScore(vectors, []int{0, 0, 0, 0}, 1), "undefined below two clusters")
}

func TestConfigNormalized(t *testing.T) {
	assert.Equal(t, DefaultConfig(), Config{}.normalized())

	c := Config{KMin: 3, KMax: 2, NInit: -1, Seed: 7}.normalized()
	assert.Equal(t, 3, c.KMin)
	assert.Equal(t, 3, c.KMax, "ceiling rises to the floor")
	assert.Equal(t, DefaultConfig().NInit, c.NInit)
	assert.Equal(t, int64(7), c.Seed)
}
