// Package cluster groups candidates by embedding similarity.
//
// K-means with k-means++ seeding runs over candidate vectors; the
// number of clusters is chosen automatically by silhouette score inside
// a configured window. A completed run writes a human-readable
// ability-cluster label on every candidate, and interviewer per-cluster
// hire rates can then be recomputed from interview history.
package cluster

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/service/embedding"
)

// Config controls clustering. The zero value of any field selects the
// default, so Config{} behaves like DefaultConfig().
type Config struct {
	// KMin is the smallest cluster count tried during selection.
	KMin int

	// KMax caps the cluster count; the effective ceiling is
	// min(KMax, N) for N candidates.
	KMax int

	// NInit is how many random restarts each candidate K gets.
	NInit int

	// MaxIter bounds Lloyd iterations per fit.
	MaxIter int

	// Seed makes fits reproducible for identical input.
	Seed int64
}

// DefaultConfig returns the clustering defaults.
func DefaultConfig() Config {
	return Config{
		KMin:    5,
		KMax:    10,
		NInit:   4,
		MaxIter: 100,
		Seed:    42,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.KMin < 2 {
		c.KMin = def.KMin
	}
	if c.KMax < c.KMin {
		c.KMax = c.KMin
	}
	if c.NInit <= 0 {
		c.NInit = def.NInit
	}
	if c.MaxIter <= 0 {
		c.MaxIter = def.MaxIter
	}
	if c.Seed == 0 {
		c.Seed = def.Seed
	}
	return c
}

// EntityStore is the slice of the knowledge graph the clusterer reads
// and writes. *graph.Graph satisfies it.
type EntityStore interface {
	Candidates(ctx context.Context, tenantID string) ([]*model.Candidate, error)
	GetCandidate(ctx context.Context, tenantID, id string) (*model.Candidate, error)
	SetCandidateCluster(ctx context.Context, tenantID, id, label string) error
	ListInterviewers(ctx context.Context, tenantID string, limit, offset int) ([]model.Interviewer, error)
	SetInterviewerClusterRates(ctx context.Context, tenantID, id string, rates map[string]float64) error
}

// Clusterer fits ability clusters and keeps the fitted model per tenant
// so single candidates can be assigned between runs.
type Clusterer struct {
	store  EntityStore
	embed  embedding.Provider
	logger *slog.Logger
	cfg    Config

	mu     sync.RWMutex
	models map[string]*fittedModel
}

type fittedModel struct {
	centroids  [][]float64
	labels     []string
	silhouette float64
}

// New builds a Clusterer. Invalid config fields fall back to defaults.
func New(store EntityStore, embed embedding.Provider, logger *slog.Logger, cfg Config) *Clusterer {
	return &Clusterer{
		store:  store,
		embed:  embed,
		logger: logger,
		cfg:    cfg.normalized(),
		models: make(map[string]*fittedModel),
	}
}

// Summary reports one clustering run.
type Summary struct {
	TenantID   string         `json:"tenant_id"`
	Candidates int            `json:"candidates"`
	K          int            `json:"k"`
	Silhouette float64        `json:"silhouette"`
	Labels     []string       `json:"labels"`
	Sizes      map[string]int `json:"sizes"`
}

// Run clusters every candidate of the tenant and writes labels. Labels
// are written only after the fit and naming both succeed, so a failed
// run never leaves candidates pointing at clusters that do not exist.
// Identical candidates and seed produce identical labels.
func (cl *Clusterer) Run(ctx context.Context, tenantID string) (*Summary, error) {
	const op = "cluster.Run"

	cands, err := cl.store.Candidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if len(cands) < cl.cfg.KMin {
		return nil, model.Validation(op, "need at least %d candidates to cluster, have %d", cl.cfg.KMin, len(cands))
	}

	vectors, err := cl.embedAll(ctx, op, cands)
	if err != nil {
		return nil, err
	}

	best, sil, err := cl.selectK(ctx, vectors)
	if err != nil {
		return nil, err
	}

	clusters := make([][]*model.Candidate, len(best.centroids))
	for i, c := range cands {
		clusters[best.labels[i]] = append(clusters[best.labels[i]], c)
	}
	labels := labelClusters(clusters)

	// Cancellation is honored before the write phase so an aborted run
	// leaves every candidate's label untouched.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("cluster: run cancelled: %w", err)
	}
	for i, c := range cands {
		if err := cl.store.SetCandidateCluster(ctx, tenantID, c.ID, labels[best.labels[i]]); err != nil {
			return nil, fmt.Errorf("cluster: write label for candidate %s: %w", c.ID, err)
		}
	}

	cl.mu.Lock()
	cl.models[tenantID] = &fittedModel{centroids: best.centroids, labels: labels, silhouette: sil}
	cl.mu.Unlock()

	sizes := make(map[string]int, len(labels))
	for i, members := range clusters {
		sizes[labels[i]] = len(members)
	}
	cl.logger.Info("clustering complete",
		"tenant_id", tenantID,
		"candidates", len(cands),
		"k", len(labels),
		"silhouette", sil,
	)
	return &Summary{
		TenantID:   tenantID,
		Candidates: len(cands),
		K:          len(labels),
		Silhouette: sil,
		Labels:     labels,
		Sizes:      sizes,
	}, nil
}

// AssignOne returns the label of the trained centroid nearest to the
// candidate without mutating anything. Requires a prior Run for the
// tenant.
func (cl *Clusterer) AssignOne(ctx context.Context, tenantID, candidateID string) (string, error) {
	const op = "cluster.AssignOne"

	cl.mu.RLock()
	m := cl.models[tenantID]
	cl.mu.RUnlock()
	if m == nil {
		return "", model.Invariant(op, "no trained clustering for tenant %q; run clustering first", tenantID)
	}

	cand, err := cl.store.GetCandidate(ctx, tenantID, candidateID)
	if err != nil {
		return "", err
	}
	vec, err := cl.embed.Embed(ctx, embedding.CandidateText(cand))
	if err != nil {
		return "", model.Transport(op, fmt.Errorf("embed candidate %s: %w", candidateID, err))
	}
	return m.labels[nearestCentroid(vectorTo64(vec.Slice()), m.centroids)], nil
}

// RatesSummary reports one interviewer rate recomputation.
type RatesSummary struct {
	TenantID     string   `json:"tenant_id"`
	Interviewers int      `json:"interviewers"`
	Labels       []string `json:"labels"`
}

// UpdateInterviewerClusterRates walks every interviewer's history,
// groups outcomes by the candidate's current cluster label, and rewrites
// cluster_success_rates with the per-cluster hire rate. Clusters an
// interviewer has no history for default to 0.5. History entries whose
// candidate is unknown or unlabeled are skipped.
func (cl *Clusterer) UpdateInterviewerClusterRates(ctx context.Context, tenantID string) (*RatesSummary, error) {
	cands, err := cl.store.Candidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	clusterOf := make(map[string]string, len(cands))
	labelSet := make(map[string]struct{})
	for _, c := range cands {
		if label := c.ClusterLabel(); label != "" {
			clusterOf[c.ID] = label
			labelSet[label] = struct{}{}
		}
	}
	cl.mu.RLock()
	if m := cl.models[tenantID]; m != nil {
		for _, label := range m.labels {
			labelSet[label] = struct{}{}
		}
	}
	cl.mu.RUnlock()

	labels := make([]string, 0, len(labelSet))
	for label := range labelSet {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	interviewers, err := cl.allInterviewers(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range interviewers {
		iv := &interviewers[i]
		hired := make(map[string]int)
		total := make(map[string]int)
		for _, rec := range iv.InterviewHistory {
			label, ok := clusterOf[rec.CandidateID]
			if !ok {
				continue
			}
			total[label]++
			if rec.Result == model.InterviewHired {
				hired[label]++
			}
		}
		rates := make(map[string]float64, len(labels))
		for _, label := range labels {
			if n := total[label]; n > 0 {
				rates[label] = float64(hired[label]) / float64(n)
			} else {
				rates[label] = 0.5
			}
		}
		if err := cl.store.SetInterviewerClusterRates(ctx, tenantID, iv.ID, rates); err != nil {
			return nil, err
		}
	}

	cl.logger.Info("interviewer cluster rates updated",
		"tenant_id", tenantID,
		"interviewers", len(interviewers),
		"clusters", len(labels),
	)
	return &RatesSummary{TenantID: tenantID, Interviewers: len(interviewers), Labels: labels}, nil
}

func (cl *Clusterer) embedAll(ctx context.Context, op string, cands []*model.Candidate) ([][]float64, error) {
	texts := make([]string, len(cands))
	for i, c := range cands {
		texts[i] = embedding.CandidateText(c)
	}
	vecs, err := cl.embed.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, model.Transport(op, fmt.Errorf("embed %d candidates: %w", len(cands), err))
	}
	out := make([][]float64, len(vecs))
	for i, v := range vecs {
		out[i] = vectorTo64(v.Slice())
	}
	return out, nil
}

// selectK fits every K in the window and keeps the one with the best
// silhouette. Ties keep the smaller K. Each K gets its own seeded rng
// so selection is deterministic regardless of window shape.
func (cl *Clusterer) selectK(ctx context.Context, vectors [][]float64) (kmeansResult, float64, error) {
	kMax := cl.cfg.KMax
	if n := len(vectors); kMax > n {
		kMax = n
	}

	var best kmeansResult
	bestSil := math.Inf(-1)
	for k := cl.cfg.KMin; k <= kMax; k++ {
		if err := ctx.Err(); err != nil {
			return kmeansResult{}, 0, fmt.Errorf("cluster: select k: %w", err)
		}
		rng := rand.New(rand.NewSource(cl.cfg.Seed + int64(k))) //nolint:gosec // G404: math/rand is acceptable for clustering initialization (not security).
		res := fitKMeans(rng, vectors, k, cl.cfg.NInit, cl.cfg.MaxIter)
		if sil := silhouetteScore(vectors, res.labels, k); sil > bestSil {
			bestSil = sil
			best = res
		}
	}
	return best, bestSil, nil
}

func (cl *Clusterer) allInterviewers(ctx context.Context, tenantID string) ([]model.Interviewer, error) {
	const page = 500
	var out []model.Interviewer
	for offset := 0; ; offset += page {
		batch, err := cl.store.ListInterviewers(ctx, tenantID, page, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, batch...)
		if len(batch) < page {
			return out, nil
		}
	}
}

func vectorTo64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
