// Package query answers filtered and hybrid candidate searches.
//
// Pure metadata queries filter the in-memory candidate set and keep
// insertion order. Adding similarity text upgrades a query to the
// hybrid path: the text is embedded, a vector search runs under a
// bounded deadline, and the filtered set is re-ranked by similarity.
// The vector leg degrading never fails the caller; the engine falls
// back to the filter-only ranking and flags the result.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
	"github.com/ashita-ai/suisen/internal/telemetry"
)

var queryMeter = telemetry.Meter("suisen/query")

const (
	// hybridTimeout bounds the embed+search leg of a hybrid query.
	// On expiry the caller gets the filter-only ranking, degraded.
	hybridTimeout = 3 * time.Second

	defaultTopK = 10
	maxTopK     = 1000

	// maxVectorK caps the oversampled vector search used for
	// intersection with the filtered set.
	maxVectorK = 100
)

// CandidateSource yields a tenant's candidates in insertion order.
// *graph.Graph satisfies it.
type CandidateSource interface {
	Candidates(ctx context.Context, tenantID string) ([]*model.Candidate, error)
}

// Searcher runs tenant-scoped nearest-neighbor queries. *search.Index
// satisfies it.
type Searcher interface {
	Search(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]search.Hit, error)
}

// Engine evaluates candidate queries.
type Engine struct {
	source   CandidateSource
	searcher Searcher
	embed    embedding.Provider
	logger   *slog.Logger
	timeout  time.Duration
}

// New builds a query engine with the standard hybrid deadline.
func New(source CandidateSource, searcher Searcher, embed embedding.Provider, logger *slog.Logger) *Engine {
	return &Engine{
		source:   source,
		searcher: searcher,
		embed:    embed,
		logger:   logger,
		timeout:  hybridTimeout,
	}
}

// WithDeadline overrides the hybrid-leg deadline. Zero and negative
// values keep the default. Returns the engine for chaining.
func (e *Engine) WithDeadline(d time.Duration) *Engine {
	if d > 0 {
		e.timeout = d
	}
	return e
}

// QueryCandidates evaluates req for one tenant. Filters are AND-joined;
// results keep insertion order unless similarity re-ranks them; TopK
// truncates last. Total counts matches before truncation.
func (e *Engine) QueryCandidates(ctx context.Context, tenantID string, req *model.QueryRequest) (*model.QueryResult, error) {
	const op = "query.QueryCandidates"
	if req == nil {
		return nil, model.Validation(op, "request body is required")
	}
	start := time.Now()
	defer func() {
		if hist, err := queryMeter.Float64Histogram("suisen.query.duration",
			otelmetric.WithUnit("ms")); err == nil {
			hist.Record(ctx, float64(time.Since(start).Milliseconds()))
		}
	}()
	topK := clampTopK(req.TopK)

	cands, err := e.source.Candidates(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	filtered := applyFilters(cands, &req.Filters)

	if strings.TrimSpace(req.SimilarityQuery) == "" {
		return filterResult(filtered, topK, false), nil
	}
	return e.hybrid(ctx, tenantID, req.SimilarityQuery, filtered, topK), nil
}

// hybrid re-ranks the filtered set by vector similarity. Any failure of
// the vector leg degrades to the filter-only ranking.
func (e *Engine) hybrid(ctx context.Context, tenantID, text string, filtered []*model.Candidate, topK int) *model.QueryResult {
	hits, err := e.vectorLeg(ctx, tenantID, text, topK)
	if err != nil {
		e.logger.Warn("hybrid query degraded to filter-only results",
			"tenant_id", tenantID,
			"reason", err,
		)
		if counter, cerr := queryMeter.Int64Counter("suisen.query.degraded_total"); cerr == nil {
			counter.Add(ctx, 1)
		}
		return filterResult(filtered, topK, true)
	}

	similarity := make(map[string]float64, len(hits))
	for _, h := range hits {
		similarity[h.ProfileID] = h.Similarity
	}

	out := make([]model.CandidateHit, 0, len(filtered))
	for _, c := range filtered {
		s, ok := similarity[c.ID]
		if !ok {
			continue
		}
		score := s
		out = append(out, model.CandidateHit{Candidate: c, SimilarityScore: &score})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return *out[i].SimilarityScore > *out[j].SimilarityScore
	})

	total := len(out)
	if len(out) > topK {
		out = out[:topK]
	}
	return &model.QueryResult{Hits: out, Total: total}
}

type vectorOutcome struct {
	hits []search.Hit
	err  error
}

// vectorLeg embeds the query text and searches the candidate index,
// both on their own goroutine under the hybrid deadline. A backend that
// ignores cancellation can therefore still not hold the caller past the
// deadline. An empty result is an error so the caller degrades instead
// of intersecting against nothing.
func (e *Engine) vectorLeg(ctx context.Context, tenantID, text string, topK int) ([]search.Hit, error) {
	k := 2 * topK
	if k > maxVectorK {
		k = maxVectorK
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	out := make(chan vectorOutcome, 1)
	go func() {
		vec, err := e.embed.Embed(ctx, text)
		if err != nil {
			out <- vectorOutcome{err: fmt.Errorf("embed query: %w", err)}
			return
		}
		hits, err := e.searcher.Search(ctx, model.ClassCandidate, tenantID, vec.Slice(), k)
		if err != nil {
			out <- vectorOutcome{err: fmt.Errorf("vector search: %w", err)}
			return
		}
		out <- vectorOutcome{hits: hits}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("vector search: %w", ctx.Err())
	case res := <-out:
		if res.err != nil {
			return nil, res.err
		}
		if len(res.hits) == 0 {
			return nil, errors.New("vector search returned no hits")
		}
		return res.hits, nil
	}
}

func filterResult(filtered []*model.Candidate, topK int, degraded bool) *model.QueryResult {
	total := len(filtered)
	if len(filtered) > topK {
		filtered = filtered[:topK]
	}
	hits := make([]model.CandidateHit, len(filtered))
	for i, c := range filtered {
		hits[i] = model.CandidateHit{Candidate: c}
	}
	return &model.QueryResult{Hits: hits, Total: total, Degraded: degraded}
}

func clampTopK(k int) int {
	switch {
	case k <= 0:
		return defaultTopK
	case k > maxTopK:
		return maxTopK
	default:
		return k
	}
}
