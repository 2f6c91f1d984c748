package search

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/ashita-ai/suisen/internal/model"
)

// MemoryIndex is an in-process vector index for deployments without a
// Qdrant backend. It mirrors the Index contract exactly — skip-on-exists
// Insert, unconditional Replace, not-found Delete, cosine-ordered Search
// — so the graph and query engine run unchanged against it. Points live
// only as long as the process; there is nothing to rehydrate from after
// a restart, which is the documented durability trade of running without
// an external index.
type MemoryIndex struct {
	mu     sync.RWMutex
	points map[string]EntityPoint
	logger *slog.Logger
}

// NewMemoryIndex returns an empty in-process index.
func NewMemoryIndex(logger *slog.Logger) *MemoryIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemoryIndex{
		points: make(map[string]EntityPoint),
		logger: logger,
	}
}

func memoryKey(class model.Class, profileID string) string {
	return string(class) + ":" + profileID
}

// Insert stores a point unless one with the same class and profile id
// already exists.
func (mx *MemoryIndex) Insert(_ context.Context, p EntityPoint) error {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	k := memoryKey(p.Class, p.ProfileID)
	if _, ok := mx.points[k]; ok {
		mx.logger.Debug("memory index: point exists, skipping insert",
			"class", string(p.Class), "profile_id", p.ProfileID)
		return nil
	}
	mx.points[k] = clonePoint(p)
	return nil
}

// Replace stores a point unconditionally.
func (mx *MemoryIndex) Replace(_ context.Context, p EntityPoint) error {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	mx.points[memoryKey(p.Class, p.ProfileID)] = clonePoint(p)
	return nil
}

// Delete removes a point, erroring when it does not exist.
func (mx *MemoryIndex) Delete(_ context.Context, class model.Class, profileID string) error {
	mx.mu.Lock()
	defer mx.mu.Unlock()
	k := memoryKey(class, profileID)
	if _, ok := mx.points[k]; !ok {
		return model.NotFound("search.Delete", "%s %q does not exist", class, profileID)
	}
	delete(mx.points, k)
	return nil
}

// FetchByID returns the stored point for an entity.
func (mx *MemoryIndex) FetchByID(_ context.Context, class model.Class, profileID string, withVector bool) (EntityPoint, error) {
	mx.mu.RLock()
	defer mx.mu.RUnlock()
	p, ok := mx.points[memoryKey(class, profileID)]
	if !ok {
		return EntityPoint{}, model.NotFound("search.FetchByID", "%s %q does not exist", class, profileID)
	}
	out := clonePoint(p)
	if !withVector {
		out.Vector = nil
	}
	return out, nil
}

// Search returns up to k tenant-scoped hits ordered by descending cosine
// similarity. Stored vectors are unit-norm, so the dot product is the
// cosine.
func (mx *MemoryIndex) Search(_ context.Context, class model.Class, tenantID string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}

	mx.mu.RLock()
	defer mx.mu.RUnlock()

	hits := make([]Hit, 0, k)
	for _, p := range mx.points {
		if p.Class != class || p.TenantID != tenantID {
			continue
		}
		sim := dotProduct(vector, p.Vector)
		hits = append(hits, Hit{
			ProfileID:  p.ProfileID,
			TenantID:   p.TenantID,
			Metadata:   cloneMetadata(p.Metadata),
			Distance:   1 - sim,
			Similarity: sim,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SimilarAcrossTypes returns the nearest points of every class to one
// source entity, excluding the entity itself.
func (mx *MemoryIndex) SimilarAcrossTypes(ctx context.Context, class model.Class, profileID, tenantID string, kPerClass int) (map[model.Class][]Hit, error) {
	if kPerClass <= 0 {
		kPerClass = 5
	}

	src, err := mx.FetchByID(ctx, class, profileID, true)
	if err != nil {
		return nil, err
	}
	if src.TenantID != tenantID {
		return nil, model.TenantMismatch("search.SimilarAcrossTypes", "%s %q belongs to another tenant", class, profileID)
	}
	if len(src.Vector) == 0 {
		return nil, model.NotFound("search.SimilarAcrossTypes", "%s %q has no stored vector", class, profileID)
	}

	out := make(map[model.Class][]Hit, len(model.Classes))
	for _, target := range model.Classes {
		k := kPerClass
		if target == class {
			k++
		}
		hits, err := mx.Search(ctx, target, tenantID, src.Vector, k)
		if err != nil {
			return nil, err
		}
		if target == class {
			filtered := hits[:0]
			for _, h := range hits {
				if h.ProfileID != profileID {
					filtered = append(filtered, h)
				}
			}
			hits = filtered
		}
		if len(hits) > kPerClass {
			hits = hits[:kPerClass]
		}
		out[target] = hits
	}
	return out, nil
}

// Scan returns up to limit points of a class within a tenant, ordered by
// profile id for stable paging.
func (mx *MemoryIndex) Scan(_ context.Context, class model.Class, tenantID string, limit int) ([]EntityPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	mx.mu.RLock()
	defer mx.mu.RUnlock()

	var out []EntityPoint
	for _, p := range mx.points {
		if p.Class != class || p.TenantID != tenantID {
			continue
		}
		out = append(out, clonePoint(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ScanAll returns up to limit points of a class across all tenants.
func (mx *MemoryIndex) ScanAll(_ context.Context, class model.Class, limit int) ([]EntityPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	mx.mu.RLock()
	defer mx.mu.RUnlock()

	var out []EntityPoint
	for _, p := range mx.points {
		if p.Class != class {
			continue
		}
		out = append(out, clonePoint(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Healthy always reports healthy: the index lives in this process.
func (mx *MemoryIndex) Healthy(context.Context) error { return nil }

func dotProduct(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func clonePoint(p EntityPoint) EntityPoint {
	out := p
	out.Vector = append([]float32(nil), p.Vector...)
	out.Metadata = cloneMetadata(p.Metadata)
	return out
}

func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
