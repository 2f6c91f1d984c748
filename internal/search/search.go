// Package search provides the vector index over the four entity
// collections, plus the reconcile worker that repairs index drift from
// relational truth.
package search

import (
	"context"

	"github.com/google/uuid"

	"github.com/ashita-ai/suisen/internal/model"
)

// EntityPoint is one indexed entity: the inputs to its deterministic
// point id, its tenant, its vector, and the metadata blob stored
// alongside. Vector may be nil on reads that did not request it.
type EntityPoint struct {
	Class     model.Class
	ProfileID string
	TenantID  string
	Vector    []float32
	Metadata  map[string]any
}

// Hit is one nearest-neighbor result. Similarity is 1 - Distance under
// the cosine metric; results are ordered by descending similarity. Hits
// surface directly in similar-profile API responses, hence the tags.
type Hit struct {
	ProfileID  string         `json:"profile_id"`
	TenantID   string         `json:"tenant_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Distance   float64        `json:"distance"`
	Similarity float64        `json:"similarity"`
}

// PointID returns the deterministic UUID for a (class, profile_id) pair.
// Identical inputs always map to the same point, which makes concurrent
// inserts of the same entity collapse to a single record.
func PointID(class model.Class, profileID string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(string(class)+":"+profileID))
}

// Searcher is the read surface of the vector index. Implementations must
// be safe for concurrent use.
type Searcher interface {
	// Search returns up to k hits for the query vector within the class
	// collection, tenant-scoped, ordered by descending similarity.
	Search(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]Hit, error)

	// Healthy returns nil if the index is reachable.
	Healthy(ctx context.Context) error
}

// Writer is the write surface of the vector index.
type Writer interface {
	// Insert stores a point unless one with the same deterministic id
	// already exists, in which case it is a no-op that returns success.
	Insert(ctx context.Context, p EntityPoint) error

	// Replace stores a point unconditionally, overwriting any existing
	// vector and payload for the same id.
	Replace(ctx context.Context, p EntityPoint) error

	// Delete removes a point. Returns a not-found error when absent.
	Delete(ctx context.Context, class model.Class, profileID string) error
}

// PointSource resolves authoritative point data for reconciliation. The
// knowledge graph implements it from relational rows and the candidate
// store; the worker stays free of entity semantics.
type PointSource interface {
	// PointFor returns the current point for an entity, or a not-found
	// error when the entity no longer exists.
	PointFor(ctx context.Context, class model.Class, profileID, tenantID string) (EntityPoint, error)

	// ListPoints enumerates points of one class for full sweeps.
	ListPoints(ctx context.Context, class model.Class, limit, offset int) ([]EntityPoint, error)
}
