package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/suisen/internal/model"
)

// Config holds configuration for connecting to Qdrant.
type Config struct {
	URL    string // e.g. "https://xyz.cloud.qdrant.io:6333" or "http://localhost:6333"
	APIKey string
	Prefix string // collection name prefix, e.g. "suisen"
	Dims   uint64
}

// Index implements Searcher and Writer backed by Qdrant, one collection
// per entity class.
type Index struct {
	client *qdrant.Client
	prefix string
	dims   uint64
	logger *slog.Logger

	healthGroup singleflight.Group
	healthErr   atomic.Value // stores *error (pointer-to-error, never nil pointer; inner error may be nil)
	healthAt    atomic.Int64 // unix nanos of last check
}

// parseURL extracts host, port, and TLS flag from a Qdrant URL.
// Accepts forms like "https://host:6333", "http://host:6333", or "host:6334".
func parseURL(rawURL string) (host string, port int, useTLS bool, err error) {
	u, parseErr := url.Parse(rawURL)
	if parseErr != nil || u.Host == "" {
		return "", 0, false, fmt.Errorf("search: invalid qdrant URL: %q", rawURL)
	}

	useTLS = u.Scheme == "https"
	host = u.Hostname()

	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, false, fmt.Errorf("search: invalid port in qdrant URL: %q", portStr)
		}
		// If the user specified the REST port (6333), use the gRPC port (6334).
		if p == 6333 {
			port = 6334
		} else {
			port = p
		}
	} else {
		port = 6334
	}

	return host, port, useTLS, nil
}

// collectionName maps a class to its Qdrant collection.
func collectionName(prefix string, class model.Class) string {
	return prefix + "_" + strings.ToLower(string(class)) + "s"
}

// NewIndex creates an Index and connects to the Qdrant server via gRPC.
func NewIndex(cfg Config, logger *slog.Logger) (*Index, error) {
	host, port, useTLS, err := parseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("search: connect to qdrant at %s:%d: %w", host, port, err)
	}

	return &Index{
		client: client,
		prefix: cfg.Prefix,
		dims:   cfg.Dims,
		logger: logger,
	}, nil
}

// EnsureCollections creates the four class collections if absent and
// ensures tenant payload indexes exist. CreateFieldIndex is idempotent on
// Qdrant, so index creation is always attempted to backfill any index
// added after a collection was first created.
func (ix *Index) EnsureCollections(ctx context.Context) error {
	for _, class := range model.Classes {
		name := collectionName(ix.prefix, class)

		exists, err := ix.client.CollectionExists(ctx, name)
		if err != nil {
			return ix.classify(ctx, "search.EnsureCollections", err)
		}

		if !exists {
			m := uint64(16)
			efConstruct := uint64(128)

			if err := ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: name,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     ix.dims,
					Distance: qdrant.Distance_Cosine,
					HnswConfig: &qdrant.HnswConfigDiff{
						M:           &m,
						EfConstruct: &efConstruct,
					},
				}),
			}); err != nil {
				return ix.classify(ctx, "search.EnsureCollections", fmt.Errorf("create collection %q: %w", name, err))
			}
			ix.logger.Info("qdrant: created collection", "collection", name, "dims", ix.dims)
		}

		keywordType := qdrant.FieldType_FieldTypeKeyword
		for _, field := range []string{"tenant_id", "profile_id"} {
			if _, err := ix.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
				CollectionName: name,
				FieldName:      field,
				FieldType:      &keywordType,
			}); err != nil {
				return ix.classify(ctx, "search.EnsureCollections", fmt.Errorf("ensure index on %q: %w", field, err))
			}
		}
	}
	return nil
}

// pointPayload builds the stored payload for a point: the caller's
// metadata blob plus the mandatory identity fields.
func pointPayload(p EntityPoint) map[string]any {
	payload := make(map[string]any, len(p.Metadata)+3)
	for k, v := range p.Metadata {
		payload[k] = v
	}
	payload["tenant_id"] = p.TenantID
	payload["profile_id"] = p.ProfileID
	payload["class"] = string(p.Class)
	return payload
}

// payloadToMap converts a Qdrant payload back to plain Go values.
// Only the flat kinds this package stores are handled.
func payloadToMap(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		switch kind := v.GetKind().(type) {
		case *qdrant.Value_StringValue:
			out[k] = kind.StringValue
		case *qdrant.Value_DoubleValue:
			out[k] = kind.DoubleValue
		case *qdrant.Value_IntegerValue:
			out[k] = kind.IntegerValue
		case *qdrant.Value_BoolValue:
			out[k] = kind.BoolValue
		}
	}
	return out
}

// hitFromPayload extracts the identity fields and remaining metadata.
func hitFromPayload(payload map[string]any) (profileID, tenantID string, metadata map[string]any) {
	metadata = make(map[string]any, len(payload))
	for k, v := range payload {
		switch k {
		case "profile_id":
			profileID, _ = v.(string)
		case "tenant_id":
			tenantID, _ = v.(string)
		case "class":
			// implied by the collection
		default:
			metadata[k] = v
		}
	}
	return profileID, tenantID, metadata
}

// classify wraps a transport failure into the typed kind the caller's
// documented fallback keys on.
func (ix *Index) classify(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return model.Timeout(op, err)
	}
	return model.Transport(op, err)
}

// exists reports whether the deterministic point id is already present.
func (ix *Index) exists(ctx context.Context, class model.Class, profileID string) (bool, error) {
	points, err := ix.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collectionName(ix.prefix, class),
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(class, profileID).String())},
		WithPayload:    qdrant.NewWithPayload(false),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return false, ix.classify(ctx, "search.exists", err)
	}
	return len(points) > 0, nil
}

// Insert stores a point unless its deterministic id already exists.
// Racing inserts of the same entity collapse to one record: the loser
// observes existence and returns success.
func (ix *Index) Insert(ctx context.Context, p EntityPoint) error {
	ok, err := ix.exists(ctx, p.Class, p.ProfileID)
	if err != nil {
		return err
	}
	if ok {
		ix.logger.Debug("qdrant: point exists, skipping insert",
			"class", string(p.Class), "profile_id", p.ProfileID)
		return nil
	}
	return ix.Replace(ctx, p)
}

// Replace stores a point unconditionally.
func (ix *Index) Replace(ctx context.Context, p EntityPoint) error {
	point := &qdrant.PointStruct{
		Id:      qdrant.NewID(PointID(p.Class, p.ProfileID).String()),
		Vectors: qdrant.NewVectorsDense(p.Vector),
		Payload: qdrant.NewValueMap(pointPayload(p)),
	}
	_, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName(ix.prefix, p.Class),
		Wait:           qdrant.PtrOf(true),
		Points:         []*qdrant.PointStruct{point},
	})
	if err != nil {
		return ix.classify(ctx, "search.Replace", fmt.Errorf("upsert %s %s: %w", p.Class, p.ProfileID, err))
	}
	return nil
}

// FetchByID returns the stored point for an entity. The vector is
// included only when withVector is set.
func (ix *Index) FetchByID(ctx context.Context, class model.Class, profileID string, withVector bool) (EntityPoint, error) {
	points, err := ix.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: collectionName(ix.prefix, class),
		Ids:            []*qdrant.PointId{qdrant.NewID(PointID(class, profileID).String())},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(withVector),
	})
	if err != nil {
		return EntityPoint{}, ix.classify(ctx, "search.FetchByID", err)
	}
	if len(points) == 0 {
		return EntityPoint{}, model.NotFound("search.FetchByID", "%s %q has no indexed vector", class, profileID)
	}

	rp := points[0]
	pid, tenant, metadata := hitFromPayload(payloadToMap(rp.Payload))
	out := EntityPoint{
		Class:     class,
		ProfileID: pid,
		TenantID:  tenant,
		Metadata:  metadata,
	}
	if withVector && rp.Vectors != nil {
		out.Vector = rp.Vectors.GetVector().GetData()
	}
	return out, nil
}

// Search returns up to k hits for the query vector within the class
// collection. tenant_id is always the first filter condition.
func (ix *Index) Search(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	limit := uint64(k) //nolint:gosec // k is clamped by callers

	scored, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName(ix.prefix, class),
		Query:          qdrant.NewQueryDense(vector),
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			qdrant.NewMatch("tenant_id", tenantID),
		}},
		Limit:       &limit,
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, ix.classify(ctx, "search.Search", err)
	}

	hits := make([]Hit, 0, len(scored))
	for _, sp := range scored {
		pid, tenant, metadata := hitFromPayload(payloadToMap(sp.Payload))
		if pid == "" {
			ix.logger.Warn("qdrant: point missing profile_id payload", "id", sp.Id.GetUuid())
			continue
		}
		sim := float64(sp.Score)
		hits = append(hits, Hit{
			ProfileID:  pid,
			TenantID:   tenant,
			Metadata:   metadata,
			Distance:   1 - sim,
			Similarity: sim,
		})
	}
	return hits, nil
}

// Scan returns up to limit points of a class within a tenant, in point id
// order. Vectors are always included so callers can rebuild local state.
func (ix *Index) Scan(ctx context.Context, class model.Class, tenantID string, limit int) ([]EntityPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	if limit > 10000 {
		limit = 10000
	}
	scrollLimit := uint32(limit) //nolint:gosec // clamped above

	points, err := ix.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collectionName(ix.prefix, class),
		Filter: &qdrant.Filter{Must: []*qdrant.Condition{
			qdrant.NewMatch("tenant_id", tenantID),
		}},
		Limit:       &scrollLimit,
		WithPayload: qdrant.NewWithPayload(true),
		WithVectors: qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, ix.classify(ctx, "search.Scan", err)
	}

	out := make([]EntityPoint, 0, len(points))
	for _, rp := range points {
		pid, tenant, metadata := hitFromPayload(payloadToMap(rp.Payload))
		if pid == "" {
			continue
		}
		p := EntityPoint{
			Class:     class,
			ProfileID: pid,
			TenantID:  tenant,
			Metadata:  metadata,
		}
		if rp.Vectors != nil {
			p.Vector = rp.Vectors.GetVector().GetData()
		}
		out = append(out, p)
	}
	return out, nil
}

// ScanAll returns up to limit points of a class across every tenant.
// Startup rehydration uses it to rebuild local candidate state from the
// index. A single scroll capped at 10000 points; deployments beyond that
// should rehydrate per tenant via Scan instead.
func (ix *Index) ScanAll(ctx context.Context, class model.Class, limit int) ([]EntityPoint, error) {
	if limit <= 0 {
		limit = 1000
	}
	if limit > 10000 {
		limit = 10000
	}
	scrollLimit := uint32(limit) //nolint:gosec // clamped above

	points, err := ix.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collectionName(ix.prefix, class),
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		return nil, ix.classify(ctx, "search.ScanAll", err)
	}

	out := make([]EntityPoint, 0, len(points))
	for _, rp := range points {
		pid, tenant, metadata := hitFromPayload(payloadToMap(rp.Payload))
		if pid == "" {
			continue
		}
		p := EntityPoint{
			Class:     class,
			ProfileID: pid,
			TenantID:  tenant,
			Metadata:  metadata,
		}
		if rp.Vectors != nil {
			p.Vector = rp.Vectors.GetVector().GetData()
		}
		out = append(out, p)
	}
	return out, nil
}

// Delete removes a point. Returns a not-found error when the point was
// never indexed.
func (ix *Index) Delete(ctx context.Context, class model.Class, profileID string) error {
	ok, err := ix.exists(ctx, class, profileID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NotFound("search.Delete", "%s %q has no indexed vector", class, profileID)
	}

	_, err = ix.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName(ix.prefix, class),
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{
					Ids: []*qdrant.PointId{qdrant.NewID(PointID(class, profileID).String())},
				},
			},
		},
	})
	if err != nil {
		return ix.classify(ctx, "search.Delete", fmt.Errorf("delete %s %s: %w", class, profileID, err))
	}
	return nil
}

// SimilarAcrossTypes returns the top k points per class nearest to the
// source entity's vector, excluding the source itself from its own class.
func (ix *Index) SimilarAcrossTypes(ctx context.Context, class model.Class, profileID, tenantID string, kPerClass int) (map[model.Class][]Hit, error) {
	if kPerClass <= 0 {
		kPerClass = 5
	}

	src, err := ix.FetchByID(ctx, class, profileID, true)
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
			// Over-fetch by one to absorb removing the source point.
			k++
		}
		hits, err := ix.Search(ctx, target, tenantID, src.Vector, k)
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

// Healthy returns nil if Qdrant is reachable. Results are cached for 5
// seconds to avoid hammering the health endpoint on every request.
// Concurrent calls after cache expiry are deduplicated via singleflight
// so only one gRPC call is made; all waiters share its result.
func (ix *Index) Healthy(ctx context.Context) error {
	// Fast path: return the cached result if fresh.
	if time.Since(time.Unix(0, ix.healthAt.Load())) < 5*time.Second {
		return ix.loadHealthErr()
	}

	// Deduplicate concurrent checks. Use context.Background() instead of
	// the caller's ctx because singleflight reuses the first caller's
	// context — if that caller cancels, all waiters would get a stale error.
	result, _, _ := ix.healthGroup.Do("health", func() (any, error) {
		checkCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		_, err := ix.client.HealthCheck(checkCtx)
		if err != nil {
			ix.storeHealthErr(fmt.Errorf("search: qdrant unhealthy: %w", err))
		} else {
			ix.storeHealthErr(nil)
		}
		ix.healthAt.Store(time.Now().UnixNano())
		return ix.loadHealthErr(), nil
	})
	if result == nil {
		return nil
	}
	return result.(error)
}

// storeHealthErr stores an error (or nil) in the atomic.Value.
// atomic.Value cannot store nil directly, so we wrap it in a pointer.
func (ix *Index) storeHealthErr(err error) {
	ix.healthErr.Store(&err)
}

// loadHealthErr loads the cached health error.
func (ix *Index) loadHealthErr() error {
	v := ix.healthErr.Load()
	if v == nil {
		return nil
	}
	return *v.(*error)
}

// Close shuts down the Qdrant gRPC connection.
func (ix *Index) Close() error {
	return ix.client.Close()
}

// EncodeRecord renders an entity record into the JSON blob stored in the
// point payload under the "record" key.
func EncodeRecord(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("search: encode record: %w", err)
	}
	return string(b), nil
}

// DecodeRecord parses a payload "record" blob back into v.
func DecodeRecord(metadata map[string]any, v any) error {
	raw, ok := metadata["record"].(string)
	if !ok || raw == "" {
		return fmt.Errorf("search: payload has no record blob")
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("search: decode record: %w", err)
	}
	return nil
}
