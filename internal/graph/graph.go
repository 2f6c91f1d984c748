// Package graph is the knowledge graph over the dual store: relational
// rows for teams, interviewers, and positions; an in-memory candidate
// store; and one vector point per entity in the search index.
//
// Writes go relational-first. The vector write is best-effort: on
// failure the operation still succeeds and a repair is enqueued for the
// reconciler, so the index converges back to relational truth without
// a cross-store transaction. Reads route to the authoritative store
// for entity content and to the index for similarity.
package graph

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/ashita-ai/suisen/internal/model"
	"github.com/ashita-ai/suisen/internal/search"
	"github.com/ashita-ai/suisen/internal/service/embedding"
	"github.com/ashita-ai/suisen/internal/storage"
)

// Index is the vector-index surface the graph depends on.
// *search.Index satisfies it; tests substitute fakes.
type Index interface {
	Insert(ctx context.Context, p search.EntityPoint) error
	Replace(ctx context.Context, p search.EntityPoint) error
	Delete(ctx context.Context, class model.Class, profileID string) error
	Search(ctx context.Context, class model.Class, tenantID string, vector []float32, k int) ([]search.Hit, error)
	SimilarAcrossTypes(ctx context.Context, class model.Class, profileID, tenantID string, kPerClass int) (map[model.Class][]search.Hit, error)
	ScanAll(ctx context.Context, class model.Class, limit int) ([]search.EntityPoint, error)
}

// rehydrateLimit bounds the startup candidate scroll. Matches the
// index's single-scroll cap.
const rehydrateLimit = 10000

// Graph unifies the relational store, the candidate memstore, and the
// vector index behind entity-level operations.
type Graph struct {
	db     *storage.DB
	index  Index
	embed  embedding.Provider
	logger *slog.Logger

	cands *memStore
}

// New creates a knowledge graph over the given stores.
func New(db *storage.DB, index Index, embed embedding.Provider, logger *slog.Logger) *Graph {
	return &Graph{
		db:     db,
		index:  index,
		embed:  embed,
		logger: logger,
		cands:  newMemStore(),
	}
}

// Rehydrate rebuilds the candidate memstore from the index's stored
// record blobs. Called once at startup; returns the number restored.
func (g *Graph) Rehydrate(ctx context.Context) (int, error) {
	points, err := g.index.ScanAll(ctx, model.ClassCandidate, rehydrateLimit)
	if err != nil {
		return 0, err
	}
	cs := make([]*model.Candidate, 0, len(points))
	for _, p := range points {
		var c model.Candidate
		if err := search.DecodeRecord(p.Metadata, &c); err != nil {
			g.logger.Warn("skipping candidate point without record blob",
				"profile_id", p.ProfileID, "error", err)
			continue
		}
		cs = append(cs, &c)
	}
	g.cands.Restore(cs)
	return len(cs), nil
}

// SimilarProfiles returns the nearest entities per class to the given
// source entity, excluding the source from its own class.
func (g *Graph) SimilarProfiles(ctx context.Context, class model.Class, tenantID, profileID string, kPerClass int) (map[model.Class][]search.Hit, error) {
	if !class.Valid() {
		return nil, model.Validation("graph.SimilarProfiles", "unknown class %q", class)
	}
	return g.index.SimilarAcrossTypes(ctx, class, profileID, tenantID, kPerClass)
}

// Vector returns the current embedding for an entity. Relational
// classes prefer the stored column and fall back to re-embedding;
// candidates always re-embed from the in-memory record.
func (g *Graph) Vector(ctx context.Context, class model.Class, tenantID, profileID string) ([]float32, error) {
	p, err := g.PointFor(ctx, class, profileID, tenantID)
	if err != nil {
		return nil, err
	}
	return p.Vector, nil
}

// PointFor resolves the authoritative point for an entity, implementing
// the reconciler's point source. Relational classes use the stored
// embedding column when present so a repair does not depend on the
// embedding backend being reachable.
func (g *Graph) PointFor(ctx context.Context, class model.Class, profileID, tenantID string) (search.EntityPoint, error) {
	const op = "graph.PointFor"
	switch class {
	case model.ClassCandidate:
		c, ok := g.cands.Get(tenantID, profileID)
		if !ok {
			return search.EntityPoint{}, model.NotFound(op, "candidate %q does not exist", profileID)
		}
		return g.candidatePoint(ctx, c)
	case model.ClassTeam:
		row, err := g.db.GetTeamRow(ctx, tenantID, profileID)
		if err != nil {
			return search.EntityPoint{}, storageErr(op, err)
		}
		return g.teamPoint(ctx, &row.Team, row.Embedding)
	case model.ClassInterviewer:
		row, err := g.db.GetInterviewerRow(ctx, tenantID, profileID)
		if err != nil {
			return search.EntityPoint{}, storageErr(op, err)
		}
		return g.interviewerPoint(ctx, &row.Interviewer, row.Embedding)
	case model.ClassPosition:
		row, err := g.db.GetPositionRow(ctx, tenantID, profileID)
		if err != nil {
			return search.EntityPoint{}, storageErr(op, err)
		}
		return g.positionPoint(ctx, &row.Position, row.Embedding)
	default:
		return search.EntityPoint{}, model.Validation(op, "unknown class %q", class)
	}
}

// ListPoints enumerates authoritative points of one class for full
// reconciliation sweeps, across all tenants.
func (g *Graph) ListPoints(ctx context.Context, class model.Class, limit, offset int) ([]search.EntityPoint, error) {
	const op = "graph.ListPoints"
	switch class {
	case model.ClassCandidate:
		cs := g.cands.PageAll(limit, offset)
		out := make([]search.EntityPoint, 0, len(cs))
		for _, c := range cs {
			p, err := g.candidatePoint(ctx, c)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case model.ClassTeam:
		rows, err := g.db.ListTeamRows(ctx, limit, offset)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out := make([]search.EntityPoint, 0, len(rows))
		for _, r := range rows {
			p, err := g.teamPoint(ctx, &r.Team, r.Embedding)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case model.ClassInterviewer:
		rows, err := g.db.ListInterviewerRows(ctx, limit, offset)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out := make([]search.EntityPoint, 0, len(rows))
		for _, r := range rows {
			p, err := g.interviewerPoint(ctx, &r.Interviewer, r.Embedding)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	case model.ClassPosition:
		rows, err := g.db.ListPositionRows(ctx, limit, offset)
		if err != nil {
			return nil, storageErr(op, err)
		}
		out := make([]search.EntityPoint, 0, len(rows))
		for _, r := range rows {
			p, err := g.positionPoint(ctx, &r.Position, r.Embedding)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return nil, model.Validation(op, "unknown class %q", class)
	}
}

// candidatePoint builds the index point for a candidate, embedding the
// profile text and carrying the full record blob in the payload so the
// memstore can be rebuilt from the index alone.
func (g *Graph) candidatePoint(ctx context.Context, c *model.Candidate) (search.EntityPoint, error) {
	vec, err := g.embed.Embed(ctx, embedding.CandidateText(c))
	if err != nil {
		return search.EntityPoint{}, model.Transport("graph.candidatePoint", err)
	}
	meta, err := candidateMetadata(c)
	if err != nil {
		return search.EntityPoint{}, err
	}
	return search.EntityPoint{
		Class:     model.ClassCandidate,
		ProfileID: c.ID,
		TenantID:  c.TenantID,
		Vector:    vec.Slice(),
		Metadata:  meta,
	}, nil
}

func (g *Graph) teamPoint(ctx context.Context, t *model.Team, stored *pgvector.Vector) (search.EntityPoint, error) {
	vec, err := g.entityVector(ctx, stored, func() string { return embedding.TeamText(t) })
	if err != nil {
		return search.EntityPoint{}, err
	}
	return search.EntityPoint{
		Class:     model.ClassTeam,
		ProfileID: t.ID,
		TenantID:  t.TenantID,
		Vector:    vec,
		Metadata:  teamMetadata(t),
	}, nil
}

func (g *Graph) interviewerPoint(ctx context.Context, iv *model.Interviewer, stored *pgvector.Vector) (search.EntityPoint, error) {
	vec, err := g.entityVector(ctx, stored, func() string { return embedding.InterviewerText(iv) })
	if err != nil {
		return search.EntityPoint{}, err
	}
	return search.EntityPoint{
		Class:     model.ClassInterviewer,
		ProfileID: iv.ID,
		TenantID:  iv.TenantID,
		Vector:    vec,
		Metadata:  interviewerMetadata(iv),
	}, nil
}

func (g *Graph) positionPoint(ctx context.Context, p *model.Position, stored *pgvector.Vector) (search.EntityPoint, error) {
	vec, err := g.entityVector(ctx, stored, func() string { return embedding.PositionText(p) })
	if err != nil {
		return search.EntityPoint{}, err
	}
	return search.EntityPoint{
		Class:     model.ClassPosition,
		ProfileID: p.ID,
		TenantID:  p.TenantID,
		Vector:    vec,
		Metadata:  positionMetadata(p),
	}, nil
}

// entityVector returns the stored embedding when present, otherwise
// re-embeds via text().
func (g *Graph) entityVector(ctx context.Context, stored *pgvector.Vector, text func() string) ([]float32, error) {
	if stored != nil {
		if s := stored.Slice(); len(s) > 0 {
			return s, nil
		}
	}
	vec, err := g.embed.Embed(ctx, text())
	if err != nil {
		return nil, model.Transport("graph.entityVector", err)
	}
	return vec.Slice(), nil
}

// pushPoint writes a point through the index, degrading to a queued
// repair on failure. Inserts skip existing points; updates replace.
func (g *Graph) pushPoint(ctx context.Context, op string, p search.EntityPoint, replace bool) {
	var err error
	if replace {
		err = g.index.Replace(ctx, p)
	} else {
		err = g.index.Insert(ctx, p)
	}
	if err != nil {
		g.degrade(ctx, op, p.Class, p.ProfileID, p.TenantID, err)
	}
}

// degrade records a failed vector write: warn, enqueue a repair, and
// let the caller return success. The reconciler restores the index.
func (g *Graph) degrade(ctx context.Context, op string, class model.Class, profileID, tenantID string, err error) {
	g.logger.Warn("vector write failed, queueing repair",
		"op", op,
		"class", string(class),
		"profile_id", profileID,
		"tenant_id", tenantID,
		"error", err)

	// The caller's ctx may be the reason the write failed, so the
	// enqueue runs on its own deadline.
	qctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if qErr := g.db.EnqueueVectorRepair(qctx, class, profileID, tenantID, op+": "+err.Error()); qErr != nil {
		g.logger.Error("vector repair enqueue failed, index drifts until next sweep",
			"op", op,
			"class", string(class),
			"profile_id", profileID,
			"error", qErr)
	}
}

// storageErr maps relational-store failures onto typed error kinds.
func storageErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return &model.Error{Kind: model.KindNotFound, Op: op, Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return model.Timeout(op, err)
	default:
		return model.Transport(op, err)
	}
}
