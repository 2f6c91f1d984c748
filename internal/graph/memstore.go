package graph

import (
	"sort"
	"sync"

	"github.com/ashita-ai/suisen/internal/model"
)

// tenantShard holds one tenant's candidates. order preserves insertion
// order so listing and query results are stable across calls.
type tenantShard struct {
	byID  map[string]*model.Candidate
	order []string
}

// memStore is the in-memory candidate store. Candidates have no
// relational table; the store is the authoritative copy during the
// process lifetime and is rebuilt from the vector index on startup.
//
// Every candidate that crosses the boundary is cloned, so callers can
// never alias internal state. Safe for concurrent use.
type memStore struct {
	mu      sync.RWMutex
	tenants map[string]*tenantShard
}

func newMemStore() *memStore {
	return &memStore{tenants: make(map[string]*tenantShard)}
}

func (s *memStore) shard(tenantID string) *tenantShard {
	sh, ok := s.tenants[tenantID]
	if !ok {
		sh = &tenantShard{byID: make(map[string]*model.Candidate)}
		s.tenants[tenantID] = sh
	}
	return sh
}

// Insert stores a clone of c unless a candidate with the same id already
// exists in the tenant, in which case the existing record is returned
// and inserted is false.
func (s *memStore) Insert(c *model.Candidate) (existing *model.Candidate, inserted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh := s.shard(c.TenantID)
	if cur, ok := sh.byID[c.ID]; ok {
		return cur.Clone(), false
	}
	sh.byID[c.ID] = c.Clone()
	sh.order = append(sh.order, c.ID)
	return nil, true
}

// Get returns a clone of the candidate, or false when absent.
func (s *memStore) Get(tenantID, id string) (*model.Candidate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.tenants[tenantID]
	if !ok {
		return nil, false
	}
	c, ok := sh.byID[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Update applies fn to the stored candidate under the write lock and
// returns a clone of the result. Returns false when the candidate is
// absent. fn runs exactly once and must not retain its argument.
func (s *memStore) Update(tenantID, id string, fn func(*model.Candidate)) (*model.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.tenants[tenantID]
	if !ok {
		return nil, false
	}
	c, ok := sh.byID[id]
	if !ok {
		return nil, false
	}
	fn(c)
	return c.Clone(), true
}

// Delete removes the candidate, reporting whether it existed.
func (s *memStore) Delete(tenantID, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sh, ok := s.tenants[tenantID]
	if !ok {
		return false
	}
	if _, ok := sh.byID[id]; !ok {
		return false
	}
	delete(sh.byID, id)
	for i, oid := range sh.order {
		if oid == id {
			sh.order = append(sh.order[:i], sh.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns up to limit candidates in insertion order, skipping
// offset. limit is clamped to [1, 1000] with a default of 200, matching
// the relational list endpoints.
func (s *memStore) List(tenantID string, limit, offset int) []*model.Candidate {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.tenants[tenantID]
	if !ok || offset >= len(sh.order) {
		return nil
	}
	end := offset + limit
	if end > len(sh.order) {
		end = len(sh.order)
	}
	out := make([]*model.Candidate, 0, end-offset)
	for _, id := range sh.order[offset:end] {
		out = append(out, sh.byID[id].Clone())
	}
	return out
}

// All returns every candidate in the tenant in insertion order. The
// clusterer and the query engine work over the full set.
func (s *memStore) All(tenantID string) []*model.Candidate {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.tenants[tenantID]
	if !ok {
		return nil
	}
	out := make([]*model.Candidate, 0, len(sh.order))
	for _, id := range sh.order {
		out = append(out, sh.byID[id].Clone())
	}
	return out
}

// Len reports the number of candidates in the tenant.
func (s *memStore) Len(tenantID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sh, ok := s.tenants[tenantID]
	if !ok {
		return 0
	}
	return len(sh.order)
}

// PageAll returns one page of candidates across every tenant, ordered
// by (tenant_id, id) so sweep paging is deterministic. limit defaults
// to 200 when non-positive, mirroring the relational sweep queries.
func (s *memStore) PageAll(limit, offset int) []*model.Candidate {
	if limit <= 0 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantIDs := make([]string, 0, len(s.tenants))
	for tenantID := range s.tenants {
		tenantIDs = append(tenantIDs, tenantID)
	}
	sort.Strings(tenantIDs)

	var all []*model.Candidate
	for _, tenantID := range tenantIDs {
		sh := s.tenants[tenantID]
		ids := make([]string, len(sh.order))
		copy(ids, sh.order)
		sort.Strings(ids)
		for _, id := range ids {
			all = append(all, sh.byID[id])
		}
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	out := make([]*model.Candidate, 0, end-offset)
	for _, c := range all[offset:end] {
		out = append(out, c.Clone())
	}
	return out
}

// ExistsAnyTenant reports the tenant currently holding id, if any.
// Point ids are derived from the class and profile id alone, so the
// same id cannot exist under two tenants without colliding in the
// index; the write path uses this to reject the second tenant.
func (s *memStore) ExistsAnyTenant(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for tenantID, sh := range s.tenants {
		if _, ok := sh.byID[id]; ok {
			return tenantID, true
		}
	}
	return "", false
}

// Restore replaces the store's contents with cs, ordering each tenant's
// candidates by creation time so listing order survives a restart.
// Used only during startup rehydration.
func (s *memStore) Restore(cs []*model.Candidate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tenants = make(map[string]*tenantShard)
	for _, c := range cs {
		sh := s.shard(c.TenantID)
		if _, ok := sh.byID[c.ID]; ok {
			continue
		}
		sh.byID[c.ID] = c.Clone()
		sh.order = append(sh.order, c.ID)
	}
	for _, sh := range s.tenants {
		sort.SliceStable(sh.order, func(i, j int) bool {
			return sh.byID[sh.order[i]].CreatedAt.Before(sh.byID[sh.order[j]].CreatedAt)
		})
	}
}
