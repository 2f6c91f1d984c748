package bandit

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// Registry holds the live bandit per (tenant, position). Creation is
// deduplicated so concurrent feedback for a position that has no bandit
// yet triggers exactly one warm start.
type Registry struct {
	mu      sync.RWMutex
	bandits map[string]*Bandit
	group   singleflight.Group
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{bandits: make(map[string]*Bandit)}
}

func registryKey(tenantID, positionID string) string {
	return tenantID + "/" + positionID
}

// Get returns the live bandit for a position, if one exists.
func (r *Registry) Get(tenantID, positionID string) (*Bandit, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bandits[registryKey(tenantID, positionID)]
	return b, ok
}

// GetOrCreate returns the live bandit, building it with build on first
// use. Concurrent callers for the same position share one build; a
// failed build leaves no entry so the next caller retries.
func (r *Registry) GetOrCreate(tenantID, positionID string, build func() (*Bandit, error)) (*Bandit, error) {
	key := registryKey(tenantID, positionID)

	r.mu.RLock()
	b, ok := r.bandits[key]
	r.mu.RUnlock()
	if ok {
		return b, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		b, ok := r.bandits[key]
		r.mu.RUnlock()
		if ok {
			return b, nil
		}
		built, err := build()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.bandits[key] = built
		r.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Bandit), nil
}

// Remove drops a position's bandit, forcing a fresh warm start on next
// use. Called when a position's arm snapshot is no longer meaningful.
func (r *Registry) Remove(tenantID, positionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bandits, registryKey(tenantID, positionID))
}

// Len reports how many live bandits exist.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bandits)
}
