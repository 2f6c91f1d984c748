package ratelimit

import (
	"context"
	"sync"
	"time"
)

const (
	// staleAfter is how long a bucket may sit untouched before eviction.
	staleAfter = 10 * time.Minute
	// evictEvery is the sweep interval for the eviction goroutine.
	evictEvery = time.Minute
)

// bucket holds the token state for one rate-limit key.
type bucket struct {
	tokens     float64
	lastAccess time.Time
}

// MemoryLimiter is a per-key token bucket held entirely in process memory.
//
// Every key refills at rate tokens per second up to a burst-sized cap.
// A background goroutine sweeps idle keys so a long-running process does
// not accumulate a bucket per tenant that ever connected.
type MemoryLimiter struct {
	rate  float64 // tokens added per second
	burst float64 // bucket capacity

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token-bucket limiter sustaining rate requests
// per second per key with bursts up to burst. Call Close to stop the
// eviction goroutine.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// Allow consumes one token from the bucket for key. It returns false when
// the bucket is empty; the error return is always nil and exists to satisfy
// Limiter.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		// First sighting of this key: full bucket minus the token this
		// request consumes.
		m.buckets[key] = &bucket{tokens: m.burst - 1, lastAccess: now}
		return true, nil
	}

	b.tokens += now.Sub(b.lastAccess).Seconds() * m.rate
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.lastAccess = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the eviction goroutine. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(evictEvery)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictStale()
		}
	}
}

func (m *MemoryLimiter) evictStale() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for key, b := range m.buckets {
		if b.lastAccess.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
