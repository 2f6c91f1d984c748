// Package ratelimit throttles the HTTP surface per tenant.
//
// Matching and feedback endpoints fan out into vector search and LLM
// parsing, so a single noisy tenant can starve everyone else. The
// Limiter interface is the contract; the in-process token bucket
// (MemoryLimiter) is the default implementation. Deployments that run
// multiple replicas behind one address can substitute a shared backend.
package ratelimit

import "context"

// Limiter decides whether a request identified by key should proceed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow reports whether the request may proceed. The key is opaque
	// to the limiter; callers build it (tenant id, client IP). An error
	// means the limiter itself failed — callers treat that as fail-open
	// and let the request through rather than blocking traffic.
	Allow(ctx context.Context, key string) (bool, error)

	// Close releases limiter resources (background goroutines, connections).
	Close() error
}

// NoopLimiter permits every request. Wired when rate limiting is disabled
// so the middleware path stays identical in both modes.
type NoopLimiter struct{}

// Allow always returns true.
func (NoopLimiter) Allow(context.Context, string) (bool, error) { return true, nil }

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
