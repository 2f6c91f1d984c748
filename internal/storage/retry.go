package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// Transient Postgres failure codes that a fresh transaction can resolve.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// isRetriable reports whether err is a transient Postgres conflict that a
// fresh transaction can resolve.
func isRetriable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// WithRetry runs fn, retrying up to maxRetries times on serialization and
// deadlock errors with jittered exponential backoff from baseDelay. Any
// other error returns immediately.
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	delay := baseDelay
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isRetriable(err) {
			return err
		}
		if attempt == maxRetries {
			return err
		}
		jitter := time.Duration(rand.Int64N(int64(delay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay + jitter):
		}
		delay *= 2
	}
}
