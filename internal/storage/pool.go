// Package storage provides the PostgreSQL storage layer for Suisen.
//
// It manages connection pooling via pgxpool and tenant-scoped query
// methods for the authoritative entity tables (teams, interviewers,
// positions) plus the vector outbox used to reconcile the search index.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DB wraps a pgxpool.Pool for all relational access.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New connects a pool to dsn and verifies it with a ping.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: parse DSN: %w", err)
	}

	// Register pgvector types on each new connection so entity embeddings
	// can be encoded. Best-effort: if the vector extension hasn't been
	// created yet (initial startup before migrations), log and proceed;
	// subsequent connections succeed once the extension exists.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			logger.Debug("storage: pgvector type registration skipped", "error", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	return &DB{pool: pool, logger: logger}, nil
}

// Pool exposes the underlying pool for packages that need raw access,
// such as the reconciliation worker's SKIP LOCKED claims.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks database connectivity. Used by the health endpoint.
func (db *DB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
}
