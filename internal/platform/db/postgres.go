// Package db opens the postgres pool that backs the audit trail.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_logs (
	id          BIGSERIAL PRIMARY KEY,
	actor_id    TEXT,
	action      TEXT        NOT NULL,
	entity      TEXT        NOT NULL,
	entity_id   TEXT        NOT NULL,
	meta        JSONB       NOT NULL DEFAULT '{}'::jsonb,
	occurred_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_logs_entity_idx ON audit_logs (entity, entity_id, occurred_at DESC);`

// New creates a PostgreSQL connection pool and checks connectivity.
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}
	// Audit writes are small and infrequent.
	if config.MaxConns > 4 {
		config.MaxConns = 4
	}
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

// EnsureAuditSchema creates the audit_logs table when missing.
func EnsureAuditSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, auditSchema); err != nil {
			return fmt.Errorf("platform/db: audit schema: %w", err)
		}
		return nil
	})
}
