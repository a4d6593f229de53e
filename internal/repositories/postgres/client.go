// Package postgres holds the PostgreSQL implementation of the delivery ledger,
// selected with the postgres ledger driver.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool parses url, tunes the pool and verifies the connection
func NewPool(ctx context.Context, url string, maxConns int32) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database URL: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 2
	config.HealthCheckPeriod = 5 * time.Minute
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 15 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS deliveries (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	batch_id        TEXT NOT NULL DEFAULT '',
	template_code   TEXT NOT NULL,
	message         TEXT NOT NULL,
	phone           TEXT NOT NULL,
	display_name    TEXT NOT NULL DEFAULT '',
	recipient_kind  TEXT NOT NULL DEFAULT '',
	subject_id      TEXT NOT NULL DEFAULT '',
	subject_label   TEXT NOT NULL DEFAULT '',
	group_id        TEXT NOT NULL DEFAULT '',
	group_label     TEXT NOT NULL DEFAULT '',
	sent_by         TEXT NOT NULL DEFAULT '',
	sent_by_name    TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL,
	gateway         TEXT NOT NULL DEFAULT '',
	gateway_response JSONB NOT NULL DEFAULT '{}'::jsonb,
	cost            DOUBLE PRECISION NOT NULL DEFAULT 0,
	category        TEXT NOT NULL DEFAULT '',
	priority        TEXT NOT NULL DEFAULT '',
	scheduled_time  TIMESTAMPTZ,
	sent_time       TIMESTAMPTZ,
	delivered_time  TIMESTAMPTZ,
	error_message   TEXT NOT NULL DEFAULT '',
	retry_count     INTEGER NOT NULL DEFAULT 0,
	max_retries     INTEGER NOT NULL DEFAULT 3,
	retry_of        TEXT NOT NULL DEFAULT '',
	retried_by      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
ALTER TABLE deliveries ADD COLUMN IF NOT EXISTS retried_by TEXT NOT NULL DEFAULT '';
CREATE INDEX IF NOT EXISTS deliveries_tenant_created_idx ON deliveries (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS deliveries_tenant_status_idx ON deliveries (tenant_id, status);
CREATE INDEX IF NOT EXISTS deliveries_tenant_batch_idx ON deliveries (tenant_id, batch_id);
`

// EnsureSchema creates the deliveries table and its indexes
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create deliveries schema: %w", err)
	}
	return nil
}
