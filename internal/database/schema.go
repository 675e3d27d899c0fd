package database

import (
	"context"
	"fmt"
)

// schema is applied idempotently at startup. Price history is
// append-only; job_executions records every trigger firing.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS platforms (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT,
		currency TEXT NOT NULL DEFAULT 'MYR',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		scraping_delay_seconds INT NOT NULL DEFAULT 2,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS product_platforms (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		platform_id BIGINT NOT NULL REFERENCES platforms(id) ON DELETE CASCADE,
		product_url TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (product_id, platform_id)
	)`,

	`CREATE TABLE IF NOT EXISTS price_records (
		id BIGSERIAL PRIMARY KEY,
		product_id BIGINT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		platform_id BIGINT NOT NULL REFERENCES platforms(id) ON DELETE CASCADE,
		product_url TEXT NOT NULL,
		price_base NUMERIC(12,2) NOT NULL,
		original_price NUMERIC(12,2) NOT NULL,
		original_currency TEXT NOT NULL,
		stock_status TEXT NOT NULL DEFAULT 'UNKNOWN',
		seller TEXT,
		confidence DOUBLE PRECISION NOT NULL DEFAULT 1,
		needs_review BOOLEAN NOT NULL DEFAULT FALSE,
		scraped_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_price_records_lookup
		ON price_records (product_id, platform_id, scraped_at DESC)`,

	`CREATE TABLE IF NOT EXISTS job_executions (
		id UUID PRIMARY KEY,
		trigger TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ,
		attempted INT NOT NULL DEFAULT 0,
		succeeded INT NOT NULL DEFAULT 0,
		failed INT NOT NULL DEFAULT 0,
		error_detail TEXT
	)`,

	`CREATE TABLE IF NOT EXISTS outbox_event (
		id UUID PRIMARY KEY,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		payload JSONB NOT NULL,
		target_stream TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		retry_count INT NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		processed_at TIMESTAMPTZ,
		next_retry_at TIMESTAMPTZ
	)`,

	`CREATE INDEX IF NOT EXISTS idx_outbox_event_pending
		ON outbox_event (status, next_retry_at)`,
}

// Migrate applies the schema. Safe to run on every startup.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
