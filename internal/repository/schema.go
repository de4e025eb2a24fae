package repository

import (
	"context"
	"database/sql"
	"fmt"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS scheduled_posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	hashtags TEXT[] NOT NULL DEFAULT '{}',
	media_url TEXT NOT NULL,
	media_public_id TEXT NOT NULL DEFAULT '',
	platforms TEXT[] NOT NULL DEFAULT '{}',
	scheduled_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'publishing', 'published', 'failed')),
	error_message TEXT,
	platform_results JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_scheduled_posts_scheduled_at ON scheduled_posts (scheduled_at);
CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due ON scheduled_posts (status, scheduled_at);
`

// Timestamps are unix microseconds so range comparisons stay numeric.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS scheduled_posts (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	hashtags TEXT NOT NULL DEFAULT '[]',
	media_url TEXT NOT NULL,
	media_public_id TEXT NOT NULL DEFAULT '',
	platforms TEXT NOT NULL DEFAULT '[]',
	scheduled_at INTEGER NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending'
		CHECK (status IN ('pending', 'publishing', 'published', 'failed')),
	error_message TEXT,
	platform_results TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scheduled_posts_scheduled_at ON scheduled_posts (scheduled_at);
CREATE INDEX IF NOT EXISTS idx_scheduled_posts_due ON scheduled_posts (status, scheduled_at);
`

// Migrate creates the scheduled_posts table and its indexes if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var schema string
	switch driver {
	case DriverPostgres:
		schema = postgresSchema
	case DriverSQLite:
		schema = sqliteSchema
	default:
		return fmt.Errorf("unsupported database driver %q", driver)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate %s schema: %w", driver, err)
	}
	return nil
}
