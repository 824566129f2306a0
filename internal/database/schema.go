package database

import (
	"context"
	"fmt"
)

const postAnalyticsTable = `
	CREATE TABLE IF NOT EXISTS post_analytics (
		id UUID PRIMARY KEY,
		type VARCHAR(50) NOT NULL,
		platforms TEXT[] NOT NULL,
		success_count INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		text_length INTEGER NOT NULL DEFAULT 0,
		has_media BOOLEAN NOT NULL DEFAULT FALSE,
		timed_out BOOLEAN NOT NULL DEFAULT FALSE,
		outcomes JSONB NOT NULL DEFAULT '[]',
		timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_post_analytics_timestamp ON post_analytics(timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_post_analytics_type ON post_analytics(type);
	`

// CreateTables creates all necessary database tables
func (db *DB) CreateTables(ctx context.Context) error {
	db.logger.Info("Creating database tables...")

	tables := []string{postAnalyticsTable}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, table); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}

	db.logger.Info("✅ All tables created successfully")
	return nil
}
