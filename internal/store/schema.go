package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id BIGSERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		source_id TEXT NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL,
		content TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		posted_at TIMESTAMPTZ,
		relevance INT NOT NULL,
		severity INT NOT NULL,
		score INT NOT NULL,
		summary TEXT NOT NULL,
		category TEXT NOT NULL,
		judgment_source TEXT NOT NULL,
		bait_score INT NOT NULL DEFAULT 0,
		is_bait BOOLEAN NOT NULL DEFAULT FALSE,
		cluster_id BIGINT,
		status TEXT NOT NULL DEFAULT 'new',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS items_natural_key ON items (source, source_id)`,
	`CREATE TABLE IF NOT EXISTS clusters (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		post_count INT NOT NULL DEFAULT 0,
		avg_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		validation_level TEXT NOT NULL DEFAULT 'LOW',
		industries JSONB NOT NULL DEFAULT '[]',
		best_quotes JSONB NOT NULL DEFAULT '[]',
		synthesis TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id UUID PRIMARY KEY,
		trigger TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		fetched_count INT NOT NULL DEFAULT 0,
		new_item_count INT NOT NULL DEFAULT 0,
		latest_item_before TIMESTAMPTZ,
		latest_item_after TIMESTAMPTZ,
		error_message TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		finished_at TIMESTAMPTZ
	)`,
}

// migrationStatements are additive column migrations applied defensively on
// every startup. Duplicate-column failures are expected on all but the first
// run against an older schema.
var migrationStatements = []string{
	`ALTER TABLE items ADD COLUMN notes TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE items ADD COLUMN bait_score INT NOT NULL DEFAULT 0`,
	`ALTER TABLE items ADD COLUMN is_bait BOOLEAN NOT NULL DEFAULT FALSE`,
	`ALTER TABLE clusters ADD COLUMN synthesis TEXT NOT NULL DEFAULT ''`,
	`ALTER TABLE runs ADD COLUMN latest_item_before TIMESTAMPTZ`,
	`ALTER TABLE runs ADD COLUMN latest_item_after TIMESTAMPTZ`,
}

const duplicateColumnCode = "42701"

// InitSchema creates tables and indexes if missing and applies additive
// migrations. Safe to run on every startup.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		stmt := stmt
		err := withRetry(ctx, s.logger, "init schema", s.initDelay, func() error {
			_, execErr := s.db.Exec(ctx, stmt)
			return execErr
		})
		if err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}

	for _, stmt := range migrationStatements {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == duplicateColumnCode {
				continue
			}
			s.logger.Warn("additive migration failed", zap.String("stmt", stmt), zap.Error(err))
		}
	}
	return nil
}
