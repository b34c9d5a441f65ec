package postgres

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS authors (
	author_id BIGSERIAL PRIMARY KEY,
	author_name TEXT NOT NULL,
	author_surname TEXT NOT NULL DEFAULT '',
	author_url TEXT NOT NULL DEFAULT '',
	author_born_date TEXT NOT NULL DEFAULT '',
	author_born_location TEXT NOT NULL DEFAULT '',
	author_description TEXT NOT NULL DEFAULT '',
	UNIQUE (author_name, author_surname)
)`,
	`CREATE TABLE IF NOT EXISTS quotes (
	quote_id BIGSERIAL PRIMARY KEY,
	quote_text TEXT NOT NULL UNIQUE,
	author_id BIGINT REFERENCES authors (author_id)
)`,
	`CREATE TABLE IF NOT EXISTS tags (
	tag_id BIGSERIAL PRIMARY KEY,
	tag_text TEXT NOT NULL UNIQUE
)`,
	`CREATE TABLE IF NOT EXISTS quote_tags (
	quote_id BIGINT NOT NULL REFERENCES quotes (quote_id),
	tag_id BIGINT NOT NULL REFERENCES tags (tag_id),
	PRIMARY KEY (quote_id, tag_id)
)`,
	`CREATE TABLE IF NOT EXISTS crawl_runs (
	run_id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	status TEXT NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	quotes INTEGER NOT NULL DEFAULT 0,
	tags INTEGER NOT NULL DEFAULT 0,
	row_errors INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`,
}

// EnsureSchema creates the crawler tables when they are missing. Existing
// tables are left untouched.
func EnsureSchema(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
