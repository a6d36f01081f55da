package digest

import (
	"context"
	"database/sql"
	"fmt"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS pulse`,
	`CREATE TABLE IF NOT EXISTS pulse.digest_sends (
		slot_label TEXT PRIMARY KEY,
		sent_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pulse.suggested_messages (
		source_id    TEXT PRIMARY KEY,
		suggested_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pulse.created_tasks (
		source_id  TEXT PRIMARY KEY,
		task_id    TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the digest state tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure digest schema: %w", err)
		}
	}
	return nil
}
