package store

import (
	"context"
	"database/sql"
)

// schema contains the SQLite DDL for the timetable tables.
// Each statement uses IF NOT EXISTS for idempotency.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS grids (
		tenant_id   TEXT NOT NULL,
		term        TEXT NOT NULL,
		class_group TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'draft',
		notes       TEXT NOT NULL DEFAULT '[]',
		updated_at  TEXT NOT NULL,
		PRIMARY KEY (tenant_id, term, class_group)
	)`,

	`CREATE TABLE IF NOT EXISTS assignments (
		tenant_id     TEXT NOT NULL,
		term          TEXT NOT NULL,
		class_group   TEXT NOT NULL,
		day           TEXT NOT NULL,
		period        INTEGER NOT NULL,
		start_min     INTEGER NOT NULL,
		end_min       INTEGER NOT NULL,
		subject       TEXT NOT NULL,
		instructor_id TEXT,
		source        TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL DEFAULT 'draft',
		PRIMARY KEY (tenant_id, term, class_group, day, period)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_assignments_instructor ON assignments(tenant_id, term, instructor_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_status ON assignments(tenant_id, term, status)`,

	// No instructor may hold two published rows in the same slot of a term.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_assignments_published_slot
		ON assignments(tenant_id, term, instructor_id, day, period)
		WHERE status = 'published' AND instructor_id IS NOT NULL`,
}

// migrate executes all schema DDL statements.
func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
