package history

import (
	"database/sql"
	"fmt"
)

// createSchema creates the history tables. Safe to run on an existing
// database.
func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin schema transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	tables := []struct {
		name string
		ddl  string
	}{
		{"compile_runs", createRunsTable},
		{"compile_results", createResultsTable},
	}
	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", table.name, err)
		}
	}

	for i, idx := range indexes {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("failed to create index %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit schema transaction: %w", err)
	}
	return nil
}

const createRunsTable = `
CREATE TABLE IF NOT EXISTS compile_runs (
    id TEXT PRIMARY KEY,                         -- Report UUID
    started_at TEXT NOT NULL,                    -- RFC 3339, UTC
    finished_at TEXT NOT NULL,
    compiled INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    aborted INTEGER NOT NULL DEFAULT 0,          -- Boolean
    error TEXT NOT NULL DEFAULT ''               -- Pass error, empty on success
)
`

const createResultsTable = `
CREATE TABLE IF NOT EXISTS compile_results (
    run_id TEXT NOT NULL,
    seq INTEGER NOT NULL,                        -- Position within the pass
    source TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',             -- Empty when compilation failed
    ok INTEGER NOT NULL,                         -- Boolean
    error TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (run_id, seq),
    FOREIGN KEY (run_id) REFERENCES compile_runs(id) ON DELETE CASCADE
)
`

var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_compile_runs_started_at ON compile_runs(started_at)`,
	`CREATE INDEX IF NOT EXISTS idx_compile_results_failed ON compile_results(run_id, ok)`,
}
