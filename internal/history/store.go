// Package history persists compile reports in SQLite so past passes can be
// inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"
	"github.com/mvp-joe/sasswatch/internal/engine"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Run summarizes one recorded compile pass.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Compiled   int
	Failed     int
	Aborted    bool
	Error      string
}

// Duration returns the wall time of the pass.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// FileRecord is one file outcome within a run.
type FileRecord struct {
	RunID    string
	Source   string
	Target   string
	OK       bool
	Error    string
	Duration time.Duration
}

// Store records compile reports. It implements engine.Recorder.
type Store struct {
	db *sql.DB
}

var _ engine.Recorder = (*Store)(nil)

// Open opens or creates the history database at path, creating parent
// directories as needed.
func Open(path string) (*Store, error) {
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and serializes
	// writers from the watcher and CLI within one process.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores a report and all of its file results in one transaction.
// Recording the same report twice replaces the earlier copy.
func (s *Store) Record(ctx context.Context, report *engine.Report) error {
	if report == nil {
		return errors.New("nil report")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safe to call even after commit

	_, err = sq.Delete("compile_results").
		Where(sq.Eq{"run_id": report.ID}).
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to clear results for run %s: %w", report.ID, err)
	}

	_, err = sq.Insert("compile_runs").
		Columns("id", "started_at", "finished_at", "compiled", "failed", "aborted", "error").
		Values(
			report.ID,
			formatTime(report.StartedAt),
			formatTime(report.FinishedAt),
			report.Compiled(),
			len(report.Failed()),
			report.Aborted(),
			errString(report.Err),
		).
		Options("OR REPLACE").
		RunWith(tx).
		ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", report.ID, err)
	}

	if len(report.Results) > 0 {
		// Build the query once with Squirrel, then reuse the prepared statement
		sqlStr, _, err := sq.Insert("compile_results").
			Columns("run_id", "seq", "source", "target", "ok", "error", "duration_ms").
			Values("", 0, "", "", false, "", 0).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build SQL: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, sqlStr)
		if err != nil {
			return fmt.Errorf("failed to prepare statement: %w", err)
		}
		defer stmt.Close()

		for i, res := range report.Results {
			_, err := stmt.ExecContext(ctx,
				report.ID,
				i,
				res.Source,
				res.Target,
				res.OK(),
				errString(res.Err),
				res.Duration.Milliseconds(),
			)
			if err != nil {
				return fmt.Errorf("failed to write result for %s: %w", res.Source, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run %s: %w", report.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. A limit <= 0 returns all.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := sq.Select("id", "started_at", "finished_at", "compiled", "failed", "aborted", "error").
		From("compile_runs").
		OrderBy("started_at DESC", "id")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(s.db).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			started, finished string
		)
		if err := rows.Scan(&r.ID, &started, &finished, &r.Compiled, &r.Failed, &r.Aborted, &r.Error); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if r.FinishedAt, err = parseTime(finished); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Last returns the most recent run, or nil if nothing was recorded.
func (s *Store) Last(ctx context.Context) (*Run, error) {
	runs, err := s.Recent(ctx, 1)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

// Failures returns the failed file results of a run in pass order.
func (s *Store) Failures(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := sq.Select("run_id", "source", "target", "ok", "error", "duration_ms").
		From("compile_results").
		Where(sq.Eq{"run_id": runID, "ok": false}).
		OrderBy("seq").
		RunWith(s.db).
		QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query failures for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []FileRecord
	for rows.Next() {
		var (
			rec FileRecord
			ms  int64
		)
		if err := rows.Scan(&rec.RunID, &rec.Source, &rec.Target, &rec.OK, &rec.Error, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		rec.Duration = time.Duration(ms) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
