// Package runlog persists workflow run history to a local SQLite database,
// backing the supplemented "history" CLI surface (SPEC_FULL.md §4).
package runlog

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultMaxConns        = 25
	defaultConnMaxLifetime = 10 * time.Minute
)

// Run is one recorded workflow execution.
type Run struct {
	ID           int64
	RunID        string
	WorkflowName string
	StartedAt    time.Time
	FinishedAt   time.Time
	Success      bool
	Result       string
	Steps        int
}

// Store is a SQLite-backed workflow run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at dbPath, running
// any pending migrations before returning.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating run log directory: %w", err)
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000",
		dbPath,
	)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening run log database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxConns)
	db.SetMaxIdleConns(defaultMaxConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// migrate applies every pending migration embedded in sqlSchemas.
func (s *Store) migrate() error {
	sourceDriver, err := httpfs.New(http.FS(sqlSchemas), "migrations")
	if err != nil {
		return fmt.Errorf("loading embedded migrations: %w", err)
	}

	dbDriver, err := sqlite_migrate.WithInstance(s.db, &sqlite_migrate.Config{})
	if err != nil {
		return fmt.Errorf("creating sqlite migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("httpfs", sourceDriver, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// DefaultPath returns the default run-log database path,
// ~/.actorflow/runs.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".actorflow", "runs.db"), nil
}

// RecordRun inserts a completed run and returns its assigned id. If
// run.RunID is empty, a new UUID is generated for it.
func (s *Store) RecordRun(ctx context.Context, run Run) (int64, error) {
	if run.RunID == "" {
		run.RunID = uuid.NewString()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs
			(run_id, workflow_name, started_at, finished_at, success, result, steps)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.WorkflowName, run.StartedAt, run.FinishedAt,
		run.Success, run.Result, run.Steps,
	)
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}

	return res.LastInsertId()
}

// ListRuns returns the most recent runs for workflowName (or every
// workflow, if workflowName is empty), newest first, bounded by limit.
func (s *Store) ListRuns(ctx context.Context, workflowName string, limit int) ([]Run, error) {
	var (
		rows *sql.Rows
		err  error
	)

	if workflowName == "" {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, run_id, workflow_name, started_at, finished_at,
			       success, result, steps
			FROM workflow_runs
			ORDER BY id DESC
			LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT id, run_id, workflow_name, started_at, finished_at,
			       success, result, steps
			FROM workflow_runs
			WHERE workflow_name = ?
			ORDER BY id DESC
			LIMIT ?`, workflowName, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finishedAt sql.NullTime

		if err := rows.Scan(&r.ID, &r.RunID, &r.WorkflowName, &r.StartedAt,
			&finishedAt, &r.Success, &r.Result, &r.Steps); err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}

		if finishedAt.Valid {
			r.FinishedAt = finishedAt.Time
		}

		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetRun returns a single run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (Run, error) {
	var r Run
	var finishedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT id, run_id, workflow_name, started_at, finished_at,
		       success, result, steps
		FROM workflow_runs
		WHERE id = ?`, id,
	).Scan(&r.ID, &r.RunID, &r.WorkflowName, &r.StartedAt, &finishedAt,
		&r.Success, &r.Result, &r.Steps)
	if err != nil {
		return Run{}, fmt.Errorf("fetching run %d: %w", id, err)
	}

	if finishedAt.Valid {
		r.FinishedAt = finishedAt.Time
	}

	return r, nil
}
