package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"quill/internal/config"
	"quill/internal/reconcile"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; old databases must be deleted after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded pipeline run.
type Run struct {
	ID           string
	Trigger      string
	Status       string
	StartedAt    time.Time
	CompletedAt  *time.Time
	ErrorMessage string
	Changes      int
}

// Change is one recorded corpus mutation.
type Change struct {
	RunID       string
	RelPath     string
	Kind        string
	Fingerprint string
	RecordedAt  time.Time
}

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the journal database under the log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.LogDir, "journal.db"))
}

// OpenPath opens the journal database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}

// StartRun inserts a new running entry and returns its ID.
func (s *Store) StartRun(ctx context.Context, trigger string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, triggered_by, status, started_at) VALUES (?, ?, ?, ?)",
		id, trigger, StatusRunning, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// RecordChanges stores the change records produced by a run.
func (s *Store) RecordChanges(ctx context.Context, runID string, records []reconcile.ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin change tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO change_records (run_id, rel_path, change_kind, fingerprint, recorded_at) VALUES (?, ?, ?, ?, ?)",
			runID, rec.RelPath, string(rec.Kind), rec.Fingerprint, now); err != nil {
			return fmt.Errorf("insert change record: %w", err)
		}
	}
	return tx.Commit()
}

// CompleteRun marks a run finished. A non-empty errorMessage records the run
// as failed.
func (s *Store) CompleteRun(ctx context.Context, runID, errorMessage string) error {
	status := StatusCompleted
	if errorMessage != "" {
		status = StatusFailed
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET status = ?, completed_at = ?, error_message = ? WHERE id = ?",
		status, time.Now().UTC().Format(time.RFC3339Nano), nullableString(errorMessage), runID)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first, with their change
// counts.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.triggered_by, r.status, r.started_at, r.completed_at, r.error_message,
		       (SELECT COUNT(1) FROM change_records c WHERE c.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ChangesForRun returns a run's change records.
func (s *Store) ChangesForRun(ctx context.Context, runID string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, rel_path, change_kind, fingerprint, recorded_at FROM change_records WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var changes []Change
	for rows.Next() {
		var c Change
		var recordedAt string
		if err := rows.Scan(&c.RunID, &c.RelPath, &c.Kind, &c.Fingerprint, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		c.RecordedAt, _ = time.Parse(time.RFC3339Nano, recordedAt)
		changes = append(changes, c)
	}
	return changes, rows.Err()
}

func scanRun(rows *sql.Rows) (Run, error) {
	var run Run
	var startedAt string
	var completedAt, errorMessage sql.NullString
	if err := rows.Scan(&run.ID, &run.Trigger, &run.Status, &startedAt, &completedAt, &errorMessage, &run.Changes); err != nil {
		return run, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt, _ = time.Parse(time.RFC3339Nano, startedAt)
	if completedAt.Valid {
		if ts, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			run.CompletedAt = &ts
		}
	}
	if errorMessage.Valid {
		run.ErrorMessage = errorMessage.String
	}
	return run, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
