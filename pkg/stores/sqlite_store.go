package stores

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteJournal implements the update-run journal on SQLite.
type SQLiteJournal struct {
	db   *sql.DB
	path string
}

// Config holds SQLite journal configuration.
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewSQLiteJournal creates a new journal instance. Call Init before use.
func NewSQLiteJournal(cfg Config) (*SQLiteJournal, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteJournal{path: cfg.Path}, nil
}

// Init opens the database connection and enables WAL mode.
func (j *SQLiteJournal) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", j.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	j.db = db
	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (j *SQLiteJournal) Migrate(_ context.Context) error {
	if j.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// HealthCheck verifies the database connection.
func (j *SQLiteJournal) HealthCheck(ctx context.Context) error {
	if j.db == nil {
		return fmt.Errorf("database not initialized")
	}
	return j.db.PingContext(ctx)
}

// CreateRun inserts a new run record.
func (j *SQLiteJournal) CreateRun(ctx context.Context, run *UpdateRun) error {
	query := `
		INSERT INTO update_runs (id, osname, remote_name, remote_url, ref, commit_id, status,
			failed_stage, error, warning, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		run.ID,
		run.OSName,
		run.RemoteName,
		run.RemoteURL,
		run.Ref,
		run.Commit,
		run.Status,
		run.FailedStage,
		run.Error,
		run.Warning,
		run.StartedAt,
		run.CompletedAt,
		run.CreatedAt,
		run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records a run's terminal outcome.
func (j *SQLiteJournal) CompleteRun(ctx context.Context, run *UpdateRun) error {
	query := `
		UPDATE update_runs
		SET commit_id = ?, status = ?, failed_stage = ?, error = ?, warning = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := j.db.ExecContext(ctx, query,
		run.Commit,
		run.Status,
		run.FailedStage,
		run.Error,
		run.Warning,
		run.CompletedAt,
		time.Now().UTC(),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (j *SQLiteJournal) GetRun(ctx context.Context, id string) (*UpdateRun, error) {
	query := `
		SELECT id, osname, remote_name, remote_url, ref, commit_id, status,
			failed_stage, error, warning, started_at, completed_at, created_at, updated_at
		FROM update_runs
		WHERE id = ?
	`

	run := &UpdateRun{}
	err := j.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.OSName,
		&run.RemoteName,
		&run.RemoteURL,
		&run.Ref,
		&run.Commit,
		&run.Status,
		&run.FailedStage,
		&run.Error,
		&run.Warning,
		&run.StartedAt,
		&run.CompletedAt,
		&run.CreatedAt,
		&run.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (j *SQLiteJournal) ListRuns(ctx context.Context, limit int) ([]UpdateRun, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, osname, remote_name, remote_url, ref, commit_id, status,
			failed_stage, error, warning, started_at, completed_at, created_at, updated_at
		FROM update_runs
		ORDER BY started_at DESC
		LIMIT ?
	`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []UpdateRun
	for rows.Next() {
		var run UpdateRun
		if err := rows.Scan(
			&run.ID,
			&run.OSName,
			&run.RemoteName,
			&run.RemoteURL,
			&run.Ref,
			&run.Commit,
			&run.Status,
			&run.FailedStage,
			&run.Error,
			&run.Warning,
			&run.StartedAt,
			&run.CompletedAt,
			&run.CreatedAt,
			&run.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
