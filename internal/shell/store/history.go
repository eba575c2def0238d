package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Deploy History
// =============================================================================

// DeployRecord is one persisted deploy attempt for one target. Recording
// is best-effort; a history failure never fails a deploy.
type DeployRecord struct {
	ID            string    `db:"id"`
	CorrelationID string    `db:"correlation_id"`
	Repo          string    `db:"repo"`
	Branch        string    `db:"branch"`
	SourceBranch  string    `db:"source_branch"`
	ContainerName string    `db:"container_name"`
	ImageTag      string    `db:"image_tag"`
	Outcome       string    `db:"outcome"`
	Injection     string    `db:"injection"`
	ErrorDetail   string    `db:"error_detail"`
	CreatedAt     time.Time `db:"created_at"`
}

// History persists deploy records in SQLite.
type History struct {
	db *sqlx.DB
}

// OpenHistory opens the history database, runs migrations, and returns a
// ready store.
func OpenHistory(dsn string) (*History, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("OpenHistory", dsn, err.Error(), ErrConnectionFailed)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("OpenHistory", dsn, err.Error(), ErrConnectionFailed)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, NewStoreError("OpenHistory", dsn, err.Error(), ErrMigrationFailed)
	}
	return &History{db: db}, nil
}

func runMigrations(db *sqlx.DB) error {
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{NoTxWrap: true})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record inserts one deploy record.
func (h *History) Record(ctx context.Context, rec DeployRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := h.db.NamedExecContext(ctx, `
		INSERT INTO deploy_records
			(id, correlation_id, repo, branch, source_branch, container_name, image_tag, outcome, injection, error_detail, created_at)
		VALUES
			(:id, :correlation_id, :repo, :branch, :source_branch, :container_name, :image_tag, :outcome, :injection, :error_detail, :created_at)
	`, rec)
	if err != nil {
		return NewStoreError("Record", "", err.Error(), err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]DeployRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []DeployRecord
	err := h.db.SelectContext(ctx, &records, `
		SELECT id, correlation_id, repo, branch, source_branch, container_name, image_tag, outcome, injection, error_detail, created_at
		FROM deploy_records
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, NewStoreError("Recent", "", err.Error(), err)
	}
	return records, nil
}
