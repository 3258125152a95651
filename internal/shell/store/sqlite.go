package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/stokerbuild/stoker/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Build Operations
// =============================================================================

// CreateBuild inserts a new build record.
func (s *SQLiteStore) CreateBuild(ctx context.Context, build *domain.Build) error {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO builds (
			reference_id, recipe_name, recipe_digest, source_digest,
			image_ref, image_id, status, error, created_at, finished_at
		) VALUES (
			:reference_id, :recipe_name, :recipe_digest, :source_digest,
			:image_ref, :image_id, :status, :error, :created_at, :finished_at
		)`, build)
	if err != nil {
		if isUniqueViolation(err) {
			return NewStoreError("CreateBuild", "build", build.ReferenceID, "duplicate reference id", ErrDuplicateID)
		}
		return NewStoreError("CreateBuild", "build", build.ReferenceID, err.Error(), err)
	}

	id, err := res.LastInsertId()
	if err == nil {
		build.ID = int(id)
	}
	return nil
}

// GetBuild returns the build with the given reference ID.
func (s *SQLiteStore) GetBuild(ctx context.Context, referenceID string) (*domain.Build, error) {
	var build domain.Build
	err := s.db.GetContext(ctx, &build,
		`SELECT * FROM builds WHERE reference_id = ?`, referenceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetBuild", "build", referenceID, "not found", ErrNotFound)
		}
		return nil, NewStoreError("GetBuild", "build", referenceID, err.Error(), err)
	}
	return &build, nil
}

// UpdateBuild persists status, image, error, and finish time changes.
func (s *SQLiteStore) UpdateBuild(ctx context.Context, build *domain.Build) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE builds SET
			image_ref = :image_ref,
			image_id = :image_id,
			status = :status,
			error = :error,
			finished_at = :finished_at
		WHERE reference_id = :reference_id`, build)
	if err != nil {
		return NewStoreError("UpdateBuild", "build", build.ReferenceID, err.Error(), err)
	}

	rows, err := res.RowsAffected()
	if err == nil && rows == 0 {
		return NewStoreError("UpdateBuild", "build", build.ReferenceID, "not found", ErrNotFound)
	}
	return nil
}

// ListBuilds returns builds ordered newest first.
func (s *SQLiteStore) ListBuilds(ctx context.Context, opts ListOptions) ([]domain.Build, error) {
	opts = opts.Normalize()

	builds := []domain.Build{}
	err := s.db.SelectContext(ctx, &builds, `
		SELECT * FROM builds
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListBuilds", "build", "", err.Error(), err)
	}
	return builds, nil
}

// FindByDigests returns the most recent succeeded build with matching digests.
func (s *SQLiteStore) FindByDigests(ctx context.Context, recipeDigest, sourceDigest string) (*domain.Build, error) {
	var build domain.Build
	err := s.db.GetContext(ctx, &build, `
		SELECT * FROM builds
		WHERE recipe_digest = ? AND source_digest = ? AND status = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, recipeDigest, sourceDigest, domain.BuildSucceeded)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("FindByDigests", "build", "", "not found", ErrNotFound)
		}
		return nil, NewStoreError("FindByDigests", "build", "", err.Error(), err)
	}
	return &build, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint error.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
