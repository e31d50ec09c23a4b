package database

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationStatus reports where the schema landed after a migration run.
// Dirty means a previous run failed partway; the schema needs manual repair
// before identity data can be trusted.
type MigrationStatus struct {
	Version uint
	Dirty   bool
}

// ResolveMigrationsPath picks the migrations directory: the MIGRATIONS_PATH
// variable when set, then ./migrations for local development, then the
// executable's directory, then the container default.
func ResolveMigrationsPath() string {
	if path := os.Getenv("MIGRATIONS_PATH"); path != "" {
		return path
	}

	if _, err := os.Stat("migrations"); err == nil {
		abs, _ := filepath.Abs("migrations")
		return abs
	}

	if exec, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(exec), "migrations")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "/app/migrations"
}

// Migrate applies all pending migrations and reports the resulting schema
// version. An up-to-date schema is not an error.
func (db *DB) Migrate(migrationsPath string) (MigrationStatus, error) {
	m, err := db.migrator(migrationsPath)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer closeMigrator(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return MigrationStatus{}, fmt.Errorf("apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, fmt.Errorf("read schema version: %w", err)
	}

	return MigrationStatus{Version: version, Dirty: dirty}, nil
}

// Rollback undoes the most recent migration.
func (db *DB) Rollback(migrationsPath string) error {
	m, err := db.migrator(migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migration: %w", err)
	}

	return nil
}

// ResetSchema rolls every migration back, dropping all identity records,
// sync history, and stored credentials. Destructive.
func (db *DB) ResetSchema(migrationsPath string) error {
	m, err := db.migrator(migrationsPath)
	if err != nil {
		return err
	}
	defer closeMigrator(m)

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("reset schema: %w", err)
	}

	return nil
}

func (db *DB) migrator(migrationsPath string) (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(db.DB, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}

	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	_, _ = m.Close()
}
