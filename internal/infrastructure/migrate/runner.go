// Package migrate provides utilities for running database migrations.
package migrate

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file" // file source for migrations
	"go.uber.org/zap"
)

type Config struct {
	DatabaseURL    string
	MigrationsPath string
}

type Runner struct {
	config *Config
	logger *zap.Logger
}

func NewRunner(config *Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		config: config,
		logger: logger,
	}
}

// open connects to the database and builds a migrate instance. The returned
// close func must be called once the caller is done with the instance.
func (r *Runner) open() (*migrate.Migrate, func(), error) {
	db, err := sql.Open("postgres", r.config.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	closeDB := func() {
		if closeErr := db.Close(); closeErr != nil {
			r.logger.Warn("Failed to close database connection", zap.Error(closeErr))
		}
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", r.config.MigrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		closeDB()
		return nil, nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return m, closeDB, nil
}

// Run executes pending migrations
func (r *Runner) Run() error {
	m, closeDB, err := r.open()
	if err != nil {
		return err
	}
	defer closeDB()

	if upErr := m.Up(); upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get version: %w", err)
	}

	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", version)
	}

	r.logger.Info("Migrations applied", zap.Uint("version", version))
	return nil
}

// Rollback rolls back the last migration
func (r *Runner) Rollback() error {
	m, closeDB, err := r.open()
	if err != nil {
		return err
	}
	defer closeDB()

	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}

	return nil
}

// Version returns the current migration version
func (r *Runner) Version() (uint, bool, error) {
	m, closeDB, err := r.open()
	if err != nil {
		return 0, false, err
	}
	defer closeDB()

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}

	return version, dirty, nil
}
