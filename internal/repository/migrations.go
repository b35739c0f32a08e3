package repository

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// DefaultMigrationsSource is resolved against the working directory of the binary.
const DefaultMigrationsSource = "file://internal/repository/migrations"

// RunMigrations brings the schema up to date. A dirty state left by a crashed run is
// forced back to the previous version and the migrations are applied again.
func RunMigrations(sourceURL, databaseURL string) error {
	if sourceURL == "" {
		sourceURL = DefaultMigrationsSource
	}

	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("create migration instance: %w", err)
	}
	defer m.Close()

	err = m.Up()
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	var dirtyErr migrate.ErrDirty
	if !errors.As(err, &dirtyErr) {
		return fmt.Errorf("run migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil {
		return fmt.Errorf("get current migration version: %w", verr)
	}
	if !dirty {
		return fmt.Errorf("dirty migrations at version %d and could not auto-fix", dirtyErr.Version)
	}

	forceVersion := max(int(version)-1, -1)
	if ferr := m.Force(forceVersion); ferr != nil {
		return fmt.Errorf("force clean migration version %d: %w", forceVersion, ferr)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rerun migrations after dirty state: %w", err)
	}

	return nil
}
