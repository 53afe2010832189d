package persistence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PostgreSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // File source driver
)

// RunMigrations applies every pending migration under migrationsPath and
// returns the schema version the database ends at. The path may be a plain
// directory or a migrate source URL such as file://migrations/postgres.
func RunMigrations(databaseURL string, migrationsPath string) (uint, error) {
	if migrationsPath == "" {
		return 0, errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return 0, errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(sourceURL(migrationsPath), databaseURL)
	if err != nil {
		return 0, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("database schema is dirty at version %d", version)
	}
	return version, nil
}

func sourceURL(migrationsPath string) string {
	if strings.Contains(migrationsPath, "://") {
		return migrationsPath
	}
	return "file://" + migrationsPath
}
