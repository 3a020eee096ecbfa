package journal

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file" // File source driver
)

// migrateUp applies all pending up migrations. ErrNoChange is not an error.
//
// The migrator takes ownership of db and closes it, so callers pass a
// dedicated connection and reopen afterwards.
func migrateUp(db *sql.DB, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("journal: migrations path is required")
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{DatabaseName: "main"})
	if err != nil {
		return fmt.Errorf("journal: create sqlite migrate driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(migrationsPath, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("journal: create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("journal: apply migrations: %w", err)
	}
	return nil
}

// MigrateFromPath opens a dedicated connection, applies pending migrations
// and closes it.
func MigrateFromPath(dbPath, migrationsPath string) error {
	db, err := newConnection(DefaultConnectionConfig(dbPath))
	if err != nil {
		return err
	}
	// migrateUp closes db via the migrator.
	return migrateUp(db, migrationsPath)
}
