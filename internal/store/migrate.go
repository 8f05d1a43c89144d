package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Direction selects which way migrations are applied.
type Direction string

const (
	// Up applies all pending migrations.
	Up Direction = "up"
	// Down reverts every applied migration.
	Down Direction = "down"
)

// newMigrator builds a migrator bound to an already open database.
// Closing the returned migrator also closes db.
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}

// migrateDB applies migrations in the given direction. ErrNoChange is not an error.
func migrateDB(db *sql.DB, dir Direction) error {
	m, err := newMigrator(db)
	if err != nil {
		return err
	}

	switch dir {
	case Up:
		err = m.Up()
	case Down:
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", dir)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, dirty, verr := m.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		slog.Info("Migrations applied", "direction", dir, "version", 0)
	case verr != nil:
		slog.Warn("Failed to read migration version", "error", verr)
	default:
		slog.Info("Migrations applied", "direction", dir, "version", version, "dirty", dirty)
	}
	return nil
}

// Migrate opens the database at dbPath, applies migrations and closes it.
func Migrate(dbPath string, dir Direction) error {
	db, err := openDB(dbPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Warn("failed to close database after migration", "error", closeErr)
		}
	}()
	return migrateDB(db, dir)
}
