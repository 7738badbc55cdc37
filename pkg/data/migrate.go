package data

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// migrateUp applies all embedded migrations. The migrate instance owns db
// and closes it.
func migrateUp(db *sql.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		db.Close()
		return err
	}
	defer closeMigrate(m)

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version of the database at
// path, or 0 when none was applied.
func SchemaVersion(path string) (version uint, dirty bool, err error) {
	db, err := GetDB(path)
	if err != nil {
		return 0, false, err
	}

	m, err := newMigrate(db)
	if err != nil {
		db.Close()
		return 0, false, err
	}
	defer closeMigrate(m)

	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

func closeMigrate(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if srcErr != nil || dbErr != nil {
		slog.Debug("error closing migrate", "source", srcErr, "database", dbErr)
	}
}

// migrateLogger routes migrate output to slog.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...any) {
	slog.Debug("migrate: " + strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *migrateLogger) Verbose() bool {
	return false
}
