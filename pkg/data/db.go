// Package data persists run results in a local SQLite database.
package data

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "modernc.org/sqlite"
)

const (
	DataFileName string = "lstvscan.db"
	driverName   string = "sqlite"
	timeFormat   string = "2006-01-02T15:04:05.000Z07:00"
)

var (
	//go:embed migrations/*.sql
	migrationFS embed.FS

	errDBNotInitialized = errors.New("database not initialized")

	// ErrNotFound is returned when a requested run does not exist.
	ErrNotFound = errors.New("not found")
)

// Init creates the database file if needed and applies pending migrations.
func Init(dbFilePath string) error {
	if dbFilePath == "" {
		return errors.New("dbFilePath not specified")
	}

	if _, err := os.Stat(dbFilePath); errors.Is(err, os.ErrNotExist) {
		slog.Debug("creating db", "path", dbFilePath)
	}

	db, err := GetDB(dbFilePath)
	if err != nil {
		return fmt.Errorf("error opening database %s: %w", dbFilePath, err)
	}

	if err := migrateUp(db); err != nil {
		return fmt.Errorf("failed to migrate database %s: %w", dbFilePath, err)
	}

	slog.Debug("db initialized", "path", dbFilePath)
	return nil
}

// GetDB opens the database. The caller closes it.
func GetDB(path string) (*sql.DB, error) {
	conn, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return conn, nil
}

// boolToInt maps a bool to the 0/1 integers SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
