// Package db owns the SQLite connection bootstrap and the authoritative
// schema. The *sql.DB handle is opened once by the process bootstrap and
// injected into adapters; nothing in the core reaches for it ambiently.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Open opens (creating if needed) the database at path and initializes the
// schema. An empty path opens an in-memory database.
func Open(path string) (*sql.DB, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path
	}

	database, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := database.Exec("PRAGMA foreign_keys = ON"); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := database.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := database.Exec(SchemaSQL); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return database, nil
}

// GetSchemaSQL returns the authoritative schema. Tests use this instead of
// hardcoding CREATE TABLE statements so test schemas cannot drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
