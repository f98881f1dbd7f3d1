// Package db provides the SQLite connection and schema for gatherd.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

// initSchema creates all required tables
func initSchema(db *sql.DB) error {
	// Collector ledger - append-only lifecycle history for auditing.
	// Multiple events per collector (started, ended).
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS collector_ledger (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			collector_id TEXT NOT NULL,
			kind TEXT,
			reason TEXT,
			payload TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_ledger_type_ts ON collector_ledger(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_ledger_collector ON collector_ledger(collector_id, timestamp);
	`)
	if err != nil {
		return fmt.Errorf("failed to create collector_ledger table: %w", err)
	}

	return nil
}
