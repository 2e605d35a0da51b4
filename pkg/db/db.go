// Package db persists the gateway journal: submitted orders and applied
// fills. The fills table doubles as the durable half of the accrual
// idempotency guard, keyed by the venue's fill event ID.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Journal wraps the SQL handle for easier swapping/testing.
type Journal struct {
	DB *sql.DB
}

// Open opens (and creates if needed) the SQLite journal at path and applies
// the schema.
func Open(path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path is empty")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	j := &Journal{DB: db}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// Close releases the underlying DB handle.
func (j *Journal) Close() error {
	if j == nil || j.DB == nil {
		return nil
	}
	return j.DB.Close()
}

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS orders (
    id TEXT PRIMARY KEY,
    descriptor TEXT,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    type TEXT NOT NULL,
    time_span TEXT NOT NULL,
    price REAL,
    activation_price REAL,
    amount REAL,
    status TEXT NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS fills (
    id TEXT PRIMARY KEY,
    descriptor TEXT,
    balance REAL NOT NULL,
    filled_at DATETIME NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_orders_descriptor ON orders(descriptor);
CREATE INDEX IF NOT EXISTS idx_fills_filled_at ON fills(filled_at);
`

func (j *Journal) init() error {
	if _, err := j.DB.Exec(schema); err != nil {
		return fmt.Errorf("apply journal schema: %w", err)
	}
	return nil
}
