// Package db opens the SQL database backing the catalog and credentials.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// schema is valid for both PostgreSQL and SQLite. Sealed private rows keep
// only id, visibility, ciphertext and created_at; the plaintext columns
// stay empty.
const schema = `
CREATE TABLE IF NOT EXISTS dies (
    id TEXT PRIMARY KEY,
    visibility TEXT NOT NULL,
    chip_name TEXT NOT NULL DEFAULT '',
    manufacturer TEXT NOT NULL DEFAULT '',
    process_node TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    die_size_mm2 DOUBLE PRECISION NOT NULL DEFAULT 0,
    transistor_count BIGINT,
    release_date TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    ciphertext TEXT,
    created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS dies_chip_manufacturer_idx ON dies (chip_name, manufacturer);

CREATE TABLE IF NOT EXISTS credentials (
    username TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// Open connects with driver ("postgres" or "sqlite"), checks the
// connection and creates the schema.
func Open(driver, dsn string) (*sql.DB, error) {
	if driver != Postgres && driver != SQLite {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == SQLite {
		// One connection keeps ":memory:" databases alive and serializes writers.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}
