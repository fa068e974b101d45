// Package index provides a SQLite search index over parsed diagnostics with
// optional FTS5 full-text search.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS diagnostics (
	idx         INTEGER PRIMARY KEY,
	kind        TEXT NOT NULL,
	code        TEXT NOT NULL DEFAULT '',
	code_key    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	file        TEXT NOT NULL DEFAULT '',
	line        INTEGER NOT NULL DEFAULT 0,
	col         INTEGER NOT NULL DEFAULT 0,
	notes       TEXT NOT NULL DEFAULT '[]',
	helps       TEXT NOT NULL DEFAULT '[]',
	context     TEXT NOT NULL DEFAULT '[]',
	body        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_diagnostics_file ON diagnostics(file);
CREATE INDEX IF NOT EXISTS idx_diagnostics_code_key ON diagnostics(code_key);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
