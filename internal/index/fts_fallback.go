//go:build !sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the diagnostics table.
	return nil
}

func ftsInsert(_ *sql.Tx, _ int, _, _ string) error {
	// Body is already stored in the diagnostics table; nothing extra to do.
	return nil
}

func ftsClear(_ *sql.Tx) error { return nil }

// Search performs a LIKE-based search (fallback when FTS5 is not compiled in).
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.Query(`
		SELECT idx, kind, code, file, line, description, substr(description, 1, 200)
		FROM diagnostics
		WHERE description LIKE ? OR body LIKE ? OR file LIKE ?
		ORDER BY idx
		LIMIT ?
	`, like, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
