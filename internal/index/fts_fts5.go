//go:build sqlite_fts5

package index

import (
	"database/sql"
	"fmt"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS diagnostics_fts USING fts5(
			idx UNINDEXED,
			description,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsInsert(tx *sql.Tx, idx int, description, body string) error {
	_, err := tx.Exec(`INSERT INTO diagnostics_fts (idx, description, body) VALUES (?, ?, ?)`,
		idx, description, body)
	if err != nil {
		return fmt.Errorf("index: insert fts: %w", err)
	}
	return nil
}

func ftsClear(tx *sql.Tx) error {
	if _, err := tx.Exec(`DELETE FROM diagnostics_fts`); err != nil {
		return fmt.Errorf("index: clear fts: %w", err)
	}
	return nil
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT d.idx, d.kind, d.code, d.file, d.line, d.description,
		       snippet(diagnostics_fts, 2, '<b>', '</b>', '...', 16)
		FROM diagnostics_fts
		JOIN diagnostics d ON d.idx = diagnostics_fts.idx
		WHERE diagnostics_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("index: search: %w", err)
	}
	return scanResults(rows)
}
