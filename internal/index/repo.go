package index

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/starford/triage/internal/models"
)

const checksumKey = "capture_checksum"

// SearchResult represents one search hit.
type SearchResult struct {
	Index       int         `json:"index"`
	Kind        models.Kind `json:"type"`
	Code        string      `json:"code"`
	File        string      `json:"file"`
	Line        int         `json:"line"`
	Description string      `json:"description"`
	Snippet     string      `json:"snippet"`
}

// Replace swaps the whole index for records within one transaction and
// remembers the checksum of the capture they came from.
func (db *DB) Replace(records []models.Record, checksum string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM diagnostics`); err != nil {
		return fmt.Errorf("index: clear: %w", err)
	}
	if err := ftsClear(tx); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO diagnostics (idx, kind, code, code_key, description, file, line, col, notes, helps, context, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		var line, col int
		if r.Location != nil {
			line, col = r.Location.Line, r.Location.Column
		}
		body := searchBody(r)
		if _, err := stmt.Exec(r.Index, string(r.Kind), r.Code, r.CodeKey(), r.Description, r.File(),
			line, col, jsonList(r.Notes), jsonList(r.Helps), jsonList(r.CodeContext), body); err != nil {
			return fmt.Errorf("index: insert %d: %w", r.Index, err)
		}
		if err := ftsInsert(tx, r.Index, r.Description, body); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, checksumKey, checksum); err != nil {
		return fmt.Errorf("index: store checksum: %w", err)
	}

	return tx.Commit()
}

// Checksum returns the checksum of the indexed capture, or "" if nothing was indexed.
func (db *DB) Checksum() (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT value FROM meta WHERE key = ?`, checksumKey).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: checksum: %w", err)
	}
	return cs, nil
}

// Count returns the number of indexed diagnostics.
func (db *DB) Count() (int, error) {
	var n int
	if err := db.conn.QueryRow(`SELECT count(*) FROM diagnostics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// searchBody is the text searched besides the description.
func searchBody(r *models.Record) string {
	parts := make([]string, 0, 1+len(r.Notes)+len(r.Helps)+len(r.CodeContext))
	parts = append(parts, r.CodeKey())
	parts = append(parts, r.Notes...)
	parts = append(parts, r.Helps...)
	parts = append(parts, r.CodeContext...)
	return strings.Join(parts, "\n")
}

func jsonList(items []string) string {
	if items == nil {
		items = []string{}
	}
	data, _ := json.Marshal(items)
	return string(data)
}

func scanResults(rows *sql.Rows) ([]SearchResult, error) {
	defer rows.Close()
	out := []SearchResult{}
	for rows.Next() {
		var r SearchResult
		var kind string
		if err := rows.Scan(&r.Index, &kind, &r.Code, &r.File, &r.Line, &r.Description, &r.Snippet); err != nil {
			return nil, err
		}
		r.Kind = models.Kind(kind)
		out = append(out, r)
	}
	return out, rows.Err()
}
