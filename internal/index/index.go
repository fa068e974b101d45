package index

import "github.com/starford/triage/internal/models"

// SearchIndex defines the interface for diagnostic search operations.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type SearchIndex interface {
	Replace(records []models.Record, checksum string) error
	Checksum() (string, error)
	Count() (int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Close() error
}

// Verify *DB satisfies SearchIndex at compile time.
var _ SearchIndex = (*DB)(nil)
