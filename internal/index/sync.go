package index

import (
	"log/slog"

	"github.com/starford/triage/internal/models"
)

// Sync brings the index in line with snap. It is a no-op when the index
// already holds the capture identified by checksum.
func Sync(db SearchIndex, snap *models.Snapshot, checksum string, logger *slog.Logger) error {
	current, err := db.Checksum()
	if err != nil {
		return err
	}
	if current != "" && current == checksum {
		logger.Debug("index: up to date", slog.String("checksum", checksum))
		return nil
	}
	if err := db.Replace(snap.Records, checksum); err != nil {
		return err
	}
	logger.Debug("index: rebuilt",
		slog.Int("records", len(snap.Records)),
		slog.String("checksum", checksum))
	return nil
}
