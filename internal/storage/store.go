package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/models"
)

// DefaultCapture is the capture file name used when Options.Capture is empty.
const DefaultCapture = "errors.txt"

// Artifact base names, completed with the codec extension.
const (
	simpleName   = "errors_simple"
	detailedName = "errors_detailed"
	summaryName  = "errors_summary"
)

// Options locates one snapshot. Separate Options give isolated snapshots.
type Options struct {
	// Dir holds the capture and the three snapshot artifacts.
	Dir string
	// Format is FormatJSON (default) or FormatMsgpack.
	Format string
	// Capture is the captured build output file name, relative to Dir.
	Capture string
}

// Store reads and writes the capture and the snapshot artifacts.
type Store struct {
	fs      *FS
	codec   codec
	capture string
}

// NewStore opens the snapshot directory described by opts, creating it if needed.
func NewStore(opts Options) (*Store, error) {
	c, err := codecFor(opts.Format)
	if err != nil {
		return nil, err
	}
	f, err := NewFS(opts.Dir)
	if err != nil {
		return nil, err
	}
	capture := opts.Capture
	if capture == "" {
		capture = DefaultCapture
	}
	if _, err := f.safePath(capture); err != nil {
		return nil, err
	}
	return &Store{fs: f, codec: c, capture: capture}, nil
}

// Dir returns the absolute snapshot directory.
func (s *Store) Dir() string {
	return s.fs.Root()
}

// CapturePath returns the absolute path of the capture file.
func (s *Store) CapturePath() string {
	p, _ := s.fs.safePath(s.capture)
	return p
}

// Artifacts returns the snapshot file names: simple, detailed, summary.
func (s *Store) Artifacts() []string {
	ext := s.codec.ext()
	return []string{simpleName + ext, detailedName + ext, summaryName + ext}
}

// SaveCapture atomically replaces the captured build output.
func (s *Store) SaveCapture(raw []byte) error {
	return s.fs.Write(s.capture, raw)
}

// LoadCapture returns the captured build output, or apperr.ErrNoCapture.
func (s *Store) LoadCapture() ([]byte, error) {
	data, err := s.fs.Read(s.capture)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrNoCapture, s.CapturePath())
	}
	return data, err
}

// Save writes all three artifacts. Each file is replaced atomically.
func (s *Store) Save(snap *models.Snapshot) error {
	names := s.Artifacts()
	docs := []any{snap.SimpleRecords(), snap.Records, snap.Summary}
	for i, name := range names {
		data, err := s.codec.marshal(docs[i])
		if err != nil {
			return fmt.Errorf("storage: encode %s: %w", name, err)
		}
		if err := s.fs.Write(name, data); err != nil {
			return err
		}
	}
	return s.removeStale()
}

// removeStale deletes artifacts written under another snapshot format, so a
// format switch never leaves an older snapshot next to the current one.
func (s *Store) removeStale() error {
	current := s.codec.ext()
	for _, format := range []string{FormatJSON, FormatMsgpack} {
		c, _ := codecFor(format)
		if c.ext() == current {
			continue
		}
		for _, base := range []string{simpleName, detailedName, summaryName} {
			if err := s.fs.Delete(base + c.ext()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Exists reports whether all three artifacts are present.
func (s *Store) Exists() (bool, error) {
	for _, name := range s.Artifacts() {
		ok, err := s.fs.Exists(name)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Load reads the detailed records and the summary, and checks that the simple
// collection is the index-aligned projection of the detailed one.
func (s *Store) Load() (*models.Snapshot, error) {
	simple, err := s.LoadSimple()
	if err != nil {
		return nil, err
	}
	names := s.Artifacts()

	var records []models.Record
	if err := s.load(names[1], &records); err != nil {
		return nil, err
	}
	sum, err := s.LoadSummary()
	if err != nil {
		return nil, err
	}

	if len(simple) != len(records) {
		return nil, fmt.Errorf("storage: %s has %d entries, %s has %d", names[0], len(simple), names[1], len(records))
	}
	for i := range records {
		if records[i].Index != i || !reflect.DeepEqual(simple[i], records[i].Simple()) {
			return nil, fmt.Errorf("storage: entry %d differs between %s and %s", i, names[0], names[1])
		}
	}
	if records == nil {
		records = []models.Record{}
	}
	return &models.Snapshot{Records: records, Summary: *sum}, nil
}

// LoadSimple reads only the simple record collection.
func (s *Store) LoadSimple() ([]models.SimpleRecord, error) {
	var out []models.SimpleRecord
	if err := s.load(s.Artifacts()[0], &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadSummary reads only the summary.
func (s *Store) LoadSummary() (*models.Summary, error) {
	var out models.Summary
	if err := s.load(s.Artifacts()[2], &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Store) load(name string, v any) error {
	data, err := s.fs.Read(name)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w (missing %s)", apperr.ErrNoSnapshot, name)
	}
	if err != nil {
		return err
	}
	if err := s.codec.unmarshal(data, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", name, err)
	}
	return nil
}
