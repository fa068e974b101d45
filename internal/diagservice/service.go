// Package diagservice coordinates the build runner, parser, snapshot store,
// and search index behind one entry point shared by the CLI, API, and MCP server.
package diagservice

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/build"
	"github.com/starford/triage/internal/checksum"
	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/models"
	"github.com/starford/triage/internal/parser"
	"github.com/starford/triage/internal/query"
	"github.com/starford/triage/internal/storage"
	"github.com/starford/triage/internal/summary"
)

// ParseResult reports one completed parse.
type ParseResult struct {
	Entries  int    `json:"total_entries"`
	Errors   int    `json:"total_errors"`
	Warnings int    `json:"total_warnings"`
	Skipped  int    `json:"skipped_blocks"`
	Checksum string `json:"checksum"`

	// IndexStale is set when the snapshot was saved but the search index
	// could not be rebuilt. The next parse retries the rebuild.
	IndexStale bool `json:"index_stale,omitempty"`
}

// BuildResult reports a build followed by a parse of its output.
type BuildResult struct {
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
	Parse    *ParseResult  `json:"parse"`
}

// Option configures a Service.
type Option func(*Service)

// WithIndex mirrors every parse into idx and enables Search.
func WithIndex(idx index.SearchIndex) Option {
	return func(s *Service) { s.index = idx }
}

// WithBuild sets the build command run by Build.
func WithBuild(opts build.Options) Option {
	return func(s *Service) { s.build = opts }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// Service owns one snapshot location.
type Service struct {
	store  *storage.Store
	index  index.SearchIndex
	build  build.Options
	logger *slog.Logger

	// mu serializes parses so concurrent triggers never interleave artifact writes.
	mu sync.Mutex
}

// New creates a service over store.
func New(store *storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying snapshot store.
func (s *Service) Store() *storage.Store {
	return s.store
}

// Build runs the configured build, saves its stderr as the capture, and parses it.
func (s *Service) Build(ctx context.Context) (*BuildResult, error) {
	res, err := build.Run(ctx, s.build, s.logger)
	if err != nil {
		return nil, err
	}
	if err := s.store.SaveCapture(res.Output); err != nil {
		return nil, fmt.Errorf("diagservice: save capture: %w", err)
	}
	s.logger.Info("capture saved",
		slog.String("path", s.store.CapturePath()),
		slog.Int("bytes", len(res.Output)))

	parsed, err := s.Parse(ctx)
	if err != nil {
		return nil, err
	}
	return &BuildResult{ExitCode: res.ExitCode, Duration: res.Duration, Parse: parsed}, nil
}

// Ingest replaces the capture with raw and parses it.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*ParseResult, error) {
	if err := s.store.SaveCapture(raw); err != nil {
		return nil, fmt.Errorf("diagservice: save capture: %w", err)
	}
	return s.Parse(ctx)
}

// Parse reads the saved capture, extracts records, and replaces the snapshot
// and the search index wholesale.
func (s *Service) Parse(_ context.Context) (*ParseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.LoadCapture()
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(raw)

	res, err := parser.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("diagservice: parse: %w", err)
	}
	if res.Skipped > 0 {
		s.logger.Debug("skipped blocks without a diagnostic header", slog.Int("count", res.Skipped))
	}

	snap := &models.Snapshot{Records: res.Records, Summary: summary.Build(res.Records)}
	if err := s.store.Save(snap); err != nil {
		return nil, fmt.Errorf("diagservice: save snapshot: %w", err)
	}
	s.logger.Info("snapshot saved",
		slog.String("dir", s.store.Dir()),
		slog.Int("entries", snap.Summary.TotalEntries),
		slog.String("checksum", sum[:12]))

	out := &ParseResult{
		Entries:  snap.Summary.TotalEntries,
		Errors:   snap.Summary.TotalErrors,
		Warnings: snap.Summary.TotalWarnings,
		Skipped:  res.Skipped,
		Checksum: sum,
	}
	// The snapshot is already live; a failed sync leaves the previous index
	// checksum in place, so the next parse rebuilds it.
	if s.index != nil {
		if err := index.Sync(s.index, snap, sum, s.logger); err != nil {
			s.logger.Warn("search index not updated", slog.String("error", err.Error()))
			out.IndexStale = true
		}
	}
	return out, nil
}

// Engine loads the persisted snapshot and returns a query engine over it.
func (s *Service) Engine() (*query.Engine, error) {
	snap, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	return query.New(snap), nil
}

// Search runs a full-text query against the search index.
func (s *Service) Search(text string, limit int) ([]index.SearchResult, error) {
	if s.index == nil {
		return nil, apperr.ErrIndexDisabled
	}
	if limit <= 0 {
		limit = query.DefaultCodeLimit
	}
	if err := s.ensureIndexed(); err != nil {
		return nil, err
	}
	results, err := s.index.Search(text, limit)
	if err != nil {
		return nil, fmt.Errorf("diagservice: search: %w", err)
	}
	if results == nil {
		results = []index.SearchResult{}
	}
	return results, nil
}

// adoptedChecksum marks an index rebuilt from an existing snapshot rather than
// from a parse. It never equals a real capture digest, so the next parse replaces it.
const adoptedChecksum = "adopted"

// ensureIndexed fills an empty index from the persisted snapshot, for snapshots
// written before the index was configured.
func (s *Service) ensureIndexed() error {
	current, err := s.index.Checksum()
	if err != nil {
		return fmt.Errorf("diagservice: index checksum: %w", err)
	}
	if current != "" {
		return nil
	}
	snap, err := s.store.Load()
	if err != nil {
		return err
	}
	return index.Sync(s.index, snap, adoptedChecksum, s.logger)
}
