package diagservice

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/checksum"
)

// debounce groups the bursts of events a single capture write produces.
const debounce = 200 * time.Millisecond

// ParseCallback is called after each watcher-driven re-parse.
type ParseCallback func(*ParseResult)

// Watch re-parses the capture whenever its content changes, until ctx is
// cancelled. An existing capture is parsed once at start without calling cb.
//
// The capture's directory is watched rather than the file itself, because
// atomic writes replace the file and would drop a file-level watch.
func (s *Service) Watch(ctx context.Context, cb ParseCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	target := s.store.CapturePath()
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	var last string
	if res, err := s.Parse(ctx); err == nil {
		last = res.Checksum
	} else if !errors.Is(err, apperr.ErrNoCapture) {
		s.logger.Warn("watcher: initial parse failed", slog.String("error", err.Error()))
	}

	s.logger.Info("watcher: started", slog.String("capture", target))

	var timer *time.Timer
	var fire <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			s.logger.Info("watcher: stopped")
			return nil

		case <-fire:
			raw, err := s.store.LoadCapture()
			if err != nil {
				if !errors.Is(err, apperr.ErrNoCapture) {
					s.logger.Warn("watcher: read failed", slog.String("error", err.Error()))
				}
				continue
			}
			if checksum.Sum(raw) == last {
				s.logger.Debug("watcher: capture unchanged")
				continue
			}
			res, err := s.Parse(ctx)
			if err != nil {
				s.logger.Warn("watcher: parse failed", slog.String("error", err.Error()))
				continue
			}
			last = res.Checksum
			s.logger.Debug("watcher: re-parsed",
				slog.Int("entries", res.Entries),
				slog.String("checksum", res.Checksum[:12]))
			if cb != nil {
				cb(res)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
