// Package internal provides the application wiring shared by the triage commands.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/triage/internal/api"
	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/index"
	"github.com/starford/triage/internal/mcpserver"
	"github.com/starford/triage/internal/sse"
	"github.com/starford/triage/internal/storage"
)

// NewLogger returns the structured JSON logger used by every command.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// Open builds the diagnostic service described by cfg. The returned close
// function releases the search index and must be called when done.
func Open(cfg *Config, logger *slog.Logger) (*diagservice.Service, func(), error) {
	store, err := storage.NewStore(cfg.Snapshot.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("init storage: %w", err)
	}

	opts := []diagservice.Option{
		diagservice.WithLogger(logger),
		diagservice.WithBuild(cfg.Build.Options()),
	}
	closeFn := func() {}

	if cfg.Index.Enabled() {
		db, err := index.Open(cfg.Index.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("init index: %w", err)
		}
		opts = append(opts, diagservice.WithIndex(db))
		closeFn = func() { _ = db.Close() }
	}

	return diagservice.New(store, opts...), closeFn, nil
}

// setup applies opts. Without WithLogger, logs go to logOut.
func setup(opts []Option, logOut io.Writer) (*application, error) {
	app := &application{version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if app.logger == nil {
		app.logger = NewLogger(logOut, app.config.App.LogLevel)
	}
	return app, nil
}

// Serve runs the HTTP API with live re-parsing until ctx is cancelled or a
// shutdown signal arrives.
func Serve(ctx context.Context, opts ...Option) error {
	app, err := setup(opts, os.Stdout)
	if err != nil {
		return err
	}
	cfg, logger := app.config, app.logger
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("snapshot_dir", cfg.Snapshot.Dir),
		slog.String("index_path", cfg.Index.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, closeSvc, err := Open(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()
	publish := func(res *diagservice.ParseResult) {
		broker.PublishSnapshot(res.Checksum, res)
	}

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, publish)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ok, err := svc.Store().Exists(); err != nil || !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"no snapshot"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Re-parse whenever the capture changes and notify SSE clients.
	g.Go(func() error {
		if err := svc.Watch(gCtx, publish); err != nil {
			logger.Warn("watcher failed", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the errgroup context so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// ServeMCP serves the MCP tools over stdio. Stdout carries the protocol,
// so the default logger writes to stderr.
func ServeMCP(_ context.Context, opts ...Option) error {
	app, err := setup(opts, os.Stderr)
	if err != nil {
		return err
	}

	svc, closeSvc, err := Open(app.config, app.logger)
	if err != nil {
		return err
	}
	defer closeSvc()

	return mcpserver.New(svc, app.version).ServeStdio()
}
