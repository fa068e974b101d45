// Package build runs the external build command and captures its diagnostics.
package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Options describes the build invocation.
type Options struct {
	Command string
	Args    []string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env     []string
	Timeout time.Duration
}

// Result is a finished build. A failing build is a normal result, not an error.
type Result struct {
	Output   []byte
	ExitCode int
	Duration time.Duration
}

// Run executes the build and returns its stderr, where compilers write diagnostics.
// It fails only when the command cannot run or exceeds its timeout.
func Run(ctx context.Context, opts Options, logger *slog.Logger) (*Result, error) {
	if opts.Command == "" {
		return nil, errors.New("build: command is empty")
	}
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, opts.Command, opts.Args...)
	cmd.Dir = opts.Dir
	cmd.Env = append(os.Environ(), opts.Env...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Info("build: starting",
		slog.String("command", opts.Command),
		slog.Any("args", opts.Args),
		slog.String("dir", opts.Dir))

	start := time.Now()
	err := cmd.Run()
	res := &Result{Output: stderr.Bytes(), Duration: time.Since(start)}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("build: %s: %w", opts.Command, ctx.Err())
	}
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	case err != nil:
		return nil, fmt.Errorf("build: run %s: %w", opts.Command, err)
	}

	logger.Info("build: finished",
		slog.Int("exit_code", res.ExitCode),
		slog.Int("output_bytes", len(res.Output)),
		slog.Duration("duration", res.Duration))
	return res, nil
}
