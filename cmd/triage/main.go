package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/triage/internal/apperr"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	if err := newCommand(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		os.Exit(exitStatus(err))
	}
}

// newCommand builds the command tree. Command output goes to stdout, logs to stderr.
// The version flag keeps -v, so --verbose has no short alias.
func newCommand(stdout, stderr io.Writer) *cli.Command {
	return &cli.Command{
		Name:      "triage",
		Usage:     "Parse compiler diagnostics and answer triage questions about them",
		Version:   version,
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file (.yaml, .yml or .toml)",
				DefaultText: "triage.yaml",
				Value:       "triage.yaml",
				Sources:     cli.EnvVars("TRIAGE_CONFIG_FILE"),
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print results as indented JSON",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log at debug level to stderr",
			},
		},
		Commands: commands(),
	}
}

// exitStatus prints err for the user and returns the exit status.
func exitStatus(err error) int {
	var rangeErr *apperr.OutOfRangeError
	switch {
	case errors.As(err, &rangeErr),
		errors.Is(err, apperr.ErrNoSnapshot),
		errors.Is(err, apperr.ErrNoCapture),
		errors.Is(err, apperr.ErrMalformedInput),
		errors.Is(err, apperr.ErrIndexDisabled),
		errors.Is(err, errUsage):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	default:
		slog.Error("application error", slog.String("error", err.Error()))
	}
	return 1
}
