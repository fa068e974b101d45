package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/starford/triage/internal"
	"github.com/starford/triage/internal/apperr"
	"github.com/starford/triage/internal/diagservice"
	"github.com/starford/triage/internal/query"
	"github.com/starford/triage/internal/report"
	pkgconfig "github.com/starford/triage/pkg/config"
)

var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// env is what every command action needs: config, service, and printer.
type env struct {
	cfg     *internal.Config
	logger  *slog.Logger
	svc     *diagservice.Service
	printer *report.Printer
	out     io.Writer
	close   func()
}

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cmd.Bool("verbose") {
		cfg.App.LogLevel = slog.LevelDebug
	}
	return cfg, nil
}

func setupEnv(cmd *cli.Command) (*env, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	switch {
	case cmd.Bool("no-color") || cfg.App.Color == internal.ColorNever:
		report.SetColor(false)
	case cfg.App.Color == internal.ColorAlways:
		report.SetColor(true)
	}

	root := cmd.Root()
	logger := internal.NewLogger(root.ErrWriter, cfg.App.LogLevel)
	slog.SetDefault(logger)

	svc, closeFn, err := internal.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:     cfg,
		logger:  logger,
		svc:     svc,
		printer: report.New(root.Writer, cmd.Bool("json")),
		out:     root.Writer,
		close:   closeFn,
	}, nil
}

// withEnv adapts an env-based action to a cli action.
func withEnv(fn func(ctx context.Context, cmd *cli.Command, e *env) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		e, err := setupEnv(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return fn(ctx, cmd, e)
	}
}

// withEngine adapts a query action; it fails with apperr.ErrNoSnapshot before the first parse.
func withEngine(fn func(cmd *cli.Command, e *env, eng *query.Engine) error) cli.ActionFunc {
	return withEnv(func(_ context.Context, cmd *cli.Command, e *env) error {
		eng, err := e.svc.Engine()
		if err != nil {
			return err
		}
		return fn(cmd, e, eng)
	})
}

// countArg reads an optional positional count; absent means 0 (the default).
func countArg(cmd *cli.Command) (int, error) {
	if cmd.Args().Len() == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(cmd.Args().First())
	if err != nil {
		return 0, usageError("count must be an integer, got %q", cmd.Args().First())
	}
	return n, nil
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	if cmd.Args().Len() == 0 || cmd.Args().First() == "" {
		return "", usageError("%s requires <%s>", cmd.Name, name)
	}
	return cmd.Args().First(), nil
}

func onlyErrorsFlag() cli.Flag {
	return &cli.BoolFlag{Name: "only-errors", Aliases: []string{"e"}, Usage: "Ignore warnings"}
}

func detailedFlag() cli.Flag {
	return &cli.BoolFlag{Name: "detailed", Aliases: []string{"d"}, Usage: "Show full detail for each diagnostic"}
}

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "build",
			Usage:  "Run the configured build, save its output, and parse it",
			Action: withEnv(buildAction),
		},
		{
			Name:   "parse",
			Usage:  "Parse the saved build output into a snapshot",
			Action: withEnv(parseAction),
		},
		{
			Name:  "summary",
			Usage: "Show totals with the top files and codes",
			Action: withEngine(func(_ *cli.Command, e *env, eng *query.Engine) error {
				return e.printer.Summary(eng.Summary())
			}),
		},
		{
			Name:      "top-files",
			Usage:     "Show the files with the most diagnostics",
			ArgsUsage: "[n]",
			Flags:     []cli.Flag{onlyErrorsFlag()},
			Action: withEngine(func(cmd *cli.Command, e *env, eng *query.Engine) error {
				n, err := countArg(cmd)
				if err != nil {
					return err
				}
				if n <= 0 {
					n = query.DefaultTop
				}
				return e.printer.TopFiles(n, eng.TopFiles(n, cmd.Bool("only-errors")))
			}),
		},
		{
			Name:      "top-errors",
			Usage:     "Show the most common diagnostic codes",
			ArgsUsage: "[n]",
			Flags:     []cli.Flag{onlyErrorsFlag()},
			Action: withEngine(func(cmd *cli.Command, e *env, eng *query.Engine) error {
				n, err := countArg(cmd)
				if err != nil {
					return err
				}
				if n <= 0 {
					n = query.DefaultTop
				}
				return e.printer.TopCodes(n, eng.TopCodes(n, cmd.Bool("only-errors")))
			}),
		},
		{
			Name:      "file",
			Usage:     "Show diagnostics in files whose path contains <path>",
			ArgsUsage: "<path>",
			Flags:     []cli.Flag{detailedFlag(), onlyErrorsFlag()},
			Action: withEngine(func(cmd *cli.Command, e *env, eng *query.Engine) error {
				path, err := requireArg(cmd, "path")
				if err != nil {
					return err
				}
				records := eng.ByFile(path, cmd.Bool("only-errors"))
				var hints []string
				if len(records) == 0 {
					hints = eng.SuggestFiles(path, 5)
				}
				return e.printer.FileMatches(path, records, cmd.Bool("detailed"), hints)
			}),
		},
		{
			Name:      "code",
			Usage:     "Show diagnostics with <code>, e.g. E0308 or error[E0308]",
			ArgsUsage: "<code>",
			Flags: []cli.Flag{
				detailedFlag(),
				&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum diagnostics to show", Value: query.DefaultCodeLimit},
			},
			Action: withEngine(func(cmd *cli.Command, e *env, eng *query.Engine) error {
				code, err := requireArg(cmd, "code")
				if err != nil {
					return err
				}
				return e.printer.CodeMatches(eng.ByCode(code, int(cmd.Int("limit"))), cmd.Bool("detailed"))
			}),
		},
		{
			Name:            "detail",
			Usage:           "Show one diagnostic in full",
			ArgsUsage:       "<index>",
			SkipFlagParsing: true, // "-1" is an index, not a flag
			Action: withEngine(func(cmd *cli.Command, e *env, eng *query.Engine) error {
				arg, err := requireArg(cmd, "index")
				if err != nil {
					return err
				}
				i, err := strconv.Atoi(arg)
				if err != nil {
					return usageError("index must be an integer, got %q", arg)
				}
				rec, err := eng.ByIndex(i)
				if err != nil {
					return err
				}
				return e.printer.Detail(rec)
			}),
		},
		{
			Name:  "next",
			Usage: "Show the next diagnostic to fix",
			Action: withEngine(func(_ *cli.Command, e *env, eng *query.Engine) error {
				step, err := eng.Next()
				if errors.Is(err, apperr.ErrNoActionable) {
					return e.printer.Next(nil)
				}
				if err != nil {
					return err
				}
				return e.printer.Next(step)
			}),
		},
		{
			Name:  "fix-plan",
			Usage: "Print a Markdown fix plan prioritized by code, then by file",
			Action: withEngine(func(_ *cli.Command, e *env, eng *query.Engine) error {
				return e.printer.FixPlan(eng.FixPlan())
			}),
		},
		{
			Name:      "search",
			Usage:     "Full-text search over descriptions, notes, help, and code context",
			ArgsUsage: "<text>",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results", Value: query.DefaultCodeLimit},
			},
			Action: withEnv(func(_ context.Context, cmd *cli.Command, e *env) error {
				text, err := requireArg(cmd, "text")
				if err != nil {
					return err
				}
				results, err := e.svc.Search(text, int(cmd.Int("limit")))
				if err != nil {
					return err
				}
				return e.printer.Search(text, results)
			}),
		},
		{
			Name:   "watch",
			Usage:  "Re-parse whenever the saved build output changes",
			Action: withEnv(watchAction),
		},
		{
			Name:  "serve",
			Usage: "Serve the HTTP API with live updates",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return internal.Serve(ctx, internal.WithConfig(cfg))
			},
		},
		{
			Name:  "mcp",
			Usage: "Serve the triage tools over MCP stdio",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return internal.ServeMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version))
			},
		},
	}
}

func buildAction(ctx context.Context, _ *cli.Command, e *env) error {
	if !e.printer.JSON() {
		fmt.Fprintf(e.out, "Running %s in %s...\n", e.cfg.Build.Command, displayDir(e.cfg.Build.Dir))
	}
	res, err := e.svc.Build(ctx)
	if err != nil {
		return err
	}
	return e.printer.Built(res, e.svc.Store().CapturePath(), e.svc.Store().Artifacts())
}

func parseAction(ctx context.Context, _ *cli.Command, e *env) error {
	res, err := e.svc.Parse(ctx)
	if err != nil {
		return err
	}
	return e.printer.Parsed(res, e.svc.Store().Artifacts())
}

func watchAction(ctx context.Context, _ *cli.Command, e *env) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !e.printer.JSON() {
		fmt.Fprintf(e.out, "Watching %s (Ctrl+C to stop)\n", e.svc.Store().CapturePath())
	}
	return e.svc.Watch(ctx, func(res *diagservice.ParseResult) {
		if err := e.printer.Parsed(res, e.svc.Store().Artifacts()); err != nil {
			e.logger.Warn("print failed", slog.String("error", err.Error()))
		}
	})
}

func displayDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir + "/"
}
