// Package main is the entry point for hookctl, a command-line driver for
// hookable functions and hook plans.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dshills/safehook/internal/config"
	"github.com/dshills/safehook/internal/hook"
	"github.com/dshills/safehook/internal/hook/builtin"
	"github.com/dshills/safehook/internal/logging"
	"github.com/dshills/safehook/internal/metrics"
	"github.com/dshills/safehook/internal/plan"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// options holds parsed command-line flags.
type options struct {
	PlanPath  string
	Watch     bool
	LogLevel  string
	LogFormat string
	Command   string
	Args      []string
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, code, ok := parseFlags(os.Args[1:], os.Stdout, os.Stderr)
	if !ok {
		return code
	}

	app, err := newApp(opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.exec(ctx, opts.Command, opts.Args, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// parseFlags parses args. ok is false when the process should exit with code.
func parseFlags(args []string, stdout, stderr io.Writer) (opts options, code int, ok bool) {
	fs := flag.NewFlagSet("hookctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var showVersion bool
	fs.StringVar(&opts.PlanPath, "plan", "", "Path to a hook plan (.toml, .yaml)")
	fs.StringVar(&opts.PlanPath, "p", "", "Path to a hook plan (shorthand)")
	fs.BoolVar(&opts.Watch, "watch", false, "Re-apply the plan when it changes (serve only)")
	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.LogFormat, "log-format", "", "Log format (console, json)")
	fs.BoolVar(&showVersion, "version", false, "Show version information")
	fs.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "hookctl - inspect and drive hookable functions\n\n")
		fmt.Fprintf(stderr, "Usage: hookctl [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  list                  List hookable functions and their hooks\n")
		fmt.Fprintf(stderr, "  call <fn> [args...]   Call a function through its hooks\n")
		fmt.Fprintf(stderr, "  serve                 Read \"<fn> [args...]\" lines from stdin\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  hookctl call add 2 3\n")
		fmt.Fprintf(stderr, "  hookctl -plan hooks.toml list\n")
		fmt.Fprintf(stderr, "  hookctl -plan hooks.toml -watch serve\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return opts, 0, false
		}
		return opts, 2, false
	}

	if showVersion {
		fmt.Fprintf(stdout, "hookctl %s\n", version)
		fmt.Fprintf(stdout, "Commit: %s\n", commit)
		fmt.Fprintf(stdout, "Built: %s\n", date)
		return opts, 0, false
	}

	if fs.NArg() == 0 {
		fs.Usage()
		return opts, 2, false
	}
	opts.Command = fs.Arg(0)
	opts.Args = fs.Args()[1:]

	if opts.Watch && opts.Command != "serve" {
		fmt.Fprintf(stderr, "Error: -watch only applies to serve\n")
		return opts, 2, false
	}
	if opts.Watch && opts.PlanPath == "" {
		fmt.Fprintf(stderr, "Error: -watch needs -plan\n")
		return opts, 2, false
	}

	return opts, 0, true
}

// app wires the directory, plan and logging together.
type app struct {
	out     io.Writer
	opts    options
	dir     *hook.Directory
	logger  *logging.Logger
	loader  *config.Loader
	applier *plan.Applier
	metrics *metrics.Metrics
}

func newApp(opts options, out io.Writer) (*app, error) {
	loader := config.NewLoader()

	p := &config.Plan{}
	if opts.PlanPath != "" {
		var err error
		p, err = loader.Load(opts.PlanPath)
		if err != nil {
			return nil, err
		}
	}

	logCfg := logging.DefaultConfig().
		Merge(p.Logging).
		Merge(logging.Config{Level: opts.LogLevel, Format: opts.LogFormat})
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	logging.Global(logger)
	hook.SetLogger(logger.Component("hook"))

	m := metrics.New()
	catalog := builtin.NewStandardCatalog(builtin.Env{
		Logger:  logger.Component("calls"),
		Metrics: m,
	})

	a := &app{
		out:     out,
		opts:    opts,
		dir:     hook.Default(),
		logger:  logger,
		loader:  loader,
		metrics: m,
		applier: plan.New(
			plan.WithDirectory(hook.Default()),
			plan.WithCatalog(catalog),
			plan.WithLogger(logger.Component("plan")),
		),
	}

	if opts.PlanPath != "" {
		if p.Empty() {
			logger.Warn().Str("path", opts.PlanPath).Msg("plan attaches nothing")
		}
		if err := p.Validate(); err != nil {
			logger.Warn().Err(err).Msg("plan has invalid attachments")
		}
		report, err := a.applier.Apply(p)
		for _, f := range report.Failed {
			logger.Error().Err(f).Msg("attachment failed")
		}
		if err != nil && len(report.Attached) == 0 && !p.Empty() {
			return nil, fmt.Errorf("no attachment could be applied: %w", err)
		}
	}

	return a, nil
}

func (a *app) close() {
	if err := a.applier.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("closing plan")
	}
	_ = a.logger.Close()
}
