// Command monitor projects Chamber of Deputies seats from vote feeds.
//
// Usage:
//
//	monitor serve [-config path] [-addr :8080]
//	monitor district -id 10 [-source live] [-scenario derecha_unida]
//	monitor national [-source simulation] [-scenario izquierda_unida]
//	monitor validate-config [-config path]
//
// Process settings come from MONITOR_* environment variables; flags
// override them.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mub05-dev/monitor-electoral/infrastructure/feeds"
	"github.com/mub05-dev/monitor-electoral/infrastructure/telemetry"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

const serviceName = "monitor-electoral"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one subcommand and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	e, err := parseEnv()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	var c command
	switch cmd {
	case "serve":
		c = serveCommand
	case "district":
		c = districtCommand
	case "national":
		c = nationalCommand
	case "validate-config":
		c = validateCommand
	case "-h", "-help", "--help", "help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", cmd)
		usage(stderr)
		return exitUsage
	}

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	opts := c.flags(fs, e)
	if err := fs.Parse(rest); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	level, err := parseLevel(opts.logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := c.run(ctx, opts, e, logger, stdout); err != nil {
		logger.Error("command failed", "command", cmd, "error", err)
		return exitError
	}
	return exitOK
}

// options are the flags shared by the subcommands.
type options struct {
	configPath string
	logLevel   string
	addr       string
	districtID string
	source     string
	scenario   string
}

type command struct {
	flags func(fs *flag.FlagSet, e Env) *options
	run   func(ctx context.Context, opts *options, e Env, logger *slog.Logger, stdout io.Writer) error
}

func commonFlags(fs *flag.FlagSet, e Env) *options {
	opts := &options{}
	fs.StringVar(&opts.configPath, "config", e.ConfigPath, "Election configuration file")
	fs.StringVar(&opts.logLevel, "log-level", e.LogLevel, "Log level (debug, info, warn, error)")
	return opts
}

func projectionFlags(fs *flag.FlagSet, e Env) *options {
	opts := commonFlags(fs, e)
	fs.StringVar(&opts.source, "source", "", "Result source (default from configuration)")
	fs.StringVar(&opts.scenario, "scenario", "", "Coalition merge scenario")
	return opts
}

var serveCommand = command{
	flags: func(fs *flag.FlagSet, e Env) *options {
		opts := commonFlags(fs, e)
		fs.StringVar(&opts.addr, "addr", e.Addr, "Listen address")
		return opts
	},
	run: serve,
}

var districtCommand = command{
	flags: func(fs *flag.FlagSet, e Env) *options {
		opts := projectionFlags(fs, e)
		fs.StringVar(&opts.districtID, "id", "", "District number or id, such as 10 or 6010")
		return opts
	},
	run: district,
}

var nationalCommand = command{
	flags: projectionFlags,
	run:   national,
}

var validateCommand = command{
	flags: commonFlags,
	run:   validateConfig,
}

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage: monitor <command> [flags]

commands:
  serve            serve the HTTP API
  district         project the seats of one district
  national         project the national seat summary
  validate-config  check the election configuration`)
}

func serve(ctx context.Context, opts *options, e Env, logger *slog.Logger, _ io.Writer) error {
	shutdownTracing, err := telemetry.Setup(ctx, e.OTelEndpoint, serviceName)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), e.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	a, err := newApp(opts.configPath, e, logger)
	if err != nil {
		return err
	}
	h, err := a.handler()
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              opts.addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			"addr", opts.addr,
			"sources", a.sources.Names(),
			"districts", len(a.cfg.Districts),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), e.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(sctx)
}

func district(ctx context.Context, opts *options, e Env, logger *slog.Logger, stdout io.Writer) error {
	if opts.districtID == "" {
		return errors.New("district: -id is required")
	}
	a, err := newApp(opts.configPath, e, logger)
	if err != nil {
		return err
	}
	id, err := feeds.NormalizeDistrictID(opts.districtID)
	if err != nil {
		return err
	}
	src, err := a.sources.Get(opts.source)
	if err != nil {
		return err
	}

	return writeJSON(stdout, a.service.Fetch(ctx, src, id, opts.scenario))
}

func national(ctx context.Context, opts *options, e Env, logger *slog.Logger, stdout io.Writer) error {
	a, err := newApp(opts.configPath, e, logger)
	if err != nil {
		return err
	}
	src, err := a.sources.Get(opts.source)
	if err != nil {
		return err
	}

	result, err := a.aggregator.AggregateDistricts(ctx, src, nil, opts.scenario)
	if err != nil {
		return err
	}
	return writeJSON(stdout, result)
}

// validateConfig loads the election file and reports a short summary.
func validateConfig(_ context.Context, opts *options, _ Env, logger *slog.Logger, stdout io.Writer) error {
	cfg, err := loadConfig(opts.configPath, logger)
	if err != nil {
		return err
	}
	set, err := cfg.ScenarioSet()
	if err != nil {
		return err
	}

	seats := 0
	for _, d := range cfg.Districts {
		seats += d.Seats
	}
	return writeJSON(stdout, map[string]any{
		"valid":     true,
		"name":      cfg.Metadata.Name,
		"districts": len(cfg.Districts),
		"seats":     seats,
		"pacts":     len(cfg.Pacts),
		"scenarios": set.Names(),
		"source":    cfg.Sources.Default,
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
