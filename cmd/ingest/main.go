package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"finsheet/internal/config"
	"finsheet/internal/exporter"
	"finsheet/internal/files"
	"finsheet/internal/infrastructure"
	"finsheet/internal/middleware"
	"finsheet/internal/screener"
	"finsheet/internal/services"
	"finsheet/internal/store"
)

var errCompaniesFailed = errors.New("one or more companies failed")

type options struct {
	symbols []string
	file    string
	dir     string
	symbol  string
	out     string
	persist bool
	dryRun  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		slog.Error("Ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(stderr)

	symbols := fs.String("symbols", "", "comma separated symbols to download and process")
	file := fs.String("file", "", "local export workbook to process instead of downloading")
	symbol := fs.String("symbol", "", "symbol the -file workbook belongs to")
	dir := fs.String("dir", "", "reprocess every export_<symbol>.xlsx in this directory")
	out := fs.String("out", "", "write CSV exports into this directory (defaults to none)")
	persist := fs.Bool("persist", false, "upsert events into the configured database")
	dryRun := fs.Bool("dry-run", false, "persist into an in-memory store instead of the database")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts := &options{
		file:    *file,
		dir:     *dir,
		symbol:  strings.ToUpper(strings.TrimSpace(*symbol)),
		out:     *out,
		persist: *persist,
		dryRun:  *dryRun,
	}
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.ToUpper(strings.TrimSpace(s)); s != "" {
			opts.symbols = append(opts.symbols, s)
		}
	}

	modes := 0
	for _, set := range []bool{opts.file != "", opts.dir != "", len(opts.symbols) > 0} {
		if set {
			modes++
		}
	}
	switch {
	case modes > 1:
		return nil, fmt.Errorf("-file, -dir and -symbols are mutually exclusive")
	case modes == 0:
		return nil, fmt.Errorf("one of -file, -dir or -symbols is required")
	case opts.file != "" && opts.symbol == "":
		return nil, fmt.Errorf("-symbol is required with -file")
	}
	if opts.symbol != "" && !middleware.ValidTicker(opts.symbol) {
		return nil, fmt.Errorf("invalid symbol %q", opts.symbol)
	}
	for _, s := range opts.symbols {
		if !middleware.ValidTicker(s) {
			return nil, fmt.Errorf("invalid symbol %q", s)
		}
	}

	return opts, nil
}

// newLogger keeps stdout for the JSON report: console logs go to stderr
func newLogger(cfg config.LoggingConfig) (*slog.Logger, error) {
	if strings.EqualFold(cfg.Output, "console") {
		logger := infrastructure.NewLogger(cfg, os.Stderr)
		slog.SetDefault(logger)
		return logger, nil
	}
	logger, err := infrastructure.InitializeLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.out != "" {
		cfg.Paths.ReportsDir = opts.out
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer infrastructure.CloseLogFile()

	paths, err := cfg.Paths.ResolvePaths()
	if err != nil {
		return fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to ensure directories: %w", err)
	}

	deps := services.IngestDeps{
		SheetName:  cfg.Workbook.SheetName,
		FetchDelay: cfg.Screener.FetchDelay,
		Logger:     logger,
	}
	if opts.out != "" {
		deps.Exporter = exporter.NewEventExporter(exporter.NewCSVWriter(paths, logger))
	}

	switch {
	case opts.dryRun:
		deps.Store = store.NewMemoryStore()
	case opts.persist:
		// The schema comes from initdb
		pg, err := store.NewPostgresStore(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pg.Close()
		deps.Store = pg
	}

	if len(opts.symbols) > 0 {
		client, err := screener.NewClient(cfg.Screener, paths.DownloadsDir, logger)
		if err != nil {
			return fmt.Errorf("failed to create screener client: %w", err)
		}
		deps.Fetcher = client
	}

	svc := services.NewIngestService(deps)
	ingestOpts := services.IngestOptions{
		Persist: opts.persist || opts.dryRun,
		Export:  opts.out != "",
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")

	if opts.file != "" {
		if err := files.ValidateWorkbookFile(opts.file); err != nil {
			return err
		}
		report, err := svc.ProcessFile(ctx, opts.file, opts.symbol, ingestOpts)
		if err != nil {
			return err
		}
		return enc.Encode(report)
	}

	var batch *services.BatchReport
	if opts.dir != "" {
		batch, err = svc.ProcessDirectory(ctx, opts.dir, ingestOpts)
	} else {
		batch, err = svc.RunBatch(ctx, opts.symbols, ingestOpts)
	}
	if batch != nil {
		if encErr := enc.Encode(batch); encErr != nil {
			return encErr
		}
	}
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "Ingest finished",
		slog.String("run_id", batch.RunID),
		slog.Int("succeeded", batch.Succeeded),
		slog.Int("degraded", batch.Degraded),
		slog.Int("failed", batch.Failed))
	if batch.Failed > 0 {
		return errCompaniesFailed
	}
	return nil
}
