package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"finsheet/internal/dataprocessing"
	apperrors "finsheet/internal/errors"
	"finsheet/internal/exporter"
	"finsheet/internal/files"
	"finsheet/internal/infrastructure"
	"finsheet/internal/store"
	"finsheet/pkg/contracts/domain"
)

// Fetcher downloads a company's export workbook and returns its local path
type Fetcher interface {
	Download(ctx context.Context, symbol string) (string, error)
}

// IngestOptions selects the optional outputs of a run
type IngestOptions struct {
	Persist bool
	Export  bool
}

// CompanyReport is the outcome of one company's run
type CompanyReport struct {
	Symbol           string               `json:"symbol"`
	Status           string               `json:"status"`
	Events           int                  `json:"events"`
	Persisted        int                  `json:"persisted"`
	AnnualPeriods    int                  `json:"annual_periods"`
	QuarterlyPeriods int                  `json:"quarterly_periods"`
	FailedSections   []string             `json:"failed_sections,omitempty"`
	Trends           *domain.TrendSummary `json:"trends,omitempty"`
	ReportPath       string               `json:"report_path,omitempty"`
	Error            string               `json:"error,omitempty"`
	Duration         time.Duration        `json:"duration_ns"`

	events []domain.LongEvent
}

// EventsOf returns the events produced by the run
func (r *CompanyReport) EventsOf() []domain.LongEvent {
	return r.events
}

// BatchReport summarises a multi-company run
type BatchReport struct {
	RunID      string          `json:"run_id"`
	Companies  []CompanyReport `json:"companies"`
	Succeeded  int             `json:"succeeded"`
	Degraded   int             `json:"degraded"`
	Failed     int             `json:"failed"`
	TrendsPath string          `json:"trends_path,omitempty"`
}

// IngestDeps are the collaborators of an IngestService. Fetcher, Store and
// Exporter may be nil; options needing them then fail with ErrNotConfigured.
type IngestDeps struct {
	Processor  *dataprocessing.Processor
	Fetcher    Fetcher
	Store      store.EventStore
	Exporter   *exporter.EventExporter
	Metrics    *infrastructure.PipelineMetrics
	Tracer     trace.Tracer
	SheetName  string
	FetchDelay time.Duration
	Logger     *slog.Logger
}

// IngestService drives fetch → parse → process → persist → export per company
type IngestService struct {
	processor *dataprocessing.Processor
	fetcher   Fetcher
	store     store.EventStore
	exporter  *exporter.EventExporter
	metrics   *infrastructure.PipelineMetrics
	tracer    trace.Tracer
	sheet     string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// NewIngestService creates an ingest service
func NewIngestService(deps IngestDeps) *IngestService {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "ingest_service"))

	processor := deps.Processor
	if processor == nil {
		processor = dataprocessing.NewProcessor(logger)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = infrastructure.NewUnregisteredPipelineMetrics()
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer(infrastructure.InstrumentationName)
	}

	// One fetch per FetchDelay; the first goes out immediately
	limit := rate.Inf
	if deps.FetchDelay > 0 {
		limit = rate.Every(deps.FetchDelay)
	}

	return &IngestService{
		processor: processor,
		fetcher:   deps.Fetcher,
		store:     deps.Store,
		exporter:  deps.Exporter,
		metrics:   metrics,
		tracer:    tracer,
		sheet:     deps.SheetName,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger,
	}
}

// HasStore reports whether events can be persisted or listed
func (s *IngestService) HasStore() bool {
	return s.store != nil
}

// ListEvents returns a company's persisted events
func (s *IngestService) ListEvents(ctx context.Context, symbol string) ([]domain.LongEvent, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: event store", ErrNotConfigured)
	}
	events, err := s.store.ListEvents(ctx, symbol)
	if err != nil {
		return nil, apperrors.NewStorageError("list events", err).ForSymbol(symbol)
	}
	return events, nil
}

// ProcessFile runs the pipeline over a local export workbook
func (s *IngestService) ProcessFile(ctx context.Context, path, symbol string, opts IngestOptions) (*CompanyReport, error) {
	return s.run(ctx, symbol, opts, func(ctx context.Context) (dataprocessing.RawGrid, error) {
		return dataprocessing.LoadWorkbook(path, s.sheet)
	})
}

// ProcessWorkbook runs the pipeline over a workbook streamed from r
func (s *IngestService) ProcessWorkbook(ctx context.Context, r io.Reader, symbol string, opts IngestOptions) (*CompanyReport, error) {
	return s.run(ctx, symbol, opts, func(ctx context.Context) (dataprocessing.RawGrid, error) {
		return dataprocessing.ReadWorkbook(r, s.sheet)
	})
}

// Refresh downloads the company's workbook and processes it
func (s *IngestService) Refresh(ctx context.Context, symbol string, opts IngestOptions) (*CompanyReport, error) {
	if s.fetcher == nil {
		return s.fail(ctx, symbol, time.Now(), fmt.Errorf("%w: workbook fetcher", ErrNotConfigured))
	}

	return s.run(ctx, symbol, opts, func(ctx context.Context) (dataprocessing.RawGrid, error) {
		path, err := s.fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		return dataprocessing.LoadWorkbook(path, s.sheet)
	})
}

// RunBatch refreshes each symbol in turn. A company's failure is recorded in
// the report and the batch moves on; only cancellation stops it early.
func (s *IngestService) RunBatch(ctx context.Context, symbols []string, opts IngestOptions) (*BatchReport, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	return s.batch(ctx, symbols, opts, func(ctx context.Context, i int) (*CompanyReport, error) {
		return s.Refresh(ctx, symbols[i], opts)
	})
}

// ProcessDirectory reprocesses every export_<symbol>.xlsx found in dir without
// downloading, with the same per-company semantics as RunBatch
func (s *IngestService) ProcessDirectory(ctx context.Context, dir string, opts IngestOptions) (*BatchReport, error) {
	workbooks, err := files.NewDiscovery("").FindExportWorkbooks(dir)
	if err != nil {
		return nil, err
	}
	if len(workbooks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoWorkbooks, dir)
	}

	symbols := make([]string, len(workbooks))
	for i, wb := range workbooks {
		symbols[i] = wb.Symbol
	}
	return s.batch(ctx, symbols, opts, func(ctx context.Context, i int) (*CompanyReport, error) {
		return s.ProcessFile(ctx, workbooks[i].Path, workbooks[i].Symbol, opts)
	})
}

// batch runs one company per symbol through process and tallies the outcomes
func (s *IngestService) batch(ctx context.Context, symbols []string, opts IngestOptions, process func(context.Context, int) (*CompanyReport, error)) (*BatchReport, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	report := &BatchReport{RunID: infrastructure.GetTraceID(ctx)}

	ctx, span := s.tracer.Start(ctx, "ingest.batch", trace.WithAttributes(
		attribute.Int("symbols", len(symbols)),
		attribute.String("run_id", report.RunID)))
	defer span.End()

	s.logger.InfoContext(ctx, "Batch started", slog.Int("symbols", len(symbols)))

	var trends []*domain.TrendSummary
	for i := range symbols {
		if err := ctx.Err(); err != nil {
			infrastructure.RecordError(ctx, err)
			return report, err
		}

		company, err := process(ctx, i)
		report.Companies = append(report.Companies, *company)
		switch company.Status {
		case infrastructure.StatusSuccess:
			report.Succeeded++
		case infrastructure.StatusDegraded:
			report.Degraded++
		default:
			report.Failed++
		}
		if err == nil && company.Trends != nil {
			trends = append(trends, company.Trends)
		}
	}

	if opts.Export && s.exporter != nil && len(trends) > 0 {
		path, err := s.exporter.ExportTrends(trends)
		if err != nil {
			s.logger.ErrorContext(ctx, "Trend summary export failed", slog.String("error", err.Error()))
		} else {
			report.TrendsPath = path
		}
	}

	s.logger.InfoContext(ctx, "Batch finished",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("degraded", report.Degraded),
		slog.Int("failed", report.Failed))
	return report, nil
}

func (s *IngestService) fetch(ctx context.Context, symbol string) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", err
	}

	done := s.stage(ctx, "fetch")
	path, err := s.fetcher.Download(ctx, symbol)
	done(err)
	if err != nil {
		return "", apperrors.NewNetworkError("download export workbook", err).ForSymbol(symbol)
	}
	return path, nil
}

// run executes the stages after the grid has been obtained by load
func (s *IngestService) run(ctx context.Context, symbol string, opts IngestOptions, load func(context.Context) (dataprocessing.RawGrid, error)) (*CompanyReport, error) {
	start := time.Now()
	ctx = infrastructure.WithSymbol(infrastructure.EnsureTraceID(ctx), symbol)

	ctx, span := s.tracer.Start(ctx, "ingest.company", trace.WithAttributes(attribute.String("symbol", symbol)))
	defer span.End()

	if opts.Persist && s.store == nil {
		return s.fail(ctx, symbol, start, fmt.Errorf("%w: event store", ErrNotConfigured))
	}
	if opts.Export && s.exporter == nil {
		return s.fail(ctx, symbol, start, fmt.Errorf("%w: exporter", ErrNotConfigured))
	}

	done := s.stage(ctx, "parse")
	grid, err := load(ctx)
	done(err)
	if err != nil {
		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) && ctx.Err() == nil {
			err = apperrors.NewParsingError("read workbook", err).ForSymbol(symbol)
		}
		return s.fail(ctx, symbol, start, err)
	}

	done = s.stage(ctx, "process")
	result, err := s.processor.Process(ctx, grid, symbol)
	done(err)
	if err != nil {
		return s.fail(ctx, symbol, start, apperrors.NewParsingError("process statement sheet", err).ForSymbol(symbol))
	}

	report := &CompanyReport{
		Symbol:           symbol,
		Status:           infrastructure.StatusSuccess,
		Events:           len(result.Events),
		AnnualPeriods:    result.AnnualPeriods,
		QuarterlyPeriods: result.QuarterlyPeriods,
		Trends:           result.Trends,
		events:           result.Events,
	}
	for _, id := range result.FailedSections() {
		report.FailedSections = append(report.FailedSections, string(id))
		s.metrics.SectionFailures.WithLabelValues(string(id)).Inc()
	}
	if len(report.FailedSections) > 0 {
		report.Status = infrastructure.StatusDegraded
	}
	s.metrics.EventsEmitted.Add(float64(len(result.Events)))
	infrastructure.AddSpanEvent(ctx, "processed",
		attribute.Int("events", report.Events),
		attribute.Int("failed_sections", len(report.FailedSections)))

	if opts.Persist {
		done = s.stage(ctx, "persist")
		n, err := s.store.UpsertEvents(ctx, result.Events)
		done(err)
		if err != nil {
			return s.fail(ctx, symbol, start, apperrors.NewStorageError("upsert events", err).ForSymbol(symbol))
		}
		report.Persisted = n
		s.metrics.EventsPersisted.Add(float64(n))
	}

	if opts.Export {
		done = s.stage(ctx, "export")
		path, err := s.exporter.ExportEvents(symbol, result.Events)
		done(err)
		if err != nil {
			return s.fail(ctx, symbol, start, apperrors.NewStorageError("export events", err).ForSymbol(symbol))
		}
		report.ReportPath = path
	}

	report.Duration = time.Since(start)
	s.metrics.CompaniesProcessed.WithLabelValues(report.Status).Inc()

	s.logger.InfoContext(ctx, "Company processed",
		slog.String("status", report.Status),
		slog.Int("events", report.Events),
		slog.Int("persisted", report.Persisted),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// stage starts a child span and returns a func that records its outcome and duration
func (s *IngestService) stage(ctx context.Context, name string) func(error) {
	start := time.Now()
	_, span := s.tracer.Start(ctx, "ingest."+name)
	return func(err error) {
		if err != nil {
			infrastructure.RecordError(trace.ContextWithSpan(ctx, span), err)
		}
		span.End()
		s.metrics.PipelineDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func (s *IngestService) fail(ctx context.Context, symbol string, start time.Time, err error) (*CompanyReport, error) {
	s.metrics.CompaniesProcessed.WithLabelValues(infrastructure.StatusFailed).Inc()
	infrastructure.RecordError(ctx, err)

	s.logger.ErrorContext(ctx, "Company failed", slog.String("error", err.Error()))
	return &CompanyReport{
		Symbol:   symbol,
		Status:   infrastructure.StatusFailed,
		Error:    err.Error(),
		Duration: time.Since(start),
	}, err
}
