package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"finsheet/internal/config"
	apperrors "finsheet/internal/errors"
	"finsheet/internal/exporter"
	"finsheet/internal/infrastructure"
	customMiddleware "finsheet/internal/middleware"
	"finsheet/internal/screener"
	"finsheet/internal/services"
	"finsheet/internal/store"
	handlers "finsheet/internal/transport/http"
	"finsheet/pkg/contracts"
)

// Application represents the main application container
type Application struct {
	Config  *config.Config
	Paths   *config.Paths
	Logger  *slog.Logger
	OTel    *infrastructure.OTelProviders
	Metrics *infrastructure.PipelineMetrics
	// Store is nil when no database is configured
	Store   store.EventStore
	Fetcher services.Fetcher
	Ingest  *services.IngestService
	Health  *services.HealthService
	Router  *chi.Mux
	Server  *http.Server

	errorHandler *apperrors.ErrorHandler
}

// Option overrides a collaborator the application would otherwise build from config
type Option func(*Application)

// WithStore uses s instead of connecting to the configured database
func WithStore(s store.EventStore) Option {
	return func(a *Application) { a.Store = s }
}

// WithFetcher uses f instead of the screener client
func WithFetcher(f services.Fetcher) Option {
	return func(a *Application) { a.Fetcher = f }
}

// NewApplication loads configuration and the process logger, then wires the application
func NewApplication(ctx context.Context, opts ...Option) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return New(ctx, cfg, logger, opts...)
}

// New wires the application from an already loaded configuration
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Application, error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &Application{Config: cfg, Logger: logger}
	for _, opt := range opts {
		opt(a)
	}

	logger.InfoContext(ctx, "Application starting",
		slog.String("name", config.AppName),
		slog.String("version", contracts.Version))

	paths, err := cfg.Paths.ResolvePaths()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to ensure directories: %w", err)
	}
	paths.LogPathResolution(logger)
	a.Paths = paths

	// Pipeline counters and the OTel bridge share one registry behind /metrics
	registry := prometheus.NewRegistry()
	a.Metrics, err = infrastructure.NewPipelineMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register pipeline metrics: %w", err)
	}
	a.OTel, err = infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Telemetry, registry), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	if err := a.initializeServices(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.setupRouter(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.createServer()

	return a, nil
}

// initializeServices connects the store and builds the pipeline services
func (a *Application) initializeServices(ctx context.Context) error {
	if a.Store == nil && a.Config.Database.Configured() {
		pg, err := store.NewPostgresStore(ctx, a.Config.Database, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
		a.Store = pg
	}
	if a.Store == nil {
		a.Logger.WarnContext(ctx, "No database configured, persistence disabled")
	}

	if a.Fetcher == nil {
		client, err := screener.NewClient(a.Config.Screener, a.Paths.DownloadsDir, a.Logger)
		if err != nil {
			return fmt.Errorf("failed to create screener client: %w", err)
		}
		a.Fetcher = client
	}

	a.Ingest = services.NewIngestService(services.IngestDeps{
		Fetcher:    a.Fetcher,
		Store:      a.Store,
		Exporter:   exporter.NewEventExporter(exporter.NewCSVWriter(a.Paths, a.Logger)),
		Metrics:    a.Metrics,
		Tracer:     a.OTel.Tracer,
		SheetName:  a.Config.Workbook.SheetName,
		FetchDelay: a.Config.Screener.FetchDelay,
		Logger:     a.Logger,
	})

	// A nil store must reach the health service as a nil interface
	var pinger services.Pinger
	if a.Store != nil {
		pinger = a.Store
	}
	a.Health = services.NewHealthService(a.Paths, pinger, a.Logger)

	return nil
}

// setupRouter configures the HTTP router with all routes.
// Order: RequestID → RealIP → OTel → Logger → Recoverer → SecurityHeaders.
func (a *Application) setupRouter() error {
	a.errorHandler = apperrors.NewErrorHandler(a.Logger, a.Config.Logging.Development)

	otelMiddleware, err := customMiddleware.NewOTelMiddleware(a.OTel, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create OpenTelemetry middleware: %w", err)
	}

	r := chi.NewRouter()
	r.Use(customMiddleware.RequestID)
	r.Use(customMiddleware.RealIP)
	r.Use(otelMiddleware.Handler)
	r.Use(customMiddleware.StructuredLogger(a.Logger))
	r.Use(apperrors.RecoveryMiddleware(a.errorHandler))
	r.Use(customMiddleware.SecurityHeaders)

	// Set before mounting so sub-routers inherit the problem responses
	r.NotFound(a.errorHandler.NotFound)
	r.MethodNotAllowed(a.errorHandler.MethodNotAllowed)

	if a.Config.Telemetry.Metrics {
		r.Handle(config.MetricsEndpoint, a.OTel.MetricsHandler())
	}

	a.setupAPIRoutes(r)

	a.Router = r
	return nil
}

// setupAPIRoutes configures API endpoints. Health stays outside the rate limiter.
func (a *Application) setupAPIRoutes(r chi.Router) {
	healthHandler := handlers.NewHealthHandler(a.Health, a.Logger)
	ingestHandler := handlers.NewIngestHandler(
		a.Ingest,
		customMiddleware.NewValidator(),
		a.errorHandler,
		a.Config.Server.MaxUploadBytes,
		a.Logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Group(func(r chi.Router) {
			if rps := a.Config.Server.RateLimitRPS; rps > 0 {
				r.Use(customMiddleware.NewRateLimiter(rps, a.Config.Server.RateLimitBurst, a.errorHandler, a.Logger).Handler)
			}
			// Downloads and batch runs may take most of the write window
			r.Use(customMiddleware.Timeout(a.Config.Server.WriteTimeout))
			r.Mount("/v1", ingestHandler.Routes())
		})

		r.Mount("/", healthHandler.Routes())
	})
}

func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:         a.Config.Server.Addr(),
		Handler:      a.Router,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
	}
}

// Run serves HTTP until ctx is cancelled, then shuts the server down gracefully
// within Server.ShutdownTimeout. It returns the first serve or shutdown error.
func (a *Application) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfoContext(gctx, "HTTP server listening",
			slog.String("address", a.Server.Addr),
			slog.Bool("persistence", a.Store != nil))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.Logger.InfoContext(ctx, "Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.Server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Close releases the store and flushes telemetry. Safe to call on a partly built application.
func (a *Application) Close(ctx context.Context) {
	if a.Store != nil {
		a.Store.Close()
	}

	if a.OTel != nil {
		shutdownCtx := ctx
		if a.Config != nil && a.Config.Server.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
			defer cancel()
		}
		if err := a.OTel.Shutdown(shutdownCtx); err != nil {
			a.Logger.ErrorContext(ctx, "Error shutting down OpenTelemetry", slog.String("error", err.Error()))
		}
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	if err := infrastructure.CloseLogFile(); err != nil {
		a.Logger.ErrorContext(ctx, "Error closing log file", slog.String("error", err.Error()))
	}
}
