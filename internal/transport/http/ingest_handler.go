package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "finsheet/internal/errors"
	"finsheet/internal/exporter"
	"finsheet/internal/middleware"
	"finsheet/internal/services"
	"finsheet/pkg/contracts/domain"
)

// uploadField is the multipart field carrying the export workbook
const uploadField = "file"

type symbolKey struct{}

// IngestRequest is the validated form of POST /ingest query parameters
type IngestRequest struct {
	Symbol  string `json:"symbol" validate:"required,ticker"`
	Persist bool   `json:"persist"`
	Export  bool   `json:"export"`
	Format  string `json:"format" validate:"omitempty,oneof=json csv"`
}

// BatchRequest is the body of POST /refresh
type BatchRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,max=100,dive,ticker"`
	Persist bool     `json:"persist"`
	Export  bool     `json:"export"`
}

// EventsQuery is the validated form of GET /symbols/{symbol}/events parameters
type EventsQuery struct {
	Format string `json:"format" validate:"omitempty,oneof=json csv"`
}

// IngestHandler serves workbook ingestion and the persisted time series
type IngestHandler struct {
	service        IngestServiceInterface
	validator      *middleware.Validator
	errorHandler   *apperrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(service IngestServiceInterface, validator *middleware.Validator, errorHandler *apperrors.ErrorHandler, maxUploadBytes int64, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		service:        service,
		validator:      validator,
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("handler", "ingest")),
	}
}

// Routes returns the ingest routes
func (h *IngestHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/ingest", h.Ingest)
	r.Post("/refresh", h.RefreshBatch)

	r.Route("/symbols/{symbol}", func(r chi.Router) {
		r.Use(h.SymbolCtx)
		r.Post("/refresh", h.Refresh)
		r.Get("/events", h.Events)
	})

	return r
}

// SymbolCtx validates the {symbol} URL parameter and stores it upper-cased in the context
func (h *IngestHandler) SymbolCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
		if !middleware.ValidTicker(symbol) {
			h.errorHandler.HandleError(w, r, apperrors.ErrValidation("symbol", "symbol must be a ticker symbol"))
			return
		}
		ctx := context.WithValue(r.Context(), symbolKey{}, symbol)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func symbolFrom(r *http.Request) string {
	symbol, _ := r.Context().Value(symbolKey{}).(string)
	return symbol
}

// Ingest handles POST /api/v1/ingest?symbol=&persist=&export=&format= with a multipart
// workbook. format=csv answers with the produced events instead of the report.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := IngestRequest{Symbol: strings.ToUpper(q.Get("symbol")), Format: q.Get("format")}

	var err error
	if req.Persist, err = queryBool(q.Get("persist")); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("persist", "persist must be a boolean"))
		return
	}
	if req.Export, err = queryBool(q.Get("export")); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("export", "export must be a boolean"))
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Persist && !h.service.HasStore() {
		h.errorHandler.HandleError(w, r, apperrors.ErrStoreUnavailable)
		return
	}

	if r.ContentLength > h.maxUploadBytes {
		h.errorHandler.HandleError(w, r, apperrors.ErrPayloadTooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, _, err := r.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile):
			err = apperrors.ErrMissingFile
		case errors.As(err, &tooLarge):
			// 413 from the error handler
		default:
			err = apperrors.InvalidRequestWithError(err)
		}
		h.errorHandler.HandleError(w, r, err)
		return
	}
	defer file.Close()

	report, err := h.service.ProcessWorkbook(r.Context(), file, req.Symbol,
		services.IngestOptions{Persist: req.Persist, Export: req.Export})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Workbook ingested",
		slog.String("symbol", req.Symbol),
		slog.String("status", report.Status),
		slog.Int("events", report.Events))
	if req.Format == "csv" {
		h.writeCSV(w, r, req.Symbol, report.EventsOf())
		return
	}
	render.JSON(w, r, report)
}

// Refresh handles POST /api/v1/symbols/{symbol}/refresh
func (h *IngestHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFrom(r)

	persist, err := queryBool(r.URL.Query().Get("persist"))
	if err != nil {
		h.errorHandler.HandleError(w, r, apperrors.ErrValidation("persist", "persist must be a boolean"))
		return
	}
	if persist && !h.service.HasStore() {
		h.errorHandler.HandleError(w, r, apperrors.ErrStoreUnavailable)
		return
	}

	report, err := h.service.Refresh(r.Context(), symbol, services.IngestOptions{Persist: persist})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// RefreshBatch handles POST /api/v1/refresh with a JSON list of symbols.
// Per-company failures are reported in the body; the response is still 200.
func (h *IngestHandler) RefreshBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := render.DecodeJSON(http.MaxBytesReader(w, r.Body, 1<<20), &req); err != nil {
		h.errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
		return
	}
	for i, s := range req.Symbols {
		req.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if req.Persist && !h.service.HasStore() {
		h.errorHandler.HandleError(w, r, apperrors.ErrStoreUnavailable)
		return
	}

	report, err := h.service.RunBatch(r.Context(), req.Symbols,
		services.IngestOptions{Persist: req.Persist, Export: req.Export})
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}

// Events handles GET /api/v1/symbols/{symbol}/events?format=json|csv
func (h *IngestHandler) Events(w http.ResponseWriter, r *http.Request) {
	symbol := symbolFrom(r)

	query := EventsQuery{Format: r.URL.Query().Get("format")}
	if err := h.validator.ValidateStruct(query); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if !h.service.HasStore() {
		h.errorHandler.HandleError(w, r, apperrors.ErrStoreUnavailable)
		return
	}

	events, err := h.service.ListEvents(r.Context(), symbol)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	if len(events) == 0 {
		h.errorHandler.HandleError(w, r, apperrors.NotFoundError("events for "+symbol))
		return
	}

	if query.Format == "csv" {
		h.writeCSV(w, r, symbol, events)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"symbol": symbol,
		"count":  len(events),
		"events": events,
	})
}

func (h *IngestHandler) writeCSV(w http.ResponseWriter, r *http.Request, symbol string, events []domain.LongEvent) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+symbol+`_timeseries.csv"`)
	if err := exporter.WriteEvents(w, events); err != nil {
		// Headers are gone; the client sees a truncated body
		h.logger.ErrorContext(r.Context(), "Failed to stream events",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
	}
}

func queryBool(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	return strconv.ParseBool(v)
}
