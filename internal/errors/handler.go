package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"finsheet/internal/dataprocessing"
	"finsheet/internal/infrastructure"
	"finsheet/internal/screener"
)

// Problem types, relative URIs per RFC 7807
const (
	TypeValidation       = "/errors/validation"
	TypeNotFound         = "/errors/not-found"
	TypeMethodNotAllowed = "/errors/method-not-allowed"
	TypeInternal         = "/errors/internal"
	TypeServiceDown      = "/errors/service-unavailable"
	TypeTimeout          = "/errors/timeout"
	TypePayloadTooLarge  = "/errors/payload-too-large"
	TypeUpstream         = "/errors/upstream"
	TypeRateLimited      = "/errors/rate-limited"

	TypeWorkbookInvalid = "/errors/workbook/invalid"
	TypeRequiredColumn  = "/errors/workbook/required-column"
	TypeSymbolNotFound  = "/errors/symbol/not-found"
	TypeStorage         = "/errors/store"
)

// sentinelProblems maps pipeline sentinels onto problem responses, first match wins
var sentinelProblems = []struct {
	target      error
	status      int
	problemType string
	title       string
}{
	{dataprocessing.ErrSheetNotFound, http.StatusUnprocessableEntity, TypeWorkbookInvalid, "Invalid Workbook"},
	{dataprocessing.ErrReportDateMissing, http.StatusUnprocessableEntity, TypeWorkbookInvalid, "Invalid Workbook"},
	{dataprocessing.ErrMarkerNotFound, http.StatusUnprocessableEntity, TypeWorkbookInvalid, "Invalid Workbook"},
	{screener.ErrCompanyNotFound, http.StatusNotFound, TypeSymbolNotFound, "Company Not Found"},
	{screener.ErrLoginFailed, http.StatusBadGateway, TypeUpstream, "Source Site Error"},
	{screener.ErrExportButtonMissing, http.StatusBadGateway, TypeUpstream, "Source Site Error"},
	{screener.ErrCSRFTokenMissing, http.StatusBadGateway, TypeUpstream, "Source Site Error"},
}

// ErrorHandler renders every failure as RFC 7807 problem details.
// includeStack adds goroutine stacks to responses and is meant for development.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

// HandleError logs err, warn for client faults and error for 5xx, then writes its problem response
func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}

	problem := h.ErrorToProblem(err, r)
	level := slog.LevelWarn
	if problem.Status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed",
		slog.String("error", err.Error()),
		slog.Int("status", problem.Status),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	if h.includeStack {
		problem.WithExtension("stack", string(debug.Stack()))
	}
	respond(w, r, problem)
}

// ErrorToProblem classifies err. Unknown errors become a 500 that does not leak err's text.
func (h *ErrorHandler) ErrorToProblem(err error, r *http.Request) *ProblemDetails {
	path := r.URL.Path

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewProblemDetails(http.StatusGatewayTimeout, TypeTimeout, "Request Timeout",
			"The request did not finish before its deadline", path)
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErrorToProblem(apiErr, path)
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return NewProblemDetails(http.StatusRequestEntityTooLarge, TypePayloadTooLarge, "Payload Too Large", err.Error(), path).
			WithExtension("limit", tooLarge.Limit)
	}

	var rc *dataprocessing.RequiredColumnError
	if errors.As(err, &rc) {
		return NewProblemDetails(http.StatusUnprocessableEntity, TypeRequiredColumn, "Required Column Missing", rc.Error(), path).
			WithExtension("column", rc.Column).
			WithExtension("table", string(rc.Kind))
	}

	for _, m := range sentinelProblems {
		if errors.Is(err, m.target) {
			return NewProblemDetails(m.status, m.problemType, m.title, err.Error(), path)
		}
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErrorToProblem(appErr, path)
	}

	return NewProblemDetails(http.StatusInternalServerError, TypeInternal, http.StatusText(http.StatusInternalServerError),
		"An unexpected error occurred while processing your request", path)
}

func apiErrorToProblem(apiErr *APIError, path string) *ProblemDetails {
	problemType, ok := problemTypes[apiErr.ErrorCode]
	if !ok {
		problemType = TypeInternal
	}

	problem := NewProblemDetails(apiErr.StatusCode, problemType, http.StatusText(apiErr.StatusCode), apiErr.Message, path).
		WithExtension("error_code", apiErr.ErrorCode)
	if apiErr.Details != nil {
		problem.WithExtension("details", apiErr.Details)
	}
	return problem
}

func appErrorToProblem(appErr *AppError, path string) *ProblemDetails {
	status, problemType := http.StatusInternalServerError, TypeInternal
	switch appErr.Type {
	case ErrTypeParsing:
		status, problemType = http.StatusUnprocessableEntity, TypeWorkbookInvalid
	case ErrTypeNetwork:
		status, problemType = http.StatusBadGateway, TypeUpstream
	case ErrTypeStorage:
		problemType = TypeStorage
	}

	problem := NewProblemDetails(status, problemType, http.StatusText(status), appErr.Error(), path).
		WithExtension("stage", string(appErr.Type))
	if appErr.Symbol != "" {
		problem.WithExtension("symbol", appErr.Symbol)
	}
	return problem
}

// HandlePanic logs a recovered panic with its stack and answers 500
func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := string(debug.Stack())
	h.logger.ErrorContext(r.Context(), "panic recovered",
		slog.Any("panic", recovered),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("stack", stack),
	)

	problem := NewProblemDetails(http.StatusInternalServerError, TypeInternal,
		http.StatusText(http.StatusInternalServerError), "An unexpected error occurred", r.URL.Path)
	if h.includeStack {
		problem.WithExtension("panic", fmt.Sprint(recovered)).WithExtension("stack", stack)
	}
	respond(w, r, problem)
}

// NotFound is the router's 404 handler
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	respond(w, r, NewProblemDetails(http.StatusNotFound, TypeNotFound, http.StatusText(http.StatusNotFound),
		"No route matches "+r.URL.Path, r.URL.Path))
}

// MethodNotAllowed is the router's 405 handler
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respond(w, r, NewProblemDetails(http.StatusMethodNotAllowed, TypeMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed),
		fmt.Sprintf("%s is not supported on %s", r.Method, r.URL.Path), r.URL.Path))
}

// respond stamps the request's trace id on problem and renders it
func respond(w http.ResponseWriter, r *http.Request, problem *ProblemDetails) {
	problem.WithExtension("trace_id", infrastructure.GetTraceID(r.Context()))
	render.Render(w, r, problem)
}
