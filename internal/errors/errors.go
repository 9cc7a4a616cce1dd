package errors

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// APIError is an error the transport layer raises itself, before any pipeline work
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render implements render.Renderer
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError describes one rejected request field
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors groups every rejected field of one request
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// Error codes carried in the error_code extension
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotFound         = "NOT_FOUND"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMITED"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
)

var (
	ErrMissingFile      = newAPIError(http.StatusBadRequest, CodeInvalidRequest, `Multipart field "file" is required`, nil)
	ErrPayloadTooLarge  = newAPIError(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Uploaded workbook exceeds the size limit", nil)
	ErrRateLimited      = newAPIError(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded, retry shortly", nil)
	ErrStoreUnavailable = newAPIError(http.StatusServiceUnavailable, CodeStoreUnavailable, "Event store is not configured", nil)
)

// problemTypes maps error codes onto RFC 7807 problem types
var problemTypes = map[string]string{
	CodeInvalidRequest:   TypeValidation,
	CodeValidationFailed: TypeValidation,
	CodeNotFound:         TypeNotFound,
	CodePayloadTooLarge:  TypePayloadTooLarge,
	CodeRateLimited:      TypeRateLimited,
	CodeStoreUnavailable: TypeServiceDown,
}

func newAPIError(status int, code, message string, details interface{}) *APIError {
	return &APIError{StatusCode: status, ErrorCode: code, Message: message, Details: details}
}

// New creates an APIError without details
func New(statusCode int, errorCode, message string) *APIError {
	return newAPIError(statusCode, errorCode, message, nil)
}

// InvalidRequestWithError reports a request that could not be decoded
func InvalidRequestWithError(err error) *APIError {
	return newAPIError(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format", err.Error())
}

// ErrValidation rejects a single field
func ErrValidation(field, message string) *APIError {
	return NewValidationErrors([]ValidationError{{Field: field, Message: message}})
}

// NewValidationErrors rejects several fields at once
func NewValidationErrors(fields []ValidationError) *APIError {
	return newAPIError(http.StatusBadRequest, CodeValidationFailed, "Request validation failed", ValidationErrors{Errors: fields})
}

// NotFoundError reports a missing resource by name
func NotFoundError(resource string) *APIError {
	return newAPIError(http.StatusNotFound, CodeNotFound, fmt.Sprintf("%s not found", resource), resource)
}
