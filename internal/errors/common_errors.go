package errors

import (
	"strings"
)

// ErrorType names the ingest stage a failure came from
type ErrorType string

const (
	ErrTypeNetwork ErrorType = "network"
	ErrTypeParsing ErrorType = "parsing"
	ErrTypeStorage ErrorType = "storage"
)

// AppError is a pipeline failure for one company. Op is the step that failed,
// e.g. "download export workbook".
type AppError struct {
	Type   ErrorType
	Op     string
	Symbol string
	Err    error
}

// Error renders "<op> <symbol>: <cause>", omitting empty parts
func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Symbol != "" {
		b.WriteString(" ")
		b.WriteString(e.Symbol)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ForSymbol records the company the failure belongs to
func (e *AppError) ForSymbol(symbol string) *AppError {
	e.Symbol = symbol
	return e
}

// NewNetworkError wraps a failure talking to the source site
func NewNetworkError(op string, err error) *AppError {
	return &AppError{Type: ErrTypeNetwork, Op: op, Err: err}
}

// NewParsingError wraps a workbook or pipeline failure
func NewParsingError(op string, err error) *AppError {
	return &AppError{Type: ErrTypeParsing, Op: op, Err: err}
}

// NewStorageError wraps a persistence or export failure
func NewStorageError(op string, err error) *AppError {
	return &AppError{Type: ErrTypeStorage, Op: op, Err: err}
}
