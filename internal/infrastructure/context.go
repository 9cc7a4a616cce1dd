package infrastructure

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey int

const (
	traceIDKey ctxKey = iota
	symbolKey
)

// NewRunID returns a fresh id for a batch run or request
func NewRunID() string {
	return uuid.NewString()
}

// WithTraceID stores the run or request id that log records are stamped with
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// GetTraceID returns the id stored by WithTraceID, or ""
func GetTraceID(ctx context.Context) string {
	return stringValue(ctx, traceIDKey)
}

// EnsureTraceID keeps an existing trace id and otherwise starts a new run
func EnsureTraceID(ctx context.Context) context.Context {
	if GetTraceID(ctx) != "" {
		return ctx
	}
	return WithTraceID(ctx, NewRunID())
}

// WithSymbol tags the context with the company being processed
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey, symbol)
}

// GetSymbol returns the company set by WithSymbol, or ""
func GetSymbol(ctx context.Context) string {
	return stringValue(ctx, symbolKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
