package store

import (
	"context"
	"errors"

	"finsheet/pkg/contracts/domain"
)

// ErrClosed is returned by a store used after Close
var ErrClosed = errors.New("store closed")

// EventStore persists long events idempotently on
// (symbol, timestamp, metric name, period code). Re-upserting an event
// replaces its period bounds, fiscal type and value.
type EventStore interface {
	// UpsertEvents writes events and returns how many were written
	UpsertEvents(ctx context.Context, events []domain.LongEvent) (int, error)
	// ListEvents returns a company's events ordered by timestamp, metric and period code
	ListEvents(ctx context.Context, symbol string) ([]domain.LongEvent, error)
	// Ping checks the store is reachable
	Ping(ctx context.Context) error
	Close()
}
