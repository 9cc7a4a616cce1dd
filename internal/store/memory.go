package store

import (
	"context"
	"sync"

	"finsheet/pkg/contracts/domain"
)

// MemoryStore keeps events in process memory
type MemoryStore struct {
	mu     sync.RWMutex
	events map[domain.EventKey]domain.LongEvent
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[domain.EventKey]domain.LongEvent)}
}

// UpsertEvents implements EventStore
func (s *MemoryStore) UpsertEvents(ctx context.Context, events []domain.LongEvent) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	for _, e := range events {
		s.events[e.Key()] = e
	}
	return len(events), nil
}

// ListEvents implements EventStore
func (s *MemoryStore) ListEvents(ctx context.Context, symbol string) ([]domain.LongEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	out := make([]domain.LongEvent, 0)
	for k, e := range s.events {
		if k.Symbol == symbol {
			out = append(out, e)
		}
	}
	domain.SortEvents(out)
	return out, nil
}

// Len returns the number of distinct events held
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Ping implements EventStore
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Close implements EventStore
func (s *MemoryStore) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
