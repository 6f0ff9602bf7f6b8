package audit

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store for tests and ephemeral runs. It
// keeps at most maxEvents records, discarding the oldest once full.
type MemoryStore struct {
	mu        sync.RWMutex
	events    []*Event
	maxEvents int
}

// DefaultMemoryCapacity bounds the in-memory event buffer.
const DefaultMemoryCapacity = 100000

// NewMemoryStore creates an in-memory audit store. maxEvents <= 0
// selects DefaultMemoryCapacity.
func NewMemoryStore(maxEvents int) *MemoryStore {
	if maxEvents <= 0 {
		maxEvents = DefaultMemoryCapacity
	}
	return &MemoryStore{maxEvents: maxEvents}
}

// Append records an event.
func (s *MemoryStore) Append(ctx context.Context, event *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, event)
	if len(s.events) > s.maxEvents {
		// Drop the oldest; the durable backend is the compliance record.
		s.events = s.events[len(s.events)-s.maxEvents:]
	}
	return nil
}

// Query returns matching events, newest first.
func (s *MemoryStore) Query(ctx context.Context, query Query) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := query.Limit
	if limit <= 0 {
		limit = 100
	}

	var out []*Event
	skipped := 0
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if !query.Matches(e) {
			continue
		}
		if skipped < query.Offset {
			skipped++
			continue
		}
		copied := *e
		out = append(out, &copied)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Count returns the number of matching events.
func (s *MemoryStore) Count(ctx context.Context, query Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, e := range s.events {
		if query.Matches(e) {
			n++
		}
	}
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
