package schedule

import (
	"context"
	"sync"
)

// CounterStore tracks per-policy execution counts for max_executions
// enforcement. Implementations must be safe for concurrent use; the
// sqlite implementation persists counts across process restarts.
type CounterStore interface {
	// Get returns the current execution count for a policy (0 if never
	// executed).
	Get(ctx context.Context, policyID string) (int, error)

	// Increment adds one execution and returns the new count.
	Increment(ctx context.Context, policyID string) (int, error)

	// Reset clears the counter for a policy (used when a policy is
	// archived or its schedule is replaced).
	Reset(ctx context.Context, policyID string) error
}

// MemoryCounters is an in-memory CounterStore for tests and single-run
// tooling (simulate, validate). Counts do not survive restarts.
type MemoryCounters struct {
	mu     sync.Mutex
	counts map[string]int
}

// NewMemoryCounters creates an empty in-memory counter store.
func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{counts: make(map[string]int)}
}

// Get returns the current count.
func (m *MemoryCounters) Get(ctx context.Context, policyID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[policyID], nil
}

// Increment adds one execution and returns the new count.
func (m *MemoryCounters) Increment(ctx context.Context, policyID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[policyID]++
	return m.counts[policyID], nil
}

// Reset clears the counter.
func (m *MemoryCounters) Reset(ctx context.Context, policyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, policyID)
	return nil
}
