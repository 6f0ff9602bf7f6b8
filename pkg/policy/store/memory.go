package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"fedgrid-hq/triton/pkg/policy"
)

// MemoryStore is an in-memory Store. All methods operate on deep
// copies.
type MemoryStore struct {
	mu       sync.RWMutex
	policies map[string]*policy.Policy
	history  map[string][]*policy.Policy
	logger   *slog.Logger
}

// NewMemoryStore creates an empty in-memory policy store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		policies: make(map[string]*policy.Policy),
		history:  make(map[string][]*policy.Policy),
		logger:   slog.Default().With("component", "policy_store"),
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, p *policy.Policy) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := p.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.State == "" {
		stored.State = policy.StateDraft
	}
	if _, exists := s.policies[stored.ID]; exists {
		verr := &policy.ValidationError{PolicyID: stored.ID}
		verr.Add("policy id already exists")
		return "", verr
	}
	if err := checkIntegrity(stored, s.othersLocked(stored.ID)); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	stored.Version = 1
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.policies[stored.ID] = stored

	s.logger.Info("policy created", "policy_id", stored.ID, "name", stored.Name)
	return stored.ID, nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id string) (*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, ok := s.policies[id]
	if !ok {
		return nil, &NotFoundError{PolicyID: id}
	}
	return stored.Clone(), nil
}

// List implements Store.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.policies))
	for id := range s.policies {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []*policy.Policy
	skipped := 0
	for _, id := range ids {
		stored := s.policies[id]
		if filter.State != "" && stored.State != filter.State {
			continue
		}
		if filter.Category != "" && stored.Category != filter.Category {
			continue
		}
		if skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, stored.Clone())
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

// Update implements Store.
func (s *MemoryStore) Update(ctx context.Context, p *policy.Policy, expectedVersion int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.policies[p.ID]
	if !ok {
		return 0, &NotFoundError{PolicyID: p.ID}
	}
	if current.Version != expectedVersion {
		return 0, &VersionConflictError{PolicyID: p.ID, Expected: expectedVersion, Actual: current.Version}
	}
	if current.State == policy.StateArchived {
		verr := &policy.ValidationError{PolicyID: p.ID}
		verr.Add("archived policy is immutable")
		return 0, verr
	}

	updated := p.Clone()
	updated.State = current.State
	updated.CreatedAt = current.CreatedAt
	if err := checkIntegrity(updated, s.othersLocked(p.ID)); err != nil {
		return 0, err
	}

	s.history[p.ID] = append(s.history[p.ID], current)
	updated.Version = current.Version + 1
	updated.UpdatedAt = time.Now().UTC()
	s.policies[p.ID] = updated

	s.logger.Info("policy updated", "policy_id", p.ID, "version", updated.Version)
	return updated.Version, nil
}

// Delete implements Store. Archiving an archived policy is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.policies[id]
	if !ok {
		return &NotFoundError{PolicyID: id}
	}
	if current.State == policy.StateArchived {
		return nil
	}
	current.State = policy.StateArchived
	current.Enabled = false
	current.UpdatedAt = time.Now().UTC()

	s.logger.Info("policy archived", "policy_id", id)
	return nil
}

// SetState implements Store.
func (s *MemoryStore) SetState(ctx context.Context, id string, state policy.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.policies[id]
	if !ok {
		return &NotFoundError{PolicyID: id}
	}
	if !current.State.CanTransition(state) {
		return &policy.StateTransitionError{PolicyID: id, From: current.State, To: state}
	}
	current.State = state
	current.Enabled = state == policy.StateActive
	current.UpdatedAt = time.Now().UTC()

	s.logger.Info("policy state changed", "policy_id", id, "state", state)
	return nil
}

// Revert implements Store.
func (s *MemoryStore) Revert(ctx context.Context, id string, version int) (*policy.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.policies[id]
	if !ok {
		return nil, &NotFoundError{PolicyID: id}
	}
	if current.State == policy.StateArchived {
		verr := &policy.ValidationError{PolicyID: id}
		verr.Add("archived policy is immutable")
		return nil, verr
	}

	var snapshot *policy.Policy
	for _, h := range s.history[id] {
		if h.Version == version {
			snapshot = h
			break
		}
	}
	if snapshot == nil {
		return nil, &NotFoundError{PolicyID: id, Version: version}
	}

	restored := snapshot.Clone()
	restored.State = current.State
	restored.CreatedAt = current.CreatedAt
	if err := checkIntegrity(restored, s.othersLocked(id)); err != nil {
		return nil, err
	}

	s.history[id] = append(s.history[id], current)
	restored.Version = current.Version + 1
	restored.UpdatedAt = time.Now().UTC()
	s.policies[id] = restored

	s.logger.Info("policy reverted", "policy_id", id,
		"restored_version", version, "new_version", restored.Version)
	return restored.Clone(), nil
}

// Versions implements Store.
func (s *MemoryStore) Versions(ctx context.Context, id string) ([]*policy.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.policies[id]; !ok {
		return nil, &NotFoundError{PolicyID: id}
	}
	out := make([]*policy.Policy, 0, len(s.history[id]))
	for _, h := range s.history[id] {
		out = append(out, h.Clone())
	}
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }

// othersLocked returns every stored policy except the one with the
// given id. Caller must hold the lock.
func (s *MemoryStore) othersLocked(exclude string) []*policy.Policy {
	out := make([]*policy.Policy, 0, len(s.policies))
	for id, stored := range s.policies {
		if id == exclude {
			continue
		}
		out = append(out, stored)
	}
	return out
}
