package store

import (
	"context"
	"strings"

	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/resolve"
)

// ListFilter narrows List results. Zero-valued fields are ignored.
type ListFilter struct {
	// State restricts results to one lifecycle state.
	State policy.State

	// Category restricts results to one category.
	Category string

	// Limit caps the result count (0 = no cap).
	Limit int

	// Offset skips leading results for pagination.
	Offset int
}

// Store is the policy registry. Implementations must be safe for
// concurrent use and must hand out deep copies, never internal state.
type Store interface {
	// Create validates and persists a new policy, returning its id.
	// An empty ID is assigned a fresh uuid; an empty State defaults to
	// draft. The stored policy starts at version 1.
	Create(ctx context.Context, p *policy.Policy) (string, error)

	// Get returns the current version of a policy.
	Get(ctx context.Context, id string) (*policy.Policy, error)

	// List returns policies matching the filter, ordered by id.
	List(ctx context.Context, filter ListFilter) ([]*policy.Policy, error)

	// Update replaces a policy's document and returns the new version.
	// expectedVersion must match the stored version or the write is
	// rejected with VersionConflictError. Lifecycle state and creation
	// timestamp are preserved; state changes go through SetState.
	Update(ctx context.Context, p *policy.Policy, expectedVersion int) (int, error)

	// Delete soft-deletes a policy by archiving it. Archived is
	// terminal; the document and its history remain queryable.
	Delete(ctx context.Context, id string) error

	// SetState applies a lifecycle transition, enforcing the
	// draft -> active <-> suspended -> archived state machine.
	SetState(ctx context.Context, id string, state policy.State) error

	// Revert restores a historical version as a new version and
	// returns the resulting policy.
	Revert(ctx context.Context, id string, version int) (*policy.Policy, error)

	// Versions returns the historical snapshots of a policy, oldest
	// first, excluding the current version.
	Versions(ctx context.Context, id string) ([]*policy.Policy, error)

	// Close releases backend resources.
	Close() error
}

// checkIntegrity runs the write-time checks shared by both backends:
// document validity, referential existence of requires/conflicts ids,
// and acyclicity of the requires graph with the candidate included.
// others is the rest of the registry, excluding any stored policy with
// the candidate's id.
func checkIntegrity(p *policy.Policy, others []*policy.Policy) error {
	if err := p.Validate(); err != nil {
		return err
	}

	known := make(map[string]bool, len(others)+1)
	known[p.ID] = true
	for _, other := range others {
		known[other.ID] = true
	}

	verr := &policy.ValidationError{PolicyID: p.ID}
	for _, ref := range p.Requires {
		if !known[ref] {
			verr.Add("requires unknown policy %q", ref)
		}
	}
	for _, ref := range p.Conflicts {
		if !known[ref] {
			verr.Add("conflicts with unknown policy %q", ref)
		}
	}
	if verr.HasErrors() {
		return verr
	}

	if cyclic := resolve.DetectCycle(append(append([]*policy.Policy{}, others...), p)); len(cyclic) > 0 {
		verr.Add("requires cycle through %s", strings.Join(cyclic, ", "))
		return verr
	}
	return nil
}
