// Package resolve orders and filters the set of policies selected to
// fire for a single decision pass.
//
// The resolver builds a directed graph from requires edges, prunes
// conflict pairs (higher priority wins; equal priority breaks ties by
// ascending policy id), cascades removal of policies whose requires set
// is no longer fully selected, and topologically sorts the survivors.
// Everything it rejects is reported with a machine-readable reason so
// the engine can emit reject audit events.
package resolve

import (
	"fmt"
	"log/slog"
	"sort"

	"fedgrid-hq/triton/pkg/policy"
)

// RejectReason classifies why a policy was excluded from an execution pass.
type RejectReason string

const (
	// ReasonConflict marks the loser of a conflicts pair.
	ReasonConflict RejectReason = "conflict"

	// ReasonUnmetRequires marks a policy whose requires set is not a
	// subset of the policies selected for this pass.
	ReasonUnmetRequires RejectReason = "unmet_requires"

	// ReasonCycle marks a policy trapped in a requires cycle.
	ReasonCycle RejectReason = "dependency_cycle"
)

// Rejection records a policy excluded from the execution pass.
type Rejection struct {
	// PolicyID is the excluded policy.
	PolicyID string

	// Reason classifies the exclusion.
	Reason RejectReason

	// Detail names the other policy involved (conflict winner, missing
	// requirement), when applicable.
	Detail string
}

// DependencyConflictError reports a policy excluded from an execution
// pass. It is logged and audited, never fatal: remaining policies still
// execute.
type DependencyConflictError struct {
	PolicyID string
	Reason   RejectReason
	Detail   string
}

// Error returns the error message.
func (e *DependencyConflictError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("policy %s excluded from pass: %s (%s)", e.PolicyID, e.Reason, e.Detail)
	}
	return fmt.Sprintf("policy %s excluded from pass: %s", e.PolicyID, e.Reason)
}

// Resolver produces strict execution orders from candidate sets.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default().With("component", "resolve")
	}
	return &Resolver{logger: logger}
}

// Resolve takes the policies that are both temporally eligible and
// condition-matching for the current context and returns a strict
// execution order plus the rejections applied along the way.
func (r *Resolver) Resolve(candidates []*policy.Policy) ([]*policy.Policy, []Rejection) {
	if len(candidates) == 0 {
		return nil, nil
	}

	byID := make(map[string]*policy.Policy, len(candidates))
	for _, p := range candidates {
		byID[p.ID] = p
	}

	var rejections []Rejection
	reject := func(id string, reason RejectReason, detail string) {
		delete(byID, id)
		rejections = append(rejections, Rejection{PolicyID: id, Reason: reason, Detail: detail})
		r.logger.Info("policy excluded from execution pass",
			"policy_id", id,
			"reason", string(reason),
			"detail", detail,
		)
	}

	r.pruneConflicts(candidates, byID, reject)
	r.cascadeUnmetRequires(byID, reject)

	// Build the requires graph over the survivors and order it.
	graph := NewGraph()
	for id := range byID {
		graph.AddNode(id)
	}
	for id, p := range byID {
		for _, req := range p.Requires {
			graph.AddEdge(req, id)
		}
	}

	less := func(a, b string) bool {
		pa, pb := byID[a], byID[b]
		if pa.Priority != pb.Priority {
			return pa.Priority > pb.Priority
		}
		return a < b
	}
	orderedIDs, cyclic := graph.TopoSort(less)

	for _, id := range cyclic {
		reject(id, ReasonCycle, "")
	}

	ordered := make([]*policy.Policy, 0, len(orderedIDs))
	for _, id := range orderedIDs {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, rejections
}

// pruneConflicts removes the loser of every conflicts pair present in
// the candidate set: lower priority loses; on equal priority the lower
// policy id wins (documented deterministic tie-break).
func (r *Resolver) pruneConflicts(candidates []*policy.Policy, byID map[string]*policy.Policy, reject func(string, RejectReason, string)) {
	// Iterate in a stable order so rejection sequences are reproducible.
	ids := make([]string, 0, len(candidates))
	for _, p := range candidates {
		ids = append(ids, p.ID)
	}
	sort.Strings(ids)

	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue // already lost an earlier pair
		}
		for _, otherID := range p.Conflicts {
			other, ok := byID[otherID]
			if !ok {
				continue
			}
			loser := conflictLoser(p, other)
			winner := p
			if loser == p {
				winner = other
			}
			reject(loser.ID, ReasonConflict, "conflicts with "+winner.ID)
			if loser == p {
				break // p itself is gone; stop scanning its conflicts
			}
		}
	}
}

// conflictLoser picks the policy to drop from a conflicting pair.
func conflictLoser(a, b *policy.Policy) *policy.Policy {
	if a.Priority != b.Priority {
		if a.Priority > b.Priority {
			return b
		}
		return a
	}
	// Equal priority: lower id wins.
	if a.ID < b.ID {
		return b
	}
	return a
}

// cascadeUnmetRequires removes policies whose requires set is not fully
// contained in the selected set, repeating until a fixpoint since each
// removal can orphan further dependents.
func (r *Resolver) cascadeUnmetRequires(byID map[string]*policy.Policy, reject func(string, RejectReason, string)) {
	for {
		var victim *policy.Policy
		var missing string

		ids := make([]string, 0, len(byID))
		for id := range byID {
			ids = append(ids, id)
		}
		sort.Strings(ids)

	scan:
		for _, id := range ids {
			p := byID[id]
			for _, req := range p.Requires {
				if _, ok := byID[req]; !ok {
					victim, missing = p, req
					break scan
				}
			}
		}

		if victim == nil {
			return
		}
		reject(victim.ID, ReasonUnmetRequires, "missing required policy "+missing)
	}
}

// DetectCycle checks the requires graph over a full policy set and
// returns the ids trapped in cycles. Stores call this at registration
// time so dependency cycles fail fast instead of surfacing mid-decision.
func DetectCycle(policies []*policy.Policy) []string {
	graph := NewGraph()
	for _, p := range policies {
		graph.AddNode(p.ID)
		for _, req := range p.Requires {
			graph.AddEdge(req, p.ID)
		}
	}
	_, cyclic := graph.TopoSort(func(a, b string) bool { return a < b })
	return cyclic
}
