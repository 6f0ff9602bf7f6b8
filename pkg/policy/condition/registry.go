package condition

import (
	"fmt"
	"sync"

	"fedgrid-hq/triton/pkg/policy"
)

// Operator evaluates a single leaf comparison. Implementations must be
// pure: no clock, no randomness, no mutation of their inputs.
type Operator interface {
	// Name returns the operator identifier used in policy definitions.
	Name() policy.Operator

	// Apply compares the actual context value against the expected value
	// from the policy. A non-nil error means the operands could not be
	// interpreted for this operator (e.g. failed numeric coercion); the
	// evaluator degrades such leaves to false.
	Apply(actual, expected interface{}) (bool, error)
}

// Registry maps operator names to implementations. A registry is safe
// for concurrent use; registration normally happens once at startup.
type Registry struct {
	mu  sync.RWMutex
	ops map[policy.Operator]Operator
}

// NewRegistry returns a registry pre-populated with the built-in
// operator set, sharing the given regex cache for the matches operator.
// A nil cache gets a private one.
func NewRegistry(cache *RegexCache) *Registry {
	if cache == nil {
		cache = NewRegexCache()
	}
	r := &Registry{ops: make(map[policy.Operator]Operator)}
	for _, op := range builtinOperators(cache) {
		r.Register(op)
	}
	return r
}

// Register adds or replaces an operator implementation.
func (r *Registry) Register(op Operator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops[op.Name()] = op
}

// Lookup resolves an operator by name.
func (r *Registry) Lookup(name policy.Operator) (Operator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", policy.ErrUnsupportedOperator, name)
	}
	return op, nil
}
