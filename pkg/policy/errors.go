package policy

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the policy packages.
var (
	// ErrUnsupportedOperator indicates a condition leaf uses an operator
	// outside the registered set.
	ErrUnsupportedOperator = errors.New("unsupported operator")

	// ErrUnsupportedActionType indicates an action uses a type outside
	// the closed capability set.
	ErrUnsupportedActionType = errors.New("unsupported action type")
)

// ValidationError reports one or more structural problems with a policy.
// Registration and updates are rejected synchronously with this error;
// nothing is written on failure.
type ValidationError struct {
	PolicyID string
	Errors   []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("policy %s: validation error: %s", e.PolicyID, e.Errors[0])
	}
	return fmt.Sprintf("policy %s: %d validation errors: %v", e.PolicyID, len(e.Errors), e.Errors)
}

// Add appends a validation failure.
func (e *ValidationError) Add(format string, args ...interface{}) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// HasErrors reports whether any failures were recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// StateTransitionError indicates an illegal lifecycle transition.
type StateTransitionError struct {
	PolicyID string
	From     State
	To       State
}

// Error returns the error message.
func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("policy %s: illegal state transition %s -> %s", e.PolicyID, e.From, e.To)
}
