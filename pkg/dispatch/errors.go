package dispatch

import (
	"fmt"
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

// ActionExecutionError indicates an action exhausted its retry budget
// (or could not be attempted at all) against its downstream target.
type ActionExecutionError struct {
	PolicyID   string
	ActionType policy.ActionType
	Target     Target
	Attempts   int
	Cause      error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("policy %s: action %s against %s failed after %d attempt(s): %v",
		e.PolicyID, e.ActionType, e.Target, e.Attempts, e.Cause)
}

func (e *ActionExecutionError) Unwrap() error { return e.Cause }

// BreakerOpenError indicates the circuit breaker for a target is open
// and the call was rejected without being attempted.
type BreakerOpenError struct {
	Target     Target
	RetryAfter time.Duration
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("target %s: circuit breaker open, retry after %s", e.Target, e.RetryAfter)
}

// CapabilityMissingError indicates no capability is wired for the
// action's target.
type CapabilityMissingError struct {
	Target Target
}

func (e *CapabilityMissingError) Error() string {
	return fmt.Sprintf("target %s: no capability configured", e.Target)
}
