package dispatch

import (
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

// Target identifies a downstream system for circuit breaking and
// resource serialization.
type Target string

const (
	// TargetSDN is the SDN controller.
	TargetSDN Target = "sdn"

	// TargetFL is the federated-learning coordinator.
	TargetFL Target = "fl"

	// TargetAlert is the alert channel.
	TargetAlert Target = "alert"

	// TargetScript is the script runner.
	TargetScript Target = "script"

	// TargetLog is the internal event log; it has no breaker and no
	// external call.
	TargetLog Target = "log"
)

// targetFor maps an action type onto its downstream target.
func targetFor(actionType policy.ActionType) Target {
	switch actionType {
	case policy.ActionSetQoSClass, policy.ActionInstallFlowRule,
		policy.ActionAllocateBandwidth, policy.ActionRestorePreviousState:
		return TargetSDN
	case policy.ActionAdjustTrainingParams, policy.ActionSelectClients,
		policy.ActionTriggerAggregation:
		return TargetFL
	case policy.ActionSendAlert:
		return TargetAlert
	case policy.ActionExecuteScript:
		return TargetScript
	default:
		return TargetLog
	}
}

// ActionOutcome records the result of one action within a dispatch.
type ActionOutcome struct {
	// Type is the dispatched action type.
	Type policy.ActionType `json:"type"`

	// Target is the downstream system the action resolved to.
	Target Target `json:"target"`

	// Success reports whether the action (or its dry-run) succeeded.
	Success bool `json:"success"`

	// Invoked reports whether a capability was actually called.
	// Always false under dry-run.
	Invoked bool `json:"invoked"`

	// Attempts is the number of capability calls made, including the
	// successful one. Zero under dry-run.
	Attempts int `json:"attempts"`

	// Error holds the final error message when Success is false.
	Error string `json:"error,omitempty"`

	// Duration is the wall time spent on the action.
	Duration time.Duration `json:"duration"`
}

// EvaluationResult is the per-policy outcome of a dispatch.
type EvaluationResult struct {
	// PolicyID identifies the dispatched policy.
	PolicyID string `json:"policy_id"`

	// PolicyName is carried for readable results.
	PolicyName string `json:"policy_name,omitempty"`

	// DryRun marks results produced without capability calls.
	DryRun bool `json:"dry_run"`

	// Outcomes holds one entry per action, in execution order.
	Outcomes []ActionOutcome `json:"outcomes"`

	// StartedAt is when dispatch for this policy began.
	StartedAt time.Time `json:"started_at"`

	// Duration is the total dispatch wall time for this policy.
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether every action outcome succeeded.
func (r *EvaluationResult) Succeeded() bool {
	for _, o := range r.Outcomes {
		if !o.Success {
			return false
		}
	}
	return true
}

// Failed returns the number of failed action outcomes.
func (r *EvaluationResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Success {
			n++
		}
	}
	return n
}
