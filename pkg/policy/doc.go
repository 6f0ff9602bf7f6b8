// Package policy defines the core data model for the Triton governance
// engine: policies, condition trees, actions, schedules, rollback
// specifications, and the policy lifecycle state machine.
//
// A Policy combines four things:
//
//   - a Condition tree (nested AND/OR over field-operator-value leaves)
//     evaluated against a decision context,
//   - an ordered list of Actions dispatched to external capabilities
//     (SDN control plane, FL coordinator, alert channels),
//   - a Schedule controlling temporal or event-based eligibility,
//   - dependency metadata (requires/conflicts) and an optional
//     RollbackSpec driving automatic compensation.
//
// The model is transport-agnostic: the same structs serialize to JSON for
// the REST API and to YAML for policy template files. Validation lives
// here (see Policy.Validate) so that every entry point - store writes,
// template instantiation, CLI linting - enforces identical rules.
package policy
