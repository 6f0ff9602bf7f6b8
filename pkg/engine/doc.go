// Package engine runs the decision pipeline: it turns a context
// snapshot (and optionally a triggering event) into dispatched policy
// actions.
//
// A decision pass loads the active policies, filters them by schedule
// eligibility, evaluates their condition trees in parallel against the
// context snapshot, resolves dependencies and conflicts into a strict
// execution order, and dispatches the survivors sequentially. Every
// evaluation, dispatch, and rejection is recorded in the audit log.
//
// Dry-run passes (including every simulation step) run the same
// pipeline but never invoke capabilities, never bump event execution
// counters, and never write audit events.
package engine
