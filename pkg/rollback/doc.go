// Package rollback watches action success rates and automatically
// compensates policies that are doing damage.
//
// The monitor ticks periodically. For every active policy carrying a
// RollbackSpec it computes the action success rate over the configured
// recent window from the audit log; a rate strictly below the
// threshold triggers the policy's compensating actions and a rollback
// audit event. A failed compensation is terminal: it is escalated to
// the alert channel exactly once and never retried in a loop.
package rollback
