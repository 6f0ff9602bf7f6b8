// Package schedule decides temporal and event-based policy eligibility,
// independent of condition matching.
//
// Each ScheduleSpec variant (always, cron, event) has its own strategy
// behind the common Eligible call, rather than schedule branches spread
// through the evaluator. Cron eligibility uses robfig/cron semantics: a
// policy is eligible while inside the fire window that follows a
// scheduled fire instant, interpreted in the schedule's timezone and cut
// off at its end date. Event eligibility matches the current context
// event type against the schedule's trigger set, applies the optional
// delay, and enforces max_executions against a per-policy counter that
// persists across process restarts (see CounterStore).
package schedule
