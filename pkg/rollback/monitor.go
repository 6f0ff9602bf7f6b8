package rollback

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/store"
	"fedgrid-hq/triton/pkg/telemetry/metrics"
)

// DefaultInterval is the default monitor tick period.
const DefaultInterval = 30 * time.Second

// maxWindowEvents bounds how much dispatch history one rate
// computation reads. Windows are minutes, not days, so this is
// generous.
const maxWindowEvents = 10000

// RollbackError indicates a compensating action failed. This is
// terminal for the policy: it requires a human and is never retried
// automatically.
type RollbackError struct {
	PolicyID string
	Failed   int
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("policy %s: %d compensating action(s) failed, manual intervention required",
		e.PolicyID, e.Failed)
}

// Monitor periodically checks rollback-enabled policies and triggers
// their compensating actions when the success rate degrades.
type Monitor struct {
	policies   store.Store
	events     audit.Store
	dispatcher *dispatch.Dispatcher
	alerts     dispatch.AlertChannel
	interval   time.Duration
	logger     *slog.Logger
	now        func() time.Time
	metrics    *metrics.Collector

	mu        sync.Mutex
	ticking   bool
	escalated map[string]bool
}

// NewMonitor creates a monitor. alerts may be nil, in which case
// compensation failures are only logged.
func NewMonitor(policies store.Store, events audit.Store, dispatcher *dispatch.Dispatcher,
	alerts dispatch.AlertChannel, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Monitor{
		policies:   policies,
		events:     events,
		dispatcher: dispatcher,
		alerts:     alerts,
		interval:   interval,
		logger:     slog.Default().With("component", "rollback_monitor"),
		now:        time.Now,
		escalated:  make(map[string]bool),
	}
}

// UseMetrics attaches a metrics collector. Call before Run.
func (m *Monitor) UseMetrics(collector *metrics.Collector) {
	m.metrics = collector
}

// Run ticks until the context is cancelled. Always returns nil after a
// clean shutdown.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info("rollback monitor started", "interval", m.interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("rollback monitor stopped")
			return nil
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick runs one monitoring pass. Overlapping ticks are collapsed: if a
// pass is still running, the new one is skipped.
func (m *Monitor) Tick(ctx context.Context) {
	m.mu.Lock()
	if m.ticking {
		m.mu.Unlock()
		m.logger.Debug("previous pass still running, skipping tick")
		return
	}
	m.ticking = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.ticking = false
		m.mu.Unlock()
	}()

	active, err := m.policies.List(ctx, store.ListFilter{State: policy.StateActive})
	if err != nil {
		m.logger.Error("listing active policies failed", "error", err)
		return
	}

	for _, p := range active {
		if p.Rollback == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return
		}
		m.checkPolicy(ctx, p)
	}
}

// checkPolicy evaluates one policy's success rate and rolls back if it
// dropped below the threshold.
func (m *Monitor) checkPolicy(ctx context.Context, p *policy.Policy) {
	now := m.now().UTC()
	from := now.Add(-p.Rollback.Window)
	events, err := m.events.Query(ctx, audit.Query{
		PolicyID: p.ID,
		Kind:     audit.KindDispatch,
		From:     &from,
		To:       &now,
		Limit:    maxWindowEvents,
	})
	if err != nil {
		m.logger.Error("querying dispatch history failed", "policy_id", p.ID, "error", err)
		return
	}

	rate, samples := audit.SuccessRate(events)
	if samples == 0 || rate >= p.Rollback.Threshold {
		if rate >= p.Rollback.Threshold {
			// Healthy again: allow future escalations.
			m.mu.Lock()
			delete(m.escalated, p.ID)
			m.mu.Unlock()
		}
		return
	}

	// A policy whose compensation already failed is parked until the
	// rate recovers; re-dispatching a broken compensation path every
	// tick would only burn capability calls.
	m.mu.Lock()
	parked := m.escalated[p.ID]
	m.mu.Unlock()
	if parked {
		m.logger.Debug("compensation awaiting manual intervention",
			"policy_id", p.ID, "rate", rate)
		return
	}

	m.logger.Warn("success rate below threshold, rolling back",
		"policy_id", p.ID, "rate", rate, "threshold", p.Rollback.Threshold,
		"samples", samples)

	result := m.dispatcher.DispatchActions(ctx, p, p.Rollback.CompensatingActions(p.ID))
	if m.metrics != nil {
		m.metrics.ObserveRollback()
	}

	event := audit.NewEvent(p.ID, audit.KindRollback, map[string]interface{}{
		"success_rate":      rate,
		"threshold":         p.Rollback.Threshold,
		"samples":           samples,
		"actions_total":     len(result.Outcomes),
		"actions_failed":    result.Failed(),
		"compensation_okay": result.Succeeded(),
	})
	if err := m.events.Append(ctx, event); err != nil {
		m.logger.Error("recording rollback event failed", "policy_id", p.ID, "error", err)
	}

	if !result.Succeeded() {
		m.escalate(ctx, &RollbackError{PolicyID: p.ID, Failed: result.Failed()})
	}
}

// escalate pages a human about a failed compensation, once per policy
// until the policy recovers.
func (m *Monitor) escalate(ctx context.Context, rerr *RollbackError) {
	m.mu.Lock()
	already := m.escalated[rerr.PolicyID]
	m.escalated[rerr.PolicyID] = true
	m.mu.Unlock()

	m.logger.Error("compensating actions failed", "policy_id", rerr.PolicyID,
		"failed", rerr.Failed, "already_escalated", already)
	if already || m.alerts == nil {
		return
	}
	err := m.alerts.Send(ctx, dispatch.Params{
		"severity":  "critical",
		"kind":      "rollback_failure",
		"policy_id": rerr.PolicyID,
		"message":   rerr.Error(),
	})
	if err != nil {
		m.logger.Error("escalation alert failed", "policy_id", rerr.PolicyID, "error", err)
	}
}
