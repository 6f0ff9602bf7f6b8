// Package metrics exposes the engine's Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns the Prometheus registry and the metric families for
// the decision pipeline.
type Collector struct {
	registry *prometheus.Registry

	decisionsTotal   *prometheus.CounterVec
	decisionDuration prometheus.Histogram
	evaluationsTotal *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	rollbacksTotal   prometheus.Counter
	policiesByState  *prometheus.GaugeVec
}

// NewCollector creates a collector. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	const namespace = "triton"

	c := &Collector{
		registry: registry,
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Decision passes, labeled by mode.",
		}, []string{"mode"}),
		decisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "decision_duration_seconds",
			Help:      "Wall time of a decision pass.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "condition_evaluations_total",
			Help:      "Condition evaluations, labeled by result.",
		}, []string{"matched"}),
		rejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejections_total",
			Help:      "Resolver rejections, labeled by reason.",
		}, []string{"reason"}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Dispatched actions, labeled by target and outcome.",
		}, []string{"target", "outcome"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Wall time of one action including retries.",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30},
		}, []string{"target"}),
		rollbacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rollbacks_total",
			Help:      "Automatic rollbacks triggered.",
		}),
		policiesByState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "policies",
			Help:      "Registered policies by lifecycle state.",
		}, []string{"state"}),
	}

	registry.MustRegister(
		c.decisionsTotal, c.decisionDuration, c.evaluationsTotal,
		c.rejectionsTotal, c.actionsTotal, c.actionDuration,
		c.rollbacksTotal, c.policiesByState,
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveDecision records one decision pass.
func (c *Collector) ObserveDecision(dryRun bool, duration time.Duration) {
	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	c.decisionsTotal.WithLabelValues(mode).Inc()
	c.decisionDuration.Observe(duration.Seconds())
}

// ObserveEvaluation records one condition evaluation.
func (c *Collector) ObserveEvaluation(matched bool) {
	c.evaluationsTotal.WithLabelValues(boolLabel(matched)).Inc()
}

// ObserveRejection records one resolver rejection.
func (c *Collector) ObserveRejection(reason string) {
	c.rejectionsTotal.WithLabelValues(reason).Inc()
}

// ObserveAction records one dispatched action.
func (c *Collector) ObserveAction(target string, success bool, duration time.Duration) {
	outcome := "failure"
	if success {
		outcome = "success"
	}
	c.actionsTotal.WithLabelValues(target, outcome).Inc()
	c.actionDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// ObserveRollback records one automatic rollback.
func (c *Collector) ObserveRollback() {
	c.rollbacksTotal.Inc()
}

// SetPolicyCount sets the per-state policy gauge.
func (c *Collector) SetPolicyCount(state string, n int) {
	c.policiesByState.WithLabelValues(state).Set(float64(n))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
