package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/condition"
	"fedgrid-hq/triton/pkg/policy/resolve"
	"fedgrid-hq/triton/pkg/policy/schedule"
	"fedgrid-hq/triton/pkg/policy/store"
	"fedgrid-hq/triton/pkg/telemetry/metrics"
)

// DefaultEvalParallelism bounds the condition-evaluation fan-out of a
// single decision pass.
const DefaultEvalParallelism = 8

// DecisionRequest is one decision pass input.
type DecisionRequest struct {
	// Context is the snapshot the condition trees evaluate against.
	Context map[string]interface{} `json:"context"`

	// EventType, when set, is the triggering event for event-scheduled
	// policies.
	EventType string `json:"event_type,omitempty"`

	// DryRun evaluates and orders but never invokes capabilities.
	DryRun bool `json:"dry_run,omitempty"`
}

// DecisionResult is the outcome of one decision pass.
type DecisionResult struct {
	// Results holds per-policy dispatch outcomes in execution order.
	Results []*dispatch.EvaluationResult `json:"results"`

	// Rejections lists policies excluded by the resolver.
	Rejections []resolve.Rejection `json:"rejections,omitempty"`

	// Eligible is the number of schedule-eligible active policies.
	Eligible int `json:"eligible"`

	// Matched is the number of policies whose conditions matched.
	Matched int `json:"matched"`

	// EvaluatedAt is when the pass ran.
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Engine wires the pipeline stages together.
type Engine struct {
	policies   store.Store
	evaluator  *condition.Evaluator
	scheduler  *schedule.Scheduler
	resolver   *resolve.Resolver
	dispatcher *dispatch.Dispatcher
	events     audit.Store
	logger     *slog.Logger

	evalParallelism int
	now             func() time.Time
	metrics         *metrics.Collector
}

// New creates an engine over its collaborators. evalParallelism <= 0
// selects DefaultEvalParallelism.
func New(policies store.Store, evaluator *condition.Evaluator, scheduler *schedule.Scheduler,
	resolver *resolve.Resolver, dispatcher *dispatch.Dispatcher, events audit.Store,
	evalParallelism int) *Engine {
	if evalParallelism <= 0 {
		evalParallelism = DefaultEvalParallelism
	}
	return &Engine{
		policies:        policies,
		evaluator:       evaluator,
		scheduler:       scheduler,
		resolver:        resolver,
		dispatcher:      dispatcher,
		events:          events,
		logger:          slog.Default().With("component", "engine"),
		evalParallelism: evalParallelism,
		now:             time.Now,
	}
}

// UseMetrics attaches a metrics collector. Call before serving
// traffic; a nil collector disables instrumentation.
func (e *Engine) UseMetrics(collector *metrics.Collector) {
	e.metrics = collector
}

// Decide runs one decision pass.
func (e *Engine) Decide(ctx context.Context, req DecisionRequest) (*DecisionResult, error) {
	return e.decide(ctx, req, e.now().UTC())
}

func (e *Engine) decide(ctx context.Context, req DecisionRequest, now time.Time) (*DecisionResult, error) {
	started := time.Now()
	result := &DecisionResult{EvaluatedAt: now, Results: []*dispatch.EvaluationResult{}}

	active, err := e.policies.List(ctx, store.ListFilter{State: policy.StateActive})
	if err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.SetPolicyCount(string(policy.StateActive), len(active))
		defer func() {
			e.metrics.ObserveDecision(req.DryRun, time.Since(started))
		}()
	}

	var event *schedule.Event
	if req.EventType != "" {
		event = &schedule.Event{Type: req.EventType, At: now}
	}

	eligible := make([]*policy.Policy, 0, len(active))
	for _, p := range active {
		ok, err := e.scheduler.Eligible(ctx, p, now, event)
		if err != nil {
			// One broken schedule never sinks the pass.
			e.logger.Error("schedule eligibility failed",
				"policy_id", p.ID, "error", err)
			continue
		}
		if ok {
			eligible = append(eligible, p)
		}
	}
	result.Eligible = len(eligible)

	matched := e.evaluateAll(ctx, eligible, condition.NewContext(req.Context), req.DryRun)
	result.Matched = len(matched)

	ordered, rejections := e.resolver.Resolve(matched)
	result.Rejections = rejections
	if !req.DryRun {
		for _, rej := range rejections {
			if e.metrics != nil {
				e.metrics.ObserveRejection(string(rej.Reason))
			}
			e.append(ctx, audit.NewEvent(rej.PolicyID, audit.KindReject, map[string]interface{}{
				"reason": string(rej.Reason),
				"detail": rej.Detail,
			}))
		}
	}

	for _, p := range ordered {
		dispatched := e.dispatcher.Dispatch(ctx, p, req.DryRun)
		result.Results = append(result.Results, dispatched)

		if req.DryRun {
			continue
		}
		if e.metrics != nil {
			for _, o := range dispatched.Outcomes {
				e.metrics.ObserveAction(string(o.Target), o.Success, o.Duration)
			}
		}
		if p.Schedule.Type == policy.ScheduleEvent {
			if err := e.scheduler.RecordExecution(ctx, p.ID); err != nil {
				e.logger.Error("recording execution failed", "policy_id", p.ID, "error", err)
			}
		}
		e.append(ctx, audit.NewEvent(p.ID, audit.KindDispatch, map[string]interface{}{
			audit.PayloadActionsTotal:  len(dispatched.Outcomes),
			audit.PayloadActionsFailed: dispatched.Failed(),
			"duration_ms":              dispatched.Duration.Milliseconds(),
		}))
	}

	e.logger.Info("decision pass complete",
		"active", len(active), "eligible", result.Eligible,
		"matched", result.Matched, "dispatched", len(ordered),
		"rejected", len(rejections), "dry_run", req.DryRun)
	return result, nil
}

// evaluateAll runs the condition evaluator across the eligible set
// with bounded parallelism and returns the matching policies in the
// input order.
func (e *Engine) evaluateAll(ctx context.Context, eligible []*policy.Policy, condCtx condition.Context, dryRun bool) []*policy.Policy {
	results := make([]bool, len(eligible))
	sem := make(chan struct{}, e.evalParallelism)
	var wg sync.WaitGroup

	for i, p := range eligible {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, p *policy.Policy) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("condition evaluation panicked",
						"policy_id", p.ID, "panic", r)
					results[i] = false
				}
			}()
			results[i] = e.evaluator.Evaluate(p.Condition, condCtx)
		}(i, p)
	}
	wg.Wait()

	matched := make([]*policy.Policy, 0, len(eligible))
	for i, p := range eligible {
		if !dryRun {
			if e.metrics != nil {
				e.metrics.ObserveEvaluation(results[i])
			}
			e.append(ctx, audit.NewEvent(p.ID, audit.KindEvaluation, map[string]interface{}{
				"matched": results[i],
			}))
		}
		if results[i] {
			matched = append(matched, p)
		}
	}
	return matched
}

// append writes an audit event, logging instead of failing the pass
// when the audit backend is down.
func (e *Engine) append(ctx context.Context, event *audit.Event) {
	if err := e.events.Append(ctx, event); err != nil {
		e.logger.Error("audit append failed",
			"policy_id", event.PolicyID, "kind", event.Kind, "error", err)
	}
}
