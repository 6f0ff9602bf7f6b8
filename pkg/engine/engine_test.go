package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/condition"
	"fedgrid-hq/triton/pkg/policy/resolve"
	"fedgrid-hq/triton/pkg/policy/schedule"
	"fedgrid-hq/triton/pkg/policy/store"
)

// countingSDN records call totals per method.
type countingSDN struct {
	mu    sync.Mutex
	calls map[string]int
}

func newCountingSDN() *countingSDN {
	return &countingSDN{calls: make(map[string]int)}
}

func (c *countingSDN) bump(method string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[method]++
	return nil
}

func (c *countingSDN) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, v := range c.calls {
		n += v
	}
	return n
}

func (c *countingSDN) SetQoSClass(ctx context.Context, params dispatch.Params) error {
	return c.bump("set_qos_class")
}
func (c *countingSDN) InstallFlowRule(ctx context.Context, params dispatch.Params) error {
	return c.bump("install_flow_rule")
}
func (c *countingSDN) AllocateBandwidth(ctx context.Context, params dispatch.Params) error {
	return c.bump("allocate_bandwidth")
}
func (c *countingSDN) RestoreState(ctx context.Context, policyID string, params dispatch.Params) error {
	return c.bump("restore_previous_state")
}

type testRig struct {
	engine   *Engine
	policies store.Store
	events   audit.Store
	sdn      *countingSDN
}

func newTestRig(t *testing.T) *testRig {
	t.Helper()
	policies := store.NewMemoryStore()
	events := audit.NewMemoryStore(0)
	sdn := newCountingSDN()
	dispatcher, err := dispatch.NewDispatcher(dispatch.Capabilities{SDN: sdn}, dispatch.DefaultConfig())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	evaluator := condition.NewEvaluator(condition.NewRegistry(condition.NewRegexCache()), nil)
	scheduler := schedule.NewScheduler(nil, 0, nil)
	resolver := resolve.NewResolver(nil)
	eng := New(policies, evaluator, scheduler, resolver, dispatcher, events, 4)
	return &testRig{engine: eng, policies: policies, events: events, sdn: sdn}
}

// activate registers a policy and flips it to active.
func (r *testRig) activate(t *testing.T, p *policy.Policy) {
	t.Helper()
	ctx := context.Background()
	if _, err := r.policies.Create(ctx, p); err != nil {
		t.Fatalf("Create %s: %v", p.ID, err)
	}
	if err := r.policies.SetState(ctx, p.ID, policy.StateActive); err != nil {
		t.Fatalf("SetState %s: %v", p.ID, err)
	}
}

func qosPolicy(id string, priority int) *policy.Policy {
	return &policy.Policy{
		ID:       id,
		Name:     "qos " + id,
		Priority: priority,
		Condition: &policy.Condition{
			Field:    "traffic_type",
			Operator: policy.OpEquals,
			Value:    "fl_communication",
		},
		Actions: []policy.Action{
			{Type: policy.ActionSetQoSClass, Parameters: map[string]interface{}{"qos_class": "expedited"}},
		},
		Schedule: policy.Schedule{Type: policy.ScheduleAlways},
	}
}

func flContext() map[string]interface{} {
	return map[string]interface{}{"traffic_type": "fl_communication"}
}

func TestDecide_MatchAndDispatch(t *testing.T) {
	rig := newTestRig(t)
	rig.activate(t, qosPolicy("pol_a", 100))

	result, err := rig.engine.Decide(context.Background(), DecisionRequest{Context: flContext()})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if result.Eligible != 1 || result.Matched != 1 {
		t.Fatalf("eligible=%d matched=%d, want 1/1", result.Eligible, result.Matched)
	}
	if len(result.Results) != 1 {
		t.Fatalf("dispatched %d policies, want 1", len(result.Results))
	}
	outcome := result.Results[0].Outcomes[0]
	if !outcome.Success || outcome.Type != policy.ActionSetQoSClass {
		t.Fatalf("outcome = %+v", outcome)
	}
	if rig.sdn.total() != 1 {
		t.Fatalf("SDN calls = %d, want 1", rig.sdn.total())
	}

	// Evaluation and dispatch events are recorded.
	evals, _ := rig.events.Query(context.Background(), audit.Query{Kind: audit.KindEvaluation})
	dispatches, _ := rig.events.Query(context.Background(), audit.Query{Kind: audit.KindDispatch})
	if len(evals) != 1 || len(dispatches) != 1 {
		t.Fatalf("audit events: %d evaluations, %d dispatches, want 1/1", len(evals), len(dispatches))
	}
}

func TestDecide_NonMatchingContextDispatchesNothing(t *testing.T) {
	rig := newTestRig(t)
	rig.activate(t, qosPolicy("pol_a", 100))

	result, err := rig.engine.Decide(context.Background(), DecisionRequest{
		Context: map[string]interface{}{"traffic_type": "bulk"},
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Matched != 0 || len(result.Results) != 0 {
		t.Fatalf("matched=%d dispatched=%d, want 0/0", result.Matched, len(result.Results))
	}
	if rig.sdn.total() != 0 {
		t.Fatal("capability called without a match")
	}
}

func TestDecide_ConflictLoserAuditedAsReject(t *testing.T) {
	rig := newTestRig(t)
	winner := qosPolicy("pol_a", 100)
	winner.Conflicts = []string{"pol_b"}
	loser := qosPolicy("pol_b", 10)
	rig.activate(t, loser)
	rig.activate(t, winner)

	result, err := rig.engine.Decide(context.Background(), DecisionRequest{Context: flContext()})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if len(result.Results) != 1 || result.Results[0].PolicyID != "pol_a" {
		t.Fatalf("execution order = %+v, want only pol_a", result.Results)
	}

	rejects, _ := rig.events.Query(context.Background(), audit.Query{Kind: audit.KindReject})
	if len(rejects) != 1 {
		t.Fatalf("reject events = %d, want 1", len(rejects))
	}
	if rejects[0].PolicyID != "pol_b" {
		t.Errorf("rejected policy = %s, want pol_b", rejects[0].PolicyID)
	}
	if rejects[0].Payload["reason"] != string(resolve.ReasonConflict) {
		t.Errorf("reject reason = %v, want conflict", rejects[0].Payload["reason"])
	}
}

func TestDecide_CronIneligiblePolicyNeverEvaluated(t *testing.T) {
	rig := newTestRig(t)

	p := qosPolicy("pol_cron", 50)
	p.Schedule = policy.Schedule{
		Type: policy.ScheduleCron,
		Cron: &policy.CronSchedule{Expression: "0 9 * * MON-FRI"},
	}
	rig.activate(t, p)

	// Saturday 09:00 UTC.
	saturday := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	result, err := rig.engine.decide(context.Background(),
		DecisionRequest{Context: flContext()}, saturday)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}

	if result.Eligible != 0 {
		t.Fatalf("eligible = %d, want 0 on a Saturday", result.Eligible)
	}
	// The evaluator was skipped entirely: no evaluation audit event.
	evals, _ := rig.events.Query(context.Background(), audit.Query{Kind: audit.KindEvaluation})
	if len(evals) != 0 {
		t.Fatalf("evaluation events = %d, want 0", len(evals))
	}
}

func TestDecide_RequiresOrderRespected(t *testing.T) {
	rig := newTestRig(t)

	base := qosPolicy("pol_base", 10)
	dependent := qosPolicy("pol_dep", 100)
	dependent.Requires = []string{"pol_base"}
	rig.activate(t, base)
	rig.activate(t, dependent)

	result, err := rig.engine.Decide(context.Background(), DecisionRequest{Context: flContext()})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("dispatched %d, want 2", len(result.Results))
	}
	if result.Results[0].PolicyID != "pol_base" || result.Results[1].PolicyID != "pol_dep" {
		t.Fatalf("order = %s, %s; requirement must execute first",
			result.Results[0].PolicyID, result.Results[1].PolicyID)
	}
}

func TestDecide_DryRunWritesNothing(t *testing.T) {
	rig := newTestRig(t)
	rig.activate(t, qosPolicy("pol_a", 100))

	result, err := rig.engine.Decide(context.Background(), DecisionRequest{
		Context: flContext(),
		DryRun:  true,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if len(result.Results) != 1 || !result.Results[0].DryRun {
		t.Fatalf("dry-run results = %+v", result.Results)
	}
	if rig.sdn.total() != 0 {
		t.Fatal("dry run reached a capability")
	}
	n, _ := rig.events.Count(context.Background(), audit.Query{})
	if n != 0 {
		t.Fatalf("dry run wrote %d audit events, want 0", n)
	}
}

func TestDecide_EventScheduleCountsOnlyRealRuns(t *testing.T) {
	rig := newTestRig(t)

	p := qosPolicy("pol_event", 50)
	p.Schedule = policy.Schedule{
		Type: policy.ScheduleEvent,
		Event: &policy.EventSchedule{
			TriggerEvents: []string{"congestion_detected"},
			MaxExecutions: 2,
		},
	}
	rig.activate(t, p)

	ctx := context.Background()
	req := DecisionRequest{Context: flContext(), EventType: "congestion_detected"}

	// A dry run must not consume an execution.
	dry := req
	dry.DryRun = true
	if _, err := rig.engine.Decide(ctx, dry); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := rig.engine.Decide(ctx, req); err != nil {
			t.Fatalf("Decide: %v", err)
		}
	}

	// MaxExecutions=2: third real run was ineligible.
	if rig.sdn.total() != 2 {
		t.Fatalf("SDN calls = %d, want 2 (max_executions honored)", rig.sdn.total())
	}

	// Without the trigger event the policy is never eligible.
	result, err := rig.engine.Decide(ctx, DecisionRequest{Context: flContext()})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if result.Eligible != 0 {
		t.Fatalf("eligible = %d without trigger event, want 0", result.Eligible)
	}
}

func TestSimulate_AggregatesTimeline(t *testing.T) {
	rig := newTestRig(t)
	rig.activate(t, qosPolicy("pol_a", 100))

	scenario := Scenario{
		Name: "qos-burst",
		Steps: []ScenarioStep{
			{Context: flContext()},
			{Context: map[string]interface{}{"traffic_type": "bulk"}},
			{Context: flContext()},
		},
	}

	sim, err := rig.engine.Simulate(context.Background(), scenario)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}

	if len(sim.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(sim.Steps))
	}
	if sim.Dispatches != 2 {
		t.Fatalf("Dispatches = %d, want 2", sim.Dispatches)
	}
	if sim.FiredByPolicy["pol_a"] != 2 {
		t.Fatalf("FiredByPolicy = %v", sim.FiredByPolicy)
	}
	if sim.ActionsByType[policy.ActionSetQoSClass] != 2 {
		t.Fatalf("ActionsByType = %v", sim.ActionsByType)
	}
	// Steps keep timeline order regardless of concurrent execution.
	for i, step := range sim.Steps {
		if step.Step != i {
			t.Fatalf("step %d has index %d", i, step.Step)
		}
	}

	if rig.sdn.total() != 0 {
		t.Fatal("simulation reached a capability")
	}
	n, _ := rig.events.Count(context.Background(), audit.Query{})
	if n != 0 {
		t.Fatalf("simulation wrote %d audit events", n)
	}
}

func TestPool_ProcessesRequests(t *testing.T) {
	rig := newTestRig(t)
	rig.activate(t, qosPolicy("pol_a", 100))

	pool := NewPool(rig.engine, 3)
	requests := make(chan DecisionRequest)

	done := make(chan struct{})
	go func() {
		pool.Run(context.Background(), requests)
		close(done)
	}()

	for i := 0; i < 10; i++ {
		requests <- DecisionRequest{Context: flContext()}
	}
	close(requests)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain")
	}

	if rig.sdn.total() != 10 {
		t.Fatalf("SDN calls = %d, want 10", rig.sdn.total())
	}
}
