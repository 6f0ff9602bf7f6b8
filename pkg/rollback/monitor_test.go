package rollback

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"fedgrid-hq/triton/pkg/audit"
	"fedgrid-hq/triton/pkg/dispatch"
	"fedgrid-hq/triton/pkg/policy"
	"fedgrid-hq/triton/pkg/policy/store"
)

// recordingSDN captures restore calls and optionally fails them.
type recordingSDN struct {
	mu       sync.Mutex
	restored []string
	fail     bool
}

func (r *recordingSDN) SetQoSClass(ctx context.Context, params dispatch.Params) error { return nil }
func (r *recordingSDN) InstallFlowRule(ctx context.Context, params dispatch.Params) error {
	return nil
}
func (r *recordingSDN) AllocateBandwidth(ctx context.Context, params dispatch.Params) error {
	return nil
}
func (r *recordingSDN) RestoreState(ctx context.Context, policyID string, params dispatch.Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restored = append(r.restored, policyID)
	if r.fail {
		return &dispatch.CapabilityMissingError{Target: dispatch.TargetSDN}
	}
	return nil
}

func (r *recordingSDN) restoreCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.restored)
}

type recordingAlerts struct {
	mu   sync.Mutex
	sent []dispatch.Params
}

func (r *recordingAlerts) Send(ctx context.Context, params dispatch.Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, params)
	return nil
}

func (r *recordingAlerts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// rollbackPolicy registers an active policy with a rollback spec.
func rollbackPolicy(t *testing.T, policies store.Store, id string, threshold float64) {
	t.Helper()
	p := &policy.Policy{
		ID:       id,
		Name:     "guarded " + id,
		Priority: 10,
		Actions: []policy.Action{
			{Type: policy.ActionInstallFlowRule},
		},
		Schedule: policy.Schedule{Type: policy.ScheduleAlways},
		Rollback: &policy.RollbackSpec{
			Window:    10 * time.Minute,
			Threshold: threshold,
		},
	}
	if _, err := policies.Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := policies.SetState(context.Background(), id, policy.StateActive); err != nil {
		t.Fatalf("SetState: %v", err)
	}
}

// recordDispatch appends a dispatch audit event with the given counts.
func recordDispatch(t *testing.T, events audit.Store, policyID string, total, failed int, at time.Time) {
	t.Helper()
	err := events.Append(context.Background(), &audit.Event{
		ID:        policyID + at.String(),
		Timestamp: at,
		PolicyID:  policyID,
		Kind:      audit.KindDispatch,
		Payload: map[string]interface{}{
			audit.PayloadActionsTotal:  total,
			audit.PayloadActionsFailed: failed,
		},
	})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
}

func newTestMonitor(t *testing.T, sdn *recordingSDN, alerts dispatch.AlertChannel) (*Monitor, store.Store, audit.Store) {
	t.Helper()
	policies := store.NewMemoryStore()
	events := audit.NewMemoryStore(0)
	d, err := dispatch.NewDispatcher(dispatch.Capabilities{SDN: sdn}, dispatch.DefaultConfig())
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	m := NewMonitor(policies, events, d, alerts, time.Minute)
	return m, policies, events
}

func TestMonitor_RollsBackWhenRateStrictlyBelowThreshold(t *testing.T) {
	sdn := &recordingSDN{}
	m, policies, events := newTestMonitor(t, sdn, nil)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	now := time.Now().UTC()
	// 10 actions, 3 failed: rate 0.7 < 0.8.
	recordDispatch(t, events, "pol_a", 10, 3, now.Add(-time.Minute))

	m.Tick(context.Background())

	if sdn.restoreCount() != 1 {
		t.Fatalf("restore calls = %d, want 1", sdn.restoreCount())
	}

	rollbacks, err := events.Query(context.Background(), audit.Query{Kind: audit.KindRollback})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rollbacks) != 1 {
		t.Fatalf("rollback events = %d, want 1", len(rollbacks))
	}
	if rollbacks[0].PolicyID != "pol_a" {
		t.Errorf("rollback event policy = %s", rollbacks[0].PolicyID)
	}
}

func TestMonitor_RateAtThresholdDoesNotFire(t *testing.T) {
	sdn := &recordingSDN{}
	m, policies, events := newTestMonitor(t, sdn, nil)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	// Exactly 0.8: the trigger is strictly-below.
	recordDispatch(t, events, "pol_a", 10, 2, time.Now().UTC().Add(-time.Minute))

	m.Tick(context.Background())

	if sdn.restoreCount() != 0 {
		t.Fatalf("restore calls = %d, want 0 at exactly the threshold", sdn.restoreCount())
	}
}

func TestMonitor_NoSamplesNoRollback(t *testing.T) {
	sdn := &recordingSDN{}
	m, policies, _ := newTestMonitor(t, sdn, nil)
	rollbackPolicy(t, policies, "pol_a", 0.99)

	m.Tick(context.Background())

	if sdn.restoreCount() != 0 {
		t.Fatal("rollback fired with no dispatch history")
	}
}

func TestMonitor_OldEventsOutsideWindowIgnored(t *testing.T) {
	sdn := &recordingSDN{}
	m, policies, events := newTestMonitor(t, sdn, nil)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	// Catastrophic failures, but an hour ago (window is 10 minutes).
	recordDispatch(t, events, "pol_a", 10, 10, time.Now().UTC().Add(-time.Hour))

	m.Tick(context.Background())

	if sdn.restoreCount() != 0 {
		t.Fatal("rollback fired on events outside the window")
	}
}

func TestMonitor_FailedCompensationEscalatesOnce(t *testing.T) {
	sdn := &recordingSDN{fail: true}
	alerts := &recordingAlerts{}
	m, policies, events := newTestMonitor(t, sdn, alerts)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	now := time.Now().UTC()
	recordDispatch(t, events, "pol_a", 10, 9, now.Add(-time.Minute))

	m.Tick(context.Background())
	m.Tick(context.Background())
	m.Tick(context.Background())

	if alerts.count() != 1 {
		t.Fatalf("escalation alerts = %d, want exactly 1", alerts.count())
	}
	msg, _ := alerts.sent[0]["message"].(string)
	if !strings.Contains(msg, "pol_a") {
		t.Errorf("alert message = %q, want policy id mentioned", msg)
	}
}

func TestMonitor_FailedCompensationNotRedispatched(t *testing.T) {
	sdn := &recordingSDN{fail: true}
	alerts := &recordingAlerts{}
	m, policies, events := newTestMonitor(t, sdn, alerts)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	now := time.Now().UTC()
	recordDispatch(t, events, "pol_a", 10, 9, now.Add(-time.Minute))

	m.Tick(context.Background())
	calls := sdn.restoreCount()
	if calls == 0 {
		t.Fatal("first tick did not attempt compensation")
	}

	// The rate is still below threshold, but the broken compensation
	// path is parked until it recovers.
	m.Tick(context.Background())
	m.Tick(context.Background())

	if sdn.restoreCount() != calls {
		t.Fatalf("restore calls grew from %d to %d across ticks after escalation",
			calls, sdn.restoreCount())
	}

	rollbacks, err := events.Query(context.Background(), audit.Query{Kind: audit.KindRollback})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(rollbacks) != 1 {
		t.Fatalf("rollback events = %d, want 1", len(rollbacks))
	}
}

func TestMonitor_RecoveryRearmsEscalation(t *testing.T) {
	sdn := &recordingSDN{fail: true}
	alerts := &recordingAlerts{}
	m, policies, events := newTestMonitor(t, sdn, alerts)
	rollbackPolicy(t, policies, "pol_a", 0.8)

	base := time.Unix(1_700_000_000, 0).UTC()
	clock := base
	m.now = func() time.Time { return clock }

	recordDispatch(t, events, "pol_a", 10, 9, base.Add(-time.Minute))
	m.Tick(context.Background())
	if alerts.count() != 1 {
		t.Fatalf("alerts = %d, want 1", alerts.count())
	}

	// The bad events age out of the window; a healthy burst arrives.
	clock = base.Add(30 * time.Minute)
	recordDispatch(t, events, "pol_a", 10, 0, clock.Add(-time.Minute))
	m.Tick(context.Background())

	// Degrades again later: a fresh escalation is allowed.
	clock = clock.Add(30 * time.Minute)
	recordDispatch(t, events, "pol_a", 10, 9, clock.Add(-time.Minute))
	m.Tick(context.Background())
	if alerts.count() != 2 {
		t.Fatalf("alerts = %d, want 2 after recovery and re-degradation", alerts.count())
	}
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	m, _, _ := newTestMonitor(t, &recordingSDN{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}
