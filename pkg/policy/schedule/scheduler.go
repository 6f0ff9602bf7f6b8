package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

// DefaultFireWindow is how long a policy stays eligible after a cron
// fire instant when no explicit window is configured. Decision requests
// are discrete, so the window turns an instantaneous fire into an
// interval they can land in.
const DefaultFireWindow = time.Minute

// Event is the context event a decision request was triggered by.
type Event struct {
	// Type is the event type (e.g. "experiment_started", "congestion_detected").
	Type string

	// At is when the event occurred.
	At time.Time
}

// Scheduler evaluates schedule eligibility for policies.
type Scheduler struct {
	counters   CounterStore
	crons      *cronCache
	fireWindow time.Duration
	logger     *slog.Logger
}

// NewScheduler creates a scheduler. A nil counter store gets an
// in-memory one (event schedules with max_executions then reset on
// restart; production wiring passes the sqlite store). fireWindow <= 0
// selects DefaultFireWindow.
func NewScheduler(counters CounterStore, fireWindow time.Duration, logger *slog.Logger) *Scheduler {
	if counters == nil {
		counters = NewMemoryCounters()
	}
	if fireWindow <= 0 {
		fireWindow = DefaultFireWindow
	}
	if logger == nil {
		logger = slog.Default().With("component", "schedule")
	}
	return &Scheduler{
		counters:   counters,
		crons:      newCronCache(),
		fireWindow: fireWindow,
		logger:     logger,
	}
}

// Eligible reports whether the policy's schedule permits evaluation at
// now for the given triggering event (nil when the decision was not
// event-driven).
func (s *Scheduler) Eligible(ctx context.Context, p *policy.Policy, now time.Time, event *Event) (bool, error) {
	switch p.Schedule.Type {
	case policy.ScheduleAlways, "":
		return true, nil

	case policy.ScheduleCron:
		return s.cronEligible(p, now)

	case policy.ScheduleEvent:
		return s.eventEligible(ctx, p, now, event)

	default:
		return false, fmt.Errorf("unknown schedule type %q", p.Schedule.Type)
	}
}

// RecordExecution bumps the policy's persistent execution counter. The
// engine calls this after a successful (non-dry-run) dispatch so that
// max_executions caps survive restarts.
func (s *Scheduler) RecordExecution(ctx context.Context, policyID string) error {
	_, err := s.counters.Increment(ctx, policyID)
	return err
}

// Executions returns the policy's lifetime execution count.
func (s *Scheduler) Executions(ctx context.Context, policyID string) (int, error) {
	return s.counters.Get(ctx, policyID)
}

func (s *Scheduler) eventEligible(ctx context.Context, p *policy.Policy, now time.Time, event *Event) (bool, error) {
	spec := p.Schedule.Event
	if spec == nil {
		return false, fmt.Errorf("policy %s: event schedule without parameters", p.ID)
	}
	if event == nil {
		return false, nil
	}

	triggered := false
	for _, trigger := range spec.TriggerEvents {
		if trigger == event.Type {
			triggered = true
			break
		}
	}
	if !triggered {
		return false, nil
	}

	if spec.Delay > 0 {
		eventAt := event.At
		if eventAt.IsZero() {
			eventAt = now
		}
		if now.Before(eventAt.Add(spec.Delay)) {
			s.logger.Debug("event schedule still in delay window",
				"policy_id", p.ID,
				"event_type", event.Type,
				"delay", spec.Delay,
			)
			return false, nil
		}
	}

	if spec.MaxExecutions > 0 {
		count, err := s.counters.Get(ctx, p.ID)
		if err != nil {
			return false, fmt.Errorf("policy %s: reading execution counter: %w", p.ID, err)
		}
		if count >= spec.MaxExecutions {
			s.logger.Debug("event schedule exhausted",
				"policy_id", p.ID,
				"executions", count,
				"max_executions", spec.MaxExecutions,
			)
			return false, nil
		}
	}

	return true, nil
}
