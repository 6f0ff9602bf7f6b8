package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

// Config contains dispatcher tuning.
type Config struct {
	// MaxAttempts is the retry budget per action, including the first
	// call.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// InitialBackoff is the delay before the first retry; it doubles
	// per attempt up to MaxBackoff.
	InitialBackoff time.Duration `yaml:"initial_backoff" json:"initial_backoff"`

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration `yaml:"max_backoff" json:"max_backoff"`

	// CallTimeout bounds each individual capability call.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout"`

	// BreakerThreshold is the consecutive-failure count that opens a
	// target's circuit breaker.
	BreakerThreshold int `yaml:"breaker_threshold" json:"breaker_threshold"`

	// BreakerCooldown is the open-state duration before a probe.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown" json:"breaker_cooldown"`
}

// DefaultConfig returns the default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		InitialBackoff:   100 * time.Millisecond,
		MaxBackoff:       5 * time.Second,
		CallTimeout:      5 * time.Second,
		BreakerThreshold: DefaultBreakerThreshold,
		BreakerCooldown:  DefaultBreakerCooldown,
	}
}

// Validate checks the configuration for usable values.
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("call_timeout must be positive, got %s", c.CallTimeout)
	}
	if c.InitialBackoff < 0 || c.MaxBackoff < 0 {
		return fmt.Errorf("backoff durations must not be negative")
	}
	return nil
}

// Dispatcher executes policy actions against the wired capabilities.
// Safe for concurrent use.
type Dispatcher struct {
	caps     Capabilities
	config   Config
	locks    *keyedMutex
	breakers map[Target]*Breaker
	logger   *slog.Logger

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a dispatcher over the given capabilities.
func NewDispatcher(caps Capabilities, config Config) (*Dispatcher, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("dispatcher config: %w", err)
	}
	breakers := make(map[Target]*Breaker, 4)
	for _, target := range []Target{TargetSDN, TargetFL, TargetAlert, TargetScript} {
		breakers[target] = NewBreaker(config.BreakerThreshold, config.BreakerCooldown)
	}
	return &Dispatcher{
		caps:     caps,
		config:   config,
		locks:    newKeyedMutex(),
		breakers: breakers,
		logger:   slog.Default().With("component", "dispatcher"),
		sleep:    sleepCtx,
	}, nil
}

// Dispatch executes the policy's actions in declared order and returns
// the per-action outcomes. A failed action never short-circuits its
// siblings. With dryRun set no capability is invoked.
func (d *Dispatcher) Dispatch(ctx context.Context, p *policy.Policy, dryRun bool) *EvaluationResult {
	result := &EvaluationResult{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		DryRun:     dryRun,
		StartedAt:  time.Now().UTC(),
		Outcomes:   make([]ActionOutcome, 0, len(p.Actions)),
	}

	for _, action := range p.Actions {
		result.Outcomes = append(result.Outcomes, d.runAction(ctx, p, action, dryRun))
	}
	result.Duration = time.Since(result.StartedAt)
	return result
}

// DispatchActions executes an explicit action list on behalf of a
// policy, bypassing the policy's own action set. The rollback monitor
// uses this for compensating actions.
func (d *Dispatcher) DispatchActions(ctx context.Context, p *policy.Policy, actions []policy.Action) *EvaluationResult {
	result := &EvaluationResult{
		PolicyID:   p.ID,
		PolicyName: p.Name,
		StartedAt:  time.Now().UTC(),
		Outcomes:   make([]ActionOutcome, 0, len(actions)),
	}
	for _, action := range actions {
		result.Outcomes = append(result.Outcomes, d.runAction(ctx, p, action, false))
	}
	result.Duration = time.Since(result.StartedAt)
	return result
}

// runAction executes a single action with locking, breaker, retry and
// timeout handling.
func (d *Dispatcher) runAction(ctx context.Context, p *policy.Policy, action policy.Action, dryRun bool) ActionOutcome {
	target := targetFor(action.Type)
	outcome := ActionOutcome{Type: action.Type, Target: target}
	start := time.Now()
	defer func() { outcome.Duration = time.Since(start) }()

	if dryRun {
		outcome.Success = true
		return outcome
	}

	if target == TargetLog {
		d.logger.Info("policy log event",
			"policy_id", p.ID, "parameters", action.Parameters)
		outcome.Success = true
		outcome.Invoked = true
		outcome.Attempts = 1
		return outcome
	}

	unlock := d.locks.lock(d.resourceKey(target, action))
	defer unlock()

	breaker := d.breakers[target]
	if ok, retryAfter := breaker.Allow(); !ok {
		err := &ActionExecutionError{
			PolicyID: p.ID, ActionType: action.Type, Target: target,
			Cause: &BreakerOpenError{Target: target, RetryAfter: retryAfter},
		}
		d.logger.Warn("action rejected by circuit breaker",
			"policy_id", p.ID, "action", action.Type, "target", target,
			"retry_after", retryAfter)
		outcome.Error = err.Error()
		return outcome
	}

	attempts, err := d.callWithRetry(ctx, p, action)
	outcome.Invoked = attempts > 0
	outcome.Attempts = attempts
	breaker.Record(err == nil)

	if err != nil {
		execErr := &ActionExecutionError{
			PolicyID: p.ID, ActionType: action.Type, Target: target,
			Attempts: attempts, Cause: err,
		}
		d.logger.Error("action failed",
			"policy_id", p.ID, "action", action.Type, "target", target,
			"attempts", attempts, "error", err)
		outcome.Error = execErr.Error()
		return outcome
	}

	outcome.Success = true
	d.logger.Debug("action dispatched",
		"policy_id", p.ID, "action", action.Type, "target", target,
		"attempts", attempts)
	return outcome
}

// callWithRetry invokes the capability for the action until it
// succeeds or the attempt budget runs out. Returns the attempts made.
func (d *Dispatcher) callWithRetry(ctx context.Context, p *policy.Policy, action policy.Action) (int, error) {
	backoff := d.config.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := d.sleep(ctx, backoff); err != nil {
				return attempt - 1, lastErr
			}
			backoff *= 2
			if backoff > d.config.MaxBackoff {
				backoff = d.config.MaxBackoff
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.config.CallTimeout)
		err := d.invoke(callCtx, p, action)
		cancel()
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return attempt, lastErr
		}
		d.logger.Debug("action attempt failed",
			"policy_id", p.ID, "action", action.Type,
			"attempt", attempt, "error", err)
	}
	return d.config.MaxAttempts, lastErr
}

// invoke routes the action to its capability.
func (d *Dispatcher) invoke(ctx context.Context, p *policy.Policy, action policy.Action) error {
	params := Params(action.Parameters)

	switch action.Type {
	case policy.ActionSetQoSClass:
		if d.caps.SDN == nil {
			return &CapabilityMissingError{Target: TargetSDN}
		}
		return d.caps.SDN.SetQoSClass(ctx, params)
	case policy.ActionInstallFlowRule:
		if d.caps.SDN == nil {
			return &CapabilityMissingError{Target: TargetSDN}
		}
		return d.caps.SDN.InstallFlowRule(ctx, params)
	case policy.ActionAllocateBandwidth:
		if d.caps.SDN == nil {
			return &CapabilityMissingError{Target: TargetSDN}
		}
		return d.caps.SDN.AllocateBandwidth(ctx, params)
	case policy.ActionRestorePreviousState:
		if d.caps.SDN == nil {
			return &CapabilityMissingError{Target: TargetSDN}
		}
		return d.caps.SDN.RestoreState(ctx, p.ID, params)
	case policy.ActionAdjustTrainingParams:
		if d.caps.FL == nil {
			return &CapabilityMissingError{Target: TargetFL}
		}
		return d.caps.FL.AdjustTrainingParams(ctx, params)
	case policy.ActionSelectClients:
		if d.caps.FL == nil {
			return &CapabilityMissingError{Target: TargetFL}
		}
		return d.caps.FL.SelectClients(ctx, params)
	case policy.ActionTriggerAggregation:
		if d.caps.FL == nil {
			return &CapabilityMissingError{Target: TargetFL}
		}
		return d.caps.FL.TriggerAggregation(ctx, params)
	case policy.ActionSendAlert:
		if d.caps.Alerts == nil {
			return &CapabilityMissingError{Target: TargetAlert}
		}
		return d.caps.Alerts.Send(ctx, params)
	case policy.ActionExecuteScript:
		if d.caps.Scripts == nil {
			return &CapabilityMissingError{Target: TargetScript}
		}
		return d.caps.Scripts.Run(ctx, params)
	default:
		return fmt.Errorf("%w: %s", policy.ErrUnsupportedActionType, action.Type)
	}
}

// resourceKey derives the serialization key for an action. An explicit
// "resource" parameter pins the key; otherwise all actions on a target
// share one lock, which errs on the safe side for shared structures
// like the flow table.
func (d *Dispatcher) resourceKey(target Target, action policy.Action) string {
	if res, ok := action.Parameters["resource"].(string); ok && res != "" {
		return string(target) + "/" + res
	}
	return string(target)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
