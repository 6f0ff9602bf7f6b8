package engine

import (
	"context"
	"sync"
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

// ScenarioStep is one point on a simulated timeline.
type ScenarioStep struct {
	// At is the simulated clock for the step. Steps without a
	// timestamp reuse the scenario start time.
	At time.Time `json:"at,omitempty"`

	// Context is the context snapshot for the step.
	Context map[string]interface{} `json:"context"`

	// EventType optionally injects a triggering event.
	EventType string `json:"event_type,omitempty"`
}

// Scenario is a synthetic timeline to replay in dry-run.
type Scenario struct {
	// Name labels the scenario in results.
	Name string `json:"name,omitempty"`

	// Steps is the timeline, in order.
	Steps []ScenarioStep `json:"steps"`
}

// StepResult pairs a step with its dry-run decision.
type StepResult struct {
	// Step is the index into the scenario timeline.
	Step int `json:"step"`

	// At is the simulated clock used for the step.
	At time.Time `json:"at"`

	// Decision is the dry-run pass outcome.
	Decision *DecisionResult `json:"decision"`
}

// SimulationResult aggregates a scenario replay.
type SimulationResult struct {
	// Scenario echoes the scenario name.
	Scenario string `json:"scenario,omitempty"`

	// Steps holds the per-step decisions, in timeline order.
	Steps []StepResult `json:"steps"`

	// Dispatches counts policy dispatches across all steps.
	Dispatches int `json:"dispatches"`

	// Rejections counts resolver rejections across all steps.
	Rejections int `json:"rejections"`

	// FiredByPolicy counts how often each policy would have fired.
	FiredByPolicy map[string]int `json:"fired_by_policy"`

	// ActionsByType counts the actions that would have been dispatched.
	ActionsByType map[policy.ActionType]int `json:"actions_by_type"`
}

// Simulate replays the scenario entirely in dry-run. Steps are
// independent snapshots, so they are processed concurrently up to the
// engine's parallelism bound; results keep timeline order.
func (e *Engine) Simulate(ctx context.Context, scenario Scenario) (*SimulationResult, error) {
	result := &SimulationResult{
		Scenario:      scenario.Name,
		Steps:         make([]StepResult, len(scenario.Steps)),
		FiredByPolicy: make(map[string]int),
		ActionsByType: make(map[policy.ActionType]int),
	}
	start := e.now().UTC()

	sem := make(chan struct{}, e.evalParallelism)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i, step := range scenario.Steps {
		at := step.At
		if at.IsZero() {
			at = start
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, step ScenarioStep, at time.Time) {
			defer wg.Done()
			defer func() { <-sem }()

			decision, err := e.decide(ctx, DecisionRequest{
				Context:   step.Context,
				EventType: step.EventType,
				DryRun:    true,
			}, at.UTC())
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			result.Steps[i] = StepResult{Step: i, At: at.UTC(), Decision: decision}
		}(i, step, at)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}

	for _, step := range result.Steps {
		if step.Decision == nil {
			continue
		}
		result.Rejections += len(step.Decision.Rejections)
		for _, r := range step.Decision.Results {
			result.Dispatches++
			result.FiredByPolicy[r.PolicyID]++
			for _, o := range r.Outcomes {
				result.ActionsByType[o.Type]++
			}
		}
	}
	return result, nil
}
