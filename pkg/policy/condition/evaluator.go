package condition

import (
	"log/slog"

	"fedgrid-hq/triton/pkg/policy"
)

// Evaluator evaluates condition trees against decision contexts.
//
// Evaluation is side-effect-free and deterministic: for a given
// (condition, context) pair the result is identical across repeated
// calls. It is safe to evaluate many policies concurrently with a single
// Evaluator.
type Evaluator struct {
	registry *Registry
	logger   *slog.Logger
}

// NewEvaluator creates an evaluator backed by the given operator
// registry. A nil registry gets a fresh one with the built-in operators;
// a nil logger falls back to slog.Default.
func NewEvaluator(registry *Registry, logger *slog.Logger) *Evaluator {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	if logger == nil {
		logger = slog.Default().With("component", "condition.evaluator")
	}
	return &Evaluator{registry: registry, logger: logger}
}

// Evaluate returns whether the condition tree matches the context.
//
// A nil condition always matches. Leaf failures (unknown operator,
// failed coercion, missing field for non-exists operators) degrade that
// leaf to false with a warning log; they never abort the decision.
func (e *Evaluator) Evaluate(cond *policy.Condition, ctx Context) bool {
	if cond == nil {
		return true
	}
	if cond.IsLeaf() {
		return e.evaluateLeaf(cond, ctx)
	}
	return e.evaluateComposite(cond, ctx)
}

func (e *Evaluator) evaluateComposite(cond *policy.Condition, ctx Context) bool {
	switch cond.Logic {
	case policy.LogicAnd:
		for _, sub := range cond.Subconditions {
			if !e.Evaluate(sub, ctx) {
				return false
			}
		}
		return true

	case policy.LogicOr:
		for _, sub := range cond.Subconditions {
			if e.Evaluate(sub, ctx) {
				return true
			}
		}
		return false

	default:
		// Unreachable for validated policies.
		e.logger.Warn("unknown logic operator, treating node as no match",
			"logic", cond.Logic,
		)
		return false
	}
}

func (e *Evaluator) evaluateLeaf(cond *policy.Condition, ctx Context) bool {
	actual, found := ctx.Lookup(cond.Field)

	// exists only checks presence; every other operator needs the value.
	if cond.Operator == policy.OpExists {
		return found
	}
	if !found {
		e.logger.Debug("field not present in context, leaf degrades to false",
			"field", cond.Field,
			"operator", cond.Operator,
		)
		return false
	}

	op, err := e.registry.Lookup(cond.Operator)
	if err != nil {
		e.logger.Warn("operator lookup failed, leaf degrades to false",
			"field", cond.Field,
			"operator", cond.Operator,
			"error", err,
		)
		return false
	}

	matched, err := op.Apply(actual, cond.Value)
	if err != nil {
		e.logger.Warn("leaf evaluation failed, degrading to false",
			"field", cond.Field,
			"operator", cond.Operator,
			"error", err,
		)
		return false
	}
	return matched
}
