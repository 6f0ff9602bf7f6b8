package policy

import (
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
)

// Structural bounds for condition trees. Trees are deserialized values and
// therefore acyclic; these limits additionally keep them finite in the
// resource sense (a hostile registration cannot stall the evaluator).
const (
	// MaxConditionDepth is the maximum nesting depth of a condition tree.
	MaxConditionDepth = 16

	// MaxConditionNodes is the maximum total node count of a condition tree.
	MaxConditionNodes = 256
)

// Validate checks the policy for structural correctness: condition tree
// shape, operator and action-type membership, schedule well-formedness,
// and rollback sanity. It returns a *ValidationError listing every
// problem found, or nil when the policy is valid.
//
// Referential checks (requires/conflicts ids existing, dependency cycles
// across policies) belong to the store, which sees the full registry.
func (p *Policy) Validate() error {
	verr := &ValidationError{PolicyID: p.ID}

	if p.Name == "" {
		verr.Add("name is required")
	}
	if len(p.Actions) == 0 {
		verr.Add("at least one action is required")
	}

	validateCondition(p.Condition, verr)
	validateActions(p.Actions, verr)
	validateSchedule(&p.Schedule, verr)

	for _, id := range p.Requires {
		if id == p.ID {
			verr.Add("requires must not reference the policy itself")
		}
	}
	for _, id := range p.Conflicts {
		if id == p.ID {
			verr.Add("conflicts must not reference the policy itself")
		}
	}

	if p.Rollback != nil {
		if p.Rollback.Window <= 0 {
			verr.Add("rollback window must be positive")
		}
		if p.Rollback.Threshold <= 0 || p.Rollback.Threshold > 1 {
			verr.Add("rollback threshold must be in (0, 1], got %v", p.Rollback.Threshold)
		}
		validateActions(p.Rollback.Actions, verr)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// validateCondition checks a condition tree: node shape, operator
// membership, operand shape per operator, and depth/size bounds.
func validateCondition(root *Condition, verr *ValidationError) {
	if root == nil {
		return
	}

	nodes := 0
	var walk func(c *Condition, depth int)
	walk = func(c *Condition, depth int) {
		nodes++
		if nodes > MaxConditionNodes {
			return
		}
		if depth > MaxConditionDepth {
			verr.Add("condition tree exceeds max depth %d", MaxConditionDepth)
			return
		}

		if c.IsLeaf() {
			validateLeaf(c, verr)
			if len(c.Subconditions) > 0 {
				verr.Add("leaf condition on field %q must not have subconditions", c.Field)
			}
			return
		}

		if c.Logic != LogicAnd && c.Logic != LogicOr {
			verr.Add("unknown logic operator %q", c.Logic)
		}
		if c.Field != "" || c.Operator != "" {
			verr.Add("composite condition must not set field/operator")
		}
		if len(c.Subconditions) == 0 {
			verr.Add("composite %q condition requires at least one subcondition", c.Logic)
		}
		for _, sub := range c.Subconditions {
			walk(sub, depth+1)
		}
	}
	walk(root, 1)

	if nodes > MaxConditionNodes {
		verr.Add("condition tree exceeds max node count %d", MaxConditionNodes)
	}
}

func validateLeaf(c *Condition, verr *ValidationError) {
	if c.Field == "" {
		verr.Add("leaf condition requires a field")
	}
	if !c.Operator.Valid() {
		verr.Add("unsupported operator %q on field %q", c.Operator, c.Field)
		return
	}

	switch c.Operator {
	case OpExists:
		// Value unused.

	case OpMatches:
		pattern, ok := c.Value.(string)
		if !ok {
			verr.Add("matches operator on field %q requires a string pattern", c.Field)
			return
		}
		if _, err := regexp.Compile(pattern); err != nil {
			verr.Add("invalid regex on field %q: %v", c.Field, err)
		}

	case OpBetween:
		bounds, ok := toSlice(c.Value)
		if !ok || len(bounds) != 2 {
			verr.Add("between operator on field %q requires a [low, high] pair", c.Field)
		}

	case OpIn, OpNotIn:
		if _, ok := toSlice(c.Value); !ok {
			verr.Add("%s operator on field %q requires a list value", c.Operator, c.Field)
		}

	default:
		if c.Value == nil {
			verr.Add("operator %s on field %q requires a value", c.Operator, c.Field)
		}
	}
}

func validateActions(actions []Action, verr *ValidationError) {
	for i, action := range actions {
		if !action.Type.Valid() {
			verr.Add("action %d: unsupported action type %q", i, action.Type)
		}
	}
}

func validateSchedule(s *Schedule, verr *ValidationError) {
	switch s.Type {
	case ScheduleAlways, "":
		// Empty defaults to always; nothing further to check.

	case ScheduleCron:
		if s.Cron == nil {
			verr.Add("cron schedule requires cron parameters")
			return
		}
		if _, err := cron.ParseStandard(s.Cron.Expression); err != nil {
			verr.Add("invalid cron expression %q: %v", s.Cron.Expression, err)
		}
		if s.Cron.Timezone != "" {
			if _, err := time.LoadLocation(s.Cron.Timezone); err != nil {
				verr.Add("invalid timezone %q: %v", s.Cron.Timezone, err)
			}
		}

	case ScheduleEvent:
		if s.Event == nil {
			verr.Add("event schedule requires event parameters")
			return
		}
		if len(s.Event.TriggerEvents) == 0 {
			verr.Add("event schedule requires at least one trigger event")
		}
		if s.Event.Delay < 0 {
			verr.Add("event schedule delay must not be negative")
		}
		if s.Event.MaxExecutions < 0 {
			verr.Add("event schedule max_executions must not be negative")
		}

	default:
		verr.Add("unknown schedule type %q", s.Type)
	}
}

// toSlice normalizes list-shaped values ([]interface{} from JSON, typed
// slices from Go callers) into []interface{}.
func toSlice(v interface{}) ([]interface{}, bool) {
	switch val := v.(type) {
	case []interface{}:
		return val, true
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out, true
	case []float64:
		out := make([]interface{}, len(val))
		for i, f := range val {
			out[i] = f
		}
		return out, true
	case []int:
		out := make([]interface{}, len(val))
		for i, n := range val {
			out[i] = n
		}
		return out, true
	default:
		return nil, false
	}
}
