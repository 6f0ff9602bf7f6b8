package policy

import (
	"time"
)

// State represents the lifecycle state of a policy.
//
// The state machine is:
//
//	Draft -> Active <-> Suspended -> Archived
//
// Archived is terminal. Only Active policies are considered by the
// decision pipeline; Archived policies are retained for audit but never
// evaluated again.
type State string

const (
	// StateDraft is the initial state of a newly created policy.
	StateDraft State = "draft"

	// StateActive marks a validated, enabled policy eligible for evaluation.
	StateActive State = "active"

	// StateSuspended marks a temporarily disabled policy.
	StateSuspended State = "suspended"

	// StateArchived marks a soft-deleted policy (terminal).
	StateArchived State = "archived"
)

// CanTransition reports whether a transition from s to target is allowed
// by the lifecycle state machine.
func (s State) CanTransition(target State) bool {
	switch s {
	case StateDraft:
		return target == StateActive || target == StateArchived
	case StateActive:
		return target == StateSuspended || target == StateArchived
	case StateSuspended:
		return target == StateActive || target == StateArchived
	default:
		return false
	}
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateDraft, StateActive, StateSuspended, StateArchived:
		return true
	}
	return false
}

// LogicOp is the boolean connective of a composite condition node.
type LogicOp string

const (
	// LogicAnd requires all subconditions to match (short-circuits on false).
	LogicAnd LogicOp = "and"

	// LogicOr requires at least one subcondition to match (short-circuits on true).
	LogicOr LogicOp = "or"
)

// Operator identifies a leaf comparison operator.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "gt"
	OpLessThan    Operator = "lt"
	OpGreaterEq   Operator = "gte"
	OpLessEq      Operator = "lte"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpMatches     Operator = "matches"
	OpBetween     Operator = "between"
	OpExists      Operator = "exists"
)

// Operators returns the closed set of supported leaf operators.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals,
		OpGreaterThan, OpLessThan, OpGreaterEq, OpLessEq,
		OpIn, OpNotIn,
		OpContains, OpNotContains,
		OpMatches, OpBetween, OpExists,
	}
}

// Valid reports whether op is a supported operator.
func (op Operator) Valid() bool {
	for _, known := range Operators() {
		if op == known {
			return true
		}
	}
	return false
}

// Condition is a node in a policy's condition tree.
//
// A node is either a leaf (Field/Operator/Value set, Logic empty) or a
// composite (Logic set with at least one subcondition). The two forms are
// mutually exclusive; Validate rejects mixed nodes. The tree is finite
// and acyclic by construction - nodes are embedded values deserialized
// from JSON/YAML, never back-references - and Validate additionally
// bounds depth and node count.
type Condition struct {
	// Logic is the boolean connective for composite nodes ("and"/"or").
	// Empty for leaf nodes.
	Logic LogicOp `json:"logic,omitempty" yaml:"logic,omitempty"`

	// Subconditions are the ordered children of a composite node.
	Subconditions []*Condition `json:"subconditions,omitempty" yaml:"subconditions,omitempty"`

	// Field is the context key a leaf node compares against.
	Field string `json:"field,omitempty" yaml:"field,omitempty"`

	// Operator is the leaf comparison operator.
	Operator Operator `json:"operator,omitempty" yaml:"operator,omitempty"`

	// Value is the expected value for the leaf comparison. Its shape
	// depends on the operator: a scalar for equals/gt/..., a list for
	// in/not_in, a two-element [low, high] list for between, a regex
	// pattern string for matches. Unused by exists.
	Value interface{} `json:"value,omitempty" yaml:"value,omitempty"`
}

// IsLeaf reports whether the node is a leaf comparison.
func (c *Condition) IsLeaf() bool {
	return c.Logic == ""
}

// Walk visits the node and all descendants in depth-first order.
// Traversal stops at the first error.
func (c *Condition) Walk(fn func(*Condition) error) error {
	if c == nil {
		return nil
	}
	if err := fn(c); err != nil {
		return err
	}
	for _, sub := range c.Subconditions {
		if err := sub.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// ActionType identifies an enforcement action. Each type maps to exactly
// one external capability call.
type ActionType string

const (
	// ActionSetQoSClass assigns a QoS class to a traffic selector (SDN).
	ActionSetQoSClass ActionType = "set_qos_class"

	// ActionInstallFlowRule installs an OpenFlow-style flow rule (SDN).
	ActionInstallFlowRule ActionType = "install_flow_rule"

	// ActionAllocateBandwidth reserves bandwidth for a traffic class (SDN).
	ActionAllocateBandwidth ActionType = "allocate_bandwidth"

	// ActionAdjustTrainingParams tunes FL hyperparameters mid-experiment.
	ActionAdjustTrainingParams ActionType = "adjust_training_params"

	// ActionSelectClients overrides FL client selection for coming rounds.
	ActionSelectClients ActionType = "select_clients"

	// ActionTriggerAggregation forces an FL aggregation round.
	ActionTriggerAggregation ActionType = "trigger_aggregation"

	// ActionSendAlert delivers a notification to configured channels.
	ActionSendAlert ActionType = "send_alert"

	// ActionExecuteScript runs a pre-registered operator script.
	ActionExecuteScript ActionType = "execute_script"

	// ActionLogEvent records a custom audit event with no external effect.
	ActionLogEvent ActionType = "log_event"

	// ActionRestorePreviousState replays the compensating state snapshot.
	// Used both as a regular action and as the default rollback action.
	ActionRestorePreviousState ActionType = "restore_previous_state"
)

// ActionTypes returns the closed set of supported action types.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionSetQoSClass, ActionInstallFlowRule, ActionAllocateBandwidth,
		ActionAdjustTrainingParams, ActionSelectClients, ActionTriggerAggregation,
		ActionSendAlert, ActionExecuteScript, ActionLogEvent,
		ActionRestorePreviousState,
	}
}

// Valid reports whether t is a supported action type.
func (t ActionType) Valid() bool {
	for _, known := range ActionTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// Action is a single typed enforcement operation with its parameters.
type Action struct {
	// Type selects the external capability to invoke.
	Type ActionType `json:"type" yaml:"type"`

	// Parameters carries the capability-specific arguments
	// (e.g. {"qos_class": "expedited", "traffic_type": "fl_communication"}).
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// ScheduleType tags the schedule variant of a policy.
type ScheduleType string

const (
	// ScheduleAlways makes a policy eligible on every decision request.
	ScheduleAlways ScheduleType = "always"

	// ScheduleCron restricts eligibility to cron fire windows.
	ScheduleCron ScheduleType = "cron"

	// ScheduleEvent restricts eligibility to named trigger events.
	ScheduleEvent ScheduleType = "event"
)

// Schedule determines when a policy is temporally eligible, independent
// of its condition tree. It is a tagged variant: exactly one of the
// variant fields matching Type is populated.
type Schedule struct {
	// Type selects the schedule variant.
	Type ScheduleType `json:"type" yaml:"type"`

	// Cron holds the cron variant parameters (Type == ScheduleCron).
	Cron *CronSchedule `json:"cron,omitempty" yaml:"cron,omitempty"`

	// Event holds the event variant parameters (Type == ScheduleEvent).
	Event *EventSchedule `json:"event,omitempty" yaml:"event,omitempty"`
}

// CronSchedule restricts policy eligibility to cron fire windows.
type CronSchedule struct {
	// Expression is a standard 5-field cron expression (e.g. "0 9 * * MON-FRI").
	Expression string `json:"expression" yaml:"expression"`

	// Timezone is an IANA timezone name the expression is interpreted in.
	// Defaults to UTC when empty.
	Timezone string `json:"timezone,omitempty" yaml:"timezone,omitempty"`

	// EndDate, when set, disables the schedule after the given instant.
	EndDate *time.Time `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

// EventSchedule restricts policy eligibility to named context events.
type EventSchedule struct {
	// TriggerEvents lists the event types that make the policy eligible.
	TriggerEvents []string `json:"trigger_events" yaml:"trigger_events"`

	// Delay defers eligibility until the trigger event is at least this old.
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`

	// MaxExecutions caps lifetime executions (0 = unlimited). The
	// execution counter persists across process restarts.
	MaxExecutions int `json:"max_executions,omitempty" yaml:"max_executions,omitempty"`
}

// RollbackSpec configures automatic compensation for a policy. The
// rollback monitor computes the policy's action success rate over Window
// and, when it drops strictly below Threshold, dispatches Actions.
type RollbackSpec struct {
	// Window is the recent time window the success rate is computed over.
	Window time.Duration `json:"window" yaml:"window"`

	// Threshold is the success-rate floor in (0, 1]. Rollback fires when
	// the observed rate is strictly below this value.
	Threshold float64 `json:"threshold" yaml:"threshold"`

	// Actions are the compensating actions to dispatch. When empty, a
	// single restore_previous_state action is implied.
	Actions []Action `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// CompensatingActions returns the configured compensating actions, or the
// implicit restore_previous_state action when none are configured.
func (r *RollbackSpec) CompensatingActions(policyID string) []Action {
	if len(r.Actions) > 0 {
		return r.Actions
	}
	return []Action{{
		Type:       ActionRestorePreviousState,
		Parameters: map[string]interface{}{"policy_id": policyID},
	}}
}

// Policy is a named, versioned governance rule.
type Policy struct {
	// ID uniquely identifies the policy.
	ID string `json:"id" yaml:"id"`

	// Name is the human-readable policy name.
	Name string `json:"name" yaml:"name"`

	// Category groups related policies (e.g. "qos", "fl_training").
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Priority orders execution and resolves conflicts; higher fires first.
	Priority int `json:"priority" yaml:"priority"`

	// Version is incremented on every update (optimistic concurrency).
	Version int `json:"version" yaml:"version"`

	// State is the lifecycle state; only Active policies are evaluated.
	State State `json:"state" yaml:"state"`

	// Enabled mirrors the Active/Suspended toggle for API convenience.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Condition is the root of the condition tree. A nil condition
	// always matches.
	Condition *Condition `json:"condition,omitempty" yaml:"condition,omitempty"`

	// Actions is the ordered action list dispatched on match.
	Actions []Action `json:"actions" yaml:"actions"`

	// Schedule controls temporal/event eligibility.
	Schedule Schedule `json:"schedule" yaml:"schedule"`

	// Requires lists policy ids that must execute before this one in the
	// same decision pass.
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`

	// Conflicts lists policy ids that must not execute alongside this one.
	Conflicts []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`

	// Rollback configures automatic compensation (optional).
	Rollback *RollbackSpec `json:"rollback,omitempty" yaml:"rollback,omitempty"`

	// CreatedAt is the creation timestamp.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is the last modification timestamp.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the policy. Stores hand out clones so
// callers can never mutate the registry's single source of truth.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Condition = p.Condition.clone()
	clone.Actions = cloneActions(p.Actions)
	clone.Requires = append([]string(nil), p.Requires...)
	clone.Conflicts = append([]string(nil), p.Conflicts...)
	if p.Schedule.Cron != nil {
		cron := *p.Schedule.Cron
		if p.Schedule.Cron.EndDate != nil {
			end := *p.Schedule.Cron.EndDate
			cron.EndDate = &end
		}
		clone.Schedule.Cron = &cron
	}
	if p.Schedule.Event != nil {
		event := *p.Schedule.Event
		event.TriggerEvents = append([]string(nil), p.Schedule.Event.TriggerEvents...)
		clone.Schedule.Event = &event
	}
	if p.Rollback != nil {
		rb := *p.Rollback
		rb.Actions = cloneActions(p.Rollback.Actions)
		clone.Rollback = &rb
	}
	return &clone
}

func (c *Condition) clone() *Condition {
	if c == nil {
		return nil
	}
	clone := *c
	if len(c.Subconditions) > 0 {
		clone.Subconditions = make([]*Condition, len(c.Subconditions))
		for i, sub := range c.Subconditions {
			clone.Subconditions[i] = sub.clone()
		}
	}
	return &clone
}

func cloneActions(actions []Action) []Action {
	if actions == nil {
		return nil
	}
	out := make([]Action, len(actions))
	for i, a := range actions {
		out[i] = Action{Type: a.Type}
		if a.Parameters != nil {
			out[i].Parameters = make(map[string]interface{}, len(a.Parameters))
			for k, v := range a.Parameters {
				out[i].Parameters[k] = v
			}
		}
	}
	return out
}
