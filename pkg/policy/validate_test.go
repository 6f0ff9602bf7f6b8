package policy

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validPolicy() *Policy {
	return &Policy{
		ID:       "pol-qos-fl",
		Name:     "Prioritize FL traffic",
		Category: "qos",
		Priority: 100,
		State:    StateDraft,
		Condition: &Condition{
			Field:    "traffic_type",
			Operator: OpEquals,
			Value:    "fl_communication",
		},
		Actions: []Action{
			{Type: ActionSetQoSClass, Parameters: map[string]interface{}{"qos_class": "expedited"}},
		},
		Schedule: Schedule{Type: ScheduleAlways},
	}
}

func TestValidate_ValidPolicy(t *testing.T) {
	if err := validPolicy().Validate(); err != nil {
		t.Fatalf("valid policy rejected: %v", err)
	}
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantMsg string
	}{
		{
			name:    "missing name",
			mutate:  func(p *Policy) { p.Name = "" },
			wantMsg: "name is required",
		},
		{
			name:    "no actions",
			mutate:  func(p *Policy) { p.Actions = nil },
			wantMsg: "at least one action",
		},
		{
			name: "unknown operator",
			mutate: func(p *Policy) {
				p.Condition = &Condition{Field: "x", Operator: Operator("fuzzy"), Value: 1}
			},
			wantMsg: "unsupported operator",
		},
		{
			name: "unknown action type",
			mutate: func(p *Policy) {
				p.Actions = []Action{{Type: ActionType("teleport")}}
			},
			wantMsg: "unsupported action type",
		},
		{
			name: "composite without subconditions",
			mutate: func(p *Policy) {
				p.Condition = &Condition{Logic: LogicAnd}
			},
			wantMsg: "at least one subcondition",
		},
		{
			name: "mixed leaf and composite",
			mutate: func(p *Policy) {
				p.Condition = &Condition{
					Logic:         LogicOr,
					Field:         "traffic_type",
					Operator:      OpEquals,
					Value:         "x",
					Subconditions: []*Condition{{Field: "a", Operator: OpExists}},
				}
			},
			wantMsg: "must not set field",
		},
		{
			name: "bad regex",
			mutate: func(p *Policy) {
				p.Condition = &Condition{Field: "node_id", Operator: OpMatches, Value: "["}
			},
			wantMsg: "invalid regex",
		},
		{
			name: "between needs two bounds",
			mutate: func(p *Policy) {
				p.Condition = &Condition{Field: "util", Operator: OpBetween, Value: []interface{}{0.5}}
			},
			wantMsg: "[low, high]",
		},
		{
			name: "bad cron expression",
			mutate: func(p *Policy) {
				p.Schedule = Schedule{Type: ScheduleCron, Cron: &CronSchedule{Expression: "not cron"}}
			},
			wantMsg: "invalid cron expression",
		},
		{
			name: "bad timezone",
			mutate: func(p *Policy) {
				p.Schedule = Schedule{Type: ScheduleCron, Cron: &CronSchedule{
					Expression: "0 9 * * MON-FRI",
					Timezone:   "Mars/Olympus",
				}}
			},
			wantMsg: "invalid timezone",
		},
		{
			name: "event schedule without triggers",
			mutate: func(p *Policy) {
				p.Schedule = Schedule{Type: ScheduleEvent, Event: &EventSchedule{}}
			},
			wantMsg: "at least one trigger event",
		},
		{
			name: "self-referencing requires",
			mutate: func(p *Policy) {
				p.Requires = []string{"pol-qos-fl"}
			},
			wantMsg: "must not reference the policy itself",
		},
		{
			name: "rollback threshold out of range",
			mutate: func(p *Policy) {
				p.Rollback = &RollbackSpec{Window: time.Minute, Threshold: 1.5}
			},
			wantMsg: "threshold must be in (0, 1]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPolicy()
			tt.mutate(p)
			err := p.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestValidate_DepthBound(t *testing.T) {
	// Build a chain deeper than MaxConditionDepth.
	root := &Condition{Field: "x", Operator: OpExists}
	for i := 0; i <= MaxConditionDepth; i++ {
		root = &Condition{Logic: LogicAnd, Subconditions: []*Condition{root}}
	}
	p := validPolicy()
	p.Condition = root

	err := p.Validate()
	if err == nil || !strings.Contains(err.Error(), "max depth") {
		t.Fatalf("expected depth bound rejection, got %v", err)
	}
}

func TestState_Transitions(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDraft, StateActive, true},
		{StateDraft, StateArchived, true},
		{StateDraft, StateSuspended, false},
		{StateActive, StateSuspended, true},
		{StateActive, StateArchived, true},
		{StateActive, StateDraft, false},
		{StateSuspended, StateActive, true},
		{StateSuspended, StateArchived, true},
		{StateArchived, StateActive, false},
		{StateArchived, StateDraft, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.want {
			t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestPolicy_CloneIsDeep(t *testing.T) {
	p := validPolicy()
	p.Requires = []string{"pol-a"}
	p.Rollback = &RollbackSpec{Window: time.Minute, Threshold: 0.8}

	clone := p.Clone()
	clone.Condition.Value = "mutated"
	clone.Actions[0].Parameters["qos_class"] = "mutated"
	clone.Requires[0] = "mutated"
	clone.Rollback.Threshold = 0.1

	if p.Condition.Value != "fl_communication" {
		t.Error("clone shares condition nodes with original")
	}
	if p.Actions[0].Parameters["qos_class"] != "expedited" {
		t.Error("clone shares action parameters with original")
	}
	if p.Requires[0] != "pol-a" {
		t.Error("clone shares requires slice with original")
	}
	if p.Rollback.Threshold != 0.8 {
		t.Error("clone shares rollback spec with original")
	}
}

func TestRollbackSpec_CompensatingActionsDefault(t *testing.T) {
	spec := &RollbackSpec{Window: time.Minute, Threshold: 0.8}
	actions := spec.CompensatingActions("pol-x")
	if len(actions) != 1 || actions[0].Type != ActionRestorePreviousState {
		t.Fatalf("expected implicit restore_previous_state, got %+v", actions)
	}
	if actions[0].Parameters["policy_id"] != "pol-x" {
		t.Error("implicit compensating action should carry the policy id")
	}
}
