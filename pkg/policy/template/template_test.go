package template

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fedgrid-hq/triton/pkg/policy"
)

const qosTemplate = `
name: qos-boost
description: Boost a traffic class for a tenant.
parameters:
  - name: traffic_type
    required: true
  - name: qos_class
    default: expedited
policy:
  name: "Boost {{traffic_type}}"
  category: qos
  priority: 100
  condition:
    field: traffic_type
    operator: equals
    value: "{{traffic_type}}"
  actions:
    - type: set_qos_class
      parameters:
        qos_class: "{{qos_class}}"
  schedule:
    type: always
`

func TestTemplate_Instantiate(t *testing.T) {
	tmpl, err := Parse([]byte(qosTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	p, err := tmpl.Instantiate(map[string]interface{}{"traffic_type": "fl_communication"})
	if err != nil {
		t.Fatalf("Instantiate: %v", err)
	}

	if p.Name != "Boost fl_communication" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.Condition.Value != "fl_communication" {
		t.Errorf("condition value = %v", p.Condition.Value)
	}
	// Default applies when the caller omits the parameter.
	if got := p.Actions[0].Parameters["qos_class"]; got != "expedited" {
		t.Errorf("qos_class = %v, want expedited", got)
	}
}

func TestTemplate_ParameterErrors(t *testing.T) {
	tmpl, err := Parse([]byte(qosTemplate))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	tests := []struct {
		name   string
		params map[string]interface{}
		check  func(*testing.T, *ParameterError)
	}{
		{
			name:   "missing required",
			params: map[string]interface{}{},
			check: func(t *testing.T, perr *ParameterError) {
				if len(perr.Missing) != 1 || perr.Missing[0] != "traffic_type" {
					t.Errorf("Missing = %v", perr.Missing)
				}
			},
		},
		{
			name: "unknown parameter",
			params: map[string]interface{}{
				"traffic_type": "fl_communication",
				"bogus":        1,
			},
			check: func(t *testing.T, perr *ParameterError) {
				if len(perr.Unknown) != 1 || perr.Unknown[0] != "bogus" {
					t.Errorf("Unknown = %v", perr.Unknown)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tmpl.Instantiate(tt.params)
			var perr *ParameterError
			if !errors.As(err, &perr) {
				t.Fatalf("err = %v, want ParameterError", err)
			}
			tt.check(t, perr)
		})
	}
}

func TestTemplate_UnresolvedPlaceholder(t *testing.T) {
	src := `
name: broken
policy:
  name: "Uses {{undeclared}}"
  actions:
    - type: log_event
  schedule:
    type: always
`
	tmpl, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = tmpl.Instantiate(nil)
	var perr *ParameterError
	if !errors.As(err, &perr) {
		t.Fatalf("err = %v, want ParameterError", err)
	}
	if len(perr.Unresolved) != 1 || perr.Unresolved[0] != "undeclared" {
		t.Errorf("Unresolved = %v", perr.Unresolved)
	}
}

func TestTemplate_InvalidRenderedPolicy(t *testing.T) {
	src := `
name: no-actions
policy:
  name: "Empty"
  actions: []
  schedule:
    type: always
`
	tmpl, err := Parse([]byte(src))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = tmpl.Instantiate(nil)
	var verr *policy.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError from policy validation", err)
	}
}

func writeTemplate(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644); err != nil {
		t.Fatalf("writing template: %v", err)
	}
}

func TestRegistry_LoadAndGet(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "qos.yaml", qosTemplate)
	writeTemplate(t, dir, "notes.txt", "not a template")

	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (non-yaml files ignored)", reg.Len())
	}
	if _, err := reg.Get("qos-boost"); err != nil {
		t.Errorf("Get: %v", err)
	}
	_, err = reg.Get("nope")
	var nfe *NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("err = %v, want NotFoundError", err)
	}
}

func TestRegistry_ReloadKeepsOldSetOnError(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "qos.yaml", qosTemplate)

	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	writeTemplate(t, dir, "broken.yaml", "{not yaml")
	if err := reg.Reload(); err == nil {
		t.Fatal("Reload should fail on a broken template")
	}
	// The previous set is still served.
	if _, err := reg.Get("qos-boost"); err != nil {
		t.Errorf("previous template lost after failed reload: %v", err)
	}
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeTemplate(t, dir, "qos.yaml", qosTemplate)

	reg, err := NewRegistry(dir)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	w, err := NewWatcher(reg, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Watch(ctx) }()

	// Give the watcher a beat to register the directory.
	time.Sleep(50 * time.Millisecond)

	second := `
name: alerting
policy:
  name: "Notify on loss"
  actions:
    - type: send_alert
  schedule:
    type: always
`
	writeTemplate(t, dir, "alerting.yaml", second)

	deadline := time.After(2 * time.Second)
	for reg.Len() != 2 {
		select {
		case <-deadline:
			t.Fatalf("watcher did not pick up new template, Len = %d", reg.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
}
