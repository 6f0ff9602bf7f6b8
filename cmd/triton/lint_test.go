package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writePolicyFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

const validPolicyYAML = `
id: pol_qos
name: expedite fl traffic
condition:
  field: traffic_type
  operator: equals
  value: fl_communication
actions:
  - type: set_qos_class
    parameters:
      qos_class: expedited
schedule:
  type: always
`

func TestLintFile_Valid(t *testing.T) {
	path := writePolicyFile(t, t.TempDir(), "qos.yaml", validPolicyYAML)

	result := lintFile(path)
	if !result.Valid {
		t.Errorf("expected valid, got errors %v", result.Errors)
	}
}

func TestLintFile_MissingActions(t *testing.T) {
	path := writePolicyFile(t, t.TempDir(), "broken.yaml", `
id: pol_broken
name: no actions
schedule:
  type: always
`)

	result := lintFile(path)
	if result.Valid {
		t.Fatal("expected invalid")
	}
	if len(result.Errors) == 0 {
		t.Error("expected validation errors")
	}
}

func TestLintFile_MalformedYAML(t *testing.T) {
	path := writePolicyFile(t, t.TempDir(), "bad.yaml", "actions: [unclosed")

	result := lintFile(path)
	if result.Valid {
		t.Fatal("expected invalid")
	}
}

func TestLintFile_Missing(t *testing.T) {
	result := lintFile(filepath.Join(t.TempDir(), "absent.yaml"))
	if result.Valid {
		t.Fatal("expected invalid for missing file")
	}
}
