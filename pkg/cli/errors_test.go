package cli

import (
	"errors"
	"testing"
)

func TestConfigError_Message(t *testing.T) {
	err := NewConfigError("server.listen_address", "must be host:port")
	want := "configuration server.listen_address: must be host:port"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConfigError_NoField(t *testing.T) {
	err := NewConfigError("", "reading config.yaml: no such file")
	want := "configuration: reading config.yaml: no such file"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestCommandError_NamesCommand(t *testing.T) {
	cause := errors.New("listen tcp :8080: address already in use")
	err := NewCommandError("run", cause)

	want := "triton run: listen tcp :8080: address already in use"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Error("CommandError should unwrap to its cause")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"config error", NewConfigError("storage.backend", "unsupported"), ExitConfig},
		{"wrapped config error", NewCommandError("run", NewConfigError("", "bad")), ExitConfig},
		{"command error", NewCommandError("lint", errors.New("2 invalid files")), ExitFailure},
		{"plain error", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
