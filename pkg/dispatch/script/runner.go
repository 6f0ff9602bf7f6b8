// Package script executes operator-registered scripts as policy
// actions.
package script

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"

	"fedgrid-hq/triton/pkg/dispatch"
)

// Runner implements dispatch.ScriptRunner over a directory of
// registered scripts. Only scripts inside the directory can run; the
// "script" parameter is a bare file name, never a path.
type Runner struct {
	dir    string
	logger *slog.Logger
}

// NewRunner creates a runner rooted at the script directory.
func NewRunner(dir string) (*Runner, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("script runner: resolving directory: %w", err)
	}
	return &Runner{
		dir:    abs,
		logger: slog.Default().With("component", "script_runner"),
	}, nil
}

// Run implements dispatch.ScriptRunner. Required parameter "script"
// names the file; optional "args" is a list of string arguments.
func (r *Runner) Run(ctx context.Context, params dispatch.Params) error {
	name := params.String("script")
	if name == "" {
		return fmt.Errorf("script runner: parameter %q is required", "script")
	}
	if name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("script runner: invalid script name %q", name)
	}

	var args []string
	if raw, ok := params["args"].([]interface{}); ok {
		for _, a := range raw {
			args = append(args, fmt.Sprintf("%v", a))
		}
	}

	path := filepath.Join(r.dir, name)
	cmd := exec.CommandContext(ctx, path, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Error("script failed",
			"script", name, "error", err, "output", truncate(string(out), 512))
		return fmt.Errorf("script %s: %w", name, err)
	}

	r.logger.Info("script completed", "script", name)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
