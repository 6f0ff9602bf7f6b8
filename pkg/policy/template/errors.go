package template

import (
	"fmt"
	"strings"
)

// LoadError indicates a template file could not be loaded or parsed.
type LoadError struct {
	Path    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("template %s: %s", e.Path, e.Message)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// ParameterError indicates instantiation failed because required
// parameters were missing or placeholders stayed unresolved.
type ParameterError struct {
	Template   string
	Missing    []string
	Unknown    []string
	Unresolved []string
}

func (e *ParameterError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing required: "+strings.Join(e.Missing, ", "))
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unknown: "+strings.Join(e.Unknown, ", "))
	}
	if len(e.Unresolved) > 0 {
		parts = append(parts, "unresolved placeholders: "+strings.Join(e.Unresolved, ", "))
	}
	return fmt.Sprintf("template %s: parameter errors: %s", e.Template, strings.Join(parts, "; "))
}

// NotFoundError indicates the named template is not registered.
type NotFoundError struct {
	Template string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("template %s: not found", e.Template)
}
