package workflow

import (
	"fmt"
	"strings"
)

// Severity distinguishes a finding that blocks scheduling from one that
// is merely reported alongside a valid plan. The zero value is
// SeverityError, so existing FieldError literals that don't set it
// keep their original blocking behavior.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// FieldError names one problem found at a specific YAML path, e.g.
// "jobs.build.needs[0]".
type FieldError struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationError aggregates every FieldError found by a single
// Validate pass. A workflow with any ValidationError is never
// scheduled.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.String()
	}
	return fmt.Sprintf("workflow validation failed (%d error(s)): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Add appends a FieldError built from path and a formatted message.
func (e *ValidationError) Add(path, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any FieldError has been recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Errors) > 0
}

// CycleError is returned by DAG cycle detection and names the cycle.
type CycleError struct {
	Cycle []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Cycle, " -> "))
}
