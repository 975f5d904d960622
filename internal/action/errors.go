package action

import (
	"fmt"
	"strings"
)

// ErrNotFound is returned when an ActionRef cannot be resolved to
// anything on disk or in the registry.
type ErrNotFound struct {
	Ref string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("action %q could not be resolved", e.Ref)
}

// ErrUnreadableManifest is returned when action.yml/action.yaml is
// missing or fails to parse.
type ErrUnreadableManifest struct {
	Dir string
	Err error
}

func (e *ErrUnreadableManifest) Error() string {
	return fmt.Sprintf("unreadable action manifest in %s: %v", e.Dir, e.Err)
}

func (e *ErrUnreadableManifest) Unwrap() error { return e.Err }

// ErrMissingInput is returned when a required action input has no
// value and no default.
type ErrMissingInput struct {
	Action string
	Input  string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("action %q: missing required input %q", e.Action, e.Input)
}

// ErrCompositeCycle is returned when a composite action's steps
// recursively reference an action already on the resolution stack.
type ErrCompositeCycle struct {
	Chain []string
}

func (e *ErrCompositeCycle) Error() string {
	return fmt.Sprintf("composite action cycle detected: %s", strings.Join(e.Chain, " -> "))
}
