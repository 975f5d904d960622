// Package workflow holds the typed representation of a parsed GitHub
// Actions-style workflow file and its constituent jobs, steps, and
// matrix strategies.
package workflow

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Workflow is the top-level parsed document.
type Workflow struct {
	Name string         `yaml:"name"`
	On   Trigger        `yaml:"on"`
	Env  map[string]string `yaml:"env"`
	Jobs map[string]*Job   `yaml:"jobs"`

	// Path is the source file path, used as the name fallback per spec.
	Path string `yaml:"-"`
}

// DisplayName returns Name, falling back to the workflow's file path.
func (w *Workflow) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.Path
}

// Trigger captures only the `workflow_dispatch.inputs` key that the
// runner actually consumes; every other trigger key is parsed but
// ignored.
type Trigger struct {
	WorkflowDispatch struct {
		Inputs map[string]DispatchInput `yaml:"inputs"`
	} `yaml:"workflow_dispatch"`

	// WorkflowCall.Inputs is the set of inputs a reusable workflow
	// declares itself willing to receive, checked against a caller
	// job's `with:` keys by the Validator's checkReusableInputs pass.
	WorkflowCall struct {
		Inputs map[string]DispatchInput `yaml:"inputs"`
	} `yaml:"workflow_call"`
}

// UnmarshalYAML accepts either a bare string/list form of `on:` (e.g.
// `on: push` or `on: [push, pull_request]`) or the full mapping form;
// only `workflow_dispatch.inputs` and `workflow_call.inputs` are ever
// populated.
func (t *Trigger) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode || node.Kind == yaml.SequenceNode {
		return nil
	}
	var raw struct {
		WorkflowDispatch struct {
			Inputs map[string]DispatchInput `yaml:"inputs"`
		} `yaml:"workflow_dispatch"`
		WorkflowCall struct {
			Inputs map[string]DispatchInput `yaml:"inputs"`
		} `yaml:"workflow_call"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	t.WorkflowDispatch = raw.WorkflowDispatch
	t.WorkflowCall = raw.WorkflowCall
	return nil
}

// DispatchInput describes one `workflow_dispatch.inputs.<name>` entry.
type DispatchInput struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
	Type        string `yaml:"type"`
}

// Job is a named collection of sequential Steps with dependencies.
type Job struct {
	Name     string            `yaml:"name"`
	RunsOn   string            `yaml:"runs-on"`
	Needs    StringList        `yaml:"needs"`
	If       string            `yaml:"if"`
	Env      map[string]string `yaml:"env"`
	Strategy *Strategy         `yaml:"strategy"`
	Steps    []Step            `yaml:"steps"`
	Outputs  map[string]string `yaml:"outputs"`

	// Uses, when set, marks a reusable-workflow call job (`uses: owner/repo/.github/workflows/x.yml@ref`).
	Uses string            `yaml:"uses"`
	With map[string]any     `yaml:"with"`
}

// DisplayName returns Name, falling back to the job id.
func (j *Job) DisplayName(id string) string {
	if j.Name != "" {
		return j.Name
	}
	return id
}

// IsReusable reports whether this job calls a reusable workflow instead
// of declaring its own steps.
func (j *Job) IsReusable() bool {
	return j.Uses != ""
}

// StringList decodes either a bare scalar or a sequence of scalars into
// a []string — `needs: a` and `needs: [a, b]` are both valid.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var single string
		if err := node.Decode(&single); err != nil {
			return err
		}
		*s = []string{single}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	case 0:
		*s = nil
		return nil
	default:
		return fmt.Errorf("needs: expected scalar or sequence, got kind %d", node.Kind)
	}
}

// Strategy is a job's `strategy:` block.
type Strategy struct {
	Matrix      *MatrixStrategy `yaml:"matrix"`
	FailFastPtr *bool           `yaml:"fail-fast"`
	MaxParallel int             `yaml:"max-parallel"`
}

// FailFast returns the effective fail-fast setting, defaulting to true.
func (s *Strategy) FailFast() bool {
	if s == nil || s.FailFastPtr == nil {
		return true
	}
	return *s.FailFastPtr
}

// MatrixStrategy is a `strategy.matrix:` block: axis-name to list of
// values, plus include/exclude rows.
type MatrixStrategy struct {
	Axes    map[string][]any `yaml:"-"`
	Include []map[string]any `yaml:"include"`
	Exclude []map[string]any `yaml:"exclude"`

	// AxisOrder preserves declaration order for deterministic expansion.
	AxisOrder []string `yaml:"-"`
}

// UnmarshalYAML pulls every key other than include/exclude into Axes,
// preserving declaration order.
func (m *MatrixStrategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("matrix: expected mapping, got kind %d", node.Kind)
	}
	m.Axes = make(map[string][]any)
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		key := keyNode.Value

		switch key {
		case "include":
			if err := valNode.Decode(&m.Include); err != nil {
				return fmt.Errorf("matrix.include: %w", err)
			}
		case "exclude":
			if err := valNode.Decode(&m.Exclude); err != nil {
				return fmt.Errorf("matrix.exclude: %w", err)
			}
		default:
			var values []any
			switch valNode.Kind {
			case yaml.SequenceNode:
				if err := valNode.Decode(&values); err != nil {
					return fmt.Errorf("matrix.%s: %w", key, err)
				}
			default:
				var single any
				if err := valNode.Decode(&single); err != nil {
					return fmt.Errorf("matrix.%s: %w", key, err)
				}
				values = []any{single}
			}
			m.Axes[key] = values
			m.AxisOrder = append(m.AxisOrder, key)
		}
	}
	return nil
}

// MatrixRow is one expanded combination of axis values plus any extra
// columns introduced by `include`.
type MatrixRow map[string]any

// Step is either a `run:` step or a `uses:` step.
type Step struct {
	ID              string            `yaml:"id"`
	Name            string            `yaml:"name"`
	If              string            `yaml:"if"`
	Env             map[string]string `yaml:"env"`
	ContinueOnError bool              `yaml:"continue-on-error"`
	WorkingDirectory string           `yaml:"working-directory"`

	Run   string         `yaml:"run"`
	Shell string         `yaml:"shell"`

	Uses string         `yaml:"uses"`
	With map[string]any `yaml:"with"`
}

// IsRun reports whether this is a `run:` step.
func (s *Step) IsRun() bool {
	return s.Run != ""
}

// IsUses reports whether this is a `uses:` step.
func (s *Step) IsUses() bool {
	return s.Uses != ""
}

// DisplayName returns Name, falling back to the run script or the uses
// reference.
func (s *Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.IsUses() {
		return s.Uses
	}
	return s.Run
}

// ActionKind classifies a resolved `uses:` reference.
type ActionKind int

const (
	KindUnknown ActionKind = iota
	KindLocal
	KindRemote
	KindDocker
	KindBuiltin
)

func (k ActionKind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	case KindDocker:
		return "docker"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// ActionRef is a parsed `uses:` string.
type ActionRef struct {
	Raw     string
	Kind    ActionKind
	Owner   string
	Repo    string
	SubPath string
	Ref     string
	Path    string // for KindLocal
	Image   string // for KindDocker
}
