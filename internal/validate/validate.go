// Package validate performs semantic validation on a parsed workflow,
// composing independent check passes the way internal/parser.Validator
// does for CWL documents.
package validate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/me/ghrun/pkg/workflow"
)

// Validator checks semantic correctness of a *workflow.Workflow.
type Validator struct {
	logger *slog.Logger
}

// New creates a Validator with the given logger.
func New(logger *slog.Logger) *Validator {
	return &Validator{logger: logger.With("component", "validate")}
}

// Validate runs every check pass and returns the Warning-severity
// findings collected alongside whatever Error-severity findings were
// found. A nil *workflow.ValidationError means the workflow may be
// scheduled, regardless of how many warnings accompany it. Passes
// never stop each other: every applicable finding is collected before
// returning.
func (v *Validator) Validate(wf *workflow.Workflow) ([]workflow.FieldError, *workflow.ValidationError) {
	var findings []workflow.FieldError

	findings = append(findings, v.checkWorkflowShape(wf)...)
	findings = append(findings, v.checkJobShape(wf)...)
	findings = append(findings, v.checkNeedsReferences(wf)...)
	findings = append(findings, v.checkNeedsAcyclic(wf)...)
	findings = append(findings, v.checkStepShape(wf)...)
	findings = append(findings, v.checkMatrixLegality(wf)...)
	findings = append(findings, v.checkReusableInputs(wf)...)

	var errs, warnings []workflow.FieldError
	for _, f := range findings {
		if f.Severity == workflow.SeverityWarning {
			warnings = append(warnings, f)
		} else {
			errs = append(errs, f)
		}
	}

	if len(errs) == 0 {
		return warnings, nil
	}
	return warnings, &workflow.ValidationError{Errors: errs}
}

func (v *Validator) checkWorkflowShape(wf *workflow.Workflow) []workflow.FieldError {
	if len(wf.Jobs) == 0 {
		return []workflow.FieldError{{Path: "jobs", Message: "workflow must define at least one job"}}
	}
	return nil
}

func (v *Validator) checkJobShape(wf *workflow.Workflow) []workflow.FieldError {
	var errs []workflow.FieldError
	for id, job := range wf.Jobs {
		hasSteps := len(job.Steps) > 0
		hasUses := job.IsReusable()
		switch {
		case hasSteps && hasUses:
			errs = append(errs, workflow.FieldError{
				Path:    fmt.Sprintf("jobs.%s", id),
				Message: "job must not declare both steps and a reusable-workflow uses",
			})
		case !hasSteps && !hasUses:
			errs = append(errs, workflow.FieldError{
				Path:    fmt.Sprintf("jobs.%s", id),
				Message: "job must declare either steps or a reusable-workflow uses",
			})
		}
	}
	return errs
}

func (v *Validator) checkNeedsReferences(wf *workflow.Workflow) []workflow.FieldError {
	var errs []workflow.FieldError
	for _, id := range sortedJobIDs(wf) {
		job := wf.Jobs[id]
		for i, dep := range job.Needs {
			if _, ok := wf.Jobs[dep]; !ok {
				errs = append(errs, workflow.FieldError{
					Path:    fmt.Sprintf("jobs.%s.needs[%d]", id, i),
					Message: fmt.Sprintf("needs unknown job %q", dep),
				})
			}
		}
	}
	return errs
}

func (v *Validator) checkNeedsAcyclic(wf *workflow.Workflow) []workflow.FieldError {
	if _, err := TopoOrder(wf); err != nil {
		return []workflow.FieldError{{Path: "jobs", Message: err.Error()}}
	}
	return nil
}

func (v *Validator) checkStepShape(wf *workflow.Workflow) []workflow.FieldError {
	var errs []workflow.FieldError
	for _, id := range sortedJobIDs(wf) {
		job := wf.Jobs[id]
		for i, step := range job.Steps {
			path := fmt.Sprintf("jobs.%s.steps[%d]", id, i)
			switch {
			case step.IsRun() && step.IsUses():
				errs = append(errs, workflow.FieldError{Path: path, Message: "step must not declare both run and uses"})
			case !step.IsRun() && !step.IsUses():
				errs = append(errs, workflow.FieldError{Path: path, Message: "step must declare either run or uses"})
			}
			if step.IsRun() && len(step.With) > 0 {
				errs = append(errs, workflow.FieldError{Path: path + ".with", Message: "with: is only valid on a uses: step"})
			}
		}
	}
	return errs
}

func (v *Validator) checkMatrixLegality(wf *workflow.Workflow) []workflow.FieldError {
	var errs []workflow.FieldError
	for _, id := range sortedJobIDs(wf) {
		job := wf.Jobs[id]
		if job.Strategy == nil || job.Strategy.Matrix == nil {
			continue
		}
		m := job.Strategy.Matrix
		declared := make(map[string]bool, len(m.Axes))
		for axis := range m.Axes {
			declared[axis] = true
		}
		path := fmt.Sprintf("jobs.%s.strategy.matrix", id)
		for _, axis := range m.AxisOrder {
			for j, val := range m.Axes[axis] {
				if _, isList := val.([]any); isList {
					errs = append(errs, workflow.FieldError{
						Path:    fmt.Sprintf("%s.%s[%d]", path, axis, j),
						Message: fmt.Sprintf("axis %q value must be a scalar or a mapping, not a list", axis),
					})
				}
			}
		}
		for i, row := range m.Exclude {
			for key := range row {
				if !declared[key] {
					errs = append(errs, workflow.FieldError{
						Path:    fmt.Sprintf("%s.exclude[%d]", path, i),
						Message: fmt.Sprintf("exclude references undeclared axis %q", key),
					})
				}
			}
		}
	}
	return errs
}

// checkReusableInputs checks a reusable-workflow call job's `with:`
// keys against the callee's declared `on.workflow_call.inputs`, when
// the callee is a local file (`./...`) resolvable relative to the
// current directory. A with: key the callee never declared is an
// Error; a callee this pass cannot read (a remote owner/repo@ref
// reference, or a missing local file) degrades to a Warning rather
// than blocking the run, since ghrun has no way to fetch it.
func (v *Validator) checkReusableInputs(wf *workflow.Workflow) []workflow.FieldError {
	var errs []workflow.FieldError
	for _, id := range sortedJobIDs(wf) {
		job := wf.Jobs[id]
		if !job.IsReusable() {
			continue
		}
		path := fmt.Sprintf("jobs.%s", id)
		if !strings.HasPrefix(job.Uses, "./") && !strings.HasPrefix(job.Uses, "../") {
			continue
		}

		callee, err := loadReusableWorkflow(job.Uses)
		if err != nil {
			errs = append(errs, workflow.FieldError{
				Path:     path + ".uses",
				Message:  fmt.Sprintf("reusable workflow %q not resolvable on disk: %v", job.Uses, err),
				Severity: workflow.SeverityWarning,
			})
			continue
		}

		declared := callee.On.WorkflowCall.Inputs
		for key := range job.With {
			if _, ok := declared[key]; !ok {
				errs = append(errs, workflow.FieldError{
					Path:    fmt.Sprintf("%s.with.%s", path, key),
					Message: fmt.Sprintf("reusable workflow %q does not declare input %q", job.Uses, key),
				})
			}
		}
	}
	return errs
}

// loadReusableWorkflow reads and parses just enough of a local reusable
// workflow file to inspect its declared workflow_call inputs.
func loadReusableWorkflow(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	var callee workflow.Workflow
	if err := yaml.Unmarshal(data, &callee); err != nil {
		return nil, err
	}
	return &callee, nil
}

func sortedJobIDs(wf *workflow.Workflow) []string {
	ids := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
