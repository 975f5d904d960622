package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/me/ghrun/internal/action"
	"github.com/me/ghrun/internal/ctxbuild"
	"github.com/me/ghrun/internal/expr"
	"github.com/me/ghrun/pkg/events"
	"github.com/me/ghrun/pkg/workflow"
)

// Mode selects which Runtime backs `run:` steps and JavaScript
// actions when the action kind doesn't force a choice (KindDocker
// always needs Container; the checkout built-in never needs either).
type Mode int

const (
	ModeContainer Mode = iota
	ModeEmulation
)

// Executor implements spec.md §4.5 in full: it builds the step
// context, evaluates `if:`, resolves `uses:` references, dispatches to
// the right Runtime, and folds the step's env files back into the
// job's StepContext for subsequent steps. Generalized from
// internal/executor/local.go's Submit/Status/Logs method shape (one
// CWL tool invocation) to "one workflow step, possibly an action".
type Executor struct {
	resolver  *action.Resolver
	container Runtime
	emulation Runtime
	sink      *events.Sink
	mode      Mode
}

// NewExecutor wires the Action Resolver and both runtimes together.
// container may be nil when no Docker daemon is configured, in which
// case any KindDocker action fails with ErrDockerActionsUnsupportedInEmulation
// rather than panicking.
func NewExecutor(resolver *action.Resolver, container, emulation Runtime, sink *events.Sink, mode Mode) *Executor {
	return &Executor{resolver: resolver, container: container, emulation: emulation, sink: sink, mode: mode}
}

// ExecuteStep runs one step against jobCtx, mutating jobCtx's Env/Path/
// Steps accumulators in place for subsequent steps of the same job.
func (e *Executor) ExecuteStep(ctx context.Context, jobCtx *workflow.StepContext, jobID, matrixKey string, outcome expr.JobOutcome, index int, step workflow.Step, tmpDir string) workflow.StepResult {
	result := workflow.StepResult{Index: index, Name: step.DisplayName(), StartedAt: time.Now()}

	run, err := e.shouldRun(jobCtx, outcome, step)
	if err != nil {
		result.Status = workflow.StatusFailure
		result.Err = err
		result.EndedAt = time.Now()
		return result
	}
	if !run {
		result.Status = workflow.StatusSkipped
		result.EndedAt = time.Now()
		return result
	}

	e.sink.Publish(events.StepStateChanged(jobID, matrixKey, index, result.Name, "running"))

	if err := ctxbuild.PrepareStep(jobCtx, tmpDir); err != nil {
		result.Status = workflow.StatusFailure
		result.Err = err
		result.EndedAt = time.Now()
		return result
	}

	if step.IsUses() {
		ref := action.Classify(step.Uses)
		if ref.Kind != workflow.KindBuiltin && ref.Kind != workflow.KindDocker {
			if resolved, err := e.resolver.Resolve(ctx, ref); err == nil && resolved.Manifest != nil && resolved.Manifest.Runs.Kind() == action.RunsComposite {
				e.runComposite(ctx, jobCtx, jobID, matrixKey, resolved, step, tmpDir, &result)
				e.sink.Publish(events.StepStateChanged(jobID, matrixKey, index, result.Name, string(result.Status)))
				return result
			} else if err != nil {
				result.Status = workflow.StatusFailure
				result.Err = err
				result.EndedAt = time.Now()
				return result
			}
		}
	}

	spec, rt, err := e.buildSpec(ctx, jobCtx, jobID, matrixKey, outcome, index, step)
	if err != nil {
		result.Status = workflow.StatusFailure
		result.Err = err
		result.EndedAt = time.Now()
		return result
	}

	outcome2, runErr := rt.Run(ctx, spec)
	result.EndedAt = time.Now()
	result.ExitCode = outcome2.ExitCode

	if runErr != nil {
		result.Status = workflow.StatusFailure
		result.Err = runErr
	} else if outcome2.ExitCode != 0 {
		result.Err = &StepFailure{StepName: result.Name, ExitCode: outcome2.ExitCode}
		if step.ContinueOnError {
			result.Status = workflow.StatusSuccess
		} else {
			result.Status = workflow.StatusFailure
		}
	} else {
		result.Status = workflow.StatusSuccess
	}

	e.absorbEnvFiles(jobCtx, step, &result)
	e.sink.Publish(events.StepStateChanged(jobID, matrixKey, index, result.Name, string(result.Status)))
	return result
}

// runComposite executes a composite action's own `runs.steps` in order,
// substituting `${{ inputs.<name> }}` textually into each nested step's
// `run:` script before dispatch. Nested steps share the parent step's
// working directory and accumulate outputs into the composite step's
// own Outputs, since from the caller's side a composite action is a
// single steps.<id> entry regardless of how many steps it ran
// internally.
func (e *Executor) runComposite(ctx context.Context, jobCtx *workflow.StepContext, jobID, matrixKey string, resolved *action.ResolvedAction, step workflow.Step, tmpDir string, result *workflow.StepResult) {
	inputs, err := action.ResolveInputs(resolved.Ref.Raw, resolved.Manifest, step.With)
	if err != nil {
		result.Status = workflow.StatusFailure
		result.Err = err
		result.EndedAt = time.Now()
		return
	}

	result.Outputs = make(map[string]string)
	for i, nested := range resolved.Manifest.Runs.Steps {
		if nested.IsRun() {
			nested.Run = substituteInputs(nested.Run, inputs)
		}
		if err := ctxbuild.PrepareStep(jobCtx, tmpDir); err != nil {
			result.Status = workflow.StatusFailure
			result.Err = err
			result.EndedAt = time.Now()
			return
		}
		nestedResult := e.ExecuteStep(ctx, jobCtx, jobID, matrixKey, expr.JobOutcome{}, i, nested, tmpDir)
		for k, v := range nestedResult.Outputs {
			result.Outputs[k] = v
		}
		if nestedResult.Status == workflow.StatusFailure && !nested.ContinueOnError {
			result.Status = workflow.StatusFailure
			result.Err = fmt.Errorf("composite action %q: nested step %q: %w", step.Uses, nested.DisplayName(), nestedResult.Err)
			result.EndedAt = time.Now()
			return
		}
	}
	result.Status = workflow.StatusSuccess
	result.EndedAt = time.Now()
	if step.ID != "" {
		jobCtx.Steps[step.ID] = workflow.StepOutputRecord{Outputs: result.Outputs, Outcome: string(result.Status)}
	}
}

// exprPattern matches one `${{ ... }}` interpolation, non-greedily so
// adjacent interpolations on the same line don't get merged into one.
var exprPattern = regexp.MustCompile(`\$\{\{(.*?)\}\}`)

// expandExpressions substitutes every `${{ expr }}` occurrence in text
// with its evaluated value, per spec.md §4.2's output-passing example
// (`echo "${{ steps.s1.outputs.result }}"`). Any single unsupported or
// failing expression aborts the whole substitution, which the caller
// surfaces as a step failure rather than running a half-expanded script.
func expandExpressions(text string, ctx *expr.Context) (string, error) {
	var failure error
	expanded := exprPattern.ReplaceAllStringFunc(text, func(match string) string {
		if failure != nil {
			return match
		}
		inner := strings.TrimSpace(match[3 : len(match)-2])
		v, err := expr.Evaluate(inner, ctx)
		if err != nil {
			failure = err
			return match
		}
		return fmt.Sprint(v)
	})
	if failure != nil {
		return "", failure
	}
	return expanded, nil
}

func substituteInputs(script string, inputs map[string]string) string {
	for name, value := range inputs {
		script = strings.ReplaceAll(script, "${{ inputs."+name+" }}", value)
		script = strings.ReplaceAll(script, "${{inputs."+name+"}}", value)
	}
	return script
}

func (e *Executor) shouldRun(jobCtx *workflow.StepContext, outcome expr.JobOutcome, step workflow.Step) (bool, error) {
	if step.If == "" {
		return !outcome.AnyFailed && !outcome.AnyCancelled, nil
	}
	exprCtx := expr.NewContext(ctxbuild.ToValues(jobCtx)).WithOutcome(outcome)
	return expr.EvaluateBool(expr.StripDelimiters(step.If), exprCtx)
}

func (e *Executor) buildSpec(ctx context.Context, jobCtx *workflow.StepContext, jobID, matrixKey string, outcome expr.JobOutcome, index int, step workflow.Step) (StepSpec, Runtime, error) {
	base := StepSpec{
		JobID:      jobID,
		MatrixKey:  matrixKey,
		StepIndex:  index,
		StepName:   step.DisplayName(),
		RunID:      jobCtx.Github.RunID,
		Env:        mergedEnv(jobCtx, step),
		WorkingDir: firstNonEmpty(step.WorkingDirectory, jobCtx.WorkingDirectory),
	}

	if step.IsRun() {
		exprCtx := expr.NewContext(ctxbuild.ToValues(jobCtx)).WithOutcome(outcome)
		script, err := expandExpressions(step.Run, exprCtx)
		if err != nil {
			return StepSpec{}, nil, fmt.Errorf("step %q: %w", step.DisplayName(), err)
		}
		argv, err := ShellCommand(step.Shell, script)
		if err != nil {
			return StepSpec{}, nil, err
		}
		base.Argv = argv
		return base, e.runtimeFor(ModeRuntime(e.mode)), nil
	}

	ref := action.Classify(step.Uses)
	if ref.Kind == workflow.KindBuiltin {
		if err := Checkout(".", base.WorkingDir); err != nil {
			return StepSpec{}, nil, fmt.Errorf("builtin checkout: %w", err)
		}
		base.Argv = []string{"true"}
		return base, e.runtimeFor(ModeRuntime(ModeEmulation)), nil
	}

	resolved, err := e.resolver.Resolve(ctx, ref)
	if err != nil {
		return StepSpec{}, nil, err
	}

	inputs, err := resolvedInputs(resolved, step.With)
	if err != nil {
		return StepSpec{}, nil, err
	}
	for k, v := range inputs {
		base.Env["INPUT_"+strings.ToUpper(strings.ReplaceAll(k, "-", "_"))] = v
	}

	switch ref.Kind {
	case workflow.KindDocker:
		if e.container == nil {
			return StepSpec{}, nil, &ErrDockerActionsUnsupportedInEmulation{Action: step.Uses}
		}
		base.Image = ref.Image
		return base, e.container, nil
	default:
		if resolved.Manifest == nil {
			return StepSpec{}, nil, fmt.Errorf("action %q: no manifest resolved", step.Uses)
		}
		switch resolved.Manifest.Runs.Kind() {
		case action.RunsJavaScript:
			rt := e.runtimeFor(ModeRuntime(e.mode))
			mainPath := filepath.Join(resolved.Dir, resolved.Manifest.Runs.Main)
			if rt == e.container {
				mainPath = "/github/action/" + resolved.Manifest.Runs.Main
			}
			base.Argv = []string{"node", mainPath}
			base.ActionDir = resolved.Dir
			base.Image = nodeImageFor(resolved.Manifest.Runs.Using)
			return base, rt, nil
		case action.RunsDocker:
			if e.container == nil {
				return StepSpec{}, nil, &ErrDockerActionsUnsupportedInEmulation{Action: step.Uses}
			}
			base.Image = resolved.Manifest.Runs.Image
			base.ActionDir = resolved.Dir
			return base, e.container, nil
		default:
			return StepSpec{}, nil, fmt.Errorf("action %q: unsupported runs.using %q", step.Uses, resolved.Manifest.Runs.Using)
		}
	}
}

// ModeRuntime exists only so buildSpec can pass e.mode through
// runtimeFor without an import cycle on Executor itself.
type ModeRuntime Mode

func (e *Executor) runtimeFor(mode ModeRuntime) Runtime {
	if Mode(mode) == ModeContainer && e.container != nil {
		return e.container
	}
	return e.emulation
}

// nodeImageFor maps a JavaScript action's runs.using to the Docker
// image the container runtime boots it under. The emulation runtime
// ignores StepSpec.Image, so this only matters in container mode.
func nodeImageFor(using string) string {
	switch using {
	case "node16":
		return "node:16"
	case "node20":
		return "node:20"
	default:
		return "node:20"
	}
}

func resolvedInputs(resolved *action.ResolvedAction, with map[string]any) (map[string]string, error) {
	if resolved.Manifest == nil {
		return nil, nil
	}
	return action.ResolveInputs(resolved.Ref.Raw, resolved.Manifest, with)
}

func mergedEnv(jobCtx *workflow.StepContext, step workflow.Step) map[string]string {
	env := make(map[string]string, len(jobCtx.Env)+len(step.Env)+2)
	for k, v := range jobCtx.Env {
		env[k] = v
	}
	for k, v := range step.Env {
		env[k] = v
	}
	env["PATH"] = jobCtx.EffectivePath(os.Getenv("PATH"), string(os.PathListSeparator))
	env["GITHUB_OUTPUT"] = jobCtx.OutputFile
	env["GITHUB_ENV"] = jobCtx.EnvFile
	env["GITHUB_PATH"] = jobCtx.PathFile
	env["GITHUB_STEP_SUMMARY"] = jobCtx.SummaryFile
	return env
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// absorbEnvFiles reads the four environment files the step just wrote
// and folds them into jobCtx, per spec.md §4.5:
//   - GITHUB_OUTPUT -> steps.<id>.outputs, last-key-wins.
//   - GITHUB_ENV -> merged into the job's env for subsequent steps only.
//   - GITHUB_PATH -> placed ahead of the existing entries, keeping the
//     file's own line order.
//   - GITHUB_STEP_SUMMARY -> captured verbatim onto result.Summary.
func (e *Executor) absorbEnvFiles(jobCtx *workflow.StepContext, step workflow.Step, result *workflow.StepResult) {
	outputs, err := ctxbuild.ParseKeyValueFile(jobCtx.OutputFile)
	if err == nil {
		result.Outputs = outputs
		if step.ID != "" {
			jobCtx.Steps[step.ID] = workflow.StepOutputRecord{Outputs: outputs, Outcome: string(result.Status)}
		}
	}

	if envAdds, err := ctxbuild.ParseKeyValueFile(jobCtx.EnvFile); err == nil {
		for k, v := range envAdds {
			jobCtx.Env[k] = v
		}
	}

	if pathAdds, err := ctxbuild.ParsePathFile(jobCtx.PathFile); err == nil {
		for i := len(pathAdds) - 1; i >= 0; i-- {
			jobCtx.Path = append([]string{pathAdds[i]}, jobCtx.Path...)
		}
	}

	if summary, err := ctxbuild.ReadSummaryFile(jobCtx.SummaryFile); err == nil {
		result.Summary = summary
	}
}
