// Package ctxbuild synthesizes the per-step workflow.StepContext (env,
// working directory, env-file paths, and the github/runner/matrix/
// strategy/steps sub-contexts) and parses the GitHub Actions
// environment-file protocol those files use.
package ctxbuild

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/me/ghrun/pkg/workflow"
)

// Options configures Build.
type Options struct {
	WorkflowName string
	Workspace    string
	RunID        string
}

// Build synthesizes the initial StepContext for one job instance,
// before any step has run. Grounded on internal/cwlexpr.NewContext's
// role (build the evaluation environment once per unit of work) and
// internal/iwdr/stage.go's workspace-path handling, generalized from
// CWL's file-staging concerns to GitHub Actions' env/path/outputs
// concerns.
func Build(opts Options, job *workflow.Job, row workflow.MatrixRow) *workflow.StepContext {
	env := make(map[string]string, len(job.Env))
	for k, v := range job.Env {
		env[k] = v
	}

	failFast := true
	maxParallel := 0
	if job.Strategy != nil {
		failFast = job.Strategy.FailFast()
		maxParallel = job.Strategy.MaxParallel
	}

	return &workflow.StepContext{
		Github: workflow.GithubContext{
			Workflow:  opts.WorkflowName,
			Workspace: opts.Workspace,
			RunID:     opts.RunID,
		},
		Runner: workflow.RunnerContext{
			OS:   runtime.GOOS,
			Temp: os.TempDir(),
		},
		Matrix:   row,
		Strategy: workflow.StrategyContext{FailFast: failFast, MaxParallel: maxParallel},
		Steps:    make(map[string]workflow.StepOutputRecord),
		Env:      env,
		WorkingDirectory: opts.Workspace,
	}
}

// PrepareStep allocates the four fresh environment-file paths a single
// step invocation writes to, rooted under tmpDir. Called once per step,
// immediately before dispatch, since GitHub Actions gives each step
// invocation its own empty files.
func PrepareStep(ctx *workflow.StepContext, tmpDir string) error {
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return err
	}
	id := uuid.NewString()
	ctx.OutputFile = filepath.Join(tmpDir, "output_"+id)
	ctx.EnvFile = filepath.Join(tmpDir, "env_"+id)
	ctx.PathFile = filepath.Join(tmpDir, "path_"+id)
	ctx.SummaryFile = filepath.Join(tmpDir, "summary_"+id)
	for _, path := range []string{ctx.OutputFile, ctx.EnvFile, ctx.PathFile, ctx.SummaryFile} {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		f.Close()
	}
	return nil
}

// ToValues flattens a StepContext into the nested map[string]any shape
// internal/expr.Context expects: top-level keys "github", "runner",
// "matrix", "strategy", "steps", "env".
func ToValues(ctx *workflow.StepContext) map[string]any {
	steps := make(map[string]any, len(ctx.Steps))
	for id, rec := range ctx.Steps {
		outputs := make(map[string]any, len(rec.Outputs))
		for k, v := range rec.Outputs {
			outputs[k] = v
		}
		steps[id] = map[string]any{
			"outputs": outputs,
			"outcome": rec.Outcome,
		}
	}
	matrix := make(map[string]any, len(ctx.Matrix))
	for k, v := range ctx.Matrix {
		matrix[k] = v
	}
	env := make(map[string]any, len(ctx.Env))
	for k, v := range ctx.Env {
		env[k] = v
	}
	return map[string]any{
		"github": map[string]any{
			"workflow":  ctx.Github.Workflow,
			"workspace": ctx.Github.Workspace,
			"run_id":    ctx.Github.RunID,
		},
		"runner": map[string]any{
			"os":   ctx.Runner.OS,
			"temp": ctx.Runner.Temp,
		},
		"matrix": matrix,
		"strategy": map[string]any{
			"fail-fast":    ctx.Strategy.FailFast,
			"max-parallel": ctx.Strategy.MaxParallel,
		},
		"steps": steps,
		"env":   env,
	}
}
