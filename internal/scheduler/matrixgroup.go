package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/remeh/sizedwaitgroup"

	"github.com/me/ghrun/internal/ctxbuild"
	"github.com/me/ghrun/internal/expr"
	"github.com/me/ghrun/internal/matrix"
	"github.com/me/ghrun/pkg/workflow"
)

// runMatrixGroup expands job's strategy.matrix and runs every resulting
// instance under a sizedwaitgroup.SizedWaitGroup capped at
// strategy.max-parallel, exactly the bound the pack's original_source
// imposes on matrix jobs. On fail-fast (the default), the first failing
// instance cancels every sibling instance still pending or running.
func (s *Scheduler) runMatrixGroup(ctx context.Context, run *Run, opts Options, jobID string, job *workflow.Job) workflow.Status {
	var matrixStrategy *workflow.MatrixStrategy
	if job.Strategy != nil {
		matrixStrategy = job.Strategy.Matrix
	}
	rows := matrix.Expand(matrixStrategy)
	axisOrder := []string(nil)
	if matrixStrategy != nil {
		axisOrder = matrixStrategy.AxisOrder
	}

	maxParallel := len(rows)
	failFast := true
	if job.Strategy != nil {
		failFast = job.Strategy.FailFast()
		if job.Strategy.MaxParallel > 0 {
			maxParallel = job.Strategy.MaxParallel
		}
	}
	if maxParallel < 1 {
		maxParallel = 1
	}

	groupCtx, groupCancel := context.WithCancel(ctx)
	defer groupCancel()

	swg := sizedwaitgroup.New(maxParallel)
	var mu sync.Mutex
	failed := false

	for _, row := range rows {
		row := row
		swg.Add()
		go func() {
			defer swg.Done()
			if groupCtx.Err() != nil {
				run.recordResult(jobID, workflow.JobResult{
					JobID:     jobID,
					MatrixKey: matrixKeyFor(jobID, row, axisOrder),
					Status:    workflow.StatusCancelled,
					StartedAt: time.Now(),
					EndedAt:   time.Now(),
				})
				return
			}
			result := s.runJobInstance(groupCtx, opts, jobID, job, row, axisOrder)
			run.recordResult(jobID, result)
			if result.Status == workflow.StatusFailure {
				mu.Lock()
				failed = true
				mu.Unlock()
				if failFast {
					groupCancel()
				}
			}
		}()
	}
	swg.Wait()

	if failed {
		return workflow.StatusFailure
	}
	return workflow.StatusSuccess
}

// matrixKeyFor renders a MatrixRow as the "axis=value, axis=value" key
// stored on JobResult.MatrixKey, reusing internal/matrix.JobIDFor's
// ordering and stripping its "<jobID> (...)" wrapper back out.
func matrixKeyFor(jobID string, row workflow.MatrixRow, axisOrder []string) string {
	if len(row) == 0 {
		return ""
	}
	full := matrix.JobIDFor(jobID, row, axisOrder)
	inner := strings.TrimPrefix(full, jobID)
	inner = strings.TrimSpace(inner)
	return strings.TrimSuffix(strings.TrimPrefix(inner, "("), ")")
}

// runJobInstance builds the instance's StepContext, runs its Steps in
// order through the Step Executor, and evaluates the job's declared
// `outputs:` expressions against the final StepContext.
func (s *Scheduler) runJobInstance(ctx context.Context, opts Options, jobID string, job *workflow.Job, row workflow.MatrixRow, axisOrder []string) workflow.JobResult {
	matrixKey := matrixKeyFor(jobID, row, axisOrder)
	result := workflow.JobResult{JobID: jobID, MatrixKey: matrixKey, StartedAt: time.Now()}

	stepCtx := ctxbuild.Build(ctxbuild.Options{
		WorkflowName: opts.WorkflowName,
		Workspace:    opts.Workspace,
		RunID:        opts.RunID,
	}, job, row)

	outcome := expr.JobOutcome{}
	for idx, step := range job.Steps {
		if ctx.Err() != nil {
			result.Steps = append(result.Steps, workflow.StepResult{
				Index: idx, Name: step.DisplayName(), Status: workflow.StatusCancelled,
			})
			outcome.AnyCancelled = true
			continue
		}
		sr := s.executor.ExecuteStep(ctx, stepCtx, jobID, matrixKey, outcome, idx, step, opts.TmpDir)
		result.Steps = append(result.Steps, sr)
		switch sr.Status {
		case workflow.StatusFailure:
			outcome.AnyFailed = true
		case workflow.StatusCancelled:
			outcome.AnyCancelled = true
		}
	}

	result.EndedAt = time.Now()
	result.Status = aggregateStepStatus(result.Steps)
	result.Outputs = evaluateJobOutputs(job, stepCtx)
	return result
}

func aggregateStepStatus(steps []workflow.StepResult) workflow.Status {
	anyFailed := false
	anyCancelled := false
	for _, s := range steps {
		switch s.Status {
		case workflow.StatusFailure:
			anyFailed = true
		case workflow.StatusCancelled:
			anyCancelled = true
		}
	}
	switch {
	case anyFailed:
		return workflow.StatusFailure
	case anyCancelled:
		return workflow.StatusCancelled
	default:
		return workflow.StatusSuccess
	}
}

// evaluateJobOutputs resolves a job's `outputs:` block — each value an
// expression over `steps.<id>.outputs.<key>` — against the job
// instance's final StepContext. A malformed expression yields the
// literal error text rather than aborting the whole job, since a
// broken output expression shouldn't mask an otherwise-successful run.
func evaluateJobOutputs(job *workflow.Job, stepCtx *workflow.StepContext) map[string]string {
	if len(job.Outputs) == 0 {
		return nil
	}
	values := ctxbuild.ToValues(stepCtx)
	exprCtx := expr.NewContext(values)
	outputs := make(map[string]string, len(job.Outputs))
	for name, rawExpr := range job.Outputs {
		v, err := expr.Evaluate(expr.StripDelimiters(rawExpr), exprCtx)
		if err != nil {
			outputs[name] = fmt.Sprintf("<error: %v>", err)
			continue
		}
		outputs[name] = fmt.Sprint(v)
	}
	return outputs
}
