// Package scheduler drives a whole workflow run: it walks the job DAG
// in dependency order, expands each job's matrix strategy, and fans
// out matrix instances to the Step Executor under a per-job
// max-parallel cap. Generalized from internal/cwlrunner/parallel.go's
// parallelExecutor — the same "pending/dependents maps plus a
// jobs/results channel pair driven from one goroutine" shape, applied
// to jobs-with-matrix-instances rather than CWL steps-with-scatter.
// ghrun runs one workflow to completion in a single process, so the
// teacher's store-backed polling Loop (internal/scheduler/loop.go) had
// nothing to poll against here; see DESIGN.md for why it was replaced
// rather than adapted.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/me/ghrun/internal/expr"
	"github.com/me/ghrun/internal/runtime"
	"github.com/me/ghrun/pkg/events"
	"github.com/me/ghrun/pkg/workflow"
)

// Options configures one Schedule call.
type Options struct {
	WorkflowName string
	Workspace    string
	RunID        string
	TmpDir       string
}

// Scheduler owns the Step Executor and event sink shared by every job
// of every run it schedules, plus an optional global cap on how many
// jobs may run at once (distinct from each job's own per-matrix
// max-parallel cap).
type Scheduler struct {
	executor  *runtime.Executor
	sink      *events.Sink
	semaphore *Semaphore
}

// NewScheduler wires a Step Executor and event sink together.
// maxConcurrentJobs <= 0 means unlimited.
func NewScheduler(executor *runtime.Executor, sink *events.Sink, maxConcurrentJobs int) *Scheduler {
	return &Scheduler{executor: executor, sink: sink, semaphore: NewSemaphore(maxConcurrentJobs)}
}

// Run tracks one in-flight or completed workflow execution.
type Run struct {
	wf *workflow.Workflow

	mu      sync.Mutex
	results map[string]*workflow.JobResult // keyed by jobKey(jobID, matrixKey)
	status  map[string]workflow.Status     // aggregate status per jobID

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Results returns a snapshot of every recorded job instance's result,
// keyed by "<jobID>" (no matrix) or "<jobID>|<matrixKey>".
func (r *Run) Results() map[string]*workflow.JobResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*workflow.JobResult, len(r.results))
	for k, v := range r.results {
		cp := *v
		out[k] = &cp
	}
	return out
}

// Wait blocks until the run finishes. It returns an error naming the
// first job reported as failed, or the context's error if the run was
// cancelled before every job finished; nil otherwise.
func (r *Run) Wait() error {
	<-r.done
	return r.err
}

// Cancel stops the run: in-flight steps observe context cancellation
// and any not-yet-started job or matrix instance is recorded Cancelled.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) recordResult(jobID string, result workflow.JobResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := result
	r.results[jobKey(jobID, result.MatrixKey)] = &cp
}

func (r *Run) setStatus(jobID string, status workflow.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status[jobID] = status
}

func (r *Run) statusOf(jobID string) workflow.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status[jobID]
}

// outputsOf merges the Outputs of every recorded instance of jobID,
// last-instance-wins, for use as that job's `needs.<job>.outputs`.
func (r *Run) outputsOf(jobID string) map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	merged := make(map[string]string)
	for _, res := range r.results {
		if res.JobID != jobID {
			continue
		}
		for k, v := range res.Outputs {
			merged[k] = v
		}
	}
	return merged
}

func jobKey(jobID, matrixKey string) string {
	if matrixKey == "" {
		return jobID
	}
	return jobID + "|" + matrixKey
}

// Schedule starts a run of wf in the background and returns immediately
// with a handle to observe or cancel it. The jobs DAG must already have
// passed internal/validate.Validate — Schedule assumes no cycles and no
// dangling `needs:` references.
func (s *Scheduler) Schedule(ctx context.Context, wf *workflow.Workflow, opts Options) *Run {
	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		wf:      wf,
		results: make(map[string]*workflow.JobResult),
		status:  make(map[string]workflow.Status),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.drive(runCtx, run, wf, opts)
	return run
}

type jobDone struct {
	jobID  string
	status workflow.Status
}

// drive is the single goroutine that owns pending/dependents bookkeeping
// for the whole run; individual jobs execute concurrently in their own
// goroutines (runJob) and report back on results, mirroring
// parallelExecutor.execute's jobs/results channel loop.
func (s *Scheduler) drive(ctx context.Context, run *Run, wf *workflow.Workflow, opts Options) {
	defer close(run.done)
	s.sink.Publish(events.WorkflowStarted(wf.DisplayName()))

	pending := make(map[string]map[string]bool, len(wf.Jobs))
	dependents := make(map[string][]string, len(wf.Jobs))
	for id, job := range wf.Jobs {
		deps := make(map[string]bool, len(job.Needs))
		for _, d := range job.Needs {
			deps[d] = true
			dependents[d] = append(dependents[d], id)
		}
		pending[id] = deps
	}

	total := len(wf.Jobs)
	completed := 0
	results := make(chan jobDone, total)
	launched := make(map[string]bool, total)

	launch := func(id string) {
		if launched[id] {
			return
		}
		launched[id] = true
		go s.runJob(ctx, run, wf, opts, id, results)
	}

	for id, deps := range pending {
		if len(deps) == 0 {
			launch(id)
		}
	}

	var firstErr error
	for completed < total {
		select {
		case done := <-results:
			completed++
			if done.status == workflow.StatusFailure && firstErr == nil {
				firstErr = fmt.Errorf("job %q failed", done.jobID)
			}
			for _, dep := range dependents[done.jobID] {
				delete(pending[dep], done.jobID)
				if len(pending[dep]) == 0 {
					launch(dep)
				}
			}
		case <-ctx.Done():
			for id := range wf.Jobs {
				if !launched[id] {
					run.recordResult(id, workflow.JobResult{JobID: id, Status: workflow.StatusCancelled})
					run.setStatus(id, workflow.StatusCancelled)
				}
			}
			run.err = ctx.Err()
			return
		}
	}

	status := "success"
	if firstErr != nil {
		status = "failure"
	}
	run.err = firstErr
	s.sink.Publish(events.WorkflowFinished(wf.DisplayName(), status))
}

// runJob evaluates the job's `if:` against its needs' outcomes, expands
// its matrix strategy, and fans the resulting instances out under the
// strategy's max-parallel cap, then reports the job's aggregate status
// on results.
func (s *Scheduler) runJob(ctx context.Context, run *Run, wf *workflow.Workflow, opts Options, jobID string, results chan<- jobDone) {
	if !s.semaphore.Acquire(ctx) {
		run.recordResult(jobID, workflow.JobResult{JobID: jobID, Status: workflow.StatusCancelled, StartedAt: time.Now(), EndedAt: time.Now()})
		run.setStatus(jobID, workflow.StatusCancelled)
		results <- jobDone{jobID: jobID, status: workflow.StatusCancelled}
		return
	}
	defer s.semaphore.Release()

	job := wf.Jobs[jobID]

	outcome := expr.JobOutcome{}
	for _, dep := range job.Needs {
		switch run.statusOf(dep) {
		case workflow.StatusFailure:
			outcome.AnyFailed = true
		case workflow.StatusCancelled:
			outcome.AnyCancelled = true
		}
	}

	runnable, err := s.shouldRunJob(job, outcome, run)
	if !runnable || err != nil {
		status := workflow.StatusSkipped
		if err != nil {
			status = workflow.StatusFailure
		}
		run.recordResult(jobID, workflow.JobResult{JobID: jobID, Status: status, StartedAt: time.Now(), EndedAt: time.Now()})
		run.setStatus(jobID, status)
		s.sink.Publish(events.JobStateChanged(jobID, "", string(status)))
		results <- jobDone{jobID: jobID, status: status}
		return
	}

	aggregate := s.runMatrixGroup(ctx, run, opts, jobID, job)
	run.setStatus(jobID, aggregate)
	s.sink.Publish(events.JobStateChanged(jobID, "", string(aggregate)))
	results <- jobDone{jobID: jobID, status: aggregate}
}

// shouldRunJob implements the job-level analogue of a step's `if:`
// default: skip unless every dependency succeeded, unless the job
// declares its own `if:` (most commonly `if: always()`). A Skipped
// dependency must propagate just like a Failure or Cancelled one, since
// none of the three is StatusSuccess.
func (s *Scheduler) shouldRunJob(job *workflow.Job, outcome expr.JobOutcome, run *Run) (bool, error) {
	if job.If == "" {
		for _, dep := range job.Needs {
			if run.statusOf(dep) != workflow.StatusSuccess {
				return false, nil
			}
		}
		return true, nil
	}
	values := map[string]any{"needs": needsContext(job, run)}
	exprCtx := expr.NewContext(values).WithOutcome(outcome)
	return expr.EvaluateBool(expr.StripDelimiters(job.If), exprCtx)
}

func needsContext(job *workflow.Job, run *Run) map[string]any {
	needs := make(map[string]any, len(job.Needs))
	for _, dep := range job.Needs {
		outputs := make(map[string]any)
		for k, v := range run.outputsOf(dep) {
			outputs[k] = v
		}
		needs[dep] = map[string]any{"result": string(run.statusOf(dep)), "outputs": outputs}
	}
	return needs
}
