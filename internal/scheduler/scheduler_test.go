package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/me/ghrun/internal/action"
	"github.com/me/ghrun/internal/runtime"
	"github.com/me/ghrun/pkg/events"
	"github.com/me/ghrun/pkg/workflow"
)

func newTestScheduler(t *testing.T) (*Scheduler, *events.Sink) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sink := events.NewSink()
	resolver := action.NewResolver(t.TempDir(), t.TempDir())
	emulation := runtime.NewEmulationRuntime(logger, sink)
	exec := runtime.NewExecutor(resolver, nil, emulation, sink, runtime.ModeEmulation)
	return NewScheduler(exec, sink, 0), sink
}

func waitForRun(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestSchedule_LinearNeedsOrdering(t *testing.T) {
	s, _ := newTestScheduler(t)
	workspace := t.TempDir()

	wf := &workflow.Workflow{
		Name: "linear",
		Jobs: map[string]*workflow.Job{
			"build": {
				Steps: []workflow.Step{{Run: "echo building"}},
			},
			"test": {
				Needs: workflow.StringList{"build"},
				Steps: []workflow.Step{{Run: "echo testing"}},
			},
		},
	}

	run := s.Schedule(context.Background(), wf, Options{WorkflowName: "linear", Workspace: workspace, TmpDir: t.TempDir()})
	waitForRun(t, run)

	results := run.Results()
	if results["build"] == nil || results["build"].Status != workflow.StatusSuccess {
		t.Fatalf("expected build success, got %+v", results["build"])
	}
	if results["test"] == nil || results["test"].Status != workflow.StatusSuccess {
		t.Fatalf("expected test success, got %+v", results["test"])
	}
	if results["test"].StartedAt.Before(results["build"].EndedAt) {
		t.Fatalf("test started at %v, before build ended at %v", results["test"].StartedAt, results["build"].EndedAt)
	}
}

func TestSchedule_FailurePropagatesSkip(t *testing.T) {
	s, _ := newTestScheduler(t)
	workspace := t.TempDir()

	wf := &workflow.Workflow{
		Name: "propagate",
		Jobs: map[string]*workflow.Job{
			"build": {
				Steps: []workflow.Step{{Run: "exit 1"}},
			},
			"deploy": {
				Needs: workflow.StringList{"build"},
				Steps: []workflow.Step{{Run: "echo deploying"}},
			},
		},
	}

	run := s.Schedule(context.Background(), wf, Options{WorkflowName: "propagate", Workspace: workspace, TmpDir: t.TempDir()})
	waitForRun(t, run)

	results := run.Results()
	if results["build"].Status != workflow.StatusFailure {
		t.Fatalf("expected build failure, got %v", results["build"].Status)
	}
	if results["deploy"].Status != workflow.StatusSkipped {
		t.Fatalf("expected deploy skipped, got %v", results["deploy"].Status)
	}
}

func TestSchedule_FailurePropagatesSkipTransitively(t *testing.T) {
	s, _ := newTestScheduler(t)
	workspace := t.TempDir()

	wf := &workflow.Workflow{
		Name: "propagate-transitive",
		Jobs: map[string]*workflow.Job{
			"a": {
				Steps: []workflow.Step{{Run: "exit 1"}},
			},
			"b": {
				Needs: workflow.StringList{"a"},
				Steps: []workflow.Step{{Run: "echo b"}},
			},
			"c": {
				Needs: workflow.StringList{"b"},
				Steps: []workflow.Step{{Run: "echo c"}},
			},
		},
	}

	run := s.Schedule(context.Background(), wf, Options{WorkflowName: "propagate-transitive", Workspace: workspace, TmpDir: t.TempDir()})
	waitForRun(t, run)

	results := run.Results()
	if results["a"].Status != workflow.StatusFailure {
		t.Fatalf("expected a failure, got %v", results["a"].Status)
	}
	if results["b"].Status != workflow.StatusSkipped {
		t.Fatalf("expected b skipped, got %v", results["b"].Status)
	}
	if results["c"].Status != workflow.StatusSkipped {
		t.Fatalf("expected c skipped (transitively), got %v", results["c"].Status)
	}
}

func TestSchedule_MatrixFanOut(t *testing.T) {
	s, _ := newTestScheduler(t)
	workspace := t.TempDir()

	wf := &workflow.Workflow{
		Name: "matrix",
		Jobs: map[string]*workflow.Job{
			"build": {
				Strategy: &workflow.Strategy{
					Matrix: &workflow.MatrixStrategy{
						Axes:      map[string][]any{"os": {"linux", "darwin"}},
						AxisOrder: []string{"os"},
					},
				},
				Steps: []workflow.Step{{Run: "echo ${{ matrix.os }}"}},
			},
		},
	}

	run := s.Schedule(context.Background(), wf, Options{WorkflowName: "matrix", Workspace: workspace, TmpDir: t.TempDir()})
	waitForRun(t, run)

	results := run.Results()
	count := 0
	for key, res := range results {
		if res.JobID == "build" {
			count++
			if res.Status != workflow.StatusSuccess {
				t.Fatalf("instance %s: expected success, got %v", key, res.Status)
			}
		}
	}
	if count != 2 {
		t.Fatalf("expected 2 matrix instances, got %d", count)
	}
}
