package runtime

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/me/ghrun/pkg/events"
)

// EmulationRuntime runs steps as local OS processes: a drop-in
// substitute for `run:` steps and JavaScript actions when no Docker
// daemon is configured. Directly generalizes
// internal/executor/local.go's LocalExecutor.submitLegacy (spawn via
// exec.CommandContext, capture stdout/stderr, map exit code to a
// result) from "one CWL base-command" to "one step's selected shell
// invocation".
type EmulationRuntime struct {
	logger *slog.Logger
	sink   *events.Sink
}

// NewEmulationRuntime creates an EmulationRuntime publishing log lines
// to sink.
func NewEmulationRuntime(logger *slog.Logger, sink *events.Sink) *EmulationRuntime {
	return &EmulationRuntime{logger: logger.With("component", "emulation-runtime"), sink: sink}
}

// Run spawns spec.Argv as a local process. A KindDocker action must
// never reach this runtime; callers are expected to have already
// routed it to ContainerRuntime, and Run itself has no way to tell a
// Docker action apart from a plain run: step at this layer, so that
// check belongs to the Step Executor (internal/runtime/executor.go),
// not here.
func (r *EmulationRuntime) Run(ctx context.Context, spec StepSpec) (StepOutcome, error) {
	if len(spec.Argv) == 0 {
		return StepOutcome{}, &ErrNoShellAvailable{}
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.WorkingDir
	cmd.Env = envSlice(spec.Env)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return StepOutcome{}, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return StepOutcome{}, err
	}

	if err := cmd.Start(); err != nil {
		return StepOutcome{}, err
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.streamLines(&wg, spec, "stdout", stdout)
	go r.streamLines(&wg, spec, "stderr", stderr)
	wg.Wait()

	runErr := cmd.Wait()
	exitCode := 0
	switch e := runErr.(type) {
	case nil:
		exitCode = 0
	case *exec.ExitError:
		exitCode = e.ExitCode()
	default:
		if ctx.Err() != nil {
			return StepOutcome{}, &Cancelled{StepName: spec.StepName}
		}
		return StepOutcome{}, runErr
	}
	return StepOutcome{ExitCode: exitCode}, nil
}

func (r *EmulationRuntime) streamLines(wg *sync.WaitGroup, spec StepSpec, stream string, reader io.Reader) {
	defer wg.Done()
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		r.sink.Publish(events.NewLogLine(spec.JobID, spec.MatrixKey, spec.StepIndex, stream, scanner.Text()))
	}
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
