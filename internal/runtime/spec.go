package runtime

import "context"

// StepSpec is the fully-resolved invocation for one step: the shell or
// action command to run, its environment, and (for container-backed
// steps) the image to run it in.
type StepSpec struct {
	JobID     string
	MatrixKey string
	StepIndex int
	StepName  string
	// RunID identifies the whole workflow run, used by ContainerRuntime
	// to key the one bridge network and volume shared by every
	// container of the run.
	RunID string

	Argv       []string
	Env        map[string]string
	WorkingDir string

	// Image is set only when the step runs inside a container.
	Image string
	// ActionDir is the resolved action tree bind-mounted to
	// /github/action for Docker and JavaScript actions; empty for run:
	// steps.
	ActionDir string
}

// StepOutcome is what a Runtime reports after a step's process exits.
type StepOutcome struct {
	ExitCode int
}

// Runtime executes one StepSpec to completion, streaming its output
// through the configured log sink, and returns the process's exit
// code. Implemented by ContainerRuntime (internal/runtime/container.go)
// and EmulationRuntime (internal/runtime/emulate.go).
type Runtime interface {
	Run(ctx context.Context, spec StepSpec) (StepOutcome, error)
}
