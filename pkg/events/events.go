// Package events defines the run-progress event stream emitted by the
// scheduler and consumed by the CLI's terminal writer and the optional
// SSE transport.
package events

import "time"

// Kind identifies the shape of an Event's payload.
type Kind string

const (
	KindWorkflowStarted  Kind = "WorkflowStarted"
	KindJobStateChanged  Kind = "JobStateChanged"
	KindStepStateChanged Kind = "StepStateChanged"
	KindLogLine          Kind = "LogLine"
	KindWorkflowFinished Kind = "WorkflowFinished"
)

// Event is a single tagged-union point on the run's timeline. Only the
// fields relevant to Kind are populated.
type Event struct {
	Kind      Kind      `json:"kind"`
	Time      time.Time `json:"time"`
	Workflow  string    `json:"workflow,omitempty"`
	JobID     string    `json:"job_id,omitempty"`
	MatrixKey string    `json:"matrix_key,omitempty"`
	StepIndex int       `json:"step_index,omitempty"`
	StepName  string    `json:"step_name,omitempty"`
	Stream    string    `json:"stream,omitempty"` // "stdout" | "stderr", for KindLogLine
	Line      string    `json:"line,omitempty"`
	Status    string    `json:"status,omitempty"` // "success" | "failure" | "cancelled" | "skipped" | "running"
}

// WorkflowStarted builds a KindWorkflowStarted event.
func WorkflowStarted(workflow string) Event {
	return Event{Kind: KindWorkflowStarted, Workflow: workflow}
}

// JobStateChanged builds a KindJobStateChanged event.
func JobStateChanged(jobID, matrixKey, status string) Event {
	return Event{Kind: KindJobStateChanged, JobID: jobID, MatrixKey: matrixKey, Status: status}
}

// StepStateChanged builds a KindStepStateChanged event.
func StepStateChanged(jobID, matrixKey string, stepIndex int, stepName, status string) Event {
	return Event{Kind: KindStepStateChanged, JobID: jobID, MatrixKey: matrixKey, StepIndex: stepIndex, StepName: stepName, Status: status}
}

// NewLogLine builds a KindLogLine event.
func NewLogLine(jobID, matrixKey string, stepIndex int, stream, line string) Event {
	return Event{Kind: KindLogLine, JobID: jobID, MatrixKey: matrixKey, StepIndex: stepIndex, Stream: stream, Line: line}
}

// WorkflowFinished builds a KindWorkflowFinished event.
func WorkflowFinished(workflow, status string) Event {
	return Event{Kind: KindWorkflowFinished, Workflow: workflow, Status: status}
}
