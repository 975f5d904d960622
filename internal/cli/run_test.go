package cli

import (
	"testing"

	"github.com/me/ghrun/pkg/workflow"
)

func TestFilterJobs(t *testing.T) {
	tests := []struct {
		name  string
		jobID string
		want  []string
	}{
		{name: "leaf keeps only itself", jobID: "build", want: []string{"build"}},
		{name: "keeps transitive needs", jobID: "deploy", want: []string{"build", "test", "deploy"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wf := &workflow.Workflow{
				Jobs: map[string]*workflow.Job{
					"build":  {},
					"test":   {Needs: workflow.StringList{"build"}},
					"deploy": {Needs: workflow.StringList{"test"}},
				},
			}
			filterJobs(wf, tt.jobID)
			if len(wf.Jobs) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d: %v", len(wf.Jobs), len(tt.want), wf.Jobs)
			}
			for _, id := range tt.want {
				if _, ok := wf.Jobs[id]; !ok {
					t.Errorf("expected job %q to survive filtering", id)
				}
			}
		})
	}
}

func TestApplyMaxParallelOverride(t *testing.T) {
	wf := &workflow.Workflow{
		Jobs: map[string]*workflow.Job{
			"a": {},
			"b": {Strategy: &workflow.Strategy{MaxParallel: 1}},
		},
	}
	applyMaxParallelOverride(wf, 4)

	for id, job := range wf.Jobs {
		if job.Strategy == nil || job.Strategy.MaxParallel != 4 {
			t.Errorf("job %q: expected max-parallel overridden to 4, got %+v", id, job.Strategy)
		}
	}
}

func TestJobLabel(t *testing.T) {
	if got := jobLabel("build", ""); got != "build" {
		t.Errorf("jobLabel with no matrix key = %q, want %q", got, "build")
	}
	if got := jobLabel("build", "os=linux"); got != "build (os=linux)" {
		t.Errorf("jobLabel with matrix key = %q, want %q", got, "build (os=linux)")
	}
}
