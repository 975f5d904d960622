package validate

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/me/ghrun/pkg/workflow"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestValidate_ValidWorkflow(t *testing.T) {
	wf := &workflow.Workflow{
		Jobs: map[string]*workflow.Job{
			"build": {Steps: []workflow.Step{{Run: "echo hi"}}},
			"test":  {Needs: workflow.StringList{"build"}, Steps: []workflow.Step{{Run: "echo testing"}}},
		},
	}
	warnings, err := New(testLogger()).Validate(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
}

func TestValidate_UnknownNeeds(t *testing.T) {
	wf := &workflow.Workflow{
		Jobs: map[string]*workflow.Job{
			"test": {Needs: workflow.StringList{"build"}, Steps: []workflow.Step{{Run: "echo testing"}}},
		},
	}
	_, err := New(testLogger()).Validate(wf)
	if err == nil {
		t.Fatal("expected an error for a dangling needs: reference")
	}
}

func TestValidate_ReusableInputs_UnresolvableCalleeWarns(t *testing.T) {
	wf := &workflow.Workflow{
		Jobs: map[string]*workflow.Job{
			"call": {
				Uses: "./.github/workflows/does-not-exist.yml",
				With: map[string]any{"env": "prod"},
			},
		},
	}
	warnings, err := New(testLogger()).Validate(wf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %v", warnings)
	}
	if warnings[0].Severity != workflow.SeverityWarning {
		t.Errorf("expected SeverityWarning, got %v", warnings[0].Severity)
	}
}

func TestValidate_ReusableInputs_UndeclaredInputErrors(t *testing.T) {
	dir := t.TempDir()
	calleePath := filepath.Join(dir, "callee.yml")
	calleeDoc := `
on:
  workflow_call:
    inputs:
      env:
        required: true
jobs:
  deploy:
    steps:
      - run: echo deploy
`
	if err := os.WriteFile(calleePath, []byte(calleeDoc), 0o644); err != nil {
		t.Fatal(err)
	}

	wf := &workflow.Workflow{
		Jobs: map[string]*workflow.Job{
			"call": {
				// checkReusableInputs only treats "./" and "../" prefixed
				// uses as local, so reference the callee relative to the
				// temp dir this test os.Chdir's into below.
				Uses: "./" + filepath.Base(calleePath),
				With: map[string]any{"env": "prod", "region": "us-east-1"},
			},
		},
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	warnings, verr := New(testLogger()).Validate(wf)
	if len(warnings) != 0 {
		t.Errorf("expected no warnings, got %v", warnings)
	}
	if verr == nil {
		t.Fatal("expected an error for an undeclared with: key")
	}
	found := false
	for _, fe := range verr.Errors {
		if fe.Path == "jobs.call.with.region" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an error naming jobs.call.with.region, got %v", verr.Errors)
	}
}
