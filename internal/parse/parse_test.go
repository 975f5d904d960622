package parse

import (
	"io"
	"log/slog"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFile_ValidWorkflow(t *testing.T) {
	doc := `
name: ci
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hi
  test:
    needs: build
    steps:
      - run: echo testing
`
	wf, err := New(testLogger()).File([]byte(doc), "ci.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Name != "ci" {
		t.Errorf("Name = %q, want %q", wf.Name, "ci")
	}
	if len(wf.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(wf.Jobs))
	}
	if got := wf.Jobs["test"].Needs; len(got) != 1 || got[0] != "build" {
		t.Errorf("test.needs = %v, want [build]", got)
	}
}

func TestFile_MissingJobs(t *testing.T) {
	_, err := New(testLogger()).File([]byte("name: empty\n"), "empty.yml")
	if err == nil {
		t.Fatal("expected an error for a workflow with no jobs")
	}
	if !strings.Contains(err.Error(), "no jobs defined") {
		t.Errorf("error = %v, want it to mention missing jobs", err)
	}
}

func TestFile_MalformedYAML(t *testing.T) {
	_, err := New(testLogger()).File([]byte("jobs: [this is not a mapping"), "broken.yml")
	if err == nil {
		t.Fatal("expected a parse error for malformed YAML")
	}
}

func TestFile_PathFallback(t *testing.T) {
	doc := "jobs:\n  build:\n    steps:\n      - run: echo hi\n"
	wf, err := New(testLogger()).File([]byte(doc), "/abs/path/to/ci.yml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wf.Path != "ci.yml" {
		t.Errorf("Path = %q, want %q", wf.Path, "ci.yml")
	}
	if wf.DisplayName() != "ci.yml" {
		t.Errorf("DisplayName() = %q, want %q", wf.DisplayName(), "ci.yml")
	}
}
