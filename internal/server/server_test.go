package server

import (
	"bufio"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/me/ghrun/pkg/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleEvents_UnknownRun(t *testing.T) {
	s := New(testLogger())
	ts := httptest.NewServer(s)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs/nope/events")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHandleEvents_StreamsUntilFinished(t *testing.T) {
	s := New(testLogger())
	sink := events.NewSink()
	s.Register("run-1", sink)
	defer s.Unregister("run-1")

	ts := httptest.NewServer(s)
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/runs/run-1/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	// Give the handler a moment to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	sink.Publish(events.JobStateChanged("build", "", "running"))
	sink.Publish(events.WorkflowFinished("demo", "success"))

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if strings.HasPrefix(line, "event: WorkflowFinished") {
			break
		}
	}
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "event: JobStateChanged") {
		t.Fatalf("expected a JobStateChanged event, got:\n%s", joined)
	}
	if !strings.Contains(joined, "event: WorkflowFinished") {
		t.Fatalf("expected a WorkflowFinished event, got:\n%s", joined)
	}
}
