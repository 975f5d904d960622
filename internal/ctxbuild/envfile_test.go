package ctxbuild

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "envfile")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParseKeyValueFile_SimpleAssignment(t *testing.T) {
	path := writeTemp(t, "FOO=bar\nBAZ=qux\n")
	got, err := ParseKeyValueFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got["FOO"] != "bar" || got["BAZ"] != "qux" {
		t.Fatalf("got %v", got)
	}
}

func TestParseKeyValueFile_Heredoc(t *testing.T) {
	path := writeTemp(t, "MULTI<<EOF\nline one\nline two\nEOF\n")
	got, err := ParseKeyValueFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got["MULTI"] != "line one\nline two" {
		t.Fatalf("got %q", got["MULTI"])
	}
}

func TestParseKeyValueFile_LastKeyWins(t *testing.T) {
	path := writeTemp(t, "FOO=first\nFOO=second\n")
	got, err := ParseKeyValueFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got["FOO"] != "second" {
		t.Fatalf("got %q, want second", got["FOO"])
	}
}

func TestParseKeyValueFile_UnterminatedHeredoc(t *testing.T) {
	path := writeTemp(t, "MULTI<<EOF\nline one\n")
	if _, err := ParseKeyValueFile(path); err == nil {
		t.Fatal("expected error for unterminated heredoc")
	}
}

func TestParsePathFile_Order(t *testing.T) {
	path := writeTemp(t, "/usr/local/bin\n/opt/tool/bin\n")
	got, err := ParsePathFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/usr/local/bin", "/opt/tool/bin"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestKeyValueRoundTrip(t *testing.T) {
	original := map[string]string{"FOO": "bar", "MULTI": "line one\nline two"}
	serialized := SerializeKeyValueFile(original)
	path := writeTemp(t, serialized)
	got, err := ParseKeyValueFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got["FOO"] != "bar" || got["MULTI"] != "line one\nline two" {
		t.Fatalf("round trip mismatch: %v", got)
	}
}
