package expr

import "testing"

func TestEvaluate_Literals(t *testing.T) {
	ctx := NewContext(nil)
	cases := map[string]any{
		"true":    true,
		"false":   false,
		"'hello'": "hello",
		"42":      float64(42),
	}
	for src, want := range cases {
		got, err := Evaluate(src, ctx)
		if err != nil {
			t.Fatalf("%s: %v", src, err)
		}
		if got != want {
			t.Fatalf("%s: got %v, want %v", src, got, want)
		}
	}
}

func TestEvaluate_DottedPath(t *testing.T) {
	ctx := NewContext(map[string]any{
		"matrix": map[string]any{"os": "linux"},
	})
	got, err := Evaluate("matrix.os", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != "linux" {
		t.Fatalf("got %v, want linux", got)
	}
}

func TestEvaluate_MissingPathIsNil(t *testing.T) {
	ctx := NewContext(map[string]any{"matrix": map[string]any{}})
	got, err := Evaluate("matrix.os", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("got %v, want nil", got)
	}
}

func TestEvaluate_Equality(t *testing.T) {
	ctx := NewContext(map[string]any{"matrix": map[string]any{"os": "linux"}})
	got, err := EvaluateBool("matrix.os == 'linux'", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("expected true")
	}
	got, err = EvaluateBool("matrix.os != 'linux'", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatal("expected false")
	}
}

func TestEvaluate_LogicalOperators(t *testing.T) {
	ctx := NewContext(nil)
	got, err := EvaluateBool("true && false", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Fatal("expected false")
	}
	got, err = EvaluateBool("true || false", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("expected true")
	}
	got, err = EvaluateBool("!false", ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Fatal("expected true")
	}
}

func TestEvaluate_StatusFunctions(t *testing.T) {
	ctx := NewContext(nil).WithOutcome(JobOutcome{AnyFailed: true})
	got, err := EvaluateBool("always()", ctx)
	if err != nil || !got {
		t.Fatalf("always() = %v, %v", got, err)
	}
	got, err = EvaluateBool("failure()", ctx)
	if err != nil || !got {
		t.Fatalf("failure() = %v, %v", got, err)
	}
	got, err = EvaluateBool("success()", ctx)
	if err != nil || got {
		t.Fatalf("success() = %v, %v", got, err)
	}
}

func TestEvaluate_AlwaysTrueWhenCancelled(t *testing.T) {
	ctx := NewContext(nil).WithOutcome(JobOutcome{AnyCancelled: true})
	got, err := EvaluateBool("always()", ctx)
	if err != nil || !got {
		t.Fatalf("always() with cancelled predecessor = %v, %v; want true", got, err)
	}
	got, err = EvaluateBool("cancelled()", ctx)
	if err != nil || !got {
		t.Fatalf("cancelled() = %v, %v", got, err)
	}
}

func TestEvaluate_UnsupportedSyntax(t *testing.T) {
	ctx := NewContext(nil)
	_, err := Evaluate("1 + 1", ctx)
	if err == nil {
		t.Fatal("expected error for arithmetic, which is not supported")
	}
	_, err = Evaluate("foo(1, 2)", ctx)
	if err == nil {
		t.Fatal("expected error for a function call with arguments")
	}
}

func TestStripDelimiters(t *testing.T) {
	if got := StripDelimiters("${{ matrix.os == 'linux' }}"); got != "matrix.os == 'linux'" {
		t.Fatalf("got %q", got)
	}
	if got := StripDelimiters("success()"); got != "success()" {
		t.Fatalf("got %q", got)
	}
}
