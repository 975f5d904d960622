package cleanup

import (
	"context"
	"errors"
	"testing"
)

func TestRegistry_DrainReverseOrder(t *testing.T) {
	r := NewRegistry()
	var order []string
	for _, id := range []string{"a", "b", "c"} {
		id := id
		r.Add(Handle{Kind: KindContainer, ID: id, Close: func(context.Context) error {
			order = append(order, id)
			return nil
		}})
	}
	if errs := r.Drain(context.Background()); len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	want := []string{"c", "b", "a"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("got order %v, want %v", order, want)
		}
	}
	if r.Len() != 0 {
		t.Fatalf("expected registry empty after drain, got %d", r.Len())
	}
}

func TestRegistry_RemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	called := 0
	r.Add(Handle{Kind: KindVolume, ID: "v1", Close: func(context.Context) error {
		called++
		return nil
	}})
	r.Remove("v1")
	r.Remove("v1")
	r.Drain(context.Background())
	if called != 0 {
		t.Fatalf("expected Close not called after Remove, got %d calls", called)
	}
}

func TestRegistry_DrainIsBestEffort(t *testing.T) {
	r := NewRegistry()
	r.Add(Handle{Kind: KindNetwork, ID: "n1", Close: func(context.Context) error {
		return errors.New("boom")
	}})
	r.Add(Handle{Kind: KindNetwork, ID: "n2", Close: func(context.Context) error {
		return nil
	}})
	errs := r.Drain(context.Background())
	if len(errs) != 1 {
		t.Fatalf("expected exactly 1 error, got %v", errs)
	}
}

func TestRegistry_DrainSurvivesPanicMidRunSimulation(t *testing.T) {
	r := NewRegistry()
	cleaned := false
	r.Add(Handle{Kind: KindContainer, ID: "c1", Close: func(context.Context) error {
		cleaned = true
		return nil
	}})

	func() {
		defer func() { recover() }()
		panic("simulated mid-run panic")
	}()

	r.Drain(context.Background())
	if !cleaned {
		t.Fatal("expected cleanup to still run after a recovered panic")
	}
}
