package action

import (
	"context"
	"errors"
	"testing"

	"github.com/me/ghrun/pkg/workflow"
)

func TestResolveComposite_DetectsSelfCycle(t *testing.T) {
	r := &Resolver{}
	resolved := &ResolvedAction{
		Ref: workflow.ActionRef{Raw: "./loop"},
		Manifest: &ActionManifest{
			Runs: RunsBlock{
				Using: "composite",
				Steps: []workflow.Step{{Uses: "./loop"}},
			},
		},
		Dir: "/tmp/loop",
	}
	_, err := r.resolveComposite(context.Background(), resolved, nil)
	var cycleErr *ErrCompositeCycle
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected ErrCompositeCycle, got %v", err)
	}
}

func TestResolveComposite_NonCompositePassesThrough(t *testing.T) {
	r := &Resolver{}
	resolved := &ResolvedAction{
		Ref:      workflow.ActionRef{Raw: "./simple"},
		Manifest: &ActionManifest{Runs: RunsBlock{Using: "node20"}},
	}
	got, err := r.resolveComposite(context.Background(), resolved, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != resolved {
		t.Fatal("expected same ResolvedAction returned unchanged")
	}
}

func TestRunsBlockKind(t *testing.T) {
	cases := map[string]RunsKind{
		"node16":    RunsJavaScript,
		"node20":    RunsJavaScript,
		"docker":    RunsDocker,
		"composite": RunsComposite,
		"":          RunsUnknown,
	}
	for using, want := range cases {
		got := RunsBlock{Using: using}.Kind()
		if got != want {
			t.Fatalf("%q: got %v, want %v", using, got, want)
		}
	}
}
