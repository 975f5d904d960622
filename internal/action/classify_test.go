package action

import (
	"testing"

	"github.com/me/ghrun/pkg/workflow"
)

func TestClassify_Local(t *testing.T) {
	ref := Classify("./my-action")
	if ref.Kind != workflow.KindLocal || ref.Path != "./my-action" {
		t.Fatalf("got %+v", ref)
	}
}

func TestClassify_Docker(t *testing.T) {
	ref := Classify("docker://alpine:3.19")
	if ref.Kind != workflow.KindDocker || ref.Image != "alpine:3.19" {
		t.Fatalf("got %+v", ref)
	}
}

func TestClassify_Builtin(t *testing.T) {
	ref := Classify("actions/checkout@v4")
	if ref.Kind != workflow.KindBuiltin || ref.Ref != "v4" {
		t.Fatalf("got %+v", ref)
	}
}

func TestClassify_Remote(t *testing.T) {
	ref := Classify("actions/setup-node@v4")
	if ref.Kind != workflow.KindRemote || ref.Owner != "actions" || ref.Repo != "setup-node" || ref.Ref != "v4" {
		t.Fatalf("got %+v", ref)
	}
}

func TestClassify_RemoteWithSubPath(t *testing.T) {
	ref := Classify("owner/repo/sub/path@v1.2.3")
	if ref.Kind != workflow.KindRemote || ref.SubPath != "sub/path" || ref.Ref != "v1.2.3" {
		t.Fatalf("got %+v", ref)
	}
}
