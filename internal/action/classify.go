package action

import (
	"strings"

	"github.com/me/ghrun/pkg/workflow"
)

// Classify parses a raw `uses:` string into a workflow.ActionRef per
// spec.md §4.4's decision table: `actions/checkout@*` is a built-in,
// `./path` is local, `docker://image` is a container image, and
// anything else matching `owner/repo[/subpath]@ref` is remote.
func Classify(raw string) workflow.ActionRef {
	ref := workflow.ActionRef{Raw: raw}

	switch {
	case strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "../"):
		ref.Kind = workflow.KindLocal
		ref.Path = raw
		return ref
	case strings.HasPrefix(raw, "docker://"):
		ref.Kind = workflow.KindDocker
		ref.Image = strings.TrimPrefix(raw, "docker://")
		return ref
	case strings.HasPrefix(raw, "actions/checkout@"):
		ref.Kind = workflow.KindBuiltin
		ref.Ref = raw[strings.LastIndex(raw, "@")+1:]
		return ref
	}

	body := raw
	refPart := ""
	if idx := strings.LastIndex(raw, "@"); idx >= 0 {
		body = raw[:idx]
		refPart = raw[idx+1:]
	}
	segments := strings.SplitN(body, "/", 3)
	ref.Kind = workflow.KindRemote
	ref.Ref = refPart
	if len(segments) >= 1 {
		ref.Owner = segments[0]
	}
	if len(segments) >= 2 {
		ref.Repo = segments[1]
	}
	if len(segments) == 3 {
		ref.SubPath = segments[2]
	}
	return ref
}
