// Package action resolves a workflow.ActionRef to a concrete action on
// disk — local, remote-fetched, Docker-image, or a built-in — and
// parses its action.yml manifest, including recursive composite-action
// resolution.
package action

import (
	"strings"

	"github.com/me/ghrun/pkg/workflow"
)

// RunsKind classifies an action.yml's `runs.using`.
type RunsKind int

const (
	RunsUnknown RunsKind = iota
	RunsJavaScript
	RunsDocker
	RunsComposite
)

// ActionInput describes one `inputs.<name>` entry of action.yml.
type ActionInput struct {
	Description string `yaml:"description"`
	Required    bool   `yaml:"required"`
	Default     string `yaml:"default"`
}

// ActionOutput describes one `outputs.<name>` entry of action.yml.
type ActionOutput struct {
	Description string `yaml:"description"`
	Value       string `yaml:"value"`
}

// RunsBlock is action.yml's `runs:` block.
type RunsBlock struct {
	Using      string            `yaml:"using"`
	Main       string            `yaml:"main"`
	Image      string            `yaml:"image"`
	Entrypoint string            `yaml:"entrypoint"`
	Args       []string          `yaml:"args"`
	Env        map[string]string `yaml:"env"`
	Steps      []workflow.Step   `yaml:"steps"`
}

// Kind returns the RunsKind implied by Using. Any node* runtime
// (node12, node16, node18, node20, or bare "node") is JavaScript;
// GitHub has shipped several over the years and older actions still
// declare the older ones.
func (r RunsBlock) Kind() RunsKind {
	switch {
	case r.Using == "node" || strings.HasPrefix(r.Using, "node"):
		return RunsJavaScript
	case r.Using == "docker":
		return RunsDocker
	case r.Using == "composite":
		return RunsComposite
	default:
		return RunsUnknown
	}
}

// ActionManifest is action.yml/action.yaml, parsed.
type ActionManifest struct {
	Name    string                  `yaml:"name"`
	Inputs  map[string]ActionInput  `yaml:"inputs"`
	Outputs map[string]ActionOutput `yaml:"outputs"`
	Runs    RunsBlock               `yaml:"runs"`
}

// ResolvedAction is the output of Resolve: a local directory on disk
// (or, for KindDocker refs, just an image reference) ready to execute.
type ResolvedAction struct {
	Ref      workflow.ActionRef
	Dir      string // local filesystem path, empty for KindDocker
	Manifest *ActionManifest
}
