// Package parse converts raw workflow YAML files into the typed
// pkg/workflow model.
package parse

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/me/ghrun/pkg/workflow"
)

// Parser decodes workflow YAML files. Grounded on the teacher's
// internal/parser.Parser constructor shape (a logger-carrying decoder
// with a small typed API), but the decode itself goes straight to
// tagged structs rather than a raw map, since a workflow file's schema
// is fixed and does not need the teacher's `$graph`/`$import`
// resolution step.
type Parser struct {
	logger *slog.Logger
}

// New creates a Parser with the given logger.
func New(logger *slog.Logger) *Parser {
	return &Parser{logger: logger.With("component", "parse")}
}

// File parses a workflow document read from path. path is retained as
// Workflow.Path, the display-name fallback when `name:` is absent.
func (p *Parser) File(data []byte, path string) (*workflow.Workflow, error) {
	var wf workflow.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	wf.Path = filepath.Base(path)
	if wf.Jobs == nil {
		return nil, fmt.Errorf("parse %s: no jobs defined", path)
	}
	p.logger.Debug("parsed workflow", "path", path, "jobs", len(wf.Jobs))
	return &wf, nil
}
