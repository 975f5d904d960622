package validate

import (
	"sort"

	"github.com/me/ghrun/pkg/workflow"
)

// color marks a node's DFS visitation state.
type color int

const (
	white color = iota
	grey
	black
)

// TopoOrder returns a topological ordering of job ids by `needs:`
// edges, or a *workflow.CycleError naming the exact cycle. Grounded on
// internal/parser/dag.go's Kahn's-algorithm cycle detector, adapted to
// an explicit DFS grey/black walk: Kahn's algorithm can only report
// "these nodes never reached indegree zero", not the specific cycle
// path, and spec.md requires the error to name the cycle.
func TopoOrder(wf *workflow.Workflow) ([]string, error) {
	ids := make([]string, 0, len(wf.Jobs))
	for id := range wf.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	colors := make(map[string]color, len(ids))
	var order []string
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch colors[id] {
		case black:
			return nil
		case grey:
			start := 0
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			cycle := append(append([]string(nil), stack[start:]...), id)
			return &workflow.CycleError{Cycle: cycle}
		}
		colors[id] = grey
		stack = append(stack, id)

		job := wf.Jobs[id]
		if job != nil {
			needs := append([]string(nil), job.Needs...)
			sort.Strings(needs)
			for _, dep := range needs {
				if _, ok := wf.Jobs[dep]; !ok {
					continue // reported separately by checkNeedsReferences
				}
				if err := visit(dep); err != nil {
					return err
				}
			}
		}

		stack = stack[:len(stack)-1]
		colors[id] = black
		order = append(order, id)
		return nil
	}

	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	return order, nil
}
