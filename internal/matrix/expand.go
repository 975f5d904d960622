// Package matrix expands a job's `strategy.matrix` block into the
// concrete set of MatrixRows that back its per-combination job
// instances.
package matrix

import (
	"fmt"
	"sort"
	"strings"

	"github.com/me/ghrun/pkg/workflow"
)

// Expand computes the full set of matrix rows for strategy: cross
// product of declared axes in declaration order, exclude rows removed,
// then include rows merged into a matching existing row or appended as
// a new one. A nil strategy or nil matrix yields a single empty row, so
// callers can always treat a job as matrix-shaped.
//
// Grounded on internal/cwlrunner/scatter.go's flatCrossProduct: the
// same "expand one axis at a time against the accumulated combination
// list" shape, generalized from scattering over input array values to
// crossing declared matrix axis values.
func Expand(strategy *workflow.MatrixStrategy) []workflow.MatrixRow {
	if strategy == nil {
		return []workflow.MatrixRow{{}}
	}
	rows := crossProduct(strategy)
	rows = applyExclude(rows, strategy.Exclude)
	rows = applyInclude(rows, strategy.Include, strategy.AxisOrder)
	return rows
}

func crossProduct(strategy *workflow.MatrixStrategy) []workflow.MatrixRow {
	if len(strategy.AxisOrder) == 0 {
		return []workflow.MatrixRow{{}}
	}
	combinations := []workflow.MatrixRow{{}}
	for _, axis := range strategy.AxisOrder {
		values := strategy.Axes[axis]
		var expanded []workflow.MatrixRow
		for _, combo := range combinations {
			for _, v := range values {
				next := copyRow(combo)
				next[axis] = v
				expanded = append(expanded, next)
			}
		}
		combinations = expanded
	}
	return combinations
}

func applyExclude(rows []workflow.MatrixRow, exclude []map[string]any) []workflow.MatrixRow {
	if len(exclude) == 0 {
		return rows
	}
	var kept []workflow.MatrixRow
	for _, row := range rows {
		excluded := false
		for _, ex := range exclude {
			if rowMatches(row, ex) {
				excluded = true
				break
			}
		}
		if !excluded {
			kept = append(kept, row)
		}
	}
	return kept
}

// rowMatches reports whether every key of subset is present in row with
// an equal value.
func rowMatches(row workflow.MatrixRow, subset map[string]any) bool {
	for k, v := range subset {
		rv, ok := row[k]
		if !ok || fmt.Sprint(rv) != fmt.Sprint(v) {
			return false
		}
	}
	return true
}

// applyInclude merges each include row into every existing row whose
// declared-axis values it's a subset-match for, or appends it as a new
// row when nothing matches. When an include row supplies a key an
// existing row already has, the include's value wins (later includes
// override earlier merges, per the matrix Open Question decision
// recorded in DESIGN.md).
func applyInclude(rows []workflow.MatrixRow, include []map[string]any, axisOrder []string) []workflow.MatrixRow {
	if len(include) == 0 {
		return rows
	}
	declared := make(map[string]bool, len(axisOrder))
	for _, a := range axisOrder {
		declared[a] = true
	}

	for _, inc := range include {
		axisSubset := make(map[string]any)
		for k, v := range inc {
			if declared[k] {
				axisSubset[k] = v
			}
		}

		matched := false
		for i, row := range rows {
			if len(axisSubset) > 0 && rowMatches(row, axisSubset) {
				merged := copyRow(row)
				for k, v := range inc {
					merged[k] = v
				}
				rows[i] = merged
				matched = true
			}
		}
		if !matched {
			rows = append(rows, workflow.MatrixRow(copyRow(inc)))
		}
	}
	return rows
}

func copyRow(row map[string]any) workflow.MatrixRow {
	out := make(workflow.MatrixRow, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

// JobIDFor builds the display id for a matrix job instance:
// "<id> (<axis1>=v1, <axis2>=v2)" in declared axis order. Extra keys
// introduced by an include row (not part of AxisOrder) are appended
// after the declared axes, sorted for determinism.
func JobIDFor(baseID string, row workflow.MatrixRow, axisOrder []string) string {
	if len(row) == 0 {
		return baseID
	}
	seen := make(map[string]bool, len(axisOrder))
	parts := make([]string, 0, len(row))
	for _, axis := range axisOrder {
		if v, ok := row[axis]; ok {
			parts = append(parts, fmt.Sprintf("%s=%v", axis, v))
			seen[axis] = true
		}
	}
	var extra []string
	for k := range row {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	for _, k := range extra {
		parts = append(parts, fmt.Sprintf("%s=%v", k, row[k]))
	}
	return fmt.Sprintf("%s (%s)", baseID, strings.Join(parts, ", "))
}
