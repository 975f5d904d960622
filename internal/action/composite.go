package action

import (
	"context"
	"fmt"
)

// frame is one level of composite-action resolution: the action source
// string that produced it (used to name a detected cycle).
type frame struct {
	source string
}

// resolveComposite expands resolved's manifest if it's a composite
// action, recursing into each nested step's own `uses:`. stack carries
// the chain of sources visited so far purely for cycle detection:
// composite actions, unlike this corpus's CWL subworkflows which
// cannot cycle by construction, can reference each other in a loop,
// and that loop must be caught before it recurses forever.
func (r *Resolver) resolveComposite(ctx context.Context, resolved *ResolvedAction, stack []frame) (*ResolvedAction, error) {
	if resolved.Manifest == nil || resolved.Manifest.Runs.Kind() != RunsComposite {
		return resolved, nil
	}

	for _, f := range stack {
		if f.source == resolved.Ref.Raw {
			chain := make([]string, 0, len(stack)+1)
			for _, fr := range stack {
				chain = append(chain, fr.source)
			}
			chain = append(chain, resolved.Ref.Raw)
			return nil, &ErrCompositeCycle{Chain: chain}
		}
	}
	stack = append(stack, frame{source: resolved.Ref.Raw})

	for i, step := range resolved.Manifest.Runs.Steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("composite action %q cancelled at step %d: %w", resolved.Ref.Raw, i, err)
		}
		if !step.IsUses() {
			continue
		}
		nestedRef := Classify(step.Uses)
		for _, f := range stack {
			if f.source == nestedRef.Raw {
				chain := make([]string, 0, len(stack)+1)
				for _, fr := range stack {
					chain = append(chain, fr.source)
				}
				return nil, &ErrCompositeCycle{Chain: append(chain, nestedRef.Raw)}
			}
		}
		nested, err := r.resolveNestedRef(ctx, resolved, nestedRef)
		if err != nil {
			return nil, fmt.Errorf("composite action %q step %d: %w", resolved.Ref.Raw, i, err)
		}
		if _, err := r.resolveComposite(ctx, nested, stack); err != nil {
			return nil, err
		}
	}
	return resolved, nil
}
