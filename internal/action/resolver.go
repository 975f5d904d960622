package action

import (
	"context"

	"github.com/me/ghrun/pkg/workflow"
)

// Resolver resolves ActionRefs, caching remote fetches under a single
// on-disk cache directory for the process lifetime.
type Resolver struct {
	cacheDir   string
	builtinDir string // directory containing local sources, used to resolve KindLocal refs
}

// NewResolver creates a Resolver rooted at cacheDir (see CacheDir) for
// remote fetches, and builtinDir as the base for resolving `./path`
// local action refs (normally the workflow's checkout root).
func NewResolver(cacheDir, builtinDir string) *Resolver {
	return &Resolver{cacheDir: cacheDir, builtinDir: builtinDir}
}

// Resolve dispatches ref to the appropriate source per spec.md §4.4.
func (r *Resolver) Resolve(ctx context.Context, ref workflow.ActionRef) (*ResolvedAction, error) {
	switch ref.Kind {
	case workflow.KindBuiltin:
		return &ResolvedAction{Ref: ref}, nil
	case workflow.KindDocker:
		return &ResolvedAction{Ref: ref}, nil
	case workflow.KindLocal:
		dir := joinSubPath(r.builtinDir, ref.Path)
		manifest, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		resolved := &ResolvedAction{Ref: ref, Dir: dir, Manifest: manifest}
		return r.resolveComposite(ctx, resolved, nil)
	case workflow.KindRemote:
		dir, err := fetchRemote(ctx, ref, r.cacheDir)
		if err != nil {
			return nil, err
		}
		manifest, err := LoadManifest(dir)
		if err != nil {
			return nil, err
		}
		resolved := &ResolvedAction{Ref: ref, Dir: dir, Manifest: manifest}
		return r.resolveComposite(ctx, resolved, nil)
	default:
		return nil, &ErrNotFound{Ref: ref.Raw}
	}
}

// resolveNestedRef resolves a `uses:` reference found inside a
// composite action's own steps. Local refs are resolved relative to
// the enclosing composite action's directory rather than builtinDir,
// since a composite action bundles its own local sub-actions.
func (r *Resolver) resolveNestedRef(ctx context.Context, parent *ResolvedAction, ref workflow.ActionRef) (*ResolvedAction, error) {
	if ref.Kind != workflow.KindLocal {
		return r.Resolve(ctx, ref)
	}
	dir := joinSubPath(parent.Dir, ref.Path)
	manifest, err := LoadManifest(dir)
	if err != nil {
		return nil, err
	}
	return &ResolvedAction{Ref: ref, Dir: dir, Manifest: manifest}, nil
}
