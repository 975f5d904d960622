package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-getter"
	"github.com/hashicorp/go-version"
	homedir "github.com/mitchellh/go-homedir"

	"github.com/me/ghrun/pkg/workflow"
)

// CacheDir returns the content-addressed cache root for remote
// actions, honoring $XDG_CACHE_HOME and falling back to
// ~/.cache/ghrun/actions (home resolved with go-homedir, matching the
// pack's own use of that library for config-path resolution).
func CacheDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghrun", "actions"), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "ghrun", "actions"), nil
}

// cacheKey normalizes (owner, repo, ref) into a directory name.
// go-version normalizes version-shaped refs like "v4" / "v4.1.2", so
// "v4" and "v4.0.0" share one key. Any ref that parses as a version is
// normalized this way, whether it names a tag or a branch; other refs
// are used as they are.
func cacheKey(ref workflow.ActionRef) string {
	normalizedRef := ref.Ref
	if v, err := version.NewVersion(ref.Ref); err == nil {
		normalizedRef = "v" + v.String()
	}
	return filepath.Join(ref.Owner, ref.Repo, normalizedRef)
}

// fetchRemote downloads a KindRemote action into cacheDir, returning
// the directory containing action.yml (cacheDir/key joined with
// SubPath). An existing cache entry is never re-fetched or mutated —
// this is what makes concurrent resolution of the same ref safe
// without locking (spec.md §9).
func fetchRemote(ctx context.Context, ref workflow.ActionRef, cacheDir string) (string, error) {
	key := cacheKey(ref)
	dest := filepath.Join(cacheDir, key)

	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		return joinSubPath(dest, ref.SubPath), nil
	}

	src := fmt.Sprintf("github.com/%s/%s?ref=%s", ref.Owner, ref.Repo, ref.Ref)
	tmp := dest + ".tmp"
	defer os.RemoveAll(tmp)

	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  tmp,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("fetch action %s: %w", ref.Raw, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, dest); err != nil {
		if os.IsExist(err) {
			// Another concurrent resolve won the race; that's fine,
			// the cache entry is identical content for the same ref.
			return joinSubPath(dest, ref.SubPath), nil
		}
		return "", fmt.Errorf("install fetched action %s: %w", ref.Raw, err)
	}
	return joinSubPath(dest, ref.SubPath), nil
}

func joinSubPath(dir, subPath string) string {
	if subPath == "" {
		return dir
	}
	return filepath.Join(dir, subPath)
}
