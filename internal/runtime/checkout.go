package runtime

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/moby/patternmatcher"
)

// defaultCheckoutIgnore mirrors git's own default excludes for a
// working-tree copy: ghrun has no real VCS, so "checkout" means
// "copy the current directory into the step workspace", honoring
// .gitignore for parity with the real actions/checkout behavior most
// workflows are written to expect.
var defaultCheckoutIgnore = []string{".git"}

// Checkout implements the actions/checkout built-in: it copies srcDir
// into destDir, excluding .git and any .gitignore-matched paths.
// Pattern matching uses github.com/moby/patternmatcher, the package
// moby split pkg/fileutils's PatternMatcher out into as of Docker
// 25.0 — the pinned github.com/docker/docker v27.3.1+incompatible no
// longer carries it, so this imports the split-out module directly
// rather than lyft-atlantis's older in-tree usage.
func Checkout(srcDir, destDir string) error {
	patterns := append([]string(nil), defaultCheckoutIgnore...)
	if extra, err := readGitignore(srcDir); err == nil {
		patterns = append(patterns, extra...)
	}
	matcher, err := patternmatcher.New(patterns)
	if err != nil {
		return fmt.Errorf("checkout: build ignore matcher: %w", err)
	}

	return filepath.Walk(srcDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		matched, err := matcher.Matches(rel)
		if err != nil {
			return fmt.Errorf("checkout: match %q: %w", rel, err)
		}
		if matched {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(destDir, rel)
		if info.IsDir() {
			return os.MkdirAll(target, info.Mode())
		}
		return copyFile(path, target, info.Mode())
	})
}

func readGitignore(srcDir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(srcDir, ".gitignore"))
	if err != nil {
		return nil, err
	}
	var patterns []string
	start := 0
	for i, c := range data {
		if c == '\n' {
			line := string(data[start:i])
			if line != "" {
				patterns = append(patterns, line)
			}
			start = i + 1
		}
	}
	return patterns, nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
