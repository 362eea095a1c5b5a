package pathsafe

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ResolveWithinRoot canonicalizes candidate (symlinks and all) and returns it only when the
// result stays inside rootReal. A relative candidate is taken relative to rootReal.
// Any ".." component, a missing target, or a symlink leading outside the root yields ("", false).
//
// An empty rootReal is a caller bug and panics.
func ResolveWithinRoot(rootReal, candidate string) (string, bool) {
	root := mustCanonicalRoot(rootReal)
	if root == "" {
		return "", false
	}

	if hasDotDot(candidate) || strings.IndexByte(candidate, 0) >= 0 {
		return "", false
	}

	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}

	resolved, err := canonical(candidate)
	if err != nil {
		return "", false
	}

	if !isWithin(root, resolved) {
		return "", false
	}

	return resolved, true
}

// ResolveForCreate resolves a path that may not exist yet, e.g. an upload target.
// The parent directory must resolve within rootReal and the final component must be a
// safe segment. If the target already exists it is resolved in full, so an existing
// symlink cannot redirect the write outside the root.
func ResolveForCreate(rootReal, candidate string) (string, bool) {
	root := mustCanonicalRoot(rootReal)
	if root == "" {
		return "", false
	}

	if hasDotDot(candidate) || strings.IndexByte(candidate, 0) >= 0 {
		return "", false
	}

	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(root, candidate)
	}
	candidate = filepath.Clean(candidate)

	dir, base := filepath.Split(candidate)
	if !IsSafeSegment(base) {
		return "", false
	}

	parent, ok := ResolveWithinRoot(root, dir)
	if !ok {
		return "", false
	}

	target := filepath.Join(parent, base)
	if _, err := os.Lstat(target); err == nil {
		return ResolveWithinRoot(root, target)
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", false
	}

	return target, true
}

// CanonicalRoot returns the canonical form of a configured root directory.
func CanonicalRoot(root string) (string, error) {
	return canonical(root)
}

func mustCanonicalRoot(rootReal string) string {
	if rootReal == "" {
		panic("pathsafe: empty root path")
	}

	root, err := canonical(rootReal)
	if err != nil {
		return ""
	}
	return root
}

func canonical(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}

	return filepath.Clean(resolved), nil
}

func isWithin(root, path string) bool {
	if path == root {
		return true
	}
	prefix := strings.TrimSuffix(root, string(filepath.Separator)) + string(filepath.Separator)
	return strings.HasPrefix(path, prefix)
}

func hasDotDot(path string) bool {
	parts := strings.FieldsFunc(path, func(r rune) bool {
		return r == '/' || r == '\\' || r == filepath.Separator
	})
	for _, part := range parts {
		if part == ".." {
			return true
		}
	}
	return false
}
