package pathsafe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestRoot creates a root with a/file.txt and returns its canonical path.
func newTestRoot(t *testing.T) string {
	t.Helper()

	root, err := CanonicalRoot(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "file.txt"), []byte("x"), 0o644))
	return root
}

func TestResolveWithinRoot(t *testing.T) {
	root := newTestRoot(t)

	got, ok := ResolveWithinRoot(root, "a/file.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "file.txt"), got)

	got, ok = ResolveWithinRoot(root, filepath.Join(root, "a"))
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a"), got)

	got, ok = ResolveWithinRoot(root, root)
	assert.True(t, ok)
	assert.Equal(t, root, got)
}

func TestResolveWithinRoot_RejectsTraversal(t *testing.T) {
	root := newTestRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644))

	candidates := []string{
		"..",
		"../secret",
		"a/../a/file.txt",
		"a/../../etc/passwd",
		filepath.Join(root, ".."),
		root + "/../" + filepath.Base(root) + "/a",
		"/etc/passwd",
		filepath.Join(outside, "secret"),
		"a/missing.txt",
		"a/fi\x00le.txt",
	}

	for _, candidate := range candidates {
		got, ok := ResolveWithinRoot(root, candidate)
		assert.False(t, ok, "candidate %q", candidate)
		assert.Empty(t, got, "candidate %q", candidate)
	}
}

func TestResolveWithinRoot_SiblingPrefix(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "data")
	sibling := filepath.Join(parent, "data-other")
	require.NoError(t, os.MkdirAll(root, 0o755))
	require.NoError(t, os.MkdirAll(sibling, 0o755))

	_, ok := ResolveWithinRoot(root, sibling)
	assert.False(t, ok)
}

func TestResolveWithinRoot_Symlinks(t *testing.T) {
	root := newTestRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o644))

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape-dir")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "escape-file")))
	require.NoError(t, os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "inside")))
	require.NoError(t, os.Symlink(filepath.Join(root, "nowhere"), filepath.Join(root, "dangling")))

	_, ok := ResolveWithinRoot(root, "escape-dir")
	assert.False(t, ok)

	_, ok = ResolveWithinRoot(root, "escape-dir/secret")
	assert.False(t, ok)

	_, ok = ResolveWithinRoot(root, "escape-file")
	assert.False(t, ok)

	_, ok = ResolveWithinRoot(root, "dangling")
	assert.False(t, ok)

	got, ok := ResolveWithinRoot(root, "inside/file.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "file.txt"), got)
}

func TestResolveWithinRoot_SymlinkedRoot(t *testing.T) {
	target := newTestRoot(t)
	link := filepath.Join(t.TempDir(), "root-link")
	require.NoError(t, os.Symlink(target, link))

	got, ok := ResolveWithinRoot(link, "a/file.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(target, "a", "file.txt"), got)
}

func TestResolveWithinRoot_EmptyRootPanics(t *testing.T) {
	assert.Panics(t, func() {
		ResolveWithinRoot("", "a")
	})
}

func TestResolveForCreate(t *testing.T) {
	root := newTestRoot(t)
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "escape-dir")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "new.txt"), filepath.Join(root, "a", "trap.txt")))

	got, ok := ResolveForCreate(root, "a/new.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "new.txt"), got)

	got, ok = ResolveForCreate(root, "a/file.txt")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "a", "file.txt"), got)

	rejected := []string{
		"escape-dir/new.txt",
		"a/trap.txt",
		"missing/new.txt",
		"a/../new.txt",
		"../new.txt",
		filepath.Join(outside, "new.txt"),
		"a/new\x01.txt",
	}
	for _, candidate := range rejected {
		_, ok := ResolveForCreate(root, candidate)
		assert.False(t, ok, "candidate %q", candidate)
	}
}
