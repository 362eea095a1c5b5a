package sharefs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/pathsafe"
)

type ownersMap map[string]string

func (o ownersMap) IsOwner(_ context.Context, user, rel string) bool {
	return o[rel] == user
}

func writeTestFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func testTable() *access.Table {
	return access.NewTable(map[string]*access.Permission{
		"alice": {Folders: []access.FolderRule{
			access.NewFolderRule("reports", access.AccessRead),
			access.NewFolderRule("reports/drafts", 0).Revoke(access.AccessRead),
			access.NewFolderRule("inbox", access.AccessRead|access.AccessWrite),
			access.NewFolderRule("archive/2023/q4", access.AccessRead),
			access.NewFolderRule("dropbox", access.AccessReadOwn|access.AccessWrite),
		}},
		"bob":  {FolderOnly: true},
		"root": {Admin: true},
	})
}

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()

	root := t.TempDir()
	writeTestFile(t, root, "reports/q1.pdf", "q1")
	writeTestFile(t, root, "reports/drafts/wip.txt", "wip")
	writeTestFile(t, root, "archive/2023/q4/data.csv", "a,b")
	writeTestFile(t, root, "dropbox/alice.pdf", "mine")
	writeTestFile(t, root, "dropbox/bob.pdf", "theirs")
	writeTestFile(t, root, "bob/notes.txt", "notes")
	writeTestFile(t, root, ".trash/old.txt", "old")
	writeTestFile(t, root, ".DS_Store", "junk")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "inbox"), 0o755))

	svc, err := NewService(Config{
		Root:       root,
		ProbeDepth: access.DefaultProbeDepth,
		Owners:     ownersMap{"dropbox/alice.pdf": "alice", "dropbox/bob.pdf": "bob"},
	})
	require.NoError(t, err)
	return svc, svc.Root()
}

func testView(t *testing.T, svc *Service, user string) *View {
	t.Helper()
	v, err := svc.View(user, testTable())
	require.NoError(t, err)
	return v
}

func names(entries []*Entry) []string {
	var out []string
	for _, e := range entries {
		out = append(out, e.Info.Name())
	}
	return out
}

func entryByName(entries []*Entry, name string) *Entry {
	for _, e := range entries {
		if e.Info.Name() == name {
			return e
		}
	}
	return nil
}

func TestListTopLevelShowsOnlyReachableFolders(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")
	ctx := context.Background()

	dir, children, err := alice.List(ctx, "")
	require.NoError(t, err)
	assert.False(t, dir.Readable)
	assert.Equal(t, []string{"archive", "dropbox", "inbox", "reports"}, names(children))

	archive := entryByName(children, "archive")
	require.NotNil(t, archive)
	assert.False(t, archive.Readable)
	assert.False(t, archive.Locked)

	_, children, err = alice.List(ctx, "root")
	require.NoError(t, err)
	assert.Len(t, children, 4)
}

func TestListReadableFolderShowsLockedChildren(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")

	dir, children, err := alice.List(context.Background(), "reports")
	require.NoError(t, err)
	assert.True(t, dir.Readable)
	assert.False(t, dir.Writable)
	assert.Equal(t, []string{"drafts", "q1.pdf"}, names(children))

	drafts := entryByName(children, "drafts")
	assert.True(t, drafts.Locked)
	assert.False(t, drafts.Readable)
	assert.Equal(t, "reports/drafts", drafts.Path)

	_, _, err = alice.List(context.Background(), "reports/drafts")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestListReadOwnShowsOwnedFilesOnly(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")

	_, children, err := alice.List(context.Background(), "dropbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice.pdf"}, names(children))

	_, err = alice.Stat(context.Background(), "dropbox/bob.pdf")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestStatHidesExistence(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")
	ctx := context.Background()

	_, err := alice.Stat(ctx, "reports/drafts/wip.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = alice.Stat(ctx, "secret/missing.txt")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = alice.Stat(ctx, "reports/missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = alice.Stat(ctx, "reports/../bob")
	assert.ErrorIs(t, err, ErrInvalidPath)

	_, err = alice.Stat(ctx, ".trash/old.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	entry, err := alice.Stat(ctx, "reports/q1.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(2), entry.Info.Size())
}

func TestOpen(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")
	ctx := context.Background()

	f, entry, err := alice.Open(ctx, "/reports/q1.pdf")
	require.NoError(t, err)
	defer f.Close()

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "q1", string(data))
	assert.Equal(t, "reports/q1.pdf", entry.Path)

	_, _, err = alice.Open(ctx, "reports")
	assert.ErrorIs(t, err, ErrIsDir)

	_, _, err = alice.Open(ctx, "dropbox/bob.pdf")
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestFolderOnlyView(t *testing.T) {
	svc, _ := newTestService(t)
	bob := testView(t, svc, "bob")
	ctx := context.Background()

	assert.Equal(t, "bob", bob.Home())

	_, children, err := bob.List(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, []string{"notes.txt"}, names(children))

	_, _, err = bob.List(ctx, "")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = bob.Stat(ctx, "reports/q1.pdf")
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = bob.Put(ctx, "bob/new.txt", strings.NewReader("hi"))
	require.NoError(t, err)

	_, err = bob.Put(ctx, "reports/new.txt", strings.NewReader("hi"))
	assert.ErrorIs(t, err, ErrAccessDenied)

	assert.ErrorIs(t, bob.Remove(ctx, "bob"), ErrTopLevel)
}

func TestFolderOnlyViewCreatesHome(t *testing.T) {
	svc, root := newTestService(t)

	table := access.NewTable(map[string]*access.Permission{"carol": {FolderOnly: true}})
	carol, err := svc.View("carol", table)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(root, "carol"))
	_, children, err := carol.List(context.Background(), "carol")
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestFolderOnlyHomeSymlinkOutside(t *testing.T) {
	svc, root := newTestService(t)
	require.NoError(t, os.Symlink(t.TempDir(), filepath.Join(root, "dave")))

	table := access.NewTable(map[string]*access.Permission{"dave": {FolderOnly: true}})
	_, err := svc.View("dave", table)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestUnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.View("mallory", testTable())
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = svc.View("alice", nil)
	assert.ErrorIs(t, err, ErrAccessDenied)
}

func TestPutMkdirRenameRemove(t *testing.T) {
	svc, root := newTestService(t)
	alice := testView(t, svc, "alice")
	ctx := context.Background()

	entry, err := alice.Put(ctx, "inbox/new.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "inbox/new.txt", entry.Path)
	assert.True(t, entry.Writable)
	assert.FileExists(t, filepath.Join(root, "inbox", "new.txt"))

	staged, err := os.ReadDir(filepath.Join(root, stagingDir))
	require.NoError(t, err)
	assert.Empty(t, staged)

	_, err = alice.Put(ctx, "inbox/missing/new.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = alice.Put(ctx, "reports/new.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = alice.Put(ctx, "inbox/.DS_Store", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrAccessDenied)

	_, err = alice.Mkdir(ctx, "inbox/sub")
	require.NoError(t, err)
	_, err = alice.Mkdir(ctx, "inbox/sub")
	assert.ErrorIs(t, err, ErrExists)

	_, err = alice.Put(ctx, "inbox/sub", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrIsDir)

	require.NoError(t, alice.Rename(ctx, "inbox/new.txt", "inbox/sub/moved.txt"))
	assert.FileExists(t, filepath.Join(root, "inbox", "sub", "moved.txt"))
	assert.ErrorIs(t, alice.Rename(ctx, "inbox/sub/moved.txt", "reports/moved.txt"), ErrAccessDenied)

	require.NoError(t, alice.Remove(ctx, "inbox/sub"))
	assert.NoDirExists(t, filepath.Join(root, "inbox", "sub"))

	assert.ErrorIs(t, alice.Remove(ctx, "inbox/sub"), ErrNotFound)
	assert.ErrorIs(t, alice.Remove(ctx, ""), ErrTopLevel)
	assert.ErrorIs(t, alice.Remove(ctx, "reports/q1.pdf"), ErrAccessDenied)
}

func TestWriteOnlyDropbox(t *testing.T) {
	svc, _ := newTestService(t)
	alice := testView(t, svc, "alice")

	entry, err := alice.Put(context.Background(), "dropbox/unowned.pdf", strings.NewReader("x"))
	require.NoError(t, err)
	assert.False(t, entry.Readable)
}

func TestUploadAbort(t *testing.T) {
	svc, root := newTestService(t)
	alice := testView(t, svc, "alice")

	upload, err := alice.Create(context.Background(), "inbox/partial.bin")
	require.NoError(t, err)
	_, err = upload.Write([]byte("part"))
	require.NoError(t, err)
	require.NoError(t, upload.Abort())

	assert.NoFileExists(t, filepath.Join(root, "inbox", "partial.bin"))
	assert.NoFileExists(t, upload.Name())
	assert.NoError(t, upload.Close())
}

func TestSymlinksStayInsideRoot(t *testing.T) {
	svc, root := newTestService(t)
	outside := t.TempDir()
	writeTestFile(t, outside, "secret.txt", "secret")

	require.NoError(t, os.Symlink(outside, filepath.Join(root, "inbox", "escape")))
	require.NoError(t, os.Symlink(filepath.Join(root, "reports"), filepath.Join(root, "inbox", "reports-link")))

	alice := testView(t, svc, "alice")
	ctx := context.Background()

	_, children, err := alice.List(ctx, "inbox")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports-link"}, names(children))

	_, err = alice.Stat(ctx, "inbox/escape/secret.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = alice.Put(ctx, "inbox/escape/new.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, alice.Remove(ctx, "inbox/escape"))
	assert.FileExists(t, filepath.Join(outside, "secret.txt"))
}

func TestFilteredService(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "docs/keep.txt", "k")
	writeTestFile(t, root, "docs/skip.tmp", "s")

	svc, err := NewService(Config{
		Root: root,
		Filter: pathsafe.LazyFilter(func() pathsafe.FilterConfig {
			return pathsafe.FilterConfig{IgnoreRegex: `/\.tmp$/`}
		}),
	})
	require.NoError(t, err)

	v := testView(t, svc, "root")
	_, children, err := v.List(context.Background(), "docs")
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.txt"}, names(children))

	_, err = v.Stat(context.Background(), "docs/skip.tmp")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewServiceErrors(t *testing.T) {
	_, err := NewService(Config{})
	assert.Error(t, err)

	_, err = NewService(Config{Root: filepath.Join(t.TempDir(), "missing")})
	assert.Error(t, err)
}

func newTeamService(t *testing.T) (*View, string) {
	t.Helper()

	svc, err := NewService(Config{Root: t.TempDir()})
	require.NoError(t, err)
	root := svc.Root()

	writeTestFile(t, root, "team/proj/notes.txt", "notes")
	writeTestFile(t, root, "team/proj/keep/contract.pdf", "signed")
	writeTestFile(t, root, "team/incoming/sub/x.txt", "x")
	writeTestFile(t, root, "team/cache/.trash/old.txt", "old")
	writeTestFile(t, root, "team/empty/.DS_Store", "junk")
	writeTestFile(t, root, "private/secret.txt", "secret")
	writeTestFile(t, root, "public/real.txt", "real")

	table := access.NewTable(map[string]*access.Permission{
		"alice": {Folders: []access.FolderRule{
			access.NewFolderRule("team", access.AccessRead|access.AccessWrite),
			access.NewFolderRule("team/proj/keep", access.AccessRead).Revoke(access.AccessWrite),
			access.NewFolderRule("team/locked/sub", access.AccessRead).Revoke(access.AccessWrite),
			access.NewFolderRule("public", access.AccessRead|access.AccessWrite),
		}},
	})

	v, err := svc.View("alice", table)
	require.NoError(t, err)
	return v, root
}

func TestRemoveFolderWithRevokedDescendant(t *testing.T) {
	alice, root := newTeamService(t)
	ctx := context.Background()

	assert.ErrorIs(t, alice.Remove(ctx, "team/proj/keep/contract.pdf"), ErrAccessDenied)
	assert.ErrorIs(t, alice.Remove(ctx, "team/proj"), ErrAccessDenied)
	assert.ErrorIs(t, alice.Remove(ctx, "team"), ErrAccessDenied)
	assert.FileExists(t, filepath.Join(root, "team", "proj", "keep", "contract.pdf"))
	assert.FileExists(t, filepath.Join(root, "team", "proj", "notes.txt"))

	require.NoError(t, alice.Remove(ctx, "team/proj/notes.txt"))

	// reserved folders inside block the delete, platform artifacts do not
	assert.ErrorIs(t, alice.Remove(ctx, "team/cache"), ErrAccessDenied)
	assert.FileExists(t, filepath.Join(root, "team", "cache", ".trash", "old.txt"))
	require.NoError(t, alice.Remove(ctx, "team/empty"))
	assert.NoDirExists(t, filepath.Join(root, "team", "empty"))
}

func TestRenameFolderWithRevokedDescendant(t *testing.T) {
	alice, root := newTeamService(t)
	ctx := context.Background()

	assert.ErrorIs(t, alice.Rename(ctx, "team/proj", "team/moved"), ErrAccessDenied)
	assert.FileExists(t, filepath.Join(root, "team", "proj", "keep", "contract.pdf"))
	assert.NoDirExists(t, filepath.Join(root, "team", "moved"))

	// team/locked/sub is not writable, so sub/x.txt cannot land there
	assert.ErrorIs(t, alice.Rename(ctx, "team/incoming", "team/locked"), ErrAccessDenied)
	assert.FileExists(t, filepath.Join(root, "team", "incoming", "sub", "x.txt"))

	require.NoError(t, alice.Rename(ctx, "team/incoming", "team/other"))
	assert.FileExists(t, filepath.Join(root, "team", "other", "sub", "x.txt"))
}

func TestWriteThroughSymlinkNeedsTargetAccess(t *testing.T) {
	alice, root := newTeamService(t)
	ctx := context.Background()

	require.NoError(t, os.Symlink(filepath.Join(root, "private", "secret.txt"), filepath.Join(root, "public", "link.txt")))
	require.NoError(t, os.Symlink(filepath.Join(root, "private"), filepath.Join(root, "public", "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(root, "public", "real.txt"), filepath.Join(root, "public", "alias.txt")))

	_, err := alice.Put(ctx, "public/link.txt", strings.NewReader("overwritten"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	data, err := os.ReadFile(filepath.Join(root, "private", "secret.txt"))
	require.NoError(t, err)
	assert.Equal(t, "secret", string(data))

	_, err = alice.Put(ctx, "public/dirlink/new.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrAccessDenied)
	_, err = alice.Mkdir(ctx, "public/dirlink/sub")
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.NoFileExists(t, filepath.Join(root, "private", "new.txt"))
	assert.NoDirExists(t, filepath.Join(root, "private", "sub"))

	assert.ErrorIs(t, alice.Rename(ctx, "public/real.txt", "public/dirlink/real.txt"), ErrAccessDenied)

	_, err = alice.Put(ctx, "public/alias.txt", strings.NewReader("updated"))
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(root, "public", "real.txt"))
	require.NoError(t, err)
	assert.Equal(t, "updated", string(data))
}
