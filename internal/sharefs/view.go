package sharefs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/pathsafe"
)

// Entry is a file or folder as one user sees it.
type Entry struct {
	Path     string
	Info     os.FileInfo
	Readable bool
	Writable bool
	// Locked folders are shown but cannot be opened, and nothing readable was found below them.
	Locked bool
}

// View is one user's window onto the upload root. It is cheap to build and is meant to
// live for a single request.
type View struct {
	svc   *Service
	user  string
	table *access.Table
	root  string // canonical directory every resolution must stay within
	home  string // relative path of root, "" unless folder-only
}

func (v *View) User() string {
	return v.user
}

// Home is the relative path of the folder the user is confined to, "" for the top level.
func (v *View) Home() string {
	return v.home
}

// Stat returns the entry at raw. Paths the user has no capability on are reported as
// ErrAccessDenied whether or not they exist.
func (v *View) Stat(ctx context.Context, raw string) (*Entry, error) {
	rel, err := v.visible(raw)
	if err != nil {
		return nil, err
	}

	listable := v.canList(rel)

	resolved, info, err := v.lookup(rel)
	if err != nil {
		return nil, v.denyUnless(listable, err)
	}

	info = named(info, rel)

	if info.IsDir() {
		if !listable && !v.probe(resolved, rel) {
			return nil, ErrAccessDenied
		}
		return v.entry(rel, info, listable, false), nil
	}

	if !v.canReadFile(ctx, rel) {
		return nil, ErrAccessDenied
	}
	return v.entry(rel, info, true, false), nil
}

// List returns the folder at raw and the children the user may see. A folder the user cannot
// read but which leads to readable folders lists only those.
func (v *View) List(ctx context.Context, raw string) (*Entry, []*Entry, error) {
	rel, err := v.visible(raw)
	if err != nil {
		return nil, nil, err
	}

	listable := v.canList(rel)

	resolved, info, err := v.lookup(rel)
	if err != nil {
		return nil, nil, v.denyUnless(listable, err)
	}
	if !info.IsDir() {
		return nil, nil, v.denyUnless(listable, ErrNotDir)
	}
	if !listable && !v.probe(resolved, rel) {
		return nil, nil, ErrAccessDenied
	}

	dirEntries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, nil, fmt.Errorf("read directory: %w", err)
	}

	filter := v.svc.filter()
	children := make([]*Entry, 0, len(dirEntries))

	for _, de := range dirEntries {
		name := de.Name()
		if filter.Hidden(name, rel) {
			continue
		}

		childRel := pathsafe.JoinRel(rel, name)
		childResolved, childInfo, ok := v.child(resolved, de)
		if !ok {
			continue
		}

		if childInfo.IsDir() {
			readable := v.canList(childRel)
			locked := !readable && !v.probe(childResolved, childRel)
			if locked && !listable {
				continue
			}
			children = append(children, v.entry(childRel, childInfo, readable, locked))
			continue
		}

		if !childInfo.Mode().IsRegular() || !v.canReadFile(ctx, childRel) {
			continue
		}
		children = append(children, v.entry(childRel, childInfo, true, false))
	}

	slices.SortFunc(children, func(a, b *Entry) int {
		if a.Info.IsDir() != b.Info.IsDir() {
			if a.Info.IsDir() {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Info.Name(), b.Info.Name())
	})

	return v.entry(rel, named(info, rel), listable, false), children, nil
}

// Open opens a readable file. The path is resolved again right before opening and the
// opened file must be the one that was checked.
func (v *View) Open(ctx context.Context, raw string) (*os.File, *Entry, error) {
	entry, err := v.Stat(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if entry.Info.IsDir() {
		return nil, nil, ErrIsDir
	}

	resolved, err := v.resolve(entry.Path)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(resolved)
	if err != nil {
		return nil, nil, ErrNotFound
	}

	checked := entry.Info
	if r, ok := checked.(renamedInfo); ok {
		checked = r.FileInfo
	}

	opened, err := f.Stat()
	if err != nil || !os.SameFile(opened, checked) {
		f.Close()
		return nil, nil, ErrNotFound
	}

	return f, entry, nil
}

// Mkdir creates a single folder. The parent must exist.
func (v *View) Mkdir(ctx context.Context, raw string) (*Entry, error) {
	rel, err := v.writable(raw)
	if err != nil {
		return nil, err
	}

	target, err := v.createTarget(rel)
	if err != nil {
		return nil, err
	}

	if err := os.Mkdir(target, 0o755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, ErrExists
		}
		return nil, fmt.Errorf("create folder: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat folder: %w", err)
	}

	return v.entry(rel, info, v.canList(rel), false), nil
}

// Remove deletes a file or a folder with everything in it. A symlink is removed itself,
// never its target.
func (v *View) Remove(ctx context.Context, raw string) error {
	rel, err := v.writable(raw)
	if err != nil {
		return err
	}

	target, err := v.resolveLink(rel)
	if err != nil {
		return err
	}
	if err := v.checkTree(target, rel, ""); err != nil {
		return err
	}

	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("remove: %w", err)
	}
	return nil
}

// Rename moves an entry. The destination must not exist.
func (v *View) Rename(ctx context.Context, rawFrom, rawTo string) error {
	from, err := v.writable(rawFrom)
	if err != nil {
		return err
	}
	to, err := v.writable(rawTo)
	if err != nil {
		return err
	}

	source, err := v.resolveLink(from)
	if err != nil {
		return err
	}

	target, err := v.createTarget(to)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(target); err == nil {
		return ErrExists
	}
	if err := v.checkTree(source, from, to); err != nil {
		return err
	}

	if err := os.Rename(source, target); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// CanWrite reports whether the user may create or change raw.
func (v *View) CanWrite(raw string) bool {
	_, err := v.writable(raw)
	return err == nil
}

// visible normalizes raw and rejects hidden paths.
func (v *View) visible(raw string) (string, error) {
	rel, ok := pathsafe.NormalizeRelPath(raw)
	if !ok {
		return "", ErrInvalidPath
	}
	if v.svc.filter().HiddenPath(rel) {
		return "", ErrNotFound
	}
	return rel, nil
}

// writable normalizes raw for a change and checks the write capability.
func (v *View) writable(raw string) (string, error) {
	rel, ok := pathsafe.NormalizeRelPath(raw)
	if !ok {
		return "", ErrInvalidPath
	}
	if rel == "" || rel == v.home {
		return "", ErrTopLevel
	}
	if v.svc.filter().HiddenPath(rel) || !access.CanWrite(v.user, v.table, rel) {
		return "", ErrAccessDenied
	}
	return rel, nil
}

// createTarget resolves the place a new entry at rel would be written. Through a symlink
// the write lands elsewhere, so the user must also be able to write there.
func (v *View) createTarget(rel string) (string, error) {
	target, ok := pathsafe.ResolveForCreate(v.root, v.abs(rel))
	if !ok {
		return "", ErrNotFound
	}

	actual, err := filepath.Rel(v.svc.root, target)
	if err != nil {
		return "", ErrNotFound
	}
	actual = filepath.ToSlash(actual)
	if actual == "." {
		actual = ""
	}

	if actual != rel {
		if actual == "" || v.svc.filter().HiddenPath(actual) || !access.CanWrite(v.user, v.table, actual) {
			return "", ErrAccessDenied
		}
	}
	return target, nil
}

// checkTree refuses a delete or move of the folder at resolved when anything below it is
// hidden or not writable by the user. For a move, dest is where the folder ends up and
// every entry must be writable there too. Platform artifacts go along with the folder.
func (v *View) checkTree(resolved, rel, dest string) error {
	info, err := os.Lstat(resolved)
	if err != nil {
		return ErrNotFound
	}
	if !info.IsDir() {
		return nil
	}

	filter := v.svc.filter()
	return filepath.WalkDir(resolved, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == resolved {
			return nil
		}

		sub, err := filepath.Rel(resolved, p)
		if err != nil {
			return err
		}
		sub = filepath.ToSlash(sub)

		parentSub, name := pathsafe.ParentRel(sub)
		if pathsafe.IsDenied(name) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		parent := rel
		if parentSub != "" {
			parent = pathsafe.JoinRel(rel, parentSub)
		}
		if filter.Hidden(name, parent) || !access.CanWrite(v.user, v.table, pathsafe.JoinRel(rel, sub)) {
			return ErrAccessDenied
		}
		if dest != "" && !access.CanWrite(v.user, v.table, pathsafe.JoinRel(dest, sub)) {
			return ErrAccessDenied
		}
		return nil
	})
}

func (v *View) abs(rel string) string {
	return filepath.Join(v.svc.root, filepath.FromSlash(rel))
}

func (v *View) resolve(rel string) (string, error) {
	resolved, ok := pathsafe.ResolveWithinRoot(v.root, v.abs(rel))
	if !ok {
		return "", ErrNotFound
	}
	return resolved, nil
}

func (v *View) lookup(rel string) (string, os.FileInfo, error) {
	resolved, err := v.resolve(rel)
	if err != nil {
		return "", nil, err
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, ErrNotFound
	}
	return resolved, info, nil
}

// resolveLink resolves the parent of rel and returns the entry inside it without
// following a final symlink.
func (v *View) resolveLink(rel string) (string, error) {
	parentRel, name := pathsafe.ParentRel(rel)

	parent, err := v.resolve(parentRel)
	if err != nil {
		return "", err
	}

	target := filepath.Join(parent, name)
	if _, err := os.Lstat(target); err != nil {
		return "", ErrNotFound
	}
	return target, nil
}

// child returns the resolved path and info of a directory entry. Symlinks must resolve
// inside the user's root.
func (v *View) child(dir string, de os.DirEntry) (string, os.FileInfo, bool) {
	abs := filepath.Join(dir, de.Name())

	if de.Type()&os.ModeSymlink == 0 {
		info, err := de.Info()
		if err != nil {
			return "", nil, false
		}
		return abs, info, true
	}

	resolved, ok := pathsafe.ResolveWithinRoot(v.root, abs)
	if !ok {
		return "", nil, false
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", nil, false
	}
	return resolved, renamedInfo{FileInfo: info, name: de.Name()}, true
}

func (v *View) entry(rel string, info os.FileInfo, readable, locked bool) *Entry {
	return &Entry{
		Path:     rel,
		Info:     info,
		Readable: readable,
		Writable: rel != "" && rel != v.home && access.CanWrite(v.user, v.table, rel),
		Locked:   locked,
	}
}

func (v *View) canList(rel string) bool {
	return access.CanRead(v.user, v.table, rel) || access.CanReadOwn(v.user, v.table, rel)
}

func (v *View) canReadFile(ctx context.Context, rel string) bool {
	if access.CanRead(v.user, v.table, rel) {
		return true
	}
	if v.svc.owners == nil || !access.CanReadOwn(v.user, v.table, rel) {
		return false
	}
	return v.svc.owners.IsOwner(ctx, v.user, rel)
}

func (v *View) probe(resolved, rel string) bool {
	return access.HasReadableDescendant(v.svc.filter(), v.root, resolved, rel, v.user, v.table, v.svc.probeDepth)
}

// denyUnless hides err behind ErrAccessDenied when the user may not look at the path,
// so missing and forbidden paths are indistinguishable to them.
func (v *View) denyUnless(allowed bool, err error) error {
	if !allowed {
		return ErrAccessDenied
	}
	return err
}

// renamedInfo reports a symlink target under the link's own name.
type renamedInfo struct {
	os.FileInfo
	name string
}

func (r renamedInfo) Name() string {
	return r.name
}

func named(info os.FileInfo, rel string) os.FileInfo {
	if rel == "" {
		return info
	}
	if _, name := pathsafe.ParentRel(rel); info.Name() != name {
		return renamedInfo{FileInfo: info, name: name}
	}
	return info
}
