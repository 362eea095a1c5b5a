// Package dav mounts the upload root over WebDAV. Every call is evaluated for the user and
// permission table carried by the request context.
package dav

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"

	"golang.org/x/net/webdav"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/server/auth"
	"github.com/openmined/sharegate/internal/sharefs"
)

const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_CREATE | os.O_TRUNC | os.O_APPEND

// FileSystem implements webdav.FileSystem on top of a per-request sharefs view.
type FileSystem struct {
	svc *sharefs.Service
}

var _ webdav.FileSystem = (*FileSystem)(nil)

func NewFileSystem(svc *sharefs.Service) *FileSystem {
	return &FileSystem{svc: svc}
}

func (f *FileSystem) view(ctx context.Context, op, name string) (*sharefs.View, error) {
	user, ok := auth.UserFromContext(ctx)
	if !ok {
		return nil, &os.PathError{Op: op, Path: name, Err: os.ErrPermission}
	}
	view, err := f.svc.View(user, access.TableFromContext(ctx))
	if err != nil {
		return nil, pathError(op, name, err)
	}
	return view, nil
}

func (f *FileSystem) Mkdir(ctx context.Context, name string, _ os.FileMode) error {
	view, err := f.view(ctx, "mkdir", name)
	if err != nil {
		return err
	}
	if _, err := view.Mkdir(ctx, name); err != nil {
		return pathError("mkdir", name, err)
	}
	return nil
}

func (f *FileSystem) OpenFile(ctx context.Context, name string, flag int, _ os.FileMode) (webdav.File, error) {
	view, err := f.view(ctx, "open", name)
	if err != nil {
		return nil, err
	}

	if flag&writeFlags != 0 {
		upload, err := view.Create(ctx, name)
		if err != nil {
			return nil, pathError("open", name, err)
		}
		return &uploadFile{Upload: upload}, nil
	}

	entry, err := view.Stat(ctx, name)
	if err != nil {
		return nil, pathError("open", name, err)
	}

	if entry.Info.IsDir() {
		dir, children, err := view.List(ctx, name)
		if err != nil {
			return nil, pathError("open", name, err)
		}
		infos := make([]fs.FileInfo, 0, len(children))
		for _, child := range children {
			infos = append(infos, child.Info)
		}
		return &dirFile{info: dir.Info, children: infos}, nil
	}

	file, entry, err := view.Open(ctx, name)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return &readFile{File: file, info: entry.Info}, nil
}

func (f *FileSystem) RemoveAll(ctx context.Context, name string) error {
	view, err := f.view(ctx, "remove", name)
	if err != nil {
		return err
	}
	if err := view.Remove(ctx, name); err != nil {
		return pathError("remove", name, err)
	}
	return nil
}

func (f *FileSystem) Rename(ctx context.Context, oldName, newName string) error {
	view, err := f.view(ctx, "rename", oldName)
	if err != nil {
		return err
	}
	if err := view.Rename(ctx, oldName, newName); err != nil {
		return pathError("rename", oldName, err)
	}
	return nil
}

func (f *FileSystem) Stat(ctx context.Context, name string) (os.FileInfo, error) {
	view, err := f.view(ctx, "stat", name)
	if err != nil {
		return nil, err
	}
	entry, err := view.Stat(ctx, name)
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return entry.Info, nil
}

// pathError translates view errors into the os errors the webdav handler inspects.
func pathError(op, name string, err error) error {
	var target error
	switch {
	case errors.Is(err, sharefs.ErrNotFound), errors.Is(err, sharefs.ErrInvalidPath):
		target = os.ErrNotExist
	case errors.Is(err, sharefs.ErrAccessDenied), errors.Is(err, sharefs.ErrTopLevel):
		target = os.ErrPermission
	case errors.Is(err, sharefs.ErrExists):
		target = os.ErrExist
	default:
		return err
	}
	return &os.PathError{Op: op, Path: name, Err: target}
}

// uploadFile commits the staged upload when the handler closes it.
type uploadFile struct {
	*sharefs.Upload
}

func (u *uploadFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, os.ErrInvalid
}

func (u *uploadFile) Close() error {
	if err := u.Upload.Close(); err != nil {
		return pathError("close", u.Name(), err)
	}
	return nil
}

// readFile reports the checked entry, not the opened descriptor, from Stat.
type readFile struct {
	*os.File
	info fs.FileInfo
}

func (r *readFile) Stat() (fs.FileInfo, error) {
	return r.info, nil
}

func (r *readFile) Readdir(int) ([]fs.FileInfo, error) {
	return nil, os.ErrInvalid
}

func (r *readFile) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}

// dirFile serves a folder listing that was already filtered for the user.
type dirFile struct {
	info     fs.FileInfo
	children []fs.FileInfo
	pos      int
}

func (d *dirFile) Close() error {
	return nil
}

func (d *dirFile) Read([]byte) (int, error) {
	return 0, os.ErrInvalid
}

func (d *dirFile) Write([]byte) (int, error) {
	return 0, os.ErrPermission
}

func (d *dirFile) Seek(offset int64, whence int) (int64, error) {
	if offset == 0 && whence == io.SeekStart {
		d.pos = 0
		return 0, nil
	}
	return 0, os.ErrInvalid
}

func (d *dirFile) Stat() (fs.FileInfo, error) {
	return d.info, nil
}

func (d *dirFile) Readdir(count int) ([]fs.FileInfo, error) {
	rest := d.children[d.pos:]
	if count <= 0 {
		d.pos = len(d.children)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count > len(rest) {
		count = len(rest)
	}
	d.pos += count
	return rest[:count], nil
}
