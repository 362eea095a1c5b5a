package sharefs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/openmined/sharegate/internal/utils"
)

// stagingDir holds partial uploads inside each root. It is on the reserved list, so it
// never shows up in listings.
const stagingDir = ".chunks"

// Upload is a file being written. Data goes to a staging file that replaces the target
// only on Commit, so readers never see a partial file.
type Upload struct {
	*os.File
	ctx    context.Context
	view   *View
	rel    string
	target string
	done   bool
}

// Create starts an upload to raw. The parent folder must exist and the target must not
// be a folder.
func (v *View) Create(ctx context.Context, raw string) (*Upload, error) {
	rel, err := v.writable(raw)
	if err != nil {
		return nil, err
	}

	target, err := v.createTarget(rel)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return nil, ErrIsDir
	}

	staging := filepath.Join(v.root, stagingDir)
	if err := utils.EnsureDir(staging); err != nil {
		return nil, fmt.Errorf("create staging folder: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(staging, uuid.NewString()), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	return &Upload{
		File:   f,
		ctx:    ctx,
		view:   v,
		rel:    rel,
		target: target,
	}, nil
}

// Put writes r to raw in one step.
func (v *View) Put(ctx context.Context, raw string, r io.Reader) (*Entry, error) {
	upload, err := v.Create(ctx, raw)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(upload, r); err != nil {
		upload.Abort()
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return upload.Commit()
}

// Commit moves the staged data into place. The target is resolved again first, so a
// parent swapped for a symlink in the meantime is caught.
func (u *Upload) Commit() (*Entry, error) {
	if u.done {
		return nil, os.ErrClosed
	}
	u.done = true

	if err := u.File.Close(); err != nil {
		os.Remove(u.Name())
		return nil, fmt.Errorf("close upload: %w", err)
	}

	target, err := u.view.createTarget(u.rel)
	if err != nil || target != u.target {
		os.Remove(u.Name())
		return nil, ErrNotFound
	}

	if err := os.Rename(u.Name(), target); err != nil {
		os.Remove(u.Name())
		return nil, fmt.Errorf("move upload into place: %w", err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat upload: %w", err)
	}

	slog.Debug("upload committed", "user", u.view.user, "path", u.rel, "size", info.Size())
	return u.view.entry(u.rel, named(info, u.rel), u.view.canReadFile(u.ctx, u.rel), false), nil
}

// Abort discards the staged data.
func (u *Upload) Abort() error {
	if u.done {
		return nil
	}
	u.done = true

	closeErr := u.File.Close()
	if err := os.Remove(u.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return closeErr
}

// Close commits the upload. It lets an Upload stand in for a plain writable file.
func (u *Upload) Close() error {
	if u.done {
		return nil
	}
	_, err := u.Commit()
	return err
}
