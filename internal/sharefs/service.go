// Package sharefs exposes the upload root to a single authenticated user. Every operation
// checks the user's capabilities first and then resolves the path inside the user's root,
// so callers only ever see paths that passed both.
package sharefs

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmined/sharegate/internal/access"
	"github.com/openmined/sharegate/internal/pathsafe"
	"github.com/openmined/sharegate/internal/utils"
)

var (
	ErrInvalidPath  = errors.New("invalid path")
	ErrNotFound     = errors.New("not found")
	ErrAccessDenied = errors.New("access denied")
	ErrExists       = errors.New("already exists")
	ErrIsDir        = errors.New("is a directory")
	ErrNotDir       = errors.New("not a directory")
	ErrTopLevel     = errors.New("operation not allowed on the top level")
)

// Owners reports who owns a file. It backs the read-own capability; without it no file
// counts as owned.
type Owners interface {
	IsOwner(ctx context.Context, user, rel string) bool
}

type Config struct {
	Root       string
	ProbeDepth int
	Filter     func() *pathsafe.Filter
	Owners     Owners
}

// Service holds what is shared between users: the canonical upload root, the entry
// filter and the ownership source.
type Service struct {
	root       string
	probeDepth int
	filter     func() *pathsafe.Filter
	owners     Owners
}

func NewService(cfg Config) (*Service, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("sharefs: empty root")
	}

	root, err := pathsafe.CanonicalRoot(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("sharefs: resolve root: %w", err)
	}

	filter := cfg.Filter
	if filter == nil {
		filter = func() *pathsafe.Filter { return nil }
	}

	return &Service{
		root:       root,
		probeDepth: cfg.ProbeDepth,
		filter:     filter,
		owners:     cfg.Owners,
	}, nil
}

// Root returns the canonical upload root.
func (s *Service) Root() string {
	return s.root
}

// View returns the user's view of the upload root. Folder-only users get their own
// folder, created on first use.
func (s *Service) View(user string, table *access.Table) (*View, error) {
	if _, ok := table.Permission(user); !ok {
		return nil, fmt.Errorf("%w: %w", ErrAccessDenied, access.ErrUnknownUser)
	}

	v := &View{
		svc:   s,
		user:  user,
		table: table,
		root:  s.root,
	}

	if !access.IsFolderOnly(user, table) {
		return v, nil
	}

	if !pathsafe.IsSafeSegment(user) {
		return nil, fmt.Errorf("%w: unusable folder name for user", ErrAccessDenied)
	}

	dir := access.UserRoot(s.root, user, table)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create user folder: %w", err)
	}

	resolved, ok := pathsafe.ResolveWithinRoot(s.root, dir)
	if !ok {
		return nil, fmt.Errorf("%w: user folder leaves the upload root", ErrAccessDenied)
	}

	v.root = resolved
	v.home = user
	return v, nil
}
