package access

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openmined/sharegate/internal/pathsafe"
)

// Check evaluates a single capability for user on relPath and returns nil when it is granted.
// The returned error says why access was denied; it is meant for logs, never for end users.
//
// Evaluation order: unknown users and invalid paths are denied; read-only users never
// write; admins get everything else; folder-only users are confined to the folder named
// after them, where they have full access unless a rule says otherwise; for everyone else
// a capability revoked by any matching rule stays revoked, and otherwise the most specific
// rule that grants it decides.
func Check(user string, table *Table, relPath string, level AccessLevel) error {
	if !level.valid() {
		return ErrInvalidAccessLevel
	}

	rec, ok := table.lookup(user)
	if !ok {
		return fmt.Errorf("%w: %w", deniedErr(level), ErrUnknownUser)
	}

	rel, ok := pathsafe.NormalizeRelPath(relPath)
	if !ok {
		return fmt.Errorf("%w: %w", deniedErr(level), ErrInvalidPath)
	}

	perm := rec.perm

	if level == AccessWrite && perm.ReadOnly {
		return fmt.Errorf("%w: user '%s' is read-only", ErrNoWriteAccess, user)
	}

	if perm.Admin {
		return nil
	}

	ownRoot := false
	if perm.FolderOnly {
		if !inUserFolder(user, rel) {
			return fmt.Errorf("%w: path '%s' is outside the folder of user '%s'", deniedErr(level), rel, user)
		}
		ownRoot = true
	}

	granted := false
	for _, rule := range rec.tree.lookup(rel) {
		if rule.deny&level != 0 {
			return fmt.Errorf("%w: revoked by rule '%s' for user '%s'", deniedErr(level), rule.path, user)
		}
		if rule.allow&level != 0 {
			granted = true
		}
	}

	if granted || ownRoot {
		return nil
	}

	return fmt.Errorf("%w: no rule grants '%s' to user '%s'", deniedErr(level), rel, user)
}

// CanRead reports whether user may read relPath.
func CanRead(user string, table *Table, relPath string) bool {
	return Check(user, table, relPath, AccessRead) == nil
}

// CanReadOwn reports whether user may read the entries they own under relPath.
func CanReadOwn(user string, table *Table, relPath string) bool {
	return Check(user, table, relPath, AccessReadOwn) == nil
}

// CanWrite reports whether user may create, modify or delete relPath.
func CanWrite(user string, table *Table, relPath string) bool {
	return Check(user, table, relPath, AccessWrite) == nil
}

// IsAdmin reports whether user is an administrator. Unknown users are not.
func IsAdmin(user string, table *Table) bool {
	rec, ok := table.lookup(user)
	return ok && rec.perm.Admin
}

// IsFolderOnly reports whether user is confined to their own folder.
func IsFolderOnly(user string, table *Table) bool {
	rec, ok := table.lookup(user)
	return ok && rec.perm.FolderOnly
}

// Levels returns every capability user holds on relPath.
func Levels(user string, table *Table, relPath string) AccessLevel {
	var levels AccessLevel
	for _, level := range []AccessLevel{AccessRead, AccessWrite, AccessReadOwn} {
		if Check(user, table, relPath, level) == nil {
			levels |= level
		}
	}
	return levels
}

// UserRoot returns the directory a user's paths must resolve within: the upload root,
// or the user's own folder below it for folder-only users.
func UserRoot(uploadRoot, user string, table *Table) string {
	if IsFolderOnly(user, table) && pathsafe.IsSafeSegment(user) {
		return filepath.Join(uploadRoot, user)
	}
	return uploadRoot
}

func inUserFolder(user, rel string) bool {
	if !pathsafe.IsSafeSegment(user) {
		return false
	}
	return rel == user || strings.HasPrefix(rel, user+"/")
}

func deniedErr(level AccessLevel) error {
	switch level {
	case AccessWrite:
		return ErrNoWriteAccess
	case AccessReadOwn:
		return ErrNoReadOwnAccess
	default:
		return ErrNoReadAccess
	}
}

// MatchingRule returns the path of the most specific folder rule that applies to relPath
// for user. It is meant for diagnostics.
func MatchingRule(user string, table *Table, relPath string) (string, bool) {
	rec, ok := table.lookup(user)
	if !ok {
		return "", false
	}
	rel, ok := pathsafe.NormalizeRelPath(relPath)
	if !ok {
		return "", false
	}
	rule := rec.tree.nearest(rel)
	if rule == nil {
		return "", false
	}
	return rule.path, true
}
