package access

import (
	"os"
	"path/filepath"

	"github.com/openmined/sharegate/internal/pathsafe"
)

// DefaultProbeDepth is how many directory levels HasReadableDescendant looks down by default.
const DefaultProbeDepth = 2

// HasReadableDescendant reports whether some directory below absPath, at most maxDepth levels
// down, is readable (or readable-own) by user. It lets a listing keep a folder the user cannot
// read when it leads to one they can.
//
// Hidden entries are never considered. Symlinked directories are followed only when they
// resolve inside rootReal. Unreadable directories count as having nothing below them.
func HasReadableDescendant(filter *pathsafe.Filter, rootReal, absPath, relPath, user string, table *Table, maxDepth int) bool {
	if maxDepth <= 0 {
		return false
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return false
	}

	for _, entry := range entries {
		name := entry.Name()
		if filter.Hidden(name, relPath) {
			continue
		}

		childAbs := filepath.Join(absPath, name)
		if !isProbeDir(rootReal, childAbs, entry) {
			continue
		}

		childRel := pathsafe.JoinRel(relPath, name)
		if CanRead(user, table, childRel) || CanReadOwn(user, table, childRel) {
			return true
		}

		if HasReadableDescendant(filter, rootReal, childAbs, childRel, user, table, maxDepth-1) {
			return true
		}
	}

	return false
}

func isProbeDir(rootReal, abs string, entry os.DirEntry) bool {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir()
	}

	resolved, ok := pathsafe.ResolveWithinRoot(rootReal, abs)
	if !ok {
		return false
	}

	info, err := os.Stat(resolved)
	return err == nil && info.IsDir()
}
