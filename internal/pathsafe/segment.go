package pathsafe

import (
	"strings"
	"unicode/utf8"
)

// MaxSegmentLength is the longest name, in characters, allowed for a single path segment.
const MaxSegmentLength = 255

// RootAlias is the logical name clients use for the top level of the upload root.
const RootAlias = "root"

const relSep = "/"

// IsSafeSegment reports whether name can be used as a single path component.
// It rejects empty names, "." and "..", separators, control bytes and names longer
// than MaxSegmentLength characters.
func IsSafeSegment(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}

	if !utf8.ValidString(name) {
		return false
	}

	if utf8.RuneCountInString(name) > MaxSegmentLength {
		return false
	}

	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c == 0x7f || c == '/' || c == '\\' {
			return false
		}
	}

	return true
}

// NormalizeRelPath validates a client supplied relative path and returns it in canonical
// "/"-joined form. The top level ("", "/" or RootAlias) normalizes to "".
func NormalizeRelPath(rel string) (string, bool) {
	if rel == "" || rel == relSep || rel == RootAlias {
		return "", true
	}

	trimmed := strings.Trim(rel, relSep)
	if trimmed == "" {
		return "", true
	}

	parts := strings.Split(trimmed, relSep)
	for _, part := range parts {
		if !IsSafeSegment(part) {
			return "", false
		}
	}

	return strings.Join(parts, relSep), true
}

// SplitRelPath returns the segments of a normalized relative path.
// The top level has no segments.
func SplitRelPath(rel string) []string {
	if rel == "" {
		return nil
	}
	return strings.Split(rel, relSep)
}

// JoinRel joins a logical parent path and a child name.
func JoinRel(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + relSep + name
}

// ParentRel returns the parent of a normalized relative path and its final segment.
func ParentRel(rel string) (string, string) {
	idx := strings.LastIndex(rel, relSep)
	if idx < 0 {
		return "", rel
	}
	return rel[:idx], rel[idx+1:]
}
