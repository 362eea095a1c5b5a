package access

import "strings"

// AccessLevel is a capability bit flag granted or revoked by folder rules.
type AccessLevel uint8

const (
	AccessRead AccessLevel = 1 << iota
	AccessWrite
	AccessReadOwn
)

const allLevels = AccessRead | AccessWrite | AccessReadOwn

func (a AccessLevel) String() string {
	if a == 0 {
		return "None"
	}

	var parts []string

	if (a & AccessRead) == AccessRead {
		parts = append(parts, "Read")
	}
	if (a & AccessWrite) == AccessWrite {
		parts = append(parts, "Write")
	}
	if (a & AccessReadOwn) == AccessReadOwn {
		parts = append(parts, "ReadOwn")
	}

	if len(parts) == 0 || a&^allLevels != 0 {
		return "Unknown"
	}

	return strings.Join(parts, "+")
}

// valid reports whether a names exactly one capability.
func (a AccessLevel) valid() bool {
	return a == AccessRead || a == AccessWrite || a == AccessReadOwn
}
