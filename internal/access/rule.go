package access

import (
	"errors"

	"github.com/openmined/sharegate/internal/pathsafe"
)

var (
	ErrNoReadAccess       = errors.New("no read access")
	ErrNoWriteAccess      = errors.New("no write access")
	ErrNoReadOwnAccess    = errors.New("no read-own access")
	ErrUnknownUser        = errors.New("unknown user")
	ErrInvalidPath        = errors.New("invalid path")
	ErrInvalidAccessLevel = errors.New("invalid access level")
	ErrInvalidRulePath    = errors.New("invalid rule path")
	ErrDuplicateRule      = errors.New("duplicate rule")
)

// FolderRule sets capabilities for a folder and everything below it.
// Each capability is tri-state: true grants, false revokes, nil inherits from a broader rule.
type FolderRule struct {
	Path    string `yaml:"path" json:"path"`
	Read    *bool  `yaml:"read,omitempty" json:"read,omitempty"`
	Write   *bool  `yaml:"write,omitempty" json:"write,omitempty"`
	ReadOwn *bool  `yaml:"read_own,omitempty" json:"read_own,omitempty"`
}

// NewFolderRule creates a rule that grants exactly the given capabilities and inherits the rest.
func NewFolderRule(path string, grant AccessLevel) FolderRule {
	rule := FolderRule{Path: path}
	if grant&AccessRead != 0 {
		rule.Read = Bool(true)
	}
	if grant&AccessWrite != 0 {
		rule.Write = Bool(true)
	}
	if grant&AccessReadOwn != 0 {
		rule.ReadOwn = Bool(true)
	}
	return rule
}

// Revoke marks the given capabilities as explicitly revoked on the rule.
func (r FolderRule) Revoke(levels AccessLevel) FolderRule {
	if levels&AccessRead != 0 {
		r.Read = Bool(false)
	}
	if levels&AccessWrite != 0 {
		r.Write = Bool(false)
	}
	if levels&AccessReadOwn != 0 {
		r.ReadOwn = Bool(false)
	}
	return r
}

// Bool returns a pointer to b, for building rules in code.
func Bool(b bool) *bool {
	return &b
}

func (r FolderRule) clone() FolderRule {
	out := FolderRule{Path: r.Path}
	if r.Read != nil {
		out.Read = Bool(*r.Read)
	}
	if r.Write != nil {
		out.Write = Bool(*r.Write)
	}
	if r.ReadOwn != nil {
		out.ReadOwn = Bool(*r.ReadOwn)
	}
	return out
}

// compiledRule is a FolderRule reduced to a normalized path and two masks.
type compiledRule struct {
	path  string
	allow AccessLevel
	deny  AccessLevel
}

func compileRule(rule FolderRule) (*compiledRule, error) {
	path, ok := pathsafe.NormalizeRelPath(rule.Path)
	if !ok {
		return nil, ErrInvalidRulePath
	}

	c := &compiledRule{path: path}
	c.set(AccessRead, rule.Read)
	c.set(AccessWrite, rule.Write)
	c.set(AccessReadOwn, rule.ReadOwn)
	return c, nil
}

func (c *compiledRule) set(level AccessLevel, value *bool) {
	if value == nil {
		return
	}
	if *value {
		c.allow |= level
	} else {
		c.deny |= level
	}
}
