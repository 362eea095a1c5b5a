package access

import (
	"errors"
	"log/slog"
	"maps"
	"slices"
)

// Permission is the stored record for one user.
type Permission struct {
	Admin      bool         `yaml:"admin,omitempty" json:"admin,omitempty"`
	FolderOnly bool         `yaml:"folder_only,omitempty" json:"folder_only,omitempty"`
	ReadOnly   bool         `yaml:"read_only,omitempty" json:"read_only,omitempty"`
	Folders    []FolderRule `yaml:"folders,omitempty" json:"folders,omitempty"`
}

func (p *Permission) clone() *Permission {
	out := &Permission{
		Admin:      p.Admin,
		FolderOnly: p.FolderOnly,
		ReadOnly:   p.ReadOnly,
	}
	if len(p.Folders) > 0 {
		out.Folders = make([]FolderRule, 0, len(p.Folders))
		for _, rule := range p.Folders {
			out.Folders = append(out.Folders, rule.clone())
		}
	}
	return out
}

type record struct {
	perm *Permission
	tree *ruleTree
}

// Table maps usernames to their compiled permission records.
// A Table is immutable once built and can be shared between goroutines.
type Table struct {
	records map[string]*record
}

// NewTable copies and compiles the given records. Rules with an invalid path and
// duplicate rules for the same path are logged and skipped; for duplicates the
// first definition is kept.
func NewTable(users map[string]*Permission) *Table {
	t := &Table{
		records: make(map[string]*record, len(users)),
	}

	for user, perm := range users {
		if user == "" || perm == nil {
			slog.Warn("permission record skipped", "user", user)
			continue
		}
		t.records[user] = compileRecord(user, perm)
	}

	return t
}

func compileRecord(user string, perm *Permission) *record {
	rec := &record{
		perm: perm.clone(),
		tree: newRuleTree(),
	}

	for i, rule := range rec.perm.Folders {
		compiled, err := compileRule(rule)
		if err != nil {
			slog.Warn("folder rule ignored", "user", user, "index", i, "path", rule.Path, "error", err)
			continue
		}

		if err := rec.tree.add(compiled); err != nil {
			if errors.Is(err, ErrDuplicateRule) {
				slog.Warn("duplicate folder rule ignored", "user", user, "index", i, "path", compiled.path)
			} else {
				slog.Warn("folder rule ignored", "user", user, "index", i, "path", compiled.path, "error", err)
			}
		}
	}

	return rec
}

// Len returns the number of users in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.records)
}

// Users returns the usernames in the table, sorted.
func (t *Table) Users() []string {
	if t == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(t.records))
}

// Permission returns a copy of the stored record for user.
func (t *Table) Permission(user string) (*Permission, bool) {
	rec, ok := t.lookup(user)
	if !ok {
		return nil, false
	}
	return rec.perm.clone(), true
}

// Records returns a deep copy of every stored record.
func (t *Table) Records() map[string]*Permission {
	out := make(map[string]*Permission, t.Len())
	if t == nil {
		return out
	}
	for user, rec := range t.records {
		out[user] = rec.perm.clone()
	}
	return out
}

func (t *Table) lookup(user string) (*record, bool) {
	if t == nil {
		return nil, false
	}
	rec, ok := t.records[user]
	return rec, ok
}
