package pathsafe

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
	"sync"

	gitignore "github.com/sabhiram/go-gitignore"
)

// FilterConfig is the operator supplied part of entry filtering.
type FilterConfig struct {
	// IgnoreRegex holds one regular expression per line, delimited or bare.
	IgnoreRegex string
	// IgnoreFile is an optional file with gitignore-style lines matched against relative paths.
	IgnoreFile string
}

// Filter decides which directory entries are hidden from listings and probes.
// It is immutable once built and safe for concurrent use. A nil *Filter applies
// only the fixed lists.
type Filter struct {
	rules     *IgnoreRuleSet
	gitignore *gitignore.GitIgnore
}

// NewFilter compiles the operator rules. Problems with individual rules or with the
// ignore file are logged and never fatal.
func NewFilter(cfg FilterConfig) *Filter {
	f := &Filter{
		rules: CompileIgnoreRules(cfg.IgnoreRegex),
	}

	if cfg.IgnoreFile != "" {
		lines, err := readIgnoreFile(cfg.IgnoreFile)
		if err != nil {
			slog.Warn("ignore file not loaded", "path", cfg.IgnoreFile, "error", err)
		} else if len(lines) > 0 {
			f.gitignore = gitignore.CompileIgnoreLines(lines...)
			slog.Info("loaded ignore file", "path", cfg.IgnoreFile, "rules", len(lines))
		}
	}

	return f
}

// LazyFilter returns a getter that builds the filter on first use and then keeps
// returning the same instance for the life of the process.
func LazyFilter(load func() FilterConfig) func() *Filter {
	return sync.OnceValue(func() *Filter {
		return NewFilter(load())
	})
}

// Rules returns the compiled regular expression rules.
func (f *Filter) Rules() *IgnoreRuleSet {
	if f == nil {
		return nil
	}
	return f.rules
}

// ShouldIgnoreEntry reports whether name, found in the directory parentRel, is on the fixed
// deny-list or matched by an operator rule. Rules are tried against the bare name and the
// joined relative path.
func (f *Filter) ShouldIgnoreEntry(name, parentRel string) bool {
	if IsDenied(name) {
		return true
	}

	if f == nil {
		return false
	}

	joined := JoinRel(parentRel, name)
	if f.rules.Match(name) || f.rules.Match(joined) {
		return true
	}

	if f.gitignore != nil && f.gitignore.MatchesPath(joined) {
		return true
	}

	return false
}

// Hidden reports whether an entry must never be shown or descended into.
func (f *Filter) Hidden(name, parentRel string) bool {
	return !IsSafeSegment(name) || IsReserved(name) || f.ShouldIgnoreEntry(name, parentRel)
}

// HiddenPath reports whether any segment of a normalized relative path is hidden.
func (f *Filter) HiddenPath(rel string) bool {
	parent := ""
	for _, name := range SplitRelPath(rel) {
		if f.Hidden(name, parent) {
			return true
		}
		parent = JoinRel(parent, name)
	}
	return false
}

func readIgnoreFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return lines, nil
}
