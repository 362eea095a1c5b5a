package pathsafe

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
)

// bareDelimiter wraps patterns that come without their own delimiters.
const bareDelimiter = '~'

var (
	ErrEmptyPattern       = errors.New("empty pattern")
	ErrNotDelimited       = errors.New("pattern is not delimited")
	ErrUnsupportedFlag    = errors.New("unsupported pattern flag")
	errUnterminatedEscape = errors.New("trailing backslash")
)

var closingDelimiters = map[byte]byte{
	'(': ')',
	'[': ']',
	'{': '}',
	'<': '>',
}

// IgnoreRuleSet is an immutable list of compiled ignore patterns.
// The zero value and a nil set match nothing.
type IgnoreRuleSet struct {
	patterns []string
	rules    []*regexp.Regexp
}

// CompileIgnoreRules builds a rule set from a multi-line operator value, one pattern per line.
// Patterns that fail to compile are logged and dropped; the rest stay active.
func CompileIgnoreRules(raw string) *IgnoreRuleSet {
	set := &IgnoreRuleSet{}

	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		normalized := NormalizeIgnorePattern(line)
		re, err := CompileIgnorePattern(normalized)
		if err != nil {
			slog.Warn("ignore pattern dropped", "pattern", line, "error", err)
			continue
		}

		set.patterns = append(set.patterns, normalized)
		set.rules = append(set.rules, re)
	}

	if len(set.rules) > 0 {
		slog.Debug("ignore rules compiled", "count", len(set.rules))
	}

	return set
}

// Match reports whether value matches any rule.
func (s *IgnoreRuleSet) Match(value string) bool {
	if s == nil {
		return false
	}

	for _, re := range s.rules {
		if re.MatchString(value) {
			return true
		}
	}
	return false
}

// Len returns the number of active rules.
func (s *IgnoreRuleSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.rules)
}

// Patterns returns the normalized source of every active rule.
func (s *IgnoreRuleSet) Patterns() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.patterns)
}

// NormalizeIgnorePattern returns pattern unchanged when it is already delimited
// (e.g. "/\.bak$/i" or "#^tmp#"). A bare pattern is wrapped in "~" after escaping
// any literal "~" it contains.
func NormalizeIgnorePattern(pattern string) string {
	if _, _, err := splitDelimited(pattern); err == nil {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern) + 2)
	b.WriteByte(bareDelimiter)
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			b.WriteByte(c)
			b.WriteByte(pattern[i+1])
			i++
		case c == bareDelimiter:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(bareDelimiter)
	return b.String()
}

// CompileIgnorePattern compiles a delimited pattern. Flags i, m, s and U map to the
// matching inline flags; u, D and S are accepted and have no effect.
func CompileIgnorePattern(delimited string) (*regexp.Regexp, error) {
	body, flags, err := splitDelimited(delimited)
	if err != nil {
		return nil, err
	}

	var inline []byte
	for i := 0; i < len(flags); i++ {
		switch f := flags[i]; f {
		case 'i', 'm', 's', 'U':
			if !slices.Contains(inline, f) {
				inline = append(inline, f)
			}
		case 'u', 'D', 'S':
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFlag, f)
		}
	}

	expr := body
	if len(inline) > 0 {
		expr = "(?" + string(inline) + ")" + body
	}

	return regexp.Compile(expr)
}

// splitDelimited separates a delimited pattern into its body and trailing flags.
func splitDelimited(pattern string) (string, string, error) {
	if len(pattern) < 2 {
		if pattern == "" {
			return "", "", ErrEmptyPattern
		}
		return "", "", ErrNotDelimited
	}

	open := pattern[0]
	if !isDelimiter(open) {
		return "", "", ErrNotDelimited
	}

	closer, bracket := closingDelimiters[open]
	if !bracket {
		closer = open
	}

	depth := 1
	end := -1
	for i := 1; i < len(pattern) && end < 0; i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			if i+1 >= len(pattern) {
				return "", "", errUnterminatedEscape
			}
			i++
		case bracket && c == open:
			depth++
		case c == closer:
			depth--
			if depth == 0 {
				end = i
			}
		}
	}

	if end < 0 {
		return "", "", ErrNotDelimited
	}
	if end == 1 {
		return "", "", ErrEmptyPattern
	}

	flags := pattern[end+1:]
	for i := 0; i < len(flags); i++ {
		if !isASCIILetter(flags[i]) {
			return "", "", ErrNotDelimited
		}
	}

	return pattern[1:end], flags, nil
}

func isDelimiter(c byte) bool {
	switch {
	case c >= 0x80:
		return false
	case isASCIILetter(c), c >= '0' && c <= '9':
		return false
	case c == '\\', c == ' ', c == '\t', c == '\n', c == '\r', c == '\v', c == '\f':
		return false
	case c < 0x20 || c == 0x7f:
		return false
	}
	return true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
