package access

import (
	"errors"

	"github.com/openmined/sharegate/internal/pathsafe"
)

// MaxRuleDepth is the deepest folder a rule can be attached to.
const MaxRuleDepth = 1<<8 - 1

var ErrMaxDepthExceeded = errors.New("maximum depth exceeded")

// ruleTree stores folder rules in an n-ary tree keyed by path segment, so a lookup
// costs O(depth) instead of a scan over every rule.
type ruleTree struct {
	root *ruleNode
}

func newRuleTree() *ruleTree {
	return &ruleTree{
		root: newRuleNode("", 0),
	}
}

// add attaches a rule to the node for its path.
// A second rule for the same path is rejected; the first definition wins.
func (t *ruleTree) add(rule *compiledRule) error {
	parts := pathsafe.SplitRelPath(rule.path)
	if len(parts) > MaxRuleDepth {
		return ErrMaxDepthExceeded
	}

	current := t.root
	for i, part := range parts {
		child, exists := current.child(part)
		if !exists {
			child = newRuleNode(pathsafe.JoinRel(current.path, part), uint8(i+1))
			current.setChild(part, child)
		}
		current = child
	}

	if current.rule != nil {
		return ErrDuplicateRule
	}

	current.rule = rule
	return nil
}

// lookup returns every rule on the way to rel, broadest first.
func (t *ruleTree) lookup(rel string) []*compiledRule {
	var matched []*compiledRule

	current := t.root
	if current.rule != nil {
		matched = append(matched, current.rule)
	}

	for _, part := range pathsafe.SplitRelPath(rel) {
		child, exists := current.child(part)
		if !exists {
			break
		}

		current = child
		if current.rule != nil {
			matched = append(matched, current.rule)
		}
	}

	return matched
}

// nearest returns the most specific rule for rel, or nil.
func (t *ruleTree) nearest(rel string) *compiledRule {
	matched := t.lookup(rel)
	if len(matched) == 0 {
		return nil
	}
	return matched[len(matched)-1]
}
