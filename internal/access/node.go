package access

import "fmt"

// ruleNode is one path segment in the rule tree.
// Nodes are only mutated while a Table is being built and are read-only afterwards.
type ruleNode struct {
	rule     *compiledRule        // rule attached to exactly this path, if any
	children map[string]*ruleNode // key is the path segment
	path     string               // full relative path to this node
	depth    uint8                // 0 is the top level
}

func newRuleNode(path string, depth uint8) *ruleNode {
	// children are allocated on first insert
	return &ruleNode{
		path:  path,
		depth: depth,
	}
}

func (n *ruleNode) child(key string) (*ruleNode, bool) {
	child, ok := n.children[key]
	return child, ok
}

func (n *ruleNode) setChild(key string, child *ruleNode) {
	if n.children == nil {
		n.children = make(map[string]*ruleNode)
	}
	n.children[key] = child
}

func (n *ruleNode) String() string {
	return fmt.Sprintf("ruleNode{path: %s, depth: %d, rule: %v}", n.path, n.depth, n.rule != nil)
}
