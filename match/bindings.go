// Package match implements the backtracking matcher that decides whether a
// compiled pattern (package pattern) matches a subtree of the universal AST
// (package ast), producing metavariable bindings on success.
package match

import "github.com/codalyze/sastcore/ast"

// Binding is the bound value of one metavariable: the text it was bound to,
// the node-type of the node it came from, and the location of that bind,
// when available. Node is the bound node itself (nil for an ellipsis bind
// that consumed zero or more than one sibling), kept so rule-level
// constraints (metavariable-analysis, custom conditions) can inspect it
// directly instead of only its captured text.
type Binding struct {
	Name     string
	Text     string
	NodeType ast.NodeType
	Location *ast.Location
	Node     *ast.Node
}

// Bindings is the set of metavariable bindings accumulated during one match
// attempt. The zero value is an empty binding set.
type Bindings map[string]Binding

// NewBindings returns an empty binding set.
func NewBindings() Bindings {
	return Bindings{}
}

// Snapshot returns an independent copy of b, for the matcher to restore to
// if a tentative sub-match fails. This is the "snapshot-and-restore" binding
// transaction mechanism: every tentative sub-match captures a snapshot
// before proceeding and restores it on failure; a success commits upward by
// simply keeping the mutated copy.
func (b Bindings) Snapshot() Bindings {
	clone := make(Bindings, len(b))
	for k, v := range b {
		clone[k] = v
	}
	return clone
}

// Get returns the binding for name and whether it is present.
func (b Bindings) Get(name string) (Binding, bool) {
	v, ok := b[name]
	return v, ok
}

// bindText attempts to bind name to a (text, nodeType, location) triple.
// It succeeds if no prior binding of name exists, or if the prior binding's
// text compares equal to text under caseSensitive rules (spec §3: "if name
// N is bound twice, both bindings' bound-text must compare equal").
func (b Bindings) bindText(name, text string, nodeType ast.NodeType, loc *ast.Location, caseSensitive bool) (Bindings, bool) {
	return b.bind(name, text, nodeType, loc, nil, caseSensitive)
}

// bind is bindText plus the originating node, when the bind corresponds to
// exactly one node (a plain Metavariable bind, not a multi-sibling
// ellipsis consumption).
func (b Bindings) bind(name, text string, nodeType ast.NodeType, loc *ast.Location, node *ast.Node, caseSensitive bool) (Bindings, bool) {
	if existing, ok := b[name]; ok {
		if !textEqual(existing.Text, text, caseSensitive) {
			return b, false
		}
		return b, true
	}
	next := b.Snapshot()
	next[name] = Binding{Name: name, Text: text, NodeType: nodeType, Location: loc, Node: node}
	return next, true
}

func textEqual(a, bStr string, caseSensitive bool) bool {
	if caseSensitive {
		return a == bStr
	}
	return equalFold(a, bStr)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
