package rule

import (
	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/match"
)

// Bindings aliases the matcher's binding set so callers of this package
// don't need a separate import just for type signatures.
type Bindings = match.Bindings

// Finding is one reported issue: a rule's verdict at a location.
type Finding struct {
	RuleID        string
	Message       string
	Severity      Severity
	Confidence    Confidence
	Location      ast.Location
	Metadata      map[string]string
	FixSuggestion string
}

// Match is a surviving (subtree, bindings) pair produced by evaluating a
// PatternSpec against an AST.
type Match struct {
	Node     *ast.Node
	Bindings Bindings
}
