// Package parseradapter is the external boundary of spec §6: a thin
// collaborator interface a concrete language grammar implements to
// produce the closed, language-agnostic universal AST (package ast) the
// core (ast/match/pattern/rule/dataflow) consumes. The core never
// imports a concrete grammar package directly.
package parseradapter

import (
	"context"
	"fmt"

	"github.com/codalyze/sastcore/ast"
)

// Adapter converts source bytes for one language into a root ast.Node.
// Implementations own whatever concrete parser they wrap (tree-sitter,
// a hand-written parser, an external process); the core only ever sees
// the ast.Node tree Parse returns.
type Adapter interface {
	// Language is the canonical name this adapter registers under (e.g.
	// "go"), used as the Language field of rule.ExecutionContext and for
	// a rule's Languages filter.
	Language() string

	// Supports reports whether path names a file this adapter should
	// parse, by extension or other filename convention.
	Supports(path string) bool

	// Parse converts src (the contents of path) into a root ast.Node. An
	// adapter returns a non-nil error only for inputs its underlying
	// parser cannot recover from; partial/malformed source is otherwise
	// expected to produce a best-effort tree, matching how a pattern
	// matcher over real-world source must tolerate syntax the grammar
	// only partially understands.
	Parse(ctx context.Context, path string, src []byte) (*ast.Node, error)
}

// UnsupportedFileError reports that no registered adapter claimed a path.
type UnsupportedFileError struct {
	Path string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("parseradapter: no adapter supports %q", e.Path)
}
