package match

import (
	"strings"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/pattern"
)

// matchSequence matches a Sequence pattern's children against node's
// AST children. Per §4.3 the pattern tree never holds a length-1 Sequence
// (tree.sequence collapses that to the single child pattern, implementing
// "k = 1 delegates to the single child" at compile time), so this always
// sees at least two pattern elements.
//
// Ellipsis metavariables are given variable-width consumption — "zero or
// more consecutive siblings" — rather than the fixed one-node-per-pattern-
// element width a literal reading of the offset-search bullet would give a
// pattern with no ellipsis element. Sequences do not require the entire
// child list to be consumed: trailing children past the matched window are
// ignored.
func matchSequence(patterns []*Pattern, node *ast.Node, bindings Bindings, cfg Config) (Bindings, bool) {
	children := node.Children
	for start := 0; start <= len(children); start++ {
		snap := bindings.Snapshot()
		if result, ok := matchFrom(patterns, 0, children, start, cfg, snap); ok {
			return result, true
		}
	}
	return bindings, false
}

func matchFrom(patterns []*Pattern, pidx int, children []*ast.Node, cidx int, cfg Config, bindings Bindings) (Bindings, bool) {
	if pidx == len(patterns) {
		return bindings, true
	}
	p := patterns[pidx]

	if p.Kind == pattern.KindEllipsisMetavariable {
		// Widest match first: an ellipsis with nothing after it should soak
		// up every remaining sibling rather than bind empty and leave them
		// unconsumed. Narrower widths are still tried on backtrack so a
		// pattern element following the ellipsis can still find its node.
		maxWidth := len(children) - cidx
		for n := maxWidth; n >= 0; n-- {
			consumed := children[cidx : cidx+n]
			snap := bindings.Snapshot()
			bound, ok := bindEllipsis(snap, p.Name, consumed, cfg)
			if !ok {
				continue
			}
			if result, ok := matchFrom(patterns, pidx+1, children, cidx+n, cfg, bound); ok {
				return result, true
			}
		}
		return bindings, false
	}

	if cidx >= len(children) {
		return bindings, false
	}
	snap := bindings.Snapshot()
	result, ok := Match(p, children[cidx], snap, cfg)
	if !ok {
		return bindings, false
	}
	return matchFrom(patterns, pidx+1, children, cidx+1, cfg, result)
}

func bindEllipsis(bindings Bindings, name string, consumed []*ast.Node, cfg Config) (Bindings, bool) {
	if len(consumed) == 0 {
		return bindings.bindText(name, "", "", nil, cfg.CaseSensitive)
	}
	texts := make([]string, len(consumed))
	loc := consumed[0].Location()
	for i, c := range consumed {
		texts[i] = c.Text()
		if cl := c.Location(); cl != nil {
			if loc == nil {
				u := *cl
				loc = &u
			} else {
				u := loc.Union(*cl)
				loc = &u
			}
		}
	}
	return bindings.bindText(name, strings.Join(texts, " "), consumed[0].NodeType, loc, cfg.CaseSensitive)
}
