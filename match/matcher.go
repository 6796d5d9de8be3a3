package match

import (
	"strings"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/pattern"
)

// Pattern is an alias so callers of this package don't need to import
// package pattern separately for type signatures.
type Pattern = pattern.Pattern

// Match attempts to match p against node n, starting from bindings. On
// success it returns the bindings as they stand after the match (including
// any newly committed bindings); on failure it returns bindings unchanged,
// per the snapshot-and-restore contract: callers that want to try an
// alternative after a failed Match must have snapshotted beforehand.
func Match(p *Pattern, n *ast.Node, bindings Bindings, cfg Config) (Bindings, bool) {
	if n == nil || p == nil {
		return bindings, false
	}

	switch p.Kind {
	case pattern.KindLiteral:
		return matchLiteral(p, n, bindings, cfg)
	case pattern.KindNodeType:
		if n.NodeType == ast.NodeType(p.NodeType) {
			return bindings, true
		}
		return bindings, false
	case pattern.KindWildcard:
		return bindings, true
	case pattern.KindMetavariable:
		return matchMetavariable(p, n, bindings, cfg)
	case pattern.KindEllipsisMetavariable:
		// A standalone ellipsis matched directly against one node (not
		// inside a Sequence) treats that node as the sole sibling.
		return bindEllipsis(bindings, p.Name, []*ast.Node{n}, cfg)
	case pattern.KindSequence:
		return matchSequence(p.Children, n, bindings, cfg)
	case pattern.KindAlternative:
		return matchAlternative(p.Children, n, bindings, cfg)
	default:
		return bindings, false
	}
}

func matchLiteral(p *Pattern, n *ast.Node, bindings Bindings, cfg Config) (Bindings, bool) {
	if !n.HasText() {
		return bindings, false
	}
	haystack, needle := n.Text(), p.Text
	if !cfg.CaseSensitive {
		haystack = strings.ToLower(haystack)
		needle = strings.ToLower(needle)
	}
	if strings.Contains(haystack, needle) {
		return bindings, true
	}
	return bindings, false
}

func matchMetavariable(p *Pattern, n *ast.Node, bindings Bindings, cfg Config) (Bindings, bool) {
	if !n.HasText() {
		return bindings, false
	}
	return bindings.bind(p.Name, n.Text(), n.NodeType, n.Location(), n, cfg.CaseSensitive)
}

func matchAlternative(patterns []*Pattern, n *ast.Node, bindings Bindings, cfg Config) (Bindings, bool) {
	for _, alt := range patterns {
		snap := bindings.Snapshot()
		if result, ok := Match(alt, n, snap, cfg); ok {
			return result, true
		}
	}
	return bindings, false
}
