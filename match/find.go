package match

import "github.com/codalyze/sastcore/ast"

// Result is one successful match produced by FindMatches: the subtree it
// matched and the bindings established at that subtree.
type Result struct {
	Node     *ast.Node
	Bindings Bindings
}

// FindMatches attempts p against every node of the tree rooted at root,
// in pre-order, returning one Result per successful match. A node's match
// attempt is independent of its ancestors': failing at a node does not
// prevent descending into its children, and a match at a node does not
// prevent also matching inside its subtree. Recursion stops past
// cfg.MaxDepth when it is positive.
func FindMatches(p *Pattern, root *ast.Node, cfg Config) []Result {
	var results []Result
	findMatches(p, root, 0, cfg, &results)
	return results
}

func findMatches(p *Pattern, node *ast.Node, depth int, cfg Config, results *[]Result) {
	if node == nil {
		return
	}
	if cfg.MaxDepth > 0 && depth > cfg.MaxDepth {
		return
	}

	if bindings, ok := Match(p, node, NewBindings(), cfg); ok {
		cfg.emit("match at " + string(node.NodeType) + ": matched")
		*results = append(*results, Result{Node: node, Bindings: bindings})
	}

	for _, child := range node.Children {
		findMatches(p, child, depth+1, cfg, results)
	}
}
