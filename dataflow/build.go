package dataflow

import "github.com/codalyze/sastcore/ast"

// builder walks an AST in pre-order, materializing GraphNodes and wiring
// them together per spec §4.5's "Graph construction" rules. It has no
// parent pointers to work with (the universal AST is parent-less, spec
// §9), so it tracks the "most recent in-scope definition" of each
// variable name as an explicit map threaded through the walk, the same
// technique the spec's design notes prescribe for pattern-inside (an
// external ancestor/definition stack rather than back-references).
type builder struct {
	g       *Graph
	defs    map[string]int
	calls   *CallGraph
	callees map[string]int // callee name -> synthetic GraphNode id
}

// BuildGraph materializes a Graph from root. calls is the optional
// externally supplied call graph (spec §3); nil is valid and simply omits
// call/return edges.
func BuildGraph(root *ast.Node, calls *CallGraph) *Graph {
	g := newGraph()
	b := &builder{g: g, defs: map[string]int{}, calls: calls, callees: map[string]int{}}
	if root == nil {
		return g
	}
	b.walkStatements(root.Children)
	return g
}

func cloneDefs(defs map[string]int) map[string]int {
	out := make(map[string]int, len(defs))
	for k, v := range defs {
		out[k] = v
	}
	return out
}

func identifierName(n *ast.Node) string {
	if n == nil {
		return ""
	}
	if n.HasIdentifier() {
		return n.Identifier()
	}
	return n.Text()
}

// walkStatements processes a list of sibling statements (one block),
// threading control-flow edges between the materialized node of each
// consecutive pair in declared order (spec §4.5: "control-flow edges
// reflecting statement order within blocks").
func (b *builder) walkStatements(stmts []*ast.Node) {
	prev := -1
	for _, stmt := range stmts {
		id := b.processStatement(stmt)
		if id < 0 {
			continue
		}
		if prev >= 0 {
			b.g.addEdge(prev, id, EdgeControlFlow)
		}
		prev = id
	}
}

// walkBranch processes a single if/while/for branch body, which may be a
// block statement or (in some adapters) a single bare statement.
func (b *builder) walkBranch(n *ast.Node) {
	if n == nil {
		return
	}
	if n.NodeType == ast.BlockStatement {
		b.walkStatements(n.Children)
		return
	}
	b.processStatement(n)
}

// processStatement materializes stmt (and whatever it contains) and
// returns its GraphNode id, or -1 if stmt produced no node (e.g. an empty
// block).
func (b *builder) processStatement(stmt *ast.Node) int {
	if stmt == nil {
		return -1
	}
	switch stmt.NodeType {
	case ast.ExpressionStatement:
		if stmt.ChildCount() == 0 {
			return -1
		}
		return b.processExpr(stmt.ChildAt(0))

	case ast.AssignmentExpression:
		return b.processExpr(stmt)

	case ast.VariableDeclaration:
		return b.processDeclaration(stmt)

	case ast.ReturnStatement:
		return b.processReturn(stmt)

	case ast.IfStatement:
		return b.processIf(stmt)

	case ast.WhileStatement, ast.ForStatement:
		return b.processLoop(stmt)

	case ast.BlockStatement:
		b.walkStatements(stmt.Children)
		return -1

	case ast.TryStatement:
		id := b.g.addNode(stmt)
		for _, c := range stmt.Children {
			b.walkBranch(c)
		}
		return id

	default:
		id := b.g.addNode(stmt)
		for _, c := range stmt.Children {
			b.processExpr(c)
		}
		return id
	}
}

// processDeclaration treats `var x = value` like an assignment: children
// are expected as [target, value, ...]; a bare declaration with no
// initializer (one child) still materializes the target as a fresh,
// untainted definition.
func (b *builder) processDeclaration(stmt *ast.Node) int {
	if stmt.ChildCount() == 0 {
		return b.g.addNode(stmt)
	}
	target := stmt.ChildAt(0)
	defID := b.g.addNode(target)
	if stmt.ChildCount() >= 2 {
		valueID := b.processExpr(stmt.ChildAt(1))
		b.g.addEdge(valueID, defID, EdgeDataFlow)
	}
	if name := identifierName(target); name != "" {
		b.defs[name] = defID
	}
	return defID
}

func (b *builder) processReturn(stmt *ast.Node) int {
	id := b.g.addNode(stmt)
	if stmt.ChildCount() > 0 {
		valueID := b.processExpr(stmt.ChildAt(0))
		b.g.addEdge(valueID, id, EdgeDataFlow)
	}
	return id
}

// processIf materializes the if-statement's own node, processes its
// condition, and walks both branches from a saved snapshot of definitions
// so one branch's assignments do not leak into the other while building
// (spec §9 notes accepting this kind of approximation; exact merge
// semantics belong to propagation, not graph construction). A token that
// reaches the condition is wired to fan out into both branches via a
// conditional-split edge pair tagged branch=true/false with the
// condition's text (spec §4.5 "Merging and splitting").
func (b *builder) processIf(stmt *ast.Node) int {
	id := b.g.addNode(stmt)
	if stmt.ChildCount() == 0 {
		return id
	}
	condID := b.processExpr(stmt.ChildAt(0))
	condText := stmt.ChildAt(0).Text()

	saved := cloneDefs(b.defs)

	if stmt.ChildCount() > 1 {
		thenBranch := stmt.ChildAt(1)
		entry := b.branchEntryID(thenBranch)
		if entry >= 0 {
			b.g.addLabeledEdge(condID, entry, EdgeDataFlow, "true", condText)
		}
	}
	if stmt.ChildCount() > 2 {
		b.defs = cloneDefs(saved)
		elseBranch := stmt.ChildAt(2)
		entry := b.branchEntryID(elseBranch)
		if entry >= 0 {
			b.g.addLabeledEdge(condID, entry, EdgeDataFlow, "false", condText)
		}
	}
	b.defs = saved
	return id
}

// branchEntryID walks branch and returns the GraphNode id of the first
// statement it materializes, or -1 for an empty branch.
func (b *builder) branchEntryID(branch *ast.Node) int {
	if branch == nil {
		return -1
	}
	stmts := branch.Children
	if branch.NodeType != ast.BlockStatement {
		stmts = []*ast.Node{branch}
	}
	firstLen := len(b.g.Nodes)
	b.walkBranch(branch)
	if len(b.g.Nodes) == firstLen || len(stmts) == 0 {
		return -1
	}
	return firstLen
}

func (b *builder) processLoop(stmt *ast.Node) int {
	id := b.g.addNode(stmt)
	saved := cloneDefs(b.defs)
	for _, c := range stmt.Children {
		if c.NodeType == ast.BlockStatement {
			b.walkBranch(c)
		} else {
			b.processExpr(c)
		}
	}
	b.defs = saved
	return id
}

// processExpr materializes n (if it is a node of interest) and returns
// the GraphNode id representing its value, wiring data-flow edges from
// whatever it depends on.
func (b *builder) processExpr(n *ast.Node) int {
	if n == nil {
		return -1
	}
	switch n.NodeType {
	case ast.Identifier:
		return b.processIdentifierUse(n)

	case ast.Literal:
		return b.g.addNode(n)

	case ast.AssignmentExpression:
		return b.processAssignment(n)

	case ast.CallExpression:
		return b.processCall(n)

	default:
		id := b.g.addNode(n)
		for _, c := range n.Children {
			depID := b.processExpr(c)
			if depID >= 0 {
				b.g.addEdge(depID, id, EdgeDataFlow)
			}
		}
		return id
	}
}

// processIdentifierUse resolves a read of an identifier back to its most
// recent in-scope definition (spec §4.5: "from a use of an identifier back
// to its most recent in-scope definition") by returning that definition's
// own GraphNode id rather than materializing a second node for the read.
// A use with no known definition (an unresolved free variable, a callee
// name) still gets its own node so callers always receive a valid id.
func (b *builder) processIdentifierUse(n *ast.Node) int {
	if defID, ok := b.defs[identifierName(n)]; ok {
		return defID
	}
	return b.g.addNode(n)
}

// processAssignment wires the value into a fresh definition node for the
// target and records it as the name's most recent definition.
func (b *builder) processAssignment(n *ast.Node) int {
	if n.ChildCount() < 2 {
		return b.g.addNode(n)
	}
	target := n.ChildAt(0)
	value := n.ChildAt(1)

	valueID := b.processExpr(value)
	defID := b.g.addNode(target)
	if valueID >= 0 {
		b.g.addEdge(valueID, defID, EdgeDataFlow)
	}
	if name := identifierName(target); name != "" {
		b.defs[name] = defID
	}
	return defID
}

// processCall materializes the call, wires each argument into it ("from
// argument expressions into the call"), and — when an external call graph
// is supplied and resolves the callee — adds a call/return edge pair
// through a synthetic per-callee node so inter-procedural taint can pass
// through it like any other data-flow edge.
func (b *builder) processCall(n *ast.Node) int {
	callID := b.g.addNode(n)
	for i := 1; i < n.ChildCount(); i++ {
		argID := b.processExpr(n.ChildAt(i))
		if argID >= 0 {
			b.g.addEdge(argID, callID, EdgeDataFlow)
		}
	}

	if n.ChildCount() > 0 {
		b.processExpr(n.ChildAt(0))
	}

	calleeName := calleeText(n)
	if b.calls != nil && calleeName != "" && b.calls.Knows(calleeName) {
		syntheticID, ok := b.callees[calleeName]
		if !ok {
			syntheticID = b.g.addSyntheticNode(ast.FunctionDeclaration, calleeName)
			b.callees[calleeName] = syntheticID
		}
		b.g.addEdge(callID, syntheticID, EdgeCall)
		b.g.addEdge(syntheticID, callID, EdgeReturn)
	}
	return callID
}

func calleeText(call *ast.Node) string {
	if call.ChildCount() == 0 {
		return ""
	}
	callee := call.ChildAt(0)
	if callee.HasIdentifier() {
		return callee.Identifier()
	}
	return callee.Text()
}
