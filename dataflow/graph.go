// Package dataflow builds a labeled directed graph of program points from
// the universal AST, classifies nodes into taint sources/sinks/sanitizers
// by reusing the pattern matcher (package match, via package rule's
// composition), and propagates taint to a fixed point to report
// source-to-sink flows (spec §4.5, the data-flow / taint core, C5).
package dataflow

import "github.com/codalyze/sastcore/ast"

// EdgeKind tags the variant of a GraphEdge.
type EdgeKind int

const (
	EdgeControlFlow EdgeKind = iota
	EdgeDataFlow
	EdgeCall
	EdgeReturn
)

// GraphNode is one program point: an expression or statement of interest
// materialized while walking the AST. ID is a dense, monotonically
// assigned integer, stable for the lifetime of one analysis run (spec §3).
type GraphNode struct {
	ID         int
	NodeType   ast.NodeType
	Text       string
	HasText    bool
	Location   *ast.Location
	Attributes map[string]string

	// astNode is the backing universal-AST node, nil for synthetic nodes
	// (e.g. the per-callee placeholder an external call graph resolves
	// to). Classification matches rule patterns against astNode.
	astNode *ast.Node
}

// GraphEdge is a directed edge between two GraphNode ids. Branch and
// Condition are set only on the pair of edges a conditional split
// produces from an if-statement's condition into its two branches (spec
// §4.5 "Merging and splitting"); both are empty otherwise.
type GraphEdge struct {
	From, To  int
	Kind      EdgeKind
	Branch    string
	Condition string
}

// Graph is the intra-file data-flow graph built from one AST. Approximate
// is set when propagation had to drop work past a configured bound (spec §4.5 "Path and depth bounds").
type Graph struct {
	Nodes       []*GraphNode
	out         map[int][]GraphEdge
	in          map[int][]GraphEdge
	byAST       map[*ast.Node]int
	Approximate bool
}

func newGraph() *Graph {
	return &Graph{
		out:   map[int][]GraphEdge{},
		in:    map[int][]GraphEdge{},
		byAST: map[*ast.Node]int{},
	}
}

// addNode materializes a new GraphNode backed by n and returns its id.
func (g *Graph) addNode(n *ast.Node) int {
	id := len(g.Nodes)
	gn := &GraphNode{ID: id, NodeType: n.NodeType, Location: n.Location(), Attributes: n.Attributes, astNode: n}
	if n.HasText() {
		gn.HasText = true
		gn.Text = n.Text()
	}
	g.Nodes = append(g.Nodes, gn)
	g.byAST[n] = id
	return id
}

// addSyntheticNode materializes a GraphNode with no backing AST node, used
// for the per-callee placeholder an external call graph resolves call
// sites to.
func (g *Graph) addSyntheticNode(nodeType ast.NodeType, text string) int {
	id := len(g.Nodes)
	g.Nodes = append(g.Nodes, &GraphNode{ID: id, NodeType: nodeType, Text: text, HasText: text != ""})
	return id
}

func (g *Graph) addEdge(from, to int, kind EdgeKind) {
	g.addLabeledEdge(from, to, kind, "", "")
}

func (g *Graph) addLabeledEdge(from, to int, kind EdgeKind, branch, condition string) {
	e := GraphEdge{From: from, To: to, Kind: kind, Branch: branch, Condition: condition}
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
}

// Node returns the GraphNode for id.
func (g *Graph) Node(id int) *GraphNode { return g.Nodes[id] }

// NodeFor returns the GraphNode id backed by n, if any was materialized.
func (g *Graph) NodeFor(n *ast.Node) (int, bool) {
	id, ok := g.byAST[n]
	return id, ok
}

// Out returns the edges leaving id.
func (g *Graph) Out(id int) []GraphEdge { return g.out[id] }

// In returns the edges entering id.
func (g *Graph) In(id int) []GraphEdge { return g.in[id] }
