package dataflow

// CallGraph is the externally supplied, cross-file call graph the builder
// may use to add call/return edges between a call site and the function
// it invokes (spec §3: "call/return edges are present only when an
// external collaborator supplies them"; §4.5 propagation treats them like
// any other data-flow edge). Adapted from
// graph/callgraph/core.CallGraph's forward/reverse edge bookkeeping,
// reduced to the name-keyed edges this package's builder consults — the
// richer CallSite/type-inference metadata belongs to the concrete call-
// graph construction the spec places out of scope (§1).
type CallGraph struct {
	Edges        map[string][]string
	ReverseEdges map[string][]string
}

// NewCallGraph returns an empty CallGraph with its maps pre-allocated.
func NewCallGraph() *CallGraph {
	return &CallGraph{Edges: map[string][]string{}, ReverseEdges: map[string][]string{}}
}

// AddEdge records that caller invokes callee, updating both directions.
func (cg *CallGraph) AddEdge(caller, callee string) {
	cg.Edges[caller] = append(cg.Edges[caller], callee)
	cg.ReverseEdges[callee] = append(cg.ReverseEdges[callee], caller)
}

// Knows reports whether name appears anywhere in the call graph, as
// either a caller or a callee.
func (cg *CallGraph) Knows(name string) bool {
	if _, ok := cg.Edges[name]; ok {
		return true
	}
	_, ok := cg.ReverseEdges[name]
	return ok
}
