package dataflow

import (
	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/rule"
)

// sanitizerRole is one sanitizer applied at a node: the vulnerability
// types it protects and its effectiveness in [0,1] (spec §3).
type sanitizerRole struct {
	vulnTypes     map[string]bool
	effectiveness float64
}

// role is the classification of one GraphNode: whether it is a source
// and/or sink (a node may be both, spec §4.5), the vulnerability types
// each carries, and any sanitizers applied there.
type role struct {
	isSource   bool
	sourceVuln map[string]bool
	isSink     bool
	sinkVuln   map[string]bool
	sanitizers []sanitizerRole
}

// evaluator is the subset of *rule.Engine classify needs: reusing C3 via
// C4's exported composition (spec §4.5: "the same pattern matcher (C3) is
// reused").
type evaluator interface {
	Evaluate(spec *rule.PatternSpec, root *ast.Node) ([]rule.Match, error)
}

// classify matches each of taint's source/sink/sanitizer patterns against
// root and tags the corresponding GraphNode ids in g with the resulting
// role. A pattern with an invalid regex constraint surfaces as an error,
// per spec §4.5 ("Regex errors in classification patterns surface as
// errors in the owning rule result").
func classify(e evaluator, root *ast.Node, taint *rule.TaintSpec, g *Graph) (map[int]*role, error) {
	roles := map[int]*role{}

	get := func(id int) *role {
		r, ok := roles[id]
		if !ok {
			r = &role{sourceVuln: map[string]bool{}, sinkVuln: map[string]bool{}}
			roles[id] = r
		}
		return r
	}

	for _, src := range taint.Sources {
		matches, err := e.Evaluate(src.Pattern, root)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			id, ok := g.NodeFor(m.Node)
			if !ok {
				continue
			}
			r := get(id)
			r.isSource = true
			addVulnTypes(r.sourceVuln, src.VulnTypes)
		}
	}

	for _, sink := range taint.Sinks {
		matches, err := e.Evaluate(sink.Pattern, root)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			id, ok := g.NodeFor(m.Node)
			if !ok {
				continue
			}
			r := get(id)
			r.isSink = true
			addVulnTypes(r.sinkVuln, sink.VulnTypes)
		}
	}

	for _, san := range taint.Sanitizers {
		matches, err := e.Evaluate(san.Pattern, root)
		if err != nil {
			return nil, err
		}
		effectiveness := 1.0
		if san.Effectiveness != nil {
			effectiveness = *san.Effectiveness
		}
		vulnTypes := map[string]bool{}
		addVulnTypes(vulnTypes, san.VulnTypes)
		for _, m := range matches {
			id, ok := g.NodeFor(m.Node)
			if !ok {
				continue
			}
			r := get(id)
			r.sanitizers = append(r.sanitizers, sanitizerRole{vulnTypes: vulnTypes, effectiveness: effectiveness})
		}
	}

	return roles, nil
}

// defaultVulnType is the label a source/sink with no declared
// vulnerability types is tagged with.
const defaultVulnType = "TAINTED"

func addVulnTypes(dst map[string]bool, types []string) {
	if len(types) == 0 {
		dst[defaultVulnType] = true
		return
	}
	for _, t := range types {
		dst[t] = true
	}
}

