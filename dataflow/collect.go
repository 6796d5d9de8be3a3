package dataflow

import "sort"

// Flow is one source-to-sink path collected from a converged propagation
// (spec §4.5 step 5).
type Flow struct {
	SourceNodeID int
	SinkNodeID   int
	Path         []int
	Confidence   int
	VulnTypes    []string
	Sanitizers   []int // node ids of any sanitizers the path passed through
	Context      Context
}

// collectFlows implements step 5: for every sink node holding at least
// one token whose vulnerability types the sink accepts, emit a flow;
// flows below cfg.MinConfidenceThreshold are discarded.
func collectFlows(g *Graph, roles map[int]*role, tokens map[int][]Token, cfg Config) []Flow {
	var flows []Flow
	for id, r := range roles {
		if !r.isSink {
			continue
		}
		for _, tok := range tokens[id] {
			accepted := acceptedTypes(r.sinkVuln, tok.vulnTypeSet())
			if len(accepted) == 0 {
				continue
			}
			if tok.Confidence < cfg.MinConfidenceThreshold {
				continue
			}
			flows = append(flows, Flow{
				SourceNodeID: tok.SourceNodeID,
				SinkNodeID:   id,
				Path:         append([]int(nil), tok.Path...),
				Confidence:   tok.Confidence,
				VulnTypes:    accepted,
				Sanitizers:   sanitizersOnPath(g, roles, tok.Path),
				Context:      tok.Context,
			})
		}
	}

	sort.Slice(flows, func(i, j int) bool {
		if flows[i].SinkNodeID != flows[j].SinkNodeID {
			return flows[i].SinkNodeID < flows[j].SinkNodeID
		}
		return flows[i].SourceNodeID < flows[j].SourceNodeID
	})
	return flows
}

// acceptedTypes returns the sorted vulnerability types from carried that
// sinkVuln is sensitive to. An empty sinkVuln accepts every type the
// token carries (spec §4.5: a sink's declared types, when absent, are not
// a restriction).
func acceptedTypes(sinkVuln map[string]bool, carried map[string]bool) []string {
	var out []string
	if len(sinkVuln) == 0 {
		for t := range carried {
			out = append(out, t)
		}
	} else {
		for t := range carried {
			if sinkVuln[t] {
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

func sanitizersOnPath(g *Graph, roles map[int]*role, path []int) []int {
	var out []int
	for _, id := range path {
		if r, ok := roles[id]; ok && len(r.sanitizers) > 0 {
			out = append(out, id)
		}
	}
	return out
}
