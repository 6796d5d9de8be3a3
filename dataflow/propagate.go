package dataflow

// propagator runs the worklist fixed-point of spec §4.5 steps 1-4: seed
// tokens at sources, propagate along data-flow/call/return edges with
// confidence degradation, sanitize at sanitizer nodes, and repeat until
// no node's token set changes or the iteration cap is hit.
type propagator struct {
	g           *Graph
	roles       map[int]*role
	cfg         Config
	tokens      map[int][]Token
	nextTokenID int
}

func propagate(g *Graph, roles map[int]*role, cfg Config) map[int][]Token {
	p := &propagator{g: g, roles: roles, cfg: cfg, tokens: map[int][]Token{}}
	return p.run()
}

func (p *propagator) run() map[int][]Token {
	var queue []int
	queued := map[int]bool{}
	enqueue := func(id int) {
		if !queued[id] {
			queued[id] = true
			queue = append(queue, id)
		}
	}

	// Step 1: seed.
	for id, r := range p.roles {
		if !r.isSource {
			continue
		}
		tok := newToken(p.allocTokenID(), id, r.sourceVuln)
		tok.recomputeConfidence()
		p.tokens[id] = append(p.tokens[id], tok)
		enqueue(id)
	}

	iterations := 0
	for len(queue) > 0 {
		if iterations >= p.cfg.MaxIterations {
			p.g.Approximate = true
			break
		}
		iterations++

		n := queue[0]
		queue = queue[1:]
		queued[n] = false

		for _, edge := range p.g.Out(n) {
			if edge.Kind != EdgeDataFlow && edge.Kind != EdgeCall && edge.Kind != EdgeReturn {
				continue
			}
			if p.propagateEdge(edge, n) {
				enqueue(edge.To)
			}
		}
	}

	return p.tokens
}

func (p *propagator) allocTokenID() int {
	id := p.nextTokenID
	p.nextTokenID++
	return id
}

// propagateEdge propagates every token sitting at edge.From across edge,
// returning whether edge.To's token set changed.
func (p *propagator) propagateEdge(edge GraphEdge, from int) bool {
	changed := false
	for _, tok := range p.tokens[from] {
		if tok.inPath(edge.To) {
			continue // path-cycle guard (spec §9)
		}
		if len(tok.Path) >= p.cfg.MaxPathLength {
			p.g.Approximate = true
			continue
		}

		next := tok.clone()
		next.Path = append(next.Path, edge.To)

		if edge.Branch != "" {
			if next.Context.Conditional == nil {
				next.Context.Conditional = map[string]string{}
			}
			next.Context.Conditional["branch"] = edge.Branch
			next.Context.Conditional["condition"] = edge.Condition
		}

		p.degrade(&next)
		p.sanitize(&next, edge.To)
		next.recomputeConfidence()
		if len(next.Types) == 0 {
			continue
		}

		if p.merge(edge.To, next) {
			changed = true
		}
	}
	return changed
}

// baseConfidence implements the normative integer degradation law of
// spec §4.5/§9: each hop costs 5 points off the original 100, with total
// attenuation capped at 30. It is a pure function of path length (not a
// running multiplication), so re-deriving it at an unchanged path length
// is idempotent — required for the worklist to reach a stable fixed
// point rather than oscillate.
func baseConfidence(pathLen int) int {
	hops := pathLen - 1
	if hops < 0 {
		hops = 0
	}
	attenuation := 5 * hops
	if attenuation > 30 {
		attenuation = 30
	}
	degraded := 100 - attenuation
	if degraded < 0 {
		degraded = 0
	}
	return degraded
}

// degrade recomputes every vulnerability type's residual confidence from
// the path-length base, scaled by whatever cumulative sanitizer factor
// has already been applied to that type.
func (p *propagator) degrade(tok *Token) {
	base := baseConfidence(len(tok.Path))
	for typ, factor := range tok.factors {
		tok.Types[typ] = int(float64(base) * factor)
	}
}

// sanitize implements step 3: if the arriving node is a sanitizer whose
// protected vulnerability types intersect the token's, multiply those
// types' factor by (1 − effectiveness) and drop any type whose residual
// confidence falls below 10.
func (p *propagator) sanitize(tok *Token, nodeID int) {
	r := p.roles[nodeID]
	if r == nil {
		return
	}
	base := baseConfidence(len(tok.Path))
	for _, san := range r.sanitizers {
		for typ := range tok.Types {
			if !san.vulnTypes[typ] {
				continue
			}
			tok.factors[typ] *= 1 - san.effectiveness
			tok.Types[typ] = int(float64(base) * tok.factors[typ])
		}
	}
	for typ, conf := range tok.Types {
		if conf < 10 {
			delete(tok.Types, typ)
			delete(tok.factors, typ)
		}
	}
}

// merge implements step "Merging" at a control-flow join: a token with
// the same originating source and an identical surviving vulnerability-
// type set as one already tracked at nodeID is combined by averaging each
// type's confidence, rather than tracked as a second context. Otherwise
// the token becomes a new context, bounded by MaxContexts. Returns
// whether nodeID's token set changed.
func (p *propagator) merge(nodeID int, tok Token) bool {
	existing := p.tokens[nodeID]
	for i, e := range existing {
		if e.SourceNodeID != tok.SourceNodeID || !sameVulnTypes(e.Types, tok.Types) {
			continue
		}
		changed := false
		merged := e.clone()
		for typ, v := range tok.Types {
			mean := (e.Types[typ] + v) / 2
			if mean != e.Types[typ] {
				changed = true
			}
			merged.Types[typ] = mean
		}
		merged.recomputeConfidence()
		existing[i] = merged
		p.tokens[nodeID] = existing
		return changed
	}

	if len(existing) >= p.cfg.MaxContexts {
		p.g.Approximate = true
		return false
	}
	p.tokens[nodeID] = append(existing, tok)
	return true
}

func sameVulnTypes(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for t := range a {
		if _, ok := b[t]; !ok {
			return false
		}
	}
	return true
}
