package dataflow

// Context is the per-token context-sensitivity record: the call stack a
// token has traveled through, the loop nesting depth at its current
// position, and arbitrary conditional-context entries (branch/condition
// text) recorded at a conditional split (spec §3, §4.5).
type Context struct {
	CallStack   []string
	LoopDepth   int
	Conditional map[string]string
}

func (c Context) clone() Context {
	out := Context{LoopDepth: c.LoopDepth}
	if len(c.CallStack) > 0 {
		out.CallStack = append([]string(nil), c.CallStack...)
	}
	if len(c.Conditional) > 0 {
		out.Conditional = make(map[string]string, len(c.Conditional))
		for k, v := range c.Conditional {
			out.Conditional[k] = v
		}
	}
	return out
}

// Token is one unit of propagating taint (spec §3 "Taint state"). Types
// holds the per-vulnerability-type residual confidence so a sanitizer
// that protects only some of a token's vulnerability types attenuates
// exactly those (spec §4.5 step 3); Confidence is the token's reported
// aggregate, the maximum across surviving types.
type Token struct {
	ID           int
	SourceNodeID int
	SourceClass  string
	Confidence   int
	Path         []int
	Context      Context
	FieldPath    string
	Types        map[string]int // vulnerability type -> residual confidence [0,100]

	factors map[string]float64 // vulnerability type -> cumulative sanitizer multiplier
}

func newToken(id, sourceNodeID int, vulnTypes map[string]bool) Token {
	types := make(map[string]int, len(vulnTypes))
	factors := make(map[string]float64, len(vulnTypes))
	for t := range vulnTypes {
		types[t] = 100
		factors[t] = 1.0
	}
	return Token{
		ID:           id,
		SourceNodeID: sourceNodeID,
		SourceClass:  "source",
		Confidence:   100,
		Path:         []int{sourceNodeID},
		Types:        types,
		factors:      factors,
	}
}

func (t Token) clone() Token {
	out := t
	out.Path = append([]int(nil), t.Path...)
	out.Types = make(map[string]int, len(t.Types))
	for k, v := range t.Types {
		out.Types[k] = v
	}
	out.factors = make(map[string]float64, len(t.factors))
	for k, v := range t.factors {
		out.factors[k] = v
	}
	out.Context = t.Context.clone()
	return out
}

// inPath reports whether nodeID already appears in the token's path, the
// cycle guard spec §4.5/§9 prescribes instead of recursion.
func (t Token) inPath(nodeID int) bool {
	for _, id := range t.Path {
		if id == nodeID {
			return true
		}
	}
	return false
}

// vulnTypeSet returns the set of vulnerability types this token still
// carries.
func (t Token) vulnTypeSet() map[string]bool {
	out := make(map[string]bool, len(t.Types))
	for typ := range t.Types {
		out[typ] = true
	}
	return out
}

// recomputeConfidence derives Confidence, the reported aggregate, from
// the per-type residuals: the maximum across whatever types survived
// (spec §3 models a single scalar confidence per token; §4.5 step 3 asks
// for per-type residuals when sanitizing, so Types is the source of
// truth and Confidence is the derived reporting value).
func (t *Token) recomputeConfidence() {
	max := 0
	for _, c := range t.Types {
		if c > max {
			max = c
		}
	}
	t.Confidence = max
}
