package match

import "github.com/codalyze/sastcore/ast"

// CustomConstraint is a pure predicate over a constraint's declared
// parameters, the node it is being evaluated against, and the bindings
// accumulated so far. The rule engine registers these under a name and
// references them from metavariable-analysis constraints.
type CustomConstraint func(params map[string]string, node *ast.Node, bindings Bindings) bool

// Config controls matcher behavior. The zero value compares text
// case-insensitively and has no depth cap, no tracing, and an empty
// constraint registry; NewConfig returns the case-sensitive default.
type Config struct {
	// CaseSensitive controls Literal and Metavariable text comparison.
	// The zero value false compares case-insensitively; NewConfig sets it
	// to true, so callers that want case-sensitive matching must use
	// NewConfig or set it explicitly rather than use a bare Config{}.
	CaseSensitive bool

	// MaxDepth caps recursion depth for FindMatches. Zero means unbounded.
	MaxDepth int

	// DebugTrace enables trace hooks with no semantic effect on results.
	DebugTrace bool

	// Constraints is the named registry of custom constraint evaluators
	// available to metavariable-analysis constraints.
	Constraints map[string]CustomConstraint

	trace func(string)
}

// NewConfig returns the documented default configuration: case-sensitive
// comparison, unbounded depth, tracing disabled.
func NewConfig() Config {
	return Config{CaseSensitive: true, Constraints: map[string]CustomConstraint{}}
}

// WithTrace sets a sink for debug trace messages; it is a no-op for match
// results even when DebugTrace is true and no sink is set.
func (c Config) WithTrace(sink func(string)) Config {
	c.trace = sink
	return c
}

func (c Config) emit(msg string) {
	if c.DebugTrace && c.trace != nil {
		c.trace(msg)
	}
}

// RegisterConstraint adds a named custom constraint evaluator to the
// registry, returning the updated config.
func (c Config) RegisterConstraint(name string, fn CustomConstraint) Config {
	if c.Constraints == nil {
		c.Constraints = map[string]CustomConstraint{}
	}
	c.Constraints[name] = fn
	return c
}

// Constraint looks up a registered custom constraint by name.
func (c Config) Constraint(name string) (CustomConstraint, bool) {
	fn, ok := c.Constraints[name]
	return fn, ok
}
