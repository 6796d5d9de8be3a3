package dataflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/rule"
)

// Runner implements rule.DataflowRunner (spec §4.4 step 6 / §4.5): it
// builds a flow graph from the AST a taint rule is evaluated against,
// classifies nodes with the rule's source/sink/sanitizer patterns,
// propagates taint to a fixed point, and reports flows as rule.Flow
// values the rule engine turns into findings.
type Runner struct {
	engine *rule.Engine
	config Config
	calls  *CallGraph
}

// Option configures a Runner.
type Option func(*Runner)

// WithEngine supplies the rule.Engine whose pattern cache and match
// configuration classification should reuse, instead of a private one
// (spec §4.5: "the same pattern matcher (C3) is reused"). Without one, a
// fresh default *rule.Engine is used for classification only.
func WithEngine(e *rule.Engine) Option {
	return func(r *Runner) { r.engine = e }
}

// WithConfig overrides the propagation bounds.
func WithConfig(cfg Config) Option {
	return func(r *Runner) { r.config = cfg }
}

// WithCallGraph supplies the optional externally-built call graph for
// inter-procedural call/return edges.
func WithCallGraph(cg *CallGraph) Option {
	return func(r *Runner) { r.calls = cg }
}

// NewRunner builds a Runner with the spec's default propagation bounds.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{engine: rule.NewEngine(), config: NewConfig()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run builds the flow graph for root, classifies it against taint, runs
// the worklist to a fixed point, and returns the resulting flows as
// rule.Flow values. It satisfies rule.DataflowRunner.
func (r *Runner) Run(ctx context.Context, taint *rule.TaintSpec, root *ast.Node, ectx rule.ExecutionContext) ([]rule.Flow, error) {
	if taint == nil || root == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g := BuildGraph(root, r.calls)

	roles, err := classify(r.engine, root, taint, g)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := propagate(g, roles, r.config)
	flows := collectFlows(g, roles, tokens, r.config)

	out := make([]rule.Flow, 0, len(flows))
	for _, f := range flows {
		out = append(out, toRuleFlow(g, f, ectx))
	}
	return out, nil
}

func toRuleFlow(g *Graph, f Flow, ectx rule.ExecutionContext) rule.Flow {
	sink := g.Node(f.SinkNodeID)
	source := g.Node(f.SourceNodeID)

	loc := ast.Location{File: ectx.FilePath}
	if sink.Location != nil {
		loc = *sink.Location
	}

	metadata := map[string]string{
		"analysis_type":       "dataflow",
		"vulnerability_types": strings.Join(f.VulnTypes, ","),
		"path_length":         strconv.Itoa(len(f.Path)),
		"confidence_score":    strconv.Itoa(f.Confidence),
	}
	if source.Location != nil {
		metadata["source_location"] = source.Location.String()
	}
	if len(f.Sanitizers) > 0 {
		metadata["sanitizers_traversed"] = strconv.Itoa(len(f.Sanitizers))
	}
	if branch, ok := f.Context.Conditional["branch"]; ok {
		metadata["branch"] = branch
	}

	sourceText := source.Text
	sinkText := sink.Text

	return rule.Flow{
		Location: loc,
		Message:  fmt.Sprintf("tainted data from %q flows to %q", sourceText, sinkText),
		Metadata: metadata,
	}
}
