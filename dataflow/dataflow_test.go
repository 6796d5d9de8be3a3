package dataflow

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/rule"
)

// buildFlowProgram builds:
//
//	a = request.getParameter("p")
//	b = <rhs>          // b = a, or b = sanitizerCall(a)
//	executeQuery(b)
//
// mirroring the spec §8 end-to-end taint scenario: a tainted value
// assigned through an intermediate variable into a sink call, optionally
// passed through a sanitizing call first.
func buildFlowProgram(sanitizerCall string) *ast.Node {
	sourceCall := ast.NewBuilder(ast.CallExpression).
		AddChild(ast.NewBuilder(ast.MemberExpression).WithText("request.getParameter").Build()).
		AddChild(ast.NewBuilder(ast.Literal).WithText(`"p"`).Build()).
		Build()

	stmt1 := ast.NewBuilder(ast.ExpressionStatement).
		AddChild(
			ast.NewBuilder(ast.AssignmentExpression).
				AddChild(ast.NewBuilder(ast.Identifier).WithText("a").Build()).
				AddChild(sourceCall).
				Build(),
		).Build()

	var rhs *ast.Node
	if sanitizerCall == "" {
		rhs = ast.NewBuilder(ast.Identifier).WithText("a").Build()
	} else {
		rhs = ast.NewBuilder(ast.CallExpression).
			AddChild(ast.NewBuilder(ast.Identifier).WithText(sanitizerCall).Build()).
			AddChild(ast.NewBuilder(ast.Identifier).WithText("a").Build()).
			Build()
	}
	stmt2 := ast.NewBuilder(ast.ExpressionStatement).
		AddChild(
			ast.NewBuilder(ast.AssignmentExpression).
				AddChild(ast.NewBuilder(ast.Identifier).WithText("b").Build()).
				AddChild(rhs).
				Build(),
		).Build()

	sinkCall := ast.NewBuilder(ast.CallExpression).
		AddChild(ast.NewBuilder(ast.Identifier).WithText("executeQuery").Build()).
		AddChild(ast.NewBuilder(ast.Identifier).WithText("b").Build()).
		Build()
	stmt3 := ast.NewBuilder(ast.ExpressionStatement).AddChild(sinkCall).Build()

	return ast.NewBuilder(ast.Program).
		AddChild(stmt1).AddChild(stmt2).AddChild(stmt3).
		Build()
}

func sqlTaintSpec(sanitizer *rule.SanitizerSpec) *rule.TaintSpec {
	spec := &rule.TaintSpec{
		Sources: []*rule.SourceSpec{{
			Pattern:   &rule.PatternSpec{Kind: rule.SpecSimple, Simple: `"request.getParameter" $_`},
			VulnTypes: []string{"SQL_INJECTION"},
		}},
		Sinks: []*rule.SinkSpec{{
			Pattern:   &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "executeQuery $_"},
			VulnTypes: []string{"SQL_INJECTION"},
		}},
	}
	if sanitizer != nil {
		spec.Sanitizers = []*rule.SanitizerSpec{sanitizer}
	}
	return spec
}

func TestRunnerReportsDirectFlowFromSourceToSink(t *testing.T) {
	root := buildFlowProgram("")
	taint := sqlTaintSpec(nil)

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Contains(t, flows[0].Metadata["vulnerability_types"], "SQL_INJECTION")

	confidence, err := strconv.Atoi(flows[0].Metadata["confidence_score"])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, confidence, 85)
	assert.LessOrEqual(t, confidence, 100)
}

func TestRunnerSanitizerOfUnrelatedTypeDoesNotRemoveFlow(t *testing.T) {
	root := buildFlowProgram("htmlEscape")
	taint := sqlTaintSpec(&rule.SanitizerSpec{
		Pattern:       &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "htmlEscape $_"},
		VulnTypes:     []string{"XSS"},
		Effectiveness: floatPtr(0.9),
	})

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	require.Len(t, flows, 1, "a sanitizer that protects a different vulnerability type must not block the flow")
}

func TestRunnerFullEffectivenessSanitizerOfMatchingTypeRemovesFlow(t *testing.T) {
	root := buildFlowProgram("sanitizeSQL")
	taint := sqlTaintSpec(&rule.SanitizerSpec{
		Pattern:       &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "sanitizeSQL $_"},
		VulnTypes:     []string{"SQL_INJECTION"},
		Effectiveness: floatPtr(1.0),
	})

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	assert.Empty(t, flows, "full-effectiveness sanitizer of the matching type must remove the flow")
}

// An unset Effectiveness (nil) defaults to full sanitization (1.0), same
// as the explicit-1.0 case above.
func TestRunnerUnsetEffectivenessDefaultsToFull(t *testing.T) {
	root := buildFlowProgram("sanitizeSQL")
	taint := sqlTaintSpec(&rule.SanitizerSpec{
		Pattern:   &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "sanitizeSQL $_"},
		VulnTypes: []string{"SQL_INJECTION"},
	})

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	assert.Empty(t, flows, "unset Effectiveness must default to full sanitization")
}

// An explicitly-declared Effectiveness of 0.0 ("matches but sanitizes
// nothing") must not be silently promoted to full effectiveness.
func TestRunnerExplicitZeroEffectivenessDoesNotSanitize(t *testing.T) {
	root := buildFlowProgram("sanitizeSQL")
	taint := sqlTaintSpec(&rule.SanitizerSpec{
		Pattern:       &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "sanitizeSQL $_"},
		VulnTypes:     []string{"SQL_INJECTION"},
		Effectiveness: floatPtr(0.0),
	})

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	require.Len(t, flows, 1, "an explicit zero-effectiveness sanitizer must not block the flow")
}

func floatPtr(f float64) *float64 { return &f }

func TestRunnerPartialEffectivenessSanitizerDegradesConfidenceBelowThreshold(t *testing.T) {
	root := buildFlowProgram("weakEscape")
	taint := sqlTaintSpec(&rule.SanitizerSpec{
		Pattern:       &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "weakEscape $_"},
		VulnTypes:     []string{"SQL_INJECTION"},
		Effectiveness: floatPtr(0.8),
	})
	cfg := NewConfig()
	cfg.MinConfidenceThreshold = 0

	r := NewRunner(WithConfig(cfg))
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	if len(flows) == 1 {
		confidence, err := strconv.Atoi(flows[0].Metadata["confidence_score"])
		require.NoError(t, err)
		assert.Less(t, confidence, 30, "an 80%% effective sanitizer should leave well under the default pass threshold")
	}
}

func TestRunnerNoSourceNoSinkProducesNoFlows(t *testing.T) {
	root := buildFlowProgram("")
	taint := &rule.TaintSpec{
		Sources: []*rule.SourceSpec{{Pattern: &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "neverMatches $_"}}},
		Sinks:   []*rule.SinkSpec{{Pattern: &rule.PatternSpec{Kind: rule.SpecSimple, Simple: "alsoNeverMatches $_"}}},
	}

	r := NewRunner()
	flows, err := r.Run(context.Background(), taint, root, rule.ExecutionContext{FilePath: "app.go"})
	require.NoError(t, err)
	assert.Empty(t, flows)
}

func TestRunNilInputsAreNoop(t *testing.T) {
	r := NewRunner()
	flows, err := r.Run(context.Background(), nil, buildFlowProgram(""), rule.ExecutionContext{})
	require.NoError(t, err)
	assert.Nil(t, flows)

	flows, err = r.Run(context.Background(), sqlTaintSpec(nil), nil, rule.ExecutionContext{})
	require.NoError(t, err)
	assert.Nil(t, flows)
}

func TestRunRespectsCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRunner()
	_, err := r.Run(ctx, sqlTaintSpec(nil), buildFlowProgram(""), rule.ExecutionContext{})
	assert.Error(t, err)
}

func TestBaseConfidenceDegradesByFivePerHopCappedAtThirty(t *testing.T) {
	assert.Equal(t, 100, baseConfidence(1))
	assert.Equal(t, 95, baseConfidence(2))
	assert.Equal(t, 90, baseConfidence(3))
	assert.Equal(t, 70, baseConfidence(7))
	assert.Equal(t, 70, baseConfidence(20), "attenuation caps at 30 points regardless of path length")
}

// A read of a variable resolves directly to its most recent definition
// node rather than allocating a second node for the read (spec §4.5): this
// keeps a reassignment chain like `a = source(); b = a; sink(b)` to one
// graph hop per statement instead of one per statement plus one per read,
// which is what keeps the scenario's confidence degradation within the
// bounds spec §8 requires for a three-statement flow.
func TestBuildGraphCollapsesIdentifierReadIntoItsDefinition(t *testing.T) {
	root := buildFlowProgram("")
	g := BuildGraph(root, nil)

	var defID = -1
	aOccurrences := 0
	for _, n := range g.Nodes {
		if n.NodeType == ast.Identifier && n.HasText && n.Text == "a" {
			aOccurrences++
			if defID == -1 {
				defID = n.ID
			}
		}
	}
	require.NotEqual(t, -1, defID)
	assert.Equal(t, 1, aOccurrences, "a definition and its later read must collapse into a single node")

	var bDefID = -1
	for _, n := range g.Nodes {
		if n.NodeType == ast.Identifier && n.HasText && n.Text == "b" {
			bDefID = n.ID
		}
	}
	require.NotEqual(t, -1, bDefID)

	found := false
	for _, e := range g.Out(defID) {
		if e.To == bDefID && e.Kind == EdgeDataFlow {
			found = true
		}
	}
	assert.True(t, found, "reading a variable must wire its definition directly into whatever consumes the read")
}

func TestCallGraphKnowsBothDirections(t *testing.T) {
	cg := NewCallGraph()
	cg.AddEdge("main", "helper")
	assert.True(t, cg.Knows("main"))
	assert.True(t, cg.Knows("helper"))
	assert.False(t, cg.Knows("unrelated"))
}

