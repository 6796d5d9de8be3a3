package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codalyze/sastcore/ast"
)

func TestLoadRulesRejectsDuplicateIDs(t *testing.T) {
	doc := []byte(`
rules:
  - id: dup
    name: one
    severity: warning
    confidence: medium
    patterns:
      - pattern: foo
  - id: dup
    name: two
    severity: warning
    confidence: medium
    patterns:
      - pattern: bar
`)
	_, err := LoadRules(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate rule id")
}

func TestLoadRulesRejectsMissingFields(t *testing.T) {
	doc := []byte(`
rules:
  - name: no-id
    severity: warning
    confidence: medium
    patterns:
      - pattern: foo
`)
	_, err := LoadRules(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required field: id")
}

func TestLoadRulesRejectsUnknownSeverity(t *testing.T) {
	doc := []byte(`
rules:
  - id: r1
    name: r1
    severity: catastrophic
    confidence: medium
    patterns:
      - pattern: foo
`)
	_, err := LoadRules(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown severity")
}

func TestLoadRulesAcceptsFreeFormMetadata(t *testing.T) {
	doc := []byte(`
rules:
  - id: r1
    name: r1
    severity: warning
    confidence: medium
    owasp: A03
    cwe: CWE-89
    patterns:
      - pattern: foo
`)
	rules, err := LoadRules(doc)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "A03", rules[0].Metadata["owasp"])
	assert.Equal(t, "CWE-89", rules[0].Metadata["cwe"])
}

func TestPathFilterGlobSemantics(t *testing.T) {
	f := &PathFilter{Includes: []string{"src/**/*.go"}, Excludes: []string{"**/*_test.go"}}
	assert.True(t, f.admits("src/pkg/file.go"))
	assert.False(t, f.admits("src/pkg/file_test.go"))
	assert.False(t, f.admits("vendor/pkg/file.go"))
}

func TestPathFilterNilAdmitsEverything(t *testing.T) {
	var f *PathFilter
	assert.True(t, f.admits("anything.go"))
}

// buildProgram constructs an AST for: request.getParameter("userId") and
// request.getHeader("X-Auth") as siblings under a program node.
func buildProgram() *ast.Node {
	call := func(member, argText string) *ast.Node {
		return ast.NewBuilder(ast.CallExpression).
			AddChild(ast.NewBuilder(ast.MemberExpression).WithText(member).Build()).
			AddChild(ast.NewBuilder(ast.Literal).WithText(argText).WithLiteral(ast.StringLiteral(argText)).Build()).
			Build()
	}
	return ast.NewBuilder(ast.Program).
		AddChild(call("request.getParameter", `"userId"`)).
		AddChild(call("request.getHeader", `"X-Auth"`)).
		Build()
}

// Scenario 5: Either + metavariable-regex constraint.
func TestEitherWithMetavariableRegexConstraint(t *testing.T) {
	doc := []byte(`
rules:
  - id: user-param-either
    name: user param either
    message: "possible user-controlled value $X"
    severity: warning
    confidence: medium
    patterns:
      - pattern-either:
          - pattern: '"request.getParameter" $X'
          - pattern: '"request.getHeader" $X'
        metavariable-regex:
          - metavariable: X
            regex: "^\"user"
`)
	rules, err := LoadRules(doc)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	engine := NewEngine()
	result := engine.Execute(rules[0], buildProgram(), ExecutionContext{FilePath: "a.go"})

	require.Empty(t, result.Error)
	require.Len(t, result.Findings, 1)
	assert.Contains(t, result.Findings[0].Message, `"userId"`)
}

func TestFocusMetavariableNarrowsLocation(t *testing.T) {
	node := ast.NewBuilder(ast.CallExpression).
		WithLocation(ast.Location{File: "a.go", StartLine: 1, StartColumn: 1, EndLine: 1, EndColumn: 40}).
		AddChild(ast.NewBuilder(ast.Identifier).WithText("log").Build()).
		AddChild(ast.NewBuilder(ast.Identifier).
			WithText("secret").
			WithLocation(ast.Location{File: "a.go", StartLine: 1, StartColumn: 5, EndLine: 1, EndColumn: 11}).
			Build()).
		Build()

	spec := &PatternSpec{Kind: SpecSimple, Simple: "log $X", Focus: []string{"X"}}
	e := NewEngine()
	matches, err := evalPatternSpec(spec, node, e)
	require.NoError(t, err)
	require.Len(t, matches, 1)

	loc := focusLocation(spec, matches[0])
	assert.Equal(t, 5, loc.StartColumn)
	assert.Equal(t, 11, loc.EndColumn)
}

// Applicability gate idempotence: a rule that does not apply produces an
// empty RuleResult and performs no pattern evaluation (observed here via
// the pattern cache staying empty, since evaluation would have compiled
// and cached the rule's pattern).
func TestApplicabilityGateSkipsDisabledRuleWithoutEvaluating(t *testing.T) {
	r := &Rule{
		ID:       "disabled",
		Name:     "disabled",
		Enabled:  false,
		Severity: SeverityWarning, Confidence: ConfidenceMedium,
		Patterns: []*PatternSpec{{Kind: SpecSimple, Simple: "anything"}},
	}
	node := ast.NewBuilder(ast.Identifier).WithText("anything").Build()

	engine := NewEngine()
	result := engine.Execute(r, node, ExecutionContext{FilePath: "a.go", Language: "go"})

	assert.Empty(t, result.Findings)
	assert.Empty(t, result.Error)
	assert.Equal(t, 0, engine.patterns.Len())
}

func TestApplicabilityGateRejectsWrongLanguage(t *testing.T) {
	r := &Rule{
		ID: "go-only", Name: "go-only", Enabled: true, Languages: []string{"go"},
		Severity: SeverityWarning, Confidence: ConfidenceMedium,
		Patterns: []*PatternSpec{{Kind: SpecSimple, Simple: "anything"}},
	}
	node := ast.NewBuilder(ast.Identifier).WithText("anything").Build()

	engine := NewEngine()
	result := engine.Execute(r, node, ExecutionContext{FilePath: "a.py", Language: "python"})

	assert.Empty(t, result.Findings)
	assert.Equal(t, 0, engine.patterns.Len())
}

func TestMetavariableComparisonNumericAndLexicographic(t *testing.T) {
	bindings := Bindings{"A": {Name: "A", Text: "10"}}

	ok, err := evalComparison(Constraint{Operator: ">", Value: "2"}, bindings["A"], bindings)
	require.NoError(t, err)
	assert.True(t, ok, "numeric comparison should treat 10 > 2")

	lexBindings := Bindings{"A": {Name: "A", Text: "abc"}}
	ok, err = evalComparison(Constraint{Operator: "<", Value: "abd"}, lexBindings["A"], lexBindings)
	require.NoError(t, err)
	assert.True(t, ok)
}
