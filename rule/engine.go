package rule

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/match"
	"github.com/codalyze/sastcore/pattern"
)

// DefaultTimeout is the per-rule wall-clock budget applied when an Engine
// is not given an explicit one.
const DefaultTimeout = 30 * time.Second

// errTimeout is the error carried in RuleResult.Error when a rule observes
// its deadline (spec §5: a rule that times out reports exactly this text).
var errTimeout = errors.New("Rule execution timeout")

// ExecutionContext carries the per-file facts the applicability gate and
// data-flow stage need. File walking, globbing, and reading the file's
// bytes are external collaborators' responsibility; the engine only ever
// sees the path and language they hand it.
type ExecutionContext struct {
	FilePath string
	Language string
}

// Flow is one source-to-sink path the data-flow core yields for a taint
// rule, already resolved to a reportable location and message.
type Flow struct {
	Location ast.Location
	Message  string
	Metadata map[string]string
}

// DataflowRunner is implemented by the data-flow core (C5) and invoked
// when a rule declares a TaintSpec (execution protocol step 6). The rule
// engine depends only on this interface, not on the dataflow package
// itself, keeping C4 a collaborator of C5 rather than importing it.
type DataflowRunner interface {
	Run(ctx context.Context, taint *TaintSpec, root *ast.Node, ectx ExecutionContext) ([]Flow, error)
}

// Engine composes pattern evaluations, constraints, and an optional
// data-flow stage into findings.
type Engine struct {
	patterns    *pattern.Cache
	matchConfig match.Config
	dataflow    DataflowRunner
	timeout     time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithPatternCache overrides the engine's compiled-pattern cache.
func WithPatternCache(c *pattern.Cache) Option {
	return func(e *Engine) { e.patterns = c }
}

// WithMatchConfig overrides the matcher configuration used for every
// pattern evaluated by this engine.
func WithMatchConfig(cfg match.Config) Option {
	return func(e *Engine) { e.matchConfig = cfg }
}

// WithDataflowRunner wires in the data-flow core for taint rules. Without
// one, a rule with a TaintSpec produces its pattern findings only.
func WithDataflowRunner(r DataflowRunner) Option {
	return func(e *Engine) { e.dataflow = r }
}

// WithTimeout overrides the per-rule wall-clock budget.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// NewEngine builds an Engine with the documented defaults: an internal
// pattern cache of DefaultCacheSize, case-sensitive matching, and a
// 30-second per-rule timeout.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		patterns:    pattern.NewCache(pattern.DefaultCacheSize),
		matchConfig: match.NewConfig(),
		timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one rule against one parsed file. It never returns an
// error: any failure — a disabled/inapplicable rule aside — is carried in
// the returned RuleResult.Error instead, so a single rule's failure never
// terminates a batch.
func (e *Engine) Execute(rule *Rule, root *ast.Node, ectx ExecutionContext) RuleResult {
	start := time.Now()

	if !e.applicable(rule, ectx) {
		return RuleResult{RuleID: rule.ID, FilePath: ectx.FilePath}
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	findings, err := e.executeWithin(ctx, rule, root, ectx)
	if err != nil {
		return errorResult(rule.ID, ectx.FilePath, err, time.Since(start))
	}
	return RuleResult{RuleID: rule.ID, FilePath: ectx.FilePath, Findings: findings, Duration: time.Since(start)}
}

// Evaluate runs spec's composition semantics (execution protocol step 2)
// against root using e's compiled-pattern cache and match configuration.
// Exported so the data-flow core (C5) can reuse the same pattern
// composition and matcher for source/sink/sanitizer classification
// instead of re-implementing it (spec §4.5: "the same pattern matcher
// (C3) is reused").
func (e *Engine) Evaluate(spec *PatternSpec, root *ast.Node) ([]Match, error) {
	return evalPatternSpec(spec, root, e)
}

func (e *Engine) applicable(rule *Rule, ectx ExecutionContext) bool {
	if !rule.Enabled {
		return false
	}
	if !rule.appliesToLanguage(ectx.Language) {
		return false
	}
	return rule.PathFilter.admits(ectx.FilePath)
}

func (e *Engine) executeWithin(ctx context.Context, rule *Rule, root *ast.Node, ectx ExecutionContext) ([]Finding, error) {
	type stageResult struct {
		findings []Finding
		err      error
	}
	done := make(chan stageResult, 1)

	go func() {
		findings, err := e.evaluateRule(rule, root, ectx)
		done <- stageResult{findings, err}
	}()

	select {
	case <-ctx.Done():
		return nil, errTimeout
	case r := <-done:
		return r.findings, r.err
	}
}

func (e *Engine) evaluateRule(rule *Rule, root *ast.Node, ectx ExecutionContext) ([]Finding, error) {
	var findings []Finding

	for _, spec := range rule.Patterns {
		matches, err := evalPatternSpec(spec, root, e)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			ok, err := evalConstraints(spec.Constraints, m.Bindings, e.matchConfig)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			findings = append(findings, e.buildFinding(rule, spec, m))
		}
	}

	if rule.Taint != nil && e.dataflow != nil {
		flows, err := e.dataflow.Run(context.Background(), rule.Taint, root, ectx)
		if err != nil {
			return nil, err
		}
		for _, f := range flows {
			findings = append(findings, e.buildFlowFinding(rule, f))
		}
	}

	return findings, nil
}

func (e *Engine) buildFinding(rule *Rule, spec *PatternSpec, m Match) Finding {
	loc := focusLocation(spec, m)
	metadata := mergeMetadata(rule.Metadata, spec.Simple)

	return Finding{
		RuleID:        rule.ID,
		Message:       interpolate(rule.Message, m.Bindings),
		Severity:      rule.Severity,
		Confidence:    rule.Confidence,
		Location:      loc,
		Metadata:      metadata,
		FixSuggestion: rule.Fix,
	}
}

func (e *Engine) buildFlowFinding(rule *Rule, f Flow) Finding {
	metadata := map[string]string{"analysis_type": "dataflow"}
	for k, v := range rule.Metadata {
		metadata[k] = v
	}
	for k, v := range f.Metadata {
		metadata[k] = v
	}
	message := f.Message
	if message == "" {
		message = rule.Message
	}
	return Finding{
		RuleID:        rule.ID,
		Message:       message,
		Severity:      rule.Severity,
		Confidence:    rule.Confidence,
		Location:      f.Location,
		Metadata:      metadata,
		FixSuggestion: rule.Fix,
	}
}

// focusLocation implements execution protocol step 4: the union of
// focus-metavariable locations when the pattern declares any, otherwise
// the matched subtree's own location.
func focusLocation(spec *PatternSpec, m Match) ast.Location {
	if len(spec.Focus) == 0 {
		if loc := m.Node.Location(); loc != nil {
			return *loc
		}
		return ast.Location{}
	}
	var union *ast.Location
	for _, name := range spec.Focus {
		binding, ok := m.Bindings.Get(name)
		if !ok || binding.Location == nil {
			continue
		}
		if union == nil {
			loc := *binding.Location
			union = &loc
		} else {
			joined := union.Union(*binding.Location)
			union = &joined
		}
	}
	if union != nil {
		return *union
	}
	if loc := m.Node.Location(); loc != nil {
		return *loc
	}
	return ast.Location{}
}

func mergeMetadata(ruleMetadata map[string]string, patternSource string) map[string]string {
	metadata := make(map[string]string, len(ruleMetadata)+1)
	for k, v := range ruleMetadata {
		metadata[k] = v
	}
	if patternSource != "" {
		metadata["pattern"] = patternSource
	}
	return metadata
}

// interpolate substitutes $NAME tokens in message with the bound text of
// metavariable NAME. This is token substitution only: no expression
// evaluation.
func interpolate(message string, bindings match.Bindings) string {
	if !strings.Contains(message, "$") {
		return message
	}
	var b strings.Builder
	i := 0
	for i < len(message) {
		if message[i] != '$' {
			b.WriteByte(message[i])
			i++
			continue
		}
		j := i + 1
		for j < len(message) && isNameByte(message[j]) {
			j++
		}
		name := message[i+1 : j]
		if name == "" {
			b.WriteByte(message[i])
			i++
			continue
		}
		if binding, ok := bindings.Get(name); ok {
			b.WriteString(binding.Text)
		} else {
			b.WriteString(message[i:j])
		}
		i = j
	}
	return b.String()
}

func isNameByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
