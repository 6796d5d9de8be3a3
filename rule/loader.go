package rule

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// document is the top-level shape of a rule YAML document.
type document struct {
	Rules []yamlRule `yaml:"rules"`
}

type yamlRule struct {
	ID          string            `yaml:"id"`
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Message     string            `yaml:"message"`
	Severity    string            `yaml:"severity"`
	Confidence  string            `yaml:"confidence"`
	Languages   []string          `yaml:"languages"`
	Patterns    []yamlPattern     `yaml:"patterns"`
	Taint       *yamlTaint        `yaml:"taint,omitempty"`
	Fix         string            `yaml:"fix,omitempty"`
	FixRegex    *yamlFixRegex     `yaml:"fix-regex,omitempty"`
	Paths       *yamlPathFilter   `yaml:"paths,omitempty"`
	Metadata    map[string]string `yaml:",inline"`
	Enabled     *bool             `yaml:"enabled,omitempty"`
}

type yamlPathFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

type yamlFixRegex struct {
	Regex       string `yaml:"regex"`
	Replacement string `yaml:"replacement"`
}

type yamlTaint struct {
	Sources    []yamlTaintPattern `yaml:"sources"`
	Sinks      []yamlTaintPattern `yaml:"sinks"`
	Sanitizers []yamlTaintPattern `yaml:"sanitizers"`
	MustFlow   bool               `yaml:"must-flow"`
	MaxDepth   int                `yaml:"max-depth"`
}

// yamlTaintPattern is a source/sink/sanitizer entry: everything a
// yamlPattern accepts, plus the vulnerability-type labels and (for
// sanitizers) the effectiveness the data-flow core needs (spec §3/§4.5).
type yamlTaintPattern struct {
	yamlPattern   `yaml:",inline"`
	VulnTypes     []string `yaml:"vuln-types,omitempty"`
	Effectiveness *float64 `yaml:"effectiveness,omitempty"`
}

type yamlPattern struct {
	Pattern   string         `yaml:"pattern,omitempty"`
	Either    []yamlPattern  `yaml:"pattern-either,omitempty"`
	All       []yamlPattern  `yaml:"pattern-all,omitempty"`
	Any       []yamlPattern  `yaml:"pattern-any,omitempty"`
	Inside    *yamlPattern   `yaml:"pattern-inside,omitempty"`
	NotInside *yamlPattern   `yaml:"pattern-not-inside,omitempty"`
	Not       *yamlPattern   `yaml:"pattern-not,omitempty"`
	Regex     string         `yaml:"pattern-regex,omitempty"`
	NotRegex  string         `yaml:"pattern-not-regex,omitempty"`

	MetavariableRegex      []yamlMetavariableRegex      `yaml:"metavariable-regex,omitempty"`
	MetavariableComparison []yamlMetavariableComparison `yaml:"metavariable-comparison,omitempty"`
	MetavariableName       []yamlMetavariableName       `yaml:"metavariable-name,omitempty"`
	MetavariableAnalysis   []yamlMetavariableAnalysis   `yaml:"metavariable-analysis,omitempty"`
	Focus                  []string                     `yaml:"focus-metavariable,omitempty"`
}

type yamlMetavariableRegex struct {
	Metavariable string `yaml:"metavariable"`
	Regex        string `yaml:"regex"`
}

type yamlMetavariableComparison struct {
	Metavariable string `yaml:"metavariable"`
	Operator     string `yaml:"operator"`
	Value        string `yaml:"value,omitempty"`
	CompareTo    string `yaml:"compare-to,omitempty"`
}

type yamlMetavariableName struct {
	Metavariable string `yaml:"metavariable"`
	Regex        string `yaml:"regex"`
}

type yamlMetavariableAnalysis struct {
	Metavariable string `yaml:"metavariable"`
	Analysis     string `yaml:"analysis"`
}

// LoadRules parses a YAML rule document with a top-level `rules:` list.
// Duplicate rule ids, missing required fields, unknown severity or
// confidence values, and structurally invalid pattern trees are rejected.
// Free-form metadata keys on a rule entry are accepted and preserved.
func LoadRules(data []byte) ([]*Rule, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("rule: parse yaml: %w", err)
	}

	seen := make(map[string]bool, len(doc.Rules))
	rules := make([]*Rule, 0, len(doc.Rules))
	for _, yr := range doc.Rules {
		r, err := toRule(yr)
		if err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, &LoadError{RuleID: r.ID, Message: "duplicate rule id"}
		}
		seen[r.ID] = true
		rules = append(rules, r)
	}
	return rules, nil
}

func toRule(yr yamlRule) (*Rule, error) {
	if yr.ID == "" {
		return nil, &LoadError{Message: "missing required field: id"}
	}
	if yr.Name == "" {
		return nil, &LoadError{RuleID: yr.ID, Message: "missing required field: name"}
	}
	if len(yr.Patterns) == 0 {
		return nil, &LoadError{RuleID: yr.ID, Message: "missing required field: patterns"}
	}
	severity := Severity(yr.Severity)
	if !severity.valid() {
		return nil, &LoadError{RuleID: yr.ID, Message: fmt.Sprintf("unknown severity %q", yr.Severity)}
	}
	confidence := Confidence(yr.Confidence)
	if !confidence.valid() {
		return nil, &LoadError{RuleID: yr.ID, Message: fmt.Sprintf("unknown confidence %q", yr.Confidence)}
	}

	patterns := make([]*PatternSpec, 0, len(yr.Patterns))
	for _, yp := range yr.Patterns {
		spec, err := toPatternSpec(yr.ID, yp)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, spec)
	}

	taint, err := toTaintSpec(yr.ID, yr.Taint)
	if err != nil {
		return nil, err
	}

	enabled := true
	if yr.Enabled != nil {
		enabled = *yr.Enabled
	}

	r := &Rule{
		ID:          yr.ID,
		Name:        yr.Name,
		Description: yr.Description,
		Message:     yr.Message,
		Severity:    severity,
		Confidence:  confidence,
		Languages:   yr.Languages,
		Patterns:    patterns,
		Taint:       taint,
		Fix:         yr.Fix,
		Metadata:    yr.Metadata,
		Enabled:     enabled,
	}
	if yr.FixRegex != nil {
		r.FixRegex = &FixRegex{Regex: yr.FixRegex.Regex, Replacement: yr.FixRegex.Replacement}
	}
	if yr.Paths != nil {
		r.PathFilter = &PathFilter{Includes: yr.Paths.Include, Excludes: yr.Paths.Exclude}
	}
	return r, nil
}

func toTaintSpec(ruleID string, yt *yamlTaint) (*TaintSpec, error) {
	if yt == nil {
		return nil, nil
	}
	spec := &TaintSpec{MustFlow: yt.MustFlow, MaxDepth: yt.MaxDepth}

	for _, yp := range yt.Sources {
		ps, err := toPatternSpec(ruleID, yp.yamlPattern)
		if err != nil {
			return nil, err
		}
		spec.Sources = append(spec.Sources, &SourceSpec{Pattern: ps, VulnTypes: yp.VulnTypes})
	}
	for _, yp := range yt.Sinks {
		ps, err := toPatternSpec(ruleID, yp.yamlPattern)
		if err != nil {
			return nil, err
		}
		spec.Sinks = append(spec.Sinks, &SinkSpec{Pattern: ps, VulnTypes: yp.VulnTypes})
	}
	for _, yp := range yt.Sanitizers {
		ps, err := toPatternSpec(ruleID, yp.yamlPattern)
		if err != nil {
			return nil, err
		}
		spec.Sanitizers = append(spec.Sanitizers, &SanitizerSpec{Pattern: ps, VulnTypes: yp.VulnTypes, Effectiveness: yp.Effectiveness})
	}
	return spec, nil
}

func toPatternSpec(ruleID string, yp yamlPattern) (*PatternSpec, error) {
	spec, err := toPatternSpecKind(ruleID, yp)
	if err != nil {
		return nil, err
	}
	spec.Focus = yp.Focus
	spec.Constraints = append(spec.Constraints, toConstraints(yp)...)
	return spec, nil
}

func toPatternSpecKind(ruleID string, yp yamlPattern) (*PatternSpec, error) {
	set := 0
	var spec *PatternSpec

	if yp.Pattern != "" {
		set++
		spec = &PatternSpec{Kind: SpecSimple, Simple: yp.Pattern}
	}
	if len(yp.Either) > 0 {
		set++
		children, err := toPatternSpecs(ruleID, yp.Either)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecEither, Children: children}
	}
	if len(yp.All) > 0 {
		set++
		children, err := toPatternSpecs(ruleID, yp.All)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecAll, Children: children}
	}
	if len(yp.Any) > 0 {
		set++
		children, err := toPatternSpecs(ruleID, yp.Any)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecAny, Children: children}
	}
	if yp.Inside != nil {
		set++
		child, err := toPatternSpec(ruleID, *yp.Inside)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecInside, Child: child}
	}
	if yp.NotInside != nil {
		set++
		child, err := toPatternSpec(ruleID, *yp.NotInside)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecNotInside, Child: child}
	}
	if yp.Not != nil {
		set++
		child, err := toPatternSpec(ruleID, *yp.Not)
		if err != nil {
			return nil, err
		}
		spec = &PatternSpec{Kind: SpecNot, Child: child}
	}
	if yp.Regex != "" {
		set++
		spec = &PatternSpec{Kind: SpecRegex, Regex: yp.Regex}
	}
	if yp.NotRegex != "" {
		set++
		spec = &PatternSpec{Kind: SpecNotRegex, Regex: yp.NotRegex}
	}

	if set != 1 {
		return nil, &LoadError{RuleID: ruleID, Message: "pattern entry must set exactly one of pattern/pattern-either/pattern-all/pattern-any/pattern-inside/pattern-not-inside/pattern-not/pattern-regex/pattern-not-regex"}
	}
	return spec, nil
}

func toPatternSpecs(ruleID string, yps []yamlPattern) ([]*PatternSpec, error) {
	specs := make([]*PatternSpec, 0, len(yps))
	for _, yp := range yps {
		spec, err := toPatternSpec(ruleID, yp)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func toConstraints(yp yamlPattern) []Constraint {
	var constraints []Constraint
	for _, c := range yp.MetavariableRegex {
		constraints = append(constraints, Constraint{Kind: ConstraintMetavariableRegex, Metavariable: c.Metavariable, Regex: c.Regex})
	}
	for _, c := range yp.MetavariableComparison {
		constraints = append(constraints, Constraint{Kind: ConstraintMetavariableComparison, Metavariable: c.Metavariable, Operator: c.Operator, Value: c.Value, ComparisonMetavariable: c.CompareTo})
	}
	for _, c := range yp.MetavariableName {
		constraints = append(constraints, Constraint{Kind: ConstraintMetavariableName, Metavariable: c.Metavariable, Regex: c.Regex})
	}
	for _, c := range yp.MetavariableAnalysis {
		constraints = append(constraints, Constraint{Kind: ConstraintMetavariableAnalysis, Metavariable: c.Metavariable, Analysis: c.Analysis})
	}
	return constraints
}
