package rule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/match"
)

// analyses is the named catalog of built-in metavariable-analysis passes.
// Spec §4.4: "implementations may be stubbed but must not silently
// succeed — unknown analyses fail the constraint." Anything outside this
// catalog, or a custom condition missing from the matcher's registry,
// fails closed rather than passing.
var analyses = map[string]func(b match.Binding) bool{
	// constant-string: the bound node is itself a literal. Binding does not
	// retain the literal's tagged kind, only the node-type, so this cannot
	// distinguish a string literal from e.g. an integer literal; that is an
	// acceptable approximation for a stubbed analysis.
	"constant-string": func(b match.Binding) bool {
		return b.NodeType == ast.Literal
	},
	// contains-user-input is a stub: real taint-awareness lives in the
	// data-flow core (C5). Without a registered custom evaluator this
	// conservatively reports false rather than guessing.
	"contains-user-input": func(b match.Binding) bool {
		return false
	},
}

// evalConstraints reports whether every declared constraint holds against
// bindings, using matchCfg's custom constraint registry for analyses that
// delegate to it.
func evalConstraints(constraints []Constraint, bindings match.Bindings, matchCfg match.Config) (bool, error) {
	for _, c := range constraints {
		ok, err := evalConstraint(c, bindings, matchCfg)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func evalConstraint(c Constraint, bindings match.Bindings, matchCfg match.Config) (bool, error) {
	binding, ok := bindings.Get(c.Metavariable)
	if !ok {
		return false, nil
	}

	switch c.Kind {
	case ConstraintMetavariableRegex, ConstraintMetavariableName:
		re, err := regexp.Compile(c.Regex)
		if err != nil {
			return false, &PatternMatchError{Err: err}
		}
		return re.MatchString(binding.Text), nil

	case ConstraintMetavariableComparison:
		return evalComparison(c, binding, bindings)

	case ConstraintMetavariableAnalysis:
		if custom, ok := matchCfg.Constraint("analysis:" + c.Analysis); ok {
			return custom(nil, binding.Node, bindings), nil
		}
		if fn, ok := analyses[c.Analysis]; ok {
			return fn(binding), nil
		}
		return false, fmt.Errorf("rule: unknown metavariable-analysis %q", c.Analysis)

	default:
		return false, fmt.Errorf("rule: unknown constraint kind %d", c.Kind)
	}
}

func evalComparison(c Constraint, binding match.Binding, bindings match.Bindings) (bool, error) {
	lhs := binding.Text
	rhs := c.Value
	if c.ComparisonMetavariable != "" {
		other, ok := bindings.Get(c.ComparisonMetavariable)
		if !ok {
			return false, nil
		}
		rhs = other.Text
	}

	switch c.Operator {
	case "==":
		return lhs == rhs, nil
	case "!=":
		return lhs != rhs, nil
	case "contains":
		return strings.Contains(lhs, rhs), nil
	case "starts_with":
		return strings.HasPrefix(lhs, rhs), nil
	case "ends_with":
		return strings.HasSuffix(lhs, rhs), nil
	case "matches":
		re, err := regexp.Compile(rhs)
		if err != nil {
			return false, &PatternMatchError{Err: err}
		}
		return re.MatchString(lhs), nil
	case "<", ">", "<=", ">=":
		return evalOrdering(c.Operator, lhs, rhs), nil
	default:
		return false, fmt.Errorf("rule: unknown comparison operator %q", c.Operator)
	}
}

// evalOrdering compares lhs/rhs numerically when both parse as numbers,
// falling back to lexicographic comparison otherwise.
func evalOrdering(operator, lhs, rhs string) bool {
	lf, lerr := strconv.ParseFloat(lhs, 64)
	rf, rerr := strconv.ParseFloat(rhs, 64)
	if lerr == nil && rerr == nil {
		switch operator {
		case "<":
			return lf < rf
		case ">":
			return lf > rf
		case "<=":
			return lf <= rf
		case ">=":
			return lf >= rf
		}
	}
	switch operator {
	case "<":
		return lhs < rhs
	case ">":
		return lhs > rhs
	case "<=":
		return lhs <= rhs
	case ">=":
		return lhs >= rhs
	}
	return false
}
