package rule

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/codalyze/sastcore/ast"
	"github.com/codalyze/sastcore/match"
)

// evalPatternSpec evaluates spec against root and returns the surviving
// (node, bindings) matches, per the composition semantics of execution
// protocol step 2.
func evalPatternSpec(spec *PatternSpec, root *ast.Node, e *Engine) ([]Match, error) {
	switch spec.Kind {
	case SpecSimple:
		return evalSimple(spec, root, e)
	case SpecRegex:
		return evalRegex(spec.Regex, root, true)
	case SpecNotRegex:
		return evalRegex(spec.Regex, root, false)
	case SpecEither, SpecAny:
		return evalUnion(spec.Children, root, e)
	case SpecAll:
		return evalIntersection(spec.Children, root, e)
	case SpecInside:
		return evalInside(spec.Child, root, e, true)
	case SpecNotInside:
		return evalInside(spec.Child, root, e, false)
	case SpecNot:
		return evalNot(spec.Child, root, e)
	default:
		return nil, fmt.Errorf("rule: unknown pattern spec kind %d", spec.Kind)
	}
}

func evalSimple(spec *PatternSpec, root *ast.Node, e *Engine) ([]Match, error) {
	compiled, err := e.patterns.Compile(spec.Simple)
	if err != nil {
		return nil, err
	}
	results := match.FindMatches(compiled, root, e.matchConfig)
	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = Match{Node: r.Node, Bindings: r.Bindings}
	}
	return matches, nil
}

func evalRegex(source string, root *ast.Node, wantMatch bool) ([]Match, error) {
	re, err := regexp.Compile(source)
	if err != nil {
		return nil, &PatternMatchError{Err: err}
	}
	var matches []Match
	_ = ast.Visit(root, func(n *ast.Node) ast.VisitResult {
		if !n.HasText() {
			return ast.VisitContinue
		}
		if re.MatchString(n.Text()) == wantMatch {
			matches = append(matches, Match{Node: n, Bindings: match.NewBindings()})
		}
		return ast.VisitContinue
	})
	return matches, nil
}

// evalUnion is Either/Any: the deduplicated union of each child's matches.
func evalUnion(children []*PatternSpec, root *ast.Node, e *Engine) ([]Match, error) {
	seen := map[string]bool{}
	var out []Match
	for _, child := range children {
		matches, err := evalPatternSpec(child, root, e)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			key := matchKey(m)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, m)
		}
	}
	return out, nil
}

// evalIntersection is All: a node survives iff it appears in every child's
// match set; surviving bindings are merged across children, dropping a
// node whose children disagree on a shared metavariable's bound text.
func evalIntersection(children []*PatternSpec, root *ast.Node, e *Engine) ([]Match, error) {
	if len(children) == 0 {
		return nil, nil
	}
	perChild := make([][]Match, len(children))
	for i, child := range children {
		matches, err := evalPatternSpec(child, root, e)
		if err != nil {
			return nil, err
		}
		perChild[i] = matches
	}

	byNode := map[*ast.Node][]Bindings{}
	order := []*ast.Node{}
	for _, m := range perChild[0] {
		if _, ok := byNode[m.Node]; !ok {
			order = append(order, m.Node)
		}
		byNode[m.Node] = append(byNode[m.Node], m.Bindings)
	}

	for _, matches := range perChild[1:] {
		present := map[*ast.Node][]Bindings{}
		for _, m := range matches {
			present[m.Node] = append(present[m.Node], m.Bindings)
		}
		next := map[*ast.Node][]Bindings{}
		for _, n := range order {
			prevBindingsList, ok1 := byNode[n]
			curBindingsList, ok2 := present[n]
			if !ok1 || !ok2 {
				continue
			}
			next[n] = mergeAll(prevBindingsList, curBindingsList)
		}
		byNode = next
		filtered := order[:0:0]
		for _, n := range order {
			if len(byNode[n]) > 0 {
				filtered = append(filtered, n)
			}
		}
		order = filtered
	}

	var out []Match
	for _, n := range order {
		for _, b := range byNode[n] {
			out = append(out, Match{Node: n, Bindings: b})
		}
	}
	return out, nil
}

// mergeAll merges every combination of a-side and b-side bindings for one
// node, keeping only merges with no conflicting metavariable.
func mergeAll(a, b []Bindings) []Bindings {
	var merged []Bindings
	for _, ab := range a {
		for _, bb := range b {
			if m, ok := mergeBindings(ab, bb); ok {
				merged = append(merged, m)
			}
		}
	}
	return merged
}

func mergeBindings(a, b Bindings) (Bindings, bool) {
	out := a.Snapshot()
	for name, bind := range b {
		if existing, ok := out[name]; ok {
			if existing.Text != bind.Text {
				return nil, false
			}
			continue
		}
		out[name] = bind
	}
	return out, true
}

// evalInside implements Inside/NotInside: a candidate node survives iff
// some node on its root-to-self path matches p (Inside) or none does
// (NotInside). The universal AST exposes no parent pointers, so the path
// is tracked explicitly while walking down from root.
func evalInside(p *PatternSpec, root *ast.Node, e *Engine, wantInside bool) ([]Match, error) {
	innerMatches, err := evalPatternSpec(p, root, e)
	if err != nil {
		return nil, err
	}
	insideSet := map[*ast.Node]bool{}
	for _, m := range innerMatches {
		insideSet[m.Node] = true
	}

	var out []Match
	var walk func(n *ast.Node, path []*ast.Node)
	walk = func(n *ast.Node, path []*ast.Node) {
		path = append(path, n)
		onPath := false
		for _, anc := range path {
			if insideSet[anc] {
				onPath = true
				break
			}
		}
		if onPath == wantInside {
			out = append(out, Match{Node: n, Bindings: match.NewBindings()})
		}
		for _, child := range n.Children {
			walk(child, path)
		}
	}
	walk(root, nil)
	return out, nil
}

// evalNot drops every node where p matches that same node.
func evalNot(p *PatternSpec, root *ast.Node, e *Engine) ([]Match, error) {
	innerMatches, err := evalPatternSpec(p, root, e)
	if err != nil {
		return nil, err
	}
	dropped := map[*ast.Node]bool{}
	for _, m := range innerMatches {
		dropped[m.Node] = true
	}

	var out []Match
	_ = ast.Visit(root, func(n *ast.Node) ast.VisitResult {
		if !dropped[n] {
			out = append(out, Match{Node: n, Bindings: match.NewBindings()})
		}
		return ast.VisitContinue
	})
	return out, nil
}

func matchKey(m Match) string {
	names := make([]string, 0, len(m.Bindings))
	for name := range m.Bindings {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "%p|", m.Node)
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%s;", name, m.Bindings[name].Text)
	}
	return b.String()
}
