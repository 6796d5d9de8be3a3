// Package pattern compiles Semgrep-style pattern source text into an
// immutable pattern tree that the matcher (package match) evaluates
// against a universal AST (package ast).
package pattern

import "strings"

// Kind tags the variant of a compiled Pattern node.
type Kind int

const (
	KindLiteral Kind = iota
	KindMetavariable
	KindEllipsisMetavariable
	KindNodeType
	KindSequence
	KindAlternative
	KindWildcard
)

// Pattern is one node of the compiled pattern tree. The tree is immutable
// once returned from Compile/Parse and may be safely shared and cached by
// source string.
type Pattern struct {
	Kind     Kind
	Text     string     // KindLiteral
	Name     string     // KindMetavariable, KindEllipsisMetavariable
	NodeType string     // KindNodeType
	Children []*Pattern // KindSequence, KindAlternative
}

func literal(text string) *Pattern      { return &Pattern{Kind: KindLiteral, Text: text} }
func metavariable(name string) *Pattern { return &Pattern{Kind: KindMetavariable, Name: name} }
func ellipsisMetavariable(name string) *Pattern {
	return &Pattern{Kind: KindEllipsisMetavariable, Name: name}
}
func nodeType(t string) *Pattern { return &Pattern{Kind: KindNodeType, NodeType: t} }
func wildcard() *Pattern         { return &Pattern{Kind: KindWildcard} }

func sequence(children []*Pattern) *Pattern {
	if len(children) == 1 {
		return children[0]
	}
	return &Pattern{Kind: KindSequence, Children: children}
}

func alternative(children []*Pattern) *Pattern {
	if len(children) == 1 {
		return children[0]
	}
	return &Pattern{Kind: KindAlternative, Children: children}
}

// String renders p back to pattern source. Parsing the result yields a
// structurally equal pattern tree (round-trip property).
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	switch p.Kind {
	case KindLiteral:
		return escapeLiteral(p.Text)
	case KindMetavariable:
		return "$" + p.Name
	case KindEllipsisMetavariable:
		return "$..." + p.Name
	case KindNodeType:
		return "@" + p.NodeType
	case KindWildcard:
		return "..."
	case KindSequence:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " ")
	case KindAlternative:
		parts := make([]string, len(p.Children))
		for i, c := range p.Children {
			parts[i] = c.String()
		}
		return strings.Join(parts, " | ")
	default:
		return ""
	}
}

func escapeLiteral(s string) string {
	if isBareToken(s) {
		return s
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func isBareToken(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !isBareTokenRune(r) {
			return false
		}
	}
	return true
}

func isBareTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("_-+*=<>!&^%#", r):
		return true
	}
	return false
}
