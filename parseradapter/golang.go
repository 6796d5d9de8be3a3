package parseradapter

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/codalyze/sastcore/ast"
)

// GoAdapter converts Go source into the universal AST via go-tree-sitter's
// Go grammar. Grounded on graph/parser_golang.go and graph/golang/*.go's
// node-walk shape, reduced from a full call-graph-building analyzer (the
// teacher's Node/CodeGraph model, method-ID generation, call-site
// resolution) down to a generic tree-sitter-to-ast.Node conversion that
// only ever emits spec §4.1's closed node-type vocabulary — the core
// depends on nothing beyond that vocabulary.
type GoAdapter struct{}

// NewGoAdapter returns a ready-to-use Go adapter.
func NewGoAdapter() *GoAdapter { return &GoAdapter{} }

func (a *GoAdapter) Language() string { return "go" }

func (a *GoAdapter) Supports(path string) bool {
	return strings.HasSuffix(filepath.Base(path), ".go")
}

func (a *GoAdapter) Parse(ctx context.Context, path string, src []byte) (*ast.Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(golang.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parseradapter: parse %s: %w", path, err)
	}
	defer tree.Close()

	c := &goConverter{src: src, file: path}
	root := c.convertNode(tree.RootNode())
	if root == nil {
		// source_file always maps, but guard against an empty/unparsable
		// file producing a nil root the rest of the pipeline can't use.
		root = ast.NewBuilder(ast.Program).Build()
	}
	return root, nil
}

// goConverter walks one file's tree-sitter tree into ast.Node values.
type goConverter struct {
	src  []byte
	file string
}

// goNodeTypes maps go-tree-sitter node type names to the universal AST's
// closed vocabulary. A tree-sitter node type absent from this table is
// "transparent": convertChildren splices its own converted children
// directly into its parent instead of materializing a wrapper node for
// it, since the universal AST has no slot for e.g. an argument list or a
// parenthesized-expression wrapper.
var goNodeTypes = map[string]ast.NodeType{
	"source_file":           ast.Program,
	"package_clause":        ast.PackageDeclaration,
	"import_declaration":    ast.ImportDeclaration,
	"function_declaration":  ast.FunctionDeclaration,
	"method_declaration":    ast.FunctionDeclaration,
	"type_declaration":      ast.ClassDeclaration,
	"var_declaration":       ast.VariableDeclaration,
	"const_declaration":     ast.VariableDeclaration,
	"short_var_declaration": ast.AssignmentExpression,
	"assignment_statement":  ast.AssignmentExpression,
	"if_statement":          ast.IfStatement,
	"for_statement":         ast.ForStatement,
	"return_statement":      ast.ReturnStatement,
	"block":                 ast.BlockStatement,
	"call_expression":       ast.CallExpression,
	"selector_expression":   ast.MemberExpression,
	"binary_expression":     ast.BinaryExpression,
	"unary_expression":      ast.UnaryExpression,

	"identifier":         ast.Identifier,
	"field_identifier":   ast.Identifier,
	"package_identifier": ast.Identifier,
	"type_identifier":    ast.Identifier,

	"interpreted_string_literal": ast.Literal,
	"raw_string_literal":         ast.Literal,
	"int_literal":                ast.Literal,
	"float_literal":              ast.Literal,
	"imaginary_literal":          ast.Literal,
	"rune_literal":               ast.Literal,
}

// convertNode converts one named tree-sitter node, or returns nil if its
// type has no universal-AST counterpart.
func (c *goConverter) convertNode(n *sitter.Node) *ast.Node {
	if n == nil {
		return nil
	}
	nt, ok := goNodeTypes[n.Type()]
	if !ok {
		return nil
	}
	return c.build(nt, n)
}

func (c *goConverter) build(nt ast.NodeType, n *sitter.Node) *ast.Node {
	b := ast.NewBuilder(nt).WithLocation(c.location(n))

	switch nt {
	case ast.Identifier:
		name := n.Content(c.src)
		b.WithText(name).WithIdentifier(name)
	case ast.Literal:
		text := n.Content(c.src)
		b.WithText(text).WithLiteral(literalValue(n.Type(), text))
	case ast.BinaryExpression, ast.AssignmentExpression:
		if op := c.operator(n); op != "" {
			b.WithOperator(op)
		}
	}

	for _, child := range c.convertChildren(n) {
		b.AddChild(child)
	}
	return b.Build()
}

// convertChildren converts every named child, flattening any child whose
// tree-sitter type is transparent (not in goNodeTypes) so its own
// converted children attach directly to n's universal-AST node instead.
func (c *goConverter) convertChildren(n *sitter.Node) []*ast.Node {
	var out []*ast.Node
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		child := n.NamedChild(i)
		if converted := c.convertNode(child); converted != nil {
			out = append(out, converted)
			continue
		}
		out = append(out, c.convertChildren(child)...)
	}
	return out
}

// operator scans n's unnamed children for the infix/assignment operator
// token go-tree-sitter otherwise only exposes positionally, since
// NamedChild skips anonymous tokens like "==" or ":=".
func (c *goConverter) operator(n *sitter.Node) string {
	count := int(n.ChildCount())
	for i := 0; i < count; i++ {
		child := n.Child(i)
		if child.IsNamed() {
			continue
		}
		text := child.Content(c.src)
		if isOperatorToken(text) {
			return text
		}
	}
	return ""
}

func isOperatorToken(s string) bool {
	switch s {
	case "=", ":=", "+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
		"==", "!=", "<", ">", "<=", ">=", "&&", "||",
		"+", "-", "*", "/", "%", "&", "|", "^", "<<", ">>", "&^":
		return true
	}
	return false
}

func (c *goConverter) location(n *sitter.Node) ast.Location {
	start, end := n.StartPoint(), n.EndPoint()
	return ast.Location{
		File:        c.file,
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column) + 1,
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column) + 1,
	}
}

func literalValue(tsType, text string) *ast.LiteralValue {
	switch tsType {
	case "interpreted_string_literal", "raw_string_literal":
		return ast.StringLiteral(strings.Trim(text, "`\""))
	case "int_literal":
		if v, err := strconv.ParseInt(text, 0, 64); err == nil {
			return ast.IntegerLiteral(v)
		}
		return ast.IntegerLiteral(0)
	case "float_literal":
		if v, err := strconv.ParseFloat(text, 64); err == nil {
			return ast.FloatLiteral(v)
		}
		return ast.FloatLiteral(0)
	case "rune_literal":
		return ast.StringLiteral(strings.Trim(text, "'"))
	default:
		return ast.StringLiteral(text)
	}
}
