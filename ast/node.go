// Package ast defines the universal AST: a polymorphic node representation
// shared across every language a parser adapter can target. The core never
// imports a concrete language grammar; it only ever sees NodeType values
// from the closed enumeration below.
package ast

// NodeType is a closed enumeration of the node kinds the universal AST can
// represent. Parser adapters must only ever emit these values; the core
// treats NodeType as a tagged variant, never as an open class hierarchy.
type NodeType string

const (
	Program               NodeType = "program"
	Identifier            NodeType = "identifier"
	Literal               NodeType = "literal"
	BinaryExpression      NodeType = "binary-expression"
	UnaryExpression       NodeType = "unary-expression"
	CallExpression        NodeType = "call-expression"
	MemberExpression      NodeType = "member-expression"
	AssignmentExpression  NodeType = "assignment-expression"
	VariableDeclaration   NodeType = "variable-declaration"
	FunctionDeclaration   NodeType = "function-declaration"
	ClassDeclaration      NodeType = "class-declaration"
	MethodDeclaration     NodeType = "method-declaration"
	FieldDeclaration      NodeType = "field-declaration"
	IfStatement           NodeType = "if-statement"
	WhileStatement        NodeType = "while-statement"
	ForStatement          NodeType = "for-statement"
	ReturnStatement       NodeType = "return-statement"
	BlockStatement        NodeType = "block-statement"
	ExpressionStatement   NodeType = "expression-statement"
	ImportDeclaration     NodeType = "import-declaration"
	ExportDeclaration     NodeType = "export-declaration"
	PackageDeclaration    NodeType = "package-declaration"
	Decorator             NodeType = "decorator"
	TryStatement          NodeType = "try-statement"
	ExceptClause          NodeType = "except-clause"
	FinallyClause         NodeType = "finally-clause"

	// SQL-specific node types.
	SQLSelectStatement NodeType = "sql-select-statement"
	SQLInsertStatement NodeType = "sql-insert-statement"
	SQLUpdateStatement NodeType = "sql-update-statement"
	SQLDeleteStatement NodeType = "sql-delete-statement"
	SQLWhereClause     NodeType = "sql-where-clause"
	SQLTableRef        NodeType = "sql-table-ref"

	// Shell-specific node types.
	ShellCommand  NodeType = "shell-command"
	ShellPipeline NodeType = "shell-pipeline"
	ShellRedirect NodeType = "shell-redirect"
)

// Node is a single element of the universal tree. Every field besides
// NodeType and Children is optional; accessors distinguish "absent" from
// "present but empty" explicitly (see the Has* methods), because matchers
// rely on that distinction (spec §4.1: "this matters because matchers
// distinguish 'unknown' from 'empty'").
//
// A Node owns its Children exclusively: every node has exactly one parent
// or is a root, child order is significant, and nodes are value-like —
// mutation happens only through Builder/Clone, never in place on a node
// reachable from more than one place.
type Node struct {
	NodeType   NodeType
	text       *string
	location   *Location
	identifier *string
	literal    *LiteralValue
	operator   *string
	Children   []*Node
	Attributes map[string]string
}

// NewNode creates a bare node of the given type with no optional fields set.
func NewNode(t NodeType) *Node {
	return &Node{NodeType: t, Attributes: map[string]string{}}
}

// HasText reports whether the node carries a verbatim source-text slice.
func (n *Node) HasText() bool { return n.text != nil }

// Text returns the node's verbatim source text, or "" if absent. Callers
// that must distinguish absence from an empty string should use HasText.
func (n *Node) Text() string {
	if n.text == nil {
		return ""
	}
	return *n.text
}

// HasLocation reports whether the node carries a source location.
func (n *Node) HasLocation() bool { return n.location != nil }

// Location returns the node's source location, or nil if absent.
func (n *Node) Location() *Location { return n.location }

// HasIdentifier reports whether the node carries an identifier name.
func (n *Node) HasIdentifier() bool { return n.identifier != nil }

// Identifier returns the node's identifier name exactly as it appeared in
// source (case preserved), or "" if absent.
func (n *Node) Identifier() string {
	if n.identifier == nil {
		return ""
	}
	return *n.identifier
}

// HasLiteral reports whether the node carries a tagged literal value.
func (n *Node) HasLiteral() bool { return n.literal != nil }

// Literal returns the node's literal value, or nil if absent.
func (n *Node) Literal() *LiteralValue { return n.literal }

// HasOperator reports whether the node carries a binary/unary operator.
func (n *Node) HasOperator() bool { return n.operator != nil }

// Operator returns the node's operator token, or "" if absent.
func (n *Node) Operator() string {
	if n.operator == nil {
		return ""
	}
	return *n.operator
}

// ChildCount returns the number of direct children.
func (n *Node) ChildCount() int { return len(n.Children) }

// ChildAt returns the child at index i, or nil if out of range.
func (n *Node) ChildAt(i int) *Node {
	if i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// AddChild appends a child node, preserving declared order.
func (n *Node) AddChild(child *Node) {
	n.Children = append(n.Children, child)
}

// Attribute returns a language-specific attribute by key and whether it
// was present.
func (n *Node) Attribute(key string) (string, bool) {
	if n.Attributes == nil {
		return "", false
	}
	v, ok := n.Attributes[key]
	return v, ok
}
