package ast

// Clone returns a structurally equal, fully independent copy of the
// subtree rooted at n. Node identity in this package is by value, so two
// cloned trees never alias any mutable state (spec §4.1: "node identity is
// by value").
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	clone := &Node{NodeType: n.NodeType}

	if n.text != nil {
		text := *n.text
		clone.text = &text
	}
	if n.location != nil {
		loc := *n.location
		clone.location = &loc
	}
	if n.identifier != nil {
		id := *n.identifier
		clone.identifier = &id
	}
	if n.literal != nil {
		lit := *n.literal
		clone.literal = &lit
	}
	if n.operator != nil {
		op := *n.operator
		clone.operator = &op
	}
	if n.Attributes != nil {
		clone.Attributes = make(map[string]string, len(n.Attributes))
		for k, v := range n.Attributes {
			clone.Attributes[k] = v
		}
	}
	if n.Children != nil {
		clone.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			clone.Children[i] = child.Clone()
		}
	}
	return clone
}

// Equal reports whether n and other are structurally equal: same node
// type, optional fields, and recursively equal children in the same
// order. Attribute map comparison is order-independent by construction
// (maps), but must match key-for-key.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.NodeType != other.NodeType {
		return false
	}
	if !equalStringPtr(n.text, other.text) {
		return false
	}
	if !equalStringPtr(n.identifier, other.identifier) {
		return false
	}
	if !equalStringPtr(n.operator, other.operator) {
		return false
	}
	if (n.location == nil) != (other.location == nil) {
		return false
	}
	if n.location != nil && *n.location != *other.location {
		return false
	}
	if (n.literal == nil) != (other.literal == nil) {
		return false
	}
	if n.literal != nil && *n.literal != *other.literal {
		return false
	}
	if len(n.Attributes) != len(other.Attributes) {
		return false
	}
	for k, v := range n.Attributes {
		if other.Attributes[k] != v {
			return false
		}
	}
	if len(n.Children) != len(other.Children) {
		return false
	}
	for i, child := range n.Children {
		if !child.Equal(other.Children[i]) {
			return false
		}
	}
	return true
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
