package ast

import "errors"

// VisitResult is returned by a Visitor to control traversal.
type VisitResult int

const (
	// VisitContinue tells the walker to keep descending.
	VisitContinue VisitResult = iota
	// VisitStop short-circuits the entire traversal.
	VisitStop
)

// Visitor is invoked once per node in pre-order during Visit.
type Visitor func(n *Node) VisitResult

// ErrReentrantVisit is returned when a Visitor tries to start a nested
// traversal on the same walk instead of simply inspecting the node it was
// given. Spec §4.1: "Re-entrance during a visit is not permitted."
var ErrReentrantVisit = errors.New("ast: re-entrant Visit call")

// walker carries the "currently traversing" flag for exactly one Visit
// call, so re-entrance can be detected without any node- or package-level
// shared state (nodes themselves stay value-like and cloneable).
type walker struct {
	active bool
}

// Visit performs a pre-order depth-first traversal of root, invoking
// visitor on each node in declared child order. The traversal stops early
// if visitor returns VisitStop. Each call uses its own walker: re-entering
// that walker from inside visitor returns ErrReentrantVisit instead of
// traversing, while a separate Visit call made from inside visitor runs an
// independent traversal and is not detected.
func Visit(root *Node, visitor Visitor) error {
	w := &walker{}
	_, err := w.visit(root, visitor)
	return err
}

func (w *walker) visit(n *Node, visitor Visitor) (VisitResult, error) {
	if n == nil {
		return VisitContinue, nil
	}
	if w.active {
		return VisitContinue, ErrReentrantVisit
	}
	w.active = true
	result := visitor(n)
	w.active = false

	if result == VisitStop {
		return VisitStop, nil
	}
	for _, child := range n.Children {
		r, err := w.visit(child, visitor)
		if err != nil {
			return VisitContinue, err
		}
		if r == VisitStop {
			return VisitStop, nil
		}
	}
	return VisitContinue, nil
}
