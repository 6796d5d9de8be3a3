package parseradapter

import (
	"context"

	"github.com/codalyze/sastcore/ast"
)

// Registry dispatches a file path to the Adapter that claims it. Adapters
// are consulted in registration order, mirroring the teacher's
// extension-switch dispatch in graph/initialize.go, generalized so a new
// language needs only an additional Register call rather than a change
// to a central switch statement.
type Registry struct {
	adapters []Adapter
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a adapter, consulted after every previously registered
// one for a given path.
func (r *Registry) Register(a Adapter) {
	r.adapters = append(r.adapters, a)
}

// For returns the first registered adapter that supports path.
func (r *Registry) For(path string) (Adapter, bool) {
	for _, a := range r.adapters {
		if a.Supports(path) {
			return a, true
		}
	}
	return nil, false
}

// Languages returns the canonical language name of every registered
// adapter, in registration order.
func (r *Registry) Languages() []string {
	out := make([]string, len(r.adapters))
	for i, a := range r.adapters {
		out[i] = a.Language()
	}
	return out
}

// Parse resolves an adapter for path and parses src with it, returning
// *UnsupportedFileError when no adapter claims the path.
func (r *Registry) Parse(ctx context.Context, path string, src []byte) (*ast.Node, error) {
	a, ok := r.For(path)
	if !ok {
		return nil, &UnsupportedFileError{Path: path}
	}
	return a.Parse(ctx, path, src)
}
