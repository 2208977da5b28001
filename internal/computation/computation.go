// Package computation derives properties of a hierarchy tree after it is
// assembled: computed visibility and on-screen rectangles.
package computation

import (
	"errors"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/operations"
)

// ErrRootNotSet is returned by ExecuteInPlace when SetRoot was not called.
var ErrRootNotSet = errors.New("computation: root not set")

// Computation mutates a hierarchy tree in place.
type Computation interface {
	ExecuteInPlace() error
}

// Visible is the value of a visibility property that marks a node shown.
const Visible = 0

// IsComputedVisible names the calculated visibility property.
const IsComputedVisible = "isComputedVisible"

// number returns the numeric eager property called name, or def.
func number(n *hierarchy.Node, name string, def float64) float64 {
	p, ok := n.GetEagerPropertyByName(name)
	if !ok {
		return def
	}
	v := p.Value()
	if e, ok := v.(fakeproto.EnumValue); ok {
		return float64(e.Number)
	}
	if f, ok := operations.Float64(v); ok {
		return f
	}
	return def
}

// boolean returns the boolean eager property called name, or def.
func boolean(n *hierarchy.Node, name string, def bool) bool {
	p, ok := n.GetEagerPropertyByName(name)
	if !ok {
		return def
	}
	if b, ok := p.Value().(bool); ok {
		return b
	}
	return def
}
