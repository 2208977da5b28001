// Package tree holds the property tree model shared by every trace type: one
// node per field of a decoded entry, with display formatting attached by
// operation chains.
package tree

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// PropertySource records where a property's value came from.
type PropertySource int

const (
	// SourceProto values were decoded from the trace.
	SourceProto PropertySource = iota
	// SourceDefault values were filled in for fields the trace omitted.
	SourceDefault
	// SourceCalculated values were derived after decoding.
	SourceCalculated
)

func (s PropertySource) String() string {
	switch s {
	case SourceProto:
		return "proto"
	case SourceDefault:
		return "default"
	case SourceCalculated:
		return "calculated"
	}
	return fmt.Sprintf("PropertySource(%d)", int(s))
}

// Formatter renders a property for display.
type Formatter interface {
	Format(node *PropertyTreeNode) string
}

// FormatterFunc adapts a function to Formatter.
type FormatterFunc func(node *PropertyTreeNode) string

// Format calls f(node).
func (f FormatterFunc) Format(node *PropertyTreeNode) string { return f(node) }

// PropertyTreeNode is one property. A node with children ignores its value.
type PropertyTreeNode struct {
	id        string
	name      string
	source    PropertySource
	value     any
	children  *orderedmap.OrderedMap[string, *PropertyTreeNode]
	formatter Formatter
}

// NewPropertyTreeNode returns a node with no children.
func NewPropertyTreeNode(id, name string, source PropertySource, value any) *PropertyTreeNode {
	return &PropertyTreeNode{
		id:       id,
		name:     name,
		source:   source,
		value:    value,
		children: orderedmap.New[string, *PropertyTreeNode](),
	}
}

func (n *PropertyTreeNode) ID() string             { return n.id }
func (n *PropertyTreeNode) Name() string           { return n.name }
func (n *PropertyTreeNode) Source() PropertySource { return n.source }
func (n *PropertyTreeNode) Value() any             { return n.value }

// SetValue replaces the leaf value.
func (n *PropertyTreeNode) SetValue(v any) { n.value = v }

// IsLeaf reports whether n has no children.
func (n *PropertyTreeNode) IsLeaf() bool { return n.children.Len() == 0 }

// AddOrReplaceChild appends child, or replaces a same-named child in place.
func (n *PropertyTreeNode) AddOrReplaceChild(child *PropertyTreeNode) {
	n.children.Set(child.name, child)
}

// RemoveChild deletes the child called name.
func (n *PropertyTreeNode) RemoveChild(name string) {
	n.children.Delete(name)
}

// Child returns the child called name.
func (n *PropertyTreeNode) Child(name string) (*PropertyTreeNode, bool) {
	return n.children.Get(name)
}

// Children returns the children in insertion order.
func (n *PropertyTreeNode) Children() []*PropertyTreeNode {
	out := make([]*PropertyTreeNode, 0, n.children.Len())
	for pair := n.children.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// SetFormatter sets the display formatter.
func (n *PropertyTreeNode) SetFormatter(f Formatter) { n.formatter = f }

// Formatter returns the display formatter, or nil.
func (n *PropertyTreeNode) Formatter() Formatter { return n.formatter }

// FormattedValue renders the node with its formatter. Without one, leaves
// print with fmt and parents render empty.
func (n *PropertyTreeNode) FormattedValue() string {
	if n.formatter != nil {
		return n.formatter.Format(n)
	}
	if !n.IsLeaf() || n.value == nil {
		return ""
	}
	return fmt.Sprint(n.value)
}

// String returns "name: formatted value".
func (n *PropertyTreeNode) String() string {
	return n.name + ": " + n.FormattedValue()
}
