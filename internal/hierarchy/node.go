// Package hierarchy assembles flat per-node property providers into a
// parent/child tree and holds the geometry computed for each node.
package hierarchy

import (
	"context"

	"github.com/ashita-ai/tracelens/internal/properties"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// TraceRect is the on-screen rectangle of a node.
type TraceRect struct {
	ID           string
	Name         string
	X            float64
	Y            float64
	W            float64
	H            float64
	CornerRadius float64
	GroupID      int
	IsVisible    bool
	IsDisplay    bool
	Depth        int
	Opacity      float64
}

// Node is one node of a hierarchy tree. Parent is the owning tree parent;
// zParent is the node it is drawn relative to, which defaults to the parent.
type Node struct {
	id    string
	name  string
	props *properties.Provider

	parent           *Node
	zParent          *Node
	children         []*Node
	relativeChildren []*Node

	rects          []TraceRect
	secondaryRects []TraceRect
}

// NewNode returns a detached node.
func NewNode(id, name string, props *properties.Provider) *Node {
	if props == nil {
		props = properties.NewBuilder().Build()
	}
	return &Node{id: id, name: name, props: props}
}

func (n *Node) ID() string   { return n.id }
func (n *Node) Name() string { return n.name }

// Properties returns the node's property provider.
func (n *Node) Properties() *properties.Provider { return n.props }

// GetEagerPropertyByName returns the eager property called name.
func (n *Node) GetEagerPropertyByName(name string) (*tree.PropertyTreeNode, bool) {
	return n.props.EagerProperty(name)
}

// AddEagerProperty attaches a property computed after construction.
func (n *Node) AddEagerProperty(p *tree.PropertyTreeNode) {
	n.props.AddEagerProperty(p)
}

// GetAllProperties returns the eager and lazy properties.
func (n *Node) GetAllProperties(ctx context.Context) (*tree.PropertyTreeNode, error) {
	return n.props.GetAll(ctx)
}

// IsRoot reports whether n has no parent.
func (n *Node) IsRoot() bool { return n.parent == nil }

// Parent returns the owning parent, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// ZParent returns the node n is ordered relative to.
func (n *Node) ZParent() *Node {
	if n.zParent != nil {
		return n.zParent
	}
	return n.parent
}

// SetZParent sets the relative-order parent.
func (n *Node) SetZParent(p *Node) { n.zParent = p }

// Children returns the tree children in order.
func (n *Node) Children() []*Node { return n.children }

// AddOrReplaceChild attaches child, replacing a child with the same id in
// place, and makes n its parent.
func (n *Node) AddOrReplaceChild(child *Node) {
	child.parent = n
	for i, c := range n.children {
		if c.id == child.id {
			n.children[i] = child
			return
		}
	}
	n.children = append(n.children, child)
}

// RemoveChild detaches the child with the given id.
func (n *Node) RemoveChild(id string) {
	for i, c := range n.children {
		if c.id == id {
			c.parent = nil
			n.children = append(n.children[:i], n.children[i+1:]...)
			return
		}
	}
}

// ChildByID returns the direct child with the given id.
func (n *Node) ChildByID(id string) (*Node, bool) {
	for _, c := range n.children {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// RelativeChildren returns nodes drawn relative to n out of tree order.
func (n *Node) RelativeChildren() []*Node { return n.relativeChildren }

// AddRelativeChild records a node drawn relative to n.
func (n *Node) AddRelativeChild(child *Node) {
	n.relativeChildren = append(n.relativeChildren, child)
}

func (n *Node) Rects() []TraceRect              { return n.rects }
func (n *Node) SetRects(r []TraceRect)          { n.rects = r }
func (n *Node) SecondaryRects() []TraceRect     { return n.secondaryRects }
func (n *Node) SetSecondaryRects(r []TraceRect) { n.secondaryRects = r }

// ForEachNodeDfs calls fn on n and its descendants, pre-order.
func (n *Node) ForEachNodeDfs(fn func(*Node)) {
	tree.ForEachDfs(n, fn)
}

// FindDfs returns the first node in pre-order matching match.
func (n *Node) FindDfs(match func(*Node) bool) (*Node, bool) {
	return tree.FindDfs(n, match)
}

// FilterDfs returns every node in pre-order matching match.
func (n *Node) FilterDfs(match func(*Node) bool) []*Node {
	return tree.FilterDfs(n, match)
}
