package computation

import (
	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// Visibility marks each node with a calculated isComputedVisible property: a
// node is visible when its own visibility is Visible and it is the root or
// its z-parent is visible.
type Visibility struct {
	root *hierarchy.Node
}

// NewVisibility returns the computation.
func NewVisibility() *Visibility { return &Visibility{} }

// SetRoot sets the tree to compute over.
func (c *Visibility) SetRoot(root *hierarchy.Node) *Visibility {
	c.root = root
	return c
}

// ExecuteInPlace implements Computation.
func (c *Visibility) ExecuteInPlace() error {
	if c.root == nil {
		return ErrRootNotSet
	}
	computed := make(map[*hierarchy.Node]bool)
	var visible func(n *hierarchy.Node, seen map[*hierarchy.Node]bool) bool
	visible = func(n *hierarchy.Node, seen map[*hierarchy.Node]bool) bool {
		if v, ok := computed[n]; ok {
			return v
		}
		v := number(n, "visibility", Visible) == Visible
		if v && n != c.root {
			z := n.ZParent()
			switch {
			case z == nil:
			case seen[z]:
				// A z-order cycle cannot prove visibility.
				v = false
			default:
				seen[n] = true
				v = visible(z, seen)
			}
		}
		computed[n] = v
		return v
	}

	c.root.ForEachNodeDfs(func(n *hierarchy.Node) {
		v := visible(n, map[*hierarchy.Node]bool{})
		n.AddEagerProperty(tree.MakeCalculatedProperty(n.ID(), IsComputedVisible, v))
	})
	return nil
}
