package computation

import (
	"github.com/ashita-ai/tracelens/internal/hierarchy"
)

// DepthMagnification separates the depth of consecutive tree levels.
const DepthMagnification = 4

// Rects assigns one rectangle per node by composing each ancestor's
// translation, scale and scroll. Nodes read the eager properties left, top,
// width, height, translationX, translationY, scaleX, scaleY, scrollX, scrollY
// and alpha; missing values default to 0, or 1 for scales and alpha.
type Rects struct {
	root *hierarchy.Node
}

// NewRects returns the computation.
func NewRects() *Rects { return &Rects{} }

// SetRoot sets the tree to compute over.
func (c *Rects) SetRoot(root *hierarchy.Node) *Rects {
	c.root = root
	return c
}

// ExecuteInPlace implements Computation.
func (c *Rects) ExecuteInPlace() error {
	if c.root == nil {
		return ErrRootNotSet
	}
	c.addRects(c.root, 0, 0, 1, 1, 0)
	return nil
}

func (c *Rects) addRects(n *hierarchy.Node, shiftX, shiftY, parentScaleX, parentScaleY float64, depth int) {
	left := number(n, "left", 0)
	top := number(n, "top", 0)
	width := number(n, "width", 0)
	height := number(n, "height", 0)

	newScaleX := parentScaleX * number(n, "scaleX", 1)
	newScaleY := parentScaleY * number(n, "scaleY", 1)

	x := shiftX + (left+number(n, "translationX", 0))*parentScaleX + width*(parentScaleX-newScaleX)/2
	y := shiftY + (top+number(n, "translationY", 0))*parentScaleY + height*(parentScaleY-newScaleY)/2

	n.SetRects([]hierarchy.TraceRect{{
		ID:        n.ID(),
		Name:      n.Name(),
		X:         x,
		Y:         y,
		W:         width * newScaleX,
		H:         height * newScaleY,
		IsVisible: boolean(n, IsComputedVisible, true),
		Depth:     depth * DepthMagnification,
		Opacity:   number(n, "alpha", 1),
	}})

	childShiftX := x - number(n, "scrollX", 0)
	childShiftY := y - number(n, "scrollY", 0)
	for _, child := range n.Children() {
		c.addRects(child, childShiftX, childShiftY, newScaleX, newScaleY, depth+1)
	}
}
