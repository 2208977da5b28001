package operations

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/timeline"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// Formatters shared by every trace type.
var (
	DefaultFormatter  tree.Formatter = tree.FormatterFunc(formatDefault)
	EnumFormatter     tree.Formatter = tree.FormatterFunc(formatEnum)
	ColorFormatter    tree.Formatter = tree.FormatterFunc(formatColor)
	RectFormatter     tree.Formatter = tree.FormatterFunc(formatRect)
	SizeFormatter     tree.Formatter = tree.FormatterFunc(formatSize)
	PositionFormatter tree.Formatter = tree.FormatterFunc(formatPosition)
	MatrixFormatter   tree.Formatter = tree.FormatterFunc(formatMatrix)
)

// FormatNumber prints integers as is and rounds other values to three
// decimal places.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.FormatFloat(math.Round(v*1000)/1000, 'f', -1, 64)
}

// FormatValue renders a single leaf value.
func FormatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case fakeproto.NullValue:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float32:
		return FormatNumber(float64(v))
	case float64:
		return FormatNumber(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case *big.Int:
		return v.String()
	case fakeproto.EnumValue:
		return v.String()
	case timeline.Timestamp:
		return v.Format(false)
	case time.Duration:
		return timeline.FormatElapsed(v.Nanoseconds(), false)
	case *fakeproto.Array:
		if v.Len() == 0 {
			return "[]"
		}
	case *fakeproto.Object:
		if v.Len() == 0 {
			return "{}"
		}
	}
	return fmt.Sprint(v)
}

// Float64 reads a numeric leaf value.
func Float64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case *big.Int:
		f, _ := new(big.Float).SetInt(n).Float64()
		return f, true
	}
	return 0, false
}

func formatDefault(n *tree.PropertyTreeNode) string {
	if !n.IsLeaf() {
		return ""
	}
	return FormatValue(n.Value())
}

func formatEnum(n *tree.PropertyTreeNode) string {
	if e, ok := n.Value().(fakeproto.EnumValue); ok {
		return e.String()
	}
	return formatDefault(n)
}

// childNumber returns the named child's numeric value, or def.
func childNumber(n *tree.PropertyTreeNode, name string, def float64) float64 {
	c, ok := n.Child(name)
	if !ok {
		return def
	}
	if f, ok := Float64(c.Value()); ok {
		return f
	}
	return def
}

func formatColor(n *tree.PropertyTreeNode) string {
	r := childNumber(n, "r", -1)
	g := childNumber(n, "g", -1)
	b := childNumber(n, "b", -1)
	a := childNumber(n, "a", 1)
	if r < 0 || g < 0 || b < 0 {
		return "empty"
	}
	return fmt.Sprintf("(%s, %s, %s, %s)", FormatNumber(r), FormatNumber(g), FormatNumber(b), FormatNumber(a))
}

func formatRect(n *tree.PropertyTreeNode) string {
	return fmt.Sprintf("(%s, %s) - (%s, %s)",
		FormatNumber(childNumber(n, "left", 0)),
		FormatNumber(childNumber(n, "top", 0)),
		FormatNumber(childNumber(n, "right", 0)),
		FormatNumber(childNumber(n, "bottom", 0)),
	)
}

func formatSize(n *tree.PropertyTreeNode) string {
	w := childNumber(n, "w", childNumber(n, "width", 0))
	h := childNumber(n, "h", childNumber(n, "height", 0))
	return FormatNumber(w) + " x " + FormatNumber(h)
}

func formatPosition(n *tree.PropertyTreeNode) string {
	return fmt.Sprintf("x: %s, y: %s", FormatNumber(childNumber(n, "x", 0)), FormatNumber(childNumber(n, "y", 0)))
}

var matrixEntries = []string{"dsdx", "dtdx", "tx", "dtdy", "dsdy", "ty"}

func formatMatrix(n *tree.PropertyTreeNode) string {
	parts := make([]string, 0, len(matrixEntries))
	for _, name := range matrixEntries {
		if _, ok := n.Child(name); ok {
			parts = append(parts, name+": "+FormatNumber(childNumber(n, name, 0)))
		}
	}
	return strings.Join(parts, ", ")
}

// SetFormatters assigns a display formatter to every node of a property tree.
// Overrides win, then well-known composite names, then the value's kind.
type SetFormatters struct {
	overrides map[string]tree.Formatter
}

// NewSetFormatters returns the operation. overrides maps property names to
// formatters and may be nil.
func NewSetFormatters(overrides map[string]tree.Formatter) *SetFormatters {
	return &SetFormatters{overrides: overrides}
}

var namedFormatters = map[string]tree.Formatter{
	"color":     ColorFormatter,
	"rect":      RectFormatter,
	"bounds":    RectFormatter,
	"crop":      RectFormatter,
	"size":      SizeFormatter,
	"position":  PositionFormatter,
	"matrix":    MatrixFormatter,
	"transform": MatrixFormatter,
}

// Apply implements Operation.
func (s *SetFormatters) Apply(root *tree.PropertyTreeNode) {
	tree.ForEachDfs(root, func(n *tree.PropertyTreeNode) {
		n.SetFormatter(s.formatterFor(n))
	})
}

func (s *SetFormatters) formatterFor(n *tree.PropertyTreeNode) tree.Formatter {
	if f, ok := s.overrides[n.Name()]; ok {
		return f
	}
	if !n.IsLeaf() {
		if f, ok := namedFormatters[n.Name()]; ok {
			return f
		}
	}
	if _, ok := n.Value().(fakeproto.EnumValue); ok {
		return EnumFormatter
	}
	return DefaultFormatter
}
