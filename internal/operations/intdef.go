package operations

import (
	"math/big"
	"strconv"
	"strings"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// Flag is one named constant of an int-def.
type Flag struct {
	Value int64
	Name  string
}

// IntDef describes an integer field whose values carry names. A bitmask
// int-def renders every set flag; otherwise the value must match one
// constant exactly.
type IntDef struct {
	Flags   []Flag
	Bitmask bool
}

// Format renders v with the int-def's names, falling back to the number.
func (d IntDef) Format(v int64) string {
	if !d.Bitmask {
		for _, f := range d.Flags {
			if f.Value == v {
				return f.Name
			}
		}
		return strconv.FormatInt(v, 10)
	}

	if v == 0 {
		for _, f := range d.Flags {
			if f.Value == 0 {
				return f.Name
			}
		}
		return "0"
	}
	var names []string
	left := v
	for _, f := range d.Flags {
		if f.Value != 0 && v&f.Value == f.Value {
			names = append(names, f.Name)
			left &^= f.Value
		}
	}
	if left != 0 {
		names = append(names, "0x"+strconv.FormatInt(left, 16))
	}
	return strings.Join(names, " | ")
}

// TranslateIntDef labels enum values with their declared names and integer
// fields listed in its int-defs with their flag names.
type TranslateIntDef struct {
	defs map[string]IntDef
}

// NewTranslateIntDef returns the operation. defs maps property names to the
// int-def used for them and may be nil.
func NewTranslateIntDef(defs map[string]IntDef) *TranslateIntDef {
	return &TranslateIntDef{defs: defs}
}

// Apply implements Operation.
func (t *TranslateIntDef) Apply(root *tree.PropertyTreeNode) {
	tree.ForEachDfs(root, func(n *tree.PropertyTreeNode) {
		if !n.IsLeaf() {
			return
		}
		if _, ok := n.Value().(fakeproto.EnumValue); ok {
			n.SetFormatter(EnumFormatter)
			return
		}
		def, ok := t.defs[n.Name()]
		if !ok {
			return
		}
		if _, ok := toInt64(n.Value()); ok {
			n.SetFormatter(intDefFormatter(def))
		}
	})
}

func intDefFormatter(def IntDef) tree.Formatter {
	return tree.FormatterFunc(func(n *tree.PropertyTreeNode) string {
		v, ok := toInt64(n.Value())
		if !ok {
			return formatDefault(n)
		}
		return def.Format(v)
	})
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case *big.Int:
		if n.IsInt64() {
			return n.Int64(), true
		}
		if n.IsUint64() {
			return int64(n.Uint64()), true
		}
	}
	return 0, false
}
