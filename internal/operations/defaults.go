package operations

import (
	"math/big"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/schema"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// AddDefaults adds a Default-sourced property for every scalar or enum field
// of a message that the decoded entry left out, recursing into nested
// messages. Absent message fields stay absent.
type AddDefaults struct {
	message  *schema.Message
	denylist map[string]bool
}

// NewAddDefaults returns the operation for trees rooted at message. Fields
// named in denylist are never added.
func NewAddDefaults(message *schema.Message, denylist ...string) *AddDefaults {
	d := &AddDefaults{message: message, denylist: make(map[string]bool, len(denylist))}
	for _, name := range denylist {
		d.denylist[name] = true
	}
	return d
}

// Apply implements Operation.
func (d *AddDefaults) Apply(root *tree.PropertyTreeNode) {
	d.fill(root, d.message)
}

func (d *AddDefaults) fill(node *tree.PropertyTreeNode, m *schema.Message) {
	if m == nil {
		return
	}
	for _, f := range m.Fields() {
		child, present := node.Child(f.Name)
		if present {
			if f.Kind != schema.KindMessage {
				continue
			}
			if f.Repeated {
				for _, item := range child.Children() {
					d.fill(item, f.Message)
				}
				continue
			}
			d.fill(child, f.Message)
			continue
		}
		if d.denylist[f.Name] {
			continue
		}
		v, ok := ZeroValue(f)
		if !ok {
			continue
		}
		p := tree.MakeDefaultProperty(node.ID(), f.Name, v)
		if _, isEnum := v.(fakeproto.EnumValue); isEnum {
			p.SetFormatter(EnumFormatter)
		} else {
			p.SetFormatter(DefaultFormatter)
		}
		node.AddOrReplaceChild(p)
	}
}

// ZeroValue returns the default of a non-message field, typed the way the
// transformer types present values.
func ZeroValue(f *schema.Field) (any, bool) {
	if f.Repeated {
		return fakeproto.NewArray(), true
	}
	switch {
	case f.Kind == schema.KindMessage:
		return nil, false
	case f.Kind == schema.KindEnum:
		var def int32
		if f.Enum != nil {
			def = f.Enum.Default()
		}
		return fakeproto.EnumValue{Number: def, Enum: f.Enum}, true
	case f.Kind.Is64BitInt():
		return new(big.Int), true
	case f.Kind.IsSigned32():
		return int32(0), true
	case f.Kind.IsUnsigned32():
		return uint32(0), true
	case f.Kind == schema.KindFloat:
		return float32(0), true
	case f.Kind == schema.KindDouble:
		return float64(0), true
	case f.Kind == schema.KindBool:
		return false, true
	case f.Kind == schema.KindString, f.Kind == schema.KindBytes:
		return "", true
	}
	return nil, false
}
