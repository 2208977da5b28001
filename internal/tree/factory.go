package tree

import (
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/timeline"
)

// Field is one entry of an explicitly declared field list.
type Field struct {
	Name  string
	Value any
}

// Fielder is implemented by Go types that expose their properties as a
// declared, ordered field list.
type Fielder interface {
	PropertyFields() []Field
}

// Identified marks values that have a stable identity outside the property
// tree. Arrays of them are references to other nodes, not inline data.
type Identified interface {
	Identity() string
}

// Factory builds property trees from decoded values.
type Factory struct {
	denylist map[string]bool
}

// NewFactory returns a factory that skips the named keys at every level.
func NewFactory(denylist ...string) *Factory {
	f := &Factory{denylist: make(map[string]bool, len(denylist))}
	for _, name := range denylist {
		f.denylist[name] = true
	}
	return f
}

var defaultFactory = NewFactory()

// MakeProtoProperty builds a property decoded from the trace.
func MakeProtoProperty(rootID, name string, value any) *PropertyTreeNode {
	return defaultFactory.MakeProtoProperty(rootID, name, value)
}

// MakeDefaultProperty builds a property holding a default value.
func MakeDefaultProperty(rootID, name string, value any) *PropertyTreeNode {
	return defaultFactory.MakeDefaultProperty(rootID, name, value)
}

// MakeCalculatedProperty builds a derived property.
func MakeCalculatedProperty(rootID, name string, value any) *PropertyTreeNode {
	return defaultFactory.MakeCalculatedProperty(rootID, name, value)
}

// MakePropertyRoot builds a root property whose children are value's fields.
func (f *Factory) MakePropertyRoot(rootID, name string, source PropertySource, value any) *PropertyTreeNode {
	return f.makeProperty(rootID, name, source, value)
}

func (f *Factory) MakeProtoProperty(rootID, name string, value any) *PropertyTreeNode {
	return f.makeProperty(rootID, name, SourceProto, value)
}

func (f *Factory) MakeDefaultProperty(rootID, name string, value any) *PropertyTreeNode {
	return f.makeProperty(rootID, name, SourceDefault, value)
}

func (f *Factory) MakeCalculatedProperty(rootID, name string, value any) *PropertyTreeNode {
	return f.makeProperty(rootID, name, SourceCalculated, value)
}

func (f *Factory) makeProperty(rootID, name string, source PropertySource, value any) *PropertyTreeNode {
	node := NewPropertyTreeNode(rootID+"."+name, name, source, nil)
	if !HasInnerProperties(value) {
		node.value = value
		return node
	}
	f.addChildren(node, source, value)
	return node
}

func (f *Factory) addChildren(node *PropertyTreeNode, source PropertySource, value any) {
	add := func(key string, v any) {
		if v == nil || f.skipKey(key) || isReferenceList(v) {
			return
		}
		node.AddOrReplaceChild(f.makeProperty(node.id, key, source, v))
	}

	switch v := value.(type) {
	case *fakeproto.Object:
		v.Range(func(key string, item any) bool {
			add(key, item)
			return true
		})
	case *fakeproto.Array:
		for i, item := range v.Items() {
			add(strconv.Itoa(i), item)
		}
	case []any:
		for i, item := range v {
			add(strconv.Itoa(i), item)
		}
	case Fielder:
		for _, field := range v.PropertyFields() {
			add(field.Name, field.Value)
		}
	}
}

func (f *Factory) skipKey(key string) bool {
	return strings.HasPrefix(key, "_") || f.denylist[key]
}

// HasInnerProperties reports whether value becomes a subtree rather than a
// leaf: a non-empty object, array or field list that is not an opaque scalar.
func HasInnerProperties(value any) bool {
	switch v := value.(type) {
	case *big.Int, timeline.Timestamp, time.Duration, fakeproto.EnumValue:
		return false
	case *fakeproto.Object:
		return v != nil && v.Len() > 0
	case *fakeproto.Array:
		return v != nil && v.Len() > 0
	case []any:
		return len(v) > 0
	case Fielder:
		return len(v.PropertyFields()) > 0
	}
	return false
}

func isReferenceList(v any) bool {
	var first any
	switch arr := v.(type) {
	case *fakeproto.Array:
		first = arr.At(0)
	case []any:
		if len(arr) > 0 {
			first = arr[0]
		}
	default:
		return false
	}
	_, ok := first.(Identified)
	return ok
}
