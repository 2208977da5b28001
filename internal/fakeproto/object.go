// Package fakeproto rebuilds nested, proto-shaped object graphs from the flat
// argument rows a trace-query engine returns for each trace entry, and coerces
// the rebuilt values to the widths declared by a schema.
//
// A graph is made of *Object (insertion-ordered string keys) and *Array values.
// Leaves are bool, int64, uint64, float64, string or Null before transformation,
// and the schema-exact kinds produced by Transformer afterwards. A Go nil marks
// an absent value or a sparse array gap.
package fakeproto

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// NullValue is the type of Null.
type NullValue struct{}

// Null is the value of a row whose value type is "null". It is distinct from
// an absent key.
var Null NullValue

// MarshalJSON encodes Null as JSON null.
func (NullValue) MarshalJSON() ([]byte, error) { return []byte("null"), nil }

// IsNull reports whether v is absent or Null.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	_, ok := v.(NullValue)
	return ok
}

// Object is a message-like node whose keys keep first-insertion order.
type Object struct {
	fields *orderedmap.OrderedMap[string, any]
}

// NewObject returns an empty object.
func NewObject() *Object {
	return &Object{fields: orderedmap.New[string, any]()}
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (any, bool) {
	return o.fields.Get(key)
}

// Set stores v under key. An existing key keeps its position.
func (o *Object) Set(key string, v any) {
	o.fields.Set(key, v)
}

// Delete removes key.
func (o *Object) Delete(key string) {
	o.fields.Delete(key)
}

// Len returns the number of keys.
func (o *Object) Len() int {
	return o.fields.Len()
}

// Keys returns the keys in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, 0, o.fields.Len())
	for pair := o.fields.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Range calls fn for each key in insertion order until fn returns false.
func (o *Object) Range(fn func(key string, v any) bool) {
	for pair := o.fields.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

// MarshalJSON encodes the object with its keys in insertion order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return o.fields.MarshalJSON()
}

// Array is a repeated field. Elements may be nil where rows left gaps.
type Array struct {
	items []any
}

// NewArray returns an array holding items.
func NewArray(items ...any) *Array {
	return &Array{items: items}
}

// Len returns the number of slots, gaps included.
func (a *Array) Len() int { return len(a.items) }

// At returns the element at i, or nil when i is out of range.
func (a *Array) At(i int) any {
	if i < 0 || i >= len(a.items) {
		return nil
	}
	return a.items[i]
}

// Set stores v at i, growing the array with nil gaps as needed. i must not be
// negative.
func (a *Array) Set(i int, v any) {
	if i >= len(a.items) {
		grown := make([]any, i+1)
		copy(grown, a.items)
		a.items = grown
	}
	a.items[i] = v
}

// Items returns the backing slice.
func (a *Array) Items() []any { return a.items }

// MarshalJSON encodes the array with gaps as null.
func (a *Array) MarshalJSON() ([]byte, error) {
	if a.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.items)
}
