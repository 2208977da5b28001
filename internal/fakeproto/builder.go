package fakeproto

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrStructuralConflict is returned when a key addresses a path as an
	// object that earlier rows established as an array, or the reverse, or
	// when a leaf is written over a container.
	ErrStructuralConflict = errors.New("fakeproto: structural conflict")

	// ErrUnknownValueType is returned for rows with an unrecognized value type.
	ErrUnknownValueType = errors.New("fakeproto: unknown value type")
)

// ValueType names the column a row's value is stored in.
type ValueType string

const (
	ValueBool   ValueType = "bool"
	ValueInt    ValueType = "int"
	ValueUint   ValueType = "uint"
	ValueReal   ValueType = "real"
	ValueString ValueType = "string"
	ValueNull   ValueType = "null"
)

// Row is one flattened argument of a trace entry.
type Row struct {
	Key         string    `json:"key"`
	ValueType   ValueType `json:"value_type"`
	IntValue    int64     `json:"int_value,omitempty"`
	RealValue   float64   `json:"real_value,omitempty"`
	StringValue string    `json:"string_value,omitempty"`
}

// Value returns the row's typed value.
func (r Row) Value() (any, error) {
	switch r.ValueType {
	case ValueBool:
		return r.IntValue != 0, nil
	case ValueInt:
		return r.IntValue, nil
	case ValueUint:
		return uint64(r.IntValue), nil
	case ValueReal:
		return r.RealValue, nil
	case ValueString:
		return r.StringValue, nil
	case ValueNull:
		return Null, nil
	}
	return nil, fmt.Errorf("%w %q for key %q", ErrUnknownValueType, r.ValueType, r.Key)
}

var indexedToken = regexp.MustCompile(`^(.+)\[([0-9]+)\]$`)

// maxArrayIndex bounds the index a key may address. Arrays grow densely up to
// the highest index, so one corrupt row must not size an allocation.
const maxArrayIndex = 1 << 20

// Builder accumulates rows into one object graph. A Builder is not safe for
// concurrent use.
type Builder struct {
	root *Object
	err  error
}

// NewBuilder returns a builder with an empty root.
func NewBuilder() *Builder {
	return &Builder{root: NewObject()}
}

// Add decodes r into the graph. After the first error every later call
// returns that error and Build returns no graph.
func (b *Builder) Add(r Row) error {
	if b.err != nil {
		return b.err
	}
	v, err := r.Value()
	if err != nil {
		b.err = err
		return err
	}
	if err := b.set(r.Key, strings.Split(r.Key, "."), v); err != nil {
		b.err = err
		return err
	}
	return nil
}

// AddAll adds each row in order, stopping at the first error.
func (b *Builder) AddAll(rows []Row) error {
	for _, r := range rows {
		if err := b.Add(r); err != nil {
			return err
		}
	}
	return nil
}

// Build returns the decoded graph.
func (b *Builder) Build() (*Object, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.root, nil
}

func (b *Builder) set(key string, tokens []string, v any) error {
	obj := b.root
	for i, tok := range tokens {
		leaf := i == len(tokens)-1
		name, index, isIndexed, err := parseToken(tok)
		if err != nil {
			return fmt.Errorf("fakeproto: key %q: %w", key, err)
		}

		if isIndexed {
			if index > maxArrayIndex {
				return conflict(key, tokens[:i+1], errIndexTooLarge)
			}
			if strings.ContainsAny(name, "[]") {
				return conflict(key, tokens[:i+1], errNestedIndex)
			}
			arr, err := arrayAt(obj, name)
			if err != nil {
				return conflict(key, tokens[:i+1], err)
			}
			if leaf {
				if isContainer(arr.At(index)) {
					return conflict(key, tokens[:i+1], errLeafOverContainer)
				}
				arr.Set(index, v)
				return nil
			}
			next, err := objectIn(arr.At(index))
			if err != nil {
				return conflict(key, tokens[:i+1], err)
			}
			arr.Set(index, next)
			obj = next
			continue
		}

		existing, _ := obj.Get(name)
		if leaf {
			if isContainer(existing) {
				return conflict(key, tokens[:i+1], errLeafOverContainer)
			}
			obj.Set(name, v)
			return nil
		}
		next, err := objectIn(existing)
		if err != nil {
			return conflict(key, tokens[:i+1], err)
		}
		obj.Set(name, next)
		obj = next
	}
	return nil
}

var (
	errLeafOverContainer = errors.New("leaf written over a nested value")
	errNotArray          = errors.New("indexed write to a non-array value")
	errNotObject         = errors.New("field write to a non-object value")
	errIndexTooLarge     = fmt.Errorf("array index above %d", maxArrayIndex)
	errNestedIndex       = errors.New("nested array index")
)

func conflict(key string, path []string, cause error) error {
	return fmt.Errorf("%w: key %q at %q: %v", ErrStructuralConflict, key, strings.Join(path, "."), cause)
}

func parseToken(tok string) (name string, index int, indexed bool, err error) {
	m := indexedToken.FindStringSubmatch(tok)
	if m == nil {
		return snakeToCamel(tok), 0, false, nil
	}
	index, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false, fmt.Errorf("parse index %q: %w", m[2], err)
	}
	return snakeToCamel(m[1]), index, true, nil
}

func arrayAt(obj *Object, name string) (*Array, error) {
	existing, _ := obj.Get(name)
	switch v := existing.(type) {
	case nil:
		arr := NewArray()
		obj.Set(name, arr)
		return arr, nil
	case *Array:
		return v, nil
	}
	return nil, errNotArray
}

func objectIn(existing any) (*Object, error) {
	switch v := existing.(type) {
	case nil:
		return NewObject(), nil
	case *Object:
		return v, nil
	}
	return nil, errNotObject
}

func isContainer(v any) bool {
	switch v.(type) {
	case *Object, *Array:
		return true
	}
	return false
}

// snakeToCamel converts "some_field_name" to "someFieldName".
func snakeToCamel(s string) string {
	if !strings.Contains(s, "_") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	upper := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' && i+1 < len(s) {
			upper = true
			continue
		}
		if upper && c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		upper = false
		sb.WriteByte(c)
	}
	return sb.String()
}
