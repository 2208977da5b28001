// Package schema describes the field layout of trace messages: which fields a
// message has, their primitive width, and whether they are repeated, nested
// messages or enums. Descriptors are read-only once built.
package schema

import "fmt"

// Kind is the declared type of a field.
type Kind uint8

const (
	KindDouble Kind = iota + 1
	KindFloat
	KindInt32
	KindInt64
	KindUint32
	KindUint64
	KindSint32
	KindSint64
	KindFixed32
	KindFixed64
	KindSfixed32
	KindSfixed64
	KindBool
	KindString
	KindBytes
	KindEnum
	KindMessage
)

var kindNames = map[Kind]string{
	KindDouble:   "double",
	KindFloat:    "float",
	KindInt32:    "int32",
	KindInt64:    "int64",
	KindUint32:   "uint32",
	KindUint64:   "uint64",
	KindSint32:   "sint32",
	KindSint64:   "sint64",
	KindFixed32:  "fixed32",
	KindFixed64:  "fixed64",
	KindSfixed32: "sfixed32",
	KindSfixed64: "sfixed64",
	KindBool:     "bool",
	KindString:   "string",
	KindBytes:    "bytes",
	KindEnum:     "enum",
	KindMessage:  "message",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Is64BitInt reports whether values of k need more than 53 bits of precision.
func (k Kind) Is64BitInt() bool {
	switch k {
	case KindInt64, KindUint64, KindSint64, KindFixed64, KindSfixed64:
		return true
	}
	return false
}

// IsSigned32 reports whether k is a signed 32-bit integer kind.
func (k Kind) IsSigned32() bool {
	return k == KindInt32 || k == KindSint32 || k == KindSfixed32
}

// IsUnsigned32 reports whether k is an unsigned 32-bit integer kind.
func (k Kind) IsUnsigned32() bool {
	return k == KindUint32 || k == KindFixed32
}

// IsNumeric reports whether k is an integer or floating point kind.
func (k Kind) IsNumeric() bool {
	return k.Is64BitInt() || k.IsSigned32() || k.IsUnsigned32() || k == KindFloat || k == KindDouble
}

// Field is one field of a message.
type Field struct {
	Name     string
	Kind     Kind
	Repeated bool
	Message  *Message // set when Kind is KindMessage
	Enum     *Enum    // set when Kind is KindEnum
}

// Message is an ordered set of fields addressable by name.
type Message struct {
	Name   string
	fields []*Field
	byName map[string]*Field
}

// NewMessage returns a message with the given fields.
func NewMessage(name string, fields ...*Field) *Message {
	m := &Message{Name: name, byName: make(map[string]*Field, len(fields))}
	for _, f := range fields {
		m.AddField(f)
	}
	return m
}

// AddField appends f, replacing any field with the same name. It exists so
// recursive message types can be wired after construction.
func (m *Message) AddField(f *Field) {
	if _, ok := m.byName[f.Name]; ok {
		for i, existing := range m.fields {
			if existing.Name == f.Name {
				m.fields[i] = f
			}
		}
	} else {
		m.fields = append(m.fields, f)
	}
	m.byName[f.Name] = f
}

// Fields returns the fields in declaration order.
func (m *Message) Fields() []*Field {
	return m.fields
}

// Field looks up a field by name.
func (m *Message) Field(name string) (*Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// EnumValue is one named enum constant.
type EnumValue struct {
	Number int32
	Name   string
}

// Enum maps enum numbers to their names.
type Enum struct {
	Name   string
	values []EnumValue
	byNum  map[int32]string
}

// NewEnum returns an enum with values in declaration order. The first value is
// the enum's default.
func NewEnum(name string, values ...EnumValue) *Enum {
	e := &Enum{Name: name, values: values, byNum: make(map[int32]string, len(values))}
	for _, v := range values {
		if _, dup := e.byNum[v.Number]; !dup {
			e.byNum[v.Number] = v.Name
		}
	}
	return e
}

// ValueName returns the name declared for n.
func (e *Enum) ValueName(n int32) (string, bool) {
	name, ok := e.byNum[n]
	return name, ok
}

// Default returns the number of the first declared value, or 0 for an empty enum.
func (e *Enum) Default() int32 {
	if len(e.values) == 0 {
		return 0
	}
	return e.values[0].Number
}

// Values returns the declared values.
func (e *Enum) Values() []EnumValue {
	return e.values
}
