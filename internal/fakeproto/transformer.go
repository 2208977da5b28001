package fakeproto

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/ashita-ai/tracelens/internal/schema"
)

// ErrTypeMismatch is returned when a decoded value cannot be coerced to the
// kind its schema field declares.
var ErrTypeMismatch = errors.New("fakeproto: type mismatch")

// EnumValue is an enum field after transformation. The number is kept as
// decoded; Enum resolves it to a name when the number is declared.
type EnumValue struct {
	Number int32
	Enum   *schema.Enum
}

// Name returns the declared name of the value.
func (e EnumValue) Name() (string, bool) {
	if e.Enum == nil {
		return "", false
	}
	return e.Enum.ValueName(e.Number)
}

// String returns the declared name, or the number when it is undeclared.
func (e EnumValue) String() string {
	if name, ok := e.Name(); ok {
		return name
	}
	return strconv.Itoa(int(e.Number))
}

// MarshalJSON encodes the enum as its number.
func (e EnumValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Number)
}

// Transformer coerces decoded graphs to a message schema.
type Transformer struct {
	root *schema.Message
}

// NewTransformer returns a transformer for graphs whose root is a root message.
func NewTransformer(root *schema.Message) *Transformer {
	return &Transformer{root: root}
}

// Transform coerces obj in place and returns it. Repeated fields that are
// absent or null become empty arrays; other absent or null fields are left as
// they are. Keys with no schema field pass through unchanged.
func (t *Transformer) Transform(obj *Object) (*Object, error) {
	if err := transformMessage(t.root, obj, ""); err != nil {
		return nil, err
	}
	return obj, nil
}

func transformMessage(m *schema.Message, obj *Object, path string) error {
	for _, f := range m.Fields() {
		v, _ := obj.Get(f.Name)
		fieldPath := joinPath(path, f.Name)

		if f.Repeated {
			if IsNull(v) {
				obj.Set(f.Name, NewArray())
				continue
			}
			arr, ok := v.(*Array)
			if !ok {
				return mismatch(fieldPath, f, v)
			}
			for i, item := range arr.Items() {
				if item == nil {
					continue
				}
				out, err := transformValue(f, item, fmt.Sprintf("%s[%d]", fieldPath, i))
				if err != nil {
					return err
				}
				arr.Set(i, out)
			}
			continue
		}

		if IsNull(v) {
			continue
		}
		out, err := transformValue(f, v, fieldPath)
		if err != nil {
			return err
		}
		obj.Set(f.Name, out)
	}
	return nil
}

func transformValue(f *schema.Field, v any, path string) (any, error) {
	if _, ok := v.(NullValue); ok {
		return v, nil
	}
	switch {
	case f.Kind == schema.KindMessage:
		obj, ok := v.(*Object)
		if !ok || f.Message == nil {
			return nil, mismatch(path, f, v)
		}
		if err := transformMessage(f.Message, obj, path); err != nil {
			return nil, err
		}
		return obj, nil

	case f.Kind == schema.KindEnum:
		if e, ok := v.(EnumValue); ok {
			return e, nil
		}
		n, ok := toInt32(v)
		if !ok {
			return nil, mismatch(path, f, v)
		}
		return EnumValue{Number: n, Enum: f.Enum}, nil

	case f.Kind.Is64BitInt():
		unsigned := f.Kind == schema.KindUint64 || f.Kind == schema.KindFixed64
		n, ok := toBigInt(v, unsigned)
		if !ok {
			return nil, mismatch(path, f, v)
		}
		return n, nil

	case f.Kind.IsSigned32():
		n, ok := toInt32(v)
		if !ok {
			return nil, mismatch(path, f, v)
		}
		return n, nil

	case f.Kind.IsUnsigned32():
		n, ok := toBigInt(v, true)
		if !ok || !n.IsUint64() || n.Uint64() > math.MaxUint32 {
			return nil, mismatch(path, f, v)
		}
		return uint32(n.Uint64()), nil

	case f.Kind == schema.KindFloat:
		x, ok := toFloat(v)
		if !ok {
			return nil, mismatch(path, f, v)
		}
		return float32(x), nil

	case f.Kind == schema.KindDouble:
		x, ok := toFloat(v)
		if !ok {
			return nil, mismatch(path, f, v)
		}
		return x, nil

	case f.Kind == schema.KindBool:
		switch b := v.(type) {
		case bool:
			return b, nil
		case int64:
			return b != 0, nil
		case uint64:
			return b != 0, nil
		}
		return nil, mismatch(path, f, v)

	case f.Kind == schema.KindString, f.Kind == schema.KindBytes:
		return v, nil
	}
	return nil, mismatch(path, f, v)
}

// toInt32 converts a decoded integer-like value that fits a signed 32-bit
// field.
func toInt32(v any) (int32, bool) {
	n, ok := toBigInt(v, false)
	if !ok || !n.IsInt64() {
		return 0, false
	}
	x := n.Int64()
	if x < math.MinInt32 || x > math.MaxInt32 {
		return 0, false
	}
	return int32(x), true
}

// toBigInt converts a decoded integer-like value. With unsigned set, negative
// int64 values are reinterpreted as their two's complement uint64, which is
// how the query engine stores unsigned 64-bit columns.
func toBigInt(v any, unsigned bool) (*big.Int, bool) {
	switch n := v.(type) {
	case int64:
		if unsigned && n < 0 {
			return new(big.Int).SetUint64(uint64(n)), true
		}
		return big.NewInt(n), true
	case uint64:
		return new(big.Int).SetUint64(n), true
	case int32:
		return big.NewInt(int64(n)), true
	case uint32:
		return big.NewInt(int64(n)), true
	case *big.Int:
		return n, true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return nil, false
		}
		out, _ := big.NewFloat(n).Int(nil)
		return out, true
	case bool:
		if n {
			return big.NewInt(1), true
		}
		return big.NewInt(0), true
	case string:
		return new(big.Int).SetString(n, 10)
	}
	return nil, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint32:
		return float64(n), true
	}
	return 0, false
}

func mismatch(path string, f *schema.Field, v any) error {
	return fmt.Errorf("%w: %s declared %s, got %T", ErrTypeMismatch, path, f.Kind, v)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}
