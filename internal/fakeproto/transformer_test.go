package fakeproto_test

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/schema"
)

func testSchema() *schema.Message {
	visibility := schema.NewEnum("Visibility",
		schema.EnumValue{Number: 0, Name: "VISIBLE"},
		schema.EnumValue{Number: 4, Name: "INVISIBLE"},
	)
	point := schema.NewMessage("Point",
		&schema.Field{Name: "x", Kind: schema.KindFloat},
		&schema.Field{Name: "y", Kind: schema.KindDouble},
	)
	return schema.NewMessage("Node",
		&schema.Field{Name: "id", Kind: schema.KindInt32},
		&schema.Field{Name: "flags", Kind: schema.KindUint32},
		&schema.Field{Name: "hashcode", Kind: schema.KindUint64},
		&schema.Field{Name: "elapsed", Kind: schema.KindSint64},
		&schema.Field{Name: "visible", Kind: schema.KindBool},
		&schema.Field{Name: "name", Kind: schema.KindString},
		&schema.Field{Name: "visibility", Kind: schema.KindEnum, Enum: visibility},
		&schema.Field{Name: "position", Kind: schema.KindMessage, Message: point},
		&schema.Field{Name: "points", Kind: schema.KindMessage, Message: point, Repeated: true},
		&schema.Field{Name: "ids", Kind: schema.KindFixed64, Repeated: true},
		&schema.Field{Name: "tags", Kind: schema.KindString, Repeated: true},
	)
}

func TestTransformerCoercesWidths(t *testing.T) {
	obj := mustBuild(t,
		fakeproto.Row{Key: "id", ValueType: fakeproto.ValueInt, IntValue: 7},
		fakeproto.Row{Key: "flags", ValueType: fakeproto.ValueInt, IntValue: 3},
		fakeproto.Row{Key: "hashcode", ValueType: fakeproto.ValueInt, IntValue: -1},
		fakeproto.Row{Key: "elapsed", ValueType: fakeproto.ValueInt, IntValue: -5},
		fakeproto.Row{Key: "visible", ValueType: fakeproto.ValueInt, IntValue: 1},
		fakeproto.Row{Key: "name", ValueType: fakeproto.ValueString, StringValue: "v"},
		fakeproto.Row{Key: "visibility", ValueType: fakeproto.ValueInt, IntValue: 4},
		fakeproto.Row{Key: "position.x", ValueType: fakeproto.ValueReal, RealValue: 1.5},
		fakeproto.Row{Key: "position.y", ValueType: fakeproto.ValueInt, IntValue: 2},
		fakeproto.Row{Key: "extra", ValueType: fakeproto.ValueInt, IntValue: 9},
	)
	out, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
	require.NoError(t, err)

	get := func(key string) any {
		v, ok := out.Get(key)
		require.True(t, ok, key)
		return v
	}
	assert.Equal(t, int32(7), get("id"))
	assert.Equal(t, uint32(3), get("flags"))
	assert.Equal(t, "18446744073709551615", get("hashcode").(*big.Int).String())
	assert.Equal(t, big.NewInt(-5), get("elapsed"))
	assert.Equal(t, true, get("visible"))
	assert.Equal(t, "v", get("name"))
	assert.Equal(t, int64(9), get("extra"), "keys outside the schema pass through")

	enum := get("visibility").(fakeproto.EnumValue)
	assert.Equal(t, int32(4), enum.Number)
	assert.Equal(t, "INVISIBLE", enum.String())

	pos := get("position").(*fakeproto.Object)
	x, _ := pos.Get("x")
	y, _ := pos.Get("y")
	assert.Equal(t, float32(1.5), x)
	assert.Equal(t, float64(2), y)
}

func TestTransformerSixtyFourBitAlwaysBigInt(t *testing.T) {
	inputs := []any{int64(5), uint64(5), big.NewInt(5), float64(5), "5"}
	for _, in := range inputs {
		obj := fakeproto.NewObject()
		obj.Set("elapsed", in)
		out, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
		require.NoError(t, err)
		v, _ := out.Get("elapsed")
		n, ok := v.(*big.Int)
		require.True(t, ok, "%T input produced %T", in, v)
		assert.Equal(t, int64(5), n.Int64())
	}
}

func TestTransformerDefaults(t *testing.T) {
	obj := fakeproto.NewObject()
	obj.Set("tags", fakeproto.Null)
	obj.Set("name", fakeproto.Null)

	out, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
	require.NoError(t, err)

	for _, key := range []string{"tags", "points", "ids"} {
		v, ok := out.Get(key)
		require.True(t, ok, key)
		assert.Equal(t, 0, v.(*fakeproto.Array).Len(), key)
	}
	name, ok := out.Get("name")
	require.True(t, ok)
	assert.Equal(t, fakeproto.Null, name, "non-repeated null is preserved")

	_, ok = out.Get("visibility")
	assert.False(t, ok, "absent enums are not defaulted")
	_, ok = out.Get("id")
	assert.False(t, ok)
}

func TestTransformerRepeatedKeepsGaps(t *testing.T) {
	obj := mustBuild(t,
		fakeproto.Row{Key: "points[2].x", ValueType: fakeproto.ValueInt, IntValue: 2},
		fakeproto.Row{Key: "points[0].x", ValueType: fakeproto.ValueReal, RealValue: 0.5},
		fakeproto.Row{Key: "ids[1]", ValueType: fakeproto.ValueInt, IntValue: 11},
	)
	out, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
	require.NoError(t, err)

	v, _ := out.Get("points")
	points := v.(*fakeproto.Array)
	require.Equal(t, 3, points.Len())
	assert.Nil(t, points.At(1))
	x, _ := points.At(2).(*fakeproto.Object).Get("x")
	assert.Equal(t, float32(2), x)

	v, _ = out.Get("ids")
	ids := v.(*fakeproto.Array)
	assert.Nil(t, ids.At(0))
	assert.Equal(t, big.NewInt(11), ids.At(1))
}

func TestTransformerMismatch(t *testing.T) {
	tests := []struct {
		name string
		key  string
		v    any
	}{
		{"message from int", "position", int64(1)},
		{"int32 from string", "id", "abc"},
		{"int32 above range", "id", int64(4294967301)},
		{"int32 above max", "id", int64(math.MaxInt32) + 1},
		{"int32 below min", "id", int64(math.MinInt32) - 1},
		{"int32 from huge uint", "id", uint64(math.MaxUint64)},
		{"enum above range", "visibility", int64(1) << 40},
		{"bool from string", "visible", "yes"},
		{"repeated from scalar", "ids", int64(1)},
		{"uint32 from negative", "flags", int64(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj := fakeproto.NewObject()
			obj.Set(tt.key, tt.v)
			_, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
			assert.ErrorIs(t, err, fakeproto.ErrTypeMismatch)
		})
	}
}

func TestTransformerInt32Bounds(t *testing.T) {
	for _, n := range []int64{math.MinInt32, -1, 0, math.MaxInt32} {
		obj := fakeproto.NewObject()
		obj.Set("id", n)
		out, err := fakeproto.NewTransformer(testSchema()).Transform(obj)
		require.NoError(t, err)
		v, _ := out.Get("id")
		assert.Equal(t, int32(n), v)
	}
}

func TestEnumValueWithoutDeclaration(t *testing.T) {
	e := fakeproto.EnumValue{Number: 12}
	assert.Equal(t, "12", e.String())
	_, ok := e.Name()
	assert.False(t, ok)
}
