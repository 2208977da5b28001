package tree_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/timeline"
	"github.com/ashita-ai/tracelens/internal/tree"
)

type layerRef struct{ id string }

func (l layerRef) Identity() string { return l.id }

type geometry struct{ left, top int32 }

func (g geometry) PropertyFields() []tree.Field {
	return []tree.Field{{Name: "left", Value: g.left}, {Name: "top", Value: g.top}}
}

func childIDs(n *tree.PropertyTreeNode) []string {
	var ids []string
	for _, c := range n.Children() {
		ids = append(ids, c.ID())
	}
	return ids
}

func TestMakeProtoPropertyNestsObjects(t *testing.T) {
	inner := fakeproto.NewObject()
	inner.Set("b", false)
	inner.Set("numbers", fakeproto.NewArray(int64(10), int64(11)))
	obj := fakeproto.NewObject()
	obj.Set("a", inner)

	root := tree.MakeProtoProperty("entry", "root", obj)
	assert.Equal(t, "entry.root", root.ID())
	assert.Equal(t, tree.SourceProto, root.Source())
	assert.Nil(t, root.Value())

	a, ok := root.Child("a")
	require.True(t, ok)
	assert.Equal(t, []string{"entry.root.a.b", "entry.root.a.numbers"}, childIDs(a))

	numbers, _ := a.Child("numbers")
	assert.Equal(t, []string{"entry.root.a.numbers.0", "entry.root.a.numbers.1"}, childIDs(numbers))
	second, _ := numbers.Child("1")
	assert.Equal(t, int64(11), second.Value())
	assert.True(t, second.IsLeaf())
}

func TestHasInnerProperties(t *testing.T) {
	nonEmpty := fakeproto.NewObject()
	nonEmpty.Set("x", int64(1))

	tests := []struct {
		name  string
		value any
		want  bool
	}{
		{"non-empty object", nonEmpty, true},
		{"empty object", fakeproto.NewObject(), false},
		{"non-empty array", fakeproto.NewArray(int64(1)), true},
		{"empty array", fakeproto.NewArray(), false},
		{"slice", []any{1}, true},
		{"field list", geometry{1, 2}, true},
		{"big int", big.NewInt(1), false},
		{"timestamp", timeline.NewTimestamp(timeline.Real, 1), false},
		{"duration", time.Second, false},
		{"enum", fakeproto.EnumValue{Number: 1}, false},
		{"string", "x", false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tree.HasInnerProperties(tt.value))
		})
	}
}

func TestFactorySkipsInternalAndReferenceKeys(t *testing.T) {
	obj := fakeproto.NewObject()
	obj.Set("_cache", int64(1))
	obj.Set("name", "view")
	obj.Set("parentRef", "p")
	obj.Set("layers", []any{layerRef{"1"}, layerRef{"2"}})
	obj.Set("missing", nil)
	obj.Set("geometry", geometry{left: 3, top: 4})

	root := tree.NewFactory("parentRef").MakeProtoProperty("e", "root", obj)
	assert.Equal(t, []string{"e.root.name", "e.root.geometry"}, childIDs(root))

	geom, _ := root.Child("geometry")
	top, _ := geom.Child("top")
	assert.Equal(t, int32(4), top.Value())
}

func TestAddOrReplaceChildKeepsPosition(t *testing.T) {
	root := tree.NewPropertyTreeNode("r", "r", tree.SourceProto, nil)
	root.AddOrReplaceChild(tree.MakeProtoProperty("r", "a", int64(1)))
	root.AddOrReplaceChild(tree.MakeProtoProperty("r", "b", int64(2)))
	root.AddOrReplaceChild(tree.MakeCalculatedProperty("r", "a", int64(3)))

	assert.Equal(t, []string{"r.a", "r.b"}, childIDs(root))
	a, _ := root.Child("a")
	assert.Equal(t, int64(3), a.Value())
	assert.Equal(t, tree.SourceCalculated, a.Source())

	root.RemoveChild("a")
	assert.Equal(t, []string{"r.b"}, childIDs(root))
}

func TestFormattedValue(t *testing.T) {
	leaf := tree.MakeDefaultProperty("r", "n", int64(5))
	assert.Equal(t, "5", leaf.FormattedValue())
	assert.Equal(t, "n: 5", leaf.String())

	leaf.SetFormatter(tree.FormatterFunc(func(n *tree.PropertyTreeNode) string { return "five" }))
	assert.Equal(t, "five", leaf.FormattedValue())

	assert.Equal(t, "", tree.MakeProtoProperty("r", "empty", nil).FormattedValue())
}

func TestDfsHelpers(t *testing.T) {
	obj := fakeproto.NewObject()
	obj.Set("a", int64(1))
	inner := fakeproto.NewObject()
	inner.Set("c", int64(3))
	obj.Set("b", inner)
	root := tree.MakeProtoProperty("t", "root", obj)

	var visited []string
	tree.ForEachDfs(root, func(n *tree.PropertyTreeNode) { visited = append(visited, n.Name()) })
	assert.Equal(t, []string{"root", "a", "b", "c"}, visited)

	found, ok := tree.FindDfs(root, func(n *tree.PropertyTreeNode) bool { return n.Name() == "c" })
	require.True(t, ok)
	assert.Equal(t, "t.root.b.c", found.ID())

	_, ok = tree.FindDfs(root, func(n *tree.PropertyTreeNode) bool { return n.Name() == "zz" })
	assert.False(t, ok)

	leaves := tree.FilterDfs(root, (*tree.PropertyTreeNode).IsLeaf)
	assert.Len(t, leaves, 2)
}
