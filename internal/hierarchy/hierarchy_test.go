package hierarchy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/properties"
	"github.com/ashita-ai/tracelens/internal/tree"
)

var accessor = hierarchy.PropertyAccessor{
	IdentityProperty: "id",
	NameProperty:     "name",
	ChildrenProperty: "children",
}

func provider(id int64, name string, children ...int64) *properties.Provider {
	obj := fakeproto.NewObject()
	obj.Set("id", id)
	obj.Set("name", name)
	if len(children) > 0 {
		arr := fakeproto.NewArray()
		for i, c := range children {
			arr.Set(i, c)
		}
		obj.Set("children", arr)
	}
	return properties.NewBuilder().
		SetEagerProperties(tree.MakeProtoProperty(name, "root", obj)).
		Build()
}

func ids(nodes []*hierarchy.Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, n.ID())
	}
	return out
}

func TestBuildAssemblesDeclaredChildren(t *testing.T) {
	b := hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "root", 1, 2)).
		SetChildren([]*properties.Provider{
			provider(3, "grandchild"),
			provider(2, "second"),
			provider(1, "first", 3),
		})
	root, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "0 root", root.ID())
	assert.True(t, root.IsRoot())
	assert.Equal(t, []string{"1 first", "2 second"}, ids(root.Children()))

	first := root.Children()[0]
	assert.Same(t, root, first.Parent())
	assert.Same(t, root, first.ZParent())
	assert.Equal(t, []string{"3 grandchild"}, ids(first.Children()))
	assert.Equal(t, 0, b.Dropped())
}

func TestBuildDropsDanglingChildren(t *testing.T) {
	b := hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "root", 1, 2)).
		SetChildren([]*properties.Provider{provider(1, "only")})

	root, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1 only"}, ids(root.Children()))
	assert.Equal(t, 1, b.Dropped())
}

func TestBuildErrors(t *testing.T) {
	_, err := hierarchy.NewBuilder(accessor, nil).Build(context.Background())
	assert.ErrorIs(t, err, hierarchy.ErrRootNotSet)

	_, err = hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "root", 1)).
		Build(context.Background())
	assert.ErrorIs(t, err, hierarchy.ErrChildrenNotSet)

	root, err := hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "lonely")).
		Build(context.Background())
	require.NoError(t, err)
	assert.Empty(t, root.Children())
}

func TestBuildDisambiguatesDuplicates(t *testing.T) {
	root, err := hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "root", 5)).
		SetChildren([]*properties.Provider{
			provider(5, "overlay"),
			provider(5, "overlay"),
			provider(5, "overlay"),
		}).
		Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"5 overlay", "5 overlay (1)", "5 overlay (2)"}, ids(root.Children()))
}

func TestBuildIgnoresCycles(t *testing.T) {
	root, err := hierarchy.NewBuilder(accessor, nil).
		SetRoot(provider(0, "root", 1)).
		SetChildren([]*properties.Provider{
			provider(1, "a", 2),
			provider(2, "b", 1),
		}).
		Build(context.Background())
	require.NoError(t, err)

	var visited []string
	root.ForEachNodeDfs(func(n *hierarchy.Node) { visited = append(visited, n.ID()) })
	assert.Equal(t, []string{"0 root", "1 a", "2 b"}, visited)
}

func TestNodeDfsAndRelations(t *testing.T) {
	root := hierarchy.NewNode("r", "r", nil)
	a := hierarchy.NewNode("a", "a", nil)
	b := hierarchy.NewNode("b", "b", nil)
	root.AddOrReplaceChild(a)
	a.AddOrReplaceChild(b)
	b.SetZParent(root)
	root.AddRelativeChild(b)

	assert.Same(t, a, b.Parent())
	assert.Same(t, root, b.ZParent())
	assert.Equal(t, []string{"b"}, ids(root.RelativeChildren()))

	found, ok := root.FindDfs(func(n *hierarchy.Node) bool { return n.Name() == "b" })
	require.True(t, ok)
	assert.Same(t, b, found)
	assert.Len(t, root.FilterDfs(func(n *hierarchy.Node) bool { return !n.IsRoot() }), 2)

	replacement := hierarchy.NewNode("a", "a2", nil)
	root.AddOrReplaceChild(replacement)
	assert.Equal(t, "a2", root.Children()[0].Name())
	assert.Len(t, root.Children(), 1)

	root.RemoveChild("a")
	assert.Empty(t, root.Children())
}
