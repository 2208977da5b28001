package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/tracelens/internal/operations"
	"github.com/ashita-ai/tracelens/internal/properties"
	"github.com/ashita-ai/tracelens/internal/telemetry"
)

var (
	// ErrRootNotSet is returned by Build when no root provider was set.
	ErrRootNotSet = errors.New("hierarchy: root not set")

	// ErrChildrenNotSet is returned by Build when the root declares children
	// but no candidate children were set.
	ErrChildrenNotSet = errors.New("hierarchy: children not set")
)

var danglingChildren = sync.OnceValue(func() metric.Int64Counter {
	c, _ := telemetry.Meter("tracelens/hierarchy").Int64Counter("tracelens.hierarchy.dangling_children",
		metric.WithDescription("Declared child identifiers with no matching node"),
	)
	return c
})

// Accessor reads the identity, display name and declared child identifiers
// of a node from its properties.
type Accessor interface {
	Identity(p *properties.Provider) (string, bool)
	Name(p *properties.Provider) string
	ChildIDs(p *properties.Provider) []string
}

// PropertyAccessor is an Accessor backed by eager properties: a scalar
// identity property, a scalar name property and a list property of child
// identities.
type PropertyAccessor struct {
	IdentityProperty string
	NameProperty     string
	ChildrenProperty string
}

// Identity implements Accessor.
func (a PropertyAccessor) Identity(p *properties.Provider) (string, bool) {
	prop, ok := p.EagerProperty(a.IdentityProperty)
	if !ok || !prop.IsLeaf() || prop.Value() == nil {
		return "", false
	}
	return operations.FormatValue(prop.Value()), true
}

// Name implements Accessor.
func (a PropertyAccessor) Name(p *properties.Provider) string {
	prop, ok := p.EagerProperty(a.NameProperty)
	if !ok {
		return ""
	}
	return operations.FormatValue(prop.Value())
}

// ChildIDs implements Accessor.
func (a PropertyAccessor) ChildIDs(p *properties.Provider) []string {
	prop, ok := p.EagerProperty(a.ChildrenProperty)
	if !ok {
		return nil
	}
	children := prop.Children()
	ids := make([]string, 0, len(children))
	for _, c := range children {
		if c.IsLeaf() && c.Value() != nil {
			ids = append(ids, operations.FormatValue(c.Value()))
		}
	}
	return ids
}

// Builder stitches a root provider and a flat list of candidate providers
// into a tree, following each node's own declared child identifiers.
type Builder struct {
	accessor Accessor
	logger   *slog.Logger
	root     *properties.Provider
	children []*properties.Provider
	dropped  int
}

// NewBuilder returns a builder reading node structure through accessor.
func NewBuilder(accessor Accessor, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{accessor: accessor, logger: logger}
}

// SetRoot sets the root provider.
func (b *Builder) SetRoot(root *properties.Provider) *Builder {
	b.root = root
	return b
}

// SetChildren sets the candidate children.
func (b *Builder) SetChildren(children []*properties.Provider) *Builder {
	b.children = children
	return b
}

// Dropped returns how many declared child identifiers the last Build could
// not match.
func (b *Builder) Dropped() int { return b.dropped }

// Build assembles the tree. Declared child identifiers with no candidate are
// skipped and counted; a candidate reachable twice is attached once.
func (b *Builder) Build(ctx context.Context) (*Node, error) {
	if b.root == nil {
		return nil, ErrRootNotSet
	}
	rootChildIDs := b.accessor.ChildIDs(b.root)
	if len(b.children) == 0 && len(rootChildIDs) > 0 {
		return nil, fmt.Errorf("%w: root declares %d children", ErrChildrenNotSet, len(rootChildIDs))
	}

	byIdentity := make(map[string][]*properties.Provider, len(b.children))
	for _, c := range b.children {
		id, ok := b.accessor.Identity(c)
		if !ok {
			continue
		}
		byIdentity[id] = append(byIdentity[id], c)
	}

	a := assembly{
		builder:    b,
		byIdentity: byIdentity,
		idCounts:   make(map[string]int),
		placed:     make(map[*properties.Provider]bool),
	}
	root := a.makeNode(b.root)
	a.placed[b.root] = true
	a.attachChildren(root, rootChildIDs)

	b.dropped = a.dropped
	if a.dropped > 0 {
		b.logger.Debug("hierarchy: dropped dangling child identifiers",
			"root", root.ID(), "count", a.dropped)
		if c := danglingChildren(); c != nil {
			c.Add(ctx, int64(a.dropped), metric.WithAttributes(attribute.String("root", root.Name())))
		}
	}
	return root, nil
}

type assembly struct {
	builder    *Builder
	byIdentity map[string][]*properties.Provider
	idCounts   map[string]int
	placed     map[*properties.Provider]bool
	dropped    int
}

func (a *assembly) makeNode(p *properties.Provider) *Node {
	identity, _ := a.builder.accessor.Identity(p)
	name := a.builder.accessor.Name(p)
	id := identity + " " + name
	if n := a.idCounts[id]; n > 0 {
		a.idCounts[id] = n + 1
		id = fmt.Sprintf("%s (%d)", id, n)
	} else {
		a.idCounts[id] = 1
	}
	return NewNode(id, name, p)
}

func (a *assembly) attachChildren(parent *Node, childIDs []string) {
	for _, childID := range childIDs {
		candidates, ok := a.byIdentity[childID]
		if !ok {
			a.dropped++
			continue
		}
		for _, p := range candidates {
			if a.placed[p] {
				continue
			}
			a.placed[p] = true
			child := a.makeNode(p)
			parent.AddOrReplaceChild(child)
			child.SetZParent(parent)
			a.attachChildren(child, a.builder.accessor.ChildIDs(p))
		}
	}
}
