// Package properties provides the two-tier property model of a trace node: an
// eager subtree built with the node and a lazy subtree loaded once, on the
// first request for all properties.
package properties

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/singleflight"

	"github.com/ashita-ai/tracelens/internal/operations"
	"github.com/ashita-ai/tracelens/internal/telemetry"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// LazyStrategy loads the lazy property subtree. Its children are merged into
// the result of GetAll.
type LazyStrategy func(ctx context.Context) (*tree.PropertyTreeNode, error)

// RootID is the id and name of the root returned by GetAll.
const RootID = "root"

// OperationChain is a chain of property tree operations.
type OperationChain = operations.Chain[*tree.PropertyTreeNode]

var lazyLoads = sync.OnceValue(func() metric.Int64Counter {
	c, _ := telemetry.Meter("tracelens/properties").Int64Counter("tracelens.properties.lazy_loads",
		metric.WithDescription("Lazy property subtrees loaded"),
	)
	return c
})

type lazyState int

const (
	notLoaded lazyState = iota
	loaded
)

// Provider owns the properties of one trace node. It is safe for concurrent
// use; concurrent GetAll callers share a single lazy load.
type Provider struct {
	eager    *tree.PropertyTreeNode
	lazy     LazyStrategy
	common   *OperationChain
	lazyOps  *OperationChain
	loadOnce singleflight.Group

	mu       sync.Mutex
	state    lazyState
	lazyRoot *tree.PropertyTreeNode
	allRoot  *tree.PropertyTreeNode
}

// Eager returns the eager property subtree.
func (p *Provider) Eager() *tree.PropertyTreeNode {
	return p.eager
}

// EagerProperty returns the eager property called name.
func (p *Provider) EagerProperty(name string) (*tree.PropertyTreeNode, bool) {
	return p.eager.Child(name)
}

// AddEagerProperty adds or replaces an eager property. A cached GetAll result
// sees the change as well.
func (p *Provider) AddEagerProperty(prop *tree.PropertyTreeNode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eager.AddOrReplaceChild(prop)
	if p.allRoot != nil {
		p.allRoot.AddOrReplaceChild(prop)
	}
}

// LazyLoaded reports whether the lazy subtree has been loaded.
func (p *Provider) LazyLoaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == loaded
}

// GetAll returns a fresh root, with id RootID, holding the eager children
// followed by the lazy children. The first call loads the lazy subtree and applies the common and
// lazy operations to it; later calls return the same node. Callers must not
// mutate the result. A failed load is not cached.
func (p *Provider) GetAll(ctx context.Context) (*tree.PropertyTreeNode, error) {
	p.mu.Lock()
	if p.allRoot != nil {
		all := p.allRoot
		p.mu.Unlock()
		return all, nil
	}
	p.mu.Unlock()

	// The shared load must not be cut short by whichever caller started it.
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := p.loadOnce.Do("all", func() (any, error) {
		return p.loadAll(loadCtx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*tree.PropertyTreeNode), nil
}

func (p *Provider) loadAll(ctx context.Context) (*tree.PropertyTreeNode, error) {
	p.mu.Lock()
	if p.allRoot != nil {
		all := p.allRoot
		p.mu.Unlock()
		return all, nil
	}
	state := p.state
	p.mu.Unlock()

	var lazyRoot *tree.PropertyTreeNode
	if state == notLoaded && p.lazy != nil {
		var err error
		lazyRoot, err = p.lazy(ctx)
		if err != nil {
			return nil, fmt.Errorf("properties: load lazy properties of %s: %w", p.eager.ID(), err)
		}
		if lazyRoot != nil {
			p.common.Apply(lazyRoot)
			p.lazyOps.Apply(lazyRoot)
		}
		if c := lazyLoads(); c != nil {
			c.Add(ctx, 1)
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == notLoaded {
		p.state = loaded
		p.lazyRoot = lazyRoot
	}

	all := tree.NewPropertyTreeNode(RootID, RootID, tree.SourceProto, nil)
	for _, c := range p.eager.Children() {
		all.AddOrReplaceChild(c)
	}
	if p.lazyRoot != nil {
		for _, c := range p.lazyRoot.Children() {
			all.AddOrReplaceChild(c)
		}
	}
	p.allRoot = all
	return all, nil
}
