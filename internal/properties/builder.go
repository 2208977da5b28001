package properties

import (
	"github.com/ashita-ai/tracelens/internal/tree"
)

// Builder assembles a Provider.
type Builder struct {
	eager    *tree.PropertyTreeNode
	lazy     LazyStrategy
	common   *OperationChain
	eagerOps *OperationChain
	lazyOps  *OperationChain
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// SetEagerProperties sets the eager subtree.
func (b *Builder) SetEagerProperties(root *tree.PropertyTreeNode) *Builder {
	b.eager = root
	return b
}

// SetLazyPropertiesStrategy sets how the lazy subtree is loaded.
func (b *Builder) SetLazyPropertiesStrategy(s LazyStrategy) *Builder {
	b.lazy = s
	return b
}

// SetCommonOperations sets the operations applied to both subtrees.
func (b *Builder) SetCommonOperations(c *OperationChain) *Builder {
	b.common = c
	return b
}

// SetEagerOperations sets the operations applied to the eager subtree after
// the common ones.
func (b *Builder) SetEagerOperations(c *OperationChain) *Builder {
	b.eagerOps = c
	return b
}

// SetLazyOperations sets the operations applied to the lazy subtree after the
// common ones.
func (b *Builder) SetLazyOperations(c *OperationChain) *Builder {
	b.lazyOps = c
	return b
}

// Build applies the common and eager operations to the eager subtree and
// returns the provider. A missing eager subtree becomes an empty root.
func (b *Builder) Build() *Provider {
	eager := b.eager
	if eager == nil {
		eager = tree.NewPropertyTreeNode("", "root", tree.SourceProto, nil)
	}
	b.common.Apply(eager)
	b.eagerOps.Apply(eager)
	return &Provider{
		eager:   eager,
		lazy:    b.lazy,
		common:  b.common,
		lazyOps: b.lazyOps,
	}
}
