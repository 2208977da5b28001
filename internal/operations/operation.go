// Package operations implements the transforms applied to property trees after
// construction: display formatters, enum and int-def translation, and default
// filling for fields the trace omitted.
package operations

// Operation transforms a value in place.
type Operation[T any] interface {
	Apply(value T)
}

// Chain applies operations in the order they were pushed.
type Chain[T any] struct {
	ops []Operation[T]
}

// NewChain returns a chain of ops.
func NewChain[T any](ops ...Operation[T]) *Chain[T] {
	return &Chain[T]{ops: ops}
}

// Push appends op and returns the chain.
func (c *Chain[T]) Push(op Operation[T]) *Chain[T] {
	c.ops = append(c.ops, op)
	return c
}

// Len returns the number of operations.
func (c *Chain[T]) Len() int { return len(c.ops) }

// Apply runs every operation on value.
func (c *Chain[T]) Apply(value T) {
	if c == nil {
		return
	}
	for _, op := range c.ops {
		op.Apply(value)
	}
}
