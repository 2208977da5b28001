// Package export renders hierarchy trees as JSON documents.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// Options controls what Tree includes.
type Options struct {
	// Lazy loads every node's full property set instead of the eager subset.
	Lazy bool
	// Concurrency bounds the lazy loads in flight. Zero means 8.
	Concurrency int
}

// Node is one exported hierarchy node.
type Node struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Properties     []Property `json:"properties,omitempty"`
	Rects          []Rect     `json:"rects,omitempty"`
	SecondaryRects []Rect     `json:"secondaryRects,omitempty"`
	Children       []*Node    `json:"children,omitempty"`
}

// Property is one exported property with its formatted value.
type Property struct {
	Name     string     `json:"name"`
	Value    string     `json:"value,omitempty"`
	Source   string     `json:"source"`
	Children []Property `json:"children,omitempty"`
}

// Rect is an exported TraceRect.
type Rect struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	W            float64 `json:"w"`
	H            float64 `json:"h"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
	GroupID      int     `json:"groupId"`
	Depth        int     `json:"depth"`
	Opacity      float64 `json:"opacity"`
	IsVisible    bool    `json:"isVisible"`
	IsDisplay    bool    `json:"isDisplay,omitempty"`
}

// Tree exports the tree under root. With opts.Lazy every node's lazy
// properties are loaded first, concurrently; the first failed load cancels
// the rest and is returned.
func Tree(ctx context.Context, root *hierarchy.Node, opts Options) (*Node, error) {
	if root == nil {
		return nil, fmt.Errorf("export: nil root")
	}
	props := make(map[*hierarchy.Node]*tree.PropertyTreeNode)
	if opts.Lazy {
		var err error
		if props, err = prefetch(ctx, root, opts.Concurrency); err != nil {
			return nil, err
		}
	}
	return exportNode(root, props), nil
}

func prefetch(ctx context.Context, root *hierarchy.Node, limit int) (map[*hierarchy.Node]*tree.PropertyTreeNode, error) {
	if limit <= 0 {
		limit = 8
	}
	var (
		mu  sync.Mutex
		out = make(map[*hierarchy.Node]*tree.PropertyTreeNode)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	root.ForEachNodeDfs(func(n *hierarchy.Node) {
		g.Go(func() error {
			all, err := n.GetAllProperties(gctx)
			if err != nil {
				return fmt.Errorf("export: node %s: %w", n.ID(), err)
			}
			mu.Lock()
			out[n] = all
			mu.Unlock()
			return nil
		})
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func exportNode(n *hierarchy.Node, loaded map[*hierarchy.Node]*tree.PropertyTreeNode) *Node {
	props, ok := loaded[n]
	if !ok {
		props = n.Properties().Eager()
	}
	out := &Node{
		ID:             n.ID(),
		Name:           n.Name(),
		Properties:     exportProperties(props.Children()),
		Rects:          exportRects(n.Rects()),
		SecondaryRects: exportRects(n.SecondaryRects()),
	}
	for _, c := range n.Children() {
		out.Children = append(out.Children, exportNode(c, loaded))
	}
	return out
}

func exportProperties(nodes []*tree.PropertyTreeNode) []Property {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Property, 0, len(nodes))
	for _, p := range nodes {
		out = append(out, Property{
			Name:     p.Name(),
			Value:    p.FormattedValue(),
			Source:   p.Source().String(),
			Children: exportProperties(p.Children()),
		})
	}
	return out
}

func exportRects(rects []hierarchy.TraceRect) []Rect {
	if len(rects) == 0 {
		return nil
	}
	out := make([]Rect, len(rects))
	for i, r := range rects {
		out[i] = Rect{
			X:            r.X,
			Y:            r.Y,
			W:            r.W,
			H:            r.H,
			CornerRadius: r.CornerRadius,
			GroupID:      r.GroupID,
			Depth:        r.Depth,
			Opacity:      r.Opacity,
			IsVisible:    r.IsVisible,
			IsDisplay:    r.IsDisplay,
		}
	}
	return out
}

// Write encodes v as indented JSON.
func Write(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	return nil
}
