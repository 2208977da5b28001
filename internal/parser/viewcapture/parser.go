// Package viewcapture parses ViewCapture traces: per-window snapshots of an
// app's view hierarchy, stored as flattened argument rows.
//
// Each entry becomes a hierarchy tree rooted at the window. Views carry a
// small eager property set (identity, geometry, visibility and children) and
// load the rest of their args lazily. Visibility and rectangles are computed
// once the tree is assembled.
package viewcapture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/tracelens/internal/computation"
	"github.com/ashita-ai/tracelens/internal/fakeproto"
	"github.com/ashita-ai/tracelens/internal/hierarchy"
	"github.com/ashita-ai/tracelens/internal/operations"
	"github.com/ashita-ai/tracelens/internal/properties"
	"github.com/ashita-ai/tracelens/internal/rowsource"
	"github.com/ashita-ai/tracelens/internal/schema"
	"github.com/ashita-ai/tracelens/internal/telemetry"
	"github.com/ashita-ai/tracelens/internal/timeline"
	"github.com/ashita-ai/tracelens/internal/tree"
)

// TraceType is the trace_entries.trace_type of ViewCapture entries.
const TraceType = "viewcapture"

var (
	// ErrNotOpen is returned by entry lookups before Open succeeds.
	ErrNotOpen = errors.New("viewcapture: parser not open")
	// ErrNoEntry is returned for an entry index outside the trace.
	ErrNoEntry = errors.New("viewcapture: no such entry")
)

// eagerViewProperties are decoded with the node; everything else is lazy.
var eagerViewProperties = []string{
	"hashcode", "className", "viewId", "visibility",
	"left", "top", "width", "height",
	"translationX", "translationY", "scaleX", "scaleY", "scrollX", "scrollY",
	"alpha", "children",
}

var eagerWindowProperties = []string{"windowName", "packageName", "children"}

// viewIntDefs name the values of android.view.View int-def fields.
var viewIntDefs = map[string]operations.IntDef{
	"layerType": {Flags: []operations.Flag{
		{Value: 0, Name: "LAYER_TYPE_NONE"},
		{Value: 1, Name: "LAYER_TYPE_SOFTWARE"},
		{Value: 2, Name: "LAYER_TYPE_HARDWARE"},
	}},
	"scrollIndicators": {Bitmask: true, Flags: []operations.Flag{
		{Value: 0x01, Name: "SCROLL_INDICATOR_TOP"},
		{Value: 0x02, Name: "SCROLL_INDICATOR_BOTTOM"},
		{Value: 0x04, Name: "SCROLL_INDICATOR_LEFT"},
		{Value: 0x08, Name: "SCROLL_INDICATOR_RIGHT"},
		{Value: 0x10, Name: "SCROLL_INDICATOR_START"},
		{Value: 0x20, Name: "SCROLL_INDICATOR_END"},
	}},
}

// commonOperations formats values and then names enum and int-def values.
func commonOperations(defs map[string]operations.IntDef) *properties.OperationChain {
	return operations.NewChain[*tree.PropertyTreeNode](
		operations.NewSetFormatters(nil),
		operations.NewTranslateIntDef(defs),
	)
}

var loadDuration = sync.OnceValue(func() metric.Float64Histogram {
	h, _ := telemetry.Meter("tracelens/viewcapture").Float64Histogram("tracelens.entry.load_duration",
		metric.WithDescription("Time to load and assemble one trace entry"),
		metric.WithUnit("s"),
	)
	return h
})

// Options configures a Parser.
type Options struct {
	// Location formats real timestamps. Nil means UTC.
	Location *time.Location
	// Concurrency bounds the node arg queries in flight per entry. Zero means 8.
	Concurrency int
	Logger      *slog.Logger
}

// Parser reads ViewCapture entries from a row source.
type Parser struct {
	src         rowsource.Source
	logger      *slog.Logger
	concurrency int
	converter   *timeline.Converter
	schemas     *Schemas

	entries []rowsource.Entry
	index   *timeline.Index
}

// New returns a parser over src. Call Open before reading entries.
func New(src rowsource.Source, opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Parser{
		src:         src,
		logger:      opts.Logger,
		concurrency: opts.Concurrency,
		converter:   timeline.NewConverter(opts.Location),
	}
}

// Open reads the entry timestamps and the trace's realtime offset. Entries
// are timestamped in real time when the offset is known and in boot time
// otherwise.
func (p *Parser) Open(ctx context.Context) error {
	schemas, err := LoadSchemas()
	if err != nil {
		return err
	}
	p.schemas = schemas

	offset, err := p.src.RealtimeOffset(ctx)
	switch {
	case errors.Is(err, rowsource.ErrNotFound):
		p.logger.Debug("viewcapture: no realtime offset, using boot time")
	case err != nil:
		return fmt.Errorf("viewcapture: read realtime offset: %w", err)
	default:
		p.converter.SetRealToBootOffsetNs(offset)
	}

	entries, err := p.src.Entries(ctx, TraceType)
	if err != nil {
		return fmt.Errorf("viewcapture: read entries: %w", err)
	}
	ts := make([]timeline.Timestamp, len(entries))
	for i, e := range entries {
		if ts[i], err = p.converter.MakeTimestampFromBootNs(e.TsNs); err != nil {
			return fmt.Errorf("viewcapture: entry %d: %w", e.ID, err)
		}
	}
	index, err := timeline.NewIndex(ts)
	if err != nil {
		return fmt.Errorf("viewcapture: %w", err)
	}
	if len(ts) > 0 {
		p.converter.InitializeUTCOffset(ts[0])
	}

	p.entries, p.index = entries, index
	p.logger.Info("viewcapture: opened trace", "entries", len(entries), "real_time", p.converter.HasRealOffset())
	return nil
}

// Len returns the number of entries.
func (p *Parser) Len() int { return len(p.entries) }

// Index returns the entry timestamps.
func (p *Parser) Index() *timeline.Index { return p.index }

// Converter returns the converter that made the entry timestamps.
func (p *Parser) Converter() *timeline.Converter { return p.converter }

// Timestamp returns the timestamp of entry i.
func (p *Parser) Timestamp(i int) (timeline.Timestamp, error) {
	if err := p.check(i); err != nil {
		return timeline.Timestamp{}, err
	}
	return p.index.At(i), nil
}

func (p *Parser) check(i int) error {
	if p.index == nil {
		return ErrNotOpen
	}
	if i < 0 || i >= len(p.entries) {
		return fmt.Errorf("%w: %d of %d", ErrNoEntry, i, len(p.entries))
	}
	return nil
}

// ParseTimestamp reads a human timestamp. Bare nanoseconds and elapsed
// durations are boot-clock times; date-times are real times.
func (p *Parser) ParseTimestamp(s string) (timeline.Timestamp, error) {
	ts, err := p.converter.MakeTimestampFromHuman(s)
	if err != nil {
		return timeline.Timestamp{}, fmt.Errorf("viewcapture: parse timestamp %q: %w", s, err)
	}
	if ts.Domain() == timeline.Monotonic {
		if ts, err = p.converter.MakeTimestampFromBootNs(ts.ValueNs()); err != nil {
			return timeline.Timestamp{}, fmt.Errorf("viewcapture: parse timestamp %q: %w", s, err)
		}
	}
	return ts, nil
}

// EntryAt returns the entry closest to ts and its index.
func (p *Parser) EntryAt(ctx context.Context, ts timeline.Timestamp) (*hierarchy.Node, int, error) {
	if p.index == nil {
		return nil, 0, ErrNotOpen
	}
	if p.index.Len() == 0 {
		return nil, 0, fmt.Errorf("%w: trace is empty", ErrNoEntry)
	}
	domain := p.index.At(0).Domain()
	if ts.Domain() != domain {
		converted, ok := p.converter.Convert(ts, domain)
		if !ok {
			return nil, 0, fmt.Errorf("viewcapture: cannot convert %s timestamp to %s", ts.Domain(), domain)
		}
		ts = converted
	}
	i, ok := p.index.FindClosest(ts)
	if !ok {
		return nil, 0, fmt.Errorf("%w: trace is empty", ErrNoEntry)
	}
	root, err := p.Entry(ctx, i)
	return root, i, err
}

// Entry assembles the hierarchy tree of entry i.
func (p *Parser) Entry(ctx context.Context, i int) (_ *hierarchy.Node, err error) {
	if err := p.check(i); err != nil {
		return nil, err
	}
	entry := p.entries[i]

	ctx, span := telemetry.Tracer("tracelens/viewcapture").Start(ctx, "viewcapture.Entry")
	span.SetAttributes(attribute.Int("entry.index", i), attribute.Int64("entry.id", entry.ID))
	start := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if h := loadDuration(); h != nil {
			h.Record(ctx, time.Since(start).Seconds())
		}
	}()

	window, err := p.decode(ctx, entry.ArgSetID, p.schemas.Window)
	if err != nil {
		return nil, fmt.Errorf("viewcapture: entry %d: %w", entry.ID, err)
	}
	rootProvider := p.windowProvider(window)

	nodes, err := p.src.Nodes(ctx, entry.ID)
	if err != nil {
		return nil, fmt.Errorf("viewcapture: entry %d: read nodes: %w", entry.ID, err)
	}
	views, err := p.viewProviders(ctx, nodes)
	if err != nil {
		return nil, fmt.Errorf("viewcapture: entry %d: %w", entry.ID, err)
	}

	b := hierarchy.NewBuilder(accessor{}, p.logger)
	root, err := b.SetRoot(rootProvider).SetChildren(views).Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("viewcapture: entry %d: %w", entry.ID, err)
	}
	span.SetAttributes(attribute.Int("nodes", len(nodes)), attribute.Int("dangling_children", b.Dropped()))

	if err := computation.NewVisibility().SetRoot(root).ExecuteInPlace(); err != nil {
		return nil, fmt.Errorf("viewcapture: visibility: %w", err)
	}
	if err := computation.NewRects().SetRoot(root).ExecuteInPlace(); err != nil {
		return nil, fmt.Errorf("viewcapture: rects: %w", err)
	}
	return root, nil
}

func (p *Parser) decode(ctx context.Context, argSetID int64, m *schema.Message) (*fakeproto.Object, error) {
	rows, err := p.src.Args(ctx, argSetID)
	if err != nil {
		return nil, fmt.Errorf("read args %d: %w", argSetID, err)
	}
	b := fakeproto.NewBuilder()
	if err := b.AddAll(rows); err != nil {
		return nil, fmt.Errorf("decode args %d: %w", argSetID, err)
	}
	obj, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("decode args %d: %w", argSetID, err)
	}
	if _, err := fakeproto.NewTransformer(m).Transform(obj); err != nil {
		return nil, fmt.Errorf("transform args %d: %w", argSetID, err)
	}
	return obj, nil
}

func (p *Parser) windowProvider(window *fakeproto.Object) *properties.Provider {
	name := ""
	if v, ok := window.Get("windowName"); ok {
		name = operations.FormatValue(v)
	}
	eager := eagerRoot(window, "window "+name, name, eagerWindowProperties)
	return properties.NewBuilder().
		SetEagerProperties(eager).
		SetCommonOperations(commonOperations(nil)).
		Build()
}

func (p *Parser) viewProviders(ctx context.Context, nodes []rowsource.Node) ([]*properties.Provider, error) {
	out := make([]*properties.Provider, len(nodes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)
	for i, n := range nodes {
		g.Go(func() error {
			obj, err := p.decode(gctx, n.ArgSetID, p.schemas.View)
			if err != nil {
				return fmt.Errorf("node %d: %w", n.ID, err)
			}
			out[i] = p.viewProvider(n, obj)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Parser) viewProvider(n rowsource.Node, obj *fakeproto.Object) *properties.Provider {
	var hashcode, className string
	if v, ok := obj.Get("hashcode"); ok {
		hashcode = operations.FormatValue(v)
	}
	if v, ok := obj.Get("className"); ok {
		className = operations.FormatValue(v)
	}
	rootID := hashcode + " " + className
	eager := eagerRoot(obj, rootID, className, eagerViewProperties)

	lazyFactory := tree.NewFactory(eagerViewProperties...)
	viewSchema := p.schemas.View
	lazy := func(ctx context.Context) (*tree.PropertyTreeNode, error) {
		full, err := p.decode(ctx, n.ArgSetID, viewSchema)
		if err != nil {
			return nil, fmt.Errorf("viewcapture: node %d: %w", n.ID, err)
		}
		return lazyFactory.MakePropertyRoot(rootID, className, tree.SourceProto, full), nil
	}

	return properties.NewBuilder().
		SetEagerProperties(eager).
		SetLazyPropertiesStrategy(lazy).
		SetCommonOperations(commonOperations(viewIntDefs)).
		SetLazyOperations(operations.NewChain[*tree.PropertyTreeNode](operations.NewAddDefaults(viewSchema, eagerViewProperties...))).
		Build()
}

// eagerRoot builds a property root holding only the named fields of obj.
func eagerRoot(obj *fakeproto.Object, rootID, name string, fields []string) *tree.PropertyTreeNode {
	root := tree.NewPropertyTreeNode(rootID, name, tree.SourceProto, nil)
	for _, key := range fields {
		v, ok := obj.Get(key)
		if !ok || fakeproto.IsNull(v) {
			continue
		}
		root.AddOrReplaceChild(tree.MakeProtoProperty(rootID, key, v))
	}
	return root
}

// accessor reads view identity from the hashcode and names views by class.
// The window root has no hashcode and is named after the window.
type accessor struct{}

var viewAccessor = hierarchy.PropertyAccessor{
	IdentityProperty: "hashcode",
	NameProperty:     "className",
	ChildrenProperty: "children",
}

func (accessor) Identity(p *properties.Provider) (string, bool) {
	if _, ok := p.EagerProperty("windowName"); ok {
		return "window", true
	}
	return viewAccessor.Identity(p)
}

func (accessor) Name(p *properties.Provider) string {
	if _, ok := p.EagerProperty("windowName"); ok {
		return hierarchy.PropertyAccessor{NameProperty: "windowName"}.Name(p)
	}
	return viewAccessor.Name(p)
}

func (accessor) ChildIDs(p *properties.Provider) []string {
	return viewAccessor.ChildIDs(p)
}
