package covertree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/covertree/distance"
	"github.com/hupe1980/covertree/pointstore"
	"github.com/hupe1980/covertree/summary"
)

// Config holds the tree-wide persisted fields, immutable after construction
// except Count and the root identity.
type Config struct {
	UseSingletons bool
	ScaleBase     float64
	Cutoff        uint32
	Resolution    int32
	PartitionType string
	Dim           uint32
	Count         uint64
	RootScale     int32
	RootIndex     uint32
}

// Tree is a scale-indexed cover tree over an external point repository.
//
// The tree is single-writer: Insert and rebalancing must not interleave
// with each other or with queries on the same instance. Callers needing
// concurrent reads should query an immutable decoded snapshot while a new
// tree is built in the background and swapped in atomically.
type Tree struct {
	opts       Options
	points     pointstore.Store
	dist       distance.Func
	summarizer summary.Summarizer
	logger     *Logger
	partition  partitionFunc

	nodes   map[NodeKey]*Node
	layers  map[int32]*Layer
	scales  []int32 // descending
	root    NodeKey
	hasRoot bool
	count   uint64
	indexed *roaring.Bitmap
}

// New creates an empty cover tree over the given point store.
func New(points pointstore.Store, optFns ...func(o *Options)) (*Tree, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := opts.validate(); err != nil {
		return nil, err
	}

	dist := opts.DistanceFunc
	if dist == nil {
		fn, err := distance.Provider(opts.Metric)
		if err != nil {
			return nil, &ErrInvalidConfig{Field: "metric", Reason: err.Error()}
		}
		dist = fn
	}

	summarizer := opts.Summarizer
	if summarizer == nil {
		summarizer = summary.NewVecSummarizer()
	}

	logger := opts.Logger
	if logger == nil {
		logger = NoopLogger()
	}

	return &Tree{
		opts:       opts,
		points:     points,
		dist:       dist,
		summarizer: summarizer,
		logger:     logger,
		partition:  partitionStrategies[opts.PartitionType],
		nodes:      make(map[NodeKey]*Node),
		layers:     make(map[int32]*Layer),
		indexed:    roaring.New(),
	}, nil
}

// Count returns the number of indexed points.
func (t *Tree) Count() uint64 { return t.count }

// Config returns the persisted tree-wide fields.
func (t *Tree) Config() Config {
	cfg := Config{
		UseSingletons: t.opts.UseSingletons,
		ScaleBase:     t.opts.ScaleBase,
		Cutoff:        t.opts.Cutoff,
		Resolution:    t.opts.Resolution,
		PartitionType: t.opts.PartitionType,
		Dim:           uint32(t.points.Dim()),
		Count:         t.count,
	}
	if t.hasRoot {
		cfg.RootScale = t.root.Scale
		cfg.RootIndex = t.root.Center
	}
	return cfg
}

// Root returns the root node, or false for an empty tree.
func (t *Tree) Root() (*Node, bool) {
	if !t.hasRoot {
		return nil, false
	}
	return t.nodes[t.root], true
}

// NodeAt returns the node with the given composite key.
func (t *Tree) NodeAt(scale int32, center uint32) (*Node, bool) {
	n, ok := t.nodes[NodeKey{Scale: scale, Center: center}]
	return n, ok
}

// Layers returns the layers in descending scale order.
func (t *Tree) Layers() []*Layer {
	out := make([]*Layer, 0, len(t.scales))
	for _, s := range t.scales {
		out = append(out, t.layers[s])
	}
	return out
}

// Insert indexes the point with the given index.
//
// If the point falls outside the root's covering radius, the root growth
// policy decides between transparent expansion, ErrRootExpansionRequired
// and ErrOutOfRange.
func (t *Tree) Insert(ctx context.Context, index uint32) error {
	err := t.insert(ctx, index)
	t.logger.LogInsert(ctx, index, err)
	return err
}

func (t *Tree) insert(ctx context.Context, index uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	vec, ok := t.points.Vector(index)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPoint, index)
	}
	if t.indexed.Contains(index) {
		return fmt.Errorf("%w: %d", ErrDuplicatePoint, index)
	}

	if !t.hasRoot {
		root := t.linkNode(index, t.opts.RootScale)
		root.CoverageCount = 1
		t.root = root.Key()
		t.hasRoot = true
		t.count = 1
		t.indexed.Add(index)
		t.notifyInsert(ctx)
		return nil
	}

	root := t.nodes[t.root]
	rootVec, _ := t.points.Vector(root.Center)
	if d := t.dist(vec, rootVec); d > root.Radius(t.opts.ScaleBase) {
		switch t.opts.RootGrowth {
		case RootGrowthAuto:
			t.growRootToCover(ctx, d)
		case RootGrowthManual:
			return fmt.Errorf("%w: point %d at distance %g exceeds root radius %g",
				ErrRootExpansionRequired, index, d, root.Radius(t.opts.ScaleBase))
		default:
			return fmt.Errorf("%w: point %d at distance %g exceeds root radius %g",
				ErrOutOfRange, index, d, root.Radius(t.opts.ScaleBase))
		}
	}

	if err := t.place(ctx, index, vec); err != nil {
		return err
	}

	t.count++
	t.indexed.Add(index)
	t.notifyInsert(ctx)
	return nil
}

func (t *Tree) notifyInsert(ctx context.Context) {
	if t.opts.InsertObserver != nil {
		t.opts.InsertObserver(ctx, t.count)
	}
}

// BatchInsertResult reports the outcome of a batch insertion.
type BatchInsertResult struct {
	// Errors holds the per-point error, nil on success.
	Errors []error

	// Failed is the number of points that could not be inserted.
	Failed int
}

// BatchInsert indexes multiple points in one pass, collecting per-point
// errors instead of stopping at the first failure.
func (t *Tree) BatchInsert(ctx context.Context, indexes []uint32) BatchInsertResult {
	result := BatchInsertResult{Errors: make([]error, len(indexes))}

	for i, index := range indexes {
		if err := t.insert(ctx, index); err != nil {
			result.Errors[i] = err
			result.Failed++
		}
	}

	t.logger.LogBatchInsert(ctx, len(indexes), result.Failed)
	return result
}

// GrowRoot re-keys the root to a coarser scale. Used with the manual root
// growth policy to recover from ErrRootExpansionRequired.
func (t *Tree) GrowRoot(scale int32) error {
	if !t.hasRoot {
		return ErrEmptyTree
	}
	root := t.nodes[t.root]
	if scale <= root.Scale {
		return &ErrInvalidConfig{Field: "root_scale", Reason: "must be coarser than the current root scale"}
	}
	t.rekeyRoot(root, scale)
	return nil
}

func (t *Tree) growRootToCover(ctx context.Context, d float64) {
	root := t.nodes[t.root]
	fromScale := root.Scale

	scale := root.Scale
	for math.Pow(t.opts.ScaleBase, float64(scale)) < d {
		scale++
	}
	t.rekeyRoot(root, scale)
	t.logger.LogRootGrowth(ctx, fromScale, scale)
}

// rekeyRoot moves the root to a coarser scale. Children keep their scales;
// only their parent back-references change.
func (t *Tree) rekeyRoot(root *Node, scale int32) {
	t.unlinkNode(root)
	root.Scale = scale
	t.nodes[root.Key()] = root
	t.layerFor(scale).add(root)
	t.root = root.Key()

	for _, ck := range root.Children {
		t.nodes[ck].ParentScale = scale
	}
}

// place descends from the root to the deepest covering node and attaches
// the point there, as a finer-scale child or a bucket entry.
func (t *Tree) place(ctx context.Context, index uint32, vec []float32) error {
	cur := t.nodes[t.root]
	path := make([]*Node, 0, 8)
	path = append(path, cur)

	for {
		// Among children whose radius covers the point, descend into the
		// nearest.
		var best *Node
		bestDist := math.MaxFloat64
		for _, ck := range cur.Children {
			c := t.nodes[ck]
			cv, _ := t.points.Vector(c.Center)
			if d := t.dist(vec, cv); d <= c.Radius(t.opts.ScaleBase) && d < bestDist {
				best, bestDist = c, d
			}
		}
		if best != nil {
			cur = best
			path = append(path, cur)
			continue
		}

		childScale := cur.Scale - 1

		if !t.opts.UseSingletons || childScale < t.opts.Resolution {
			return t.addToBucket(ctx, cur, index, path)
		}

		if cur.NestedScale == NoScale && len(cur.Children) == 0 {
			// Nesting: the center reappears as its own child before the
			// node gains its first real child. The self-child may itself
			// cover the point, so re-run child selection.
			nested := t.linkNode(cur.Center, childScale)
			nested.CoverageCount = 1
			t.attach(cur, nested)
			cur.NestedScale = childScale
			continue
		}

		// No child covers the point: it becomes a new sibling one scale
		// down. Separation holds because no sibling's ball contained it.
		child := t.linkNode(index, childScale)
		child.CoverageCount = 1
		t.attach(cur, child)
		for _, n := range path {
			n.CoverageCount++
		}
		return nil
	}
}

// addToBucket assigns the point to the node's own bucket and applies the
// cutoff policy.
func (t *Tree) addToBucket(ctx context.Context, n *Node, index uint32, path []*Node) error {
	n.Outliers = append(n.Outliers, index)
	for _, a := range path {
		a.CoverageCount++
	}

	if len(n.Outliers) > int(t.opts.Cutoff) && n.Scale-1 >= t.opts.Resolution {
		return t.rebalance(ctx, n)
	}
	return t.refreshSummary(n)
}

// rebalance converts an overflowing bucket into finer-scale children using
// the configured partition strategy, falling back to an even split once if
// the strategy fails.
func (t *Tree) rebalance(ctx context.Context, n *Node) error {
	childScale := n.Scale - 1
	points := n.Outliers
	n.Outliers = nil
	n.OutlierSummary = nil

	groups, err := t.partition(t, n, points, childScale)
	if err != nil || !partitionComplete(groups, len(points)) {
		groups, err = evenPartition(t, n, points, childScale)
		if err != nil {
			return err
		}
	}

	for _, g := range groups {
		child := t.linkNode(g[0], childScale)
		child.CoverageCount = uint64(len(g))
		t.attach(n, child)

		if len(g) > 1 {
			child.Outliers = append(child.Outliers, g[1:]...)
			if len(child.Outliers) > int(t.opts.Cutoff) && child.Scale-1 >= t.opts.Resolution {
				if err := t.rebalance(ctx, child); err != nil {
					return err
				}
			} else if err := t.refreshSummary(child); err != nil {
				return err
			}
		}
	}

	t.logger.LogRebalance(ctx, n.Scale, n.Center, len(groups))
	return nil
}

func (t *Tree) refreshSummary(n *Node) error {
	if len(n.Outliers) == 0 {
		n.OutlierSummary = nil
		return nil
	}
	blob, err := t.summarizer.Summarize(t.view(), n.Center, n.Outliers)
	if err != nil {
		return fmt.Errorf("summarize outliers of node (scale=%d, center=%d): %w", n.Scale, n.Center, err)
	}
	n.OutlierSummary = blob
	return nil
}

// linkNode creates a node and registers it in the arena and its layer.
func (t *Tree) linkNode(center uint32, scale int32) *Node {
	n := &Node{
		Center:      center,
		Scale:       scale,
		NestedScale: NoScale,
	}
	t.nodes[n.Key()] = n
	t.layerFor(scale).add(n)
	return n
}

func (t *Tree) unlinkNode(n *Node) {
	delete(t.nodes, n.Key())
	layer := t.layers[n.Scale]
	layer.remove(n)
	if len(layer.Nodes) == 0 {
		delete(t.layers, n.Scale)
		for i, s := range t.scales {
			if s == n.Scale {
				t.scales = append(t.scales[:i], t.scales[i+1:]...)
				break
			}
		}
	}
}

func (t *Tree) attach(parent, child *Node) {
	child.ParentCenter = parent.Center
	child.ParentScale = parent.Scale
	parent.Children = append(parent.Children, child.Key())
}

func (t *Tree) layerFor(scale int32) *Layer {
	if l, ok := t.layers[scale]; ok {
		return l
	}
	l := &Layer{Scale: scale}
	t.layers[scale] = l
	t.scales = append(t.scales, scale)
	sort.Slice(t.scales, func(i, j int) bool { return t.scales[i] > t.scales[j] })
	return l
}

func (t *Tree) distIdx(a, b uint32) float64 {
	va, _ := t.points.Vector(a)
	vb, _ := t.points.Vector(b)
	return t.dist(va, vb)
}

// pointView adapts the tree's point store for summarizers.
type pointView struct{ t *Tree }

func (v pointView) Vector(index uint32) ([]float32, bool) { return v.t.points.Vector(index) }
func (v pointView) Distance(a, b uint32) float64          { return v.t.distIdx(a, b) }

func (t *Tree) view() summary.PointView { return pointView{t: t} }

// Stats summarizes the tree's shape.
type Stats struct {
	Points    uint64
	Nodes     int
	Layers    int
	Leaves    int
	Saturated int
	Outliers  int
	TopScale  int32
	Floor     int32
}

// Stats reports shape statistics for logging and tests.
func (t *Tree) Stats() Stats {
	s := Stats{
		Points: t.count,
		Nodes:  len(t.nodes),
		Layers: len(t.layers),
	}
	if len(t.scales) > 0 {
		s.TopScale = t.scales[0]
		s.Floor = t.scales[len(t.scales)-1]
	}
	for _, n := range t.nodes {
		if n.IsLeaf() {
			s.Leaves++
		}
		if n.State(t.opts.Cutoff, t.opts.Resolution) == StateSaturated {
			s.Saturated++
		}
		s.Outliers += len(n.Outliers)
	}
	return s
}

// Rebuild reconstructs a tree from decoded configuration and layers,
// re-linking nodes by their (scale, center) keys and validating the six
// structural invariants. A violation fails with ErrCorruptTree; the tree
// is never silently repaired.
func Rebuild(points pointstore.Store, cfg Config, layers []*Layer, optFns ...func(o *Options)) (*Tree, error) {
	t, err := New(points, append(optFns, func(o *Options) {
		o.UseSingletons = cfg.UseSingletons
		o.ScaleBase = cfg.ScaleBase
		o.Cutoff = cfg.Cutoff
		o.Resolution = cfg.Resolution
		o.PartitionType = cfg.PartitionType
		o.RootScale = cfg.RootScale
		if o.RootScale < cfg.Resolution {
			o.RootScale = cfg.Resolution
		}
	})...)
	if err != nil {
		return nil, err
	}

	if int(cfg.Dim) != points.Dim() {
		return nil, &ErrInvalidConfig{
			Field:  "dim",
			Reason: fmt.Sprintf("tree dimension %d does not match point store dimension %d", cfg.Dim, points.Dim()),
		}
	}

	for _, layer := range layers {
		for _, n := range layer.Nodes {
			if n.Scale != layer.Scale {
				return nil, &ErrCorruptTree{
					Invariant: 6, ScaleIndex: n.Scale, CenterIndex: n.Center,
					Reason: fmt.Sprintf("node scale %d differs from layer scale %d", n.Scale, layer.Scale),
				}
			}
			if _, exists := t.nodes[n.Key()]; exists {
				return nil, &ErrCorruptTree{
					Invariant: 6, ScaleIndex: n.Scale, CenterIndex: n.Center,
					Reason: "duplicate node identity",
				}
			}
			t.nodes[n.Key()] = n
			t.layerFor(layer.Scale).add(n)
		}
	}

	if cfg.Count > 0 {
		rootKey := NodeKey{Scale: cfg.RootScale, Center: cfg.RootIndex}
		if _, ok := t.nodes[rootKey]; !ok {
			return nil, &ErrCorruptTree{
				Invariant: 6, ScaleIndex: cfg.RootScale, CenterIndex: cfg.RootIndex,
				Reason: "root node not found",
			}
		}
		t.root = rootKey
		t.hasRoot = true
	} else if len(t.nodes) > 0 {
		return nil, &ErrCorruptTree{Invariant: 6, Reason: "nodes present in a tree with count 0"}
	}

	t.count = cfg.Count

	if err := t.Validate(); err != nil {
		return nil, err
	}

	// Rebuild the indexed-point set from centers and outliers.
	for _, n := range t.nodes {
		t.indexed.Add(n.Center)
		t.indexed.AddMany(n.Outliers)
	}
	if uint64(t.indexed.GetCardinality()) != cfg.Count {
		return nil, &ErrCorruptTree{
			Invariant: 6,
			Reason: fmt.Sprintf("distinct indexed points %d differ from recorded count %d",
				t.indexed.GetCardinality(), cfg.Count),
		}
	}

	return t, nil
}
