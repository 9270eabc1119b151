package covertree

import (
	"context"

	"github.com/hupe1980/covertree/distance"
	"github.com/hupe1980/covertree/summary"
)

// RootGrowthPolicy controls what happens when an inserted point falls
// outside the root's covering radius.
type RootGrowthPolicy int

const (
	// RootGrowthAuto grows the root to a coarser scale and retries the
	// insertion transparently.
	RootGrowthAuto RootGrowthPolicy = iota

	// RootGrowthManual surfaces ErrRootExpansionRequired; the caller may
	// call GrowRoot and retry.
	RootGrowthManual

	// RootGrowthDisabled surfaces ErrOutOfRange.
	RootGrowthDisabled
)

// Options contains the configuration of a cover tree.
type Options struct {
	// UseSingletons selects the classic cover tree: every node covers
	// exactly one point and the nesting invariant is enforced. When false,
	// nodes aggregate up to Cutoff points into a bucket before spawning
	// children.
	UseSingletons bool

	// ScaleBase is the geometric base; a node at scale s covers points
	// within ScaleBase^s of its center. Must be > 1.
	ScaleBase float64

	// Cutoff is the maximum number of points a node may directly own
	// before they are pushed into children or an outlier summary.
	// Must be >= 1 when UseSingletons is false.
	Cutoff uint32

	// Resolution is the finest scale index at which decomposition stops.
	Resolution int32

	// PartitionType selects the strategy used to split an oversized
	// bucket into children. One of PartitionTypes().
	PartitionType string

	// RootScale is the scale of the root created on first insert.
	RootScale int32

	// RootGrowth is the policy applied when a point exceeds root coverage.
	RootGrowth RootGrowthPolicy

	// Metric selects a built-in distance function.
	Metric distance.Metric

	// DistanceFunc overrides Metric with a caller-supplied metric.
	// It must satisfy the triangle inequality.
	DistanceFunc distance.Func

	// Summarizer builds the opaque outlier summaries. Defaults to
	// summary.NewVecSummarizer().
	Summarizer summary.Summarizer

	// Logger receives structured operation logs. Defaults to NoopLogger.
	Logger *Logger

	// InsertObserver, when set, is called after every successful insert
	// with the new point count. The persistence manager uses it to drive
	// automatic snapshots.
	InsertObserver func(ctx context.Context, count uint64)
}

// DefaultOptions contains the default configuration for a cover tree.
var DefaultOptions = Options{
	UseSingletons: false,
	ScaleBase:     2.0,
	Cutoff:        8,
	Resolution:    -30,
	PartitionType: PartitionFarthest,
	RootScale:     0,
	RootGrowth:    RootGrowthAuto,
	Metric:        distance.MetricEuclidean,
}

// WithSingletons enables classic single-point nodes.
func WithSingletons() func(*Options) {
	return func(o *Options) { o.UseSingletons = true }
}

// WithScaleBase sets the geometric base of covering radii.
func WithScaleBase(base float64) func(*Options) {
	return func(o *Options) { o.ScaleBase = base }
}

// WithCutoff sets the maximum bucket size per node.
func WithCutoff(cutoff uint32) func(*Options) {
	return func(o *Options) { o.Cutoff = cutoff }
}

// WithResolution sets the finest scale at which decomposition stops.
func WithResolution(resolution int32) func(*Options) {
	return func(o *Options) { o.Resolution = resolution }
}

// WithPartitionType selects the bucket partition strategy by name.
func WithPartitionType(name string) func(*Options) {
	return func(o *Options) { o.PartitionType = name }
}

// WithRootScale sets the scale of the root created on first insert.
func WithRootScale(scale int32) func(*Options) {
	return func(o *Options) { o.RootScale = scale }
}

// WithRootGrowth sets the root expansion policy.
func WithRootGrowth(policy RootGrowthPolicy) func(*Options) {
	return func(o *Options) { o.RootGrowth = policy }
}

// WithMetric selects a built-in distance metric.
func WithMetric(m distance.Metric) func(*Options) {
	return func(o *Options) { o.Metric = m }
}

// WithDistanceFunc supplies a custom metric. It must satisfy the triangle
// inequality or query pruning becomes unsound.
func WithDistanceFunc(fn distance.Func) func(*Options) {
	return func(o *Options) { o.DistanceFunc = fn }
}

// WithSummarizer supplies a custom outlier summarizer.
func WithSummarizer(s summary.Summarizer) func(*Options) {
	return func(o *Options) { o.Summarizer = s }
}

// WithLogger configures structured logging for operations.
func WithLogger(logger *Logger) func(*Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithInsertObserver registers a callback invoked after every successful
// insert with the new point count.
func WithInsertObserver(fn func(ctx context.Context, count uint64)) func(*Options) {
	return func(o *Options) { o.InsertObserver = fn }
}

func (o *Options) validate() error {
	if o.ScaleBase <= 1.0 {
		return &ErrInvalidConfig{Field: "scale_base", Reason: "must be greater than 1.0"}
	}
	if o.Cutoff == 0 && !o.UseSingletons {
		return &ErrInvalidConfig{Field: "cutoff", Reason: "must be at least 1 when singletons are disabled"}
	}
	if o.RootScale < o.Resolution {
		return &ErrInvalidConfig{Field: "root_scale", Reason: "must not be finer than resolution"}
	}
	if _, ok := partitionStrategies[o.PartitionType]; !ok {
		return &ErrInvalidConfig{Field: "partition_type", Reason: "unknown strategy " + o.PartitionType}
	}
	return nil
}
