package covertree

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/covertree/queue"
)

// Result is a single query match.
type Result struct {
	Index    uint32
	Distance float64
}

func sortResults(results []Result) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Index < results[j].Index
	})
}

// KNNSearch returns the k nearest indexed points to query, ordered by
// ascending distance with index as tie-break. Fewer than k results are
// returned when the tree holds fewer points.
//
// Pruning is exact: a node's subtree, bucket included, lies inside the
// node's ball, so a branch is skipped only when the ball cannot hold a
// point closer than the current k-th best.
func (t *Tree) KNNSearch(ctx context.Context, query []float32, k int) ([]Result, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidK, k)
	}
	if !t.hasRoot {
		return nil, ErrEmptyTree
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if dim := t.points.Dim(); dim != 0 && len(query) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	best := queue.NewMax(k)
	bound := func() float64 {
		if best.Len() < k {
			return math.MaxFloat64
		}
		top, _ := best.Top()
		return top.Distance
	}

	seen := roaring.New()
	consider := func(index uint32, d float64) {
		if seen.CheckedAdd(index) {
			best.PushBounded(queue.Item{Point: index, Distance: d}, k)
		}
	}

	t.walk(query, func(n *Node, d float64) bool {
		consider(n.Center, d)
		t.scanOutliers(query, n, d, consider, bound)
		return d-n.Radius(t.opts.ScaleBase) <= bound()
	})

	results := make([]Result, 0, best.Len())
	for {
		item, ok := best.Pop()
		if !ok {
			break
		}
		results = append(results, Result{Index: item.Point, Distance: item.Distance})
	}
	sortResults(results)

	t.logger.LogSearch(ctx, "knn", len(results))
	return results, nil
}

// RadiusSearch returns every indexed point within radius of query, ordered
// by ascending distance with index as tie-break.
func (t *Tree) RadiusSearch(ctx context.Context, query []float32, radius float64) ([]Result, error) {
	if radius < 0 {
		return nil, &ErrInvalidConfig{Field: "radius", Reason: "must be non-negative"}
	}
	if !t.hasRoot {
		return nil, ErrEmptyTree
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if dim := t.points.Dim(); dim != 0 && len(query) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	var results []Result
	seen := roaring.New()
	consider := func(index uint32, d float64) {
		if d <= radius && seen.CheckedAdd(index) {
			results = append(results, Result{Index: index, Distance: d})
		}
	}
	bound := func() float64 { return radius }

	t.walk(query, func(n *Node, d float64) bool {
		consider(n.Center, d)
		t.scanOutliers(query, n, d, consider, bound)
		return d-n.Radius(t.opts.ScaleBase) <= radius
	})

	sortResults(results)

	t.logger.LogSearch(ctx, "radius", len(results))
	return results, nil
}

// walk traverses the tree depth-first, expanding a node's children only
// when visit returns true for it. visit receives the distance from the
// query to the node's center.
func (t *Tree) walk(query []float32, visit func(n *Node, d float64) bool) {
	stack := []NodeKey{t.root}
	for len(stack) > 0 {
		key := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := t.nodes[key]
		vec, _ := t.points.Vector(n.Center)
		d := t.dist(query, vec)

		if visit(n, d) {
			stack = append(stack, n.Children...)
		}
	}
}

// scanOutliers reports the node's bucket points to consider, skipping the
// scan entirely when the summary's spread bound (or the node ball) proves
// no bucket point can beat the current bound.
func (t *Tree) scanOutliers(query []float32, n *Node, centerDist float64, consider func(index uint32, d float64), bound func() float64) {
	if len(n.Outliers) == 0 {
		return
	}

	spread := n.Radius(t.opts.ScaleBase)
	if s, ok := t.summarizer.Bounds(n.OutlierSummary); ok && s < spread {
		spread = s
	}
	if centerDist-spread > bound() {
		return
	}

	for _, p := range n.Outliers {
		vec, ok := t.points.Vector(p)
		if !ok {
			continue
		}
		consider(p, t.dist(query, vec))
	}
}
