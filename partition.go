package covertree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/covertree/internal/kmeans"
)

const (
	// PartitionFarthest picks the uncovered point farthest from the parent
	// center as the next child center. Default.
	PartitionFarthest = "farthest"

	// PartitionNearest picks the uncovered point nearest to the parent
	// center as the next child center.
	PartitionNearest = "nearest"

	// PartitionEven splits the bucket into covering groups in insertion
	// order. Also the fallback when another strategy fails.
	PartitionEven = "even"

	// PartitionKmeans clusters the bucket with k-means and snaps the
	// centroids to bucket points, then fixes up separation greedily.
	PartitionKmeans = "kmeans"
)

// partitionFunc splits an overflowing bucket into groups. Each group's
// first element is the new child center; the center must cover the rest of
// its group at childScale and be separated from the other centers by more
// than base^childScale.
type partitionFunc func(t *Tree, parent *Node, points []uint32, childScale int32) ([][]uint32, error)

var partitionStrategies = map[string]partitionFunc{
	PartitionFarthest: farthestPartition,
	PartitionNearest:  nearestPartition,
	PartitionEven:     evenPartition,
	PartitionKmeans:   kmeansPartition,
}

// PartitionTypes lists the supported partition strategy names.
func PartitionTypes() []string {
	names := make([]string, 0, len(partitionStrategies))
	for name := range partitionStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// greedyPartition grows groups around centers chosen by pick from the
// still-uncovered points. Choosing centers only among uncovered points
// guarantees separation: a point covered by no existing center is farther
// than the covering radius from all of them.
func greedyPartition(t *Tree, points []uint32, childScale int32, pick func(uncovered []uint32) int) ([][]uint32, error) {
	radius := math.Pow(t.opts.ScaleBase, float64(childScale))

	uncovered := make([]uint32, len(points))
	copy(uncovered, points)

	var groups [][]uint32
	for len(uncovered) > 0 {
		i := pick(uncovered)
		center := uncovered[i]
		uncovered[i] = uncovered[len(uncovered)-1]
		uncovered = uncovered[:len(uncovered)-1]

		group := []uint32{center}
		remaining := uncovered[:0]
		for _, p := range uncovered {
			if t.distIdx(center, p) <= radius {
				group = append(group, p)
			} else {
				remaining = append(remaining, p)
			}
		}
		uncovered = remaining
		groups = append(groups, group)
	}
	return groups, nil
}

func farthestPartition(t *Tree, parent *Node, points []uint32, childScale int32) ([][]uint32, error) {
	return greedyPartition(t, points, childScale, func(uncovered []uint32) int {
		best, bestDist := 0, -1.0
		for i, p := range uncovered {
			if d := t.distIdx(parent.Center, p); d > bestDist {
				best, bestDist = i, d
			}
		}
		return best
	})
}

func nearestPartition(t *Tree, parent *Node, points []uint32, childScale int32) ([][]uint32, error) {
	return greedyPartition(t, points, childScale, func(uncovered []uint32) int {
		best, bestDist := 0, math.MaxFloat64
		for i, p := range uncovered {
			if d := t.distIdx(parent.Center, p); d < bestDist {
				best, bestDist = i, d
			}
		}
		return best
	})
}

// evenPartition is order-based: the first point opens a group, later
// points join the first group whose center covers them, otherwise open
// their own. Separation holds by the same uncovered-center argument.
func evenPartition(t *Tree, parent *Node, points []uint32, childScale int32) ([][]uint32, error) {
	radius := math.Pow(t.opts.ScaleBase, float64(childScale))

	var groups [][]uint32
	for _, p := range points {
		placed := false
		for i, g := range groups {
			if t.distIdx(g[0], p) <= radius {
				groups[i] = append(g, p)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, []uint32{p})
		}
	}
	return groups, nil
}

// kmeansPartition clusters the bucket, snaps each centroid to the nearest
// bucket point and then reassigns greedily so the covering and separation
// constraints hold.
func kmeansPartition(t *Tree, parent *Node, points []uint32, childScale int32) ([][]uint32, error) {
	k := int(math.Ceil(math.Sqrt(float64(len(points)))))
	if k < 2 {
		k = 2
	}
	if k > len(points) {
		k = len(points)
	}

	vectors := make([][]float32, len(points))
	for i, p := range points {
		vec, ok := t.points.Vector(p)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownPoint, p)
		}
		vectors[i] = vec
	}

	rng := rand.New(rand.NewSource(int64(parent.Center)<<32 | int64(uint32(childScale))))
	centroids, _ := kmeans.Train(vectors, k, t.dist, 16, rng)

	// Snap centroids to bucket points.
	snapped := make([]uint32, 0, len(centroids))
	used := make(map[uint32]struct{}, len(centroids))
	for _, c := range centroids {
		best, bestDist := uint32(0), math.MaxFloat64
		found := false
		for i, v := range vectors {
			if _, taken := used[points[i]]; taken {
				continue
			}
			if d := t.dist(c, v); d < bestDist {
				best, bestDist = points[i], d
				found = true
			}
		}
		if found {
			snapped = append(snapped, best)
			used[best] = struct{}{}
		}
	}

	// Drop centers violating separation against earlier ones, then cover
	// the leftovers greedily.
	radius := math.Pow(t.opts.ScaleBase, float64(childScale))
	var centers []uint32
	for _, c := range snapped {
		ok := true
		for _, prev := range centers {
			if t.distIdx(prev, c) <= radius {
				ok = false
				break
			}
		}
		if ok {
			centers = append(centers, c)
		}
	}

	groups := make([][]uint32, len(centers))
	for i, c := range centers {
		groups[i] = []uint32{c}
	}

	var leftover []uint32
	for _, p := range points {
		if _, isCenter := used[p]; isCenter {
			covered := false
			for _, c := range centers {
				if c == p {
					covered = true
					break
				}
			}
			if covered {
				continue
			}
		}
		best, bestDist := -1, math.MaxFloat64
		for i, c := range centers {
			if d := t.distIdx(c, p); d <= radius && d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			groups[best] = append(groups[best], p)
		} else {
			leftover = append(leftover, p)
		}
	}

	// Uncovered leftovers become their own centers, preserving separation.
	for len(leftover) > 0 {
		c := leftover[0]
		group := []uint32{c}
		remaining := leftover[:0]
		for _, p := range leftover[1:] {
			if t.distIdx(c, p) <= radius {
				group = append(group, p)
			} else {
				remaining = append(remaining, p)
			}
		}
		leftover = remaining
		groups = append(groups, group)
	}

	return groups, nil
}

// partitionComplete reports whether the groups account for every bucket
// point exactly once.
func partitionComplete(groups [][]uint32, total int) bool {
	n := 0
	for _, g := range groups {
		if len(g) == 0 {
			return false
		}
		n += len(g)
	}
	return n == total
}
