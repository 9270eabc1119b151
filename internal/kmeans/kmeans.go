package kmeans

import (
	"math"
	"math/rand"

	"github.com/hupe1980/covertree/distance"
)

// Train runs Lloyd's algorithm over the given vectors and returns k centroids
// with the final assignment of each vector to a centroid.
//
// The rng seeds centroid initialization; passing a seeded source keeps
// clustering deterministic. Returns nil centroids when there are fewer
// vectors than clusters.
func Train(vectors [][]float32, k int, dist distance.Func, maxIter int, rng *rand.Rand) ([][]float32, []int) {
	n := len(vectors)
	if n < k || k <= 0 {
		return nil, nil
	}

	dim := len(vectors[0])
	centroids := make([][]float32, k)

	// Initialize centroids from distinct data points.
	perm := rng.Perm(n)
	for i := 0; i < k; i++ {
		c := make([]float32, dim)
		copy(c, vectors[perm[i]])
		centroids[i] = c
	}

	assignments := make([]int, n)
	counts := make([]int, k)
	sums := make([][]float64, k)
	for i := range sums {
		sums[i] = make([]float64, dim)
	}

	for iter := 0; iter < maxIter; iter++ {
		changed := false

		// Assignment step.
		for i, vec := range vectors {
			best := -1
			minDist := math.MaxFloat64
			for j, center := range centroids {
				if d := dist(vec, center); d < minDist {
					minDist = d
					best = j
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		if !changed {
			break
		}

		// Update step.
		for j := range sums {
			counts[j] = 0
			for d := range sums[j] {
				sums[j][d] = 0
			}
		}
		for i, vec := range vectors {
			cluster := assignments[i]
			counts[cluster]++
			for d, x := range vec {
				sums[cluster][d] += float64(x)
			}
		}

		for j := 0; j < k; j++ {
			if counts[j] > 0 {
				scale := 1 / float64(counts[j])
				for d := 0; d < dim; d++ {
					centroids[j][d] = float32(sums[j][d] * scale)
				}
			} else {
				// Re-seed an empty cluster with a random point.
				copy(centroids[j], vectors[rng.Intn(n)])
			}
		}
	}

	return centroids, assignments
}

// Nearest returns the index of the centroid closest to vec.
func Nearest(vec []float32, centroids [][]float32, dist distance.Func) int {
	best := -1
	minDist := math.MaxFloat64
	for j, center := range centroids {
		if d := dist(vec, center); d < minDist {
			minDist = d
			best = j
		}
	}
	return best
}
