// Package testutil provides deterministic vector generators and brute
// force search oracles for tests.
package testutil

import (
	"math"
	"math/rand"
	"sort"

	"github.com/hupe1980/covertree/distance"
	"github.com/hupe1980/covertree/pointstore"
)

// NewRNG returns a deterministic random source for tests.
func NewRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// UniformVectors generates n vectors with coordinates uniform in
// [-scale, scale).
func UniformVectors(rng *rand.Rand, n, dim int, scale float64) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = float32((rng.Float64()*2 - 1) * scale)
		}
		vectors[i] = vec
	}
	return vectors
}

// GaussianVectors generates n vectors with normally distributed
// coordinates.
func GaussianVectors(rng *rand.Rand, n, dim int, stddev float64) [][]float32 {
	vectors := make([][]float32, n)
	for i := range vectors {
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = float32(rng.NormFloat64() * stddev)
		}
		vectors[i] = vec
	}
	return vectors
}

// ClusteredVectors generates vectors grouped around k random cluster
// centers, a worst case for separation handling.
func ClusteredVectors(rng *rand.Rand, n, dim, k int, spread float64) [][]float32 {
	centers := UniformVectors(rng, k, dim, 10)

	vectors := make([][]float32, n)
	for i := range vectors {
		center := centers[rng.Intn(k)]
		vec := make([]float32, dim)
		for d := range vec {
			vec[d] = center[d] + float32(rng.NormFloat64()*spread)
		}
		vectors[i] = vec
	}
	return vectors
}

// Match is a brute force search hit.
type Match struct {
	Index    uint32
	Distance float64
}

// BruteForceKNN returns the k nearest stored points to query, ordered by
// ascending distance with index as tie-break.
func BruteForceKNN(store pointstore.Store, dist distance.Func, query []float32, k int) []Match {
	matches := scanAll(store, dist, query, math.MaxFloat64)
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// BruteForceRadius returns every stored point within radius of query,
// ordered by ascending distance with index as tie-break.
func BruteForceRadius(store pointstore.Store, dist distance.Func, query []float32, radius float64) []Match {
	return scanAll(store, dist, query, radius)
}

func scanAll(store pointstore.Store, dist distance.Func, query []float32, radius float64) []Match {
	var matches []Match
	for i := 0; i < store.Len(); i++ {
		vec, ok := store.Vector(uint32(i))
		if !ok {
			continue
		}
		if d := dist(query, vec); d <= radius {
			matches = append(matches, Match{Index: uint32(i), Distance: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Index < matches[j].Index
	})
	return matches
}
