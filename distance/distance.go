// Package distance provides the metric functions used by cover trees.
//
// A cover tree relies on the triangle inequality, so every function here is
// a true metric. Squared distances (common in approximate-nearest-neighbor
// code) are deliberately not offered.
package distance

import (
	"fmt"
	"math"
)

// Metric identifies a built-in distance metric.
type Metric int

const (
	MetricEuclidean Metric = iota
	MetricManhattan
	MetricChebyshev
	MetricAngular
)

func (m Metric) String() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricManhattan:
		return "Manhattan"
	case MetricChebyshev:
		return "Chebyshev"
	case MetricAngular:
		return "Angular"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// Func computes the distance between two vectors.
// Implementations assume len(a) == len(b); enforcing that is the caller's job.
type Func func(a, b []float32) float64

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricEuclidean:
		return Euclidean, nil
	case MetricManhattan:
		return Manhattan, nil
	case MetricChebyshev:
		return Chebyshev, nil
	case MetricAngular:
		return Angular, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}

// Euclidean computes the L2 distance between two vectors.
func Euclidean(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Manhattan computes the L1 distance between two vectors.
func Manhattan(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum
}

// Chebyshev computes the L-infinity distance between two vectors.
func Chebyshev(a, b []float32) float64 {
	var max float64
	for i := range a {
		d := math.Abs(float64(a[i]) - float64(b[i]))
		if d > max {
			max = d
		}
	}
	return max
}

// Angular computes the angle between two vectors in radians.
// Unlike cosine similarity, the angle satisfies the triangle inequality.
// Zero vectors are treated as orthogonal to everything.
func Angular(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return math.Pi / 2
	}
	cos := dot / (math.Sqrt(na) * math.Sqrt(nb))
	// Clamp against rounding drift before acos.
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos)
}

// Magnitude returns the L2 norm of v.
func Magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}
