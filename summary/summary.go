// Package summary defines the outlier summarization seam of the cover tree.
//
// When a node's bucket is truncated by the cutoff policy, the points folded
// into its outlier set are described by an opaque JSON blob. The tree never
// interprets the blob itself; it only calls through the narrow Summarizer
// interface, so callers can supply their own summary formats.
package summary

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// PointView is the read-only view a Summarizer receives. It must not be
// retained past the Summarize call.
type PointView interface {
	// Vector resolves a point index to its coordinates.
	Vector(index uint32) ([]float32, bool)

	// Distance returns the distance between two points by index.
	Distance(a, b uint32) float64
}

// Summarizer produces and inspects outlier summaries.
//
// Summarize must be pure with respect to tree state: it may only read
// through the supplied view.
type Summarizer interface {
	// Summarize builds a summary blob for the points folded into the
	// outlier set of the node centered at center.
	Summarize(view PointView, center uint32, points []uint32) ([]byte, error)

	// Bounds reports the spread declared by a summary blob: the maximum
	// distance from the node center to any summarized point. ok is false
	// when the blob carries no usable bound.
	Bounds(data []byte) (spread float64, ok bool)
}

// Compile-time checks.
var (
	_ Summarizer = (*VecSummarizer)(nil)
	_ Summarizer = (*CategorySummarizer)(nil)
)

// VecSummary is the default summary shape: first and second coordinate
// moments plus the spread around the owning center.
type VecSummary struct {
	Count   int       `json:"count"`
	Moment1 []float64 `json:"moment1"`
	Moment2 []float64 `json:"moment2"`
	Spread  float64   `json:"spread"`
}

// Mean returns the per-dimension mean of the summarized points.
func (s *VecSummary) Mean() []float64 {
	if s.Count == 0 {
		return nil
	}
	mean := make([]float64, len(s.Moment1))
	floats.AddScaledTo(mean, mean, 1/float64(s.Count), s.Moment1)
	return mean
}

// Variance returns the per-dimension population variance.
func (s *VecSummary) Variance() []float64 {
	if s.Count == 0 {
		return nil
	}
	n := float64(s.Count)
	mean := s.Mean()
	variance := make([]float64, len(s.Moment2))
	floats.AddScaledTo(variance, variance, 1/n, s.Moment2)
	floats.MulTo(mean, mean, mean)
	floats.Sub(variance, mean)
	return variance
}

// VecSummarizer summarizes outliers by accumulating coordinate moments.
type VecSummarizer struct{}

// NewVecSummarizer creates the default moment-based summarizer.
func NewVecSummarizer() *VecSummarizer { return &VecSummarizer{} }

// Summarize builds the VecSummary blob for the given points.
func (vs *VecSummarizer) Summarize(view PointView, center uint32, points []uint32) ([]byte, error) {
	s := VecSummary{Count: len(points)}

	for _, p := range points {
		v, ok := view.Vector(p)
		if !ok {
			return nil, fmt.Errorf("summary: unknown point index %d", p)
		}

		if s.Moment1 == nil {
			s.Moment1 = make([]float64, len(v))
			s.Moment2 = make([]float64, len(v))
		}
		for i, x := range v {
			s.Moment1[i] += float64(x)
			s.Moment2[i] += float64(x) * float64(x)
		}

		if d := view.Distance(center, p); d > s.Spread {
			s.Spread = d
		}
	}

	return json.Marshal(&s)
}

// Bounds reports the spread recorded in a VecSummary blob.
func (vs *VecSummarizer) Bounds(data []byte) (float64, bool) {
	var s VecSummary
	if err := json.Unmarshal(data, &s); err != nil || s.Count == 0 {
		return 0, false
	}
	return s.Spread, true
}

// CategorySummary counts outliers per caller-defined label.
type CategorySummary struct {
	Counts map[string]int `json:"counts"`
	Spread float64        `json:"spread"`
}

// CategorySummarizer summarizes outliers as a label histogram.
// Label maps a point index to its category.
type CategorySummarizer struct {
	Label func(index uint32) string
}

// Summarize builds the CategorySummary blob for the given points.
func (cs *CategorySummarizer) Summarize(view PointView, center uint32, points []uint32) ([]byte, error) {
	if cs.Label == nil {
		return nil, fmt.Errorf("summary: no label function configured")
	}

	s := CategorySummary{Counts: make(map[string]int, 4)}
	for _, p := range points {
		s.Counts[cs.Label(p)]++
		if d := view.Distance(center, p); d > s.Spread {
			s.Spread = d
		}
	}

	return json.Marshal(&s)
}

// Bounds reports the spread recorded in a CategorySummary blob.
func (cs *CategorySummarizer) Bounds(data []byte) (float64, bool) {
	var s CategorySummary
	if err := json.Unmarshal(data, &s); err != nil || len(s.Counts) == 0 {
		return 0, false
	}
	return s.Spread, true
}
