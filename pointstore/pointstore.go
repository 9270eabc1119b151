// Package pointstore defines the read-only point repository a cover tree
// indexes into. The tree never owns point coordinates; it only refers to
// points by index.
package pointstore

import (
	"fmt"
	"sync"
)

// Store is an indexed, read-only point repository.
//
// Implementations must be safe for concurrent reads. The returned slices
// may alias internal memory; callers must not modify them.
type Store interface {
	// Vector returns the coordinates of the point at the given index.
	// The second return value is false if the index is unknown.
	Vector(index uint32) ([]float32, bool)

	// Dim returns the dimensionality of all points in the store.
	Dim() int

	// Len returns the number of points in the store.
	Len() int
}

// Compile-time check to ensure SliceStore satisfies the Store interface.
var _ Store = (*SliceStore)(nil)

// SliceStore is an in-memory Store backed by a flat float32 array.
// Point index i maps to the i-th vector in insertion order.
type SliceStore struct {
	mu   sync.RWMutex
	data []float32
	dim  int
}

// NewSliceStore creates an empty store for points of the given dimension.
func NewSliceStore(dim int) (*SliceStore, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("pointstore: invalid dimension: %d", dim)
	}
	return &SliceStore{dim: dim}, nil
}

// FromVectors builds a SliceStore from a batch of vectors.
// All vectors must share the same non-zero dimension.
func FromVectors(vectors [][]float32) (*SliceStore, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("pointstore: no vectors given")
	}
	s, err := NewSliceStore(len(vectors[0]))
	if err != nil {
		return nil, err
	}
	for _, v := range vectors {
		if _, err := s.Add(v); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a point and returns its index.
// The vector is copied; later mutation by the caller has no effect.
func (s *SliceStore) Add(v []float32) (uint32, error) {
	if len(v) != s.dim {
		return 0, fmt.Errorf("pointstore: dimension mismatch: expected %d, got %d", s.dim, len(v))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	index := uint32(len(s.data) / s.dim)
	s.data = append(s.data, v...)
	return index, nil
}

// Vector returns the coordinates of the point at the given index.
func (s *SliceStore) Vector(index uint32) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	off := int(index) * s.dim
	if off < 0 || off+s.dim > len(s.data) {
		return nil, false
	}
	return s.data[off : off+s.dim : off+s.dim], true
}

// Dim returns the dimensionality of the stored points.
func (s *SliceStore) Dim() int { return s.dim }

// Len returns the number of stored points.
func (s *SliceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data) / s.dim
}
