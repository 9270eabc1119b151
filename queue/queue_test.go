package queue

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinHeapOrdering(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	pq := NewMin(16)
	for i := 0; i < 100; i++ {
		pq.Push(Item{Point: uint32(i), Distance: rng.Float64()})
	}

	prev := -1.0
	for pq.Len() > 0 {
		item, ok := pq.Pop()
		require.True(t, ok)
		assert.GreaterOrEqual(t, item.Distance, prev)
		prev = item.Distance
	}

	_, ok := pq.Pop()
	assert.False(t, ok)
}

func TestMaxHeapTop(t *testing.T) {
	pq := NewMax(4)
	pq.Push(Item{Point: 1, Distance: 1.0})
	pq.Push(Item{Point: 2, Distance: 3.0})
	pq.Push(Item{Point: 3, Distance: 2.0})

	top, ok := pq.Top()
	require.True(t, ok)
	assert.Equal(t, uint32(2), top.Point)
}

func TestPushBounded(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	dists := make([]float64, 50)
	pq := NewMax(5)
	for i := range dists {
		dists[i] = rng.Float64()
		pq.PushBounded(Item{Point: uint32(i), Distance: dists[i]}, 5)
	}
	require.Equal(t, 5, pq.Len())

	sort.Float64s(dists)
	got := make([]float64, 0, 5)
	for pq.Len() > 0 {
		item, _ := pq.Pop()
		got = append(got, item.Distance)
	}
	sort.Float64s(got)
	assert.Equal(t, dists[:5], got)
}
