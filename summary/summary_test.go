package summary

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/hupe1980/covertree/distance"
	"github.com/hupe1980/covertree/pointstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type storeView struct {
	store *pointstore.SliceStore
}

func (v *storeView) Vector(index uint32) ([]float32, bool) {
	return v.store.Vector(index)
}

func (v *storeView) Distance(a, b uint32) float64 {
	va, _ := v.store.Vector(a)
	vb, _ := v.store.Vector(b)
	return distance.Euclidean(va, vb)
}

func TestVecSummarizer(t *testing.T) {
	store, err := pointstore.FromVectors([][]float32{
		{0, 0},
		{2, 0},
		{0, 2},
		{2, 2},
	})
	require.NoError(t, err)
	view := &storeView{store: store}

	vs := NewVecSummarizer()
	blob, err := vs.Summarize(view, 0, []uint32{1, 2, 3})
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	spread, ok := vs.Bounds(blob)
	require.True(t, ok)
	// Farthest summarized point from center 0 is (2,2).
	assert.InDelta(t, 2.8284271, spread, 1e-6)

	var s VecSummary
	require.NoError(t, json.Unmarshal(blob, &s))
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.0/3.0, s.Mean()[0], 1e-9)
	assert.InDelta(t, 4.0/3.0, s.Mean()[1], 1e-9)

	// Variance of {2,0,2} around 4/3 is 8/9.
	assert.InDelta(t, 8.0/9.0, s.Variance()[0], 1e-9)
}

func TestVecSummarizerUnknownPoint(t *testing.T) {
	store, err := pointstore.FromVectors([][]float32{{0, 0}})
	require.NoError(t, err)

	vs := NewVecSummarizer()
	_, err = vs.Summarize(&storeView{store: store}, 0, []uint32{42})
	assert.Error(t, err)
}

func TestVecSummarizerBoundsRejectsGarbage(t *testing.T) {
	vs := NewVecSummarizer()
	_, ok := vs.Bounds([]byte("not json"))
	assert.False(t, ok)
	_, ok = vs.Bounds([]byte(`{"count":0}`))
	assert.False(t, ok)
}

func TestCategorySummarizer(t *testing.T) {
	store, err := pointstore.FromVectors([][]float32{
		{0, 0},
		{1, 0},
		{0, 1},
	})
	require.NoError(t, err)
	view := &storeView{store: store}

	cs := &CategorySummarizer{
		Label: func(index uint32) string { return fmt.Sprintf("c%d", index%2) },
	}

	blob, err := cs.Summarize(view, 0, []uint32{1, 2})
	require.NoError(t, err)

	var s CategorySummary
	require.NoError(t, json.Unmarshal(blob, &s))
	assert.Equal(t, map[string]int{"c1": 1, "c0": 1}, s.Counts)

	spread, ok := cs.Bounds(blob)
	require.True(t, ok)
	assert.InDelta(t, 1.0, spread, 1e-9)
}

func TestCategorySummarizerNoLabel(t *testing.T) {
	cs := &CategorySummarizer{}
	_, err := cs.Summarize(nil, 0, nil)
	assert.Error(t, err)
}
