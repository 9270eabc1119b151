package covertree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/covertree/distance"
	"github.com/hupe1980/covertree/pointstore"
	"github.com/hupe1980/covertree/testutil"
)

func TestKNNSearchEmptyTree(t *testing.T) {
	store, err := pointstore.NewSliceStore(2)
	require.NoError(t, err)

	tree, err := New(store)
	require.NoError(t, err)

	_, err = tree.KNNSearch(context.Background(), []float32{0, 0}, 3)
	require.ErrorIs(t, err, ErrEmptyTree)

	_, err = tree.RadiusSearch(context.Background(), []float32{0, 0}, 1.0)
	require.ErrorIs(t, err, ErrEmptyTree)
}

func TestKNNSearchValidation(t *testing.T) {
	tree, _ := newTestTree(t, [][]float32{{1, 2}, {3, 4}})

	t.Run("invalid k", func(t *testing.T) {
		_, err := tree.KNNSearch(context.Background(), []float32{0, 0}, 0)
		require.ErrorIs(t, err, ErrInvalidK)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := tree.KNNSearch(context.Background(), []float32{0, 0, 0}, 1)
		var dimErr *ErrDimensionMismatch
		require.ErrorAs(t, err, &dimErr)
		assert.Equal(t, 2, dimErr.Expected)
		assert.Equal(t, 3, dimErr.Actual)
	})

	t.Run("negative radius", func(t *testing.T) {
		_, err := tree.RadiusSearch(context.Background(), []float32{0, 0}, -1)
		var cfgErr *ErrInvalidConfig
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("k larger than count", func(t *testing.T) {
		results, err := tree.KNNSearch(context.Background(), []float32{0, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})
}

func TestKNNSearchMatchesBruteForce(t *testing.T) {
	ctx := context.Background()

	sizes := []int{10, 100, 500}
	ks := []int{1, 5}

	for _, size := range sizes {
		rng := testutil.NewRNG(int64(size))
		vectors := testutil.ClusteredVectors(rng, size, 3, 5, 0.8)
		queries := testutil.UniformVectors(rng, 10, 3, 10)

		tree, store := newTestTree(t, vectors, WithCutoff(4))
		require.NoError(t, tree.Validate())

		for _, k := range append(ks, size) {
			for _, query := range queries {
				want := testutil.BruteForceKNN(store, distance.Euclidean, query, k)

				got, err := tree.KNNSearch(ctx, query, k)
				require.NoError(t, err)
				require.Len(t, got, len(want))

				for i := range want {
					assert.Equal(t, want[i].Index, got[i].Index)
					assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
				}
			}
		}
	}
}

func TestKNNSearchMatchesBruteForceLargeSet(t *testing.T) {
	ctx := context.Background()

	const size = 10000
	rng := testutil.NewRNG(size)
	vectors := testutil.ClusteredVectors(rng, size, 3, 20, 0.8)
	queries := testutil.UniformVectors(rng, 5, 3, 10)

	tree, store := newTestTree(t, vectors, WithCutoff(4))
	require.NoError(t, tree.Validate())

	for _, k := range []int{1, 5, 50} {
		for _, query := range queries {
			want := testutil.BruteForceKNN(store, distance.Euclidean, query, k)

			got, err := tree.KNNSearch(ctx, query, k)
			require.NoError(t, err)
			require.Len(t, got, len(want))

			for i := range want {
				assert.Equal(t, want[i].Index, got[i].Index)
				assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
			}
		}
	}
}

func TestRadiusSearchMatchesBruteForce(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(42)
	vectors := testutil.GaussianVectors(rng, 300, 2, 3)
	queries := testutil.UniformVectors(rng, 10, 2, 5)

	// Two insertion orders must produce identical query results.
	forward, store := newTestTree(t, vectors, WithCutoff(4))

	reversed, err := New(store, WithCutoff(4))
	require.NoError(t, err)
	for i := len(vectors) - 1; i >= 0; i-- {
		require.NoError(t, reversed.Insert(ctx, uint32(i)))
	}
	require.NoError(t, reversed.Validate())

	for _, radius := range []float64{0.5, 2.0, 10.0} {
		for _, query := range queries {
			want := testutil.BruteForceRadius(store, distance.Euclidean, query, radius)

			for _, tree := range []*Tree{forward, reversed} {
				got, err := tree.RadiusSearch(ctx, query, radius)
				require.NoError(t, err)
				require.Len(t, got, len(want))

				for i := range want {
					assert.Equal(t, want[i].Index, got[i].Index)
					assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-9)
				}
			}
		}
	}
}

func TestSearchSingletonMode(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(23)
	vectors := testutil.UniformVectors(rng, 80, 2, 5)

	tree, store := newTestTree(t, vectors, WithSingletons(), WithResolution(-20))
	require.NoError(t, tree.Validate())

	query := []float32{1, 1}
	want := testutil.BruteForceKNN(store, distance.Euclidean, query, 7)

	got, err := tree.KNNSearch(ctx, query, 7)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Index, got[i].Index)
	}
}

func TestSearchManhattanMetric(t *testing.T) {
	ctx := context.Background()

	rng := testutil.NewRNG(29)
	vectors := testutil.UniformVectors(rng, 150, 3, 4)

	tree, store := newTestTree(t, vectors, WithMetric(distance.MetricManhattan), WithCutoff(6))
	require.NoError(t, tree.Validate())

	query := []float32{0.5, -0.5, 1}
	want := testutil.BruteForceKNN(store, distance.Manhattan, query, 5)

	got, err := tree.KNNSearch(ctx, query, 5)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Index, got[i].Index)
	}
}
