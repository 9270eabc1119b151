package covertree

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/covertree/pointstore"
	"github.com/hupe1980/covertree/testutil"
)

func TestPartitionTypes(t *testing.T) {
	assert.Equal(t, []string{"even", "farthest", "kmeans", "nearest"}, PartitionTypes())
}

func TestPartitionStrategies(t *testing.T) {
	rng := testutil.NewRNG(31)
	vectors := testutil.ClusteredVectors(rng, 64, 2, 4, 0.5)

	store, err := pointstore.FromVectors(vectors)
	require.NoError(t, err)

	for name, fn := range partitionStrategies {
		t.Run(name, func(t *testing.T) {
			tree, err := New(store, WithPartitionType(name))
			require.NoError(t, err)

			parent := &Node{Center: 0, Scale: 1, NestedScale: NoScale}
			childScale := int32(0)

			points := make([]uint32, 0, 63)
			for i := uint32(1); i < 64; i++ {
				points = append(points, i)
			}

			groups, err := fn(tree, parent, points, childScale)
			require.NoError(t, err)
			require.True(t, partitionComplete(groups, len(points)))

			radius := math.Pow(2, float64(childScale))

			var all []uint32
			for gi, g := range groups {
				require.NotEmpty(t, g)
				all = append(all, g...)

				// Every group member lies within the center's child ball.
				for _, p := range g[1:] {
					assert.LessOrEqual(t, tree.distIdx(g[0], p), radius)
				}
				// Centers are pairwise separated.
				for _, other := range groups[:gi] {
					assert.Greater(t, tree.distIdx(other[0], g[0]), radius)
				}
			}

			sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
			require.Len(t, all, len(points))
			for i, p := range all {
				assert.Equal(t, uint32(i+1), p)
			}
		})
	}
}

func TestRebalanceRespectsStrategy(t *testing.T) {
	rng := testutil.NewRNG(37)
	vectors := testutil.ClusteredVectors(rng, 120, 2, 6, 0.4)

	for _, name := range PartitionTypes() {
		t.Run(name, func(t *testing.T) {
			tree, _ := newTestTree(t, vectors, WithPartitionType(name), WithCutoff(4))

			assert.Equal(t, uint64(120), tree.Count())
			require.NoError(t, tree.Validate())

			stats := tree.Stats()
			assert.Greater(t, stats.Nodes, 1, "cutoff overflow must have split buckets")
		})
	}
}
