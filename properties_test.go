package covertree

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/covertree/pointstore"
	"github.com/hupe1980/covertree/testutil"
)

func TestSaturationAtResolutionFloor(t *testing.T) {
	ctx := context.Background()

	// Everything lands in the root ball and the floor forbids children,
	// so the bucket grows past the cutoff and the node saturates.
	vectors := [][]float32{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1}, {0.05, 0.05}, {0.2, 0.1},
	}

	store, err := pointstore.FromVectors(vectors)
	require.NoError(t, err)

	tree, err := New(store, WithCutoff(2), WithResolution(0), WithRootScale(0))
	require.NoError(t, err)

	for i := range vectors {
		require.NoError(t, tree.Insert(ctx, uint32(i)))
	}
	require.NoError(t, tree.Validate())

	root, ok := tree.Root()
	require.True(t, ok)
	assert.Equal(t, StateSaturated, root.State(2, 0))
	assert.Empty(t, root.Children)
	assert.Len(t, root.Outliers, 5)
	assert.NotEmpty(t, root.OutlierSummary, "saturated bucket keeps a summary")

	stats := tree.Stats()
	assert.Equal(t, 1, stats.Saturated)

	// Saturated buckets must still be searchable.
	results, err := tree.KNNSearch(ctx, []float32{0.09, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, uint32(1), results[0].Index)
}

func TestExactDuplicateVectors(t *testing.T) {
	ctx := context.Background()

	// Distinct indexes with identical coordinates cannot be separated at
	// any scale; they must fold into buckets instead of looping.
	vectors := make([][]float32, 12)
	for i := range vectors {
		vectors[i] = []float32{1, 1}
	}

	t.Run("aggregate mode", func(t *testing.T) {
		store, err := pointstore.FromVectors(vectors)
		require.NoError(t, err)

		tree, err := New(store, WithCutoff(3), WithResolution(-8))
		require.NoError(t, err)

		for i := range vectors {
			require.NoError(t, tree.Insert(ctx, uint32(i)))
		}
		assert.Equal(t, uint64(12), tree.Count())
		require.NoError(t, tree.Validate())

		results, err := tree.KNNSearch(ctx, []float32{1, 1}, 12)
		require.NoError(t, err)
		assert.Len(t, results, 12)
	})

	t.Run("singleton mode", func(t *testing.T) {
		store, err := pointstore.FromVectors(vectors)
		require.NoError(t, err)

		tree, err := New(store, WithSingletons(), WithResolution(-8))
		require.NoError(t, err)

		for i := range vectors {
			require.NoError(t, tree.Insert(ctx, uint32(i)))
		}
		assert.Equal(t, uint64(12), tree.Count())
		require.NoError(t, tree.Validate())
	})
}

func TestNodeStateLifecycle(t *testing.T) {
	rng := testutil.NewRNG(41)
	vectors := testutil.GaussianVectors(rng, 60, 2, 2)

	tree, _ := newTestTree(t, vectors, WithCutoff(3))

	var leaves, internals int
	for _, layer := range tree.Layers() {
		for _, n := range layer.Nodes {
			switch n.State(3, -30) {
			case StateActiveLeaf:
				leaves++
				assert.True(t, n.IsLeaf())
			case StateActiveInternal:
				internals++
				assert.False(t, n.IsLeaf())
			}
		}
	}
	assert.Greater(t, leaves, 0)
	assert.Greater(t, internals, 0)
}

func TestSubtreeContainment(t *testing.T) {
	// Every point in a node's subtree, buckets included, must lie inside
	// the node's ball. Query pruning is only exact if this holds.
	rng := testutil.NewRNG(43)
	vectors := testutil.UniformVectors(rng, 200, 3, 6)

	tree, _ := newTestTree(t, vectors, WithCutoff(4))
	require.NoError(t, tree.Validate())

	root, ok := tree.Root()
	require.True(t, ok)

	var check func(n *Node, ancestors []*Node)
	check = func(n *Node, ancestors []*Node) {
		for _, a := range ancestors {
			assert.LessOrEqual(t, tree.distIdx(a.Center, n.Center), a.Radius(2.0))
			for _, p := range n.Outliers {
				assert.LessOrEqual(t, tree.distIdx(a.Center, p), a.Radius(2.0))
			}
		}
		next := append(ancestors, n)
		for _, ck := range n.Children {
			child, ok := tree.NodeAt(ck.Scale, ck.Center)
			require.True(t, ok)
			check(child, next)
		}
	}
	check(root, nil)
}
