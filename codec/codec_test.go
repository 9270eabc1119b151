package codec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	covertree "github.com/hupe1980/covertree"
	"github.com/hupe1980/covertree/pointstore"
	"github.com/hupe1980/covertree/testutil"
)

func buildTree(t *testing.T, n int, optFns ...func(o *covertree.Options)) (*covertree.Tree, *pointstore.SliceStore) {
	t.Helper()

	rng := testutil.NewRNG(int64(n))
	vectors := testutil.UniformVectors(rng, n, 2, 5)

	store, err := pointstore.FromVectors(vectors)
	require.NoError(t, err)

	tree, err := covertree.New(store, optFns...)
	require.NoError(t, err)
	for i := range vectors {
		require.NoError(t, tree.Insert(context.Background(), uint32(i)))
	}
	return tree, store
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tree, store := buildTree(t, 100, covertree.WithCutoff(4))

	data, err := Encode(tree)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)

	want := tree.Config()
	assert.Equal(t, want, cfg)

	rebuilt, err := covertree.Rebuild(store, cfg, layers)
	require.NoError(t, err)
	assert.Equal(t, tree.Count(), rebuilt.Count())
	require.NoError(t, rebuilt.Validate())

	// A rebuilt tree must answer queries identically.
	query := []float32{0.5, -1}
	origResults, err := tree.KNNSearch(context.Background(), query, 10)
	require.NoError(t, err)
	rebuiltResults, err := rebuilt.KNNSearch(context.Background(), query, 10)
	require.NoError(t, err)
	assert.Equal(t, origResults, rebuiltResults)
}

func TestEncodeIsCanonical(t *testing.T) {
	tree, store := buildTree(t, 80, covertree.WithCutoff(3))

	data, err := Encode(tree)
	require.NoError(t, err)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)

	rebuilt, err := covertree.Rebuild(store, cfg, layers)
	require.NoError(t, err)

	again, err := Encode(rebuilt)
	require.NoError(t, err)
	assert.Equal(t, data, again, "re-encoding a decoded tree must be byte-identical")
}

func TestEncodeEmptyTree(t *testing.T) {
	store, err := pointstore.NewSliceStore(2)
	require.NoError(t, err)

	tree, err := covertree.New(store)
	require.NoError(t, err)

	data, err := Encode(tree)
	require.NoError(t, err)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cfg.Count)
	assert.Empty(t, layers)

	rebuilt, err := covertree.Rebuild(store, cfg, layers)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), rebuilt.Count())
}

func TestDecodeSingletonTree(t *testing.T) {
	tree, store := buildTree(t, 40, covertree.WithSingletons(), covertree.WithResolution(-20))

	data, err := Encode(tree)
	require.NoError(t, err)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, cfg.UseSingletons)

	rebuilt, err := covertree.Rebuild(store, cfg, layers)
	require.NoError(t, err)
	require.NoError(t, rebuilt.Validate())
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	tree, _ := buildTree(t, 20)

	data, err := Encode(tree)
	require.NoError(t, err)

	// Prepend an unknown varint field (number 15) to the tree message.
	extended := append([]byte{0x78, 0x2a}, data...)

	cfg, _, err := Decode(extended)
	require.NoError(t, err)
	assert.Equal(t, tree.Config(), cfg)
}

func TestDecodeCorruption(t *testing.T) {
	tree, _ := buildTree(t, 60, covertree.WithCutoff(3))

	data, err := Encode(tree)
	require.NoError(t, err)

	t.Run("truncated payload", func(t *testing.T) {
		_, _, err := Decode(data[:len(data)-3])
		var corrupt *covertree.ErrCorruptTree
		require.ErrorAs(t, err, &corrupt)
	})

	t.Run("garbage", func(t *testing.T) {
		_, _, err := Decode([]byte{0xff, 0xff, 0xff, 0xff})
		require.Error(t, err)
	})
}

func TestRebuildRejectsCoveringViolation(t *testing.T) {
	tree, store := buildTree(t, 50, covertree.WithCutoff(3))

	data, err := Encode(tree)
	require.NoError(t, err)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)

	// Shrink a populated node's radius below its bucket spread so the
	// persisted structure no longer covers its own points.
	var victim *covertree.Node
	for _, layer := range layers {
		for _, n := range layer.Nodes {
			if len(n.Outliers) > 0 || len(n.Children) > 0 {
				victim = n
				break
			}
		}
	}
	require.NotNil(t, victim)
	victim.RadiusOverride = 1e-300

	_, err = covertree.Rebuild(store, cfg, layers)
	var corrupt *covertree.ErrCorruptTree
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 1, corrupt.Invariant)
}

func TestDecodeLeafFlagViolation(t *testing.T) {
	// Hand-build a node message whose leaf flag disagrees with its child
	// list: children present and is_leaf set.
	tree, _ := buildTree(t, 30, covertree.WithCutoff(2))

	data, err := Encode(tree)
	require.NoError(t, err)

	cfg, layers, err := Decode(data)
	require.NoError(t, err)
	require.NotEmpty(t, layers)

	// Re-encode manually with a tampered node.
	var internal *covertree.Node
	for _, layer := range layers {
		for _, n := range layer.Nodes {
			if !n.IsLeaf() {
				internal = n
				break
			}
		}
	}
	require.NotNil(t, internal, "tree must have an internal node")

	raw := encodeNode(internal, cfg)
	// Append is_leaf=true (field 9, varint).
	raw = append(raw, 0x48, 0x01)

	_, err = decodeNode(raw, cfg)
	var corrupt *covertree.ErrCorruptTree
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, 4, corrupt.Invariant)
}
