// Package covertree provides a scale-indexed cover tree for exact nearest
// neighbor search in arbitrary metric spaces.
//
// Points live in an external pointstore.Store and are referenced by index;
// the tree stores structure only. Node radii follow a geometric ladder
// (scale_base raised to the node's scale index), descending insertion keeps
// every subtree inside each ancestor's ball, and queries use that
// containment for exact pruning.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	store, _ := pointstore.NewSliceStore(2)
//	tree, _ := covertree.New(store)
//
//	for _, v := range vectors {
//	    idx, _ := store.Add(v)
//	    _ = tree.Insert(ctx, idx)
//	}
//
//	nearest, _ := tree.KNNSearch(ctx, query, 10)
//	within, _ := tree.RadiusSearch(ctx, query, 0.5)
//
// # Modes
//
// In aggregate mode (the default) a node buckets up to cutoff points and
// splits the bucket into finer-scale children on overflow; at the
// resolution floor the bucket grows without splitting and only its summary
// is maintained. In singleton mode every point is its own node and a
// node's center reappears as a nested self-child one scale down.
//
// # Persistence
//
// The codec package encodes a tree to a stable wire format and the
// persistence package adds framing, checksums, compression and blob store
// mirroring:
//
//	data, _ := codec.Encode(tree)
//	cfg, layers, _ := codec.Decode(data)
//	tree, _ = covertree.Rebuild(store, cfg, layers)
package covertree
