package covertree

import (
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

func nodeKey64(k NodeKey) uint64 {
	return uint64(uint32(k.Scale))<<32 | uint64(k.Center)
}

// Validate checks the structural invariants of the tree: covering,
// separation, nesting, cutoff accounting, coverage counts, acyclicity and
// single ownership. The first violation is returned as *ErrCorruptTree.
func (t *Tree) Validate() error {
	if !t.hasRoot {
		if len(t.nodes) > 0 {
			return &ErrCorruptTree{Invariant: 6, Reason: "nodes present without a root"}
		}
		return nil
	}

	root, ok := t.nodes[t.root]
	if !ok {
		return &ErrCorruptTree{Invariant: 6, ScaleIndex: t.root.Scale, CenterIndex: t.root.Center, Reason: "root node not found"}
	}
	if t.count > 0 && root.CoverageCount != t.count {
		return &ErrCorruptTree{
			Invariant: 6, ScaleIndex: root.Scale, CenterIndex: root.Center,
			Reason: fmt.Sprintf("root coverage %d differs from tree count %d", root.CoverageCount, t.count),
		}
	}

	visited := roaring64.New()
	if err := t.validateNode(root, visited); err != nil {
		return err
	}

	if visited.GetCardinality() != uint64(len(t.nodes)) {
		return &ErrCorruptTree{
			Invariant: 6,
			Reason: fmt.Sprintf("%d of %d nodes unreachable from the root",
				uint64(len(t.nodes))-visited.GetCardinality(), len(t.nodes)),
		}
	}

	return nil
}

func (t *Tree) validateNode(n *Node, visited *roaring64.Bitmap) error {
	if !visited.CheckedAdd(nodeKey64(n.Key())) {
		return &ErrCorruptTree{
			Invariant: 6, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: "node reachable through more than one parent",
		}
	}

	radius := n.Radius(t.opts.ScaleBase)
	coverage := uint64(len(n.Outliers))
	centerNested := false

	// In singleton mode buckets exist only at the resolution floor, where
	// points can no longer be decomposed into their own nodes.
	if t.opts.UseSingletons && len(n.Outliers) > 0 && n.Scale-1 >= t.opts.Resolution {
		return &ErrCorruptTree{
			Invariant: 5, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: "bucket entries above the resolution floor in singleton mode",
		}
	}
	if !t.opts.UseSingletons && n.State(t.opts.Cutoff, t.opts.Resolution) != StateSaturated &&
		len(n.Outliers) > int(t.opts.Cutoff) {
		return &ErrCorruptTree{
			Invariant: 5, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: fmt.Sprintf("bucket size %d exceeds cutoff %d above the resolution floor", len(n.Outliers), t.opts.Cutoff),
		}
	}
	if n.State(t.opts.Cutoff, t.opts.Resolution) == StateSaturated && len(n.OutlierSummary) == 0 {
		return &ErrCorruptTree{
			Invariant: 5, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: "saturated bucket without an outlier summary",
		}
	}

	for _, p := range n.Outliers {
		if d := t.distIdx(n.Center, p); d > radius {
			return &ErrCorruptTree{
				Invariant: 1, ScaleIndex: n.Scale, CenterIndex: n.Center,
				Reason: fmt.Sprintf("bucket point %d at distance %g outside radius %g", p, d, radius),
			}
		}
	}

	for i, ck := range n.Children {
		child, ok := t.nodes[ck]
		if !ok {
			return &ErrCorruptTree{
				Invariant: 6, ScaleIndex: n.Scale, CenterIndex: n.Center,
				Reason: fmt.Sprintf("child (scale=%d, center=%d) not found", ck.Scale, ck.Center),
			}
		}
		if ck.Scale >= n.Scale {
			return &ErrCorruptTree{
				Invariant: 6, ScaleIndex: ck.Scale, CenterIndex: ck.Center,
				Reason: fmt.Sprintf("child scale %d not finer than parent scale %d", ck.Scale, n.Scale),
			}
		}
		if child.ParentCenter != n.Center || child.ParentScale != n.Scale {
			return &ErrCorruptTree{
				Invariant: 6, ScaleIndex: ck.Scale, CenterIndex: ck.Center,
				Reason: "parent back-reference mismatch",
			}
		}

		if d := t.distIdx(n.Center, child.Center); d > radius {
			return &ErrCorruptTree{
				Invariant: 1, ScaleIndex: ck.Scale, CenterIndex: ck.Center,
				Reason: fmt.Sprintf("child center at distance %g outside parent radius %g", d, radius),
			}
		}

		// Separation only binds siblings on the same layer.
		sep := math.Pow(t.opts.ScaleBase, float64(ck.Scale))
		for _, sk := range n.Children[:i] {
			if sk.Scale != ck.Scale {
				continue
			}
			if d := t.distIdx(sk.Center, ck.Center); d <= sep && sk.Center != ck.Center {
				return &ErrCorruptTree{
					Invariant: 2, ScaleIndex: ck.Scale, CenterIndex: ck.Center,
					Reason: fmt.Sprintf("siblings %d and %d at distance %g within separation %g", sk.Center, ck.Center, d, sep),
				}
			}
		}

		if ck.Center == n.Center {
			if !t.opts.UseSingletons {
				return &ErrCorruptTree{
					Invariant: 3, ScaleIndex: ck.Scale, CenterIndex: ck.Center,
					Reason: "nested self-child in aggregate mode",
				}
			}
			if n.NestedScale != ck.Scale {
				return &ErrCorruptTree{
					Invariant: 3, ScaleIndex: n.Scale, CenterIndex: n.Center,
					Reason: fmt.Sprintf("nested scale %d does not record self-child at scale %d", n.NestedScale, ck.Scale),
				}
			}
			centerNested = true
		}

		if err := t.validateNode(child, visited); err != nil {
			return err
		}
		coverage += child.CoverageCount
	}

	if t.opts.UseSingletons && len(n.Children) > 0 && !centerNested {
		return &ErrCorruptTree{
			Invariant: 3, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: "internal node without a nested self-child",
		}
	}
	if t.opts.UseSingletons && n.NestedScale != NoScale && !centerNested {
		return &ErrCorruptTree{
			Invariant: 3, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: fmt.Sprintf("nested scale %d set but no self-child present", n.NestedScale),
		}
	}

	if !centerNested {
		coverage++
	}
	if n.CoverageCount != coverage {
		return &ErrCorruptTree{
			Invariant: 6, ScaleIndex: n.Scale, CenterIndex: n.Center,
			Reason: fmt.Sprintf("coverage count %d differs from recomputed %d", n.CoverageCount, coverage),
		}
	}

	return nil
}
