package covertree

import "math"

// NoScale is the sentinel for an absent nested_scale_index.
const NoScale = int32(math.MinInt32)

// NodeKey identifies a node by its (scale, center) composite key.
// Parent and child references are lookup keys, never owning pointers.
type NodeKey struct {
	Scale  int32
	Center uint32
}

// NodeState describes a node's position in its lifecycle.
type NodeState int

const (
	// StateUnassigned is the zero state of a node before it is linked
	// into a tree.
	StateUnassigned NodeState = iota

	// StateActiveLeaf is a linked node without children.
	StateActiveLeaf

	// StateActiveInternal is a linked node with children.
	StateActiveInternal

	// StateSaturated is a node at the resolution floor whose bucket
	// exceeded the cutoff. Saturation is terminal for the node's own
	// bucket: further points only enlarge its outlier summary.
	StateSaturated
)

func (s NodeState) String() string {
	switch s {
	case StateUnassigned:
		return "Unassigned"
	case StateActiveLeaf:
		return "ActiveLeaf"
	case StateActiveInternal:
		return "ActiveInternal"
	case StateSaturated:
		return "Saturated"
	default:
		return "Unknown"
	}
}

// Node is the atomic tree unit: a center point at a scale, with child keys
// and, when the cutoff policy truncated its subtree, an outlier set.
type Node struct {
	// Center is the index of the owning point.
	Center uint32

	// Scale is the scale index; the covering radius is ScaleBase^Scale.
	Scale int32

	// CoverageCount is the number of points dominated by this subtree.
	CoverageCount uint64

	// ParentCenter and ParentScale form the back-reference to the parent.
	// They are lookup keys, not ownership; the root's are meaningless.
	ParentCenter uint32
	ParentScale  int32

	// Children holds the keys of the child nodes, in creation order.
	Children []NodeKey

	// NestedScale is the scale at which this center reappears as its own
	// child (the nesting invariant of singleton mode), or NoScale.
	NestedScale int32

	// Outliers holds the point indexes folded into this node's bucket.
	Outliers []uint32

	// OutlierSummary is the opaque summary blob describing Outliers.
	OutlierSummary []byte

	// RadiusOverride, when > 0, replaces the derived covering radius with
	// a tightened bound. Zero means derived.
	RadiusOverride float64
}

// Key returns the node's composite identity.
func (n *Node) Key() NodeKey {
	return NodeKey{Scale: n.Scale, Center: n.Center}
}

// IsLeaf reports whether the node has no children. A leaf may still carry
// outliers.
func (n *Node) IsLeaf() bool { return len(n.Children) == 0 }

// Radius returns the covering radius: ScaleBase^Scale unless an explicit
// override is set.
func (n *Node) Radius(scaleBase float64) float64 {
	if n.RadiusOverride > 0 {
		return n.RadiusOverride
	}
	return math.Pow(scaleBase, float64(n.Scale))
}

// State reports the node's lifecycle state under the given cutoff and
// resolution configuration.
func (n *Node) State(cutoff uint32, resolution int32) NodeState {
	if n.Scale-1 < resolution && uint64(len(n.Outliers)) > uint64(cutoff) {
		return StateSaturated
	}
	if len(n.Children) > 0 {
		return StateActiveInternal
	}
	return StateActiveLeaf
}
