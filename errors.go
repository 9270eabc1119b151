package covertree

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyTree is returned when a query runs against a tree with no
	// indexed points.
	ErrEmptyTree = errors.New("query on empty tree")

	// ErrOutOfRange is returned when a point falls outside the root's
	// coverage and root expansion is disallowed by policy.
	ErrOutOfRange = errors.New("point outside root coverage")

	// ErrRootExpansionRequired is returned under the manual growth policy
	// when inserting a point would require a coarser root. The caller may
	// call GrowRoot and retry.
	ErrRootExpansionRequired = errors.New("root expansion required")

	// ErrDuplicatePoint is returned when a point index is inserted twice.
	ErrDuplicatePoint = errors.New("point already indexed")

	// ErrUnknownPoint is returned when a point index cannot be resolved
	// by the backing point store.
	ErrUnknownPoint = errors.New("unknown point index")

	// ErrInvalidK is returned when k is not positive.
	ErrInvalidK = errors.New("k must be positive")
)

// ErrInvalidConfig indicates an invalid tree configuration.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// ErrDimensionMismatch indicates a query/point dimensionality mismatch.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrCorruptTree indicates a persisted tree that violates one of the six
// structural invariants. It is fatal: the codec never repairs a corrupt
// tree. Invariant numbering follows the persisted-format contract:
//
//	1 covering, 2 separation, 3 nesting, 4 leaf consistency,
//	5 cutoff/outliers, 6 acyclicity and single ownership.
type ErrCorruptTree struct {
	Invariant   int
	ScaleIndex  int32
	CenterIndex uint32
	Reason      string
}

func (e *ErrCorruptTree) Error() string {
	return fmt.Sprintf("corrupt tree: invariant %d violated at node (scale=%d, center=%d): %s",
		e.Invariant, e.ScaleIndex, e.CenterIndex, e.Reason)
}
