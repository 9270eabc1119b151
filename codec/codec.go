// Package codec encodes cover trees to a stable, self-describing wire
// format and decodes them back into configuration and layers.
//
// The format is protobuf wire compatible, written with stable field
// numbers so readers can skip fields they do not know. Encoding is
// canonical: layers appear in descending scale order and nodes within a
// layer in ascending center order, defaults are omitted, so encoding a
// decoded tree reproduces the input bytes.
package codec

// Tree message field numbers.
const (
	treeFieldUseSingletons = 1
	treeFieldScaleBase     = 2
	treeFieldCutoff        = 3
	treeFieldResolution    = 4
	treeFieldPartitionType = 5
	treeFieldDim           = 6
	treeFieldCount         = 7
	treeFieldRootScale     = 8
	treeFieldRootIndex     = 9
	treeFieldLayer         = 10
)

// Layer message field numbers.
const (
	layerFieldScale = 1
	layerFieldNode  = 2
)

// Node message field numbers.
const (
	nodeFieldCenter       = 1
	nodeFieldScale        = 2
	nodeFieldCoverage     = 3
	nodeFieldParentCenter = 4
	nodeFieldParentScale  = 5
	nodeFieldChildScales  = 6
	nodeFieldChildCenters = 7
	nodeFieldNestedScale  = 8
	nodeFieldIsLeaf       = 9
	nodeFieldOutliers     = 10
	nodeFieldSummary      = 11
	nodeFieldRadius       = 12
)
