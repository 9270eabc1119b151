package codec

import (
	"math"
	"sort"

	"google.golang.org/protobuf/encoding/protowire"

	covertree "github.com/hupe1980/covertree"
)

// Encode serializes the tree into its canonical wire form.
func Encode(t *covertree.Tree) ([]byte, error) {
	cfg := t.Config()

	var buf []byte

	if cfg.UseSingletons {
		buf = protowire.AppendTag(buf, treeFieldUseSingletons, protowire.VarintType)
		buf = protowire.AppendVarint(buf, 1)
	}
	buf = protowire.AppendTag(buf, treeFieldScaleBase, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(cfg.ScaleBase))
	if cfg.Cutoff != 0 {
		buf = protowire.AppendTag(buf, treeFieldCutoff, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(cfg.Cutoff))
	}
	if cfg.Resolution != 0 {
		buf = appendSint32(buf, treeFieldResolution, cfg.Resolution)
	}
	if cfg.PartitionType != "" {
		buf = protowire.AppendTag(buf, treeFieldPartitionType, protowire.BytesType)
		buf = protowire.AppendString(buf, cfg.PartitionType)
	}
	if cfg.Dim != 0 {
		buf = protowire.AppendTag(buf, treeFieldDim, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(cfg.Dim))
	}
	if cfg.Count != 0 {
		buf = protowire.AppendTag(buf, treeFieldCount, protowire.VarintType)
		buf = protowire.AppendVarint(buf, cfg.Count)
	}
	if cfg.Count > 0 {
		if cfg.RootScale != 0 {
			buf = appendSint32(buf, treeFieldRootScale, cfg.RootScale)
		}
		if cfg.RootIndex != 0 {
			buf = protowire.AppendTag(buf, treeFieldRootIndex, protowire.VarintType)
			buf = protowire.AppendVarint(buf, uint64(cfg.RootIndex))
		}
	}

	for _, layer := range t.Layers() {
		buf = protowire.AppendTag(buf, treeFieldLayer, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeLayer(layer, cfg))
	}

	return buf, nil
}

func encodeLayer(layer *covertree.Layer, cfg covertree.Config) []byte {
	var buf []byte

	if layer.Scale != 0 {
		buf = appendSint32(buf, layerFieldScale, layer.Scale)
	}

	nodes := make([]*covertree.Node, len(layer.Nodes))
	copy(nodes, layer.Nodes)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Center < nodes[j].Center })

	for _, n := range nodes {
		buf = protowire.AppendTag(buf, layerFieldNode, protowire.BytesType)
		buf = protowire.AppendBytes(buf, encodeNode(n, cfg))
	}
	return buf
}

func encodeNode(n *covertree.Node, cfg covertree.Config) []byte {
	var buf []byte
	isRoot := n.Scale == cfg.RootScale && n.Center == cfg.RootIndex

	if n.Center != 0 {
		buf = protowire.AppendTag(buf, nodeFieldCenter, protowire.VarintType)
		buf = protowire.AppendVarint(buf, uint64(n.Center))
	}
	if n.Scale != 0 {
		buf = appendSint32(buf, nodeFieldScale, n.Scale)
	}
	if n.CoverageCount != 0 {
		buf = protowire.AppendTag(buf, nodeFieldCoverage, protowire.VarintType)
		buf = protowire.AppendVarint(buf, n.CoverageCount)
	}

	if !isRoot {
		if n.ParentCenter != 0 {
			buf = protowire.AppendTag(buf, nodeFieldParentCenter, protowire.VarintType)
			buf = protowire.AppendVarint(buf, uint64(n.ParentCenter))
		}
		if n.ParentScale != 0 {
			buf = appendSint32(buf, nodeFieldParentScale, n.ParentScale)
		}
	}

	if len(n.Children) > 0 {
		var scales, centers []byte
		for _, ck := range n.Children {
			scales = protowire.AppendVarint(scales, protowire.EncodeZigZag(int64(ck.Scale)))
			centers = protowire.AppendVarint(centers, uint64(ck.Center))
		}
		buf = protowire.AppendTag(buf, nodeFieldChildScales, protowire.BytesType)
		buf = protowire.AppendBytes(buf, scales)
		buf = protowire.AppendTag(buf, nodeFieldChildCenters, protowire.BytesType)
		buf = protowire.AppendBytes(buf, centers)
	}

	if n.NestedScale != covertree.NoScale {
		buf = appendSint32(buf, nodeFieldNestedScale, n.NestedScale)
	}

	if n.IsLeaf() {
		buf = protowire.AppendTag(buf, nodeFieldIsLeaf, protowire.VarintType)
		buf = protowire.AppendVarint(buf, 1)
	}

	if len(n.Outliers) > 0 {
		var packed []byte
		for _, p := range n.Outliers {
			packed = protowire.AppendVarint(packed, uint64(p))
		}
		buf = protowire.AppendTag(buf, nodeFieldOutliers, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}
	if len(n.OutlierSummary) > 0 {
		buf = protowire.AppendTag(buf, nodeFieldSummary, protowire.BytesType)
		buf = protowire.AppendBytes(buf, n.OutlierSummary)
	}

	// The effective radius is always written so readers never have to
	// recompute the scale ladder.
	buf = protowire.AppendTag(buf, nodeFieldRadius, protowire.Fixed64Type)
	buf = protowire.AppendFixed64(buf, math.Float64bits(n.Radius(cfg.ScaleBase)))

	return buf
}

func appendSint32(buf []byte, field protowire.Number, v int32) []byte {
	buf = protowire.AppendTag(buf, field, protowire.VarintType)
	return protowire.AppendVarint(buf, protowire.EncodeZigZag(int64(v)))
}
