package codec

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	covertree "github.com/hupe1980/covertree"
)

// Decode parses wire bytes produced by Encode into the tree configuration
// and its layers. Unknown fields are skipped so newer writers stay
// readable. Structural inconsistencies visible at the wire level, such as
// a leaf flag disagreeing with the child list, fail with
// *covertree.ErrCorruptTree.
func Decode(data []byte) (covertree.Config, []*covertree.Layer, error) {
	cfg := covertree.Config{ScaleBase: 0}
	var layers []*covertree.Layer
	var rawLayers [][]byte

	for len(data) > 0 {
		field, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return cfg, nil, corrupt(0, 0, "malformed tree field tag")
		}
		data = data[n:]

		switch field {
		case treeFieldUseSingletons:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed use_singletons")
			}
			cfg.UseSingletons = v != 0
			data = data[n:]
		case treeFieldScaleBase:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed scale_base")
			}
			cfg.ScaleBase = math.Float64frombits(v)
			data = data[n:]
		case treeFieldCutoff:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed cutoff")
			}
			cfg.Cutoff = uint32(v)
			data = data[n:]
		case treeFieldResolution:
			v, n, err := consumeSint32(data, "resolution")
			if err != nil {
				return cfg, nil, err
			}
			cfg.Resolution = v
			data = data[n:]
		case treeFieldPartitionType:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed partition_type")
			}
			cfg.PartitionType = v
			data = data[n:]
		case treeFieldDim:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed dim")
			}
			cfg.Dim = uint32(v)
			data = data[n:]
		case treeFieldCount:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed count")
			}
			cfg.Count = v
			data = data[n:]
		case treeFieldRootScale:
			v, n, err := consumeSint32(data, "root_scale")
			if err != nil {
				return cfg, nil, err
			}
			cfg.RootScale = v
			data = data[n:]
		case treeFieldRootIndex:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed root_index")
			}
			cfg.RootIndex = uint32(v)
			data = data[n:]
		case treeFieldLayer:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, "malformed layer")
			}
			rawLayers = append(rawLayers, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(field, typ, data)
			if n < 0 {
				return cfg, nil, corrupt(0, 0, fmt.Sprintf("malformed unknown tree field %d", field))
			}
			data = data[n:]
		}
	}

	if cfg.ScaleBase <= 1 {
		return cfg, nil, corrupt(0, 0, fmt.Sprintf("scale base %g out of range", cfg.ScaleBase))
	}

	for _, raw := range rawLayers {
		layer, err := decodeLayer(raw, cfg)
		if err != nil {
			return cfg, nil, err
		}
		layers = append(layers, layer)
	}

	return cfg, layers, nil
}

func decodeLayer(data []byte, cfg covertree.Config) (*covertree.Layer, error) {
	layer := &covertree.Layer{}
	var rawNodes [][]byte

	for len(data) > 0 {
		field, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, corrupt(0, 0, "malformed layer field tag")
		}
		data = data[n:]

		switch field {
		case layerFieldScale:
			v, n, err := consumeSint32(data, "layer scale")
			if err != nil {
				return nil, err
			}
			layer.Scale = v
			data = data[n:]
		case layerFieldNode:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, corrupt(layer.Scale, 0, "malformed node")
			}
			rawNodes = append(rawNodes, v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(field, typ, data)
			if n < 0 {
				return nil, corrupt(layer.Scale, 0, fmt.Sprintf("malformed unknown layer field %d", field))
			}
			data = data[n:]
		}
	}

	for _, raw := range rawNodes {
		node, err := decodeNode(raw, cfg)
		if err != nil {
			return nil, err
		}
		if node.Scale != layer.Scale {
			return nil, &covertree.ErrCorruptTree{
				Invariant: 6, ScaleIndex: node.Scale, CenterIndex: node.Center,
				Reason: fmt.Sprintf("node scale %d differs from layer scale %d", node.Scale, layer.Scale),
			}
		}
		layer.Nodes = append(layer.Nodes, node)
	}

	return layer, nil
}

func decodeNode(data []byte, cfg covertree.Config) (*covertree.Node, error) {
	node := &covertree.Node{NestedScale: covertree.NoScale}

	var (
		childScales  []int32
		childCenters []uint32
		isLeaf       bool
		hasRadius    bool
		radius       float64
	)

	for len(data) > 0 {
		field, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, corrupt(node.Scale, node.Center, "malformed node field tag")
		}
		data = data[n:]

		switch field {
		case nodeFieldCenter:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed center")
			}
			node.Center = uint32(v)
			data = data[n:]
		case nodeFieldScale:
			v, n, err := consumeSint32(data, "node scale")
			if err != nil {
				return nil, err
			}
			node.Scale = v
			data = data[n:]
		case nodeFieldCoverage:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed coverage count")
			}
			node.CoverageCount = v
			data = data[n:]
		case nodeFieldParentCenter:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed parent center")
			}
			node.ParentCenter = uint32(v)
			data = data[n:]
		case nodeFieldParentScale:
			v, n, err := consumeSint32(data, "parent scale")
			if err != nil {
				return nil, err
			}
			node.ParentScale = v
			data = data[n:]
		case nodeFieldChildScales:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed child scales")
			}
			data = data[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, corrupt(node.Scale, node.Center, "malformed packed child scale")
				}
				childScales = append(childScales, int32(protowire.DecodeZigZag(v)))
				packed = packed[m:]
			}
		case nodeFieldChildCenters:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed child centers")
			}
			data = data[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, corrupt(node.Scale, node.Center, "malformed packed child center")
				}
				childCenters = append(childCenters, uint32(v))
				packed = packed[m:]
			}
		case nodeFieldNestedScale:
			v, n, err := consumeSint32(data, "nested scale")
			if err != nil {
				return nil, err
			}
			node.NestedScale = v
			data = data[n:]
		case nodeFieldIsLeaf:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed leaf flag")
			}
			isLeaf = v != 0
			data = data[n:]
		case nodeFieldOutliers:
			packed, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed outliers")
			}
			data = data[n:]
			for len(packed) > 0 {
				v, m := protowire.ConsumeVarint(packed)
				if m < 0 {
					return nil, corrupt(node.Scale, node.Center, "malformed packed outlier")
				}
				node.Outliers = append(node.Outliers, uint32(v))
				packed = packed[m:]
			}
		case nodeFieldSummary:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed outlier summary")
			}
			node.OutlierSummary = append([]byte(nil), v...)
			data = data[n:]
		case nodeFieldRadius:
			v, n := protowire.ConsumeFixed64(data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, "malformed radius")
			}
			radius = math.Float64frombits(v)
			hasRadius = true
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(field, typ, data)
			if n < 0 {
				return nil, corrupt(node.Scale, node.Center, fmt.Sprintf("malformed unknown node field %d", field))
			}
			data = data[n:]
		}
	}

	if len(childScales) != len(childCenters) {
		return nil, corrupt(node.Scale, node.Center,
			fmt.Sprintf("%d child scales for %d child centers", len(childScales), len(childCenters)))
	}
	for i := range childScales {
		node.Children = append(node.Children, covertree.NodeKey{
			Scale:  childScales[i],
			Center: childCenters[i],
		})
	}

	// Leaf-ness is structural: the flag and the child list must agree.
	if isLeaf && len(node.Children) > 0 {
		return nil, &covertree.ErrCorruptTree{
			Invariant: 4, ScaleIndex: node.Scale, CenterIndex: node.Center,
			Reason: fmt.Sprintf("leaf flag set on a node with %d children", len(node.Children)),
		}
	}
	if !isLeaf && len(node.Children) == 0 {
		return nil, &covertree.ErrCorruptTree{
			Invariant: 4, ScaleIndex: node.Scale, CenterIndex: node.Center,
			Reason: "leaf flag missing on a node without children",
		}
	}

	if hasRadius {
		if ladder := math.Pow(cfg.ScaleBase, float64(node.Scale)); radius != ladder {
			node.RadiusOverride = radius
		}
	}

	return node, nil
}

func consumeSint32(data []byte, what string) (int32, int, error) {
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, corrupt(0, 0, "malformed "+what)
	}
	return int32(protowire.DecodeZigZag(v)), n, nil
}

func corrupt(scale int32, center uint32, reason string) error {
	return &covertree.ErrCorruptTree{ScaleIndex: scale, CenterIndex: center, Reason: reason}
}
