package vpcc

import (
	"github.com/zsiec/vpccplay/bitio"
)

// AttributeInfo describes one attribute video stream (typically texture),
// per spec.md §4.3.3.
type AttributeInfo struct {
	TypeID              uint32
	CodecID              uint32
	DimensionMinus1      uint32
	DimensionPartitions  uint32
	Nominal2DBitdepthMinus1 uint32
}

// OccupancyInfo carries the occupancy video's codec and bit-depth fields.
type OccupancyInfo struct {
	CodecID                            uint32
	LossyOccupancyMapCompressionThreshold uint32
	Nominal2DBitdepthMinus1             uint32
	MSBAlignFlag                        bool
}

// GeometryInfo carries the geometry video's codec, bit-depth, and 3-D
// coordinate bit-depth fields; Geometry3DCoordinatesBitdepthMinus1 feeds
// the patch d1 (depth shift) formula in §4.3.5.
type GeometryInfo struct {
	CodecID                           uint32
	Nominal2DBitdepthMinus1           uint32
	MSBAlignFlag                      bool
	Geometry3DCoordinatesBitdepthMinus1 uint32
}

// AtlasVPS is one atlas entry of a VPS (V3C Parameter Set), per spec.md
// §4.3.3.
type AtlasVPS struct {
	FrameWidth  uint32
	FrameHeight uint32

	MapCountMinus1                  uint32
	MultipleMapStreamsPresentFlag   bool
	RawPatchEnabledFlag             bool
	RawSeparateVideoPresentFlag     bool

	Occupancy OccupancyInfo
	Geometry  GeometryInfo
	Attributes []AttributeInfo
}

// VPS (V3C Parameter Set) names the atlas(es) a FrameGroup's patches and
// substreams resolve against. The parser keeps a register of VPS values
// keyed by their 4-bit id (spec.md §3, "active VPS register").
type VPS struct {
	ID              uint32
	AtlasCountMinus1 uint32
	Atlases         []AtlasVPS
}

func readOccupancyInfo(br *bitio.Reader) (OccupancyInfo, error) {
	codecID, err := br.ReadBits(8)
	if err != nil {
		return OccupancyInfo{}, err
	}
	threshold, err := br.ReadBits(8)
	if err != nil {
		return OccupancyInfo{}, err
	}
	bitdepth, err := br.ReadBits(5)
	if err != nil {
		return OccupancyInfo{}, err
	}
	msbAlign, err := br.ReadBits(1)
	if err != nil {
		return OccupancyInfo{}, err
	}
	return OccupancyInfo{
		CodecID:                                codecID,
		LossyOccupancyMapCompressionThreshold:  threshold,
		Nominal2DBitdepthMinus1:                bitdepth,
		MSBAlignFlag:                           msbAlign == 1,
	}, nil
}

func readGeometryInfo(br *bitio.Reader, rawSeparateVideoPresent bool) (GeometryInfo, error) {
	codecID, err := br.ReadBits(8)
	if err != nil {
		return GeometryInfo{}, err
	}
	bitdepth, err := br.ReadBits(5)
	if err != nil {
		return GeometryInfo{}, err
	}
	msbAlign, err := br.ReadBits(1)
	if err != nil {
		return GeometryInfo{}, err
	}
	coord3d, err := br.ReadBits(5)
	if err != nil {
		return GeometryInfo{}, err
	}
	if rawSeparateVideoPresent {
		if _, err := br.ReadBits(8); err != nil { // raw_geometry_codec_id
			return GeometryInfo{}, err
		}
	}
	return GeometryInfo{
		CodecID:                              codecID,
		Nominal2DBitdepthMinus1:              bitdepth,
		MSBAlignFlag:                         msbAlign == 1,
		Geometry3DCoordinatesBitdepthMinus1:  coord3d,
	}, nil
}

func readAttributeInfo(br *bitio.Reader, rawSeparateVideoPresent bool, mapCountMinus1 uint32) ([]AttributeInfo, error) {
	count, err := br.ReadBits(7)
	if err != nil {
		return nil, err
	}

	attrs := make([]AttributeInfo, 0, count)
	for i := uint32(0); i < count; i++ {
		typeID, err := br.ReadBits(4)
		if err != nil {
			return nil, err
		}
		codecID, err := br.ReadBits(8)
		if err != nil {
			return nil, err
		}
		if rawSeparateVideoPresent {
			if _, err := br.ReadBits(8); err != nil { // raw_attribute_codec_id
				return nil, err
			}
		}

		for j := uint32(0); j < mapCountMinus1; j++ {
			if _, err := br.ReadBits(1); err != nil { // attribute_map_absolute_coding_persistence_flag
				return nil, err
			}
		}

		dimMinus1, err := br.ReadBits(6)
		if err != nil {
			return nil, err
		}

		var partitions uint32
		if dimMinus1 > 0 {
			partitions, err = br.ReadBits(6)
			if err != nil {
				return nil, err
			}
			remaining := int32(dimMinus1)
			for j := uint32(0); j < partitions; j++ {
				if uint32(int32(partitions)-int32(j)) == uint32(remaining) {
					continue
				}
				v, err := br.ReadUVLC()
				if err != nil {
					return nil, err
				}
				remaining -= int32(v) + 1
			}
		}

		nominalBitdepth, err := br.ReadBits(5)
		if err != nil {
			return nil, err
		}

		attrs = append(attrs, AttributeInfo{
			TypeID:                  typeID,
			CodecID:                 codecID,
			DimensionMinus1:         dimMinus1,
			DimensionPartitions:     partitions,
			Nominal2DBitdepthMinus1: nominalBitdepth,
		})
	}

	if count > 0 {
		if _, err := br.ReadBits(1); err != nil { // attribute_MSB_align_flag
			return nil, err
		}
	}

	return attrs, nil
}

// readVPS parses a V3C Parameter Set unit payload, per spec.md §4.3.3.
func readVPS(br *bitio.Reader) (VPS, error) {
	if err := skipProfileTierLevel(br); err != nil {
		return VPS{}, err
	}

	id, err := br.ReadBits(4)
	if err != nil {
		return VPS{}, err
	}
	atlasCountMinus1, err := br.ReadBits(6)
	if err != nil {
		return VPS{}, err
	}

	vps := VPS{ID: id, AtlasCountMinus1: atlasCountMinus1}
	vps.Atlases = make([]AtlasVPS, atlasCountMinus1+1)

	for j := uint32(0); j <= atlasCountMinus1; j++ {
		var a AtlasVPS

		a.FrameWidth, err = br.ReadBits(16)
		if err != nil {
			return VPS{}, err
		}
		a.FrameHeight, err = br.ReadBits(16)
		if err != nil {
			return VPS{}, err
		}
		a.MapCountMinus1, err = br.ReadBits(4)
		if err != nil {
			return VPS{}, err
		}

		if a.MapCountMinus1 > 0 {
			flag, err := br.ReadBits(1)
			if err != nil {
				return VPS{}, err
			}
			a.MultipleMapStreamsPresentFlag = flag == 1
		}

		for i := uint32(1); i <= a.MapCountMinus1; i++ {
			absoluteCoding := true
			if a.MultipleMapStreamsPresentFlag {
				flag, err := br.ReadBits(1)
				if err != nil {
					return VPS{}, err
				}
				absoluteCoding = flag == 1
			}
			if !absoluteCoding {
				if _, err := br.ReadUVLC(); err != nil { // map_predictor_index_diff
					return VPS{}, err
				}
			}
		}

		rawFlag, err := br.ReadBits(1)
		if err != nil {
			return VPS{}, err
		}
		a.RawPatchEnabledFlag = rawFlag == 1

		if a.RawPatchEnabledFlag {
			sepFlag, err := br.ReadBits(1)
			if err != nil {
				return VPS{}, err
			}
			a.RawSeparateVideoPresentFlag = sepFlag == 1
		}

		a.Occupancy, err = readOccupancyInfo(br)
		if err != nil {
			return VPS{}, err
		}
		a.Geometry, err = readGeometryInfo(br, a.RawSeparateVideoPresentFlag)
		if err != nil {
			return VPS{}, err
		}
		a.Attributes, err = readAttributeInfo(br, a.RawSeparateVideoPresentFlag, a.MapCountMinus1)
		if err != nil {
			return VPS{}, err
		}

		vps.Atlases[j] = a
	}

	extFlag, err := br.ReadBits(1)
	if err != nil {
		return VPS{}, err
	}
	if extFlag == 1 {
		extLen, err := br.ReadUVLC()
		if err != nil {
			return VPS{}, err
		}
		if err := br.SkipBits(int(extLen) * 8); err != nil {
			return VPS{}, err
		}
	}

	br.AlignToByte()
	return vps, nil
}

// skipProfileTierLevel consumes the fixed-layout V-PCC profile_tier_level
// structure (general profile/tier/level fields, reserved bits, and a
// toolset constraint byte) that precedes every VPS's own fields.
func skipProfileTierLevel(br *bitio.Reader) error {
	if _, err := br.ReadBits(2); err != nil { // ptl_tier_flag (1) + reserved padding handled below
		return err
	}
	if err := br.SkipBits(6); err != nil { // reserved
		return err
	}
	if _, err := br.ReadBits(8); err != nil { // ptl_profile_codec_group_idc
		return err
	}
	if _, err := br.ReadBits(8); err != nil { // ptl_profile_toolset_idc
		return err
	}
	if _, err := br.ReadBits(8); err != nil { // ptl_profile_reconstruction_idc
		return err
	}
	if err := br.SkipBits(32); err != nil { // reserved
		return err
	}
	if _, err := br.ReadBits(8); err != nil { // ptl_level_idc
		return err
	}
	return nil
}
