package v6

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// SequenceParameterSet is the draft-6 analogue of vpcc's ASPS/AFPS pair,
// grounded on parseSequenceParameterSet in PCCParser60.cpp. Only the fields
// this shim's reconstruction and unit-header dispatch actually consume are
// kept as named fields; the remaining profile/level/layer bits are read to
// stay bit-aligned and then discarded.
type SequenceParameterSet struct {
	Index       uint32
	FrameWidth  uint32
	FrameHeight uint32
	AvgFrameRate uint32

	Log2PatchPackingBlockSize uint32
	MapCountMinus1            uint32

	OccupancyPrecision           uint32
	OccupancyPackingBlockSize    uint32

	GeometryNominal2DBitdepth  uint32
	GeometryNominal3DBitdepth  uint32

	AttributeCount uint32

	MultipleLayerStreamsPresentFlag bool
	PCMSeparateVideoPresentFlag     bool
}

func readSequenceParameterSet(br *bitio.Reader) (SequenceParameterSet, error) {
	var sps SequenceParameterSet

	idx, err := br.ReadBits(4)
	if err != nil {
		return sps, fmt.Errorf("vpcc/v6: reading sps index: %w", err)
	}
	sps.Index = idx

	w, err := br.ReadBits(16)
	if err != nil {
		return sps, fmt.Errorf("vpcc/v6: reading frame width: %w", err)
	}
	sps.FrameWidth = w

	h, err := br.ReadBits(16)
	if err != nil {
		return sps, fmt.Errorf("vpcc/v6: reading frame height: %w", err)
	}
	sps.FrameHeight = h

	avgFrameRatePresent, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	if avgFrameRatePresent == 1 {
		rate, err := br.ReadBits(16)
		if err != nil {
			return sps, err
		}
		sps.AvgFrameRate = rate
	}

	enhancedOccMapForDepth, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}

	layerCountMinus1, err := br.ReadBits(4)
	if err != nil {
		return sps, fmt.Errorf("vpcc/v6: reading layer count: %w", err)
	}
	sps.MapCountMinus1 = layerCountMinus1

	if layerCountMinus1 > 0 {
		absCodingFlag, err := br.ReadBits(1)
		if err != nil {
			return sps, err
		}
		if absCodingFlag == 0 {
			if _, err := br.ReadBits(1); err != nil { // absolute_d1_coding_enabled_flag's predictor present bit
				return sps, err
			}
		}
	}

	if enhancedOccMapForDepth == 1 && layerCountMinus1 == 0 {
		if _, err := br.ReadBits(1); err != nil { // enhanced_occupancy_map_fix_bit_count driver
			return sps, err
		}
	}

	pcmPatchEnabled, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	if pcmPatchEnabled == 1 {
		sepVideo, err := br.ReadBits(1)
		if err != nil {
			return sps, err
		}
		sps.PCMSeparateVideoPresentFlag = sepVideo == 1
		return sps, fmt.Errorf("%w: pcm_patch_enabled_flag set", ErrUnsupportedLayout)
	}

	og, err := readOccupancyInformation(br)
	if err != nil {
		return sps, err
	}
	sps.OccupancyPrecision = og.Precision
	sps.OccupancyPackingBlockSize = og.PackingBlockSize

	gi, err := readGeometryInformation(br, sps.MapCountMinus1)
	if err != nil {
		return sps, err
	}
	sps.GeometryNominal2DBitdepth = gi.Nominal2DBitdepth
	sps.GeometryNominal3DBitdepth = gi.Nominal3DBitdepth

	attrCount, err := br.ReadBits(7)
	if err != nil {
		return sps, err
	}
	sps.AttributeCount = attrCount
	if attrCount > 1 {
		return sps, fmt.Errorf("%w: attribute_count %d > 1", ErrUnsupportedLayout, attrCount)
	}
	for i := uint32(0); i < attrCount; i++ {
		if err := skipAttributeInformation(br, sps.MapCountMinus1); err != nil {
			return sps, err
		}
	}

	patchSequenceOrientationEnabled, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	_ = patchSequenceOrientationEnabled

	patchInterPredictionEnabled, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	_ = patchInterPredictionEnabled

	pixelDeinterleavingFlag, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	_ = pixelDeinterleavingFlag

	pointLocalReconstructionEnabled, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	if pointLocalReconstructionEnabled == 1 {
		return sps, fmt.Errorf("%w: point_local_reconstruction_enabled_flag set", ErrUnsupportedLayout)
	}

	removeDuplicatePointEnabled, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	_ = removeDuplicatePointEnabled

	projectionBitCount, err := br.ReadBits(5)
	if err != nil {
		return sps, err
	}
	_ = projectionBitCount

	multipleLayerStreamsPresent, err := br.ReadBits(1)
	if err != nil {
		return sps, err
	}
	sps.MultipleLayerStreamsPresentFlag = multipleLayerStreamsPresent == 1

	return sps, nil
}

type occupancyInformation struct {
	Precision        uint32
	PackingBlockSize uint32
}

func readOccupancyInformation(br *bitio.Reader) (occupancyInformation, error) {
	var oi occupancyInformation
	codecID, err := br.ReadBits(8)
	if err != nil {
		return oi, err
	}
	_ = codecID

	precision, err := br.ReadBits(8)
	if err != nil {
		return oi, err
	}
	oi.Precision = precision

	packingBlockSize, err := br.ReadBits(8)
	if err != nil {
		return oi, err
	}
	oi.PackingBlockSize = packingBlockSize
	return oi, nil
}

type geometryInformation struct {
	Nominal2DBitdepth uint32
	Nominal3DBitdepth uint32
}

func readGeometryInformation(br *bitio.Reader, mapCountMinus1 uint32) (geometryInformation, error) {
	var gi geometryInformation

	codecID, err := br.ReadBits(8)
	if err != nil {
		return gi, err
	}
	_ = codecID

	nominal2D, err := br.ReadBits(5)
	if err != nil {
		return gi, err
	}
	gi.Nominal2DBitdepth = nominal2D + 1

	nominal3D, err := br.ReadBits(5)
	if err != nil {
		return gi, err
	}
	gi.Nominal3DBitdepth = nominal3D + 1

	mapsFixedBitdepth, err := br.ReadBits(1)
	if err != nil {
		return gi, err
	}
	if mapsFixedBitdepth == 0 {
		for i := uint32(0); i <= mapCountMinus1; i++ {
			if _, err := br.ReadBits(5); err != nil { // geometry_nominal_2d_bitdepth_minus1[i]
				return gi, err
			}
		}
	}

	if _, err := br.ReadBits(1); err != nil { // geometry_params_enabled_flag
		return gi, err
	}

	return gi, nil
}

func skipAttributeInformation(br *bitio.Reader, mapCountMinus1 uint32) error {
	if _, err := br.ReadBits(8); err != nil { // attribute_type_id
		return err
	}
	if _, err := br.ReadBits(8); err != nil { // attribute_codec_id
		return err
	}

	dimMinus1, err := br.ReadBits(8)
	if err != nil {
		return err
	}
	if _, err := br.ReadBits(6); err != nil { // attribute_dimension_partitions_minus1
		return err
	}

	nominalBitdepthFixed, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	if nominalBitdepthFixed == 1 {
		if _, err := br.ReadBits(5); err != nil {
			return err
		}
	} else {
		for i := uint32(0); i <= dimMinus1; i++ {
			if _, err := br.ReadBits(5); err != nil {
				return err
			}
		}
	}

	if _, err := br.ReadBits(1); err != nil { // attribute_params_enabled_flag
		return err
	}
	_ = mapCountMinus1
	return nil
}
