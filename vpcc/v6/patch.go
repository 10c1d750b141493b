package v6

import (
	"github.com/zsiec/vpccplay/bitio"
	"github.com/zsiec/vpccplay/vpcc"
)

// v6Patch is an alias for vpcc.Patch: draft-6 reconstruction produces the
// same fields the current format does, so this package never defines its
// own patch type.
type v6Patch = vpcc.Patch

// orientationRemap maps a draft-6 PatchOrientation code to the
// vpcc.Orientation code of the same semantic orientation. The two enums
// number DEFAULT/SWAP/MIRROR identically but diverge from ROT180 onward
// (draft-6 groups the four MROT variants together before ROT90, where the
// current format interleaves them), so BuildBlockToPatchMap's switch can't
// consume a draft-6 code directly.
var orientationRemap = [9]uint32{
	0: uint32(vpcc.OrientationDefault),
	1: uint32(vpcc.OrientationSwap),
	2: uint32(vpcc.OrientationRot180),
	3: uint32(vpcc.OrientationRot270),
	4: uint32(vpcc.OrientationMirror),
	5: uint32(vpcc.OrientationMRot90),
	6: uint32(vpcc.OrientationMRot180),
	7: uint32(vpcc.OrientationRot90),
	8: uint32(vpcc.OrientationMRot270),
}

// v6ReconParams bundles the parameter sets and running state patch
// reconstruction needs, mirroring vpcc.patchReconParams.
type v6ReconParams struct {
	PSPS PatchSequenceParameterSet
	PFPS PatchFrameParameterSet
	PTGH PatchTileGroupHeader

	OccupancyPackingBlockSize uint32
	Geometry3DBitdepthMinus1  uint32

	prevSizeU0Sum uint32
	prevSizeV0Sum uint32
}

// readPatchDataUnitV6 decodes one INTRA patch data unit, grounded on
// createPatches's per-patch field sequence in PCCParser60.cpp. Point local
// reconstruction and 45-degree-projection fields never appear here: both
// are rejected earlier, at SPS/PFPS parse time.
func readPatchDataUnitV6(br *bitio.Reader, p *v6ReconParams) (v6Patch, error) {
	u0, err := br.ReadBits(int(p.PTGH.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return v6Patch{}, err
	}
	v0, err := br.ReadBits(int(p.PTGH.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return v6Patch{}, err
	}
	deltaSizeU, err := br.ReadSVLC()
	if err != nil {
		return v6Patch{}, err
	}
	deltaSizeV, err := br.ReadSVLC()
	if err != nil {
		return v6Patch{}, err
	}

	if _, err := br.ReadBits(int(p.PTGH.Pos3DUBitCountMinus1) + 1); err != nil { // shift_tangent_axis
		return v6Patch{}, err
	}
	if _, err := br.ReadBits(int(p.PTGH.Pos3DVBitCountMinus1) + 1); err != nil { // shift_bitangent_axis
		return v6Patch{}, err
	}

	minNormalBits := int(p.Geometry3DBitdepthMinus1) - int(p.PTGH.PosMinZQuantizer) + 1
	if minNormalBits < 1 {
		minNormalBits = 1
	}
	shiftMinNormalAxis, err := br.ReadBits(minNormalBits)
	if err != nil {
		return v6Patch{}, err
	}

	if p.PSPS.NormalAxisMaxDeltaValueEnabledFlag {
		deltaMaxBits := int(p.Geometry3DBitdepthMinus1) - int(p.PTGH.PosDeltaMaxZQuantizer) + 1
		if deltaMaxBits < 1 {
			deltaMaxBits = 1
		}
		if _, err := br.ReadBits(deltaMaxBits); err != nil { // shift_delta_max_normal_axis
			return v6Patch{}, err
		}
	}

	projectPlane, err := br.ReadBits(3)
	if err != nil {
		return v6Patch{}, err
	}

	orientationBits := 1
	if p.PSPS.UseEightOrientationsFlag {
		orientationBits = 3
	}
	orientationIndex, err := br.ReadBits(orientationBits)
	if err != nil {
		return v6Patch{}, err
	}

	lodEnabled, err := br.ReadBits(1)
	if err != nil {
		return v6Patch{}, err
	}
	if lodEnabled == 1 {
		if _, err := br.ReadUVLC(); err != nil { // lod_scale_x_minus1
			return v6Patch{}, err
		}
		if _, err := br.ReadUVLC(); err != nil { // lod_scale_y
			return v6Patch{}, err
		}
	}

	sizeU0 := uint32(deltaSizeU) + p.prevSizeU0Sum
	sizeV0 := uint32(deltaSizeV) + p.prevSizeV0Sum
	p.prevSizeU0Sum = sizeU0
	p.prevSizeV0Sum = sizeV0
	if p.OccupancyPackingBlockSize > 0 {
		sizeU0 = ceilDivV6(sizeU0, p.OccupancyPackingBlockSize)
		sizeV0 = ceilDivV6(sizeV0, p.OccupancyPackingBlockSize)
	}

	normalAxis := projectPlane % 3
	tangentAxis, bitangentAxis := axesForV6(normalAxis)
	projectionMode := uint32(0)
	if projectPlane >= 3 {
		projectionMode = 1
	}

	minLevel := uint32(1) << p.PTGH.PosMinZQuantizer
	max3D := int32(1) << (p.Geometry3DBitdepthMinus1 + 1)
	var d1 int32
	if projectionMode == 0 {
		d1 = int32(shiftMinNormalAxis) * int32(minLevel)
	} else {
		d1 = max3D - int32(shiftMinNormalAxis)*int32(minLevel)
	}

	return v6Patch{
		U0:                  u0,
		V0:                  v0,
		SizeU0:              sizeU0,
		SizeV0:              sizeV0,
		D1:                  d1,
		Orientation:         orientationRemap[orientationIndex],
		ProjectionMode:      projectionMode,
		NormalAxis:          normalAxis,
		TangentAxis:         tangentAxis,
		BitangentAxis:       bitangentAxis,
		OccupancyResolution: p.OccupancyPackingBlockSize,
	}, nil
}

func ceilDivV6(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

// axesForV6 mirrors vpcc's axesFor: the tangent/bitangent axis pairing is
// identical between the two formats, since both derive it from
// normal_axis via the same three-way projection-plane split.
func axesForV6(normalAxis uint32) (uint32, uint32) {
	switch normalAxis {
	case 0:
		return 2, 1
	case 1:
		return 2, 0
	default:
		return 0, 1
	}
}
