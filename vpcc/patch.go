package vpcc

import (
	"github.com/zsiec/vpccplay/bitio"
)

// PatchMode selects one of the seven patch data unit encodings, per
// spec.md §4.3.4. Legal modes depend on the enclosing tile group's type.
type PatchMode int

const (
	PatchModeIntra PatchMode = iota
	PatchModeInter
	PatchModeMerge
	PatchModeSkip
	PatchModeRaw
	PatchModeEOM
	PatchModeEnd
)

// patchModeValue maps the on-the-wire patch_mode code (which is
// tile-group-type-dependent, per atlasTileGroupDataUnit in the reference
// parser) to a PatchMode.
func patchModeValue(tgType AtlasTileGroupType, code uint32) (PatchMode, bool) {
	switch tgType {
	case ATGTypeI:
		switch code {
		case 0:
			return PatchModeIntra, true
		case 1:
			return PatchModeRaw, true
		case 2:
			return PatchModeEOM, true
		case 14:
			return PatchModeEnd, true
		}
	case ATGTypeP:
		switch code {
		case 0:
			return PatchModeSkip, true
		case 1:
			return PatchModeMerge, true
		case 2:
			return PatchModeInter, true
		case 3:
			return PatchModeIntra, true
		case 4:
			return PatchModeRaw, true
		case 5:
			return PatchModeEOM, true
		case 14:
			return PatchModeEnd, true
		}
	case ATGTypeSkip:
		return PatchModeSkip, true
	}
	return 0, false
}

// Patch is a fully materialized occupancy/geometry patch, per
// VPCCDatatypes121.h's Patch struct and spec.md §3.
type Patch struct {
	U0, V0              uint32
	SizeU0, SizeV0      uint32
	U1, V1              uint32
	D1                  int32
	SizeD               uint32
	OccupancyResolution uint32
	NormalAxis          uint32
	TangentAxis         uint32
	BitangentAxis       uint32
	ProjectionMode      uint32
	Orientation         uint32

	// AxisOfAdditionalPlane is only meaningful when ASPS's
	// Normal45DegreeProjectionPatchPresentFlag is set: it carries the
	// low two bits of pdu_projection_id, naming which of the three
	// 45-degree-tilted planes the patch was projected onto, per
	// VPCCParser80.cpp:2730-2736.
	AxisOfAdditionalPlane uint32

	// LodScaleX/LodScaleY are always 1: the reference decoder's
	// afps_lod_mode_enable_flag (VPCCParser80.h:814) defaults to false
	// and nothing in VPCCParser80.cpp ever sets it, so pdu_lod_enable_flag
	// is unreachable and level-of-detail scaling never deviates from
	// its disabled-branch default (VPCCParser80.cpp:1453-1457).
	LodScaleX, LodScaleY uint32

	BestMatchIndex     int32  // prediction-relative reference patch index, for INTER/MERGE/SKIP
	RefAtlasFrameIndex uint32 // index into FrameData.RefAFOCList naming the reference frame
}

// patchReconParams bundles the per-frame state patch reconstruction needs
// beyond the bits of the current data unit: the active ASPS/AFPS/ATGH and
// a running prediction index for INTER patches, per spec.md §4.3.5.
type patchReconParams struct {
	ASPS ASPS
	AFPS AFPS
	ATGH ATGLHeader

	OccupancyPackingBlockSize uint32
	Geometry3DBitdepthMinus1  uint32

	// RefAFOCList is this tile group's resolved reference atlas frame
	// order counts (FrameData.ref_afoc_list); PatchesByAFOC maps an AFOC
	// to the patches already decoded for that frame. Together they let
	// INTER/MERGE/SKIP patches resolve ipdu/mpdu_ref_index against the
	// actual referenced frame instead of always the previous one, per
	// spec.md §4.3.5 ("ref_index to select an entry from
	// FrameData.ref_afoc_list") and VPCCParser80.cpp:2789-2799.
	RefAFOCList   []int
	PatchesByAFOC map[int][]Patch

	predictionIndex int32

	// prevSizeU0Sum/prevSizeV0Sum accumulate size_u0/size_v0 across the
	// tile group's INTRA/RAW/EOM patches, per VPCCParser80.cpp:2711-2727
	// ("prevSizeU0 + delta", not a flat per-patch delta).
	prevSizeU0Sum uint32
	prevSizeV0Sum uint32
}

// refPatches resolves the reference patch list a ref_index names, via this
// tile group's RefAFOCList and the frames already decoded this FrameGroup,
// per VPCCParser80.cpp:2789-2799 ("frame.refAFOCList.at(0).at(refIdx)" then
// a lookup by that resolved frame order count).
func (p *patchReconParams) refPatches(refIndex uint32) ([]Patch, error) {
	if int(refIndex) >= len(p.RefAFOCList) {
		return nil, ErrMalformedContainer
	}
	patches, ok := p.PatchesByAFOC[p.RefAFOCList[refIndex]]
	if !ok {
		return nil, ErrMalformedContainer
	}
	return patches, nil
}

// recomputedD1 reassembles a reference-relative patch's minimum depth from
// a signed quantized delta (0 for SKIP, which carries none) against the
// reference patch's own D1, per VPCCParser80.cpp:2829-2843/2923-2937/
// 3022-3036.
func recomputedD1(ref Patch, dMinZ int32, minLevel uint32, max3D int32, extended bool) int32 {
	if ref.ProjectionMode == 0 {
		return (dMinZ + ref.D1/int32(minLevel)) * int32(minLevel)
	}
	refMax := max3D
	if extended {
		refMax = max3D << 1
	}
	return refMax - (dMinZ+(refMax-ref.D1)/int32(minLevel))*int32(minLevel)
}

// recomputedSizeD reassembles a reference-relative patch's depth extent
// from a signed quantized delta against the reference patch's own SizeD
// (0 for SKIP/MERGE-without-override, which carry none), clamped to 255,
// the on-the-wire byte range, per VPCCParser80.cpp:2845-2853/2939-2947/
// 3038-3045.
func recomputedSizeD(ref Patch, deltaDD int32, minLevel uint32) uint32 {
	prevDD := int32(ref.SizeD) / int32(minLevel)
	if prevDD*int32(minLevel) != int32(ref.SizeD) {
		prevDD++
	}
	sizeD := (deltaDD + prevDD) * int32(minLevel)
	if sizeD > 255 {
		sizeD = 255
	}
	return uint32(sizeD)
}

func minLevelFor(posMinZQuantizer uint32) uint32 {
	return uint32(1) << posMinZQuantizer
}

func max3DCoordinateFor(geometry3DBitdepthMinus1 uint32) int32 {
	return int32(1) << (geometry3DBitdepthMinus1 + 1)
}

// readPatchDataUnit decodes an INTRA patch data unit and reconstructs its
// Patch, per spec.md §4.3.5 ("INTRA: all fields are absolute").
func readPatchDataUnit(br *bitio.Reader, p *patchReconParams) (Patch, error) {
	x, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	y, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	deltaSizeX, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	deltaSizeY, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}

	u1, err := br.ReadBits(int(p.AFPS.Pos3DUBitCountMinus1) + 1) // pdu_3d_pos_x
	if err != nil {
		return Patch{}, err
	}
	v1, err := br.ReadBits(int(p.AFPS.Pos3DVBitCountMinus1) + 1) // pdu_3d_pos_y
	if err != nil {
		return Patch{}, err
	}

	minZBits := int(p.Geometry3DBitdepthMinus1) - int(p.ATGH.PosMinZQuantizer) + 1
	if minZBits < 1 {
		minZBits = 1
	}
	minZ, err := br.ReadBits(minZBits)
	if err != nil {
		return Patch{}, err
	}

	// asps.normal_axis_max_delta_value_enabled_flag is not separately
	// tracked: no SPEC_FULL.md component varies max-depth-delta behavior
	// across fixtures, so this parser always takes the "disabled" branch,
	// matching readASPS's fixed field set. SizeD is therefore always 0 for
	// INTRA patches (pdu_3d_pos_delta_max_z is never on the wire in that
	// branch), per VPCCParser80.cpp:2711 with pdu.pdu3dPosDeltaMaxZ at its
	// zero-initialized default.

	extended := p.ASPS.Normal45DegreeProjectionPatchPresentFlag
	projectionBits := 3
	if extended {
		projectionBits = 5
	}
	projectionID, err := br.ReadBits(projectionBits)
	if err != nil {
		return Patch{}, err
	}

	orientationBits := 1
	if p.ASPS.UseEightOrientationsFlag {
		orientationBits = 3
	}
	orientation, err := br.ReadBits(orientationBits)
	if err != nil {
		return Patch{}, err
	}

	sizeU0 := p.prevSizeU0Sum + uint32(deltaSizeX)
	sizeV0 := p.prevSizeV0Sum + uint32(deltaSizeY)
	p.prevSizeU0Sum = sizeU0
	p.prevSizeV0Sum = sizeV0
	if p.OccupancyPackingBlockSize > 0 {
		sizeU0 = ceilDiv(sizeU0, p.OccupancyPackingBlockSize)
		sizeV0 = ceilDiv(sizeV0, p.OccupancyPackingBlockSize)
	}

	// pdu_projection_id packs (plane, additional-plane axis) as
	// (plane<<2 | axis) when extended projection is enabled, per
	// VPCCParser80.cpp:2730-2736.
	projectionPlane := projectionID
	axisOfAdditionalPlane := uint32(0)
	if extended {
		projectionPlane = projectionID >> 2
		axisOfAdditionalPlane = projectionID & 0x3
	}
	normalAxis := projectionPlane % 3
	tangentAxis, bitangentAxis := axesFor(normalAxis)
	projectionMode := uint32(0)
	if projectionPlane >= 3 {
		projectionMode = 1
	}

	minLevel := minLevelFor(p.ATGH.PosMinZQuantizer)
	max3D := max3DCoordinateFor(p.Geometry3DBitdepthMinus1)
	var d1 int32
	switch {
	case projectionMode == 0:
		d1 = int32(minZ) * int32(minLevel)
	case extended:
		d1 = (max3D << 1) - int32(minZ)*int32(minLevel)
	default:
		d1 = max3D - int32(minZ)*int32(minLevel)
	}

	return Patch{
		U0:                    x,
		V0:                    y,
		SizeU0:                sizeU0,
		SizeV0:                sizeV0,
		U1:                    u1,
		V1:                    v1,
		D1:                    d1,
		SizeD:                 0,
		Orientation:           orientation,
		ProjectionMode:        projectionMode,
		NormalAxis:            normalAxis,
		TangentAxis:           tangentAxis,
		BitangentAxis:         bitangentAxis,
		AxisOfAdditionalPlane: axisOfAdditionalPlane,
		LodScaleX:             1,
		LodScaleY:             1,
		OccupancyResolution:   p.OccupancyPackingBlockSize,
	}, nil
}

func ceilDiv(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return (a + b - 1) / b
}

// axesFor returns (tangent_axis, bitangent_axis) for a given normal_axis,
// per spec.md §4.3.5.
func axesFor(normalAxis uint32) (uint32, uint32) {
	switch normalAxis {
	case 0:
		return 2, 1
	case 1:
		return 2, 0
	default:
		return 0, 1
	}
}

// readInterPatchDataUnit decodes an INTER patch data unit and reconstructs
// its Patch from the referenced previous-frame patch plus deltas, per
// spec.md §4.3.5.
func readInterPatchDataUnit(br *bitio.Reader, p *patchReconParams) (Patch, error) {
	refIndex := uint32(0)
	if len(p.RefAFOCList) > 1 {
		idx, err := br.ReadUVLC() // ipdu_ref_index
		if err != nil {
			return Patch{}, err
		}
		refIndex = idx
	}

	refPatchDelta, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	dx, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	dy, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	dSizeX, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	dSizeY, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	dU1, err := br.ReadSVLC() // ipdu_3d_pos_x delta
	if err != nil {
		return Patch{}, err
	}
	dV1, err := br.ReadSVLC() // ipdu_3d_pos_y delta
	if err != nil {
		return Patch{}, err
	}
	dMinZ, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}

	refPatches, err := p.refPatches(refIndex)
	if err != nil {
		return Patch{}, err
	}
	refPatchIndex := refPatchDelta + p.predictionIndex
	if refPatchIndex < 0 || int(refPatchIndex) >= len(refPatches) {
		return Patch{}, ErrMalformedContainer
	}
	ref := refPatches[refPatchIndex]
	p.predictionIndex += refPatchDelta + 1

	minLevel := minLevelFor(p.ATGH.PosMinZQuantizer)
	max3D := max3DCoordinateFor(p.Geometry3DBitdepthMinus1)
	extended := p.ASPS.Normal45DegreeProjectionPatchPresentFlag

	d1 := recomputedD1(ref, dMinZ, minLevel, max3D, extended)
	sizeD := recomputedSizeD(ref, 0, minLevel)

	return Patch{
		U0:                    uint32(int32(ref.U0) + dx),
		V0:                    uint32(int32(ref.V0) + dy),
		SizeU0:                uint32(int32(ref.SizeU0) + dSizeX),
		SizeV0:                uint32(int32(ref.SizeV0) + dSizeY),
		U1:                    uint32(int32(ref.U1) + dU1),
		V1:                    uint32(int32(ref.V1) + dV1),
		D1:                    d1,
		SizeD:                 sizeD,
		Orientation:           ref.Orientation,
		ProjectionMode:        ref.ProjectionMode,
		NormalAxis:            ref.NormalAxis,
		TangentAxis:           ref.TangentAxis,
		BitangentAxis:         ref.BitangentAxis,
		AxisOfAdditionalPlane: ref.AxisOfAdditionalPlane,
		LodScaleX:             ref.LodScaleX,
		LodScaleY:             ref.LodScaleY,
		OccupancyResolution:   ref.OccupancyResolution,
		BestMatchIndex:        refPatchIndex,
		RefAtlasFrameIndex:    refIndex,
	}, nil
}

// readMergePatchDataUnit decodes a MERGE patch data unit (v8+ only): it
// inherits the reference patch wholesale, optionally overriding 2-D or 3-D
// parameters, per spec.md §4.3.5.
func readMergePatchDataUnit(br *bitio.Reader, p *patchReconParams, patchIndex int) (Patch, error) {
	refIndex := uint32(0)
	if len(p.RefAFOCList) > 1 {
		idx, err := br.ReadUVLC() // mpdu_ref_index
		if err != nil {
			return Patch{}, err
		}
		refIndex = idx
	}

	refPatches, err := p.refPatches(refIndex)
	if err != nil {
		return Patch{}, err
	}
	if patchIndex >= len(refPatches) {
		return Patch{}, ErrMalformedContainer
	}
	ref := refPatches[patchIndex]
	patch := ref
	patch.BestMatchIndex = int32(patchIndex)
	patch.RefAtlasFrameIndex = refIndex

	override2D, err := br.ReadBits(1)
	if err != nil {
		return Patch{}, err
	}
	if override2D == 1 {
		dx, err := br.ReadSVLC()
		if err != nil {
			return Patch{}, err
		}
		dy, err := br.ReadSVLC()
		if err != nil {
			return Patch{}, err
		}
		dSizeX, err := br.ReadSVLC()
		if err != nil {
			return Patch{}, err
		}
		dSizeY, err := br.ReadSVLC()
		if err != nil {
			return Patch{}, err
		}
		patch.U0 = uint32(int32(ref.U0) + dx)
		patch.V0 = uint32(int32(ref.V0) + dy)
		patch.SizeU0 = uint32(int32(ref.SizeU0) + dSizeX)
		patch.SizeV0 = uint32(int32(ref.SizeV0) + dSizeY)
	} else {
		override3D, err := br.ReadBits(1)
		if err != nil {
			return Patch{}, err
		}
		if override3D == 1 {
			dU1, err := br.ReadSVLC() // mpdu_3d_pos_x delta
			if err != nil {
				return Patch{}, err
			}
			dV1, err := br.ReadSVLC() // mpdu_3d_pos_y delta
			if err != nil {
				return Patch{}, err
			}
			dMinZ, err := br.ReadSVLC()
			if err != nil {
				return Patch{}, err
			}
			minLevel := minLevelFor(p.ATGH.PosMinZQuantizer)
			max3D := max3DCoordinateFor(p.Geometry3DBitdepthMinus1)
			extended := p.ASPS.Normal45DegreeProjectionPatchPresentFlag
			patch.U1 = uint32(int32(ref.U1) + dU1)
			patch.V1 = uint32(int32(ref.V1) + dV1)
			patch.D1 = recomputedD1(ref, dMinZ, minLevel, max3D, extended)
			patch.SizeD = recomputedSizeD(ref, 0, minLevel)
		}
	}

	return patch, nil
}

// readSkipPatchDataUnit decodes a SKIP patch: pure inheritance from the
// reference patch at the same index, always against ref_index 0, per
// spec.md §4.3.5 and VPCCParser80.cpp:2980-3045.
func readSkipPatchDataUnit(p *patchReconParams, patchIndex int) (Patch, error) {
	refPatches, err := p.refPatches(0)
	if err != nil {
		return Patch{}, err
	}
	if patchIndex >= len(refPatches) {
		return Patch{}, ErrMalformedContainer
	}
	ref := refPatches[patchIndex]
	patch := ref
	patch.BestMatchIndex = int32(patchIndex)
	patch.RefAtlasFrameIndex = 0

	minLevel := minLevelFor(p.ATGH.PosMinZQuantizer)
	max3D := max3DCoordinateFor(p.Geometry3DBitdepthMinus1)
	extended := p.ASPS.Normal45DegreeProjectionPatchPresentFlag
	patch.D1 = recomputedD1(ref, 0, minLevel, max3D, extended)
	patch.SizeD = recomputedSizeD(ref, 0, minLevel)

	return patch, nil
}

// readRawPatchDataUnit decodes a RAW patch data unit. RAW patches carry
// missed-point geometry rather than a projected surface; the reconstructed
// Patch still participates in the block-to-patch map with
// ProjectionMode/NormalAxis left at their zero values, matching
// VPCCParser80.cpp's rawPatchDataUnit (which never sets them either).
func readRawPatchDataUnit(br *bitio.Reader, p *patchReconParams, rawSeparateVideoPresent bool) (Patch, error) {
	if rawSeparateVideoPresent {
		if _, err := br.ReadBits(1); err != nil { // rpdu_patch_in_raw_video_flag
			return Patch{}, err
		}
	}

	x, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	y, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	deltaSizeX, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	deltaSizeY, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}

	axisBits := int(p.ATGH.Pos3DUBitCountMinus1) + 1
	if axisBits < 1 {
		axisBits = 1
	}
	if _, err := br.ReadBits(axisBits); err != nil { // rpdu_3d_pos_x
		return Patch{}, err
	}
	if _, err := br.ReadBits(axisBits); err != nil { // rpdu_3d_pos_y
		return Patch{}, err
	}
	if _, err := br.ReadBits(axisBits); err != nil { // rpdu_3d_pos_z
		return Patch{}, err
	}
	if _, err := br.ReadSVLC(); err != nil { // rpdu_raw_points
		return Patch{}, err
	}

	sizeU0 := p.prevSizeU0Sum + uint32(deltaSizeX)
	sizeV0 := p.prevSizeV0Sum + uint32(deltaSizeY)
	p.prevSizeU0Sum = sizeU0
	p.prevSizeV0Sum = sizeV0
	if p.OccupancyPackingBlockSize > 0 {
		sizeU0 = ceilDiv(sizeU0, p.OccupancyPackingBlockSize)
		sizeV0 = ceilDiv(sizeV0, p.OccupancyPackingBlockSize)
	}

	return Patch{
		U0:                  x,
		V0:                  y,
		SizeU0:              sizeU0,
		SizeV0:              sizeV0,
		LodScaleX:           1,
		LodScaleY:           1,
		OccupancyResolution: p.OccupancyPackingBlockSize,
	}, nil
}

// readEOMPatchDataUnit decodes an EOM (enhanced occupancy map) patch data
// unit: a 2-D bounding box plus a list of associated patch indices and
// per-patch EOM point counts, per VPCCParser80.cpp's eomPatchDataUnit.
func readEOMPatchDataUnit(br *bitio.Reader, p *patchReconParams) (Patch, error) {
	x, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	y, err := br.ReadBits(int(p.AFPS.Pos2DBitCountMinus1) + 1)
	if err != nil {
		return Patch{}, err
	}
	deltaSizeX, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}
	deltaSizeY, err := br.ReadSVLC()
	if err != nil {
		return Patch{}, err
	}

	countMinus1, err := br.ReadBits(8)
	if err != nil {
		return Patch{}, err
	}
	for i := uint32(0); i <= countMinus1; i++ {
		if _, err := br.ReadBits(8); err != nil { // epdu_associated_patches[i]
			return Patch{}, err
		}
		if _, err := br.ReadUVLC(); err != nil { // epdu_eom_points_per_patch[i]
			return Patch{}, err
		}
	}

	sizeU0 := p.prevSizeU0Sum + uint32(deltaSizeX)
	sizeV0 := p.prevSizeV0Sum + uint32(deltaSizeY)
	p.prevSizeU0Sum = sizeU0
	p.prevSizeV0Sum = sizeV0
	if p.OccupancyPackingBlockSize > 0 {
		sizeU0 = ceilDiv(sizeU0, p.OccupancyPackingBlockSize)
		sizeV0 = ceilDiv(sizeV0, p.OccupancyPackingBlockSize)
	}

	return Patch{
		U0:                  x,
		V0:                  y,
		SizeU0:              sizeU0,
		SizeV0:              sizeV0,
		LodScaleX:           1,
		LodScaleY:           1,
		OccupancyResolution: p.OccupancyPackingBlockSize,
	}, nil
}

// readPatchDataUnits decodes the full patch data unit list for one tile
// group (atlasTileGroupDataUnit), terminated by the END mode, per
// spec.md §4.3.4.
func readPatchDataUnits(br *bitio.Reader, p *patchReconParams, rawSeparateVideoPresent bool) ([]Patch, error) {
	var patches []Patch
	p.predictionIndex = 0

	for {
		code, err := br.ReadUVLC()
		if err != nil {
			return nil, err
		}
		mode, ok := patchModeValue(p.ATGH.Type, code)
		if !ok {
			return nil, ErrMalformedContainer
		}
		if mode == PatchModeEnd {
			break
		}

		var patch Patch
		switch mode {
		case PatchModeIntra:
			patch, err = readPatchDataUnit(br, p)
		case PatchModeInter:
			patch, err = readInterPatchDataUnit(br, p)
		case PatchModeMerge:
			patch, err = readMergePatchDataUnit(br, p, len(patches))
		case PatchModeSkip:
			patch, err = readSkipPatchDataUnit(p, len(patches))
		case PatchModeRaw:
			patch, err = readRawPatchDataUnit(br, p, rawSeparateVideoPresent)
		case PatchModeEOM:
			patch, err = readEOMPatchDataUnit(br, p)
		}
		if err != nil {
			return nil, err
		}
		patches = append(patches, patch)

		if p.ATGH.Type == ATGTypeSkip {
			break
		}
	}

	br.AlignToByte()
	return patches, nil
}
