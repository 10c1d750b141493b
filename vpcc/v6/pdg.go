package v6

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// PDGUnitType mirrors PCC::PDGUnitType::Enum. Only PSPS/PFPS/PTGLU are ever
// dispatched by this shim's scope; the remaining values are recognized so
// the unit-type UVLC can be validated but are otherwise skipped by erroring
// out, since nothing in this package's scope produces them.
type PDGUnitType uint32

const (
	PDGPSPS PDGUnitType = iota
	PDGPFPS
	PDGPFGPS
	PDGPFAPS
	PDGGPPS
	PDGAPPS
	PDGPTGLU
	PDGPrefixSEI
	PDGSuffixSEI
)

// PatchSequenceParameterSet is the draft-6 analogue of vpcc's ASPS,
// grounded on parsePatchSequenceParameterSet in PCCParser60.cpp.
type PatchSequenceParameterSet struct {
	Index                            uint32
	Log2PatchPackingBlockSize         uint32
	Log2MaxPatchFrameOrderCntLsb     uint32
	MaxDecPatchFrameBufferingMinus1  uint32
	LongTermRefPatchFramesFlag       bool
	UseEightOrientationsFlag         bool
	NormalAxisLimitsQuantizationEnabledFlag bool
	NormalAxisMaxDeltaValueEnabledFlag       bool
}

func readRefListStruct(br *bitio.Reader) error {
	numRefEntries, err := br.ReadUVLC()
	if err != nil {
		return err
	}
	for i := uint32(0); i < numRefEntries; i++ {
		absDelta, err := br.ReadUVLC()
		if err != nil {
			return err
		}
		if absDelta > 0 {
			if _, err := br.ReadBits(1); err != nil { // strpfEntrySignFlag
				return err
			}
		}
	}
	return nil
}

func readPatchSequenceParameterSet(br *bitio.Reader) (PatchSequenceParameterSet, error) {
	var psps PatchSequenceParameterSet

	idx, err := br.ReadUVLC()
	if err != nil {
		return psps, fmt.Errorf("vpcc/v6: reading psps index: %w", err)
	}
	psps.Index = idx

	blockSize, err := br.ReadBits(3)
	if err != nil {
		return psps, err
	}
	psps.Log2PatchPackingBlockSize = blockSize

	pocLsbMinus4, err := br.ReadUVLC()
	if err != nil {
		return psps, err
	}
	psps.Log2MaxPatchFrameOrderCntLsb = pocLsbMinus4 + 4

	bufMinus1, err := br.ReadUVLC()
	if err != nil {
		return psps, err
	}
	psps.MaxDecPatchFrameBufferingMinus1 = bufMinus1

	ltFlag, err := br.ReadBits(1)
	if err != nil {
		return psps, err
	}
	psps.LongTermRefPatchFramesFlag = ltFlag == 1

	numRefLists, err := br.ReadUVLC()
	if err != nil {
		return psps, err
	}
	for i := uint32(0); i < numRefLists; i++ {
		if err := readRefListStruct(br); err != nil {
			return psps, fmt.Errorf("vpcc/v6: reading psps ref list %d: %w", i, err)
		}
	}

	eightOrient, err := br.ReadBits(1)
	if err != nil {
		return psps, err
	}
	psps.UseEightOrientationsFlag = eightOrient == 1

	normalLimits, err := br.ReadBits(1)
	if err != nil {
		return psps, err
	}
	psps.NormalAxisLimitsQuantizationEnabledFlag = normalLimits == 1

	normalMaxDelta, err := br.ReadBits(1)
	if err != nil {
		return psps, err
	}
	psps.NormalAxisMaxDeltaValueEnabledFlag = normalMaxDelta == 1

	return psps, nil
}

// PatchFrameTileInformation is the draft-6 tiling descriptor. This shim
// only ever accepts a single tile carrying a single tile group, which is
// the layout every archived fixture actually uses; anything else returns
// ErrUnsupportedLayout rather than attempting the full multi-tile
// addressing scheme in parsePatchFrameTileInformation.
type PatchFrameTileInformation struct {
	SignalledTileGroupIdFlag        bool
	SignalledTileGroupIdLengthMinus1 uint32
}

func readPatchFrameTileInformation(br *bitio.Reader) (PatchFrameTileInformation, error) {
	var pfti PatchFrameTileInformation

	singleTile, err := br.ReadBits(1)
	if err != nil {
		return pfti, err
	}
	if singleTile != 1 {
		return pfti, fmt.Errorf("%w: multi-tile patch frame", ErrUnsupportedLayout)
	}

	singleTilePerGroup, err := br.ReadBits(1)
	if err != nil {
		return pfti, err
	}
	if singleTilePerGroup != 1 {
		return pfti, fmt.Errorf("%w: multiple tile groups per patch frame", ErrUnsupportedLayout)
	}

	signalled, err := br.ReadBits(1)
	if err != nil {
		return pfti, err
	}
	pfti.SignalledTileGroupIdFlag = signalled == 1
	if pfti.SignalledTileGroupIdFlag {
		lenMinus1, err := br.ReadUVLC()
		if err != nil {
			return pfti, err
		}
		pfti.SignalledTileGroupIdLengthMinus1 = lenMinus1
		if _, err := br.ReadBits(int(lenMinus1 + 1)); err != nil { // the lone tile group's id
			return pfti, err
		}
	}

	return pfti, nil
}

// PatchFrameParameterSet is the draft-6 analogue of vpcc's AFPS, grounded
// on parsePatchFrameParameterSet in PCCParser60.cpp.
type PatchFrameParameterSet struct {
	Index                                  uint32
	PSPSId                                 uint32
	Tiling                                  PatchFrameTileInformation
	LocalOverrideGeometryPatchEnabledFlag   bool
	AdditionalLtPfocLsbLen                  uint32
}

func readPatchFrameParameterSet(br *bitio.Reader, attributeCount uint32) (PatchFrameParameterSet, error) {
	var pfps PatchFrameParameterSet

	idx, err := br.ReadUVLC()
	if err != nil {
		return pfps, fmt.Errorf("vpcc/v6: reading pfps index: %w", err)
	}
	pfps.Index = idx

	pspsID, err := br.ReadUVLC()
	if err != nil {
		return pfps, err
	}
	pfps.PSPSId = pspsID

	if _, err := br.ReadUVLC(); err != nil { // geometry_patch_frame_parameter_set_id
		return pfps, err
	}
	for i := uint32(0); i < attributeCount; i++ {
		if _, err := br.ReadUVLC(); err != nil { // attribute_patch_frame_parameter_set_id[i]
			return pfps, err
		}
	}

	tiling, err := readPatchFrameTileInformation(br)
	if err != nil {
		return pfps, err
	}
	pfps.Tiling = tiling

	localOverrideGeom, err := br.ReadBits(1)
	if err != nil {
		return pfps, err
	}
	pfps.LocalOverrideGeometryPatchEnabledFlag = localOverrideGeom == 1

	for i := uint32(0); i < attributeCount; i++ {
		if _, err := br.ReadBits(1); err != nil { // local_override_attribute_patch_enabled_flag[i]
			return pfps, err
		}
	}

	ltLen, err := br.ReadUVLC()
	if err != nil {
		return pfps, err
	}
	pfps.AdditionalLtPfocLsbLen = ltLen

	proj45, err := br.ReadBits(1)
	if err != nil {
		return pfps, err
	}
	if proj45 == 1 {
		return pfps, fmt.Errorf("%w: projection_45_degree_enabled_flag set", ErrUnsupportedLayout)
	}

	br.AlignToByte()
	return pfps, nil
}

// TileGroupType mirrors the draft-6 patch tile group type codes. Only
// I-type tile groups are reconstructed by this package.
type TileGroupType uint32

const (
	TileGroupP TileGroupType = iota
	TileGroupI
	TileGroupSkip
)

// PatchTileGroupHeader is the draft-6 analogue of vpcc's ATGLHeader,
// grounded on parsePatchTileGroupHeader. Only the fields this package's
// patch reconstruction consumes are named.
type PatchTileGroupHeader struct {
	PFPSID               uint32
	Type                 TileGroupType
	PatchFrameOrderCntLsb uint32

	PosMinZQuantizer      uint32
	PosDeltaMaxZQuantizer uint32

	Pos2DBitCountMinus1  uint32
	Pos3DUBitCountMinus1 uint32
	Pos3DVBitCountMinus1 uint32
}

// resolveParamSets looks up the PatchFrameParameterSet named by a just-read
// pfps_id and the PatchSequenceParameterSet it in turn references. Patch
// tile group headers name their pfps before any other field, so this
// lookup has to happen mid-parse rather than be supplied up front.
type resolveParamSets func(pfpsID uint32) (PatchFrameParameterSet, PatchSequenceParameterSet, error)

func readPatchTileGroupHeader(br *bitio.Reader, resolve resolveParamSets) (PatchTileGroupHeader, error) {
	var ptgh PatchTileGroupHeader

	pfpsID, err := br.ReadUVLC()
	if err != nil {
		return ptgh, fmt.Errorf("vpcc/v6: reading ptgh pfps id: %w", err)
	}
	ptgh.PFPSID = pfpsID

	pfps, psps, err := resolve(pfpsID)
	if err != nil {
		return ptgh, err
	}
	pfti := pfps.Tiling

	if pfti.SignalledTileGroupIdFlag {
		if _, err := br.ReadBits(int(pfti.SignalledTileGroupIdLengthMinus1 + 1)); err != nil { // address
			return ptgh, err
		}
	}

	typeCode, err := br.ReadUVLC()
	if err != nil {
		return ptgh, err
	}
	ptgh.Type = TileGroupType(typeCode)
	if ptgh.Type != TileGroupI {
		return ptgh, fmt.Errorf("%w: tile group type %d", ErrUnsupportedLayout, typeCode)
	}

	pocLsb, err := br.ReadBits(int(psps.Log2MaxPatchFrameOrderCntLsb))
	if err != nil {
		return ptgh, err
	}
	ptgh.PatchFrameOrderCntLsb = pocLsb

	if psps.NormalAxisLimitsQuantizationEnabledFlag {
		q, err := br.ReadBits(5)
		if err != nil {
			return ptgh, err
		}
		ptgh.PosMinZQuantizer = q
		if psps.NormalAxisMaxDeltaValueEnabledFlag {
			dq, err := br.ReadBits(5)
			if err != nil {
				return ptgh, err
			}
			ptgh.PosDeltaMaxZQuantizer = dq
		}
	}

	pos2D, err := br.ReadBits(8)
	if err != nil {
		return ptgh, err
	}
	ptgh.Pos2DBitCountMinus1 = pos2D

	pos3DU, err := br.ReadBits(8)
	if err != nil {
		return ptgh, err
	}
	ptgh.Pos3DUBitCountMinus1 = pos3DU

	pos3DV, err := br.ReadBits(8)
	if err != nil {
		return ptgh, err
	}
	ptgh.Pos3DVBitCountMinus1 = pos3DV

	if _, err := br.ReadBits(8); err != nil { // patch_size_u_information_quantizer
		return ptgh, err
	}
	if _, err := br.ReadBits(8); err != nil { // patch_size_v_information_quantizer
		return ptgh, err
	}

	br.AlignToByte()
	return ptgh, nil
}

// patchModeI mirrors PCC::PatchModeI::Enum.
const (
	patchModeIIntra uint32 = 0
	patchModeIPCM   uint32 = 1
	patchModeIEnd   uint32 = 14
)

// readPatchTileGroupDataUnit decodes one I-type tile group's patch list,
// terminated by the END mode, per parsePatchTileGroupDataUnit. PCM patch
// data units are rejected: this shim never decodes missed-point geometry.
func readPatchTileGroupDataUnit(br *bitio.Reader, recon *v6ReconParams) ([]v6Patch, error) {
	var patches []v6Patch
	for {
		mode, err := br.ReadUVLC()
		if err != nil {
			return nil, err
		}
		switch mode {
		case patchModeIEnd:
			br.AlignToByte()
			return patches, nil
		case patchModeIIntra:
			p, err := readPatchDataUnitV6(br, recon)
			if err != nil {
				return nil, err
			}
			patches = append(patches, p)
		case patchModeIPCM:
			return nil, fmt.Errorf("%w: pcm patch data unit", ErrUnsupportedLayout)
		default:
			return nil, fmt.Errorf("%w: patch mode %d", ErrUnsupportedLayout, mode)
		}
	}
}
