package vpcc

import (
	"github.com/zsiec/vpccplay/bitio"
)

// Atlas substream NAL unit types that matter to this parser, per
// VPCCParser80.h's NalUnitType enum. Tile-group-layer ACL types occupy
// 0..31; only their numeric range is significant here, not each name.
const (
	atlasNALASPS      = 32
	atlasNALAFPS      = 33
	atlasNALPrefixSEI = 39
	atlasNALSuffixSEI = 40
)

func isAtlasTileGroupLayerNAL(nalType uint32) bool {
	return nalType <= 31
}

// atlasNALHeader mirrors an HEVC NAL header bit-for-bit (forbidden_zero(1)
// + nal_unit_type(6) + layer_id(6) + temporal_id_plus1(3)), per
// VPCCParser80.cpp's nalUnitHeader.
func readAtlasNALHeader(br *bitio.Reader) (uint32, error) {
	if _, err := br.ReadBits(1); err != nil { // forbidden_zero_bit
		return 0, err
	}
	nalType, err := br.ReadBits(6)
	if err != nil {
		return 0, err
	}
	if _, err := br.ReadBits(6); err != nil { // layer_id
		return 0, err
	}
	if _, err := br.ReadBits(3); err != nil { // temporal_id_plus1
		return 0, err
	}
	return nalType, nil
}

// atlasGroupState accumulates the ASPS/AFPS registers and decoded tile
// group layers seen while scanning one AD unit's nested NAL stream, per
// spec.md §4.3.2 ("a nested sample-stream of NAL units containing ASPS,
// AFPS, ATGL, and SEI messages").
type atlasGroupState struct {
	aspsByID map[uint32]ASPS
	afpsByID map[uint32]AFPS

	tileGroups []decodedTileGroup

	// patchesByAFOC maps an atlas frame order count already decoded this
	// AD unit to its patches, so later tile groups can resolve
	// ipdu/mpdu_ref_index against the actual referenced frame via
	// refAFOCList instead of a blind "most recent" scan.
	patchesByAFOC map[int][]Patch
}

type decodedTileGroup struct {
	Header  ATGLHeader
	AFPS    AFPS
	ASPS    ASPS
	Patches []Patch
}

func newAtlasGroupState() *atlasGroupState {
	return &atlasGroupState{
		aspsByID:      make(map[uint32]ASPS),
		afpsByID:      make(map[uint32]AFPS),
		patchesByAFOC: make(map[int][]Patch),
	}
}

// readADUnit scans the nested sample-stream of NAL units inside an AD
// (atlas data) unit's payload, updating state as ASPS/AFPS are seen and
// decoding each tile group layer's patches against the tile groups its
// resolved ref_afoc_list actually names for INTER/MERGE/SKIP reference, per
// spec.md §4.3.2/§4.3.4/§4.3.5. geometry3DBitdepthMinus1 and
// rawSeparateVideoPresent come from the active VPS atlas entry this unit's
// sps_id/atlas_id select.
func readADUnit(br *bitio.Reader, payloadBitEnd int, state *atlasGroupState, geometry3DBitdepthMinus1 uint32, rawSeparateVideoPresent bool) error {
	ssh, err := readNestedSampleStreamHeader(br)
	if err != nil {
		return err
	}

	for br.Pos() < payloadBitEnd {
		size, err := br.ReadBits(ssh.unitSizeBits())
		if err != nil {
			return err
		}
		nalStart := br.Pos()
		nalEnd := nalStart + int(size)*8

		nalType, err := readAtlasNALHeader(br)
		if err != nil {
			return err
		}

		switch {
		case nalType == atlasNALASPS:
			asps, err := readASPS(br)
			if err != nil {
				return err
			}
			state.aspsByID[asps.ID] = asps

		case nalType == atlasNALAFPS:
			afps, err := readAFPS(br)
			if err != nil {
				return err
			}
			state.afpsByID[afps.ID] = afps

		case isAtlasTileGroupLayerNAL(nalType):
			header, afps, asps, err := readATGLHeader(br, state.afpsByID, state.aspsByID)
			if err != nil {
				return err
			}

			params := &patchReconParams{
				ASPS:                      asps,
				AFPS:                      afps,
				ATGH:                      header,
				OccupancyPackingBlockSize: uint32(1) << asps.Log2PatchPackingBlockSize,
				Geometry3DBitdepthMinus1:  geometry3DBitdepthMinus1,
				RefAFOCList:               refAFOCList(asps, header),
				PatchesByAFOC:             state.patchesByAFOC,
			}

			patches, err := readPatchDataUnits(br, params, rawSeparateVideoPresent)
			if err != nil {
				return err
			}

			state.tileGroups = append(state.tileGroups, decodedTileGroup{
				Header:  header,
				AFPS:    afps,
				ASPS:    asps,
				Patches: patches,
			})
			state.patchesByAFOC[int(header.AtlasFrmOrderCntLsb)] = patches

		case nalType == atlasNALPrefixSEI || nalType == atlasNALSuffixSEI:
			// SEI payloads are not consumed by any SPEC_FULL.md component;
			// skip to the NAL's declared end using the size prefix.

		default:
			// AUD/EOS/EOB/filler: nothing to extract.
		}

		br.AlignToByte()
		if br.Pos() < nalEnd {
			if err := br.SkipBits(nalEnd - br.Pos()); err != nil {
				return err
			}
		}
	}

	return nil
}
