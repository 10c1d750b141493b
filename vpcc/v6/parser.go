package v6

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/vpccplay/bitio"
	"github.com/zsiec/vpccplay/hevc"
	"github.com/zsiec/vpccplay/vpcc"
)

// Parser decodes one draft-6 container into a single vpcc.FrameGroup. A
// draft-6 container carries exactly one SPS, one PDG unit (itself a run of
// PSPS/PFPS/PTGLU sub-units), and one each of OVD/GVD/AVD, so unlike
// vpcc.Parser there is no VPS-delimited repetition to flush on.
type Parser struct {
	log *slog.Logger
}

// NewParser builds a Parser logging through slog.Default().
func NewParser() *Parser {
	return &Parser{log: slog.Default().With("component", "vpcc/v6.Parser")}
}

// ParseAll decodes buf into a single-element FrameGroup slice, matching
// vpcc.Parser.ParseAll's signature so callers can route a buffer to
// whichever package applies without changing their call site.
func (p *Parser) ParseAll(buf []byte) ([]vpcc.FrameGroup, error) {
	br := bitio.New(buf)

	if _, err := readHeader(br); err != nil {
		return nil, err
	}

	var sps SequenceParameterSet
	var haveSPS bool
	pspsReg := make(map[uint32]PatchSequenceParameterSet)
	pfpsReg := make(map[uint32]PatchFrameParameterSet)

	var occupancy, geometry, texture []byte
	var tileGroups []tileGroupResult

	for i := 0; i < 5; i++ {
		if br.BitsAvailable() < 5 {
			return nil, fmt.Errorf("%w: truncated unit sequence after %d units", ErrMalformedContainer, i)
		}
		if !haveSPS && i > 0 {
			return nil, fmt.Errorf("%w: unit %d before sps", ErrMissingUnitOrder, i)
		}

		uh, err := readUnitHeader(br, sps)
		if err != nil {
			return nil, err
		}

		switch uh.Type {
		case UnitSPS:
			sps, err = readSequenceParameterSet(br)
			if err != nil {
				return nil, err
			}
			haveSPS = true

		case UnitPDG:
			groups, err := readPatchDataGroup(br, sps, pspsReg, pfpsReg)
			if err != nil {
				return nil, err
			}
			tileGroups = groups

		case UnitOVD:
			payload, err := readSizedPayload(br)
			if err != nil {
				return nil, err
			}
			occupancy = payload

		case UnitGVD:
			payload, err := readSizedPayload(br)
			if err != nil {
				return nil, err
			}
			geometry = payload

		case UnitAVD:
			payload, err := readSizedPayload(br)
			if err != nil {
				return nil, err
			}
			texture = payload
		}

		br.AlignToByte()
	}

	if !haveSPS {
		return nil, fmt.Errorf("%w: missing sps unit", ErrMissingUnitOrder)
	}

	occPackets, err := hevc.SplitIntoPackets(occupancy, &hevc.ConfigBuilder{})
	if err != nil {
		return nil, fmt.Errorf("vpcc/v6: splitting occupancy stream: %w", err)
	}
	geoPackets, err := hevc.SplitIntoPackets(geometry, &hevc.ConfigBuilder{})
	if err != nil {
		return nil, fmt.Errorf("vpcc/v6: splitting geometry stream: %w", err)
	}
	texPackets, err := hevc.SplitIntoPackets(texture, &hevc.ConfigBuilder{})
	if err != nil {
		return nil, fmt.Errorf("vpcc/v6: splitting texture stream: %w", err)
	}

	blockSize := uint32(1) << sps.Log2PatchPackingBlockSize
	canvasWidth := ceilDivV6(sps.FrameWidth, blockSize)
	canvasHeight := ceilDivV6(sps.FrameHeight, blockSize)

	frames := make([]vpcc.FrameData, len(tileGroups))
	for i, tg := range tileGroups {
		blockToPatch := vpcc.BuildBlockToPatchMap(tg.Patches, canvasWidth, canvasHeight, false)
		f := vpcc.FrameData{
			Index:        i,
			Width:        int(sps.FrameWidth),
			Height:       int(sps.FrameHeight),
			PTS:          vpcc.DefaultPTSFunc(i, i),
			Patches:      tg.Patches,
			BlockToPatch: blockToPatch,
			CanvasWidth:  int(canvasWidth),
			CanvasHeight: int(canvasHeight),
			ATGHType:     vpcc.ATGTypeI,
		}
		f.OccupancyPacket = videoPacketAt(occPackets, i)
		f.GeometryPacket = videoPacketAt(geoPackets, i)
		f.TexturePacket = videoPacketAt(texPackets, i)
		frames[i] = f
	}

	group := vpcc.FrameGroup{
		Frames:          frames,
		OccupancyStream: occupancy,
		GeometryStream:  geometry,
		TextureStream:   texture,
		FrameWidth:      int(sps.FrameWidth),
		FrameHeight:     int(sps.FrameHeight),
	}

	return []vpcc.FrameGroup{group}, nil
}

func videoPacketAt(packets []hevc.VideoPacket, i int) vpcc.VideoPacket {
	if i >= len(packets) {
		return vpcc.VideoPacket{}
	}
	pkt := packets[i]
	return vpcc.VideoPacket{
		Data:   pkt.Data,
		IsIRAP: pkt.IsIRAP,
		IsIDR:  pkt.IsIDR,
		POC:    pkt.POC,
	}
}

// readSizedPayload reads the raw 32-bit size prefix used by OVD/GVD/AVD
// units (videoBitstream in the reference parser) and returns the following
// raw bytes unparsed; they are handed to hevc.SplitIntoPackets once every
// unit has been read.
func readSizedPayload(br *bitio.Reader) ([]byte, error) {
	size, err := br.ReadU32()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	for i := range buf {
		b, err := br.ReadU8()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// tileGroupResult is one decoded PTGLU's worth of patches.
type tileGroupResult struct {
	Patches []vpcc.Patch
}

// readPatchDataGroup decodes the do-while run of PSPS/PFPS/PTGLU sub-units
// inside one PDG VPCC unit, per parsePatchDataGroup in PCCParser60.cpp. The
// trailing stop-bit (pdg_extension_flag's loop condition, inverted) ends
// the run; PREFIX_SEI/SUFFIX_SEI and the geometry/attribute parameter set
// variants are all outside this shim's scope and reject the bitstream
// rather than silently skip it.
func readPatchDataGroup(br *bitio.Reader, sps SequenceParameterSet, pspsReg map[uint32]PatchSequenceParameterSet, pfpsReg map[uint32]PatchFrameParameterSet) ([]tileGroupResult, error) {
	var results []tileGroupResult

	for {
		typeCode, err := br.ReadUVLC()
		if err != nil {
			return nil, err
		}

		switch PDGUnitType(typeCode) {
		case PDGPSPS:
			psps, err := readPatchSequenceParameterSet(br)
			if err != nil {
				return nil, err
			}
			pspsReg[psps.Index] = psps

		case PDGPFPS:
			pfps, err := readPatchFrameParameterSet(br, sps.AttributeCount)
			if err != nil {
				return nil, err
			}
			pfpsReg[pfps.Index] = pfps

		case PDGPTGLU:
			resolve := func(pfpsID uint32) (PatchFrameParameterSet, PatchSequenceParameterSet, error) {
				pfps, ok := pfpsReg[pfpsID]
				if !ok {
					return PatchFrameParameterSet{}, PatchSequenceParameterSet{}, fmt.Errorf("%w: ptgh references unknown pfps %d", ErrMissingUnitOrder, pfpsID)
				}
				psps, ok := pspsReg[pfps.PSPSId]
				if !ok {
					return PatchFrameParameterSet{}, PatchSequenceParameterSet{}, fmt.Errorf("%w: pfps references unknown psps %d", ErrMissingUnitOrder, pfps.PSPSId)
				}
				return pfps, psps, nil
			}

			ptgh, err := readPatchTileGroupHeader(br, resolve)
			if err != nil {
				return nil, err
			}
			pfps := pfpsReg[ptgh.PFPSID]
			psps := pspsReg[pfps.PSPSId]

			recon := &v6ReconParams{
				PSPS:                      psps,
				PFPS:                      pfps,
				PTGH:                      ptgh,
				OccupancyPackingBlockSize: sps.OccupancyPackingBlockSize,
				Geometry3DBitdepthMinus1:  sps.GeometryNominal3DBitdepth - 1,
			}
			patches, err := readPatchTileGroupDataUnit(br, recon)
			if err != nil {
				return nil, err
			}
			results = append(results, tileGroupResult{Patches: patches})

		default:
			return nil, fmt.Errorf("%w: pdg unit type %d", ErrUnsupportedLayout, typeCode)
		}

		br.AlignToByte()

		stop, err := br.ReadBits(1)
		if err != nil {
			return nil, err
		}
		if stop == 1 {
			break
		}
	}

	br.AlignToByte()
	return results, nil
}
