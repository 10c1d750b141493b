package vpcc

import (
	"fmt"
	"log/slog"

	"github.com/zsiec/vpccplay/bitio"
	"github.com/zsiec/vpccplay/hevc"
)

// Parser decodes one V-PCC container into a sequence of FrameGroups, per
// spec.md §4.3. A Parser is single-use: construct one per container.
type Parser struct {
	log     *slog.Logger
	ptsFunc PTSFunc
}

// NewParser builds a Parser with the given options applied over the
// defaults (DefaultPTSFunc, slog.Default()).
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		log:     slog.Default().With("component", "vpcc.Parser"),
		ptsFunc: DefaultPTSFunc,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// vpsRegister holds every VPS seen so far, keyed by its 4-bit sps_id, per
// spec.md §4.3.3 ("later units name an active VPS").
type vpsRegister map[uint32]VPS

// streamAccumulator collects the raw OVD/GVD/AVD bytes belonging to one
// FrameGroup before they are split into per-picture packets at the group's
// close, per spec.md §4.3.2.
type streamAccumulator struct {
	occupancy []byte
	geometry  []byte
	texture   []byte
}

// ParseAll decodes every FrameGroup in buf, per spec.md §4.3.1 ("full-stream
// mode").
func (p *Parser) ParseAll(buf []byte) ([]FrameGroup, error) {
	br := bitio.New(buf)

	if _, err := readContainerHeader(br); err != nil {
		return nil, err
	}
	ssh, err := readSampleStreamHeader(br)
	if err != nil {
		return nil, err
	}

	var groups []FrameGroup
	vpsReg := make(vpsRegister)

	var cur *groupBuild
	totalFrameCount := 0

	var flushErr error
	flush := func() {
		if cur == nil || flushErr != nil {
			return
		}
		g, err := cur.finish(p.ptsFunc, &totalFrameCount)
		if err != nil {
			flushErr = err
			return
		}
		groups = append(groups, g)
		cur = nil
	}

	for br.BitsAvailable() >= ssh.unitSizeBits() {
		size, err := br.ReadBits(ssh.unitSizeBits())
		if err != nil {
			return nil, err
		}
		unitBitEnd := br.Pos() + int(size)*8
		if unitBitEnd > len(buf)*8 {
			return nil, fmt.Errorf("%w: unit of %d bytes overruns remaining buffer", ErrMalformedContainer, size)
		}

		header, err := readUnitHeader(br, uint64(size))
		if err != nil {
			return nil, err
		}

		if !header.Type.known() {
			p.log.Warn("skipping unknown v-pcc unit type", "type", byte(header.Type), "size", size)
			if err := br.SkipBits(unitBitEnd - br.Pos()); err != nil {
				return nil, err
			}
			continue
		}

		switch header.Type {
		case UnitVPS:
			flush()
			if flushErr != nil {
				return nil, flushErr
			}
			vps, err := readVPS(br)
			if err != nil {
				return nil, err
			}
			vpsReg[vps.ID] = vps
			cur = newGroupBuild(vps)

		case UnitAD:
			if cur == nil {
				return nil, fmt.Errorf("%w: atlas data unit before any VPS", ErrMissingUnitOrder)
			}
			vps, ok := vpsReg[header.SequenceParameterSetID]
			if !ok {
				return nil, fmt.Errorf("%w: atlas data references unknown sps_id %d", ErrMissingUnitOrder, header.SequenceParameterSetID)
			}
			atlas := vps.atlasFor(header.AtlasID)
			if err := readADUnit(br, unitBitEnd, cur.atlas, atlas.Geometry.Geometry3DCoordinatesBitdepthMinus1, atlas.RawSeparateVideoPresentFlag); err != nil {
				return nil, err
			}

		case UnitOVD:
			if cur == nil {
				return nil, fmt.Errorf("%w: occupancy video unit before any VPS", ErrMissingUnitOrder)
			}
			payload, err := readRawPayload(br, unitBitEnd)
			if err != nil {
				return nil, err
			}
			cur.streams.occupancy = append(cur.streams.occupancy, payload...)

		case UnitGVD:
			if cur == nil {
				return nil, fmt.Errorf("%w: geometry video unit before any VPS", ErrMissingUnitOrder)
			}
			payload, err := readRawPayload(br, unitBitEnd)
			if err != nil {
				return nil, err
			}
			cur.streams.geometry = append(cur.streams.geometry, payload...)

		case UnitAVD:
			if cur == nil {
				return nil, fmt.Errorf("%w: attribute video unit before any VPS", ErrMissingUnitOrder)
			}
			payload, err := readRawPayload(br, unitBitEnd)
			if err != nil {
				return nil, err
			}
			cur.streams.texture = append(cur.streams.texture, payload...)
		}

		br.AlignToByte()
		if br.Pos() < unitBitEnd {
			if err := br.SkipBits(unitBitEnd - br.Pos()); err != nil {
				return nil, err
			}
		}
	}

	flush()
	if flushErr != nil {
		return nil, flushErr
	}

	if err := checkFrameSizeConsistency(groups); err != nil {
		return nil, err
	}

	return groups, nil
}

// atlasFor returns the AtlasVPS entry for atlasID, or the zero value if the
// VPS carries no atlas at that index (single-atlas streams are the common
// case and always index 0).
func (v VPS) atlasFor(atlasID uint32) AtlasVPS {
	if int(atlasID) < len(v.Atlases) {
		return v.Atlases[atlasID]
	}
	if len(v.Atlases) > 0 {
		return v.Atlases[0]
	}
	return AtlasVPS{}
}

// readRawPayload copies the remaining bits of the current unit, up to
// unitBitEnd, out as bytes. OVD/GVD/AVD payloads are raw HEVC Annex B byte
// streams and are never bit-parsed directly; they are reassembled here and
// handed to hevc.SplitIntoPackets once their FrameGroup closes.
func readRawPayload(br *bitio.Reader, unitBitEnd int) ([]byte, error) {
	nBytes := (unitBitEnd - br.Pos()) / 8
	buf := make([]byte, nBytes)
	for i := range buf {
		b, err := br.ReadU8()
		if err != nil {
			return nil, err
		}
		buf[i] = b
	}
	return buf, nil
}

// groupBuild accumulates everything needed to materialize one FrameGroup:
// the active VPS, the atlas substream's decoded tile groups, and the raw
// occupancy/geometry/texture bytes.
type groupBuild struct {
	vps     VPS
	atlas   *atlasGroupState
	streams streamAccumulator
}

func newGroupBuild(vps VPS) *groupBuild {
	return &groupBuild{
		vps:   vps,
		atlas: newAtlasGroupState(),
	}
}

// finish splits the accumulated OVD/GVD/AVD byte streams into per-picture
// packets, pairs them positionally with the decoded tile groups, and
// assigns PTS values, producing the finished FrameGroup.
func (g *groupBuild) finish(ptsFunc PTSFunc, totalFrameCount *int) (FrameGroup, error) {
	// Each of the three component streams is its own independent HEVC
	// elementary stream with its own parameter sets.
	occPackets, err := hevc.SplitIntoPackets(g.streams.occupancy, &hevc.ConfigBuilder{})
	if err != nil {
		return FrameGroup{}, fmt.Errorf("vpcc: splitting occupancy stream: %w", err)
	}
	geoPackets, err := hevc.SplitIntoPackets(g.streams.geometry, &hevc.ConfigBuilder{})
	if err != nil {
		return FrameGroup{}, fmt.Errorf("vpcc: splitting geometry stream: %w", err)
	}
	texPackets, err := hevc.SplitIntoPackets(g.streams.texture, &hevc.ConfigBuilder{})
	if err != nil {
		return FrameGroup{}, fmt.Errorf("vpcc: splitting texture stream: %w", err)
	}

	atlas := g.vps.atlasFor(0)

	frames := make([]FrameData, len(g.atlas.tileGroups))
	for i, tg := range g.atlas.tileGroups {
		blockSize := uint32(1) << tg.ASPS.Log2PatchPackingBlockSize
		canvasWidth := ceilDiv(atlas.FrameWidth, blockSize)
		canvasHeight := ceilDiv(atlas.FrameHeight, blockSize)

		blockToPatch := BuildBlockToPatchMap(tg.Patches, canvasWidth, canvasHeight, tg.ASPS.PatchPrecedenceOrderFlag)

		f := FrameData{
			Index:        i,
			Width:        int(atlas.FrameWidth),
			Height:       int(atlas.FrameHeight),
			PTS:          ptsFunc(*totalFrameCount, i),
			Patches:      tg.Patches,
			BlockToPatch: blockToPatch,
			CanvasWidth:  int(canvasWidth),
			CanvasHeight: int(canvasHeight),
			RefAFOCList:  refAFOCList(tg.ASPS, tg.Header),
			ATGHType:     tg.Header.Type,
		}
		f.OccupancyPacket = videoPacketAt(occPackets, i)
		f.GeometryPacket = videoPacketAt(geoPackets, i)
		f.TexturePacket = videoPacketAt(texPackets, i)

		frames[i] = f
		*totalFrameCount++
	}

	return FrameGroup{
		Frames:          frames,
		OccupancyStream: g.streams.occupancy,
		GeometryStream:  g.streams.geometry,
		TextureStream:   g.streams.texture,
		FrameWidth:      int(atlas.FrameWidth),
		FrameHeight:     int(atlas.FrameHeight),
		VPS:             g.vps,
	}, nil
}

func videoPacketAt(packets []hevc.VideoPacket, i int) VideoPacket {
	if i >= len(packets) {
		return VideoPacket{}
	}
	pkt := packets[i]
	return VideoPacket{
		Data:   pkt.Data,
		IsIRAP: pkt.IsIRAP,
		IsIDR:  pkt.IsIDR,
		POC:    pkt.POC,
	}
}

// refAFOCList reconstructs the list of reference atlas frame order counts a
// frame's INTER/MERGE/SKIP patches may resolve against, from the active
// ASPS's selected RefListStruct (or the ATGL header's own override), per
// spec.md §4.3.5 ("ref_index to select an entry from FrameData.ref_afoc_list").
func refAFOCList(asps ASPS, h ATGLHeader) []int {
	rl := h.OverrideRefList
	if h.RefAtlasFrameListSpsFlag && int(h.RefAtlasFrameListIdx) < len(asps.RefListStructs) {
		rl = asps.RefListStructs[h.RefAtlasFrameListIdx]
	}

	afoc := int(h.AtlasFrmOrderCntLsb)
	out := make([]int, 0, len(rl.Entries))
	running := afoc
	for _, e := range rl.Entries {
		delta := int(e.AbsDeltaAFOCMinus1) + 1
		if e.StrictlyDecreasing {
			running -= delta
		} else {
			running += delta
		}
		out = append(out, running)
	}
	return out
}

// checkFrameSizeConsistency enforces that every FrameGroup after the first
// shares the first's frame dimensions, per spec.md §9 (mid-stream decoder
// reinitialization is disallowed by policy).
func checkFrameSizeConsistency(groups []FrameGroup) error {
	if len(groups) == 0 {
		return nil
	}
	w, h := groups[0].FrameWidth, groups[0].FrameHeight
	for _, g := range groups[1:] {
		if g.FrameWidth != w || g.FrameHeight != h {
			return fmt.Errorf("%w: %dx%d vs %dx%d", ErrInconsistentFrameSize, g.FrameWidth, g.FrameHeight, w, h)
		}
	}
	return nil
}
