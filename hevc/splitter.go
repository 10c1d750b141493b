package hevc

import (
	"github.com/zsiec/vpccplay/bitio"
)

// VideoPacket is one access-unit aligned group of NAL units extracted from
// an Annex B byte stream: exactly the slice NAL units belonging to one
// picture, plus any SUFFIX_SEI NAL units immediately trailing them, per
// spec.md §4.2 ("packet boundaries").
type VideoPacket struct {
	Data   []byte // concatenated NAL units (each with its original start code) making up the packet
	IsIRAP bool   // true if the picture's first slice NAL is an IRAP type
	IsIDR  bool   // true if the picture's first slice NAL is an IDR type
	POC    int32  // decoded picture order count, 0 for IDR pictures
}

// sliceHeaderInfo is the subset of an HEVC slice_segment_header the
// splitter needs to detect picture boundaries and recover POC.
type sliceHeaderInfo struct {
	firstSliceSegmentInPicFlag bool
	picOrderCntLsb             uint32
}

// parseSliceHeader reads just enough of a slice NAL unit's payload (after
// the 2-byte NAL header) to determine whether it starts a new picture and,
// for non-IDR pictures, its picture order count LSB.
func parseSliceHeader(nalType byte, payload []byte, log2MaxPocLsbMinus4 uint) (sliceHeaderInfo, error) {
	var info sliceHeaderInfo

	br := bitio.NewEmulationPrevented(payload)

	first, err := br.ReadBits(1)
	if err != nil {
		return info, err
	}
	info.firstSliceSegmentInPicFlag = first == 1

	if IsIRAP(nalType) {
		if _, err := br.ReadBits(1); err != nil { // no_output_of_prior_pics_flag
			return info, err
		}
	}

	if _, err := br.ReadUVLC(); err != nil { // slice_pic_parameter_set_id
		return info, err
	}

	if IsIDR(nalType) {
		return info, nil
	}

	if _, err := br.ReadUVLC(); err != nil { // slice_type
		return info, err
	}

	pocBits := int(log2MaxPocLsbMinus4) + 4
	lsb, err := br.ReadBits(pocBits)
	if err != nil {
		return info, err
	}
	info.picOrderCntLsb = lsb

	return info, nil
}

// payload returns the NAL unit's bytes after the start code (i.e. starting
// at the 2-byte NAL header), clipped to the unit's length.
func payloadOf(buf []byte, u NalUnit) []byte {
	start := u.Offset + u.HeaderLength
	end := u.Offset + u.Length
	if end > len(buf) {
		end = len(buf)
	}
	if start >= end {
		return nil
	}
	return buf[start:end]
}

// SplitIntoPackets groups the NAL units of buf into VideoPackets: each new
// picture starts at a slice NAL unit whose first_slice_segment_in_pic_flag
// is set, runs through any following non-first-slice NAL units of the same
// picture, and absorbs a trailing SUFFIX_SEI NAL unit if present. Any other
// non-slice NAL unit (VPS/SPS/PPS/AUD/prefix SEI/filler) ends the current
// packet and is itself excluded from both the packet it follows and the one
// it precedes, per the literal packet boundary definition. cfg is updated
// in place as parameter sets are encountered.
func SplitIntoPackets(buf []byte, cfg *ConfigBuilder) ([]VideoPacket, error) {
	units := ScanNALUnits(buf)

	var packets []VideoPacket
	var cur *VideoPacket
	var curStart int

	flush := func(end int) {
		if cur == nil {
			return
		}
		cur.Data = buf[curStart:end]
		packets = append(packets, *cur)
		cur = nil
	}

	for _, u := range units {
		body := payloadOf(buf, u)

		switch {
		case u.Type == NALVPS || u.Type == NALSPS || u.Type == NALPPS:
			if len(body) >= 2 {
				if err := cfg.Observe(u.Type, body); err != nil {
					return nil, err
				}
			}
			flush(u.Offset)

		case IsSlice(u.Type):
			if len(body) < 3 {
				continue
			}
			hdr, err := parseSliceHeader(u.Type, body[2:], cfg.spsInfoLog2MaxPocLsbMinus4())
			if err != nil {
				return nil, err
			}

			if hdr.firstSliceSegmentInPicFlag {
				flush(u.Offset)
				curStart = u.Offset
				poc := int32(0)
				if !IsIDR(u.Type) {
					poc = int32(hdr.picOrderCntLsb)
				}
				cur = &VideoPacket{
					IsIRAP: IsIRAP(u.Type),
					IsIDR:  IsIDR(u.Type),
					POC:    poc,
				}
			}
			// non-first slice NAL units of the current picture are folded
			// into it implicitly: Data is sliced from curStart on flush.

		case u.Type == NALSEISfx:
			// a trailing suffix SEI belongs to the picture that precedes it;
			// leave cur open so it is absorbed by the next flush boundary.

		default:
			// AUD, prefix SEI, filler, EOS/EOB between pictures: excluded.
			flush(u.Offset)
		}
	}

	if len(units) > 0 {
		flush(len(buf))
	}

	return packets, nil
}

// spsInfoLog2MaxPocLsbMinus4 exposes the most recently parsed SPS's POC LSB
// bit width to the splitter without requiring the splitter to re-parse SPS
// NAL units itself.
func (b *ConfigBuilder) spsInfoLog2MaxPocLsbMinus4() uint {
	if !b.haveSPSInfo {
		return 4
	}
	return b.spsInfo.Log2MaxPicOrderCntLsbMinus4
}
