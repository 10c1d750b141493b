// Package hevc splits a raw HEVC Annex B byte stream into access-unit
// aligned video packets and extracts the VPS/SPS/PPS decoder configuration,
// per spec.md §4.2.
package hevc

// NAL unit type constants, ITU-T H.265 Table 7-1.
const (
	NALTrailN   = 0
	NALTrailR   = 1
	NALTSAN     = 2
	NALTSAR     = 3
	NALSTSAN    = 4
	NALSTSAR    = 5
	NALRADLN    = 6
	NALRADLR    = 7
	NALRASLN    = 8
	NALRASLR    = 9
	NALBLAWLP   = 16
	NALBLAWRADL = 17
	NALBLANLP   = 18
	NALIDRWRADL = 19
	NALIDRNLP   = 20
	NALCRANUT   = 21
	NALVPS      = 32
	NALSPS      = 33
	NALPPS      = 34
	NALAUD      = 35
	NALEOS      = 36
	NALEOB      = 37
	NALFiller   = 38
	NALSEIPfx   = 39
	NALSEISfx   = 40
)

// IsSlice returns true if the NAL type is one of the VCL (slice) NAL unit
// types, per spec.md §4.2 ("slice NALs are types 0-9, 16-21").
func IsSlice(nalType byte) bool {
	return (nalType <= 9) || (nalType >= 16 && nalType <= 21)
}

// IsIRAP returns true if the NAL type is an intra random access point
// (BLA, IDR, or CRA), used to gate no_output_of_prior_pics_flag parsing
// in the slice header and to reset POC.
func IsIRAP(nalType byte) bool {
	return nalType >= NALBLAWLP && nalType <= 23
}

// IsIDR returns true if the NAL type is an IDR slice; IDR pictures always
// have POC 0.
func IsIDR(nalType byte) bool {
	return nalType == NALIDRWRADL || nalType == NALIDRNLP
}

// NalUnit describes one NAL unit located by scanning an Annex B byte stream.
type NalUnit struct {
	Type         byte
	Offset       int // offset of the NAL unit header, including the start code
	Length       int // length of the NAL unit, including the start code
	HeaderLength int // length of the start code (3 or 4)
}

// NALType extracts the 6-bit NAL unit type from the first byte of the
// 2-byte HEVC NAL header: forbidden_zero_bit(1) | nal_unit_type(6) | ...
func NALType(firstHeaderByte byte) byte {
	return (firstHeaderByte >> 1) & 0x3F
}

// ScanNALUnits scans buf for Annex B start codes (3-byte 0x000001 or 4-byte
// 0x00000001) and classifies each NAL unit's type. The last NAL unit's
// length runs to the end of buf.
func ScanNALUnits(buf []byte) []NalUnit {
	n := len(buf)
	if n < 4 {
		return nil
	}

	type startCode struct {
		scStart      int
		headerLength int
	}

	var codes []startCode
	i := 0
	for i < n-2 {
		if buf[i] == 0 && buf[i+1] == 0 {
			if i < n-3 && buf[i+2] == 0 && buf[i+3] == 1 {
				codes = append(codes, startCode{scStart: i, headerLength: 4})
				i += 4
				continue
			}
			if buf[i+2] == 1 {
				codes = append(codes, startCode{scStart: i, headerLength: 3})
				i += 3
				continue
			}
		}
		i++
	}

	var units []NalUnit
	for idx, c := range codes {
		payloadStart := c.scStart + c.headerLength
		if payloadStart >= n {
			continue
		}
		end := n
		if idx+1 < len(codes) {
			end = codes[idx+1].scStart
		}
		if payloadStart >= end {
			continue
		}

		units = append(units, NalUnit{
			Type:         NALType(buf[payloadStart]),
			Offset:       c.scStart,
			Length:       end - c.scStart,
			HeaderLength: c.headerLength,
		})
	}
	return units
}
