package hevc

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/zsiec/vpccplay/bitio"
)

// errSPSTooShort mirrors the teacher's naming for a too-short NAL payload.
var errSPSTooShort = errors.New("hevc: SPS data too short")

// SPSInfo holds the parameters extracted from an HEVC SPS NAL unit that the
// rest of the player needs: resolution (for DecoderConfig), profile/tier/
// level (for the codec string), and log2_max_pic_order_cnt_lsb_minus4 (for
// slice header POC extraction in split_into_packets).
type SPSInfo struct {
	Width  int
	Height int

	ProfileIDC byte
	TierFlag   byte
	LevelIDC   byte

	ProfileCompatibilityFlags uint32
	ConstraintIndicatorFlags  uint64

	ChromaFormatIdc      byte
	BitDepthLumaMinus8   byte
	BitDepthChromaMinus8 byte

	Log2MaxPicOrderCntLsbMinus4 uint
}

// CodecString returns the RFC 6381 codec parameter string (e.g.
// "hev1.1.6.L93.B0") for use in decoder configuration handoff.
func (s SPSInfo) CodecString() string {
	tier := "L"
	if s.TierFlag == 1 {
		tier = "H"
	}

	reversed := bits.Reverse32(s.ProfileCompatibilityFlags)

	var constraintBytes [6]byte
	for i := 0; i < 6; i++ {
		constraintBytes[i] = byte((s.ConstraintIndicatorFlags >> uint((5-i)*8)) & 0xFF)
	}
	lastNonZero := -1
	for i := 5; i >= 0; i-- {
		if constraintBytes[i] != 0 {
			lastNonZero = i
			break
		}
	}

	codec := fmt.Sprintf("hev1.%d.%X.%s%d", s.ProfileIDC, reversed, tier, s.LevelIDC)
	if lastNonZero >= 0 {
		for i := 0; i <= lastNonZero; i++ {
			codec += fmt.Sprintf(".%X", constraintBytes[i])
		}
	}
	return codec
}

// ParseSPS parses an HEVC SPS NAL unit (raw data including the 2-byte NAL
// header, without the start code) to extract resolution, profile/tier/
// level, and the POC LSB bit width.
func ParseSPS(nalu []byte) (SPSInfo, error) {
	if len(nalu) < 4 {
		return SPSInfo{}, errSPSTooShort
	}

	br := bitio.NewEmulationPrevented(nalu[2:])

	if _, err := br.ReadBits(4); err != nil { // sps_video_parameter_set_id
		return SPSInfo{}, err
	}

	maxSubLayersMinus1, err := br.ReadBits(3)
	if err != nil {
		return SPSInfo{}, err
	}

	if _, err := br.ReadBits(1); err != nil { // sps_temporal_id_nesting_flag
		return SPSInfo{}, err
	}

	info := SPSInfo{}
	if err := parseProfileTierLevel(br, &info, uint(maxSubLayersMinus1)); err != nil {
		return SPSInfo{}, err
	}

	if _, err := br.ReadUVLC(); err != nil { // sps_seq_parameter_set_id
		return SPSInfo{}, err
	}

	chromaFormatIdc, err := br.ReadUVLC()
	if err != nil {
		return SPSInfo{}, err
	}
	info.ChromaFormatIdc = byte(chromaFormatIdc)

	if chromaFormatIdc == 3 {
		if _, err := br.ReadBits(1); err != nil { // separate_colour_plane_flag
			return SPSInfo{}, err
		}
	}

	width, err := br.ReadUVLC()
	if err != nil {
		return SPSInfo{}, err
	}
	height, err := br.ReadUVLC()
	if err != nil {
		return SPSInfo{}, err
	}
	info.Width = int(width)
	info.Height = int(height)

	confWindowFlag, err := br.ReadBits(1)
	if err != nil {
		return info, nil
	}
	if confWindowFlag == 1 {
		left, err := br.ReadUVLC()
		if err != nil {
			return info, nil
		}
		right, err := br.ReadUVLC()
		if err != nil {
			return info, nil
		}
		top, err := br.ReadUVLC()
		if err != nil {
			return info, nil
		}
		bottom, err := br.ReadUVLC()
		if err != nil {
			return info, nil
		}

		var subWidthC, subHeightC uint32
		switch chromaFormatIdc {
		case 1:
			subWidthC, subHeightC = 2, 2
		case 2:
			subWidthC, subHeightC = 2, 1
		default:
			subWidthC, subHeightC = 1, 1
		}
		info.Width -= int((left + right) * subWidthC)
		info.Height -= int((top + bottom) * subHeightC)
	}

	bdl, err := br.ReadUVLC()
	if err != nil {
		return info, nil
	}
	info.BitDepthLumaMinus8 = byte(bdl)

	bdc, err := br.ReadUVLC()
	if err != nil {
		return info, nil
	}
	info.BitDepthChromaMinus8 = byte(bdc)

	log2MaxPoc, err := br.ReadUVLC()
	if err != nil {
		return info, nil
	}
	info.Log2MaxPicOrderCntLsbMinus4 = uint(log2MaxPoc)

	return info, nil
}

func parseProfileTierLevel(br *bitio.Reader, info *SPSInfo, maxSubLayersMinus1 uint) error {
	if _, err := br.ReadBits(2); err != nil { // general_profile_space
		return err
	}
	tierFlag, err := br.ReadBits(1)
	if err != nil {
		return err
	}
	info.TierFlag = byte(tierFlag)

	profileIDC, err := br.ReadBits(5)
	if err != nil {
		return err
	}
	info.ProfileIDC = byte(profileIDC)

	hi, err := br.ReadBits(16)
	if err != nil {
		return err
	}
	lo, err := br.ReadBits(16)
	if err != nil {
		return err
	}
	info.ProfileCompatibilityFlags = hi<<16 | lo

	var cif uint64
	for i := 0; i < 6; i++ {
		b, err := br.ReadBits(8)
		if err != nil {
			return err
		}
		cif = (cif << 8) | uint64(b)
	}
	info.ConstraintIndicatorFlags = cif

	levelIDC, err := br.ReadBits(8)
	if err != nil {
		return err
	}
	info.LevelIDC = byte(levelIDC)

	if maxSubLayersMinus1 == 0 {
		return nil
	}

	var subLayerProfilePresent, subLayerLevelPresent [8]bool
	for i := uint(0); i < maxSubLayersMinus1; i++ {
		pp, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		subLayerProfilePresent[i] = pp == 1

		lp, err := br.ReadBits(1)
		if err != nil {
			return err
		}
		subLayerLevelPresent[i] = lp == 1
	}
	if maxSubLayersMinus1 < 8 {
		for i := maxSubLayersMinus1; i < 8; i++ {
			if _, err := br.ReadBits(2); err != nil { // reserved alignment bits
				return err
			}
		}
	}
	for i := uint(0); i < maxSubLayersMinus1; i++ {
		if subLayerProfilePresent[i] {
			if _, err := br.ReadBits(32); err != nil {
				return err
			}
			if _, err := br.ReadBits(32); err != nil {
				return err
			}
			if _, err := br.ReadBits(24); err != nil {
				return err
			}
		}
		if subLayerLevelPresent[i] {
			if _, err := br.ReadBits(8); err != nil {
				return err
			}
		}
	}
	return nil
}
