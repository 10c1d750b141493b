package v6

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// UnitType mirrors PCC::VPCCUnitType::Enum.
type UnitType uint8

const (
	UnitSPS UnitType = iota
	UnitPDG
	UnitOVD
	UnitGVD
	UnitAVD
)

// UnitHeader carries the subset of parseVPCCUnitHeader's fields this shim
// needs: the sequence parameter set id is read but unused (draft-6
// fixtures only ever carry a single SPS), and the AVD/GVD per-layer/PCM
// fields are read to keep the bitstream aligned and then discarded. SPS
// parsing rejects pcm_patch_enabled_flag, so pcmSeparateVideoPresentFlag is
// never set here; multipleLayerStreamsPresentFlag is accepted and only
// changes which of these bits are read.
type UnitHeader struct {
	Type UnitType
}

func readUnitHeader(br *bitio.Reader, sps SequenceParameterSet) (UnitHeader, error) {
	raw, err := br.ReadBits(5)
	if err != nil {
		return UnitHeader{}, fmt.Errorf("vpcc/v6: reading unit type: %w", err)
	}
	t := UnitType(raw)
	if t > UnitAVD {
		return UnitHeader{}, fmt.Errorf("%w: unit type %d", ErrUnknownUnitType, raw)
	}

	if t == UnitAVD || t == UnitGVD || t == UnitOVD || t == UnitPDG {
		if _, err := br.ReadBits(4); err != nil { // sequence_parameter_set_id
			return UnitHeader{}, err
		}
	}

	switch t {
	case UnitAVD:
		if _, err := br.ReadBits(7); err != nil { // attribute_index
			return UnitHeader{}, err
		}
		if _, err := br.ReadBits(7); err != nil { // attribute_dimension_index
			return UnitHeader{}, err
		}
		if sps.MultipleLayerStreamsPresentFlag {
			if _, err := br.ReadBits(4); err != nil { // layer_index
				return UnitHeader{}, err
			}
			if err := readPCMSeparateVideoData(br, sps, 4); err != nil {
				return UnitHeader{}, err
			}
		} else if err := readPCMSeparateVideoData(br, sps, 8); err != nil {
			return UnitHeader{}, err
		}

	case UnitGVD:
		if sps.MultipleLayerStreamsPresentFlag {
			if _, err := br.ReadBits(4); err != nil { // layer_index
				return UnitHeader{}, err
			}
			if err := readPCMSeparateVideoData(br, sps, 18); err != nil {
				return UnitHeader{}, err
			}
		} else if err := readPCMSeparateVideoData(br, sps, 22); err != nil {
			return UnitHeader{}, err
		}

	case UnitOVD, UnitPDG:
		if _, err := br.ReadBits(23); err != nil {
			return UnitHeader{}, err
		}

	default: // UnitSPS
		if _, err := br.ReadBits(27); err != nil {
			return UnitHeader{}, err
		}
	}

	return UnitHeader{Type: t}, nil
}

func readPCMSeparateVideoData(br *bitio.Reader, sps SequenceParameterSet, bitCount int) error {
	if sps.PCMSeparateVideoPresentFlag {
		if _, err := br.ReadBits(1); err != nil { // pcm_video_flag
			return err
		}
		_, err := br.ReadBits(bitCount)
		return err
	}
	_, err := br.ReadBits(bitCount + 1)
	return err
}

// ErrUnknownUnitType mirrors vpcc.ErrUnknownUnitType for this package's own
// unit dispatch.
var ErrUnknownUnitType = fmt.Errorf("vpcc/v6: unknown unit type")
