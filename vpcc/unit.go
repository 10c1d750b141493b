package vpcc

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// UnitType is the 5-bit discriminant of a V-PCC unit, per spec.md §3/§6.
type UnitType byte

const (
	UnitVPS      UnitType = 0
	UnitAD       UnitType = 1 // atlas data
	UnitOVD      UnitType = 2 // occupancy video data
	UnitGVD      UnitType = 3 // geometry video data
	UnitAVD      UnitType = 4 // attribute video data
	unitReserved UnitType = 5 // 5..31 are reserved
)

func (t UnitType) known() bool {
	return t <= UnitAVD
}

func (t UnitType) String() string {
	switch t {
	case UnitVPS:
		return "VPS"
	case UnitAD:
		return "AD"
	case UnitOVD:
		return "OVD"
	case UnitGVD:
		return "GVD"
	case UnitAVD:
		return "AVD"
	default:
		return fmt.Sprintf("reserved(%d)", byte(t))
	}
}

// UnitHeader is the ephemeral per-unit header described in spec.md §3: a
// variant-encoded structure keyed by UnitType, carrying the atlas/sequence
// parameter set id the unit belongs to and, for AVD, the attribute and map
// selectors.
type UnitHeader struct {
	Type UnitType

	// Size is the unit's declared payload size in bytes, read from the
	// sample-stream size prefix that precedes the header (not part of the
	// 32-bit header itself).
	Size uint64

	SequenceParameterSetID uint32 // 4 bits; VPS id this unit's atlas/video data resolves against
	AtlasID                uint32 // 6 bits; present for AD/OVD/GVD/AVD

	AttributeIndex          uint32 // 7 bits; AVD only
	AttributeDimensionIndex uint32 // 5 bits; AVD only
	MapIndex                uint32 // 4 bits; GVD/AVD
	RawVideoFlag            bool   // GVD/AVD
}

// readUnitHeader reads the 32-bit V-PCC unit header that always follows the
// unit's size prefix, per spec.md §6 ("type-specific fields totaling
// exactly 32 bits").
func readUnitHeader(br *bitio.Reader, size uint64) (UnitHeader, error) {
	typeBits, err := br.ReadBits(5)
	if err != nil {
		return UnitHeader{}, err
	}
	h := UnitHeader{Type: UnitType(typeBits), Size: size}

	switch h.Type {
	case UnitAD, UnitOVD, UnitGVD, UnitAVD:
		spsID, err := br.ReadBits(4)
		if err != nil {
			return UnitHeader{}, err
		}
		h.SequenceParameterSetID = spsID

		atlasID, err := br.ReadBits(6)
		if err != nil {
			return UnitHeader{}, err
		}
		h.AtlasID = atlasID
	}

	switch h.Type {
	case UnitAVD:
		attrIdx, err := br.ReadBits(7)
		if err != nil {
			return UnitHeader{}, err
		}
		h.AttributeIndex = attrIdx

		attrDimIdx, err := br.ReadBits(5)
		if err != nil {
			return UnitHeader{}, err
		}
		h.AttributeDimensionIndex = attrDimIdx

		mapIdx, err := br.ReadBits(4)
		if err != nil {
			return UnitHeader{}, err
		}
		h.MapIndex = mapIdx

		raw, err := br.ReadBits(1)
		if err != nil {
			return UnitHeader{}, err
		}
		h.RawVideoFlag = raw == 1

	case UnitGVD:
		mapIdx, err := br.ReadBits(4)
		if err != nil {
			return UnitHeader{}, err
		}
		h.MapIndex = mapIdx

		raw, err := br.ReadBits(1)
		if err != nil {
			return UnitHeader{}, err
		}
		h.RawVideoFlag = raw == 1

		if _, err := br.ReadBits(12); err != nil { // reserved
			return UnitHeader{}, err
		}

	case UnitOVD, UnitAD:
		if _, err := br.ReadBits(17); err != nil { // reserved
			return UnitHeader{}, err
		}

	default:
		if _, err := br.ReadBits(27); err != nil { // reserved (VPS and unknown types)
			return UnitHeader{}, err
		}
	}

	return h, nil
}
