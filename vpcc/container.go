package vpcc

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// containerMagic and containerVersion are the fixed values every v8+
// V-PCC container must carry in its header, per spec.md §4.3.1/§6.
const (
	containerMagic   = 0x015F0E85
	containerVersion = 1
)

// ContainerHeader is the fixed 16-byte header at the start of a V-PCC
// container: magic, version, and the total container size in bytes.
type ContainerHeader struct {
	Magic     uint32
	Version   uint32
	TotalSize uint64
}

// readContainerHeader reads and validates the fixed container header.
func readContainerHeader(br *bitio.Reader) (ContainerHeader, error) {
	magic, err := br.ReadU32()
	if err != nil {
		return ContainerHeader{}, fmt.Errorf("vpcc: reading container magic: %w", err)
	}
	if magic != containerMagic {
		return ContainerHeader{}, fmt.Errorf("%w: magic %#x, want %#x", ErrMalformedContainer, magic, containerMagic)
	}

	version, err := br.ReadU32()
	if err != nil {
		return ContainerHeader{}, fmt.Errorf("vpcc: reading container version: %w", err)
	}
	if version != containerVersion {
		return ContainerHeader{}, fmt.Errorf("%w: version %d, want %d", ErrMalformedContainer, version, containerVersion)
	}

	totalSize, err := br.ReadU64()
	if err != nil {
		return ContainerHeader{}, fmt.Errorf("vpcc: reading container total size: %w", err)
	}

	return ContainerHeader{Magic: magic, Version: version, TotalSize: totalSize}, nil
}

// sampleStreamHeader is the one-byte header preceding the V-PCC unit
// sequence, giving the byte width of each unit's size prefix.
type sampleStreamHeader struct {
	unitSizePrecisionBytesMinus1 uint32
}

func readSampleStreamHeader(br *bitio.Reader) (sampleStreamHeader, error) {
	precision, err := br.ReadBits(3)
	if err != nil {
		return sampleStreamHeader{}, fmt.Errorf("vpcc: reading sample stream header: %w", err)
	}
	if _, err := br.ReadBits(5); err != nil { // reserved
		return sampleStreamHeader{}, err
	}
	return sampleStreamHeader{unitSizePrecisionBytesMinus1: precision}, nil
}

func (h sampleStreamHeader) unitSizeBits() int {
	return 8 * (int(h.unitSizePrecisionBytesMinus1) + 1)
}

// readNestedSampleStreamHeader reads the same one-byte header format used to
// frame the NAL units nested inside an AD (atlas data) unit's payload.
func readNestedSampleStreamHeader(br *bitio.Reader) (sampleStreamHeader, error) {
	return readSampleStreamHeader(br)
}
