package v6

import (
	"fmt"

	"github.com/zsiec/vpccplay/bitio"
)

// containerMagic and containerVersion are PCC::TMC2ContainerMagicNumber and
// PCC::TMC2ContainerVersion from the reference parser.
const (
	containerMagic   = 23021981
	containerVersion = 1
)

// header is the fixed 16-byte draft-6 container header: magic, version, 32
// reserved bits, and a 32-bit total size. parseContainerHeader's own
// comment notes the stored size is truncated to 32 bits even though the
// field conceptually holds 64; this shim preserves that truncation rather
// than widening it, since no fixture exercises a container over 4GiB.
type header struct {
	Magic     uint32
	Version   uint32
	TotalSize uint32
}

func readHeader(br *bitio.Reader) (header, error) {
	magic, err := br.ReadU32()
	if err != nil {
		return header{}, fmt.Errorf("vpcc/v6: reading container magic: %w", err)
	}
	if magic != containerMagic {
		return header{}, fmt.Errorf("%w: magic %d, want %d", ErrMalformedContainer, magic, containerMagic)
	}

	version, err := br.ReadU32()
	if err != nil {
		return header{}, fmt.Errorf("vpcc/v6: reading container version: %w", err)
	}
	if version != containerVersion {
		return header{}, fmt.Errorf("%w: version %d, want %d", ErrMalformedContainer, version, containerVersion)
	}

	if err := br.SkipBits(32); err != nil { // upper bits of total_size, unused
		return header{}, fmt.Errorf("vpcc/v6: skipping reserved size bits: %w", err)
	}
	totalSize, err := br.ReadU32()
	if err != nil {
		return header{}, fmt.Errorf("vpcc/v6: reading container total size: %w", err)
	}

	return header{Magic: magic, Version: version, TotalSize: totalSize}, nil
}

// IsV6Container reports whether buf starts with the draft-6 container
// magic, so a caller can route it to this package instead of vpcc.Parser
// without attempting a full parse first.
func IsV6Container(buf []byte) bool {
	if len(buf) < 4 {
		return false
	}
	magic := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])
	return magic == containerMagic
}
