package vpcc

import (
	"testing"

	"github.com/zsiec/vpccplay/bitio"
)

func TestReadContainerHeader(t *testing.T) {
	t.Parallel()

	buf := []byte{
		0x01, 0x5F, 0x0E, 0x85, // magic
		0x00, 0x00, 0x00, 0x01, // version
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x40, // total_size = 64
	}

	h, err := readContainerHeader(bitio.New(buf))
	if err != nil {
		t.Fatalf("readContainerHeader: %v", err)
	}
	if h.Magic != containerMagic || h.Version != 1 || h.TotalSize != 64 {
		t.Errorf("header = %+v, want {magic:%#x version:1 totalSize:64}", h, containerMagic)
	}
}

func TestReadContainerHeaderBadMagic(t *testing.T) {
	t.Parallel()

	buf := []byte{0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0}
	if _, err := readContainerHeader(bitio.New(buf)); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestSampleStreamHeaderUnitSizeBits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		precisionMinus1 uint32
		wantBits        int
	}{
		{0, 8},
		{1, 16},
		{3, 32},
		{7, 64},
	}
	for _, tt := range tests {
		var w bitWriter
		w.writeBits(tt.precisionMinus1, 3)
		w.writeBits(0, 5)

		ssh, err := readSampleStreamHeader(bitio.New(w.bytes()))
		if err != nil {
			t.Fatalf("readSampleStreamHeader: %v", err)
		}
		if got := ssh.unitSizeBits(); got != tt.wantBits {
			t.Errorf("precisionMinus1=%d: unitSizeBits() = %d, want %d", tt.precisionMinus1, got, tt.wantBits)
		}
	}
}
