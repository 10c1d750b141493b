package hevc

import "testing"

// bitWriter is a small MSB-first bit accumulator used only by tests to
// build synthetic SPS payloads.
type bitWriter struct {
	bits []bool
}

func (w *bitWriter) writeBits(v uint32, n int) {
	for i := n - 1; i >= 0; i-- {
		w.bits = append(w.bits, (v>>uint(i))&1 == 1)
	}
}

func (w *bitWriter) writeUVLC(v uint32) {
	codeNumPlus1 := v + 1
	nbits := bitLenTest(codeNumPlus1)
	for i := 0; i < nbits-1; i++ {
		w.bits = append(w.bits, false)
	}
	w.writeBits(codeNumPlus1, nbits)
}

func bitLenTest(v uint32) int {
	n := 0
	for v > 0 {
		n++
		v >>= 1
	}
	if n == 0 {
		n = 1
	}
	return n
}

func (w *bitWriter) bytes() []byte {
	out := make([]byte, (len(w.bits)+7)/8)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

// buildSPSPayload constructs a minimal HEVC SPS RBSP (excluding the 2-byte
// NAL header) with a single sub-layer, 4:2:0 chroma, no conformance window,
// 8-bit depth, and the given resolution and POC LSB width.
func buildSPSPayload(width, height uint32, log2MaxPocLsbMinus4 uint32) []byte {
	var w bitWriter
	w.writeBits(0, 4) // sps_video_parameter_set_id
	w.writeBits(0, 3) // sps_max_sub_layers_minus1
	w.writeBits(1, 1) // sps_temporal_id_nesting_flag

	// profile_tier_level
	w.writeBits(0, 2)          // general_profile_space
	w.writeBits(0, 1)          // general_tier_flag
	w.writeBits(1, 5)          // general_profile_idc
	w.writeBits(0x60000000, 32) // general_profile_compatibility_flags
	for i := 0; i < 6; i++ {
		w.writeBits(0, 8) // general_constraint_indicator_flags
	}
	w.writeBits(93, 8) // general_level_idc

	w.writeUVLC(0)               // sps_seq_parameter_set_id
	w.writeUVLC(1)               // chroma_format_idc = 4:2:0
	w.writeUVLC(width)           // pic_width_in_luma_samples
	w.writeUVLC(height)          // pic_height_in_luma_samples
	w.writeBits(0, 1)            // conformance_window_flag
	w.writeUVLC(0)               // bit_depth_luma_minus8
	w.writeUVLC(0)               // bit_depth_chroma_minus8
	w.writeUVLC(log2MaxPocLsbMinus4) // log2_max_pic_order_cnt_lsb_minus4

	return w.bytes()
}

func buildSPSNalu(width, height uint32, log2MaxPocLsbMinus4 uint32) []byte {
	header := []byte{(byte(NALSPS) << 1) & 0xFE, 0x00}
	return append(header, buildSPSPayload(width, height, log2MaxPocLsbMinus4)...)
}

func TestParseSPSResolutionAndPOC(t *testing.T) {
	t.Parallel()
	nalu := buildSPSNalu(1280, 720, 4)

	info, err := ParseSPS(nalu)
	if err != nil {
		t.Fatalf("ParseSPS: %v", err)
	}
	if info.Width != 1280 || info.Height != 720 {
		t.Errorf("resolution = %dx%d, want 1280x720", info.Width, info.Height)
	}
	if info.Log2MaxPicOrderCntLsbMinus4 != 4 {
		t.Errorf("Log2MaxPicOrderCntLsbMinus4 = %d, want 4", info.Log2MaxPicOrderCntLsbMinus4)
	}
	if info.ProfileIDC != 1 {
		t.Errorf("ProfileIDC = %d, want 1", info.ProfileIDC)
	}
	if info.LevelIDC != 93 {
		t.Errorf("LevelIDC = %d, want 93", info.LevelIDC)
	}
}

func TestParseSPSTooShort(t *testing.T) {
	t.Parallel()
	if _, err := ParseSPS([]byte{0x01, 0x02}); err != errSPSTooShort {
		t.Errorf("err = %v, want errSPSTooShort", err)
	}
}

func TestCodecString(t *testing.T) {
	t.Parallel()
	info := SPSInfo{ProfileIDC: 1, TierFlag: 0, LevelIDC: 93, ProfileCompatibilityFlags: 0x60000000}
	got := info.CodecString()
	want := "hev1.1.6.L93"
	if got != want {
		t.Errorf("CodecString = %q, want %q", got, want)
	}
}
