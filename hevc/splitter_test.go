package hevc

import "testing"

// sliceNalu builds a minimal slice NAL unit payload sufficient for
// parseSliceHeader: first_slice_segment_in_pic_flag, optional
// no_output_of_prior_pics_flag, slice_pic_parameter_set_id, and (for
// non-IDR pictures) slice_type and slice_pic_order_cnt_lsb.
func sliceNalu(nalType byte, firstSlice bool, pocLsb uint32, log2MaxPocLsbMinus4 uint32) []byte {
	var w bitWriter
	if firstSlice {
		w.writeBits(1, 1)
	} else {
		w.writeBits(0, 1)
	}
	if IsIRAP(nalType) {
		w.writeBits(0, 1) // no_output_of_prior_pics_flag
	}
	w.writeUVLC(0) // slice_pic_parameter_set_id
	if !IsIDR(nalType) {
		w.writeUVLC(1) // slice_type
		w.writeBits(pocLsb, int(log2MaxPocLsbMinus4)+4)
	}

	header := []byte{(nalType << 1) & 0xFE, 0x00}
	body := append(header, w.bytes()...)

	out := []byte{0x00, 0x00, 0x00, 0x01}
	return append(out, body...)
}

func TestSplitIntoPacketsSingleIDRPicture(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = append(buf, buildAnnexBSPS(1280, 720, 4)...)
	buf = append(buf, sliceNalu(NALIDRWRADL, true, 0, 4)...)

	var cfg ConfigBuilder
	packets, err := SplitIntoPackets(buf, &cfg)
	if err != nil {
		t.Fatalf("SplitIntoPackets: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1", len(packets))
	}
	if !packets[0].IsIDR || !packets[0].IsIRAP {
		t.Errorf("packet0 = %+v, want IDR+IRAP", packets[0])
	}
	if packets[0].POC != 0 {
		t.Errorf("IDR POC = %d, want 0", packets[0].POC)
	}
}

func TestSplitIntoPacketsMultiplePicturesAndPOC(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = append(buf, buildAnnexBSPS(640, 480, 4)...)
	buf = append(buf, sliceNalu(NALIDRWRADL, true, 0, 4)...)
	buf = append(buf, sliceNalu(NALTrailR, true, 2, 4)...)
	buf = append(buf, sliceNalu(NALTrailR, true, 1, 4)...)

	var cfg ConfigBuilder
	packets, err := SplitIntoPackets(buf, &cfg)
	if err != nil {
		t.Fatalf("SplitIntoPackets: %v", err)
	}
	if len(packets) != 3 {
		t.Fatalf("got %d packets, want 3", len(packets))
	}
	if packets[0].POC != 0 {
		t.Errorf("packet0 POC = %d, want 0", packets[0].POC)
	}
	if packets[1].POC != 2 {
		t.Errorf("packet1 POC = %d, want 2", packets[1].POC)
	}
	if packets[2].POC != 1 {
		t.Errorf("packet2 POC = %d, want 1", packets[2].POC)
	}
}

func TestSplitIntoPacketsMultiSliceSinglePicture(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = append(buf, buildAnnexBSPS(640, 480, 4)...)
	buf = append(buf, sliceNalu(NALIDRWRADL, true, 0, 4)...)
	buf = append(buf, sliceNalu(NALIDRWRADL, false, 0, 4)...)

	var cfg ConfigBuilder
	packets, err := SplitIntoPackets(buf, &cfg)
	if err != nil {
		t.Fatalf("SplitIntoPackets: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("got %d packets, want 1 (second slice NAL should fold into the first picture)", len(packets))
	}
}

func TestSplitIntoPacketsUpdatesConfigBuilder(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = append(buf, buildAnnexBSPS(1920, 1080, 4)...)
	buf = append(buf, buildAnnexBPPS()...)
	buf = append(buf, buildAnnexBVPS()...)
	buf = append(buf, sliceNalu(NALIDRWRADL, true, 0, 4)...)

	var cfg ConfigBuilder
	if _, err := SplitIntoPackets(buf, &cfg); err != nil {
		t.Fatalf("SplitIntoPackets: %v", err)
	}
	if !cfg.Ready() {
		t.Fatal("ConfigBuilder not Ready after VPS+SPS+PPS observed")
	}
	got := cfg.Config()
	if got.Width != 1920 || got.Height != 1080 {
		t.Errorf("resolution = %dx%d, want 1920x1080", got.Width, got.Height)
	}
}

func buildAnnexBSPS(width, height, log2MaxPocLsbMinus4 uint32) []byte {
	header := []byte{(byte(NALSPS) << 1) & 0xFE, 0x00}
	body := append(header, buildSPSPayload(width, height, log2MaxPocLsbMinus4)...)
	out := []byte{0x00, 0x00, 0x00, 0x01}
	return append(out, body...)
}

func buildAnnexBPPS() []byte {
	out := []byte{0x00, 0x00, 0x00, 0x01}
	header := []byte{(byte(NALPPS) << 1) & 0xFE, 0x00}
	return append(out, append(header, 0xAA, 0xBB)...)
}

func buildAnnexBVPS() []byte {
	out := []byte{0x00, 0x00, 0x00, 0x01}
	header := []byte{(byte(NALVPS) << 1) & 0xFE, 0x00}
	return append(out, append(header, 0xCC, 0xDD)...)
}
