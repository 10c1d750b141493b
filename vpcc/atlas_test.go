package vpcc

import (
	"testing"

	"github.com/zsiec/vpccplay/bitio"
)

func writeASPS(w *bitWriter, frameWidth, frameHeight, id uint32) {
	w.writeUVLC(frameWidth)
	w.writeUVLC(frameHeight)
	w.writeUVLC(id)
	w.writeBits(6, 3)        // log2_patch_packing_block_size
	w.writeUVLC(4)           // log2_max_atlas_frame_order_cnt_lsb_minus4
	w.writeUVLC(0)           // max_dec_atlas_frame_buffering_minus1
	w.writeBits(0, 1)        // long_term_ref_atlas_frames_flag
	w.writeUVLC(0)           // num_ref_atlas_frame_lists_in_asps
	w.writeBits(0, 1)        // normal_45_degree_projection_patch_present_flag
	w.writeBits(1, 1)        // use_eight_orientations_flag
	w.writeBits(0, 1)        // patch_size_quantizer_present_flag
	w.writeBits(0, 1)        // point_local_reconstruction_enabled_flag
	w.writeBits(0, 1)        // pixel_deinterleaving_flag
	w.writeBits(0, 1)        // eom_patch_enabled_flag
	w.writeBits(0, 1)        // raw_patch_enabled_flag
	w.writeBits(1, 1)        // patch_precedence_order_flag
	w.alignToByte()
}

func TestReadASPS(t *testing.T) {
	t.Parallel()

	var w bitWriter
	writeASPS(&w, 1920, 1080, 3)

	a, err := readASPS(bitio.New(w.bytes()))
	if err != nil {
		t.Fatalf("readASPS: %v", err)
	}
	if a.FrameWidth != 1920 || a.FrameHeight != 1080 || a.ID != 3 {
		t.Errorf("asps = %+v, want width=1920 height=1080 id=3", a)
	}
	if a.Log2PatchPackingBlockSize != 6 {
		t.Errorf("Log2PatchPackingBlockSize = %d, want 6", a.Log2PatchPackingBlockSize)
	}
	if !a.UseEightOrientationsFlag {
		t.Error("UseEightOrientationsFlag = false, want true")
	}
	if !a.PatchPrecedenceOrderFlag {
		t.Error("PatchPrecedenceOrderFlag = false, want true")
	}
}

func TestReadASPSRejectsPointLocalReconstruction(t *testing.T) {
	t.Parallel()

	var w bitWriter
	w.writeUVLC(64)
	w.writeUVLC(64)
	w.writeUVLC(0)
	w.writeBits(2, 3)
	w.writeUVLC(4)
	w.writeUVLC(0)
	w.writeBits(0, 1)
	w.writeUVLC(0)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(0, 1)
	w.writeBits(1, 1) // point_local_reconstruction_enabled_flag = 1

	if _, err := readASPS(bitio.New(w.bytes())); err == nil {
		t.Fatal("expected ErrMalformedContainer for point_local_reconstruction_enabled_flag=1")
	}
}

func TestReadAFTISingleTile(t *testing.T) {
	t.Parallel()

	var w bitWriter
	w.writeBits(1, 1) // single_tile_in_atlas_frame_flag
	w.writeBits(0, 1) // signalled_tile_group_id_flag

	afti, err := readAFTI(bitio.New(w.bytes()))
	if err != nil {
		t.Fatalf("readAFTI: %v", err)
	}
	if !afti.SingleTileInAtlasFrameFlag {
		t.Error("SingleTileInAtlasFrameFlag = false, want true")
	}
}

func TestReadAFTIRejectsMultiTileGroup(t *testing.T) {
	t.Parallel()

	var w bitWriter
	w.writeBits(0, 1) // single_tile_in_atlas_frame_flag = 0
	w.writeBits(1, 1) // uniform_tile_spacing_flag
	w.writeUVLC(0)    // uniform_tile_column_width_minus1
	w.writeUVLC(0)    // uniform_tile_row_height_minus1
	w.writeBits(0, 1) // single_tile_per_tile_group_flag = 0

	if _, err := readAFTI(bitio.New(w.bytes())); err == nil {
		t.Fatal("expected ErrMalformedContainer for multi-tile-group layout")
	}
}

func writeAFPS(w *bitWriter, id, aspsID uint32) {
	w.writeUVLC(id)
	w.writeUVLC(aspsID)
	w.writeBits(1, 1) // afti.single_tile_in_atlas_frame_flag
	w.writeBits(0, 1) // afti.signalled_tile_group_id_flag
	w.writeUVLC(0)    // num_ref_idx_default_active_minus1
	w.writeUVLC(0)    // additional_lt_afoc_lsb_len
	w.writeBits(9, 4) // pos_2d_bit_count_minus1
	w.writeBits(9, 5) // pos_3d_u_bit_count_minus1
	w.writeBits(9, 5) // pos_3d_v_bit_count_minus1
	w.writeBits(0, 4) // lod_bit_count
	w.writeBits(0, 1) // raw_3d_pos_bit_count_explicit_mode_flag
	w.alignToByte()
}

func TestReadAFPS(t *testing.T) {
	t.Parallel()

	var w bitWriter
	writeAFPS(&w, 1, 3)

	afps, err := readAFPS(bitio.New(w.bytes()))
	if err != nil {
		t.Fatalf("readAFPS: %v", err)
	}
	if afps.ID != 1 || afps.ASPSID != 3 {
		t.Errorf("afps = %+v, want id=1 aspsID=3", afps)
	}
	if afps.Pos2DBitCountMinus1 != 9 {
		t.Errorf("Pos2DBitCountMinus1 = %d, want 9", afps.Pos2DBitCountMinus1)
	}
}

func TestReadATGLHeaderIntra(t *testing.T) {
	t.Parallel()

	aspsByID := map[uint32]ASPS{0: {ID: 0, Log2MaxAtlasFrameOrderCntLsbMinus4: 4}}
	afpsByID := map[uint32]AFPS{0: {ID: 0, ASPSID: 0, Pos2DBitCountMinus1: 9, Pos3DUBitCountMinus1: 9, Pos3DVBitCountMinus1: 9}}

	var w bitWriter
	w.writeUVLC(0)     // afps_id
	w.writeUVLC(1)     // atgh_type = I
	w.writeBits(5, 8)  // atgh_atlas_frm_order_cnt_lsb (8 bits: 4+4)
	w.writeBits(4, 5)  // atgh_pos_min_z_quantizer
	w.alignToByte()

	h, afps, asps, err := readATGLHeader(bitio.New(w.bytes()), afpsByID, aspsByID)
	if err != nil {
		t.Fatalf("readATGLHeader: %v", err)
	}
	if h.Type != ATGTypeI {
		t.Errorf("Type = %v, want ATGTypeI", h.Type)
	}
	if h.AtlasFrmOrderCntLsb != 5 {
		t.Errorf("AtlasFrmOrderCntLsb = %d, want 5", h.AtlasFrmOrderCntLsb)
	}
	if h.PosMinZQuantizer != 4 {
		t.Errorf("PosMinZQuantizer = %d, want 4", h.PosMinZQuantizer)
	}
	if afps.ID != 0 || asps.ID != 0 {
		t.Errorf("resolved afps/asps = %+v / %+v, want both id 0", afps, asps)
	}
}

func TestReadATGLHeaderMissingAFPS(t *testing.T) {
	t.Parallel()

	var w bitWriter
	w.writeUVLC(7) // afps_id referencing nothing

	_, _, _, err := readATGLHeader(bitio.New(w.bytes()), map[uint32]AFPS{}, map[uint32]ASPS{})
	if err == nil {
		t.Fatal("expected ErrMissingUnitOrder")
	}
}

func TestBitsFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n    uint32
		want int
	}{
		{0, 0}, {1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {8, 3}, {9, 4},
	}
	for _, tt := range tests {
		if got := bitsFor(tt.n); got != tt.want {
			t.Errorf("bitsFor(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}
