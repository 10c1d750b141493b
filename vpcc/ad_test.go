package vpcc

import (
	"testing"

	"github.com/zsiec/vpccplay/bitio"
)

// buildAtlasNAL wraps payload (already byte-aligned) in the 2-byte V-PCC
// atlas NAL header plus a size prefix, mirroring sampleStreamNalUnit in
// VPCCParser80.cpp.
func buildAtlasNAL(nalType uint32, payload []byte) []byte {
	var hdr bitWriter
	hdr.writeBits(0, 1)       // forbidden_zero_bit
	hdr.writeBits(nalType, 6) // nal_unit_type
	hdr.writeBits(0, 6)       // layer_id
	hdr.writeBits(1, 3)       // temporal_id_plus1
	nal := append(hdr.bytes(), payload...)

	size := len(nal)
	return append([]byte{byte(size)}, nal...)
}

func buildASPSPayload() []byte {
	var w bitWriter
	w.writeUVLC(1024) // frame_width
	w.writeUVLC(1024) // frame_height
	w.writeUVLC(0)    // id
	w.writeBits(0, 3) // log2_patch_packing_block_size
	w.writeUVLC(4)    // log2_max_atlas_frame_order_cnt_lsb_minus4
	w.writeUVLC(0)    // max_dec_atlas_frame_buffering_minus1
	w.writeBits(0, 1) // long_term_ref_atlas_frames_flag
	w.writeUVLC(0)    // num_ref_atlas_frame_lists_in_asps
	w.writeBits(0, 1) // normal_45_degree_projection_patch_present_flag
	w.writeBits(0, 1) // use_eight_orientations_flag
	w.writeBits(0, 1) // patch_size_quantizer_present_flag
	w.writeBits(0, 1) // point_local_reconstruction_enabled_flag
	w.writeBits(0, 1) // pixel_deinterleaving_flag
	w.writeBits(0, 1) // eom_patch_enabled_flag
	w.writeBits(0, 1) // raw_patch_enabled_flag
	w.writeBits(0, 1) // patch_precedence_order_flag
	return w.bytes()
}

func buildAFPSPayload() []byte {
	var w bitWriter
	w.writeUVLC(0)    // id
	w.writeUVLC(0)    // asps_id
	w.writeBits(1, 1) // afti.single_tile_in_atlas_frame_flag
	w.writeBits(0, 1) // afti.signalled_tile_group_id_flag
	w.writeUVLC(0)    // num_ref_idx_default_active_minus1
	w.writeUVLC(0)    // additional_lt_afoc_lsb_len
	w.writeBits(7, 4) // pos_2d_bit_count_minus1
	w.writeBits(9, 5) // pos_3d_u_bit_count_minus1
	w.writeBits(9, 5) // pos_3d_v_bit_count_minus1
	w.writeBits(0, 4) // lod_bit_count
	w.writeBits(0, 1) // raw_3d_pos_bit_count_explicit_mode_flag
	return w.bytes()
}

// buildIntraTileGroupPayload builds an ATGL header (I-type, afps_id=0,
// atlas_frm_order_cnt_lsb=3, pos_min_z_quantizer=2) followed by a single
// INTRA patch data unit and an END terminator.
func buildIntraTileGroupPayload() []byte {
	var w bitWriter
	w.writeUVLC(0)    // afps_id
	w.writeUVLC(1)    // atgh_type = I
	w.writeBits(3, 8) // atgh_atlas_frm_order_cnt_lsb
	w.writeBits(2, 5) // atgh_pos_min_z_quantizer
	w.alignToByte()

	w.writeUVLC(0)     // patch_mode = INTRA
	w.writeBits(50, 8) // x
	w.writeBits(60, 8) // y
	w.writeSVLC(10)    // delta_size_x -> size_u0 = 10
	w.writeSVLC(10)    // delta_size_y -> size_v0 = 10
	w.writeBits(0, 10) // pdu_3d_pos_x (ignored)
	w.writeBits(0, 10) // pdu_3d_pos_y (ignored)
	w.writeBits(5, 8)  // pdu_3d_pos_min_z (minZBits = 9-2+1 = 8)
	w.writeBits(0, 3)  // projection_id
	w.writeBits(0, 1)  // orientation
	w.writeUVLC(14)    // patch_mode = END

	return w.bytes()
}

func TestReadADUnitDecodesOneIntraTileGroup(t *testing.T) {
	t.Parallel()

	var buf []byte
	buf = append(buf, 0x00) // nested sample-stream header: 1-byte size prefix

	buf = append(buf, buildAtlasNAL(atlasNALASPS, buildASPSPayload())...)
	buf = append(buf, buildAtlasNAL(atlasNALAFPS, buildAFPSPayload())...)
	buf = append(buf, buildAtlasNAL(0, buildIntraTileGroupPayload())...) // ACL type 0

	state := newAtlasGroupState()
	err := readADUnit(bitio.New(buf), len(buf)*8, state, 9, false)
	if err != nil {
		t.Fatalf("readADUnit: %v", err)
	}

	if len(state.aspsByID) != 1 || len(state.afpsByID) != 1 {
		t.Fatalf("state = %+v, want one ASPS and one AFPS", state)
	}
	if len(state.tileGroups) != 1 {
		t.Fatalf("got %d tile groups, want 1", len(state.tileGroups))
	}

	tg := state.tileGroups[0]
	if tg.Header.Type != ATGTypeI {
		t.Errorf("tile group type = %v, want ATGTypeI", tg.Header.Type)
	}
	if len(tg.Patches) != 1 {
		t.Fatalf("got %d patches, want 1", len(tg.Patches))
	}

	want := Patch{
		U0: 50, V0: 60, SizeU0: 10, SizeV0: 10,
		D1: 20, Orientation: 0, ProjectionMode: 0,
		NormalAxis: 0, TangentAxis: 2, BitangentAxis: 1,
		OccupancyResolution: 1,
		LodScaleX:           1,
		LodScaleY:           1,
	}
	if tg.Patches[0] != want {
		t.Errorf("patch = %+v, want %+v", tg.Patches[0], want)
	}

	// The decoded tile group's patches must be indexed by its own
	// atlas_frm_order_cnt_lsb (3, per buildIntraTileGroupPayload), so a
	// later tile group's ipdu/mpdu_ref_index can resolve against it.
	if got, ok := state.patchesByAFOC[3]; !ok || len(got) != 1 {
		t.Errorf("patchesByAFOC[3] = %+v, ok=%v, want the tile group's one patch", got, ok)
	}
}
