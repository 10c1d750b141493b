// Package testfixture builds small, bit-exact V-PCC container buffers for
// integration tests, grounded on test/tools/gen-streams's role as the
// teacher's own synthetic-stream generator for its test suite (this package
// generates the bits directly instead of shelling out to ffmpeg, since the
// fixtures here need to be bit-exact and reproducible without external
// binaries).
package testfixture

import (
	"github.com/zsiec/vpccplay/hevc"
)

// Width and Height are the frame dimensions baked into every stream Build
// produces.
const (
	Width  = 256
	Height = 192
)

// Patch describes the single INTRA patch every Build container carries, for
// tests to assert against without re-deriving the reconstruction arithmetic.
var Patch = struct {
	U0, V0, SizeU0, SizeV0 uint32
	D1                     int32
}{U0: 50, V0: 60, SizeU0: 10, SizeV0: 10, D1: 20}

// bitWriter is a small MSB-first bit accumulator, the same helper pattern
// used by this module's own package-level _test.go files.
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
	nbits := bitLen(codeNumPlus1)
	for i := 0; i < nbits-1; i++ {
		w.bits = append(w.bits, false)
	}
	w.writeBits(codeNumPlus1, nbits)
}

func (w *bitWriter) writeSVLC(v int32) {
	var mapped uint32
	if v > 0 {
		mapped = uint32(2*v - 1)
	} else {
		mapped = uint32(-2 * v)
	}
	w.writeUVLC(mapped)
}

func (w *bitWriter) alignToByte() {
	for len(w.bits)%8 != 0 {
		w.bits = append(w.bits, false)
	}
}

func (w *bitWriter) bytes() []byte {
	w.alignToByte()
	out := make([]byte, len(w.bits)/8)
	for i, b := range w.bits {
		if b {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}

func bitLen(v uint32) int {
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

func beBytes(v uint64, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		out[n-1-i] = byte(v >> uint(8*i))
	}
	return out
}

// startCodeNAL wraps payload in a 2-byte HEVC NAL header and a 3-byte Annex
// B start code.
func startCodeNAL(nalType byte, payload []byte) []byte {
	header := []byte{(nalType << 1) & 0xFE, 0x00}
	nal := append(append([]byte{}, header...), payload...)
	return append([]byte{0, 0, 1}, nal...)
}

func buildSPSPayload(width, height uint32) []byte {
	var w bitWriter
	w.writeBits(0, 4)            // sps_video_parameter_set_id
	w.writeBits(0, 3)            // sps_max_sub_layers_minus1
	w.writeBits(1, 1)            // sps_temporal_id_nesting_flag
	w.writeBits(0, 2)            // general_profile_space
	w.writeBits(0, 1)            // general_tier_flag
	w.writeBits(1, 5)            // general_profile_idc
	w.writeBits(0x60000000, 32)  // general_profile_compatibility_flags
	for i := 0; i < 6; i++ {
		w.writeBits(0, 8) // general_constraint_indicator_flags
	}
	w.writeBits(93, 8)  // general_level_idc
	w.writeUVLC(0)      // sps_seq_parameter_set_id
	w.writeUVLC(1)      // chroma_format_idc
	w.writeUVLC(width)  // pic_width_in_luma_samples
	w.writeUVLC(height) // pic_height_in_luma_samples
	w.writeBits(0, 1)   // conformance_window_flag
	w.writeUVLC(0)      // bit_depth_luma_minus8
	w.writeUVLC(0)      // bit_depth_chroma_minus8
	w.writeUVLC(4)      // log2_max_pic_order_cnt_lsb_minus4
	return w.bytes()
}

func buildIDRSliceNAL() []byte {
	var w bitWriter
	w.writeBits(1, 1) // first_slice_segment_in_pic_flag
	w.writeBits(1, 1) // no_output_of_prior_pics_flag
	w.writeUVLC(0)    // slice_pic_parameter_set_id
	return startCodeNAL(hevc.NALIDRWRADL, w.bytes())
}

// buildElementaryStream returns a minimal Annex B stream (VPS/SPS/PPS/one
// IDR slice) that makes hevc.ConfigBuilder.Ready true and that
// hevc.SplitIntoPackets turns into exactly one VideoPacket.
func buildElementaryStream(width, height uint32) []byte {
	var buf []byte
	buf = append(buf, startCodeNAL(hevc.NALVPS, []byte{0xAA})...)
	buf = append(buf, startCodeNAL(hevc.NALSPS, buildSPSPayload(width, height))...)
	buf = append(buf, startCodeNAL(hevc.NALPPS, []byte{0xBB})...)
	buf = append(buf, buildIDRSliceNAL()...)
	return buf
}

const (
	atlasNALASPS = 32
	atlasNALAFPS = 33
)

func buildAtlasNAL(nalType uint32, payload []byte) []byte {
	var hdr bitWriter
	hdr.writeBits(0, 1)       // forbidden_zero_bit
	hdr.writeBits(nalType, 6) // nal_unit_type
	hdr.writeBits(0, 6)       // layer_id
	hdr.writeBits(1, 3)       // temporal_id_plus1
	nal := append(hdr.bytes(), payload...)
	return append([]byte{byte(len(nal))}, nal...)
}

func buildASPSPayload() []byte {
	var w bitWriter
	w.writeUVLC(Width)  // frame_width
	w.writeUVLC(Height) // frame_height
	w.writeUVLC(0)      // id
	w.writeBits(0, 3)   // log2_patch_packing_block_size
	w.writeUVLC(4)      // log2_max_atlas_frame_order_cnt_lsb_minus4
	w.writeUVLC(0)      // max_dec_atlas_frame_buffering_minus1
	w.writeBits(0, 1)   // long_term_ref_atlas_frames_flag
	w.writeUVLC(0)      // num_ref_atlas_frame_lists_in_asps
	w.writeBits(0, 1)   // normal_45_degree_projection_patch_present_flag
	w.writeBits(0, 1)   // use_eight_orientations_flag
	w.writeBits(0, 1)   // patch_size_quantizer_present_flag
	w.writeBits(0, 1)   // point_local_reconstruction_enabled_flag
	w.writeBits(0, 1)   // pixel_deinterleaving_flag
	w.writeBits(0, 1)   // eom_patch_enabled_flag
	w.writeBits(0, 1)   // raw_patch_enabled_flag
	w.writeBits(0, 1)   // patch_precedence_order_flag
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
// atlas_frm_order_cnt_lsb=3, pos_min_z_quantizer=2) followed by one INTRA
// patch data unit and an END terminator. The encoded fields reconstruct to
// the Patch values exported above (geometry3DBitdepthMinus1=9, matching the
// VPS payload's geometry_3d_coordinates_bitdepth_minus1).
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

func buildADPayload() []byte {
	var buf []byte
	buf = append(buf, 0x00) // nested sample-stream header: 1-byte size prefix
	buf = append(buf, buildAtlasNAL(atlasNALASPS, buildASPSPayload())...)
	buf = append(buf, buildAtlasNAL(atlasNALAFPS, buildAFPSPayload())...)
	buf = append(buf, buildAtlasNAL(0, buildIntraTileGroupPayload())...) // ACL type 0
	return buf
}

func buildVPSPayload() []byte {
	var w bitWriter

	// skipProfileTierLevel: 2+6+8+8+8+32+8 = 72 fixed bits, values unread.
	w.writeBits(0, 2)
	w.writeBits(0, 6)
	w.writeBits(0, 8)
	w.writeBits(0, 8)
	w.writeBits(0, 8)
	w.writeBits(0, 32)
	w.writeBits(0, 8)

	w.writeBits(0, 4) // vps id
	w.writeBits(0, 6) // atlas_count_minus1 = 0 (one atlas)

	w.writeBits(Width, 16)
	w.writeBits(Height, 16)
	w.writeBits(0, 4) // map_count_minus1 = 0 (no multiple-map loop)
	w.writeBits(0, 1) // raw_patch_enabled_flag = 0 (no separate-video flag)

	w.writeBits(0, 8) // occupancy codec_id
	w.writeBits(0, 8) // occupancy lossy compression threshold
	w.writeBits(0, 5) // occupancy nominal_2d_bitdepth_minus1
	w.writeBits(0, 1) // occupancy MSB_align_flag

	w.writeBits(0, 8) // geometry codec_id
	w.writeBits(0, 5) // geometry nominal_2d_bitdepth_minus1
	w.writeBits(0, 1) // geometry MSB_align_flag
	w.writeBits(9, 5) // geometry_3d_coordinates_bitdepth_minus1

	w.writeBits(0, 7) // attribute_count = 0

	w.writeBits(0, 1) // vps_extension_present_flag = 0

	return w.bytes()
}

func writeUnitHeaderVPS() []byte {
	var w bitWriter
	w.writeBits(0, 5)  // unit_type = VPS
	w.writeBits(0, 27) // reserved
	return w.bytes()
}

func writeUnitHeaderAD(spsID, atlasID uint32) []byte {
	var w bitWriter
	w.writeBits(1, 5) // unit_type = AD
	w.writeBits(spsID, 4)
	w.writeBits(atlasID, 6)
	w.writeBits(0, 17) // reserved
	return w.bytes()
}

func writeUnitHeaderOVD(spsID, atlasID uint32) []byte {
	var w bitWriter
	w.writeBits(2, 5) // unit_type = OVD
	w.writeBits(spsID, 4)
	w.writeBits(atlasID, 6)
	w.writeBits(0, 17) // reserved
	return w.bytes()
}

func writeUnitHeaderGVD(spsID, atlasID, mapIdx uint32) []byte {
	var w bitWriter
	w.writeBits(3, 5) // unit_type = GVD
	w.writeBits(spsID, 4)
	w.writeBits(atlasID, 6)
	w.writeBits(mapIdx, 4)
	w.writeBits(0, 1)  // raw_video_flag
	w.writeBits(0, 12) // reserved
	return w.bytes()
}

func writeUnitHeaderAVD(spsID, atlasID, attrIdx, attrDimIdx, mapIdx uint32) []byte {
	var w bitWriter
	w.writeBits(4, 5) // unit_type = AVD
	w.writeBits(spsID, 4)
	w.writeBits(atlasID, 6)
	w.writeBits(attrIdx, 7)
	w.writeBits(attrDimIdx, 5)
	w.writeBits(mapIdx, 4)
	w.writeBits(0, 1) // raw_video_flag
	return w.bytes()
}

func wrapUnit(header, payload []byte) []byte {
	body := append(append([]byte{}, header...), payload...)
	return append(beBytes(uint64(len(body)), 1), body...)
}

func containerHeader(totalSize uint64) []byte {
	out := beBytes(0x015F0E85, 4)
	out = append(out, beBytes(1, 4)...)
	out = append(out, beBytes(totalSize, 8)...)
	return out
}

// Build returns a complete, minimal V-PCC container: one VPS, one AD unit
// carrying a single ASPS/AFPS/intra-tile-group (one patch, see the exported
// Patch values), and one OVD/GVD/AVD unit each wrapping an identical minimal
// Annex B HEVC stream at Width x Height. It decodes to exactly one
// FrameGroup with exactly one FrameData.
func Build() []byte {
	var units []byte

	units = append(units, wrapUnit(writeUnitHeaderVPS(), buildVPSPayload())...)
	units = append(units, wrapUnit(writeUnitHeaderAD(0, 0), buildADPayload())...)

	stream := buildElementaryStream(Width, Height)
	units = append(units, wrapUnit(writeUnitHeaderOVD(0, 0), stream)...)
	units = append(units, wrapUnit(writeUnitHeaderGVD(0, 0, 0), stream)...)
	units = append(units, wrapUnit(writeUnitHeaderAVD(0, 0, 0, 0, 0), stream)...)

	sampleStreamHeader := []byte{0x00} // 1-byte unit size prefix, no reserved bits set
	body := append(append([]byte{}, sampleStreamHeader...), units...)

	return append(containerHeader(uint64(16+len(body))), body...)
}
