package player

import (
	"testing"
	"time"

	"github.com/zsiec/vpccplay/coordinator"
	"github.com/zsiec/vpccplay/decoder"
	"github.com/zsiec/vpccplay/hevc"
	"github.com/zsiec/vpccplay/internal/testfixture"
	"github.com/zsiec/vpccplay/playback"
	"github.com/zsiec/vpccplay/presentation"
	"github.com/zsiec/vpccplay/vpcc"
)

// bitWriter is a small MSB-first bit accumulator used only by this test
// file to build a synthetic SPS payload, mirroring hevc's own test helper.
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
	nbits := 0
	for x := codeNumPlus1; x > 0; x >>= 1 {
		nbits++
	}
	for i := 0; i < nbits-1; i++ {
		w.bits = append(w.bits, false)
	}
	w.writeBits(codeNumPlus1, nbits)
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

func buildNAL(nalType byte, payload []byte) []byte {
	header := []byte{(nalType << 1) & 0xFE, 0x00}
	nal := append(header, payload...)
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

func TestDecoderConfigForExtractsParameterSets(t *testing.T) {
	t.Parallel()

	var stream []byte
	stream = append(stream, buildNAL(hevc.NALVPS, []byte{0xAA})...)
	stream = append(stream, buildNAL(hevc.NALSPS, buildSPSPayload(1024, 768))...)
	stream = append(stream, buildNAL(hevc.NALPPS, []byte{0xBB})...)

	cfg, err := decoderConfigFor(stream)
	if err != nil {
		t.Fatalf("decoderConfigFor: %v", err)
	}
	if !cfg.Ready() {
		t.Fatal("cfg.Ready() = false, want true after observing VPS/SPS/PPS")
	}
	if cfg.Width != 1024 || cfg.Height != 768 {
		t.Errorf("cfg dimensions = %dx%d, want 1024x768", cfg.Width, cfg.Height)
	}
}

func TestDecoderConfigForEmptyStreamNotReady(t *testing.T) {
	t.Parallel()

	cfg, err := decoderConfigFor(nil)
	if err != nil {
		t.Fatalf("decoderConfigFor(nil): %v", err)
	}
	if cfg.Ready() {
		t.Error("cfg.Ready() = true for empty stream, want false")
	}
}

func TestOpenRejectsMalformedContainer(t *testing.T) {
	t.Parallel()

	p := New(Config{}, decoder.QueueBounds{Input: 5, Output: 5}, func(decoder.QueueBounds) decoder.HwVideoDecoder {
		return decoder.NewFakeHwVideoDecoder(decoder.QueueBounds{Input: 5, Output: 5}, false)
	})

	if err := p.Open([]byte{1, 2, 3, 4}); err == nil {
		t.Fatal("Open(garbage) = nil error, want error")
	}
}

func TestOpenParsesValidContainerAndInitializesDecoders(t *testing.T) {
	t.Parallel()

	bounds := decoder.QueueBounds{Input: 5, Output: 5}
	var made []*decoder.FakeHwVideoDecoder
	p := New(Config{}, bounds, func(b decoder.QueueBounds) decoder.HwVideoDecoder {
		d := decoder.NewFakeHwVideoDecoder(b, false)
		made = append(made, d)
		return d
	})

	if err := p.Open(testfixture.Build()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(made) != 3 {
		t.Fatalf("factory called %d times, want 3 (occupancy/geometry/texture)", len(made))
	}

	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if p.coord.State() != coordinator.StatePlaying {
		t.Errorf("coordinator state = %v, want StatePlaying", p.coord.State())
	}
	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

// wireForTest bypasses Open to give lifecycle tests a Player without
// needing a full valid V-PCC container.
func wireForTest(t *testing.T) *Player {
	t.Helper()

	bounds := decoder.QueueBounds{Input: 5, Output: 5}
	ds := decoder.Trio{
		Occupancy: decoder.NewFakeHwVideoDecoder(bounds, false),
		Geometry:  decoder.NewFakeHwVideoDecoder(bounds, false),
		Texture:   decoder.NewFakeHwVideoDecoder(bounds, false),
	}
	ctx := playback.New([]vpcc.FrameGroup{{
		Frames: []vpcc.FrameData{{Index: 0, PTS: 0}},
	}})
	coord := coordinator.New(ctx, ds)
	gate := presentation.New(ctx, ds, coord)

	p := New(Config{}, bounds, nil)
	p.ctx = ctx
	p.decoders = ds
	p.coord = coord
	p.gate = gate
	p.state = stateInitialized
	return p
}

func TestPlayStartsDecodersAndCoordinator(t *testing.T) {
	t.Parallel()

	p := wireForTest(t)
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if p.coord.State() != coordinator.StatePlaying {
		t.Errorf("coordinator state = %v, want StatePlaying", p.coord.State())
	}
	if err := p.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestPauseResumeTogglesCoordinatorState(t *testing.T) {
	t.Parallel()

	p := wireForTest(t)
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if p.coord.State() != coordinator.StatePaused {
		t.Errorf("state after Pause = %v, want StatePaused", p.coord.State())
	}

	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.coord.State() != coordinator.StatePlaying {
		t.Errorf("state after Resume = %v, want StatePlaying", p.coord.State())
	}

	p.Shutdown()
}

func TestCoordinatorStateAndQueueDebugReflectLifecycle(t *testing.T) {
	t.Parallel()

	p := wireForTest(t)
	if got := p.CoordinatorState(); got != coordinator.StateStopped {
		t.Errorf("CoordinatorState before Play = %v, want StateStopped", got)
	}

	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if got := p.CoordinatorState(); got != coordinator.StatePlaying {
		t.Errorf("CoordinatorState after Play = %v, want StatePlaying", got)
	}

	// The coordinator fills the decoders on its first tick, shortly after Play.
	deadline := time.Now().Add(time.Second)
	qd := p.QueueDebug()
	for qd == (QueueSnapshot{}) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		qd = p.QueueDebug()
	}
	if qd == (QueueSnapshot{}) {
		t.Error("QueueDebug after Play = zero value, want populated decoder state")
	}

	p.Shutdown()
}

func TestCoordinatorStateAndQueueDebugBeforeOpen(t *testing.T) {
	t.Parallel()

	p := New(Config{}, decoder.QueueBounds{Input: 5, Output: 5}, nil)
	if got := p.CoordinatorState(); got != coordinator.StateShutdown {
		t.Errorf("CoordinatorState before Open = %v, want StateShutdown", got)
	}
	if got := p.QueueDebug(); got != (QueueSnapshot{}) {
		t.Errorf("QueueDebug before Open = %+v, want zero value", got)
	}
}

func TestLifecycleMethodsErrorBeforeOpen(t *testing.T) {
	t.Parallel()

	p := New(Config{}, decoder.QueueBounds{Input: 5, Output: 5}, nil)

	if err := p.Play(); err == nil {
		t.Error("Play before Open = nil error, want error")
	}
	if err := p.Pause(); err == nil {
		t.Error("Pause before Open = nil error, want error")
	}
	if err := p.Resume(); err == nil {
		t.Error("Resume before Open = nil error, want error")
	}
	if err := p.Stop(); err == nil {
		t.Error("Stop before Open = nil error, want error")
	}
}

func TestFetchPresentationFrameBeforeOpenReturnsNoFrameAvailable(t *testing.T) {
	t.Parallel()

	p := New(Config{}, decoder.QueueBounds{Input: 5, Output: 5}, nil)
	_, result := p.FetchPresentationFrame()
	if result != ResultNoFrameAvailable {
		t.Errorf("FetchPresentationFrame before Open = %v, want ResultNoFrameAvailable", result)
	}
}

func TestStatsCollectionBeforeOpenIsZeroValue(t *testing.T) {
	t.Parallel()

	p := New(Config{}, decoder.QueueBounds{Input: 5, Output: 5}, nil)
	if got := p.StatsCollection(); got != (StatsCollection{}) {
		t.Errorf("StatsCollection() before Open = %+v, want zero value", got)
	}
}
