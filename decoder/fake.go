package decoder

import (
	"log/slog"
	"sync"

	"github.com/zsiec/vpccplay/hevc"
)

type queuedInput struct {
	data []byte
	pts  int64
	eos  bool
}

// FakeHwVideoDecoder is an in-memory HwVideoDecoder double for tests and
// for hosts without a platform decoder (e.g. the CLI player). DequeueOutput
// performs a zero-latency "decode": it moves the oldest queued input into
// the output queue as a CachedFrame, subject to the output bound, so
// callers can exercise PlaybackCoordinator/PresentationGate's queue
// backpressure logic deterministically.
type FakeHwVideoDecoder struct {
	log    *slog.Logger
	bounds QueueBounds

	mu      sync.Mutex
	cfg     hevc.DecoderConfig
	started bool

	input  []queuedInput
	output []CachedFrame

	manualUpload bool

	outstandingRetains int
}

// NewFakeHwVideoDecoder creates a fake decoder with the given queue
// bounds. manualUpload controls whether RetainCachedFrame populates
// CPUData (manual upload) or leaves it to the zero-value GPU texture
// handles (the default, matching platform decoders that upload directly).
func NewFakeHwVideoDecoder(bounds QueueBounds, manualUpload bool) *FakeHwVideoDecoder {
	return &FakeHwVideoDecoder{
		log:          slog.Default().With("component", "decoder.Fake"),
		bounds:       bounds,
		manualUpload: manualUpload,
	}
}

func (d *FakeHwVideoDecoder) Initialize(cfg hevc.DecoderConfig) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	return nil
}

func (d *FakeHwVideoDecoder) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *FakeHwVideoDecoder) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *FakeHwVideoDecoder) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.input = nil
	d.output = nil
	return nil
}

func (d *FakeHwVideoDecoder) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	d.input = nil
	d.output = nil
	return nil
}

func (d *FakeHwVideoDecoder) QueueInput(data []byte, pts int64, eos bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.input) >= d.bounds.Input {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	d.input = append(d.input, queuedInput{data: cp, pts: pts, eos: eos})
	return true
}

func (d *FakeHwVideoDecoder) InputQueueFull() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.input) >= d.bounds.Input
}

func (d *FakeHwVideoDecoder) OutputQueueFull() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.output) >= d.bounds.Output
}

func (d *FakeHwVideoDecoder) OutputQueueLen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.output)
}

// DequeueOutput moves at most one queued input into the output queue. A
// real decoder does this asynchronously on its own thread; the fake does
// it synchronously so tests control exactly when output advances.
func (d *FakeHwVideoDecoder) DequeueOutput() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.input) == 0 || len(d.output) >= d.bounds.Output {
		return
	}

	in := d.input[0]
	d.input = d.input[1:]

	f := CachedFrame{PTS: in.pts, Width: d.cfg.Width, Height: d.cfg.Height}
	if d.manualUpload {
		f.CPUData = in.data
	}
	d.output = append(d.output, f)
}

// RetainCachedFrame dequeues the oldest available output frame, handing
// ownership to the caller until ReleaseCachedFrame is called.
func (d *FakeHwVideoDecoder) RetainCachedFrame() (CachedFrame, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.output) == 0 {
		return CachedFrame{}, false
	}
	f := d.output[0]
	d.output = d.output[1:]
	d.outstandingRetains++
	return f, true
}

// ReleaseCachedFrame releases a frame retained via RetainCachedFrame.
func (d *FakeHwVideoDecoder) ReleaseCachedFrame(f CachedFrame) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.outstandingRetains > 0 {
		d.outstandingRetains--
	}
}

// OutstandingRetains reports the number of retained frames not yet
// released, for leak-detection in tests.
func (d *FakeHwVideoDecoder) OutstandingRetains() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outstandingRetains
}
