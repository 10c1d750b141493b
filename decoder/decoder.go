// Package decoder defines the hardware video decoder contract the core
// playback pipeline drives, plus an in-memory test double, per spec.md
// §4.5.
package decoder

import (
	"errors"

	"github.com/zsiec/vpccplay/hevc"
)

// ErrQueueFull names the input-queue-full condition. QueueInput reports a
// full queue by returning false, not this error, and nothing in this module
// returns it.
var ErrQueueFull = errors.New("decoder: input queue full")

// QueueBounds gives the input/output queue capacities for a platform, per
// spec.md §4.5 ("Android 10/5; iOS/macOS 5/5; Windows 10/10").
type QueueBounds struct {
	Input  int
	Output int
}

var (
	QueueBoundsAndroid = QueueBounds{Input: 10, Output: 5}
	QueueBoundsApple   = QueueBounds{Input: 5, Output: 5}
	QueueBoundsWindows = QueueBounds{Input: 10, Output: 10}
)

// CachedFrame is a reference-counted decoded picture descriptor. Texture
// handles are platform GPU resources (opaque uintptr-sized handles here);
// CPUData is populated instead when a decoder is configured for manual
// upload.
type CachedFrame struct {
	PTS    int64
	Width  int
	Height int

	TextureY  uintptr
	TextureUV uintptr

	CPUData []byte
}

// Trio bundles the three component decoders (occupancy, geometry,
// texture) the coordinator and presentation gate drive in lockstep, per
// spec.md §4.6/§4.7.
type Trio struct {
	Occupancy HwVideoDecoder
	Geometry  HwVideoDecoder
	Texture   HwVideoDecoder
}

// All returns the trio as a fixed-order array for iteration.
func (t Trio) All() [3]HwVideoDecoder {
	return [3]HwVideoDecoder{t.Occupancy, t.Geometry, t.Texture}
}

// HwVideoDecoder is the platform-provided decoder capability the core
// drives. Implementations deliver decoded frames asynchronously into their
// own output queue from platform-internal threads; every method must be
// safe to call concurrently with that delivery.
type HwVideoDecoder interface {
	Initialize(cfg hevc.DecoderConfig) error
	Start() error
	Stop() error
	Flush() error
	Shutdown() error

	QueueInput(data []byte, pts int64, eos bool) bool
	InputQueueFull() bool
	OutputQueueFull() bool
	OutputQueueLen() int
	DequeueOutput()

	RetainCachedFrame() (CachedFrame, bool)
	ReleaseCachedFrame(f CachedFrame)
}
