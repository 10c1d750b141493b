// Package presentation implements the renderer-side fetch gate that pairs
// up the three decoders' retained output frames with the patch data for
// the frame they belong to, per spec.md §4.7.
package presentation

import (
	"log/slog"
	"sync"

	"github.com/zsiec/vpccplay/coordinator"
	"github.com/zsiec/vpccplay/decoder"
	"github.com/zsiec/vpccplay/playback"
	"github.com/zsiec/vpccplay/vpcc"
)

// minOutputQueueSize is the smallest per-decoder output queue depth the
// gate requires before it will retain a new frame, per spec.md §4.7
// ("isNextPresentationFrameAvailable").
const minOutputQueueSize = 1

// Result reports the outcome of a Fetch call.
type Result int

const (
	ResultOK Result = iota
	ResultNoFrameAvailable
	ResultOutOfSyncFrameAvailable
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNoFrameAvailable:
		return "no_frame_available"
	case ResultOutOfSyncFrameAvailable:
		return "out_of_sync_frame_available"
	default:
		return "unknown"
	}
}

// Frame is the renderer-ready bundle of one decoded occupancy/geometry/
// texture triple plus the patch metadata needed to reconstruct points from
// them.
type Frame struct {
	Occupancy decoder.CachedFrame
	Geometry  decoder.CachedFrame
	Texture   decoder.CachedFrame

	Patches      []vpcc.Patch
	BlockToPatch []uint32
}

// retained wraps a Frame together with the bookkeeping the gate needs to
// decide whether it's still valid and which decoders to release it to.
type retained struct {
	frame   Frame
	have    bool
	matched bool
	elapsed int
}

// frameHoldTicks is how many further Fetch calls replay a newly retained
// frame before the gate looks for a newer one, mirroring the
// original implementation's frame-counter-based completion check. It is a
// presentation-cadence knob, not a media duration; fixed at 1 to match the
// only value every target platform used.
const frameHoldTicks = 1

// Gate is the renderer-thread fetch point for decoded, patch-tagged
// frames. It owns the three decoders' retain/release lifecycle on behalf
// of the renderer, mirroring distribution.Relay's single-owner-per-shared-
// resource discipline.
type Gate struct {
	log      *slog.Logger
	ctx      *playback.Context
	decoders decoder.Trio
	coord    *coordinator.Coordinator

	mu  sync.Mutex
	cur retained
}

// New creates a Gate driving the given decoders and playback cursor. coord
// is consulted only to read the current playback state (PAUSED short-
// circuits to the last retained frame).
func New(ctx *playback.Context, decoders decoder.Trio, coord *coordinator.Coordinator) *Gate {
	return &Gate{
		log:      slog.Default().With("component", "presentation.Gate"),
		ctx:      ctx,
		decoders: decoders,
		coord:    coord,
	}
}

// Fetch returns the frame the renderer should draw this tick. It never
// blocks: when no new frame is ready it returns the previous one (if still
// current) or ResultNoFrameAvailable.
func (g *Gate) Fetch() (Frame, Result) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.coord.State() == coordinator.StatePaused {
		if g.cur.have && g.cur.matched {
			return g.cur.frame, ResultOK
		}
		return Frame{}, ResultNoFrameAvailable
	}

	if g.cur.have && g.cur.matched && g.cur.elapsed < frameHoldTicks {
		g.cur.elapsed++
		return g.cur.frame, ResultOK
	}

	if !g.nextFrameAvailable() {
		if g.cur.have && g.cur.matched {
			return g.cur.frame, ResultOK
		}
		return Frame{}, ResultNoFrameAvailable
	}

	g.releaseCurrent()

	all := g.decoders.All()
	var cached [3]decoder.CachedFrame
	var ok [3]bool
	for i, d := range all {
		cached[i], ok[i] = d.RetainCachedFrame()
	}
	if !ok[0] || !ok[1] || !ok[2] {
		g.log.Warn("retain failed despite output queues reporting ready, treating as no frame",
			"occupancy", ok[0], "geometry", ok[1], "texture", ok[2])
		for i, d := range all {
			if ok[i] {
				d.ReleaseCachedFrame(cached[i])
			}
		}
		return Frame{}, ResultNoFrameAvailable
	}

	occupancy, geometry, texture := cached[0], cached[1], cached[2]

	if geometry.PTS != texture.PTS || geometry.PTS != occupancy.PTS {
		// Keep the frames retained but unmatched: they are never returned
		// as ResultOK, and the next Fetch that finds new output releases
		// them before retaining the next triple.
		g.cur = retained{
			frame:   Frame{Occupancy: occupancy, Geometry: geometry, Texture: texture},
			have:    true,
			matched: false,
		}
		return Frame{}, ResultOutOfSyncFrameAvailable
	}

	frame := Frame{Occupancy: occupancy, Geometry: geometry, Texture: texture}
	if renderFrame, ok := g.ctx.CurrentRenderFrame(); ok {
		frame.Patches = renderFrame.Patches
		frame.BlockToPatch = renderFrame.BlockToPatch
	}

	g.ctx.AdvanceRenderFrame()

	g.cur = retained{frame: frame, have: true, matched: true}
	return frame, ResultOK
}

// nextFrameAvailable reports whether all three decoders have at least
// minOutputQueueSize frames waiting, per spec.md §4.7.
func (g *Gate) nextFrameAvailable() bool {
	for _, d := range g.decoders.All() {
		if d.OutputQueueLen() < minOutputQueueSize {
			return false
		}
	}
	return true
}

func (g *Gate) releaseCurrent() {
	if !g.cur.have {
		return
	}
	all := g.decoders.All()
	all[0].ReleaseCachedFrame(g.cur.frame.Occupancy)
	all[1].ReleaseCachedFrame(g.cur.frame.Geometry)
	all[2].ReleaseCachedFrame(g.cur.frame.Texture)
	g.cur = retained{}
}

// Shutdown releases any frame the gate is still holding, for use during
// player teardown.
func (g *Gate) Shutdown() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.releaseCurrent()
}
