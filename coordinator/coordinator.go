// Package coordinator runs the background thread that feeds decoder input
// queues from a playback.Context and pumps their output queues, per
// spec.md §4.6.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zsiec/vpccplay/decoder"
	"github.com/zsiec/vpccplay/playback"
)

// State is the coordinator's top-level playback state.
type State int32

const (
	StatePlaying State = iota
	StatePaused
	StateStopped
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	case StateShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Decoders is the trio of component decoders the coordinator drives in
// lockstep.
type Decoders = decoder.Trio

// Stats mirrors one component decoder's running average throughput, per
// spec.md §4.9 ("decode statistics") and ARPlayer::Stats.
type Stats struct {
	NumTotalFrames         uint32
	AverageFPS             float64
	AverageFrameDurationMs int64
}

// StatsCollection bundles the per-stream Stats the player reports after
// each full playback loop.
type StatsCollection struct {
	Geometry  Stats
	Texture   Stats
	Occupancy Stats
}

// Coordinator is the single background-thread loop described in spec.md
// §4.6. Create it with New, drive it with Run from its own goroutine, and
// control it with SetState from any goroutine.
type Coordinator struct {
	log      *slog.Logger
	ctx      *playback.Context
	decoders Decoders

	tickInterval time.Duration

	state           atomic.Int32
	inputEOSLatched atomic.Bool
	loopCount       atomic.Int64

	statsMu   sync.Mutex
	stats     StatsCollection
	loopStart time.Time
}

// New creates a Coordinator in the StateStopped state. Callers set it to
// StatePlaying once decoders are initialized.
func New(ctx *playback.Context, decoders Decoders) *Coordinator {
	c := &Coordinator{
		log:          slog.Default().With("component", "coordinator.Coordinator"),
		ctx:          ctx,
		decoders:     decoders,
		tickInterval: 5 * time.Millisecond,
		loopStart:    time.Now(),
	}
	c.state.Store(int32(StateStopped))
	return c
}

// Stats returns the decode throughput measured over the most recently
// completed playback loop. Zero-valued until the first loop restart.
func (c *Coordinator) Stats() StatsCollection {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

// SetState changes the coordinator's state; safe to call from any
// goroutine.
func (c *Coordinator) SetState(s State) {
	c.state.Store(int32(s))
}

// State returns the coordinator's current state.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// LoopCount reports how many times playback has looped back to the start,
// for the diagnostics telemetry snapshot.
func (c *Coordinator) LoopCount() int64 {
	return c.loopCount.Load()
}

// Run drives the coordinator loop until goCtx is cancelled or the state is
// set to StateShutdown. Intended to be run via errgroup.Go alongside the
// renderer and any telemetry server.
func (c *Coordinator) Run(goCtx context.Context) error {
	ticker := time.NewTicker(c.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-goCtx.Done():
			return nil
		case <-ticker.C:
		}

		switch c.State() {
		case StateShutdown:
			return nil
		case StatePaused, StateStopped:
			// yield: nothing to do this tick
		case StatePlaying:
			c.tick()
		}
	}
}

func (c *Coordinator) tick() {
	eos := c.ctx.InputEOS()
	if !eos && c.shouldQueueInput() {
		c.queueInputAll()
	} else if eos {
		c.inputEOSLatched.Store(true)
	}

	if !(c.inputEOSLatched.Load() && c.ctx.OutputEOS()) {
		c.pumpOutputs()
	} else {
		c.loopRestart()
	}
}

// shouldQueueInput returns true only when all three decoders have room in
// both their input and output queues, so the slowest decoder throttles
// the other two and the streams cannot drift apart.
func (c *Coordinator) shouldQueueInput() bool {
	for _, d := range c.decoders.All() {
		if d.InputQueueFull() || d.OutputQueueFull() {
			return false
		}
	}
	return true
}

// queueInputAll extracts the current frame's three component packets and
// enqueues them to the three decoders with the same PTS, advancing the
// input cursor only if all three enqueue calls succeeded. On partial
// success the cursor holds and the step retries next tick.
func (c *Coordinator) queueInputAll() {
	frame, ok := c.ctx.CurrentDecoderFrame()
	if !ok {
		return
	}

	eos := c.ctx.InputIsLastFrame()
	ds := c.decoders.All()
	packets := [3][]byte{frame.OccupancyPacket.Data, frame.GeometryPacket.Data, frame.TexturePacket.Data}

	var results [3]bool
	for i := range ds {
		results[i] = ds[i].QueueInput(packets[i], frame.PTS, eos)
	}

	if results[0] && results[1] && results[2] {
		c.ctx.AdvanceDecoderFrame()
		return
	}

	c.log.Warn("partial queue_input_all, retrying next tick",
		"occupancy", results[0], "geometry", results[1], "texture", results[2])
}

func (c *Coordinator) pumpOutputs() {
	for _, d := range c.decoders.All() {
		d.DequeueOutput()
	}
}

// loopRestart flushes all three decoders, resets the cursors to (0,0),
// and clears the EOS latch, implementing spec.md §4.6's looping playback.
func (c *Coordinator) loopRestart() {
	for _, d := range c.decoders.All() {
		if err := d.Flush(); err != nil {
			c.log.Warn("decoder flush failed during loop restart", "error", err)
		}
	}
	c.recordLoopStats()
	c.ctx.Reset()
	c.inputEOSLatched.Store(false)
	c.loopCount.Add(1)
	c.log.Info("playback looped", "count", c.loopCount.Load())
}

// recordLoopStats computes the average decode throughput over the loop
// that just finished, per ARPlayer.cpp's end-of-clip stats calculation.
// The three component streams are assumed frame-synchronous (§4.6's
// lockstep queueing guarantees this absent decoder error), so all three
// report the same frame count and timing.
func (c *Coordinator) recordLoopStats() {
	elapsedMs := time.Since(c.loopStart).Milliseconds()
	c.loopStart = time.Now()

	var totalFrames int
	for _, g := range c.ctx.FrameGroups() {
		totalFrames += len(g.Frames)
	}
	if totalFrames == 0 || elapsedMs == 0 {
		return
	}

	avgMs := elapsedMs / int64(totalFrames)
	var fps float64
	if avgMs > 0 {
		fps = 1000.0 / float64(avgMs)
	}

	s := Stats{
		NumTotalFrames:         uint32(totalFrames),
		AverageFPS:             fps,
		AverageFrameDurationMs: avgMs,
	}

	c.statsMu.Lock()
	c.stats = StatsCollection{Geometry: s, Texture: s, Occupancy: s}
	c.statsMu.Unlock()
}
