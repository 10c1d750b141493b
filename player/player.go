// Package player is the top-level façade a host application drives: open a
// container, start playback, and pull presentation frames on the renderer's
// cadence. It is a direct translation of ARPlayer.h/.cpp's public surface.
package player

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vpccplay/coordinator"
	"github.com/zsiec/vpccplay/decoder"
	"github.com/zsiec/vpccplay/hevc"
	"github.com/zsiec/vpccplay/playback"
	"github.com/zsiec/vpccplay/presentation"
	"github.com/zsiec/vpccplay/vpcc"
	"github.com/zsiec/vpccplay/vpcc/v6"
)

// containerParser is satisfied by both vpcc.Parser and v6.Parser, so Open
// can pick one by sniffing the container magic without duplicating the
// rest of its wiring logic.
type containerParser interface {
	ParseAll(buf []byte) ([]vpcc.FrameGroup, error)
}

// Config mirrors ARPlayer::Config.
type Config struct {
	// DualLayerMode reserves room for a second geometry/texture layer pair.
	// Carried from the original API surface; the replay pipeline here only
	// materializes single-layer patches (see DESIGN.md).
	DualLayerMode bool

	// ManualVideoTextureUpload is carried from the original API surface but
	// is not read by the player: each decoder's Initialize receives only the
	// stream's hevc.DecoderConfig, so frame delivery does not change with it.
	ManualVideoTextureUpload bool
}

// Stats and StatsCollection re-export the coordinator's decode-throughput
// snapshot so callers only need to import this package.
type Stats = coordinator.Stats
type StatsCollection = coordinator.StatsCollection

// Frame and Result re-export the presentation gate's renderer-facing types.
type Frame = presentation.Frame
type Result = presentation.Result

const (
	ResultOK                      = presentation.ResultOK
	ResultNoFrameAvailable        = presentation.ResultNoFrameAvailable
	ResultOutOfSyncFrameAvailable = presentation.ResultOutOfSyncFrameAvailable
)

// DecoderFactory builds one platform HwVideoDecoder instance. Player calls
// it three times, once per component stream, so each stream gets its own
// decoder instance and queue state.
type DecoderFactory func(bounds decoder.QueueBounds) decoder.HwVideoDecoder

type state int

const (
	stateInvalid state = iota
	stateInitialized
	statePlaying
	stateStopped
	statePaused
	stateShutdown
)

// Player drives one open container's playback lifecycle: Open parses the
// container and wires the decoder trio, Play/Pause/Resume/Stop drive the
// coordinator, and FetchPresentationFrame is the renderer's pull point.
type Player struct {
	cfg     Config
	bounds  decoder.QueueBounds
	factory DecoderFactory

	mu    sync.Mutex
	state state

	ctx      *playback.Context
	decoders decoder.Trio
	coord    *coordinator.Coordinator
	gate     *presentation.Gate

	runCancel context.CancelFunc
	eg        *errgroup.Group
}

// New creates a Player that has not yet had Open called. bounds sizes every
// decoder's input/output queues (see decoder.QueueBoundsAndroid and
// siblings); factory constructs the platform-specific decoder instances.
func New(cfg Config, bounds decoder.QueueBounds, factory DecoderFactory) *Player {
	return &Player{
		cfg:     cfg,
		bounds:  bounds,
		factory: factory,
		state:   stateInvalid,
	}
}

// Open parses a V-PCC container from buf, builds a playback context over
// its frame groups, and initializes the three component decoders from the
// first frame group's parameter sets. It does not start playback.
func (p *Player) Open(buf []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var parser containerParser = vpcc.NewParser()
	if v6.IsV6Container(buf) {
		parser = v6.NewParser()
	}
	groups, err := parser.ParseAll(buf)
	if err != nil {
		return fmt.Errorf("player: parsing container: %w", err)
	}
	if len(groups) == 0 {
		return fmt.Errorf("player: container has no frame groups")
	}

	occCfg, err := decoderConfigFor(groups[0].OccupancyStream)
	if err != nil {
		return fmt.Errorf("player: occupancy stream config: %w", err)
	}
	geoCfg, err := decoderConfigFor(groups[0].GeometryStream)
	if err != nil {
		return fmt.Errorf("player: geometry stream config: %w", err)
	}
	texCfg, err := decoderConfigFor(groups[0].TextureStream)
	if err != nil {
		return fmt.Errorf("player: texture stream config: %w", err)
	}

	ds := decoder.Trio{
		Occupancy: p.factory(p.bounds),
		Geometry:  p.factory(p.bounds),
		Texture:   p.factory(p.bounds),
	}
	if err := ds.Occupancy.Initialize(occCfg); err != nil {
		return fmt.Errorf("player: initializing occupancy decoder: %w", err)
	}
	if err := ds.Geometry.Initialize(geoCfg); err != nil {
		return fmt.Errorf("player: initializing geometry decoder: %w", err)
	}
	if err := ds.Texture.Initialize(texCfg); err != nil {
		return fmt.Errorf("player: initializing texture decoder: %w", err)
	}

	p.ctx = playback.New(groups)
	p.decoders = ds
	p.coord = coordinator.New(p.ctx, ds)
	p.gate = presentation.New(p.ctx, ds, p.coord)
	p.state = stateInitialized
	return nil
}

// decoderConfigFor scans one component stream's NAL units for its parameter
// sets without materializing per-picture packets, since Open only needs the
// DecoderConfig up front.
func decoderConfigFor(stream []byte) (hevc.DecoderConfig, error) {
	cfg := &hevc.ConfigBuilder{}
	for _, u := range hevc.ScanNALUnits(stream) {
		if u.Type != hevc.NALVPS && u.Type != hevc.NALSPS && u.Type != hevc.NALPPS {
			continue
		}
		start := u.Offset + u.HeaderLength
		end := u.Offset + u.Length
		if end > len(stream) || start >= end {
			continue
		}
		if err := cfg.Observe(u.Type, stream[start:end]); err != nil {
			return hevc.DecoderConfig{}, err
		}
		if cfg.Ready() {
			break
		}
	}
	return cfg.Config(), nil
}

// Play starts (or restarts) the background coordinator loop and every
// decoder.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateInvalid {
		return fmt.Errorf("player: Play called before Open")
	}

	for _, d := range p.decoders.All() {
		if err := d.Start(); err != nil {
			return fmt.Errorf("player: starting decoder: %w", err)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	eg, runCtx := errgroup.WithContext(runCtx)
	p.runCancel = cancel
	p.eg = eg

	p.coord.SetState(coordinator.StatePlaying)
	eg.Go(func() error {
		return p.coord.Run(runCtx)
	})

	p.state = statePlaying
	return nil
}

// Pause freezes the coordinator loop; the renderer keeps receiving the
// last retained frame from FetchPresentationFrame.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return fmt.Errorf("player: Pause called before Open")
	}
	p.coord.SetState(coordinator.StatePaused)
	p.state = statePaused
	return nil
}

// Resume un-freezes a paused coordinator loop.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return fmt.Errorf("player: Resume called before Open")
	}
	p.coord.SetState(coordinator.StatePlaying)
	p.state = statePlaying
	return nil
}

// Stop halts the coordinator loop without tearing down decoders, leaving
// Play able to restart it.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return fmt.Errorf("player: Stop called before Open")
	}
	p.coord.SetState(coordinator.StateStopped)
	if p.runCancel != nil {
		p.runCancel()
	}
	p.state = stateStopped
	return nil
}

// Shutdown tears down the coordinator loop, releases any retained
// presentation frame, and shuts down every decoder. The Player cannot be
// reused after Shutdown.
func (p *Player) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.coord != nil {
		p.coord.SetState(coordinator.StateShutdown)
	}
	if p.runCancel != nil {
		p.runCancel()
	}
	if p.eg != nil {
		p.eg.Wait()
	}
	if p.gate != nil {
		p.gate.Shutdown()
	}

	var firstErr error
	if p.decoders.Occupancy != nil {
		for _, d := range p.decoders.All() {
			if err := d.Shutdown(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	p.state = stateShutdown
	return firstErr
}

// FetchPresentationFrame is the renderer's pull point, safe to call from
// the renderer thread at its own cadence. See presentation.Gate.Fetch.
func (p *Player) FetchPresentationFrame() (Frame, Result) {
	p.mu.Lock()
	gate := p.gate
	p.mu.Unlock()
	if gate == nil {
		return Frame{}, ResultNoFrameAvailable
	}
	return gate.Fetch()
}

// StatsCollection reports the decode throughput measured over the most
// recently completed playback loop.
func (p *Player) StatsCollection() StatsCollection {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return StatsCollection{}
	}
	return p.coord.Stats()
}

// CoordinatorState reports the coordinator's current playback state, for
// telemetry consumers that want it without tracking lifecycle transitions
// themselves. Returns coordinator.StateShutdown before Open.
func (p *Player) CoordinatorState() coordinator.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.coord == nil {
		return coordinator.StateShutdown
	}
	return p.coord.State()
}

// QueueStats reports one decoder's queue occupancy.
type QueueStats struct {
	InputFull  bool `json:"inputFull"`
	OutputFull bool `json:"outputFull"`
	OutputLen  int  `json:"outputLen"`
}

// QueueSnapshot reports queue occupancy across the decoder trio, for
// diagnosing coordinator backpressure.
type QueueSnapshot struct {
	Occupancy QueueStats `json:"occupancy"`
	Geometry  QueueStats `json:"geometry"`
	Texture   QueueStats `json:"texture"`
}

// QueueDebug reports the current input/output queue occupancy of every
// component decoder. Returns the zero value before Open.
func (p *Player) QueueDebug() QueueSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decoders.Occupancy == nil {
		return QueueSnapshot{}
	}
	statsFor := func(d decoder.HwVideoDecoder) QueueStats {
		return QueueStats{
			InputFull:  d.InputQueueFull(),
			OutputFull: d.OutputQueueFull(),
			OutputLen:  d.OutputQueueLen(),
		}
	}
	return QueueSnapshot{
		Occupancy: statsFor(p.decoders.Occupancy),
		Geometry:  statsFor(p.decoders.Geometry),
		Texture:   statsFor(p.decoders.Texture),
	}
}
