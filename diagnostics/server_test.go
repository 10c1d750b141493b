package diagnostics

import (
	"testing"

	"github.com/zsiec/vpccplay/certs"
	"github.com/zsiec/vpccplay/coordinator"
	"github.com/zsiec/vpccplay/player"
)

type fakeStatsProvider struct {
	stats  player.StatsCollection
	state  coordinator.State
	queues player.QueueSnapshot
}

func (f fakeStatsProvider) StatsCollection() player.StatsCollection { return f.stats }
func (f fakeStatsProvider) CoordinatorState() coordinator.State     { return f.state }
func (f fakeStatsProvider) QueueDebug() player.QueueSnapshot        { return f.queues }

func TestSnapshotOfReflectsProvider(t *testing.T) {
	t.Parallel()

	p := fakeStatsProvider{
		stats: player.StatsCollection{Occupancy: coordinator.Stats{NumTotalFrames: 30, AverageFPS: 29.97}},
		state: coordinator.StatePlaying,
		queues: player.QueueSnapshot{
			Occupancy: player.QueueStats{OutputLen: 2},
		},
	}

	got := snapshotOf(p)
	if got.State != "playing" {
		t.Errorf("State = %q, want %q", got.State, "playing")
	}
	if got.Stats.Occupancy.NumTotalFrames != 30 {
		t.Errorf("Stats.Occupancy.NumTotalFrames = %d, want 30", got.Stats.Occupancy.NumTotalFrames)
	}
	if got.Queues.Occupancy.OutputLen != 2 {
		t.Errorf("Queues.Occupancy.OutputLen = %d, want 2", got.Queues.Occupancy.OutputLen)
	}
}

func TestNewServerRequiresConfig(t *testing.T) {
	t.Parallel()

	cert, err := certs.Generate(0)
	if err != nil {
		t.Fatalf("certs.Generate: %v", err)
	}
	p := fakeStatsProvider{}

	cases := []struct {
		name string
		cfg  Config
	}{
		{"missing cert", Config{HTTPAddr: ":0", QUICAddr: ":0", Player: p}},
		{"missing http addr", Config{QUICAddr: ":0", Cert: cert, Player: p}},
		{"missing quic addr", Config{HTTPAddr: ":0", Cert: cert, Player: p}},
		{"missing player", Config{HTTPAddr: ":0", QUICAddr: ":0", Cert: cert}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewServer(tc.cfg); err == nil {
				t.Fatalf("NewServer(%s) = nil error, want error", tc.name)
			}
		})
	}

	valid := Config{HTTPAddr: ":0", QUICAddr: ":0", Cert: cert, Player: p}
	if _, err := NewServer(valid); err != nil {
		t.Fatalf("NewServer(valid) = %v, want nil", err)
	}
}
