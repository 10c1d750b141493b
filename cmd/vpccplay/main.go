// Command vpccplay opens a V-PCC container file from disk and drives it
// through player.Player on a fixed render cadence, logging each
// presentation frame result and serving a diagnostics telemetry endpoint
// alongside playback. It exists to exercise the core playback pipeline
// outside of a host application; it has no renderer of its own.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vpccplay/certs"
	"github.com/zsiec/vpccplay/decoder"
	"github.com/zsiec/vpccplay/diagnostics"
	"github.com/zsiec/vpccplay/player"
)

var version = "dev"

func main() {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	inputPath := os.Getenv("INPUT_FILE")
	if inputPath == "" {
		slog.Error("INPUT_FILE is required (path to a v-pcc container)")
		os.Exit(1)
	}

	diagHTTPAddr := envOr("DIAG_HTTP_ADDR", ":4443")
	diagQUICAddr := envOr("DIAG_QUIC_ADDR", ":4444")

	slog.Info("generating self-signed certificate for diagnostics")
	cert, err := certs.Generate(14 * 24 * time.Hour)
	if err != nil {
		slog.Error("failed to generate cert", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	buf, err := os.ReadFile(inputPath)
	if err != nil {
		slog.Error("failed to read input file", "path", inputPath, "error", err)
		os.Exit(1)
	}

	bounds := decoder.QueueBoundsApple
	p := player.New(player.Config{}, bounds, func(b decoder.QueueBounds) decoder.HwVideoDecoder {
		return decoder.NewFakeHwVideoDecoder(b, false)
	})

	slog.Info("vpccplay starting",
		"version", version,
		"input", inputPath,
		"diagnostics_http", diagHTTPAddr,
		"diagnostics_quic", diagQUICAddr,
		"cert_hash", cert.FingerprintBase64(),
	)

	if err := p.Open(buf); err != nil {
		slog.Error("failed to open container", "error", err)
		os.Exit(1)
	}
	if err := p.Play(); err != nil {
		slog.Error("failed to start playback", "error", err)
		os.Exit(1)
	}

	diagSrv, err := diagnostics.NewServer(diagnostics.Config{
		HTTPAddr: diagHTTPAddr,
		QUICAddr: diagQUICAddr,
		Cert:     cert,
		Player:   p,
	})
	if err != nil {
		slog.Error("failed to create diagnostics server", "error", err)
		os.Exit(1)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return diagSrv.Start(ctx)
	})

	g.Go(func() error {
		return renderLoop(ctx, p)
	})

	g.Go(func() error {
		<-ctx.Done()
		return p.Shutdown()
	})

	if err := g.Wait(); err != nil {
		slog.Error("vpccplay error", "error", err)
		os.Exit(1)
	}
}

// renderLoop simulates a renderer thread pulling presentation frames at a
// fixed 30fps cadence, the cadence FetchPresentationFrame is designed for.
func renderLoop(ctx context.Context, p *player.Player) error {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			frame, result := p.FetchPresentationFrame()
			switch result {
			case player.ResultOK:
				slog.Debug("presentation frame", "pts", frame.Occupancy.PTS, "patches", len(frame.Patches))
			case player.ResultOutOfSyncFrameAvailable:
				slog.Warn("presentation frame out of sync", "pts", frame.Occupancy.PTS)
			case player.ResultNoFrameAvailable:
				// Nothing queued yet; keep polling.
			}
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
