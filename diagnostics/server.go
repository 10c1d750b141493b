package diagnostics

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/quic-go/quic-go/http3"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/vpccplay/certs"
	"github.com/zsiec/vpccplay/coordinator"
	"github.com/zsiec/vpccplay/player"
)

// pushInterval is how often a connected push-stream client receives a
// fresh Snapshot.
const pushInterval = 1 * time.Second

// StatsProvider is the subset of player.Player this package depends on. A
// narrow interface instead of the concrete type keeps this package usable
// against a fake in tests.
type StatsProvider interface {
	StatsCollection() player.StatsCollection
	CoordinatorState() coordinator.State
	QueueDebug() player.QueueSnapshot
}

// Snapshot is the JSON body served by GET /api/stats and pushed over the
// telemetry stream.
type Snapshot struct {
	State  string                      `json:"state"`
	Stats  coordinator.StatsCollection `json:"stats"`
	Queues player.QueueSnapshot        `json:"queues"`
}

func snapshotOf(p StatsProvider) Snapshot {
	return Snapshot{
		State:  p.CoordinatorState().String(),
		Stats:  p.StatsCollection(),
		Queues: p.QueueDebug(),
	}
}

// Config holds the diagnostics Server's configuration.
type Config struct {
	// HTTPAddr is the HTTP/3 REST API listen address.
	HTTPAddr string
	// QUICAddr is the raw QUIC listen address for the push-stream
	// protocol. May equal HTTPAddr's host with a different port.
	QUICAddr string
	Cert     *certs.CertInfo
	Player   StatsProvider
}

// Server serves a small REST+push telemetry surface over a self-signed
// TLS certificate, for a debug client to observe playback state live
// without instrumenting the host application itself.
type Server struct {
	cfg     Config
	httpSrv *http3.Server
}

// NewServer validates cfg and returns a Server ready for Start.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Cert == nil {
		return nil, errors.New("diagnostics: Cert is required")
	}
	if cfg.HTTPAddr == "" {
		return nil, errors.New("diagnostics: HTTPAddr is required")
	}
	if cfg.QUICAddr == "" {
		return nil, errors.New("diagnostics: QUICAddr is required")
	}
	if cfg.Player == nil {
		return nil, errors.New("diagnostics: Player is required")
	}
	return &Server{cfg: cfg}, nil
}

func (s *Server) tlsConfig() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{s.cfg.Cert.TLSCert},
		NextProtos:   []string{"vpccplay-diag"},
	}
}

// Start runs the HTTP/3 REST API and the raw QUIC push-stream listener
// together, blocking until ctx is cancelled or either fails.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.serveHTTP(ctx) })
	g.Go(func() error { return s.servePush(ctx) })

	return g.Wait()
}

func (s *Server) serveHTTP(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/cert-hash", s.handleCertHash)

	s.httpSrv = &http3.Server{
		Addr:      s.cfg.HTTPAddr,
		Handler:   corsMiddleware(mux),
		TLSConfig: s.tlsConfig(),
		QUICConfig: &quic.Config{
			MaxIdleTimeout: 30 * time.Second,
		},
	}

	slog.Info("diagnostics HTTP/3 API listening", "addr", s.cfg.HTTPAddr)

	stop := context.AfterFunc(ctx, func() { s.httpSrv.Close() })
	defer stop()

	err := s.httpSrv.ListenAndServe()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotOf(s.cfg.Player))
}

func (s *Server) handleCertHash(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"hash": s.cfg.Cert.FingerprintBase64(),
		"addr": s.cfg.HTTPAddr,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("diagnostics: encoding JSON response", "error", err)
	}
}

// servePush accepts raw QUIC connections and runs one push loop per
// connected client's bidirectional stream.
func (s *Server) servePush(ctx context.Context) error {
	listener, err := quic.ListenAddr(s.cfg.QUICAddr, s.tlsConfig(), &quic.Config{
		MaxIdleTimeout: 30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("diagnostics: listening for push connections: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()

	slog.Info("diagnostics push stream listening", "addr", s.cfg.QUICAddr)

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("diagnostics: accepting connection: %w", err)
		}
		go s.handlePushConn(ctx, conn)
	}
}

func (s *Server) handlePushConn(ctx context.Context, conn quic.Connection) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		slog.Debug("diagnostics: accepting push stream", "error", err)
		return
	}
	defer stream.Close()

	if _, _, err := ReadMessage(stream); err != nil {
		slog.Debug("diagnostics: reading subscribe message", "error", err)
		return
	}

	ticker := time.NewTicker(pushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = WriteMessage(stream, MsgGoAway, nil)
			return
		case <-conn.Context().Done():
			return
		case <-ticker.C:
			payload, err := json.Marshal(snapshotOf(s.cfg.Player))
			if err != nil {
				slog.Error("diagnostics: marshaling snapshot", "error", err)
				continue
			}
			if err := WriteMessage(stream, MsgStatsPush, payload); err != nil {
				slog.Debug("diagnostics: push write failed, dropping client", "error", err)
				return
			}
		}
	}
}
