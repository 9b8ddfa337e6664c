package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/frudas24/touchmirror/internal/app"
	"github.com/frudas24/touchmirror/internal/config"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/settings"
	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/frudas24/touchmirror/internal/webrtc"
	"golang.org/x/sync/errgroup"
)

// runOptions carries the command-line flags.
type runOptions struct {
	debug      bool
	configFile string
	peer       string
	port       int
	transport  string
}

// run wires the client and blocks until shutdown.
func run(opts runOptions) error {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	webrtc.SetDebugLogging(opts.debug)

	cfg, err := config.LoadClient(opts.configFile)
	if err != nil {
		return err
	}
	if opts.peer != "" {
		cfg.PeerAddr = opts.peer
	}
	if opts.port > 0 {
		cfg.PeerPort = opts.port
	}
	if opts.transport != "" {
		cfg.Transport = strings.ToLower(opts.transport)
	}
	if !cfg.SourceFromEnv {
		sourceFromPrimary(&cfg, log)
	}

	dialer, err := newDialer(cfg, log)
	if err != nil {
		return err
	}
	store, err := settings.OpenBadger(cfg.SettingsDir)
	if err != nil {
		return fmt.Errorf("open settings: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("shutdown: settings", "err", err)
		}
	}()

	client, err := app.New(cfg, dialer, store, log)
	if err != nil {
		return err
	}
	defer client.Close()

	mux := http.NewServeMux()
	client.RegisterRoutes(mux, "")
	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logListen(log, cfg.ListenAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return client.Run(ctx)
	})
	if cfg.PeerAddr != "" {
		g.Go(func() error {
			if err := client.Connect(ctx, cfg.PeerAddr, cfg.PeerPort); err != nil {
				log.Warn("startup connect failed", "peer", cfg.PeerAddr, "err", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newDialer selects the transport named in cfg.
func newDialer(cfg config.Client, log *slog.Logger) (transport.Dialer, error) {
	switch cfg.Transport {
	case "websocket":
		return transport.WebSocketDialer{
			Path:             cfg.PeerPath,
			HandshakeTimeout: cfg.ConnectTimeout,
			Logger:           log,
		}, nil
	case "webrtc":
		return transport.WebRTCDialer{
			STUNServers:      cfg.STUNURLs,
			HandshakeTimeout: cfg.ConnectTimeout,
			Logger:           log,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}

// sourceFromPrimary sizes the touch surface from the primary monitor when it can be enumerated.
func sourceFromPrimary(cfg *config.Client, log *slog.Logger) {
	list, err := monitor.ListMonitors()
	if err != nil {
		log.Debug("monitor enumeration unavailable", "err", err)
		return
	}
	m, ok := monitor.PrimaryOf(list)
	if !ok {
		return
	}
	cfg.SourceWidth, cfg.SourceHeight = m.W, m.H
	log.Info("source size from primary monitor", "w", m.W, "h", m.H)
}

// logListen reports the listen address and a local URL helper.
func logListen(log *slog.Logger, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		log.Info("listening", "addr", addr)
		return
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	log.Info("listening", "addr", addr, "url", "http://"+net.JoinHostPort(host, port))
}
