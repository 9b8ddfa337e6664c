package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/frudas24/touchmirror/internal/config"
	"github.com/frudas24/touchmirror/internal/discovery"
	"github.com/frudas24/touchmirror/internal/ffmpeg"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/peer"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/signaling"
	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/frudas24/touchmirror/internal/webrtc"
	"github.com/frudas24/touchmirror/internal/wininput"
	"golang.org/x/sync/errgroup"
)

// fallbackScreen is used where monitors cannot be enumerated.
var fallbackScreen = geometry.Size{W: 1920, H: 1080}

// runOptions carries the command-line flags.
type runOptions struct {
	debug      bool
	configFile string
	listen     string
	welcome    bool
	noVideo    bool
	dryRun     bool
}

// run wires the peer and blocks until shutdown.
func run(opts runOptions) error {
	level := slog.LevelInfo
	if opts.debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)
	webrtc.SetDebugLogging(opts.debug)

	cfg, err := config.LoadPeer(opts.configFile)
	if err != nil {
		return err
	}
	if opts.listen != "" {
		cfg.ListenAddr = opts.listen
	}
	quality, err := protocol.ParseQuality(cfg.VideoQuality)
	if err != nil {
		return err
	}

	screen := selectScreen(cfg.MonitorIndex, log)
	injector := newInjector(opts.dryRun, log)
	publisher, err := webrtc.NewPublisher(cfg.STUNURLs, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	var capture *video
	server := peer.NewServer(injector, screen, peer.Options{
		Name:    cfg.Name,
		Welcome: opts.welcome,
		Quality: quality,
		OnQuality: func(q protocol.Quality) error {
			if capture == nil {
				return nil
			}
			return capture.Apply(q)
		},
		Logger: log,
	})
	defer server.Close()

	if !opts.noVideo {
		capture = &video{
			base: ffmpeg.Options{
				FFmpegPath:    cfg.FFmpegPath,
				FPS:           cfg.FPS,
				CaptureDriver: cfg.CaptureDriver,
				JPEGQuality:   cfg.JPEGQuality,
			},
			screen:    screen,
			preview:   ffmpeg.NewPreview(server, log),
			runner:    ffmpeg.NewRunner(log),
			publisher: publisher,
			log:       log,
		}
		if err := capture.Apply(quality); err != nil {
			log.Error("video: capture unavailable, serving input only", "err", err)
		}
		defer func() {
			if err := capture.Stop(); err != nil {
				log.Warn("shutdown: video", "err", err)
			}
		}()
	}

	sig := signaling.NewServer(publisher, signaling.ViewerReplace, server.ServeDataChannel, log)
	mux := http.NewServeMux()
	mux.Handle(transport.DefaultPath, server)
	mux.Handle(signaling.Path, sig)
	mux.HandleFunc(discovery.InfoPath, server.HandleDiscovery)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info("peer listening", "addr", cfg.ListenAddr, "name", cfg.Name, "screen", fmt.Sprintf("%dx%d", screen.W, screen.H))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// selectScreen returns the configured monitor, falling back to a synthetic one.
func selectScreen(idx int, log *slog.Logger) monitor.Monitor {
	list, err := monitor.ListMonitors()
	if err != nil || len(list) == 0 {
		log.Warn("monitor enumeration unavailable, using fallback", "err", err, "w", fallbackScreen.W, "h", fallbackScreen.H)
		list = monitor.Fallback(fallbackScreen)
	}
	m, _ := monitor.Select(list, idx)
	return m
}

// newInjector returns the SendInput injector, or a logging one for dry runs and unsupported hosts.
func newInjector(dryRun bool, log *slog.Logger) wininput.Injector {
	if dryRun {
		return wininput.NewLogInjector(log)
	}
	inj, err := wininput.NewInjector()
	if err != nil {
		log.Warn("input injection unavailable, logging touches instead", "err", err)
		return wininput.NewLogInjector(log)
	}
	return inj
}
