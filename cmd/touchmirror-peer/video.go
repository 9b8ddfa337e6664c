package main

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/frudas24/touchmirror/internal/ffmpeg"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/webrtc"
)

// video runs both capture pipelines: JPEG frames for websocket sessions and
// H264 RTP for the WebRTC track.
type video struct {
	mu        sync.Mutex
	base      ffmpeg.Options
	screen    monitor.Monitor
	preview   *ffmpeg.Preview
	runner    *ffmpeg.Runner
	publisher *webrtc.Publisher
	log       *slog.Logger
}

// Apply restarts capture sized and paced for q.
func (v *video) Apply(q protocol.Quality) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	opts := ffmpeg.WithPreset(v.base, q.Preset(), v.screen)

	size, err := v.preview.Start(v.screen, opts)
	if err != nil {
		return err
	}
	port, err := v.runner.Restart(v.screen, opts)
	if err != nil {
		return errors.Join(err, v.preview.Stop())
	}
	if err := v.publisher.Feed(port); err != nil {
		return err
	}
	v.log.Info("video: capture started", "quality", q, "w", size.W, "h", size.H, "rtp_port", port)
	return nil
}

// Stop terminates both pipelines.
func (v *video) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.publisher.StopFeed()
	return errors.Join(v.preview.Stop(), v.runner.Stop())
}
