package ffmpeg

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/mjpeg"
	"github.com/frudas24/touchmirror/internal/monitor"
)

const previewRestartBackoff = 2 * time.Second

// FramePublisher receives encoded JPEG frames.
type FramePublisher interface {
	Publish(jpg []byte)
}

// Preview decodes raw rgb24 frames from ffmpeg and publishes them as JPEG.
// A capture that dies is relaunched after previewRestartBackoff.
type Preview struct {
	mu      sync.Mutex
	proc    *process
	stdout  io.ReadCloser
	sink    FramePublisher
	quality int
	size    geometry.Size
	path    string
	args    []string
	gen     uint64
	closed  bool
	log     *slog.Logger
}

// NewPreview returns a preview pipeline publishing to sink.
func NewPreview(sink FramePublisher, log *slog.Logger) *Preview {
	if log == nil {
		log = slog.Default()
	}
	return &Preview{sink: sink, quality: 60, log: log}
}

// Start (re)starts capture of m at the size and pace in opts and returns the frame size.
func (p *Preview) Start(m monitor.Monitor, opts Options) (geometry.Size, error) {
	if opts.FFmpegPath == "" {
		return geometry.Size{}, errors.New("FFmpegPath is required")
	}
	if opts.FPS <= 0 {
		opts.FPS = 20
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.stopLocked(); err != nil {
		return geometry.Size{}, err
	}
	p.closed = false
	if opts.JPEGQuality > 0 && opts.JPEGQuality <= 100 {
		p.quality = opts.JPEGQuality
	}
	useD3D11 := opts.CaptureDriver == "" || opts.CaptureDriver == "d3d11grab"
	p.path = opts.FFmpegPath
	p.args = BuildRawArgs(m, opts, useD3D11)
	p.size = opts.OutputSize(m)

	p.log.Info("ffmpeg: preview", "cmd", describe(p.path, p.args))
	if err := p.launchLocked(); err != nil {
		return geometry.Size{}, err
	}
	p.gen++
	go p.loop(p.gen)
	return p.size, nil
}

// Stop terminates the capture.
func (p *Preview) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return p.stopLocked()
}

// launchLocked starts ffmpeg with the stored command. Callers hold p.mu.
func (p *Preview) launchLocked() error {
	proc, stdout, err := launch(p.path, p.args, p.log, true)
	if err != nil {
		return err
	}
	p.proc, p.stdout = proc, stdout
	return nil
}

// stopLocked kills the running capture. Callers hold p.mu.
func (p *Preview) stopLocked() error {
	if p.proc == nil {
		return nil
	}
	proc := p.proc
	p.proc, p.stdout = nil, nil
	return proc.kill()
}

// current returns the stdout of generation gen, or nil once it is stale.
func (p *Preview) current(gen uint64) io.ReadCloser {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.gen != gen {
		return nil
	}
	return p.stdout
}

// loop reads frames of generation gen until the preview stops or restarts.
func (p *Preview) loop(gen uint64) {
	p.mu.Lock()
	size, quality := p.size, p.quality
	p.mu.Unlock()
	raw := make([]byte, size.W*size.H*3)
	for {
		stdout := p.current(gen)
		if stdout == nil {
			return
		}
		if _, err := io.ReadFull(stdout, raw); err != nil {
			if !p.relaunch(gen, err) {
				return
			}
			continue
		}
		if p.sink != nil {
			p.sink.Publish(mjpeg.EncodeRGBToJPEG(raw, size.W, size.H, quality))
		}
	}
}

// relaunch restarts a failed capture of generation gen. It reports false when the loop should exit.
func (p *Preview) relaunch(gen uint64, cause error) bool {
	if p.current(gen) == nil {
		return false
	}
	p.log.Warn("ffmpeg: preview read failed", "err", cause, "restart_in", previewRestartBackoff)
	time.Sleep(previewRestartBackoff)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.gen != gen {
		return false
	}
	if err := p.stopLocked(); err != nil {
		p.log.Warn("ffmpeg: preview stop failed", "err", err)
		return false
	}
	if err := p.launchLocked(); err != nil {
		p.log.Warn("ffmpeg: preview restart failed", "err", err)
		return false
	}
	return true
}
