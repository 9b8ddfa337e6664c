package ffmpeg

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/frudas24/touchmirror/internal/monitor"
)

// Runner keeps one H264 RTP capture running for the WebRTC track.
type Runner struct {
	mu   sync.Mutex
	proc *process
	port int
	log  *slog.Logger
}

// NewRunner returns an idle runner.
func NewRunner(log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{log: log}
}

// Start captures m with opts and returns the local RTP port ffmpeg sends to.
func (r *Runner) Start(m monitor.Monitor, opts Options) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.proc != nil {
		return 0, errors.New("ffmpeg: rtp capture already running")
	}
	return r.startLocked(m, opts)
}

// Restart replaces the running capture, typically after a quality change.
func (r *Runner) Restart(m monitor.Monitor, opts Options) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.stopLocked(); err != nil {
		return 0, err
	}
	return r.startLocked(m, opts)
}

// Stop terminates the capture, if any.
func (r *Runner) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopLocked()
}

// Port returns the RTP port of the running capture, or 0.
func (r *Runner) Port() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.port
}

// startLocked launches ffmpeg. Callers hold r.mu.
func (r *Runner) startLocked(m monitor.Monitor, opts Options) (int, error) {
	if opts.FFmpegPath == "" {
		return 0, errors.New("FFmpegPath is required")
	}
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if opts.BitrateKbps <= 0 {
		opts.BitrateKbps = 4000
	}
	port, err := allocatePort()
	if err != nil {
		return 0, err
	}
	args := BuildRTPArgs(m, opts, port, true)
	r.log.Info("ffmpeg: rtp", "cmd", describe(opts.FFmpegPath, args))
	proc, _, err := launchPreferred(opts.FFmpegPath, args, BuildRTPArgs(m, opts, port, false), r.log, false)
	if err != nil {
		return 0, err
	}
	r.proc, r.port = proc, port
	go r.watch(proc)
	return port, nil
}

// stopLocked kills the capture. Callers hold r.mu.
func (r *Runner) stopLocked() error {
	if r.proc == nil {
		return nil
	}
	proc := r.proc
	r.proc, r.port = nil, 0
	return proc.kill()
}

// watch logs a capture that ends without being stopped.
func (r *Runner) watch(proc *process) {
	<-proc.done
	r.mu.Lock()
	current := r.proc == proc
	if current {
		r.proc, r.port = nil, 0
	}
	r.mu.Unlock()
	if current {
		r.log.Warn("ffmpeg: rtp capture exited", "err", proc.err)
	}
}

// allocatePort finds a free local UDP port for ffmpeg to send RTP to.
func allocatePort() (int, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		return 0, err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).Port, nil
}
