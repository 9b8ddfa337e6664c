// Package ffmpeg drives the ffmpeg capture processes of the reference peer.
//
// Runner publishes an H264 RTP stream for the WebRTC track; Preview decodes raw frames
// into JPEG for the websocket variant. Both size their output from a quality preset.
package ffmpeg

import (
	"fmt"

	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/protocol"
)

// Options describes ffmpeg runtime parameters.
type Options struct {
	FFmpegPath    string
	FPS           int
	BitrateKbps   int
	CaptureDriver string
	// Width and Height are the encoded output size. Zero keeps the monitor size.
	Width       int
	Height      int
	JPEGQuality int
}

// WithPreset returns opts sized and paced for preset p on monitor m.
func WithPreset(opts Options, p protocol.Preset, m monitor.Monitor) Options {
	out := fitEven(m.Size(), geometry.Size{W: p.Width, H: p.Height})
	opts.Width, opts.Height = out.W, out.H
	if p.FPS > 0 {
		opts.FPS = p.FPS
	}
	if p.Bitrate > 0 {
		opts.BitrateKbps = p.Bitrate / 1000
	}
	return opts
}

// OutputSize returns the encoded frame size for monitor m.
func (o Options) OutputSize(m monitor.Monitor) geometry.Size {
	if o.Width > 0 && o.Height > 0 {
		return geometry.Size{W: o.Width, H: o.Height}
	}
	return fitEven(m.Size(), m.Size())
}

// BuildRTPArgs returns ffmpeg args streaming H264 over RTP to a local port.
func BuildRTPArgs(m monitor.Monitor, opts Options, port int, useD3D11 bool) []string {
	input := buildInputArgs(m, opts, useD3D11)
	output := buildOutputArgs(opts, port, scaleFilter(m, opts))
	return append(input, output...)
}

// BuildRawArgs returns ffmpeg args writing rgb24 frames to stdout.
func BuildRawArgs(m monitor.Monitor, opts Options, useD3D11 bool) []string {
	args := buildInputArgs(m, opts, useD3D11)
	if filter := scaleFilter(m, opts); filter != "" {
		args = append(args, "-vf", filter)
	}
	return append(args, "-an", "-pix_fmt", "rgb24", "-f", "rawvideo", "-")
}

// buildInputArgs builds the capture-side arguments.
func buildInputArgs(m monitor.Monitor, opts Options, useD3D11 bool) []string {
	grabber := "gdigrab"
	if driver := opts.CaptureDriver; driver != "" && driver != "gdigrab" {
		grabber = driver
	} else if useD3D11 {
		grabber = "d3d11grab"
	}
	args := []string{
		"-f", grabber,
		"-framerate", fmt.Sprintf("%d", opts.FPS),
	}
	if grabber == "x11grab" {
		return append(args,
			"-video_size", fmt.Sprintf("%dx%d", m.W, m.H),
			"-i", fmt.Sprintf(":0.0+%d,%d", m.X, m.Y),
		)
	}
	return append(args,
		"-offset_x", fmt.Sprintf("%d", m.X),
		"-offset_y", fmt.Sprintf("%d", m.Y),
		"-video_size", fmt.Sprintf("%dx%d", m.W, m.H),
		"-i", "desktop",
	)
}

// buildOutputArgs builds the encode/output arguments.
func buildOutputArgs(opts Options, port int, filter string) []string {
	// Keep keyframes frequent to help decoders recover quickly after restarts and preset changes.
	keyint := opts.FPS
	if keyint <= 0 {
		keyint = 30
	}
	if keyint < 15 {
		keyint = 15
	}
	args := []string{
		"-an",
	}
	if filter != "" {
		args = append(args, "-vf", filter)
	}
	args = append(args,
		"-vcodec", "libx264",
		"-preset", "ultrafast",
		"-tune", "zerolatency",
		"-profile:v", "baseline",
		"-g", fmt.Sprintf("%d", keyint),
		"-keyint_min", fmt.Sprintf("%d", keyint),
		"-bf", "0",
		"-x264-params", "scenecut=0:repeat-headers=1",
		"-pix_fmt", "yuv420p",
		"-b:v", fmt.Sprintf("%dk", opts.BitrateKbps),
		"-payload_type", "96",
		"-f", "rtp",
		fmt.Sprintf("rtp://127.0.0.1:%d?pkt_size=1200", port),
	)
	return args
}

// scaleFilter returns the scale filter for opts, or "" when no scaling is needed.
func scaleFilter(m monitor.Monitor, opts Options) string {
	out := opts.OutputSize(m)
	if out.W == m.W && out.H == m.H {
		return ""
	}
	return fmt.Sprintf("scale=%d:%d", out.W, out.H)
}

// fitEven scales src uniformly into box without upscaling, rounding both sides down to even values.
func fitEven(src, box geometry.Size) geometry.Size {
	if src.W <= 0 || src.H <= 0 {
		return geometry.Size{W: 2, H: 2}
	}
	w, h := src.W, src.H
	if box.W > 0 && box.H > 0 && (w > box.W || h > box.H) {
		sx := float64(box.W) / float64(w)
		sy := float64(box.H) / float64(h)
		scale := sx
		if sy < sx {
			scale = sy
		}
		w = int(float64(w) * scale)
		h = int(float64(h) * scale)
	}
	w -= w % 2
	h -= h % 2
	if w < 2 {
		w = 2
	}
	if h < 2 {
		h = 2
	}
	return geometry.Size{W: w, H: h}
}
