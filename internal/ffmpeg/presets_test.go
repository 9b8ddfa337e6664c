package ffmpeg

import (
	"slices"
	"testing"

	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/protocol"
)

// TestFitEven_DownscalesKeepingAspect verifies presets shrink large monitors to even sizes.
func TestFitEven_DownscalesKeepingAspect(t *testing.T) {
	cases := []struct {
		src, box, want geometry.Size
	}{
		{geometry.Size{W: 2560, H: 1440}, geometry.Size{W: 1280, H: 720}, geometry.Size{W: 1280, H: 720}},
		{geometry.Size{W: 2048, H: 1536}, geometry.Size{W: 854, H: 480}, geometry.Size{W: 640, H: 480}},
		{geometry.Size{W: 1280, H: 720}, geometry.Size{W: 1920, H: 1080}, geometry.Size{W: 1280, H: 720}},
		{geometry.Size{W: 1366, H: 767}, geometry.Size{W: 1920, H: 1080}, geometry.Size{W: 1366, H: 766}},
	}
	for _, tc := range cases {
		if got := fitEven(tc.src, tc.box); got != tc.want {
			t.Fatalf("fitEven(%v, %v): expected %v, got %v", tc.src, tc.box, tc.want, got)
		}
	}
}

// TestWithPreset_AppliesPacing verifies fps, bitrate and size follow the preset.
func TestWithPreset_AppliesPacing(t *testing.T) {
	m := monitor.Monitor{Index: 1, W: 2560, H: 1440}
	opts := WithPreset(Options{FFmpegPath: "ffmpeg"}, protocol.QualityMedium.Preset(), m)
	if opts.FPS != 30 || opts.BitrateKbps != 4000 || opts.Width != 1280 || opts.Height != 720 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

// TestBuildRTPArgs_ScalesAndTargetsPort verifies the encoder args include scaling and the RTP sink.
func TestBuildRTPArgs_ScalesAndTargetsPort(t *testing.T) {
	m := monitor.Monitor{Index: 1, X: 1920, W: 2560, H: 1440}
	opts := Options{FPS: 20, BitrateKbps: 2000, Width: 854, Height: 480}
	args := BuildRTPArgs(m, opts, 5004, false)
	if !slices.Contains(args, "scale=854:480") {
		t.Fatalf("expected scale filter, got %v", args)
	}
	if args[len(args)-1] != "rtp://127.0.0.1:5004?pkt_size=1200" {
		t.Fatalf("expected rtp sink, got %s", args[len(args)-1])
	}
	if i := slices.Index(args, "-offset_x"); i < 0 || args[i+1] != "1920" {
		t.Fatalf("expected monitor offset, got %v", args)
	}
}

// TestBuildRawArgs_NoScaleAtNativeSize verifies raw capture skips the filter at monitor size.
func TestBuildRawArgs_NoScaleAtNativeSize(t *testing.T) {
	m := monitor.Monitor{Index: 1, W: 1280, H: 720}
	args := BuildRawArgs(m, Options{FPS: 10, CaptureDriver: "x11grab"}, false)
	if slices.Contains(args, "-vf") {
		t.Fatalf("expected no filter, got %v", args)
	}
	if !slices.Contains(args, ":0.0+0,0") || args[len(args)-1] != "-" {
		t.Fatalf("unexpected raw args %v", args)
	}
}
