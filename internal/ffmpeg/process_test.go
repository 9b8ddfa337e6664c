package ffmpeg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/frudas24/touchmirror/internal/monitor"
)

// TestStderrLog_SplitsLines verifies stderr chunks are logged once per complete line.
func TestStderrLog_SplitsLines(t *testing.T) {
	var out bytes.Buffer
	w := &stderrLog{log: slog.New(slog.NewTextHandler(&out, nil))}
	_, _ = w.Write([]byte("first\npart"))
	if strings.Contains(out.String(), "part") {
		t.Fatalf("expected partial line to stay buffered, got %q", out.String())
	}
	_, _ = w.Write([]byte("ial\n\n"))
	got := out.String()
	if strings.Count(got, "ffmpeg: stderr") != 2 {
		t.Fatalf("expected two records, got %q", got)
	}
	if !strings.Contains(got, "line=first") || !strings.Contains(got, "line=partial") {
		t.Fatalf("expected both lines, got %q", got)
	}
}

// TestAllocatePort_ReturnsUsablePort verifies a local port is reserved.
func TestAllocatePort_ReturnsUsablePort(t *testing.T) {
	port, err := allocatePort()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if port <= 0 || port > 65535 {
		t.Fatalf("expected valid port, got %d", port)
	}
}

// TestRunner_RequiresFFmpegPath verifies a runner without a binary refuses to start.
func TestRunner_RequiresFFmpegPath(t *testing.T) {
	r := NewRunner(nil)
	if _, err := r.Start(monitor.Monitor{Index: 1, W: 1280, H: 720}, Options{}); err == nil {
		t.Fatalf("expected error without FFmpegPath")
	}
	if r.Port() != 0 {
		t.Fatalf("expected no port, got %d", r.Port())
	}
}
