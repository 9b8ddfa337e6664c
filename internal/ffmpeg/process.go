package ffmpeg

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// earlyExitWindow is how long a capture must survive before it counts as started.
const earlyExitWindow = 700 * time.Millisecond

// maxStderrLine bounds a buffered stderr line.
const maxStderrLine = 4096

// process is one running ffmpeg child.
type process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// launch starts ffmpeg with args. When pipe is set the child's stdout is returned.
// Stderr lines are forwarded to log.
func launch(path string, args []string, log *slog.Logger, pipe bool) (*process, io.ReadCloser, error) {
	full := append([]string{"-hide_banner", "-loglevel", "error"}, args...)
	cmd := exec.Command(path, full...)
	configureCmd(cmd)
	cmd.Stderr = &stderrLog{log: log}
	var stdout io.ReadCloser
	if pipe {
		var err error
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return nil, nil, err
		}
	}
	if err := cmd.Start(); err != nil {
		return nil, nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	p := &process{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, stdout, nil
}

// launchPreferred starts args and switches to fallback when the first attempt dies
// within earlyExitWindow, which is how an unavailable grabber shows up.
func launchPreferred(path string, args, fallback []string, log *slog.Logger, pipe bool) (*process, io.ReadCloser, error) {
	p, stdout, err := launch(path, args, log, pipe)
	if err != nil {
		return nil, nil, err
	}
	exited, exitErr := p.exitedWithin(earlyExitWindow)
	if !exited || fallback == nil {
		return p, stdout, nil
	}
	log.Warn("ffmpeg: preferred capture exited early, retrying", "err", exitErr)
	p, stdout, err = launch(path, fallback, log, pipe)
	if err != nil {
		return nil, nil, errors.Join(err, exitErr)
	}
	return p, stdout, nil
}

// exitedWithin waits up to d and reports whether the process ended.
func (p *process) exitedWithin(d time.Duration) (bool, error) {
	select {
	case <-p.done:
		return true, p.err
	case <-time.After(d):
		return false, nil
	}
}

// kill terminates the process and waits for it to be reaped.
func (p *process) kill() error {
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}

// stderrLog turns ffmpeg stderr output into log records, one per line.
type stderrLog struct {
	mu  sync.Mutex
	log *slog.Logger
	buf []byte
}

// Write buffers p and logs every complete line.
func (w *stderrLog) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) > maxStderrLine {
		w.emit(w.buf)
		w.buf = w.buf[:0]
	}
	return len(p), nil
}

// emit logs one line, skipping blanks.
func (w *stderrLog) emit(line []byte) {
	if s := strings.TrimSpace(string(line)); s != "" {
		w.log.Warn("ffmpeg: stderr", "line", s)
	}
}

// describe renders a command line for logs.
func describe(path string, args []string) string {
	return path + " " + strings.Join(args, " ")
}
