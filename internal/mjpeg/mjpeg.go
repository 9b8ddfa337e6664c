// Package mjpeg serves mirrored frames to the browser as a multipart MJPEG stream.
//
// Stream is the client display sink: frames received from the peer are presented here,
// and the capture page renders /mjpeg/display underneath the touch surface.
package mjpeg

import (
	"bytes"
	"image"
	"image/jpeg"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/transport"
)

const (
	boundary  = "frame"
	keepAlive = time.Second
)

// Stream broadcasts JPEG frames to connected HTTP clients.
type Stream struct {
	mu          sync.RWMutex
	subs        map[chan []byte]struct{}
	last        []byte
	minInterval time.Duration
	lastPush    time.Time

	paused    bool
	size      geometry.Size
	presented int
	dropped   int
	log       *slog.Logger
}

// Stats counts frames handed to the sink.
type Stats struct {
	Presented int           `json:"presented"`
	Dropped   int           `json:"dropped"`
	Paused    bool          `json:"paused"`
	Size      geometry.Size `json:"size"`
}

// NewStream creates a new stream with a minimum publish interval.
func NewStream(minInterval time.Duration) *Stream {
	return &Stream{
		subs:        make(map[chan []byte]struct{}),
		minInterval: minInterval,
		log:         slog.Default(),
	}
}

// SetLogger replaces the stream logger.
func (s *Stream) SetLogger(l *slog.Logger) {
	if l == nil {
		return
	}
	s.mu.Lock()
	s.log = l
	s.mu.Unlock()
}

// PresentFrame publishes a JPEG frame from the peer. Frames arriving while paused and
// frames in formats the browser cannot render are counted and dropped.
func (s *Stream) PresentFrame(f transport.Frame) {
	s.mu.Lock()
	if s.paused || f.Format != transport.FormatJPEG || len(f.Data) == 0 {
		s.dropped++
		log := s.log
		format := f.Format
		s.mu.Unlock()
		if format != transport.FormatJPEG {
			log.Debug("mjpeg: dropping frame", "format", format)
		}
		return
	}
	s.presented++
	s.mu.Unlock()
	s.Publish(f.Data)
}

// Pause stops presenting frames until Resume.
func (s *Stream) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume presents frames again.
func (s *Stream) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// OnResize records the peer display extent.
func (s *Stream) OnResize(size geometry.Size) {
	s.mu.Lock()
	s.size = size
	s.mu.Unlock()
}

// Stats returns the frame counters.
func (s *Stream) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{Presented: s.presented, Dropped: s.dropped, Paused: s.paused, Size: s.size}
}

// SetMinInterval sets the minimum interval between published frames.
func (s *Stream) SetMinInterval(d time.Duration) {
	s.mu.Lock()
	s.minInterval = d
	s.mu.Unlock()
}

// Publish sends a JPEG frame to all subscribers with throttling.
func (s *Stream) Publish(jpg []byte) {
	now := time.Now()
	s.mu.Lock()
	if s.minInterval > 0 && now.Sub(s.lastPush) < s.minInterval {
		s.last = append([]byte(nil), jpg...)
		s.mu.Unlock()
		return
	}
	frame := append([]byte(nil), jpg...)
	s.last = frame
	s.lastPush = now
	for ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- frame:
		default:
		}
	}
	s.mu.Unlock()
}

// Handler serves the MJPEG multipart stream. The last frame is repeated every
// keepAlive so a paused peer does not leave the page blank after a reload.
func (s *Stream) Handler(w http.ResponseWriter, r *http.Request) {
	fl, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(boundary); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")

	ch := s.subscribe()
	defer s.unsubscribe(ch)
	keep := time.NewTicker(keepAlive)
	defer keep.Stop()

	for {
		var jpg []byte
		select {
		case <-r.Context().Done():
			return
		case jpg = <-ch:
		case <-keep.C:
			s.mu.RLock()
			jpg = s.last
			s.mu.RUnlock()
		}
		if len(jpg) == 0 {
			continue
		}
		if err := writePart(mw, jpg); err != nil {
			s.log.Debug("mjpeg: client write failed", "err", err)
			return
		}
		fl.Flush()
	}
}

// EncodeRGBToJPEG encodes RGB24 bytes into a JPEG buffer.
func EncodeRGBToJPEG(rgb []byte, w, h int, quality int) []byte {
	if quality <= 0 || quality > 100 {
		quality = 60
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	si := 0
	di := 0
	stride := img.Stride
	for y := 0; y < h; y++ {
		di = y * stride
		for x := 0; x < w; x++ {
			if si+2 >= len(rgb) {
				break
			}
			img.Pix[di+0] = rgb[si+0]
			img.Pix[di+1] = rgb[si+1]
			img.Pix[di+2] = rgb[si+2]
			img.Pix[di+3] = 255
			si += 3
			di += 4
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	return buf.Bytes()
}

// subscribe registers a new client for MJPEG frames.
func (s *Stream) subscribe() chan []byte {
	ch := make(chan []byte, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	if len(s.last) > 0 {
		ch <- append([]byte(nil), s.last...)
	}
	s.mu.Unlock()
	return ch
}

// unsubscribe removes a client subscription.
func (s *Stream) unsubscribe(ch chan []byte) {
	s.mu.Lock()
	delete(s.subs, ch)
	close(ch)
	s.mu.Unlock()
}

// writePart writes one JPEG frame as a multipart part.
func writePart(mw *multipart.Writer, jpg []byte) error {
	part, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":   {"image/jpeg"},
		"Content-Length": {strconv.Itoa(len(jpg))},
	})
	if err != nil {
		return err
	}
	_, err = part.Write(jpg)
	return err
}
