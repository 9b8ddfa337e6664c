package control

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/clock"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/gorilla/websocket"
)

const feedbackQueueSize = 16

// SampleSink receives raw pointer samples in source pixels.
type SampleSink interface {
	HandleSample(s gesture.Sample)
}

// Display is paused while the capture page is hidden.
type Display interface {
	Pause()
	Resume()
}

// Options wires a Server to the rest of the client.
type Options struct {
	// Source reports the capture surface extent in source pixels.
	Source func() geometry.Size
	// Target reports the mirrored display extent, used to place indicators.
	Target func() geometry.Size
	Clock  clock.Clock
	Logger *slog.Logger
}

// Server handles the capture page websocket. It also implements gesture.Haptics and
// gesture.Indicator by pushing feedback to the page.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	sink     SampleSink
	display  Display
	opts     Options
	log      *slog.Logger
	conn     *websocket.Conn
	out      chan Feedback
	active   map[int]struct{}
	dropped  int
}

var (
	_ gesture.Haptics   = (*Server)(nil)
	_ gesture.Indicator = (*Server)(nil)
)

// NewServer creates a capture surface server. display may be nil.
func NewServer(sink SampleSink, display Display, opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Server{
		sink:    sink,
		display: display,
		opts:    opts,
		log:     opts.Logger,
		active:  make(map[int]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and processes pointer messages.
// A new page replaces the previous one; its open contacts are cancelled.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	out := s.acceptConn(conn)
	defer s.cleanupConn(conn)
	go s.writeLoop(conn, out)

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.handleMessage(conn, msg)
	}
}

// Pulse pushes a vibration pattern to the page without blocking.
func (s *Server) Pulse(pattern []time.Duration) {
	ms := make([]int, 0, len(pattern))
	for _, d := range pattern {
		ms = append(ms, int(d/time.Millisecond))
	}
	s.push(Feedback{T: TypeHaptic, Pattern: ms})
}

// Show pushes a touch marker at target-space (x,y) without blocking.
func (s *Server) Show(x, y int, kind gesture.Kind) {
	var extent geometry.Size
	if s.opts.Target != nil {
		extent = s.opts.Target()
	}
	xn, yn := SourceToNorm(x, y, extent)
	s.push(Feedback{T: TypeIndicator, X: xn, Y: yn, Kind: string(kind)})
}

// NotifyState pushes a session state name to the page.
func (s *Server) NotifyState(state string) {
	s.push(Feedback{T: TypeState, State: state})
}

// Connected reports whether a page is attached.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Dropped returns how many feedback messages were discarded because the page was busy.
func (s *Server) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// acceptConn makes conn the active page. A previous page is closed and its open
// contacts are cancelled before conn delivers any sample.
func (s *Server) acceptConn(conn *websocket.Conn) chan Feedback {
	s.mu.Lock()
	prev := s.conn
	stale := s.detachLocked()
	s.conn = conn
	s.out = make(chan Feedback, feedbackQueueSize)
	out := s.out
	s.mu.Unlock()
	if prev != nil {
		s.log.Info("control: page replaced", "cancelled", len(stale))
		_ = prev.Close()
	}
	s.cancel(stale)
	return out
}

// cleanupConn clears conn if it is still the active page and cancels its contacts.
func (s *Server) cleanupConn(conn *websocket.Conn) {
	s.mu.Lock()
	var stale []int
	if s.conn == conn {
		stale = s.detachLocked()
	}
	s.mu.Unlock()
	_ = conn.Close()
	s.cancel(stale)
}

// detachLocked drops the active page, ending its writer, and returns its open contact ids.
// Callers hold s.mu.
func (s *Server) detachLocked() []int {
	if s.out != nil {
		close(s.out)
		s.out = nil
	}
	s.conn = nil
	stale := make([]int, 0, len(s.active))
	for id := range s.active {
		stale = append(stale, id)
	}
	s.active = make(map[int]struct{})
	return stale
}

// cancel ends each contact in ids.
func (s *Server) cancel(ids []int) {
	if len(ids) == 0 {
		return
	}
	now := s.opts.Clock.Now()
	for _, id := range ids {
		s.sink.HandleSample(gesture.Sample{ID: id, Phase: gesture.PhaseCancel, At: now})
	}
}

// writeLoop sends queued feedback until the queue is closed.
func (s *Server) writeLoop(conn *websocket.Conn, out <-chan Feedback) {
	for fb := range out {
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		if err := conn.WriteJSON(fb); err != nil {
			s.log.Debug("control: feedback write failed", "err", err)
		}
	}
}

// push queues fb for the active page, dropping it when the queue is full.
func (s *Server) push(fb Feedback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out == nil {
		return
	}
	select {
	case s.out <- fb:
	default:
		s.dropped++
	}
}

// handleMessage dispatches a single capture page message.
func (s *Server) handleMessage(conn *websocket.Conn, msg Message) {
	switch msg.T {
	case TypeDown:
		s.handlePointer(conn, msg, gesture.PhaseDown)
	case TypeMove:
		s.handlePointer(conn, msg, gesture.PhaseMove)
	case TypeUp:
		s.handlePointer(conn, msg, gesture.PhaseUp)
	case TypeCancel:
		s.handlePointer(conn, msg, gesture.PhaseCancel)
	case TypeVisibility:
		s.handleVisibility(msg)
	default:
		s.log.Debug("control: unknown message", "t", msg.T)
	}
}

// handlePointer converts a pointer message to a source-space sample.
func (s *Server) handlePointer(conn *websocket.Conn, msg Message, phase gesture.Phase) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	switch phase {
	case gesture.PhaseDown:
		s.active[msg.ID] = struct{}{}
	case gesture.PhaseUp, gesture.PhaseCancel:
		delete(s.active, msg.ID)
	}
	s.mu.Unlock()

	var source geometry.Size
	if s.opts.Source != nil {
		source = s.opts.Source()
	}
	x, y := NormToSource(msg.X, msg.Y, source)
	s.sink.HandleSample(gesture.Sample{
		ID:       msg.ID,
		Phase:    phase,
		X:        x,
		Y:        y,
		Pressure: msg.Pressure,
		At:       s.opts.Clock.Now(),
	})
}

// handleVisibility pauses the display while the page is hidden.
func (s *Server) handleVisibility(msg Message) {
	if s.display == nil || msg.Hidden == nil {
		return
	}
	if *msg.Hidden {
		s.display.Pause()
		return
	}
	s.display.Resume()
}
