package peer

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/frudas24/touchmirror/internal/discovery"
	"github.com/frudas24/touchmirror/internal/monitor"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/frudas24/touchmirror/internal/wininput"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

const sendQueueSize = 8

// Options configures a Server.
type Options struct {
	// Name is announced at the discovery endpoint.
	Name string
	// ID identifies this peer; a random one is generated when empty.
	ID string
	// Welcome answers handshakes with the mobile welcome envelope instead of connection_ack.
	Welcome bool
	// Quality is the preset active at startup. Defaults to medium.
	Quality protocol.Quality
	// OnQuality applies a requested preset. Nil accepts every valid quality.
	OnQuality func(protocol.Quality) error
	Logger    *slog.Logger
}

// Server accepts client sessions over websocket and WebRTC data channels.
type Server struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	injector wininput.Injector
	screen   monitor.Monitor
	quality  protocol.Quality
	opts     Options
	log      *slog.Logger
	sessions map[*session]struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

// SessionInfo describes a connected session.
type SessionInfo struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id,omitempty"`
	Video    bool   `json:"video"`
}

// session is one connected client.
type session struct {
	id       string
	conn     transport.Conn
	video    bool
	out      chan transport.Message
	planner  *Planner
	mu       sync.Mutex
	clientID string
	codec    protocol.Codec
	acked    bool
}

// NewServer creates a peer server injecting touches through injector onto screen.
func NewServer(injector wininput.Injector, screen monitor.Monitor, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if !opts.Quality.Valid() {
		opts.Quality = protocol.QualityMedium
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		injector: injector,
		screen:   screen,
		quality:  opts.Quality,
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[*session]struct{}),
		ctx:      ctx,
		cancel:   cancel,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and serves one websocket session. JPEG frames are
// published to websocket sessions.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.serve(r.Context(), transport.NewWebSocketConn(ws), true)
}

// ServeDataChannel serves a session on a touch data channel. Video travels on the media track.
func (s *Server) ServeDataChannel(dc *webrtc.DataChannel) {
	go s.serve(s.ctx, newDataChannelConn(dc), false)
}

// HandleDiscovery answers discovery probes.
func (s *Server) HandleDiscovery(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	info := discovery.Info{ID: s.opts.ID, Name: s.opts.Name, Width: s.screen.W, Height: s.screen.H}
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(info)
}

// Publish offers a JPEG frame to every acknowledged websocket session, dropping it for busy ones.
func (s *Server) Publish(jpg []byte) {
	if len(jpg) == 0 {
		return
	}
	msg := transport.Message{Data: jpg, Binary: true}
	for _, sess := range s.snapshot() {
		if !sess.video || !sess.isAcked() {
			continue
		}
		sess.offer(msg)
	}
}

// SetScreen switches the injected screen and announces its size to every session.
func (s *Server) SetScreen(m monitor.Monitor) {
	s.mu.Lock()
	s.screen = m
	s.mu.Unlock()
	for _, sess := range s.snapshot() {
		sess.mu.Lock()
		sess.planner.SetScreen(m.Rect())
		sess.mu.Unlock()
		s.send(sess, protocol.Resize{Type: protocol.TypeResize, Width: m.W, Height: m.H})
	}
	s.log.Info("peer: screen changed", "w", m.W, "h", m.H)
}

// Quality returns the active quality preset.
func (s *Server) Quality() protocol.Quality {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quality
}

// Sessions lists connected sessions.
func (s *Server) Sessions() []SessionInfo {
	list := s.snapshot()
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		sess.mu.Lock()
		out = append(out, SessionInfo{ID: sess.id, ClientID: sess.clientID, Video: sess.video})
		sess.mu.Unlock()
	}
	return out
}

// Close ends every session.
func (s *Server) Close() {
	s.cancel()
	for _, sess := range s.snapshot() {
		_ = sess.conn.Close()
	}
}

// serve runs the read loop of one session until the connection ends.
func (s *Server) serve(ctx context.Context, conn transport.Conn, video bool) {
	s.mu.Lock()
	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		video:   video,
		out:     make(chan transport.Message, sendQueueSize),
		planner: NewPlanner(s.screen.Rect()),
		codec:   protocol.JSON,
	}
	s.sessions[sess] = struct{}{}
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		cancel()
		s.drop(sess)
	}()
	go s.writeLoop(ctx, sess)

	s.log.Info("peer: session open", "session", sess.id, "video", video)
	for {
		m, err := conn.Read(ctx)
		if err != nil {
			if !transport.IsExpectedClose(err) {
				s.log.Warn("peer: session read failed", "session", sess.id, "err", err)
			}
			return
		}
		codec := protocol.JSON
		if m.Binary {
			codec = protocol.CBOR
		}
		sess.mu.Lock()
		sess.codec = codec
		sess.mu.Unlock()
		msg, err := protocol.Decode(codec, m.Data)
		if err != nil {
			s.log.Debug("peer: malformed envelope", "session", sess.id, "err", err)
			continue
		}
		s.handle(sess, msg)
	}
}

// writeLoop drains the session send queue onto the connection.
func (s *Server) writeLoop(ctx context.Context, sess *session) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sess.out:
			if err := sess.conn.Write(ctx, m); err != nil {
				if !transport.IsExpectedClose(err) {
					s.log.Debug("peer: write failed", "session", sess.id, "err", err)
				}
				return
			}
		}
	}
}

// handle dispatches one decoded envelope.
func (s *Server) handle(sess *session, msg protocol.Message) {
	switch m := msg.(type) {
	case protocol.ConnectionRequest:
		s.handshake(sess, m)
	case protocol.Ping:
		s.send(sess, protocol.NewPong(m.Timestamp))
	case protocol.Pong:
	case protocol.Touch:
		s.handleTouch(sess, m)
	case protocol.QualityChange:
		s.handleQuality(sess, m.Quality)
	case protocol.Unknown:
		s.send(sess, protocol.Error{Code: "unsupported", Message: "unknown envelope " + string(m.Type)})
	default:
		s.log.Debug("peer: ignoring envelope", "session", sess.id, "type", msg.MessageType())
	}
}

// handshake records the client and answers with an ack carrying the screen size.
func (s *Server) handshake(sess *session, req protocol.ConnectionRequest) {
	s.mu.Lock()
	screen := s.screen
	s.mu.Unlock()
	sess.mu.Lock()
	sess.clientID = req.ClientID
	sess.acked = true
	sess.mu.Unlock()
	s.log.Info("peer: handshake", "session", sess.id, "client", req.ClientID)
	if s.opts.Welcome {
		s.send(sess, protocol.Welcome{ScreenWidth: screen.W, ScreenHeight: screen.H})
		return
	}
	res := protocol.ResolutionOf(screen.Size())
	s.send(sess, protocol.ConnectionAck{SessionID: sess.id, ScreenResolution: &res})
}

// handleTouch plans and injects one touch envelope.
func (s *Server) handleTouch(sess *session, t protocol.Touch) {
	sess.mu.Lock()
	actions := sess.planner.Plan(t)
	sess.mu.Unlock()
	if len(actions) == 0 {
		s.log.Debug("peer: touch ignored", "session", sess.id, "action", t.Action)
		return
	}
	if err := Apply(s.injector, actions); err != nil {
		s.log.Warn("peer: inject failed", "session", sess.id, "action", t.Action, "err", err)
	}
}

// handleQuality applies a preset change and reports the outcome to the requester.
func (s *Server) handleQuality(sess *session, q protocol.Quality) {
	if !q.Valid() {
		s.send(sess, protocol.Error{Code: "quality", Message: "unknown quality " + string(q)})
		return
	}
	if s.opts.OnQuality != nil {
		if err := s.opts.OnQuality(q); err != nil {
			s.log.Warn("peer: quality change failed", "quality", q, "err", err)
			s.send(sess, protocol.Error{Code: "quality", Message: err.Error()})
			return
		}
	}
	s.mu.Lock()
	s.quality = q
	s.mu.Unlock()
	s.send(sess, protocol.Status{State: "quality", Message: string(q)})
}

// send encodes msg with the session codec and queues it.
func (s *Server) send(sess *session, msg protocol.Message) {
	sess.mu.Lock()
	codec := sess.codec
	sess.mu.Unlock()
	data, err := protocol.Encode(codec, msg)
	if err != nil {
		s.log.Warn("peer: encode failed", "type", msg.MessageType(), "err", err)
		return
	}
	if !sess.offer(transport.Message{Data: data, Binary: codec.Binary()}) {
		s.log.Debug("peer: send queue full", "session", sess.id, "type", msg.MessageType())
	}
}

// drop removes a finished session and releases any held button.
func (s *Server) drop(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess)
	s.mu.Unlock()
	sess.mu.Lock()
	release := sess.planner.Release()
	sess.mu.Unlock()
	if err := Apply(s.injector, release); err != nil {
		s.log.Warn("peer: release failed", "session", sess.id, "err", err)
	}
	_ = sess.conn.Close()
	s.log.Info("peer: session closed", "session", sess.id)
}

// snapshot copies the session set.
func (s *Server) snapshot() []*session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*session, 0, len(s.sessions))
	for sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// offer queues m without blocking and reports whether it was accepted.
func (sess *session) offer(m transport.Message) bool {
	select {
	case sess.out <- m:
		return true
	default:
		return false
	}
}

// isAcked reports whether the handshake completed.
func (sess *session) isAcked() bool {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.acked
}
