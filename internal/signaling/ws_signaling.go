package signaling

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	pub "github.com/frudas24/touchmirror/internal/webrtc"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

const (
	writeTimeout = 5 * time.Second
	closeTimeout = time.Second
)

// ErrViewerActive is reported to a viewer refused under ViewerReject.
var ErrViewerActive = errors.New("viewer already connected")

// ViewerPolicy controls how additional viewers are handled.
type ViewerPolicy int

const (
	// ViewerReject rejects new connections when one is active.
	ViewerReject ViewerPolicy = iota
	// ViewerReplace closes the active connection when a new one arrives.
	ViewerReplace
)

// ChannelHandler serves the touch data channel a client opens on the peer connection.
type ChannelHandler func(dc *webrtc.DataChannel)

// Server answers client offers with a publisher peer connection, one viewer at a time.
type Server struct {
	mu        sync.Mutex
	active    *viewer
	upgrader  websocket.Upgrader
	publisher *pub.Publisher
	policy    ViewerPolicy
	onChannel ChannelHandler
	log       *slog.Logger
}

// viewer is one signaling websocket and the peer connection negotiated over it.
type viewer struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	pc      *webrtc.PeerConnection
}

// NewServer creates a signaling server. onChannel may be nil.
func NewServer(publisher *pub.Publisher, policy ViewerPolicy, onChannel ChannelHandler, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		publisher: publisher,
		policy:    policy,
		onChannel: onChannel,
		log:       log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and negotiates with one viewer until it leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	v := &viewer{ws: ws}
	if err := s.claim(v); err != nil {
		v.refuse(err.Error())
		return
	}
	defer s.release(v)

	pc, err := s.publisher.Connect()
	if err != nil {
		s.fail(v, err)
		return
	}
	v.pc = pc
	s.watch(v)

	for {
		var msg Message
		if err := ws.ReadJSON(&msg); err != nil {
			return
		}
		if err := s.dispatch(v, msg); err != nil {
			s.fail(v, err)
			return
		}
	}
}

// claim makes v the active viewer according to the policy.
func (s *Server) claim(v *viewer) error {
	s.mu.Lock()
	prev := s.active
	if prev != nil && s.policy != ViewerReplace {
		s.mu.Unlock()
		return ErrViewerActive
	}
	s.active = v
	s.mu.Unlock()
	if prev != nil {
		s.log.Info("signaling: replacing viewer")
		_ = prev.ws.Close()
	}
	return nil
}

// release drops v and its peer connection.
func (s *Server) release(v *viewer) {
	s.mu.Lock()
	if s.active == v {
		s.active = nil
	}
	s.mu.Unlock()
	if v.pc != nil {
		s.publisher.Disconnect(v.pc)
	}
	_ = v.ws.Close()
}

// current reports whether v is still the active viewer.
func (s *Server) current(v *viewer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active == v
}

// watch installs the peer connection callbacks for v.
func (s *Server) watch(v *viewer) {
	v.pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || !s.current(v) {
			return
		}
		cand := c.ToJSON()
		_ = v.send(Message{T: TypeICE, Candidate: &cand})
	})
	v.pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if dc.Label() != pub.TouchChannelLabel {
			s.log.Debug("signaling: ignoring data channel", "label", dc.Label())
			return
		}
		if s.onChannel != nil {
			s.onChannel(dc)
		}
	})
	v.pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		s.log.Debug("signaling: peer state", "state", state.String())
	})
}

// dispatch handles one message from v.
func (s *Server) dispatch(v *viewer, msg Message) error {
	switch msg.T {
	case TypeOffer:
		answer, err := answerOffer(v.pc, msg.SDP)
		if err != nil {
			return err
		}
		return v.send(Message{T: TypeAnswer, SDP: answer})
	case TypeICE:
		if msg.Candidate == nil {
			return nil
		}
		return v.pc.AddICECandidate(*msg.Candidate)
	case TypeError:
		s.log.Warn("signaling: viewer error", "error", msg.Error)
	}
	return nil
}

// fail logs err and reports it to v.
func (s *Server) fail(v *viewer, err error) {
	s.log.Warn("signaling: negotiation failed", "err", err)
	_ = v.send(Message{T: TypeError, Error: err.Error()})
}

// answerOffer applies a remote offer and returns the gathered answer SDP.
func answerOffer(pc *webrtc.PeerConnection, sdp string) (string, error) {
	if sdp == "" {
		return "", errors.New("empty offer")
	}
	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return "", fmt.Errorf("remote description: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return "", fmt.Errorf("answer: %w", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return "", fmt.Errorf("local description: %w", err)
	}
	<-gathered
	local := pc.LocalDescription()
	if local == nil {
		return "", errors.New("missing local description")
	}
	return local.SDP, nil
}

// send writes msg to the viewer.
func (v *viewer) send(msg Message) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	_ = v.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return v.ws.WriteJSON(msg)
}

// refuse tells the viewer why it was turned away and closes the socket.
func (v *viewer) refuse(reason string) {
	_ = v.send(Message{T: TypeError, Error: reason})
	v.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = v.ws.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(closeTimeout))
	v.writeMu.Unlock()
	_ = v.ws.Close()
}
