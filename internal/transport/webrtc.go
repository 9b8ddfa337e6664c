package transport

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/signaling"
	rtc "github.com/frudas24/touchmirror/internal/webrtc"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
)

// WebRTCDialer negotiates a peer connection over the peer's signaling websocket.
// Envelopes travel on the touch data channel; the peer's video track becomes frames.
type WebRTCDialer struct {
	SignalingPath    string
	STUNServers      []string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dial signals an offer and waits until the touch data channel opens.
func (d WebRTCDialer) Dial(ctx context.Context, address string, port int) (Conn, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	sigURL := peerURL(address, port, d.SignalingPath, signaling.Path)
	dialer := websocket.Dialer{HandshakeTimeout: d.HandshakeTimeout}
	sig, _, err := dialer.DialContext(ctx, sigURL, nil)
	if err != nil {
		return nil, dialFault(ctx, "signaling", err)
	}

	api, err := rtc.NewAPI()
	if err != nil {
		_ = sig.Close()
		return nil, fault.Wrap(fault.KindTransport, "webrtc api", err)
	}
	pc, err := api.NewPeerConnection(rtc.Configuration(d.STUNServers))
	if err != nil {
		_ = sig.Close()
		return nil, fault.Wrap(fault.KindTransport, "peer connection", err)
	}

	c := &rtcConn{
		pc:     pc,
		sig:    sig,
		inbox:  make(chan Message, 64),
		frames: make(chan Frame, 4),
		done:   make(chan struct{}),
		logger: logger,
	}
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		c.closeWith(err)
		return nil, fault.Wrap(fault.KindTransport, "transceiver", err)
	}
	dc, err := pc.CreateDataChannel(rtc.TouchChannelLabel, rtc.TouchChannelInit())
	if err != nil {
		c.closeWith(err)
		return nil, fault.Wrap(fault.KindTransport, "data channel", err)
	}
	c.dc = dc

	opened := make(chan struct{})
	var openOnce sync.Once
	dc.OnOpen(func() { openOnce.Do(func() { close(opened) }) })
	dc.OnClose(func() { c.closeWith(ErrClosed) })
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		pushMessage(c.inbox, Message{Data: msg.Data, Binary: !msg.IsString})
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go c.readTrack(track)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logger.Debug("transport: webrtc state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed:
			c.closeWith(fault.New(fault.KindTransport, "webrtc", "ice failed"))
		case webrtc.PeerConnectionStateClosed:
			c.closeWith(ErrClosed)
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		c.closeWith(err)
		return nil, fault.Wrap(fault.KindTransport, "offer", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		c.closeWith(err)
		return nil, fault.Wrap(fault.KindTransport, "offer", err)
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		c.closeWith(ctx.Err())
		return nil, dialFault(ctx, "ice gathering", ctx.Err())
	}
	local := pc.LocalDescription()
	if local == nil {
		c.closeWith(ErrClosed)
		return nil, fault.New(fault.KindTransport, "offer", "missing local description")
	}
	if err := c.signal(signaling.Message{T: signaling.TypeOffer, SDP: local.SDP}); err != nil {
		c.closeWith(err)
		return nil, fault.Wrap(fault.KindTransport, "signaling", err)
	}
	go c.signalLoop()

	select {
	case <-opened:
		logger.Debug("transport: webrtc data channel open", "url", sigURL)
		return c, nil
	case <-c.done:
		return nil, fault.Wrap(fault.KindTransport, "dial", c.cause())
	case <-ctx.Done():
		c.closeWith(ctx.Err())
		return nil, dialFault(ctx, "dial", ctx.Err())
	}
}

// rtcConn carries envelopes on the touch data channel and frames from the video track.
type rtcConn struct {
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel
	sig    *websocket.Conn
	sigMu  sync.Mutex
	inbox  chan Message
	frames chan Frame
	logger *slog.Logger

	candMu    sync.Mutex
	remoteSet bool
	pending   []webrtc.ICECandidateInit

	done      chan struct{}
	closeOnce sync.Once
	errMu     sync.Mutex
	err       error
}

var _ Conn = (*rtcConn)(nil)

// Write sends an envelope on the data channel.
func (c *rtcConn) Write(ctx context.Context, m Message) error {
	select {
	case <-c.done:
		return fault.Wrap(fault.KindTransport, "write", c.cause())
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	var err error
	if m.Binary {
		err = c.dc.Send(m.Data)
	} else {
		err = c.dc.SendText(string(m.Data))
	}
	return fault.Wrap(fault.KindTransport, "write", err)
}

// Read returns the next data channel message.
func (c *rtcConn) Read(ctx context.Context) (Message, error) {
	select {
	case m := <-c.inbox:
		return m, nil
	default:
	}
	select {
	case m := <-c.inbox:
		return m, nil
	case <-c.done:
		return Message{}, fault.Wrap(fault.KindTransport, "read", c.cause())
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Frames delivers assembled video frames.
func (c *rtcConn) Frames() <-chan Frame {
	return c.frames
}

// Close tears down the data channel, peer connection and signaling socket.
func (c *rtcConn) Close() error {
	c.closeWith(ErrClosed)
	return nil
}

// closeWith records the first failure and releases every resource once.
func (c *rtcConn) closeWith(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
		if c.dc != nil {
			_ = c.dc.Close()
		}
		_ = c.pc.Close()
		_ = c.sig.Close()
	})
}

// cause returns the recorded close reason.
func (c *rtcConn) cause() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

// signal writes one signaling message.
func (c *rtcConn) signal(msg signaling.Message) error {
	c.sigMu.Lock()
	defer c.sigMu.Unlock()
	_ = c.sig.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.sig.WriteJSON(msg)
}

// signalLoop applies the answer and remote candidates until the signaling socket closes.
func (c *rtcConn) signalLoop() {
	for {
		var msg signaling.Message
		if err := c.sig.ReadJSON(&msg); err != nil {
			c.closeWith(err)
			return
		}
		switch msg.T {
		case signaling.TypeAnswer:
			if err := c.applyAnswer(msg.SDP); err != nil {
				c.closeWith(fault.Wrap(fault.KindTransport, "answer", err))
				return
			}
		case signaling.TypeICE:
			if msg.Candidate != nil {
				c.addCandidate(*msg.Candidate)
			}
		case signaling.TypeError:
			c.closeWith(fault.New(fault.KindPeer, "signaling", msg.Error))
			return
		}
	}
}

// applyAnswer sets the remote description and flushes buffered candidates.
func (c *rtcConn) applyAnswer(sdp string) error {
	if err := c.pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}); err != nil {
		return err
	}
	c.candMu.Lock()
	c.remoteSet = true
	pending := c.pending
	c.pending = nil
	c.candMu.Unlock()
	for _, cand := range pending {
		if err := c.pc.AddICECandidate(cand); err != nil {
			c.logger.Debug("transport: add candidate", "err", err)
		}
	}
	return nil
}

// addCandidate adds a remote candidate, buffering it until the answer arrives.
func (c *rtcConn) addCandidate(cand webrtc.ICECandidateInit) {
	c.candMu.Lock()
	if !c.remoteSet {
		c.pending = append(c.pending, cand)
		c.candMu.Unlock()
		return
	}
	c.candMu.Unlock()
	if err := c.pc.AddICECandidate(cand); err != nil {
		c.logger.Debug("transport: add candidate", "err", err)
	}
}

// readTrack assembles RTP packets from the peer's video track into frames.
func (c *rtcConn) readTrack(track *webrtc.TrackRemote) {
	format := strings.ToLower(strings.TrimPrefix(track.Codec().MimeType, "video/"))
	asm := NewFrameAssembler(format)
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		if f, ok := asm.Push(pkt); ok {
			pushFrame(c.frames, f)
		}
	}
}

// pushMessage queues m without blocking, discarding the oldest message when full.
func pushMessage(ch chan Message, m Message) {
	select {
	case ch <- m:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- m:
	default:
	}
}

// dialFault tags a dial failure, marking context expiry as a timeout.
func dialFault(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return &fault.Error{Kind: fault.KindTransport, Op: op, Detail: "timeout", Err: err}
	}
	return fault.Wrap(fault.KindTransport, op, err)
}
