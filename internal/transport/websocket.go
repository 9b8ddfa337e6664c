package transport

import (
	"context"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/gorilla/websocket"
)

// DefaultPath is the websocket path used when none is configured.
const DefaultPath = "/ws"

// WebSocketDialer connects to ws://address:port/path.
type WebSocketDialer struct {
	Path             string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dial opens a websocket connection.
func (d WebSocketDialer) Dial(ctx context.Context, address string, port int) (Conn, error) {
	u := peerURL(address, port, d.Path, DefaultPath)
	dialer := websocket.Dialer{
		HandshakeTimeout: d.HandshakeTimeout,
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
	conn, _, err := dialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, dialFault(ctx, "dial", err)
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("transport: websocket open", "url", u)
	return NewWebSocketConn(conn), nil
}

// WebSocketConn adapts a gorilla websocket to Conn. JPEG binary messages become frames.
type WebSocketConn struct {
	conn      *websocket.Conn
	writeSem  chan struct{}
	frames    chan Frame
	closeOnce sync.Once
	closeErr  error
}

var _ Conn = (*WebSocketConn)(nil)

// NewWebSocketConn wraps an established websocket.
func NewWebSocketConn(conn *websocket.Conn) *WebSocketConn {
	return &WebSocketConn{conn: conn, writeSem: make(chan struct{}, 1), frames: make(chan Frame, 4)}
}

// Write sends one envelope as a text or binary message. Waiting for a concurrent write
// counts against ctx.
func (c *WebSocketConn) Write(ctx context.Context, m Message) error {
	select {
	case c.writeSem <- struct{}{}:
	case <-ctx.Done():
		return fault.Wrap(fault.KindTransport, "write", ctx.Err())
	}
	defer func() { <-c.writeSem }()
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	_ = c.conn.SetWriteDeadline(deadline)
	kind := websocket.TextMessage
	if m.Binary {
		kind = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(kind, m.Data); err != nil {
		return fault.Wrap(fault.KindTransport, "write", err)
	}
	return nil
}

// Read returns the next envelope, diverting JPEG frames to Frames.
func (c *WebSocketConn) Read(ctx context.Context) (Message, error) {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return Message{}, ctx.Err()
			}
			return Message{}, fault.Wrap(fault.KindTransport, "read", err)
		}
		if kind == websocket.BinaryMessage && isJPEG(data) {
			pushFrame(c.frames, Frame{Data: data, Format: FormatJPEG, At: time.Now()})
			continue
		}
		return Message{Data: data, Binary: kind == websocket.BinaryMessage}, nil
	}
}

// Frames delivers JPEG frames seen by Read.
func (c *WebSocketConn) Frames() <-chan Frame {
	return c.frames
}

// Close sends a normal close frame and closes the socket.
func (c *WebSocketConn) Close() error {
	c.closeOnce.Do(func() {
		c.writeSem <- struct{}{}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		<-c.writeSem
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// peerURL builds ws://address:port/path.
func peerURL(address string, port int, path, fallback string) string {
	if path == "" {
		path = fallback
	}
	u := url.URL{Scheme: "ws", Host: net.JoinHostPort(address, strconv.Itoa(port)), Path: path}
	return u.String()
}
