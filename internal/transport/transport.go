// Package transport carries envelopes and display frames between the client and a peer.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Kind selects a transport implementation.
type Kind string

// Supported transports.
const (
	KindWebSocket Kind = "websocket"
	KindWebRTC    Kind = "webrtc"
)

// Message is one envelope payload as it travels on the wire.
type Message struct {
	Data   []byte
	Binary bool
}

// Frame is an opaque display frame received from the peer.
type Frame struct {
	Data      []byte
	Format    string
	Timestamp uint32
	At        time.Time
}

// Frame formats.
const (
	FormatJPEG = "jpeg"
	FormatH264 = "h264"
)

// Conn is an open, bidirectional connection to a peer.
type Conn interface {
	// Write sends one envelope. Safe for concurrent use.
	Write(ctx context.Context, m Message) error
	// Read blocks for the next envelope. Only one reader at a time.
	Read(ctx context.Context) (Message, error)
	// Frames delivers display frames. Frames are dropped when the receiver falls behind.
	Frames() <-chan Frame
	// Close releases the connection. Safe to call more than once.
	Close() error
}

// Dialer opens connections to a peer address.
type Dialer interface {
	Dial(ctx context.Context, address string, port int) (Conn, error)
}

// ErrClosed is returned by operations on a closed connection.
var ErrClosed = errors.New("transport: connection closed")

// IsExpectedClose reports whether err is a normal shutdown rather than a failure.
func IsExpectedClose(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return true
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}

// pushFrame offers f to ch without blocking, discarding the oldest queued frame when full.
func pushFrame(ch chan Frame, f Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// isJPEG reports whether data starts with a JPEG start-of-image marker.
func isJPEG(data []byte) bool {
	return len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8
}
