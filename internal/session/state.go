// Package session owns the connection to one peer: handshake, liveness, reconnection and the inbound queue.
package session

import (
	"log/slog"
	"time"

	"github.com/frudas24/touchmirror/internal/clock"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/transport"
)

// State is the connection lifecycle state.
type State int

// Lifecycle states.
const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateDisconnected
	StateFailed
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AckMode selects when Connect considers the handshake complete.
type AckMode string

const (
	// AckReply waits for connection_ack or welcome.
	AckReply AckMode = "reply"
	// AckOpen resolves as soon as the transport opens and the request is sent.
	AckOpen AckMode = "open"
)

// Options configures a Channel.
type Options struct {
	ClientID             string
	Capabilities         []string
	Screen               geometry.Size
	ConnectTimeout       time.Duration
	PingInterval         time.Duration
	LivenessTimeout      time.Duration
	ReconnectBaseDelay   time.Duration
	MaxReconnectAttempts int
	InboxCapacity        int
	SendTimeout          time.Duration
	AckMode              AckMode
	Codec                protocol.Codec
	Clock                clock.Clock
	Logger               *slog.Logger
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{
		Capabilities:         []string{"touch", "gestures", "video"},
		ConnectTimeout:       10 * time.Second,
		PingInterval:         time.Second,
		LivenessTimeout:      5 * time.Second,
		ReconnectBaseDelay:   time.Second,
		MaxReconnectAttempts: 5,
		InboxCapacity:        50,
		SendTimeout:          250 * time.Millisecond,
		AckMode:              AckReply,
		Codec:                protocol.JSON,
	}
}

// normalized fills zero fields with defaults.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Capabilities == nil {
		o.Capabilities = d.Capabilities
	}
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = d.ConnectTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = d.LivenessTimeout
	}
	if o.ReconnectBaseDelay <= 0 {
		o.ReconnectBaseDelay = d.ReconnectBaseDelay
	}
	if o.MaxReconnectAttempts < 0 {
		o.MaxReconnectAttempts = 0
	}
	if o.InboxCapacity <= 0 {
		o.InboxCapacity = d.InboxCapacity
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = d.SendTimeout
	}
	if o.AckMode != AckOpen {
		o.AckMode = AckReply
	}
	if o.Codec == nil {
		o.Codec = d.Codec
	}
	if o.Clock == nil {
		o.Clock = clock.Real()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Observer receives lifecycle notifications. Calls may arrive from any goroutine.
type Observer interface {
	OnStateChange(State)
	OnLatency(time.Duration)
	OnError(error)
	OnFrame(transport.Frame)
}

// Handler consumes decoded inbound envelopes one at a time.
type Handler interface {
	HandleMessage(protocol.Message)
}

// Snapshot is a read-only view of the channel.
type Snapshot struct {
	State     State            `json:"state"`
	Address   string           `json:"address,omitempty"`
	Port      int              `json:"port,omitempty"`
	ClientID  string           `json:"clientId"`
	SessionID string           `json:"sessionId,omitempty"`
	Attempts  int              `json:"attempts"`
	Quality   protocol.Quality `json:"quality,omitempty"`
	RTT       time.Duration    `json:"rttNs"`
	Dropped   int              `json:"inboxDropped"`
	LastError string           `json:"lastError,omitempty"`
}

type nopObserver struct{}

// OnStateChange discards the notification.
func (nopObserver) OnStateChange(State) {}

// OnLatency discards the notification.
func (nopObserver) OnLatency(time.Duration) {}

// OnError discards the notification.
func (nopObserver) OnError(error) {}

// OnFrame discards the frame.
func (nopObserver) OnFrame(transport.Frame) {}
