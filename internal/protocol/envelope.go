// Package protocol defines the envelopes exchanged with the peer and their codecs.
package protocol

import (
	"time"

	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
)

// Type is the envelope discriminator carried in the "type" field.
type Type string

// Envelope types.
const (
	TypeTouch             Type = "touch"
	TypeConnectionRequest Type = "connection_request"
	TypeConnectionAck     Type = "connection_ack"
	TypeWelcome           Type = "welcome"
	TypePing              Type = "ping"
	TypePong              Type = "pong"
	TypeResize            Type = "resize"
	TypeGeometryUpdate    Type = "geometry-update"
	TypeQualityChange     Type = "quality_change"
	TypeStatus            Type = "status"
	TypeError             Type = "error"
)

// Message is any decoded or outbound envelope.
type Message interface {
	MessageType() Type
}

// Resolution is a display extent on the wire.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Size converts the resolution to a geometry size.
func (r Resolution) Size() geometry.Size {
	return geometry.Size{W: r.Width, H: r.Height}
}

// ResolutionOf converts a geometry size to its wire form.
func ResolutionOf(s geometry.Size) Resolution {
	return Resolution{Width: s.W, Height: s.H}
}

// GestureDetail carries the extra fields of swipe and pinch touches.
type GestureDetail struct {
	Direction string  `json:"direction,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Distance  float64 `json:"distance,omitempty"`
}

// Touch is an outbound gesture in target pixels.
type Touch struct {
	Type      Type           `json:"type"`
	Action    string         `json:"action"`
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Pressure  float64        `json:"pressure"`
	Timestamp int64          `json:"timestamp"`
	Gesture   *GestureDetail `json:"gesture,omitempty"`
}

// ConnectionRequest opens a session.
type ConnectionRequest struct {
	Type             Type       `json:"type"`
	ClientID         string     `json:"client_id"`
	Capabilities     []string   `json:"capabilities"`
	ScreenResolution Resolution `json:"screen_resolution"`
	Timestamp        int64      `json:"timestamp"`
}

// ConnectionAck accepts a session, optionally announcing the peer display.
type ConnectionAck struct {
	Type             Type        `json:"type"`
	SessionID        string      `json:"session_id,omitempty"`
	ScreenResolution *Resolution `json:"screen_resolution,omitempty"`
}

// Welcome is the ack variant sent by mobile peers.
type Welcome struct {
	Type         Type `json:"type"`
	ScreenWidth  int  `json:"screenWidth"`
	ScreenHeight int  `json:"screenHeight"`
}

// Ping probes liveness. Timestamp is milliseconds since the epoch.
type Ping struct {
	Type      Type  `json:"type"`
	Timestamp int64 `json:"timestamp"`
}

// Pong echoes a ping timestamp verbatim.
type Pong struct {
	Type      Type  `json:"type"`
	Timestamp int64 `json:"timestamp"`
}

// Resize announces a new peer display extent. Type is resize or geometry-update.
type Resize struct {
	Type   Type `json:"type"`
	Width  int  `json:"width"`
	Height int  `json:"height"`
}

// QualityChange asks the peer to switch video presets.
type QualityChange struct {
	Type    Type    `json:"type"`
	Quality Quality `json:"quality"`
}

// Status is an informational peer notice.
type Status struct {
	Type    Type   `json:"type"`
	State   string `json:"state"`
	Message string `json:"message,omitempty"`
}

// Error is an application error reported by either side.
type Error struct {
	Type    Type   `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Unknown is an envelope with an unrecognized type. It is not an error.
type Unknown struct {
	Type Type
	Raw  []byte
}

// MessageType implements Message.
func (Touch) MessageType() Type { return TypeTouch }

// MessageType implements Message.
func (ConnectionRequest) MessageType() Type { return TypeConnectionRequest }

// MessageType implements Message.
func (ConnectionAck) MessageType() Type { return TypeConnectionAck }

// MessageType implements Message.
func (Welcome) MessageType() Type { return TypeWelcome }

// MessageType implements Message.
func (Ping) MessageType() Type { return TypePing }

// MessageType implements Message.
func (Pong) MessageType() Type { return TypePong }

// MessageType implements Message.
func (QualityChange) MessageType() Type { return TypeQualityChange }

// MessageType implements Message.
func (Status) MessageType() Type { return TypeStatus }

// MessageType implements Message.
func (Error) MessageType() Type { return TypeError }

// MessageType returns the raw type string.
func (u Unknown) MessageType() Type { return u.Type }

// MessageType returns resize unless the envelope was a geometry-update.
func (r Resize) MessageType() Type {
	if r.Type == TypeGeometryUpdate {
		return TypeGeometryUpdate
	}
	return TypeResize
}

// TouchFromEvent builds the outbound envelope for a classified gesture.
func TouchFromEvent(ev gesture.Event) Touch {
	t := Touch{
		Type:      TypeTouch,
		Action:    string(ev.Kind),
		X:         ev.X,
		Y:         ev.Y,
		Pressure:  ev.Pressure,
		Timestamp: Millis(ev.At),
	}
	switch ev.Kind {
	case gesture.KindSwipe:
		t.Gesture = &GestureDetail{Direction: string(ev.Direction), Distance: ev.Distance}
	case gesture.KindPinchStart, gesture.KindPinchMove, gesture.KindPinchEnd:
		t.Gesture = &GestureDetail{Scale: ev.Scale, Distance: ev.Distance}
	}
	return t
}

// NewConnectionRequest builds the handshake envelope.
func NewConnectionRequest(clientID string, caps []string, screen geometry.Size, at time.Time) ConnectionRequest {
	if caps == nil {
		caps = []string{}
	}
	return ConnectionRequest{
		Type:             TypeConnectionRequest,
		ClientID:         clientID,
		Capabilities:     caps,
		ScreenResolution: ResolutionOf(screen),
		Timestamp:        Millis(at),
	}
}

// NewPing stamps a ping with at.
func NewPing(at time.Time) Ping {
	return Ping{Type: TypePing, Timestamp: Millis(at)}
}

// NewPong echoes ts.
func NewPong(ts int64) Pong {
	return Pong{Type: TypePong, Timestamp: ts}
}

// NewQualityChange builds a quality request.
func NewQualityChange(q Quality) QualityChange {
	return QualityChange{Type: TypeQualityChange, Quality: q}
}

// Geometry extracts a peer display extent from envelopes that carry one. The extent is
// returned as sent; callers validate it.
func Geometry(msg Message) (geometry.Size, bool) {
	var s geometry.Size
	switch m := msg.(type) {
	case ConnectionAck:
		if m.ScreenResolution == nil {
			return s, false
		}
		s = m.ScreenResolution.Size()
	case Welcome:
		s = geometry.Size{W: m.ScreenWidth, H: m.ScreenHeight}
	case Resize:
		s = geometry.Size{W: m.Width, H: m.Height}
	default:
		return s, false
	}
	return s, true
}

// IsAck reports whether msg completes the handshake.
func IsAck(msg Message) bool {
	switch msg.(type) {
	case ConnectionAck, Welcome:
		return true
	default:
		return false
	}
}

// Millis converts t to milliseconds since the epoch.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
