// Package control serves the browser capture surface: pointer samples in, feedback out.
package control

// Inbound message kinds sent by the capture page.
const (
	TypeDown       = "down"
	TypeMove       = "move"
	TypeUp         = "up"
	TypeCancel     = "cancel"
	TypeVisibility = "visibility"
)

// Outbound message kinds pushed to the capture page.
const (
	TypeHaptic    = "haptic"
	TypeIndicator = "indicator"
	TypeState     = "state"
)

// Message is an inbound capture surface payload. X and Y are normalized to the surface.
type Message struct {
	T        string  `json:"t"`
	ID       int     `json:"id,omitempty"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Pressure float64 `json:"pressure,omitempty"`
	Hidden   *bool   `json:"hidden,omitempty"`
}

// Feedback is an outbound payload. Indicator positions are normalized to the mirrored display.
type Feedback struct {
	T       string  `json:"t"`
	Pattern []int   `json:"pattern,omitempty"`
	X       float64 `json:"x,omitempty"`
	Y       float64 `json:"y,omitempty"`
	Kind    string  `json:"kind,omitempty"`
	State   string  `json:"state,omitempty"`
}
