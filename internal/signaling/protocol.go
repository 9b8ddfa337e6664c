// Package signaling exchanges WebRTC session descriptions and ICE candidates over a websocket.
package signaling

import "github.com/pion/webrtc/v3"

// Signaling message kinds.
const (
	TypeOffer  = "offer"
	TypeAnswer = "answer"
	TypeICE    = "ice"
	TypeError  = "error"
)

// Path is the HTTP path the peer serves signaling on.
const Path = "/signaling"

// Message is a websocket signaling payload.
type Message struct {
	T         string                   `json:"t"`
	SDP       string                   `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit `json:"candidate,omitempty"`
	Error     string                   `json:"error,omitempty"`
}
