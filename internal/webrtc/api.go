// Package webrtc provides the WebRTC media plumbing shared by the client transport and the peer publisher.
package webrtc

import (
	"fmt"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
)

// DefaultSTUNServers are used when no ICE servers are configured.
var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// TouchChannelLabel names the data channel that carries envelopes.
const TouchChannelLabel = "touch-input"

// rtpDebug enables per-packet RTP logs.
var rtpDebug atomic.Bool

// SetDebugLogging toggles per-packet RTP debug logs.
func SetDebugLogging(enabled bool) { rtpDebug.Store(enabled) }

// debugRTPEnabled reports whether per-packet logs are on.
func debugRTPEnabled() bool { return rtpDebug.Load() }

// NewAPI builds a pion API with the default codecs and interceptors.
func NewAPI() (*webrtc.API, error) {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	interceptors := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(media, interceptors); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(media),
		webrtc.WithInterceptorRegistry(interceptors),
	), nil
}

// Configuration returns a peer configuration using urls as STUN servers.
func Configuration(urls []string) webrtc.Configuration {
	if len(urls) == 0 {
		urls = DefaultSTUNServers
	}
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: urls}},
	}
}

// TouchChannelInit returns the unordered, no-retransmit data channel options for touch traffic.
func TouchChannelInit() *webrtc.DataChannelInit {
	ordered := false
	retransmits := uint16(0)
	return &webrtc.DataChannelInit{Ordered: &ordered, MaxRetransmits: &retransmits}
}
