package webrtc

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v3"
)

// ErrNoFeed is returned by FeedPort when no capture is attached.
var ErrNoFeed = errors.New("webrtc: no rtp feed attached")

// Publisher serves the peer's screen as an H264 track. ffmpeg RTP arrives on a loopback
// port through Feed; each viewer gets a peer connection carrying the same track.
// Only the latest viewer is kept.
type Publisher struct {
	mu       sync.Mutex
	api      *webrtc.API
	config   webrtc.Configuration
	track    *webrtc.TrackLocalStaticRTP
	viewer   *webrtc.PeerConnection
	feed     *ingest
	rewriter rtpRewriter
	log      *slog.Logger
}

// NewPublisher builds the pion API and the shared video track.
func NewPublisher(stunURLs []string, log *slog.Logger) (*Publisher, error) {
	if log == nil {
		log = slog.Default()
	}
	api, err := NewAPI()
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "touchmirror")
	if err != nil {
		return nil, err
	}
	return &Publisher{api: api, config: Configuration(stunURLs), track: track, log: log}, nil
}

// Track returns the shared H264 track.
func (p *Publisher) Track() *webrtc.TrackLocalStaticRTP {
	return p.track
}

// Connect opens a peer connection for a new viewer with the track attached.
// The previous viewer, if any, is closed.
func (p *Publisher) Connect() (*webrtc.PeerConnection, error) {
	pc, err := p.api.NewPeerConnection(p.config)
	if err != nil {
		return nil, err
	}
	sender, err := pc.AddTrack(p.track)
	if err != nil {
		_ = pc.Close()
		return nil, err
	}
	go drainRTCP(sender)

	p.mu.Lock()
	prev := p.viewer
	p.viewer = pc
	p.mu.Unlock()
	if prev != nil {
		p.log.Info("webrtc: replacing viewer")
		_ = prev.Close()
	}
	return pc, nil
}

// Disconnect closes pc and forgets it when it is still the current viewer.
func (p *Publisher) Disconnect(pc *webrtc.PeerConnection) {
	p.mu.Lock()
	if p.viewer == pc {
		p.viewer = nil
	}
	p.mu.Unlock()
	_ = pc.Close()
}

// Feed forwards RTP arriving on the loopback port into the track, replacing any earlier feed.
func (p *Publisher) Feed(port int) error {
	in, err := startIngest(port, p.track, &p.rewriter, p.log)
	if err != nil {
		return err
	}
	p.mu.Lock()
	prev := p.feed
	p.feed = in
	p.mu.Unlock()
	if prev != nil {
		prev.close()
	}
	p.log.Debug("webrtc: rtp feed attached", "port", port)
	return nil
}

// FeedPort returns the loopback port of the current feed.
func (p *Publisher) FeedPort() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.feed == nil {
		return 0, ErrNoFeed
	}
	return p.feed.port(), nil
}

// StopFeed detaches the current feed. The track keeps its sequence state for the next one.
func (p *Publisher) StopFeed() {
	p.mu.Lock()
	in := p.feed
	p.feed = nil
	p.mu.Unlock()
	if in != nil {
		in.close()
	}
}

// Close releases the feed and the current viewer.
func (p *Publisher) Close() {
	p.StopFeed()
	p.mu.Lock()
	viewer := p.viewer
	p.viewer = nil
	p.mu.Unlock()
	if viewer != nil {
		_ = viewer.Close()
	}
}

// drainRTCP reads receiver reports so the interceptors keep running.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}
