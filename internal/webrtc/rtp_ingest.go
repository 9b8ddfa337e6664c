package webrtc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/rtp"
)

const (
	// maxRTPPacket fits one ffmpeg RTP packet; ffmpeg keeps payloads under the 1500 byte MTU.
	maxRTPPacket = 1600
	// defaultTimestampStep is one frame at 30fps on the 90kHz video clock.
	defaultTimestampStep = 3000
	// maxTimestampStep bounds a forwarded gap to one second.
	maxTimestampStep = 90000
)

// rtpWriteParams overrides header fields when non-zero.
type rtpWriteParams struct {
	payloadType uint8
	ssrc        uint32
}

// rtpRewriter keeps forwarded sequence numbers contiguous and timestamps monotonic
// across ffmpeg restarts.
type rtpRewriter struct {
	mu       sync.Mutex
	started  bool
	seq      uint16
	lastIn   uint32
	outStamp uint32
}

// Apply rewrites p in place.
func (r *rtpRewriter) Apply(p *rtp.Packet, params rtpWriteParams) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.started = true
		r.seq = p.SequenceNumber
		r.lastIn = p.Timestamp
		r.outStamp = p.Timestamp
	} else {
		r.seq++
		if p.Timestamp != r.lastIn {
			delta := p.Timestamp - r.lastIn
			if delta > maxTimestampStep {
				delta = defaultTimestampStep
			}
			r.outStamp += delta
			r.lastIn = p.Timestamp
		}
	}
	p.SequenceNumber = r.seq
	p.Timestamp = r.outStamp
	if params.payloadType != 0 {
		p.PayloadType = params.payloadType
	}
	if params.ssrc != 0 {
		p.SSRC = params.ssrc
	}
}

// rtpWriter accepts forwarded packets. *webrtc.TrackLocalStaticRTP satisfies it.
type rtpWriter interface {
	WriteRTP(p *rtp.Packet) error
}

// ingest forwards ffmpeg RTP from one loopback UDP port into a track until closed.
type ingest struct {
	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// startIngest binds port and forwards every packet through rewriter into w. The rewriter
// outlives ingests so output stays continuous when ffmpeg restarts on a new port.
func startIngest(port int, w rtpWriter, rewriter *rtpRewriter, log *slog.Logger) (*ingest, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	in := &ingest{conn: conn, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(in.done)
		forwardRTP(ctx, conn, w, rewriter, log)
	}()
	return in, nil
}

// port returns the bound UDP port.
func (in *ingest) port() int {
	return in.conn.LocalAddr().(*net.UDPAddr).Port
}

// close stops forwarding and waits for the loop to exit.
func (in *ingest) close() {
	in.cancel()
	_ = in.conn.Close()
	<-in.done
}

// forwardRTP reads packets until ctx ends or the socket closes.
func forwardRTP(ctx context.Context, conn *net.UDPConn, w rtpWriter, rewriter *rtpRewriter, log *slog.Logger) {
	buf := make([]byte, maxRTPPacket)
	for {
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				log.Warn("webrtc: rtp ingest stopped", "err", err)
			}
			return
		}
		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		rewriter.Apply(&pkt, rtpWriteParams{})
		if debugRTPEnabled() {
			log.Debug("webrtc: rtp", "seq", pkt.SequenceNumber, "ts", pkt.Timestamp, "marker", pkt.Marker, "bytes", n)
		}
		if err := w.WriteRTP(&pkt); err != nil && debugRTPEnabled() {
			log.Debug("webrtc: write rtp", "err", err)
		}
	}
}
