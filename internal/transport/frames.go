package transport

import (
	"time"

	"github.com/pion/rtp"
)

// maxFrameBytes caps an assembled frame so a lost marker cannot grow the buffer without bound.
const maxFrameBytes = 4 << 20

// FrameAssembler groups RTP payloads into frames on the marker bit.
type FrameAssembler struct {
	format  string
	buf     []byte
	ts      uint32
	started bool
}

// NewFrameAssembler returns an assembler that tags frames with format.
func NewFrameAssembler(format string) *FrameAssembler {
	return &FrameAssembler{format: format}
}

// Push adds one packet and returns a frame when the packet completes one.
// A timestamp change without a marker drops the incomplete frame.
func (a *FrameAssembler) Push(pkt *rtp.Packet) (Frame, bool) {
	if pkt == nil {
		return Frame{}, false
	}
	if a.started && pkt.Timestamp != a.ts {
		a.buf = a.buf[:0]
	}
	a.ts = pkt.Timestamp
	a.started = true
	if len(a.buf)+len(pkt.Payload) > maxFrameBytes {
		a.buf = a.buf[:0]
	}
	a.buf = append(a.buf, pkt.Payload...)
	if !pkt.Marker {
		return Frame{}, false
	}
	return a.take(), true
}

// take returns the buffered frame and resets the buffer.
func (a *FrameAssembler) take() Frame {
	data := make([]byte, len(a.buf))
	copy(data, a.buf)
	a.buf = a.buf[:0]
	return Frame{Data: data, Format: a.format, Timestamp: a.ts, At: time.Now()}
}
