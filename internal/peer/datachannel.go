package peer

import (
	"context"
	"sync"

	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/pion/webrtc/v3"
)

// dataChannelConn adapts a peer-side data channel to transport.Conn.
type dataChannelConn struct {
	dc        *webrtc.DataChannel
	inbox     chan transport.Message
	done      chan struct{}
	closeOnce sync.Once
}

var _ transport.Conn = (*dataChannelConn)(nil)

// newDataChannelConn wires the channel callbacks into a Conn.
func newDataChannelConn(dc *webrtc.DataChannel) *dataChannelConn {
	c := &dataChannelConn{
		dc:    dc,
		inbox: make(chan transport.Message, 64),
		done:  make(chan struct{}),
	}
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		select {
		case c.inbox <- transport.Message{Data: msg.Data, Binary: !msg.IsString}:
		case <-c.done:
		default:
		}
	})
	dc.OnClose(func() { c.shutdown() })
	return c
}

// Write sends one envelope as a text or binary data channel message.
func (c *dataChannelConn) Write(_ context.Context, m transport.Message) error {
	select {
	case <-c.done:
		return transport.ErrClosed
	default:
	}
	if m.Binary {
		return c.dc.Send(m.Data)
	}
	return c.dc.SendText(string(m.Data))
}

// Read returns the next inbound envelope.
func (c *dataChannelConn) Read(ctx context.Context) (transport.Message, error) {
	select {
	case m := <-c.inbox:
		return m, nil
	case <-c.done:
		return transport.Message{}, transport.ErrClosed
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

// Frames returns nil: the peer never receives display frames.
func (c *dataChannelConn) Frames() <-chan transport.Frame {
	return nil
}

// Close closes the data channel.
func (c *dataChannelConn) Close() error {
	c.shutdown()
	return c.dc.Close()
}

// shutdown marks the connection closed once.
func (c *dataChannelConn) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}
