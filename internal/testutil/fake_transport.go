package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/frudas24/touchmirror/internal/transport"
)

// FakeConn is an in-memory transport.Conn. Tests feed In and observe Out.
type FakeConn struct {
	In  chan transport.Message
	Out chan transport.Message

	frames    chan transport.Frame
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

var _ transport.Conn = (*FakeConn)(nil)

// NewFakeConn returns an open fake connection.
func NewFakeConn() *FakeConn {
	return &FakeConn{
		In:     make(chan transport.Message, 64),
		Out:    make(chan transport.Message, 64),
		frames: make(chan transport.Frame, 4),
		done:   make(chan struct{}),
	}
}

// Write queues m on Out.
func (c *FakeConn) Write(ctx context.Context, m transport.Message) error {
	select {
	case <-c.done:
		return c.cause()
	default:
	}
	select {
	case c.Out <- m:
		return nil
	case <-c.done:
		return c.cause()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Read returns the next message fed on In.
func (c *FakeConn) Read(ctx context.Context) (transport.Message, error) {
	select {
	case m := <-c.In:
		return m, nil
	case <-c.done:
		return transport.Message{}, c.cause()
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

// Frames returns the frame channel fed by PushFrame.
func (c *FakeConn) Frames() <-chan transport.Frame {
	return c.frames
}

// PushFrame delivers a frame to the reader.
func (c *FakeConn) PushFrame(f transport.Frame) {
	c.frames <- f
}

// Close closes the connection with transport.ErrClosed.
func (c *FakeConn) Close() error {
	c.Fail(transport.ErrClosed)
	return nil
}

// Fail closes the connection so pending and future reads return err.
func (c *FakeConn) Fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
	})
}

// Closed reports whether the connection has been closed.
func (c *FakeConn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// cause returns the close reason.
func (c *FakeConn) cause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// ErrNoPeer is returned by FakeDialer when nothing is queued.
var ErrNoPeer = errors.New("testutil: no peer queued")

type dialResult struct {
	conn *FakeConn
	err  error
}

// FakeDialer hands out queued connections or errors in order.
type FakeDialer struct {
	mu    sync.Mutex
	queue []dialResult
	dials int
	// Dialed receives each connection as it is handed out.
	Dialed chan *FakeConn
}

var _ transport.Dialer = (*FakeDialer)(nil)

// NewFakeDialer returns a dialer with an empty queue.
func NewFakeDialer() *FakeDialer {
	return &FakeDialer{Dialed: make(chan *FakeConn, 16)}
}

// Push queues a connection for the next dial.
func (d *FakeDialer) Push(conn *FakeConn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, dialResult{conn: conn})
}

// PushErr queues a dial failure.
func (d *FakeDialer) PushErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queue = append(d.queue, dialResult{err: err})
}

// Dial pops the next queued result.
func (d *FakeDialer) Dial(ctx context.Context, _ string, _ int) (transport.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.dials++
	if len(d.queue) == 0 {
		d.mu.Unlock()
		return nil, ErrNoPeer
	}
	next := d.queue[0]
	d.queue = d.queue[1:]
	d.mu.Unlock()
	if next.err != nil {
		return nil, next.err
	}
	d.Dialed <- next.conn
	return next.conn, nil
}

// Dials returns how many dials were attempted.
func (d *FakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}
