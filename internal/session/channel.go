package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/google/uuid"
)

// ErrActive is returned by Connect while a connection is already being held.
var ErrActive = errors.New("session: connection already active")

// Channel holds one peer connection and keeps it alive.
type Channel struct {
	mu       sync.Mutex
	opts     Options
	dialer   transport.Dialer
	observer Observer
	logger   *slog.Logger
	inbox    *Inbox

	state     State
	address   string
	port      int
	sessionID string
	attempts  int
	quality   protocol.Quality
	rtt       time.Duration
	lastErr   error

	conn     transport.Conn
	out      *outbox
	connStop context.CancelFunc
	life     context.Context
	lifeStop context.CancelFunc
	epoch    uint64
	lastRecv time.Time
	pings    map[int64]time.Time
}

// New returns an idle channel. handler and observer may be nil.
func New(dialer transport.Dialer, opts Options, handler Handler, observer Observer) *Channel {
	opts = opts.normalized()
	if opts.ClientID == "" {
		opts.ClientID = uuid.NewString()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	c := &Channel{
		opts:     opts,
		dialer:   dialer,
		observer: observer,
		logger:   opts.Logger,
		state:    StateIdle,
	}
	c.inbox = NewInbox(opts.InboxCapacity, func(msg protocol.Message) {
		if handler != nil {
			handler.HandleMessage(msg)
		}
	})
	return c
}

// ClientID returns the identifier sent in the handshake.
func (c *Channel) ClientID() string {
	return c.opts.ClientID
}

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Snapshot returns a copy of the channel bookkeeping.
func (c *Channel) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:     c.state,
		Address:   c.address,
		Port:      c.port,
		ClientID:  c.opts.ClientID,
		SessionID: c.sessionID,
		Attempts:  c.attempts,
		Quality:   c.quality,
		RTT:       c.rtt,
		Dropped:   c.inbox.Dropped(),
	}
	if c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// SetScreen updates the local resolution announced in later handshakes.
func (c *Channel) SetScreen(w, h int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts.Screen.W, c.opts.Screen.H = w, h
}

// Connect dials the peer, performs the handshake and starts the liveness loops.
// On failure the channel is Failed and the transport fault is returned.
func (c *Channel) Connect(ctx context.Context, address string, port int) error {
	c.mu.Lock()
	switch c.state {
	case StateConnecting, StateConnected, StateReconnecting:
		c.mu.Unlock()
		return ErrActive
	}
	if c.lifeStop != nil {
		c.lifeStop()
	}
	c.life, c.lifeStop = context.WithCancel(context.Background())
	c.address, c.port = address, port
	c.attempts = 0
	c.sessionID = ""
	c.lastErr = nil
	c.epoch++
	ep := c.epoch
	life := c.life
	c.mu.Unlock()
	c.setState(ep, StateConnecting)

	dctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(life, cancel)
	conn, ack, early, err := c.open(dctx, address, port)
	stop()
	cancel()
	if err != nil {
		c.mu.Lock()
		current := c.epoch == ep
		if current {
			c.state = StateFailed
			c.lastErr = err
		}
		c.mu.Unlock()
		c.logger.Warn("session: connect failed", "address", address, "port", port, "err", err)
		if current {
			c.observer.OnStateChange(StateFailed)
			c.observer.OnError(err)
		}
		return err
	}
	if !c.attach(ep, conn, ack, early) {
		_ = conn.Close()
		return fault.New(fault.KindTransport, "connect", "cancelled")
	}
	return nil
}

// Send hands msg to the connection writer without blocking. It reports false when the
// message was dropped: not connected, or a previous envelope is still being written.
func (c *Channel) Send(msg protocol.Message) bool {
	c.mu.Lock()
	out := c.out
	connected := c.state == StateConnected
	c.mu.Unlock()
	if !connected || out == nil {
		return false
	}
	data, err := protocol.Encode(c.opts.Codec, msg)
	if err != nil {
		c.logger.Warn("session: encode failed", "type", msg.MessageType(), "err", err)
		return false
	}
	if !out.offer(transport.Message{Data: data, Binary: c.opts.Codec.Binary()}) {
		c.logger.Debug("session: send dropped, writer busy", "type", msg.MessageType())
		return false
	}
	return true
}

// RequestQuality records q and asks the peer to switch presets. The choice is replayed after reconnects.
func (c *Channel) RequestQuality(q protocol.Quality) error {
	if !q.Valid() {
		return fault.Newf(fault.KindProtocol, "quality", "unknown quality %q", q)
	}
	c.mu.Lock()
	c.quality = q
	conn := c.conn
	connected := c.state == StateConnected
	c.mu.Unlock()
	if connected && conn != nil {
		_ = c.write(conn, protocol.NewQualityChange(q))
	}
	return nil
}

// Quality returns the last requested preset.
func (c *Channel) Quality() protocol.Quality {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quality
}

// ObservePong matches a pong to an outstanding ping and reports the round trip.
func (c *Channel) ObservePong(p protocol.Pong) {
	c.mu.Lock()
	sent, ok := c.pings[p.Timestamp]
	var rtt time.Duration
	if ok {
		delete(c.pings, p.Timestamp)
		rtt = c.opts.Clock.Now().Sub(sent)
		if rtt < 0 {
			rtt = 0
		}
		c.rtt = rtt
	}
	c.mu.Unlock()
	if ok {
		c.observer.OnLatency(rtt)
	}
}

// Disconnect ends the session and suppresses any further reconnection.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	c.attempts = c.opts.MaxReconnectAttempts
	if c.lifeStop != nil {
		c.lifeStop()
	}
	if c.connStop != nil {
		c.connStop()
		c.connStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.out = nil
	prev := c.state
	address := c.address
	c.state = StateDisconnected
	c.epoch++
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if prev != StateDisconnected {
		c.logger.Info("session: disconnected", "address", address)
		c.observer.OnStateChange(StateDisconnected)
	}
}

// open dials and performs the handshake within the connect timeout.
// Envelopes that arrive before the ack are returned for later delivery.
func (c *Channel) open(ctx context.Context, address string, port int) (transport.Conn, protocol.Message, []protocol.Message, error) {
	c.mu.Lock()
	opts := c.opts
	c.mu.Unlock()

	dctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	conn, err := c.dialer.Dial(dctx, address, port)
	if err != nil {
		return nil, nil, nil, timeoutFault(dctx, "dial", err)
	}
	req := protocol.NewConnectionRequest(opts.ClientID, opts.Capabilities, opts.Screen, opts.Clock.Now())
	if err := c.writeCtx(dctx, conn, req); err != nil {
		_ = conn.Close()
		return nil, nil, nil, timeoutFault(dctx, "handshake", err)
	}
	if opts.AckMode == AckOpen {
		return conn, nil, nil, nil
	}

	var early []protocol.Message
	for {
		raw, err := conn.Read(dctx)
		if err != nil {
			_ = conn.Close()
			return nil, nil, nil, timeoutFault(dctx, "handshake", err)
		}
		msg, err := protocol.Decode(opts.Codec, raw.Data)
		if err != nil {
			c.logger.Warn("session: malformed envelope during handshake", "err", err)
			continue
		}
		if protocol.IsAck(msg) {
			return conn, msg, early, nil
		}
		if perr, ok := msg.(protocol.Error); ok {
			_ = conn.Close()
			return nil, nil, nil, fault.Newf(fault.KindPeer, "handshake", "%s: %s", perr.Code, perr.Message)
		}
		early = append(early, msg)
	}
}

// attach installs an open connection and starts its loops. It reports false when the epoch moved on.
func (c *Channel) attach(ep uint64, conn transport.Conn, ack protocol.Message, early []protocol.Message) bool {
	c.mu.Lock()
	if c.epoch != ep || c.life == nil || c.life.Err() != nil {
		c.mu.Unlock()
		return false
	}
	c.epoch++
	ep = c.epoch
	ctx, stop := context.WithCancel(c.life)
	out := newOutbox()
	c.conn = conn
	c.out = out
	c.connStop = stop
	c.state = StateConnected
	c.attempts = 0
	c.lastRecv = c.opts.Clock.Now()
	c.pings = make(map[int64]time.Time)
	if a, ok := ack.(protocol.ConnectionAck); ok && a.SessionID != "" {
		c.sessionID = a.SessionID
	}
	quality := c.quality
	address, port := c.address, c.port
	c.mu.Unlock()

	c.logger.Info("session: connected", "address", address, "port", port)
	c.observer.OnStateChange(StateConnected)
	if ack != nil {
		c.inbox.Push(ack)
	}
	for _, msg := range early {
		c.inbox.Push(msg)
	}
	if quality != "" {
		_ = c.write(conn, protocol.NewQualityChange(quality))
	}

	go out.run(ctx, conn, c.opts.SendTimeout, c.logger)
	go c.readLoop(ctx, ep, conn)
	go c.pingLoop(ctx, ep, conn)
	go c.frameLoop(ctx, conn)
	return true
}

// readLoop decodes inbound envelopes into the inbox until the connection drops.
func (c *Channel) readLoop(ctx context.Context, ep uint64, conn transport.Conn) {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.lost(ep, err)
			}
			return
		}
		c.mu.Lock()
		if c.epoch == ep {
			c.lastRecv = c.opts.Clock.Now()
		}
		codec := c.opts.Codec
		c.mu.Unlock()

		msg, err := protocol.Decode(codec, raw.Data)
		if err != nil {
			c.logger.Warn("session: dropping malformed envelope", "err", err)
			continue
		}
		c.inbox.Push(msg)
	}
}

// pingLoop sends pings every interval and declares the peer dead after the liveness timeout.
func (c *Channel) pingLoop(ctx context.Context, ep uint64, conn transport.Conn) {
	ticker := c.opts.Clock.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		now := c.opts.Clock.Now()
		c.mu.Lock()
		if c.epoch != ep {
			c.mu.Unlock()
			return
		}
		silent := now.Sub(c.lastRecv)
		ts := protocol.Millis(now)
		c.pings[ts] = now
		for k, sent := range c.pings {
			if now.Sub(sent) > c.opts.LivenessTimeout {
				delete(c.pings, k)
			}
		}
		c.mu.Unlock()

		if silent > c.opts.LivenessTimeout {
			c.lost(ep, fault.Newf(fault.KindTransport, "liveness", "no traffic for %s", silent.Round(time.Millisecond)))
			return
		}
		if err := c.write(conn, protocol.NewPing(now)); err != nil {
			c.logger.Debug("session: ping failed", "err", err)
		}
	}
}

// frameLoop forwards display frames to the observer.
func (c *Channel) frameLoop(ctx context.Context, conn transport.Conn) {
	frames := conn.Frames()
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-frames:
			c.observer.OnFrame(f)
		}
	}
}

// lost handles the end of connection ep. Every close not requested through Disconnect
// reconnects, including a clean close from a restarting peer.
func (c *Channel) lost(ep uint64, cause error) {
	c.mu.Lock()
	if c.epoch != ep || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.connStop != nil {
		c.connStop()
		c.connStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.out = nil
	c.lastErr = cause
	address := c.address
	c.state = StateReconnecting
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if transport.IsExpectedClose(cause) {
		c.logger.Info("session: peer closed the connection, reconnecting", "address", address)
	} else {
		c.logger.Warn("session: connection lost", "address", address, "err", cause)
	}
	c.observer.OnStateChange(StateReconnecting)
	c.observer.OnError(cause)
	go c.reconnect(ep)
}

// reconnect redials with a linearly growing delay until it succeeds, is cancelled or runs out of attempts.
func (c *Channel) reconnect(ep uint64) {
	for {
		c.mu.Lock()
		if c.epoch != ep || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		c.attempts++
		n := c.attempts
		limit := c.opts.MaxReconnectAttempts
		life := c.life
		address, port := c.address, c.port
		if n > limit {
			err := fault.Terminal(fault.Newf(fault.KindTransport, "reconnect", "gave up after %d attempts", limit))
			c.state = StateFailed
			c.attempts = limit
			c.lastErr = err
			c.mu.Unlock()
			c.logger.Error("session: reconnect exhausted", "address", address, "attempts", limit)
			c.observer.OnStateChange(StateFailed)
			c.observer.OnError(err)
			return
		}
		delay := c.opts.ReconnectBaseDelay * time.Duration(n)
		c.mu.Unlock()

		c.logger.Info("session: reconnecting", "attempt", n, "delay", delay)
		select {
		case <-c.opts.Clock.After(delay):
		case <-life.Done():
			return
		}

		conn, ack, early, err := c.open(life, address, port)
		if err != nil {
			c.logger.Warn("session: reconnect attempt failed", "attempt", n, "err", err)
			c.mu.Lock()
			if c.epoch == ep {
				c.lastErr = err
			}
			c.mu.Unlock()
			continue
		}
		if !c.attach(ep, conn, ack, early) {
			_ = conn.Close()
		}
		return
	}
}

// write encodes msg and writes it within the send timeout.
func (c *Channel) write(conn transport.Conn, msg protocol.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.SendTimeout)
	defer cancel()
	err := c.writeCtx(ctx, conn, msg)
	if err != nil {
		c.logger.Debug("session: send dropped", "type", msg.MessageType(), "err", err)
	}
	return err
}

// writeCtx encodes msg with the channel codec and writes it.
func (c *Channel) writeCtx(ctx context.Context, conn transport.Conn, msg protocol.Message) error {
	data, err := protocol.Encode(c.opts.Codec, msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, transport.Message{Data: data, Binary: c.opts.Codec.Binary()})
}

// setState records s when ep is current and notifies the observer.
func (c *Channel) setState(ep uint64, s State) {
	c.mu.Lock()
	if c.epoch != ep || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	c.mu.Unlock()
	c.observer.OnStateChange(s)
}

// timeoutFault tags err as a transport fault, marking context expiry as a timeout.
func timeoutFault(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &fault.Error{Kind: fault.KindTransport, Op: op, Detail: "timeout", Err: err}
	}
	if fault.KindOf(err) != "" {
		return err
	}
	return fault.Wrap(fault.KindTransport, op, err)
}
