package app

import (
	"log/slog"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/session"
	"github.com/frudas24/touchmirror/internal/transport"
)

// Display is the sink for mirrored frames.
type Display interface {
	PresentFrame(transport.Frame)
	OnResize(geometry.Size)
}

// Channel is the outbound side of a session the coordinator drives.
type Channel interface {
	Send(protocol.Message) bool
	ObservePong(protocol.Pong)
}

// Observer receives session and peer notifications forwarded by the Coordinator.
type Observer interface {
	OnStateChange(session.State)
	OnLatency(time.Duration)
	OnError(error)
	OnStatus(protocol.Status)
}

// Stats counts touches handed to the channel.
type Stats struct {
	Sent    int `json:"sent"`
	Dropped int `json:"dropped"`
}

// Coordinator wires the classifier, the mapper and the session channel together.
// It implements session.Handler and session.Observer.
type Coordinator struct {
	mu         sync.Mutex
	mapper     *geometry.Mapper
	classifier *gesture.Classifier
	channel    Channel
	display    Display
	observers  []Observer
	stats      Stats
	log        *slog.Logger
}

var (
	_ session.Handler  = (*Coordinator)(nil)
	_ session.Observer = (*Coordinator)(nil)
)

// NewCoordinator builds a coordinator classifying samples with opts. display may be nil.
func NewCoordinator(mapper *geometry.Mapper, opts gesture.Options, display Display, log *slog.Logger) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{mapper: mapper, display: display, log: log}
	c.classifier = gesture.New(mapper, opts, c.emit)
	return c
}

// SetChannel attaches the session channel that receives touches.
func (c *Coordinator) SetChannel(ch Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = ch
}

// AddObserver registers o for forwarded notifications.
func (c *Coordinator) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Classifier returns the gesture classifier so callers can retune it.
func (c *Coordinator) Classifier() *gesture.Classifier {
	return c.classifier
}

// Stats returns the touch counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HandleSample feeds one pointer sample to the classifier.
func (c *Coordinator) HandleSample(s gesture.Sample) {
	c.classifier.Handle(s)
}

// emit forwards a classified gesture to the channel. Touches are dropped while disconnected.
func (c *Coordinator) emit(ev gesture.Event) {
	c.mu.Lock()
	ch := c.channel
	c.mu.Unlock()
	sent := ch != nil && ch.Send(protocol.TouchFromEvent(ev))
	c.mu.Lock()
	if sent {
		c.stats.Sent++
	} else {
		c.stats.Dropped++
	}
	c.mu.Unlock()
}

// HandleMessage dispatches one inbound envelope.
func (c *Coordinator) HandleMessage(msg protocol.Message) {
	if size, ok := protocol.Geometry(msg); ok {
		c.resize(size)
	}
	switch m := msg.(type) {
	case protocol.ConnectionAck, protocol.Welcome, protocol.Resize:
	case protocol.Pong:
		if ch := c.currentChannel(); ch != nil {
			ch.ObservePong(m)
		}
	case protocol.Ping:
		if ch := c.currentChannel(); ch != nil {
			ch.Send(protocol.NewPong(m.Timestamp))
		}
	case protocol.Status:
		for _, o := range c.snapshotObservers() {
			o.OnStatus(m)
		}
	case protocol.Error:
		err := fault.New(fault.KindPeer, m.Code, m.Message)
		c.log.Warn("peer: reported error", "code", m.Code, "message", m.Message)
		for _, o := range c.snapshotObservers() {
			o.OnError(err)
		}
	default:
		c.log.Debug("peer: ignoring envelope", "type", msg.MessageType())
	}
}

// resize retargets the mapper before any further touch is mapped.
func (c *Coordinator) resize(size geometry.Size) {
	if err := c.mapper.SetTarget(size); err != nil {
		c.log.Warn("geometry: rejected peer size", "w", size.W, "h", size.H, "err", err)
		return
	}
	c.log.Info("geometry: peer resized", "w", size.W, "h", size.H)
	if c.display != nil {
		c.display.OnResize(size)
	}
}

// OnStateChange forwards a state change and resets the classifier when the session drops.
func (c *Coordinator) OnStateChange(s session.State) {
	if s != session.StateConnected && s != session.StateConnecting {
		c.classifier.Reset()
	}
	for _, o := range c.snapshotObservers() {
		o.OnStateChange(s)
	}
}

// OnLatency forwards a round-trip measurement.
func (c *Coordinator) OnLatency(d time.Duration) {
	for _, o := range c.snapshotObservers() {
		o.OnLatency(d)
	}
}

// OnError forwards a session error.
func (c *Coordinator) OnError(err error) {
	for _, o := range c.snapshotObservers() {
		o.OnError(err)
	}
}

// OnFrame hands a mirrored frame to the display.
func (c *Coordinator) OnFrame(f transport.Frame) {
	if c.display != nil {
		c.display.PresentFrame(f)
	}
}

// currentChannel returns the attached channel.
func (c *Coordinator) currentChannel() Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// snapshotObservers copies the observer list.
func (c *Coordinator) snapshotObservers() []Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Observer(nil), c.observers...)
}
