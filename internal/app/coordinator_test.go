package app

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/frudas24/touchmirror/internal/fault"
	"github.com/frudas24/touchmirror/internal/geometry"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/session"
	"github.com/frudas24/touchmirror/internal/transport"
	"github.com/google/go-cmp/cmp"
)

// fakeChannel records sends and pongs.
type fakeChannel struct {
	mu        sync.Mutex
	connected bool
	sent      []protocol.Message
	pongs     []protocol.Pong
}

// Send records msg when connected.
func (f *fakeChannel) Send(msg protocol.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

// ObservePong records p.
func (f *fakeChannel) ObservePong(p protocol.Pong) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongs = append(f.pongs, p)
}

// recordingDisplay records resizes and frames.
type recordingDisplay struct {
	sizes  []geometry.Size
	frames int
}

// PresentFrame counts f.
func (d *recordingDisplay) PresentFrame(transport.Frame) { d.frames++ }

// OnResize records size.
func (d *recordingDisplay) OnResize(size geometry.Size) { d.sizes = append(d.sizes, size) }

// recordingObserver records forwarded notifications.
type recordingObserver struct {
	states   []session.State
	errs     []error
	statuses []protocol.Status
	rtts     []time.Duration
}

// OnStateChange records s.
func (o *recordingObserver) OnStateChange(s session.State) { o.states = append(o.states, s) }

// OnLatency records d.
func (o *recordingObserver) OnLatency(d time.Duration) { o.rtts = append(o.rtts, d) }

// OnError records err.
func (o *recordingObserver) OnError(err error) { o.errs = append(o.errs, err) }

// OnStatus records st.
func (o *recordingObserver) OnStatus(st protocol.Status) { o.statuses = append(o.statuses, st) }

// newCoordinator builds a coordinator over a 100x100 to 200x200 stretch mapping.
func newCoordinator(t *testing.T) (*Coordinator, *geometry.Mapper, *fakeChannel, *recordingDisplay, *recordingObserver) {
	t.Helper()
	m, err := geometry.NewMapper(geometry.Size{W: 100, H: 100}, geometry.Size{W: 200, H: 200}, geometry.FitStretch)
	if err != nil {
		t.Fatalf("mapper: %v", err)
	}
	display := &recordingDisplay{}
	c := NewCoordinator(m, gesture.DefaultOptions(), display, nil)
	ch := &fakeChannel{connected: true}
	obs := &recordingObserver{}
	c.SetChannel(ch)
	c.AddObserver(obs)
	return c, m, ch, display, obs
}

// tapAt feeds a quick stationary contact.
func tapAt(c *Coordinator, x, y float64, at time.Time) {
	c.HandleSample(gesture.Sample{ID: 1, Phase: gesture.PhaseDown, X: x, Y: y, Pressure: 1, At: at})
	c.HandleSample(gesture.Sample{ID: 1, Phase: gesture.PhaseUp, X: x, Y: y, Pressure: 1, At: at.Add(50 * time.Millisecond)})
}

// TestCoordinator_TapSendsMappedTouch verifies a tap leaves as a touch in target pixels.
func TestCoordinator_TapSendsMappedTouch(t *testing.T) {
	c, _, ch, _, _ := newCoordinator(t)
	at := time.Unix(1000, 0)
	tapAt(c, 50, 25, at)
	want := []protocol.Message{protocol.Touch{
		Type:      protocol.TypeTouch,
		Action:    "tap",
		X:         100,
		Y:         50,
		Pressure:  1,
		Timestamp: at.Add(50 * time.Millisecond).UnixMilli(),
	}}
	if diff := cmp.Diff(want, ch.sent); diff != "" {
		t.Fatalf("unexpected sends (-want +got):\n%s", diff)
	}
	if got := c.Stats(); got.Sent != 1 || got.Dropped != 0 {
		t.Fatalf("expected 1 sent, got %+v", got)
	}
}

// TestCoordinator_TouchDroppedWhileDisconnected verifies touches are never queued.
func TestCoordinator_TouchDroppedWhileDisconnected(t *testing.T) {
	c, _, ch, _, _ := newCoordinator(t)
	ch.connected = false
	tapAt(c, 10, 10, time.Unix(1000, 0))
	if len(ch.sent) != 0 {
		t.Fatalf("expected no sends, got %v", ch.sent)
	}
	if got := c.Stats(); got.Dropped != 1 {
		t.Fatalf("expected 1 dropped, got %+v", got)
	}
}

// TestCoordinator_ResizeRetargetsBeforeNextTouch verifies geometry updates apply to the next gesture.
func TestCoordinator_ResizeRetargetsBeforeNextTouch(t *testing.T) {
	c, m, ch, display, _ := newCoordinator(t)
	c.HandleMessage(protocol.Resize{Type: protocol.TypeGeometryUpdate, Width: 400, Height: 400})
	if m.Target() != (geometry.Size{W: 400, H: 400}) {
		t.Fatalf("expected target 400x400, got %+v", m.Target())
	}
	if len(display.sizes) != 1 || display.sizes[0].W != 400 {
		t.Fatalf("expected display resize, got %v", display.sizes)
	}
	tapAt(c, 50, 50, time.Unix(1000, 0))
	touch := ch.sent[0].(protocol.Touch)
	if touch.X != 200 || touch.Y != 200 {
		t.Fatalf("expected (200,200), got (%d,%d)", touch.X, touch.Y)
	}
}

// TestCoordinator_InvalidResizeKeepsTarget verifies a zero extent is rejected and logged as a geometry error.
func TestCoordinator_InvalidResizeKeepsTarget(t *testing.T) {
	c, m, _, display, _ := newCoordinator(t)
	var logs bytes.Buffer
	c.log = slog.New(slog.NewTextHandler(&logs, nil))
	c.HandleMessage(protocol.Resize{Width: 0, Height: 300})
	if out := logs.String(); !strings.Contains(out, "geometry: rejected peer size") || !strings.Contains(out, "invalid size 0x300") {
		t.Fatalf("expected geometry error logged, got %q", out)
	}
	if m.Target() != (geometry.Size{W: 200, H: 200}) {
		t.Fatalf("expected target unchanged, got %+v", m.Target())
	}
	if len(display.sizes) != 0 {
		t.Fatalf("expected no display resize, got %v", display.sizes)
	}
}

// TestCoordinator_WelcomeCarriesGeometry verifies the mobile ack retargets the mapper.
func TestCoordinator_WelcomeCarriesGeometry(t *testing.T) {
	c, m, _, _, _ := newCoordinator(t)
	c.HandleMessage(protocol.Welcome{ScreenWidth: 1080, ScreenHeight: 2400})
	if m.Target() != (geometry.Size{W: 1080, H: 2400}) {
		t.Fatalf("expected target 1080x2400, got %+v", m.Target())
	}
}

// TestCoordinator_LivenessDispatch verifies pings are answered and pongs are observed.
func TestCoordinator_LivenessDispatch(t *testing.T) {
	c, _, ch, _, _ := newCoordinator(t)
	c.HandleMessage(protocol.Ping{Timestamp: 42})
	c.HandleMessage(protocol.Pong{Timestamp: 7})
	if diff := cmp.Diff([]protocol.Message{protocol.NewPong(42)}, ch.sent); diff != "" {
		t.Fatalf("unexpected sends (-want +got):\n%s", diff)
	}
	if len(ch.pongs) != 1 || ch.pongs[0].Timestamp != 7 {
		t.Fatalf("expected observed pong 7, got %v", ch.pongs)
	}
}

// TestCoordinator_StatusAndErrorReachObservers verifies peer notices are forwarded.
func TestCoordinator_StatusAndErrorReachObservers(t *testing.T) {
	c, _, _, _, obs := newCoordinator(t)
	c.HandleMessage(protocol.Status{State: "quality", Message: "low"})
	c.HandleMessage(protocol.Error{Code: "busy", Message: "encoder busy"})
	if len(obs.statuses) != 1 || obs.statuses[0].Message != "low" {
		t.Fatalf("expected status forwarded, got %v", obs.statuses)
	}
	if len(obs.errs) != 1 || !fault.IsKind(obs.errs[0], fault.KindPeer) {
		t.Fatalf("expected peer fault, got %v", obs.errs)
	}
}

// TestCoordinator_UnknownIgnored verifies unknown envelopes have no effect.
func TestCoordinator_UnknownIgnored(t *testing.T) {
	c, _, ch, _, obs := newCoordinator(t)
	c.HandleMessage(protocol.Unknown{Type: "keyboard"})
	if len(ch.sent) != 0 || len(obs.errs) != 0 || len(obs.statuses) != 0 {
		t.Fatalf("expected no effect, got sent=%v errs=%v", ch.sent, obs.errs)
	}
}

// TestCoordinator_FramesAndStates verifies frames reach the display and states the observers.
func TestCoordinator_FramesAndStates(t *testing.T) {
	c, _, _, display, obs := newCoordinator(t)
	c.OnFrame(transport.Frame{Data: []byte{0xFF, 0xD8}, Format: transport.FormatJPEG})
	c.OnStateChange(session.StateReconnecting)
	c.OnLatency(15 * time.Millisecond)
	if display.frames != 1 {
		t.Fatalf("expected 1 frame, got %d", display.frames)
	}
	if diff := cmp.Diff([]session.State{session.StateReconnecting}, obs.states); diff != "" {
		t.Fatalf("unexpected states (-want +got):\n%s", diff)
	}
	if len(obs.rtts) != 1 || obs.rtts[0] != 15*time.Millisecond {
		t.Fatalf("expected rtt 15ms, got %v", obs.rtts)
	}
}
