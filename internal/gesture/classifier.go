// Package gesture classifies raw pointer samples into discrete touch gestures.
package gesture

import (
	"math"
	"sync"
	"time"

	"github.com/frudas24/touchmirror/internal/clock"
	"github.com/frudas24/touchmirror/internal/geometry"
)

type state int

const (
	stateIdle state = iota
	statePending
	stateMotion
	stateDrag
	stateLongPressed
	statePinch
	stateSuppressed
	stateSettled
)

type contact struct {
	x        float64
	y        float64
	pressure float64
	mapped   geometry.Point
}

type tapRecord struct {
	x  float64
	y  float64
	at time.Time
}

// Classifier runs one gesture state machine per gesture session, from the first contact
// down until no contacts remain. Samples, timer callbacks and emission are serialized
// under one mutex, so the emitter must not call back into the classifier.
type Classifier struct {
	mu        sync.Mutex
	base      Options
	opts      Options
	mapper    Mapper
	clock     clock.Clock
	emit      func(Event)
	haptics   Haptics
	indicator Indicator

	contacts map[int]*contact
	order    []int
	state    state
	primary  int
	startX   float64
	startY   float64
	startAt  time.Time
	startPt  geometry.Point
	timer    *clock.Timer
	gen      uint64
	lastTap  *tapRecord

	dragAt time.Time
	dragPt geometry.Point

	pinchIDs   [2]int
	pinchD0    float64
	pinchDist  float64
	pinchScale float64
	pinchPt    geometry.Point
	pinchOpen  bool
}

// New returns a classifier that maps through mapper and delivers events to emit.
func New(mapper Mapper, opts Options, emit func(Event)) *Classifier {
	return &Classifier{
		base:     opts,
		opts:     opts.normalized(),
		mapper:   mapper,
		clock:    clock.Real(),
		emit:     emit,
		contacts: make(map[int]*contact),
	}
}

// SetClock overrides the clock used for timers and missing sample timestamps.
func (c *Classifier) SetClock(clk clock.Clock) {
	if clk == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = clk
}

// SetFeedback installs the haptic and indicator collaborators. Either may be nil.
func (c *Classifier) SetFeedback(h Haptics, ind Indicator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haptics = h
	c.indicator = ind
}

// SetOptions replaces the thresholds.
func (c *Classifier) SetOptions(opts Options) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.base = opts
	c.opts = opts.normalized()
}

// Options returns the options as configured, before sensitivity scaling. Passing them
// back to SetOptions leaves the thresholds unchanged.
func (c *Classifier) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.base
}

// Effective returns the thresholds in use, after defaults and sensitivity scaling.
func (c *Classifier) Effective() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// Active returns the number of tracked contacts.
func (c *Classifier) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contacts)
}

// Reset drops all contacts and pending timers without emitting anything.
func (c *Classifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetSession()
	c.lastTap = nil
}

// Handle feeds one sample. Malformed samples are dropped.
func (c *Classifier) Handle(s Sample) {
	if math.IsNaN(s.X) || math.IsNaN(s.Y) || math.IsInf(s.X, 0) || math.IsInf(s.Y, 0) {
		return
	}
	if math.IsNaN(s.Pressure) || s.Pressure < 0 {
		s.Pressure = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s.At.IsZero() {
		s.At = c.clock.Now()
	}
	switch s.Phase {
	case PhaseDown:
		c.down(s)
	case PhaseMove:
		c.move(s)
	case PhaseUp:
		c.up(s, false)
	case PhaseCancel:
		c.up(s, true)
	}
}

// down registers a new contact and advances the session by contact count.
func (c *Classifier) down(s Sample) {
	if _, dup := c.contacts[s.ID]; dup {
		return
	}
	pt, ok := c.mapper.Map(s.X, s.Y)
	if !ok {
		return
	}
	c.contacts[s.ID] = &contact{x: s.X, y: s.Y, pressure: s.Pressure, mapped: pt}
	c.order = append(c.order, s.ID)

	switch n := len(c.contacts); {
	case n == 1:
		c.state = statePending
		c.primary = s.ID
		c.startX, c.startY = s.X, s.Y
		c.startAt = s.At
		c.startPt = pt
		c.armTimer(c.opts.LongPressDelay, c.longPressFired)
	case n == 2 && c.state != stateSuppressed:
		c.startPinch(s.At)
	default:
		c.cancelTimer()
		c.state = stateSuppressed
	}
}

// move updates a contact and emits progress for the current state.
func (c *Classifier) move(s Sample) {
	ct, ok := c.contacts[s.ID]
	if !ok {
		return
	}
	pt, ok := c.mapper.Map(s.X, s.Y)
	if !ok {
		return
	}
	ct.x, ct.y, ct.pressure, ct.mapped = s.X, s.Y, s.Pressure, pt

	switch c.state {
	case statePending:
		if c.displacement(ct) > c.opts.LongPressSlop {
			c.cancelTimer()
			c.enterMotion(s.At)
		}
	case stateMotion:
		if s.At.Sub(c.startAt) > c.opts.SwipeMaxDuration {
			c.commitDrag(s.At)
		}
	case stateLongPressed:
		if c.displacement(ct) > c.opts.LongPressSlop {
			c.commitDrag(s.At)
		}
	case stateDrag:
		c.dragMove(ct, s.At)
	case statePinch:
		if s.ID == c.pinchIDs[0] || s.ID == c.pinchIDs[1] {
			c.pinchMove(s.At)
		}
	}
}

// up ends a contact. Aborted contacts and releases inside a dead zone close open gestures silently.
func (c *Classifier) up(s Sample, abort bool) {
	ct, ok := c.contacts[s.ID]
	if !ok {
		return
	}
	pt, inside := c.mapper.Map(s.X, s.Y)
	silent := abort || !inside
	if inside {
		ct.x, ct.y, ct.pressure, ct.mapped = s.X, s.Y, s.Pressure, pt
	}
	remaining := len(c.contacts) - 1

	switch c.state {
	case statePending:
		c.cancelTimer()
		if !silent {
			c.releasePending(ct, s.At)
		}
	case stateMotion:
		c.cancelTimer()
		if !silent {
			c.releaseMotion(ct, s.At)
		}
	case stateDrag:
		at := c.dragPt
		if !silent {
			at = ct.mapped
		}
		c.out(Event{Kind: KindDragEnd, X: at.X, Y: at.Y, Pressure: ct.pressure, At: s.At, Pointers: remaining})
		c.state = stateSettled
	case statePinch, stateSuppressed:
		if remaining < 2 {
			c.endPinch(s.At, remaining)
			c.state = stateSettled
		}
	}

	delete(c.contacts, s.ID)
	c.dropOrder(s.ID)
	if len(c.contacts) == 0 {
		c.resetSession()
	}
}

// releasePending classifies a release that never left the long-press slop.
func (c *Classifier) releasePending(ct *contact, at time.Time) {
	d := c.displacement(ct)
	switch {
	case d <= c.opts.TapSlop && at.Sub(c.startAt) <= c.opts.TapMaxDuration:
		c.tap(ct, at)
	case d > c.opts.LongPressSlop:
		c.releaseMotion(ct, at)
	case d > c.opts.TapSlop:
		c.shortDrag(ct, at)
	}
}

// releaseMotion picks swipe over drag when the release is fast and far enough.
func (c *Classifier) releaseMotion(ct *contact, at time.Time) {
	dx := ct.x - c.startX
	dy := ct.y - c.startY
	d := math.Hypot(dx, dy)
	if d >= c.opts.SwipeMinDistance && at.Sub(c.startAt) <= c.opts.SwipeMaxDuration {
		dist := math.Hypot(float64(ct.mapped.X-c.startPt.X), float64(ct.mapped.Y-c.startPt.Y))
		c.out(Event{
			Kind:      KindSwipe,
			X:         c.startPt.X,
			Y:         c.startPt.Y,
			Pressure:  ct.pressure,
			At:        at,
			Direction: directionOf(dx, dy),
			Distance:  dist,
		})
		return
	}
	c.shortDrag(ct, at)
}

// tap emits a tap, or a double-tap when it pairs with the previous tap.
func (c *Classifier) tap(ct *contact, at time.Time) {
	if last := c.lastTap; last != nil &&
		at.Sub(last.at) <= c.opts.DoubleTapWindow &&
		math.Hypot(ct.x-last.x, ct.y-last.y) <= c.opts.TapSlop {
		c.out(Event{Kind: KindDoubleTap, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: at})
		c.lastTap = nil
		return
	}
	c.out(Event{Kind: KindTap, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: at})
	c.lastTap = &tapRecord{x: ct.x, y: ct.y, at: at}
}

// shortDrag emits a complete drag for a release that never committed to dragging.
func (c *Classifier) shortDrag(ct *contact, at time.Time) {
	c.out(Event{Kind: KindDragStart, X: c.startPt.X, Y: c.startPt.Y, Pressure: ct.pressure, At: at, Pointers: 1})
	c.out(Event{Kind: KindDragMove, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: at, Pointers: 1})
	c.out(Event{Kind: KindDragEnd, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: at})
}

// enterMotion defers the drag decision until the swipe window closes.
func (c *Classifier) enterMotion(at time.Time) {
	c.state = stateMotion
	remaining := c.opts.SwipeMaxDuration - at.Sub(c.startAt)
	if remaining <= 0 {
		c.commitDrag(at)
		return
	}
	c.armTimer(remaining, func() { c.commitDrag(c.clock.Now()) })
}

// commitDrag starts a drag from the initial contact point.
func (c *Classifier) commitDrag(at time.Time) {
	if c.state != stateMotion && c.state != stateLongPressed {
		return
	}
	c.cancelTimer()
	ct := c.contacts[c.primary]
	if ct == nil {
		return
	}
	c.state = stateDrag
	c.out(Event{Kind: KindDragStart, X: c.startPt.X, Y: c.startPt.Y, Pressure: ct.pressure, At: at, Pointers: 1})
	c.dragPt = c.startPt
	c.dragAt = time.Time{}
	c.dragMove(ct, at)
}

// dragMove emits a throttled drag-move.
func (c *Classifier) dragMove(ct *contact, at time.Time) {
	if !c.dragAt.IsZero() && at.Sub(c.dragAt) < c.opts.MinMoveInterval {
		return
	}
	dx := ct.mapped.X - c.dragPt.X
	dy := ct.mapped.Y - c.dragPt.Y
	if abs(dx) < c.opts.MinMoveDelta && abs(dy) < c.opts.MinMoveDelta {
		return
	}
	c.dragAt = at
	c.dragPt = ct.mapped
	c.out(Event{Kind: KindDragMove, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: at, Pointers: 1})
}

// longPressFired runs when the long-press delay elapses on a still contact.
func (c *Classifier) longPressFired() {
	if c.state != statePending {
		return
	}
	ct := c.contacts[c.primary]
	if ct == nil || c.displacement(ct) > c.opts.LongPressSlop {
		return
	}
	c.state = stateLongPressed
	c.out(Event{Kind: KindLongPress, X: ct.mapped.X, Y: ct.mapped.Y, Pressure: ct.pressure, At: c.clock.Now(), Pointers: 1})
}

// startPinch closes any single-contact gesture and opens a pinch on the first two contacts.
func (c *Classifier) startPinch(at time.Time) {
	c.cancelTimer()
	if c.state == stateDrag {
		c.out(Event{Kind: KindDragEnd, X: c.dragPt.X, Y: c.dragPt.Y, At: at, Pointers: 2})
	}
	c.pinchIDs = [2]int{c.order[0], c.order[1]}
	c.pinchD0 = c.pinchDistance()
	c.pinchDist = c.pinchD0
	c.pinchScale = 1
	c.pinchPt = c.pinchCenter()
	c.pinchOpen = true
	c.state = statePinch
	c.out(Event{Kind: KindPinchStart, X: c.pinchPt.X, Y: c.pinchPt.Y, At: at, Scale: 1, Distance: c.pinchD0, Pointers: 2})
}

// pinchMove reports the current scale relative to the initial distance.
func (c *Classifier) pinchMove(at time.Time) {
	c.pinchDist = c.pinchDistance()
	c.pinchScale = 1
	if c.pinchD0 > 0 {
		c.pinchScale = c.pinchDist / c.pinchD0
	}
	c.pinchPt = c.pinchCenter()
	c.out(Event{Kind: KindPinchMove, X: c.pinchPt.X, Y: c.pinchPt.Y, At: at, Scale: c.pinchScale, Distance: c.pinchDist, Pointers: 2})
}

// endPinch closes an open pinch with its last scale.
func (c *Classifier) endPinch(at time.Time, remaining int) {
	if !c.pinchOpen {
		return
	}
	c.pinchOpen = false
	c.out(Event{Kind: KindPinchEnd, X: c.pinchPt.X, Y: c.pinchPt.Y, At: at, Scale: c.pinchScale, Distance: c.pinchDist, Pointers: remaining})
}

// pinchDistance measures the source-space distance between the pinch contacts.
func (c *Classifier) pinchDistance() float64 {
	a, b := c.contacts[c.pinchIDs[0]], c.contacts[c.pinchIDs[1]]
	if a == nil || b == nil {
		return c.pinchDist
	}
	return math.Hypot(a.x-b.x, a.y-b.y)
}

// pinchCenter averages the mapped pinch contacts.
func (c *Classifier) pinchCenter() geometry.Point {
	a, b := c.contacts[c.pinchIDs[0]], c.contacts[c.pinchIDs[1]]
	if a == nil || b == nil {
		return c.pinchPt
	}
	return geometry.Point{X: (a.mapped.X + b.mapped.X) / 2, Y: (a.mapped.Y + b.mapped.Y) / 2}
}

// out emits an event and fires the local feedback collaborators.
func (c *Classifier) out(ev Event) {
	if ev.Kind != KindTap && ev.Kind != KindDoubleTap {
		c.lastTap = nil
	}
	if ev.Pointers == 0 && ev.Kind != KindDragEnd && ev.Kind != KindPinchEnd {
		ev.Pointers = len(c.contacts)
	}
	if c.emit != nil {
		c.emit(ev)
	}
	if c.opts.Haptics && c.haptics != nil {
		if pattern := hapticPattern(ev.Kind); pattern != nil {
			c.haptics.Pulse(pattern)
		}
	}
	if c.opts.Indicator && c.indicator != nil && showsIndicator(ev.Kind) {
		c.indicator.Show(ev.X, ev.Y, ev.Kind)
	}
}

// armTimer replaces the pending timer. Stale callbacks are ignored via the generation counter.
func (c *Classifier) armTimer(d time.Duration, fn func()) {
	c.cancelTimer()
	gen := c.gen
	c.timer = c.clock.AfterFunc(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		c.timer = nil
		fn()
	})
}

// cancelTimer stops the pending timer, if any. Safe to call repeatedly.
func (c *Classifier) cancelTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// resetSession returns to idle once every contact has lifted.
func (c *Classifier) resetSession() {
	c.cancelTimer()
	c.state = stateIdle
	c.contacts = make(map[int]*contact)
	c.order = nil
	c.pinchOpen = false
	c.dragAt = time.Time{}
}

// dropOrder removes id from the arrival order.
func (c *Classifier) dropOrder(id int) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// displacement measures how far a contact has moved from the session start.
func (c *Classifier) displacement(ct *contact) float64 {
	return math.Hypot(ct.x-c.startX, ct.y-c.startY)
}

// directionOf picks the dominant axis of motion.
func directionOf(dx, dy float64) Direction {
	if math.Abs(dx) >= math.Abs(dy) {
		if dx >= 0 {
			return DirRight
		}
		return DirLeft
	}
	if dy >= 0 {
		return DirDown
	}
	return DirUp
}

// hapticPattern returns the vibration pattern for a gesture, or nil for none.
func hapticPattern(kind Kind) []time.Duration {
	switch kind {
	case KindTap:
		return []time.Duration{10 * time.Millisecond}
	case KindDoubleTap:
		return []time.Duration{10 * time.Millisecond, 40 * time.Millisecond, 10 * time.Millisecond}
	case KindLongPress:
		return []time.Duration{30 * time.Millisecond}
	default:
		return nil
	}
}

// showsIndicator reports whether a gesture flashes the touch marker.
func showsIndicator(kind Kind) bool {
	switch kind {
	case KindTap, KindDoubleTap, KindLongPress, KindDragStart, KindSwipe, KindPinchStart:
		return true
	default:
		return false
	}
}

// abs returns the absolute value of an integer.
func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
