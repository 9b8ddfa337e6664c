// Package gesture classifies raw pointer samples into discrete touch gestures.
package gesture

import (
	"time"

	"github.com/frudas24/touchmirror/internal/geometry"
)

// Phase identifies a pointer sample transition.
type Phase string

const (
	// PhaseDown starts a contact.
	PhaseDown Phase = "down"
	// PhaseMove updates a contact.
	PhaseMove Phase = "move"
	// PhaseUp ends a contact normally.
	PhaseUp Phase = "up"
	// PhaseCancel aborts a contact.
	PhaseCancel Phase = "cancel"
)

// Sample is one raw pointer observation in source space.
type Sample struct {
	ID       int
	Phase    Phase
	X        float64
	Y        float64
	Pressure float64
	At       time.Time
}

// Kind names an emitted gesture.
type Kind string

const (
	// KindTap is a short stationary contact.
	KindTap Kind = "tap"
	// KindDoubleTap is a second tap close in time and space to the first.
	KindDoubleTap Kind = "double-tap"
	// KindLongPress is a stationary contact held past the long-press delay.
	KindLongPress Kind = "long-press"
	// KindDragStart begins a drag.
	KindDragStart Kind = "drag-start"
	// KindDragMove reports drag progress.
	KindDragMove Kind = "drag-move"
	// KindDragEnd ends a drag.
	KindDragEnd Kind = "drag-end"
	// KindSwipe is a fast straight motion released quickly.
	KindSwipe Kind = "swipe"
	// KindPinchStart begins a two-contact pinch.
	KindPinchStart Kind = "pinch-start"
	// KindPinchMove reports the pinch scale.
	KindPinchMove Kind = "pinch-move"
	// KindPinchEnd ends a pinch.
	KindPinchEnd Kind = "pinch-end"
)

// Direction is the dominant axis of a swipe.
type Direction string

const (
	// DirUp moves toward smaller y.
	DirUp Direction = "up"
	// DirDown moves toward larger y.
	DirDown Direction = "down"
	// DirLeft moves toward smaller x.
	DirLeft Direction = "left"
	// DirRight moves toward larger x.
	DirRight Direction = "right"
)

// Event is an emitted gesture with target-space coordinates.
type Event struct {
	Kind      Kind
	X         int
	Y         int
	Pressure  float64
	At        time.Time
	Direction Direction
	Scale     float64
	Distance  float64
	Pointers  int
}

// Mapper converts source points to target points, reporting false for suppressed points.
type Mapper interface {
	Map(x, y float64) (geometry.Point, bool)
}

// Haptics emits a local vibration pattern. Implementations must not block.
type Haptics interface {
	Pulse(pattern []time.Duration)
}

// Indicator flashes a local touch marker. Implementations must not block.
type Indicator interface {
	Show(x, y int, kind Kind)
}

// Options tunes classification thresholds. Distances are source pixels.
type Options struct {
	TapSlop          float64
	TapMaxDuration   time.Duration
	LongPressDelay   time.Duration
	LongPressSlop    float64
	DoubleTapWindow  time.Duration
	SwipeMinDistance float64
	SwipeMaxDuration time.Duration
	MinMoveInterval  time.Duration
	MinMoveDelta     int
	Sensitivity      float64
	Haptics          bool
	Indicator        bool
}

// DefaultOptions returns the stock thresholds.
func DefaultOptions() Options {
	return Options{
		TapSlop:          10,
		TapMaxDuration:   200 * time.Millisecond,
		LongPressDelay:   500 * time.Millisecond,
		LongPressSlop:    15,
		DoubleTapWindow:  300 * time.Millisecond,
		SwipeMinDistance: 50,
		SwipeMaxDuration: 500 * time.Millisecond,
		MinMoveInterval:  16 * time.Millisecond,
		MinMoveDelta:     2,
		Sensitivity:      1,
		Haptics:          true,
		Indicator:        true,
	}
}

// normalized fills zero fields with defaults and applies the sensitivity multiplier to distances.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.TapSlop <= 0 {
		o.TapSlop = d.TapSlop
	}
	if o.TapMaxDuration <= 0 {
		o.TapMaxDuration = d.TapMaxDuration
	}
	if o.LongPressDelay <= 0 {
		o.LongPressDelay = d.LongPressDelay
	}
	if o.LongPressSlop <= 0 {
		o.LongPressSlop = d.LongPressSlop
	}
	if o.LongPressSlop < o.TapSlop {
		o.LongPressSlop = o.TapSlop
	}
	if o.DoubleTapWindow <= 0 {
		o.DoubleTapWindow = d.DoubleTapWindow
	}
	if o.SwipeMinDistance <= 0 {
		o.SwipeMinDistance = d.SwipeMinDistance
	}
	if o.SwipeMaxDuration <= 0 {
		o.SwipeMaxDuration = d.SwipeMaxDuration
	}
	if o.MinMoveInterval < 0 {
		o.MinMoveInterval = 0
	}
	if o.MinMoveDelta < 0 {
		o.MinMoveDelta = 0
	}
	switch {
	case o.Sensitivity <= 0:
		o.Sensitivity = 1
	case o.Sensitivity < 0.1:
		o.Sensitivity = 0.1
	case o.Sensitivity > 3:
		o.Sensitivity = 3
	}
	o.TapSlop /= o.Sensitivity
	o.LongPressSlop /= o.Sensitivity
	o.SwipeMinDistance /= o.Sensitivity
	return o
}
