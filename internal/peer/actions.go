// Package peer implements the reference device side: it accepts sessions, answers
// liveness probes and turns touch envelopes into injected pointer input.
package peer

import (
	"math"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/gesture"
	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/frudas24/touchmirror/internal/wininput"
)

const (
	zoomInRatio  = 1.25
	zoomOutRatio = 0.8
)

// ActionType identifies the kind of input action to execute.
type ActionType string

const (
	// ActMove moves the mouse cursor.
	ActMove ActionType = "move"
	// ActLeftDown presses the left mouse button.
	ActLeftDown ActionType = "left_down"
	// ActLeftUp releases the left mouse button.
	ActLeftUp ActionType = "left_up"
	// ActClick performs a click at a position.
	ActClick ActionType = "click"
	// ActZoom sends Ctrl+wheel notches.
	ActZoom ActionType = "zoom"
)

// Action describes one input operation in absolute screen coordinates.
type Action struct {
	Type    ActionType
	X       int
	Y       int
	Notches int
}

// Planner turns touch envelopes into input actions for one session.
// Touch coordinates are pixels relative to screen.
type Planner struct {
	screen     calib.Rect
	dragging   bool
	pinchScale float64
}

// NewPlanner returns a planner bound to the given screen bounds.
func NewPlanner(screen calib.Rect) *Planner {
	return &Planner{screen: calib.Normalize(screen)}
}

// SetScreen replaces the screen bounds used for new touches.
func (p *Planner) SetScreen(screen calib.Rect) {
	p.screen = calib.Normalize(screen)
}

// Dragging reports whether the button is currently held by a drag.
func (p *Planner) Dragging() bool {
	return p.dragging
}

// Plan returns the actions for t. Unknown actions plan nothing.
func (p *Planner) Plan(t protocol.Touch) []Action {
	x, y := p.abs(t.X, t.Y)
	switch gesture.Kind(t.Action) {
	case gesture.KindTap:
		return []Action{{Type: ActClick, X: x, Y: y}}
	case gesture.KindDoubleTap:
		return []Action{{Type: ActClick, X: x, Y: y}, {Type: ActClick, X: x, Y: y}}
	case gesture.KindLongPress:
		return []Action{{Type: ActMove, X: x, Y: y}, {Type: ActLeftDown, X: x, Y: y}, {Type: ActLeftUp, X: x, Y: y}}
	case gesture.KindDragStart:
		p.dragging = true
		return []Action{{Type: ActMove, X: x, Y: y}, {Type: ActLeftDown, X: x, Y: y}}
	case gesture.KindDragMove:
		if !p.dragging {
			return nil
		}
		return []Action{{Type: ActMove, X: x, Y: y}}
	case gesture.KindDragEnd:
		if !p.dragging {
			return nil
		}
		p.dragging = false
		return []Action{{Type: ActMove, X: x, Y: y}, {Type: ActLeftUp, X: x, Y: y}}
	case gesture.KindSwipe:
		return p.planSwipe(t, x, y)
	case gesture.KindPinchStart:
		p.pinchScale = 1
		return nil
	case gesture.KindPinchMove:
		return p.planPinch(t)
	case gesture.KindPinchEnd:
		p.pinchScale = 0
		return nil
	default:
		return nil
	}
}

// Release returns the actions that lift a held button, used when a session ends mid-drag.
func (p *Planner) Release() []Action {
	if !p.dragging {
		return nil
	}
	p.dragging = false
	return []Action{{Type: ActLeftUp}}
}

// planSwipe presses at the start point, moves along the swipe direction and releases.
func (p *Planner) planSwipe(t protocol.Touch, x, y int) []Action {
	if t.Gesture == nil {
		return []Action{{Type: ActClick, X: x, Y: y}}
	}
	dx, dy := directionVector(gesture.Direction(t.Gesture.Direction))
	dist := int(math.Round(t.Gesture.Distance))
	ex, ey := ClampPointToRect(p.screen, x+dx*dist, y+dy*dist)
	return []Action{
		{Type: ActMove, X: x, Y: y},
		{Type: ActLeftDown, X: x, Y: y},
		{Type: ActMove, X: (x + ex) / 2, Y: (y + ey) / 2},
		{Type: ActMove, X: ex, Y: ey},
		{Type: ActLeftUp, X: ex, Y: ey},
	}
}

// planPinch emits one zoom notch each time the scale moves a full step from the last notch.
func (p *Planner) planPinch(t protocol.Touch) []Action {
	if t.Gesture == nil || t.Gesture.Scale <= 0 {
		return nil
	}
	if p.pinchScale <= 0 {
		p.pinchScale = 1
	}
	ratio := t.Gesture.Scale / p.pinchScale
	switch {
	case ratio >= zoomInRatio:
		p.pinchScale = t.Gesture.Scale
		return []Action{{Type: ActZoom, Notches: 1}}
	case ratio <= zoomOutRatio:
		p.pinchScale = t.Gesture.Scale
		return []Action{{Type: ActZoom, Notches: -1}}
	default:
		return nil
	}
}

// abs converts screen-relative pixels to clamped virtual-desktop coordinates.
func (p *Planner) abs(x, y int) (int, int) {
	return ClampPointToRect(p.screen, p.screen.X+x, p.screen.Y+y)
}

// directionVector returns the unit step for a swipe direction.
func directionVector(d gesture.Direction) (int, int) {
	switch d {
	case gesture.DirUp:
		return 0, -1
	case gesture.DirDown:
		return 0, 1
	case gesture.DirLeft:
		return -1, 0
	case gesture.DirRight:
		return 1, 0
	default:
		return 0, 0
	}
}

// ClampPointToRect clamps (x,y) to stay inside rect.
func ClampPointToRect(rect calib.Rect, x, y int) (int, int) {
	rect = calib.Normalize(rect)
	if rect.W <= 0 || rect.H <= 0 {
		return x, y
	}
	maxX := rect.X + rect.W - 1
	maxY := rect.Y + rect.H - 1
	x = min(max(x, rect.X), maxX)
	y = min(max(y, rect.Y), maxY)
	return x, y
}

// Apply executes actions in order, stopping at the first injector error.
func Apply(inj wininput.Injector, actions []Action) error {
	for _, a := range actions {
		var err error
		switch a.Type {
		case ActMove:
			err = inj.MoveAbs(a.X, a.Y)
		case ActLeftDown:
			err = inj.LeftDown()
		case ActLeftUp:
			err = inj.LeftUp()
		case ActClick:
			err = inj.ClickAt(a.X, a.Y)
		case ActZoom:
			err = inj.Zoom(a.Notches)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
