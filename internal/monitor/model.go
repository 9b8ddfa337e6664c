// Package monitor describes display geometry and enumeration.
package monitor

import (
	"errors"

	"github.com/frudas24/touchmirror/internal/calib"
	"github.com/frudas24/touchmirror/internal/geometry"
)

// ErrUnsupported is returned where monitors cannot be enumerated.
var ErrUnsupported = errors.New("monitor: enumeration is only supported on Windows")

// Monitor describes a display and its bounds on the virtual desktop.
type Monitor struct {
	Index   int  `json:"index"`
	X       int  `json:"x"`
	Y       int  `json:"y"`
	W       int  `json:"w"`
	H       int  `json:"h"`
	Primary bool `json:"primary"`
}

// Size returns the monitor extent.
func (m Monitor) Size() geometry.Size {
	return geometry.Size{W: m.W, H: m.H}
}

// Rect returns the monitor bounds as a calibration rectangle.
func (m Monitor) Rect() calib.Rect {
	return calib.Rect{X: m.X, Y: m.Y, W: m.W, H: m.H}
}

// GetMonitorByIndex returns the monitor matching the 1-based index.
func GetMonitorByIndex(list []Monitor, idx int) (Monitor, bool) {
	for _, m := range list {
		if m.Index == idx {
			return m, true
		}
	}
	return Monitor{}, false
}

// PrimaryOf returns the primary monitor, or the first one when none is flagged.
func PrimaryOf(list []Monitor) (Monitor, bool) {
	for _, m := range list {
		if m.Primary {
			return m, true
		}
	}
	if len(list) > 0 {
		return list[0], true
	}
	return Monitor{}, false
}

// Select returns the monitor at idx, falling back to the primary one.
func Select(list []Monitor, idx int) (Monitor, bool) {
	if m, ok := GetMonitorByIndex(list, idx); ok {
		return m, true
	}
	return PrimaryOf(list)
}

// Fallback returns a single synthetic monitor of the given size, used where enumeration is unsupported.
func Fallback(size geometry.Size) []Monitor {
	return []Monitor{{Index: 1, W: size.W, H: size.H, Primary: true}}
}
