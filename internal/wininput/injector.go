// Package wininput injects pointer input on the peer host.
package wininput

// Injector is the input surface the peer drives from touch envelopes. Coordinates are screen pixels.
type Injector interface {
	MoveAbs(x, y int) error
	LeftDown() error
	LeftUp() error
	ClickAt(x, y int) error
	// Zoom sends Ctrl+wheel notches; positive zooms in.
	Zoom(notches int) error
}
