// Package testutil provides fakes shared by package tests.
package testutil

import (
	"sync"

	"github.com/frudas24/touchmirror/internal/wininput"
)

// Call records a single injected action.
type Call struct {
	Name    string
	X       int
	Y       int
	Notches int
}

// FakeInjector implements wininput.Injector and records calls for tests.
type FakeInjector struct {
	mu    sync.Mutex
	calls []Call
}

var _ wininput.Injector = (*FakeInjector)(nil)

// MoveAbs records an absolute move.
func (f *FakeInjector) MoveAbs(x, y int) error {
	f.record(Call{Name: "MoveAbs", X: x, Y: y})
	return nil
}

// LeftDown records a left button press.
func (f *FakeInjector) LeftDown() error {
	f.record(Call{Name: "LeftDown"})
	return nil
}

// LeftUp records a left button release.
func (f *FakeInjector) LeftUp() error {
	f.record(Call{Name: "LeftUp"})
	return nil
}

// ClickAt records a click at a position.
func (f *FakeInjector) ClickAt(x, y int) error {
	f.record(Call{Name: "ClickAt", X: x, Y: y})
	return nil
}

// Zoom records a Ctrl+wheel zoom.
func (f *FakeInjector) Zoom(notches int) error {
	f.record(Call{Name: "Zoom", Notches: notches})
	return nil
}

// Calls returns a copy of the recorded calls.
func (f *FakeInjector) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Names returns the recorded call names in order.
func (f *FakeInjector) Names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Name)
	}
	return out
}

// record appends one call.
func (f *FakeInjector) record(c Call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}
