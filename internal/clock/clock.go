// Package clock abstracts time so timers can be driven deterministically in tests.
package clock

import "time"

// Clock is the subset of the time package used by gesture timers, liveness probes and reconnect backoff.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) *Timer
	NewTicker(d time.Duration) *Ticker
}

// Timer is a cancellable pending callback or channel delivery.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop cancels the timer. Stopping a fired or stopped timer is a no-op that returns false.
func (t *Timer) Stop() bool {
	if t == nil || t.stop == nil {
		return false
	}
	return t.stop()
}

// Ticker delivers ticks on C at a fixed interval.
type Ticker struct {
	C <-chan time.Time

	stop func()
}

// Stop halts the ticker.
func (t *Ticker) Stop() {
	if t != nil && t.stop != nil {
		t.stop()
	}
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

// Now returns time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// After wraps time.After.
func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// AfterFunc wraps time.AfterFunc.
func (realClock) AfterFunc(d time.Duration, f func()) *Timer {
	t := time.AfterFunc(d, f)
	return &Timer{stop: t.Stop}
}

// NewTicker wraps time.NewTicker.
func (realClock) NewTicker(d time.Duration) *Ticker {
	t := time.NewTicker(d)
	return &Ticker{C: t.C, stop: t.Stop}
}
