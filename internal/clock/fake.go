// Package clock abstracts time so timers can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// FakeClock is a manually advanced Clock. Callbacks fire synchronously inside Advance.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	changed *sync.Cond
}

type waiter struct {
	deadline time.Time
	interval time.Duration
	ch       chan time.Time
	fn       func()
	stopped  bool
	fired    bool
}

var _ Clock = (*FakeClock)(nil)

// NewFake returns a FakeClock starting at initial.
func NewFake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// Now returns the fake current time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After returns a channel that receives once the clock is advanced past d.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.addLocked(&waiter{deadline: c.now.Add(d), ch: ch})
	return ch
}

// AfterFunc schedules f to run when the clock is advanced past d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) *Timer {
	c.mu.Lock()
	w := &waiter{deadline: c.now.Add(d), fn: f}
	if d <= 0 {
		w.fired = true
		c.mu.Unlock()
		f()
		return &Timer{stop: func() bool { return false }}
	}
	c.addLocked(w)
	c.mu.Unlock()
	return &Timer{stop: func() bool { return c.stopWaiter(w) }}
}

// NewTicker returns a ticker that ticks each time the clock crosses an interval boundary.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan time.Time, 1)
	w := &waiter{deadline: c.now.Add(d), interval: d, ch: ch}
	c.addLocked(w)
	return &Ticker{C: ch, stop: func() { c.stopWaiter(w) }}
}

// Advance moves the clock forward and fires every waiter whose deadline has passed, in deadline order.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		due := c.collectDue(target)
		if len(due) == 0 {
			return
		}
		for _, w := range due {
			if w.fn != nil {
				w.fn()
				continue
			}
			select {
			case w.ch <- target:
			default:
			}
		}
	}
}

// PendingCount reports how many timers, tickers and After channels are still armed.
func (c *FakeClock) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

// WaitForTimers blocks until at least n waiters are armed.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.pendingLocked() < n {
		c.changed.Wait()
	}
}

// addLocked registers a waiter and wakes WaitForTimers callers.
func (c *FakeClock) addLocked(w *waiter) {
	c.waiters = append(c.waiters, w)
	c.changed.Broadcast()
}

// stopWaiter marks a waiter stopped and reports whether it was still armed.
func (c *FakeClock) stopWaiter(w *waiter) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w.stopped || w.fired {
		return false
	}
	w.stopped = true
	return true
}

// collectDue removes expired one-shot waiters, reschedules tickers and returns what must fire.
func (c *FakeClock) collectDue(target time.Time) []*waiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	var due, keep []*waiter
	for _, w := range c.waiters {
		switch {
		case w.stopped:
		case w.deadline.After(target):
			keep = append(keep, w)
		default:
			due = append(due, w)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		if w.interval > 0 {
			w.deadline = w.deadline.Add(w.interval)
			keep = append(keep, w)
			continue
		}
		w.fired = true
	}
	c.waiters = keep
	return due
}

// pendingLocked counts armed waiters.
func (c *FakeClock) pendingLocked() int {
	n := 0
	for _, w := range c.waiters {
		if !w.stopped && !w.fired {
			n++
		}
	}
	return n
}
