package session

import (
	"runtime"
	"sync"

	"github.com/frudas24/touchmirror/internal/protocol"
)

// Inbox is a bounded FIFO of inbound envelopes. When full the oldest entry is dropped.
// At most one drain goroutine runs at a time, so the handler sees messages in order.
type Inbox struct {
	mu       sync.Mutex
	items    []protocol.Message
	capacity int
	running  bool
	dropped  int
	handle   func(protocol.Message)
}

// NewInbox returns an inbox that delivers to handle.
func NewInbox(capacity int, handle func(protocol.Message)) *Inbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Inbox{capacity: capacity, handle: handle}
}

// Push enqueues msg and starts the drain goroutine if it is idle.
func (b *Inbox) Push(msg protocol.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.capacity {
		b.items[0] = nil
		b.items = b.items[1:]
		b.dropped++
	}
	b.items = append(b.items, msg)
	if !b.running {
		b.running = true
		go b.drain()
	}
}

// Len returns the number of queued messages.
func (b *Inbox) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Dropped returns how many messages were discarded for capacity.
func (b *Inbox) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Clear discards queued messages without delivering them.
func (b *Inbox) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = nil
}

// drain delivers messages until the queue is empty, yielding between entries.
func (b *Inbox) drain() {
	for {
		b.mu.Lock()
		if len(b.items) == 0 {
			b.running = false
			b.mu.Unlock()
			return
		}
		msg := b.items[0]
		b.items[0] = nil
		b.items = b.items[1:]
		b.mu.Unlock()

		if b.handle != nil {
			b.handle(msg)
		}
		runtime.Gosched()
	}
}
