package session

import (
	"sync"
	"testing"
	"time"

	"github.com/frudas24/touchmirror/internal/protocol"
	"github.com/google/go-cmp/cmp"
)

// TestInbox_DeliversInOrder verifies the single drainer preserves FIFO order.
func TestInbox_DeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int64
	done := make(chan struct{})
	inbox := NewInbox(200, func(m protocol.Message) {
		mu.Lock()
		got = append(got, m.(protocol.Ping).Timestamp)
		n := len(got)
		mu.Unlock()
		if n == 100 {
			close(done)
		}
	})
	want := make([]int64, 0, 100)
	for i := int64(0); i < 100; i++ {
		want = append(want, i)
		inbox.Push(protocol.Ping{Timestamp: i})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

// TestInbox_DropsOldestWhenFull verifies overflow discards the oldest queued entry.
func TestInbox_DropsOldestWhenFull(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})
	handled := make(chan int64, 8)
	inbox := NewInbox(2, func(m protocol.Message) {
		ts := m.(protocol.Ping).Timestamp
		if ts == 1 {
			close(started)
			<-gate
		}
		handled <- ts
	})

	inbox.Push(protocol.Ping{Timestamp: 1})
	<-started
	for ts := int64(2); ts <= 4; ts++ {
		inbox.Push(protocol.Ping{Timestamp: ts})
	}
	if inbox.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", inbox.Dropped())
	}
	close(gate)

	var got []int64
	for len(got) < 3 {
		select {
		case ts := <-handled:
			got = append(got, ts)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	if diff := cmp.Diff([]int64{1, 3, 4}, got); diff != "" {
		t.Fatalf("unexpected delivery (-want +got):\n%s", diff)
	}
}
