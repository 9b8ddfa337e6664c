package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/frudas24/touchmirror/internal/transport"
)

// outbox feeds one connection's writer goroutine. It holds a single envelope, counting
// the one being written, so callers never wait on the transport.
type outbox struct {
	busy atomic.Bool
	slot chan transport.Message
}

// newOutbox returns an empty outbox.
func newOutbox() *outbox {
	return &outbox{slot: make(chan transport.Message, 1)}
}

// offer hands m to the writer and reports false when an envelope is already pending or in flight.
func (o *outbox) offer(m transport.Message) bool {
	if !o.busy.CompareAndSwap(false, true) {
		return false
	}
	// busy guarantees the slot is empty.
	o.slot <- m
	return true
}

// run writes offered envelopes to conn, each bounded by timeout, until ctx ends.
func (o *outbox) run(ctx context.Context, conn transport.Conn, timeout time.Duration, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-o.slot:
			wctx, cancel := context.WithTimeout(ctx, timeout)
			err := conn.Write(wctx, m)
			cancel()
			o.busy.Store(false)
			if err != nil && ctx.Err() == nil {
				log.Debug("session: send dropped", "err", err)
			}
		}
	}
}
