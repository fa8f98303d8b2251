package rtclient

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/adpulse/adpulse/internal/wire"
)

// ackTracker correlates outbound critical sends with inbound acknowledge
// frames. Each id has at most one live entry; the entry is removed under
// lock on whichever of ack or timeout happens first, so the losing path is
// a guaranteed no-op and a stray late ack cannot resolve twice.
type ackTracker struct {
	nextID int64

	mu      sync.Mutex
	pending map[int64]chan struct{}
}

func newAckTracker() *ackTracker {
	return &ackTracker{pending: make(map[int64]chan struct{})}
}

func (t *ackTracker) add() (int64, chan struct{}) {
	id := atomic.AddInt64(&t.nextID, 1)
	ch := make(chan struct{}, 1)
	t.mu.Lock()
	t.pending[id] = ch
	t.mu.Unlock()
	return id, ch
}

// take removes and returns the channel for id, if still live.
func (t *ackTracker) take(id int64) (chan struct{}, bool) {
	t.mu.Lock()
	ch, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()
	return ch, ok
}

// resolve signals the waiter for id. Unknown or already-resolved ids are
// ignored.
func (t *ackTracker) resolve(id int64) {
	if ch, ok := t.take(id); ok {
		ch <- struct{}{}
	}
}

func (t *ackTracker) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// RequestAcknowledgment sends an event with `_ack` metadata attached and
// waits for the matching acknowledge frame. It fails soft: false is returned
// immediately when acknowledgments are disabled or no connection is open,
// and false after AckTimeout otherwise. It never returns an error to the
// caller and resolves exactly once per id.
func (c *Client) RequestAcknowledgment(ctx context.Context, event string, payload map[string]any) bool {
	if !c.opts.AckEnabled || !c.IsConnected() {
		return false
	}

	id, ch := c.acks.add()

	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["_ack"] = wire.AckRequest{ID: id, Event: event}

	raw, err := json.Marshal(body)
	if err != nil {
		c.acks.take(id)
		c.logger.Warn("failed to marshal acknowledged send", "event", event, "error", err)
		return false
	}

	if err := c.send(wire.Envelope{Event: event, Payload: raw}); err != nil {
		c.acks.take(id)
		c.logger.Warn("acknowledged send failed", "event", event, "error", err)
		return false
	}

	timeout := time.NewTimer(c.opts.AckTimeout)
	defer timeout.Stop()

	select {
	case <-ch:
		return true
	case <-timeout.C:
		c.acks.take(id)
		c.logger.Debug("acknowledgment timed out", "event", event, "id", id)
		return false
	case <-ctx.Done():
		c.acks.take(id)
		return false
	}
}
