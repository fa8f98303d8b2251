package eventhub

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHub() *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEmitInvokesRegisteredHandlersInOrder(t *testing.T) {
	hub := newTestHub()

	var order []string
	hub.On("metrics", func(any) { order = append(order, "first") })
	hub.On("metrics", func(any) { order = append(order, "second") })

	hub.Emit("metrics", nil)

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestOffRemovesExactlyOneRegistration(t *testing.T) {
	hub := newTestHub()

	var a, b int
	idA := hub.On("notification", func(any) { a++ })
	hub.On("notification", func(any) { b++ })

	hub.Off("notification", idA)
	hub.Emit("notification", nil)

	assert.Equal(t, 0, a)
	assert.Equal(t, 1, b)
	assert.Equal(t, 1, hub.ListenerCount("notification"))
}

func TestOffUnknownIDIsNoOp(t *testing.T) {
	hub := newTestHub()
	hub.On("x", func(any) {})
	hub.Off("x", 999)
	hub.Off("never-registered", 1)
	assert.Equal(t, 1, hub.ListenerCount("x"))
}

func TestPanickingHandlerDoesNotBlockSiblings(t *testing.T) {
	hub := newTestHub()

	var delivered []int
	hub.On("metrics", func(any) { delivered = append(delivered, 1) })
	hub.On("metrics", func(any) { panic("bad subscriber") })
	hub.On("metrics", func(any) { delivered = append(delivered, 3) })

	hub.Emit("metrics", nil)

	assert.Equal(t, []int{1, 3}, delivered)
	// The panicking handler stays registered; emit does not mutate the set.
	assert.Equal(t, 3, hub.ListenerCount("metrics"))
}

func TestHandlerRemovingItselfDuringEmit(t *testing.T) {
	hub := newTestHub()

	var calls int
	var id int64
	id = hub.On("metrics", func(any) {
		calls++
		hub.Off("metrics", id)
	})

	hub.Emit("metrics", nil)
	hub.Emit("metrics", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.ListenerCount("metrics"))
}

func TestOnceFiresExactlyOnce(t *testing.T) {
	hub := newTestHub()

	var calls int
	hub.Once("connected", func(any) { calls++ })

	hub.Emit("connected", nil)
	hub.Emit("connected", nil)

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, hub.ListenerCount("connected"))
}

func TestEmitPassesPayloadThrough(t *testing.T) {
	hub := newTestHub()

	var got any
	hub.On("message", func(data any) { got = data })

	payload := map[string]int{"unread": 4}
	hub.Emit("message", payload)

	assert.Equal(t, payload, got)
}

func TestDistinctIDsAcrossEvents(t *testing.T) {
	hub := newTestHub()
	seen := map[int64]bool{}
	for _, ev := range []string{"a", "b", "a", "c"} {
		id := hub.On(ev, func(any) {})
		assert.False(t, seen[id], "listener id reused")
		seen[id] = true
	}
}
