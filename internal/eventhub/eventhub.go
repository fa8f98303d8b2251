// Package eventhub provides the pub/sub bus that decouples message arrival
// from the consumers that react to it.
package eventhub

import (
	"log/slog"
	"sync"

	"github.com/adpulse/adpulse/internal/logging"
)

// Handler receives the event payload. Handlers run synchronously on the
// emitting goroutine, in registration order.
type Handler func(data any)

type registration struct {
	id int64
	fn Handler
}

// Hub is a general-purpose event bus. Construct one per application root
// with New and hand it to producers and consumers; there is no package-level
// instance.
type Hub struct {
	mu        sync.Mutex
	nextID    int64
	listeners map[string][]registration
	logger    *slog.Logger
}

// New creates an empty hub. A nil logger falls back to the shared
// application logger.
func New(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	return &Hub{
		listeners: make(map[string][]registration),
		logger:    logger,
	}
}

// On registers a handler for the named event and returns a token that
// removes exactly this registration when passed to Off.
func (h *Hub) On(event string, fn Handler) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.listeners[event] = append(h.listeners[event], registration{id: id, fn: fn})
	return id
}

// Once registers a handler that removes itself after its first invocation.
func (h *Hub) Once(event string, fn Handler) int64 {
	var id int64
	var once sync.Once
	id = h.On(event, func(data any) {
		once.Do(func() {
			h.Off(event, id)
			fn(data)
		})
	})
	return id
}

// Off removes the registration identified by id. Unknown ids are a no-op.
func (h *Hub) Off(event string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	regs := h.listeners[event]
	for i, reg := range regs {
		if reg.id == id {
			h.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			break
		}
	}
	if len(h.listeners[event]) == 0 {
		delete(h.listeners, event)
	}
}

// Emit invokes every handler currently registered for the event. A panic in
// one handler is logged and does not prevent delivery to the rest.
func (h *Hub) Emit(event string, data any) {
	h.mu.Lock()
	regs := make([]registration, len(h.listeners[event]))
	copy(regs, h.listeners[event])
	h.mu.Unlock()

	for _, reg := range regs {
		h.invoke(event, reg, data)
	}
}

func (h *Hub) invoke(event string, reg registration, data any) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("event handler panicked",
				"event", event,
				"listener_id", reg.id,
				"panic", r,
			)
		}
	}()
	reg.fn(data)
}

// ListenerCount returns the number of handlers registered for the event.
func (h *Hub) ListenerCount(event string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners[event])
}
