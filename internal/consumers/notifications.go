// Package consumers holds the stateful subscribers that sit on the event hub
// and turn the real-time stream into queryable local state: the notification
// badge and the dashboard metrics view.
package consumers

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/adpulse/adpulse/internal/eventhub"
	"github.com/adpulse/adpulse/internal/logging"
)

// Event names the notification consumer reacts to.
const (
	EventNotificationCreated = "notification_created"
	EventNotificationRead    = "notification_read"
	EventNotificationsSync   = "notifications_sync"
	EventNotificationsClear  = "notifications_cleared"
)

// notificationEvent is the payload shape shared by notification events. Sync
// frames carry the authoritative unread count; create/read frames carry the
// notification id.
type notificationEvent struct {
	ID          string `json:"id"`
	UnreadCount *int   `json:"unread_count,omitempty"`
}

// NotificationBadge tracks the unread-notification count from create, read,
// clear and sync events. It is constructed against a hub and detaches from it
// on Close.
type NotificationBadge struct {
	hub    *eventhub.Hub
	logger *slog.Logger

	mu     sync.Mutex
	unread int
	tokens map[string]int64

	onChange func(unread int)
}

// NewNotificationBadge registers the badge on the hub. onChange, when not
// nil, is invoked after every count change with the new value.
func NewNotificationBadge(hub *eventhub.Hub, logger *slog.Logger, onChange func(unread int)) *NotificationBadge {
	if logger == nil {
		logger = logging.L()
	}
	b := &NotificationBadge{
		hub:      hub,
		logger:   logger,
		tokens:   make(map[string]int64),
		onChange: onChange,
	}
	b.tokens[EventNotificationCreated] = hub.On(EventNotificationCreated, b.handleCreated)
	b.tokens[EventNotificationRead] = hub.On(EventNotificationRead, b.handleRead)
	b.tokens[EventNotificationsSync] = hub.On(EventNotificationsSync, b.handleSync)
	b.tokens[EventNotificationsClear] = hub.On(EventNotificationsClear, b.handleClear)
	return b
}

// Unread returns the current unread count.
func (b *NotificationBadge) Unread() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unread
}

// Close detaches the badge from the hub. Further events are ignored.
func (b *NotificationBadge) Close() {
	for event, id := range b.tokens {
		b.hub.Off(event, id)
	}
}

func (b *NotificationBadge) handleCreated(data any) {
	if _, ok := decodeEvent[notificationEvent](data); !ok {
		b.logger.Warn("malformed notification_created payload")
		return
	}
	b.apply(func(unread int) int { return unread + 1 })
}

func (b *NotificationBadge) handleRead(data any) {
	if _, ok := decodeEvent[notificationEvent](data); !ok {
		b.logger.Warn("malformed notification_read payload")
		return
	}
	b.apply(func(unread int) int {
		if unread == 0 {
			return 0
		}
		return unread - 1
	})
}

func (b *NotificationBadge) handleSync(data any) {
	ev, ok := decodeEvent[notificationEvent](data)
	if !ok || ev.UnreadCount == nil {
		b.logger.Warn("notifications_sync without unread_count")
		return
	}
	count := *ev.UnreadCount
	if count < 0 {
		count = 0
	}
	b.apply(func(int) int { return count })
}

func (b *NotificationBadge) handleClear(any) {
	b.apply(func(int) int { return 0 })
}

func (b *NotificationBadge) apply(fn func(int) int) {
	b.mu.Lock()
	prev := b.unread
	b.unread = fn(b.unread)
	next := b.unread
	b.mu.Unlock()

	if next != prev && b.onChange != nil {
		b.onChange(next)
	}
}

// decodeEvent accepts the payload forms the router emits: a typed value, raw
// JSON bytes, or a json.RawMessage.
func decodeEvent[T any](data any) (T, bool) {
	var out T
	switch v := data.(type) {
	case T:
		return v, true
	case json.RawMessage:
		if len(v) == 0 {
			return out, true
		}
		if err := json.Unmarshal(v, &out); err != nil {
			return out, false
		}
		return out, true
	case []byte:
		if len(v) == 0 {
			return out, true
		}
		if err := json.Unmarshal(v, &out); err != nil {
			return out, false
		}
		return out, true
	case nil:
		return out, true
	default:
		return out, false
	}
}
