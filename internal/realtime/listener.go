package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/adpulse/adpulse/internal/logging"
	"github.com/adpulse/adpulse/internal/store"
)

// ChannelName is the pg_notify channel bridging mutations to the hub.
const ChannelName = "adpulse_events"

// Publish sends an entity event through Postgres so every server instance's
// hub picks it up, not just the one that handled the mutation.
func Publish(ctx context.Context, st *store.Store, ev Event) {
	if err := st.Notify(ctx, ChannelName, ev); err != nil {
		logging.L().Warn("failed to publish realtime event", "event", ev.Event, "error", err)
	}
}

// StartListener subscribes to the pg_notify channel and forwards payloads to
// the hub until ctx is cancelled.
func StartListener(ctx context.Context, databaseURL string, hub *Hub) error {
	listener := pq.NewListener(databaseURL, 5*time.Second, time.Minute, func(event pq.ListenerEventType, err error) {
		if err != nil {
			logging.L().Warn("realtime listener event", "event", event, "error", err)
		}
	})

	if err := listener.Listen(ChannelName); err != nil {
		return err
	}

	go func() {
		defer func() {
			_ = listener.Close()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case n := <-listener.Notify:
				if n == nil {
					continue
				}
				var ev Event
				if err := json.Unmarshal([]byte(n.Extra), &ev); err != nil {
					logging.L().Warn("unparseable realtime notification", "error", err)
					continue
				}
				hub.BroadcastEvent(ev)
			case <-time.After(time.Minute):
				if err := listener.Ping(); err != nil {
					logging.L().Warn("realtime listener ping failed", "error", err)
				}
			}
		}
	}()

	return nil
}
