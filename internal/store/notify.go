package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notify publishes a JSON payload on a pg_notify channel. The realtime
// listener on the other side fans it out to connected sockets.
func (s *Store) Notify(ctx context.Context, channel string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal notify payload: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(data)); err != nil {
		return fmt.Errorf("pg_notify %s: %w", channel, err)
	}
	return nil
}
