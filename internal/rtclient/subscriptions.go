package rtclient

import (
	"fmt"
	"sort"
	"sync"

	"github.com/adpulse/adpulse/internal/wire"
)

type subKey struct {
	entityType wire.EntityType
	entityID   string
}

// subscriptionRegistry is the source of truth for which (entity-type, id)
// pairs the client wants updates for. Membership outlives connections by
// design: the set is retransmitted, not rebuilt, after every reconnect.
type subscriptionRegistry struct {
	mu  sync.Mutex
	set map[subKey]struct{}
}

func newSubscriptionRegistry() *subscriptionRegistry {
	return &subscriptionRegistry{set: make(map[subKey]struct{})}
}

// add returns false when the pair was already tracked.
func (r *subscriptionRegistry) add(key subKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.set[key]; exists {
		return false
	}
	r.set[key] = struct{}{}
	return true
}

func (r *subscriptionRegistry) remove(key subKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.set[key]; !exists {
		return false
	}
	delete(r.set, key)
	return true
}

func (r *subscriptionRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.set = make(map[subKey]struct{})
}

func (r *subscriptionRegistry) snapshot() []subKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]subKey, 0, len(r.set))
	for key := range r.set {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].entityType != keys[j].entityType {
			return keys[i].entityType < keys[j].entityType
		}
		return keys[i].entityID < keys[j].entityID
	})
	return keys
}

// replay re-sends subscribe frames for every tracked pair. Called after each
// successful connect.
func (r *subscriptionRegistry) replay(c *Client) {
	keys := r.snapshot()
	for _, key := range keys {
		if err := c.send(wire.Subscribe(key.entityType, key.entityID)); err != nil {
			c.logger.Warn("subscription replay failed",
				"entity_type", key.entityType,
				"entity_id", key.entityID,
				"error", err,
			)
		}
	}
	if len(keys) > 0 {
		c.logger.Info("replayed entity subscriptions", "count", len(keys))
	}
}

// SubscribeToEntity registers interest in updates for one entity. Duplicate
// subscriptions are a no-op. When not yet connected the request is queued in
// the registry and sent once the connection opens, rather than failing.
func (c *Client) SubscribeToEntity(entityType wire.EntityType, entityID string) error {
	if !entityType.Valid() {
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	key := subKey{entityType: entityType, entityID: entityID}
	if !c.subs.add(key) {
		return nil
	}

	if !c.IsConnected() {
		c.logger.Debug("queued subscription until connected",
			"entity_type", entityType, "entity_id", entityID)
		return nil
	}
	if err := c.send(wire.Subscribe(entityType, entityID)); err != nil {
		// Keep the registry entry: it will be replayed on reconnect.
		c.logger.Warn("subscribe send failed", "entity_type", entityType, "error", err)
	}
	return nil
}

// UnsubscribeFromEntity stops updates for one entity.
func (c *Client) UnsubscribeFromEntity(entityType wire.EntityType, entityID string) error {
	if !entityType.Valid() {
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	key := subKey{entityType: entityType, entityID: entityID}
	if !c.subs.remove(key) {
		return nil
	}
	if !c.IsConnected() {
		return nil
	}
	if err := c.send(wire.Unsubscribe(entityType, entityID)); err != nil {
		c.logger.Warn("unsubscribe send failed", "entity_type", entityType, "error", err)
	}
	return nil
}

// UnsubscribeAll clears local membership outright and, when connected, tells
// the server in a single request instead of one per entity.
func (c *Client) UnsubscribeAll() {
	c.subs.clear()
	if !c.IsConnected() {
		return
	}
	if err := c.send(wire.UnsubscribeAll()); err != nil {
		c.logger.Warn("unsubscribe_all send failed", "error", err)
	}
}

// Subscriptions returns the currently tracked (entity-type, id) pairs.
func (c *Client) Subscriptions() []wire.Control {
	keys := c.subs.snapshot()
	out := make([]wire.Control, 0, len(keys))
	for _, key := range keys {
		out = append(out, wire.Subscribe(key.entityType, key.entityID))
	}
	return out
}
