package realtime

import (
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/v3/websocket"

	"github.com/adpulse/adpulse/internal/wire"
)

type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type subKey struct {
	entityType wire.EntityType
	entityID   string
}

// Client is one connected dashboard socket. Its subscription set is mutated
// only from its own read pump and read by the hub's broadcast loop.
type Client struct {
	hub  *Hub
	conn wsConn
	send chan []byte

	mu   sync.Mutex
	subs map[subKey]struct{}
}

func newClient(h *Hub, conn wsConn) *Client {
	return &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 512),
		subs: make(map[subKey]struct{}),
	}
}

// wants reports whether this client should receive the event. Untargeted
// events go to everyone.
func (c *Client) wants(ev Event) bool {
	if ev.EntityType == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[subKey{entityType: ev.EntityType, entityID: ev.EntityID}]
	return ok
}

func (c *Client) subscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// inboundFrame is the superset of everything a client may send us.
type inboundFrame struct {
	Type       string          `json:"type"`
	Event      string          `json:"event"`
	EntityType wire.EntityType `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Timestamp  int64           `json:"timestamp"`
	Payload    json.RawMessage `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.hub.logger.Warn("ignoring unparseable client frame", "size", len(data))
		return
	}

	switch {
	case frame.Type == "subscribe":
		if !frame.EntityType.Valid() {
			c.hub.logger.Warn("subscribe for unknown entity type", "entity_type", frame.EntityType)
			return
		}
		c.mu.Lock()
		c.subs[subKey{entityType: frame.EntityType, entityID: frame.EntityID}] = struct{}{}
		c.mu.Unlock()

	case frame.Type == "unsubscribe":
		c.mu.Lock()
		delete(c.subs, subKey{entityType: frame.EntityType, entityID: frame.EntityID})
		c.mu.Unlock()

	case frame.Type == "unsubscribe_all":
		c.mu.Lock()
		c.subs = make(map[subKey]struct{})
		c.mu.Unlock()

	case frame.Type == "ping":
		c.enqueue(wire.Pong(frame.Timestamp))

	case frame.Type == "client_stats":
		c.hub.logger.Info("client telemetry", "payload", string(frame.Payload))

	case frame.Event == "acknowledge":
		var p wire.AckPayload
		if err := json.Unmarshal(frame.Payload, &p); err != nil {
			c.hub.logger.Warn("acknowledge frame without id")
			return
		}
		c.hub.ackReceived(p.ID)
	}
}

// enqueue marshals and queues one frame for the write pump, dropping it when
// the client cannot keep up.
func (c *Client) enqueue(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) writePump() {
	ticker := pingTickerFactory()
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C():
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
