// Package realtime is the server side of the live-update socket: a hub
// fanning entity events out to connected dashboards, fed by Postgres
// LISTEN/NOTIFY.
package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/adpulse/adpulse/internal/logging"
	"github.com/adpulse/adpulse/internal/wire"
)

// Event is one entity update pushed to subscribed clients. Events without an
// entity target go to every connected client.
type Event struct {
	Event      string          `json:"event"`
	EntityType wire.EntityType `json:"entity_type,omitempty"`
	EntityID   string          `json:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	event Event
	data  []byte
}

type Hub struct {
	register    chan *Client
	unregister  chan *Client
	broadcast   chan outbound
	clientCount chan chan int
	clients     map[*Client]struct{}
	logger      *slog.Logger

	nextAckID atomic.Int64
	ackMu     sync.Mutex
	// pendingAcks maps ack id to the event name awaiting confirmation.
	pendingAcks map[int64]string
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = logging.L()
	}
	h := &Hub{
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan outbound, 512),
		clientCount: make(chan chan int),
		clients:     make(map[*Client]struct{}),
		logger:      logger,
		pendingAcks: make(map[int64]string),
	}

	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				_ = client.conn.Close()
			}
		case out := <-h.broadcast:
			for client := range h.clients {
				if !client.wants(out.event) {
					continue
				}
				select {
				case client.send <- out.data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
		case response := <-h.clientCount:
			response <- len(h.clients)
		}
	}
}

// BroadcastEvent queues an event for delivery to subscribed clients. A full
// queue drops the event rather than blocking the producer.
func (h *Hub) BroadcastEvent(ev Event) {
	env := wire.Envelope{Event: ev.Event, Payload: ev.Payload}
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("failed to marshal realtime event", "event", ev.Event, "error", err)
		return
	}
	select {
	case h.broadcast <- outbound{event: ev, data: data}:
	default:
		h.logger.Warn("dropping realtime event", "event", ev.Event, "reason", "slow consumers")
	}
}

// BroadcastEventWithAck tags the event with an `_ack` request so receiving
// clients confirm delivery, and returns the ack id.
func (h *Hub) BroadcastEventWithAck(ev Event) int64 {
	id := h.nextAckID.Add(1)

	env := wire.Envelope{
		Event:   ev.Event,
		Payload: ev.Payload,
		Ack:     &wire.AckRequest{ID: id, Event: ev.Event},
	}
	data, err := json.Marshal(env)
	if err != nil {
		h.logger.Warn("failed to marshal realtime event", "event", ev.Event, "error", err)
		return id
	}

	h.ackMu.Lock()
	h.pendingAcks[id] = ev.Event
	h.ackMu.Unlock()

	select {
	case h.broadcast <- outbound{event: ev, data: data}:
	default:
		h.logger.Warn("dropping realtime event", "event", ev.Event, "reason", "slow consumers")
	}
	return id
}

// ackReceived resolves one pending ack. Unknown ids were already resolved by
// another client or expired; both are normal.
func (h *Hub) ackReceived(id int64) {
	h.ackMu.Lock()
	event, ok := h.pendingAcks[id]
	if ok {
		delete(h.pendingAcks, id)
	}
	h.ackMu.Unlock()

	if ok {
		h.logger.Debug("delivery acknowledged", "ack_id", id, "event", event)
	}
}

// PendingAckCount returns how many pushed events still await confirmation.
func (h *Hub) PendingAckCount() int {
	h.ackMu.Lock()
	defer h.ackMu.Unlock()
	return len(h.pendingAcks)
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	response := make(chan int)
	h.clientCount <- response
	return <-response
}

// Handler upgrades the request and runs the client pumps until disconnect.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		client := newClient(h, conn)

		h.register <- client

		go client.writePump()
		client.readPump()
	})
}

type pingTicker interface {
	C() <-chan time.Time
	Stop()
}

type realPingTicker struct {
	*time.Ticker
}

func (t *realPingTicker) C() <-chan time.Time {
	return t.Ticker.C
}

var pingTickerFactory = func() pingTicker {
	return &realPingTicker{time.NewTicker(30 * time.Second)}
}
