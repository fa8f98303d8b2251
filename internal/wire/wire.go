// Package wire defines the JSON frame shapes exchanged over the real-time
// socket. Both the server hub and the client SDK speak these types, so the
// two sides cannot drift apart.
package wire

import (
	"encoding/json"
	"time"
)

// EntityType enumerates the resource kinds a client may subscribe to.
type EntityType string

const (
	EntityCampaign     EntityType = "campaign"
	EntitySegment      EntityType = "segment"
	EntityCandidate    EntityType = "candidate"
	EntityJobOpening   EntityType = "job_opening"
	EntityNotification EntityType = "notification"
)

// Valid reports whether t is one of the known entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityCampaign, EntitySegment, EntityCandidate, EntityJobOpening, EntityNotification:
		return true
	}
	return false
}

// AckRequest is the `_ack` metadata a sender attaches when it wants the
// receiver to confirm delivery.
type AckRequest struct {
	ID    int64  `json:"id"`
	Event string `json:"event"`
}

// Envelope is the superset of all inbound frame shapes: heartbeat frames use
// Type/Timestamp, acknowledgments use Event/Payload, batches use
// Type/Messages, and everything else is an event message.
type Envelope struct {
	Type              string            `json:"type,omitempty"`
	Event             string            `json:"event,omitempty"`
	Timestamp         int64             `json:"timestamp,omitempty"`
	Payload           json.RawMessage   `json:"payload,omitempty"`
	Messages          []json.RawMessage `json:"messages,omitempty"`
	Compressed        bool              `json:"compressed,omitempty"`
	DecompressionTime float64           `json:"decompression_time,omitempty"`
	Ack               *AckRequest       `json:"_ack,omitempty"`
}

// AckPayload is the payload of an acknowledge frame.
type AckPayload struct {
	ID int64 `json:"id"`
}

// FrameKind tags the result of classifying an inbound frame.
type FrameKind int

const (
	// FrameRaw marks a frame that did not parse as JSON. It is still
	// delivered to consumers as a raw message rather than dropped.
	FrameRaw FrameKind = iota
	FramePing
	FramePong
	FrameAck
	FrameBatch
	FrameMessage
)

// Frame is a classified inbound frame.
type Frame struct {
	Kind FrameKind
	Env  Envelope
	// AckID is set when Kind == FrameAck.
	AckID int64
	// Raw always holds the original bytes.
	Raw []byte
}

// Classify parses and tags one inbound frame. Unparseable input yields a
// FrameRaw frame, never an error.
func Classify(data []byte) Frame {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Frame{Kind: FrameRaw, Raw: data}
	}

	switch {
	case env.Type == "ping":
		return Frame{Kind: FramePing, Env: env, Raw: data}
	case env.Type == "pong":
		return Frame{Kind: FramePong, Env: env, Raw: data}
	case env.Event == "acknowledge":
		var p AckPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Frame{Kind: FrameRaw, Raw: data}
		}
		return Frame{Kind: FrameAck, Env: env, AckID: p.ID, Raw: data}
	case env.Type == "batch":
		return Frame{Kind: FrameBatch, Env: env, Raw: data}
	}
	return Frame{Kind: FrameMessage, Env: env, Raw: data}
}

// Control is an outbound subscription control message.
type Control struct {
	Type       string     `json:"type"`
	EntityType EntityType `json:"entity_type,omitempty"`
	EntityID   string     `json:"entity_id,omitempty"`
}

// Subscribe builds a subscribe control message.
func Subscribe(entityType EntityType, entityID string) Control {
	return Control{Type: "subscribe", EntityType: entityType, EntityID: entityID}
}

// Unsubscribe builds an unsubscribe control message.
func Unsubscribe(entityType EntityType, entityID string) Control {
	return Control{Type: "unsubscribe", EntityType: entityType, EntityID: entityID}
}

// UnsubscribeAll builds the single-shot unsubscribe-everything message.
func UnsubscribeAll() Control {
	return Control{Type: "unsubscribe_all"}
}

// Heartbeat is a ping or pong frame.
type Heartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Ping builds a ping frame stamped with the current time in milliseconds.
func Ping(now time.Time) Heartbeat {
	return Heartbeat{Type: "ping", Timestamp: now.UnixMilli()}
}

// Pong builds the reply to a ping, echoing its timestamp.
func Pong(timestamp int64) Heartbeat {
	return Heartbeat{Type: "pong", Timestamp: timestamp}
}

// AckReply builds the acknowledge frame confirming receipt of message id.
func AckReply(id int64) Envelope {
	payload, _ := json.Marshal(AckPayload{ID: id})
	return Envelope{Event: "acknowledge", Payload: payload}
}

// ClientStats is the periodic client-side telemetry frame.
type ClientStats struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewClientStats wraps a telemetry payload into a client_stats frame.
func NewClientStats(payload any) (ClientStats, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return ClientStats{}, err
	}
	return ClientStats{Type: "client_stats", Payload: data}, nil
}

// TokenResponse is the body returned by the credential refresh endpoint.
type TokenResponse struct {
	Status      string   `json:"status"`
	Token       string   `json:"token"`
	ExpiresIn   int64    `json:"expires_in"`
	Permissions []string `json:"permissions"`
}
