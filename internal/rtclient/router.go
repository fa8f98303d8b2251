package rtclient

import (
	"encoding/json"
	"time"

	"github.com/adpulse/adpulse/internal/wire"
)

// batchStats is the payload of the sampled client_stats telemetry frame.
type batchStats struct {
	BatchSize         int     `json:"batch_size"`
	ProcessingMillis  float64 `json:"processing_ms"`
	DecompressionTime float64 `json:"decompression_time,omitempty"`
}

// handleFrame classifies one inbound frame and routes it. Gen guards against
// frames surfacing after the connection they arrived on was replaced.
func (c *Client) handleFrame(gen int, data []byte) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.lastInbound = time.Now()
	c.mu.Unlock()

	frame := wire.Classify(data)
	switch frame.Kind {
	case wire.FramePing:
		// Server-initiated liveness probe; echo its timestamp back.
		if err := c.send(wire.Pong(frame.Env.Timestamp)); err != nil {
			c.logger.Debug("pong reply failed", "error", err)
		}
	case wire.FramePong:
		c.pongReceived()
	case wire.FrameAck:
		c.acks.resolve(frame.AckID)
	case wire.FrameBatch:
		c.handleBatch(frame.Env)
	case wire.FrameMessage:
		c.handleSingle(frame.Env)
	case wire.FrameRaw:
		// Unparseable frames are degraded, not dropped: consumers that
		// expect raw payloads still see them.
		c.logger.Warn("unparseable frame, delivering raw", "size", len(frame.Raw))
		c.hub.Emit(EventMessage, frame.Raw)
	}
}

// handleBatch processes sub-messages in array order, isolating failures so
// one malformed item cannot drop the rest of the batch. Processing time is
// occasionally reported back to the server as client_stats telemetry.
func (c *Client) handleBatch(env wire.Envelope) {
	started := time.Now()

	for i, raw := range env.Messages {
		var msg wire.Envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Error("failed to process batch message", "index", i, "error", err)
			continue
		}
		c.handleSingle(msg)
	}

	if c.randFloat() < c.opts.StatsSampleRate {
		c.reportBatchStats(batchStats{
			BatchSize:         len(env.Messages),
			ProcessingMillis:  float64(time.Since(started).Microseconds()) / 1000.0,
			DecompressionTime: env.DecompressionTime,
		})
	}
}

func (c *Client) reportBatchStats(stats batchStats) {
	frame, err := wire.NewClientStats(stats)
	if err != nil {
		return
	}
	if err := c.send(frame); err != nil {
		c.logger.Debug("client_stats report failed", "error", err)
	}
}

// handleSingle acknowledges `_ack`-tagged messages before dispatch, then
// publishes both a generic message event and the event named by the message
// itself.
func (c *Client) handleSingle(env wire.Envelope) {
	if env.Ack != nil {
		if err := c.send(wire.AckReply(env.Ack.ID)); err != nil {
			c.logger.Warn("ack reply failed", "id", env.Ack.ID, "error", err)
		}
		env.Ack = nil
	}

	c.hub.Emit(EventMessage, env)
	if env.Event != "" {
		c.hub.Emit(env.Event, env.Payload)
	}
}
