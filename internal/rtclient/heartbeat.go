package rtclient

import (
	"time"

	"github.com/adpulse/adpulse/internal/wire"
)

// heartbeatLoop sends a ping every PingInterval while the connection is
// open. Each ping arms a bounded wait: if neither the pong nor any other
// inbound frame arrives within two intervals, the connection is treated as
// dead and force-closed, which hands off to the reconnection controller.
// The loop and its timers are stopped on every exit path; they never outlive
// the connection generation they were started for.
func (c *Client) heartbeatLoop(gen int, stop chan struct{}) {
	interval := c.opts.PingInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer c.clearHeartbeatWait()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			sentAt := time.Now()
			if err := c.send(wire.Ping(sentAt)); err != nil {
				c.logger.Debug("heartbeat ping failed", "error", err)
				return
			}
			c.armHeartbeatWait(gen, sentAt, 2*interval)
		}
	}
}

// armHeartbeatWait replaces the pending dead-connection check with one for
// the ping just sent.
func (c *Client) armHeartbeatWait(gen int, sentAt time.Time, wait time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	if c.hbWait != nil {
		c.hbWait.Stop()
	}
	c.hbWait = time.AfterFunc(wait, func() {
		c.heartbeatExpired(gen, sentAt)
	})
}

// heartbeatExpired runs when a ping's wait elapses. Any inbound frame since
// the ping counts as liveness, not just the matching pong.
func (c *Client) heartbeatExpired(gen int, sentAt time.Time) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	if c.lastInbound.After(sentAt) {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	c.logger.Warn("no pong within two heartbeat intervals, forcing close")
	if conn != nil {
		// Closing the socket errors the read loop, which owns the
		// disconnected/reconnect handling. The generation check above
		// makes the force-close fire at most once per connection.
		_ = conn.Close()
	}
}

// pongReceived cancels only the currently pending wait; the next ping arms
// its own.
func (c *Client) pongReceived() {
	c.clearHeartbeatWait()
}

func (c *Client) clearHeartbeatWait() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hbWait != nil {
		c.hbWait.Stop()
		c.hbWait = nil
	}
}

// stopHeartbeatLocked tears down the heartbeat goroutine and pending wait.
// Callers hold c.mu.
func (c *Client) stopHeartbeatLocked() {
	if c.hbStop != nil {
		close(c.hbStop)
		c.hbStop = nil
	}
	if c.hbWait != nil {
		c.hbWait.Stop()
		c.hbWait = nil
	}
}
