package rtclient

import (
	"context"
	"math"
	"time"
)

// scheduleReconnect arms the retry timer after an abnormal close. The delay
// grows multiplicatively (base interval x 1.5^attempt); the bound is the
// attempt ceiling rather than a max-delay clamp. Exhausting the ceiling is a
// fatal, surfaced condition: exactly one reconnect_failed event, then no
// further retries until the next manual Connect.
func (c *Client) scheduleReconnect() {
	c.mu.Lock()
	if c.manualClose || c.reconnectTimer != nil {
		c.mu.Unlock()
		return
	}
	if c.attempts >= c.opts.ReconnectAttempts {
		alreadyEmitted := c.failedEmitted
		c.failedEmitted = true
		ceiling := c.opts.ReconnectAttempts
		c.mu.Unlock()
		if !alreadyEmitted {
			c.logger.Error("reconnect attempts exhausted", "attempts", ceiling)
			c.hub.Emit(EventReconnectFailed, ReconnectFailedPayload{Attempts: ceiling})
		}
		return
	}
	c.attempts++
	attempt := c.attempts
	delay := time.Duration(float64(c.opts.ReconnectInterval) * math.Pow(1.5, float64(attempt-1)))

	c.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		manual := c.manualClose
		c.mu.Unlock()
		if manual {
			// A manual Disconnect raced the timer; stay down.
			return
		}
		if err := c.Connect(context.Background()); err != nil {
			c.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)
			c.scheduleReconnect()
		}
	})
	c.mu.Unlock()
}

// ReconnectAttempts returns how many retries are pending since the last
// successful connection. The counter resets only on a CONNECTED transition.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}
