package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/eventhub"
)

// fakeConn is a scripted transport. Reads block on the inbound channel until
// the test feeds a frame or closes the connection.
type fakeConn struct {
	mu      sync.Mutex
	writes  [][]byte
	closes  int
	inbound chan []byte
	done    chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.done:
		return 0, nil, io.ErrUnexpectedEOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.done:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeConn) feed(t *testing.T, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal test frame: %v", err)
	}
	c.inbound <- data
}

func (c *fakeConn) feedRaw(data []byte) {
	c.inbound <- data
}

func (c *fakeConn) writeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.writes)
}

func (c *fakeConn) writtenFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.writes))
	for _, w := range c.writes {
		out = append(out, string(w))
	}
	return out
}

func (c *fakeConn) closeCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// fakeDialer hands out fresh fakeConns and can be scripted to fail.
type fakeDialer struct {
	mu       sync.Mutex
	conns    []*fakeConn
	calls    int
	failNext int // fail this many dials before succeeding
	failAll  bool
	lastURL  string
}

func (d *fakeDialer) dial(_ context.Context, url string) (wsConn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	d.lastURL = url
	if d.failAll || d.failNext > 0 {
		if d.failNext > 0 {
			d.failNext--
		}
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[i]
}

func (d *fakeDialer) lastDialURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastURL
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, mutate func(*Options)) (*Client, *fakeDialer, *eventhub.Hub) {
	t.Helper()
	hub := eventhub.New(testLogger())
	opts := Options{
		BaseURL:           "http://dashboard.test",
		PingInterval:      time.Hour, // heartbeat disabled unless a test shortens it
		ReconnectInterval: 5 * time.Millisecond,
		ReconnectAttempts: 3,
		AckTimeout:        50 * time.Millisecond,
		AckEnabled:        true,
		Logger:            testLogger(),
		Hub:               hub,
	}
	if mutate != nil {
		mutate(&opts)
	}
	client, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dialer := &fakeDialer{}
	client.dial = dialer.dial
	client.randFloat = func() float64 { return 1 } // no sampled telemetry by default
	t.Cleanup(client.Close)
	return client, dialer, hub
}

func waitForCondition(t *testing.T, timeout time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}
