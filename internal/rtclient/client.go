// Package rtclient implements the real-time messaging client used by
// dashboards and CLI tools: one WebSocket connection with heartbeat liveness
// checks, exponential-backoff reconnection, credential refresh, message
// acknowledgment, and entity subscriptions that survive reconnects.
package rtclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/adpulse/adpulse/internal/eventhub"
	"github.com/adpulse/adpulse/internal/logging"
)

// State is the connection state. It is owned exclusively by the Client and
// transitions only on transport events or an explicit Disconnect.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	default:
		return "disconnected"
	}
}

// Meta-events emitted on the hub alongside server-defined event names.
const (
	EventConnected       = "connected"
	EventDisconnected    = "disconnected"
	EventReconnectFailed = "reconnect_failed"
	EventMessage         = "message"
)

// ReconnectFailedPayload accompanies the terminal reconnect_failed event.
type ReconnectFailedPayload struct {
	Attempts int `json:"attempts"`
}

// DisconnectedPayload accompanies the disconnected event.
type DisconnectedPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// wsConn is the slice of the transport the client needs. *websocket.Conn
// satisfies it; tests substitute scripted connections.
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(int, []byte) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (wsConn, error)

func gorillaDial(ctx context.Context, rawURL string) (wsConn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, rawURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Options configures a Client. BaseURL and Hub are required; everything else
// has a sensible default.
type Options struct {
	// BaseURL is the dashboard origin, e.g. "https://app.example.com".
	// ws:// and wss:// bases are accepted as-is.
	BaseURL string
	// Endpoint is the real-time path, absolute or relative to BaseURL.
	Endpoint string

	PingInterval      time.Duration
	ReconnectInterval time.Duration
	ReconnectAttempts int
	AckTimeout        time.Duration
	AckEnabled        bool
	RefreshThreshold  time.Duration
	// TokenURL is the credential refresh endpoint. Empty disables refresh.
	TokenURL string
	// StatsSampleRate is the probability of reporting batch processing
	// telemetry back to the server.
	StatsSampleRate float64

	HTTPClient *http.Client
	Logger     *slog.Logger
	Hub        *eventhub.Hub
}

func (o *Options) defaults() {
	if o.Endpoint == "" {
		o.Endpoint = "/api/real-time"
	}
	if o.PingInterval == 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.ReconnectInterval == 0 {
		o.ReconnectInterval = time.Second
	}
	if o.ReconnectAttempts == 0 {
		o.ReconnectAttempts = 5
	}
	if o.AckTimeout == 0 {
		o.AckTimeout = 5 * time.Second
	}
	if o.RefreshThreshold == 0 {
		o.RefreshThreshold = 5 * time.Minute
	}
	if o.StatsSampleRate == 0 {
		o.StatsSampleRate = 0.1
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = logging.L()
	}
}

// Client owns one transport socket at a time. All components (heartbeat,
// reconnection, acknowledgments, subscriptions) communicate with the socket
// through the client's send/close methods, never directly.
type Client struct {
	opts   Options
	logger *slog.Logger
	hub    *eventhub.Hub

	mu          sync.Mutex
	state       State
	conn        wsConn
	gen         int // connection generation; stale callbacks compare against it
	connectDone chan struct{}
	connectErr  error
	manualClose bool

	attempts       int
	reconnectTimer *time.Timer
	failedEmitted  bool

	hbStop      chan struct{}
	hbWait      *time.Timer
	lastInbound time.Time

	writeMu sync.Mutex

	tokens *TokenManager
	acks   *ackTracker
	subs   *subscriptionRegistry

	dial      dialFunc
	randFloat func() float64
}

// New builds a client. The hub receives connection meta-events and every
// routed message; it must not be nil.
func New(opts Options) (*Client, error) {
	opts.defaults()
	if opts.BaseURL == "" {
		return nil, errors.New("rtclient: BaseURL is required")
	}
	if opts.Hub == nil {
		return nil, errors.New("rtclient: Hub is required")
	}

	c := &Client{
		opts:      opts,
		logger:    opts.Logger,
		hub:       opts.Hub,
		acks:      newAckTracker(),
		subs:      newSubscriptionRegistry(),
		dial:      gorillaDial,
		randFloat: rand.Float64,
	}
	c.tokens = newTokenManager(tokenManagerConfig{
		refreshURL: opts.TokenURL,
		threshold:  opts.RefreshThreshold,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		onRefreshed: func(ctx context.Context) {
			c.cycleConnection(ctx)
		},
	})
	return c, nil
}

// Hub returns the event hub messages are published on.
func (c *Client) Hub() *eventhub.Hub { return c.hub }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is open.
func (c *Client) IsConnected() bool { return c.State() == StateConnected }

// Connect opens the transport and returns once it is CONNECTED. A call made
// while another attempt is in flight waits for that attempt instead of
// opening a second socket. Connecting while already connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		done := c.connectDone
		c.mu.Unlock()
		select {
		case <-done:
			c.mu.Lock()
			err := c.connectErr
			c.mu.Unlock()
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	c.state = StateConnecting
	c.manualClose = false
	c.failedEmitted = false
	done := make(chan struct{})
	c.connectDone = done
	c.mu.Unlock()

	err := c.open(ctx)

	c.mu.Lock()
	c.connectErr = err
	c.connectDone = nil
	if err != nil && c.state == StateConnecting {
		c.state = StateDisconnected
	}
	c.mu.Unlock()
	close(done)
	return err
}

func (c *Client) open(ctx context.Context) error {
	endpoint, err := c.buildURL()
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, endpoint)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.Endpoint, err)
	}

	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.conn = conn
	c.state = StateConnected
	c.attempts = 0
	c.lastInbound = time.Now()
	c.hbStop = make(chan struct{})
	stop := c.hbStop
	c.mu.Unlock()

	go c.readLoop(conn, gen)
	go c.heartbeatLoop(gen, stop)

	c.logger.Info("real-time connection established", "endpoint", c.opts.Endpoint)
	c.hub.Emit(EventConnected, nil)
	c.subs.replay(c)
	return nil
}

// buildURL resolves the endpoint against the base URL, maps the scheme to
// its WebSocket variant (https pages get wss), and appends the credential
// token when one is held.
func (c *Client) buildURL() (string, error) {
	base, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}

	var target *url.URL
	if strings.Contains(c.opts.Endpoint, "://") {
		target, err = url.Parse(c.opts.Endpoint)
		if err != nil {
			return "", fmt.Errorf("parse endpoint: %w", err)
		}
	} else {
		ref := &url.URL{Path: c.opts.Endpoint}
		target = base.ResolveReference(ref)
	}

	switch target.Scheme {
	case "https":
		target.Scheme = "wss"
	case "http":
		target.Scheme = "ws"
	case "ws", "wss":
		// already a websocket URL
	default:
		return "", fmt.Errorf("unsupported scheme %q", target.Scheme)
	}

	if cred := c.tokens.Current(); cred != nil {
		q := target.Query()
		q.Set("token", cred.Token)
		target.RawQuery = q.Encode()
	}
	return target.String(), nil
}

// Disconnect closes the transport with the given close code. It is
// idempotent, cancels any pending reconnect attempt, and never triggers
// automatic reconnection.
func (c *Client) Disconnect(code int, reason string) {
	c.mu.Lock()
	c.manualClose = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.conn == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.state = StateClosing
	c.stopHeartbeatLocked()
	c.gen++ // invalidate callbacks from the old connection
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.writeMu.Unlock()
	_ = conn.Close()

	c.logger.Info("real-time connection closed", "code", code, "reason", reason)
	c.hub.Emit(EventDisconnected, DisconnectedPayload{Code: code, Reason: reason})
}

// Close releases all resources: the socket, reconnect and refresh timers.
func (c *Client) Close() {
	c.Disconnect(websocket.CloseNormalClosure, "client shutdown")
	c.tokens.Close()
}

// cycleConnection performs the explicit CONNECTED -> CLOSING -> CONNECTING
// transition used after a credential refresh; most transports cannot rotate
// credentials on a live socket.
func (c *Client) cycleConnection(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateConnected {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.state = StateClosing
	c.stopHeartbeatLocked()
	c.gen++
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseServiceRestart, "credential rotation"))
	c.writeMu.Unlock()
	_ = conn.Close()

	if err := c.Connect(ctx); err != nil {
		c.logger.Warn("reconnect with refreshed credential failed", "error", err)
		c.scheduleReconnect()
	}
}

// send marshals v and writes it as one text frame. Writers are serialized;
// nothing outside the client touches the socket.
func (c *Client) send(v any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("not connected")
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal outbound frame: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop(conn wsConn, gen int) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		c.handleFrame(gen, data)
	}
}

// handleClosed reacts to the transport dropping out from under us. Clean
// closes were already handled by Disconnect; everything else reconnects.
func (c *Client) handleClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// A newer connection already replaced this one.
		c.mu.Unlock()
		return
	}
	manual := c.manualClose
	c.stopHeartbeatLocked()
	c.conn = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if manual {
		return
	}

	c.logger.Warn("real-time connection lost", "error", err)
	c.hub.Emit(EventDisconnected, DisconnectedPayload{Reason: err.Error()})
	c.scheduleReconnect()
}

// touchInbound records frame arrival for the heartbeat dead-connection check.
func (c *Client) touchInbound() {
	c.mu.Lock()
	c.lastInbound = time.Now()
	c.mu.Unlock()
}
