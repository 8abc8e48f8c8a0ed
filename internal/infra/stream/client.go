// Package stream maintains a self-healing websocket subscription to a node's
// event stream and turns tx events into domain events.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vietddude/zkagent/internal/core/domain"
	"github.com/vietddude/zkagent/internal/metrics"
)

// DefaultReconnectDelay is the fixed wait between a lost connection and the next dial.
const DefaultReconnectDelay = 5 * time.Second

// DefaultHandshakeTimeout bounds the websocket opening handshake.
const DefaultHandshakeTimeout = 10 * time.Second

var allStates = []domain.ConnectionState{
	domain.StateDisconnected,
	domain.StateConnecting,
	domain.StateConnected,
	domain.StateReconnecting,
}

// Config configures the stream client.
type Config struct {
	RPCURL           string
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Handlers receive stream output. Every field is optional; events of a kind
// without a handler are parsed and discarded. Calls never overlap, including
// the final OnStateChange from Stop, so a handler must not call Start or Stop.
type Handlers struct {
	OnCommitment      func(domain.CommitmentObserved)
	OnAgentRegistered func(domain.AgentRegistered)
	OnError           func(error)
	OnStateChange     func(domain.ConnectionState)
}

// Client is the event stream client. Events are delivered in wire order.
type Client struct {
	cfg      Config
	url      string
	handlers Handlers
	logger   *slog.Logger
	dialer   *websocket.Dialer

	mu         sync.Mutex
	state      domain.ConnectionState
	running    bool
	generation uint64
	conn       *websocket.Conn
	timer      *time.Timer
	cancelDial context.CancelFunc

	// cbMu serializes handler calls; it is never taken while holding mu.
	cbMu sync.Mutex

	nextID     atomic.Int64
	reconnects atomic.Int64
}

// NewClient creates a stopped client. Nothing is dialed until Start.
func NewClient(cfg Config, handlers Handlers) (*Client, error) {
	wsURL, err := BuildURL(cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		cfg:      cfg,
		url:      wsURL,
		handlers: handlers,
		logger:   cfg.Logger.With("component", "stream", "url", wsURL),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		state: domain.StateDisconnected,
	}
	c.recordState(domain.StateDisconnected)
	return c, nil
}

// BuildURL rewrites a node RPC URL into its websocket endpoint:
// http becomes ws, https becomes wss, and /websocket is appended.
func BuildURL(rpcURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rpcURL))
	if err != nil {
		return "", fmt.Errorf("invalid rpc url %q: %w", rpcURL, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported rpc url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("rpc url %q has no host", rpcURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/websocket"
	return u.String(), nil
}

// URL returns the websocket endpoint.
func (c *Client) URL() string {
	return c.url
}

// ReconnectDelay returns the effective delay between reconnect attempts.
func (c *Client) ReconnectDelay() time.Duration {
	return c.cfg.ReconnectDelay
}

// State returns the current connection state.
func (c *Client) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Reconnects returns how many reconnects have been scheduled.
func (c *Client) Reconnects() int64 {
	return c.reconnects.Load()
}

// Start begins connecting in the background. It is a no-op while running.
func (c *Client) Start() {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	c.running = true
	c.generation++
	gen := c.generation
	c.mu.Unlock()

	c.logger.Info("Starting event stream")
	c.connect(gen)
}

// Stop cancels any pending reconnect or dial and closes the connection.
// No handler runs after Stop returns. Stop before Start is a no-op.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	changed := c.setStateLocked(domain.StateDisconnected)
	c.mu.Unlock()

	c.logger.Info("Event stream stopped")

	// Waits for an in-flight delivery to finish.
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if changed && c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(domain.StateDisconnected)
	}
}

func (c *Client) connect(gen uint64) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.timer = nil
	changed := c.setStateLocked(domain.StateConnecting)
	c.mu.Unlock()

	if changed {
		c.notifyState(gen, domain.StateConnecting)
	}
	go c.run(ctx, cancel, gen)
}

func (c *Client) run(ctx context.Context, cancel context.CancelFunc, gen uint64) {
	defer cancel()

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		c.fail(gen, fmt.Errorf("dial %s: %w", c.url, err))
		return
	}

	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	c.cancelDial = nil
	changed := c.setStateLocked(domain.StateConnected)
	c.mu.Unlock()

	c.logger.Info("Event stream connected")
	if changed {
		c.notifyState(gen, domain.StateConnected)
	}

	for _, query := range []string{QueryShieldCommitments, QueryAgentRegistrations} {
		req := subscribeRequest{
			JSONRPC: "2.0",
			ID:      c.nextID.Add(1),
			Method:  "subscribe",
			Params:  subscribeParams{Query: query},
		}
		if err := conn.WriteJSON(req); err != nil {
			c.fail(gen, fmt.Errorf("subscribe %q: %w", query, err))
			return
		}
	}

	c.readLoop(conn, gen)
}

func (c *Client) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.fail(gen, fmt.Errorf("read: %w", err))
			return
		}
		if !c.current(gen) {
			return
		}

		parsed, err := ParseFrame(data, time.Now())
		if err != nil {
			metrics.StreamFrames.WithLabelValues("dropped").Inc()
			c.logger.Debug("Dropping malformed frame", "error", err)
			continue
		}
		metrics.StreamFrames.WithLabelValues("parsed").Inc()
		c.deliver(gen, parsed)
	}
}

// deliver stops as soon as gen goes stale, so nothing is delivered after Stop
// returns.
func (c *Client) deliver(gen uint64, p Parsed) {
	c.cbMu.Lock()
	defer c.cbMu.Unlock()

	for _, ev := range p.Commitments {
		if !c.current(gen) {
			return
		}
		metrics.StreamEvents.WithLabelValues(string(domain.EventKindCommitmentObserved)).Inc()
		if c.handlers.OnCommitment != nil {
			c.handlers.OnCommitment(ev)
		}
	}
	for _, ev := range p.Registrations {
		if !c.current(gen) {
			return
		}
		metrics.StreamEvents.WithLabelValues(string(domain.EventKindAgentRegistered)).Inc()
		if c.handlers.OnAgentRegistered != nil {
			c.handlers.OnAgentRegistered(ev)
		}
	}
}

// fail tears down the current connection and schedules a reconnect, unless
// gen is stale or the client was stopped.
func (c *Client) fail(gen uint64, err error) {
	c.mu.Lock()
	if !c.currentLocked(gen) {
		c.mu.Unlock()
		return
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.cancelDial = nil
	changed := c.setStateLocked(domain.StateReconnecting)
	c.timer = time.AfterFunc(c.cfg.ReconnectDelay, func() { c.connect(gen) })
	c.reconnects.Add(1)
	c.mu.Unlock()

	metrics.StreamReconnects.Inc()
	if errors.Is(err, websocket.ErrCloseSent) {
		c.logger.Debug("Event stream closed", "error", err)
	} else {
		c.logger.Warn("Event stream lost, reconnecting", "error", err, "delay", c.cfg.ReconnectDelay)
	}

	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if !c.current(gen) {
		return
	}
	if c.handlers.OnError != nil {
		c.handlers.OnError(err)
	}
	if changed && c.handlers.OnStateChange != nil {
		c.handlers.OnStateChange(domain.StateReconnecting)
	}
}

func (c *Client) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentLocked(gen)
}

func (c *Client) currentLocked(gen uint64) bool {
	return c.running && gen == c.generation
}

// setStateLocked reports whether the state changed.
func (c *Client) setStateLocked(s domain.ConnectionState) bool {
	if c.state == s {
		return false
	}
	c.state = s
	c.recordState(s)
	return true
}

func (c *Client) recordState(s domain.ConnectionState) {
	for _, st := range allStates {
		v := 0.0
		if st == s {
			v = 1
		}
		metrics.StreamState.WithLabelValues(st.String()).Set(v)
	}
}

// notifyState reports s unless gen went stale meanwhile.
func (c *Client) notifyState(gen uint64, s domain.ConnectionState) {
	if c.handlers.OnStateChange == nil {
		return
	}
	c.cbMu.Lock()
	defer c.cbMu.Unlock()
	if c.current(gen) {
		c.handlers.OnStateChange(s)
	}
}
