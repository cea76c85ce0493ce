// Package switchboard maintains the realtime control connection to a
// player's switchboard and relays its events onto an event bus.
package switchboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mmcdole/radiopad/internal/domain"
	"github.com/mmcdole/radiopad/internal/events"
)

// Events emitted on the client's bus.
const (
	EventConnecting     = "connecting"      // payload: string endpoint
	EventConnect        = "connect"         // payload: string endpoint
	EventDisconnect     = "disconnect"      // payload: nil
	EventError          = "error"           // payload: string message
	EventStationPlaying = "station-playing" // payload: *string, nil when nothing plays
	EventStationsURL    = "stations-url"    // payload: string
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultMinBackoff     = time.Second
	DefaultMaxBackoff     = 30 * time.Second
)

// Wire event names
const (
	frameStationRequest = "station_request"
	frameStationPlaying = "station_playing"
	frameStationsURL    = "stations_url"
)

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the WebSocket dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithClock replaces the timer source.
func WithClock(clock Clock) Option {
	return func(c *Client) { c.clock = clock }
}

// WithConnectTimeout bounds how long a connection may stay Connecting.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.connectTimeout = d
		}
	}
}

// WithBackoff sets the reconnect delay floor and ceiling.
func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		if minDelay > 0 && maxDelay >= minDelay {
			c.minBackoff = minDelay
			c.maxBackoff = maxDelay
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// session is one socket attempt. Once closed it never emits again.
type session struct {
	url          string
	conn         Conn
	cancelDial   context.CancelFunc
	connectTimer Timer
	closed       bool
}

// Client keeps one connection to one switchboard endpoint open,
// reconnecting with exponential backoff until Disconnect is called.
//
// All events are delivered in order from a single goroutine, so handlers may
// call back into the client.
type Client struct {
	dialer         Dialer
	clock          Clock
	connectTimeout time.Duration
	minBackoff     time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger

	bus   *events.Bus
	queue *events.Queue

	mu             sync.Mutex
	state          State
	target         string
	sess           *session
	delay          time.Duration
	reconnectTimer Timer
	reconnectGen   uint64
}

// NewClient creates an idle client that emits onto bus.
func NewClient(bus *events.Bus, opts ...Option) *Client {
	c := &Client{
		dialer:         WebsocketDialer{HandshakeTimeout: DefaultConnectTimeout},
		clock:          realClock{},
		connectTimeout: DefaultConnectTimeout,
		minBackoff:     DefaultMinBackoff,
		maxBackoff:     DefaultMaxBackoff,
		logger:         slog.Default(),
		bus:            bus,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.delay = c.minBackoff
	c.queue = events.NewQueue(bus, c.logger)
	return c
}

// Events returns the bus the client emits on.
func (c *Client) Events() *events.Bus {
	return c.bus
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the endpoint the client is trying to stay connected to.
func (c *Client) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Connect makes endpoint the connection target. An existing session to a
// different endpoint, and any reconnect it scheduled, is torn down first.
// Connecting to the endpoint that is already open or connecting does nothing.
func (c *Client) Connect(endpoint string) error {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return fmt.Errorf("connect: empty switchboard URL")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess != nil && sameEndpoint(c.target, endpoint) &&
		(c.state == StateOpen || c.state == StateConnecting) {
		return nil
	}

	c.stopReconnectLocked()
	c.detachLocked()
	c.target = endpoint
	c.openLocked()
	return nil
}

// Disconnect closes the connection without reporting a disconnect and stops
// reconnecting until the next Connect.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopReconnectLocked()
	c.detachLocked()
	c.target = ""
	c.setStateLocked(StateIdle)
}

// Close disconnects and delivers any events still queued.
func (c *Client) Close() {
	c.Disconnect()
	c.queue.Close()
}

// SendStationRequest asks the player to play name, or to stop when name is
// nil. Requests made while not connected are dropped.
func (c *Client) SendStationRequest(name *string) error {
	c.mu.Lock()
	if c.state != StateOpen || c.sess == nil || c.sess.conn == nil {
		c.queue.Post(EventError, "not connected")
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	conn := c.sess.conn
	c.mu.Unlock()

	data, err := json.Marshal(struct {
		Event string  `json:"event"`
		Data  *string `json:"data"`
	}{Event: frameStationRequest, Data: name})
	if err != nil {
		return fmt.Errorf("encode station request: %w", err)
	}

	if err := conn.WriteMessage(data); err != nil {
		c.logger.Warn("station request failed", "error", err)
		c.queue.Post(EventError, err.Error())
		return fmt.Errorf("send station request: %w", err)
	}
	c.logger.Debug("station request sent", "station", stationName(name))
	return nil
}

// openLocked starts a new session for c.target.
func (c *Client) openLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	s := &session{url: c.target, cancelDial: cancel}
	c.sess = s
	c.setStateLocked(StateConnecting)

	c.logger.Info("connecting to switchboard", "url", s.url)
	c.queue.Post(EventConnecting, s.url)

	s.connectTimer = c.clock.AfterFunc(c.connectTimeout, func() { c.connectTimedOut(s) })
	go c.dial(ctx, s)
}

func (c *Client) dial(ctx context.Context, s *session) {
	conn, err := c.dialer.Dial(ctx, s.url)

	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed || c.sess != s {
		if conn != nil {
			go conn.Close()
		}
		return
	}
	if err != nil {
		c.logger.Warn("switchboard connection failed", "url", s.url, "error", err)
		c.queue.Post(EventError, err.Error())
		c.closedLocked(s)
		return
	}

	s.conn = conn
	s.connectTimer.Stop()
	c.stopReconnectLocked()
	c.delay = c.minBackoff
	c.setStateLocked(StateOpen)

	c.logger.Info("connected to switchboard", "url", s.url)
	c.queue.Post(EventConnect, s.url)
	go c.readLoop(s, conn)
}

func (c *Client) connectTimedOut(s *session) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.closed || c.sess != s || c.state != StateConnecting {
		return
	}
	c.logger.Warn("switchboard connect timed out", "url", s.url, "timeout", c.connectTimeout)
	c.closedLocked(s)
}

func (c *Client) readLoop(s *session, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if !s.closed && c.sess == s {
				if !errors.Is(err, io.EOF) {
					c.logger.Warn("switchboard read failed", "url", s.url, "error", err)
					c.queue.Post(EventError, err.Error())
				}
				c.closedLocked(s)
			}
			c.mu.Unlock()
			return
		}
		c.handleFrame(s, data)
	}
}

func (c *Client) handleFrame(s *session, data []byte) {
	name, payload, err := decodeFrame(data)

	c.mu.Lock()
	defer c.mu.Unlock()
	if s.closed {
		return
	}
	if err != nil {
		c.logger.Warn("malformed switchboard frame", "error", err, "bytes", len(data))
		c.queue.Post(EventError, "parse failure")
		return
	}
	if name != "" {
		c.queue.Post(name, payload)
	}
}

// closedLocked ends session s and schedules the next attempt. It runs at
// most once per session.
func (c *Client) closedLocked(s *session) {
	if s.closed {
		return
	}
	s.closed = true
	s.connectTimer.Stop()
	s.cancelDial()
	if s.conn != nil {
		go s.conn.Close()
	}

	c.setStateLocked(StateClosed)
	c.logger.Info("disconnected from switchboard", "url", s.url)
	c.queue.Post(EventDisconnect, nil)
	c.scheduleReconnectLocked()
}

// detachLocked drops the current session without emitting anything.
func (c *Client) detachLocked() {
	s := c.sess
	if s == nil {
		return
	}
	c.sess = nil
	if s.closed {
		return
	}
	s.closed = true
	s.connectTimer.Stop()
	s.cancelDial()
	if s.conn != nil {
		go s.conn.Close()
	}
}

func (c *Client) scheduleReconnectLocked() {
	c.stopReconnectLocked()
	gen := c.reconnectGen
	delay := c.delay
	c.reconnectTimer = c.clock.AfterFunc(delay, func() { c.reconnect(gen) })
	c.setStateLocked(StateReconnecting)
	c.logger.Info("scheduling switchboard reconnect", "url", c.target, "delay", delay)
}

func (c *Client) stopReconnectLocked() {
	c.reconnectGen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Timers cannot always be cancelled once they have fired.
	if gen != c.reconnectGen || c.state != StateReconnecting {
		return
	}
	c.reconnectTimer = nil
	c.delay = min(c.delay*2, c.maxBackoff)
	c.openLocked()
}

func (c *Client) setStateLocked(next State) {
	if next == c.state {
		return
	}
	if !canTransition(c.state, next) {
		c.logger.Warn("unexpected switchboard state transition", "from", c.state, "to", next)
	}
	c.logger.Debug("switchboard state", "from", c.state, "to", next)
	c.state = next
}

// decodeFrame maps an inbound frame to a bus event. Frames with an unknown
// or missing event return an empty name.
func decodeFrame(data []byte) (string, any, error) {
	var f struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return "", nil, err
	}
	switch f.Event {
	case frameStationPlaying:
		var station *string
		if len(f.Data) > 0 {
			if err := json.Unmarshal(f.Data, &station); err != nil {
				return "", nil, fmt.Errorf("%s: %w", f.Event, err)
			}
		}
		return EventStationPlaying, station, nil
	case frameStationsURL:
		var u string
		if err := json.Unmarshal(f.Data, &u); err != nil {
			return "", nil, fmt.Errorf("%s: %w", f.Event, err)
		}
		return EventStationsURL, u, nil
	}
	return "", nil, nil
}

// sameEndpoint compares URLs with scheme and host case folded and any
// trailing slash ignored.
func sameEndpoint(a, b string) bool {
	return normalizeEndpoint(a) == normalizeEndpoint(b)
}

func normalizeEndpoint(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

func stationName(name *string) string {
	if name == nil {
		return "<stop>"
	}
	return *name
}
