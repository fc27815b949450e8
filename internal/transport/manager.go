package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nuniesmith/fks-realtime/internal/channels"
	"github.com/nuniesmith/fks-realtime/internal/credentials"
)

// Client owns the single realtime socket, its state machine, reconnection
// scheduling, and message dispatch. All failure is expressed through the
// status stream; no error from the socket crosses the public API.
type Client struct {
	cfg       Config
	id        string
	logger    *slog.Logger
	registry  *channels.Registry
	source    credentials.TokenSource
	dialer    Dialer
	scheduler Scheduler
	heartbeat *monitor
	rotator   *credentials.Rotator

	mu              sync.Mutex
	status          Status
	conn            Conn
	gen             uint64
	delay           time.Duration
	attempts        int
	shouldReconnect bool
	cancelRetry     func()
	connToken       string
	refreshing      bool
	runCtx          context.Context
	runCancel       context.CancelFunc

	statusSubs map[uint64]func(Status)
	nextSubID  uint64
}

// NewClient creates a transport client. It starts in idle; nothing
// happens until Connect.
func NewClient(cfg Config, source credentials.TokenSource, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if source == nil {
		source = credentials.FuncSource{}
	}
	logger = logger.With("client_id", shortID())

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = WSDialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
			WriteTimeout:     cfg.WriteTimeout,
		}
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = TimerScheduler{}
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger,
		registry:   channels.NewRegistry(logger),
		source:     source,
		dialer:     dialer,
		scheduler:  scheduler,
		status:     StatusIdle,
		delay:      cfg.Backoff.Reset(),
		statusSubs: make(map[uint64]func(Status)),
	}
	c.heartbeat = newMonitor(cfg.HeartbeatInterval, c.sendPing)
	c.rotator = credentials.NewRotator(source, cfg.RotateInterval, c.boundToken, c.forceReconnect, logger)
	return c
}

func shortID() string {
	return uuid.NewString()[:8]
}

// Connect opens the connection. Non-blocking: it returns after issuing
// the dial; progress is observable via OnStatusChange. Calling Connect
// re-arms a client parked in closed by a prior Disconnect.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.URL == "" {
		return ErrNoURL
	}
	if ctx == nil {
		ctx = context.Background()
	}

	c.mu.Lock()
	if c.status == StatusConnecting || c.status == StatusOpen {
		c.mu.Unlock()
		return nil
	}
	c.shouldReconnect = true
	c.attempts = 0
	c.delay = c.cfg.Backoff.Reset()
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	if c.runCancel == nil {
		c.runCtx, c.runCancel = context.WithCancel(ctx)
	}
	runCtx := c.runCtx
	c.mu.Unlock()

	c.rotator.Start(runCtx)
	c.connect()
	return nil
}

// Disconnect closes the socket, stops all timers, suppresses further
// reconnection, and parks the client in closed. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.shouldReconnect = false
	if c.cancelRetry != nil {
		c.cancelRetry()
		c.cancelRetry = nil
	}
	conn := c.conn
	c.conn = nil
	c.gen++ // discard events from the dying socket
	cancel := c.runCancel
	c.runCancel = nil
	c.runCtx = nil
	changed := c.status != StatusClosed
	c.status = StatusClosed
	c.mu.Unlock()

	c.heartbeat.Stop()
	c.rotator.Stop()
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if changed {
		c.notifyStatus(StatusClosed)
	}
}

// Status returns the current connection status.
func (c *Client) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// OnStatusChange registers a status listener. The returned function
// removes it.
func (c *Client) OnStatusChange(fn func(Status)) func() {
	c.mu.Lock()
	c.nextSubID++
	id := c.nextSubID
	c.statusSubs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.statusSubs, id)
		c.mu.Unlock()
	}
}

// OnMessage registers a global listener for frames not claimed by a
// channel subscription. The returned function removes it.
func (c *Client) OnMessage(fn channels.Listener) func() {
	id := c.registry.AddGlobal(fn)
	return func() { c.registry.RemoveGlobal(id) }
}

// Subscribe registers a listener under a channel and, when the
// connection is open, sends the subscribe command immediately. Duplicate
// subscribes for an already-subscribed channel are harmless server-side.
// The returned function unsubscribes; when it removes the channel's last
// listener the unsubscribe command is sent.
func (c *Client) Subscribe(channel string, fn channels.Listener) func() {
	id, first := c.registry.Add(channel, fn)
	if first {
		c.sendControl("subscribe", channel)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if last := c.registry.Remove(channel, id); last {
				c.sendControl("unsubscribe", channel)
			}
		})
	}
}

// Unsubscribe drops a channel and all of its listeners.
func (c *Client) Unsubscribe(channel string) {
	if c.registry.Drop(channel) {
		c.sendControl("unsubscribe", channel)
	}
}

// Send writes an arbitrary message to the socket.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.write(data)
}

// connect drives idle/closed/error → connecting. The dial itself runs on
// its own goroutine so connect returns immediately.
func (c *Client) connect() {
	c.mu.Lock()
	if !c.shouldReconnect || c.conn != nil {
		c.mu.Unlock()
		return
	}
	c.cancelRetry = nil
	c.status = StatusConnecting
	c.gen++
	gen := c.gen
	ctx := c.runCtx
	c.mu.Unlock()

	token := c.source.Current()
	target := connectURL(c.cfg.URL, token)

	c.notifyStatus(StatusConnecting)
	c.logger.Debug("connecting", "url", c.cfg.URL)

	go c.dial(ctx, gen, target, token)
}

func (c *Client) dial(ctx context.Context, gen uint64, target, token string) {
	conn, err := c.dialer.Dial(ctx, target)

	c.mu.Lock()
	if gen != c.gen || !c.shouldReconnect {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}

	if err != nil {
		c.status = StatusError
		c.scheduleRetryLocked()
		c.mu.Unlock()

		c.logger.Warn("connection failed", "error", err)
		c.notifyStatus(StatusError)
		return
	}

	c.conn = conn
	c.connToken = token
	c.delay = c.cfg.Backoff.Reset()
	c.attempts = 0
	c.status = StatusOpen
	c.mu.Unlock()

	c.logger.Info("connected")
	c.notifyStatus(StatusOpen)

	// Replay every wanted channel: exactly one subscribe per channel,
	// regardless of listener count.
	for _, channel := range c.registry.Wanted() {
		c.sendControl("subscribe", channel)
	}

	c.heartbeat.Start()

	go c.readLoop(gen, conn)
}

// readLoop pumps the socket until it dies, then enters the close path.
func (c *Client) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.dispatch(gen, data)
	}
}

// handleClose is the single path for a dying socket: network loss,
// server close, or a force-close from auth handling or token rotation.
func (c *Client) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.status = StatusClosed
	if c.shouldReconnect {
		c.scheduleRetryLocked()
	}
	c.mu.Unlock()

	c.heartbeat.Stop()
	c.logger.Info("connection closed", "error", err)
	c.notifyStatus(StatusClosed)
}

// scheduleRetryLocked arms the reconnect timer with the current delay,
// then advances the backoff state. Caller holds c.mu.
func (c *Client) scheduleRetryLocked() {
	c.attempts++
	if c.cfg.MaxAttempts > 0 && c.attempts > c.cfg.MaxAttempts {
		c.shouldReconnect = false
		c.logger.Warn("reconnect attempt ceiling reached", "attempts", c.attempts-1)
		return
	}

	wait := c.cfg.Backoff.Randomize(c.delay)
	c.delay = c.cfg.Backoff.Double(c.delay)

	c.logger.Info("scheduling reconnect", "wait", wait, "attempt", c.attempts)
	c.cancelRetry = c.scheduler.Schedule(wait, c.connect)
}

// dispatch classifies and routes one inbound frame. Malformed payloads
// are forwarded opaque; pongs are dropped; auth errors trigger a silent
// token refresh. Listeners run in arrival order.
func (c *Client) dispatch(gen uint64, data []byte) {
	f := parseFrame(data)

	switch f.kind {
	case framePong:
		return
	case frameAuthError:
		c.handleAuthError(gen)
		return
	}

	c.registry.Dispatch(channels.Message{
		Channel:    f.channel,
		Data:       data,
		ReceivedAt: time.Now(),
	})
}

// handleAuthError refreshes the token off the read loop and force-closes
// the socket exactly once when a fresh token arrived; the reconnect path
// rebinds the URL with it.
func (c *Client) handleAuthError(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.refreshing {
		c.mu.Unlock()
		return
	}
	c.refreshing = true
	bound := c.connToken
	ctx := c.runCtx
	c.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer func() {
			c.mu.Lock()
			c.refreshing = false
			c.mu.Unlock()
		}()

		token, err := c.source.Refresh(ctx)
		if err != nil {
			c.logger.Warn("token refresh after auth error failed", "error", err)
			return
		}
		if token == "" || token == bound {
			return
		}

		c.logger.Info("auth error resolved with fresh token, reconnecting")
		c.closeGen(gen)
	}()
}

// boundToken reports the token the current socket was established with.
func (c *Client) boundToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connToken
}

// forceReconnect closes the current socket so the close path re-opens
// with a fresh token. Used by the credential rotator.
func (c *Client) forceReconnect() {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// closeGen closes the socket belonging to a specific connection
// generation; a superseded generation is ignored.
func (c *Client) closeGen(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// sendControl sends a subscribe/unsubscribe frame when the connection is
// open. Fire-and-forget: a write failure surfaces through the socket's
// close path, not here.
func (c *Client) sendControl(typ, channel string) {
	data, err := json.Marshal(controlFrame{Type: typ, Channel: channel})
	if err != nil {
		return
	}
	if err := c.write(data); err != nil {
		c.logger.Debug("control frame not sent", "type", typ, "channel", channel, "error", err)
	}
}

// sendPing emits the keepalive frame.
func (c *Client) sendPing() {
	data, err := json.Marshal(controlFrame{Type: "ping", Ts: time.Now().UnixMilli()})
	if err != nil {
		return
	}
	if err := c.write(data); err != nil {
		c.logger.Debug("ping not sent", "error", err)
	}
}

// write delivers raw bytes to the current socket.
func (c *Client) write(data []byte) error {
	c.mu.Lock()
	conn := c.conn
	open := c.status == StatusOpen
	c.mu.Unlock()

	if conn == nil || !open {
		return ErrNotConnected
	}
	return conn.WriteMessage(data)
}

// notifyStatus invokes status listeners outside the lock.
func (c *Client) notifyStatus(st Status) {
	c.mu.Lock()
	subs := make([]func(Status), 0, len(c.statusSubs))
	for _, fn := range c.statusSubs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

// connectURL appends the token query parameter to the base URL.
func connectURL(base, token string) string {
	if token == "" {
		return base
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}
