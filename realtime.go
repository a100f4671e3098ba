package social

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// ============================================================================
// Configuration
// ============================================================================

// RealtimeConfig configures push clients.
type RealtimeConfig struct {
	Token                string
	PlayerID             string
	AutoReconnect        bool
	MaxReconnectAttempts int
	ReconnectBaseDelay   time.Duration
	ReconnectMaxDelay    time.Duration
	HeartbeatInterval    time.Duration
	HTTPClient           *http.Client
	Logger               zerolog.Logger
}

func (c *RealtimeConfig) defaults() {
	if c.ReconnectBaseDelay == 0 {
		c.ReconnectBaseDelay = 1 * time.Second
	}
	if c.ReconnectMaxDelay == 0 {
		c.ReconnectMaxDelay = 30 * time.Second
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = 10
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 25 * time.Second
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
}

func (c *RealtimeConfig) header() http.Header {
	h := http.Header{}
	if c.Token != "" {
		h.Set("Authorization", "Bearer "+c.Token)
	}
	if c.PlayerID != "" {
		h.Set("X-Player-Id", c.PlayerID)
	}
	return h
}

// RealtimeState represents the connection state.
type RealtimeState string

const (
	StateDisconnected RealtimeState = "disconnected"
	StateConnecting   RealtimeState = "connecting"
	StateConnected    RealtimeState = "connected"
	StateReconnecting RealtimeState = "reconnecting"
)

// FrameSink consumes push frames. *Router implements it.
type FrameSink interface {
	HandleFrame(data []byte) error
	HandleEvent(eventType string, data []byte) error
}

// PushSource is a push transport feeding a FrameSink.
type PushSource interface {
	Connect(ctx context.Context) error
	Disconnect() error
	State() RealtimeState
}

// ============================================================================
// Connection listeners
// ============================================================================

type connListeners struct {
	mu             sync.RWMutex
	onConnected    []func()
	onDisconnected []func(reason string)
	onReconnecting []func(attempt int, delay time.Duration)
}

// OnConnected registers a handler for the connected meta-event.
func (l *connListeners) OnConnected(h func()) {
	l.mu.Lock()
	l.onConnected = append(l.onConnected, h)
	l.mu.Unlock()
}

// OnDisconnected registers a handler for the disconnected meta-event.
func (l *connListeners) OnDisconnected(h func(reason string)) {
	l.mu.Lock()
	l.onDisconnected = append(l.onDisconnected, h)
	l.mu.Unlock()
}

// OnReconnecting registers a handler for the reconnecting meta-event.
func (l *connListeners) OnReconnecting(h func(attempt int, delay time.Duration)) {
	l.mu.Lock()
	l.onReconnecting = append(l.onReconnecting, h)
	l.mu.Unlock()
}

func (l *connListeners) emitConnected() {
	l.mu.RLock()
	handlers := append([]func(){}, l.onConnected...)
	l.mu.RUnlock()
	for _, h := range handlers {
		go h()
	}
}

func (l *connListeners) emitDisconnected(reason string) {
	l.mu.RLock()
	handlers := append([]func(string){}, l.onDisconnected...)
	l.mu.RUnlock()
	for _, h := range handlers {
		go h(reason)
	}
}

func (l *connListeners) emitReconnecting(attempt int, delay time.Duration) {
	l.mu.RLock()
	handlers := append([]func(int, time.Duration){}, l.onReconnecting...)
	l.mu.RUnlock()
	for _, h := range handlers {
		go h(attempt, delay)
	}
}

// ============================================================================
// Reconnector
// ============================================================================

type reconnector struct {
	mu          sync.Mutex
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
	attempt     int
	connectedAt time.Time
}

func newReconnector(config *RealtimeConfig) *reconnector {
	return &reconnector{
		baseDelay:   config.ReconnectBaseDelay,
		maxDelay:    config.ReconnectMaxDelay,
		maxAttempts: config.MaxReconnectAttempts,
	}
}

func (r *reconnector) shouldReconnect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxAttempts < 0 || r.attempt < r.maxAttempts
}

func (r *reconnector) markConnected() {
	r.mu.Lock()
	r.connectedAt = time.Now()
	r.mu.Unlock()
}

// nextDelay returns the backoff before the next attempt and that attempt's
// number. A connection that stayed up for a minute resets the backoff.
func (r *reconnector) nextDelay() (time.Duration, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.connectedAt.IsZero() && time.Since(r.connectedAt) > 60*time.Second {
		r.attempt = 0
	}
	jitter := time.Duration(rand.Float64() * float64(r.baseDelay) * 0.5)
	delay := time.Duration(math.Min(
		float64(r.baseDelay)*math.Pow(2, float64(r.attempt))+float64(jitter),
		float64(r.maxDelay),
	))
	r.attempt++
	return delay, r.attempt
}

// runReconnect retries connect with backoff until it succeeds, attempts run
// out or ctx ends.
func runReconnect(ctx context.Context, recon *reconnector, l *connListeners, log zerolog.Logger, setState func(RealtimeState), connect func(context.Context) error) {
	for recon.shouldReconnect() {
		delay, attempt := recon.nextDelay()
		setState(StateReconnecting)
		l.emitReconnecting(attempt, delay)
		log.Debug().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")

		select {
		case <-ctx.Done():
			setState(StateDisconnected)
			return
		case <-time.After(delay):
		}
		err := connect(ctx)
		if err == nil {
			return
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("reconnect failed")
	}
	setState(StateDisconnected)
}

// ============================================================================
// PushWSClient
// ============================================================================

// PushWSClient receives push frames over a WebSocket with auto-reconnect and
// heartbeat.
type PushWSClient struct {
	connListeners

	baseURL string
	config  *RealtimeConfig
	sink    FrameSink
	recon   *reconnector
	log     zerolog.Logger

	mu               sync.Mutex
	conn             *websocket.Conn
	state            RealtimeState
	intentionalClose bool
	cancelFn         context.CancelFunc
}

// NewPushWSClient creates a WebSocket push client for baseURL.
func NewPushWSClient(baseURL string, config RealtimeConfig, sink FrameSink) *PushWSClient {
	config.defaults()
	return &PushWSClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		config:  &config,
		sink:    sink,
		recon:   newReconnector(&config),
		log:     config.Logger.With().Str("component", "push-ws").Logger(),
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (ws *PushWSClient) State() RealtimeState {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state
}

func (ws *PushWSClient) setState(s RealtimeState) {
	ws.mu.Lock()
	ws.state = s
	ws.mu.Unlock()
}

func (ws *PushWSClient) url() string {
	u := strings.Replace(ws.baseURL, "https://", "wss://", 1)
	u = strings.Replace(u, "http://", "ws://", 1)
	return u + "/api/social/ws?token=" + url.QueryEscape(ws.config.Token)
}

// Connect dials the socket and starts the read and heartbeat loops.
func (ws *PushWSClient) Connect(ctx context.Context) error {
	ws.mu.Lock()
	if ws.state == StateConnected || ws.state == StateConnecting {
		ws.mu.Unlock()
		return nil
	}
	ws.state = StateConnecting
	ws.intentionalClose = false
	ws.mu.Unlock()

	conn, _, err := websocket.Dial(ctx, ws.url(), &websocket.DialOptions{
		HTTPClient: ws.config.HTTPClient,
		HTTPHeader: ws.config.header(),
	})
	if err != nil {
		ws.setState(StateDisconnected)
		return fmt.Errorf("websocket dial: %w", err)
	}
	conn.SetReadLimit(1 << 20)

	connCtx, cancel := context.WithCancel(ctx)
	ws.mu.Lock()
	ws.conn = conn
	ws.state = StateConnected
	ws.cancelFn = cancel
	ws.mu.Unlock()
	ws.recon.markConnected()
	ws.emitConnected()
	ws.log.Info().Str("url", ws.baseURL).Msg("push connected")

	go ws.readLoop(ctx, connCtx, cancel, conn)
	go ws.heartbeatLoop(connCtx, conn)
	return nil
}

// Disconnect closes the socket without reconnecting.
func (ws *PushWSClient) Disconnect() error {
	ws.mu.Lock()
	ws.intentionalClose = true
	if ws.cancelFn != nil {
		ws.cancelFn()
		ws.cancelFn = nil
	}
	conn := ws.conn
	ws.conn = nil
	ws.state = StateDisconnected
	ws.mu.Unlock()

	ws.emitDisconnected("client disconnect")
	if conn != nil {
		return conn.Close(websocket.StatusNormalClosure, "client disconnect")
	}
	return nil
}

// readLoop feeds frames to the sink. parent is the context given to Connect;
// reconnects run under it so the old connection's cancel cannot reach them.
func (ws *PushWSClient) readLoop(parent, ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			ws.mu.Lock()
			intentional := ws.intentionalClose
			if ws.conn == conn {
				ws.conn = nil
				ws.state = StateDisconnected
			}
			ws.mu.Unlock()
			if intentional {
				return
			}
			ws.emitDisconnected(err.Error())
			if parent.Err() != nil {
				return
			}
			ws.log.Warn().Err(err).Msg("push connection lost")
			if ws.config.AutoReconnect {
				runReconnect(parent, ws.recon, &ws.connListeners, ws.log, ws.setState, ws.Connect)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		// Malformed frames are logged by the sink and skipped.
		_ = ws.sink.HandleFrame(data)
	}
}

func (ws *PushWSClient) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(ws.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil && ctx.Err() == nil {
				ws.log.Warn().Err(err).Msg("heartbeat timeout")
				conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

// ============================================================================
// PushSSEClient
// ============================================================================

// PushSSEClient receives push frames over Server-Sent Events with
// auto-reconnect and an idle watchdog.
type PushSSEClient struct {
	connListeners

	baseURL string
	config  *RealtimeConfig
	sink    FrameSink
	recon   *reconnector
	log     zerolog.Logger

	mu               sync.Mutex
	state            RealtimeState
	intentionalClose bool
	cancelFn         context.CancelFunc
	lastDataTime     time.Time
}

// NewPushSSEClient creates an SSE push client for baseURL.
func NewPushSSEClient(baseURL string, config RealtimeConfig, sink FrameSink) *PushSSEClient {
	config.defaults()
	return &PushSSEClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		config:  &config,
		sink:    sink,
		recon:   newReconnector(&config),
		log:     config.Logger.With().Str("component", "push-sse").Logger(),
		state:   StateDisconnected,
	}
}

// State returns the current connection state.
func (sse *PushSSEClient) State() RealtimeState {
	sse.mu.Lock()
	defer sse.mu.Unlock()
	return sse.state
}

func (sse *PushSSEClient) setState(s RealtimeState) {
	sse.mu.Lock()
	sse.state = s
	sse.mu.Unlock()
}

// Connect opens the event stream.
func (sse *PushSSEClient) Connect(ctx context.Context) error {
	sse.mu.Lock()
	if sse.state == StateConnected || sse.state == StateConnecting {
		sse.mu.Unlock()
		return nil
	}
	sse.state = StateConnecting
	sse.intentionalClose = false
	sse.mu.Unlock()

	connCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, sse.baseURL+"/api/social/events", nil)
	if err != nil {
		cancel()
		sse.setState(StateDisconnected)
		return fmt.Errorf("create request: %w", err)
	}
	req.Header = sse.config.header()
	req.Header.Set("Accept", "text/event-stream")

	resp, err := sse.config.HTTPClient.Do(req)
	if err != nil {
		cancel()
		sse.setState(StateDisconnected)
		return fmt.Errorf("SSE connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		sse.setState(StateDisconnected)
		return fmt.Errorf("SSE HTTP %d", resp.StatusCode)
	}

	sse.mu.Lock()
	sse.state = StateConnected
	sse.lastDataTime = time.Now()
	sse.cancelFn = cancel
	sse.mu.Unlock()
	sse.recon.markConnected()
	sse.emitConnected()
	sse.log.Info().Str("url", sse.baseURL).Msg("push connected")

	go sse.readLoop(ctx, cancel, resp)
	go sse.watchdog(connCtx, cancel)
	return nil
}

// Disconnect closes the stream without reconnecting.
func (sse *PushSSEClient) Disconnect() error {
	sse.mu.Lock()
	sse.intentionalClose = true
	if sse.cancelFn != nil {
		sse.cancelFn()
		sse.cancelFn = nil
	}
	sse.state = StateDisconnected
	sse.mu.Unlock()

	sse.emitDisconnected("client disconnect")
	return nil
}

func (sse *PushSSEClient) readLoop(parent context.Context, cancel context.CancelFunc, resp *http.Response) {
	defer cancel()
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	var event string
	var data []string
	for scanner.Scan() {
		line := scanner.Text()

		sse.mu.Lock()
		sse.lastDataTime = time.Now()
		sse.mu.Unlock()

		switch {
		case line == "":
			sse.flush(event, data)
			event, data = "", nil
		case strings.HasPrefix(line, ":"):
			// heartbeat comment
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	sse.flush(event, data)

	sse.mu.Lock()
	intentional := sse.intentionalClose
	sse.state = StateDisconnected
	sse.mu.Unlock()
	if intentional {
		return
	}
	reason := "stream ended"
	if err := scanner.Err(); err != nil {
		reason = err.Error()
	}
	sse.emitDisconnected(reason)
	if parent.Err() != nil {
		return
	}
	sse.log.Warn().Str("reason", reason).Msg("push connection lost")

	if sse.config.AutoReconnect {
		runReconnect(parent, sse.recon, &sse.connListeners, sse.log, sse.setState, sse.Connect)
	}
}

// flush hands one complete SSE event to the sink. Events without an
// "event:" line carry a full envelope in their data.
func (sse *PushSSEClient) flush(event string, data []string) {
	if len(data) == 0 {
		return
	}
	payload := []byte(strings.Join(data, "\n"))
	if event == "" || event == "message" {
		_ = sse.sink.HandleFrame(payload)
		return
	}
	_ = sse.sink.HandleEvent(event, payload)
}

func (sse *PushSSEClient) watchdog(ctx context.Context, cancel context.CancelFunc) {
	interval := sse.config.HeartbeatInterval
	ticker := time.NewTicker(interval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sse.mu.Lock()
			stale := time.Since(sse.lastDataTime) > 2*interval
			sse.mu.Unlock()
			if stale {
				sse.log.Warn().Msg("no data from push stream, closing")
				cancel()
				return
			}
		}
	}
}
