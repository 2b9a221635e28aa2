package remoteclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/remoteproto"
)

// refreshAge mirrors remoteauth.RefreshAge without importing the server
// package from the client: the constant is part of the wire contract, not
// server-internal state, so it is pinned here too rather than shared
// across the process boundary a real deployment would have.
const refreshAge = 72000 * time.Second

const (
	backoffBase = 1 * time.Second
	backoffMax  = 30 * time.Second
)

// Event is something a ConnectionManager surfaces to its host so the host
// can persist a token or log a toast. Delivery is best-effort; a slow host
// never blocks a connection goroutine.
type Event struct {
	Kind       string // "token_obtained", "token_refreshed", "dropped", "server_error"
	Token      string
	DroppedN   uint64
	ServerErr  string
}

// Connection is one server record: its config, live status, cached
// snapshot, and the terminal holders mirroring a subset of its server's
// terminals. All fields are guarded by mu.
type Connection struct {
	ID   string
	Host string
	Port int

	httpClient *http.Client
	events     chan<- Event

	mu        sync.Mutex
	status    ConnectionStatus
	token     string
	tokenAt   time.Time
	cached    remoteproto.StateSnapshot
	holders   map[string]*TerminalHolder // prefixed id -> holder
	streamIDs map[string]uint32          // bare terminal id -> stream id, this connection's subscription window

	ws       *websocket.Conn
	wsWriteMu sync.Mutex

	// rawSink, if set, receives every PTY frame's raw payload alongside the
	// normal TerminalHolder feed — for a passthrough consumer (the CLI
	// attach command) that writes bytes straight to a real terminal
	// instead of rendering through vt10x.
	rawSink func(terminalID string, payload []byte)

	cancel context.CancelFunc
}

// SetRawSink installs a callback invoked with (bare terminal id, payload)
// for every PTY frame this connection receives. Only one sink may be
// installed; a second call replaces the first.
func (c *Connection) SetRawSink(fn func(terminalID string, payload []byte)) {
	c.mu.Lock()
	c.rawSink = fn
	c.mu.Unlock()
}

// NewConnection creates a disconnected Connection record. events may be
// nil if the host doesn't want notifications.
func NewConnection(id, host string, port int, savedToken string, events chan<- Event) *Connection {
	return &Connection{
		ID:         id,
		Host:       host,
		Port:       port,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		events:     events,
		status:     Disconnected(),
		token:      savedToken,
		holders:    make(map[string]*TerminalHolder),
		streamIDs:  make(map[string]uint32),
	}
}

// Status returns the current connection status.
func (c *Connection) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Connection) setStatus(s ConnectionStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

func (c *Connection) baseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func (c *Connection) wsURL() string {
	return fmt.Sprintf("ws://%s:%d/v1/stream", c.Host, c.Port)
}

// Run drives the connect -> stream -> reconnect loop until ctx is
// cancelled or Stop is called. It is meant to run on its own goroutine.
func (c *Connection) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := c.connectAndStream(ctx)
		if ctx.Err() != nil {
			return
		}

		var authErr *authFailedError
		if errors.As(err, &authErr) {
			c.setStatus(Pairing())
			return
		}

		attempt++
		c.setStatus(Reconnecting(attempt))
		delay := backoffDelay(attempt)
		logger.Logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Str("connection_id", c.ID).Msg("remote connection lost, retrying")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Stop cancels the connection's background loop.
func (c *Connection) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func backoffDelay(attempt int) time.Duration {
	d := backoffBase * time.Duration(math.Pow(2, float64(attempt-1)))
	if d > backoffMax {
		d = backoffMax
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4 + 1))
	return d + jitter
}

// authFailedError signals an unrecoverable auth failure: the caller must
// demote to Pairing rather than keep retrying with backoff.
type authFailedError struct{ reason string }

func (e *authFailedError) Error() string { return "remoteclient: auth failed: " + e.reason }

// connectAndStream runs the full connect procedure — health probe, token
// verification, WS dial, auth handshake, subscribe-all — and then blocks
// reading the WebSocket until it closes or errors.
func (c *Connection) connectAndStream(ctx context.Context) error {
	c.setStatus(Connecting())
	if err := c.healthProbe(ctx); err != nil {
		return fmt.Errorf("remoteclient: health probe: %w", err)
	}

	if c.token == "" {
		c.setStatus(Pairing())
		return &authFailedError{reason: "no saved token"}
	}

	if err := c.verifyToken(ctx); err != nil {
		if isUnauthorized(err) {
			c.setStatus(Pairing())
			return &authFailedError{reason: "saved token rejected"}
		}
		return err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("remoteclient: dialing stream: %w", err)
	}
	c.mu.Lock()
	c.ws = conn
	c.mu.Unlock()
	defer conn.Close()

	if err := c.authenticate(conn); err != nil {
		return err
	}
	c.setStatus(Connected())

	if err := c.fetchAndSubscribeAll(ctx); err != nil {
		return err
	}

	return c.readLoop(conn)
}

func (c *Connection) healthProbe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe returned %d", resp.StatusCode)
	}
	return nil
}

func (c *Connection) verifyToken(ctx context.Context) error {
	snap, err := c.fetchState(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cached = snap
	c.mu.Unlock()
	return nil
}

type httpStatusError struct{ code int }

func (e *httpStatusError) Error() string { return fmt.Sprintf("http %d", e.code) }

func isUnauthorized(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.code == http.StatusUnauthorized
}

func (c *Connection) fetchState(ctx context.Context) (remoteproto.StateSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL()+"/v1/state", nil)
	if err != nil {
		return remoteproto.StateSnapshot{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.tokenValue())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return remoteproto.StateSnapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		return remoteproto.StateSnapshot{}, &httpStatusError{code: resp.StatusCode}
	}
	if resp.StatusCode != http.StatusOK {
		return remoteproto.StateSnapshot{}, fmt.Errorf("remoteclient: GET /v1/state returned %d", resp.StatusCode)
	}

	var snap remoteproto.StateSnapshot
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return remoteproto.StateSnapshot{}, err
	}
	if err := json.Unmarshal(body, &snap); err != nil {
		return remoteproto.StateSnapshot{}, err
	}
	return snap, nil
}

// Token returns the connection's current bearer token, if any.
func (c *Connection) Token() string {
	return c.tokenValue()
}

func (c *Connection) tokenValue() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// Pair exchanges a human-entered pairing code for a token, stores it, and
// surfaces a TokenObtained event so the host can persist it.
func (c *Connection) Pair(ctx context.Context, code string) error {
	body, _ := json.Marshal(map[string]string{"code": code})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/v1/pair", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("remoteclient: pair failed with status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}

	c.mu.Lock()
	c.token = out.Token
	c.tokenAt = time.Now()
	c.mu.Unlock()

	c.emit(Event{Kind: "token_obtained", Token: out.Token})
	return nil
}

// MaybeRefreshToken issues POST /v1/refresh if the current token is older
// than refreshAge, keeping the old token on failure.
func (c *Connection) MaybeRefreshToken(ctx context.Context) {
	c.mu.Lock()
	age := time.Since(c.tokenAt)
	token := c.token
	c.mu.Unlock()
	if c.tokenAt.IsZero() || age < refreshAge {
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL()+"/v1/refresh", nil)
	if err != nil {
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("connection_id", c.ID).Msg("token refresh failed, keeping old token")
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return
	}

	var out struct {
		Token string `json:"token"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &out); err != nil {
		return
	}

	c.mu.Lock()
	c.token = out.Token
	c.tokenAt = time.Now()
	c.mu.Unlock()
	c.emit(Event{Kind: "token_refreshed", Token: out.Token})
}

func (c *Connection) authenticate(conn *websocket.Conn) error {
	auth, _ := json.Marshal(remoteproto.WsInbound{Type: remoteproto.InTypeAuth, Token: c.tokenValue()})
	if err := conn.WriteMessage(websocket.TextMessage, auth); err != nil {
		return fmt.Errorf("remoteclient: sending auth: %w", err)
	}

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("remoteclient: reading auth reply: %w", err)
	}
	var reply remoteproto.WsOutbound
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("remoteclient: parsing auth reply: %w", err)
	}
	if reply.Type == remoteproto.OutTypeAuthFailed {
		return &authFailedError{reason: reply.Error}
	}
	if reply.Type != remoteproto.OutTypeAuthOk {
		return fmt.Errorf("remoteclient: unexpected reply to auth: %s", reply.Type)
	}
	return nil
}

// fetchAndSubscribeAll finishes the connect procedure: fetch /state,
// cache it, and subscribe to the union of terminal ids present.
func (c *Connection) fetchAndSubscribeAll(ctx context.Context) error {
	snap, err := c.fetchState(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.cached = snap
	c.mu.Unlock()

	ids := terminalIDSet(snap)
	all := make([]string, 0, len(ids))
	c.mu.Lock()
	for id := range ids {
		all = append(all, id)
		prefixed := MakePrefixedID(c.ID, id)
		if _, exists := c.holders[prefixed]; !exists {
			c.holders[prefixed] = NewTerminalHolder(80, 24)
		}
	}
	c.mu.Unlock()
	return c.subscribe(all)
}

func (c *Connection) subscribe(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	msg, _ := json.Marshal(remoteproto.WsInbound{Type: remoteproto.InTypeSubscribe, TerminalIDs: ids})
	return c.writeWS(websocket.TextMessage, msg)
}

// TrySendText, TrySendResize, and TryClose implement RemoteCommandSender
// for RemoteBackend: each is a best-effort write that reports failure only
// as a false result, since the reconciler or the reconnect loop is what
// recovers a broken socket, not the caller. There is no outbound queue:
// each call writes to the socket synchronously under wsWriteMu, so it
// waits for any write already in progress and does not return early.
func (c *Connection) TrySendText(terminalID, text string) bool {
	msg, err := json.Marshal(remoteproto.WsInbound{
		Type:       remoteproto.InTypeSendText,
		TerminalID: terminalID,
		Text:       text,
	})
	if err != nil {
		return false
	}
	return c.writeWS(websocket.TextMessage, msg) == nil
}

func (c *Connection) TrySendResize(terminalID string, cols, rows uint16) bool {
	msg, err := json.Marshal(remoteproto.WsInbound{
		Type:       remoteproto.InTypeResize,
		TerminalID: terminalID,
		Cols:       cols,
		Rows:       rows,
	})
	if err != nil {
		return false
	}
	return c.writeWS(websocket.TextMessage, msg) == nil
}

func (c *Connection) TryClose(terminalID string) bool {
	return c.unsubscribe([]string{terminalID}) == nil
}

func (c *Connection) unsubscribe(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	msg, _ := json.Marshal(remoteproto.WsInbound{Type: remoteproto.InTypeUnsubscribe, TerminalIDs: ids})
	return c.writeWS(websocket.TextMessage, msg)
}

func (c *Connection) writeWS(messageType int, data []byte) error {
	c.mu.Lock()
	conn := c.ws
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("remoteclient: no active websocket")
	}
	c.wsWriteMu.Lock()
	defer c.wsWriteMu.Unlock()
	return conn.WriteMessage(messageType, data)
}

// readLoop consumes JSON control messages and binary PTY frames until the
// socket closes. On state_changed it runs the reconciler; on a binary
// frame it routes bytes to the right TerminalHolder by stream id.
func (c *Connection) readLoop(conn *websocket.Conn) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("remoteclient: read: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.routeFrame(data)
		case websocket.TextMessage:
			c.handleOutbound(data)
		}
	}
}

func (c *Connection) routeFrame(data []byte) {
	streamID, payload, err := remoteproto.ParsePTYFrame(data)
	if err != nil {
		return // malformed frame: discard, never close the connection
	}

	c.mu.Lock()
	var bareID string
	for id, sid := range c.streamIDs {
		if sid == streamID {
			bareID = id
			break
		}
	}
	prefixed := ""
	if bareID != "" {
		prefixed = MakePrefixedID(c.ID, bareID)
	}
	holder := c.holders[prefixed]
	sink := c.rawSink
	c.mu.Unlock()

	if holder != nil {
		holder.ProcessOutput(payload)
	}
	if sink != nil && bareID != "" {
		sink(bareID, payload)
	}
}

func (c *Connection) handleOutbound(data []byte) {
	var msg remoteproto.WsOutbound
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case remoteproto.OutTypeStateChanged:
		go c.reconcile(context.Background())
	case remoteproto.OutTypeSubscribed:
		c.applyMappings(msg.Mappings)
	case remoteproto.OutTypeDropped:
		c.emit(Event{Kind: "dropped", DroppedN: msg.Count})
	case remoteproto.OutTypeError:
		c.emit(Event{Kind: "server_error", ServerErr: msg.Error})
	}
}

func (c *Connection) applyMappings(mappings map[string]uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, streamID := range mappings {
		c.streamIDs[id] = streamID
	}
}

// reconcile refetches state, diffs it against the cached snapshot,
// subscribes/unsubscribes the delta, creates/drops holders, and replaces
// the cache.
func (c *Connection) reconcile(ctx context.Context) {
	next, err := c.fetchState(ctx)
	if err != nil {
		logger.Logger.Warn().Err(err).Str("connection_id", c.ID).Msg("reconcile: refetch failed")
		return
	}

	c.mu.Lock()
	cached := c.cached
	c.mu.Unlock()

	diff := DiffStates(cached, next)

	if err := c.unsubscribe(diff.Removed); err != nil {
		logger.Logger.Warn().Err(err).Msg("reconcile: unsubscribe failed")
	}
	if err := c.subscribe(diff.Added); err != nil {
		logger.Logger.Warn().Err(err).Msg("reconcile: subscribe failed")
	}

	c.mu.Lock()
	for _, id := range diff.Added {
		prefixed := MakePrefixedID(c.ID, id)
		if _, exists := c.holders[prefixed]; !exists {
			c.holders[prefixed] = NewTerminalHolder(80, 24)
		}
	}
	for _, id := range diff.Removed {
		prefixed := MakePrefixedID(c.ID, id)
		delete(c.holders, prefixed)
		delete(c.streamIDs, id)
	}
	c.cached = next
	c.mu.Unlock()
}

// Holder returns the TerminalHolder for a prefixed terminal id, if any.
func (c *Connection) Holder(prefixedID string) (*TerminalHolder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, ok := c.holders[prefixedID]
	return h, ok
}

// DropAllHolders removes every holder belonging to this connection — used
// on teardown. Holders belonging to other connections are never in this
// map to begin with, so no filtering is needed here; ConnectionManager is
// responsible for the cross-connection isolation guarantee.
func (c *Connection) DropAllHolders() {
	c.mu.Lock()
	c.holders = make(map[string]*TerminalHolder)
	c.mu.Unlock()
}

func (c *Connection) emit(evt Event) {
	if c.events == nil {
		return
	}
	select {
	case c.events <- evt:
	default:
	}
}
