package remoteserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/ptybus"
	"github.com/okena/remoted/internal/remotebridge"
	"github.com/okena/remoted/internal/remoteproto"
)

// handleStream answers GET /v1/stream: the WebSocket upgrade. Auth happens
// over the socket's first message, not a header, so this route is not
// behind requireBearer.
//
// @Summary WebSocket PTY/state stream
// @Router /v1/stream [get]
func handleStream(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return websocket.New(func(conn *websocket.Conn) {
			newWsSession(s, conn).run()
		})(c)
	}
}

// wsSession is one WebSocket connection's server-side state machine:
// AwaitingAuth until a good token arrives, then Authenticated. It owns a
// writeMu so the reader goroutine (subscribed, pong, errors), the writer
// goroutine (state_changed, heartbeat pings) and the per-subscription
// pumpReceiver goroutines (PTY frames, dropped) never interleave partial
// frames on the same socket: outbound messages are totally ordered per
// connection.
type wsSession struct {
	server *Server
	conn   *websocket.Conn

	writeMu sync.Mutex

	mu           sync.Mutex
	authed       bool
	subs         map[string]*ptybus.Receiver // terminal id -> receiver
	streamIDs    map[string]uint32           // terminal id -> assigned stream id
	nextStreamID uint32

	lastPongMu sync.Mutex
	lastPong   time.Time

	done chan struct{}
}

func newWsSession(s *Server, conn *websocket.Conn) *wsSession {
	return &wsSession{
		server:    s,
		conn:      conn,
		subs:      make(map[string]*ptybus.Receiver),
		streamIDs: make(map[string]uint32),
		done:      make(chan struct{}),
	}
}

func (w *wsSession) run() {
	defer w.teardown()

	w.lastPongMu.Lock()
	w.lastPong = time.Now()
	w.lastPongMu.Unlock()
	w.conn.SetPongHandler(func(string) error {
		w.lastPongMu.Lock()
		w.lastPong = time.Now()
		w.lastPongMu.Unlock()
		return nil
	})

	if !w.awaitAuth() {
		return
	}

	versionCh := w.server.Version.Subscribe()
	defer w.server.Version.Unsubscribe(versionCh)

	go w.writerLoop(versionCh)
	w.readerLoop()
}

// awaitAuth blocks until the client sends a valid Auth message, an idle
// timeout elapses, or the socket closes. It returns whether the session
// may proceed to the Authenticated state.
func (w *wsSession) awaitAuth() bool {
	_ = w.conn.SetReadDeadline(time.Now().Add(preAuthIdleTimeout))
	_, raw, err := w.conn.ReadMessage()
	if err != nil {
		return false
	}

	msg, err := remoteproto.ParseWsInbound(raw)
	if err != nil || msg.Type != remoteproto.InTypeAuth {
		w.writeJSON(remoteproto.ErrorMsg("expected auth message"))
		return false
	}

	if !w.server.Auth.ValidateToken(msg.Token) {
		w.writeJSON(remoteproto.AuthFailed("invalid or expired token"))
		return false
	}

	_ = w.conn.SetReadDeadline(time.Time{})
	w.mu.Lock()
	w.authed = true
	w.mu.Unlock()
	w.writeJSON(remoteproto.AuthOk())
	return true
}

func (w *wsSession) readerLoop() {
	for {
		_, raw, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := remoteproto.ParseWsInbound(raw)
		if err != nil {
			w.writeJSON(remoteproto.ErrorMsg(err.Error()))
			continue
		}
		w.handleInbound(msg)
	}
}

func (w *wsSession) handleInbound(msg remoteproto.WsInbound) {
	switch msg.Type {
	case remoteproto.InTypeSubscribe:
		w.handleSubscribe(msg.TerminalIDs)
	case remoteproto.InTypeUnsubscribe:
		w.handleUnsubscribe(msg.TerminalIDs)
	case remoteproto.InTypeSendText:
		w.sendCommand(remotebridge.RemoteCommand{Kind: remotebridge.CmdSendText, TerminalID: msg.TerminalID, Text: msg.Text})
	case remoteproto.InTypeSendSpecialKey:
		w.sendCommand(remotebridge.RemoteCommand{Kind: remotebridge.CmdSendSpecialKey, TerminalID: msg.TerminalID, Key: msg.Key})
	case remoteproto.InTypeResize:
		w.sendCommand(remotebridge.RemoteCommand{Kind: remotebridge.CmdResize, TerminalID: msg.TerminalID, Cols: msg.Cols, Rows: msg.Rows})
	case remoteproto.InTypePing:
		w.writeJSON(remoteproto.Pong())
	default:
		w.writeJSON(remoteproto.ErrorMsg("unknown message type"))
	}
}

// sendCommand fires a command at the bridge and discards the result: the
// spec gives these three verbs no WS reply.
func (w *wsSession) sendCommand(cmd remotebridge.RemoteCommand) {
	reply, err := w.server.Bridge.Send(cmd)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("bridge unavailable for ws command")
		return
	}
	go func() { <-reply }() // drain so the owner's non-blocking reply never piles up
}

func (w *wsSession) handleSubscribe(terminalIDs []string) {
	snapshot := w.server.Owner.Snapshot()
	known := make(map[string]bool, len(snapshot.Projects))
	for _, p := range snapshot.Projects {
		if p.Layout == nil {
			continue
		}
		for _, id := range p.Layout.TerminalIDs() {
			known[id] = true
		}
	}

	mappings := make(map[string]uint32)
	w.mu.Lock()
	for _, id := range terminalIDs {
		if !known[id] {
			continue // unknown ids are silently omitted, not errors
		}
		if _, already := w.subs[id]; !already {
			w.subs[id] = w.server.Bus.Subscribe()
			w.nextStreamID++
			w.streamIDs[id] = w.nextStreamID
			go w.pumpReceiver(id, w.subs[id], w.streamIDs[id])
		}
		mappings[id] = w.streamIDs[id]
	}
	w.mu.Unlock()

	w.writeJSON(remoteproto.Subscribed(mappings))
}

func (w *wsSession) handleUnsubscribe(terminalIDs []string) {
	w.mu.Lock()
	for _, id := range terminalIDs {
		if r, ok := w.subs[id]; ok {
			r.Close()
			delete(w.subs, id)
			delete(w.streamIDs, id)
		}
	}
	w.mu.Unlock()
}

// pumpReceiver is the per-subscription reader: it translates broadcaster
// events into binary PTY frames and lag events into Dropped messages,
// filtering to this one terminal id, until the receiver is closed.
func (w *wsSession) pumpReceiver(terminalID string, r *ptybus.Receiver, streamID uint32) {
	for {
		evt, lagged, closed := r.Recv()
		if closed {
			return
		}
		if lagged > 0 {
			w.writeJSON(remoteproto.Dropped(lagged))
			continue
		}
		if evt.TerminalID != terminalID {
			continue
		}
		w.writeBinary(remoteproto.BuildPTYFrame(streamID, evt.Bytes))
	}
}

// writerLoop multiplexes the state-version watch and the heartbeat timer
// onto the same socket the pumpReceiver goroutines also write to; writeMu
// keeps the interleaving atomic per-message.
func (w *wsSession) writerLoop(versionCh chan uint64) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case v, ok := <-versionCh:
			if !ok {
				return
			}
			w.writeJSON(remoteproto.StateChanged(v))
		case <-ticker.C:
			w.lastPongMu.Lock()
			silent := time.Since(w.lastPong)
			w.lastPongMu.Unlock()
			if silent > pongTimeout {
				w.closeConn()
				return
			}
			w.writeMu.Lock()
			err := w.conn.WriteMessage(websocket.PingMessage, nil)
			w.writeMu.Unlock()
			if err != nil {
				w.closeConn()
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *wsSession) writeJSON(msg remoteproto.WsOutbound) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.writeMu.Lock()
	_ = w.conn.WriteMessage(websocket.TextMessage, data)
	w.writeMu.Unlock()
}

func (w *wsSession) writeBinary(frame []byte) {
	w.writeMu.Lock()
	_ = w.conn.WriteMessage(websocket.BinaryMessage, frame)
	w.writeMu.Unlock()
}

func (w *wsSession) closeConn() {
	_ = w.conn.Close()
}

// teardown tears down every subscription this connection owns — but never
// touches a terminal's lifecycle, which is independent of WS liveness —
// and signals the writer loop to stop.
func (w *wsSession) teardown() {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	w.mu.Lock()
	for _, r := range w.subs {
		r.Close()
	}
	w.subs = nil
	w.mu.Unlock()
}
