// Package remotebridge funnels every mutating command from the HTTP and
// WebSocket protocol planes to the single workspace-owner goroutine, via a
// bounded channel of BridgeMessage. This decouples the network I/O
// concurrency model (many goroutines) from the workspace ownership model
// (one goroutine mutating layout and PTYs).
package remotebridge

import (
	"encoding/json"
	"errors"

	"github.com/okena/remoted/internal/remoteproto"
)

// DefaultQueueBound is the channel capacity: the back-pressure valve
// against runaway HTTP traffic.
const DefaultQueueBound = 256

// ErrBridgeFull is returned by Send when the queue is saturated; callers
// map this to HTTP 500 "bridge unavailable".
var ErrBridgeFull = errors.New("remotebridge: queue full, bridge unavailable")

// CommandKind tags a RemoteCommand's variant.
type CommandKind int

const (
	CmdGetState CommandKind = iota
	CmdSendText
	CmdRunCommand
	CmdSendSpecialKey
	CmdSplitTerminal
	CmdCloseTerminal
	CmdFocusTerminal
	CmdReadContent
	CmdResize
	CmdCreateTerminal
	CmdRenderSnapshot
)

// RemoteCommand is the enumerated command set the workspace owner consumes.
// Exactly the fields relevant to Kind are populated.
type RemoteCommand struct {
	Kind CommandKind

	TerminalID string
	Text       string
	Key        remoteproto.SpecialKey
	ProjectID  string
	Path       string
	Direction  string
	Cols       uint16
	Rows       uint16
}

// ResultKind tags a CommandResult's variant.
type ResultKind int

const (
	ResultOk ResultKind = iota
	ResultOkBytes
	ResultErr
)

// CommandResult is what the workspace owner hands back through the reply
// slot.
type CommandResult struct {
	Kind  ResultKind
	JSON  json.RawMessage
	Bytes []byte
	Err   string
}

func Ok(v json.RawMessage) CommandResult { return CommandResult{Kind: ResultOk, JSON: v} }
func OkBytes(b []byte) CommandResult     { return CommandResult{Kind: ResultOkBytes, Bytes: b} }
func Err(msg string) CommandResult       { return CommandResult{Kind: ResultErr, Err: msg} }

// BridgeMessage pairs a command with a one-shot reply channel. A dropped
// receiver (the caller gave up) is benign — the owner's send on reply is
// non-blocking so it never stalls on an abandoned caller.
type BridgeMessage struct {
	Command RemoteCommand
	reply   chan CommandResult
}

// Bridge is the bounded multi-producer, single-consumer command channel.
type Bridge struct {
	ch chan BridgeMessage
}

// New creates a Bridge with the given queue bound. Pass 0 for
// DefaultQueueBound.
func New(queueBound int) *Bridge {
	if queueBound <= 0 {
		queueBound = DefaultQueueBound
	}
	return &Bridge{ch: make(chan BridgeMessage, queueBound)}
}

// Send enqueues cmd and returns a channel the caller receives exactly one
// CommandResult from. It returns ErrBridgeFull immediately if the queue is
// saturated rather than blocking the HTTP/WS handler.
func (b *Bridge) Send(cmd RemoteCommand) (<-chan CommandResult, error) {
	reply := make(chan CommandResult, 1)
	msg := BridgeMessage{Command: cmd, reply: reply}

	select {
	case b.ch <- msg:
		return reply, nil
	default:
		return nil, ErrBridgeFull
	}
}

// Receive is called by the single workspace-owner consumer to pull the
// next command off the queue.
func (b *Bridge) Receive() <-chan BridgeMessage {
	return b.ch
}

// Reply delivers result to msg's caller. If the caller already gave up (it
// stopped reading, e.g. the HTTP request was cancelled) this is a no-op —
// the reply channel is buffered size 1, so this send never blocks the
// owner.
func (msg BridgeMessage) Reply(result CommandResult) {
	select {
	case msg.reply <- result:
	default:
	}
}
