package remoteclient

import (
	"context"
	"errors"
	"fmt"
)

// Transport is the uniform interface UI code drives to push input/resize
// to a terminal without knowing whether it is local or remote.
type Transport interface {
	SendInput(ctx context.Context, terminalID string, data []byte) error
	Resize(ctx context.Context, terminalID string, cols, rows uint16) error
	UsesMouseBackend() bool
}

// Backend additionally exposes lifecycle operations. Local and Remote are
// the two required implementations.
type Backend interface {
	Transport

	CreateTerminal(ctx context.Context, cwd, shell string) (string, error)
	ReconnectTerminal(ctx context.Context, id, cwd, shell string) (string, error)
	Kill(ctx context.Context, id string) error
	CaptureBuffer(ctx context.Context, id string) ([]byte, error)
	SupportsBufferCapture() bool
	IsRemote() bool
	GetShellPID(id string) (int, bool)
}

// ErrNotSupported is returned by Backend operations the implementation
// deliberately does not provide (e.g. CreateTerminal on the remote
// backend).
var ErrNotSupported = errors.New("remoteclient: operation not supported by this backend")

// LocalProcessSpawner is the capability contract this package requires
// from the host's local PTY spawner: enough to drive a Transport/Backend
// without owning the spawner's implementation.
type LocalProcessSpawner interface {
	Spawn(cwd, shell string) (id string, pid int, err error)
	Write(id string, data []byte) error
	Resize(id string, cols, rows uint16) error
	Kill(id string) error
	Capture(id string) ([]byte, error)
}

// LocalBackend drives PTY processes directly through a LocalProcessSpawner.
type LocalBackend struct {
	spawner LocalProcessSpawner
	pids    map[string]int
}

// NewLocalBackend wraps spawner as a Backend.
func NewLocalBackend(spawner LocalProcessSpawner) *LocalBackend {
	return &LocalBackend{spawner: spawner, pids: make(map[string]int)}
}

func (b *LocalBackend) SendInput(_ context.Context, terminalID string, data []byte) error {
	return b.spawner.Write(terminalID, data)
}

func (b *LocalBackend) Resize(_ context.Context, terminalID string, cols, rows uint16) error {
	return b.spawner.Resize(terminalID, cols, rows)
}

func (b *LocalBackend) UsesMouseBackend() bool { return true }

func (b *LocalBackend) CreateTerminal(_ context.Context, cwd, shell string) (string, error) {
	id, pid, err := b.spawner.Spawn(cwd, shell)
	if err != nil {
		return "", fmt.Errorf("remoteclient: spawning local terminal: %w", err)
	}
	b.pids[id] = pid
	return id, nil
}

// ReconnectTerminal has no meaning for a process this client already owns
// directly; local terminals are reconnected by the spawner's own
// session-replay mechanism, not this layer.
func (b *LocalBackend) ReconnectTerminal(_ context.Context, id, _, _ string) (string, error) {
	return id, nil
}

func (b *LocalBackend) Kill(_ context.Context, id string) error {
	delete(b.pids, id)
	return b.spawner.Kill(id)
}

func (b *LocalBackend) CaptureBuffer(_ context.Context, id string) ([]byte, error) {
	return b.spawner.Capture(id)
}

func (b *LocalBackend) SupportsBufferCapture() bool { return true }
func (b *LocalBackend) IsRemote() bool              { return false }

func (b *LocalBackend) GetShellPID(id string) (int, bool) {
	pid, ok := b.pids[id]
	return pid, ok
}

// RemoteCommandSender is the minimal capability RemoteBackend needs from a
// connection's WebSocket writer: a best-effort try-send that reports
// success as a bool. Connection (connection.go) implements it.
type RemoteCommandSender interface {
	TrySendText(terminalID, text string) bool
	TrySendResize(terminalID string, cols, rows uint16) bool
	TryClose(terminalID string) bool
}

// RemoteBackend drives terminals that live on one remote server,
// identified by ConnectionID. SendInput and Resize ignore the sender's
// result and always return nil: a failed send is dropped, not retried.
// They return only once the sender does, and with Connection as the
// sender that is after a synchronous socket write.
type RemoteBackend struct {
	ConnectionID string
	sender       RemoteCommandSender
}

// NewRemoteBackend wraps sender as a Backend scoped to connectionID.
func NewRemoteBackend(connectionID string, sender RemoteCommandSender) *RemoteBackend {
	return &RemoteBackend{ConnectionID: connectionID, sender: sender}
}

func (b *RemoteBackend) SendInput(_ context.Context, terminalID string, data []byte) error {
	b.sender.TrySendText(StripPrefix(terminalID, b.ConnectionID), string(data))
	return nil
}

func (b *RemoteBackend) Resize(_ context.Context, terminalID string, cols, rows uint16) error {
	b.sender.TrySendResize(StripPrefix(terminalID, b.ConnectionID), cols, rows)
	return nil
}

func (b *RemoteBackend) UsesMouseBackend() bool { return true }

// CreateTerminal fails: remote terminals pre-exist on the server and are
// discovered through state reconciliation, never spawned by the client.
func (b *RemoteBackend) CreateTerminal(context.Context, string, string) (string, error) {
	return "", fmt.Errorf("remoteclient: create terminal: %w", ErrNotSupported)
}

// ReconnectTerminal performs no network call: it just registers the
// prefixed id locally so UI code can address a terminal it already knows
// the bare id of, before the reconciler's next subscribe cycle confirms it.
func (b *RemoteBackend) ReconnectTerminal(_ context.Context, id, _, _ string) (string, error) {
	return MakePrefixedID(b.ConnectionID, id), nil
}

func (b *RemoteBackend) Kill(_ context.Context, id string) error {
	b.sender.TryClose(StripPrefix(id, b.ConnectionID))
	return nil
}

func (b *RemoteBackend) CaptureBuffer(context.Context, string) ([]byte, error) {
	return nil, fmt.Errorf("remoteclient: capture buffer: %w", ErrNotSupported)
}

func (b *RemoteBackend) SupportsBufferCapture() bool { return false }
func (b *RemoteBackend) IsRemote() bool              { return true }

func (b *RemoteBackend) GetShellPID(string) (int, bool) { return 0, false }

var _ Backend = (*LocalBackend)(nil)
var _ Backend = (*RemoteBackend)(nil)
