package remoteclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpawner struct {
	nextID    string
	written   map[string][]byte
	resized   map[string][2]uint16
	killed    map[string]bool
	captureOn string
	captured  []byte
}

func newFakeSpawner() *fakeSpawner {
	return &fakeSpawner{
		nextID:  "t1",
		written: make(map[string][]byte),
		resized: make(map[string][2]uint16),
		killed:  make(map[string]bool),
	}
}

func (f *fakeSpawner) Spawn(cwd, shell string) (string, int, error) {
	return f.nextID, 4242, nil
}

func (f *fakeSpawner) Write(id string, data []byte) error {
	f.written[id] = append(f.written[id], data...)
	return nil
}

func (f *fakeSpawner) Resize(id string, cols, rows uint16) error {
	f.resized[id] = [2]uint16{cols, rows}
	return nil
}

func (f *fakeSpawner) Kill(id string) error {
	f.killed[id] = true
	return nil
}

func (f *fakeSpawner) Capture(id string) ([]byte, error) {
	if id != f.captureOn {
		return nil, errors.New("no such terminal")
	}
	return f.captured, nil
}

func TestLocalBackend_CreateSendResizeKill(t *testing.T) {
	spawner := newFakeSpawner()
	backend := NewLocalBackend(spawner)
	ctx := context.Background()

	id, err := backend.CreateTerminal(ctx, "/tmp", "/bin/bash")
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	pid, ok := backend.GetShellPID(id)
	assert.True(t, ok)
	assert.Equal(t, 4242, pid)

	require.NoError(t, backend.SendInput(ctx, id, []byte("ls\n")))
	assert.Equal(t, []byte("ls\n"), spawner.written[id])

	require.NoError(t, backend.Resize(ctx, id, 80, 24))
	assert.Equal(t, [2]uint16{80, 24}, spawner.resized[id])

	require.NoError(t, backend.Kill(ctx, id))
	assert.True(t, spawner.killed[id])
	_, ok = backend.GetShellPID(id)
	assert.False(t, ok)
}

func TestLocalBackend_Capabilities(t *testing.T) {
	backend := NewLocalBackend(newFakeSpawner())
	assert.False(t, backend.IsRemote())
	assert.True(t, backend.SupportsBufferCapture())
	assert.True(t, backend.UsesMouseBackend())
}

type fakeSender struct {
	textSent   map[string]string
	resizeSent map[string][2]uint16
	closed     map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{
		textSent:   make(map[string]string),
		resizeSent: make(map[string][2]uint16),
		closed:     make(map[string]bool),
	}
}

func (s *fakeSender) TrySendText(terminalID, text string) bool {
	s.textSent[terminalID] += text
	return true
}

func (s *fakeSender) TrySendResize(terminalID string, cols, rows uint16) bool {
	s.resizeSent[terminalID] = [2]uint16{cols, rows}
	return true
}

func (s *fakeSender) TryClose(terminalID string) bool {
	s.closed[terminalID] = true
	return true
}

func TestRemoteBackend_StripsConnectionPrefixBeforeSending(t *testing.T) {
	sender := newFakeSender()
	backend := NewRemoteBackend("conn1", sender)
	ctx := context.Background()

	prefixed := MakePrefixedID("conn1", "t9")
	require.NoError(t, backend.SendInput(ctx, prefixed, []byte("hi")))
	assert.Equal(t, "hi", sender.textSent["t9"])

	require.NoError(t, backend.Resize(ctx, prefixed, 100, 40))
	assert.Equal(t, [2]uint16{100, 40}, sender.resizeSent["t9"])

	require.NoError(t, backend.Kill(ctx, prefixed))
	assert.True(t, sender.closed["t9"])
}

func TestRemoteBackend_UnsupportedOperations(t *testing.T) {
	backend := NewRemoteBackend("conn1", newFakeSender())
	ctx := context.Background()

	_, err := backend.CreateTerminal(ctx, "/tmp", "/bin/bash")
	assert.ErrorIs(t, err, ErrNotSupported)

	_, err = backend.CaptureBuffer(ctx, "t1")
	assert.ErrorIs(t, err, ErrNotSupported)

	assert.False(t, backend.SupportsBufferCapture())
	assert.True(t, backend.IsRemote())

	pid, ok := backend.GetShellPID("t1")
	assert.False(t, ok)
	assert.Equal(t, 0, pid)
}

func TestRemoteBackend_ReconnectTerminalPrefixesWithoutNetworkCall(t *testing.T) {
	backend := NewRemoteBackend("conn1", newFakeSender())
	id, err := backend.ReconnectTerminal(context.Background(), "t9", "/tmp", "/bin/bash")
	require.NoError(t, err)
	assert.Equal(t, MakePrefixedID("conn1", "t9"), id)
}
