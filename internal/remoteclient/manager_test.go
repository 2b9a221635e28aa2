package remoteclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okena/remoted/internal/config"
)

func useTempConfigDir(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("REMOTED_CONFIG_DIR", dir)
	config.Runtime = config.DetectRuntime()
}

func TestConnectionManager_AddServerPersistsAndTracks(t *testing.T) {
	useTempConfigDir(t)
	m := NewConnectionManager()
	defer m.Shutdown()

	conn, err := m.AddServer("example.invalid", 19100)
	require.NoError(t, err)
	require.NotNil(t, conn)

	got, ok := m.Connection(conn.ID)
	assert.True(t, ok)
	assert.Same(t, conn, got)

	saved, err := LoadConnections()
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "example.invalid", saved[0].Host)
	assert.Equal(t, 19100, saved[0].Port)
	assert.Equal(t, conn.ID, saved[0].ConnectionID)
}

func TestConnectionManager_RemoveServerDropsHoldersAndPersists(t *testing.T) {
	useTempConfigDir(t)
	m := NewConnectionManager()
	defer m.Shutdown()

	conn, err := m.AddServer("example.invalid", 19100)
	require.NoError(t, err)

	id := MakePrefixedID(conn.ID, "t1")
	conn.mu.Lock()
	conn.holders[id] = NewTerminalHolder(80, 24)
	conn.mu.Unlock()

	require.NoError(t, m.RemoveServer(conn.ID))

	_, ok := m.Connection(conn.ID)
	assert.False(t, ok)

	_, ok = conn.Holder(id)
	assert.False(t, ok)

	saved, err := LoadConnections()
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestConnectionManager_RemoveServerUnknownID(t *testing.T) {
	useTempConfigDir(t)
	m := NewConnectionManager()
	defer m.Shutdown()

	err := m.RemoveServer("does-not-exist")
	assert.Error(t, err)
}

func TestConnectionManager_HolderAndBackendResolveByPrefixedID(t *testing.T) {
	useTempConfigDir(t)
	m := NewConnectionManager()
	defer m.Shutdown()

	conn, err := m.AddServer("example.invalid", 19100)
	require.NoError(t, err)

	id := MakePrefixedID(conn.ID, "t1")
	conn.mu.Lock()
	conn.holders[id] = NewTerminalHolder(80, 24)
	conn.mu.Unlock()

	h, ok := m.Holder(id)
	assert.True(t, ok)
	assert.NotNil(t, h)

	backend, err := m.Backend(id)
	require.NoError(t, err)
	assert.True(t, backend.IsRemote())

	_, ok = m.Holder("not-a-remote-id")
	assert.False(t, ok)

	_, err = m.Backend("not-a-remote-id")
	assert.Error(t, err)
}

func TestSplitConnectionID(t *testing.T) {
	connID, bareID := splitConnectionID(MakePrefixedID("conn1", "t1"))
	assert.Equal(t, "conn1", connID)
	assert.Equal(t, "t1", bareID)

	connID, bareID = splitConnectionID("not-remote")
	assert.Equal(t, "", connID)
	assert.Equal(t, "not-remote", bareID)
}

func TestConnectionManager_ConnectionsSnapshot(t *testing.T) {
	useTempConfigDir(t)
	m := NewConnectionManager()
	defer m.Shutdown()

	_, err := m.AddServer("host-a.invalid", 1)
	require.NoError(t, err)
	_, err = m.AddServer("host-b.invalid", 2)
	require.NoError(t, err)

	conns := m.Connections()
	assert.Len(t, conns, 2)
}
