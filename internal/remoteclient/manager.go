package remoteclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ConnectionManager owns every remote server a client knows about: the
// persisted ServerConfig records, the live Connection goroutines, and the
// union of their Backends addressable by prefixed terminal id. It is the
// single entry point UI code drives — everything else in this package is
// a detail of one connection.
type ConnectionManager struct {
	mu      sync.Mutex
	conns   map[string]*Connection // connection id -> live connection
	events  chan Event
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewConnectionManager creates an empty manager. Events fired by any
// connection are funneled onto the returned channel; the caller is
// expected to drain it (a bounded buffer, not blocking callers, keeps a
// slow host from stalling connection goroutines).
func NewConnectionManager() *ConnectionManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		conns:   make(map[string]*Connection),
		events:  make(chan Event, 64),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Events returns the channel every connection's notifications are
// multiplexed onto.
func (m *ConnectionManager) Events() <-chan Event { return m.events }

// LoadSaved reconstructs connections from the on-disk ServerConfig list
// and starts each one's background loop immediately.
func (m *ConnectionManager) LoadSaved() error {
	servers, err := LoadConnections()
	if err != nil {
		return err
	}
	for _, sc := range servers {
		m.addAndStart(sc)
	}
	return nil
}

// AddServer registers a brand-new server (no saved token yet: the caller
// must call Pair on the returned Connection before it can reach
// Connected) and persists it together with every other connection this
// manager holds. The file is rewritten from that list, so saved records
// that were not loaded through LoadSaved are not kept.
func (m *ConnectionManager) AddServer(host string, port int) (*Connection, error) {
	id := uuid.NewString()
	sc := ServerConfig{ConnectionID: id, Host: host, Port: port}
	conn := m.addAndStart(sc)

	if err := m.persist(); err != nil {
		return conn, fmt.Errorf("remoteclient: persisting new server: %w", err)
	}
	return conn, nil
}

func (m *ConnectionManager) addAndStart(sc ServerConfig) *Connection {
	conn := NewConnection(sc.ConnectionID, sc.Host, sc.Port, sc.SavedToken, m.events)

	m.mu.Lock()
	m.conns[sc.ConnectionID] = conn
	m.mu.Unlock()

	go conn.Run(m.baseCtx)
	return conn
}

// RemoveServer stops a connection's loop, drops its holders, and removes
// it from the persisted list.
func (m *ConnectionManager) RemoveServer(connectionID string) error {
	m.mu.Lock()
	conn, ok := m.conns[connectionID]
	if ok {
		delete(m.conns, connectionID)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("remoteclient: unknown connection %q", connectionID)
	}
	conn.Stop()
	conn.DropAllHolders()
	return m.persist()
}

// Connection returns the live Connection for an id, if any.
func (m *ConnectionManager) Connection(connectionID string) (*Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connectionID]
	return c, ok
}

// Connections returns a snapshot slice of every known connection.
func (m *ConnectionManager) Connections() []*Connection {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Connection, 0, len(m.conns))
	for _, c := range m.conns {
		out = append(out, c)
	}
	return out
}

// Holder resolves a prefixed terminal id (remote:{conn}:{id}) to its
// TerminalHolder, looking up the owning connection first.
func (m *ConnectionManager) Holder(prefixedID string) (*TerminalHolder, bool) {
	connID, _ := splitConnectionID(prefixedID)
	if connID == "" {
		return nil, false
	}
	conn, ok := m.Connection(connID)
	if !ok {
		return nil, false
	}
	return conn.Holder(prefixedID)
}

// Backend returns a RemoteBackend addressing the connection a prefixed
// terminal id belongs to.
func (m *ConnectionManager) Backend(prefixedID string) (Backend, error) {
	connID, _ := splitConnectionID(prefixedID)
	if connID == "" {
		return nil, fmt.Errorf("remoteclient: %q is not a remote terminal id", prefixedID)
	}
	conn, ok := m.Connection(connID)
	if !ok {
		return nil, fmt.Errorf("remoteclient: unknown connection %q", connID)
	}
	return NewRemoteBackend(connID, conn), nil
}

func (m *ConnectionManager) persist() error {
	m.mu.Lock()
	servers := make([]ServerConfig, 0, len(m.conns))
	for id, c := range m.conns {
		c.mu.Lock()
		servers = append(servers, ServerConfig{
			ConnectionID: id,
			Host:         c.Host,
			Port:         c.Port,
			SavedToken:   c.token,
		})
		c.mu.Unlock()
	}
	m.mu.Unlock()
	return SaveConnections(servers)
}

// Shutdown stops every connection's background loop.
func (m *ConnectionManager) Shutdown() {
	m.cancel()
}

var _ RemoteCommandSender = (*Connection)(nil)

func splitConnectionID(prefixedID string) (connID, bareID string) {
	if !IsRemoteTerminal(prefixedID) {
		return "", prefixedID
	}
	rest := prefixedID[len(remotePrefix)+1:]
	for i := 0; i < len(rest); i++ {
		if rest[i] == ':' {
			return rest[:i], rest[i+1:]
		}
	}
	return "", prefixedID
}

