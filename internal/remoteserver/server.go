// Package remoteserver is the HTTP and WebSocket surface of the remote
// protocol: pairing/token endpoints, the /v1/state and /v1/actions bridge
// surface, and the /v1/stream WebSocket upgrade. It binds to loopback
// only and writes/removes a small remote.json so a same-host CLI can
// discover where it's listening.
package remoteserver

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"github.com/okena/remoted/internal/config"
	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/ptybus"
	"github.com/okena/remoted/internal/remoteauth"
	"github.com/okena/remoted/internal/remotebridge"
	"github.com/okena/remoted/internal/workspace"
)

// portRangeStart and portRangeEnd bound the preferred listen range; if
// every port in the range is taken the OS assigns one (net.Listen with
// port 0).
const (
	portRangeStart = 19100
	portRangeEnd   = 19200

	// maxConns caps simultaneous TCP connections at the listener; a
	// loopback multiplexer serves a handful of clients, not a crowd.
	maxConns = 64
)

// remoteInfo is the shape written to remote.json.
type remoteInfo struct {
	Port int `json:"port"`
	PID  int `json:"pid"`
}

// Server wires the AuthStore, PtyBroadcaster, VersionWatch, Bridge and
// workspace Owner together behind a fiber.App, and owns the remote.json
// lifecycle.
type Server struct {
	App *fiber.App

	Auth    *remoteauth.AuthStore
	Bus     *ptybus.Broadcaster
	Version *workspace.VersionWatch
	Bridge  *remotebridge.Bridge
	Owner   *workspace.Owner

	remoteJSONPath string
	listener       net.Listener
}

// New constructs a Server with fresh AuthStore/Broadcaster/VersionWatch/
// Bridge instances and the given Owner, which must already have its
// starting projects registered.
func New(owner *workspace.Owner) (*Server, error) {
	auth, err := remoteauth.NewAuthStore()
	if err != nil {
		return nil, fmt.Errorf("remoteserver: %w", err)
	}

	s := &Server{
		App:            fiber.New(fiber.Config{BodyLimit: 1 << 20, DisableStartupMessage: true}),
		Auth:           auth,
		Bus:            owner.Bus(),
		Version:        owner.VersionWatch(),
		Bridge:         remotebridge.New(remotebridge.DefaultQueueBound),
		Owner:          owner,
		remoteJSONPath: config.Runtime.RemoteJSONPath(),
	}
	registerRoutes(s)
	return s, nil
}

// Listen binds to loopback on the preferred port range (falling back to an
// OS-assigned port), writes remote.json, runs the workspace owner loop,
// and blocks serving requests until the listener is closed.
func (s *Server) Listen() error {
	ln, err := listenLoopback()
	if err != nil {
		return fmt.Errorf("remoteserver: binding listener: %w", err)
	}
	ln = netutil.LimitListener(ln, maxConns)
	s.listener = ln

	if err := s.writeRemoteJSON(ln.Addr().(*net.TCPAddr).Port); err != nil {
		logger.Logger.Warn().Err(err).Msg("failed to write remote.json")
	}

	go s.Owner.Run(s.Bridge)

	logger.Logger.Info().Str("addr", ln.Addr().String()).Msg("remote server listening")
	if err := s.App.Listener(ln); err != nil {
		return fmt.Errorf("remoteserver: serving: %w", err)
	}
	return nil
}

// Addr returns the address the server is listening on, or nil before
// Listen has bound it. Useful when the OS assigned the port.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown gracefully stops the fiber app and removes remote.json.
func (s *Server) Shutdown() error {
	err := s.App.Shutdown()
	_ = os.Remove(s.remoteJSONPath)
	return err
}

func listenLoopback() (net.Listener, error) {
	for port := portRangeStart; port <= portRangeEnd; port++ {
		ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return ln, nil
		}
	}
	// every preferred port taken: let the OS assign one.
	return net.Listen("tcp", "127.0.0.1:0")
}

// writeRemoteJSON writes {port, pid} atomically (temp file then rename)
// with 0600 permissions.
func (s *Server) writeRemoteJSON(port int) error {
	info := remoteInfo{Port: port, PID: os.Getpid()}
	data, err := marshalRemoteInfo(info)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.remoteJSONPath)
	tmp := filepath.Join(dir, fmt.Sprintf(".remote-%s.tmp", uuid.NewString()))
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing temp remote.json: %w", err)
	}
	if err := os.Rename(tmp, s.remoteJSONPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("renaming remote.json into place: %w", err)
	}
	return nil
}

func marshalRemoteInfo(info remoteInfo) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"port":%d,"pid":%d}`, info.Port, info.PID)), nil
}

// heartbeatInterval and pongTimeout govern the WebSocket writer's
// keepalive, kept here alongside the other server-lifetime constants.
const (
	heartbeatInterval  = 30 * time.Second
	pongTimeout        = 60 * time.Second
	preAuthIdleTimeout = 10 * time.Second
)
