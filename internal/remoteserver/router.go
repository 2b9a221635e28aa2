package remoteserver

import (
	"github.com/gofiber/swagger"

	_ "github.com/okena/remoted/docs"
)

// registerRoutes wires every endpoint onto s.App. The WebSocket upgrade
// and /v1/pair sit outside the bearer group: the stream authenticates via
// its first message, and pairing is how auth begins.
func registerRoutes(s *Server) {
	s.App.Get("/health", handleHealth)
	s.App.Get("/swagger/*", swagger.HandlerDefault)

	v1 := s.App.Group("/v1")

	v1.Get("/local/pair-code", requireLoopback, handleLocalPairCode(s))
	v1.Post("/pair", handlePair(s))
	v1.Get("/stream", handleStream(s))

	protected := v1.Group("", requireBearer(s))
	protected.Post("/refresh", handleRefresh(s))
	protected.Get("/tokens", handleListTokens(s))
	protected.Delete("/tokens/:id", handleRevokeToken(s))
	protected.Get("/state", handleGetState(s))
	protected.Post("/actions", handleActions(s))
}
