package remoteserver

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// requireBearer demands Authorization: Bearer <token> and validates it
// against the AuthStore. WebSocket upgrade requests never pass through
// this middleware — they authenticate via their first inbound message
// instead (see ws_handler.go).
func requireBearer(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		if token == "" || !s.Auth.ValidateToken(token) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
		}
		c.Locals("token", token)
		return c.Next()
	}
}

func extractBearer(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// requireLoopback additionally refuses non-loopback peers on
// /v1/local/pair-code even though the listener itself is already bound to
// loopback, as defense in depth.
func requireLoopback(c *fiber.Ctx) error {
	ip := c.IP()
	if ip != "127.0.0.1" && ip != "::1" {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "loopback only"})
	}
	return c.Next()
}
