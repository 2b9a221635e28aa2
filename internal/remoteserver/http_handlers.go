package remoteserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/remoteauth"
	"github.com/okena/remoted/internal/remotebridge"
	"github.com/okena/remoted/internal/remoteproto"
)

var startTime = time.Now()

// handleHealth answers GET /health: liveness, version, uptime. No auth.
//
// @Summary Liveness probe
// @Router /health [get]
func handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": "1",
		"uptime":  time.Since(startTime).Seconds(),
	})
}

// handleLocalPairCode answers GET /v1/local/pair-code: the current
// pairing code, for the same-host CLI. Loopback only (see requireLoopback).
//
// @Summary Current pairing code
// @Router /v1/local/pair-code [get]
func handleLocalPairCode(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code, err := s.Auth.GetOrCreateCode()
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"code": code})
	}
}

type pairRequest struct {
	Code string `json:"code"`
}

// handlePair answers POST /v1/pair: exchanges a pairing code for a bearer
// token. No auth (this is how auth begins).
//
// @Summary Pair with a code
// @Router /v1/pair [post]
func handlePair(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pairRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}

		token, expiresIn, err := s.Auth.TryPair(req.Code, c.IP())
		if err != nil {
			status := fiber.StatusUnauthorized
			if errors.Is(err, remoteauth.ErrRateLimited) {
				status = fiber.StatusTooManyRequests
			}
			return c.Status(status).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"token": token, "expires_in": int64(expiresIn.Seconds())})
	}
}

// handleRefresh answers POST /v1/refresh: mints a new token and revokes
// the presented one.
//
// @Summary Refresh bearer token
// @Router /v1/refresh [post]
func handleRefresh(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractBearer(c)
		newToken, expiresIn, err := s.Auth.RefreshToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"token": newToken, "expires_in": int64(expiresIn.Seconds())})
	}
}

// handleListTokens answers GET /v1/tokens.
//
// @Summary List active tokens
// @Router /v1/tokens [get]
func handleListTokens(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokens := s.Auth.ListTokens()
		out := make([]fiber.Map, 0, len(tokens))
		for _, t := range tokens {
			out = append(out, fiber.Map{
				"id":         t.ID,
				"created_at": t.CreatedAt,
				"last_used":  t.LastUsed,
			})
		}
		return c.JSON(out)
	}
}

// handleRevokeToken answers DELETE /v1/tokens/{id}.
//
// @Summary Revoke a token
// @Router /v1/tokens/{id} [delete]
func handleRevokeToken(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if !s.Auth.RevokeToken(id) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown token id"})
		}
		return c.JSON(fiber.Map{"ok": true})
	}
}

// handleGetState answers GET /v1/state by round-tripping a GetState
// command through the Bridge to the workspace owner.
//
// @Summary Current workspace state
// @Router /v1/state [get]
func handleGetState(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		reply, err := s.Bridge.Send(remotebridge.RemoteCommand{Kind: remotebridge.CmdGetState})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "bridge unavailable"})
		}
		result := <-reply
		switch result.Kind {
		case remotebridge.ResultOk:
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(result.JSON)
		case remotebridge.ResultErr:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": result.Err})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected result"})
		}
	}
}

// handleActions answers POST /v1/actions: a tagged dispatch onto the same
// Bridge command set the WebSocket surface uses.
//
// @Summary Dispatch a workspace action
// @Router /v1/actions [post]
func handleActions(s *Server) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dec := json.NewDecoder(bytes.NewReader(c.Body()))
		dec.DisallowUnknownFields()
		var req remoteproto.ActionRequest
		if err := dec.Decode(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid action"})
		}

		cmd, err := actionToCommand(req)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		reply, err := s.Bridge.Send(cmd)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "bridge unavailable"})
		}
		result := <-reply
		switch result.Kind {
		case remotebridge.ResultOk:
			if len(result.JSON) == 0 {
				return c.JSON(fiber.Map{"ok": true})
			}
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Send(result.JSON)
		case remotebridge.ResultOkBytes:
			// the HTTP actions path has no binary response channel; the
			// original discards render bytes here too.
			return c.JSON(fiber.Map{"ok": true})
		case remotebridge.ResultErr:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": result.Err})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "unexpected result"})
		}
	}
}

func actionToCommand(req remoteproto.ActionRequest) (remotebridge.RemoteCommand, error) {
	switch req.Type {
	case remoteproto.ActionSendText:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdSendText, TerminalID: req.TerminalID, Text: req.Text}, nil
	case remoteproto.ActionRunCommand:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdRunCommand, TerminalID: req.TerminalID, Text: req.Command}, nil
	case remoteproto.ActionSendSpecialKey:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdSendSpecialKey, TerminalID: req.TerminalID, Key: req.Key}, nil
	case remoteproto.ActionSplitTerminal:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdSplitTerminal, ProjectID: req.ProjectID, Path: req.Path, Direction: req.Direction}, nil
	case remoteproto.ActionCloseTerminal:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdCloseTerminal, ProjectID: req.ProjectID, TerminalID: req.TerminalID}, nil
	case remoteproto.ActionFocusTerminal:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdFocusTerminal, ProjectID: req.ProjectID, TerminalID: req.TerminalID}, nil
	case remoteproto.ActionReadContent:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdReadContent, TerminalID: req.TerminalID}, nil
	case remoteproto.ActionResize:
		return remotebridge.RemoteCommand{Kind: remotebridge.CmdResize, TerminalID: req.TerminalID, Cols: req.Cols, Rows: req.Rows}, nil
	default:
		logger.Logger.Warn().Str("type", req.Type).Msg("unknown action type")
		return remotebridge.RemoteCommand{}, errUnknownAction
	}
}

var errUnknownAction = errors.New("remoteserver: unknown action type")
