// Package docs registers the generated OpenAPI document swagger.HandlerDefault
// serves at /swagger/*. It is hand-maintained here rather than produced by
// `swag init` against doc comments, but follows the same swag.Spec shape
// that tool emits.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "title": "{{escape .Title}}",
        "description": "{{escape .Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "summary": "Liveness probe",
                "responses": {"200": {"description": "ok"}}
            }
        },
        "/v1/local/pair-code": {
            "get": {
                "summary": "Current pairing code, rotated when missing or expired (loopback callers only)",
                "responses": {
                    "200": {"description": "code issued"},
                    "403": {"description": "non-loopback caller"}
                }
            }
        },
        "/v1/pair": {
            "post": {
                "summary": "Exchange a pairing code for a bearer token",
                "responses": {
                    "200": {"description": "token issued"},
                    "400": {"description": "invalid request body"},
                    "401": {"description": "bad or expired code"},
                    "429": {"description": "too many failed attempts from this address"}
                }
            }
        },
        "/v1/refresh": {
            "post": {
                "summary": "Exchange a still-valid bearer token for a fresh one",
                "responses": {"200": {"description": "token refreshed"}}
            }
        },
        "/v1/tokens": {
            "get": {
                "summary": "List all active (non-revoked) tokens",
                "responses": {"200": {"description": "token list"}}
            }
        },
        "/v1/tokens/{id}": {
            "delete": {
                "summary": "Revoke a token by id",
                "responses": {"200": {"description": "revoked"}}
            }
        },
        "/v1/state": {
            "get": {
                "summary": "Fetch the current workspace state snapshot",
                "responses": {"200": {"description": "state snapshot"}}
            }
        },
        "/v1/actions": {
            "post": {
                "summary": "Dispatch a single workspace action",
                "responses": {"200": {"description": "action result"}}
            }
        },
        "/v1/stream": {
            "get": {
                "summary": "Upgrade to the dual-channel WebSocket stream",
                "responses": {"101": {"description": "switching protocols"}}
            }
        }
    }
}`

// SwaggerInfo holds exported the swag spec metadata that swagger.HandlerDefault
// reads through swag.GetSwagger.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http", "ws"},
	Title:            "remoted API",
	Description:      "Pairing, state, and action endpoints for the remote terminal multiplexer server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
