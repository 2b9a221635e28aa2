package remoteproto

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Inbound message type tags, as sent by a client over the WebSocket.
const (
	InTypeAuth           = "auth"
	InTypeSubscribe      = "subscribe"
	InTypeUnsubscribe    = "unsubscribe"
	InTypeSendText       = "send_text"
	InTypeSendSpecialKey = "send_special_key"
	InTypeResize         = "resize"
	InTypePing           = "ping"
)

// Outbound message type tags, as sent by the server over the WebSocket.
const (
	OutTypeAuthOk       = "auth_ok"
	OutTypeAuthFailed   = "auth_failed"
	OutTypeSubscribed   = "subscribed"
	OutTypeStateChanged = "state_changed"
	OutTypeDropped      = "dropped"
	OutTypePong         = "pong"
	OutTypeError        = "error"
)

// WsInbound is the tagged union of every message a client may send. Exactly
// one of the payload fields is populated, selected by Type. This is the
// canonical definition; no other package re-declares it.
type WsInbound struct {
	Type string `json:"type"`

	// auth
	Token string `json:"token,omitempty"`

	// subscribe / unsubscribe
	TerminalIDs []string `json:"terminal_ids,omitempty"`

	// send_text / send_special_key / resize
	TerminalID string     `json:"terminal_id,omitempty"`
	Text       string     `json:"text,omitempty"`
	Key        SpecialKey `json:"key,omitempty"`
	Cols       uint16     `json:"cols,omitempty"`
	Rows       uint16     `json:"rows,omitempty"`
}

// ParseWsInbound decodes a raw JSON control message. Unknown or extra
// fields are rejected outright, never tolerated.
func ParseWsInbound(raw []byte) (WsInbound, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var msg WsInbound
	if err := dec.Decode(&msg); err != nil {
		return WsInbound{}, fmt.Errorf("remoteproto: invalid inbound message: %w", err)
	}
	return msg, nil
}

// WsOutbound is the tagged union of every message the server may send.
type WsOutbound struct {
	Type string `json:"type"`

	Error        string            `json:"error,omitempty"`
	Mappings     map[string]uint32 `json:"mappings,omitempty"`
	StateVersion uint64            `json:"state_version,omitempty"`
	Count        uint64            `json:"count,omitempty"`
}

func AuthOk() WsOutbound { return WsOutbound{Type: OutTypeAuthOk} }
func Pong() WsOutbound   { return WsOutbound{Type: OutTypePong} }

func AuthFailed(reason string) WsOutbound {
	return WsOutbound{Type: OutTypeAuthFailed, Error: reason}
}

func ErrorMsg(reason string) WsOutbound {
	return WsOutbound{Type: OutTypeError, Error: reason}
}

func Subscribed(mappings map[string]uint32) WsOutbound {
	return WsOutbound{Type: OutTypeSubscribed, Mappings: mappings}
}

func StateChanged(version uint64) WsOutbound {
	return WsOutbound{Type: OutTypeStateChanged, StateVersion: version}
}

func Dropped(count uint64) WsOutbound {
	return WsOutbound{Type: OutTypeDropped, Count: count}
}
