package remoteclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusConstructors(t *testing.T) {
	assert.Equal(t, StatusDisconnected, Disconnected().Kind)
	assert.Equal(t, StatusConnecting, Connecting().Kind)
	assert.Equal(t, StatusPairing, Pairing().Kind)
	assert.Equal(t, StatusConnected, Connected().Kind)

	r := Reconnecting(3)
	assert.Equal(t, StatusReconnecting, r.Kind)
	assert.Equal(t, 3, r.Attempt)

	e := Errored("dial failed: %s", "timeout")
	assert.Equal(t, StatusError, e.Kind)
	assert.Equal(t, "dial failed: timeout", e.Message)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "connected", Connected().String())
	assert.Equal(t, "reconnecting(attempt=2)", Reconnecting(2).String())
	assert.Equal(t, "error(boom)", Errored("boom").String())
}

func TestStatusKindString(t *testing.T) {
	assert.Equal(t, "disconnected", StatusDisconnected.String())
	assert.Equal(t, "pairing", StatusPairing.String())
	assert.Equal(t, "unknown", StatusKind(99).String())
}
