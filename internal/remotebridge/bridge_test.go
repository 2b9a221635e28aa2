package remotebridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendReceiveReply(t *testing.T) {
	b := New(2)

	reply, err := b.Send(RemoteCommand{Kind: CmdGetState})
	require.NoError(t, err)

	msg := <-b.Receive()
	assert.Equal(t, CmdGetState, msg.Command.Kind)
	msg.Reply(Ok(nil))

	result := <-reply
	assert.Equal(t, ResultOk, result.Kind)
}

func TestSend_ErrBridgeFullWhenQueueSaturated(t *testing.T) {
	b := New(1)

	_, err := b.Send(RemoteCommand{Kind: CmdGetState})
	require.NoError(t, err)

	_, err = b.Send(RemoteCommand{Kind: CmdGetState})
	assert.ErrorIs(t, err, ErrBridgeFull)
}

func TestReply_DroppedReceiverIsBenign(t *testing.T) {
	b := New(1)
	_, err := b.Send(RemoteCommand{Kind: CmdSendText, TerminalID: "t1", Text: "hi"})
	require.NoError(t, err)

	msg := <-b.Receive()
	assert.NotPanics(t, func() { msg.Reply(Err("terminal gone")) })
}
