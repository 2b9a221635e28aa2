package workspace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okena/remoted/internal/ptybus"
	"github.com/okena/remoted/internal/remotebridge"
	"github.com/okena/remoted/internal/remoteproto"
)

func newTestOwner() *Owner {
	return NewOwner(ptybus.New(ptybus.DefaultBufferSize), NewVersionWatch())
}

func TestAddProject_FocusesTheFirstProject(t *testing.T) {
	o := newTestOwner()
	o.AddProject(&Project{ID: "p1", Name: "one"})
	o.AddProject(&Project{ID: "p2", Name: "two"})

	snap := o.Snapshot()
	assert.Equal(t, "p1", snap.FocusedProject)
	assert.Len(t, snap.Projects, 2)
}

func TestAddProject_InitializesTerminalNames(t *testing.T) {
	o := newTestOwner()
	o.AddProject(&Project{ID: "p1"})

	snap := o.Snapshot()
	require.Len(t, snap.Projects, 1)
	assert.NotNil(t, snap.Projects[0].TerminalNames)
}

func TestDispatch_CreateSendCloseTerminal(t *testing.T) {
	o := newTestOwner()
	o.AddProject(&Project{ID: "p1"})

	createResult := o.dispatch(remotebridge.RemoteCommand{
		Kind:      remotebridge.CmdCreateTerminal,
		ProjectID: "p1",
		Path:      "",
	})
	require.Equal(t, remotebridge.ResultOk, createResult.Kind)

	var created struct {
		TerminalID string `json:"terminal_id"`
	}
	require.NoError(t, json.Unmarshal(createResult.JSON, &created))
	require.NotEmpty(t, created.TerminalID)

	snap := o.Snapshot()
	require.Len(t, snap.Projects, 1)
	assert.NotNil(t, snap.Projects[0].Layout)
	assert.Contains(t, snap.Projects[0].Layout.TerminalIDs(), created.TerminalID)

	sendResult := o.dispatch(remotebridge.RemoteCommand{
		Kind:       remotebridge.CmdSendText,
		TerminalID: created.TerminalID,
		Text:       "echo hi\n",
	})
	assert.Equal(t, remotebridge.ResultOk, sendResult.Kind)

	closeResult := o.dispatch(remotebridge.RemoteCommand{
		Kind:       remotebridge.CmdCloseTerminal,
		ProjectID:  "p1",
		TerminalID: created.TerminalID,
	})
	assert.Equal(t, remotebridge.ResultOk, closeResult.Kind)

	snap = o.Snapshot()
	assert.Nil(t, snap.Projects[0].Layout)
}

func TestDispatch_UnknownTerminalIsAnError(t *testing.T) {
	o := newTestOwner()
	result := o.dispatch(remotebridge.RemoteCommand{
		Kind:       remotebridge.CmdSendText,
		TerminalID: "does-not-exist",
		Text:       "hi",
	})
	assert.Equal(t, remotebridge.ResultErr, result.Kind)
	assert.Contains(t, result.Err, "unknown terminal")
}

func TestDispatch_FocusTerminalSetsFullscreen(t *testing.T) {
	o := newTestOwner()
	o.AddProject(&Project{ID: "p1"})

	result := o.dispatch(remotebridge.RemoteCommand{
		Kind:       remotebridge.CmdFocusTerminal,
		ProjectID:  "p1",
		TerminalID: "t1",
	})
	require.Equal(t, remotebridge.ResultOk, result.Kind)

	snap := o.Snapshot()
	require.NotNil(t, snap.Fullscreen)
	assert.Equal(t, "p1", snap.Fullscreen.ProjectID)
	assert.Equal(t, "t1", snap.Fullscreen.TerminalID)
}

func TestDispatch_FocusUnknownProjectIsAnError(t *testing.T) {
	o := newTestOwner()
	result := o.dispatch(remotebridge.RemoteCommand{
		Kind:      remotebridge.CmdFocusTerminal,
		ProjectID: "does-not-exist",
	})
	assert.Equal(t, remotebridge.ResultErr, result.Kind)
}

func TestRemoveTerminalNode_CollapsesSplitToSoleSurvivor(t *testing.T) {
	layout := &remoteproto.LayoutNode{
		Type:      remoteproto.LayoutSplit,
		Direction: "vertical",
		Children: []*remoteproto.LayoutNode{
			{Type: remoteproto.LayoutTerminal, TerminalID: "t1"},
			{Type: remoteproto.LayoutTerminal, TerminalID: "t2"},
		},
	}
	collapsed := removeTerminalNode(layout, "t1")
	require.NotNil(t, collapsed)
	assert.Equal(t, remoteproto.LayoutTerminal, collapsed.Type)
	assert.Equal(t, "t2", collapsed.TerminalID)
}

func TestRemoveTerminalNode_RemovingLastChildReturnsNil(t *testing.T) {
	layout := &remoteproto.LayoutNode{Type: remoteproto.LayoutTerminal, TerminalID: "t1"}
	assert.Nil(t, removeTerminalNode(layout, "t1"))
}
