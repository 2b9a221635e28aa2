package remoteclient

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/okena/remoted/internal/remoteproto"
)

func termNode(id string) *remoteproto.LayoutNode {
	return &remoteproto.LayoutNode{Type: remoteproto.LayoutTerminal, TerminalID: id}
}

func splitNode(children ...*remoteproto.LayoutNode) *remoteproto.LayoutNode {
	return &remoteproto.LayoutNode{Type: remoteproto.LayoutSplit, Children: children}
}

func TestDiffStates_AddedAndRemoved(t *testing.T) {
	cached := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p1", Layout: splitNode(termNode("t1"), termNode("t2"))},
		},
	}
	next := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p1", Layout: splitNode(termNode("t2"), termNode("t3"))},
		},
	}

	diff := DiffStates(cached, next)
	assert.ElementsMatch(t, []string{"t3"}, diff.Added)
	assert.ElementsMatch(t, []string{"t1"}, diff.Removed)
	assert.ElementsMatch(t, []string{"p1"}, diff.ChangedProjects)
}

func TestDiffStates_NoChange(t *testing.T) {
	snap := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p1", Layout: splitNode(termNode("t1"))},
		},
	}
	diff := DiffStates(snap, snap)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.ChangedProjects)
}

func TestDiffStates_NewProjectCountsAsChanged(t *testing.T) {
	cached := remoteproto.StateSnapshot{}
	next := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p2", Layout: termNode("t1")},
		},
	}
	diff := DiffStates(cached, next)
	assert.ElementsMatch(t, []string{"t1"}, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.ElementsMatch(t, []string{"p2"}, diff.ChangedProjects)
}

func TestDiffStates_NilLayoutIsSkipped(t *testing.T) {
	cached := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{{ID: "p1", Layout: nil}},
	}
	next := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{{ID: "p1", Layout: nil}},
	}
	diff := DiffStates(cached, next)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.Empty(t, diff.ChangedProjects)
}

func TestDiffStates_LayoutRearrangeWithSameIDsStillChangesProject(t *testing.T) {
	cached := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p1", Layout: &remoteproto.LayoutNode{
				Type:      remoteproto.LayoutSplit,
				Direction: "row",
				Children:  []*remoteproto.LayoutNode{termNode("t1"), termNode("t2")},
			}},
		},
	}
	next := remoteproto.StateSnapshot{
		Projects: []remoteproto.Project{
			{ID: "p1", Layout: &remoteproto.LayoutNode{
				Type:      remoteproto.LayoutSplit,
				Direction: "column",
				Children:  []*remoteproto.LayoutNode{termNode("t1"), termNode("t2")},
			}},
		},
	}

	diff := DiffStates(cached, next)
	assert.Empty(t, diff.Added)
	assert.Empty(t, diff.Removed)
	assert.ElementsMatch(t, []string{"p1"}, diff.ChangedProjects)
}
