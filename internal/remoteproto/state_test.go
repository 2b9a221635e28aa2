package remoteproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildTree() *LayoutNode {
	return &LayoutNode{
		Type: LayoutSplit,
		Children: []*LayoutNode{
			{Type: LayoutTerminal, TerminalID: "t1"},
			{
				Type: LayoutTabs,
				Children: []*LayoutNode{
					{Type: LayoutTerminal, TerminalID: "t2"},
					{Type: LayoutTerminal}, // no terminal attached yet
				},
			},
		},
	}
}

func TestLayoutNode_TerminalIDs(t *testing.T) {
	ids := buildTree().TerminalIDs()
	assert.Equal(t, []string{"t1", "t2"}, ids)
}

func TestLayoutNode_SerializedChangesWithContent(t *testing.T) {
	a := buildTree()
	b := buildTree()
	assert.Equal(t, a.Serialized(), b.Serialized())

	b.Children[0].TerminalID = "t3"
	assert.NotEqual(t, a.Serialized(), b.Serialized())
}

func TestLayoutNode_NilSerializedIsEmpty(t *testing.T) {
	var n *LayoutNode
	assert.Empty(t, n.Serialized())
	assert.Nil(t, n.TerminalIDs())
}
