package remoteclient

import (
	"testing"

	"github.com/hinshun/vt10x"
	"github.com/stretchr/testify/assert"
)

type fakeTheme struct{}

func (fakeTheme) Resolve(vt10x.Color) uint32 { return 0xFFFFFFFF }
func (fakeTheme) DefaultFG() uint32          { return 0xFFFFFFFF }
func (fakeTheme) DefaultBG() uint32          { return 0xFF000000 }

func TestHolderDirtyFlag(t *testing.T) {
	h := NewTerminalHolder(10, 5)
	assert.False(t, h.IsDirty())

	h.ProcessOutput([]byte("hello"))
	assert.True(t, h.IsDirty())
	assert.True(t, h.TakeDirty())
	assert.False(t, h.IsDirty())
}

func TestHolderVisibleCellsExactCount(t *testing.T) {
	h := NewTerminalHolder(10, 5)
	h.ProcessOutput([]byte("hi"))

	cells := h.GetVisibleCells(fakeTheme{})
	assert.Len(t, cells, 50)
}

func TestHolderResize(t *testing.T) {
	h := NewTerminalHolder(10, 5)
	h.Resize(20, 10)

	cells := h.GetVisibleCells(fakeTheme{})
	assert.Len(t, cells, 200)
}

func TestHolderScrollClampsAtZero(t *testing.T) {
	h := NewTerminalHolder(10, 5)
	h.Scroll(-5)
	assert.Equal(t, 0, h.scrollOffset)
	h.Scroll(3)
	assert.Equal(t, 3, h.scrollOffset)
}
