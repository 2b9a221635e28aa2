package remoteclient

import (
	"sync"

	"github.com/hinshun/vt10x"
)

// Mode bit positions read off a vt10x cell. vt10x does not model
// strike-through or dim, so those attribute bits are always 0 from this
// emulator.
const (
	attrBold      = 1 << 0
	attrUnderline = 1 << 1
	attrBlink     = 1 << 2
	attrInverse   = 1 << 3
	attrItalic    = 1 << 4
)

// CursorShape names the visual form get_cursor reports to the UI.
type CursorShape int

const (
	CursorBlock CursorShape = iota
	CursorUnderline
	CursorBeam
)

// Cell is one flattened grid position handed to the UI by
// GetVisibleCells: exactly cols*rows of these, row-major.
type Cell struct {
	Glyph rune
	FG    uint32 // ARGB resolved through Theme
	BG    uint32
	Attrs uint8 // bitfield: bold=1 italic=2 underline=4 strike=8 inverse=16 dim=32
	// Spacer marks the empty placeholder cell following a double-width
	// glyph, so the UI can skip rendering a second glyph in its slot.
	Spacer bool
}

// Theme resolves a vt10x ANSI color index (and default fg/bg) to an ARGB
// value; the UI owns the palette, TerminalHolder only consults it.
type Theme interface {
	Resolve(vt10x.Color) uint32
	DefaultFG() uint32
	DefaultBG() uint32
}

// Cursor is the position and visual form GetCursor reports.
type Cursor struct {
	Col     int
	Row     int
	Shape   CursorShape
	Visible bool
}

// TerminalHolder is the client-side mirror of one remote (or local)
// terminal: a vt10x grid fed by raw PTY bytes, exposing cell/cursor
// snapshots for an emulator the core does not own. Construction is
// idempotent per prefixed id at the Connection layer (see reconcile and
// fetchAndSubscribeAll in connection.go); the holder itself has no notion
// of its own id.
type TerminalHolder struct {
	mu    sync.Mutex
	vt    vt10x.Terminal
	cols  int
	rows  int
	dirty bool

	scrollOffset int
}

// NewTerminalHolder creates a holder with an initial grid size. The
// emulator's own event listener is never attached: DA queries and cursor
// reports are answered by the server's emulator, not mirrored here.
func NewTerminalHolder(cols, rows int) *TerminalHolder {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &TerminalHolder{
		vt:   vt10x.New(vt10x.WithSize(cols, rows)),
		cols: cols,
		rows: rows,
	}
}

// ProcessOutput feeds bytes through the VT/ANSI parser and marks the
// holder dirty for coalesced repaint scheduling.
func (h *TerminalHolder) ProcessOutput(data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = h.vt.Write(data)
	h.dirty = true
}

// Resize resizes the underlying grid.
func (h *TerminalHolder) Resize(cols, rows int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cols, h.rows = cols, rows
	h.vt.Resize(cols, rows)
	h.dirty = true
}

// Scroll shifts the display offset into scrollback; positive delta moves
// into history. vt10x itself has no scrollback window, so this holder
// clamps a display-only offset the UI layer is expected to apply when it
// asks for a historical render (not modeled further here — out of the
// wire-protocol core this spec covers).
func (h *TerminalHolder) Scroll(delta int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.scrollOffset += delta
	if h.scrollOffset < 0 {
		h.scrollOffset = 0
	}
}

// IsDirty reports the dirty flag without clearing it.
func (h *TerminalHolder) IsDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dirty
}

// TakeDirty reports and clears the dirty flag in one step.
func (h *TerminalHolder) TakeDirty() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	d := h.dirty
	h.dirty = false
	return d
}

// GetCursor returns the cursor position, shape, and visibility. vt10x
// itself only models a single cursor glyph (no DECSCUSR shape tracking),
// so Shape is always CursorBlock here; a richer emulator swapped in by
// the UI layer can report the other two variants.
func (h *TerminalHolder) GetCursor() Cursor {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.vt.Cursor()
	return Cursor{
		Col:     c.X,
		Row:     c.Y,
		Shape:   CursorBlock,
		Visible: h.vt.CursorVisible(),
	}
}

// GetVisibleCells returns exactly cols*rows cells in row-major order.
// Double-width glyphs emit one real cell followed by a spacer placeholder
// cell carrying the same fg/bg so column alignment is preserved; inverse
// cells pass through raw (unswapped) colors and rely on the caller to
// swap fg/bg on paint.
func (h *TerminalHolder) GetVisibleCells(theme Theme) []Cell {
	h.mu.Lock()
	defer h.mu.Unlock()

	cells := make([]Cell, 0, h.cols*h.rows)
	for row := 0; row < h.rows; row++ {
		col := 0
		for col < h.cols {
			vc := h.vt.Cell(col, row)
			cell := Cell{
				Glyph: vc.Char,
				FG:    theme.Resolve(vc.FG),
				BG:    theme.Resolve(vc.BG),
				Attrs: attrsOf(vc.Mode),
			}
			if cell.Glyph == 0 {
				cell.Glyph = ' '
			}
			cells = append(cells, cell)
			col++

			if runeWidth(vc.Char) == 2 && col < h.cols {
				cells = append(cells, Cell{Glyph: ' ', FG: cell.FG, BG: cell.BG, Spacer: true})
				col++
			}
		}
	}
	return cells
}

// attrsOf maps vt10x's mode bits onto the Cell attribute bitfield: bold(1),
// italic(2), underline(4), strike(8, unsupported by vt10x), inverse(16),
// dim(32, unsupported by vt10x).
func attrsOf(mode int16) uint8 {
	var out uint8
	if mode&attrBold != 0 {
		out |= 1
	}
	if mode&attrItalic != 0 {
		out |= 2
	}
	if mode&attrUnderline != 0 {
		out |= 4
	}
	if mode&attrInverse != 0 {
		out |= 16
	}
	return out
}

var _ = attrBlink // vt10x tracks blink but the Cell attribute bitfield has no slot for it

// runeWidth reports the terminal display width of r: 2 for the common
// East Asian wide/fullwidth ranges, 1 otherwise. The UI-owned emulator
// this core feeds is expected to apply a fuller Unicode width table; this
// is the minimal rule needed to keep double-width accounting correct for
// the spacer-cell invariant.
func runeWidth(r rune) int {
	switch {
	case r >= 0x1100 && r <= 0x115F, // Hangul Jamo
		r >= 0x2E80 && r <= 0xA4CF, // CJK radicals .. Yi
		r >= 0xAC00 && r <= 0xD7A3, // Hangul syllables
		r >= 0xF900 && r <= 0xFAFF, // CJK compatibility ideographs
		r >= 0xFF00 && r <= 0xFF60, // fullwidth forms
		r >= 0xFFE0 && r <= 0xFFE6,
		r >= 0x20000 && r <= 0x3FFFD:
		return 2
	default:
		return 1
	}
}
