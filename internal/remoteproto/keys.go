package remoteproto

// SpecialKey names a non-printable key the client can ask the server to
// send to a terminal. This table is a wire contract: every byte sequence
// below is asserted by tests, not just documented.
type SpecialKey string

const (
	KeyEnter     SpecialKey = "Enter"
	KeyBackspace SpecialKey = "Backspace"
	KeyDelete    SpecialKey = "Delete"
	KeyCtrlC     SpecialKey = "CtrlC"
	KeyCtrlD     SpecialKey = "CtrlD"
	KeyCtrlZ     SpecialKey = "CtrlZ"
	KeyTab       SpecialKey = "Tab"
	KeyArrowUp   SpecialKey = "ArrowUp"
	KeyArrowDown SpecialKey = "ArrowDown"
	KeyArrowLeft SpecialKey = "ArrowLeft"
	KeyArrowRight SpecialKey = "ArrowRight"
	KeyHome      SpecialKey = "Home"
	KeyEnd       SpecialKey = "End"
	KeyPageUp    SpecialKey = "PageUp"
	KeyPageDown  SpecialKey = "PageDown"
	KeyEscape    SpecialKey = "Escape"
)

var specialKeyBytes = map[SpecialKey][]byte{
	KeyEnter:      []byte("\r"),
	KeyBackspace:  []byte("\x7f"),
	KeyDelete:     []byte("\x1b[3~"),
	KeyCtrlC:      []byte("\x03"),
	KeyCtrlD:      []byte("\x04"),
	KeyCtrlZ:      []byte("\x1a"),
	KeyTab:        []byte("\t"),
	KeyArrowUp:    []byte("\x1b[A"),
	KeyArrowDown:  []byte("\x1b[B"),
	KeyArrowRight: []byte("\x1b[C"),
	KeyArrowLeft:  []byte("\x1b[D"),
	KeyHome:       []byte("\x1b[H"),
	KeyEnd:        []byte("\x1b[F"),
	KeyPageUp:     []byte("\x1b[5~"),
	KeyPageDown:   []byte("\x1b[6~"),
	KeyEscape:     []byte("\x1b"),
}

// Bytes returns the literal byte sequence a special key sends to the PTY,
// and whether the key name was recognized.
func (k SpecialKey) Bytes() ([]byte, bool) {
	b, ok := specialKeyBytes[k]
	return b, ok
}
