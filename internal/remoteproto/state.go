package remoteproto

import "encoding/json"

// StateSnapshot is the full serializable view of workspace state returned
// by GET /v1/state and reconstructed by the client's reconciler.
type StateSnapshot struct {
	Projects       []Project `json:"projects"`
	FocusedProject string    `json:"focused_project_id,omitempty"`
	Fullscreen     *Fullscreen `json:"fullscreen,omitempty"`
	StateVersion   uint64    `json:"state_version"`
}

// Project is one workspace project: a named, pathed group of terminals
// arranged in an optional layout tree.
type Project struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Path          string            `json:"path"`
	Visible       bool              `json:"visible"`
	Layout        *LayoutNode       `json:"layout,omitempty"`
	TerminalNames map[string]string `json:"terminal_names,omitempty"`
}

// Fullscreen marks which project/terminal, if any, currently owns the
// fullscreen view.
type Fullscreen struct {
	ProjectID  string `json:"project_id"`
	TerminalID string `json:"terminal_id,omitempty"`
}

// LayoutNode is the tagged recursive layout tree: exactly one of Terminal,
// Split, or Tabs is populated, selected by Type.
type LayoutNode struct {
	Type string `json:"type"`

	// terminal
	TerminalID string `json:"terminal_id,omitempty"`
	Minimized  bool   `json:"minimized,omitempty"`
	Detached   bool   `json:"detached,omitempty"`

	// split
	Direction string        `json:"direction,omitempty"`
	Sizes     []float64     `json:"sizes,omitempty"`
	Children  []*LayoutNode `json:"children,omitempty"`

	// tabs
	ActiveIndex int `json:"active_index,omitempty"`
}

const (
	LayoutTerminal = "terminal"
	LayoutSplit    = "split"
	LayoutTabs     = "tabs"
)

// TerminalIDs returns every non-empty terminal id referenced anywhere in
// the layout tree, in the order a depth-first walk encounters them.
func (n *LayoutNode) TerminalIDs() []string {
	var ids []string
	n.walk(func(leaf *LayoutNode) {
		if leaf.TerminalID != "" {
			ids = append(ids, leaf.TerminalID)
		}
	})
	return ids
}

func (n *LayoutNode) walk(visit func(*LayoutNode)) {
	if n == nil {
		return
	}
	switch n.Type {
	case LayoutTerminal:
		visit(n)
	case LayoutSplit, LayoutTabs:
		for _, child := range n.Children {
			child.walk(visit)
		}
	}
}

// Serialized returns the canonical JSON encoding used to detect whether a
// project's layout changed between two snapshots.
func (n *LayoutNode) Serialized() string {
	if n == nil {
		return ""
	}
	b, err := json.Marshal(n)
	if err != nil {
		return ""
	}
	return string(b)
}

// ActionRequest is the tagged dispatch body for POST /v1/actions. It mirrors
// the bridge command set minus GetState (served by GET /v1/state) and
// CreateTerminal and RenderSnapshot, which stay off this route.
type ActionRequest struct {
	Type string `json:"type"`

	TerminalID string `json:"terminal_id,omitempty"`
	Text       string `json:"text,omitempty"`
	Command    string `json:"command,omitempty"`
	Key        SpecialKey `json:"key,omitempty"`
	ProjectID  string `json:"project_id,omitempty"`
	Path       string `json:"path,omitempty"`
	Direction  string `json:"direction,omitempty"`
	Cols       uint16 `json:"cols,omitempty"`
	Rows       uint16 `json:"rows,omitempty"`
}

const (
	ActionSendText       = "send_text"
	ActionRunCommand     = "run_command"
	ActionSendSpecialKey = "send_special_key"
	ActionSplitTerminal  = "split_terminal"
	ActionCloseTerminal  = "close_terminal"
	ActionFocusTerminal  = "focus_terminal"
	ActionReadContent    = "read_content"
	ActionResize         = "resize"
)
