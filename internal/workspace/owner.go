// Package workspace owns the server-side projects, their layout trees, and
// the PTY processes they reference. Owner is the single goroutine that
// mutates this state; everything else reaches it through
// internal/remotebridge.
package workspace

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/ptybus"
	"github.com/okena/remoted/internal/remotebridge"
	"github.com/okena/remoted/internal/remoteproto"
)

// Project is the owner's live view of one workspace project: a named,
// pathed group of terminals arranged in a layout tree.
type Project struct {
	ID            string
	Name          string
	Path          string
	Visible       bool
	Layout        *remoteproto.LayoutNode
	TerminalNames map[string]string
}

// Owner is the single-threaded workspace mutator: it owns every Project,
// every live terminal, the PtyBroadcaster, and the state-version watch. It
// is reached exclusively by draining a remotebridge.Bridge.
type Owner struct {
	bus     *ptybus.Broadcaster
	version *VersionWatch

	mu         sync.Mutex // guards everything below; taken by the owner goroutine and by direct AddProject/Snapshot callers
	projects   map[string]*Project
	focused    string
	fullscreen *remoteproto.Fullscreen
	terminals  map[string]*terminal
}

// NewOwner creates an Owner with no projects. Callers add one with
// AddProject before starting Run.
func NewOwner(bus *ptybus.Broadcaster, version *VersionWatch) *Owner {
	return &Owner{
		bus:       bus,
		version:   version,
		projects:  make(map[string]*Project),
		terminals: make(map[string]*terminal),
	}
}

// AddProject registers a project directly (used at startup and by tests);
// it does not bump the version — the initial project set is loaded before
// the bridge starts accepting commands, so no subscriber can observe it.
func (o *Owner) AddProject(p *Project) {
	if p.TerminalNames == nil {
		p.TerminalNames = make(map[string]string)
	}
	o.mu.Lock()
	o.projects[p.ID] = p
	if o.focused == "" {
		o.focused = p.ID
	}
	o.mu.Unlock()
}

// Bus returns the PtyBroadcaster this owner publishes terminal output on.
func (o *Owner) Bus() *ptybus.Broadcaster { return o.bus }

// VersionWatch returns the state-version watch this owner bumps on every
// mutation.
func (o *Owner) VersionWatch() *VersionWatch { return o.version }

// Run drains bridge forever, dispatching each command on this goroutine
// and replying exactly once. It returns when bridge.Receive()'s channel is
// closed (process shutdown).
func (o *Owner) Run(bridge *remotebridge.Bridge) {
	for msg := range bridge.Receive() {
		result := o.dispatch(msg.Command)
		msg.Reply(result)
	}
}

func (o *Owner) dispatch(cmd remotebridge.RemoteCommand) remotebridge.CommandResult {
	switch cmd.Kind {
	case remotebridge.CmdGetState:
		return o.handleGetState()
	case remotebridge.CmdSendText:
		return o.handleSendText(cmd.TerminalID, cmd.Text)
	case remotebridge.CmdRunCommand:
		return o.handleSendText(cmd.TerminalID, cmd.Text+"\n")
	case remotebridge.CmdSendSpecialKey:
		return o.handleSendSpecialKey(cmd.TerminalID, cmd.Key)
	case remotebridge.CmdSplitTerminal:
		return o.handleSplitTerminal(cmd.ProjectID, cmd.Path, cmd.Direction)
	case remotebridge.CmdCloseTerminal:
		return o.handleCloseTerminal(cmd.ProjectID, cmd.TerminalID)
	case remotebridge.CmdFocusTerminal:
		return o.handleFocusTerminal(cmd.ProjectID, cmd.TerminalID)
	case remotebridge.CmdReadContent:
		return o.handleReadContent(cmd.TerminalID)
	case remotebridge.CmdResize:
		return o.handleResize(cmd.TerminalID, cmd.Cols, cmd.Rows)
	case remotebridge.CmdCreateTerminal:
		return o.handleCreateTerminal(cmd.ProjectID, cmd.Path)
	case remotebridge.CmdRenderSnapshot:
		return o.handleRenderSnapshot(cmd.TerminalID)
	default:
		return remotebridge.Err(fmt.Sprintf("workspace: unknown command kind %d", cmd.Kind))
	}
}

func (o *Owner) handleGetState() remotebridge.CommandResult {
	snap := o.Snapshot()
	b, err := json.Marshal(snap)
	if err != nil {
		return remotebridge.Err(err.Error())
	}
	return remotebridge.Ok(b)
}

// Snapshot builds the full serializable StateSnapshot. Safe to call
// concurrently with Run; it takes the same lock the owner uses.
func (o *Owner) Snapshot() remoteproto.StateSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	projects := make([]remoteproto.Project, 0, len(o.projects))
	for _, p := range o.projects {
		projects = append(projects, remoteproto.Project{
			ID:            p.ID,
			Name:          p.Name,
			Path:          p.Path,
			Visible:       p.Visible,
			Layout:        p.Layout,
			TerminalNames: p.TerminalNames,
		})
	}
	return remoteproto.StateSnapshot{
		Projects:       projects,
		FocusedProject: o.focused,
		Fullscreen:     o.fullscreen,
		StateVersion:   o.version.Current(),
	}
}

func (o *Owner) handleSendText(terminalID, text string) remotebridge.CommandResult {
	o.mu.Lock()
	t, ok := o.terminals[terminalID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown terminal %q", terminalID))
	}
	if err := t.write([]byte(text)); err != nil {
		return remotebridge.Err(err.Error())
	}
	return remotebridge.Ok(nil)
}

func (o *Owner) handleSendSpecialKey(terminalID string, key remoteproto.SpecialKey) remotebridge.CommandResult {
	raw, ok := key.Bytes()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown special key %q", key))
	}
	o.mu.Lock()
	t, ok := o.terminals[terminalID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown terminal %q", terminalID))
	}
	if err := t.write(raw); err != nil {
		return remotebridge.Err(err.Error())
	}
	return remotebridge.Ok(nil)
}

func (o *Owner) handleResize(terminalID string, cols, rows uint16) remotebridge.CommandResult {
	o.mu.Lock()
	t, ok := o.terminals[terminalID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown terminal %q", terminalID))
	}
	if err := t.resize(cols, rows); err != nil {
		return remotebridge.Err(err.Error())
	}
	return remotebridge.Ok(nil)
}

func (o *Owner) handleReadContent(terminalID string) remotebridge.CommandResult {
	o.mu.Lock()
	t, ok := o.terminals[terminalID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown terminal %q", terminalID))
	}
	return remotebridge.OkBytes(t.snapshot())
}

func (o *Owner) handleRenderSnapshot(terminalID string) remotebridge.CommandResult {
	// RenderSnapshot and ReadContent share the same scrollback source on
	// the server side; the distinction (raw bytes vs. rendered grid) is a
	// client-side TerminalHolder concern.
	return o.handleReadContent(terminalID)
}

func (o *Owner) handleCreateTerminal(projectID, cwd string) remotebridge.CommandResult {
	o.mu.Lock()
	p, ok := o.projects[projectID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown project %q", projectID))
	}

	id := uuid.NewString()
	t, err := spawnTerminal(id, cwd, "")
	if err != nil {
		return remotebridge.Err(err.Error())
	}

	o.mu.Lock()
	o.terminals[id] = t
	if p.Layout == nil {
		p.Layout = &remoteproto.LayoutNode{Type: remoteproto.LayoutTerminal, TerminalID: id}
	} else {
		p.Layout = &remoteproto.LayoutNode{
			Type:      remoteproto.LayoutSplit,
			Direction: "vertical",
			Sizes:     []float64{0.5, 0.5},
			Children:  []*remoteproto.LayoutNode{p.Layout, {Type: remoteproto.LayoutTerminal, TerminalID: id}},
		}
	}
	o.mu.Unlock()

	go t.readLoop(o.bus)
	v := o.version.Bump()
	logger.Logger.Info().Str("terminal_id", id).Str("project_id", projectID).Uint64("state_version", v).Msg("terminal created")

	b, _ := json.Marshal(map[string]interface{}{"terminal_id": id, "shell_pid": t.shellPID()})
	return remotebridge.Ok(b)
}

// handleSplitTerminal is CreateTerminal plus an explicit split direction.
// Only SplitTerminal is reachable over HTTP (/v1/actions); CreateTerminal
// has no action or WebSocket message, although both converge on the same
// layout mutation.
func (o *Owner) handleSplitTerminal(projectID, cwd, direction string) remotebridge.CommandResult {
	if direction == "" {
		direction = "vertical"
	}
	o.mu.Lock()
	p, ok := o.projects[projectID]
	o.mu.Unlock()
	if !ok {
		return remotebridge.Err(fmt.Sprintf("workspace: unknown project %q", projectID))
	}

	id := uuid.NewString()
	t, err := spawnTerminal(id, cwd, "")
	if err != nil {
		return remotebridge.Err(err.Error())
	}

	o.mu.Lock()
	o.terminals[id] = t
	newLeaf := &remoteproto.LayoutNode{Type: remoteproto.LayoutTerminal, TerminalID: id}
	if p.Layout == nil {
		p.Layout = newLeaf
	} else {
		p.Layout = &remoteproto.LayoutNode{
			Type:      remoteproto.LayoutSplit,
			Direction: direction,
			Sizes:     []float64{0.5, 0.5},
			Children:  []*remoteproto.LayoutNode{p.Layout, newLeaf},
		}
	}
	o.mu.Unlock()

	go t.readLoop(o.bus)
	v := o.version.Bump()
	logger.Logger.Info().Str("terminal_id", id).Str("project_id", projectID).Str("direction", direction).Uint64("state_version", v).Msg("terminal split")

	b, _ := json.Marshal(map[string]interface{}{"terminal_id": id, "shell_pid": t.shellPID()})
	return remotebridge.Ok(b)
}

func (o *Owner) handleCloseTerminal(projectID, terminalID string) remotebridge.CommandResult {
	o.mu.Lock()
	p, ok := o.projects[projectID]
	if !ok {
		o.mu.Unlock()
		return remotebridge.Err(fmt.Sprintf("workspace: unknown project %q", projectID))
	}
	t, ok := o.terminals[terminalID]
	if !ok {
		o.mu.Unlock()
		return remotebridge.Err(fmt.Sprintf("workspace: unknown terminal %q", terminalID))
	}
	delete(o.terminals, terminalID)
	p.Layout = removeTerminalNode(p.Layout, terminalID)
	o.mu.Unlock()

	t.kill()
	v := o.version.Bump()
	logger.Logger.Info().Str("terminal_id", terminalID).Str("project_id", projectID).Uint64("state_version", v).Msg("terminal closed")
	return remotebridge.Ok(nil)
}

func (o *Owner) handleFocusTerminal(projectID, terminalID string) remotebridge.CommandResult {
	o.mu.Lock()
	if _, ok := o.projects[projectID]; !ok {
		o.mu.Unlock()
		return remotebridge.Err(fmt.Sprintf("workspace: unknown project %q", projectID))
	}
	o.focused = projectID
	o.fullscreen = nil
	if terminalID != "" {
		o.fullscreen = &remoteproto.Fullscreen{ProjectID: projectID, TerminalID: terminalID}
	}
	o.mu.Unlock()

	v := o.version.Bump()
	logger.Logger.Debug().Str("project_id", projectID).Str("terminal_id", terminalID).Uint64("state_version", v).Msg("focus changed")
	return remotebridge.Ok(nil)
}

// removeTerminalNode returns layout with the Terminal leaf matching id
// removed, collapsing a Split/Tabs parent down to its sole remaining
// child when only one is left.
func removeTerminalNode(layout *remoteproto.LayoutNode, id string) *remoteproto.LayoutNode {
	if layout == nil {
		return nil
	}
	if layout.Type == remoteproto.LayoutTerminal {
		if layout.TerminalID == id {
			return nil
		}
		return layout
	}

	kept := make([]*remoteproto.LayoutNode, 0, len(layout.Children))
	for _, child := range layout.Children {
		if c := removeTerminalNode(child, id); c != nil {
			kept = append(kept, c)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		layout.Children = kept
		return layout
	}
}
