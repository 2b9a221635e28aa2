package workspace

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/creack/pty"

	"github.com/okena/remoted/internal/logger"
	"github.com/okena/remoted/internal/ptybus"
)

// scrollbackLimit bounds the decompressed scrollback buffer kept per
// terminal for ReadContent and RenderSnapshot. Subscribing to a terminal
// does not replay this buffer; a subscriber only receives new output.
const scrollbackLimit = 64 * 1024

// terminal is one server-owned PTY process.
type terminal struct {
	id  string
	pty *os.File
	cmd *exec.Cmd

	mu         sync.Mutex
	scrollback []byte // compressed with brotli; see appendOutput/snapshot
}

func spawnTerminal(id, cwd, shell string) (*terminal, error) {
	if shell == "" {
		shell = "bash"
	}
	cmd := exec.Command(shell)
	if cwd != "" {
		cmd.Dir = cwd
	}
	cmd.Env = append(os.Environ(), "TERM=xterm-256color")

	ptyFile, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("workspace: starting pty for terminal %s: %w", id, err)
	}

	return &terminal{id: id, pty: ptyFile, cmd: cmd}, nil
}

func (t *terminal) resize(cols, rows uint16) error {
	return pty.Setsize(t.pty, &pty.Winsize{Cols: cols, Rows: rows})
}

func (t *terminal) write(p []byte) error {
	_, err := t.pty.Write(p)
	return err
}

func (t *terminal) kill() {
	_ = t.pty.Close()
	if t.cmd.Process != nil {
		_ = t.cmd.Process.Kill()
	}
}

func (t *terminal) shellPID() int {
	if t.cmd.Process == nil {
		return 0
	}
	return t.cmd.Process.Pid
}

// readLoop publishes every chunk read from the PTY onto the broadcaster
// and appends it (brotli-compressed) to the scrollback buffer, until the
// PTY is closed.
func (t *terminal) readLoop(bus *ptybus.Broadcaster) {
	buf := make([]byte, 4096)
	for {
		n, err := t.pty.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			bus.Publish(t.id, chunk)
			t.appendScrollback(chunk)
		}
		if err != nil {
			logger.Logger.Debug().Str("terminal_id", t.id).Err(err).Msg("pty read loop ended")
			return
		}
	}
}

func (t *terminal) appendScrollback(chunk []byte) {
	current := t.decompressScrollback()
	current = append(current, chunk...)
	if len(current) > scrollbackLimit {
		current = current[len(current)-scrollbackLimit:]
	}

	var compressed bytes.Buffer
	w := brotli.NewWriter(&compressed)
	_, _ = w.Write(current)
	_ = w.Close()

	t.mu.Lock()
	t.scrollback = compressed.Bytes()
	t.mu.Unlock()
}

func (t *terminal) decompressScrollback() []byte {
	t.mu.Lock()
	compressed := t.scrollback
	t.mu.Unlock()
	if len(compressed) == 0 {
		return nil
	}

	var out bytes.Buffer
	r := brotli.NewReader(bytes.NewReader(compressed))
	if _, err := out.ReadFrom(r); err != nil {
		return nil
	}
	return out.Bytes()
}

// snapshot returns the current scrollback content, used to answer
// ReadContent and RenderSnapshot bridge commands.
func (t *terminal) snapshot() []byte {
	return t.decompressScrollback()
}
