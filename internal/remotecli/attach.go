package remotecli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/okena/remoted/internal/remoteclient"
)

var (
	attachCode     string
	attachTerminal string
)

var attachCmd = &cobra.Command{
	Use:   "attach <host:port>",
	Short: "Attach this terminal to a remote shell",
	Long: `attach opens a WebSocket stream to a remoted server and forwards
your terminal's stdin/stdout to one of its remote shells, the way ssh
forwards a local tty to a remote one. Press ctrl-\ to detach.`,
	Args: cobra.ExactArgs(1),
	RunE: runAttach,
}

func init() {
	attachCmd.Flags().StringVar(&attachCode, "code", "", "pairing code (required the first time you connect to a server)")
	attachCmd.Flags().StringVar(&attachTerminal, "terminal", "", "terminal id to attach to (without it, output of every subscribed terminal is shown and keyboard input is not sent)")
	rootCmd.AddCommand(attachCmd)
}

func runAttach(cmd *cobra.Command, args []string) error {
	host, port, err := splitHostPort(args[0])
	if err != nil {
		return err
	}

	savedToken, err := findSavedToken(host, port)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn := remoteclient.NewConnection(serverConnID(host, port), host, port, savedToken, nil)

	if attachCode != "" {
		if err := conn.Pair(ctx, attachCode); err != nil {
			return fmt.Errorf("remotecli: pairing failed: %w", err)
		}
		if err := persistToken(host, port, conn.Token()); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to save token: %v\n", err)
		}
	} else if savedToken == "" {
		return fmt.Errorf("remotecli: no saved token for %s:%d, pass --code", host, port)
	}

	var targetMu sync.Mutex
	targetID := attachTerminal
	output := make(chan []byte, 256)
	conn.SetRawSink(func(terminalID string, payload []byte) {
		targetMu.Lock()
		want := targetID
		targetMu.Unlock()
		if want != "" && want != terminalID {
			return
		}
		data := make([]byte, len(payload))
		copy(data, payload)
		select {
		case output <- data:
		default:
		}
	})

	go conn.Run(ctx)

	fmt.Fprintln(os.Stderr, "connecting...")
	if err := waitForConnected(ctx, conn, 15*time.Second); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "connected. press ctrl-\\ to detach.")

	oldState, err := term.MakeRaw(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("remotecli: entering raw mode: %w", err)
	}
	defer term.Restore(int(os.Stdin.Fd()), oldState)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	stdinDone := make(chan struct{})
	go func() {
		defer close(stdinDone)
		buf := make([]byte, 1024)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			for _, b := range buf[:n] {
				if b == 0x1c { // ctrl-\
					cancel()
					return
				}
			}
			targetMu.Lock()
			id := targetID
			targetMu.Unlock()
			if id != "" {
				conn.TrySendText(id, string(buf[:n]))
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigChan:
			cancel()
			return nil
		case data := <-output:
			os.Stdout.Write(data)
		case <-stdinDone:
			return nil
		}
	}
}

func splitHostPort(addr string) (string, int, error) {
	idx := strings.LastIndex(addr, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("remotecli: expected host:port, got %q", addr)
	}
	port, err := strconv.Atoi(addr[idx+1:])
	if err != nil {
		return "", 0, fmt.Errorf("remotecli: invalid port in %q: %w", addr, err)
	}
	return addr[:idx], port, nil
}

func serverConnID(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

func findSavedToken(host string, port int) (string, error) {
	servers, err := remoteclient.LoadConnections()
	if err != nil {
		return "", err
	}
	for _, sc := range servers {
		if sc.Host == host && sc.Port == port {
			return sc.SavedToken, nil
		}
	}
	return "", nil
}

func persistToken(host string, port int, token string) error {
	servers, err := remoteclient.LoadConnections()
	if err != nil {
		return err
	}
	found := false
	for i := range servers {
		if servers[i].Host == host && servers[i].Port == port {
			servers[i].SavedToken = token
			found = true
			break
		}
	}
	if !found {
		servers = append(servers, remoteclient.ServerConfig{
			ConnectionID: serverConnID(host, port),
			Host:         host,
			Port:         port,
			SavedToken:   token,
		})
	}
	return remoteclient.SaveConnections(servers)
}

func waitForConnected(ctx context.Context, conn *remoteclient.Connection, timeout time.Duration) error {
	deadline := time.After(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("remotecli: timed out waiting to connect")
		case <-ticker.C:
			status := conn.Status()
			switch status.Kind {
			case remoteclient.StatusConnected:
				return nil
			case remoteclient.StatusPairing:
				return fmt.Errorf("remotecli: server rejected the saved token, pass --code")
			}
		}
	}
}
