package remotecli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var pairCodeAddr string

var pairCodeCmd = &cobra.Command{
	Use:   "pair-code",
	Short: "Print the current pairing code for a locally running server",
	Long: `pair-code fetches the one-time pairing code from a remoted server
running on this same machine. The request only succeeds against a loopback
address, matching the server's loopback-only policy for this endpoint.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		p := tea.NewProgram(newPairCodeModel(pairCodeAddr))
		final, err := p.Run()
		if err != nil {
			return err
		}
		m := final.(pairCodeModel)
		if m.err != nil {
			return m.err
		}
		return nil
	},
}

func init() {
	pairCodeCmd.Flags().StringVar(&pairCodeAddr, "addr", "http://127.0.0.1:19100", "base URL of the local server")
	rootCmd.AddCommand(pairCodeCmd)
}

type pairCodeResultMsg struct {
	code string
	err  error
}

type pairCodeModel struct {
	addr    string
	spinner spinner.Model
	code    string
	err     error
	done    bool
}

func newPairCodeModel(addr string) pairCodeModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	return pairCodeModel{addr: addr, spinner: s}
}

func (m pairCodeModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchPairCode(m.addr))
}

func (m pairCodeModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case pairCodeResultMsg:
		m.done = true
		m.code = msg.code
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pairCodeModel) View() string {
	if m.done {
		if m.err != nil {
			return lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(fmt.Sprintf("error: %v\n", m.err))
		}
		boxStyle := lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("2")).
			BorderStyle(lipgloss.RoundedBorder()).
			Padding(0, 2)
		return boxStyle.Render(fmt.Sprintf("Pairing code: %s", m.code)) + "\n"
	}
	return fmt.Sprintf("%s fetching pairing code from %s...\n", m.spinner.View(), m.addr)
}

func fetchPairCode(addr string) tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(addr + "/v1/local/pair-code")
		if err != nil {
			return pairCodeResultMsg{err: fmt.Errorf("remotecli: requesting pair code: %w", err)}
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return pairCodeResultMsg{err: fmt.Errorf("remotecli: server returned %d", resp.StatusCode)}
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return pairCodeResultMsg{err: err}
		}
		var out struct {
			Code string `json:"code"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return pairCodeResultMsg{err: err}
		}
		return pairCodeResultMsg{code: out.Code}
	}
}
