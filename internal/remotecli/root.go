// Package remotecli implements the remote-cli command line tool: pairing
// with a running server and attaching a local terminal to one of its
// remote shells.
package remotecli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "remote-cli",
	Short: "Pair with and attach to a remoted server",
	Long: `remote-cli pairs with a running remote terminal multiplexer server
and attaches your local terminal to one of its shells.`,
	Version: version,
}

// Execute runs the root command, printing any error to stderr and exiting
// non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}
