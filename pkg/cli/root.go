// Package cli implements the relayd command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// cfgPath is the --config persistent flag.
	cfgPath string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "relayd",
	Short: "relayd is a protocol-aware connection relay",
	Long: `relayd accepts HTTP and WebSocket connections, frames their inbound
byte streams into messages, and drives every connection through a
uniform lifecycle: establish, receive, send, shutdown, release.

Configuration is provided via a YAML or JSON file; see 'relayd validate'
to check one without starting the daemon.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to configuration file (YAML or JSON)")
}
