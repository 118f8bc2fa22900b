// Package main is the entry point for the serverwatch CLI.
//
// serverwatch can be embedded as a library or run as a standalone binary
// with YAML configuration. This CLI is the standalone binary.
//
// Usage:
//
//	serverwatch serve -c config.yaml    # Serve the status page
//	serverwatch validate -c config.yaml # Validate configuration
//	serverwatch version                 # Show version info
//
// The config path and port can also come from SERVERWATCH_CONFIG and
// SERVERWATCH_PORT.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via ldflags, e.g.
// go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "serverwatch",
	Short: "A live status page for game servers",
	Long: `serverwatch polls an upstream status service for each configured
game server and serves a page that shows name, map, player count and map
image, updated live over Server-Sent Events.

Quick start:
  1. Create a config file (serverwatch.yaml)
  2. Run: serverwatch serve -c serverwatch.yaml
  3. Open http://localhost:8080 in your browser

Example config:
  port: 8080
  poll_interval: 3s
  source: http://localhost:8000
  servers:
    - meow
    - meow2`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this serverwatch binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "serverwatch %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
