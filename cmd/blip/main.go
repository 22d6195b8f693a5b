package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "blip",
		Short: "BLIP messaging over WebSocket",
		Long: `blip is a client and server for the BLIP message layer: a
bidirectional, multiplexed request/response protocol over WebSocket.

  • serve: run a listener with an echo profile handler
  • send:  send one request and print the response`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		sendCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
