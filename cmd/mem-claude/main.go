// mem-claude: persistent memory for AI coding sessions.
//
// A local worker records observations and summaries from coding sessions
// into an embedded SQLite database, then replays them as a compressed
// context briefing at the start of the next session.
//
// Usage:
//
//	mem-claude serve     # Start the worker HTTP service
//	mem-claude context   # Print the context briefing for the current directory
//	mem-claude mcp       # Start the MCP server (stdio transport)
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/server"
)

var rootCmd = &cobra.Command{
	Use:          "mem-claude",
	Short:        "Persistent memory for AI coding sessions",
	Version:      server.Version,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
