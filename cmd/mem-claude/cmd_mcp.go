package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/config"
	memserver "github.com/chengjon/mem-claude/internal/server"
	"github.com/chengjon/mem-claude/internal/updater"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server (stdio transport)",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	s, cleanup, err := memserver.New(config.LoadDefault())
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Version check prints to stderr so it never interferes with the
	// MCP stdio transport on stdout.
	go func() {
		check := updater.New().Check(memserver.Version)
		if check.UpdateAvailable {
			fmt.Fprintf(os.Stderr, "mem-claude v%s available (running v%s). Run 'mem-claude update'.\n",
				check.LatestVersion, check.CurrentVersion)
		}
	}()

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
