package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/server"
	"github.com/chengjon/mem-claude/internal/updater"
)

func init() {
	rootCmd.AddCommand(updateCmd)
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update mem-claude to the latest release",
	RunE:  runUpdate,
}

func runUpdate(cmd *cobra.Command, args []string) error {
	u := updater.New()

	check := u.Check(server.Version)
	if !check.UpdateAvailable {
		fmt.Printf("mem-claude v%s is up to date.\n", server.Version)
		return nil
	}

	fmt.Printf("Updating mem-claude v%s -> v%s...\n", check.CurrentVersion, check.LatestVersion)
	if err := u.Apply(server.Version); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Println("Updated. Restart any running mem-claude processes to pick up the new version.")
	return nil
}
