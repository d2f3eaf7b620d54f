package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/server"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the mem-claude version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("mem-claude v%s %s/%s\n", server.Version, runtime.GOOS, runtime.GOARCH)
	},
}
