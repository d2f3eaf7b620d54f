package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/config"
	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
	"github.com/chengjon/mem-claude/internal/synth"
)

func init() {
	contextCmd.Flags().StringVar(&contextCwd, "cwd", "", "project directory (default: current directory)")
	contextCmd.Flags().BoolVar(&contextColors, "colors", false, "force ANSI color output")
	rootCmd.AddCommand(contextCmd)
}

var (
	contextCwd    string
	contextColors bool
)

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print the context briefing for a project",
	RunE:  runContext,
}

func runContext(cmd *cobra.Command, args []string) error {
	cwd := contextCwd
	if cwd == "" {
		var err error
		if cwd, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}

	settings := config.LoadDefault()
	log := logging.New("cli")

	st, err := store.New(store.Config{
		DataDir: settings.DataDir(),
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	engine := synth.NewEngine(st, synth.OptionsFromSettings(settings), log)
	out, err := engine.Generate(synth.Request{
		Cwd:    cwd,
		Colors: contextColors || isatty.IsTerminal(os.Stdout.Fd()),
	})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
