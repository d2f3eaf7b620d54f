package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chengjon/mem-claude/internal/config"
	"github.com/chengjon/mem-claude/internal/logging"
	"github.com/chengjon/mem-claude/internal/store"
	"github.com/chengjon/mem-claude/internal/synth"
	"github.com/chengjon/mem-claude/internal/worker"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the worker HTTP service",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	settings := config.LoadDefault()
	log := logging.New("worker")

	st, err := store.New(store.Config{
		DataDir: settings.DataDir(),
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	engine := synth.NewEngine(st, synth.OptionsFromSettings(settings), log)
	events := worker.NewBroadcaster()
	coordinator := worker.NewCoordinator(st, nil, events, log)

	srv := worker.NewServer(worker.Config{
		Addr:        settings.WorkerAddr(),
		Port:        settings.GetInt(config.KeyWorkerPort, 37777),
		Store:       st,
		Engine:      engine,
		Coordinator: coordinator,
		Logger:      log,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		log.Info("shutting_down", map[string]any{"signal": s.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
