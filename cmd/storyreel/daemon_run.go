package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"storyreel/internal/api"
	"storyreel/internal/daemon"
	"storyreel/internal/logging"
	"storyreel/internal/reconciler"
	"storyreel/internal/services/generator"
	"storyreel/internal/services/scriptai"
	"storyreel/internal/studio"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	daemonCmd := &cobra.Command{
		Use:   "daemon",
		Short: "Daemon lifecycle",
	}

	daemonCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the storyreel daemon in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonProcess(cmd.Context(), ctx)
		},
	})
	daemonCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether a daemon is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return wrapDaemonError(err, ctx.daemonAddr())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Daemon running (pid %d) at %s\n", status.PID, ctx.daemonAddr())
			return nil
		},
	})

	return daemonCmd
}

func runDaemonProcess(cmdCtx context.Context, ctx *commandContext) error {
	if ctx == nil {
		return fmt.Errorf("command context is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "storyreel.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := studio.Open(cfg)
	if err != nil {
		logger.Error("open studio store", logging.Error(err))
		return err
	}
	defer store.Close()

	gen := generator.NewConfiguredClient(cfg)
	analyzer := scriptai.NewConfiguredClient(cfg, logger)
	rec := reconciler.NewManager(cfg, store, gen, logger)
	jobs := api.NewJobService(store, gen, logger)
	episodes := api.NewEpisodeService(store, analyzer, cfg.Paths.OutputDir, logger)

	d, err := daemon.New(cfg, store, logger, rec, gen, jobs, episodes)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("storyreel daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
