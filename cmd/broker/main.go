package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	brokercmd "github.com/flowcursor/broker/internal/cmd/broker"
	cfgpkg "github.com/flowcursor/broker/internal/config"
	pebblestore "github.com/flowcursor/broker/internal/storage/pebble"
	logpkg "github.com/flowcursor/broker/pkg/log"
	"github.com/spf13/cobra"
)

func main() {
	level := os.Getenv("BROKER_LOG_LEVEL")
	parsed, err := logpkg.ParseLevel(level)
	if err != nil || level == "" {
		parsed = logpkg.InfoLevel
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(parsed),
		logpkg.WithFormatter(&logpkg.TextFormatter{}),
		logpkg.WithOutput(logpkg.NewConsoleOutput()),
	)
	logpkg.RedirectStdLog(logger)

	rootCmd := &cobra.Command{
		Use:   "broker",
		Short: "Broker runtime CLI",
		Long:  "Broker is a single-binary ordered event delivery runtime. This CLI manages the store and runs demo scenarios.",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Open the store and run the in-process demo scenario",
		RunE: func(cmd *cobra.Command, args []string) error {
			dataDir, _ := cmd.Flags().GetString("data-dir")
			fsyncMode, _ := cmd.Flags().GetString("fsync")
			fsyncIntervalMs, _ := cmd.Flags().GetInt("fsync-interval-ms")
			catchUpBatch, _ := cmd.Flags().GetInt("catchup-batch")

			mode := pebblestore.FsyncModeInterval
			switch fsyncMode {
			case "never":
				mode = pebblestore.FsyncModeNever
			case "interval":
				mode = pebblestore.FsyncModeInterval
			case "always":
				mode = pebblestore.FsyncModeAlways
			default:
				return fmt.Errorf("invalid --fsync; use always|interval|never")
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg := cfgpkg.Default()
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			cfg.Fsync = mode
			if fsyncIntervalMs > 0 {
				cfg.FsyncInterval = time.Duration(fsyncIntervalMs) * time.Millisecond
			}
			if catchUpBatch > 0 {
				cfg.CatchUpBatchSize = catchUpBatch
			}
			cfgpkg.FromEnv(&cfg)

			return brokercmd.Run(ctx, brokercmd.Options{Config: cfg, Logger: logger})
		},
	}
	serveCmd.Flags().String("data-dir", "", "Data directory (defaults to the OS-specific application data directory)")
	serveCmd.Flags().String("fsync", "interval", "Fsync mode: always|interval|never")
	serveCmd.Flags().Int("fsync-interval-ms", 5, "When --fsync=interval, group-commit window in ms")
	serveCmd.Flags().Int("catchup-batch", 0, "Catch-up worker internal batch size (0 keeps the configured default)")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
