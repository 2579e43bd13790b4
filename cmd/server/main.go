package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campuslink/realtime/internal/app"
	"github.com/campuslink/realtime/internal/config"
	"github.com/campuslink/realtime/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		overrides  config.Config
	)

	cmd := &cobra.Command{
		Use:          "campuslink-realtime",
		Short:        "Realtime presence and messaging server for the campus platform",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLog := log.New("info")

			cfg, path, err := config.Load(bootLog, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags set explicitly win over file and env values.
			if cmd.Flags().Changed("addr") {
				cfg.Addr = overrides.Addr
			}
			if cmd.Flags().Changed("db") {
				cfg.DatabasePath = overrides.DatabasePath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = overrides.LogLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting realtime server")

			application, err := app.New(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}

	defaults := config.Default()
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVar(&overrides.Addr, "addr", defaults.Addr, "HTTP listen address")
	cmd.Flags().StringVar(&overrides.DatabasePath, "db", defaults.DatabasePath, "SQLite database path")
	cmd.Flags().StringVar(&overrides.LogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")

	return cmd
}
