package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/ers-backend/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ers-server",
		Short:         "Emergency Response System identity and session server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables and exit",
		RunE: func(_ *cobra.Command, _ []string) error {
			logging.Setup()
			cfg, err := config.Load()
			if err != nil {
				slog.Error("config load failed", "error", err)
				return err
			}
			if err := database.Connect(cfg); err != nil {
				slog.Error("database connection failed", "error", err)
				return err
			}
			defer database.Close()

			if err := database.Migrate(database.DB); err != nil {
				slog.Error("migration failed", "error", err)
				return fmt.Errorf("migrate: %w", err)
			}
			slog.Info("migration completed")
			return nil
		},
	}
}
