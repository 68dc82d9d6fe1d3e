// Package main is the entry point for the storefront server. The serve
// command loads configuration, connects to services, sets up routing and
// runs the HTTP server with graceful shutdown; the other commands manage
// the database and inspect the routing table.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storefront/internal/config"
	"storefront/internal/logging"
)

// Set by the root command before any subcommand runs.
var (
	cfg      *config.Config
	closeLog = func() error { return nil }
)

var rootCmd = &cobra.Command{
	Use:           "storefront",
	Short:         "Storefront: AI-generated store websites",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		cfg = loaded

		var logger *slog.Logger
		logger, closeLog = logging.New(logging.Options{
			Level:  cfg.LogLevel,
			Format: cfg.LogFormat,
			File:   cfg.LogFile,
		})
		slog.SetDefault(logger)
		slog.Info("configuration loaded", "env", cfg.Env, "addr", cfg.Addr(), "command", cmd.Name())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLog()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(routesCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		_ = closeLog()
		os.Exit(1)
	}
}
