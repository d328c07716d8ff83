// Package cli defines the command line interface of the event gateway.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/agnostech/event-gateway/internal/pkg/logger"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "event-gateway",
	Short: "HTTP gateway that routes, validates, and publishes events",
	Long: `The event gateway accepts events over HTTP, routes them to destination
topics through an ordered rule set, validates JSON payloads against
topic-scoped schemas, and publishes them to the configured broker.

A deterministic sample of the traffic is archived for inspection.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Init(logger.Config{
			Level:   slog.LevelInfo,
			JSON:    true,
			Verbose: verbose,
		})
	},
}

// Execute runs the root command. It is called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
