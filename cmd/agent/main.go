package main

import (
	"fmt"
	"os"

	"github.com/shubh-37/multipost-agent/config"
	"github.com/shubh-37/multipost-agent/internal/logging"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	logLevel string

	cfg    *config.Config
	logger logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "agent",
	Short: "Multipost Agent - publish one post to several social networks",
	Long: `Multipost Agent fans a single post out to Twitter/X, Threads and Slack
concurrently, bounded by a batch timeout, and reports per-platform results.

It can run as a server (HTTP API, MCP tools and a Slack bot) or publish once
from the command line.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var envErr error
		cfg, envErr = config.LoadConfig()
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("configuration error: %w", err)
		}
		logger = logging.NewLogger(cfg.LogLevel)
		if envErr != nil {
			logger.WithError(envErr).Warn("⚠️ Using system environment only")
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error), overrides LOG_LEVEL")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(platformsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
