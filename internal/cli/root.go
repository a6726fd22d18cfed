// Package cli wires the relay's commands. The binary has one job, serving
// the HTTP relay, plus a dispatch helper for firing workflows from scripts.
package cli

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/yangfeiyang-123/arxiv-relay/internal/config"
	"github.com/yangfeiyang-123/arxiv-relay/internal/logger"
)

const version = "0.3.0"

// Execute runs the CLI.
func Execute() error {
	return NewRootCommand().Execute()
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	var showVersion bool

	cmd := &cobra.Command{
		Use:   "arxiv-relay",
		Short: "arxiv-relay - dispatch, poll and stream arXiv summarization jobs",
		Long: `arxiv-relay - dispatch, poll and stream arXiv summarization jobs

The relay fronts a GitHub Actions based paper pipeline: it triggers update
and summarization workflows, tails their logs for live progress, and proxies
streaming chat completions against an OpenAI-compatible endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "arxiv-relay version "+version)
				return err
			}
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().BoolVar(&showVersion, "version", false, "Print version and exit")
	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newDispatchCommand())
	return cmd
}

// loadConfig reads .env when present, builds the config and applies the
// optional workflow table override.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err == nil {
		logger.Debug("Loaded environment from .env")
	}

	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if err := config.LoadWorkflowTable(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// initLogger replaces the default logger with one built from environment
// settings.
func initLogger() error {
	log, err := logger.New(logger.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetLogger(log)
	return nil
}
