// Package cmd implements the deskd command line interface.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mkrause/deskd/internal/app"
	"github.com/mkrause/deskd/internal/config"
	"github.com/mkrause/deskd/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "deskd",
	Short: "deskd - enterprise support agent",
	Long: `deskd is a terminal support agent for company policies and customer data.

It answers questions by combining a read-only view of the support database
with semantic search over indexed policy documents.

Running deskd without arguments starts an interactive chat session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd, args)
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig loads configuration and builds the logger from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logger := log.New(log.Config{Level: log.ParseLevel(cfg.LogLevel), JSON: cfg.LogJSON})
	return cfg, logger, nil
}

// setupApp wires the full application for commands that talk to the model
// or the vector store.
func setupApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing application: %w", err)
	}
	return a, nil
}
