package cmd

import (
	"fmt"
	"os"

	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "manuorder",
	Short: "ManuOrder API - custom manufacturing order tracking",
	Long: `ManuOrder API tracks custom manufacturing orders from the customer's
request through quotation, design, manufacturing, testing and painting
to completion.

Use "serve" to run the HTTP API, "migrate" to update the database schema
and "token" to mint a development token when JWT_SECRET is set.`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, sets up logging and connects the database
func bootstrap() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.LogLevel, cfg.GoEnv); err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}
	if cfg.EnvFile != "" {
		logger.Info("loaded configuration file", zap.String("file", cfg.EnvFile))
	} else {
		logger.Info("no .env file found, using system environment variables")
	}
	if err := config.ConnectDatabase(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
