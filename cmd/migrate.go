package cmd

import (
	"fmt"

	"github.com/kendall-kelly/manuorder-api/config"
	"github.com/kendall-kelly/manuorder-api/logger"
	"github.com/kendall-kelly/manuorder-api/models"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if _, err := bootstrap(); err != nil {
		return err
	}
	defer logger.Sync()

	if err := models.AutoMigrate(config.GetDB()); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	logger.Info("database migration completed successfully")
	return nil
}
