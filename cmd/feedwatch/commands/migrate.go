package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/feedwatch/internal/monitor"
	"github.com/wonny/feedwatch/pkg/config"
	"github.com/wonny/feedwatch/pkg/database"
	"github.com/wonny/feedwatch/pkg/logger"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the monitoring tables",
	Long: `Create the feed_status and alert_logs tables if they do not exist.

Safe to run repeatedly; existing tables are left untouched.

Example:
  go run ./cmd/feedwatch migrate`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := monitor.Migrate(ctx, db.Pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	log.Info("Schema migration completed")
	fmt.Println("Schema is up to date")
	return nil
}
