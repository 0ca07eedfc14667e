package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/config"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the feeds file",
	Long: `Load and validate the feeds file without touching any database.

Exits non-zero when the file is invalid, so it can gate deployments.

Example:
  go run ./cmd/feedwatch validate
  go run ./cmd/feedwatch validate --feeds config/feeds.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := feedsFile
	if path == "" {
		// Fall back to the configured location; validation should not
		// require a reachable database, so ignore config errors here.
		if cfg, err := config.Load(); err == nil {
			path = cfg.FeedsFile
		} else {
			path = os.Getenv("FEEDS_FILE")
			if path == "" {
				path = "config/feeds.yaml"
			}
		}
	}

	snap, err := feedconfig.Load(path)
	if err != nil {
		fmt.Printf("Invalid: %s\n", err)
		return err
	}

	fmt.Printf("Valid: %d feeds\n", len(snap.Feeds))
	for _, feed := range snap.Feeds {
		state := "enabled"
		if !feed.Enabled {
			state = "disabled"
		}
		fmt.Printf("  - %s (%s, expected %s, min %d records)\n",
			feed.Name, state, feed.ExpectedTime, feed.MinRecords)
	}
	return nil
}
