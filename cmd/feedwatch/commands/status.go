package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/monitor"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored feed status grid",
	Long: `Print the stored status for every feed over the last N days.

Reads the history store only; no source queries are run. Dates without
a stored row show as unknown.

Example:
  go run ./cmd/feedwatch status
  go run ./cmd/feedwatch status --days 14`,
	RunE: runStatus,
}

var statusDays int

func init() {
	rootCmd.AddCommand(statusCmd)

	// Flags
	statusCmd.Flags().IntVar(&statusDays, "days", 7, "window size in days")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if statusDays < 1 || statusDays > 366 {
		return fmt.Errorf("days must be between 1 and 366")
	}

	d, err := initDeps(false)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	snap := d.registry.Current()
	today := snap.Calendar.CurrentCOBDate(time.Now())
	from := today.AddDate(0, 0, -(statusDays - 1))

	records, err := d.history.ListRange(ctx, from, today)
	if err != nil {
		return fmt.Errorf("list status: %w", err)
	}

	summaries := monitor.BuildSummary(snap.Feeds, records, snap.Calendar, today, statusDays)

	fmt.Printf("Feed status, %s to %s\n\n", contracts.DateKey(from), contracts.DateKey(today))
	for _, summary := range summaries {
		fmt.Printf("%s\n", summary.FeedName)

		dates := make([]string, 0, len(summary.DailyStatus))
		for date := range summary.DailyStatus {
			dates = append(dates, date)
		}
		sort.Strings(dates)

		for _, date := range dates {
			cell := summary.DailyStatus[date]
			marker := " "
			if cell.IsWeekend {
				marker = "w"
			}
			fmt.Printf("  %s %s %-10s %d\n", date, marker, cell.Status, cell.Count)
		}
		fmt.Println()
	}

	return nil
}
