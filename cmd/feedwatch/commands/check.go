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

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check [feed]",
	Short: "Run one check cycle",
	Long: `Run one evaluation cycle synchronously and print its summary.

With no argument every enabled feed is checked across its pending COB
dates; with a feed name only that feed is checked. With --date a single
(feed, COB date) pair is evaluated and its record printed.

Example:
  go run ./cmd/feedwatch check
  go run ./cmd/feedwatch check trades
  go run ./cmd/feedwatch check trades --date 2026-08-25`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

var (
	checkTimeout time.Duration
	checkDate    string
)

func init() {
	rootCmd.AddCommand(checkCmd)

	// Flags
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Minute, "overall cycle timeout")
	checkCmd.Flags().StringVar(&checkDate, "date", "", "single COB date to check (YYYY-MM-DD, requires a feed)")
}

func runCheck(cmd *cobra.Command, args []string) error {
	d, err := initDeps(false)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	if checkDate != "" {
		if len(args) != 1 {
			return fmt.Errorf("--date requires a feed name")
		}
		loc := d.registry.Current().Calendar.Location()
		cobDate, err := time.ParseInLocation("2006-01-02", checkDate, loc)
		if err != nil {
			return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", checkDate)
		}

		rec, err := d.checker.CheckDate(ctx, args[0], cobDate)
		if err != nil {
			return fmt.Errorf("check pair: %w", err)
		}

		fmt.Printf("%s %s: %s (%d records, checked %s)\n",
			rec.FeedName, contracts.DateKey(rec.COBDate), rec.Status,
			rec.RecordCount, rec.LastChecked.Format(time.RFC3339))
		if rec.ErrorMessage != "" {
			fmt.Printf("  error: %s\n", rec.ErrorMessage)
		}
		return nil
	}

	var summary *monitor.Summary
	if len(args) == 1 {
		summary, err = d.checker.CheckFeed(ctx, args[0])
	} else {
		summary, err = d.checker.RunTick(ctx)
	}
	if err != nil {
		return fmt.Errorf("run check: %w", err)
	}

	printSummary(summary)
	return nil
}

func printSummary(s *monitor.Summary) {
	fmt.Printf("Checked %d pairs in %s\n", s.Pairs, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))

	statuses := make([]string, 0, len(s.Counts))
	for status := range s.Counts {
		statuses = append(statuses, string(status))
	}
	sort.Strings(statuses)

	for _, status := range statuses {
		fmt.Printf("  %-10s %d\n", status, s.Counts[contracts.Status(status)])
	}

	fmt.Printf("Transitions: %d\n", s.Transitions)
	if s.Errors > 0 {
		fmt.Printf("Errors: %d\n", s.Errors)
	}
}
