package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/feedwatch/internal/scheduler"
	"github.com/wonny/feedwatch/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Manage the check scheduler",
	Long: `Start the scheduler daemon or inspect its jobs.

Registered jobs:
- feed_check: evaluation tick on the configured interval
- retention_sweep: daily cleanup of rows past the retention window

Subcommands:
  start   - run the scheduler daemon
  list    - list registered jobs
  run     - run one job immediately
  status  - show job execution statistics

Example:
  go run ./cmd/feedwatch scheduler start
  go run ./cmd/feedwatch scheduler run feed_check`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler daemon",
		Long: `Start the scheduler and run the registered jobs until interrupted.

The feed check interval comes from check_interval_minutes in the feeds
file; the retention sweep runs daily at 02:30.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "List registered jobs",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "Run one job immediately",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}

	schedulerStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show job execution statistics",
		RunE:  showJobStats,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
	schedulerCmd.AddCommand(schedulerStatusCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	sched.Start()

	fmt.Println("Scheduler started")
	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("Shutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	fmt.Println("Registered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}

	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	fmt.Printf("Running job: %s\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// RunJob is asynchronous; poll until a result lands.
	waitForResult(sched, jobName)
	return nil
}

func showJobStats(cmd *cobra.Command, args []string) error {
	d, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer d.Close()

	stats := sched.GetJobStats()

	fmt.Println("Job statistics:")
	fmt.Println()

	for jobName, stat := range stats {
		fmt.Printf("%s\n", jobName)
		fmt.Printf("  Schedule: %s\n", stat.Schedule)
		fmt.Printf("  Total runs: %d\n", stat.TotalRuns)
		fmt.Printf("  Success: %d (%.1f%%)\n", stat.SuccessCount, stat.SuccessRate*100)
		fmt.Printf("  Failures: %d\n", stat.FailureCount)

		if stat.LastRun != nil {
			fmt.Printf("  Last run: %s\n", stat.LastRun.Format("2006-01-02 15:04:05"))
		}
		if stat.LastSuccess != nil {
			fmt.Printf("  Last success: %s\n", stat.LastSuccess.Format("2006-01-02 15:04:05"))
		}
		if stat.LastFailure != nil {
			fmt.Printf("  Last failure: %s\n", stat.LastFailure.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
	}

	return nil
}

// waitForResult blocks until the job records a result, so the process
// does not exit while the job is still running.
func waitForResult(sched *scheduler.Scheduler, jobName string) {
	deadline := time.Now().Add(10 * time.Minute)
	for time.Now().Before(deadline) {
		history, err := sched.GetJobHistory(jobName)
		if err == nil && len(history.Results) > 0 {
			result := history.Results[len(history.Results)-1]
			if result.Success {
				fmt.Printf("Job completed in %s\n", result.Duration)
			} else {
				fmt.Printf("Job failed: %s\n", result.Error)
			}
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("Job did not finish in time")
}

func initScheduler() (*deps, *scheduler.Scheduler, error) {
	d, err := initDeps(false)
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(d.logger)
	snap := d.registry.Current()

	if err := sched.AddJob(jobs.NewFeedCheck(d.checker, d.logger, snap.CheckInterval())); err != nil {
		d.Close()
		return nil, nil, err
	}
	if err := sched.AddJob(jobs.NewRetention(d.registry, d.history, d.logger)); err != nil {
		d.Close()
		return nil, nil, err
	}

	return d, sched, nil
}
