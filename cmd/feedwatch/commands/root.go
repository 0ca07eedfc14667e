package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	feedsFile string
	verbose   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "feedwatch",
	Short: "Feed status evaluation and scheduling engine",
	Long: `Feedwatch monitors whether data feeds land on time and in volume.

Each feed declares where its rows live, when they are expected and how
many of them count as complete. Feedwatch evaluates every feed per COB
date, keeps one durable status row per (feed, date), and raises alerts
when a status changes.

Usage:
  go run ./cmd/feedwatch [command]

Examples:
  go run ./cmd/feedwatch api
  go run ./cmd/feedwatch scheduler start
  go run ./cmd/feedwatch check trades
  go run ./cmd/feedwatch validate`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&feedsFile, "feeds", "", "feeds config file (default from FEEDS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
