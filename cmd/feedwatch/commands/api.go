package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/feedwatch/internal/api"
	"github.com/wonny/feedwatch/internal/api/handlers"
	"github.com/wonny/feedwatch/internal/scheduler"
	"github.com/wonny/feedwatch/internal/scheduler/jobs"
	"github.com/wonny/feedwatch/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long: `Start the monitoring API server with the scheduler embedded.

This command:
- serves the feed status read API
- runs the periodic feed check and retention sweep
- streams transition events over /ws/events

Endpoints:
  GET  /health                    - Health check
  GET  /api/feeds/status          - Daily status grid
  GET  /api/feeds/{name}/status   - Fresh single-feed check
  GET  /api/feeds/{name}/alerts   - Recent dispatch attempts
  POST /api/feeds/check           - Manual check trigger
  GET  /api/config/feeds          - Feed configuration
  POST /api/config/reload         - Reload the feeds file
  GET  /api/scheduler/jobs        - Job statistics
  GET  /ws/events                 - Live transition events

Example:
  go run ./cmd/feedwatch api
  go run ./cmd/feedwatch api --port 8080`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API server port (default from PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	d, err := initDeps(true)
	if err != nil {
		return err
	}
	defer d.Close()

	if apiPort != "" {
		d.cfg.Port = apiPort
	}
	log := d.logger

	log.WithFields(map[string]interface{}{
		"port":  d.cfg.Port,
		"env":   d.cfg.Env,
		"feeds": len(d.registry.Current().Feeds),
	}).Info("Initializing API server")

	// Cache is optional; disabled Redis degrades to direct reads.
	redisClient, err := redis.New(d.cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()
	var cache *redis.Cache
	if redisClient.Enabled() {
		cache = redis.NewCache(redisClient, "feedwatch")
	}

	// Scheduler runs inside the API process so one deployment covers
	// serving and checking.
	sched := scheduler.New(log)
	snap := d.registry.Current()
	if err := sched.AddJob(jobs.NewFeedCheck(d.checker, log, snap.CheckInterval())); err != nil {
		return fmt.Errorf("register feed check job: %w", err)
	}
	if err := sched.AddJob(jobs.NewRetention(d.registry, d.history, log)); err != nil {
		return fmt.Errorf("register retention job: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	feedsHandler := handlers.NewFeedsHandler(d.checker, d.history, d.registry, d.alertLog, cache, log)
	configHandler := handlers.NewConfigHandler(d.registry, log)
	schedulerHandler := handlers.NewSchedulerHandler(sched)
	healthHandler := handlers.NewHealthHandler(d.db, log)

	router := api.NewRouter(feedsHandler, configHandler, schedulerHandler, healthHandler, d.hub, log)
	server := api.New(d.cfg, log, router)

	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("Server running on http://localhost:%s\n", d.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
