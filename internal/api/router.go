package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/feedwatch/internal/alert"
	"github.com/wonny/feedwatch/internal/api/handlers"
	"github.com/wonny/feedwatch/pkg/logger"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(
	feedsHandler *handlers.FeedsHandler,
	configHandler *handlers.ConfigHandler,
	schedulerHandler *handlers.SchedulerHandler,
	healthHandler *handlers.HealthHandler,
	hub *alert.Hub,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthHandler.Check).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Feed status endpoints
	api.HandleFunc("/feeds/status", feedsHandler.GetSummary).Methods("GET")
	api.HandleFunc("/feeds/check", feedsHandler.TriggerCheck).Methods("POST")
	api.HandleFunc("/feeds/{name}/status", feedsHandler.GetFeedStatus).Methods("GET")
	api.HandleFunc("/feeds/{name}/alerts", feedsHandler.GetFeedAlerts).Methods("GET")

	// Configuration endpoints
	api.HandleFunc("/config/feeds", configHandler.ListFeeds).Methods("GET")
	api.HandleFunc("/config/reload", configHandler.Reload).Methods("POST")

	// Scheduler endpoints
	api.HandleFunc("/scheduler/jobs", schedulerHandler.GetJobs).Methods("GET")

	// Live transition event stream
	if hub != nil {
		r.HandleFunc("/ws/events", hub.ServeWS)
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
