package handlers

import (
	"net/http"
	"time"

	"github.com/wonny/feedwatch/pkg/database"
	"github.com/wonny/feedwatch/pkg/logger"
)

// HealthHandler reports process and database health.
type HealthHandler struct {
	db     *database.DB
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *database.DB, log *logger.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: log}
}

// Check returns server health including database pool status.
// GET /health
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":    "ok",
		"service":   "feedwatch",
		"timestamp": time.Now(),
	}

	if h.db != nil {
		status, err := h.db.HealthCheck(r.Context())
		resp["database"] = status
		if err != nil {
			resp["status"] = "degraded"
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
