package handlers

import (
	"net/http"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/logger"
)

// ConfigHandler exposes the loaded feed configuration. Connection strings
// never appear in responses.
type ConfigHandler struct {
	registry *feedconfig.Registry
	logger   *logger.Logger
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(registry *feedconfig.Registry, log *logger.Logger) *ConfigHandler {
	return &ConfigHandler{
		registry: registry,
		logger:   log,
	}
}

// ConfigResponse is the feed configuration listing.
type ConfigResponse struct {
	Feeds                []*contracts.FeedDefinition `json:"feeds"`
	CheckIntervalMinutes int                         `json:"check_interval_minutes"`
	RetentionDays        int                         `json:"retention_days"`
	Timezone             string                      `json:"timezone"`
	Holidays             []string                    `json:"holidays"`
}

// ListFeeds returns every configured feed with the global settings.
// GET /api/config/feeds
func (h *ConfigHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	snap := h.registry.Current()

	respondJSON(w, http.StatusOK, ConfigResponse{
		Feeds:                snap.Feeds,
		CheckIntervalMinutes: snap.Settings.CheckIntervalMinutes,
		RetentionDays:        snap.Settings.RetentionDays,
		Timezone:             snap.Settings.Timezone,
		Holidays:             snap.Settings.Holidays,
	})
}

// Reload re-reads the feeds file and swaps the registry. On validation
// failure the previous configuration stays active.
// POST /api/config/reload
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Reload(); err != nil {
		h.logger.WithError(err).Error("Configuration reload rejected")
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := h.registry.Current()
	h.logger.WithField("feeds", len(snap.Feeds)).Info("Configuration reloaded")

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "reloaded",
		"feeds":  len(snap.Feeds),
	})
}
