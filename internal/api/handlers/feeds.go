package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/internal/monitor"
	"github.com/wonny/feedwatch/pkg/logger"
	"github.com/wonny/feedwatch/pkg/redis"
)

const (
	defaultSummaryDays = 90
	maxSummaryDays     = 366
	defaultAlertLimit  = 20
)

// AlertLister reads recent dispatch attempts for one feed.
type AlertLister interface {
	ListRecent(ctx context.Context, feedName string, limit int) ([]*contracts.AlertLog, error)
}

// FeedsHandler serves feed status reads and the manual check trigger.
type FeedsHandler struct {
	checker  *monitor.Checker
	history  contracts.HistoryRepository
	registry *feedconfig.Registry
	alerts   AlertLister
	cache    *redis.Cache
	logger   *logger.Logger
}

// NewFeedsHandler creates a new feeds handler. alerts and cache may be nil.
func NewFeedsHandler(
	checker *monitor.Checker,
	history contracts.HistoryRepository,
	registry *feedconfig.Registry,
	alerts AlertLister,
	cache *redis.Cache,
	log *logger.Logger,
) *FeedsHandler {
	return &FeedsHandler{
		checker:  checker,
		history:  history,
		registry: registry,
		alerts:   alerts,
		cache:    cache,
		logger:   log,
	}
}

// SummaryResponse is the dashboard grid: one row per feed, one cell per
// COB date in the window.
type SummaryResponse struct {
	Days        int                     `json:"days"`
	GeneratedAt time.Time               `json:"generated_at"`
	Feeds       []contracts.FeedSummary `json:"feeds"`
}

// GetSummary returns the daily status grid for the last N days.
// GET /api/feeds/status?days=90
func (h *FeedsHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	days := defaultSummaryDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxSummaryDays {
			respondError(w, http.StatusBadRequest, "days must be an integer between 1 and 366")
			return
		}
		days = parsed
	}

	if h.cache != nil {
		var cached SummaryResponse
		if hit, err := h.cache.Get(ctx, redis.SummaryKey(days), &cached); err == nil && hit {
			respondJSON(w, http.StatusOK, cached)
			return
		}
	}

	snap := h.registry.Current()
	today := snap.Calendar.CurrentCOBDate(time.Now())
	from := today.AddDate(0, 0, -(days - 1))

	records, err := h.history.ListRange(ctx, from, today)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list feed status")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve feed status")
		return
	}

	resp := SummaryResponse{
		Days:        days,
		GeneratedAt: time.Now(),
		Feeds:       monitor.BuildSummary(snap.Feeds, records, snap.Calendar, today, days),
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, redis.SummaryKey(days), resp, redis.TTLSummary); err != nil {
			h.logger.WithError(err).Warn("Could not cache summary")
		}
	}

	respondJSON(w, http.StatusOK, resp)
}

// GetFeedStatus runs a fresh evaluation for one (feed, COB date) pair and
// returns the resulting record.
// GET /api/feeds/{name}/status?cob_date=2026-08-26
func (h *FeedsHandler) GetFeedStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	snap := h.registry.Current()
	if _, ok := snap.Feed(name); !ok {
		respondError(w, http.StatusNotFound, "Unknown feed: "+name)
		return
	}

	cobDate := snap.Calendar.CurrentCOBDate(time.Now())
	if raw := r.URL.Query().Get("cob_date"); raw != "" {
		parsed, err := time.ParseInLocation("2006-01-02", raw, snap.Calendar.Location())
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid cob_date format (expected YYYY-MM-DD)")
			return
		}
		cobDate = parsed
	}

	rec, err := h.checker.CheckDate(ctx, name, cobDate)
	if err != nil {
		h.logger.WithError(err).Error("Feed check failed")
		respondError(w, http.StatusInternalServerError, "Feed check failed")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// TriggerRequest selects what a manual trigger covers. An empty body or
// empty feed name means all enabled feeds.
type TriggerRequest struct {
	Feed string `json:"feed"`
}

// TriggerCheck runs a check cycle synchronously and returns its summary.
// POST /api/feeds/check
func (h *FeedsHandler) TriggerCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var summary *monitor.Summary
	var err error
	if req.Feed == "" {
		summary, err = h.checker.RunTick(ctx)
	} else {
		if _, ok := h.registry.Current().Feed(req.Feed); !ok {
			respondError(w, http.StatusNotFound, "Unknown feed: "+req.Feed)
			return
		}
		summary, err = h.checker.CheckFeed(ctx, req.Feed)
	}
	if err != nil {
		h.logger.WithError(err).Error("Manual check failed")
		respondError(w, http.StatusInternalServerError, "Check failed")
		return
	}

	// A completed cycle invalidates the cached grid.
	if h.cache != nil {
		if err := h.cache.Delete(ctx, redis.SummaryKey(defaultSummaryDays)); err != nil {
			h.logger.WithError(err).Warn("Could not invalidate summary cache")
		}
	}

	respondJSON(w, http.StatusOK, summary)
}

// GetFeedAlerts returns recent dispatch attempts for one feed.
// GET /api/feeds/{name}/alerts?limit=20
func (h *FeedsHandler) GetFeedAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := mux.Vars(r)["name"]

	if _, ok := h.registry.Current().Feed(name); !ok {
		respondError(w, http.StatusNotFound, "Unknown feed: "+name)
		return
	}

	if h.alerts == nil {
		respondJSON(w, http.StatusOK, []*contracts.AlertLog{})
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			respondError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	entries, err := h.alerts.ListRecent(ctx, name, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list alerts")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve alerts")
		return
	}
	if entries == nil {
		entries = []*contracts.AlertLog{}
	}

	respondJSON(w, http.StatusOK, entries)
}
