package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/internal/monitor"
	"github.com/wonny/feedwatch/pkg/logger"
)

const handlerYAML = `feeds:
  - name: trades
    source_table: trades_eod
    date_column: cob_date
    expected_time: "09:00"
    tolerance_minutes: 30
    weekend_expected: true
    min_records: 10
    retention_days: 2
settings:
  check_interval_minutes: 5
  retention_days: 2
  timezone: "UTC"
  business_hours:
    start: "00:30"
    end: "23:00"
`

type stubHistory struct {
	mu   sync.Mutex
	rows map[string]*contracts.StatusRecord
}

func newStubHistory() *stubHistory {
	return &stubHistory{rows: make(map[string]*contracts.StatusRecord)}
}

func (s *stubHistory) key(feedName string, cobDate time.Time) string {
	return feedName + "|" + contracts.DateKey(cobDate)
}

func (s *stubHistory) Upsert(_ context.Context, rec *contracts.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *rec
	s.rows[s.key(rec.FeedName, rec.COBDate)] = &clone
	return nil
}

func (s *stubHistory) Get(_ context.Context, feedName string, cobDate time.Time) (*contracts.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[s.key(feedName, cobDate)]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (s *stubHistory) ListRange(_ context.Context, from, to time.Time) ([]*contracts.StatusRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*contracts.StatusRecord
	for _, rec := range s.rows {
		if !rec.COBDate.Before(from) && !rec.COBDate.After(to) {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (s *stubHistory) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type stubSource struct{ count int }

func (s *stubSource) QueryFacts(context.Context, *contracts.FeedDefinition, time.Time) (*contracts.ObservedFacts, error) {
	return &contracts.ObservedFacts{RecordCount: s.count}, nil
}

type noopNotifier struct{}

func (noopNotifier) Name() string                                         { return "noop" }
func (noopNotifier) Notify(context.Context, contracts.TransitionEvent) error { return nil }

type stubAlerts struct{ entries []*contracts.AlertLog }

func (s *stubAlerts) ListRecent(context.Context, string, int) ([]*contracts.AlertLog, error) {
	return s.entries, nil
}

func newTestHandler(t *testing.T, history contracts.HistoryRepository, alerts AlertLister) (*FeedsHandler, *feedconfig.Registry) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(handlerYAML), 0o644))
	registry, err := feedconfig.NewRegistry(path)
	require.NoError(t, err)

	cfg := monitor.DefaultCheckerConfig()
	cfg.RetryDelay = time.Millisecond
	checker := monitor.NewChecker(registry, history, &stubSource{count: 50}, noopNotifier{}, logger.NewNop(), cfg)

	return NewFeedsHandler(checker, history, registry, alerts, nil, logger.NewNop()), registry
}

func newStatusRouter(h *FeedsHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/feeds/status", h.GetSummary).Methods("GET")
	r.HandleFunc("/api/feeds/check", h.TriggerCheck).Methods("POST")
	r.HandleFunc("/api/feeds/{name}/status", h.GetFeedStatus).Methods("GET")
	r.HandleFunc("/api/feeds/{name}/alerts", h.GetFeedAlerts).Methods("GET")
	return r
}

func TestGetSummaryReturnsGrid(t *testing.T) {
	history := newStubHistory()
	handler, registry := newTestHandler(t, history, nil)

	today := registry.Current().Calendar.CurrentCOBDate(time.Now())
	require.NoError(t, history.Upsert(context.Background(), &contracts.StatusRecord{
		FeedName:    "trades",
		COBDate:     today,
		Status:      contracts.StatusReceived,
		RecordCount: 120,
		LastChecked: time.Now(),
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/status?days=3", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var resp SummaryResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Days)
	require.Len(t, resp.Feeds, 1)
	require.Len(t, resp.Feeds[0].DailyStatus, 3)

	todayCell := resp.Feeds[0].DailyStatus[contracts.DateKey(today)]
	assert.Equal(t, contracts.StatusReceived, todayCell.Status)
	assert.Equal(t, 120, todayCell.Count)

	gapCell := resp.Feeds[0].DailyStatus[contracts.DateKey(today.AddDate(0, 0, -1))]
	assert.Equal(t, contracts.StatusUnknown, gapCell.Status)
}

func TestGetSummaryRejectsBadDays(t *testing.T) {
	handler, _ := newTestHandler(t, newStubHistory(), nil)

	for _, query := range []string{"days=0", "days=9999", "days=abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/feeds/status?"+query, nil)
		rr := httptest.NewRecorder()
		newStatusRouter(handler).ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
	}
}

func TestGetFeedStatusRunsFreshCheck(t *testing.T) {
	history := newStubHistory()
	handler, _ := newTestHandler(t, history, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/trades/status", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var rec contracts.StatusRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rec))
	assert.Equal(t, "trades", rec.FeedName)
	assert.Equal(t, contracts.StatusReceived, rec.Status)
	assert.Equal(t, 50, rec.RecordCount)
}

func TestGetFeedStatusUnknownFeed(t *testing.T) {
	handler, _ := newTestHandler(t, newStubHistory(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/nope/status", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetFeedStatusBadDate(t *testing.T) {
	handler, _ := newTestHandler(t, newStubHistory(), nil)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/trades/status?cob_date=26-08-2026", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTriggerCheckAllFeeds(t *testing.T) {
	history := newStubHistory()
	handler, _ := newTestHandler(t, history, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/check", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var summary monitor.Summary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &summary))
	// Two pending days in the retention window.
	assert.Equal(t, 2, summary.Pairs)
	assert.Equal(t, 0, summary.Errors)
}

func TestTriggerCheckSingleFeed(t *testing.T) {
	handler, _ := newTestHandler(t, newStubHistory(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/check", strings.NewReader(`{"feed":"trades"}`))
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}

func TestTriggerCheckUnknownFeed(t *testing.T) {
	handler, _ := newTestHandler(t, newStubHistory(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/check", strings.NewReader(`{"feed":"nope"}`))
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestGetFeedAlerts(t *testing.T) {
	alerts := &stubAlerts{entries: []*contracts.AlertLog{{
		FeedName: "trades",
		COBDate:  "2026-08-26",
		Channel:  "webhook",
		Result:   contracts.AlertSent,
	}}}
	handler, _ := newTestHandler(t, newStubHistory(), alerts)

	req := httptest.NewRequest(http.MethodGet, "/api/feeds/trades/alerts", nil)
	rr := httptest.NewRecorder()
	newStatusRouter(handler).ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var entries []*contracts.AlertLog
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "webhook", entries[0].Channel)
}
