package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/httputil"
	"github.com/wonny/feedwatch/pkg/logger"
)

type memAuditLog struct {
	mu      sync.Mutex
	entries []*contracts.AlertLog
}

func (m *memAuditLog) Record(_ context.Context, entry *contracts.AlertLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memAuditLog) all() []*contracts.AlertLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*contracts.AlertLog, len(m.entries))
	copy(out, m.entries)
	return out
}

func missingEvent() contracts.TransitionEvent {
	return contracts.TransitionEvent{
		FeedName:    "trades",
		COBDate:     "2026-08-26",
		OldStatus:   contracts.StatusUnknown,
		NewStatus:   contracts.StatusMissing,
		RecordCount: 0,
		Timestamp:   time.Date(2026, 8, 26, 10, 0, 0, 0, time.UTC),
	}
}

func newTestWebhook(t *testing.T, url string, audit contracts.AlertLogRepository, cfg feedconfig.WebhookChannel) *WebhookNotifier {
	t.Helper()
	cfg.URL = url
	client := httputil.New(logger.NewNop()).DisableRetry()
	return NewWebhookNotifier(client, audit, logger.NewNop(), cfg)
}

func TestWebhookPostsSlackPayload(t *testing.T) {
	var payload webhookPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	audit := &memAuditLog{}
	n := newTestWebhook(t, server.URL, audit, feedconfig.WebhookChannel{Channel: "#feed-alerts"})

	require.NoError(t, n.Notify(context.Background(), missingEvent()))

	assert.Equal(t, "#feed-alerts", payload.Channel)
	require.Len(t, payload.Attachments, 1)
	att := payload.Attachments[0]
	assert.Equal(t, "#ff0000", att.Color)
	assert.Contains(t, att.Title, "trades")
	assert.Contains(t, att.Title, "missing")
	assert.Contains(t, att.Text, "unknown to missing")

	entries := audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, contracts.AlertSent, entries[0].Result)
	assert.Equal(t, "webhook", entries[0].Channel)
}

func TestWebhookSkipsRecoveriesByDefault(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	audit := &memAuditLog{}
	n := newTestWebhook(t, server.URL, audit, feedconfig.WebhookChannel{})

	event := missingEvent()
	event.OldStatus = contracts.StatusDelayed
	event.NewStatus = contracts.StatusReceived

	require.NoError(t, n.Notify(context.Background(), event))
	assert.False(t, called)
	assert.Empty(t, audit.all())
}

func TestWebhookPostsRecoveriesWhenEnabled(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := newTestWebhook(t, server.URL, nil, feedconfig.WebhookChannel{NotifyRecoveries: true})

	event := missingEvent()
	event.OldStatus = contracts.StatusDelayed
	event.NewStatus = contracts.StatusReceived

	require.NoError(t, n.Notify(context.Background(), event))
	assert.True(t, called)
}

func TestWebhookNon2xxIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	audit := &memAuditLog{}
	n := newTestWebhook(t, server.URL, audit, feedconfig.WebhookChannel{})

	err := n.Notify(context.Background(), missingEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")

	entries := audit.all()
	require.Len(t, entries, 1)
	assert.Equal(t, contracts.AlertFailed, entries[0].Result)
}

func TestWebhookRateCap(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	audit := &memAuditLog{}
	n := newTestWebhook(t, server.URL, audit, feedconfig.WebhookChannel{PerMinute: 2})

	event := missingEvent()
	require.NoError(t, n.Notify(context.Background(), event))
	require.NoError(t, n.Notify(context.Background(), event))

	err := n.Notify(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit")
	assert.Equal(t, 2, calls)

	entries := audit.all()
	require.Len(t, entries, 3)
	assert.Equal(t, contracts.AlertFailed, entries[2].Result)
	assert.Equal(t, "rate limit exceeded", entries[2].ErrorMessage)
}

type stubNotifier struct {
	name   string
	err    error
	events int
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Notify(context.Context, contracts.TransitionEvent) error {
	s.events++
	return s.err
}

func TestMultiDeliversToAllChannelsDespiteFailures(t *testing.T) {
	a := &stubNotifier{name: "a", err: errors.New("a down")}
	b := &stubNotifier{name: "b"}
	m := NewMulti(a, b)

	err := m.Notify(context.Background(), missingEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Equal(t, 1, a.events)
	assert.Equal(t, 1, b.events)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(logger.NewNop())
	assert.NoError(t, n.Notify(context.Background(), missingEvent()))
	assert.Equal(t, "log", n.Name())
}
