package monitor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/logger"
)

const checkerYAML = `feeds:
  - name: trades
    source_table: trades_eod
    date_column: cob_date
    expected_time: "09:00"
    tolerance_minutes: 30
    weekend_expected: true
    min_records: 10
    retention_days: 3
  - name: prices
    source_table: price_snaps
    date_column: price_date
    expected_time: "10:00"
    tolerance_minutes: 15
    weekend_expected: true
    min_records: 1
    retention_days: 1
settings:
  check_interval_minutes: 5
  retention_days: 3
  timezone: "UTC"
  business_hours:
    start: "00:30"
    end: "23:00"
`

// Wednesday, well past every deadline in the fixture.
var checkerNow = time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC)

func testRegistry(t *testing.T, content string) *feedconfig.Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	reg, err := feedconfig.NewRegistry(path)
	require.NoError(t, err)
	return reg
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// memHistory is an in-memory HistoryRepository with the same
// last-writer-wins semantics as the SQL implementation.
type memHistory struct {
	mu          sync.Mutex
	rows        map[string]*contracts.StatusRecord
	failUpserts int
}

func newMemHistory() *memHistory {
	return &memHistory{rows: make(map[string]*contracts.StatusRecord)}
}

func historyKey(feedName string, cobDate time.Time) string {
	return feedName + "|" + contracts.DateKey(cobDate)
}

func (m *memHistory) Upsert(_ context.Context, rec *contracts.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpserts > 0 {
		m.failUpserts--
		return errors.New("storage unavailable")
	}

	key := historyKey(rec.FeedName, rec.COBDate)
	if prev, ok := m.rows[key]; ok && prev.LastChecked.After(rec.LastChecked) {
		return nil
	}
	clone := *rec
	m.rows[key] = &clone
	return nil
}

func (m *memHistory) Get(_ context.Context, feedName string, cobDate time.Time) (*contracts.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.rows[historyKey(feedName, cobDate)]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	clone := *rec
	return &clone, nil
}

func (m *memHistory) ListRange(_ context.Context, from, to time.Time) ([]*contracts.StatusRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*contracts.StatusRecord
	for _, rec := range m.rows {
		if rec.COBDate.Before(from) || rec.COBDate.After(to) {
			continue
		}
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (m *memHistory) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key, rec := range m.rows {
		if rec.COBDate.Before(cutoff) {
			delete(m.rows, key)
			n++
		}
	}
	return n, nil
}

func (m *memHistory) seed(feedName string, cobDate time.Time, status contracts.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[historyKey(feedName, cobDate)] = &contracts.StatusRecord{
		FeedName:    feedName,
		COBDate:     cobDate,
		Status:      status,
		LastChecked: checkerNow.Add(-time.Hour),
	}
}

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// fakeSource answers queries from a function, counting calls per pair.
type fakeSource struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(feed *contracts.FeedDefinition, cobDate time.Time, attempt int) (*contracts.ObservedFacts, error)
}

func (f *fakeSource) QueryFacts(_ context.Context, feed *contracts.FeedDefinition, cobDate time.Time) (*contracts.ObservedFacts, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	key := historyKey(feed.Name, cobDate)
	attempt := f.calls[key]
	f.calls[key]++
	f.mu.Unlock()

	return f.fn(feed, cobDate, attempt)
}

func (f *fakeSource) callCount(feedName string, cobDate time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[historyKey(feedName, cobDate)]
}

func countedFacts(count int) func(*contracts.FeedDefinition, time.Time, int) (*contracts.ObservedFacts, error) {
	return func(*contracts.FeedDefinition, time.Time, int) (*contracts.ObservedFacts, error) {
		return &contracts.ObservedFacts{RecordCount: count}, nil
	}
}

// recordNotifier captures every dispatched event.
type recordNotifier struct {
	mu     sync.Mutex
	events []contracts.TransitionEvent
	err    error
}

func (n *recordNotifier) Name() string { return "record" }

func (n *recordNotifier) Notify(_ context.Context, event contracts.TransitionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, event)
	return nil
}

func (n *recordNotifier) all() []contracts.TransitionEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]contracts.TransitionEvent, len(n.events))
	copy(out, n.events)
	return out
}

func newTestChecker(t *testing.T, history *memHistory, source *fakeSource, notifier *recordNotifier) *Checker {
	t.Helper()
	cfg := CheckerConfig{
		Workers:      2,
		QueryTimeout: time.Second,
		StoreTimeout: time.Second,
		MaxRetries:   2,
		RetryDelay:   time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}
	c := NewChecker(testRegistry(t, checkerYAML), history, source, notifier, logger.NewNop(), cfg)
	c.now = func() time.Time { return checkerNow }
	return c
}

func TestRunTickEvaluatesAllPendingPairs(t *testing.T) {
	history := newMemHistory()
	source := &fakeSource{fn: countedFacts(50)}
	notifier := &recordNotifier{}
	c := newTestChecker(t, history, source, notifier)

	summary, err := c.RunTick(context.Background())
	require.NoError(t, err)

	// trades covers three days, prices one.
	assert.Equal(t, 4, summary.Pairs)
	assert.Equal(t, 4, summary.Counts[contracts.StatusReceived])
	assert.Equal(t, 4, summary.Transitions)
	assert.Equal(t, 0, summary.Errors)
	assert.Equal(t, 4, history.count())

	for _, event := range notifier.all() {
		assert.Equal(t, contracts.StatusUnknown, event.OldStatus)
		assert.Equal(t, contracts.StatusReceived, event.NewStatus)
	}
}

func TestRunTickSkipsTerminalDatesButAlwaysRechecksToday(t *testing.T) {
	history := newMemHistory()
	// Day -1 is settled; day -2 is still unknown; today is settled too but
	// must be re-evaluated anyway.
	history.seed("trades", day(2026, 8, 25), contracts.StatusReceived)
	history.seed("trades", day(2026, 8, 24), contracts.StatusUnknown)
	history.seed("trades", day(2026, 8, 26), contracts.StatusReceived)

	source := &fakeSource{fn: countedFacts(50)}
	c := newTestChecker(t, history, source, &recordNotifier{})

	summary, err := c.RunTick(context.Background())
	require.NoError(t, err)

	// trades: day -2 and today; prices: today only.
	assert.Equal(t, 3, summary.Pairs)
	assert.Equal(t, 0, source.callCount("trades", day(2026, 8, 25)))
	assert.Equal(t, 1, source.callCount("trades", day(2026, 8, 24)))
	assert.Equal(t, 1, source.callCount("trades", day(2026, 8, 26)))
}

func TestQueryRetriesThenSucceeds(t *testing.T) {
	history := newMemHistory()
	source := &fakeSource{
		fn: func(_ *contracts.FeedDefinition, _ time.Time, attempt int) (*contracts.ObservedFacts, error) {
			if attempt < 2 {
				return nil, errors.New("connection reset")
			}
			return &contracts.ObservedFacts{RecordCount: 25}, nil
		},
	}
	c := newTestChecker(t, history, source, &recordNotifier{})

	_, err := c.CheckFeed(context.Background(), "prices")
	require.NoError(t, err)

	assert.Equal(t, 3, source.callCount("prices", day(2026, 8, 26)))

	rec, err := history.Get(context.Background(), "prices", day(2026, 8, 26))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusReceived, rec.Status)
	assert.Equal(t, 25, rec.RecordCount)
}

func TestQueryExhaustionRecordsFailed(t *testing.T) {
	history := newMemHistory()
	source := &fakeSource{
		fn: func(*contracts.FeedDefinition, time.Time, int) (*contracts.ObservedFacts, error) {
			return nil, errors.New("relation does not exist")
		},
	}
	notifier := &recordNotifier{}
	c := newTestChecker(t, history, source, notifier)

	summary, err := c.CheckFeed(context.Background(), "prices")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts[contracts.StatusFailed])
	// First attempt plus MaxRetries.
	assert.Equal(t, 3, source.callCount("prices", day(2026, 8, 26)))

	rec, err := history.Get(context.Background(), "prices", day(2026, 8, 26))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusFailed, rec.Status)
	assert.Contains(t, rec.ErrorMessage, "relation does not exist")

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, contracts.StatusFailed, events[0].NewStatus)
	assert.Contains(t, events[0].ErrorMessage, "relation does not exist")
}

func TestUpsertFailureIsCountedAndNotNotified(t *testing.T) {
	history := newMemHistory()
	history.failUpserts = 2 // first attempt and its retry
	notifier := &recordNotifier{}
	c := newTestChecker(t, history, &fakeSource{fn: countedFacts(50)}, notifier)

	summary, err := c.CheckFeed(context.Background(), "prices")
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 0, summary.Transitions)
	assert.Empty(t, notifier.all())
	assert.Equal(t, 0, history.count())
}

func TestNotifyOnlyWhenStatusChanges(t *testing.T) {
	history := newMemHistory()
	history.seed("prices", day(2026, 8, 26), contracts.StatusReceived)
	notifier := &recordNotifier{}
	c := newTestChecker(t, history, &fakeSource{fn: countedFacts(50)}, notifier)

	summary, err := c.CheckFeed(context.Background(), "prices")
	require.NoError(t, err)

	// received -> received is not a transition.
	assert.Equal(t, 0, summary.Transitions)
	assert.Empty(t, notifier.all())
}

func TestNotifierFailureDoesNotAffectPersistence(t *testing.T) {
	history := newMemHistory()
	notifier := &recordNotifier{err: errors.New("webhook down")}
	c := newTestChecker(t, history, &fakeSource{fn: countedFacts(50)}, notifier)

	summary, err := c.CheckFeed(context.Background(), "prices")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Errors)
	rec, err := history.Get(context.Background(), "prices", day(2026, 8, 26))
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusReceived, rec.Status)
}

func TestCheckFeedUnknownFeed(t *testing.T) {
	c := newTestChecker(t, newMemHistory(), &fakeSource{fn: countedFacts(1)}, &recordNotifier{})

	_, err := c.CheckFeed(context.Background(), "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCheckDateReturnsFreshRecord(t *testing.T) {
	history := newMemHistory()
	c := newTestChecker(t, history, &fakeSource{fn: countedFacts(7)}, &recordNotifier{})

	// 7 < min_records 10 for trades.
	rec, err := c.CheckDate(context.Background(), "trades", day(2026, 8, 25))
	require.NoError(t, err)

	assert.Equal(t, contracts.StatusPartial, rec.Status)
	assert.Equal(t, 7, rec.RecordCount)
	assert.Equal(t, "09:00", rec.ExpectedTime)
}

func TestConcurrentTickAndTriggerConverge(t *testing.T) {
	history := newMemHistory()
	source := &fakeSource{
		fn: func(*contracts.FeedDefinition, time.Time, int) (*contracts.ObservedFacts, error) {
			time.Sleep(time.Millisecond)
			return &contracts.ObservedFacts{RecordCount: 50}, nil
		},
	}
	c := newTestChecker(t, history, source, &recordNotifier{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := c.RunTick(context.Background()); err != nil {
				errs <- err
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := c.CheckFeed(context.Background(), "trades"); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	// One row per pair regardless of how many runs raced.
	assert.Equal(t, 4, history.count())
	for _, d := range []time.Time{day(2026, 8, 24), day(2026, 8, 25), day(2026, 8, 26)} {
		rec, err := history.Get(context.Background(), "trades", d)
		require.NoError(t, err, fmt.Sprintf("trades %s", contracts.DateKey(d)))
		assert.Equal(t, contracts.StatusReceived, rec.Status)
	}
}

func TestRunTickCancelledContext(t *testing.T) {
	history := newMemHistory()
	c := newTestChecker(t, history, &fakeSource{fn: countedFacts(50)}, &recordNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := c.RunTick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Pairs)
}
