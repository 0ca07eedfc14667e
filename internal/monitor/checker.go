package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/logger"
)

// CheckerConfig bounds the tick engine's concurrency and patience.
type CheckerConfig struct {
	Workers      int           // parallel feeds per tick
	QueryTimeout time.Duration // per source query attempt
	StoreTimeout time.Duration // per history store call
	MaxRetries   int           // source query retries after the first attempt
	RetryDelay   time.Duration // initial backoff delay, doubled per retry
	MaxDelay     time.Duration // backoff cap
}

// DefaultCheckerConfig returns production defaults.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Workers:      4,
		QueryTimeout: 30 * time.Second,
		StoreTimeout: 10 * time.Second,
		MaxRetries:   3,
		RetryDelay:   2 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Checker drives evaluation cycles across all feeds and pending COB dates.
// A tick and a manual trigger for the same feed serialize on a per-feed
// lock; distinct feeds run in parallel under a bounded worker pool.
type Checker struct {
	registry *feedconfig.Registry
	history  contracts.HistoryRepository
	source   contracts.SourceQuerier
	notifier contracts.Notifier
	logger   *logger.Logger
	cfg      CheckerConfig

	locks sync.Map // feed name -> *sync.Mutex
	now   func() time.Time
}

// NewChecker creates a new checker
func NewChecker(
	registry *feedconfig.Registry,
	history contracts.HistoryRepository,
	source contracts.SourceQuerier,
	notifier contracts.Notifier,
	log *logger.Logger,
	cfg CheckerConfig,
) *Checker {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Checker{
		registry: registry,
		history:  history,
		source:   source,
		notifier: notifier,
		logger:   log,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Summary reports what one tick did.
type Summary struct {
	StartedAt   time.Time                `json:"started_at"`
	FinishedAt  time.Time                `json:"finished_at"`
	Pairs       int                      `json:"pairs"`
	Counts      map[contracts.Status]int `json:"counts"`
	Transitions int                      `json:"transitions"`
	Errors      int                      `json:"errors"`

	mu sync.Mutex
}

func newSummary(start time.Time) *Summary {
	return &Summary{
		StartedAt: start,
		Counts:    make(map[contracts.Status]int),
	}
}

func (s *Summary) add(status contracts.Status, transitioned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pairs++
	s.Counts[status]++
	if transitioned {
		s.Transitions++
	}
}

func (s *Summary) addError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pairs++
	s.Errors++
}

// RunTick evaluates every enabled feed across its pending COB dates.
// Errors in one (feed, date) pair never abort the rest of the tick.
func (c *Checker) RunTick(ctx context.Context) (*Summary, error) {
	snap := c.registry.Current()
	return c.run(ctx, snap, snap.EnabledFeeds())
}

// CheckFeed runs a tick restricted to one feed, regardless of its enabled
// flag. Used by the manual trigger.
func (c *Checker) CheckFeed(ctx context.Context, feedName string) (*Summary, error) {
	snap := c.registry.Current()
	feed, ok := snap.Feed(feedName)
	if !ok {
		return nil, fmt.Errorf("feed %q not found", feedName)
	}
	return c.run(ctx, snap, []*contracts.FeedDefinition{feed})
}

// CheckDate evaluates a single (feed, COB date) pair immediately and
// returns the upserted record.
func (c *Checker) CheckDate(ctx context.Context, feedName string, cobDate time.Time) (*contracts.StatusRecord, error) {
	snap := c.registry.Current()
	feed, ok := snap.Feed(feedName)
	if !ok {
		return nil, fmt.Errorf("feed %q not found", feedName)
	}

	lock := c.feedLock(feed.Name)
	lock.Lock()
	defer lock.Unlock()

	summary := newSummary(c.now())
	date := snap.Calendar.Day(cobDate)
	c.checkPair(ctx, snap, feed, date, summary)

	rec, err := c.history.Get(ctx, feed.Name, date)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Checker) run(ctx context.Context, snap *feedconfig.Snapshot, feeds []*contracts.FeedDefinition) (*Summary, error) {
	start := c.now()
	summary := newSummary(start)
	today := snap.Calendar.CurrentCOBDate(start)

	index, err := c.loadIndex(ctx, snap, today)
	if err != nil {
		return nil, fmt.Errorf("plan tick: %w", err)
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.Workers)

	for _, feed := range feeds {
		feed := feed
		g.Go(func() error {
			// All evaluations for one feed serialize here, so a manual
			// trigger cannot race the periodic tick on the same rows.
			lock := c.feedLock(feed.Name)
			lock.Lock()
			defer lock.Unlock()

			for _, date := range c.pendingDates(snap, feed, today, index[feed.Name]) {
				// Cancellation stops new pairs; started pairs finish so
				// upserts stay well-formed.
				if ctx.Err() != nil {
					return nil
				}
				c.checkPair(ctx, snap, feed, date, summary)
			}
			return nil
		})
	}

	_ = g.Wait() // workers never return errors; failures are tallied per pair
	summary.FinishedAt = c.now()

	c.logger.WithFields(map[string]interface{}{
		"pairs":       summary.Pairs,
		"transitions": summary.Transitions,
		"errors":      summary.Errors,
		"duration":    summary.FinishedAt.Sub(summary.StartedAt),
	}).Info("Tick completed")

	return summary, nil
}

// loadIndex reads the stored status for the widest retention window once
// per tick, keyed feed -> date key -> status.
func (c *Checker) loadIndex(ctx context.Context, snap *feedconfig.Snapshot, today time.Time) (map[string]map[string]contracts.Status, error) {
	horizon := 0
	for _, feed := range snap.Feeds {
		if d := feed.RetentionDays(); d > horizon {
			horizon = d
		}
	}
	earliest := today.AddDate(0, 0, -(horizon - 1))

	listCtx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	records, err := c.history.ListRange(listCtx, earliest, today)
	if err != nil {
		return nil, err
	}

	index := make(map[string]map[string]contracts.Status)
	for _, rec := range records {
		byDate, ok := index[rec.FeedName]
		if !ok {
			byDate = make(map[string]contracts.Status)
			index[rec.FeedName] = byDate
		}
		byDate[contracts.DateKey(rec.COBDate)] = rec.Status
	}
	return index, nil
}

// pendingDates enumerates the COB dates still needing evaluation for a
// feed: everything in the retention window without a terminal status,
// with today always included.
func (c *Checker) pendingDates(snap *feedconfig.Snapshot, feed *contracts.FeedDefinition, today time.Time, stored map[string]contracts.Status) []time.Time {
	days := feed.RetentionDays()

	var dates []time.Time
	for i := days - 1; i >= 0; i-- {
		date := today.AddDate(0, 0, -i)
		key := contracts.DateKey(date)

		if i == 0 {
			// Today is always re-checked; its facts are still moving.
			dates = append(dates, date)
			continue
		}
		if status, ok := stored[key]; ok && status.Terminal() {
			continue
		}
		dates = append(dates, date)
	}
	return dates
}

// checkPair queries, evaluates, persists and (on change) notifies for one
// (feed, COB date) pair. Never returns an error: failures are tallied and
// the tick moves on.
func (c *Checker) checkPair(ctx context.Context, snap *feedconfig.Snapshot, feed *contracts.FeedDefinition, date time.Time, summary *Summary) {
	now := c.now()
	log := c.logger.WithFields(map[string]interface{}{
		"feed":     feed.Name,
		"cob_date": contracts.DateKey(date),
	})

	prior := c.loadPrior(ctx, feed.Name, date, log)
	facts := c.queryFacts(ctx, feed, date, log)
	result := Evaluate(feed, date, facts, now, snap.Calendar)
	rec := result.Record(feed, date)

	if err := c.upsert(ctx, rec); err != nil {
		// The previous record stays stale rather than losing data.
		log.WithError(err).Error("Upsert failed, skipping pair")
		summary.addError()
		return
	}

	oldStatus := contracts.StatusUnknown
	if prior != nil {
		oldStatus = prior.Status
	}
	changed := oldStatus != result.Status

	if changed {
		event := contracts.TransitionEvent{
			FeedName:     feed.Name,
			COBDate:      contracts.DateKey(date),
			OldStatus:    oldStatus,
			NewStatus:    result.Status,
			RecordCount:  result.RecordCount,
			Timestamp:    now,
			ErrorMessage: result.ErrorMessage,
		}
		// Notification is best-effort; the upsert above is the source of
		// truth and is never rolled back on dispatch failure.
		if err := c.notifier.Notify(ctx, event); err != nil {
			log.WithError(err).Warn("Alert dispatch failed")
		}
	}

	summary.add(result.Status, changed)
}

func (c *Checker) loadPrior(ctx context.Context, feedName string, date time.Time, log *logger.Logger) *contracts.StatusRecord {
	getCtx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	defer cancel()

	prior, err := c.history.Get(getCtx, feedName, date)
	if err != nil && !errors.Is(err, contracts.ErrNotFound) {
		log.WithError(err).Warn("Could not read prior status")
	}
	return prior
}

// queryFacts asks the source adapter with bounded retries and exponential
// backoff. When every attempt fails the facts carry the query error and
// the evaluator records the pair as failed.
func (c *Checker) queryFacts(ctx context.Context, feed *contracts.FeedDefinition, date time.Time, log *logger.Logger) *contracts.ObservedFacts {
	var lastErr error
	delay := c.cfg.RetryDelay

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		queryCtx, cancel := context.WithTimeout(ctx, c.cfg.QueryTimeout)
		facts, err := c.source.QueryFacts(queryCtx, feed, date)
		cancel()

		if err == nil {
			return facts
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries || ctx.Err() != nil {
			break
		}

		log.WithFields(map[string]interface{}{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   err.Error(),
		}).Warn("Source query failed, retrying")

		select {
		case <-ctx.Done():
			return &contracts.ObservedFacts{QueryErr: lastErr}
		case <-time.After(delay):
		}

		delay *= 2
		if c.cfg.MaxDelay > 0 && delay > c.cfg.MaxDelay {
			delay = c.cfg.MaxDelay
		}
	}

	return &contracts.ObservedFacts{QueryErr: lastErr}
}

// upsert writes the record, retrying once on storage errors.
func (c *Checker) upsert(ctx context.Context, rec *contracts.StatusRecord) error {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		upsertCtx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
		err := c.history.Upsert(upsertCtx, rec)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err
	}
	return lastErr
}

func (c *Checker) feedLock(name string) *sync.Mutex {
	lock, _ := c.locks.LoadOrStore(name, &sync.Mutex{})
	return lock.(*sync.Mutex)
}
