package contracts

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when no row matches the key.
var ErrNotFound = errors.New("not found")

// Calendar answers whether a feed is expected on a date and where its
// arrival deadline falls. Read-only after load, safe for concurrent use.
type Calendar interface {
	// IsExpectedDay reports whether data is expected for the feed on the
	// given COB date. Holidays and, for feeds with weekend_expected=false,
	// weekends are exempt.
	IsExpectedDay(feed *FeedDefinition, date time.Time) bool

	// Deadline returns cob_date + expected_time + tolerance in the
	// calendar's timezone.
	Deadline(feed *FeedDefinition, cobDate time.Time) time.Time
}

// HistoryRepository is the durable, idempotent store of one StatusRecord
// per (feed_name, cob_date).
type HistoryRepository interface {
	// Upsert writes the record, overwriting any prior row for the same key.
	// last_checked never moves backwards for a key.
	Upsert(ctx context.Context, rec *StatusRecord) error

	// Get returns the stored record or ErrNotFound.
	Get(ctx context.Context, feedName string, cobDate time.Time) (*StatusRecord, error)

	// ListRange returns all stored records with cob_date in [from, to].
	ListRange(ctx context.Context, from, to time.Time) ([]*StatusRecord, error)

	// DeleteBefore removes records older than the cutoff and reports how
	// many were swept.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SourceQuerier answers "how many rows, and when did the latest arrive,
// for feed F on date D". Implementations may be SQL, file scans or APIs.
type SourceQuerier interface {
	QueryFacts(ctx context.Context, feed *FeedDefinition, cobDate time.Time) (*ObservedFacts, error)
}

// Notifier receives transition events. Dispatch is best-effort: a failure
// here is logged by the caller and never affects the persisted status.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, event TransitionEvent) error
}

// AlertLogRepository records dispatch attempts for audit.
type AlertLogRepository interface {
	Record(ctx context.Context, entry *AlertLog) error
}
