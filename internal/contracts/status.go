package contracts

import "time"

// Status classifies a feed's state for one COB date.
type Status string

const (
	StatusReceived Status = "received"
	StatusDelayed  Status = "delayed"
	StatusMissing  Status = "missing"
	StatusPartial  Status = "partial"
	StatusFailed   Status = "failed"
	StatusUnknown  Status = "unknown"
)

// Valid reports whether s is one of the known status values.
func (s Status) Valid() bool {
	switch s {
	case StatusReceived, StatusDelayed, StatusMissing, StatusPartial, StatusFailed, StatusUnknown:
		return true
	}
	return false
}

// Terminal reports whether a stored status ends re-evaluation for its date.
// missing is only ever assigned after the deadline has passed, so it is
// terminal by construction; unknown and partial stay subject to re-check.
func (s Status) Terminal() bool {
	switch s {
	case StatusReceived, StatusMissing, StatusFailed:
		return true
	}
	return false
}

// ObservedFacts are the raw observations for one (feed, COB date) pair,
// produced by the source query adapter per evaluation.
type ObservedFacts struct {
	RecordCount   int
	LatestArrival *time.Time // nil when the source exposes no arrival timestamp
	QueryErr      error      // set when the adapter failed after retries
}

// StatusRecord is the single durable row per (feed_name, cob_date).
// Repeat evaluations overwrite it; there is never more than one row per key.
type StatusRecord struct {
	FeedName     string    `json:"feed_name"`
	COBDate      time.Time `json:"cob_date"`
	Status       Status    `json:"status"`
	RecordCount  int       `json:"record_count"`
	LastChecked  time.Time `json:"last_checked"`
	ExpectedTime string    `json:"expected_time"` // copied from the definition at evaluation time
	ErrorMessage string    `json:"error_message,omitempty"`
}

// DayStatus is the per-date cell of the read API's summary grid.
type DayStatus struct {
	Status    Status `json:"status"`
	Count     int    `json:"count"`
	DayOfWeek string `json:"day_of_week"`
	IsWeekend bool   `json:"is_weekend"`
}

// FeedSummary maps COB dates to their status for one feed.
type FeedSummary struct {
	FeedName    string               `json:"feed_name"`
	DailyStatus map[string]DayStatus `json:"daily_status"` // keyed by DateKey
}
