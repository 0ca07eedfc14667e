package contracts

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FeedDefinition describes one monitored data feed. Definitions are loaded
// once per run, validated, and shared read-only; a reload produces a fresh
// registry instance rather than mutating these in place.
type FeedDefinition struct {
	Name        string `json:"name"`
	SourceTable string `json:"source_table"`
	DateColumn  string `json:"date_column"`
	// ArrivalColumn is the optional timestamp column used to detect late
	// batches. Empty means the source exposes no arrival time, in which
	// case lateness is never classified.
	ArrivalColumn   string        `json:"arrival_column,omitempty"`
	ExpectedTime    string        `json:"expected_time"` // "HH:MM", 24h
	Tolerance       time.Duration `json:"tolerance"`
	WeekendExpected bool          `json:"weekend_expected"`
	MinRecords      int           `json:"min_records"`
	Retention       time.Duration `json:"retention"`
	Enabled         bool          `json:"enabled"`
	// Connection is the source database descriptor. Empty means the feed's
	// table lives in the monitoring database. Never serialized.
	Connection string `json:"-"`
}

// ExpectedClock returns the expected arrival time-of-day. The "HH:MM"
// format is enforced at registry load, so a malformed value here is a
// programming error.
func (f *FeedDefinition) ExpectedClock() (hour, minute int) {
	parts := strings.SplitN(f.ExpectedTime, ":", 2)
	if len(parts) != 2 {
		panic(fmt.Sprintf("feed %s: unvalidated expected_time %q", f.Name, f.ExpectedTime))
	}
	hour, _ = strconv.Atoi(parts[0])
	minute, _ = strconv.Atoi(parts[1])
	return hour, minute
}

// RetentionDays returns the retention window in whole days, minimum 1.
func (f *FeedDefinition) RetentionDays() int {
	days := int(f.Retention / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}

// DateKey formats a COB date the way it is keyed everywhere: YYYY-MM-DD.
func DateKey(date time.Time) string {
	return date.Format("2006-01-02")
}
