package monitor

import (
	"time"

	"github.com/wonny/feedwatch/internal/contracts"
)

// Result is the outcome of evaluating one (feed, COB date) pair.
type Result struct {
	Status       contracts.Status
	RecordCount  int
	EvaluatedAt  time.Time
	ErrorMessage string
}

// Evaluate decides the status of a feed for a COB date from the observed
// facts. Pure and deterministic: no I/O, no clock reads, safe to call
// concurrently. The first matching rule wins:
//
//  1. exempt day (holiday, or weekend for a weekday-only feed) -> received
//  2. source query failed -> failed
//  3. zero rows before the deadline -> unknown, after it -> missing
//  4. fewer rows than min_records -> partial
//  5. latest arrival after the deadline -> delayed
//  6. otherwise -> received
//
// Exemption and hard errors short-circuit before any time or volume
// reasoning. Zero rows only count as missing once the deadline has passed,
// so a feed is never flagged mid-window. Volume shortfall is checked
// before lateness: a short batch is the more actionable finding.
func Evaluate(feed *contracts.FeedDefinition, cobDate time.Time, facts *contracts.ObservedFacts, now time.Time, cal contracts.Calendar) Result {
	// Exempt days are not anomalies regardless of what was observed.
	if !cal.IsExpectedDay(feed, cobDate) {
		return Result{
			Status:      contracts.StatusReceived,
			RecordCount: 0,
			EvaluatedAt: now,
		}
	}

	if facts.QueryErr != nil {
		return Result{
			Status:       contracts.StatusFailed,
			RecordCount:  0,
			EvaluatedAt:  now,
			ErrorMessage: facts.QueryErr.Error(),
		}
	}

	deadline := cal.Deadline(feed, cobDate)

	if facts.RecordCount == 0 {
		if now.Before(deadline) {
			// Still inside the window; nothing observed yet is not actionable.
			return Result{
				Status:      contracts.StatusUnknown,
				RecordCount: 0,
				EvaluatedAt: now,
			}
		}
		return Result{
			Status:      contracts.StatusMissing,
			RecordCount: 0,
			EvaluatedAt: now,
		}
	}

	// min_records of 0 disables the volume check.
	if feed.MinRecords > 0 && facts.RecordCount < feed.MinRecords {
		return Result{
			Status:      contracts.StatusPartial,
			RecordCount: facts.RecordCount,
			EvaluatedAt: now,
		}
	}

	if facts.LatestArrival != nil && facts.LatestArrival.After(deadline) {
		return Result{
			Status:      contracts.StatusDelayed,
			RecordCount: facts.RecordCount,
			EvaluatedAt: now,
		}
	}

	return Result{
		Status:      contracts.StatusReceived,
		RecordCount: facts.RecordCount,
		EvaluatedAt: now,
	}
}

// Record converts the result to the durable row for the key, copying the
// expected time from the definition for audit.
func (r Result) Record(feed *contracts.FeedDefinition, cobDate time.Time) *contracts.StatusRecord {
	return &contracts.StatusRecord{
		FeedName:     feed.Name,
		COBDate:      cobDate,
		Status:       r.Status,
		RecordCount:  r.RecordCount,
		LastChecked:  r.EvaluatedAt,
		ExpectedTime: feed.ExpectedTime,
		ErrorMessage: r.ErrorMessage,
	}
}
