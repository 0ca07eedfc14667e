package monitor

import (
	"time"

	"github.com/wonny/feedwatch/internal/calendar"
	"github.com/wonny/feedwatch/internal/contracts"
)

// BuildSummary assembles the per-feed daily status grid for the read API.
// Every (feed, date) cell in the window is present: dates with no stored
// row render as unknown, so dashboards see gaps instead of absences.
func BuildSummary(feeds []*contracts.FeedDefinition, records []*contracts.StatusRecord, cal *calendar.Calendar, today time.Time, days int) []contracts.FeedSummary {
	if days < 1 {
		days = 1
	}

	index := make(map[string]*contracts.StatusRecord, len(records))
	for _, rec := range records {
		index[rec.FeedName+"|"+contracts.DateKey(rec.COBDate)] = rec
	}

	summaries := make([]contracts.FeedSummary, 0, len(feeds))
	for _, feed := range feeds {
		daily := make(map[string]contracts.DayStatus, days)

		for i := days - 1; i >= 0; i-- {
			date := today.AddDate(0, 0, -i)
			key := contracts.DateKey(date)

			cell := contracts.DayStatus{
				Status:    contracts.StatusUnknown,
				DayOfWeek: date.Weekday().String(),
				IsWeekend: cal.IsWeekend(date),
			}
			if rec, ok := index[feed.Name+"|"+key]; ok {
				cell.Status = rec.Status
				cell.Count = rec.RecordCount
			}
			daily[key] = cell
		}

		summaries = append(summaries, contracts.FeedSummary{
			FeedName:    feed.Name,
			DailyStatus: daily,
		})
	}
	return summaries
}
