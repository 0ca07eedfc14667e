package contracts

import "time"

// TransitionEvent is emitted when the stored status of a (feed, COB date)
// key changes between two evaluations. At most one event is emitted per
// (feed, date, tick), and only on change.
type TransitionEvent struct {
	FeedName     string    `json:"feed_name"`
	COBDate      string    `json:"cob_date"` // YYYY-MM-DD
	OldStatus    Status    `json:"old_status"`
	NewStatus    Status    `json:"new_status"`
	RecordCount  int       `json:"record_count"`
	Timestamp    time.Time `json:"timestamp"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// AlertLog is one append-only row recording a dispatch attempt.
// Unlike StatusRecord this is a log, never overwritten.
type AlertLog struct {
	FeedName     string    `json:"feed_name"`
	COBDate      string    `json:"cob_date"`
	Channel      string    `json:"channel"` // log, webhook, websocket
	Result       string    `json:"result"`  // sent, failed
	Message      string    `json:"message"`
	SentAt       time.Time `json:"sent_at"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

const (
	AlertSent   = "sent"
	AlertFailed = "failed"
)
