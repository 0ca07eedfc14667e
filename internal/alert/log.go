package alert

import (
	"context"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/pkg/logger"
)

// LogNotifier writes transition events to the structured log. Enabled by
// default; transitions reach the log even when no webhook is configured.
type LogNotifier struct {
	logger *logger.Logger
}

// NewLogNotifier creates a new log notifier
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) Name() string {
	return "log"
}

// Notify logs the transition at a severity matching the new status.
// Never returns an error.
func (n *LogNotifier) Notify(_ context.Context, event contracts.TransitionEvent) error {
	log := n.logger.WithFields(map[string]interface{}{
		"feed":         event.FeedName,
		"cob_date":     event.COBDate,
		"old_status":   event.OldStatus,
		"new_status":   event.NewStatus,
		"record_count": event.RecordCount,
	})
	if event.ErrorMessage != "" {
		log = log.WithField("error_message", event.ErrorMessage)
	}

	switch event.NewStatus {
	case contracts.StatusMissing, contracts.StatusFailed:
		log.Error("Feed status transition")
	case contracts.StatusDelayed, contracts.StatusPartial:
		log.Warn("Feed status transition")
	default:
		log.Info("Feed status transition")
	}
	return nil
}
