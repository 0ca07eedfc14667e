package jobs

import (
	"context"
	"time"

	"github.com/wonny/feedwatch/internal/monitor"
	"github.com/wonny/feedwatch/pkg/logger"
)

// FeedCheck runs one evaluation tick across all enabled feeds on the
// configured interval.
type FeedCheck struct {
	checker  *monitor.Checker
	logger   *logger.Logger
	interval time.Duration
}

// NewFeedCheck creates the periodic feed check job
func NewFeedCheck(checker *monitor.Checker, log *logger.Logger, interval time.Duration) *FeedCheck {
	return &FeedCheck{
		checker:  checker,
		logger:   log,
		interval: interval,
	}
}

func (j *FeedCheck) Name() string {
	return "feed_check"
}

func (j *FeedCheck) Schedule() string {
	return "@every " + j.interval.String()
}

// Run executes one tick. Per-pair failures are tallied inside the tick
// and do not fail the job; only a tick that could not be planned does.
func (j *FeedCheck) Run(ctx context.Context) error {
	summary, err := j.checker.RunTick(ctx)
	if err != nil {
		return err
	}

	if summary.Errors > 0 {
		j.logger.WithFields(map[string]interface{}{
			"pairs":  summary.Pairs,
			"errors": summary.Errors,
		}).Warn("Feed check completed with errors")
	}
	return nil
}
