package jobs

import (
	"context"
	"time"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/logger"
)

// Retention sweeps status rows older than the widest retention window.
// Runs once a day, off business hours.
type Retention struct {
	registry *feedconfig.Registry
	history  contracts.HistoryRepository
	logger   *logger.Logger
}

// NewRetention creates the daily retention sweep job
func NewRetention(registry *feedconfig.Registry, history contracts.HistoryRepository, log *logger.Logger) *Retention {
	return &Retention{
		registry: registry,
		history:  history,
		logger:   log,
	}
}

func (j *Retention) Name() string {
	return "retention_sweep"
}

func (j *Retention) Schedule() string {
	return "0 30 2 * * *" // daily at 02:30
}

func (j *Retention) Run(ctx context.Context) error {
	snap := j.registry.Current()
	today := snap.Calendar.CurrentCOBDate(time.Now())

	days := int(snap.MaxRetention() / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	cutoff := today.AddDate(0, 0, -(days - 1))

	deleted, err := j.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"cutoff":  contracts.DateKey(cutoff),
		"deleted": deleted,
	}).Info("Retention sweep completed")
	return nil
}
