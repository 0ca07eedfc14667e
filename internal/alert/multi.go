package alert

import (
	"context"
	"errors"

	"github.com/wonny/feedwatch/internal/contracts"
)

// Multi fans one event out to every enabled channel. Each channel gets
// the event even when another fails; failures are joined for the caller
// to log.
type Multi struct {
	notifiers []contracts.Notifier
}

// NewMulti creates a fan-out notifier
func NewMulti(notifiers ...contracts.Notifier) *Multi {
	return &Multi{notifiers: notifiers}
}

func (m *Multi) Name() string {
	return "multi"
}

func (m *Multi) Notify(ctx context.Context, event contracts.TransitionEvent) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
