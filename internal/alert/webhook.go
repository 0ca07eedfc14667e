package alert

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/internal/feedconfig"
	"github.com/wonny/feedwatch/pkg/httputil"
	"github.com/wonny/feedwatch/pkg/logger"
)

// Slack attachment colors per status.
var statusColors = map[contracts.Status]string{
	contracts.StatusReceived: "#36a64f",
	contracts.StatusDelayed:  "#ffcc00",
	contracts.StatusPartial:  "#ff9900",
	contracts.StatusMissing:  "#ff0000",
	contracts.StatusFailed:   "#8b0000",
	contracts.StatusUnknown:  "#cccccc",
}

// webhookPayload is the Slack-compatible message body.
type webhookPayload struct {
	Channel     string       `json:"channel,omitempty"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Color  string  `json:"color"`
	Title  string  `json:"title"`
	Text   string  `json:"text"`
	Fields []field `json:"fields"`
	Ts     int64   `json:"ts"`
}

type field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// WebhookNotifier posts transition events to a Slack-compatible webhook.
// Every attempt is recorded in the alert audit log; a rate cap keeps a
// mass outage from flooding the channel.
type WebhookNotifier struct {
	client *httputil.Client
	audit  contracts.AlertLogRepository
	logger *logger.Logger

	url              string
	channel          string
	notifyRecoveries bool
	limiter          *rate.Limiter

	now func() time.Time
}

// NewWebhookNotifier creates a webhook notifier from the alert settings.
// audit may be nil, in which case attempts are not persisted.
func NewWebhookNotifier(client *httputil.Client, audit contracts.AlertLogRepository, log *logger.Logger, cfg feedconfig.WebhookChannel) *WebhookNotifier {
	var limiter *rate.Limiter
	if cfg.PerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.PerMinute)), cfg.PerMinute)
	}

	return &WebhookNotifier{
		client:           client,
		audit:            audit,
		logger:           log,
		url:              cfg.URL,
		channel:          cfg.Channel,
		notifyRecoveries: cfg.NotifyRecoveries,
		limiter:          limiter,
		now:              time.Now,
	}
}

func (n *WebhookNotifier) Name() string {
	return "webhook"
}

// Notify posts the event. Recoveries (transitions back to received) are
// skipped unless configured; rate-capped drops are recorded as failed
// attempts so the audit trail shows the suppression.
func (n *WebhookNotifier) Notify(ctx context.Context, event contracts.TransitionEvent) error {
	if event.NewStatus == contracts.StatusReceived && !n.notifyRecoveries {
		return nil
	}

	message := formatMessage(event)

	if n.limiter != nil && !n.limiter.Allow() {
		n.record(ctx, event, contracts.AlertFailed, message, "rate limit exceeded")
		return fmt.Errorf("webhook rate limit exceeded")
	}

	payload := webhookPayload{
		Channel: n.channel,
		Attachments: []attachment{{
			Color: statusColors[event.NewStatus],
			Title: fmt.Sprintf("Feed %s is %s", event.FeedName, event.NewStatus),
			Text:  message,
			Fields: []field{
				{Title: "Feed", Value: event.FeedName, Short: true},
				{Title: "COB Date", Value: event.COBDate, Short: true},
				{Title: "Transition", Value: fmt.Sprintf("%s → %s", event.OldStatus, event.NewStatus), Short: true},
				{Title: "Records", Value: fmt.Sprintf("%d", event.RecordCount), Short: true},
			},
			Ts: event.Timestamp.Unix(),
		}},
	}

	resp, err := n.client.PostJSON(ctx, n.url, payload)
	if err != nil {
		n.record(ctx, event, contracts.AlertFailed, message, err.Error())
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errMsg := fmt.Sprintf("webhook returned status %d", resp.StatusCode)
		n.record(ctx, event, contracts.AlertFailed, message, errMsg)
		return fmt.Errorf("post webhook: %s", errMsg)
	}

	n.record(ctx, event, contracts.AlertSent, message, "")
	return nil
}

func (n *WebhookNotifier) record(ctx context.Context, event contracts.TransitionEvent, result, message, errMsg string) {
	if n.audit == nil {
		return
	}

	entry := &contracts.AlertLog{
		FeedName:     event.FeedName,
		COBDate:      event.COBDate,
		Channel:      n.Name(),
		Result:       result,
		Message:      message,
		SentAt:       n.now(),
		ErrorMessage: errMsg,
	}
	if err := n.audit.Record(ctx, entry); err != nil {
		n.logger.WithError(err).Warn("Could not record alert attempt")
	}
}

func formatMessage(event contracts.TransitionEvent) string {
	msg := fmt.Sprintf("%s changed from %s to %s for %s (%d records)",
		event.FeedName, event.OldStatus, event.NewStatus, event.COBDate, event.RecordCount)
	if event.ErrorMessage != "" {
		msg += ": " + event.ErrorMessage
	}
	return msg
}
