package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/feedwatch/internal/contracts"
)

// LogRepository implements contracts.AlertLogRepository over the
// append-only alert_logs table.
type LogRepository struct {
	pool *pgxpool.Pool
}

// NewLogRepository creates a new alert log repository
func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

// Record appends one dispatch attempt.
func (r *LogRepository) Record(ctx context.Context, entry *contracts.AlertLog) error {
	query := `
		INSERT INTO alert_logs (feed_name, cob_date, channel, result, message, sent_at, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var errMsg interface{}
	if entry.ErrorMessage != "" {
		errMsg = entry.ErrorMessage
	}

	_, err := r.pool.Exec(ctx, query,
		entry.FeedName, entry.COBDate, entry.Channel, entry.Result,
		entry.Message, entry.SentAt, errMsg,
	)
	if err != nil {
		return fmt.Errorf("record alert log: %w", err)
	}
	return nil
}

// ListRecent returns the latest dispatch attempts for a feed, newest first.
func (r *LogRepository) ListRecent(ctx context.Context, feedName string, limit int) ([]*contracts.AlertLog, error) {
	query := `
		SELECT feed_name, cob_date, channel, result, COALESCE(message, ''), sent_at, COALESCE(error_message, '')
		FROM alert_logs
		WHERE feed_name = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("list alert logs: %w", err)
	}
	defer rows.Close()

	var entries []*contracts.AlertLog
	for rows.Next() {
		var entry contracts.AlertLog
		var cobDate time.Time
		if err := rows.Scan(
			&entry.FeedName, &cobDate, &entry.Channel, &entry.Result,
			&entry.Message, &entry.SentAt, &entry.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan alert log: %w", err)
		}
		entry.COBDate = contracts.DateKey(cobDate)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
