package monitor

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema for the monitoring metadata store. feed_status keeps exactly one
// evolving row per (feed_name, cob_date); alert_logs is append-only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS feed_status (
		feed_name     TEXT        NOT NULL,
		cob_date      DATE        NOT NULL,
		status        TEXT        NOT NULL,
		record_count  INTEGER     NOT NULL DEFAULT 0,
		last_checked  TIMESTAMPTZ NOT NULL,
		expected_time TEXT        NOT NULL DEFAULT '',
		error_message TEXT,
		PRIMARY KEY (feed_name, cob_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_status_cob_date ON feed_status (cob_date)`,
	`CREATE TABLE IF NOT EXISTS alert_logs (
		id            BIGSERIAL   PRIMARY KEY,
		feed_name     TEXT        NOT NULL,
		cob_date      DATE        NOT NULL,
		channel       TEXT        NOT NULL,
		result        TEXT        NOT NULL,
		message       TEXT,
		sent_at       TIMESTAMPTZ NOT NULL,
		error_message TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_alert_logs_feed ON alert_logs (feed_name, cob_date)`,
}

// Migrate creates the monitoring tables if they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
