package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/feedwatch/internal/contracts"
)

// Repository implements contracts.HistoryRepository over the feed_status
// table. The UNIQUE(feed_name, cob_date) constraint is what makes two
// racing upserts converge on a single row instead of duplicating it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new history repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert writes the record, overwriting any prior row for the same
// (feed_name, cob_date). Last-writer-wins by last_checked: a stale writer
// racing a fresher one leaves the fresher row in place.
func (r *Repository) Upsert(ctx context.Context, rec *contracts.StatusRecord) error {
	query := `
		INSERT INTO feed_status (feed_name, cob_date, status, record_count, last_checked, expected_time, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (feed_name, cob_date) DO UPDATE SET
			status        = EXCLUDED.status,
			record_count  = EXCLUDED.record_count,
			last_checked  = EXCLUDED.last_checked,
			expected_time = EXCLUDED.expected_time,
			error_message = EXCLUDED.error_message
		WHERE feed_status.last_checked <= EXCLUDED.last_checked
	`

	_, err := r.pool.Exec(ctx, query,
		rec.FeedName, rec.COBDate, string(rec.Status), rec.RecordCount,
		rec.LastChecked, rec.ExpectedTime, nullable(rec.ErrorMessage),
	)
	if err != nil {
		return fmt.Errorf("upsert feed status %s/%s: %w", rec.FeedName, contracts.DateKey(rec.COBDate), err)
	}
	return nil
}

// Get returns the stored record for the key, or contracts.ErrNotFound.
func (r *Repository) Get(ctx context.Context, feedName string, cobDate time.Time) (*contracts.StatusRecord, error) {
	query := `
		SELECT feed_name, cob_date, status, record_count, last_checked, expected_time, COALESCE(error_message, '')
		FROM feed_status
		WHERE feed_name = $1 AND cob_date = $2
	`

	var rec contracts.StatusRecord
	var status string
	err := r.pool.QueryRow(ctx, query, feedName, cobDate).Scan(
		&rec.FeedName, &rec.COBDate, &status, &rec.RecordCount,
		&rec.LastChecked, &rec.ExpectedTime, &rec.ErrorMessage,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get feed status %s/%s: %w", feedName, contracts.DateKey(cobDate), err)
	}

	rec.Status = contracts.Status(status)
	return &rec, nil
}

// ListRange returns all stored records with cob_date in [from, to].
func (r *Repository) ListRange(ctx context.Context, from, to time.Time) ([]*contracts.StatusRecord, error) {
	query := `
		SELECT feed_name, cob_date, status, record_count, last_checked, expected_time, COALESCE(error_message, '')
		FROM feed_status
		WHERE cob_date BETWEEN $1 AND $2
		ORDER BY feed_name, cob_date
	`

	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list feed status: %w", err)
	}
	defer rows.Close()

	var records []*contracts.StatusRecord
	for rows.Next() {
		var rec contracts.StatusRecord
		var status string
		if err := rows.Scan(
			&rec.FeedName, &rec.COBDate, &status, &rec.RecordCount,
			&rec.LastChecked, &rec.ExpectedTime, &rec.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan feed status: %w", err)
		}
		rec.Status = contracts.Status(status)
		records = append(records, &rec)
	}
	return records, rows.Err()
}

// DeleteBefore sweeps rows older than the cutoff. The cob_date index keeps
// this cheap even with a year of history.
func (r *Repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feed_status WHERE cob_date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete feed status before %s: %w", contracts.DateKey(cutoff), err)
	}
	return tag.RowsAffected(), nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
