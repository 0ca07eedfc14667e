package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/feedwatch/internal/contracts"
	"github.com/wonny/feedwatch/pkg/logger"
)

// SQLSource implements contracts.SourceQuerier against SQL source tables.
// Feeds without their own connection string are queried on the monitoring
// pool; feeds pointing at other databases get a lazily created pool per
// distinct connection string, shared across feeds.
type SQLSource struct {
	defaultPool *pgxpool.Pool
	logger      *logger.Logger

	mu    sync.Mutex
	pools map[string]*pgxpool.Pool
}

// NewSQLSource creates a new SQL source adapter
func NewSQLSource(defaultPool *pgxpool.Pool, log *logger.Logger) *SQLSource {
	return &SQLSource{
		defaultPool: defaultPool,
		logger:      log,
		pools:       make(map[string]*pgxpool.Pool),
	}
}

// QueryFacts counts rows for the feed's COB date and, when the feed has an
// arrival column, fetches the latest arrival timestamp.
func (s *SQLSource) QueryFacts(ctx context.Context, feed *contracts.FeedDefinition, cobDate time.Time) (*contracts.ObservedFacts, error) {
	pool, err := s.poolFor(ctx, feed)
	if err != nil {
		return nil, err
	}

	table := pgx.Identifier{feed.SourceTable}.Sanitize()
	dateCol := pgx.Identifier{feed.DateColumn}.Sanitize()

	facts := &contracts.ObservedFacts{}

	if feed.ArrivalColumn != "" {
		arrivalCol := pgx.Identifier{feed.ArrivalColumn}.Sanitize()
		query := fmt.Sprintf(`SELECT COUNT(*), MAX(%s) FROM %s WHERE %s = $1`, arrivalCol, table, dateCol)

		var latest *time.Time
		if err := pool.QueryRow(ctx, query, cobDate).Scan(&facts.RecordCount, &latest); err != nil {
			return nil, fmt.Errorf("query source %s: %w", feed.SourceTable, err)
		}
		facts.LatestArrival = latest
		return facts, nil
	}

	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = $1`, table, dateCol)
	if err := pool.QueryRow(ctx, query, cobDate).Scan(&facts.RecordCount); err != nil {
		return nil, fmt.Errorf("query source %s: %w", feed.SourceTable, err)
	}
	return facts, nil
}

// poolFor resolves the connection pool for a feed, creating and caching
// one per distinct connection string.
func (s *SQLSource) poolFor(ctx context.Context, feed *contracts.FeedDefinition) (*pgxpool.Pool, error) {
	if feed.Connection == "" {
		return s.defaultPool, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pool, ok := s.pools[feed.Connection]; ok {
		return pool, nil
	}

	pool, err := pgxpool.New(ctx, feed.Connection)
	if err != nil {
		return nil, fmt.Errorf("connect source for feed %s: %w", feed.Name, err)
	}

	s.logger.WithField("feed", feed.Name).Debug("Opened source connection pool")
	s.pools[feed.Connection] = pool
	return pool, nil
}

// Close closes all source pools except the shared monitoring pool, which
// is owned by the caller.
func (s *SQLSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for conn, pool := range s.pools {
		pool.Close()
		delete(s.pools, conn)
	}
}
