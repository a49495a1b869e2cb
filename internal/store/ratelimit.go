package store

import (
	"context"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// IncrementRateLimitCounter bumps the request count for a tenant, endpoint,
// and current hour bucket, returning the count after the increment. These
// counters live only in this table, whether or not Redis is configured
// (spec.md §5).
func (s *Store) IncrementRateLimitCounter(ctx context.Context, tenantID int64, endpoint string) (int64, error) {
	bucket := time.Now().Unix() / 3600
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rate_limit_counters (tenant_id, endpoint, hour_bucket, count) VALUES (?, ?, ?, 1)
		 ON CONFLICT (tenant_id, endpoint, hour_bucket) DO UPDATE SET count = count + 1`,
		tenantID, endpoint, bucket,
	)
	if err != nil {
		return 0, apperr.Wrap(err, "incrementing rate limit counter")
	}

	var count int64
	err = s.db.GetContext(ctx, &count,
		`SELECT count FROM rate_limit_counters WHERE tenant_id = ? AND endpoint = ? AND hour_bucket = ?`,
		tenantID, endpoint, bucket,
	)
	if err != nil {
		return 0, apperr.Wrap(err, "reading rate limit counter")
	}
	return count, nil
}

// PruneRateLimitCounters deletes hour buckets older than the retention
// window, keeping the table from growing unbounded across tenants.
func (s *Store) PruneRateLimitCounters(ctx context.Context, olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).Unix() / 3600
	_, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_counters WHERE hour_bucket < ?`, cutoff)
	if err != nil {
		return apperr.Wrap(err, "pruning rate limit counters")
	}
	return nil
}
