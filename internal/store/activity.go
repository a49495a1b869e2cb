package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// HourCount is one bucket of an hourly histogram, 0-23 GMT per spec.md §4.7.
type HourCount struct {
	Hour  int   `db:"hour"`
	Count int64 `db:"count"`
}

// InsertPostActivity records a single post observation for the timing
// aggregator, keyed by the GMT hour it was posted in. authorRole is one of
// "follower", "following", or "self".
func (s *Store) InsertPostActivity(ctx context.Context, tenantID int64, authorPubkey, authorRole, noteID string, postedAt int64) error {
	return insertPostActivity(ctx, s.db, tenantID, authorPubkey, authorRole, noteID, postedAt)
}

// InsertPostActivityTx is InsertPostActivity run inside the router's event
// insert transaction (spec.md §4.3 point 4).
func (s *Store) InsertPostActivityTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, authorPubkey, authorRole, noteID string, postedAt int64) error {
	return insertPostActivity(ctx, tx, tenantID, authorPubkey, authorRole, noteID, postedAt)
}

func insertPostActivity(ctx context.Context, ext sqlx.ExtContext, tenantID int64, authorPubkey, authorRole, noteID string, postedAt int64) error {
	hour := time.Unix(postedAt, 0).UTC().Hour()
	_, err := ext.ExecContext(ctx,
		`INSERT OR IGNORE INTO post_activity (tenant_id, author_pubkey, author_role, note_id, posted_at, hour)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tenantID, authorPubkey, authorRole, noteID, postedAt, hour,
	)
	if err != nil {
		return apperr.Wrap(err, "inserting post activity")
	}
	return nil
}

// QueryHourlyCounts returns a 24-bucket histogram of post_activity rows for
// a tenant and role, the raw input to the zone-of-maximum-participation scan
// (spec.md §4.7).
func (s *Store) QueryHourlyCounts(ctx context.Context, tenantID int64, authorRole string) ([]HourCount, error) {
	var rows []HourCount
	err := s.db.SelectContext(ctx, &rows,
		`SELECT hour, COUNT(1) as count FROM post_activity
		 WHERE tenant_id = ? AND author_role = ? GROUP BY hour`,
		tenantID, authorRole,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "querying hourly counts")
	}
	return fillMissingHours(rows), nil
}

// fillMissingHours pads a sparse GROUP BY result to all 24 hours so callers
// never need a nil check for an hour with zero observations.
func fillMissingHours(rows []HourCount) []HourCount {
	counts := make([]int64, 24)
	for _, r := range rows {
		if r.Hour >= 0 && r.Hour < 24 {
			counts[r.Hour] = r.Count
		}
	}
	out := make([]HourCount, 24)
	for h := 0; h < 24; h++ {
		out[h] = HourCount{Hour: h, Count: counts[h]}
	}
	return out
}

// UpsertNetworkActivity accumulates one day's hourly count for a given
// activity kind ("follower_post", "following_post", "engagement"), used by
// the best-posting-times weighted score (spec.md §4.7).
func (s *Store) UpsertNetworkActivity(ctx context.Context, tenantID int64, kind string, hour int, windowDate string, delta int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO network_activity (tenant_id, kind, hour, window_date, count)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind, hour, window_date) DO UPDATE SET count = count + excluded.count`,
		tenantID, kind, hour, windowDate, delta,
	)
	if err != nil {
		return apperr.Wrap(err, "upserting network activity")
	}
	return nil
}

// QueryNetworkActivityHours returns the 24-bucket total across all recorded
// days for a tenant and activity kind.
func (s *Store) QueryNetworkActivityHours(ctx context.Context, tenantID int64, kind string) ([]HourCount, error) {
	var rows []HourCount
	err := s.db.SelectContext(ctx, &rows,
		`SELECT hour, SUM(count) as count FROM network_activity
		 WHERE tenant_id = ? AND kind = ? GROUP BY hour`,
		tenantID, kind,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "querying network activity hours")
	}
	return fillMissingHours(rows), nil
}
