package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// Insight is a cached, precomputed analytics result (histogram, zone,
// recommendation) with a TTL the API layer checks before recomputing
// (spec.md §4.7).
type Insight struct {
	TenantID     int64  `db:"tenant_id"`
	Kind         string `db:"kind"`
	Period       string `db:"period"`
	Payload      string `db:"payload"`
	CalculatedAt int64  `db:"calculated_at"`
	ExpiresAt    int64  `db:"expires_at"`
}

// GetInsight returns a cached insight if present and not expired.
func (s *Store) GetInsight(ctx context.Context, tenantID int64, kind, period string) (*Insight, error) {
	var in Insight
	err := s.db.GetContext(ctx, &in,
		`SELECT * FROM insights WHERE tenant_id = ? AND kind = ? AND period = ? AND expires_at > ?`,
		tenantID, kind, period, time.Now().Unix(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("no fresh insight for %s/%s", kind, period)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "fetching insight")
	}
	return &in, nil
}

// UpsertInsight stores a freshly computed insight with its TTL.
func (s *Store) UpsertInsight(ctx context.Context, tenantID int64, kind, period, payload string, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO insights (tenant_id, kind, period, payload, calculated_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, kind, period) DO UPDATE SET
		   payload = excluded.payload, calculated_at = excluded.calculated_at, expires_at = excluded.expires_at`,
		tenantID, kind, period, payload, now.Unix(), now.Add(ttl).Unix(),
	)
	if err != nil {
		return apperr.Wrap(err, "upserting insight")
	}
	return nil
}

// DeleteTenantInsights invalidates every cached insight for a tenant,
// called after a scan or aggregation run changes the underlying data.
func (s *Store) DeleteTenantInsights(ctx context.Context, tenantID int64) error {
	return deleteTenantInsights(ctx, s.db, tenantID)
}

// DeleteTenantInsightsTx is DeleteTenantInsights run inside the router's
// event insert transaction (spec.md §4.3 point 4).
func (s *Store) DeleteTenantInsightsTx(ctx context.Context, tx *sqlx.Tx, tenantID int64) error {
	return deleteTenantInsights(ctx, tx, tenantID)
}

func deleteTenantInsights(ctx context.Context, ext sqlx.ExtContext, tenantID int64) error {
	_, err := ext.ExecContext(ctx, `DELETE FROM insights WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return apperr.Wrap(err, "invalidating insights")
	}
	return nil
}
