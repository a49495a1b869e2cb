package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// WebhookDelivery is a row in the webhook_log table: one attempted or
// pending delivery of a signed payload to a tenant's callback URL.
type WebhookDelivery struct {
	ID         int64         `db:"id"`
	TenantID   int64         `db:"tenant_id"`
	EventID    string        `db:"event_id"`
	EventKind  string        `db:"event_kind"`
	Payload    string        `db:"payload"`
	Status     string        `db:"status"`
	HTTPCode   int           `db:"http_code"`
	ErrorText  string        `db:"error_text"`
	CreatedAt  int64         `db:"created_at"`
	SentAt     sql.NullInt64 `db:"sent_at"`
	RetryCount int           `db:"retry_count"`
}

// InsertPendingDailySummary enqueues a daily_summary delivery, which has no
// correlating event id and so bypasses the per-event dedup index.
func (s *Store) InsertPendingDailySummary(ctx context.Context, tenantID int64, payload string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_log (tenant_id, event_id, event_kind, payload, created_at)
		 VALUES (?, '', 'daily_summary', ?, ?)`,
		tenantID, payload, time.Now().Unix(),
	)
	if err != nil {
		return apperr.Wrap(err, "enqueueing daily summary")
	}
	return nil
}

// ListPending returns a tenant's undelivered webhook rows, oldest first, so
// the dispatcher preserves delivery order within a tenant.
func (s *Store) ListPending(ctx context.Context, tenantID int64) ([]WebhookDelivery, error) {
	var rows []WebhookDelivery
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM webhook_log WHERE tenant_id = ? AND status = 'pending' ORDER BY created_at ASC`,
		tenantID,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "listing pending webhooks")
	}
	return rows, nil
}

// ListAllPending returns every tenant's undelivered webhook rows, used by
// the dispatcher's top-level drain loop across all tenants.
func (s *Store) ListAllPending(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	var rows []WebhookDelivery
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM webhook_log WHERE status = 'pending' ORDER BY created_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "listing all pending webhooks")
	}
	return rows, nil
}

// MarkSent records a successful delivery.
func (s *Store) MarkSent(ctx context.Context, id int64, httpCode int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_log SET status = 'sent', http_code = ?, sent_at = ? WHERE id = ?`,
		httpCode, time.Now().Unix(), id,
	)
	if err != nil {
		return apperr.Wrap(err, "marking webhook sent")
	}
	return nil
}

// MarkRetry records a failed attempt and increments the retry counter,
// leaving status "pending" so the dispatcher's retry schedule (1s/5s/25s,
// spec.md §4.4) picks it back up.
func (s *Store) MarkRetry(ctx context.Context, id int64, httpCode int, errText string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_log SET retry_count = retry_count + 1, http_code = ?, error_text = ? WHERE id = ?`,
		httpCode, errText, id,
	)
	if err != nil {
		return apperr.Wrap(err, "marking webhook retry")
	}
	return nil
}

// MarkFailed records a delivery that exhausted its retry budget.
func (s *Store) MarkFailed(ctx context.Context, id int64, httpCode int, errText string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE webhook_log SET status = 'failed', http_code = ?, error_text = ? WHERE id = ?`,
		httpCode, errText, id,
	)
	if err != nil {
		return apperr.Wrap(err, "marking webhook failed")
	}
	return nil
}

// LastDailySummaryAt returns when a tenant's daily_summary webhook last
// fired, or zero if it has never fired.
func (s *Store) LastDailySummaryAt(ctx context.Context, tenantID int64) (int64, error) {
	var lastSent int64
	err := s.db.GetContext(ctx, &lastSent, `SELECT last_sent_at FROM daily_summaries WHERE tenant_id = ?`, tenantID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Wrap(err, "fetching last daily summary time")
	}
	return lastSent, nil
}

// RecordDailySummarySent timestamps that a tenant's daily_summary webhook
// was just enqueued, so the dispatcher's timer does not fire twice in one day.
func (s *Store) RecordDailySummarySent(ctx context.Context, tenantID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO daily_summaries (tenant_id, last_sent_at) VALUES (?, ?)
		 ON CONFLICT (tenant_id) DO UPDATE SET last_sent_at = excluded.last_sent_at`,
		tenantID, time.Now().Unix(),
	)
	if err != nil {
		return apperr.Wrap(err, "recording daily summary sent")
	}
	return nil
}
