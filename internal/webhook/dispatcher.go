// Package webhook delivers signed event notifications to tenant callback
// URLs, with bounded retries and a daily summary digest (spec.md §4.4).
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Dispatcher drains the webhook_log queue and delivers each row to its
// tenant's callback URL, signing the body and retrying on failure.
type Dispatcher struct {
	store    *store.Store
	registry *registry.Registry
	cfg      config.Webhook
	logger   *ops.Logger
	client   *http.Client

	pollInterval time.Duration
}

// New builds a dispatcher.
func New(s *store.Store, reg *registry.Registry, cfg config.Webhook, logger *ops.Logger) *Dispatcher {
	return &Dispatcher{
		store:        s,
		registry:     reg,
		cfg:          cfg,
		logger:       logger,
		client:       &http.Client{Timeout: cfg.Timeout()},
		pollInterval: 2 * time.Second,
	}
}

// Run drains the delivery queue on a poll loop and runs the daily summary
// timer, until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	drainTicker := time.NewTicker(d.pollInterval)
	defer drainTicker.Stop()
	summaryTicker := time.NewTicker(time.Hour)
	defer summaryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-drainTicker.C:
			d.drain(ctx)
		case <-summaryTicker.C:
			d.checkDailySummaries(ctx)
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	pending, err := d.store.ListAllPending(ctx, 500)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("listing pending webhooks failed", "error", err)
		}
		return
	}
	for _, row := range pending {
		if !d.due(row) {
			continue
		}
		d.deliver(ctx, row)
	}
}

// due reports whether row's retry schedule (1s/5s/25s, spec.md §4.4) has
// elapsed since it was created. The schedule is cumulative from creation
// time rather than per-attempt, since the queue only records retry_count,
// not each attempt's timestamp.
func (d *Dispatcher) due(row store.WebhookDelivery) bool {
	if row.RetryCount == 0 {
		return true
	}
	backoffs := d.cfg.Backoffs()
	idx := row.RetryCount - 1
	if idx >= len(backoffs) {
		idx = len(backoffs) - 1
	}
	var elapsed time.Duration
	for i := 0; i <= idx; i++ {
		elapsed += backoffs[i]
	}
	return time.Since(time.Unix(row.CreatedAt, 0)) >= elapsed
}

func (d *Dispatcher) deliver(ctx context.Context, row store.WebhookDelivery) {
	tenant, err := d.store.GetTenantByID(ctx, row.TenantID)
	if err != nil || tenant.CallbackURL == "" {
		return
	}

	envelope := Envelope{
		EventType: row.EventKind,
		TenantID:  row.TenantID,
		EventID:   row.EventID,
		Timestamp: time.Now().Unix(),
		Data:      json.RawMessage(row.Payload),
	}
	body, err := Marshal(envelope)
	if err != nil {
		if d.logger != nil {
			d.logger.Error("marshaling webhook envelope failed", "error", err)
		}
		return
	}
	signature := Sign(tenant.CallbackSecret, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tenant.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("X-Deep-Claw-Signature", signature)

	resp, err := d.client.Do(req)
	if err != nil {
		d.handleFailure(ctx, row, 0, err.Error())
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := d.store.MarkSent(ctx, row.ID, resp.StatusCode); err != nil && d.logger != nil {
			d.logger.Error("marking webhook sent failed", "error", err)
		}
		if d.logger != nil {
			d.logger.LogWebhookAttempt(row.TenantID, row.EventKind, row.RetryCount+1, "sent", resp.StatusCode, nil)
		}
		return
	}
	d.handleFailure(ctx, row, resp.StatusCode, http.StatusText(resp.StatusCode))
}

func (d *Dispatcher) handleFailure(ctx context.Context, row store.WebhookDelivery, httpCode int, errText string) {
	backoffs := d.cfg.Backoffs()
	if row.RetryCount >= len(backoffs) {
		if err := d.store.MarkFailed(ctx, row.ID, httpCode, errText); err != nil && d.logger != nil {
			d.logger.Error("marking webhook failed failed", "error", err)
		}
		if d.logger != nil {
			d.logger.LogWebhookAttempt(row.TenantID, row.EventKind, row.RetryCount+1, "failed", httpCode, errOf(errText))
		}
		return
	}
	if err := d.store.MarkRetry(ctx, row.ID, httpCode, errText); err != nil && d.logger != nil {
		d.logger.Error("marking webhook retry failed", "error", err)
	}
	if d.logger != nil {
		d.logger.LogWebhookAttempt(row.TenantID, row.EventKind, row.RetryCount+1, "retrying", httpCode, errOf(errText))
	}
}

func errOf(s string) error {
	if s == "" {
		return nil
	}
	return &deliveryError{s}
}

type deliveryError struct{ msg string }

func (e *deliveryError) Error() string { return e.msg }

// checkDailySummaries enqueues a daily_summary delivery for every tenant
// whose last summary fired more than 24h ago.
func (d *Dispatcher) checkDailySummaries(ctx context.Context) {
	for _, pubkey := range d.registry.AllPubkeys() {
		entry, ok := d.registry.Lookup(pubkey)
		if !ok {
			continue
		}
		d.maybeSendDailySummary(ctx, entry.TenantID)
	}
}

func (d *Dispatcher) maybeSendDailySummary(ctx context.Context, tenantID int64) {
	last, err := d.store.LastDailySummaryAt(ctx, tenantID)
	if err != nil {
		return
	}
	if time.Since(time.Unix(last, 0)) < 24*time.Hour {
		return
	}

	summary := DailySummary{Date: time.Now().UTC().Format("2006-01-02")}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := d.store.InsertPendingDailySummary(ctx, tenantID, string(payload)); err != nil {
		if d.logger != nil {
			d.logger.Error("enqueueing daily summary failed", "tenant_id", tenantID, "error", err)
		}
		return
	}
	if err := d.store.RecordDailySummarySent(ctx, tenantID); err != nil && d.logger != nil {
		d.logger.Error("recording daily summary sent failed", "error", err)
	}
}
