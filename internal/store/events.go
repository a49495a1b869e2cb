package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// Event is the row shape of the per-tenant events table. Its primary key is
// (tenant_id, id): the same raw Nostr event id may legitimately be routed to
// more than one tenant (e.g. a note mentioning two tracked pubkeys), so
// uniqueness is scoped per tenant rather than global.
type Event struct {
	ID           string `db:"id"`
	TenantID     int64  `db:"tenant_id"`
	Kind         string `db:"kind"`
	AuthorPubkey string `db:"author_pubkey"`
	Content      string `db:"content"`
	Metadata     string `db:"metadata"`
	CreatedAt    int64  `db:"created_at"`
	Acknowledged bool   `db:"acknowledged"`
}

// PendingWebhook is the shape the router hands to InsertEventTx for the
// webhook enqueue half of the single write transaction.
type PendingWebhook struct {
	EventID   string
	EventKind string
	Payload   string
}

// EventEffects runs inside the same transaction as the event insert,
// performing whatever counter bumps, follower/following changes, or post
// activity writes the newly observed event calls for, and deciding whether a
// webhook should be enqueued. It only runs when the event was newly
// inserted, and its webhook decision is free to depend on rows it just wrote
// (e.g. a follower novelty check), since it all commits atomically together
// (spec.md §4.3 point 4: "exactly one webhook is enqueued per unique
// observed event").
type EventEffects func(ctx context.Context, tx *sqlx.Tx) (*PendingWebhook, error)

// InsertEventTx performs the router's single-transaction write described in
// spec.md §4.3: insert the classified event (idempotent per tenant), run
// effects, and enqueue at most one webhook row. Returns whether the event
// was newly inserted (false means this tenant already had it, and effects
// does not run, since aggregates and delivery must not double-count it).
func (s *Store) InsertEventTx(ctx context.Context, ev Event, effects EventEffects) (inserted bool, err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, apperr.Wrap(err, "beginning event transaction")
	}
	defer tx.Rollback()

	inserted, err = insertEventRow(ctx, tx, ev)
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, tx.Commit()
	}

	if effects != nil {
		webhook, err := effects(ctx, tx)
		if err != nil {
			return false, err
		}
		if webhook != nil {
			if err := enqueueWebhookRow(ctx, tx, ev.TenantID, *webhook); err != nil {
				return false, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, apperr.Wrap(err, "committing event transaction")
	}
	return true, nil
}

func insertEventRow(ctx context.Context, tx *sqlx.Tx, ev Event) (bool, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO events (id, tenant_id, kind, author_pubkey, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.TenantID, ev.Kind, ev.AuthorPubkey, ev.Content, ev.Metadata, ev.CreatedAt,
	)
	if err != nil {
		return false, apperr.Wrap(err, "inserting event")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(err, "reading rows affected")
	}
	return n > 0, nil
}

func enqueueWebhookRow(ctx context.Context, tx *sqlx.Tx, tenantID int64, w PendingWebhook) error {
	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO webhook_log (tenant_id, event_id, event_kind, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		tenantID, w.EventID, w.EventKind, w.Payload, time.Now().Unix(),
	)
	if err != nil {
		return apperr.Wrap(err, "enqueueing webhook")
	}
	return nil
}

// EventExistsForTenant checks per-tenant event uniqueness without writing.
// The router does not call it; it relies on InsertEventTx's insert on the
// (tenant_id, id) key instead.
func (s *Store) EventExistsForTenant(ctx context.Context, tenantID int64, eventID string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM events WHERE tenant_id = ? AND id = ?`, tenantID, eventID)
	if err != nil {
		return false, apperr.Wrap(err, "checking event existence")
	}
	return n > 0, nil
}

// GetUnacknowledgedEvents returns a tenant's events not yet marked seen via
// the REST API, newest first, capped at limit.
func (s *Store) GetUnacknowledgedEvents(ctx context.Context, tenantID int64, limit int) ([]Event, error) {
	var events []Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE tenant_id = ? AND acknowledged = 0
		 ORDER BY created_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "listing unacknowledged events")
	}
	return events, nil
}

// ListEvents returns a tenant's events within [since, until], newest first,
// capped at limit, for the §6 /events history endpoint.
func (s *Store) ListEvents(ctx context.Context, tenantID int64, since, until int64, limit int) ([]Event, error) {
	var events []Event
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM events WHERE tenant_id = ? AND created_at BETWEEN ? AND ?
		 ORDER BY created_at DESC LIMIT ?`,
		tenantID, since, until, limit,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "listing events")
	}
	return events, nil
}

// AcknowledgeEvents marks the given event ids seen for a tenant.
func (s *Store) AcknowledgeEvents(ctx context.Context, tenantID int64, eventIDs []string) error {
	if len(eventIDs) == 0 {
		return nil
	}
	query, args, err := sqlx.In(
		`UPDATE events SET acknowledged = 1 WHERE tenant_id = ? AND id IN (?)`,
		tenantID, eventIDs,
	)
	if err != nil {
		return apperr.Wrap(err, "building acknowledge query")
	}
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...); err != nil {
		return apperr.Wrap(err, "acknowledging events")
	}
	return nil
}

// GetEvent fetches a single event for a tenant, used to render webhook retry
// payloads and the /events/{id} endpoint.
func (s *Store) GetEvent(ctx context.Context, tenantID int64, eventID string) (*Event, error) {
	var ev Event
	err := s.db.GetContext(ctx, &ev, `SELECT * FROM events WHERE tenant_id = ? AND id = ?`, tenantID, eventID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("event %s not found", eventID)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching event: %w", err)
	}
	return &ev, nil
}
