// Package router drains the relay pool's candidate event channel,
// classifies each event against every tenant it is relevant to, and writes
// the result through the Store's single-transaction insert (spec.md §4.3).
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Router classifies and persists candidate events for every tracked tenant.
type Router struct {
	store    *store.Store
	registry *registry.Registry
	webhook  config.Webhook
	logger   *ops.Logger
}

// New builds a router.
func New(s *store.Store, reg *registry.Registry, webhookCfg config.Webhook, logger *ops.Logger) *Router {
	return &Router{store: s, registry: reg, webhook: webhookCfg, logger: logger}
}

// Run drains events until the channel closes or ctx is cancelled.
func (r *Router) Run(ctx context.Context, events <-chan *nostr.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.route(ctx, event)
		}
	}
}

func (r *Router) route(ctx context.Context, event *nostr.Event) {
	if err := r.store.SaveRawEvent(ctx, event); err != nil && r.logger != nil {
		r.logger.Error("saving raw event failed", "event_id", event.ID, "error", err)
	}

	for _, pubkey := range taggedAndAuthorPubkeys(event) {
		entry, ok := r.registry.Lookup(pubkey)
		if !ok {
			continue
		}
		r.routeForTenant(ctx, event, entry)
	}
}

func (r *Router) routeForTenant(ctx context.Context, event *nostr.Event, entry registry.Entry) {
	classification, ok := Classify(event, entry.Pubkey)
	if !ok {
		return
	}

	ev := store.Event{
		ID:           event.ID,
		TenantID:     entry.TenantID,
		Kind:         classification.Kind,
		AuthorPubkey: event.PubKey,
		Content:      event.Content,
		CreatedAt:    int64(event.CreatedAt),
	}
	if classification.ZapSats > 0 {
		ev.Metadata = mustJSON(map[string]int64{"zap_sats": classification.ZapSats})
	}

	inserted, err := r.store.InsertEventTx(ctx, ev, r.effectsFor(event, classification, entry))
	if err != nil {
		if r.logger != nil {
			r.logger.Error("inserting event failed", "event_id", event.ID, "tenant_id", entry.TenantID, "error", err)
		}
		return
	}
	if r.logger != nil {
		r.logger.LogEventRouted(event.ID, entry.TenantID, classification.Kind, inserted)
	}
}

// effectsFor builds the transactional side effects for a newly inserted
// event: counter bumps, follower/following changes, post activity writes,
// insight invalidation, and the webhook enqueue decision, all committed
// alongside the event insert so exactly one webhook fires per unique
// observed event (spec.md §4.3 point 4). Kinds that gate webhook eligibility
// on more than event novelty — follow, in particular, since clients
// republish their contact list on every change, not just on first follow —
// resolve that check here, inside the transaction, instead of trusting the
// event row's own novelty.
func (r *Router) effectsFor(event *nostr.Event, c Classification, entry registry.Entry) store.EventEffects {
	return func(ctx context.Context, tx *sqlx.Tx) (*store.PendingWebhook, error) {
		var webhook *store.PendingWebhook

		switch c.Kind {
		case "follow":
			isNew, err := r.store.InsertFollowerIfNewTx(ctx, tx, entry.TenantID, event.PubKey)
			if err != nil {
				return nil, err
			}
			if isNew {
				webhook = r.buildWebhook(event, c)
			}
		case "unfollow":
			if err := r.store.RemoveFollowerTx(ctx, tx, entry.TenantID, event.PubKey); err != nil {
				return nil, err
			}
		case "self_post":
			if err := r.store.UpsertPostStubTx(ctx, tx, entry.TenantID, event.ID, event.Content, firstImageURL(event), int64(event.CreatedAt)); err != nil {
				return nil, err
			}
			if err := r.store.InsertPostActivityTx(ctx, tx, entry.TenantID, event.PubKey, "self", event.ID, int64(event.CreatedAt)); err != nil {
				return nil, err
			}
		case "mention":
			webhook = r.buildWebhook(event, c)
		case "reply":
			if err := r.bumpCounterIfReferencedTx(ctx, tx, entry.TenantID, event, "replies", 1); err != nil {
				return nil, err
			}
			webhook = r.buildWebhook(event, c)
		case "reaction":
			if err := r.bumpCounterIfReferencedTx(ctx, tx, entry.TenantID, event, "reactions", 1); err != nil {
				return nil, err
			}
		case "repost":
			if err := r.bumpCounterIfReferencedTx(ctx, tx, entry.TenantID, event, "reposts", 1); err != nil {
				return nil, err
			}
		case "zap":
			if err := r.bumpCounterIfReferencedTx(ctx, tx, entry.TenantID, event, "zap_count", 1); err != nil {
				return nil, err
			}
			if c.ZapSats > 0 {
				if err := r.bumpCounterIfReferencedTx(ctx, tx, entry.TenantID, event, "zap_total", c.ZapSats); err != nil {
					return nil, err
				}
			}
			webhook = r.buildWebhook(event, c)
		}

		if err := r.store.DeleteTenantInsightsTx(ctx, tx, entry.TenantID); err != nil {
			return nil, err
		}
		return webhook, nil
	}
}

// buildWebhook decides whether the classified event should enqueue a
// webhook delivery, honoring the historical-cutoff rule from spec.md §4.3:
// events older than HistoricalCutoffDays never enqueue one, since they are
// almost always a relay backfilling history rather than something live. The
// wire event_type is normalized to the closed public vocabulary from
// spec.md §6 (mention, new_follower, zap, daily_summary): a follow becomes
// new_follower, and a reply is surfaced as a mention, since from a
// subscriber's point of view both are "someone engaged with your content
// by name" and the spec defines no separate reply event.
func (r *Router) buildWebhook(event *nostr.Event, c Classification) *store.PendingWebhook {
	if c.IsSelf {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -r.webhook.HistoricalCutoffDays).Unix()
	if int64(event.CreatedAt) < cutoff {
		return nil
	}
	switch c.Kind {
	case "mention", "reply", "zap", "follow":
	default:
		return nil
	}

	eventType := webhookEventType(c.Kind)
	payload := mustJSON(map[string]any{
		"type":       eventType,
		"event_id":   event.ID,
		"author":     event.PubKey,
		"content":    event.Content,
		"created_at": event.CreatedAt,
		"zap_sats":   c.ZapSats,
	})
	return &store.PendingWebhook{EventID: event.ID, EventKind: eventType, Payload: payload}
}

// webhookEventType maps an internal classification kind to the public
// webhook vocabulary. Kinds outside buildWebhook's eligible set never reach
// this function.
func webhookEventType(kind string) string {
	switch kind {
	case "follow":
		return "new_follower"
	case "reply":
		return "mention"
	default:
		return kind
	}
}

// bumpCounterIfReferencedTx increments a post's engagement counter, inside
// the event insert transaction, when the incoming event references one of
// the tenant's own notes via an "e" tag.
func (r *Router) bumpCounterIfReferencedTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, event *nostr.Event, column string, delta int64) error {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			if err := r.store.IncrementPostCounterTx(ctx, tx, tenantID, tag[1], column, delta); err != nil {
				return err
			}
		}
	}
	return nil
}

func firstImageURL(event *nostr.Event) string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "image" {
			return tag[1]
		}
	}
	return ""
}

func taggedAndAuthorPubkeys(event *nostr.Event) []string {
	seen := map[string]bool{event.PubKey: true}
	pubkeys := []string{event.PubKey}
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "p" && !seen[tag[1]] {
			seen[tag[1]] = true
			pubkeys = append(pubkeys, tag[1])
		}
	}
	return pubkeys
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
