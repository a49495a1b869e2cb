// Package relaypool owns the long-lived subscriptions against the
// configured seed relays, deduplicates incoming events with a bounded LRU
// backstopped by the Store's uniqueness constraint, and feeds a bounded
// channel the event router drains (spec.md §4.2).
package relaypool

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/config"
	nostrclient "github.com/deepclaw/nostr-analytics/internal/nostr"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
)

// Pool manages relay subscriptions and hands deduplicated candidate events
// to the router via Events().
type Pool struct {
	client   *nostrclient.Client
	registry *registry.Registry
	cfg      config.Relays
	logger   *ops.Logger

	dedup  *dedupCache
	events chan *nostr.Event
}

// New builds a relay pool. Events() must be drained by the caller once Run
// starts, or the bounded channel will apply backpressure to the pool.
func New(client *nostrclient.Client, reg *registry.Registry, cfg config.Relays, logger *ops.Logger) *Pool {
	return &Pool{
		client:   client,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
		dedup:    newDedupCache(cfg.Policy.DedupCacheSize),
		events:   make(chan *nostr.Event, cfg.Policy.EventQueueSize),
	}
}

// Events returns the channel of deduplicated candidate events. Values sent
// here have passed the LRU fast-path check only; the router still performs
// the authoritative per-tenant existence check before acting on one.
func (p *Pool) Events() <-chan *nostr.Event {
	return p.events
}

// Run subscribes to every seed relay and idle-refreshes the filter set on a
// ticker so newly registered tenants are picked up without a full
// reconnect. It blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) {
	bo := newBackoff(p.cfg.Policy)
	refresh := time.NewTicker(p.cfg.Policy.IdleRefresh())
	defer refresh.Stop()

	subCtx, cancel := context.WithCancel(ctx)
	sub := p.subscribe(subCtx)

	for {
		select {
		case <-ctx.Done():
			cancel()
			return

		case relayEvent, ok := <-sub:
			if !ok {
				delay := bo.Next()
				if p.logger != nil {
					p.logger.LogRelayConnection("pool", "reconnecting", nil)
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
				subCtx, cancel = context.WithCancel(ctx)
				sub = p.subscribe(subCtx)
				continue
			}
			bo.Reset()
			p.handleIncoming(relayEvent)

		case <-refresh.C:
			cancel()
			subCtx, cancel = context.WithCancel(ctx)
			sub = p.subscribe(subCtx)
		}
	}
}

func (p *Pool) subscribe(ctx context.Context) <-chan nostr.RelayEvent {
	pubkeys := p.registry.AllPubkeys()
	filters := BuildFilters(pubkeys)
	if len(filters) == 0 {
		out := make(chan nostr.RelayEvent)
		close(out)
		return out
	}
	return p.client.Subscribe(ctx, p.client.GetSeedRelays(), filters)
}

func (p *Pool) handleIncoming(relayEvent nostr.RelayEvent) {
	if relayEvent.Event == nil {
		return
	}
	if p.dedup.SeenRecently(relayEvent.Event.ID) {
		return
	}

	select {
	case p.events <- relayEvent.Event:
	default:
		// Backpressure: the relay read loop never blocks. The event at the
		// head of the queue is discarded if it has this event's kind, and
		// this event takes the freed slot; otherwise the head is requeued
		// behind the others and this event is dropped unless the router has
		// freed a slot meanwhile. Drops are not counted and kinds have no
		// priority order.
		p.dropOldestOfKind(relayEvent.Event.Kind)
		select {
		case p.events <- relayEvent.Event:
		default:
		}
	}
}

func (p *Pool) dropOldestOfKind(kind int) {
	select {
	case old := <-p.events:
		if old.Kind != kind {
			select {
			case p.events <- old:
			default:
			}
		}
	default:
	}
}
