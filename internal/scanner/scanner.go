// Package scanner periodically fetches each tenant's contact list and
// recent posts from the seed relays, resolving bech32-encoded identifiers
// along the way (spec.md §4.6).
package scanner

import (
	"context"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/deepclaw/nostr-analytics/internal/config"
	nostrclient "github.com/deepclaw/nostr-analytics/internal/nostr"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Mode selects how much history a scan pulls.
type Mode string

const (
	// ModeFull refreshes the contact list and backfills recent posts. Run
	// on tenant registration and on a slow daily cadence afterward.
	ModeFull Mode = "full"
	// ModeQuick only refreshes the contact list, used on the fast cadence
	// between full scans to keep the following list current.
	ModeQuick Mode = "quick"
)

const postBackfillLimit = 200

// Scanner runs periodic full and quick scans for every tenant.
type Scanner struct {
	client   *nostrclient.Client
	store    *store.Store
	registry *registry.Registry
	policy   config.RelayPolicy
	logger   *ops.Logger
}

// New builds a scanner.
func New(client *nostrclient.Client, s *store.Store, reg *registry.Registry, policy config.RelayPolicy, logger *ops.Logger) *Scanner {
	return &Scanner{client: client, store: s, registry: reg, policy: policy, logger: logger}
}

// Run alternates quick scans (every 15m) with full scans (every 24h) across
// all tenants until ctx is cancelled.
func (sc *Scanner) Run(ctx context.Context) {
	quick := time.NewTicker(15 * time.Minute)
	defer quick.Stop()
	full := time.NewTicker(24 * time.Hour)
	defer full.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quick.C:
			sc.scanAll(ctx, ModeQuick)
		case <-full.C:
			sc.scanAll(ctx, ModeFull)
		}
	}
}

func (sc *Scanner) scanAll(ctx context.Context, mode Mode) {
	for _, pubkey := range sc.registry.AllPubkeys() {
		entry, ok := sc.registry.Lookup(pubkey)
		if !ok {
			continue
		}
		sc.ScanTenant(ctx, entry.TenantID, entry.Pubkey, mode)
	}
}

// ScanTenant performs one scan pass for a single tenant, used both by the
// periodic ticker and by the registration flow to seed a brand new tenant
// immediately rather than waiting for the next tick.
func (sc *Scanner) ScanTenant(ctx context.Context, tenantID int64, pubkey string, mode Mode) {
	start := time.Now()
	authors, posts, err := sc.scan(ctx, tenantID, pubkey, mode)
	if sc.logger != nil {
		sc.logger.LogScan(tenantID, string(mode), authors, posts, time.Since(start), err)
	}
	if err == nil {
		_ = sc.store.DeleteTenantInsights(ctx, tenantID)
	}
}

func (sc *Scanner) scan(ctx context.Context, tenantID int64, pubkey string, mode Mode) (authors int, posts int, err error) {
	queryCtx, cancel := context.WithTimeout(ctx, sc.policy.QueryTimeout())
	defer cancel()

	relays := sc.client.GetSeedRelays()

	contactList, err := sc.client.FetchEvents(queryCtx, relays, nostr.Filter{
		Kinds:   []int{nostr.KindFollowList},
		Authors: []string{pubkey},
		Limit:   1,
	})
	if err != nil {
		return 0, 0, err
	}

	following := extractFollowing(contactList)
	if err := sc.store.ReplaceFollowing(ctx, tenantID, following); err != nil {
		return 0, 0, err
	}
	authors = len(following)

	if mode == ModeQuick {
		return authors, 0, nil
	}

	ownPosts, err := sc.client.FetchEvents(queryCtx, relays, nostr.Filter{
		Kinds:   []int{nostr.KindTextNote},
		Authors: []string{pubkey},
		Limit:   postBackfillLimit,
	})
	if err != nil {
		return authors, 0, err
	}

	for _, post := range ownPosts {
		if err := sc.store.UpsertPostStub(ctx, tenantID, post.ID, post.Content, "", int64(post.CreatedAt)); err != nil {
			continue
		}
		if err := sc.store.InsertPostActivity(ctx, tenantID, post.PubKey, "self", post.ID, int64(post.CreatedAt)); err != nil {
			continue
		}
	}
	posts = len(ownPosts)

	return authors, posts, nil
}

func extractFollowing(events []*nostr.Event) []string {
	if len(events) == 0 {
		return nil
	}
	latest := events[0]
	for _, e := range events[1:] {
		if e.CreatedAt > latest.CreatedAt {
			latest = e
		}
	}

	var peers []string
	for _, tag := range latest.Tags {
		if len(tag) >= 2 && tag[0] == "p" {
			peers = append(peers, normalizePubkey(tag[1]))
		}
	}
	return peers
}

// normalizePubkey resolves a bech32-encoded npub to its hex form; contact
// list "p" tags are always hex per NIP-02, but relay hint tags and manual
// entries sometimes carry npub1... identifiers, so decoding defensively
// here avoids two representations of the same peer in the following table.
func normalizePubkey(value string) string {
	if len(value) < 5 || value[:5] != "npub1" {
		return value
	}
	prefix, data, err := nip19.Decode(value)
	if err != nil || prefix != "npub" {
		return value
	}
	hex, ok := data.(string)
	if !ok {
		return value
	}
	return hex
}
