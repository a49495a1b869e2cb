//go:build integration

// Package integration exercises the store, registry, and router together
// against a real (in-memory) SQLite database, without going through the
// relay pool or network at all.
package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/router"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

func newTestEnv(t *testing.T) (*store.Store, *registry.Registry, *router.Router) {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(ctx, &config.Database{Driver: "sqlite3", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	reg, err := registry.New(ctx, s, config.Registry{ReloadIntervalMs: 60_000}, nil)
	if err != nil {
		t.Fatalf("building registry: %v", err)
	}

	rt := router.New(s, reg, config.Webhook{HistoricalCutoffDays: 7}, nil)
	return s, reg, rt
}

// TestEndToEndMentionRoutesToWebhookLog registers a tenant, feeds a mention
// event through the router, and confirms it lands in both the events table
// and the pending webhook queue.
func TestEndToEndMentionRoutesToWebhookLog(t *testing.T) {
	ctx := context.Background()
	s, reg, rt := newTestEnv(t)

	tenant, err := s.CreateTenant(ctx, "tenantpubkey1234567890abcdef0123456789abcdef0123456789abcdef01", []byte("secret"))
	if err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("reloading registry: %v", err)
	}

	mention := &nostr.Event{
		ID:        "event0123456789abcdef0123456789abcdef0123456789abcdef0123456789ab",
		PubKey:    "author1234567890abcdef0123456789abcdef0123456789abcdef0123456789a",
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      nostr.KindTextNote,
		Content:   "hey check this out",
		Tags: nostr.Tags{
			{"p", tenant.Pubkey},
		},
		Sig: "sig0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
	}

	events := make(chan *nostr.Event, 1)
	events <- mention
	close(events)
	rt.Run(ctx, events)

	stored, err := s.GetUnacknowledgedEvents(ctx, tenant.ID, 10)
	if err != nil {
		t.Fatalf("fetching unacknowledged events: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(stored))
	}
	if stored[0].Kind != "mention" {
		t.Errorf("expected classification %q, got %q", "mention", stored[0].Kind)
	}

	pending, err := s.ListPending(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("listing pending webhooks: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending webhook, got %d", len(pending))
	}
	if pending[0].EventID != mention.ID {
		t.Errorf("pending webhook event id mismatch: got %s, want %s", pending[0].EventID, mention.ID)
	}
}

// TestEndToEndSelfPostSkipsWebhook confirms a tenant's own post is stored
// but never enqueued as a webhook, since it isn't something a tenant needs
// to be notified about.
func TestEndToEndSelfPostSkipsWebhook(t *testing.T) {
	ctx := context.Background()
	s, reg, rt := newTestEnv(t)

	tenant, err := s.CreateTenant(ctx, "tenantpubkey2234567890abcdef0123456789abcdef0123456789abcdef01", []byte("secret"))
	if err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("reloading registry: %v", err)
	}

	selfPost := &nostr.Event{
		ID:        "event1123456789abcdef0123456789abcdef0123456789abcdef0123456789ab",
		PubKey:    tenant.Pubkey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      nostr.KindTextNote,
		Content:   "my new post",
		Tags:      nostr.Tags{},
		Sig:       "sig1123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcde1",
	}

	events := make(chan *nostr.Event, 1)
	events <- selfPost
	close(events)
	rt.Run(ctx, events)

	stored, err := s.GetUnacknowledgedEvents(ctx, tenant.ID, 10)
	if err != nil {
		t.Fatalf("fetching unacknowledged events: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(stored))
	}
	if stored[0].Kind != "self_post" {
		t.Errorf("expected classification %q, got %q", "self_post", stored[0].Kind)
	}

	pending, err := s.ListPending(ctx, tenant.ID)
	if err != nil {
		t.Fatalf("listing pending webhooks: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("expected no pending webhook for self post, got %d", len(pending))
	}

	posts, err := s.GetPosts(ctx, tenant.ID, 10)
	if err != nil {
		t.Fatalf("fetching posts: %v", err)
	}
	if len(posts) != 1 || posts[0].NoteID != selfPost.ID {
		t.Errorf("expected self post stub to be recorded, got %+v", posts)
	}
}

// TestEndToEndFollowUpdatesFollowerList confirms a kind-3 contact list
// naming the tenant is classified as a follow and recorded in followers.
func TestEndToEndFollowUpdatesFollowerList(t *testing.T) {
	ctx := context.Background()
	s, reg, rt := newTestEnv(t)

	tenant, err := s.CreateTenant(ctx, "tenantpubkey3234567890abcdef0123456789abcdef0123456789abcdef01", []byte("secret"))
	if err != nil {
		t.Fatalf("creating tenant: %v", err)
	}
	if err := reg.Reload(ctx); err != nil {
		t.Fatalf("reloading registry: %v", err)
	}

	followerPubkey := "follower1234567890abcdef0123456789abcdef0123456789abcdef012345678"
	followList := &nostr.Event{
		ID:        "event2123456789abcdef0123456789abcdef0123456789abcdef0123456789ab",
		PubKey:    followerPubkey,
		CreatedAt: nostr.Timestamp(time.Now().Unix()),
		Kind:      nostr.KindFollowList,
		Content:   "",
		Tags: nostr.Tags{
			{"p", tenant.Pubkey},
		},
		Sig: "sig2123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcde2",
	}

	events := make(chan *nostr.Event, 1)
	events <- followList
	close(events)
	rt.Run(ctx, events)

	isFollower, err := s.IsFollower(ctx, tenant.ID, followerPubkey)
	if err != nil {
		t.Fatalf("checking follower: %v", err)
	}
	if !isFollower {
		t.Error("expected follower to be recorded")
	}
}
