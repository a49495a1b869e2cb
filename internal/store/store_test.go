package store

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/deepclaw/nostr-analytics/internal/config"
)

// withWebhook adapts a fixed PendingWebhook to the EventEffects shape
// InsertEventTx expects, for tests that don't need kind-specific effects.
func withWebhook(w *PendingWebhook) EventEffects {
	return func(ctx context.Context, tx *sqlx.Tx) (*PendingWebhook, error) {
		return w, nil
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := &config.Database{Driver: "sqlite3", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"}
	s, err := New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndFetchTenant(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1testpubkey", []byte("secret"))
	require.NoError(t, err)
	require.Equal(t, "npub1testpubkey", tenant.Pubkey)

	byID, err := s.GetTenantByID(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, tenant.Pubkey, byID.Pubkey)

	byPubkey, err := s.GetTenantByPubkey(ctx, "npub1testpubkey")
	require.NoError(t, err)
	require.Equal(t, tenant.ID, byPubkey.ID)

	_, err = s.CreateTenant(ctx, "npub1testpubkey", []byte("secret"))
	require.Error(t, err, "duplicate pubkey should conflict")
}

func TestInsertEventTxIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	ev := Event{ID: "evt1", TenantID: tenant.ID, Kind: "mention", AuthorPubkey: "author1", CreatedAt: time.Now().Unix()}
	webhook := &PendingWebhook{EventID: "evt1", EventKind: "mention", Payload: `{"type":"mention"}`}

	inserted, err := s.InsertEventTx(ctx, ev, withWebhook(webhook))
	require.NoError(t, err)
	require.True(t, inserted)

	inserted, err = s.InsertEventTx(ctx, ev, withWebhook(webhook))
	require.NoError(t, err)
	require.False(t, inserted, "second insert of the same (tenant, event id) must be a no-op")

	pending, err := s.ListPending(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1, "webhook must not be enqueued twice for the same event")
}

func TestInsertEventTxSameIDDifferentTenants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	t1, err := s.CreateTenant(ctx, "npub1a", []byte("s1"))
	require.NoError(t, err)
	t2, err := s.CreateTenant(ctx, "npub1b", []byte("s2"))
	require.NoError(t, err)

	ev1 := Event{ID: "shared-evt", TenantID: t1.ID, Kind: "mention", AuthorPubkey: "author1", CreatedAt: time.Now().Unix()}
	ev2 := Event{ID: "shared-evt", TenantID: t2.ID, Kind: "mention", AuthorPubkey: "author1", CreatedAt: time.Now().Unix()}

	inserted1, err := s.InsertEventTx(ctx, ev1, nil)
	require.NoError(t, err)
	require.True(t, inserted1)

	inserted2, err := s.InsertEventTx(ctx, ev2, nil)
	require.NoError(t, err)
	require.True(t, inserted2, "the same raw event id must be insertable once per tenant")
}

func TestFollowerLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	isNew, err := s.InsertFollowerIfNew(ctx, tenant.ID, "peer1")
	require.NoError(t, err)
	require.True(t, isNew)

	isNew, err = s.InsertFollowerIfNew(ctx, tenant.ID, "peer1")
	require.NoError(t, err)
	require.False(t, isNew)

	count, err := s.CountFollowers(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, s.RemoveFollower(ctx, tenant.ID, "peer1"))
	count, err = s.CountFollowers(ctx, tenant.ID)
	require.NoError(t, err)
	require.Equal(t, 0, count)
}

func TestReplaceFollowing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	require.NoError(t, s.ReplaceFollowing(ctx, tenant.ID, []string{"peerA", "peerB"}))
	following, err := s.ListFollowing(ctx, tenant.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"peerA", "peerB"}, following)

	require.NoError(t, s.ReplaceFollowing(ctx, tenant.ID, []string{"peerC"}))
	following, err = s.ListFollowing(ctx, tenant.ID)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"peerC"}, following)
}

func TestQueryHourlyCountsFillsAllHours(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	postedAt := time.Date(2026, 1, 1, 9, 30, 0, 0, time.UTC).Unix()
	require.NoError(t, s.InsertPostActivity(ctx, tenant.ID, "author1", "follower", "note1", postedAt))

	hours, err := s.QueryHourlyCounts(ctx, tenant.ID, "follower")
	require.NoError(t, err)
	require.Len(t, hours, 24)
	require.Equal(t, int64(1), hours[9].Count)
	require.Equal(t, int64(0), hours[10].Count)
}

func TestInsightTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	require.NoError(t, s.UpsertInsight(ctx, tenant.ID, "distribution", "7d", `{"hours":[]}`, time.Hour))
	in, err := s.GetInsight(ctx, tenant.ID, "distribution", "7d")
	require.NoError(t, err)
	require.Equal(t, `{"hours":[]}`, in.Payload)

	require.NoError(t, s.UpsertInsight(ctx, tenant.ID, "distribution", "7d", `{"hours":[1]}`, -time.Hour))
	_, err = s.GetInsight(ctx, tenant.ID, "distribution", "7d")
	require.Error(t, err, "expired insight must not be returned")
}

func TestWebhookRetrySchedule(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	ev := Event{ID: "evt1", TenantID: tenant.ID, Kind: "mention", AuthorPubkey: "author1", CreatedAt: time.Now().Unix()}
	webhook := &PendingWebhook{EventID: "evt1", EventKind: "mention", Payload: `{}`}
	_, err = s.InsertEventTx(ctx, ev, withWebhook(webhook))
	require.NoError(t, err)

	pending, err := s.ListPending(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, s.MarkRetry(ctx, pending[0].ID, 503, "connection refused"))
	require.NoError(t, s.MarkFailed(ctx, pending[0].ID, 503, "connection refused"))

	pending, err = s.ListPending(ctx, tenant.ID)
	require.NoError(t, err)
	require.Len(t, pending, 0, "failed delivery must leave the pending queue")
}

func TestRateLimitCounterIncrements(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)

	n, err := s.IncrementRateLimitCounter(ctx, tenant.ID, "/metrics")
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	n, err = s.IncrementRateLimitCounter(ctx, tenant.ID, "/metrics")
	require.NoError(t, err)
	require.Equal(t, int64(2), n)
}
