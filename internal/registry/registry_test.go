package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	ctx := context.Background()
	s, err := store.New(ctx, &config.Database{Driver: "sqlite3", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	r, err := New(ctx, s, config.Registry{ReloadIntervalMs: 60_000}, nil)
	require.NoError(t, err)
	return r, s
}

func TestRegistryLookupMiss(t *testing.T) {
	r, _ := newTestRegistry(t)
	_, ok := r.Lookup("unknown-pubkey")
	require.False(t, ok)
	require.Equal(t, 0, r.Count())
}

func TestRegistryReloadPicksUpNewTenant(t *testing.T) {
	ctx := context.Background()
	r, s := newTestRegistry(t)

	tenant, err := s.CreateTenant(ctx, "npub1newtenant", []byte("secret"))
	require.NoError(t, err)

	_, ok := r.Lookup("npub1newtenant")
	require.False(t, ok, "snapshot taken before the tenant existed must not see it")

	require.NoError(t, r.Reload(ctx))

	entry, ok := r.Lookup("npub1newtenant")
	require.True(t, ok)
	require.Equal(t, tenant.ID, entry.TenantID)
	require.Equal(t, 1, r.Count())

	pubkeys := r.AllPubkeys()
	require.Contains(t, pubkeys, "npub1newtenant")
}
