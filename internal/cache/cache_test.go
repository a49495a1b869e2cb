package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

func TestRedisKeyFormat(t *testing.T) {
	key := redisKey(42, "distribution", "24h")
	require.Equal(t, "insight:42:distribution:24h", key)
}

func TestCacheFallsThroughToStoreWithoutRedis(t *testing.T) {
	ctx := context.Background()
	s, err := store.New(ctx, &config.Database{Driver: "sqlite3", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	tenant, err := s.CreateTenant(ctx, "npub1owner", []byte("secret"))
	require.NoError(t, err)
	require.NoError(t, s.UpsertInsight(ctx, tenant.ID, "distribution", "24h", `{"hours":[]}`, time.Hour))

	c := New(config.Cache{}, s, nil)
	require.Nil(t, c.redis, "no Redis address configured means no client should be dialed")

	payload, ok := c.Get(ctx, tenant.ID, "distribution", "24h")
	require.True(t, ok)
	require.Equal(t, `{"hours":[]}`, payload)

	_, ok = c.Get(ctx, tenant.ID, "recommendation", "24h")
	require.False(t, ok)
}
