package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
	"github.com/deepclaw/nostr-analytics/internal/cache"
	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	ctx := context.Background()

	s, err := store.New(ctx, &config.Database{Driver: "sqlite3", DSN: "file:" + t.Name() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg, err := registry.New(ctx, s, config.Registry{ReloadIntervalMs: 60_000}, nil)
	require.NoError(t, err)

	c := cache.New(config.Cache{}, s, nil)

	cfg := config.Default()
	return New(cfg, s, reg, nil, c, nil)
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestHandleRegisterAndAuthenticatedMe(t *testing.T) {
	srv := newTestServer(t)

	body := strings.NewReader(`{"pubkey":"npub1testpubkey"}`)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", body)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "legacy_token")

	var resp registerResponse
	require.NoError(t, decodeJSON(rec.Body.String(), &resp))

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+resp.LegacyToken)
	meRec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(meRec, meReq)
	require.Equal(t, http.StatusOK, meRec.Code)
	require.Contains(t, meRec.Body.String(), "npub1testpubkey")
}

func TestHandleMeWithoutTokenIsUnauthorized(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		kind apperr.Kind
		want int
	}{
		{apperr.KindValidation, http.StatusBadRequest},
		{apperr.KindUnauthorized, http.StatusUnauthorized},
		{apperr.KindForbidden, http.StatusForbidden},
		{apperr.KindRateLimited, http.StatusTooManyRequests},
		{apperr.KindConflict, http.StatusConflict},
		{apperr.KindNotFound, http.StatusNotFound},
		{apperr.KindInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		require.Equal(t, c.want, httpStatus(c.kind))
	}
}

func decodeJSON(body string, v any) error {
	return json.Unmarshal([]byte(body), v)
}
