package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

type contextKey int

const tenantContextKey contextKey = iota

// tenantFromContext retrieves the authenticated tenant set by authMiddleware.
func tenantFromContext(ctx context.Context) (*store.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey).(*store.Tenant)
	return t, ok
}

// authMiddleware resolves the bearer token in the Authorization header to a
// tenant. ApiCredential tokens take precedence over a tenant's LegacyToken:
// if a token matches an active, non-revoked, non-expired credential it wins
// even when the same string happens to equal some other tenant's legacy
// token (spec.md §6).
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, apperr.Unauthorized("missing bearer token"))
			return
		}

		tenant, err := s.resolveToken(r.Context(), token)
		if err != nil {
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), tenantContextKey, tenant)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolveToken(ctx context.Context, token string) (*store.Tenant, error) {
	if cred, err := s.store.GetApiCredential(ctx, token); err == nil {
		_ = s.store.TouchApiCredential(ctx, token)
		return s.store.GetTenantByID(ctx, cred.TenantID)
	}

	tenant, err := s.store.GetTenantByLegacyToken(ctx, token)
	if err != nil {
		return nil, apperr.Unauthorized("invalid token")
	}
	return tenant, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

// rateLimitMiddleware enforces the per-tier hourly request budget from
// spec.md §5, backed by the Store's rate_limit_counters table.
func (s *Server) rateLimitMiddleware(cfg config.RateLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := tenantFromContext(r.Context())
			if !ok {
				writeError(w, apperr.Unauthorized("missing tenant context"))
				return
			}

			limit := cfg.FreePerHour
			if tenant.Tier == "premium" {
				limit = cfg.PremiumPerHour
			}

			count, err := s.store.IncrementRateLimitCounter(r.Context(), tenant.ID, r.URL.Path)
			if err != nil {
				writeError(w, apperr.Wrap(err, "checking rate limit"))
				return
			}
			if count > int64(limit) {
				writeError(w, apperr.RateLimited("rate limit of %d requests/hour exceeded", limit))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// generateToken mints a random 32-byte hex bearer token for a new
// ApiCredential, following the teacher's style of generating opaque tokens
// rather than structured ones (e.g. JWTs) for this kind of server-to-server
// credential.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := httpStatus(apperr.KindOf(err))
	writeJSON(w, status, map[string]string{"error": http.StatusText(status), "message": err.Error()})
}

func httpStatus(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
