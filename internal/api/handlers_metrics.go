package api

import (
	"net/http"
	"strconv"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

const defaultListLimit = 50

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	limit := queryLimit(r, defaultListLimit)

	posts, err := s.store.GetPosts(r.Context(), tenant.ID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	noteID := chiURLParam(r, "noteID")

	post, err := s.store.GetPost(r.Context(), tenant.ID, noteID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

// handleInsight returns a closure handler for one of the cached insight
// kinds (distribution, zone, recommendation), reading through the cache
// layer rather than recomputing on every request (spec.md §4.7).
func (s *Server) handleInsight(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenant, _ := tenantFromContext(r.Context())
		period := r.URL.Query().Get("period")
		if period == "" {
			period = "24h"
		}

		payload, ok := s.cache.Get(r.Context(), tenant.ID, kind, period)
		if !ok {
			writeError(w, apperr.NotFound("no %s insight available yet; a scan or aggregation run may still be pending", kind))
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(payload))
	}
}

func queryLimit(r *http.Request, def int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
