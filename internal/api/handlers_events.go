package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())

	since := queryInt64(r, "since", 0)
	until := queryInt64(r, "until", time.Now().Unix())
	limit := queryLimit(r, defaultListLimit)

	events, err := s.store.ListEvents(r.Context(), tenant.ID, since, until, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	eventID := chiURLParam(r, "eventID")

	event, err := s.store.GetEvent(r.Context(), tenant.ID, eventID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

type acknowledgeRequest struct {
	EventIDs []string `json:"event_ids"`
}

func (s *Server) handleAcknowledgeEvents(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())

	var req acknowledgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.EventIDs) == 0 {
		writeError(w, apperr.Validation("event_ids is required"))
		return
	}

	if err := s.store.AcknowledgeEvents(r.Context(), tenant.ID, req.EventIDs); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func queryInt64(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}
