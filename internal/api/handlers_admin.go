package api

import (
	"net/http"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
	"github.com/deepclaw/nostr-analytics/internal/scanner"
)

// handleTriggerScan lets a tenant force an immediate full scan rather than
// waiting for the next scheduled tick, useful right after they change their
// contact list and want a fresh following list.
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	if s.scanner == nil {
		writeError(w, apperr.Internal("scanner unavailable"))
		return
	}
	s.scanner.ScanTenant(r.Context(), tenant.ID, tenant.Pubkey, scanner.ModeFull)
	w.WriteHeader(http.StatusAccepted)
}
