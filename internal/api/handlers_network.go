package api

import "net/http"

type networkListResponse struct {
	Pubkeys []string `json:"pubkeys"`
	Count   int      `json:"count"`
}

func (s *Server) handleListFollowers(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	peers, err := s.store.ListFollowers(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networkListResponse{Pubkeys: peers, Count: len(peers)})
}

func (s *Server) handleListFollowing(w http.ResponseWriter, r *http.Request) {
	tenant, _ := tenantFromContext(r.Context())
	peers, err := s.store.ListFollowing(r.Context(), tenant.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, networkListResponse{Pubkeys: peers, Count: len(peers)})
}
