package api

import "net/http"

type healthResponse struct {
	Status  string `json:"status"`
	Tenants int    `json:"tenants"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Tenants: s.registry.Count()})
}
