package api

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"net/http"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

type registerRequest struct {
	Pubkey string `json:"pubkey"`
}

type registerResponse struct {
	TenantID    int64  `json:"tenant_id"`
	Pubkey      string `json:"pubkey"`
	LegacyToken string `json:"legacy_token"`
}

// handleRegister creates a new tenant for a pubkey, mints its initial bearer
// token as an ApiCredential (returned in the legacy_token field), then kicks
// off an immediate full scan so the tenant has data before its first API
// call (spec.md §6).
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pubkey == "" {
		writeError(w, apperr.Validation("pubkey is required"))
		return
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		writeError(w, apperr.Wrap(err, "generating callback secret"))
		return
	}

	tenant, err := s.store.CreateTenant(r.Context(), req.Pubkey, secret)
	if err != nil {
		writeError(w, err)
		return
	}

	token, err := generateToken()
	if err != nil {
		writeError(w, apperr.Wrap(err, "generating token"))
		return
	}
	if err := s.store.CreateApiCredential(r.Context(), token, tenant.ID, "full", nil); err != nil {
		writeError(w, err)
		return
	}

	if err := s.registry.Reload(r.Context()); err != nil && s.logger != nil {
		s.logger.Error("registry reload after registration failed", "error", err)
	}
	if s.scanner != nil {
		go s.scanner.ScanTenant(context.WithoutCancel(r.Context()), tenant.ID, tenant.Pubkey, "full")
	}

	writeJSON(w, http.StatusCreated, registerResponse{TenantID: tenant.ID, Pubkey: tenant.Pubkey, LegacyToken: token})
}

type meResponse struct {
	TenantID    int64  `json:"tenant_id"`
	Pubkey      string `json:"pubkey"`
	Tier        string `json:"tier"`
	CallbackURL string `json:"callback_url"`
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthorized("missing tenant context"))
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		TenantID:    tenant.ID,
		Pubkey:      tenant.Pubkey,
		Tier:        tenant.Tier,
		CallbackURL: tenant.CallbackURL,
	})
}

type setWebhookRequest struct {
	CallbackURL string `json:"callback_url"`
}

type setWebhookResponse struct {
	CallbackURL    string `json:"callback_url"`
	CallbackSecret string `json:"callback_secret"`
}

// handleSetWebhook rotates the signing secret whenever the callback URL
// changes, so a leaked secret can't be reused against a reconfigured
// endpoint without the tenant noticing.
func (s *Server) handleSetWebhook(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthorized("missing tenant context"))
		return
	}

	var req setWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CallbackURL == "" {
		writeError(w, apperr.Validation("callback_url is required"))
		return
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		writeError(w, apperr.Wrap(err, "generating callback secret"))
		return
	}

	if err := s.store.UpdateWebhook(r.Context(), tenant.ID, req.CallbackURL, secret); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, setWebhookResponse{
		CallbackURL:    req.CallbackURL,
		CallbackSecret: hexEncode(secret),
	})
}

type issueTokenRequest struct {
	Scopes string `json:"scopes"`
}

type issueTokenResponse struct {
	Token string `json:"token"`
}

func (s *Server) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	tenant, ok := tenantFromContext(r.Context())
	if !ok {
		writeError(w, apperr.Unauthorized("missing tenant context"))
		return
	}

	var req issueTokenRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Scopes == "" {
		req.Scopes = "read"
	}

	token, err := generateToken()
	if err != nil {
		writeError(w, apperr.Wrap(err, "generating token"))
		return
	}
	if err := s.store.CreateApiCredential(r.Context(), token, tenant.ID, req.Scopes, nil); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, issueTokenResponse{Token: token})
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	token := chiURLParam(r, "token")
	if err := s.store.RevokeApiCredential(r.Context(), token); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
