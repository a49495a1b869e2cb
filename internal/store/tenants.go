package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// Tenant is the row shape of the tenants table (spec.md §3).
type Tenant struct {
	ID             int64  `db:"id"`
	Pubkey         string `db:"pubkey"`
	CallbackURL    string `db:"callback_url"`
	CallbackSecret []byte `db:"callback_secret"`
	LegacyToken    string `db:"legacy_token"`
	Tier           string `db:"tier"`
	CreatedAt      int64  `db:"created_at"`
	LastActive     int64  `db:"last_active"`
}

// ApiCredential is the row shape of the api_credentials table. Tokens minted
// here take precedence over a tenant's LegacyToken during auth (§6).
type ApiCredential struct {
	Token      string         `db:"token"`
	TenantID   int64          `db:"tenant_id"`
	Scopes     string         `db:"scopes"`
	ExpiresAt  sql.NullInt64  `db:"expires_at"`
	Revoked    bool           `db:"revoked"`
	LastUsedAt sql.NullInt64  `db:"last_used_at"`
}

// CreateTenant registers a new tenant keyed by its Nostr pubkey.
func (s *Store) CreateTenant(ctx context.Context, pubkey string, callbackSecret []byte) (*Tenant, error) {
	now := time.Now().Unix()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tenants (pubkey, callback_secret, tier, created_at, last_active)
		 VALUES (?, ?, 'free', ?, ?)`,
		pubkey, callbackSecret, now, now,
	)
	if err != nil {
		return nil, apperr.Conflict("tenant already registered for pubkey %s", pubkey)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apperr.Wrap(err, "reading new tenant id")
	}
	return s.GetTenantByID(ctx, id)
}

// GetTenantByID fetches a tenant by its numeric id.
func (s *Store) GetTenantByID(ctx context.Context, id int64) (*Tenant, error) {
	var t Tenant
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tenants WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("tenant %d not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "fetching tenant %d", id)
	}
	return &t, nil
}

// GetTenantByPubkey fetches a tenant by its Nostr pubkey.
func (s *Store) GetTenantByPubkey(ctx context.Context, pubkey string) (*Tenant, error) {
	var t Tenant
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tenants WHERE pubkey = ?`, pubkey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("tenant for pubkey %s not found", pubkey)
	}
	if err != nil {
		return nil, apperr.Wrap(err, "fetching tenant by pubkey")
	}
	return &t, nil
}

// GetTenantByLegacyToken fetches a tenant by its legacy bearer token (§6
// auth fallback path, used only when no ApiCredential matches).
func (s *Store) GetTenantByLegacyToken(ctx context.Context, token string) (*Tenant, error) {
	var t Tenant
	err := s.db.GetContext(ctx, &t, `SELECT * FROM tenants WHERE legacy_token = ? AND legacy_token != ''`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Unauthorized("invalid token")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "fetching tenant by legacy token")
	}
	return &t, nil
}

// UpdateWebhook sets the callback URL and signing secret for a tenant.
func (s *Store) UpdateWebhook(ctx context.Context, tenantID int64, callbackURL string, callbackSecret []byte) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tenants SET callback_url = ?, callback_secret = ? WHERE id = ?`,
		callbackURL, callbackSecret, tenantID,
	)
	if err != nil {
		return apperr.Wrap(err, "updating webhook for tenant %d", tenantID)
	}
	return nil
}

// TouchLastActive bumps last_active to the current time.
func (s *Store) TouchLastActive(ctx context.Context, tenantID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE tenants SET last_active = ? WHERE id = ?`, time.Now().Unix(), tenantID)
	if err != nil {
		return apperr.Wrap(err, "touching last_active for tenant %d", tenantID)
	}
	return nil
}

// ListAllPubkeys returns every tenant pubkey. The registry snapshot (§4.1)
// is built from ListTenants, and the scanner takes its pubkeys from the
// registry.
func (s *Store) ListAllPubkeys(ctx context.Context) ([]string, error) {
	var pubkeys []string
	if err := s.db.SelectContext(ctx, &pubkeys, `SELECT pubkey FROM tenants`); err != nil {
		return nil, apperr.Wrap(err, "listing tenant pubkeys")
	}
	return pubkeys, nil
}

// ListTenants returns every tenant row, used by the registry snapshot build.
func (s *Store) ListTenants(ctx context.Context) ([]Tenant, error) {
	var tenants []Tenant
	if err := s.db.SelectContext(ctx, &tenants, `SELECT * FROM tenants`); err != nil {
		return nil, apperr.Wrap(err, "listing tenants")
	}
	return tenants, nil
}

// CreateApiCredential mints a new bearer token for a tenant.
func (s *Store) CreateApiCredential(ctx context.Context, token string, tenantID int64, scopes string, expiresAt *int64) error {
	var exp sql.NullInt64
	if expiresAt != nil {
		exp = sql.NullInt64{Int64: *expiresAt, Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_credentials (token, tenant_id, scopes, expires_at) VALUES (?, ?, ?, ?)`,
		token, tenantID, scopes, exp,
	)
	if err != nil {
		return apperr.Wrap(err, "creating api credential")
	}
	return nil
}

// GetApiCredential looks up a bearer token, excluding revoked or expired
// ones. Its precedence over the legacy token is enforced by the caller (the
// auth middleware checks this first).
func (s *Store) GetApiCredential(ctx context.Context, token string) (*ApiCredential, error) {
	var c ApiCredential
	err := s.db.GetContext(ctx, &c,
		`SELECT * FROM api_credentials
		 WHERE token = ? AND revoked = 0 AND (expires_at IS NULL OR expires_at > ?)`,
		token, time.Now().Unix(),
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Unauthorized("invalid or expired token")
	}
	if err != nil {
		return nil, apperr.Wrap(err, "fetching api credential")
	}
	return &c, nil
}

// RevokeApiCredential marks a token unusable by setting revoked; its row is
// kept rather than deleted.
func (s *Store) RevokeApiCredential(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE api_credentials SET revoked = 1 WHERE token = ?`, token)
	if err != nil {
		return apperr.Wrap(err, "revoking api credential")
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound("credential not found")
	}
	return nil
}

// TouchApiCredential updates last_used_at, called once per authenticated request.
func (s *Store) TouchApiCredential(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_credentials SET last_used_at = ? WHERE token = ?`, time.Now().Unix(), token)
	if err != nil {
		return fmt.Errorf("touching api credential: %w", err)
	}
	return nil
}
