package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// Follower is a peer pubkey observed following a tenant.
type Follower struct {
	TenantID   int64  `db:"tenant_id"`
	PeerPubkey string `db:"peer_pubkey"`
	FollowedAt int64  `db:"followed_at"`
}

// Following is a peer pubkey a tenant follows, discovered from its contact
// list (kind 3) during a scan.
type Following struct {
	TenantID     int64  `db:"tenant_id"`
	PeerPubkey   string `db:"peer_pubkey"`
	DiscoveredAt int64  `db:"discovered_at"`
}

// InsertFollowerIfNew records a new follower relationship, returning whether
// it was newly inserted so the router can decide whether to fire the
// new_follower webhook (§4.3: only on first observation, not on every
// republished contact list).
func (s *Store) InsertFollowerIfNew(ctx context.Context, tenantID int64, peerPubkey string) (bool, error) {
	return insertFollowerIfNew(ctx, s.db, tenantID, peerPubkey)
}

// InsertFollowerIfNewTx is InsertFollowerIfNew run inside the router's event
// insert transaction (spec.md §4.3 point 4), so the follower-novelty check
// that gates the new_follower webhook commits atomically with the event row.
func (s *Store) InsertFollowerIfNewTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, peerPubkey string) (bool, error) {
	return insertFollowerIfNew(ctx, tx, tenantID, peerPubkey)
}

func insertFollowerIfNew(ctx context.Context, ext sqlx.ExtContext, tenantID int64, peerPubkey string) (bool, error) {
	res, err := ext.ExecContext(ctx,
		`INSERT OR IGNORE INTO followers (tenant_id, peer_pubkey, followed_at) VALUES (?, ?, ?)`,
		tenantID, peerPubkey, time.Now().Unix(),
	)
	if err != nil {
		return false, apperr.Wrap(err, "inserting follower")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Wrap(err, "reading rows affected")
	}
	return n > 0, nil
}

// IsFollower reports whether peerPubkey currently follows the tenant.
func (s *Store) IsFollower(ctx context.Context, tenantID int64, peerPubkey string) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM followers WHERE tenant_id = ? AND peer_pubkey = ?`,
		tenantID, peerPubkey,
	)
	if err != nil {
		return false, apperr.Wrap(err, "checking follower")
	}
	return n > 0, nil
}

// RemoveFollower deletes a follower relationship (observed unfollow).
func (s *Store) RemoveFollower(ctx context.Context, tenantID int64, peerPubkey string) error {
	return removeFollower(ctx, s.db, tenantID, peerPubkey)
}

// RemoveFollowerTx is RemoveFollower run inside the router's event insert
// transaction.
func (s *Store) RemoveFollowerTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, peerPubkey string) error {
	return removeFollower(ctx, tx, tenantID, peerPubkey)
}

func removeFollower(ctx context.Context, ext sqlx.ExtContext, tenantID int64, peerPubkey string) error {
	_, err := ext.ExecContext(ctx,
		`DELETE FROM followers WHERE tenant_id = ? AND peer_pubkey = ?`,
		tenantID, peerPubkey,
	)
	if err != nil {
		return apperr.Wrap(err, "removing follower")
	}
	return nil
}

// ReplaceFollowing overwrites a tenant's following set with the contact list
// fetched during a scan (spec.md §4.6: the authoritative source for
// "following" is always the latest kind-3 event, not an accumulation).
func (s *Store) ReplaceFollowing(ctx context.Context, tenantID int64, peerPubkeys []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, "beginning following replace transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM following WHERE tenant_id = ?`, tenantID); err != nil {
		return apperr.Wrap(err, "clearing following")
	}
	now := time.Now().Unix()
	for _, peer := range peerPubkeys {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO following (tenant_id, peer_pubkey, discovered_at) VALUES (?, ?, ?)`,
			tenantID, peer, now,
		); err != nil {
			return apperr.Wrap(err, "inserting following")
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, "committing following replace")
	}
	return nil
}

// ListFollowers returns every peer pubkey following a tenant.
func (s *Store) ListFollowers(ctx context.Context, tenantID int64) ([]string, error) {
	var peers []string
	err := s.db.SelectContext(ctx, &peers, `SELECT peer_pubkey FROM followers WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, apperr.Wrap(err, "listing followers")
	}
	return peers, nil
}

// ListFollowing returns every peer pubkey a tenant follows.
func (s *Store) ListFollowing(ctx context.Context, tenantID int64) ([]string, error) {
	var peers []string
	err := s.db.SelectContext(ctx, &peers, `SELECT peer_pubkey FROM following WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, apperr.Wrap(err, "listing following")
	}
	return peers, nil
}

// CountFollowers returns the number of followers a tenant has.
func (s *Store) CountFollowers(ctx context.Context, tenantID int64) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM followers WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return 0, apperr.Wrap(err, "counting followers")
	}
	return n, nil
}
