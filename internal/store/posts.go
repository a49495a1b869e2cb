package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/deepclaw/nostr-analytics/internal/apperr"
)

// Post is the row shape of the posts table: a tenant's own note plus the
// engagement counters the timing aggregator and insight endpoints read.
type Post struct {
	TenantID    int64  `db:"tenant_id"`
	NoteID      string `db:"note_id"`
	Content     string `db:"content"`
	ImageURL    string `db:"image_url"`
	PostedAt    int64  `db:"posted_at"`
	Reactions   int64  `db:"reactions"`
	Replies     int64  `db:"replies"`
	Reposts     int64  `db:"reposts"`
	Impressions int64  `db:"impressions"`
	ZapCount    int64  `db:"zap_count"`
	ZapTotal    int64  `db:"zap_total"`
}

// UpsertPostStub records the existence of a tenant's own note the first time
// it is observed, without clobbering engagement counters accumulated since.
func (s *Store) UpsertPostStub(ctx context.Context, tenantID int64, noteID, content, imageURL string, postedAt int64) error {
	return upsertPostStub(ctx, s.db, tenantID, noteID, content, imageURL, postedAt)
}

// UpsertPostStubTx is UpsertPostStub run inside the router's event insert
// transaction (spec.md §4.3 point 4).
func (s *Store) UpsertPostStubTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, noteID, content, imageURL string, postedAt int64) error {
	return upsertPostStub(ctx, tx, tenantID, noteID, content, imageURL, postedAt)
}

func upsertPostStub(ctx context.Context, ext sqlx.ExtContext, tenantID int64, noteID, content, imageURL string, postedAt int64) error {
	_, err := ext.ExecContext(ctx,
		`INSERT INTO posts (tenant_id, note_id, content, image_url, posted_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, note_id) DO NOTHING`,
		tenantID, noteID, content, imageURL, postedAt,
	)
	if err != nil {
		return apperr.Wrap(err, "upserting post stub")
	}
	return nil
}

// IncrementPostCounter bumps one engagement counter column on a post. column
// must be one of the fixed set below; it is never taken from user input.
func (s *Store) IncrementPostCounter(ctx context.Context, tenantID int64, noteID, column string, delta int64) error {
	return incrementPostCounter(ctx, s.db, tenantID, noteID, column, delta)
}

// IncrementPostCounterTx is IncrementPostCounter run inside the router's
// event insert transaction (spec.md §4.3 point 4).
func (s *Store) IncrementPostCounterTx(ctx context.Context, tx *sqlx.Tx, tenantID int64, noteID, column string, delta int64) error {
	return incrementPostCounter(ctx, tx, tenantID, noteID, column, delta)
}

func incrementPostCounter(ctx context.Context, ext sqlx.ExtContext, tenantID int64, noteID, column string, delta int64) error {
	switch column {
	case "reactions", "replies", "reposts", "impressions", "zap_count", "zap_total":
	default:
		return apperr.Validation("unknown post counter column %q", column)
	}
	_, err := ext.ExecContext(ctx,
		`UPDATE posts SET `+column+` = `+column+` + ? WHERE tenant_id = ? AND note_id = ?`,
		delta, tenantID, noteID,
	)
	if err != nil {
		return apperr.Wrap(err, "incrementing post counter")
	}
	return nil
}

// GetPosts returns a tenant's posts, newest first, capped at limit, for the
// §6 /metrics endpoints.
func (s *Store) GetPosts(ctx context.Context, tenantID int64, limit int) ([]Post, error) {
	var posts []Post
	err := s.db.SelectContext(ctx, &posts,
		`SELECT * FROM posts WHERE tenant_id = ? ORDER BY posted_at DESC LIMIT ?`,
		tenantID, limit,
	)
	if err != nil {
		return nil, apperr.Wrap(err, "listing posts")
	}
	return posts, nil
}

// GetPost fetches a single post by note id.
func (s *Store) GetPost(ctx context.Context, tenantID int64, noteID string) (*Post, error) {
	var p Post
	err := s.db.GetContext(ctx, &p, `SELECT * FROM posts WHERE tenant_id = ? AND note_id = ?`, tenantID, noteID)
	if err != nil {
		return nil, apperr.NotFound("post %s not found", noteID)
	}
	return &p, nil
}
