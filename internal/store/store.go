// Package store implements the durable persistence layer from spec.md §3.
//
// Two cooperating backends share the configured SQLite file: an eventstore
// backend holds the immutable, globally-unique-by-id raw Nostr events the
// relay pool observes (the "authoritative uniqueness check against the
// Store" named in §4.2/§4.3), and a sqlx-driven set of tables holds this
// service's own business data (tenants, per-tenant classified events, posts,
// followers, activity histograms, insights, webhook log).
package store

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/fiatjaf/eventstore/sqlite3"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Store is the durable persistence layer shared by every other component.
type Store struct {
	db        *sqlx.DB
	rawEvents *sqlite3.SQLite3Backend
}

// New opens the configured database, migrates the domain schema, and
// initializes the raw-event backend.
func New(ctx context.Context, cfg *config.Database) (*Store, error) {
	if cfg.Driver != "sqlite3" {
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running schema migration: %w", err)
	}

	rawEvents := &sqlite3.SQLite3Backend{DatabaseURL: cfg.DSN}
	if err := rawEvents.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing raw event backend: %w", err)
	}

	return &Store{db: db, rawEvents: rawEvents}, nil
}

// Close releases all database handles.
func (s *Store) Close() error {
	s.rawEvents.Close()
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// DB exposes the underlying sqlx handle for callers that need a transaction
// spanning several of this package's operations (e.g. the event router's
// single-transaction write described in spec.md §4.3).
func (s *Store) DB() *sqlx.DB { return s.db }

// RawEventExists performs the authoritative, global uniqueness check against
// the raw event store described in spec.md §4.2: "the in-memory LRU is an
// optimization, the Store's uniqueness constraint is authoritative."
func (s *Store) RawEventExists(ctx context.Context, eventID string) (bool, error) {
	ch, err := s.rawEvents.QueryEvents(ctx, nostr.Filter{IDs: []string{eventID}, Limit: 1})
	if err != nil {
		return false, fmt.Errorf("querying raw event store: %w", err)
	}
	for range ch {
		return true, nil
	}
	return false, nil
}

// SaveRawEvent persists the candidate event in the raw event store. It is
// called once per event observed by the relay pool, independent of how many
// tenants it is ultimately routed to.
func (s *Store) SaveRawEvent(ctx context.Context, event *nostr.Event) error {
	if err := s.rawEvents.SaveEvent(ctx, event); err != nil {
		return fmt.Errorf("saving raw event: %w", err)
	}
	return nil
}
