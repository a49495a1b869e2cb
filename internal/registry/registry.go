// Package registry maintains the in-memory tenant snapshot the relay pool
// and event router consult on every incoming event. Reloading from the
// Store happens on a ticker in the background; reads never block on it and
// never touch the database (spec.md §4.1).
package registry

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Entry is the read-mostly view of one tenant the router needs per event.
type Entry struct {
	TenantID    int64
	Pubkey      string
	CallbackURL string
	Tier        string
}

type snapshot struct {
	byPubkey map[string]Entry
	pubkeys  []string
}

// Registry holds the current tenant snapshot behind an atomic pointer so
// readers never block on a reload in progress.
type Registry struct {
	store    *store.Store
	interval time.Duration
	current  atomic.Pointer[snapshot]
	logger   *ops.Logger
}

// New builds a registry and loads the first snapshot synchronously, so
// callers never observe an empty registry after New returns.
func New(ctx context.Context, s *store.Store, cfg config.Registry, logger *ops.Logger) (*Registry, error) {
	r := &Registry{store: s, interval: cfg.ReloadInterval(), logger: logger}
	if err := r.reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Run blocks, periodically reloading the snapshot until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.reload(ctx); err != nil && r.logger != nil {
				r.logger.Error("registry reload failed", "error", err)
			}
		}
	}
}

func (r *Registry) reload(ctx context.Context) error {
	tenants, err := r.store.ListTenants(ctx)
	if err != nil {
		return err
	}

	next := &snapshot{
		byPubkey: make(map[string]Entry, len(tenants)),
		pubkeys:  make([]string, 0, len(tenants)),
	}
	for _, t := range tenants {
		next.byPubkey[t.Pubkey] = Entry{
			TenantID:    t.ID,
			Pubkey:      t.Pubkey,
			CallbackURL: t.CallbackURL,
			Tier:        t.Tier,
		}
		next.pubkeys = append(next.pubkeys, t.Pubkey)
	}
	r.current.Store(next)
	return nil
}

// Reload forces an immediate reload, used right after a tenant registers so
// the router, scanner and dispatcher see it without waiting for the next
// tick. The relay pool is not notified: its subscriptions pick up the new
// pubkey on the pool's next idle refresh or reconnect.
func (r *Registry) Reload(ctx context.Context) error {
	return r.reload(ctx)
}

// Lookup returns the tenant entry for a pubkey, if registered.
func (r *Registry) Lookup(pubkey string) (Entry, bool) {
	snap := r.current.Load()
	e, ok := snap.byPubkey[pubkey]
	return e, ok
}

// AllPubkeys returns every currently registered tenant pubkey, the set the
// relay pool subscribes against.
func (r *Registry) AllPubkeys() []string {
	snap := r.current.Load()
	out := make([]string, len(snap.pubkeys))
	copy(out, snap.pubkeys)
	return out
}

// Count returns the number of tenants in the current snapshot.
func (r *Registry) Count() int {
	return len(r.current.Load().pubkeys)
}
