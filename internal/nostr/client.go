// Package nostr wraps go-nostr's relay pool with the timeouts and seed-relay
// bookkeeping the rest of the service needs, without exposing the relay wire
// protocol (REQ/EVENT/EOSE/CLOSE) to callers.
package nostr

import (
	"context"
	"fmt"
	"time"

	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/config"
)

// Client provides a high-level interface for interacting with Nostr relays.
type Client struct {
	pool   *nostr.SimplePool
	policy *config.RelayPolicy
	seeds  []string
}

// New creates a new Nostr client over the given relay configuration.
func New(ctx context.Context, cfg *config.Relays) *Client {
	pool := nostr.NewSimplePool(ctx)
	c := &Client{pool: pool}
	if cfg != nil {
		c.seeds = cfg.Seeds
		policy := cfg.Policy
		c.policy = &policy
	}
	return c
}

// Pool returns the underlying SimplePool for advanced operations.
func (c *Client) Pool() *nostr.SimplePool {
	return c.pool
}

// GetSeedRelays returns the configured seed relay URLs.
func (c *Client) GetSeedRelays() []string {
	if c.seeds == nil {
		return []string{}
	}
	return c.seeds
}

// GetDefaultTimeout returns the configured relay connect timeout.
func (c *Client) GetDefaultTimeout() time.Duration {
	if c.policy == nil || c.policy.ConnectTimeoutMs == 0 {
		return 30 * time.Second
	}
	return c.policy.ConnectTimeout()
}

// FetchEvents fetches events from the given relays matching the filter,
// blocking until every relay reports EOSE or the context is done.
func (c *Client) FetchEvents(ctx context.Context, relays []string, filter nostr.Filter) ([]*nostr.Event, error) {
	events := make([]*nostr.Event, 0)
	for relayEvent := range c.pool.SubManyEose(ctx, relays, nostr.Filters{filter}) {
		if relayEvent.Event != nil {
			events = append(events, relayEvent.Event)
		}
	}
	return events, nil
}

// FetchEvent fetches a single event by id from the given relays.
func (c *Client) FetchEvent(ctx context.Context, relays []string, eventID string) (*nostr.Event, error) {
	filter := nostr.Filter{IDs: []string{eventID}}
	result := c.pool.QuerySingle(ctx, relays, filter)
	if result == nil || result.Event == nil {
		return nil, fmt.Errorf("event not found: %s", eventID)
	}
	return result.Event, nil
}

// Subscribe opens a long-lived subscription on the given relays. Events are
// pushed to the returned channel until the context is cancelled, at which
// point the channel is closed. This is the building block the relay pool
// uses to implement the REQ/EVENT/EOSE/CLOSE framing from §6 of the spec.
func (c *Client) Subscribe(ctx context.Context, relays []string, filters nostr.Filters) <-chan nostr.RelayEvent {
	return c.pool.SubMany(ctx, relays, filters)
}

// Publish is retained for completeness of the client wrapper; this service
// never publishes events on a tenant's behalf (explicit non-goal, §1), so it
// is unused in production code paths but kept available for tests that need
// to seed a mock relay.
func (c *Client) Publish(ctx context.Context, relays []string, event nostr.Event) error {
	results := c.pool.PublishMany(ctx, relays, event)

	var lastErr error
	successCount := 0
	for result := range results {
		if result.Error != nil {
			lastErr = result.Error
		} else {
			successCount++
		}
	}
	if successCount == 0 && lastErr != nil {
		return fmt.Errorf("failed to publish to any relay: %w", lastErr)
	}
	return nil
}

// Close closes all relay connections held by the pool.
func (c *Client) Close() {
	c.pool.Close("client shutting down")
}
