// Package timing computes the histogram, zone-of-maximum-participation, and
// best-posting-times insights described in spec.md §4.5 and §4.7.
package timing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/ops"
	"github.com/deepclaw/nostr-analytics/internal/registry"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

// Aggregator periodically recomputes every tenant's timing insights from
// the follower- and following-role post_activity rows and the engagement
// rows of network_activity. The "self"-role post_activity rows that the
// router and scanner write for a tenant's own posts are not read here.
type Aggregator struct {
	store    *store.Store
	registry *registry.Registry
	cache    config.Cache
	logger   *ops.Logger
	interval time.Duration
}

// New builds an aggregator with a fixed recomputation cadence.
func New(s *store.Store, reg *registry.Registry, cache config.Cache, logger *ops.Logger) *Aggregator {
	return &Aggregator{store: s, registry: reg, cache: cache, logger: logger, interval: 15 * time.Minute}
}

// Run recomputes every tenant's insights on a ticker until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.runOnce(ctx)
		}
	}
}

func (a *Aggregator) runOnce(ctx context.Context) {
	for _, pubkey := range a.registry.AllPubkeys() {
		entry, ok := a.registry.Lookup(pubkey)
		if !ok {
			continue
		}
		start := time.Now()
		err := a.aggregateTenant(ctx, entry.TenantID)
		if a.logger != nil {
			a.logger.LogAggregationRun(entry.TenantID, "timing", 24, time.Since(start), err)
		}
	}
}

// DistributionInsight is the payload cached under kind "distribution".
type DistributionInsight struct {
	FollowerPosts  [24]int64 `json:"follower_posts"`
	FollowingPosts [24]int64 `json:"following_posts"`
	Engagement     [24]int64 `json:"engagement"`
}

// ZoneInsight is the payload cached under kind "zone".
type ZoneInsight struct {
	StartHour int   `json:"start_hour"`
	Width     int   `json:"width"`
	Total     int64 `json:"total"`
}

// RecommendationInsight is the payload cached under kind "recommendation".
type RecommendationInsight struct {
	PeakHours  []HourScore `json:"peak_hours"`
	Confidence string      `json:"confidence"`
}

func (a *Aggregator) aggregateTenant(ctx context.Context, tenantID int64) error {
	followerHours, err := a.store.QueryHourlyCounts(ctx, tenantID, "follower")
	if err != nil {
		return err
	}
	followingHours, err := a.store.QueryHourlyCounts(ctx, tenantID, "following")
	if err != nil {
		return err
	}
	engagementHours, err := a.store.QueryNetworkActivityHours(ctx, tenantID, "engagement")
	if err != nil {
		return err
	}

	var followerArr, followingArr, engagementArr [24]int64
	for i := 0; i < 24; i++ {
		followerArr[i] = followerHours[i].Count
		followingArr[i] = followingHours[i].Count
		engagementArr[i] = engagementHours[i].Count
	}

	distribution := DistributionInsight{FollowerPosts: followerArr, FollowingPosts: followingArr, Engagement: engagementArr}
	if err := a.cacheInsight(ctx, tenantID, "distribution", "24h", distribution, a.cache.DistributionTTLMs); err != nil {
		return err
	}

	zone := MaxParticipationZone(followerArr)
	zoneInsight := ZoneInsight{StartHour: zone.StartHour, Width: zone.Width, Total: zone.Total}
	if err := a.cacheInsight(ctx, tenantID, "zone", "24h", zoneInsight, a.cache.DefaultTTLMs); err != nil {
		return err
	}

	scores := ScoreHours(followerArr, engagementArr)
	var total int64
	for _, c := range followerArr {
		total += c
	}
	for _, c := range engagementArr {
		total += c
	}
	recommendation := RecommendationInsight{PeakHours: PeakHours(scores, 3), Confidence: Confidence(total)}
	return a.cacheInsight(ctx, tenantID, "recommendation", "24h", recommendation, a.cache.RecommendationTTLMs)
}

func (a *Aggregator) cacheInsight(ctx context.Context, tenantID int64, kind, period string, payload any, ttlMs int) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return a.store.UpsertInsight(ctx, tenantID, kind, period, string(b), time.Duration(ttlMs)*time.Millisecond)
}
