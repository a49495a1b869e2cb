package relaypool

import (
	"github.com/nbd-wtf/go-nostr"
)

// TrackedKinds are the event kinds the relay pool subscribes to on behalf
// of every tenant (spec.md §2): text notes, reposts, reactions, zap
// receipts, and contact list updates (for live follow detection). Only
// contact lists that name a tenant in a "p" tag match the filters, so a
// list that drops a tenant is not delivered and unfollows are not seen
// live. Relay lists are not subscribed to.
var TrackedKinds = []int{
	nostr.KindTextNote,
	nostr.KindReaction,
	nostr.KindRepost,
	nostr.KindZap,
	nostr.KindFollowList,
}

// BuildFilters returns the subscription filters the relay pool opens for a
// set of tracked pubkeys: mentions, reactions, reposts, zaps, and contact
// list updates naming them via the "p" tag, plus authorship for the
// tenant's own outbound posts.
func BuildFilters(pubkeys []string) nostr.Filters {
	if len(pubkeys) == 0 {
		return nostr.Filters{}
	}
	return nostr.Filters{
		{
			Kinds: []int{nostr.KindTextNote, nostr.KindReaction, nostr.KindRepost, nostr.KindZap, nostr.KindFollowList},
			Tags:  nostr.TagMap{"p": pubkeys},
		},
		{
			Kinds:   []int{nostr.KindTextNote},
			Authors: pubkeys,
		},
	}
}
