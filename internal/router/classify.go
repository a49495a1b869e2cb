package router

import (
	"encoding/json"

	"github.com/nbd-wtf/go-nostr"

	"github.com/deepclaw/nostr-analytics/internal/invoice"
)

// Classification is the router's verdict on a candidate event: which kind
// bucket it falls in for a specific tenant, and any kind-specific detail
// extracted while classifying it.
type Classification struct {
	Kind     string // mention|reply|reaction|repost|follow|unfollow|zap|self_post
	ZapSats  int64
	IsSelf   bool // event authored by the tenant itself
}

// Classify determines how event relates to tenantPubkey. ok is false if the
// event has no relevance to this tenant at all (should not normally happen,
// since the relay pool only forwards events matching the tenant's filters,
// but the router re-checks to stay correct if filters ever widen).
func Classify(event *nostr.Event, tenantPubkey string) (Classification, bool) {
	if event.PubKey == tenantPubkey {
		return classifySelfAuthored(event)
	}

	switch event.Kind {
	case nostr.KindTextNote:
		return classifyTextNote(event, tenantPubkey)
	case nostr.KindReaction:
		if mentionsTag(event, tenantPubkey) {
			return Classification{Kind: "reaction"}, true
		}
	case nostr.KindRepost:
		if mentionsTag(event, tenantPubkey) {
			return Classification{Kind: "repost"}, true
		}
	case nostr.KindZap:
		if mentionsTag(event, tenantPubkey) {
			return classifyZap(event)
		}
	case nostr.KindFollowList:
		if mentionsTag(event, tenantPubkey) {
			return Classification{Kind: "follow"}, true
		}
		return Classification{Kind: "unfollow"}, true
	}
	return Classification{}, false
}

func classifySelfAuthored(event *nostr.Event) (Classification, bool) {
	if event.Kind == nostr.KindTextNote {
		return Classification{Kind: "self_post", IsSelf: true}, true
	}
	return Classification{}, false
}

func classifyTextNote(event *nostr.Event, tenantPubkey string) (Classification, bool) {
	if !mentionsTag(event, tenantPubkey) {
		return Classification{}, false
	}
	if isReplyTo(event) {
		return Classification{Kind: "reply"}, true
	}
	return Classification{Kind: "mention"}, true
}

func classifyZap(event *nostr.Event) (Classification, bool) {
	sats := zapAmountSats(event)
	return Classification{Kind: "zap", ZapSats: sats}, true
}

func mentionsTag(event *nostr.Event, pubkey string) bool {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "p" && tag[1] == pubkey {
			return true
		}
	}
	return false
}

// isReplyTo reports whether a text note is a reply rather than a bare
// mention: any "e" tag counts, marked or positional, whatever its NIP-10
// marker (a "mention" marker included).
func isReplyTo(event *nostr.Event) bool {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == "e" {
			return true
		}
	}
	return false
}

// zapRequestStub is the minimal shape of the "description" tag's
// JSON payload on a zap receipt (NIP-57): the original zap request event,
// whose "amount" tag is authoritative when present. The bolt11 invoice tag
// is the fallback used when the description is missing or malformed.
type zapRequestStub struct {
	Tags [][]string `json:"tags"`
}

func findTag(event *nostr.Event, name string) []string {
	for _, tag := range event.Tags {
		if len(tag) >= 2 && tag[0] == name {
			return tag
		}
	}
	return nil
}

func zapAmountSats(event *nostr.Event) int64 {
	if desc := findTag(event, "description"); desc != nil {
		var req zapRequestStub
		if err := json.Unmarshal([]byte(desc[1]), &req); err == nil {
			for _, tag := range req.Tags {
				if len(tag) >= 2 && tag[0] == "amount" {
					if msats := parseInt64(tag[1]); msats > 0 {
						return msats / 1000
					}
				}
			}
		}
	}

	if bolt11 := findTag(event, "bolt11"); bolt11 != nil {
		if sats, ok := invoice.Decode(bolt11[1]); ok {
			return sats
		}
	}
	return 0
}

func parseInt64(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	return n
}
