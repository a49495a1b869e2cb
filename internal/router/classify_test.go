package router

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

const tenantPubkey = "tenant-pubkey"

func TestClassifySelfPost(t *testing.T) {
	event := &nostr.Event{Kind: nostr.KindTextNote, PubKey: tenantPubkey}
	c, ok := Classify(event, tenantPubkey)
	if !ok || c.Kind != "self_post" || !c.IsSelf {
		t.Fatalf("expected self_post classification, got %+v ok=%v", c, ok)
	}
}

func TestClassifyMention(t *testing.T) {
	event := &nostr.Event{
		Kind:   nostr.KindTextNote,
		PubKey: "someone-else",
		Tags:   nostr.Tags{{"p", tenantPubkey}},
	}
	c, ok := Classify(event, tenantPubkey)
	if !ok || c.Kind != "mention" {
		t.Fatalf("expected mention, got %+v ok=%v", c, ok)
	}
}

func TestClassifyReply(t *testing.T) {
	event := &nostr.Event{
		Kind:   nostr.KindTextNote,
		PubKey: "someone-else",
		Tags:   nostr.Tags{{"p", tenantPubkey}, {"e", "root-event-id", "", "reply"}},
	}
	c, ok := Classify(event, tenantPubkey)
	if !ok || c.Kind != "reply" {
		t.Fatalf("expected reply, got %+v ok=%v", c, ok)
	}
}

func TestClassifyUnrelatedTextNote(t *testing.T) {
	event := &nostr.Event{Kind: nostr.KindTextNote, PubKey: "someone-else"}
	_, ok := Classify(event, tenantPubkey)
	if ok {
		t.Fatal("expected no classification for an unrelated text note")
	}
}

func TestClassifyReaction(t *testing.T) {
	event := &nostr.Event{
		Kind:   nostr.KindReaction,
		PubKey: "someone-else",
		Tags:   nostr.Tags{{"p", tenantPubkey}, {"e", "note-id"}},
	}
	c, ok := Classify(event, tenantPubkey)
	if !ok || c.Kind != "reaction" {
		t.Fatalf("expected reaction, got %+v ok=%v", c, ok)
	}
}

func TestClassifyFollowAndUnfollow(t *testing.T) {
	followed := &nostr.Event{
		Kind:   nostr.KindFollowList,
		PubKey: "someone-else",
		Tags:   nostr.Tags{{"p", tenantPubkey}},
	}
	c, ok := Classify(followed, tenantPubkey)
	if !ok || c.Kind != "follow" {
		t.Fatalf("expected follow, got %+v ok=%v", c, ok)
	}

	unfollowed := &nostr.Event{
		Kind:   nostr.KindFollowList,
		PubKey: "someone-else",
		Tags:   nostr.Tags{{"p", "some-other-pubkey"}},
	}
	c, ok = Classify(unfollowed, tenantPubkey)
	if !ok || c.Kind != "unfollow" {
		t.Fatalf("expected unfollow, got %+v ok=%v", c, ok)
	}
}

func TestClassifyZapWithBolt11Fallback(t *testing.T) {
	event := &nostr.Event{
		Kind:   nostr.KindZap,
		PubKey: "lnurl-service",
		Tags: nostr.Tags{
			{"p", tenantPubkey},
			{"bolt11", "lnbc2500u1p3xnhl2pp5..."},
		},
	}
	c, ok := Classify(event, tenantPubkey)
	if !ok || c.Kind != "zap" {
		t.Fatalf("expected zap, got %+v ok=%v", c, ok)
	}
	if c.ZapSats != 250_000 {
		t.Errorf("expected 250000 sats from bolt11 fallback, got %d", c.ZapSats)
	}
}
