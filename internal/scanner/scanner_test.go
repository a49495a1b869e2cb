package scanner

import (
	"testing"

	"github.com/nbd-wtf/go-nostr"
)

func TestNormalizePubkeyPassesThroughHex(t *testing.T) {
	hex := "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459"
	if got := normalizePubkey(hex); got != hex {
		t.Errorf("expected hex pubkey unchanged, got %s", got)
	}
}

func TestNormalizePubkeyRejectsMalformedNpub(t *testing.T) {
	malformed := "npub1notvalidbech32"
	if got := normalizePubkey(malformed); got != malformed {
		t.Errorf("expected malformed npub returned unchanged, got %s", got)
	}
}

func TestExtractFollowingUsesLatestEvent(t *testing.T) {
	older := &nostr.Event{
		CreatedAt: 100,
		Tags:      nostr.Tags{{"p", "peer-old"}},
	}
	newer := &nostr.Event{
		CreatedAt: 200,
		Tags:      nostr.Tags{{"p", "peer-a"}, {"p", "peer-b"}},
	}

	peers := extractFollowing([]*nostr.Event{older, newer})
	if len(peers) != 2 {
		t.Fatalf("expected 2 peers from the latest contact list, got %d: %v", len(peers), peers)
	}
}

func TestExtractFollowingEmpty(t *testing.T) {
	if peers := extractFollowing(nil); peers != nil {
		t.Errorf("expected nil peers for no contact list events, got %v", peers)
	}
}
