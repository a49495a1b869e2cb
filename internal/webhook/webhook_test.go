package webhook

import (
	"testing"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
	"github.com/deepclaw/nostr-analytics/internal/store"
)

func TestSignAndVerify(t *testing.T) {
	secret := []byte("tenant-secret")
	body := []byte(`{"type":"mention"}`)

	sig := Sign(secret, body)
	if !Verify(secret, body, sig) {
		t.Fatal("expected signature to verify against the same body and secret")
	}
	if Verify(secret, []byte(`{"type":"tampered"}`), sig) {
		t.Fatal("signature must not verify against a different body")
	}
	if Verify([]byte("wrong-secret"), body, sig) {
		t.Fatal("signature must not verify against a different secret")
	}
}

func TestDispatcherDueSchedule(t *testing.T) {
	cfg := config.Webhook{BackoffMs: []int{1000, 5000, 25000}}
	d := &Dispatcher{cfg: cfg}

	fresh := store.WebhookDelivery{RetryCount: 0, CreatedAt: time.Now().Unix()}
	if !d.due(fresh) {
		t.Error("a delivery with no prior attempts should always be due")
	}

	justFailed := store.WebhookDelivery{RetryCount: 1, CreatedAt: time.Now().Unix()}
	if d.due(justFailed) {
		t.Error("a delivery that just failed once should not be due again immediately")
	}

	longAgo := store.WebhookDelivery{RetryCount: 1, CreatedAt: time.Now().Add(-2 * time.Second).Unix()}
	if !d.due(longAgo) {
		t.Error("a delivery whose 1s backoff has elapsed should be due")
	}
}
