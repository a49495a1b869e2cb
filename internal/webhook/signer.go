package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the HMAC-SHA256 signature over the exact bytes about to be
// transmitted, per spec.md §4.4. Signing the final marshaled bytes (rather
// than re-deriving them from the struct) guarantees the signature matches
// whatever the receiver actually parses.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature is the correct HMAC-SHA256 of body under
// secret, using a constant-time comparison. Exposed for tests and for
// client SDKs that want to self-check their own verification logic.
func Verify(secret, body []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(expected, mac.Sum(nil))
}
