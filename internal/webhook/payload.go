package webhook

import "encoding/json"

// Envelope is the top-level shape of every delivered webhook body
// (spec.md §6). EventType is constrained to the public vocabulary
// (mention, new_follower, zap, daily_summary); Data holds the event-specific
// fields already serialized by the router or the dispatcher's daily summary
// job.
type Envelope struct {
	EventType string          `json:"event_type"`
	TenantID  int64           `json:"tenant_id"`
	EventID   string          `json:"event_id,omitempty"`
	Timestamp int64           `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// DailySummary is the Data payload for a "daily_summary" delivery.
type DailySummary struct {
	Date           string `json:"date"`
	NewFollowers   int    `json:"new_followers"`
	NewMentions    int    `json:"new_mentions"`
	NewReplies     int    `json:"new_replies"`
	TotalZapsSats  int64  `json:"total_zap_sats"`
	PostsPublished int    `json:"posts_published"`
}

// Marshal renders an envelope to the exact bytes that get signed and sent.
func Marshal(envelope Envelope) ([]byte, error) {
	return json.Marshal(envelope)
}
