package invoice

import "testing"

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantSats int64
		wantOK   bool
	}{
		{name: "micro amount", input: "lnbc2500u1p3xnhl2pp5...", wantSats: 250_000, wantOK: true},
		{name: "milli amount", input: "lnbc25m1p3xnhl2pp5...", wantSats: 2_500_000, wantOK: true},
		{name: "nano amount", input: "lnbc25000n1p3xnhl2pp5...", wantSats: 2_500, wantOK: true},
		{name: "lightning uri prefix", input: "lightning:LNBC2500U1P3XNHL2PP5...", wantSats: 250_000, wantOK: true},
		{name: "whole bitcoin no unit", input: "lnbc11p3xnhl2pp5...", wantSats: 100_000_000, wantOK: true},
		{name: "no amount", input: "lnbc1p3xnhl2pp5...", wantOK: false},
		{name: "not a bolt11 string", input: "npub1abc123", wantOK: false},
		{name: "empty string", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sats, ok := Decode(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && sats != tt.wantSats {
				t.Errorf("expected %d sats, got %d", tt.wantSats, sats)
			}
		})
	}
}
