// Package invoice extracts the amount from a bolt11 Lightning invoice
// string. This service never validates signatures or routing hints; it only
// needs the sats amount to attribute a zap's value to a tenant's insights
// (spec.md §4.3, §4.7), so the decoder is intentionally narrow.
package invoice

import "strings"

// multiplier maps the bolt11 amount unit suffix to one thousand times the
// value of one such unit in millisats (one milli-bitcoin is 100,000,000
// millisats), so that amount*mult/1000 below yields millisats.
var multiplier = map[byte]int64{
	'm': 100_000_000_000, // milli
	'u': 100_000_000,     // micro
	'n': 100_000,         // nano
	'p': 100,             // pico
}

// Decode extracts the invoice amount in satoshis from a bolt11 string. It
// returns ok=false if the invoice has no amount (some zap receipts omit it)
// or the human-readable part cannot be parsed.
func Decode(bolt11 string) (sats int64, ok bool) {
	s := strings.ToLower(strings.TrimSpace(bolt11))
	s = strings.TrimPrefix(s, "lightning:")

	if !strings.HasPrefix(s, "ln") {
		return 0, false
	}

	// Separator '1' marks the boundary between the human-readable part and
	// the data part. The bech32 data charset has no '1', while the amount
	// digits in the human-readable part may contain one, so the last '1' in
	// the string is the separator.
	sepIdx := strings.LastIndexByte(s, '1')
	if sepIdx < 2 {
		return 0, false
	}
	hrp := s[:sepIdx]

	// hrp looks like "lnbc", "lntb", "lnbcrt" optionally followed by an
	// amount and a unit letter, e.g. "lnbc2500u".
	i := 2
	for i < len(hrp) && (hrp[i] < '0' || hrp[i] > '9') {
		i++
	}
	if i >= len(hrp) {
		return 0, false // network prefix with no amount at all
	}

	digitsStart := i
	for i < len(hrp) && hrp[i] >= '0' && hrp[i] <= '9' {
		i++
	}
	digits := hrp[digitsStart:i]
	if digits == "" {
		return 0, false
	}

	var amount int64
	for _, c := range digits {
		amount = amount*10 + int64(c-'0')
	}

	if i >= len(hrp) {
		// No unit suffix means the amount is already in whole bitcoin.
		return amount * 100_000_000, true
	}

	unit := hrp[i]
	mult, known := multiplier[unit]
	if !known {
		return 0, false
	}

	// amount*mult/1000 is the invoice amount in millisats; the second
	// division truncates it to whole sats (BOLT-11 amounts must resolve to a whole number of
	// millisats, so this integer division never loses real invoices).
	millisats := amount * mult / 1000
	return millisats / 1000, true
}
