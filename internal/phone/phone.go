// Package phone normalizes locally entered phone numbers into canonical
// international form.
package phone

import "strings"

const (
	// DefaultCountryCode is the dialing code used when none is configured.
	DefaultCountryCode = "234"

	subscriberDigits = 10
)

// Normalizer converts varied local phone input into +<countrycode><number>
// form. Unrecognized input is passed through unchanged; the delivery gateway
// is the component that rejects bad numbers.
type Normalizer struct {
	countryCode string
}

// NewNormalizer creates a Normalizer for the given dialing code. An empty
// code falls back to DefaultCountryCode.
func NewNormalizer(countryCode string) *Normalizer {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Normalizer{countryCode: countryCode}
}

// Format normalizes raw input. Three shapes are recognized:
//
//	<cc><10 digits>   -> +<cc><10 digits>
//	0<10 digits>      -> +<cc><10 digits>  (trunk prefix dropped)
//	<10 digits>       -> +<cc><10 digits>
//
// Anything else is returned unchanged. Format never fails and is idempotent.
func (n *Normalizer) Format(raw string) string {
	digits := stripNonDigits(raw)

	switch {
	case strings.HasPrefix(digits, n.countryCode) && len(digits) == len(n.countryCode)+subscriberDigits:
		return "+" + digits
	case strings.HasPrefix(digits, "0") && len(digits) == subscriberDigits+1:
		return "+" + n.countryCode + digits[1:]
	case len(digits) == subscriberDigits:
		return "+" + n.countryCode + digits
	default:
		return raw
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
