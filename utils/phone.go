// Package utils provides utility functions for the application.
package utils

import (
	"fmt"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// DefaultRegion is the region assumed for raw phone numbers without an
// international prefix.
const DefaultRegion = "GB"

// NormalizePhone converts a raw phone string into E.164 form under the given
// region. Dirty input never produces an error: the second return value is
// false when the number cannot be normalized.
//
// A raw number that fails to parse or validate directly is retried once with
// the region's international prefix forced onto its bare digits, so both
// "07911123456" and "+447911123456" normalize to the same canonical string.
func NormalizePhone(raw, region string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if num, err := phonenumbers.Parse(raw, region); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164), true
	}

	cc := phonenumbers.GetCountryCodeForRegion(region)
	if cc == 0 {
		return "", false
	}
	forced := fmt.Sprintf("+%d%s", cc, strings.TrimLeft(digitsOf(raw), "0"))
	if num, err := phonenumbers.Parse(forced, region); err == nil && phonenumbers.IsValidNumber(num) {
		return phonenumbers.Format(num, phonenumbers.E164), true
	}

	return "", false
}

// IsDomesticNumber reports whether the number belongs to the UK. The
// normalized form is authoritative when present; otherwise the raw string's
// leading digits are used as a heuristic.
func IsDomesticNumber(normalized, raw string) bool {
	if normalized != "" {
		return strings.HasPrefix(normalized, "+44")
	}
	digits := digitsOf(raw)
	return strings.HasPrefix(digits, "07") ||
		strings.HasPrefix(digits, "44") ||
		strings.HasPrefix(digits, "0044")
}

func digitsOf(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
