// Package phone provides phone number utilities.
// This is part of the platform layer and contains no business logic.
package phone

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Most patients reach the clinic from abroad but submit local-format
// numbers, so unprefixed input is assumed Turkish.
const defaultRegion = "TR"

// NormalizeE164 formats a phone number to E.164. If parsing fails or the
// number is invalid, it returns the trimmed input unchanged.
func NormalizeE164(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return trimmed
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return trimmed
	}

	if !phonenumbers.IsValidNumber(number) {
		return trimmed
	}

	return phonenumbers.Format(number, phonenumbers.E164)
}

// HasUsableNumber reports whether input parses to a valid phone number.
// The risk scorer uses this rather than a bare empty-string check so that
// placeholder junk like "-" or "n/a" does not count as reachable.
func HasUsableNumber(input string) bool {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return false
	}

	number, err := phonenumbers.Parse(trimmed, defaultRegion)
	if err != nil {
		return false
	}
	return phonenumbers.IsValidNumber(number)
}
