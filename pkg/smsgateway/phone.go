package smsgateway

import (
	"fmt"
	"strings"
)

// CountryCode is stripped from incoming numbers and re-added by backends that
// need an international format. The deployment target is India, so this is
// a fixed policy rather than a configurable one.
const CountryCode = "91"

// NormalizePhone strips every non-digit, then one leading country code and
// one leading trunk zero, and requires exactly 10 digits to remain.
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	if len(digits) > 10 && strings.HasPrefix(digits, CountryCode) {
		digits = digits[len(CountryCode):]
	}
	if len(digits) > 10 && strings.HasPrefix(digits, "0") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return digits, nil
}

// RedactPhone keeps the first five digits for logs
func RedactPhone(phone string) string {
	if len(phone) <= 5 {
		return strings.Repeat("*", len(phone))
	}
	return phone[:5] + strings.Repeat("*", len(phone)-5)
}
