package smsutil

import (
	"regexp"
	"strings"
)

// Australian mobile numbers only: the canonical form is local 04XXXXXXXX.
var (
	localMobilePattern = regexp.MustCompile(`^04\d{8}$`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// NormalizePhone strips whitespace and converts the international
// +614XXXXXXXX form to the canonical local 04XXXXXXXX form. The function is
// idempotent: normalizing an already-canonical number is a no-op.
func NormalizePhone(phone string) string {
	cleaned := whitespacePattern.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "+614") {
		cleaned = "0" + cleaned[3:]
	}
	return cleaned
}

// ValidPhone reports whether the phone number normalizes to the canonical
// 04XXXXXXXX form.
func ValidPhone(phone string) bool {
	return localMobilePattern.MatchString(NormalizePhone(phone))
}
