package smsutil

import "unicode/utf8"

const (
	// singlePartLimit is the payload of a standalone SMS.
	singlePartLimit = 160
	// concatPartLimit is the per-segment payload once the concatenation
	// header claims 7 bytes of each part.
	concatPartLimit = 153
)

// MessageParts computes the number of SMS segments a message body consumes.
// Messages up to 160 characters fit in one part; longer messages are split
// into ceil(length/153) parts. An empty message still occupies one segment.
// Quota accounting and carrier billing both depend on this being exact.
func MessageParts(text string) int {
	length := utf8.RuneCountInString(text)
	if length <= singlePartLimit {
		return 1
	}
	return (length + concatPartLimit - 1) / concatPartLimit
}
