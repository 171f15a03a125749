// Package cost computes the credit cost of an SMS body. Plain GSM-sized
// (ASCII) texts pack 160 characters per segment; anything containing a
// non-ASCII character is billed at the 70-character unicode segment size.
package cost

import "unicode/utf8"

const (
	asciiSegmentSize   = 160
	unicodeSegmentSize = 70
)

// IsUnicode reports whether the text contains any non-ASCII character and
// therefore must be sent (and billed) as unicode.
func IsUnicode(text string) bool {
	for i := 0; i < len(text); i++ {
		if text[i] > 127 {
			return true
		}
	}
	return false
}

// Segments returns the credit cost of the supplied text. A dispatchable
// message always consumes at least one credit.
func Segments(text string) int {
	if text == "" {
		return 1
	}

	if IsUnicode(text) {
		length := utf8.RuneCountInString(text)
		return (length + unicodeSegmentSize - 1) / unicodeSegmentSize
	}

	return (len(text) + asciiSegmentSize - 1) / asciiSegmentSize
}
