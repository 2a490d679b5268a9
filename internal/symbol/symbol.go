// Package symbol canonicalizes free-form ticker strings to vendor form
// (spec §4.1).
package symbol

import "strings"

// Normalize canonicalizes s to uppercase, [A-Z0-9-] only: a leading "$"
// is stripped, "." becomes "-" (class shares, e.g. "BRK.B" -> "BRK-B"),
// and any other disallowed character is dropped. Empty input, or input
// that reduces to empty after filtering, yields "" so the caller drops it.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ToUpper(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '.':
			b.WriteByte('-')
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}
