package verification

import (
	"strings"
)

// Normalize lower-cases an identifier and strips every non-alphanumeric
// rune, so cosmetic differences (spacing, punctuation, case) between the
// declared and observed forms do not count as mismatches.
func Normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LineupsEqual compares two item-selection lists as multisets of
// normalized names: order-independent, length-sensitive.
func LineupsEqual(declared, observed []string) bool {
	if len(declared) != len(observed) {
		return false
	}
	counts := make(map[string]int, len(declared))
	for _, it := range declared {
		counts[Normalize(it)]++
	}
	for _, it := range observed {
		n := Normalize(it)
		counts[n]--
		if counts[n] < 0 {
			return false
		}
	}
	return true
}
