package form

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Humanize converts a machine name such as an HTML input name or a CSV
// header into display text: separators become spaces, camelCase boundaries
// split, and each word starts upper-case. "full_name", "billing-address"
// and "shippingAddress" come out as "Full Name", "Billing Address" and
// "Shipping Address".
//
// Existing upper-case runs survive, so "user ID" humanizes to "User ID"
// rather than "User Id". Input with no usable runes returns "".
func Humanize(name string) string {
	s := splitCamel(strings.TrimSpace(name))
	s = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(s)

	words := strings.Fields(s)
	if len(words) == 0 {
		return ""
	}

	// cases.Caser carries internal state, so build one per call instead of
	// sharing a package-level instance across goroutines.
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}

// splitCamel inserts a space at every lower-to-upper rune boundary.
func splitCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 4)

	var prev rune
	for _, r := range s {
		if unicode.IsUpper(r) && unicode.IsLower(prev) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}
