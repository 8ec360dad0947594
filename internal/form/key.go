package form

import (
	"strings"
	"unicode/utf8"
)

// FieldKey converts an arbitrary header or label into a safe, lowercase
// machine key suitable for use as a column name, a JSON key, or an HTML
// input name.
//
// Normalization:
//   - lower-case
//   - common separator runes collapse to a single underscore
//   - everything outside [a-z0-9_] is dropped
//   - leading/trailing underscores are trimmed
//
// A label with no usable runes normalizes to ""; callers decide the fallback
// (the generator synthesizes "field_N").
func FieldKey(label string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		return ""
	}

	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';' {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}

		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = (r == '_')
			continue
		}

		// Drop everything else.
	}

	return truncateKey(strings.Trim(b.String(), "_"))
}

func truncateKey(s string) string {
	const maxLen = 63
	if len(s) <= maxLen {
		return s
	}
	// Ensure we cut on a UTF-8 boundary.
	b := []byte(s)
	cut := maxLen
	for cut > 0 && !utf8.Valid(b[:cut]) {
		cut--
	}
	if cut <= 0 {
		return s[:maxLen]
	}
	return string(b[:cut])
}
