// Package patterns contains conservative value-shape recognizers used by the
// type detector.
//
// None of these are validators in the RFC sense: they are classification
// heuristics tuned for column values found in real spreadsheets. They should
// say "yes" for the common shapes of a type and "no" for everything
// ambiguous: a false "no" only costs a fallback to a more generic type,
// while a false "yes" mislabels a whole column.
package patterns

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes avoid recompilation on every call.
var (
	// reEmail is intentionally conservative; typical business addresses only.
	reEmail = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

	// reMoneyLead matches symbol-first amounts ("$1,234.56", "€ 10", "-$5").
	// reMoneyTrail matches symbol-last amounts common for EUR ("10,50 €" is out
	// of scope: decimal commas are indistinguishable from thousands separators
	// without a locale).
	reMoneyLead  = regexp.MustCompile(`^-?[$€£]\s?[0-9][0-9,]*(\.[0-9]{1,2})?$`)
	reMoneyTrail = regexp.MustCompile(`^-?[0-9][0-9,]*(\.[0-9]{1,2})?\s?[$€£]$`)

	reZip = regexp.MustCompile(`^[0-9]{5}(-[0-9]{4})?$`)

	// rePhone admits digits plus the usual decorations. Plain digit runs are
	// excluded on purpose (see IsPhone): a column of 10-digit account numbers
	// must not classify as phone.
	rePhone = regexp.MustCompile(`^\+?[0-9(][0-9().\s-]{5,18}[0-9)]$`)

	reURL = regexp.MustCompile(`^https?://[^\s]+\.[^\s]{2,}$`)

	// reAddress wants a leading house number and a trailing street keyword.
	reAddress = regexp.MustCompile(`(?i)^[0-9]{1,6}\s+\S.*\s(st|street|ave|avenue|rd|road|blvd|boulevard|dr|drive|ln|lane|way|ct|court|cir|circle|pl|place|ter|terrace)\.?(\s+(apt|unit|suite|ste|#)\.?\s*\S+)?$`)
)

// IsEmail reports whether s looks like a single email address.
func IsEmail(s string) bool {
	return reEmail.MatchString(strings.TrimSpace(s))
}

// IsMoney reports whether s looks like a currency amount with an explicit
// currency symbol. Bare numbers do not count; they classify as number.
func IsMoney(s string) bool {
	s = strings.TrimSpace(s)
	return reMoneyLead.MatchString(s) || reMoneyTrail.MatchString(s)
}

// IsZipCode reports whether s is a 5-digit US ZIP or ZIP+4.
func IsZipCode(s string) bool {
	return reZip.MatchString(strings.TrimSpace(s))
}

// IsPhone reports whether s looks like a phone number.
//
// Rules:
//   - 7 to 15 digits total.
//   - Must carry at least one phone decoration (leading +, parentheses,
//     separator). A bare digit run is ambiguous with IDs and quantities and is
//     deliberately rejected.
func IsPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !rePhone.MatchString(s) {
		return false
	}
	digits := countDigits(s)
	if digits < 7 || digits > 15 {
		return false
	}
	return strings.ContainsAny(s, "+()-. ")
}

// IsURL reports whether s is an http(s) URL.
func IsURL(s string) bool {
	return reURL.MatchString(strings.TrimSpace(s))
}

// IsAddress reports whether s looks like a US-style street address
// ("123 Main St", "55 W Oak Avenue Apt 4").
func IsAddress(s string) bool {
	return reAddress.MatchString(strings.TrimSpace(s))
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
