package inference

import (
	"strconv"
	"strings"
	"time"

	"github.com/XYIAN/form-flow-sub001/internal/form"
	"github.com/XYIAN/form-flow-sub001/internal/patterns"
)

// TypeDetectionResult is the detector's verdict for one column: exactly one
// type from the closed set, a confidence in [0,1], and, for enumerable
// winners, the options list in order of first appearance.
type TypeDetectionResult struct {
	Type       form.FieldType `json:"type"`
	Confidence float64        `json:"confidence"`
	Options    []string       `json:"options,omitempty"`

	// Layout is the majority Go time layout for date winners ("" otherwise).
	// The generator turns it into a placeholder hint like "DD/MM/YYYY".
	Layout string `json:"layout,omitempty"`
}

// Detect scores a column against every candidate type and returns the single
// best result.
//
// Scoring model:
//   - Every candidate rule scores the column as the fraction of non-null
//     values matching the rule, so scores live in [0,1] and the winner's
//     score is its confidence.
//   - The select rule is the exception: it scores 1.0 when the enumerability
//     gate passes (DistinctCount <= MaxEnumDistinct AND distinct/non-null <=
//     MaxEnumRatio) and 0 otherwise.
//   - The text fallback scores a constant TextConfidence whenever the column
//     has any non-null value. That constant is also the floor a specific
//     rule must beat: a rule matching only a minority of values loses to
//     text rather than mislabeling the column.
//   - Ties break by ladder position: candidates are ordered most-specific
//     first and an earlier candidate keeps a tie.
//
// Edge case: a column with no non-null values returns text with confidence 0.
// That is a deliberate default, not an error.
func Detect(p ColumnProfile, th Thresholds) TypeDetectionResult {
	th = th.withDefaults()

	nonNull := make([]string, 0, len(p.Values))
	for _, v := range p.Values {
		if t := strings.TrimSpace(v); t != "" {
			nonNull = append(nonNull, t)
		}
	}
	if len(nonNull) == 0 {
		return TypeDetectionResult{Type: form.TypeText, Confidence: 0}
	}

	best := TypeDetectionResult{Type: form.TypeText, Confidence: th.TextConfidence}
	consider := func(r TypeDetectionResult) {
		if r.Confidence > best.Confidence {
			best = r
		}
	}

	// Ladder, most specific first. consider() keeps the earlier candidate on
	// a tie, so ordering here is the tie-break.
	consider(scoreMatch(form.TypeYesNo, nonNull, func(v string) bool {
		_, ok := parseBoolLoose(v)
		return ok
	}))
	consider(scoreMatch(form.TypeEmail, nonNull, patterns.IsEmail))
	consider(scoreMatch(form.TypeURL, nonNull, patterns.IsURL))
	consider(scoreMatch(form.TypeMoney, nonNull, patterns.IsMoney))
	consider(scoreMatch(form.TypeZipCode, nonNull, patterns.IsZipCode))
	consider(scoreDate(nonNull))
	consider(scoreMatch(form.TypePhone, nonNull, patterns.IsPhone))
	consider(scoreSelect(p, nonNull, th))
	consider(scoreMatch(form.TypeNumber, nonNull, isNumber))
	consider(scoreMatch(form.TypeAddress, nonNull, patterns.IsAddress))

	if best.Type.IsEnum() {
		best.Options = distinctInOrder(nonNull)
	}
	return best
}

// scoreMatch builds a result whose confidence is the matching fraction.
func scoreMatch(t form.FieldType, nonNull []string, match func(string) bool) TypeDetectionResult {
	hits := 0
	for _, v := range nonNull {
		if match(v) {
			hits++
		}
	}
	return TypeDetectionResult{
		Type:       t,
		Confidence: float64(hits) / float64(len(nonNull)),
	}
}

// scoreDate is scoreMatch for dates plus a majority vote over the layouts the
// matching values parsed with.
func scoreDate(nonNull []string) TypeDetectionResult {
	hits := 0
	layoutVotes := map[string]int{}
	for _, v := range nonNull {
		if _, layout, ok := parseDateLoose(v); ok {
			hits++
			layoutVotes[layout]++
		}
	}

	best := ""
	bestN := 0
	for lay, n := range layoutVotes {
		if n > bestN {
			best = lay
			bestN = n
		}
	}

	return TypeDetectionResult{
		Type:       form.TypeDate,
		Confidence: float64(hits) / float64(len(nonNull)),
		Layout:     best,
	}
}

// scoreSelect applies the enumerability gate. Inside the gate every non-null
// value is trivially a member of the option set, so the score is 1.0.
func scoreSelect(p ColumnProfile, nonNull []string, th Thresholds) TypeDetectionResult {
	r := TypeDetectionResult{Type: form.TypeSelect}
	if p.DistinctCount == 0 || p.DistinctCount > th.MaxEnumDistinct {
		return r
	}
	ratio := float64(p.DistinctCount) / float64(len(nonNull))
	if ratio > th.MaxEnumRatio {
		return r
	}
	r.Confidence = 1.0
	return r
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

func parseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y":
		return true, true
	case "0", "f", "false", "no", "n":
		return false, true
	default:
		return false, false
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02/01/2006",
	"01/02/2006",
	"02-01-2006",
	"01-02-2006",
}

func parseDateLoose(s string) (time.Time, string, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, lay, true
		}
	}
	return time.Time{}, "", false
}

// distinctInOrder returns the distinct values in order of first appearance.
// Inputs are already trimmed non-null values.
func distinctInOrder(nonNull []string) []string {
	seen := make(map[string]struct{}, len(nonNull))
	out := make([]string, 0, 8)
	for _, v := range nonNull {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
