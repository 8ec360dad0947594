package inference

import (
	"reflect"
	"testing"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// profileOf builds a ColumnProfile from raw cell values the way
// ProfileColumns would, so detector tests stay one-liners.
func profileOf(t *testing.T, name string, values ...string) ColumnProfile {
	t.Helper()
	table := RawTable{Headers: []string{name}, Rows: make([][]string, len(values))}
	for i, v := range values {
		table.Rows[i] = []string{v}
	}
	return ProfileColumns(table, DefaultThresholds().SampleSize)[0]
}

//
// Detect
//

// TestDetect_TypePerColumn verifies that each candidate type wins on a column
// of clean examples of that type.
//
// These columns are the easy cases: every non-null value matches one rule, so
// the winner's confidence is 1.0 except for text, which is the constant
// fallback score.
func TestDetect_TypePerColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		values   []string
		wantType form.FieldType
	}{
		{"emails", []string{"a@example.com", "b@test.org", "c@mail.co"}, form.TypeEmail},
		{"urls", []string{"https://example.com", "http://test.org/page", "https://go.dev/doc"}, form.TypeURL},
		{"money", []string{"$10.50", "$1,234.00", "$9.99"}, form.TypeMoney},
		{"zip codes", []string{"90210", "10001-1234", "60614"}, form.TypeZipCode},
		{"dates iso", []string{"2024-01-15", "2024-02-20", "2024-03-25"}, form.TypeDate},
		{"phones", []string{"(555) 867-5309", "555-123-4567", "+1 202 555 0147"}, form.TypePhone},
		{"numbers", []string{"1", "2.5", "-30", "400"}, form.TypeNumber},
		{"addresses", []string{"123 Main Street", "456 Oak Ave", "9 Elm Rd Apt 4"}, form.TypeAddress},
		{"free text", []string{"Alice", "Bob", "Charlie"}, form.TypeText},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Detect(profileOf(t, "col", tt.values...), Thresholds{})
			if got.Type != tt.wantType {
				t.Fatalf("Detect(%v) type=%q, want %q", tt.values, got.Type, tt.wantType)
			}
		})
	}
}

// TestDetect_YesNo verifies boolean-ish columns win as yesno and carry their
// literal values as options, so the generated field renders the words the
// data actually used.
func TestDetect_YesNo(t *testing.T) {
	t.Parallel()

	got := Detect(profileOf(t, "subscribe", "Yes", "No", "Yes", "Yes"), Thresholds{})
	if got.Type != form.TypeYesNo {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeYesNo)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence=%v, want 1.0", got.Confidence)
	}
	if want := []string{"Yes", "No"}; !reflect.DeepEqual(got.Options, want) {
		t.Fatalf("options=%v, want %v", got.Options, want)
	}
}

// TestDetect_Select verifies the enumerability gate: few distinct values
// repeating across many rows detect as select with the distinct values, in
// first-seen order, as options.
func TestDetect_Select(t *testing.T) {
	t.Parallel()

	values := []string{
		"red", "green", "blue", "red", "green",
		"blue", "red", "red", "green", "blue",
	}
	got := Detect(profileOf(t, "color", values...), Thresholds{})
	if got.Type != form.TypeSelect {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeSelect)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence=%v, want 1.0", got.Confidence)
	}
	if want := []string{"red", "green", "blue"}; !reflect.DeepEqual(got.Options, want) {
		t.Fatalf("options=%v, want %v", got.Options, want)
	}
}

// TestDetect_SelectBeatsNumber verifies that a small set of repeating numbers
// detects as select, not number. A 1-5 rating column should become a
// dropdown, not a free numeric input.
func TestDetect_SelectBeatsNumber(t *testing.T) {
	t.Parallel()

	values := []string{"1", "2", "3", "4", "5", "3", "2", "4", "1", "5", "3", "3"}
	got := Detect(profileOf(t, "rating", values...), Thresholds{})
	if got.Type != form.TypeSelect {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeSelect)
	}
}

// TestDetect_NumberWhenNotEnumerable verifies that numbers with high
// cardinality stay numbers: the select gate requires repetition.
func TestDetect_NumberWhenNotEnumerable(t *testing.T) {
	t.Parallel()

	got := Detect(profileOf(t, "age", "30", "25", "35"), Thresholds{})
	if got.Type != form.TypeNumber {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeNumber)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence=%v, want 1.0", got.Confidence)
	}
	if got.Options != nil {
		t.Fatalf("options=%v, want nil for non-enum type", got.Options)
	}
}

// TestDetect_TextFallback verifies the two text paths.
//
// Free text scores the constant fallback confidence; an all-empty column is
// text with confidence zero. Neither is an error.
func TestDetect_TextFallback(t *testing.T) {
	t.Parallel()

	t.Run("names", func(t *testing.T) {
		t.Parallel()
		got := Detect(profileOf(t, "name", "Alice", "Bob", "Charlie"), Thresholds{})
		if got.Type != form.TypeText {
			t.Fatalf("type=%q, want %q", got.Type, form.TypeText)
		}
		if want := DefaultThresholds().TextConfidence; got.Confidence != want {
			t.Fatalf("confidence=%v, want %v", got.Confidence, want)
		}
	})

	t.Run("all empty", func(t *testing.T) {
		t.Parallel()
		got := Detect(profileOf(t, "notes", "", "  ", ""), Thresholds{})
		if got.Type != form.TypeText {
			t.Fatalf("type=%q, want %q", got.Type, form.TypeText)
		}
		if got.Confidence != 0 {
			t.Fatalf("confidence=%v, want 0", got.Confidence)
		}
	})
}

// TestDetect_MinorityMatchLosesToText verifies the text floor: a rule
// matching half or fewer of the values must not claim the column.
func TestDetect_MinorityMatchLosesToText(t *testing.T) {
	t.Parallel()

	// One email among plain words: email scores 0.25, below the text floor.
	got := Detect(profileOf(t, "contact", "a@example.com", "unknown", "see notes", "n/a"), Thresholds{})
	if got.Type != form.TypeText {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeText)
	}
}

// TestDetect_MajorityMatchWins verifies that a rule matching most values
// claims the column and its confidence reflects the dirty minority.
func TestDetect_MajorityMatchWins(t *testing.T) {
	t.Parallel()

	got := Detect(profileOf(t, "email",
		"a@example.com", "b@example.com", "c@example.com", "missing"), Thresholds{})
	if got.Type != form.TypeEmail {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeEmail)
	}
	if got.Confidence != 0.75 {
		t.Fatalf("confidence=%v, want 0.75", got.Confidence)
	}
}

// TestDetect_NullsExcluded verifies empty cells affect neither the match
// fraction nor the options list.
func TestDetect_NullsExcluded(t *testing.T) {
	t.Parallel()

	got := Detect(profileOf(t, "subscribe", "Yes", "", "No", "", "Yes"), Thresholds{})
	if got.Type != form.TypeYesNo {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeYesNo)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("confidence=%v, want 1.0", got.Confidence)
	}
	if want := []string{"Yes", "No"}; !reflect.DeepEqual(got.Options, want) {
		t.Fatalf("options=%v, want %v", got.Options, want)
	}
}

// TestDetect_LadderPrecedence verifies tie-breaks between rules that can
// match the same values.
//
// Cases:
//   - dashed dates match the phone pattern too; date sits earlier
//   - five-digit zips are also valid numbers; zipcode sits earlier
//   - 1/0 flags are also valid numbers; yesno sits earlier
func TestDetect_LadderPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		values   []string
		wantType form.FieldType
	}{
		{"date over phone", []string{"02-01-2006", "15-06-2019", "28-02-2021"}, form.TypeDate},
		{"zipcode over number", []string{"90210", "10001", "60614"}, form.TypeZipCode},
		{"yesno over number", []string{"1", "0", "1", "1", "0", "1"}, form.TypeYesNo},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Detect(profileOf(t, "col", tt.values...), Thresholds{})
			if got.Type != tt.wantType {
				t.Fatalf("Detect(%v) type=%q, want %q", tt.values, got.Type, tt.wantType)
			}
		})
	}
}

// TestDetect_DateLayout verifies the majority layout vote: the winning layout
// is the one most values parsed with, and it only appears on date winners.
func TestDetect_DateLayout(t *testing.T) {
	t.Parallel()

	got := Detect(profileOf(t, "joined", "2024-01-15", "2024-06-01", "2023-11-30"), Thresholds{})
	if got.Type != form.TypeDate {
		t.Fatalf("type=%q, want %q", got.Type, form.TypeDate)
	}
	if got.Layout != "2006-01-02" {
		t.Fatalf("layout=%q, want %q", got.Layout, "2006-01-02")
	}
}

// TestDetect_CustomThresholds verifies threshold overrides change the
// verdict: widening the enum gate turns a text column into a select.
func TestDetect_CustomThresholds(t *testing.T) {
	t.Parallel()

	values := []string{"alpha", "beta", "alpha", "beta"}
	// Default ratio gate: 2 distinct / 4 non-null = 0.5, inside the default
	// gate. Shrink the gate and the same column falls back to text.
	strict := Thresholds{
		MaxEnumDistinct: 1,
		MaxEnumRatio:    0.5,
	}

	if got := Detect(profileOf(t, "kind", values...), Thresholds{}); got.Type != form.TypeSelect {
		t.Fatalf("default thresholds type=%q, want %q", got.Type, form.TypeSelect)
	}
	if got := Detect(profileOf(t, "kind", values...), strict); got.Type != form.TypeText {
		t.Fatalf("strict thresholds type=%q, want %q", got.Type, form.TypeText)
	}
}

//
// parseBoolLoose
//

// TestParseBoolLoose verifies permissive boolean parsing. It must accept the
// common truthy/falsy spellings case-insensitively and reject everything
// else.
func TestParseBoolLoose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		in    string
		ok    bool
		value bool
	}{
		{"true literal", "true", true, true},
		{"false literal", "false", true, false},
		{"numeric true", "1", true, true},
		{"numeric false", "0", true, false},
		{"yes", "yes", true, true},
		{"no", "no", true, false},
		{"single letter", "y", true, true},
		{"upper case", "TRUE", true, true},
		{"with spaces", "  false  ", true, false},
		{"invalid", "maybe", false, false},
		{"empty", "", false, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := parseBoolLoose(tt.in)
			if ok != tt.ok || got != tt.value {
				t.Fatalf("parseBoolLoose(%q) = (%v,%v), want (%v,%v)", tt.in, got, ok, tt.value, tt.ok)
			}
		})
	}
}

//
// parseDateLoose
//

// TestParseDateLoose verifies permissive date parsing. The function returns
// (time, layout, ok); ok is the contract, layout feeds the placeholder hint.
func TestParseDateLoose(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"iso date", "2023-01-02", true},
		{"slash date", "01/02/2023", true},
		{"dotted date", "02.01.2023", true},
		{"dashed day first", "31-12-2023", true},
		{"invalid month", "2023-99-99", false},
		{"timestamp rejected", "2023-01-02T00:00:00Z", false},
		{"plain number", "12345", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, layout, ok := parseDateLoose(tt.in)
			if ok != tt.ok {
				t.Fatalf("parseDateLoose(%q) ok=%v, want %v", tt.in, ok, tt.ok)
			}
			if ok && d.IsZero() {
				t.Fatalf("parseDateLoose(%q) returned zero time with ok=true", tt.in)
			}
			if ok && layout == "" {
				t.Fatalf("parseDateLoose(%q) returned empty layout with ok=true", tt.in)
			}
		})
	}
}

//
// isNumber
//

// TestIsNumber verifies numeric detection covers integers, decimals, and
// signs but rejects formatted values that belong to other rules.
func TestIsNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"integer", "42", true},
		{"decimal", "3.14", true},
		{"negative", "-7", true},
		{"scientific", "1e3", true},
		{"padded", " 12 ", true},
		{"currency", "$12", false},
		{"grouped", "1,234", false},
		{"word", "twelve", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isNumber(tt.in); got != tt.want {
				t.Fatalf("isNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

//
// distinctInOrder
//

// TestDistinctInOrder verifies dedupe keeps first-appearance order, which is
// what makes generated option lists stable across runs.
func TestDistinctInOrder(t *testing.T) {
	t.Parallel()

	got := distinctInOrder([]string{"b", "a", "b", "c", "a"})
	if want := []string{"b", "a", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("distinctInOrder() = %v, want %v", got, want)
	}
}
