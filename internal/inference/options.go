package inference

// Thresholds holds every tunable the engine's heuristics depend on.
//
// The defaults mirror the behavior the product shipped with, but none of them
// are load-bearing business rules: callers (CLI flags, API deployments) may
// override any of them per invocation. A zero Thresholds value means "use the
// defaults".
type Thresholds struct {
	// MaxEnumDistinct is the largest distinct-value count a column may have
	// and still be offered as a select.
	MaxEnumDistinct int

	// MaxEnumRatio caps distinct/non-null. A column where most values are
	// unique is free text, not an enumeration, no matter how few rows it has.
	MaxEnumRatio float64

	// RequiredNullRatio: columns whose null ratio is strictly below this are
	// marked required. A heuristic default the user can edit later.
	RequiredNullRatio float64

	// ConsistencyConfidence is the per-column confidence a detection must
	// strictly exceed to count toward the quality analyzer's consistency
	// metric.
	ConsistencyConfidence float64

	// TextConfidence is the constant score of the text fallback rule. It
	// doubles as the minimum a specific rule must beat to win a column.
	TextConfidence float64

	// SampleSize bounds ColumnProfile.Samples (first N non-empty values).
	SampleSize int
}

// DefaultThresholds returns the shipped defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MaxEnumDistinct:       5,
		MaxEnumRatio:          0.5,
		RequiredNullRatio:     0.10,
		ConsistencyConfidence: 0.7,
		TextConfidence:        0.5,
		SampleSize:            3,
	}
}

// withDefaults fills unset (zero) fields. Explicit zero is not distinguishable
// from unset; anyone who genuinely wants a zero threshold can use a negative
// epsilon instead.
func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if t.MaxEnumDistinct <= 0 {
		t.MaxEnumDistinct = d.MaxEnumDistinct
	}
	if t.MaxEnumRatio <= 0 {
		t.MaxEnumRatio = d.MaxEnumRatio
	}
	if t.RequiredNullRatio <= 0 {
		t.RequiredNullRatio = d.RequiredNullRatio
	}
	if t.ConsistencyConfidence <= 0 {
		t.ConsistencyConfidence = d.ConsistencyConfidence
	}
	if t.TextConfidence <= 0 {
		t.TextConfidence = d.TextConfidence
	}
	if t.SampleSize <= 0 {
		t.SampleSize = d.SampleSize
	}
	return t
}
