package inference

import "strings"

// ColumnProfile is the statistical summary of one CSV column, built once from
// a RawTable and immutable afterwards. Everything the detector scores comes
// from here.
type ColumnProfile struct {
	// Name is the (trimmed) header.
	Name string `json:"name"`

	// Samples holds the first min(SampleSize, RowCount) non-empty values,
	// for lightweight heuristics and for preview UIs.
	Samples []string `json:"samples"`

	// Values is the full column slice, cells verbatim.
	Values []string `json:"-"`

	// DistinctCount is set cardinality over trimmed non-null values.
	DistinctCount int `json:"distinct_count"`

	// RowCount is the table's row count (identical for every column).
	RowCount int `json:"row_count"`

	// NullCount counts cells that are empty or whitespace-only.
	NullCount int `json:"null_count"`
}

// NullRatio returns NullCount/RowCount, 0 for row-less tables.
func (p ColumnProfile) NullRatio() float64 {
	if p.RowCount == 0 {
		return 0
	}
	return float64(p.NullCount) / float64(p.RowCount)
}

// ProfileColumns builds one ColumnProfile per header, in header order.
//
// sampleSize bounds the Samples slice; values <= 0 fall back to the default.
func ProfileColumns(t RawTable, sampleSize int) []ColumnProfile {
	if sampleSize <= 0 {
		sampleSize = DefaultThresholds().SampleSize
	}

	profiles := make([]ColumnProfile, len(t.Headers))
	for col, name := range t.Headers {
		p := ColumnProfile{
			Name:     name,
			Values:   columnValues(t.Rows, col),
			RowCount: len(t.Rows),
		}

		distinct := make(map[string]struct{}, len(p.Values))
		for _, v := range p.Values {
			trimmed := strings.TrimSpace(v)
			if trimmed == "" {
				p.NullCount++
				continue
			}
			distinct[trimmed] = struct{}{}
			if len(p.Samples) < sampleSize {
				p.Samples = append(p.Samples, trimmed)
			}
		}
		p.DistinctCount = len(distinct)

		profiles[col] = p
	}
	return profiles
}

func columnValues(rows [][]string, col int) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		if col >= len(r) {
			// Rows are padded at tokenize time; this is only reachable for
			// hand-built tables.
			out = append(out, "")
			continue
		}
		out = append(out, r[col])
	}
	return out
}
