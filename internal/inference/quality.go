package inference

import (
	"strings"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// QualityReport is the advisory data-quality summary surfaced next to a
// generated form. It never affects the generator's output.
type QualityReport struct {
	// Completeness is 1 - overall null ratio across all cells.
	Completeness float64 `json:"completeness"`

	// Consistency is the fraction of columns whose detected type confidence
	// strictly exceeds the consistency threshold.
	Consistency float64 `json:"consistency"`

	// Score folds the two dimensions into one number for ranking.
	Score float64 `json:"score"`

	RowCount    int `json:"row_count"`
	ColumnCount int `json:"column_count"`

	Columns []ColumnQuality `json:"columns"`
}

// ColumnQuality is the per-column detail behind the aggregate numbers.
type ColumnQuality struct {
	Name       string         `json:"name"`
	Type       form.FieldType `json:"type"`
	Confidence float64        `json:"confidence"`
	NullRatio  float64        `json:"null_ratio"`
}

// AnalyzeQuality profiles and detects every column of the table and reports
// aggregate completeness and consistency.
//
// Edge cases:
//   - A header-only table has zero cells, so completeness is 1 and, since
//     every all-empty column detects as text with confidence 0, consistency
//     is 0.
//   - A table with no columns reports completeness 1, consistency 0.
func AnalyzeQuality(t RawTable, th Thresholds) QualityReport {
	th = th.withDefaults()

	profiles := ProfileColumns(t, th.SampleSize)

	report := QualityReport{
		RowCount:    len(t.Rows),
		ColumnCount: len(profiles),
		Columns:     make([]ColumnQuality, 0, len(profiles)),
	}

	nullCells := 0
	consistent := 0
	for _, p := range profiles {
		det := Detect(p, th)
		nullCells += p.NullCount
		if det.Confidence > th.ConsistencyConfidence {
			consistent++
		}
		report.Columns = append(report.Columns, ColumnQuality{
			Name:       displayName(p.Name),
			Type:       det.Type,
			Confidence: det.Confidence,
			NullRatio:  p.NullRatio(),
		})
	}

	totalCells := len(profiles) * len(t.Rows)
	if totalCells > 0 {
		report.Completeness = 1 - float64(nullCells)/float64(totalCells)
	} else {
		report.Completeness = 1
	}
	if len(profiles) > 0 {
		report.Consistency = float64(consistent) / float64(len(profiles))
	}
	report.Score = (report.Completeness + report.Consistency) / 2

	return report
}

// displayName keeps blank headers reportable.
func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "(unnamed)"
	}
	return name
}
