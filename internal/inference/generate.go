// Package inference implements the CSV-to-form type inference engine: a pure
// function pipeline from raw CSV text to a generated form schema.
//
// Pipeline stages, in dependency order:
//
//	Tokenize       raw text -> RawTable
//	ProfileColumns RawTable -> []ColumnProfile
//	Detect         ColumnProfile -> TypeDetectionResult
//	Generate       orchestrates the above and emits a GeneratedForm
//	AnalyzeQuality RawTable -> QualityReport (advisory, independent output)
//
// Design constraints:
//   - No I/O: the engine never touches the network or the filesystem. File
//     reading, HTTP, metrics and persistence are the callers' concern.
//   - No retained state: each call is one synchronous pass and results are
//     never mutated afterwards. A fresh generation replaces the old one.
//   - Two error kinds only (*ParseError, *EmptyInputError); every other odd
//     input degrades to a usable default (text, confidence 0) instead of
//     failing. A usable, imperfect form beats strict rejection.
package inference

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// GenerateOptions configures one generation pass.
type GenerateOptions struct {
	// Title and Description seed the form header. An empty Title falls back
	// to "Generated Form".
	Title       string
	Description string

	// IncludePreview attaches the first rows of the parsed table to the
	// result, for UIs that show "here is what we read" next to the fields.
	IncludePreview bool

	// Thresholds tunes the heuristics; the zero value means defaults.
	Thresholds Thresholds
}

// GeneratedField is one inferred form field. Compared to form.Field it also
// carries the detection confidence, which preview UIs surface and the quality
// analyzer aggregates.
type GeneratedField struct {
	ID          string         `json:"id"`
	Key         string         `json:"key"`
	Label       string         `json:"label"`
	Type        form.FieldType `json:"type"`
	Required    bool           `json:"required"`
	Placeholder string         `json:"placeholder,omitempty"`
	Options     []string       `json:"options,omitempty"`
	Confidence  float64        `json:"confidence"`
}

// GenerationMeta is the observability block attached to every generation.
type GenerationMeta struct {
	AvgConfidence float64 `json:"avg_confidence"`
	DurationMS    float64 `json:"duration_ms"`
	RowCount      int     `json:"row_count"`
	ColumnCount   int     `json:"column_count"`
}

// GeneratedForm is the result of one CSV upload: created once, never mutated.
type GeneratedForm struct {
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Fields      []GeneratedField `json:"fields"`
	Meta        GenerationMeta   `json:"meta"`
	Preview     [][]string       `json:"preview,omitempty"`
}

// Form converts the generation result into the persistence-facing schema the
// store accepts. Confidence and preview data stay behind.
func (g *GeneratedForm) Form() form.Form {
	fields := make([]form.Field, len(g.Fields))
	for i, f := range g.Fields {
		fields[i] = form.Field{
			ID:          f.ID,
			Key:         f.Key,
			Label:       f.Label,
			Type:        f.Type,
			Required:    f.Required,
			Placeholder: f.Placeholder,
			Options:     f.Options,
		}
	}
	return form.Form{Title: g.Title, Description: g.Description, Fields: fields}
}

// timeNow is a test seam for duration measurement.
var timeNow = time.Now

// previewRows caps GeneratedForm.Preview.
const previewRows = 5

// Generate runs the full pipeline over raw CSV text.
//
// Behavior:
//   - Columns whose trimmed header is blank are unusable and skipped; zero
//     usable columns returns *EmptyInputError.
//   - Required flag: null ratio strictly below RequiredNullRatio. Tables with
//     zero data rows mark nothing required; there is no evidence either way.
//   - Field IDs are freshly generated per call: generating twice from the
//     same text yields identical types and confidences but different IDs.
//
// Errors:
//   - *ParseError from the tokenizer, passed through untouched.
//   - *EmptyInputError when no usable column remains.
func Generate(csvText string, opts GenerateOptions) (*GeneratedForm, error) {
	start := timeNow()
	th := opts.Thresholds.withDefaults()

	table, err := Tokenize(csvText)
	if err != nil {
		return nil, err
	}

	profiles := ProfileColumns(table, th.SampleSize)

	fields := make([]GeneratedField, 0, len(profiles))
	confidenceSum := 0.0
	for i, p := range profiles {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}

		det := Detect(p, th)

		key := form.FieldKey(p.Name)
		if key == "" {
			key = fmt.Sprintf("field_%d", i+1)
		}

		fields = append(fields, GeneratedField{
			ID:          uuid.NewString(),
			Key:         key,
			Label:       p.Name,
			Type:        det.Type,
			Required:    p.RowCount > 0 && p.NullRatio() < th.RequiredNullRatio,
			Placeholder: placeholderFor(det, p.Name),
			Options:     det.Options,
			Confidence:  det.Confidence,
		})
		confidenceSum += det.Confidence
	}

	if len(fields) == 0 {
		return nil, &EmptyInputError{}
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Generated Form"
	}

	g := &GeneratedForm{
		Title:       title,
		Description: opts.Description,
		Fields:      fields,
		Meta: GenerationMeta{
			AvgConfidence: confidenceSum / float64(len(fields)),
			RowCount:      len(table.Rows),
			ColumnCount:   len(fields),
		},
	}

	if opts.IncludePreview {
		n := len(table.Rows)
		if n > previewRows {
			n = previewRows
		}
		g.Preview = table.Rows[:n]
	}

	g.Meta.DurationMS = float64(timeNow().Sub(start)) / float64(time.Millisecond)
	return g, nil
}

// placeholderFor picks a type-appropriate placeholder. Date placeholders
// derive from the detected majority layout so "02.01.2006"-style columns hint
// "DD.MM.YYYY" rather than a generic format.
func placeholderFor(det TypeDetectionResult, label string) string {
	switch det.Type {
	case form.TypeEmail:
		return "name@example.com"
	case form.TypePhone:
		return "(555) 867-5309"
	case form.TypeMoney:
		return "$0.00"
	case form.TypeZipCode:
		return "12345"
	case form.TypeURL:
		return "https://example.com"
	case form.TypeAddress:
		return "123 Main St"
	case form.TypeNumber:
		return "0"
	case form.TypeDate:
		return layoutHint(det.Layout)
	case form.TypeSelect, form.TypeYesNo:
		// Choice widgets render options, not placeholder text.
		return ""
	default:
		return "Enter " + label
	}
}

// layoutHint converts a Go time layout into the human date-format hint a form
// placeholder shows.
func layoutHint(layout string) string {
	switch layout {
	case "2006-01-02":
		return "YYYY-MM-DD"
	case "2006/01/02":
		return "YYYY/MM/DD"
	case "02.01.2006":
		return "DD.MM.YYYY"
	case "02/01/2006":
		return "DD/MM/YYYY"
	case "01/02/2006":
		return "MM/DD/YYYY"
	case "02-01-2006":
		return "DD-MM-YYYY"
	case "01-02-2006":
		return "MM-DD-YYYY"
	default:
		return "YYYY-MM-DD"
	}
}
