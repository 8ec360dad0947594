package inference

import (
	"io"
	"strings"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// WriteCSV renders a RawTable back to CSV text.
//
// The output tokenizes back to the same headers and the same row shape: cells
// containing commas, quotes, or edge whitespace are quoted and quotes are
// doubled. Embedded newlines cannot survive the line-first tokenizer, so they
// flatten to spaces. Lines end with '\n'.
func WriteCSV(w io.Writer, t RawTable) error {
	if err := writeLine(w, t.Headers); err != nil {
		return err
	}
	for _, row := range t.Rows {
		if err := writeLine(w, row); err != nil {
			return err
		}
	}
	return nil
}

// ExportCSV is WriteCSV into a string, for callers that hand the text to a
// download response or a clipboard.
func ExportCSV(t RawTable) string {
	var b strings.Builder
	// WriteCSV cannot fail on a strings.Builder.
	_ = WriteCSV(&b, t)
	return b.String()
}

// TemplateTable renders a form back into a header-only table: one column per
// field, labels in field order, no data rows. Exporting it yields a blank
// import template whose re-import reproduces the field labels.
func TemplateTable(f form.Form) RawTable {
	headers := make([]string, len(f.Fields))
	for i, fld := range f.Fields {
		headers[i] = fld.Label
	}
	return RawTable{Headers: headers, Rows: [][]string{}}
}

func writeLine(w io.Writer, cells []string) error {
	if len(cells) == 1 && cells[0] == "" {
		// A lone empty cell would render as a blank line and be dropped on
		// re-import; quote it instead.
		_, err := io.WriteString(w, "\"\"\n")
		return err
	}
	for i, c := range cells {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, encodeCell(c)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// encodeCell quotes a cell when the tokenizer would otherwise misread it.
// Edge whitespace counts because quoting is the only way to keep it through a
// re-import.
func encodeCell(c string) string {
	if strings.ContainsAny(c, "\n\r") {
		c = strings.Map(func(r rune) rune {
			if r == '\n' || r == '\r' {
				return ' '
			}
			return r
		}, c)
	}
	if c == "" {
		return c
	}
	if strings.ContainsAny(c, ",\"") || c != strings.TrimSpace(c) {
		return `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
	}
	return c
}
