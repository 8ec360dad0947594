package inference

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// RawTable is parsed CSV: headers plus a row matrix, pre-inference.
//
// Invariant: every row has exactly len(Headers) cells. Short rows are padded
// with empty strings during tokenizing; cells beyond the header width are
// dropped. Nothing enforces value consistency within a column; that is the
// detector's job to measure, not the tokenizer's to reject.
type RawTable struct {
	Headers []string   `json:"header"`
	Rows    [][]string `json:"rows"`
}

// Tokenize splits raw CSV text into a RawTable.
//
// Semantics:
//   - The input is BOM-normalized first: UTF-8 and UTF-16 (LE/BE) byte-order
//     marks are honored, everything else is treated as UTF-8.
//   - Lines split on '\n' (a trailing '\r' is stripped, so CRLF works).
//   - Columns split on ',' honoring double-quote-enclosed fields that may
//     contain embedded commas; "" inside a quoted field decodes to one quote.
//   - Empty trailing lines are discarded. A header-only table is valid.
//   - Header cells are whitespace-trimmed; data cells are kept verbatim.
//
// Errors (always *ParseError):
//   - empty or blank input
//   - unreadable header (NUL bytes or invalid UTF-8, i.e. binary content)
//   - a quoted field left unterminated, or content following a closing quote
func Tokenize(text string) (RawTable, error) {
	text, err := normalizeEncoding(text)
	if err != nil {
		return RawTable{}, &ParseError{Line: 1, Msg: "unreadable input: " + err.Error()}
	}

	lines := splitLines(text)
	if len(lines) == 0 {
		return RawTable{}, &ParseError{Msg: "empty input"}
	}

	if strings.TrimSpace(lines[0]) == "" {
		return RawTable{}, &ParseError{Line: 1, Msg: "empty header row"}
	}
	if !readableLine(lines[0]) {
		return RawTable{}, &ParseError{Line: 1, Msg: "header row is not readable text"}
	}

	headers, err := splitFields(lines[0], 1)
	if err != nil {
		return RawTable{}, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}

	rows := make([][]string, 0, len(lines)-1)
	for i, line := range lines[1:] {
		cells, err := splitFields(line, i+2)
		if err != nil {
			return RawTable{}, err
		}
		rows = append(rows, alignRow(cells, len(headers)))
	}

	return RawTable{Headers: headers, Rows: rows}, nil
}

// normalizeEncoding strips a UTF-8 BOM and transparently decodes UTF-16
// input carrying a BOM. Input without a BOM passes through unchanged.
func normalizeEncoding(text string) (string, error) {
	if text == "" {
		return "", nil
	}
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.String(dec, text)
	if err != nil {
		return "", err
	}
	return out, nil
}

// splitLines splits on '\n', strips one trailing '\r' per line, and discards
// empty trailing lines. Interior blank lines are kept: they become all-empty
// rows, which the profiler counts as nulls.
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	for i := range lines {
		lines[i] = strings.TrimSuffix(lines[i], "\r")
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// readableLine reports whether a line is plausible text: no NUL bytes and
// valid UTF-8. Binary uploads (images, archives) fail here fast instead of
// producing one garbage mega-column.
func readableLine(line string) bool {
	if strings.IndexByte(line, 0x00) >= 0 {
		return false
	}
	return utf8.ValidString(line)
}

// splitFields splits one line into cells.
//
// State machine over bytes: a field either starts with '"' (quoted: commas
// are literal, "" is an escaped quote, the field must be closed and followed
// by a comma or end-of-line) or it does not (the next comma terminates it; a
// stray '"' inside an unquoted field is taken literally).
func splitFields(line string, lineNo int) ([]string, error) {
	fields := make([]string, 0, 8)
	i := 0
	for {
		if i >= len(line) {
			fields = append(fields, "")
			return fields, nil
		}

		if line[i] == '"' {
			cell, next, err := readQuoted(line, i, lineNo)
			if err != nil {
				return nil, err
			}
			fields = append(fields, cell)
			if next >= len(line) {
				return fields, nil
			}
			i = next + 1 // skip the comma
			continue
		}

		end := strings.IndexByte(line[i:], ',')
		if end < 0 {
			fields = append(fields, line[i:])
			return fields, nil
		}
		fields = append(fields, line[i:i+end])
		i += end + 1
	}
}

// readQuoted consumes a quoted cell starting at the opening quote and returns
// the decoded cell plus the index of the terminating comma (or len(line)).
func readQuoted(line string, start, lineNo int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(line) {
		c := line[i]
		if c != '"' {
			b.WriteByte(c)
			i++
			continue
		}
		// Quote: either an escape ("") or the end of the field.
		if i+1 < len(line) && line[i+1] == '"' {
			b.WriteByte('"')
			i += 2
			continue
		}
		i++
		if i >= len(line) {
			return b.String(), i, nil
		}
		if line[i] == ',' {
			return b.String(), i, nil
		}
		return "", 0, &ParseError{Line: lineNo, Msg: "unexpected character after closing quote"}
	}
	return "", 0, &ParseError{Line: lineNo, Msg: "unterminated quoted field"}
}

// alignRow pads short rows with "" and drops cells beyond the header width.
func alignRow(cells []string, width int) []string {
	if len(cells) == width {
		return cells
	}
	if len(cells) > width {
		return cells[:width]
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}
