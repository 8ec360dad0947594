package form

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint computes a deterministic SHA-256 hash over a form's content.
//
// The store uses it as a stable dedupe key: saving a form with identical
// content twice returns the existing row instead of creating a duplicate.
// Field IDs are excluded on purpose: they are freshly generated per call, and
// two generations of the same CSV must fingerprint the same.
//
// Canonicalization rules:
//   - Components are concatenated with the ASCII Unit Separator (0x1f).
//   - Each component is written as "name=value" so an empty title cannot
//     collide with an empty description.
//   - Absent optional values are encoded as a single NUL byte (0x00) so
//     missing differs from empty-string.
//   - Field order matters: reordering fields produces a different fingerprint,
//     because field order is part of the form.
//
// Output is a lowercase hex string (length 64).
func Fingerprint(f Form) string {
	var b strings.Builder
	b.Grow(64 + len(f.Fields)*48)

	writeComponent(&b, "title", f.Title)
	b.WriteByte(sep)
	writeComponent(&b, "description", f.Description)

	for _, fld := range f.Fields {
		b.WriteByte(sep)
		writeComponent(&b, "key", fld.Key)
		b.WriteByte(sep)
		writeComponent(&b, "label", fld.Label)
		b.WriteByte(sep)
		writeComponent(&b, "type", string(fld.Type))
		b.WriteByte(sep)
		writeComponent(&b, "required", strconv.FormatBool(fld.Required))
		b.WriteByte(sep)
		writeComponent(&b, "placeholder", fld.Placeholder)
		b.WriteByte(sep)
		if fld.Options == nil {
			b.WriteString("options=")
			b.WriteByte('\x00')
		} else {
			b.WriteString("options=")
			for i, o := range fld.Options {
				if i > 0 {
					b.WriteByte(optSep)
				}
				b.WriteString(o)
			}
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

const (
	sep    = '\x1f'
	optSep = '\x1e'
)

func writeComponent(b *strings.Builder, name, value string) {
	b.WriteString(name)
	b.WriteByte('=')
	b.WriteString(value)
}
