package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// NewSaved stamps a form with a fresh row identity: a random UUID, the
// content fingerprint, and now (UTC) as both timestamps.
//
// Backends call this before inserting so that identity assignment stays
// consistent across SQL dialects. The returned value is only authoritative if
// the insert actually lands; on a fingerprint conflict the backend discards
// it and returns the existing row instead.
func NewSaved(f form.Form, now time.Time) SavedForm {
	now = now.UTC()
	return SavedForm{
		ID:          uuid.NewString(),
		Fingerprint: form.Fingerprint(f),
		CreatedAt:   now,
		UpdatedAt:   now,
		Form:        f,
	}
}

// EncodeFields serializes a field list to the JSON stored in the fields_json
// column. A nil slice encodes as "null" and round-trips back to nil.
func EncodeFields(fields []form.Field) (string, error) {
	b, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("store: marshal fields: %w", err)
	}
	return string(b), nil
}

// DecodeFields parses a fields_json column value back into fields.
//
// Backends must not assume the column is always well formed; rows written by
// older builds or touched by hand should fail loudly, not scan as empty.
func DecodeFields(data string) ([]form.Field, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}
	var out []form.Field
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("store: unmarshal fields: %w", err)
	}
	return out, nil
}
