package form

import (
	"encoding/json"
	"fmt"
)

// FieldType is the closed set of input types a field can have.
//
// The set is intentionally not extensible at runtime: the type detector and
// the HTML importer can only emit members of this set, and JSON decoding
// rejects anything else, so an invalid type value cannot propagate past the
// boundary where it entered.
type FieldType string

const (
	TypeText     FieldType = "text"
	TypeTextarea FieldType = "textarea"
	TypeEmail    FieldType = "email"
	TypePhone    FieldType = "phone"
	TypeNumber   FieldType = "number"
	TypeMoney    FieldType = "money"
	TypeDate     FieldType = "date"
	TypeSelect   FieldType = "select"
	TypeYesNo    FieldType = "yesno"
	TypeAddress  FieldType = "address"
	TypeZipCode  FieldType = "zipcode"
	TypeURL      FieldType = "url"
)

// fieldTypes is the authoritative membership set. Order is not meaningful
// here; detection priority lives with the detector.
var fieldTypes = map[FieldType]bool{
	TypeText:     true,
	TypeTextarea: true,
	TypeEmail:    true,
	TypePhone:    true,
	TypeNumber:   true,
	TypeMoney:    true,
	TypeDate:     true,
	TypeSelect:   true,
	TypeYesNo:    true,
	TypeAddress:  true,
	TypeZipCode:  true,
	TypeURL:      true,
}

// IsValid reports whether t is a member of the closed type set.
func (t FieldType) IsValid() bool {
	return fieldTypes[t]
}

// IsEnum reports whether fields of this type carry an options list.
func (t FieldType) IsEnum() bool {
	return t == TypeSelect || t == TypeYesNo
}

// ParseFieldType converts a raw string into a FieldType.
//
// Errors:
//   - Returns an error if s is not a member of the closed set. Callers that
//     accept external input (JSON bodies, CLI flags) should surface this
//     verbatim.
func ParseFieldType(s string) (FieldType, error) {
	t := FieldType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("form: unknown field type %q", s)
	}
	return t, nil
}

// UnmarshalJSON enforces set membership at decode time.
func (t *FieldType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseFieldType(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
