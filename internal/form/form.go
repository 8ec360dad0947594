// Package form defines the form schema model shared by the inference engine,
// the HTML importer, the persistence layer, and the HTTP API.
//
// The model is deliberately small: a Form is a title, a description, and an
// ordered list of Fields. Everything a builder UI renders beyond that (layout,
// theming, widget configuration) lives outside this repository.
package form

// Field is a single data-collection input on a form.
//
// ID is assigned when the field is generated (fresh per generation), Key is a
// stable machine name derived from the label, and Label is the human-facing
// text shown to respondents.
type Field struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Options     []string  `json:"options,omitempty"`
}

// Form is the persistence-facing schema: exactly the {title, description,
// fields[]} value the store accepts. Storage identity and timestamps are
// assigned by the store, not carried here.
type Form struct {
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}
