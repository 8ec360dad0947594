// Package htmlimport lifts form fields out of existing HTML, so a page that
// already carries a hand-written form can be brought into the builder without
// retyping every control.
//
// Import walks the first <form> element (document root when the page has
// none) and maps each control to a field:
//
//	input[type=email]          email
//	input[type=tel]            phone
//	input[type=number|range]   number
//	input[type=date|datetime-local]  date
//	input[type=url]            url
//	input[type=checkbox]       yesno
//	input (anything else)      text
//	select                     select, <option> texts in DOM order
//	textarea                   textarea
//	input[type=radio]          one select per name group
//
// Controls that carry no respondent data (hidden, submit, button, reset,
// image, file) and controls without a name or id are skipped rather than
// failing the import: a partial form beats no form.
package htmlimport

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/XYIAN/form-flow-sub001/internal/form"
)

// ErrNoControls reports that the document parsed but contained no usable
// form control. Callers treat it the way the engine treats empty CSV input.
var ErrNoControls = errors.New("htmlimport: no form controls found")

// Import parses HTML from r and returns the form its controls describe.
//
// Label resolution, most specific first:
//   - <label for=...> matching the control's id
//   - a wrapping <label> ancestor
//   - the aria-label attribute
//   - the placeholder attribute
//   - the humanized name attribute
//
// The required attribute carries through. Radio groups take their label from
// an enclosing fieldset's <legend> when one exists. The form title falls
// back from the <form>'s aria-label to the page <title>, then to
// "Imported Form".
//
// Errors:
//   - a wrapped read error when r fails
//   - ErrNoControls when no control survives the skip rules
func Import(r io.Reader) (form.Form, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return form.Form{}, fmt.Errorf("parse html: %w", err)
	}

	scope := doc.Find("form").First()
	if scope.Length() == 0 {
		scope = doc.Selection
	}

	imp := &importer{doc: doc}
	scope.Find("input, select, textarea").Each(func(_ int, sel *goquery.Selection) {
		imp.control(sel)
	})
	if len(imp.fields) == 0 {
		return form.Form{}, ErrNoControls
	}

	return form.Form{
		Title:  importTitle(doc, scope),
		Fields: imp.fields,
	}, nil
}

// importer accumulates fields in DOM order. Radio inputs need state across
// controls: the first radio of a group creates the field at that position,
// later radios of the same name only contribute options.
type importer struct {
	doc    *goquery.Document
	fields []form.Field
	radios map[string]int // radio group name -> index into fields
	seen   map[string]bool
}

func (imp *importer) control(sel *goquery.Selection) {
	switch goquery.NodeName(sel) {
	case "input":
		imp.input(sel)
	case "select":
		imp.selectControl(sel)
	case "textarea":
		imp.textarea(sel)
	}
}

func (imp *importer) input(sel *goquery.Selection) {
	typ := strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "text")))
	switch typ {
	case "hidden", "submit", "button", "reset", "image", "file":
		return
	case "radio":
		imp.radio(sel)
		return
	}

	name, ok := controlName(sel)
	if !ok || imp.duplicate(name) {
		return
	}

	f := form.Field{
		ID:          uuid.NewString(),
		Key:         imp.key(name),
		Label:       imp.resolveLabel(sel, name),
		Type:        inputType(typ),
		Required:    hasAttr(sel, "required"),
		Placeholder: strings.TrimSpace(sel.AttrOr("placeholder", "")),
	}
	if f.Type == form.TypeYesNo {
		// A lone checkbox is a yes/no question; render it with the
		// canonical pair the generator emits for boolean columns.
		f.Options = []string{"Yes", "No"}
		f.Placeholder = ""
	}
	imp.fields = append(imp.fields, f)
}

func (imp *importer) selectControl(sel *goquery.Selection) {
	name, ok := controlName(sel)
	if !ok || imp.duplicate(name) {
		return
	}

	var opts []string
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		if txt := strings.TrimSpace(opt.Text()); txt != "" {
			opts = append(opts, txt)
		}
	})

	imp.fields = append(imp.fields, form.Field{
		ID:       uuid.NewString(),
		Key:      imp.key(name),
		Label:    imp.resolveLabel(sel, name),
		Type:     form.TypeSelect,
		Required: hasAttr(sel, "required"),
		Options:  opts,
	})
}

func (imp *importer) textarea(sel *goquery.Selection) {
	name, ok := controlName(sel)
	if !ok || imp.duplicate(name) {
		return
	}

	imp.fields = append(imp.fields, form.Field{
		ID:          uuid.NewString(),
		Key:         imp.key(name),
		Label:       imp.resolveLabel(sel, name),
		Type:        form.TypeTextarea,
		Required:    hasAttr(sel, "required"),
		Placeholder: strings.TrimSpace(sel.AttrOr("placeholder", "")),
	})
}

// radio folds one radio input into its group's select field, creating the
// field when this is the first radio of the group. The group is required as
// soon as any member carries the required attribute.
func (imp *importer) radio(sel *goquery.Selection) {
	name, ok := controlName(sel)
	if !ok {
		return
	}

	option := imp.radioOptionText(sel)

	if idx, ok := imp.radios[name]; ok {
		if option != "" {
			imp.fields[idx].Options = append(imp.fields[idx].Options, option)
		}
		if hasAttr(sel, "required") {
			imp.fields[idx].Required = true
		}
		return
	}

	f := form.Field{
		ID:       uuid.NewString(),
		Key:      imp.key(name),
		Label:    radioGroupLabel(sel, name),
		Type:     form.TypeSelect,
		Required: hasAttr(sel, "required"),
	}
	if option != "" {
		f.Options = []string{option}
	}

	if imp.radios == nil {
		imp.radios = make(map[string]int)
	}
	imp.radios[name] = len(imp.fields)
	imp.fields = append(imp.fields, f)
}

// duplicate records name and reports whether a control with the same name
// was already imported. Pages duplicate markup (a desktop and a mobile copy
// of the same form is common); importing the control twice would be worse
// than keeping the first occurrence.
func (imp *importer) duplicate(name string) bool {
	if imp.seen[name] {
		return true
	}
	if imp.seen == nil {
		imp.seen = make(map[string]bool)
	}
	imp.seen[name] = true
	return false
}

// key derives the machine key from the control name, synthesizing a
// positional one when the name normalizes to nothing usable.
func (imp *importer) key(name string) string {
	key := form.FieldKey(name)
	if key == "" {
		key = fmt.Sprintf("field_%d", len(imp.fields)+1)
	}
	return key
}

// resolveLabel walks the label sources for one control, most specific first.
// Labels referenced by for= can sit anywhere in the document, not just
// inside the form, so the lookup runs against the whole document.
func (imp *importer) resolveLabel(sel *goquery.Selection, name string) string {
	if txt := imp.labelForText(sel); txt != "" {
		return txt
	}
	if txt := wrappingLabelText(sel); txt != "" {
		return txt
	}
	if v := strings.TrimSpace(sel.AttrOr("aria-label", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(sel.AttrOr("placeholder", "")); v != "" {
		return v
	}
	return form.Humanize(name)
}

// radioOptionText picks the display text for one radio member: its own
// label, else its value attribute.
func (imp *importer) radioOptionText(sel *goquery.Selection) string {
	if txt := imp.labelForText(sel); txt != "" {
		return txt
	}
	if txt := wrappingLabelText(sel); txt != "" {
		return txt
	}
	return strings.TrimSpace(sel.AttrOr("value", ""))
}

// labelForText returns the text of the first <label for=...> matching the
// control's id, or "".
func (imp *importer) labelForText(sel *goquery.Selection) string {
	id := strings.TrimSpace(sel.AttrOr("id", ""))
	if id == "" {
		return ""
	}
	lab := imp.doc.Find(fmt.Sprintf("label[for=%q]", id)).First()
	return strings.TrimSpace(lab.Text())
}

// wrappingLabelText returns the text of an ancestor <label>, with the text
// of any embedded controls removed so a wrapped <select>'s option texts do
// not leak into the label.
func wrappingLabelText(sel *goquery.Selection) string {
	lab := sel.Closest("label")
	if lab.Length() == 0 {
		return ""
	}
	clone := lab.Clone()
	clone.Find("input, select, textarea").Remove()
	return strings.TrimSpace(clone.Text())
}

// radioGroupLabel labels the whole group: the enclosing fieldset's legend
// when there is one, else the humanized group name. The individual radios'
// labels are option texts, not group labels.
func radioGroupLabel(sel *goquery.Selection, name string) string {
	fs := sel.Closest("fieldset")
	if fs.Length() > 0 {
		if txt := strings.TrimSpace(fs.Find("legend").First().Text()); txt != "" {
			return txt
		}
	}
	return form.Humanize(name)
}

// controlName returns the control's name attribute, falling back to id.
// Controls with neither cannot submit data and are skipped by callers.
func controlName(sel *goquery.Selection) (string, bool) {
	if v := strings.TrimSpace(sel.AttrOr("name", "")); v != "" {
		return v, true
	}
	if v := strings.TrimSpace(sel.AttrOr("id", "")); v != "" {
		return v, true
	}
	return "", false
}

func inputType(typ string) form.FieldType {
	switch typ {
	case "email":
		return form.TypeEmail
	case "tel":
		return form.TypePhone
	case "number", "range":
		return form.TypeNumber
	case "date", "datetime-local":
		return form.TypeDate
	case "url":
		return form.TypeURL
	case "checkbox":
		return form.TypeYesNo
	default:
		return form.TypeText
	}
}

// hasAttr reports attribute presence. HTML boolean attributes count when
// present regardless of value, so required="" and required="required" both
// mark the field required.
func hasAttr(sel *goquery.Selection, name string) bool {
	_, ok := sel.Attr(name)
	return ok
}

func importTitle(doc *goquery.Document, scope *goquery.Selection) string {
	if v := strings.TrimSpace(scope.AttrOr("aria-label", "")); v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	return "Imported Form"
}
