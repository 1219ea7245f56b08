// Package form implements the schema-driven form engine: it interprets a
// CMS-declared field schema at runtime, seeds and mutates wizard state,
// validates per page and on submit, and serializes submissions.
package form

import "github.com/shaheenweb/portal/model"

// Flatten collects the child fields of every page section into one ordered
// list, dropping entries without an id. Schema order is preserved; it is the
// document order used for first-error selection.
func Flatten(schema model.FormSchema) []model.FieldDefinition {
	var out []model.FieldDefinition
	for _, section := range schema.Sections() {
		for _, field := range section.ChildFields {
			if field.ID == "" {
				continue
			}
			out = append(out, field)
		}
	}
	return out
}

// BuildInitialValues seeds one semantically-empty value per non-section
// field. Repeaters start with a single blank row keyed by their child field
// ids; multiselects with an empty list; booleans false; statements with an
// empty variable map; everything else with an empty string.
func BuildInitialValues(fields []model.FieldDefinition) model.FormValues {
	values := make(model.FormValues, len(fields))
	for _, field := range fields {
		if field.ID == "" {
			continue
		}
		switch field.Kind() {
		case model.FieldSection:
			// Containers carry no value of their own.
		case model.FieldRepeater:
			values[field.ID] = model.RowsValue([]model.RepeaterRow{BlankRow(field.ChildFields)})
		case model.FieldMultiselect:
			values[field.ID] = model.ListValue()
		case model.FieldBoolean:
			values[field.ID] = model.BoolValue(false)
		case model.FieldStatement:
			values[field.ID] = model.VarsValue(map[string]string{})
		default:
			values[field.ID] = model.ScalarValue("")
		}
	}
	return values
}

// BlankRow builds an empty repeater row whose keys match the repeater's
// child field ids exactly.
func BlankRow(children []model.FieldDefinition) model.RepeaterRow {
	row := make(model.RepeaterRow, len(children))
	for _, child := range children {
		if child.ID == "" {
			continue
		}
		row[child.ID] = ""
	}
	return row
}

// PageOf returns the index of the page section containing fieldID, or -1
// when no section declares it.
func PageOf(schema model.FormSchema, fieldID string) int {
	for i, section := range schema.Sections() {
		for _, field := range section.ChildFields {
			if field.ID == fieldID {
				return i
			}
		}
	}
	return -1
}

// FieldByID looks a field definition up in the flattened field list.
func FieldByID(fields []model.FieldDefinition, id string) (model.FieldDefinition, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return model.FieldDefinition{}, false
}
