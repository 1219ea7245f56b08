// Package model contains the shared domain types for the portal BFF:
// form schemas and values, search contracts, and the error envelope.
package model

import (
	"encoding/json"
	"strings"
)

// FieldType enumerates the field variants the form engine understands.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldNumber      FieldType = "number"
	FieldEmail       FieldType = "email"
	FieldSelect      FieldType = "select"
	FieldUpload      FieldType = "upload"
	FieldDate        FieldType = "date"
	FieldTime        FieldType = "time"
	FieldDatetime    FieldType = "datetime"
	FieldBoolean     FieldType = "boolean"
	FieldRadio       FieldType = "radio"
	FieldPhone       FieldType = "phone"
	FieldMultiselect FieldType = "multiselect"
	FieldURL         FieldType = "url"
	FieldCNIC        FieldType = "cnic"
	FieldRepeater    FieldType = "repeater"
	FieldSection     FieldType = "section"
	FieldStatement   FieldType = "statement"
)

// supportedTypes is the set of recognized field type names.
var supportedTypes = map[FieldType]bool{
	FieldText: true, FieldTextarea: true, FieldNumber: true, FieldEmail: true,
	FieldSelect: true, FieldUpload: true, FieldDate: true, FieldTime: true,
	FieldDatetime: true, FieldBoolean: true, FieldRadio: true, FieldPhone: true,
	FieldMultiselect: true, FieldURL: true, FieldCNIC: true, FieldRepeater: true,
	FieldSection: true, FieldStatement: true,
}

// NormalizeFieldType maps a raw CMS type string to a supported FieldType.
// Unknown or empty types degrade to text; a couple of HTML-flavoured aliases
// are folded into their canonical variants.
func NormalizeFieldType(raw string) FieldType {
	lowered := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if supportedTypes[lowered] {
		return lowered
	}
	switch lowered {
	case "datetime-local":
		return FieldDatetime
	case "checkbox":
		return FieldBoolean
	}
	return FieldText
}

// Option is a normalized select/radio/multiselect choice.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// OptionSpec is an option as the CMS delivers it: either a bare string or a
// {label, value} object. It normalizes at decode time.
type OptionSpec struct {
	Label string
	Value string
}

// UnmarshalJSON accepts both string options and object options.
func (o *OptionSpec) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		o.Label = s
		o.Value = s
		return nil
	}
	var obj struct {
		Label string `json:"label"`
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	val := obj.Value
	if val == "" {
		val = obj.Label
	}
	label := obj.Label
	if label == "" {
		label = val
	}
	o.Label = label
	o.Value = val
	return nil
}

// MarshalJSON emits the object form.
func (o OptionSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(Option{Label: o.Label, Value: o.Value})
}

// ValidationSpec carries the optional validation block a field definition may
// declare in the CMS.
type ValidationSpec struct {
	Options      []string `json:"options,omitempty"`
	AllowedTypes []string `json:"allowedTypes,omitempty"`
	Pattern      string   `json:"pattern,omitempty"`
}

// FieldDefinition is one node of a form schema. Sections and repeaters nest
// further definitions under ChildFields; everything else is a leaf.
type FieldDefinition struct {
	ID          string            `json:"id"`
	Type        string            `json:"type,omitempty"`
	Label       string            `json:"label,omitempty"`
	Description string            `json:"description,omitempty"`
	Placeholder string            `json:"placeholder,omitempty"`
	Required    bool              `json:"required,omitempty"`
	Options     []OptionSpec      `json:"options,omitempty"`
	Validation  *ValidationSpec   `json:"validation,omitempty"`
	ChildFields []FieldDefinition `json:"childFields,omitempty"`
}

// Kind returns the normalized variant of the field.
func (f FieldDefinition) Kind() FieldType {
	return NormalizeFieldType(f.Type)
}

// DisplayLabel returns the best human-readable name for the field, falling
// back through label, placeholder, and id.
func (f FieldDefinition) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	if f.Placeholder != "" {
		return f.Placeholder
	}
	return f.ID
}

// NormalizedOptions merges the field's options with the validation block's
// string options and drops empty entries.
func (f FieldDefinition) NormalizedOptions() []Option {
	var out []Option
	for _, o := range f.Options {
		if o.Value == "" && o.Label == "" {
			continue
		}
		out = append(out, Option{Label: o.Label, Value: o.Value})
	}
	if len(out) == 0 && f.Validation != nil {
		for _, s := range f.Validation.Options {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			out = append(out, Option{Label: s, Value: s})
		}
	}
	return out
}

// FormSchema is a server-declared form: an ordered list of top-level section
// fields, each section's children making up one wizard page.
type FormSchema struct {
	ID         json.Number       `json:"id,omitempty"`
	DocumentID string            `json:"documentId,omitempty"`
	Name       string            `json:"name,omitempty"`
	Slug       string            `json:"slug,omitempty"`
	Fields     []FieldDefinition `json:"fields"`
}

// SubmitTarget returns the identifier used in the submission URL, preferring
// the CMS document id over the numeric id.
func (s FormSchema) SubmitTarget() string {
	if s.DocumentID != "" {
		return s.DocumentID
	}
	return s.ID.String()
}

// Sections returns the top-level page sections of the schema.
func (s FormSchema) Sections() []FieldDefinition {
	return s.Fields
}
