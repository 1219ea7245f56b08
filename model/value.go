package model

import "encoding/json"

// ValueKind discriminates the runtime value variants a field can hold.
type ValueKind int

const (
	KindScalar ValueKind = iota // text-likes, select, radio, date, time, ...
	KindList                    // multiselect
	KindBool                    // boolean
	KindRows                    // repeater
	KindVars                    // statement
)

// RepeaterRow maps a repeater child field id to its entered value.
type RepeaterRow map[string]string

// FieldValue is the tagged union of runtime values. Exactly one of the
// payload members is meaningful, selected by Kind.
type FieldValue struct {
	Kind ValueKind
	Str  string
	List []string
	Bool bool
	Rows []RepeaterRow
	Vars map[string]string
}

// ScalarValue wraps a plain string value.
func ScalarValue(s string) FieldValue { return FieldValue{Kind: KindScalar, Str: s} }

// ListValue wraps a multiselect value.
func ListValue(vs ...string) FieldValue { return FieldValue{Kind: KindList, List: vs} }

// BoolValue wraps a boolean value.
func BoolValue(b bool) FieldValue { return FieldValue{Kind: KindBool, Bool: b} }

// RowsValue wraps a repeater value.
func RowsValue(rows []RepeaterRow) FieldValue { return FieldValue{Kind: KindRows, Rows: rows} }

// VarsValue wraps a statement value.
func VarsValue(vars map[string]string) FieldValue { return FieldValue{Kind: KindVars, Vars: vars} }

// IsEmpty reports whether the value is semantically empty for its kind.
// Booleans are empty when false, matching the required-check semantics.
func (v FieldValue) IsEmpty() bool {
	switch v.Kind {
	case KindList:
		return len(v.List) == 0
	case KindBool:
		return !v.Bool
	case KindRows:
		return len(v.Rows) == 0
	case KindVars:
		return len(v.Vars) == 0
	default:
		return v.Str == ""
	}
}

// IsObject reports whether the value serializes as a JSON object or array in
// the multipart payload, as opposed to a plain string part.
func (v FieldValue) IsObject() bool {
	return v.Kind == KindList || v.Kind == KindRows || v.Kind == KindVars
}

// MarshalJSON emits the underlying value without the discriminator.
func (v FieldValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindRows:
		if v.Rows == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.Rows)
	case KindVars:
		if v.Vars == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(v.Vars)
	default:
		return json.Marshal(v.Str)
	}
}

// MultipartString renders the value as it is written into the submission
// payload: object-valued kinds as their JSON encoding, scalars and booleans
// as plain strings.
func (v FieldValue) MultipartString() (string, error) {
	if v.IsObject() {
		b, err := v.MarshalJSON()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	if v.Kind == KindBool {
		if v.Bool {
			return "true", nil
		}
		return "false", nil
	}
	return v.Str, nil
}

// FormValues maps a top-level field id to its runtime value.
type FormValues map[string]FieldValue

// Clone returns a deep copy of the values map.
func (fv FormValues) Clone() FormValues {
	out := make(FormValues, len(fv))
	for id, v := range fv {
		c := v
		if v.List != nil {
			c.List = append([]string(nil), v.List...)
		}
		if v.Rows != nil {
			c.Rows = make([]RepeaterRow, len(v.Rows))
			for i, row := range v.Rows {
				r := make(RepeaterRow, len(row))
				for k, val := range row {
					r[k] = val
				}
				c.Rows[i] = r
			}
		}
		if v.Vars != nil {
			c.Vars = make(map[string]string, len(v.Vars))
			for k, val := range v.Vars {
				c.Vars[k] = val
			}
		}
		out[id] = c
	}
	return out
}

// FileUpload is one selected file for an upload field. Content is held in
// memory; uploads are bounded upstream by the transport layer.
type FileUpload struct {
	Name        string
	ContentType string
	Content     []byte
}

// FileValues maps an upload field id to its ordered selected files.
type FileValues map[string][]FileUpload

// FieldErrors maps a field id to a human-readable validation message.
type FieldErrors map[string]string
