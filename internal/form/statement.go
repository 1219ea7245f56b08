package form

import (
	"strings"

	"github.com/shaheenweb/portal/model"
)

// SegmentKind discriminates statement template segments.
type SegmentKind int

const (
	// SegmentText is literal template text, rendered verbatim.
	SegmentText SegmentKind = iota
	// SegmentVariable is a bracketed token, rendered as an inline input
	// bound to the statement's variable map under the token name.
	SegmentVariable
)

// Segment is one piece of a parsed statement template.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	Text     string      `json:"text,omitempty"`
	Variable string      `json:"variable,omitempty"`
}

// ParseStatement splits a template like
//
//	"The applicant [name] was born on [dob]"
//
// into alternating text and variable segments. Unterminated brackets are
// treated as literal text.
func ParseStatement(template string) []Segment {
	var segments []Segment
	rest := template
	for {
		open := strings.Index(rest, "[")
		if open < 0 {
			break
		}
		end := strings.Index(rest[open:], "]")
		if end < 0 {
			break
		}
		if open > 0 {
			segments = append(segments, Segment{Kind: SegmentText, Text: rest[:open]})
		}
		segments = append(segments, Segment{
			Kind:     SegmentVariable,
			Variable: rest[open+1 : open+end],
		})
		rest = rest[open+end+1:]
	}
	if rest != "" {
		segments = append(segments, Segment{Kind: SegmentText, Text: rest})
	}
	return segments
}

// Variables returns the ordered variable names of a template.
func Variables(template string) []string {
	var names []string
	for _, seg := range ParseStatement(template) {
		if seg.Kind == SegmentVariable {
			names = append(names, seg.Variable)
		}
	}
	return names
}

// VariableHint renders a display placeholder for a variable token, with
// underscores read as spaces.
func VariableHint(variable string) string {
	return strings.ReplaceAll(variable, "_", " ")
}

// ChildForVariable finds the child definition a template token refers to,
// matching the child's label first, then its id.
func ChildForVariable(field model.FieldDefinition, variable string) (model.FieldDefinition, bool) {
	for _, child := range field.ChildFields {
		if child.Label == variable || child.ID == variable {
			return child, true
		}
	}
	return model.FieldDefinition{}, false
}
