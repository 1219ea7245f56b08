package form

import (
	"fmt"
	"regexp"

	"github.com/shaheenweb/portal/model"
)

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	cnicPattern  = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
	phonePattern = regexp.MustCompile(`^\+?[\d\s-]+$`)
)

// Validate checks the given fields against the current values and files and
// returns one message per failing field. Failures are data, never errors:
// the caller decides whether they block navigation or submission.
//
// Optional fields are only checked when non-empty; required fields fail with
// a "{label} is required." message when semantically empty for their kind.
func Validate(fields []model.FieldDefinition, values model.FormValues, files model.FileValues) model.FieldErrors {
	errs := make(model.FieldErrors)

	for _, field := range fields {
		if field.ID == "" {
			continue
		}
		kind := field.Kind()
		value := values[field.ID]
		label := field.DisplayLabel()

		if field.Required && kind != model.FieldStatement {
			missing := false
			switch kind {
			case model.FieldUpload:
				missing = len(files[field.ID]) == 0
			default:
				missing = value.IsEmpty()
			}
			if missing {
				errs[field.ID] = fmt.Sprintf("%s is required.", label)
				continue
			}
		}

		// Optional fields that were left empty pass untouched. Booleans and
		// statements fall through: false is a legal value and statement
		// completeness is checked per child below.
		if value.IsEmpty() && kind != model.FieldBoolean && kind != model.FieldStatement {
			continue
		}

		switch kind {
		case model.FieldEmail:
			if !emailPattern.MatchString(value.Str) {
				errs[field.ID] = "Invalid email address."
			}
		case model.FieldCNIC:
			if !cnicPattern.MatchString(value.Str) {
				errs[field.ID] = "Invalid CNIC (Format: 12345-1234567-1)."
			}
		case model.FieldPhone:
			if !phonePattern.MatchString(value.Str) {
				errs[field.ID] = "Invalid phone number."
			}
		case model.FieldStatement:
			if msg := validateStatement(field, value.Vars); msg != "" {
				errs[field.ID] = msg
			}
		}
	}

	return errs
}

// validateStatement checks that every required child variable has a value in
// the statement's variable map. The error attaches to the parent statement
// field: one error slot per visible field.
func validateStatement(field model.FieldDefinition, vars map[string]string) string {
	for _, child := range field.ChildFields {
		if !child.Required {
			continue
		}
		// The variable map may be keyed by the template token, which matches
		// either the child's id or its label.
		if vars[child.ID] != "" {
			continue
		}
		if child.Label != "" && vars[child.Label] != "" {
			continue
		}
		return fmt.Sprintf("%s is required.", child.DisplayLabel())
	}
	return ""
}

// FirstInvalid returns the id of the first field in document order that has
// an entry in errs, or "" when errs is empty.
func FirstInvalid(fields []model.FieldDefinition, errs model.FieldErrors) string {
	for _, field := range fields {
		if _, ok := errs[field.ID]; ok {
			return field.ID
		}
	}
	return ""
}
