package form

import (
	"context"

	"github.com/shaheenweb/portal/model"
)

// Status tracks the submission lifecycle of a wizard.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusSubmitting Status = "submitting"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// User-facing submission messages, bilingual per the site's locales.
const (
	MsgFixErrors     = "برائے مہربانی غلطیاں ٹھیک کریں۔ / Please fix the errors before submitting."
	MsgSubmitSuccess = "شکریہ! آپ کا جواب محفوظ ہو گیا ہے۔ / Thanks! Your response has been recorded."
	MsgSubmitFailure = "فارم جمع نہیں ہو سکا، دوبارہ کوشش کریں۔ / Unable to submit the form right now. Please try again."
)

// FocusSink receives the focus and scroll side effects the engine decides
// on. Validation stays free of rendering concerns; the rendering layer
// chooses how to honor the targets.
type FocusSink interface {
	// FocusField asks the renderer to scroll to and focus a failing field.
	FocusField(fieldID string)
	// ScrollTop asks the renderer to scroll to the top of the form.
	ScrollTop()
}

type noopFocus struct{}

func (noopFocus) FocusField(string) {}
func (noopFocus) ScrollTop()        {}

// FocusRecorder is a FocusSink that remembers the most recent targets so a
// stateless renderer can poll them after driving the engine. Reset before
// each operation to read only the effects that operation produced.
type FocusRecorder struct {
	FieldID     string
	ScrolledTop bool
}

func (r *FocusRecorder) FocusField(fieldID string) { r.FieldID = fieldID }

func (r *FocusRecorder) ScrollTop() { r.ScrolledTop = true }

// Reset clears the recorded targets.
func (r *FocusRecorder) Reset() {
	r.FieldID = ""
	r.ScrolledTop = false
}

// SubmitReceipt is the outcome of a transport-successful submission attempt.
// Accepted is false when the server reported a structured error; Message
// then carries the server-provided user-facing text, if any.
type SubmitReceipt struct {
	Accepted bool
	Message  string
}

// Submitter delivers a serialized submission to the CMS endpoint. A non-nil
// error means the request never completed (network failure or similar).
type Submitter interface {
	SubmitForm(ctx context.Context, target string, values model.FormValues, files model.FileValues) (SubmitReceipt, error)
}

// Wizard interprets one form schema for one filling session: it owns the
// value, file, and error maps, the current page index, and the submission
// status. All methods are single-goroutine; a session is driven by one user.
type Wizard struct {
	schema    model.FormSchema
	fields    []model.FieldDefinition
	submitter Submitter
	focus     FocusSink

	CurrentPage int
	Values      model.FormValues
	Files       model.FileValues
	Errors      model.FieldErrors
	Status      Status
	Message     string
}

// WizardOption configures a Wizard.
type WizardOption func(*Wizard)

// WithFocusSink installs a focus/scroll callback target.
func WithFocusSink(sink FocusSink) WizardOption {
	return func(w *Wizard) {
		if sink != nil {
			w.focus = sink
		}
	}
}

// WithSubmitter installs the submission client.
func WithSubmitter(s Submitter) WizardOption {
	return func(w *Wizard) { w.submitter = s }
}

// NewWizard builds a wizard for the given schema with freshly seeded state.
func NewWizard(schema model.FormSchema, opts ...WizardOption) *Wizard {
	w := &Wizard{
		schema: schema,
		fields: Flatten(schema),
		focus:  noopFocus{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.Reset()
	return w
}

// Reset discards all entered state and returns to the first page. It runs at
// construction, after a successful submit, and whenever the schema changes.
func (w *Wizard) Reset() {
	w.Values = BuildInitialValues(w.fields)
	w.Files = make(model.FileValues)
	w.Errors = make(model.FieldErrors)
	w.Status = StatusIdle
	w.Message = ""
	w.CurrentPage = 0
}

// Schema returns the schema the wizard interprets.
func (w *Wizard) Schema() model.FormSchema { return w.schema }

// Fields returns the flattened field list in document order.
func (w *Wizard) Fields() []model.FieldDefinition { return w.fields }

// PageCount returns the number of wizard pages.
func (w *Wizard) PageCount() int { return len(w.schema.Sections()) }

// Page returns the section shown on the current page.
func (w *Wizard) Page() model.FieldDefinition {
	sections := w.schema.Sections()
	if len(sections) == 0 {
		return model.FieldDefinition{}
	}
	return sections[w.CurrentPage]
}

// pageFields returns the fields of the current page.
func (w *Wizard) pageFields() []model.FieldDefinition {
	return w.Page().ChildFields
}

// Next validates only the current page. On failure it records the errors,
// asks the renderer to focus the first failing field, and stays put. On
// success it scrolls to the top and advances one page, clamped to the last.
func (w *Wizard) Next() bool {
	w.Message = ""

	pageErrs := Validate(w.pageFields(), w.Values, w.Files)
	if len(pageErrs) > 0 {
		w.Errors = pageErrs
		if first := FirstInvalid(w.pageFields(), pageErrs); first != "" {
			w.focus.FocusField(first)
		}
		return false
	}

	w.focus.ScrollTop()
	if w.CurrentPage < w.PageCount()-1 {
		w.CurrentPage++
	}
	return true
}

// Prev moves back one page without validation, clamped to the first page.
func (w *Wizard) Prev() {
	w.Message = ""
	w.focus.ScrollTop()
	if w.CurrentPage > 0 {
		w.CurrentPage--
	}
}

// Jump moves directly to the given page without validation. Page indicator
// dots allow random access; out-of-range indexes are clamped.
func (w *Wizard) Jump(page int) {
	w.Message = ""
	if page < 0 {
		page = 0
	}
	if last := w.PageCount() - 1; page > last {
		page = last
	}
	w.CurrentPage = page
	w.focus.ScrollTop()
}

// Submit validates the full flattened field set. When any page fails, the
// wizard switches to the page holding the first failing field in schema
// order and focuses it. Otherwise the state is serialized and delivered.
//
// Outcomes: accepted submissions reset all state and show the bilingual
// success message; server-rejected ones show the server's message; transport
// failures show a generic bilingual message. State survives every failure so
// the user can correct and retry; no automatic retry is attempted.
func (w *Wizard) Submit(ctx context.Context) {
	allErrs := Validate(w.fields, w.Values, w.Files)
	if len(allErrs) > 0 {
		w.Errors = allErrs
		w.Status = StatusError
		w.Message = MsgFixErrors

		first := FirstInvalid(w.fields, allErrs)
		if page := PageOf(w.schema, first); page >= 0 && page != w.CurrentPage {
			w.CurrentPage = page
		}
		w.focus.FocusField(first)
		return
	}

	w.Status = StatusSubmitting
	receipt, err := w.submitter.SubmitForm(ctx, w.schema.SubmitTarget(), w.Values, w.Files)
	if err != nil {
		w.Status = StatusError
		w.Message = MsgSubmitFailure
		w.focus.ScrollTop()
		return
	}
	if !receipt.Accepted {
		w.Status = StatusError
		if receipt.Message != "" {
			w.Message = receipt.Message
		} else {
			w.Message = MsgSubmitFailure
		}
		w.focus.ScrollTop()
		return
	}

	w.Reset()
	w.Status = StatusSuccess
	w.Message = MsgSubmitSuccess
	w.focus.ScrollTop()
}

// clearError drops the stored error of an edited field, if any.
func (w *Wizard) clearError(fieldID string) {
	delete(w.Errors, fieldID)
}

// SetScalar assigns a plain string value to a field.
func (w *Wizard) SetScalar(fieldID, value string) {
	w.Values[fieldID] = model.ScalarValue(value)
	w.clearError(fieldID)
}

// SetBool assigns a boolean value to a field.
func (w *Wizard) SetBool(fieldID string, value bool) {
	w.Values[fieldID] = model.BoolValue(value)
	w.clearError(fieldID)
}

// ToggleOption adds or removes one multiselect option.
func (w *Wizard) ToggleOption(fieldID, option string, selected bool) {
	current := w.Values[fieldID].List
	next := make([]string, 0, len(current)+1)
	for _, v := range current {
		if v != option {
			next = append(next, v)
		}
	}
	if selected {
		next = append(next, option)
	}
	w.Values[fieldID] = model.ListValue(next...)
	w.clearError(fieldID)
}

// SetStatementVar writes one fill-in-the-blank variable of a statement field.
func (w *Wizard) SetStatementVar(fieldID, variable, value string) {
	vars := w.Values[fieldID].Vars
	if vars == nil {
		vars = make(map[string]string)
	}
	vars[variable] = value
	w.Values[fieldID] = model.VarsValue(vars)
	w.clearError(fieldID)
}

// AddRow appends a blank row to a repeater, seeded from its child fields.
func (w *Wizard) AddRow(fieldID string) {
	field, ok := FieldByID(w.fields, fieldID)
	if !ok {
		return
	}
	rows := append(w.Values[fieldID].Rows, BlankRow(field.ChildFields))
	w.Values[fieldID] = model.RowsValue(rows)
	w.clearError(fieldID)
}

// RemoveRow deletes a repeater row by index. Removing the only remaining row
// is a no-op: a repeater always holds at least one row.
func (w *Wizard) RemoveRow(fieldID string, rowIndex int) {
	rows := w.Values[fieldID].Rows
	if len(rows) <= 1 || rowIndex < 0 || rowIndex >= len(rows) {
		return
	}
	next := append(append([]model.RepeaterRow{}, rows[:rowIndex]...), rows[rowIndex+1:]...)
	w.Values[fieldID] = model.RowsValue(next)
	w.clearError(fieldID)
}

// SetCell writes one repeater cell addressed by (rowIndex, childID).
func (w *Wizard) SetCell(fieldID string, rowIndex int, childID, value string) {
	rows := w.Values[fieldID].Rows
	if rowIndex < 0 || rowIndex >= len(rows) {
		return
	}
	if rows[rowIndex] == nil {
		rows[rowIndex] = model.RepeaterRow{}
	}
	rows[rowIndex][childID] = value
	w.Values[fieldID] = model.RowsValue(rows)
	w.clearError(fieldID)
}

// SetCNICDigit types one digit into a CNIC box and returns the box that
// should receive focus next. Non-digit input is ignored.
func (w *Wizard) SetCNICDigit(fieldID string, pos BoxPos, ch string) (BoxPos, bool) {
	next, focus, ok := SetCNICDigit(w.Values[fieldID].Str, pos, ch)
	if !ok {
		return pos, false
	}
	w.Values[fieldID] = model.ScalarValue(next)
	w.clearError(fieldID)
	return focus, true
}

// CNICBackspace handles Backspace in a CNIC box and returns the box that
// should hold focus afterwards.
func (w *Wizard) CNICBackspace(fieldID string, pos BoxPos) BoxPos {
	next, focus := CNICBackspace(w.Values[fieldID].Str, pos)
	w.Values[fieldID] = model.ScalarValue(next)
	w.clearError(fieldID)
	return focus
}

// AttachFiles replaces the selected files of an upload field. An empty list
// clears the selection.
func (w *Wizard) AttachFiles(fieldID string, files []model.FileUpload) {
	if len(files) == 0 {
		delete(w.Files, fieldID)
	} else {
		w.Files[fieldID] = files
	}
	w.clearError(fieldID)
}
