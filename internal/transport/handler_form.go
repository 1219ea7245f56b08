package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shaheenweb/portal/internal/cms"
	"github.com/shaheenweb/portal/internal/form"
	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/model"
)

// focusView reports the side effects the wizard requested from the renderer
// during the last operation.
type focusView struct {
	FieldID     string `json:"fieldId,omitempty"`
	ScrolledTop bool   `json:"scrolledTop,omitempty"`
}

// sessionView is the wire representation of a wizard session.
type sessionView struct {
	SessionID   string            `json:"sessionId"`
	FormID      string            `json:"formId"`
	CurrentPage int               `json:"currentPage"`
	PageCount   int               `json:"pageCount"`
	Values      model.FormValues  `json:"values"`
	Errors      model.FieldErrors `json:"errors"`
	Status      form.Status       `json:"status"`
	Message     string            `json:"message,omitempty"`
	Focus       *focusView        `json:"focus,omitempty"`
}

// viewOf renders a session. Callers hold the session lock.
func viewOf(sess *form.Session) sessionView {
	w := sess.Wizard
	view := sessionView{
		SessionID:   sess.ID,
		FormID:      sess.FormID,
		CurrentPage: w.CurrentPage,
		PageCount:   w.PageCount(),
		Values:      w.Values,
		Errors:      w.Errors,
		Status:      w.Status,
		Message:     w.Message,
	}
	if f := sess.Focus; f != nil && (f.FieldID != "" || f.ScrolledTop) {
		view.Focus = &focusView{FieldID: f.FieldID, ScrolledTop: f.ScrolledTop}
	}
	return view
}

// handleGetForm serves GET /api/forms/{documentId}, proxying the schema from
// the CMS with field types already normalized.
func handleGetForm(client *cms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentId")
		locale := r.URL.Query().Get("locale")

		ctx, span := observability.StartSpan(r.Context(), "cms.get_form",
			observability.AttrFormID.String(documentID),
		)
		schema, err := client.GetForm(ctx, documentID, locale)
		observability.EndSpanWithError(span, err)

		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, schema)
	}
}

// handleCreateSession serves POST /api/forms/{documentId}/sessions. It
// fetches the schema, seeds a wizard, and returns the new session state.
func handleCreateSession(client *cms.Client, store *form.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		documentID := chi.URLParam(r, "documentId")

		var body struct {
			Locale string `json:"locale"`
		}
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				WriteError(w, model.NewBadRequestError("invalid JSON body"))
				return
			}
		}

		schema, err := client.GetForm(r.Context(), documentID, body.Locale)
		if err != nil {
			WriteError(w, err)
			return
		}

		focus := &form.FocusRecorder{}
		wizard := form.NewWizard(schema,
			form.WithSubmitter(client),
			form.WithFocusSink(focus),
		)
		sess := store.Create(documentID, wizard, focus)

		sess.Lock()
		defer sess.Unlock()
		WriteJSON(w, http.StatusCreated, viewOf(sess))
	}
}

// handleGetSession serves GET /api/sessions/{sessionId}.
func handleGetSession(store *form.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		sess.Lock()
		defer sess.Unlock()
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// valueOp is one edit operation against a wizard session. The op member
// selects which of the remaining members apply.
type valueOp struct {
	Op       string `json:"op"`
	FieldID  string `json:"fieldId"`
	Value    string `json:"value"`
	Bool     bool   `json:"bool"`
	Option   string `json:"option"`
	Selected bool   `json:"selected"`
	Variable string `json:"variable"`
	RowIndex int    `json:"rowIndex"`
	ChildID  string `json:"childId"`
	Group    int    `json:"group"`
	Index    int    `json:"index"`
	Digit    string `json:"digit"`
}

// handleSetValues serves POST /api/sessions/{sessionId}/values, applying a
// batch of edit operations in order.
func handleSetValues(store *form.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}

		var body struct {
			Ops []valueOp `json:"ops"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		if len(body.Ops) == 0 {
			WriteError(w, model.NewBadRequestError("ops must not be empty"))
			return
		}

		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		wiz := sess.Wizard
		for _, op := range body.Ops {
			if op.FieldID == "" {
				WriteError(w, model.NewBadRequestError("op is missing fieldId"))
				return
			}
			switch op.Op {
			case "set":
				wiz.SetScalar(op.FieldID, op.Value)
			case "setBool":
				wiz.SetBool(op.FieldID, op.Bool)
			case "toggleOption":
				wiz.ToggleOption(op.FieldID, op.Option, op.Selected)
			case "setVar":
				wiz.SetStatementVar(op.FieldID, op.Variable, op.Value)
			case "addRow":
				wiz.AddRow(op.FieldID)
			case "removeRow":
				wiz.RemoveRow(op.FieldID, op.RowIndex)
			case "setCell":
				wiz.SetCell(op.FieldID, op.RowIndex, op.ChildID, op.Value)
			case "cnicDigit":
				pos := form.BoxPos{Group: op.Group, Index: op.Index}
				if next, ok := wiz.SetCNICDigit(op.FieldID, pos, op.Digit); ok {
					sess.Focus.FieldID = cnicBoxID(op.FieldID, next)
				}
			case "cnicBackspace":
				pos := form.BoxPos{Group: op.Group, Index: op.Index}
				next := wiz.CNICBackspace(op.FieldID, pos)
				sess.Focus.FieldID = cnicBoxID(op.FieldID, next)
			default:
				WriteError(w, model.NewBadRequestError("unknown op: "+op.Op))
				return
			}
		}

		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// cnicBoxID names one CNIC input box for focus targeting.
func cnicBoxID(fieldID string, pos form.BoxPos) string {
	return fmt.Sprintf("%s-%d-%d", fieldID, pos.Group, pos.Index)
}

// handleNext serves POST /api/sessions/{sessionId}/next.
func handleNext(store *form.SessionStore, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		advanced := sess.Wizard.Next()
		outcome := "ok"
		if !advanced {
			outcome = "blocked"
			recordValidationFailures(metrics, sess.Wizard)
		}
		metrics.RecordPageAdvance("next", outcome)
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// handlePrev serves POST /api/sessions/{sessionId}/prev.
func handlePrev(store *form.SessionStore, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		sess.Wizard.Prev()
		metrics.RecordPageAdvance("prev", "ok")
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// handleGoto serves POST /api/sessions/{sessionId}/goto with {"page": n}.
// Page indicator dots allow direct jumps without validation.
func handleGoto(store *form.SessionStore, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}

		var body struct {
			Page int `json:"page"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		sess.Wizard.Jump(body.Page)
		metrics.RecordPageAdvance("goto", "ok")
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// handleUploadFiles serves POST /api/sessions/{sessionId}/files/{fieldId}.
// The multipart body's files replace the field's current selection; an empty
// body clears it.
func handleUploadFiles(store *form.SessionStore, maxBytes int64, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		fieldID := chi.URLParam(r, "fieldId")

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			WriteError(w, model.NewBadRequestError("invalid multipart body"))
			return
		}

		var uploads []model.FileUpload
		if r.MultipartForm != nil {
			for _, headers := range r.MultipartForm.File {
				for _, header := range headers {
					f, err := header.Open()
					if err != nil {
						WriteError(w, model.NewBadRequestError("unreadable file part"))
						return
					}
					content, err := io.ReadAll(f)
					f.Close()
					if err != nil {
						WriteError(w, model.NewBadRequestError("unreadable file part"))
						return
					}
					uploads = append(uploads, model.FileUpload{
						Name:        header.Filename,
						ContentType: header.Header.Get("Content-Type"),
						Content:     content,
					})
					metrics.RecordUpload(header.Size)
				}
			}
		}

		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		sess.Wizard.AttachFiles(fieldID, uploads)
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// handleSubmit serves POST /api/sessions/{sessionId}/submit. A validation
// failure keeps the state and reports the page holding the first error; an
// accepted submission resets the wizard.
func handleSubmit(store *form.SessionStore, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Get(chi.URLParam(r, "sessionId"))
		if err != nil {
			WriteError(w, err)
			return
		}

		sess.Lock()
		defer sess.Unlock()
		resetFocus(sess)

		ctx, span := observability.StartSpan(r.Context(), "form.submit",
			observability.AttrFormID.String(sess.FormID),
			observability.AttrSessionID.String(sess.ID),
		)
		started := time.Now()
		sess.Wizard.Submit(ctx)
		span.End()

		if sess.Wizard.Status == form.StatusError && sess.Wizard.Message == form.MsgFixErrors {
			recordValidationFailures(metrics, sess.Wizard)
		}
		metrics.RecordSubmission(string(sess.Wizard.Status), time.Since(started))
		WriteJSON(w, http.StatusOK, viewOf(sess))
	}
}

// recordValidationFailures counts each failing field under its type label.
// Callers hold the session lock.
func recordValidationFailures(metrics *observability.Metrics, wiz *form.Wizard) {
	for _, field := range wiz.Fields() {
		if _, failed := wiz.Errors[field.ID]; failed {
			metrics.RecordValidationFailure(string(field.Kind()))
		}
	}
}

// resetFocus clears recorded focus targets before a new operation. Callers
// hold the session lock.
func resetFocus(sess *form.Session) {
	if sess.Focus != nil {
		sess.Focus.Reset()
	}
}
