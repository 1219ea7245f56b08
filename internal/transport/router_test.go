package transport

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/shaheenweb/portal/internal/cms"
	"github.com/shaheenweb/portal/internal/config"
	"github.com/shaheenweb/portal/internal/form"
	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/internal/search"
	"github.com/shaheenweb/portal/model"
)

// testSessionView mirrors the session wire shape for decoding in tests.
type testSessionView struct {
	SessionID   string                     `json:"sessionId"`
	FormID      string                     `json:"formId"`
	CurrentPage int                        `json:"currentPage"`
	PageCount   int                        `json:"pageCount"`
	Values      map[string]json.RawMessage `json:"values"`
	Errors      map[string]string          `json:"errors"`
	Status      string                     `json:"status"`
	Message     string                     `json:"message"`
	Focus       *struct {
		FieldID     string `json:"fieldId"`
		ScrolledTop bool   `json:"scrolledTop"`
	} `json:"focus"`
}

// newFormCMS serves a two-page form schema and accepts its submissions.
func newFormCMS(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/form-builder/forms/doc-1":
			json.NewEncoder(w).Encode(map[string]any{
				"data": map[string]any{
					"documentId": "doc-1",
					"name":       "Contact",
					"fields": []map[string]any{
						{"id": "basics", "type": "section", "label": "Basics", "childFields": []map[string]any{
							{"id": "name", "type": "text", "label": "Full Name", "required": true},
						}},
						{"id": "details", "type": "section", "label": "Details", "childFields": []map[string]any{
							{"id": "city", "type": "text", "label": "City", "required": true},
							{"id": "photo", "type": "upload", "label": "Photo"},
						}},
					},
				},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/form-builder/forms/doc-1/submit":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// newSearchBackend serves an index list and echoing multi-search results.
func newSearchBackend(t *testing.T, indexes []string, searchStatus int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/indexes":
			if indexes == nil {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			entries := make([]map[string]string, len(indexes))
			for i, uid := range indexes {
				entries[i] = map[string]string{"uid": uid}
			}
			json.NewEncoder(w).Encode(map[string]any{"results": entries})
		case "/multi-search":
			if searchStatus != 0 {
				w.WriteHeader(searchStatus)
				return
			}
			var body struct {
				Queries []search.MultiQuery `json:"queries"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			results := make([]map[string]any, len(body.Queries))
			for i, q := range body.Queries {
				results[i] = map[string]any{
					"indexUid": q.IndexUID,
					"hits":     []map[string]any{{"title": "result for " + q.Q}},
				}
			}
			json.NewEncoder(w).Encode(map[string]any{"results": results})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestRouter(t *testing.T, cmsURL, meiliURL string) http.Handler {
	t.Helper()

	cfg := config.Defaults()
	cfg.CMS.BaseURL = cmsURL
	cfg.Meilisearch.Host = meiliURL
	cfg.Observability.Metrics.Enabled = false

	cmsClient := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Timeout, nil)
	meiliClient := search.NewMeiliClient(cfg.Meilisearch.Host, "search-key", "", cfg.Meilisearch.Timeout)
	cache := search.NewIndexCache(cfg.Search.IndexCacheTTL)
	agg := search.NewAggregator(meiliClient, cache, nil, zap.NewNop(), cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	return NewRouter(Dependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		CMS:      cmsClient,
		Search:   agg,
		Sessions: form.NewSessionStore(time.Minute, nil),
	})
}

func decodeErrorCode(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&envelope); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return envelope.Error.Code
}

func TestRouter_Health(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestRouter_SearchGet(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news", "events"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=admissions&limit=5&offset=10", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp model.SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Query != "admissions" || resp.Limit != 5 || resp.Offset != 10 {
		t.Errorf("echo = %q/%d/%d", resp.Query, resp.Limit, resp.Offset)
	}
	if len(resp.Results) != 2 {
		t.Errorf("results = %d, want one block per index", len(resp.Results))
	}
}

func TestRouter_SearchGet_emptyQuery(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != model.ErrBadRequest {
		t.Errorf("code = %q, want BAD_REQUEST", code)
	}
}

func TestRouter_SearchPost_memberAliases(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	for _, body := range []string{`{"query":"books"}`, `{"q":"books"}`} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("body %s: status = %d", body, rec.Code)
		}
		var resp model.SearchResponse
		json.NewDecoder(rec.Body).Decode(&resp)
		if resp.Query != "books" {
			t.Errorf("body %s: query echo = %q", body, resp.Query)
		}
	}
}

func TestRouter_Search_noIndexes(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, nil, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != model.ErrNoIndexes {
		t.Errorf("code = %q, want NO_INDEXES", code)
	}
}

func TestRouter_Search_upstreamFailure(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, http.StatusInternalServerError)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != model.ErrUpstreamFailure {
		t.Errorf("code = %q, want UPSTREAM_FAILURE", code)
	}
}

func TestRouter_GetForm(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/forms/doc-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var schema model.FormSchema
	if err := json.NewDecoder(rec.Body).Decode(&schema); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if schema.DocumentID != "doc-1" || len(schema.Fields) != 2 {
		t.Errorf("schema = %+v", schema)
	}
}

func TestRouter_SessionFlow(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	do := func(method, path, body string) (*httptest.ResponseRecorder, testSessionView) {
		t.Helper()
		var reader *strings.Reader
		if body == "" {
			reader = strings.NewReader("")
		} else {
			reader = strings.NewReader(body)
		}
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, reader)
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		router.ServeHTTP(rec, req)

		var view testSessionView
		if rec.Code < 300 {
			if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
				t.Fatalf("%s %s: decode: %v", method, path, err)
			}
		}
		return rec, view
	}

	// Start a session.
	rec, view := do(http.MethodPost, "/api/forms/doc-1/sessions", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if view.SessionID == "" || view.FormID != "doc-1" {
		t.Fatalf("view = %+v", view)
	}
	if view.PageCount != 2 || view.CurrentPage != 0 || view.Status != "idle" {
		t.Errorf("fresh session = %+v", view)
	}
	base := "/api/sessions/" + view.SessionID

	// Next on an empty required page stays put and reports the error.
	rec, view = do(http.MethodPost, base+"/next", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("next: status = %d", rec.Code)
	}
	if view.CurrentPage != 0 {
		t.Errorf("blocked next advanced to page %d", view.CurrentPage)
	}
	if view.Errors["name"] != "Full Name is required." {
		t.Errorf("errors = %v", view.Errors)
	}
	if view.Focus == nil || view.Focus.FieldID != "name" {
		t.Errorf("focus = %+v, want name", view.Focus)
	}

	// Fill the page; the edit clears the error and next advances.
	rec, view = do(http.MethodPost, base+"/values", `{"ops":[{"op":"set","fieldId":"name","value":"Ali"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("values: status = %d", rec.Code)
	}
	if _, stale := view.Errors["name"]; stale {
		t.Error("edit did not clear the field error")
	}

	rec, view = do(http.MethodPost, base+"/next", "")
	if view.CurrentPage != 1 {
		t.Fatalf("next after fill: page = %d, want 1", view.CurrentPage)
	}
	if view.Focus == nil || !view.Focus.ScrolledTop {
		t.Errorf("focus = %+v, want scroll to top", view.Focus)
	}

	// Submit with page 2 incomplete: state stays, the wizard reports the
	// page holding the first invalid field.
	rec, view = do(http.MethodPost, base+"/submit", "")
	if view.Status != "error" || view.CurrentPage != 1 {
		t.Errorf("submit with errors: status %q page %d", view.Status, view.CurrentPage)
	}
	if view.Errors["city"] == "" {
		t.Errorf("errors = %v, want city flagged", view.Errors)
	}

	// Complete and submit for real.
	_, _ = do(http.MethodPost, base+"/values", `{"ops":[{"op":"set","fieldId":"city","value":"Lahore"}]}`)
	rec, view = do(http.MethodPost, base+"/submit", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("submit: status = %d", rec.Code)
	}
	if view.Status != "success" {
		t.Fatalf("submit: status = %q, message = %q", view.Status, view.Message)
	}
	if view.CurrentPage != 0 {
		t.Errorf("accepted submit did not reset to page 0, got %d", view.CurrentPage)
	}
	if !strings.Contains(view.Message, "Thanks!") {
		t.Errorf("message = %q", view.Message)
	}
}

func TestRouter_SetValues_badOps(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forms/doc-1/sessions", strings.NewReader("")))
	var view testSessionView
	json.NewDecoder(rec.Body).Decode(&view)
	base := "/api/sessions/" + view.SessionID

	tests := []struct {
		name, body string
	}{
		{"emptyOps", `{"ops":[]}`},
		{"missingFieldId", `{"ops":[{"op":"set","value":"x"}]}`},
		{"unknownOp", `{"ops":[{"op":"frobnicate","fieldId":"name"}]}`},
		{"invalidJSON", `{`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, base+"/values", strings.NewReader(tt.body))
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", tt.name, rec.Code)
		}
	}
}

func TestRouter_UnknownSession(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body); code != model.ErrSessionNotFound {
		t.Errorf("code = %q, want SESSION_NOT_FOUND", code)
	}
}

func TestRouter_UploadFiles(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forms/doc-1/sessions", strings.NewReader("")))
	var view testSessionView
	json.NewDecoder(rec.Body).Decode(&view)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", "me.jpg")
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("jpeg bytes"))
	mw.Close()

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+view.SessionID+"/files/photo", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload: status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestRouter_ValidationFailureMetrics(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	cfg := config.Defaults()
	cfg.CMS.BaseURL = cmsSrv.URL
	cfg.Meilisearch.Host = meiliSrv.URL
	cfg.Observability.Metrics.Enabled = false

	metrics := observability.InitMetrics(prometheus.NewRegistry())
	cmsClient := cms.NewClient(cfg.CMS.BaseURL, cfg.CMS.Timeout, metrics)
	meiliClient := search.NewMeiliClient(cfg.Meilisearch.Host, "search-key", "", cfg.Meilisearch.Timeout)
	cache := search.NewIndexCache(cfg.Search.IndexCacheTTL)
	agg := search.NewAggregator(meiliClient, cache, metrics, zap.NewNop(), cfg.Search.DefaultLimit, cfg.Search.MaxLimit)

	router := NewRouter(Dependencies{
		Config:   cfg,
		Logger:   zap.NewNop(),
		Metrics:  metrics,
		CMS:      cmsClient,
		Search:   agg,
		Sessions: form.NewSessionStore(time.Minute, metrics),
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forms/doc-1/sessions", strings.NewReader("")))
	var view testSessionView
	json.NewDecoder(rec.Body).Decode(&view)

	// Next on an empty required text field blocks and counts the failure.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+view.SessionID+"/next", strings.NewReader("")))
	if rec.Code != http.StatusOK {
		t.Fatalf("next: status = %d", rec.Code)
	}

	if got := testutil.ToFloat64(metrics.ValidationFailuresTotal.WithLabelValues("text")); got != 1 {
		t.Errorf(`validation_failures{text} = %v, want 1`, got)
	}
	if got := testutil.ToFloat64(metrics.PageAdvancesTotal.WithLabelValues("next", "blocked")); got != 1 {
		t.Errorf(`page_advances{next,blocked} = %v, want 1`, got)
	}
}

func TestRouter_GotoJumpsWithoutValidation(t *testing.T) {
	cmsSrv := newFormCMS(t)
	defer cmsSrv.Close()
	meiliSrv := newSearchBackend(t, []string{"news"}, 0)
	defer meiliSrv.Close()

	router := newTestRouter(t, cmsSrv.URL, meiliSrv.URL)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/forms/doc-1/sessions", strings.NewReader("")))
	var view testSessionView
	json.NewDecoder(rec.Body).Decode(&view)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+view.SessionID+"/goto", strings.NewReader(`{"page":1}`))
	router.ServeHTTP(rec, req)

	json.NewDecoder(rec.Body).Decode(&view)
	if view.CurrentPage != 1 {
		t.Errorf("goto with empty required fields: page = %d, want 1", view.CurrentPage)
	}
	if len(view.Errors) != 0 {
		t.Errorf("goto validated: errors = %v", view.Errors)
	}
}
