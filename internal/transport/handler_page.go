package transport

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shaheenweb/portal/internal/cms"
	"github.com/shaheenweb/portal/internal/observability"
)

// handleGetPage serves GET /api/pages/{slug}, proxying the localized page
// entry with its content sections populated.
func handleGetPage(client *cms.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")
		locale := r.URL.Query().Get("locale")

		ctx, span := observability.StartSpan(r.Context(), "cms.get_page",
			observability.AttrPageSlug.String(slug),
		)
		raw, err := client.GetPage(ctx, slug, locale)
		observability.EndSpanWithError(span, err)

		if err != nil {
			WriteError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(struct {
			Data json.RawMessage `json:"data"`
		}{Data: raw})
	}
}
