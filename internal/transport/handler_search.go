package transport

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/internal/search"
	"github.com/shaheenweb/portal/model"
)

// handleSearchGet serves GET /api/search?q=...&limit=...&offset=....
func handleSearchGet(agg *search.Aggregator, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		limit := queryInt(r, "limit", 0)
		offset := queryInt(r, "offset", 0)
		runSearch(w, r, agg, metrics, query, limit, offset)
	}
}

// handleSearchPost serves POST /api/search with a JSON body. The body accepts
// either member name for the query, mirroring what callers actually send.
func handleSearchPost(agg *search.Aggregator, metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}
		limit := 0
		if req.Limit != nil {
			limit = *req.Limit
		}
		offset := 0
		if req.Offset != nil {
			offset = *req.Offset
		}
		runSearch(w, r, agg, metrics, req.Term(), limit, offset)
	}
}

func runSearch(w http.ResponseWriter, r *http.Request, agg *search.Aggregator, metrics *observability.Metrics, query string, limit, offset int) {
	ctx, span := observability.StartSpan(r.Context(), "search.aggregate",
		observability.AttrQuery.String(query),
	)

	started := time.Now()
	resp, err := agg.Search(ctx, query, limit, offset)
	observability.EndSpanWithError(span, err)

	if err != nil {
		metrics.RecordSearch(errorStatus(err), time.Since(started), 0)
		WriteError(w, err)
		return
	}

	metrics.RecordSearch("ok", time.Since(started), len(resp.Results))
	WriteJSON(w, http.StatusOK, resp)
}

// errorStatus derives a metrics label from an error's envelope code.
func errorStatus(err error) string {
	if ee, ok := err.(*model.ErrorEnvelope); ok {
		return ee.Code
	}
	return model.ErrInternalError
}

// queryInt extracts an integer query param with a default.
func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
