package model

// SearchHit is one opaque document returned by the search service. The portal
// does not interpret hit contents; it passes them through to the client.
type SearchHit map[string]any

// SearchResultBlock groups the hits of a single index, with the service's
// pagination echo. ProcessingTimeMs is a pointer so a missing value encodes
// as null rather than zero.
type SearchResultBlock struct {
	IndexUID           string      `json:"indexUid"`
	Hits               []SearchHit `json:"hits"`
	EstimatedTotalHits int         `json:"estimatedTotalHits"`
	Limit              int         `json:"limit"`
	Offset             int         `json:"offset"`
	ProcessingTimeMs   *int64      `json:"processingTimeMs"`
}

// SearchResponse is the aggregated response served on /api/search.
type SearchResponse struct {
	Query   string              `json:"query"`
	Limit   int                 `json:"limit"`
	Offset  int                 `json:"offset"`
	Host    string              `json:"host"`
	Results []SearchResultBlock `json:"results"`
}

// SearchRequest is the POST /api/search body. Query and Q are aliases; Query
// wins when both are set.
type SearchRequest struct {
	Query  string `json:"query"`
	Q      string `json:"q"`
	Limit  *int   `json:"limit,omitempty"`
	Offset *int   `json:"offset,omitempty"`
}

// Term returns the effective query string.
func (r SearchRequest) Term() string {
	if r.Query != "" {
		return r.Query
	}
	return r.Q
}
