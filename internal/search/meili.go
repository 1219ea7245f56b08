// Package search implements the search aggregation subsystem: a Meilisearch
// client, an aggregator that discovers indexes and fans queries out to all
// of them, and a debounced live-search client for interactive callers.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/shaheenweb/portal/model"
)

const maxResponseBytes = 10 << 20 // 10MB

// MeiliClient speaks the Meilisearch HTTP protocol. Index listing uses the
// admin credential tier; queries use the search tier.
type MeiliClient struct {
	host      string
	searchKey string
	adminKey  string
	http      *http.Client
}

// NewMeiliClient builds a client for the search service at host. An empty
// adminKey falls back to the search key.
func NewMeiliClient(host, searchKey, adminKey string, timeout time.Duration) *MeiliClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if adminKey == "" {
		adminKey = searchKey
	}
	return &MeiliClient{
		host:      strings.TrimRight(host, "/"),
		searchKey: searchKey,
		adminKey:  adminKey,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxConnsPerHost:     50,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Host returns the configured service host.
func (c *MeiliClient) Host() string { return c.host }

func (c *MeiliClient) authorize(req *http.Request, key string) {
	if key == "" {
		return
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("X-Meili-API-Key", key)
}

// HealthCheck probes the service's health endpoint.
func (c *MeiliClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/health", nil)
	if err != nil {
		return fmt.Errorf("meili: build request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("meili: unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("meili: health returned status %d", resp.StatusCode)
	}
	return nil
}

// ListIndexes fetches the uids of all indexes known to the service. The
// endpoint responds either with an object holding a results array or, on
// older versions, a bare array.
func (c *MeiliClient) ListIndexes(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/indexes", nil)
	if err != nil {
		return nil, fmt.Errorf("meili: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, c.adminKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("meili: list indexes: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("meili: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("meili: list indexes returned status %d", resp.StatusCode)
	}

	type indexEntry struct {
		UID string `json:"uid"`
	}

	var uids []string
	var wrapped struct {
		Results []indexEntry `json:"results"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Results != nil {
		for _, e := range wrapped.Results {
			if e.UID != "" {
				uids = append(uids, e.UID)
			}
		}
		return uids, nil
	}

	var bare []indexEntry
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("meili: decode index list: %w", err)
	}
	for _, e := range bare {
		if e.UID != "" {
			uids = append(uids, e.UID)
		}
	}
	return uids, nil
}

// MultiQuery is one sub-query of a batched multi-search call.
type MultiQuery struct {
	IndexUID string `json:"indexUid"`
	Q        string `json:"q"`
	Limit    int    `json:"limit"`
	Offset   int    `json:"offset"`
}

// RawResultBlock is one index's result as the service reports it. Members
// are pointers so the aggregator can tell absent from zero when defaulting.
type RawResultBlock struct {
	IndexUID           *string           `json:"indexUid"`
	Hits               []model.SearchHit `json:"hits"`
	Limit              *int              `json:"limit"`
	Offset             *int              `json:"offset"`
	EstimatedTotalHits *int              `json:"estimatedTotalHits"`
	ProcessingTimeMs   *int64            `json:"processingTimeMs"`
}

// isTimeout reports whether err is a client-side deadline expiry, either
// from the request context or from the HTTP client's own timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// MultiSearch issues one batched call covering all queries. A non-success
// response surfaces as an UPSTREAM_FAILURE envelope and a timed-out request
// as UPSTREAM_TIMEOUT, so callers can tell a broken service apart from a
// slow one and from empty results. Other transport errors come back as
// plain errors.
func (c *MeiliClient) MultiSearch(ctx context.Context, queries []MultiQuery) ([]RawResultBlock, error) {
	payload, err := json.Marshal(map[string]any{"queries": queries})
	if err != nil {
		return nil, fmt.Errorf("meili: marshal queries: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/multi-search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("meili: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req, c.searchKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, model.NewUpstreamTimeoutError()
		}
		return nil, fmt.Errorf("meili: multi-search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("meili: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		details := strings.TrimSpace(string(body))
		if len(details) > 512 {
			details = details[:512]
		}
		return nil, model.NewUpstreamFailureError("Search request failed: " + details)
	}

	var decoded struct {
		Results []RawResultBlock `json:"results"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("meili: decode response: %w", err)
	}
	return decoded.Results, nil
}
