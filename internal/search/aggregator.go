package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/shaheenweb/portal/internal/observability"
	"github.com/shaheenweb/portal/model"
)

// DefaultIndexCacheTTL bounds how long a discovered index list is reused.
const DefaultIndexCacheTTL = 5 * time.Minute

// IndexCache remembers the most recent successful index discovery. It is
// constructed once at process start and injected, so tests control its
// lifetime deterministically. Reads and refreshes are not single-flight:
// concurrent stale observers may each trigger a refresh, which is idempotent
// and cheap.
type IndexCache struct {
	ttl time.Duration

	mu          sync.RWMutex
	indexes     []string
	lastUpdated time.Time
}

// NewIndexCache creates a cache with the given TTL.
func NewIndexCache(ttl time.Duration) *IndexCache {
	if ttl <= 0 {
		ttl = DefaultIndexCacheTTL
	}
	return &IndexCache{ttl: ttl}
}

// Fresh returns the cached list while it is younger than the TTL.
func (c *IndexCache) Fresh() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.indexes == nil || time.Since(c.lastUpdated) >= c.ttl {
		return nil, false
	}
	return c.indexes, true
}

// Last returns the last good list regardless of age, and whether the cache
// has ever been populated.
func (c *IndexCache) Last() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.indexes, c.indexes != nil
}

// Store records a successful discovery.
func (c *IndexCache) Store(indexes []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indexes = append([]string{}, indexes...)
	c.lastUpdated = time.Now()
}

// Invalidate ages the cache out. For testing.
func (c *IndexCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastUpdated = time.Time{}
}

// Aggregator answers one free-text query across every known index with a
// single batched call to the search service.
type Aggregator struct {
	client       *MeiliClient
	cache        *IndexCache
	metrics      *observability.Metrics
	logger       *zap.Logger
	defaultLimit int
	maxLimit     int
}

// NewAggregator wires an aggregator to its client and cache. metrics may be
// nil.
func NewAggregator(client *MeiliClient, cache *IndexCache, metrics *observability.Metrics, logger *zap.Logger, defaultLimit, maxLimit int) *Aggregator {
	if defaultLimit <= 0 {
		defaultLimit = 20
	}
	if maxLimit <= 0 {
		maxLimit = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		client:       client,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// ClampLimit normalizes a requested page size into [1, max], applying the
// default for missing or non-positive requests.
func (a *Aggregator) ClampLimit(limit int) int {
	if limit <= 0 {
		return a.defaultLimit
	}
	if limit > a.maxLimit {
		return a.maxLimit
	}
	return limit
}

// ClampOffset normalizes a requested offset to be non-negative.
func (a *Aggregator) ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// availableIndexes returns the index list to fan out over and whether it
// came from a fresh cache. A fresh cache is reused as-is; otherwise discovery
// runs, and on discovery failure the last good list is served even when
// stale. Only a never-populated cache makes the failure hard.
func (a *Aggregator) availableIndexes(ctx context.Context) ([]string, bool) {
	if indexes, ok := a.cache.Fresh(); ok {
		a.metrics.RecordIndexCacheHit()
		return indexes, true
	}
	a.metrics.RecordIndexCacheMiss()

	indexes, err := a.client.ListIndexes(ctx)
	if err != nil {
		a.logger.Error("index discovery failed", zap.Error(err))
		last, ok := a.cache.Last()
		if ok {
			a.metrics.RecordIndexCacheStale()
		}
		return last, false
	}

	a.cache.Store(indexes)
	return indexes, false
}

// Search fans the query out to all known indexes and normalizes the result
// blocks. The query must already be non-empty; limit and offset are clamped
// defensively.
func (a *Aggregator) Search(ctx context.Context, query string, limit, offset int) (model.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.SearchResponse{}, model.NewBadRequestError("Query is required")
	}
	limit = a.ClampLimit(limit)
	offset = a.ClampOffset(offset)

	indexes, cacheHit := a.availableIndexes(ctx)
	trace.SpanFromContext(ctx).SetAttributes(
		observability.AttrIndexCount.Int(len(indexes)),
		observability.AttrCacheHit.Bool(cacheHit),
	)
	if len(indexes) == 0 {
		return model.SearchResponse{}, model.NewNoIndexesError()
	}

	queries := make([]MultiQuery, len(indexes))
	for i, uid := range indexes {
		queries[i] = MultiQuery{IndexUID: uid, Q: query, Limit: limit, Offset: offset}
	}

	started := time.Now()
	raw, err := a.client.MultiSearch(ctx, queries)
	if err != nil {
		return model.SearchResponse{}, err
	}

	results := make([]model.SearchResultBlock, len(raw))
	for i, block := range raw {
		results[i] = normalizeBlock(block, limit, offset)
	}

	a.logger.Debug("search fan-out complete",
		zap.String("query", query),
		zap.Int("indexes", len(indexes)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return model.SearchResponse{
		Query:   query,
		Limit:   limit,
		Offset:  offset,
		Host:    a.client.Host(),
		Results: results,
	}, nil
}

// normalizeBlock fills the defaults for members the service omitted:
// unknown index uid, empty hits, zero totals, null processing time.
func normalizeBlock(raw RawResultBlock, limit, offset int) model.SearchResultBlock {
	block := model.SearchResultBlock{
		IndexUID:         "unknown",
		Hits:             []model.SearchHit{},
		Limit:            limit,
		Offset:           offset,
		ProcessingTimeMs: raw.ProcessingTimeMs,
	}
	if raw.IndexUID != nil && *raw.IndexUID != "" {
		block.IndexUID = *raw.IndexUID
	}
	if raw.Hits != nil {
		block.Hits = raw.Hits
	}
	if raw.Limit != nil {
		block.Limit = *raw.Limit
	}
	if raw.Offset != nil {
		block.Offset = *raw.Offset
	}
	if raw.EstimatedTotalHits != nil {
		block.EstimatedTotalHits = *raw.EstimatedTotalHits
	}
	return block
}
