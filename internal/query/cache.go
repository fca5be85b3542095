package query

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default LRU cache size for analysis results.
const DefaultCacheSize = 1024

// CachedAnalyzer wraps an Analyzer with an LRU cache keyed by the
// normalized query. Analysis is cheap but runs on every request,
// suggestion, and explanation; repeated queries are common.
type CachedAnalyzer struct {
	inner Analyzer
	cache *lru.Cache[string, Analysis]
}

// NewCachedAnalyzer creates a caching wrapper around inner.
// If size <= 0, DefaultCacheSize is used.
func NewCachedAnalyzer(inner Analyzer, size int) *CachedAnalyzer {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, Analysis](size)
	return &CachedAnalyzer{
		inner: inner,
		cache: cache,
	}
}

// Analyze returns the cached analysis for the normalized query, computing
// and caching it on miss.
func (c *CachedAnalyzer) Analyze(query string) Analysis {
	key := normalizeQuery(query)
	if key == "" {
		return Analysis{QueryType: TypeGeneric}
	}

	if a, ok := c.cache.Get(key); ok {
		return a
	}

	a := c.inner.Analyze(query)
	c.cache.Add(key, a)
	return a
}

// normalizeQuery normalizes a query for use as a cache key.
func normalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

// Ensure CachedAnalyzer implements Analyzer.
var _ Analyzer = (*CachedAnalyzer)(nil)
