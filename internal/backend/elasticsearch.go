package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	xerrors "github.com/veldtdata/unisearch/internal/errors"
)

// stackWideIndex is the index pattern for a catalog-wide query.
const stackWideIndex = "*"

// DefaultFanoutConcurrency bounds parallel per-bucket queries during the
// bucket-enumeration fallback.
const DefaultFanoutConcurrency = 4

// ElasticsearchBackend searches the catalog's Elasticsearch-backed index
// through an authenticated session client.
//
// Bucket scope issues one query against the bucket's index. Catalog and
// global scope first attempt a stack-wide query; when that fails with an
// authorization-denied or missing-index error, the backend falls back to
// enumerating accessible buckets and querying each one. The fallback
// preserves the scope-superset guarantee: a wider scope never loses
// results a narrower scope would have found. Any other error is reported
// on the response, never masked as an empty success.
type ElasticsearchBackend struct {
	client  SessionClient
	breaker *xerrors.CircuitBreaker
	logger  *slog.Logger
	fanout  int

	mu     sync.Mutex
	status Status
}

// ElasticsearchOption configures an ElasticsearchBackend.
type ElasticsearchOption func(*ElasticsearchBackend)

// WithFanoutConcurrency bounds parallel per-bucket fallback queries.
func WithFanoutConcurrency(n int) ElasticsearchOption {
	return func(b *ElasticsearchBackend) {
		if n > 0 {
			b.fanout = n
		}
	}
}

// WithElasticsearchLogger sets the backend's logger.
func WithElasticsearchLogger(logger *slog.Logger) ElasticsearchOption {
	return func(b *ElasticsearchBackend) {
		b.logger = logger
	}
}

// NewElasticsearchBackend creates the Elasticsearch backend over the given
// session client.
func NewElasticsearchBackend(client SessionClient, opts ...ElasticsearchOption) *ElasticsearchBackend {
	b := &ElasticsearchBackend{
		client:  client,
		breaker: xerrors.NewCircuitBreaker("elasticsearch"),
		logger:  slog.Default(),
		fanout:  DefaultFanoutConcurrency,
		status:  StatusUninitialized,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Type implements SearchBackend.
func (b *ElasticsearchBackend) Type() Type { return TypeElasticsearch }

// Status implements SearchBackend.
func (b *ElasticsearchBackend) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// EnsureInitialized implements SearchBackend. The probe runs once; later
// calls are no-ops until HealthCheck forces a re-probe.
func (b *ElasticsearchBackend) EnsureInitialized(ctx context.Context) {
	b.mu.Lock()
	if b.status != StatusUninitialized {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.probe(ctx)
}

// HealthCheck implements SearchBackend: a forced re-probe bypassing the
// cached status.
func (b *ElasticsearchBackend) HealthCheck(ctx context.Context) bool {
	return b.probe(ctx) == StatusAvailable
}

func (b *ElasticsearchBackend) probe(ctx context.Context) Status {
	status := StatusAvailable
	if err := b.client.Ping(ctx); err != nil {
		status = StatusUnavailable
		b.logger.Warn("backend_probe_failed",
			slog.String("backend", string(TypeElasticsearch)),
			slog.String("error", err.Error()))
	} else {
		b.logger.Debug("backend_probe_ok",
			slog.String("backend", string(TypeElasticsearch)))
	}

	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
	return status
}

func (b *ElasticsearchBackend) setStatus(s Status) {
	b.mu.Lock()
	b.status = s
	b.mu.Unlock()
}

// Search implements SearchBackend.
func (b *ElasticsearchBackend) Search(ctx context.Context, req Request) *Response {
	start := time.Now()

	var hits []IndexHit
	var err error

	switch req.Scope {
	case ScopeBucket:
		hits, err = b.searchIndices(ctx, []string{bucketIndex(req.Bucket)}, req)
	default: // catalog and global share the fallback chain
		hits, err = b.searchCatalogWide(ctx, req)
	}

	if err != nil {
		b.setStatus(StatusError)
		b.logger.Warn("search_failed",
			slog.String("backend", string(TypeElasticsearch)),
			slog.String("scope", string(req.Scope)),
			slog.String("error", err.Error()))
		return errorResponse(TypeElasticsearch, start, err.Error())
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, hitToResult(h))
	}
	sortByScore(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}

	return okResponse(TypeElasticsearch, start, results)
}

// searchCatalogWide tries a stack-wide query and, on a qualifying error,
// falls back to per-bucket enumeration. Non-qualifying errors propagate.
func (b *ElasticsearchBackend) searchCatalogWide(ctx context.Context, req Request) ([]IndexHit, error) {
	hits, err := b.searchIndices(ctx, []string{stackWideIndex}, req)
	if err == nil {
		return hits, nil
	}
	if !shouldFallback(err) {
		return nil, err
	}

	b.logger.Info("fallback_triggered",
		slog.String("backend", string(TypeElasticsearch)),
		slog.String("scope", string(req.Scope)),
		slog.String("cause", err.Error()))

	hits, fbErr := b.searchPerBucket(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("stack-wide search failed (%v); per-bucket fallback failed: %w", err, fbErr)
	}
	return hits, nil
}

// searchPerBucket enumerates accessible buckets and queries each with
// bounded concurrency. Buckets failing with the fallback signature
// (denied or missing index) are skipped; any other bucket failure fails
// the whole fallback. Aggregated hits are score-sorted by the caller
// before truncation, so fan-out completion order does not matter.
func (b *ElasticsearchBackend) searchPerBucket(ctx context.Context, req Request) ([]IndexHit, error) {
	buckets, err := b.client.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("enumerate buckets: %w", err)
	}

	var mu sync.Mutex
	var all []IndexHit

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.fanout)
	for _, bucket := range buckets {
		bucket := bucket
		g.Go(func() error {
			hits, err := b.searchWithRetry(gctx, []string{bucketIndex(bucket)}, req)
			if err != nil {
				if shouldFallback(err) {
					// Denied or missing per-bucket indexes are exactly
					// what the fallback routes around; skip them.
					b.logger.Debug("fallback_bucket_skipped",
						slog.String("bucket", bucket),
						slog.String("error", err.Error()))
					return nil
				}
				return fmt.Errorf("bucket %s: %w", bucket, err)
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// searchIndices issues one proxy query through the circuit breaker with
// transient-error retry.
func (b *ElasticsearchBackend) searchIndices(ctx context.Context, indices []string, req Request) ([]IndexHit, error) {
	return xerrors.ExecuteWithResult(b.breaker, func() ([]IndexHit, error) {
		return b.searchWithRetry(ctx, indices, req)
	})
}

// searchWithRetry issues one proxy query with transient-error retry,
// bypassing the circuit breaker. Fallback fan-out legs use it directly:
// a run of denied buckets must not trip the breaker and starve the
// readable buckets behind them.
func (b *ElasticsearchBackend) searchWithRetry(ctx context.Context, indices []string, req Request) ([]IndexHit, error) {
	q := IndexQuery{
		Indices:    indices,
		Query:      req.Query,
		Extensions: req.Filters.Extensions,
		SizeMin:    req.Filters.SizeMin,
		SizeMax:    req.Filters.SizeMax,
		Limit:      fetchLimit(req.Limit),
	}

	return xerrors.RetryWithResult(ctx, xerrors.DefaultRetryConfig(), func() ([]IndexHit, error) {
		return b.client.Search(ctx, q)
	})
}

// fetchLimit returns the per-query fetch size. Each source fetches the
// full request limit, so the aggregated top-limit after sorting is
// always contained in the union of per-source results.
func fetchLimit(limit int) int {
	if limit <= 0 {
		return 10
	}
	return limit
}

// bucketIndex maps a bucket name to its index name. The proxy resolves
// aliases; an empty bucket means the caller passed bucket scope without
// a bucket and gets the stack-wide pattern.
func bucketIndex(bucket string) string {
	if bucket == "" {
		return stackWideIndex
	}
	return bucket
}

// shouldFallback reports whether an error from a catalog-wide query
// qualifies for the bucket-enumeration fallback. Typed inspection first;
// the substring checks are a documented last resort for clients that
// only surface error text. The trigger list is exhaustive: 403 and
// missing index, nothing else.
func shouldFallback(err error) bool {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode == http.StatusForbidden ||
			strings.Contains(ce.ErrorType, "index_not_found")
	}

	msg := err.Error()
	return strings.Contains(msg, "403") || strings.Contains(msg, "index_not_found")
}

// hitToResult normalizes one raw index hit into a Result.
func hitToResult(h IndexHit) Result {
	kind := KindObject
	if path.Ext(h.Key) != "" {
		kind = KindFile
	}
	return Result{
		ID:          h.ID,
		Kind:        kind,
		Title:       path.Base(h.Key),
		LogicalKey:  h.Key,
		Description: h.Description,
		Score:       h.Score,
		Backend:     TypeElasticsearch,
		Bucket:      strings.TrimSuffix(h.Index, "-index"),
		Size:        h.Size,
		Modified:    h.Updated,
	}
}

// sortByScore orders results score-descending with a stable sort, so
// ties keep backend-provided order.
func sortByScore(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// Ensure ElasticsearchBackend implements SearchBackend.
var _ SearchBackend = (*ElasticsearchBackend)(nil)
