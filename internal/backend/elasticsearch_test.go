package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessionClient scripts per-index hits and errors for backend tests.
type fakeSessionClient struct {
	mu sync.Mutex

	buckets       []string
	bucketHits    map[string][]IndexHit
	stackWideErr  error
	stackWideHits []IndexHit
	bucketErr     map[string]error
	listErr       error
	pingErr       error

	searchedIndices [][]string
}

func (f *fakeSessionClient) Search(_ context.Context, q IndexQuery) ([]IndexHit, error) {
	f.mu.Lock()
	f.searchedIndices = append(f.searchedIndices, q.Indices)
	f.mu.Unlock()

	if len(q.Indices) != 1 {
		return nil, fmt.Errorf("scripted client expects one index, got %v", q.Indices)
	}
	index := q.Indices[0]
	if index == stackWideIndex {
		if f.stackWideErr != nil {
			return nil, f.stackWideErr
		}
		return f.stackWideHits, nil
	}
	if err := f.bucketErr[index]; err != nil {
		return nil, err
	}
	return f.bucketHits[index], nil
}

func (f *fakeSessionClient) ListBuckets(context.Context) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.buckets, nil
}

func (f *fakeSessionClient) Ping(context.Context) error { return f.pingErr }

func hit(id string, score float64) IndexHit {
	return IndexHit{ID: id, Index: "bucket-a", Score: score, Key: "data/" + id + ".csv"}
}

func TestElasticsearch_BucketScope(t *testing.T) {
	client := &fakeSessionClient{
		bucketHits: map[string][]IndexHit{
			"bucket-a": {hit("one", 2.0), hit("two", 1.0)},
		},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{
		Query: "find csv files", Scope: ScopeBucket, Bucket: "bucket-a", Limit: 10,
	})

	require.Equal(t, StatusAvailable, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "one", resp.Results[0].ID)
	assert.Equal(t, KindFile, resp.Results[0].Kind)
	assert.Equal(t, TypeElasticsearch, resp.Results[0].Backend)
}

func TestElasticsearch_CatalogScope_StackWide(t *testing.T) {
	client := &fakeSessionClient{
		stackWideHits: []IndexHit{hit("one", 1.0), hit("two", 3.0)},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusAvailable, resp.Status)
	require.Len(t, resp.Results, 2)
	// Score-descending order
	assert.Equal(t, "two", resp.Results[0].ID)
}

func TestElasticsearch_Fallback_On403String(t *testing.T) {
	client := &fakeSessionClient{
		stackWideErr: fmt.Errorf("search proxy returned error 403"),
		buckets:      []string{"bucket-a", "bucket-b"},
		bucketHits: map[string][]IndexHit{
			"bucket-a": {hit("a1", 1.0)},
			"bucket-b": {{ID: "b1", Index: "bucket-b", Score: 2.0, Key: "obj/b1.json"}},
		},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeGlobal, Limit: 10})

	require.Equal(t, StatusAvailable, resp.Status)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "b1", resp.Results[0].ID, "aggregated results are score-sorted")
}

func TestElasticsearch_Fallback_OnTypedErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"typed 403", &ClientError{StatusCode: http.StatusForbidden, Message: "access denied"}},
		{"typed missing index", &ClientError{StatusCode: http.StatusNotFound, ErrorType: "index_not_found_exception", Message: "no such index"}},
		{"substring missing index", errors.New("index_not_found_exception: no such index [*]")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeSessionClient{
				stackWideErr: tt.err,
				buckets:      []string{"bucket-a"},
				bucketHits:   map[string][]IndexHit{"bucket-a": {hit("a1", 1.0)}},
			}
			b := NewElasticsearchBackend(client)

			resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

			require.Equal(t, StatusAvailable, resp.Status)
			require.Len(t, resp.Results, 1)
		})
	}
}

func TestElasticsearch_NoFallback_OnOtherErrors(t *testing.T) {
	client := &fakeSessionClient{
		stackWideErr: errors.New("Network timeout"),
		buckets:      []string{"bucket-a"},
		bucketHits:   map[string][]IndexHit{"bucket-a": {hit("a1", 1.0)}},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Err, "Network timeout")
	assert.Empty(t, resp.Results, "a failed search must not be framed as results")
	assert.Equal(t, StatusError, b.Status())
}

func TestElasticsearch_Fallback_SkipsUnreadableBuckets(t *testing.T) {
	client := &fakeSessionClient{
		stackWideErr: &ClientError{StatusCode: http.StatusForbidden},
		buckets:      []string{"bucket-a", "bucket-b"},
		bucketHits:   map[string][]IndexHit{"bucket-a": {hit("a1", 1.0)}},
		bucketErr:    map[string]error{"bucket-b": errors.New("403 for this bucket too")},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusAvailable, resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "a1", resp.Results[0].ID)
}

func TestElasticsearch_Fallback_DeniedRunDoesNotStarveReadableBuckets(t *testing.T) {
	// More denied buckets than the breaker's failure threshold, then one
	// readable bucket: its hit must still come back, and catalog scope
	// must stay a superset of bucket scope.
	denied := &ClientError{StatusCode: http.StatusForbidden, Message: "access denied"}
	client := &fakeSessionClient{
		stackWideErr: denied,
		buckets:      []string{"b1", "b2", "b3", "b4", "b5", "b6"},
		bucketErr: map[string]error{
			"b1": denied, "b2": denied, "b3": denied, "b4": denied, "b5": denied,
		},
		bucketHits: map[string][]IndexHit{
			"b6": {{ID: "ok", Index: "b6", Score: 1.0, Key: "data/ok.csv"}},
		},
	}
	b := NewElasticsearchBackend(client, WithFanoutConcurrency(1))

	catalog := b.Search(context.Background(), Request{Query: "q", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusAvailable, catalog.Status)
	require.Len(t, catalog.Results, 1)
	assert.Equal(t, "ok", catalog.Results[0].ID)

	bucket := b.Search(context.Background(), Request{Query: "q", Scope: ScopeBucket, Bucket: "b6", Limit: 10})
	require.Equal(t, StatusAvailable, bucket.Status)
	assert.GreaterOrEqual(t, len(catalog.Results), len(bucket.Results))
}

func TestElasticsearch_Fallback_NonAuthBucketErrorFailsSearch(t *testing.T) {
	// Only denied/missing buckets may be skipped during the fallback; a
	// transport failure on one bucket must surface as a top-level error,
	// not a partial success.
	client := &fakeSessionClient{
		stackWideErr: &ClientError{StatusCode: http.StatusForbidden},
		buckets:      []string{"bucket-a", "bucket-b"},
		bucketHits:   map[string][]IndexHit{"bucket-a": {hit("a1", 1.0)}},
		bucketErr:    map[string]error{"bucket-b": errors.New("connection reset by peer")},
	}
	b := NewElasticsearchBackend(client, WithFanoutConcurrency(1))

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Err, "connection reset")
	assert.Empty(t, resp.Results)
}

func TestElasticsearch_Fallback_EnumerationFailurePropagates(t *testing.T) {
	client := &fakeSessionClient{
		stackWideErr: &ClientError{StatusCode: http.StatusForbidden},
		listErr:      errors.New("bucket listing unavailable"),
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "data", Scope: ScopeCatalog, Limit: 10})

	require.Equal(t, StatusError, resp.Status)
	assert.Contains(t, resp.Err, "bucket listing unavailable")
}

func TestElasticsearch_ScopeSupersetProperty(t *testing.T) {
	// Catalog search is forced through the per-bucket fallback, which
	// must still contain everything any single bucket query yields.
	client := &fakeSessionClient{
		stackWideErr: &ClientError{StatusCode: http.StatusForbidden},
		buckets:      []string{"bucket-a", "bucket-b"},
		bucketHits: map[string][]IndexHit{
			"bucket-a": {hit("a1", 1.0), hit("a2", 0.5)},
			"bucket-b": {{ID: "b1", Index: "bucket-b", Score: 2.0, Key: "b1"}},
		},
	}
	b := NewElasticsearchBackend(client)

	catalog := b.Search(context.Background(), Request{Query: "q", Scope: ScopeCatalog, Limit: 100})
	global := b.Search(context.Background(), Request{Query: "q", Scope: ScopeGlobal, Limit: 100})
	bucketA := b.Search(context.Background(), Request{Query: "q", Scope: ScopeBucket, Bucket: "bucket-a", Limit: 100})

	require.Equal(t, StatusAvailable, catalog.Status)
	require.Equal(t, StatusAvailable, global.Status)
	require.Equal(t, StatusAvailable, bucketA.Status)
	assert.GreaterOrEqual(t, len(global.Results), len(catalog.Results))
	assert.GreaterOrEqual(t, len(catalog.Results), len(bucketA.Results))
}

func TestElasticsearch_TruncatesToLimit(t *testing.T) {
	client := &fakeSessionClient{
		stackWideHits: []IndexHit{hit("one", 1.0), hit("two", 3.0), hit("three", 2.0)},
	}
	b := NewElasticsearchBackend(client)

	resp := b.Search(context.Background(), Request{Query: "q", Scope: ScopeCatalog, Limit: 2})

	require.Len(t, resp.Results, 2)
	assert.Equal(t, "two", resp.Results[0].ID)
	assert.Equal(t, "three", resp.Results[1].ID)
}

func TestElasticsearch_ProbeLifecycle(t *testing.T) {
	client := &fakeSessionClient{}
	b := NewElasticsearchBackend(client)

	assert.Equal(t, StatusUninitialized, b.Status())

	b.EnsureInitialized(context.Background())
	assert.Equal(t, StatusAvailable, b.Status())

	// Cached: a now-failing endpoint is not re-probed by EnsureInitialized.
	client.pingErr = errors.New("down")
	b.EnsureInitialized(context.Background())
	assert.Equal(t, StatusAvailable, b.Status())

	// HealthCheck bypasses the cache.
	assert.False(t, b.HealthCheck(context.Background()))
	assert.Equal(t, StatusUnavailable, b.Status())
}

func TestShouldFallback(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"typed forbidden", &ClientError{StatusCode: 403}, true},
		{"typed index_not_found", &ClientError{StatusCode: 404, ErrorType: "index_not_found_exception"}, true},
		{"typed other status", &ClientError{StatusCode: 500, Message: "boom"}, false},
		{"string 403", errors.New("error 403"), true},
		{"string index_not_found", errors.New("index_not_found_exception"), true},
		{"network timeout", errors.New("Network timeout"), false},
		{"unrelated", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldFallback(tt.err))
		})
	}
}
