package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	xerrors "github.com/veldtdata/unisearch/internal/errors"
)

// GraphQL documents sent to the catalog API. The API returns package
// hits for discovery queries and object hits for bucket-scoped queries.
const (
	probeQuery = `query { __typename }`

	packageSearchQuery = `query PackageSearch($searchString: String!, $limit: Int!) {
  searchPackages(searchString: $searchString, limit: $limit) {
    hits { id score bucket name comment }
  }
}`

	bucketObjectsQuery = `query BucketObjects($bucket: String!, $searchString: String!, $limit: Int!) {
  objects(bucket: $bucket, searchString: $searchString, limit: $limit) {
    hits { id score key size updated }
  }
}`
)

// GraphQLBackend searches the catalog's GraphQL API. It is the preferred
// backend because package hits carry relationship data the index lacks.
//
// Bucket-scoped object queries are best-effort: a failure there returns
// an empty result set rather than an error, so the coordinator's
// Elasticsearch path is never blocked by a GraphQL-only outage.
type GraphQLBackend struct {
	endpoint   string
	authToken  string
	httpClient *http.Client
	breaker    *xerrors.CircuitBreaker
	logger     *slog.Logger

	mu     sync.Mutex
	status Status
}

// GraphQLOption configures a GraphQLBackend.
type GraphQLOption func(*GraphQLBackend)

// WithGraphQLHTTPClient sets the HTTP client used for requests.
func WithGraphQLHTTPClient(client *http.Client) GraphQLOption {
	return func(b *GraphQLBackend) {
		if client != nil {
			b.httpClient = client
		}
	}
}

// WithGraphQLLogger sets the backend's logger.
func WithGraphQLLogger(logger *slog.Logger) GraphQLOption {
	return func(b *GraphQLBackend) {
		b.logger = logger
	}
}

// NewGraphQLBackend creates the GraphQL backend for the given endpoint.
// The bearer token is supplied by the deployment's auth layer.
func NewGraphQLBackend(endpoint, authToken string, opts ...GraphQLOption) *GraphQLBackend {
	b := &GraphQLBackend{
		endpoint:   endpoint,
		authToken:  authToken,
		httpClient: http.DefaultClient,
		breaker:    xerrors.NewCircuitBreaker("graphql"),
		logger:     slog.Default(),
		status:     StatusUninitialized,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Type implements SearchBackend.
func (b *GraphQLBackend) Type() Type { return TypeGraphQL }

// Status implements SearchBackend.
func (b *GraphQLBackend) Status() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// EnsureInitialized implements SearchBackend.
func (b *GraphQLBackend) EnsureInitialized(ctx context.Context) {
	b.mu.Lock()
	if b.status != StatusUninitialized {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	b.probe(ctx)
}

// HealthCheck implements SearchBackend.
func (b *GraphQLBackend) HealthCheck(ctx context.Context) bool {
	return b.probe(ctx) == StatusAvailable
}

func (b *GraphQLBackend) probe(ctx context.Context) Status {
	status := StatusAvailable
	if b.endpoint == "" {
		status = StatusUnavailable
	} else if _, err := b.execute(ctx, probeQuery, nil); err != nil {
		status = StatusUnavailable
		b.logger.Warn("backend_probe_failed",
			slog.String("backend", string(TypeGraphQL)),
			slog.String("error", err.Error()))
	} else {
		b.logger.Debug("backend_probe_ok",
			slog.String("backend", string(TypeGraphQL)))
	}

	b.mu.Lock()
	b.status = status
	b.mu.Unlock()
	return status
}

// Search implements SearchBackend.
func (b *GraphQLBackend) Search(ctx context.Context, req Request) *Response {
	start := time.Now()

	if req.Scope == ScopeBucket {
		return b.searchBucketObjects(ctx, start, req)
	}
	return b.searchPackages(ctx, start, req)
}

// searchPackages serves catalog and global scope via package discovery.
func (b *GraphQLBackend) searchPackages(ctx context.Context, start time.Time, req Request) *Response {
	data, err := b.query(ctx, packageSearchQuery, map[string]any{
		"searchString": req.Query,
		"limit":        fetchLimit(req.Limit),
	})
	if err != nil {
		b.mu.Lock()
		b.status = StatusError
		b.mu.Unlock()
		b.logger.Warn("search_failed",
			slog.String("backend", string(TypeGraphQL)),
			slog.String("scope", string(req.Scope)),
			slog.String("error", err.Error()))
		return errorResponse(TypeGraphQL, start, err.Error())
	}

	var parsed struct {
		SearchPackages struct {
			Hits []struct {
				ID      string  `json:"id"`
				Score   float64 `json:"score"`
				Bucket  string  `json:"bucket"`
				Name    string  `json:"name"`
				Comment string  `json:"comment"`
			} `json:"hits"`
		} `json:"searchPackages"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return errorResponse(TypeGraphQL, start, fmt.Sprintf("decode package hits: %v", err))
	}

	results := make([]Result, 0, len(parsed.SearchPackages.Hits))
	for _, h := range parsed.SearchPackages.Hits {
		results = append(results, Result{
			ID:            h.ID,
			Kind:          KindPackage,
			Title:         h.Name,
			Description:   h.Comment,
			Score:         h.Score,
			Backend:       TypeGraphQL,
			Bucket:        h.Bucket,
			PackageHandle: h.Name,
		})
	}
	sortByScore(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return okResponse(TypeGraphQL, start, results)
}

// searchBucketObjects serves bucket scope. Failures yield an empty
// success so the caller can fall back to the index backend.
func (b *GraphQLBackend) searchBucketObjects(ctx context.Context, start time.Time, req Request) *Response {
	data, err := b.query(ctx, bucketObjectsQuery, map[string]any{
		"bucket":       req.Bucket,
		"searchString": req.Query,
		"limit":        fetchLimit(req.Limit),
	})
	if err != nil {
		b.logger.Warn("bucket_objects_best_effort_failed",
			slog.String("backend", string(TypeGraphQL)),
			slog.String("bucket", req.Bucket),
			slog.String("error", err.Error()))
		return okResponse(TypeGraphQL, start, nil)
	}

	var parsed struct {
		Objects struct {
			Hits []struct {
				ID      string  `json:"id"`
				Score   float64 `json:"score"`
				Key     string  `json:"key"`
				Size    int64   `json:"size"`
				Updated string  `json:"updated"`
			} `json:"hits"`
		} `json:"objects"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		b.logger.Warn("bucket_objects_decode_failed",
			slog.String("bucket", req.Bucket),
			slog.String("error", err.Error()))
		return okResponse(TypeGraphQL, start, nil)
	}

	results := make([]Result, 0, len(parsed.Objects.Hits))
	for _, h := range parsed.Objects.Hits {
		results = append(results, Result{
			ID:         h.ID,
			Kind:       KindObject,
			Title:      h.Key,
			LogicalKey: h.Key,
			Score:      h.Score,
			Backend:    TypeGraphQL,
			Bucket:     req.Bucket,
			Size:       h.Size,
			Modified:   h.Updated,
		})
	}
	sortByScore(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return okResponse(TypeGraphQL, start, results)
}

// query executes a GraphQL document through the circuit breaker with
// transient-error retry and returns the data payload.
func (b *GraphQLBackend) query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	return xerrors.ExecuteWithResult(b.breaker, func() (json.RawMessage, error) {
		return xerrors.RetryWithResult(ctx, xerrors.DefaultRetryConfig(), func() (json.RawMessage, error) {
			return b.execute(ctx, document, variables)
		})
	})
}

// graphQLEnvelope is the standard GraphQL response shape. Errors is kept
// raw because real catalogs emit it in several shapes.
type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

// execute POSTs one {query, variables} payload and inspects the errors
// array.
func (b *GraphQLBackend) execute(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(map[string]any{
		"query":     document,
		"variables": variables,
	})
	if err != nil {
		return nil, xerrors.InternalError("encode graphql request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.InternalError("build graphql request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if b.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+b.authToken)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, xerrors.NetworkError("graphql request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.NetworkError("read graphql response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.New(xerrors.ErrCodeGraphQLErrors,
			fmt.Sprintf("graphql endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data))), nil)
	}

	var envelope graphQLEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCodeGraphQLErrors, fmt.Errorf("decode graphql response: %w", err))
	}
	if len(envelope.Errors) > 0 && !bytes.Equal(envelope.Errors, []byte("null")) {
		return nil, xerrors.New(xerrors.ErrCodeGraphQLErrors, normalizeGraphQLErrors(envelope.Errors), nil)
	}
	return envelope.Data, nil
}

// normalizeGraphQLErrors flattens a GraphQL errors payload into one
// human-readable string. Real responses arrive as a list of objects, a
// list of strings, a single object, or a single string; every shape
// must yield a message rather than a type error.
func normalizeGraphQLErrors(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return strings.TrimSpace(string(raw))
	}

	var parts []string
	switch t := v.(type) {
	case []any:
		for _, entry := range t {
			if msg := errorEntryMessage(entry); msg != "" {
				parts = append(parts, msg)
			}
		}
	default:
		if msg := errorEntryMessage(v); msg != "" {
			parts = append(parts, msg)
		}
	}

	if len(parts) == 0 {
		return "graphql query failed with unrecognized error payload"
	}
	return strings.Join(parts, "; ")
}

// errorEntryMessage extracts the message from one errors-array entry.
func errorEntryMessage(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		msg, _ := t["message"].(string)
		if msg == "" {
			return fmt.Sprintf("%v", t)
		}
		if p, ok := t["path"].([]any); ok && len(p) > 0 {
			segs := make([]string, 0, len(p))
			for _, s := range p {
				segs = append(segs, fmt.Sprintf("%v", s))
			}
			return fmt.Sprintf("%s (path: %s)", msg, strings.Join(segs, "."))
		}
		return msg
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Ensure GraphQLBackend implements SearchBackend.
var _ SearchBackend = (*GraphQLBackend)(nil)
