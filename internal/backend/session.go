package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	xerrors "github.com/veldtdata/unisearch/internal/errors"
)

// SessionClient issues authenticated query-DSL requests against the
// catalog's Elasticsearch-backed search proxy. The authenticated session
// (bearer token, signing) is supplied by the deployment; backends never
// derive credentials themselves.
type SessionClient interface {
	// Search runs one index query and returns raw hits.
	Search(ctx context.Context, q IndexQuery) ([]IndexHit, error)

	// ListBuckets enumerates the buckets the session can read.
	ListBuckets(ctx context.Context) ([]string, error)

	// Ping checks endpoint reachability.
	Ping(ctx context.Context) error
}

// IndexQuery is one request against the search proxy.
type IndexQuery struct {
	// Indices to search. A single "*" entry means stack-wide.
	Indices []string

	Query      string
	Extensions []string
	SizeMin    int64
	SizeMax    int64
	Limit      int
}

// IndexHit is one raw hit from the search proxy, before normalization
// into a Result.
type IndexHit struct {
	ID          string  `json:"_id"`
	Index       string  `json:"_index"`
	Score       float64 `json:"_score"`
	Key         string  `json:"key"`
	Size        int64   `json:"size"`
	Updated     string  `json:"updated"`
	Description string  `json:"description"`
}

// ClientError is a typed error from the search proxy. The Elasticsearch
// backend inspects StatusCode and ErrorType to decide whether the
// bucket-enumeration fallback applies; message substrings are a last
// resort only.
type ClientError struct {
	StatusCode int
	ErrorType  string
	Message    string
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("search proxy error %d (%s): %s", e.StatusCode, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("search proxy error %d: %s", e.StatusCode, e.Message)
}

// HTTPSessionClient is the production SessionClient over HTTP.
type HTTPSessionClient struct {
	endpoint string
	token    string
	client   *http.Client
}

// NewHTTPSessionClient creates a session client for the given search
// proxy endpoint. A nil httpClient uses http.DefaultClient.
func NewHTTPSessionClient(endpoint, token string, httpClient *http.Client) *HTTPSessionClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPSessionClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   httpClient,
	}
}

// searchRequest is the wire shape of one proxy search call.
type searchRequest struct {
	Indices []string     `json:"indices"`
	Query   string       `json:"query"`
	Filter  searchFilter `json:"filter,omitempty"`
	Size    int          `json:"size"`
}

type searchFilter struct {
	Extensions []string `json:"extensions,omitempty"`
	SizeMin    int64    `json:"size_min,omitempty"`
	SizeMax    int64    `json:"size_max,omitempty"`
}

// searchResponse mirrors the proxy's Elasticsearch-shaped reply.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Index  string  `json:"_index"`
			Score  float64 `json:"_score"`
			Source struct {
				Key         string `json:"key"`
				Size        int64  `json:"size"`
				Updated     string `json:"updated"`
				Description string `json:"description"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// proxyError is the proxy's error body shape.
type proxyError struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
}

// Search implements SessionClient.
func (c *HTTPSessionClient) Search(ctx context.Context, q IndexQuery) ([]IndexHit, error) {
	body, err := json.Marshal(searchRequest{
		Indices: q.Indices,
		Query:   q.Query,
		Filter: searchFilter{
			Extensions: q.Extensions,
			SizeMin:    q.SizeMin,
			SizeMax:    q.SizeMax,
		},
		Size: q.Limit,
	})
	if err != nil {
		return nil, xerrors.InternalError("encode search request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, xerrors.InternalError("build search request", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, xerrors.NetworkError("search proxy request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.NetworkError("read search proxy response", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, decodeClientError(resp.StatusCode, data)
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCodeSearchFailed, fmt.Errorf("decode search response: %w", err))
	}

	hits := make([]IndexHit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		hits = append(hits, IndexHit{
			ID:          h.ID,
			Index:       h.Index,
			Score:       h.Score,
			Key:         h.Source.Key,
			Size:        h.Source.Size,
			Updated:     h.Source.Updated,
			Description: h.Source.Description,
		})
	}
	return hits, nil
}

// ListBuckets implements SessionClient.
func (c *HTTPSessionClient) ListBuckets(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/buckets", nil)
	if err != nil {
		return nil, xerrors.InternalError("build bucket list request", err)
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, xerrors.NetworkError("bucket list request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, xerrors.NetworkError("read bucket list response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeClientError(resp.StatusCode, data)
	}

	var parsed struct {
		Buckets []string `json:"buckets"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, xerrors.Wrap(xerrors.ErrCodeSearchFailed, fmt.Errorf("decode bucket list: %w", err))
	}
	return parsed.Buckets, nil
}

// Ping implements SessionClient.
func (c *HTTPSessionClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return xerrors.NetworkError("search proxy unreachable", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return &ClientError{StatusCode: resp.StatusCode, Message: "search proxy unhealthy"}
	}
	return nil
}

func (c *HTTPSessionClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// decodeClientError converts a non-200 proxy reply into a ClientError,
// keeping the typed error type/reason when the body parses.
func decodeClientError(status int, body []byte) *ClientError {
	var pe proxyError
	if err := json.Unmarshal(body, &pe); err == nil && (pe.Error.Type != "" || pe.Error.Reason != "") {
		return &ClientError{
			StatusCode: status,
			ErrorType:  pe.Error.Type,
			Message:    pe.Error.Reason,
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &ClientError{StatusCode: status, Message: msg}
}

// Ensure HTTPSessionClient implements SessionClient.
var _ SessionClient = (*HTTPSessionClient)(nil)
