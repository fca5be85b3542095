// Package backend defines the SearchBackend contract and its two
// implementations: an Elasticsearch-backed catalog index and a GraphQL
// catalog API. Backends normalize incompatible native result shapes into
// a single Result type and report failures through Response status, not
// panics or silent empty successes.
package backend

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Scope is the breadth of a search request.
type Scope string

const (
	// ScopeBucket searches a single named bucket.
	ScopeBucket Scope = "bucket"

	// ScopeCatalog searches the authenticated catalog's indexed content.
	ScopeCatalog Scope = "catalog"

	// ScopeGlobal is the broadest scope. It is served identically to
	// ScopeCatalog, with the same fallback chain, so the superset
	// invariant holds trivially between them.
	ScopeGlobal Scope = "global"
)

// ParseScope validates a scope string. Empty input defaults to global.
func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeBucket:
		return ScopeBucket, nil
	case ScopeCatalog:
		return ScopeCatalog, nil
	case ScopeGlobal, "":
		return ScopeGlobal, nil
	default:
		return "", fmt.Errorf("invalid scope %q (use: bucket, catalog, global)", s)
	}
}

// Type is the stable identity of a backend implementation.
type Type string

const (
	// TypeElasticsearch identifies the Elasticsearch-backed catalog index.
	TypeElasticsearch Type = "elasticsearch"

	// TypeGraphQL identifies the GraphQL catalog API.
	TypeGraphQL Type = "graphql"
)

// Status is the lifecycle state of a backend.
// It starts Uninitialized, moves to Available/Unavailable on the first
// probe, and may move to Error after a failed search call. The probe
// result is cached for the life of the registry; HealthCheck forces a
// fresh probe.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusAvailable     Status = "available"
	StatusUnavailable   Status = "unavailable"
	StatusError         Status = "error"
)

// ResultKind distinguishes the shape of a single result.
type ResultKind string

const (
	KindFile    ResultKind = "file"
	KindPackage ResultKind = "package"
	KindObject  ResultKind = "object"
)

// Result is one ranked search hit, normalized across backends.
// Produced fresh per query; treated as an immutable value.
type Result struct {
	ID          string     `json:"id"`
	Kind        ResultKind `json:"type"`
	Title       string     `json:"title"`
	LogicalKey  string     `json:"logical_key,omitempty"`
	Description string     `json:"description,omitempty"`
	Score       float64    `json:"score"`
	Backend     Type       `json:"backend"`

	// Kind-specific extras
	Bucket        string `json:"bucket,omitempty"`
	Size          int64  `json:"size,omitempty"`
	PackageHandle string `json:"package_handle,omitempty"`
	Modified      string `json:"modified,omitempty"`
}

// Request describes one backend search call.
type Request struct {
	Query   string
	Scope   Scope
	Bucket  string
	Filters Filters
	Limit   int
}

// Filters carries structured hints translated from query analysis.
type Filters struct {
	// Extensions restricts file results to these extensions (lowercase,
	// no dot). Empty means no restriction.
	Extensions []string

	// SizeMin/SizeMax restrict by object size in bytes. Zero means unset.
	SizeMin int64
	SizeMax int64
}

// Response is the per-backend outcome of one search call.
// Internal to the engine; never returned to callers directly.
type Response struct {
	Backend   Type
	Status    Status
	Results   []Result
	QueryTime time.Duration
	Err       string
}

// errorResponse builds an ERROR-status response carrying the message.
func errorResponse(t Type, start time.Time, msg string) *Response {
	return &Response{
		Backend:   t,
		Status:    StatusError,
		QueryTime: time.Since(start),
		Err:       msg,
	}
}

// okResponse builds an AVAILABLE-status response with results.
func okResponse(t Type, start time.Time, results []Result) *Response {
	return &Response{
		Backend:   t,
		Status:    StatusAvailable,
		Results:   results,
		QueryTime: time.Since(start),
	}
}

// SearchBackend is the uniform contract over heterogeneous search
// substrates.
type SearchBackend interface {
	// Type returns the backend's stable identity.
	Type() Type

	// Status returns the current lifecycle status without probing.
	Status() Status

	// EnsureInitialized performs a cheap reachability probe exactly once.
	// Subsequent calls are no-ops. Probe failure is represented via
	// Status, never via panic or error.
	EnsureInitialized(ctx context.Context)

	// Search executes the underlying query. Ordinary failures (no
	// results, authorization errors, backend errors) are captured in the
	// Response with StatusError; Search never returns nil.
	Search(ctx context.Context, req Request) *Response

	// HealthCheck re-probes the backend, bypassing the cached status,
	// and reports whether it is reachable.
	HealthCheck(ctx context.Context) bool
}
