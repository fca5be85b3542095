// Package engine composes query analysis, backend selection, and result
// shaping into the unified search entry point, plus the suggestion and
// explanation services built on the same analysis and selection policy.
package engine

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/veldtdata/unisearch/internal/backend"
	"github.com/veldtdata/unisearch/internal/query"
	"github.com/veldtdata/unisearch/internal/telemetry"
)

// ErrMsgNoBackend is the fixed failure message when no backend can serve.
const ErrMsgNoBackend = "Catalog search not available"

// Config holds engine execution parameters.
type Config struct {
	// DefaultLimit applies when a request does not set a limit.
	DefaultLimit int

	// MaxLimit caps any requested limit.
	MaxLimit int

	// Timeout bounds one backend call. Zero means no engine-imposed
	// timeout; the caller's context still applies.
	Timeout time.Duration
}

// DefaultConfig returns engine defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit: 10,
		MaxLimit:     100,
		Timeout:      15 * time.Second,
	}
}

// Params is one search request.
type Params struct {
	Query   string
	Scope   string
	Bucket  string
	Limit   int
	Filters backend.Filters
}

// BackendStatus reports the failing backend's state on error results.
type BackendStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Result is the engine's caller-facing outcome. It is JSON-serializable
// and always carries a definitive success/failure signal; an ambiguous
// "probably empty" result is not representable.
type Result struct {
	Success     bool             `json:"success"`
	Results     []backend.Result `json:"results"`
	BackendUsed string           `json:"backend_used,omitempty"`
	Query       string           `json:"query,omitempty"`
	Scope       string           `json:"scope,omitempty"`
	Error       string           `json:"error,omitempty"`

	BackendStatus *BackendStatus  `json:"backend_status,omitempty"`
	Analysis      *query.Analysis `json:"query_analysis,omitempty"`
	RequestID     string          `json:"request_id,omitempty"`
	QueryTimeMS   int64           `json:"query_time_ms,omitempty"`
}

// Engine is the unified search entry point. It owns no backend state;
// the registry is injected by the composing layer.
type Engine struct {
	registry *backend.Registry
	analyzer query.Analyzer
	config   Config
	logger   *slog.Logger
	metrics  *telemetry.QueryMetrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnalyzer replaces the default cached rule analyzer.
func WithAnalyzer(a query.Analyzer) Option {
	return func(e *Engine) {
		if a != nil {
			e.analyzer = a
		}
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables query telemetry collection.
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine over the given registry.
func New(registry *backend.Registry, config Config, opts ...Option) *Engine {
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if config.MaxLimit < config.DefaultLimit {
		config.MaxLimit = DefaultConfig().MaxLimit
	}

	e := &Engine{
		registry: registry,
		analyzer: query.NewCachedAnalyzer(query.NewAnalyzer(), query.DefaultCacheSize),
		config:   config,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Registry exposes the injected registry for read-only collaborators
// (explainer, status reporting).
func (e *Engine) Registry() *backend.Registry {
	return e.registry
}

// Search runs one unified search. It never returns an error: every
// outcome, including "no backend available", is an explicit Result.
func (e *Engine) Search(ctx context.Context, p Params) Result {
	start := time.Now()
	requestID := uuid.NewString()

	scope, err := backend.ParseScope(p.Scope)
	if err != nil {
		return e.failure(p, requestID, start, err.Error(), nil)
	}
	limit := e.clampLimit(p.Limit)

	// Analysis always runs, even when the chosen backend ignores parts
	// of it: suggest/explain parity depends on it and it feeds filter
	// translation.
	analysis := e.analyzer.Analyze(p.Query)
	filters := translateFilters(analysis, p.Filters)

	e.logger.Info("search_started",
		slog.String("request_id", requestID),
		slog.String("query", p.Query),
		slog.String("scope", string(scope)),
		slog.String("query_type", string(analysis.QueryType)),
		slog.Int("limit", limit))

	primary := e.registry.SelectPrimary(ctx)
	if primary == nil {
		r := e.failure(p, requestID, start, ErrMsgNoBackend, nil)
		e.record(p.Query, analysis, "", start, 0, true)
		return r
	}

	callCtx := ctx
	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	resp := primary.Search(callCtx, backend.Request{
		Query:   p.Query,
		Scope:   scope,
		Bucket:  p.Bucket,
		Filters: filters,
		Limit:   limit,
	})

	if resp.Status == backend.StatusError {
		r := e.failure(p, requestID, start, resp.Err, &BackendStatus{
			Status: string(backend.StatusError),
			Error:  resp.Err,
		})
		e.record(p.Query, analysis, string(primary.Type()), start, 0, true)
		return r
	}

	results := shapeResults(resp.Results, limit)
	e.logger.Info("search_complete",
		slog.String("request_id", requestID),
		slog.String("backend", string(primary.Type())),
		slog.Int("results", len(results)),
		slog.Duration("query_time", resp.QueryTime))
	e.record(p.Query, analysis, string(primary.Type()), start, len(results), false)

	return Result{
		Success:     true,
		Results:     results,
		BackendUsed: string(primary.Type()),
		Query:       p.Query,
		Scope:       string(scope),
		Analysis:    &analysis,
		RequestID:   requestID,
		QueryTimeMS: time.Since(start).Milliseconds(),
	}
}

// failure shapes an explicit-failure result. A failed backend is never
// reported as a silent empty success.
func (e *Engine) failure(p Params, requestID string, start time.Time, msg string, bs *BackendStatus) Result {
	e.logger.Warn("search_failed",
		slog.String("request_id", requestID),
		slog.String("query", p.Query),
		slog.String("error", msg))
	return Result{
		Success:       false,
		Results:       []backend.Result{},
		Error:         msg,
		BackendStatus: bs,
		RequestID:     requestID,
		QueryTimeMS:   time.Since(start).Milliseconds(),
	}
}

func (e *Engine) record(q string, analysis query.Analysis, backendUsed string, start time.Time, count int, failed bool) {
	if e.metrics == nil {
		return
	}
	e.metrics.Record(telemetry.QueryEvent{
		Query:       q,
		QueryType:   string(analysis.QueryType),
		Backend:     backendUsed,
		ResultCount: count,
		Latency:     time.Since(start),
		Failed:      failed,
	})
}

func (e *Engine) clampLimit(limit int) int {
	if limit <= 0 {
		return e.config.DefaultLimit
	}
	if limit > e.config.MaxLimit {
		return e.config.MaxLimit
	}
	return limit
}

// translateFilters merges caller-supplied filters with analysis-derived
// hints. Explicit caller filters win per field.
func translateFilters(analysis query.Analysis, explicit backend.Filters) backend.Filters {
	merged := explicit
	if len(merged.Extensions) == 0 {
		merged.Extensions = analysis.FileExtensions
	}
	if merged.SizeMin == 0 {
		merged.SizeMin = analysis.SizeFilters.Min
	}
	if merged.SizeMax == 0 {
		merged.SizeMax = analysis.SizeFilters.Max
	}
	return merged
}

// shapeResults sorts score-descending with a stable sort (ties keep
// backend-provided order) and truncates to limit.
func shapeResults(results []backend.Result, limit int) []backend.Result {
	shaped := make([]backend.Result, len(results))
	copy(shaped, results)

	sort.SliceStable(shaped, func(i, j int) bool {
		return shaped[i].Score > shaped[j].Score
	})
	if limit > 0 && len(shaped) > limit {
		shaped = shaped[:limit]
	}
	return shaped
}
