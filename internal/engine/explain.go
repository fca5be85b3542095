package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/veldtdata/unisearch/internal/backend"
	"github.com/veldtdata/unisearch/internal/query"
)

// Complexity levels for the performance estimate. This is a small
// heuristic over query shape, not a cost model.
const (
	ComplexitySimple   = "simple"
	ComplexityModerate = "moderate"
	ComplexityComplex  = "complex"
)

// BackendSelection is the rationale for which backend would serve.
type BackendSelection struct {
	SelectedBackends   []string `json:"selected_backends"`
	SelectionReasoning string   `json:"selection_reasoning"`
	FallbackChain      []string `json:"fallback_chain"`
}

// PerformanceEstimate is a rough complexity assessment.
type PerformanceEstimate struct {
	Complexity       string `json:"complexity"`
	EstimatedLatency string `json:"estimated_latency"`
}

// Explanation is the full explain response.
type Explanation struct {
	Query               string               `json:"query"`
	QueryAnalysis       query.Analysis       `json:"query_analysis"`
	BackendSelection    BackendSelection     `json:"backend_selection"`
	PerformanceEstimate *PerformanceEstimate `json:"performance_estimate,omitempty"`
	AlternativeQueries  []string             `json:"alternative_queries,omitempty"`
	BackendStatuses     map[string]string    `json:"backend_statuses,omitempty"`
}

// ExplainOptions toggles optional explanation sections.
type ExplainOptions struct {
	ShowPerformance  bool
	ShowAlternatives bool
	ShowBackends     bool
}

// QueryExplainer produces a human-readable rationale for how a query
// would be classified and routed. It reads the registry's selection
// policy without mutating anything beyond the lazy probes.
type QueryExplainer struct {
	analyzer query.Analyzer
	registry *backend.Registry
}

// NewQueryExplainer creates an explainer over the shared analyzer and
// registry. A nil analyzer gets the default rule analyzer.
func NewQueryExplainer(analyzer query.Analyzer, registry *backend.Registry) *QueryExplainer {
	if analyzer == nil {
		analyzer = query.NewAnalyzer()
	}
	return &QueryExplainer{analyzer: analyzer, registry: registry}
}

// Explain analyzes the query and reports the selection rationale.
func (x *QueryExplainer) Explain(ctx context.Context, q string, opts ExplainOptions) Explanation {
	analysis := x.analyzer.Analyze(q)

	exp := Explanation{
		Query:            q,
		QueryAnalysis:    analysis,
		BackendSelection: x.selection(ctx),
	}

	if opts.ShowPerformance {
		exp.PerformanceEstimate = estimatePerformance(q, analysis)
	}
	if opts.ShowAlternatives {
		exp.AlternativeQueries = alternativeQueries(analysis)
	}
	if opts.ShowBackends {
		exp.BackendStatuses = x.statuses()
	}
	return exp
}

// selection mirrors the registry's primary-selection policy read-only.
func (x *QueryExplainer) selection(ctx context.Context) BackendSelection {
	x.registry.EnsureInitialized(ctx)

	var selected []string
	var chain []string
	for _, t := range x.registry.Types() {
		b := x.registry.Get(t)
		chain = append(chain, string(t))
		if len(selected) == 0 && b.Status() == backend.StatusAvailable {
			selected = append(selected, string(t))
		}
	}

	reasoning := "no backend is available; searches will fail explicitly"
	switch {
	case len(selected) > 0 && selected[0] == string(backend.TypeGraphQL):
		reasoning = "graphql is available and preferred for its richer package-relationship data"
	case len(selected) > 0 && selected[0] == string(backend.TypeElasticsearch):
		reasoning = "graphql is not available; elasticsearch serves as the broad-coverage fallback"
	}

	return BackendSelection{
		SelectedBackends:   selected,
		SelectionReasoning: reasoning,
		FallbackChain:      chain,
	}
}

func (x *QueryExplainer) statuses() map[string]string {
	out := make(map[string]string)
	for t, s := range x.registry.Statuses() {
		out[string(t)] = string(s)
	}
	return out
}

// estimatePerformance maps query length and keyword count to a
// complexity level with a ballpark latency range.
func estimatePerformance(q string, analysis query.Analysis) *PerformanceEstimate {
	score := 0
	if len(q) > 50 {
		score++
	}
	if len(analysis.Keywords) > 4 {
		score++
	}
	if !analysis.SizeFilters.IsZero() {
		score++
	}
	if len(analysis.FileExtensions) > 1 {
		score++
	}

	switch {
	case score >= 3:
		return &PerformanceEstimate{Complexity: ComplexityComplex, EstimatedLatency: "1-5s"}
	case score >= 1:
		return &PerformanceEstimate{Complexity: ComplexityModerate, EstimatedLatency: "500ms-2s"}
	default:
		return &PerformanceEstimate{Complexity: ComplexitySimple, EstimatedLatency: "<500ms"}
	}
}

// alternativeQueries proposes rephrasings derived from the analysis.
func alternativeQueries(analysis query.Analysis) []string {
	var alts []string

	keywords := strings.Join(analysis.Keywords, " ")
	if keywords == "" {
		return nil
	}

	switch analysis.QueryType {
	case query.TypeFileSearch:
		alts = append(alts, "packages about "+keywords)
		for _, ext := range analysis.FileExtensions {
			alts = append(alts, fmt.Sprintf("count of %s files", ext))
		}
	case query.TypePackageDiscovery:
		alts = append(alts, "find files "+keywords)
	case query.TypeAnalyticalSearch:
		alts = append(alts, "find "+keywords)
	default:
		alts = append(alts, "find files "+keywords, "packages about "+keywords)
	}

	if analysis.SizeFilters.Min > 0 {
		alts = append(alts, fmt.Sprintf("smallest files over %s",
			humanize.IBytes(uint64(analysis.SizeFilters.Min))))
	}
	if analysis.SizeFilters.Max > 0 {
		alts = append(alts, fmt.Sprintf("largest files under %s",
			humanize.IBytes(uint64(analysis.SizeFilters.Max))))
	}
	return alts
}
