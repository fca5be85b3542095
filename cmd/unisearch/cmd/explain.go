package cmd

import (
	"encoding/json"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/veldtdata/unisearch/internal/engine"
	"github.com/veldtdata/unisearch/internal/output"
)

// explainOptions holds CLI flags for explain.
type explainOptions struct {
	performance  bool
	alternatives bool
	backends     bool
	format       string
}

func newExplainCmd() *cobra.Command {
	var opts explainOptions

	cmd := &cobra.Command{
		Use:   "explain <query>",
		Short: "Explain how a query would be executed",
		Long: `Explain how a query would be classified and which backend would
serve it, without running the search.

Examples:
  unisearch explain "find CSV files larger than 50MB"
  unisearch explain "packages about genomics" --alternatives
  unisearch explain "largest files" --performance --backends`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.performance, "performance", false, "Include a complexity estimate")
	cmd.Flags().BoolVar(&opts.alternatives, "alternatives", false, "Include alternative query phrasings")
	cmd.Flags().BoolVar(&opts.backends, "backends", false, "Include backend statuses")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runExplain(cmd *cobra.Command, queryText string, opts explainOptions) error {
	comp, err := compose()
	if err != nil {
		return err
	}

	explainer := engine.NewQueryExplainer(comp.analyzer, comp.registry)
	explanation := explainer.Explain(cmd.Context(), queryText, engine.ExplainOptions{
		ShowPerformance:  opts.performance,
		ShowAlternatives: opts.alternatives,
		ShowBackends:     opts.backends,
	})

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(explanation)
	}

	out := output.New(cmd.OutOrStdout())
	renderExplanation(out, explanation)
	return nil
}

func renderExplanation(out *output.Writer, exp engine.Explanation) {
	out.Headerf("Query: %q", exp.Query)
	out.Rule()

	a := exp.QueryAnalysis
	out.KeyValue("classification", string(a.QueryType))
	if len(a.Keywords) > 0 {
		out.KeyValue("keywords", strings.Join(a.Keywords, ", "))
	}
	if len(a.FileExtensions) > 0 {
		out.KeyValue("file extensions", strings.Join(a.FileExtensions, ", "))
	}
	if a.SizeFilters.Min > 0 {
		out.KeyValue("min size", humanize.IBytes(uint64(a.SizeFilters.Min)))
	}
	if a.SizeFilters.Max > 0 {
		out.KeyValue("max size", humanize.IBytes(uint64(a.SizeFilters.Max)))
	}

	out.Newline()
	sel := exp.BackendSelection
	if len(sel.SelectedBackends) > 0 {
		out.KeyValue("backend", strings.Join(sel.SelectedBackends, ", "))
	} else {
		out.KeyValue("backend", "none available")
	}
	out.KeyValue("reasoning", sel.SelectionReasoning)
	out.KeyValue("fallback chain", strings.Join(sel.FallbackChain, " -> "))

	if exp.PerformanceEstimate != nil {
		out.Newline()
		out.KeyValue("complexity", exp.PerformanceEstimate.Complexity)
		out.KeyValue("estimated latency", exp.PerformanceEstimate.EstimatedLatency)
	}

	if len(exp.AlternativeQueries) > 0 {
		out.Newline()
		out.Header("Alternative queries")
		for _, alt := range exp.AlternativeQueries {
			out.Linef("  %s", alt)
		}
	}

	if len(exp.BackendStatuses) > 0 {
		out.Newline()
		out.Header("Backend statuses")
		for name, status := range exp.BackendStatuses {
			out.KeyValue(name, status)
		}
	}
}
