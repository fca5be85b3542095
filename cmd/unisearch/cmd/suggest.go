package cmd

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/veldtdata/unisearch/internal/engine"
	"github.com/veldtdata/unisearch/internal/output"
)

// suggestOptions holds CLI flags for suggest.
type suggestOptions struct {
	context string
	types   []string
	limit   int
	format  string
}

func newSuggestCmd() *cobra.Command {
	var opts suggestOptions

	cmd := &cobra.Command{
		Use:   "suggest [partial query]",
		Short: "Suggest query completions",
		Long: `Suggest completions for a partial query from the built-in
vocabulary tables. Runs entirely locally; no backend calls.

Examples:
  unisearch suggest "find"
  unisearch suggest "pack" --context raw-data
  unisearch suggest --context team/genomics-brca --type context`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuggest(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.context, "context", "c", "", "Package path or bucket name for context-aware suggestions")
	cmd.Flags().StringSliceVarP(&opts.types, "type", "t", nil, "Suggestion types: completions, file_types, domain, context")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 5, "Maximum suggestions per group")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSuggest(cmd *cobra.Command, partial string, opts suggestOptions) error {
	suggester := engine.NewSuggestionEngine()
	suggestions := suggester.Suggest(partial, opts.context, opts.types, opts.limit)

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(suggestions)
	}

	out := output.New(cmd.OutOrStdout())
	if suggestions.Total == 0 {
		out.Line("No suggestions")
		return nil
	}

	groups := make([]string, 0, len(suggestions.Suggestions))
	for g := range suggestions.Suggestions {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	for _, g := range groups {
		out.Header(g)
		for _, s := range suggestions.Suggestions[g] {
			out.Linef("  %s", s)
		}
		out.Newline()
	}
	out.Dimf("%d suggestions", suggestions.Total)
	return nil
}
