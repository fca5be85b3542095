package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/veldtdata/unisearch/internal/engine"
	"github.com/veldtdata/unisearch/internal/output"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	scope  string
	bucket string
	limit  int
	format string
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the catalog",
		Long: `Search the catalog with a free-form query.

The query is classified (file search, package discovery, analytical)
and routed to the best available backend.

Examples:
  unisearch search "find CSV files"
  unisearch search "packages about genomics" --scope catalog
  unisearch search "largest files" --scope bucket --bucket raw-data
  unisearch search "files larger than 50MB" --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.scope, "scope", "s", "global", "Search scope: bucket, catalog, global")
	cmd.Flags().StringVarP(&opts.bucket, "bucket", "b", "", "Bucket name (required for bucket scope)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runSearch(cmd *cobra.Command, queryText string, opts searchOptions) error {
	if opts.scope == "bucket" && opts.bucket == "" {
		return fmt.Errorf("bucket scope requires --bucket")
	}

	comp, err := compose()
	if err != nil {
		return err
	}

	result := comp.engine.Search(cmd.Context(), engine.Params{
		Query:  queryText,
		Scope:  opts.scope,
		Bucket: opts.bucket,
		Limit:  opts.limit,
	})

	if opts.format == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("search failed: %s", result.Error)
		}
		return nil
	}
	return renderSearchText(output.New(cmd.OutOrStdout()), result)
}

func renderSearchText(out *output.Writer, result engine.Result) error {
	if !result.Success {
		out.Error(result.Error)
		return fmt.Errorf("search failed: %s", result.Error)
	}

	if len(result.Results) == 0 {
		out.Linef("No results found for %q", result.Query)
		return nil
	}

	out.Headerf("Found %d results for %q (%s, %s)",
		len(result.Results), result.Query, result.Scope, result.BackendUsed)
	out.Newline()

	for i, r := range result.Results {
		title := r.Title
		if r.Bucket != "" {
			title = r.Bucket + "/" + title
		}
		out.ResultLine(i+1, title, r.Score)
		if r.Description != "" {
			out.Dim(r.Description)
		}
		if r.Size > 0 {
			out.Dimf("%s, %s", string(r.Kind), humanize.IBytes(uint64(r.Size)))
		}
	}
	return nil
}
