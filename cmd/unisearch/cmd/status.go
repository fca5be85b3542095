package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/veldtdata/unisearch/internal/backend"
	"github.com/veldtdata/unisearch/internal/output"
	"github.com/veldtdata/unisearch/internal/telemetry"
)

// statusOptions holds CLI flags for status.
type statusOptions struct {
	format  string
	metrics bool
}

func newStatusCmd() *cobra.Command {
	var opts statusOptions

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend availability",
		Long:  `Probe every configured backend and report its availability.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Include query telemetry collected this invocation")
	return cmd
}

func runStatus(cmd *cobra.Command, opts statusOptions) error {
	comp, err := compose()
	if err != nil {
		return err
	}

	// Forced probes so status reflects current reachability, not the
	// cached first-probe result.
	ctx, cancel := context.WithTimeout(cmd.Context(), comp.cfg.Search.ProbeTimeout)
	defer cancel()
	healthy := comp.registry.HealthCheck(ctx)
	statuses := comp.registry.Statuses()

	if opts.format == "json" {
		report := struct {
			Backends map[backend.Type]backend.Status `json:"backends"`
			Healthy  map[backend.Type]bool           `json:"healthy"`
			Metrics  *telemetry.Snapshot             `json:"metrics,omitempty"`
		}{Backends: statuses, Healthy: healthy}
		if opts.metrics {
			snap := comp.metrics.Snapshot()
			report.Metrics = &snap
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := output.New(cmd.OutOrStdout())
	out.Header("Backend status")
	anyAvailable := false
	for _, t := range comp.registry.Types() {
		if healthy[t] {
			anyAvailable = true
			out.Successf("%s: available", t)
		} else {
			out.Errorf("%s: %s", t, statuses[t])
		}
	}
	if !anyAvailable {
		out.Newline()
		out.Warning("no backend available; searches will fail explicitly")
	}

	if opts.metrics {
		snap := comp.metrics.Snapshot()
		out.Newline()
		out.Header("Query telemetry")
		out.KeyValue("total queries", fmt.Sprintf("%d", snap.TotalQueries))
		out.KeyValue("failed queries", fmt.Sprintf("%d", snap.FailedQueries))
		out.KeyValue("zero-result share", fmt.Sprintf("%.1f%%", snap.ZeroResultPercentage()))
	}
	return nil
}
