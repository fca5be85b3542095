// Package cmd provides the CLI commands for unisearch.
package cmd

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/veldtdata/unisearch/internal/backend"
	"github.com/veldtdata/unisearch/internal/config"
	"github.com/veldtdata/unisearch/internal/engine"
	"github.com/veldtdata/unisearch/internal/logging"
	"github.com/veldtdata/unisearch/internal/query"
	"github.com/veldtdata/unisearch/internal/telemetry"
	"github.com/veldtdata/unisearch/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the unisearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unisearch",
		Short: "Unified search across catalog backends",
		Long: `unisearch queries a data catalog through its GraphQL API and its
Elasticsearch-backed index behind one interface.

The GraphQL backend is preferred when reachable; the index backend
covers the rest. Searches either succeed with ranked results or fail
with an explicit reason - never a silent empty answer.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("unisearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: ~/.unisearch/config.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.unisearch/logs/")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
		}
	}

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newSuggestCmd())
	cmd.AddCommand(newExplainCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging routes structured logs to the log file, keeping stdout
// clean for command output.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if debugMode {
		logCfg.Level = "debug"
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		// Logging failure must not block the command; fall back to the
		// default stderr handler.
		return nil
	}
	slog.SetDefault(logger)
	loggingCleanup = cleanup
	return nil
}

// composition wires the configured backends into an engine. The
// registry lives for one command invocation.
type composition struct {
	cfg      *config.Config
	registry *backend.Registry
	engine   *engine.Engine
	analyzer query.Analyzer
	metrics  *telemetry.QueryMetrics
}

// compose builds the engine from configuration.
func compose() (*composition, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	httpClient := &http.Client{Timeout: cfg.Search.Timeout}

	session := backend.NewHTTPSessionClient(cfg.Catalog.SearchEndpoint, cfg.Catalog.AuthToken, httpClient)
	es := backend.NewElasticsearchBackend(session,
		backend.WithFanoutConcurrency(cfg.Search.FanoutConcurrency))
	gql := backend.NewGraphQLBackend(cfg.Catalog.GraphQLEndpoint, cfg.Catalog.AuthToken,
		backend.WithGraphQLHTTPClient(httpClient))

	registry := backend.NewRegistry([]backend.SearchBackend{es, gql})
	analyzer := query.NewCachedAnalyzer(query.NewAnalyzer(), cfg.Search.AnalyzerCacheSize)
	metrics := telemetry.NewQueryMetrics(telemetry.DefaultConfig())

	eng := engine.New(registry, engine.Config{
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxLimit:     cfg.Search.MaxLimit,
		Timeout:      cfg.Search.Timeout,
	},
		engine.WithAnalyzer(analyzer),
		engine.WithMetrics(metrics),
	)

	return &composition{
		cfg:      cfg,
		registry: registry,
		engine:   eng,
		analyzer: analyzer,
		metrics:  metrics,
	}, nil
}
