// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package export implements the octotrace export command: fetch a finished
// workflow run, scrape span parameters out of its job logs, reconcile them
// with the artifact bundle, and ship the run's trace to a collector.
package export

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tombee/octotrace/internal/commands/shared"
	"github.com/tombee/octotrace/internal/config"
	"github.com/tombee/octotrace/internal/gha"
	"github.com/tombee/octotrace/internal/log"
	"github.com/tombee/octotrace/internal/logparse"
	"github.com/tombee/octotrace/internal/params"
	"github.com/tombee/octotrace/internal/tracing"
	otlpexport "github.com/tombee/octotrace/internal/tracing/export"
)

// defaultTimeout bounds one whole export invocation.
const defaultTimeout = 2 * time.Minute

type exportOptions struct {
	repository   string
	runID        int64
	endpoint     string
	protocol     string
	insecure     bool
	headers      map[string]string
	serviceName  string
	artifactName string
	localFile    string
	archivePath  string
	caCertPath   string
	serverName   string
	skipVerify   bool
	timeout      time.Duration
}

// NewExportCommand creates the export command
func NewExportCommand() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one workflow run as an OpenTelemetry trace",
		Long: `Export fetches a completed GitHub Actions workflow run, builds its
span tree (workflow, jobs, steps), enriches the spans with parameters found
in job logs or in a span-parameters artifact, and exports the trace over
OTLP. Use --protocol console for a dry run without a collector.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.repository, "repository", "", "Repository slug as owner/repo (default: $GITHUB_REPOSITORY)")
	flags.Int64Var(&opts.runID, "run-id", 0, "Workflow run id to export (default: $GITHUB_RUN_ID)")
	flags.StringVar(&opts.endpoint, "endpoint", "", "Collector endpoint (default: $OTEL_EXPORTER_OTLP_ENDPOINT)")
	flags.StringVar(&opts.protocol, "protocol", "", "Export protocol: grpc, http, or console")
	flags.BoolVar(&opts.insecure, "insecure", false, "Disable TLS on the collector connection")
	flags.StringToStringVar(&opts.headers, "header", nil, "Export request header as key=value (repeatable)")
	flags.StringVar(&opts.serviceName, "service-name", "", "service.name resource attribute")
	flags.StringVar(&opts.artifactName, "artifact-name", "", "Span parameters artifact name (default: span-parameters)")
	flags.StringVar(&opts.localFile, "params-file", "", "Local span parameters file (default: span-parameters.json)")
	flags.StringVar(&opts.archivePath, "archive", "", "Also record spans into a local SQLite database at this path")
	flags.StringVar(&opts.caCertPath, "ca-cert", "", "PEM file with a custom CA for collector verification")
	flags.StringVar(&opts.serverName, "tls-server-name", "", "Expected collector certificate server name")
	flags.BoolVar(&opts.skipVerify, "tls-skip-verify", false, "Skip collector certificate verification (development only)")
	flags.DurationVar(&opts.timeout, "timeout", defaultTimeout, "Overall export timeout")

	return cmd
}

func runExport(cmd *cobra.Command, opts *exportOptions) error {
	cfg, err := config.Load(shared.GetConfigPath())
	if err != nil {
		return shared.NewConfigError("load configuration", err)
	}
	applyFlags(cmd, opts, cfg)

	if cfg.GitHub.Owner == "" || cfg.GitHub.Repo == "" {
		return shared.NewConfigError("repository is required (--repository or $GITHUB_REPOSITORY)", nil)
	}
	if cfg.GitHub.RunID == 0 {
		return shared.NewConfigError("run id is required (--run-id or $GITHUB_RUN_ID)", nil)
	}

	logger := newLogger(cfg)
	correlationID := uuid.NewString()
	logger = log.WithCorrelationID(
		log.WithRunContext(logger, cfg.GitHub.Owner+"/"+cfg.GitHub.Repo, cfg.GitHub.RunID),
		correlationID,
	)

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	tlsConfig, err := otlpexport.BuildTLSConfig(otlpexport.TLSInput{
		ServerName: opts.serverName,
		CACertPath: opts.caCertPath,
		SkipVerify: opts.skipVerify,
	})
	if err != nil {
		return shared.NewConfigError("build TLS configuration", err)
	}

	started := time.Now()
	result, err := export(ctx, cfg, tlsConfig, logger, correlationID)
	if err != nil {
		return err
	}
	logger.Info("export complete",
		"trace_id", result.TraceID,
		"spans", result.Spans,
		log.DurationKey, time.Since(started).Milliseconds(),
	)

	return printSummary(cmd, result)
}

// applyFlags overlays explicitly set flags onto the loaded config; flags win
// over environment and file values.
func applyFlags(cmd *cobra.Command, opts *exportOptions, cfg *config.Config) {
	if cmd.Flags().Changed("repository") {
		if owner, repo, ok := config.SplitRepository(opts.repository); ok {
			cfg.GitHub.Owner = owner
			cfg.GitHub.Repo = repo
		}
	}
	if cmd.Flags().Changed("run-id") {
		cfg.GitHub.RunID = opts.runID
	}
	if cmd.Flags().Changed("endpoint") {
		cfg.Export.Endpoint = opts.endpoint
	}
	if cmd.Flags().Changed("protocol") {
		cfg.Export.Protocol = opts.protocol
	}
	if cmd.Flags().Changed("insecure") {
		cfg.Export.Insecure = opts.insecure
	}
	if cmd.Flags().Changed("header") {
		cfg.Export.Headers = opts.headers
	}
	if cmd.Flags().Changed("service-name") {
		cfg.Export.ServiceName = opts.serviceName
	}
	if cmd.Flags().Changed("artifact-name") {
		cfg.Params.ArtifactName = opts.artifactName
	}
	if cmd.Flags().Changed("params-file") {
		cfg.Params.LocalFile = opts.localFile
	}
	if cmd.Flags().Changed("archive") {
		cfg.Export.ArchivePath = opts.archivePath
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = log.Format(cfg.Log.Format)
	}
	switch {
	case shared.GetVerbose():
		logCfg.Level = "debug"
	case shared.GetQuiet():
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}

// exportResult summarizes one finished export for human or JSON output.
type exportResult struct {
	TraceID string `json:"trace_id"`
	Run     int64  `json:"run_id"`
	Jobs    int    `json:"jobs"`
	Spans   int    `json:"spans"`
}

// export runs the full pipeline against an already-validated config.
func export(ctx context.Context, cfg *config.Config, tlsConfig *tls.Config, logger *slog.Logger, correlationID string) (*exportResult, error) {
	client, err := newGitHubClient(ctx, cfg, logger)
	if err != nil {
		return nil, shared.NewConfigError("create GitHub client", err)
	}

	owner, repo, runID := cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.RunID

	// Without run metadata there is no trace to build: these two failures
	// are fatal. Everything after them only enriches the trace and
	// degrades instead of failing.
	run, err := client.GetWorkflowRun(ctx, owner, repo, runID)
	if err != nil {
		return nil, shared.NewFetchError("fetch workflow run", err)
	}
	jobs, err := client.ListWorkflowJobs(ctx, owner, repo, runID)
	if err != nil {
		return nil, shared.NewFetchError("list workflow jobs", err)
	}
	logger.Debug("fetched run metadata", "workflow", run.GetName(), "jobs", len(jobs))

	logParams := make(map[int64]map[int]logparse.ParsedStepLogs, len(jobs))
	for _, job := range jobs {
		jobLogger := log.WithJobContext(logger, job.GetID(), job.GetName())
		text, err := client.FetchJobLogs(ctx, owner, repo, job.GetID())
		if err != nil {
			jobLogger.Warn("failed to fetch job logs, exporting without log-derived parameters", "error", err)
			continue
		}
		logParams[job.GetID()] = logparse.ParseJobLogs(text, tracing.StepDescriptors(job))
	}

	artifactParams := params.LoadArtifactParameters(ctx, params.LoadOptions{
		FileName:     cfg.Params.LocalFile,
		ArtifactName: cfg.Params.ArtifactName,
		Fetcher:      client,
		Owner:        owner,
		Repo:         repo,
		RunID:        runID,
		Logger:       logger,
	})

	provider, err := tracing.NewProvider(ctx, tracing.Config{
		ServiceName:    cfg.Export.ServiceName,
		ServiceVersion: versionString(),
		Protocol:       tracing.Protocol(cfg.Export.Protocol),
		Endpoint:       cfg.Export.Endpoint,
		Headers:        cfg.Export.Headers,
		Insecure:       cfg.Export.Insecure,
		TLSConfig:      tlsConfig,
		ArchivePath:    cfg.Export.ArchivePath,
	})
	if err != nil {
		return nil, shared.NewExportError("create trace exporter", err)
	}

	rootCtx, err := tracing.BuildRunTrace(ctx, provider.Tracer(), tracing.BuildInput{
		Owner:          owner,
		Repo:           repo,
		Run:            run,
		Jobs:           jobs,
		ArtifactParams: artifactParams,
		LogParams:      logParams,
		CorrelationID:  correlationID,
	})
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, shared.NewExportError("build run trace", err)
	}

	if err := provider.Shutdown(ctx); err != nil {
		return nil, shared.NewExportError("export spans", err)
	}

	spans := 1
	for _, job := range jobs {
		spans += 1 + len(job.Steps)
	}
	return &exportResult{
		TraceID: rootCtx.TraceID().String(),
		Run:     runID,
		Jobs:    len(jobs),
		Spans:   spans,
	}, nil
}

func newGitHubClient(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*gha.Client, error) {
	opts := []gha.Option{gha.WithLogger(logger)}
	if cfg.GitHub.BaseURL != "" {
		opts = append(opts, gha.WithEnterpriseURLs(cfg.GitHub.BaseURL, ""))
	}
	return gha.NewClient(ctx, cfg.GitHub.Token, opts...)
}

func printSummary(cmd *cobra.Command, result *exportResult) error {
	if shared.GetQuiet() {
		return nil
	}
	if shared.GetJSON() {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal export summary: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	cmd.Printf("exported run %d: %d jobs, %d spans\n", result.Run, result.Jobs, result.Spans)
	cmd.Printf("  trace id: %s\n", result.TraceID)
	return nil
}

func versionString() string {
	v, _, _ := shared.GetVersion()
	return v
}
