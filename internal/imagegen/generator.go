package imagegen

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"wanx/internal/domain"
	"wanx/internal/infra"
)

// Options configures a Generator.
type Options struct {
	Client   JobClient
	Deadline time.Duration
	Logger   *infra.Logger
	Reporter Reporter
}

// Generator runs one submit, wait, fetch sequence per call.
type Generator struct {
	client   JobClient
	fetcher  *Fetcher
	deadline time.Duration
	logger   *infra.Logger
	reporter Reporter
}

// NewGenerator builds a Generator; Client is required.
func NewGenerator(opts Options) (*Generator, error) {
	if opts.Client == nil {
		return nil, errors.New("imagegen: client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = infra.NopLogger()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = infra.DefaultTimeout
	}
	return &Generator{
		client:   opts.Client,
		fetcher:  NewFetcher(opts.Client, logger),
		deadline: deadline,
		logger:   logger,
		reporter: reporter,
	}, nil
}

// Run submits req once, waits for the task to finish and stores its images in
// outputDir. The first error from any step ends the run and is returned as is.
func (g *Generator) Run(ctx context.Context, credential string, req domain.GenerationRequest, outputDir string) (*Result, error) {
	runID := uuid.NewString()
	logger := g.logger.With().Str("run_id", runID).Logger()
	started := time.Now()

	handle, err := g.client.Submit(ctx, credential, req)
	if err != nil {
		logger.Error().Err(err).Msg("imagegen: submit failed")
		return nil, err
	}
	logger = logger.With().Str("task_id", handle.String()).Logger()
	g.reporter.Submitted(handle)

	status, err := g.client.WaitForTerminal(ctx, credential, handle, g.deadline)
	if err != nil {
		logger.Error().Err(err).Msg("imagegen: task did not succeed")
		return nil, err
	}
	g.reporter.Completed(len(status.Artifacts))
	if len(status.Artifacts) == 0 {
		logger.Warn().Msg("imagegen: task succeeded without artifacts")
	}

	files, err := g.fetcher.FetchAll(ctx, status.Artifacts, outputDir)
	for _, path := range files {
		g.reporter.Saved(path)
	}
	if err != nil {
		logger.Error().Err(err).Int("saved", len(files)).Int("total", len(status.Artifacts)).Msg("imagegen: fetch failed")
		return nil, err
	}

	logger.Info().
		Int("files", len(files)).
		Dur("elapsed", time.Since(started)).
		Msg("imagegen: run complete")
	return &Result{RunID: runID, Handle: handle, Files: files}, nil
}
