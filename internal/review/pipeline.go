package review

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pantheonreview/pantheon/internal/aggregate"
	"github.com/pantheonreview/pantheon/internal/diff"
	"github.com/pantheonreview/pantheon/internal/feedback"
	"github.com/pantheonreview/pantheon/internal/providers"
	"github.com/pantheonreview/pantheon/internal/redact"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// ErrNoProvider is returned by Run when the pipeline has no hosting provider
var ErrNoProvider = errors.New("no code hosting provider configured")

// Pipeline orchestrates one review: fetch the changeset, collect critique
// from every source, extract and aggregate the feedback, then post it
type Pipeline struct {
	provider   providers.Provider
	sources    []Source
	extractor  *feedback.Extractor
	aggregator *aggregate.Aggregator
	redactor   *redact.Redactor
	config     Config
	runID      string
	logger     zerolog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithProvider sets the hosting provider used by Run
func WithProvider(provider providers.Provider) Option {
	return func(p *Pipeline) {
		p.provider = provider
	}
}

// WithExtractor replaces the default feedback extractor
func WithExtractor(extractor *feedback.Extractor) Option {
	return func(p *Pipeline) {
		p.extractor = extractor
	}
}

// WithAggregator replaces the default aggregator
func WithAggregator(aggregator *aggregate.Aggregator) Option {
	return func(p *Pipeline) {
		p.aggregator = aggregator
	}
}

// WithRedactor masks secrets and prompt injection attempts in the
// changeset before sources see it
func WithRedactor(redactor *redact.Redactor) Option {
	return func(p *Pipeline) {
		p.redactor = redactor
	}
}

// WithConfig sets the pipeline configuration
func WithConfig(config Config) Option {
	return func(p *Pipeline) {
		p.config = config
	}
}

// WithRunID fixes the run identifier instead of generating one per run
func WithRunID(runID string) Option {
	return func(p *Pipeline) {
		p.runID = runID
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline over the given sources
func NewPipeline(sources []Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources: sources,
		config:  DefaultConfig(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.extractor == nil {
		p.extractor = feedback.NewExtractor(feedback.WithLogger(p.logger))
	}
	if p.aggregator == nil {
		p.aggregator = aggregate.New(aggregate.WithLogger(p.logger))
	}
	return p
}

// Result contains the outcome of one run
type Result struct {
	RunID       string
	PullRequest *providers.PullRequestDetails
	Bundle      *models.ReviewBundle
	Redacted    []redact.Finding
	// Posted is set when the review was submitted
	Posted bool
	// Fallback is set when positioned comments were rejected and the review
	// was resubmitted as a single body
	Fallback bool
	Duration time.Duration
}

// Run reviews a pull request end to end. Per-source failures are recorded
// in the bundle and never fail the run; fetch and post failures do.
func (p *Pipeline) Run(ctx context.Context, ref providers.PullRequestRef) (*Result, error) {
	if p.provider == nil {
		return nil, ErrNoProvider
	}

	start := time.Now()
	runID := p.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.With().Str("run_id", runID).Str("pr", ref.ID()).Logger()
	result := &Result{RunID: runID}

	if p.config.ReviewTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.ReviewTimeout)
		defer cancel()
	}

	logger.Info().Str("provider", p.provider.Name()).Msg("Fetching pull request")
	pr, err := p.provider.GetPullRequest(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get pull request details: %w", err)
	}
	result.PullRequest = pr

	files, err := p.provider.GetPullRequestFiles(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to get code changes: %w", err)
	}

	model := diff.NewModel(reviewable(files)...).Exclude(p.config.Exclude)
	logger.Info().
		Int("changed_files", len(files)).
		Int("reviewed_files", model.Len()).
		Msg("Built diff model")

	input := models.ReviewInput{Title: pr.Title, Description: pr.Description, Files: model.Files()}
	bundle, redacted := p.analyze(ctx, model, input, logger)
	bundle.RunID = runID
	result.Bundle = bundle
	result.Redacted = redacted

	switch {
	case model.Len() == 0:
		logger.Info().Msg("No changes to review, nothing posted")
	case p.config.DryRun:
		logger.Info().Int("comments", bundle.CommentCount()).Msg("Dry run, review not posted")
	default:
		fallback, err := p.post(ctx, ref, pr, bundle, logger)
		if err != nil {
			result.Duration = time.Since(start)
			return result, fmt.Errorf("failed to post review: %w", err)
		}
		result.Posted = true
		result.Fallback = fallback
	}

	result.Duration = time.Since(start)
	logger.Info().
		Int("resolved", len(bundle.Resolved)).
		Int("unresolved", len(bundle.Unresolved)).
		Int("failed_sources", len(bundle.Failures)).
		Dur("duration", result.Duration).
		Msg("Review completed")
	return result, nil
}

// Analyze collects critique from every source and resolves it against the
// model, without any hosting provider. An empty model yields an empty
// bundle and no source is asked.
func (p *Pipeline) Analyze(ctx context.Context, model *diff.Model, input models.ReviewInput) *models.ReviewBundle {
	bundle, _ := p.analyze(ctx, model, input, p.logger)
	return bundle
}

func (p *Pipeline) analyze(ctx context.Context, model *diff.Model, input models.ReviewInput, logger zerolog.Logger) (*models.ReviewBundle, []redact.Finding) {
	if model.Len() == 0 {
		return p.aggregator.Aggregate(model, nil), nil
	}

	input, redacted := p.redactor.Input(input)
	input, injected := p.redactor.Injections(ctx, input)
	redacted = append(redacted, injected...)
	feedbacks, failures := p.gather(ctx, input, logger)

	bundle := p.aggregator.Aggregate(model, feedbacks)
	bundle.Failures = failures
	return bundle, redacted
}

// gather asks every source concurrently, bounded by the configured
// concurrency. Results keep source order. A failed source contributes no
// candidates and is reported as a failure.
func (p *Pipeline) gather(ctx context.Context, input models.ReviewInput, logger zerolog.Logger) ([]models.SourceFeedback, []models.SourceFailure) {
	texts := make([]string, len(p.sources))
	errs := make([]error, len(p.sources))

	var g errgroup.Group
	g.SetLimit(max(1, p.config.Concurrency))
	for i, src := range p.sources {
		g.Go(func() error {
			texts[i], errs[i] = src.Review(ctx, input)
			return nil
		})
	}
	_ = g.Wait()

	feedbacks := make([]models.SourceFeedback, 0, len(p.sources))
	var failures []models.SourceFailure
	for i, src := range p.sources {
		if errs[i] != nil {
			logger.Warn().Err(errs[i]).Str("source", src.ID()).Msg("Source failed, continuing without it")
			failures = append(failures, models.SourceFailure{SourceID: src.ID(), Error: errs[i].Error()})
			feedbacks = append(feedbacks, models.SourceFeedback{SourceID: src.ID()})
			continue
		}
		fb := p.extractor.Extract(src.ID(), texts[i])
		logger.Debug().
			Str("source", src.ID()).
			Int("candidates", len(fb.Candidates)).
			Str("score", fb.Score).
			Msg("Extracted feedback")
		feedbacks = append(feedbacks, fb)
	}
	return feedbacks, failures
}

// reviewable drops removed files, which have no lines to comment on
func reviewable(files []*models.CodeDiff) []*models.CodeDiff {
	kept := make([]*models.CodeDiff, 0, len(files))
	for _, f := range files {
		if f == nil || f.IsDeleted() {
			continue
		}
		kept = append(kept, f)
	}
	return kept
}
