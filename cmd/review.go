package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	"github.com/pantheonreview/pantheon/internal/ai"
	"github.com/pantheonreview/pantheon/internal/config"
	"github.com/pantheonreview/pantheon/internal/logging"
	"github.com/pantheonreview/pantheon/internal/output"
	"github.com/pantheonreview/pantheon/internal/providers"
	"github.com/pantheonreview/pantheon/internal/providers/github"
	"github.com/pantheonreview/pantheon/internal/redact"
	"github.com/pantheonreview/pantheon/internal/review"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// ReviewCommand returns the review command
func ReviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "review",
		Usage: "Review a pull request with every configured reviewer",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Run review without posting comments",
			},
			&cli.IntFlag{
				Name:  "concurrency",
				Usage: "Number of reviewers running at once",
			},
		}, sharedFlags()...),
		ArgsUsage: "PR_URL",
		Action:    runReview,
	}
}

func runReview(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("missing required argument: PR URL")
	}

	ref, err := providers.ParsePRURL(c.Args().Get(0))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("concurrency"); n > 0 {
		cfg.General.Concurrency = n
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := setupLogger(cfg)

	runID := uuid.NewString()
	runLog, err := logging.StartRunLogging(logging.DefaultDir, runID)
	if err != nil {
		logger.Warn().Err(err).Msg("Run log disabled")
	} else {
		defer runLog.Close()
		logger = runLog.Logger()
		logger.Info().Str("path", runLog.Path()).Msg("Writing run log")
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	provider, err := github.New(github.GitHubConfig{
		Token:             cfg.GitHub.Token,
		APIURL:            cfg.GitHub.APIURL,
		RequestsPerSecond: cfg.GitHub.RequestsPerSecond,
	}, github.WithParser(newParser(cfg, logger)), github.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to create provider: %w", err)
	}

	sources, err := createSources(ctx, cfg, runLog, logger)
	if err != nil {
		return err
	}

	var redactor *redact.Redactor
	if cfg.General.RedactSecrets || cfg.General.GuardPrompts {
		var opts []redact.Option
		if cfg.General.GuardPrompts {
			opts = append(opts, redact.WithInjectionCheck(redact.PromptGuard()))
		}
		if !cfg.General.RedactSecrets {
			opts = append(opts, redact.WithoutSecretScan())
		}
		if redactor, err = redact.New(logger, opts...); err != nil {
			logger.Warn().Err(err).Msg("Input redaction disabled")
		}
	}

	pipeline := review.NewPipeline(sources,
		review.WithProvider(provider),
		review.WithExtractor(newExtractor(cfg, logger)),
		review.WithRedactor(redactor),
		review.WithConfig(review.Config{
			Concurrency:   cfg.General.Concurrency,
			Exclude:       cfg.General.Exclude,
			ReviewTimeout: cfg.General.ReviewTimeout,
			DryRun:        c.Bool("dry-run"),
		}),
		review.WithRunID(runID),
		review.WithLogger(logger),
	)

	result, runErr := pipeline.Run(ctx, ref)
	if result == nil || result.Bundle == nil {
		return runErr
	}

	if err := printBundle(result.Bundle, c.Bool("json")); err != nil {
		return err
	}
	prURL := ""
	if result.PullRequest != nil {
		prURL = result.PullRequest.WebURL
	}
	if err := output.AppendStepSummary(result.Bundle, prURL); err != nil {
		logger.Warn().Err(err).Msg("Could not write step summary")
	}
	for _, f := range result.Redacted {
		logger.Warn().Str("file", f.FilePath).Str("rule", f.RuleID).Int("line", f.Line).Msg("Input masked before review")
	}
	return runErr
}

// createSources builds one reviewer per configured persona, all sharing
// one model client
func createSources(ctx context.Context, cfg *config.Config, runLog *logging.RunLogger, logger zerolog.Logger) ([]review.Source, error) {
	provider, err := ai.ParseProvider(cfg.AI.Provider)
	if err != nil {
		return nil, err
	}
	model, err := ai.NewModel(ctx, ai.ConnectorOptions{
		Provider:    provider,
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.BaseURL,
		ModelConfig: cfg.ModelConfig(),
	})
	if err != nil {
		return nil, err
	}

	var sources []review.Source
	for _, persona := range cfg.Personas() {
		reviewer := ai.NewReviewer(model, persona,
			ai.WithModelConfig(cfg.ModelConfig()),
			ai.WithLogger(logger),
		)
		sources = append(sources, loggedSource{Source: reviewer, runLog: runLog})
	}
	return sources, nil
}

// loggedSource records every response in the run log
type loggedSource struct {
	review.Source
	runLog *logging.RunLogger
}

func (s loggedSource) Review(ctx context.Context, input models.ReviewInput) (string, error) {
	text, err := s.Source.Review(ctx, input)
	if err == nil {
		s.runLog.LogResponse(s.ID(), text)
	}
	return text, err
}
