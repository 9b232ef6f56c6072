package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pantheonreview/pantheon/internal/config"
	"github.com/pantheonreview/pantheon/internal/review"
	"github.com/pantheonreview/pantheon/pkg/models"
)

// ExtractCommand returns the extract command, which runs extraction and
// aggregation over saved reviewer responses without any network access
func ExtractCommand() *cli.Command {
	return &cli.Command{
		Name:  "extract",
		Usage: "Resolve saved reviewer responses against a local diff",
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:     "diff",
				Usage:    "Unified diff `FILE` (git diff output)",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:     "feedback",
				Aliases:  []string{"f"},
				Usage:    "Reviewer response as `ID=FILE`, or FILE to use its base name as ID (repeatable)",
				Required: true,
			},
		}, sharedFlags()...),
		Action: runExtract,
	}
}

func runExtract(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := config.ValidateOffline(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger := setupLogger(cfg)

	diffText, err := os.ReadFile(c.String("diff"))
	if err != nil {
		return fmt.Errorf("failed to read diff: %w", err)
	}
	model := newParser(cfg, logger).Parse(string(diffText)).Exclude(cfg.General.Exclude)

	var sources []review.Source
	for _, arg := range c.StringSlice("feedback") {
		src, err := readFeedback(arg)
		if err != nil {
			return err
		}
		sources = append(sources, src)
	}

	pipeline := review.NewPipeline(sources,
		review.WithExtractor(newExtractor(cfg, logger)),
		review.WithConfig(review.Config{Concurrency: cfg.General.Concurrency}),
		review.WithLogger(logger),
	)

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	bundle := pipeline.Analyze(ctx, model, models.ReviewInput{Files: model.Files()})

	logger.Info().
		Int("files", model.Len()).
		Int("sources", len(sources)).
		Int("resolved", len(bundle.Resolved)).
		Int("unresolved", len(bundle.Unresolved)).
		Msg("Extraction finished")
	return printBundle(bundle, c.Bool("json"))
}

// readFeedback loads one "ID=FILE" or "FILE" argument
func readFeedback(arg string) (review.TextSource, error) {
	id, path, ok := strings.Cut(arg, "=")
	if !ok {
		path = arg
		id = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if id == "" || path == "" {
		return review.TextSource{}, fmt.Errorf("invalid feedback argument %q, want ID=FILE", arg)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return review.TextSource{}, fmt.Errorf("failed to read feedback for %s: %w", id, err)
	}
	return review.TextSource{SourceID: id, Text: string(data)}, nil
}
